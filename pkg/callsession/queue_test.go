package callsession

import (
	"testing"
	"time"
)

func TestPlayoutQueueFIFO(t *testing.T) {
	q := newPlayoutQueue()
	q.Enqueue([]byte("a"))
	q.Enqueue([]byte("b"))
	q.Enqueue([]byte("c"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue()
		if !ok || string(got) != want {
			t.Fatalf("want %q, got %q (ok=%v)", want, got, ok)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestPlayoutQueueDrainClearsEverything(t *testing.T) {
	q := newPlayoutQueue()
	q.Enqueue([]byte("a"))
	q.Enqueue([]byte("b"))
	q.Drain()

	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected queue drained")
	}
	if q.Len() != 0 {
		t.Fatalf("want len 0, got %d", q.Len())
	}
}

func TestPlayoutQueueWaitEmptyReturnsOnceDrained(t *testing.T) {
	q := newPlayoutQueue()
	q.Enqueue([]byte("a"))

	done := make(chan struct{})
	go func() {
		q.WaitEmpty(nil)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("WaitEmpty returned before queue drained")
	case <-time.After(20 * time.Millisecond):
	}

	q.Dequeue()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitEmpty never returned after drain")
	}
}

func TestPlayoutQueueWaitEmptyReturnsOnDone(t *testing.T) {
	q := newPlayoutQueue()
	q.Enqueue([]byte("a"))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		q.WaitEmpty(stop)
		close(done)
	}()

	close(stop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitEmpty never returned after done closed")
	}
}
