package resample

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lokutor-ai/voicedesk/pkg/audiosocket"
)

func echoDecoder() Decoder {
	return BufferDecoder{Fn: func(b []byte) ([]byte, error) { return b, nil }}
}

func TestMP3StreamToPCM8kChunksAndPads(t *testing.T) {
	pool := NewPool(1, echoDecoder(), NullEncoder{})
	pcm := make([]byte, audiosocket.BytesPer20ms+10)

	chunks, errc := pool.MP3StreamToPCM8k(context.Background(), bytes.NewReader(pcm))

	var got [][]byte
	for c := range chunks {
		got = append(got, c)
	}
	if err := <-errc; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(got))
	}
	for _, c := range got {
		if len(c) != audiosocket.BytesPer20ms {
			t.Fatalf("chunk not 320 bytes: %d", len(c))
		}
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 2
	var inFlight, maxInFlight int64

	blocking := BufferDecoder{Fn: func(b []byte) ([]byte, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			cur := atomic.LoadInt64(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt64(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return b, nil
	}}

	pool := NewPool(workers, blocking, NullEncoder{})

	const jobs = 6
	done := make(chan struct{}, jobs)
	for i := 0; i < jobs; i++ {
		go func() {
			chunks, errc := pool.MP3StreamToPCM8k(context.Background(), bytes.NewReader(make([]byte, 320)))
			for range chunks {
			}
			<-errc
			done <- struct{}{}
		}()
	}
	for i := 0; i < jobs; i++ {
		<-done
	}

	if atomic.LoadInt64(&maxInFlight) > workers {
		t.Fatalf("pool exceeded worker bound: %d > %d", maxInFlight, workers)
	}
}

func TestPCMToMP3RoundTripsThroughNullEncoder(t *testing.T) {
	pool := NewPool(1, echoDecoder(), NullEncoder{})
	out, err := pool.PCMToMP3(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("PCMToMP3: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Fatalf("unexpected output: %v", out)
	}
}
