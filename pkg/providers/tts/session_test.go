package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lokutor-ai/voicedesk/pkg/resample"
)

func echoPool() *resample.Pool {
	return resample.NewPool(2, resample.BufferDecoder{Fn: func(b []byte) ([]byte, error) { return b, nil }}, resample.NullEncoder{})
}

func TestStreamSynthesizeHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 640)) // two 320-byte frames once "decoded"
	}))
	defer server.Close()

	s := New(Config{Endpoint: server.URL, APIKey: "k"}, echoPool())
	chunks, errc := s.StreamSynthesize(context.Background(), "bonjour", VoiceConfig{Model: "m", Voice: "v"})

	var got [][]byte
	for c := range chunks {
		cp := append([]byte(nil), c...)
		got = append(got, cp)
	}
	if err := <-errc; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(got))
	}
}

func TestStreamSynthesizeSurfacesNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := New(Config{Endpoint: server.URL, APIKey: "k"}, echoPool())
	chunks, errc := s.StreamSynthesize(context.Background(), "bonjour", VoiceConfig{})

	for range chunks {
		t.Fatalf("expected no chunks on error")
	}
	if err := <-errc; err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestStreamSynthesizeCancellationStopsProduction(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		w.Write(make([]byte, 320))
		if flusher != nil {
			flusher.Flush()
		}
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{Endpoint: server.URL, APIKey: "k"}, echoPool())
	chunks, errc := s.StreamSynthesize(ctx, "bonjour", VoiceConfig{})

	cancel()

	select {
	case <-chunks:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for channel to close after cancel")
	}
	<-errc
}
