package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New("test-key", server.URL, "test-model")
}

func TestCompleteHappyPath(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Content: []struct {
			Text string `json:"text"`
		}{{Text: "bonjour"}}})
	})

	got := c.Complete(context.Background(), "system", "user")
	if got != "bonjour" {
		t.Fatalf("got %q", got)
	}
}

func TestCompleteFallsBackOnError(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	got := c.Complete(context.Background(), "system", "user")
	if got != FallbackReply {
		t.Fatalf("want fallback reply, got %q", got)
	}
}

func TestCompleteFallsBackOnDeadline(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(chatResponse{})
	})
	c.WithDeadline(5 * time.Millisecond)

	got := c.Complete(context.Background(), "system", "user")
	if got != FallbackReply {
		t.Fatalf("want fallback reply, got %q", got)
	}
}

func TestClassifyJSONHappyPath(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(Intent{Kind: KindYes, Confidence: 0.9})
		json.NewEncoder(w).Encode(chatResponse{Content: []struct {
			Text string `json:"text"`
		}{{Text: string(body)}}})
	})

	intent := c.ClassifyJSON(context.Background(), "template", "oui")
	if intent.Kind != KindYes || intent.Confidence != 0.9 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestClassifyJSONFallsBackOnParseFailure(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Content: []struct {
			Text string `json:"text"`
		}{{Text: "not json at all"}}})
	})

	intent := c.ClassifyJSON(context.Background(), "template", "???")
	if intent.Kind != KindUnclear || intent.Confidence != 0 || !intent.RequiresClarification {
		t.Fatalf("unexpected fallback intent: %+v", intent)
	}
}

func TestIntentIsYesRespectsConfidenceThreshold(t *testing.T) {
	i := Intent{Kind: KindYes, Confidence: 0.5}
	if i.IsYes(0.6) {
		t.Fatalf("0.5 confidence should not pass 0.6 threshold")
	}
	if !i.IsYes(0.4) {
		t.Fatalf("0.5 confidence should pass 0.4 threshold")
	}
}
