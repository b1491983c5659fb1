package callsession

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/lokutor-ai/voicedesk/pkg/dialog"
	"github.com/lokutor-ai/voicedesk/pkg/directory"
	"github.com/lokutor-ai/voicedesk/pkg/providers/llm"
)

func newTestSession(t *testing.T, callID string, settings Settings, deps Deps) (*Session, func()) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()
	s := New(client, callID, settings, deps, nil)
	return s, func() { server.Close() }
}

func TestFinalTicketOutcomeSkipsTicketWhenClosedHours(t *testing.T) {
	s, cleanup := newTestSession(t, "555", Settings{}, Deps{})
	defer cleanup()
	s.call.SkipTicket = true
	s.call.DialogState = dialog.Goodbye

	status, sentiment := s.finalTicketOutcome()
	if status != "" || sentiment != "" {
		t.Fatalf("expected empty status/sentiment, got %q/%q", status, sentiment)
	}
}

func TestFinalTicketOutcomeGoodbyeIsResolvedPositive(t *testing.T) {
	s, cleanup := newTestSession(t, "555", Settings{}, Deps{})
	defer cleanup()
	s.call.DialogState = dialog.Goodbye

	status, sentiment := s.finalTicketOutcome()
	if status != directory.StatusResolved || sentiment != directory.SentimentPositive {
		t.Fatalf("got %q/%q", status, sentiment)
	}
}

func TestFinalTicketOutcomeTransferIsNegativeWhenForced(t *testing.T) {
	s, cleanup := newTestSession(t, "555", Settings{}, Deps{})
	defer cleanup()
	s.call.DialogState = dialog.Transfer
	s.call.Context.ForceTransfer = true

	status, sentiment := s.finalTicketOutcome()
	if status != directory.StatusTransferred || sentiment != directory.SentimentNegative {
		t.Fatalf("got %q/%q", status, sentiment)
	}
}

func TestFinalTicketOutcomeNonTerminalStateIsFailed(t *testing.T) {
	s, cleanup := newTestSession(t, "555", Settings{}, Deps{})
	defer cleanup()
	s.call.DialogState = dialog.Diagnostic

	status, sentiment := s.finalTicketOutcome()
	if status != directory.StatusFailed || sentiment != directory.SentimentNegative {
		t.Fatalf("got %q/%q", status, sentiment)
	}
}

func TestBuildSummaryWithoutLLMIsEmpty(t *testing.T) {
	s, cleanup := newTestSession(t, "555", Settings{}, Deps{})
	defer cleanup()
	s.call.Transcript = []string{"caller: bonjour"}

	if got := s.buildSummary(context.Background()); got != "" {
		t.Fatalf("want empty summary without an LLM, got %q", got)
	}
}

func TestBuildSummaryWithoutTranscriptIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("LLM should not be called with an empty transcript")
	}))
	defer server.Close()

	s, cleanup := newTestSession(t, "555", Settings{}, Deps{LLM: llm.New("k", server.URL, "m")})
	defer cleanup()

	if got := s.buildSummary(context.Background()); got != "" {
		t.Fatalf("want empty summary, got %q", got)
	}
}

func TestBuildSummaryJoinsTranscriptLines(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.Write([]byte(`{"content":[{"text":"resume"}]}`))
	}))
	defer server.Close()

	s, cleanup := newTestSession(t, "555", Settings{}, Deps{LLM: llm.New("k", server.URL, "m")})
	defer cleanup()
	s.call.Transcript = []string{"caller: bonjour", "bot: comment puis-je vous aider"}

	got := s.buildSummary(context.Background())
	if got != "resume" {
		t.Fatalf("want %q, got %q", "resume", got)
	}
	if !contains(gotBody, "caller: bonjour") || !contains(gotBody, "bot: comment puis-je vous aider") {
		t.Fatalf("request body missing transcript lines: %s", gotBody)
	}
}

func TestResolveCallerNumberUsesHandshakeTextDirectly(t *testing.T) {
	s, cleanup := newTestSession(t, "0601020304", Settings{}, Deps{})
	defer cleanup()

	s.resolveCallerNumber(context.Background())

	if s.call.CallerNumber != "0601020304" {
		t.Fatalf("want handshake identifier reused as caller number, got %q", s.call.CallerNumber)
	}
}

func TestResolveCallerNumberResolvesUUIDViaAMI(t *testing.T) {
	callID := uuid.New().String()
	settings := Settings{AMILookup: func(ctx context.Context, id string) (string, error) {
		if id != callID {
			t.Fatalf("AMILookup called with %q, want %q", id, callID)
		}
		return "0601020304", nil
	}}
	s, cleanup := newTestSession(t, callID, settings, Deps{})
	defer cleanup()

	s.resolveCallerNumber(context.Background())

	if s.call.CallerNumber != "0601020304" {
		t.Fatalf("want resolved number, got %q", s.call.CallerNumber)
	}
}

func TestResolveCallerNumberLeavesUnknownOnAMIFailure(t *testing.T) {
	callID := uuid.New().String()
	settings := Settings{AMILookup: func(ctx context.Context, id string) (string, error) {
		return "", errNoop
	}}
	s, cleanup := newTestSession(t, callID, settings, Deps{})
	defer cleanup()

	s.resolveCallerNumber(context.Background())

	if s.call.CallerNumber != "" {
		t.Fatalf("want unknown caller number, got %q", s.call.CallerNumber)
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		sentiment directory.Sentiment
		status    directory.Status
		want      directory.Severity
	}{
		{directory.SentimentNegative, directory.StatusResolved, directory.SeverityHigh},
		{directory.SentimentNeutral, directory.StatusTransferred, directory.SeverityMedium},
		{directory.SentimentPositive, directory.StatusResolved, directory.SeverityLow},
	}
	for _, c := range cases {
		if got := severityFor(c.sentiment, c.status); got != c.want {
			t.Fatalf("severityFor(%q,%q) = %q, want %q", c.sentiment, c.status, got, c.want)
		}
	}
}

func TestJoinLines(t *testing.T) {
	if got := joinLines([]string{"a"}); got != "a" {
		t.Fatalf("want %q, got %q", "a", got)
	}
	if got := joinLines([]string{"a", "b", "c"}); got != "a\nb\nc" {
		t.Fatalf("want %q, got %q", "a\nb\nc", got)
	}
}

type noopError struct{}

func (noopError) Error() string { return "noop" }

var errNoop = noopError{}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (needle == "" || indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
