package directory_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lokutor-ai/voicedesk/pkg/directory"
)

// testDSNs returns the clients/tickets test database DSNs from the
// environment, or skips the test if they are not set.
func testDSNs(t *testing.T) (string, string) {
	t.Helper()
	clients := os.Getenv("VOICEDESK_TEST_CLIENTS_DSN")
	tickets := os.Getenv("VOICEDESK_TEST_TICKETS_DSN")
	if clients == "" || tickets == "" {
		t.Skip("VOICEDESK_TEST_CLIENTS_DSN/VOICEDESK_TEST_TICKETS_DSN not set — skipping PostgreSQL integration tests")
	}
	return clients, tickets
}

func newTestClient(t *testing.T) *directory.Client {
	t.Helper()
	clientsDSN, ticketsDSN := testDSNs(t)
	c, err := directory.Open(context.Background(), clientsDSN, ticketsDSN, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestLookupCallerUnknownReturnsNilNil(t *testing.T) {
	c := newTestClient(t)
	p, err := c.LookupCaller(context.Background(), "+33000000000")
	if err != nil {
		t.Fatalf("unexpected error for unknown caller: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile for unknown caller, got %+v", p)
	}
}

func TestCreateTicketThenAppearsInHistory(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	ticket := directory.Ticket{
		CallID:          "call-1",
		CallerNumber:    "+33111111111",
		ClientName:      "Jean Test",
		ProblemType:     directory.ProblemInternet,
		Status:          directory.StatusResolved,
		Sentiment:       directory.SentimentNeutral,
		Summary:         "box reset resolved the issue",
		DurationSeconds: 120,
		Severity:        directory.SeverityLow,
		CreatedAt:       time.Now(),
	}
	if _, err := c.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	history, err := c.LookupHistory(ctx, ticket.CallerNumber, 10)
	if err != nil {
		t.Fatalf("LookupHistory: %v", err)
	}
	if len(history) == 0 {
		t.Fatalf("expected at least one ticket in history")
	}
	if history[0].ProblemType != directory.ProblemInternet {
		t.Fatalf("unexpected problem type: %v", history[0].ProblemType)
	}
}

func TestLookupPendingExcludesResolved(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	phone := "+33222222222"

	resolved := directory.Ticket{CallID: "r1", CallerNumber: phone, Status: directory.StatusResolved, ProblemType: directory.ProblemMobile, CreatedAt: time.Now()}
	pending := directory.Ticket{CallID: "p1", CallerNumber: phone, Status: directory.StatusTransferred, ProblemType: directory.ProblemMobile, CreatedAt: time.Now()}
	if _, err := c.CreateTicket(ctx, resolved); err != nil {
		t.Fatalf("CreateTicket resolved: %v", err)
	}
	if _, err := c.CreateTicket(ctx, pending); err != nil {
		t.Fatalf("CreateTicket pending: %v", err)
	}

	got, err := c.LookupPending(ctx, phone, 10)
	if err != nil {
		t.Fatalf("LookupPending: %v", err)
	}
	for _, tk := range got {
		if tk.Status == directory.StatusResolved {
			t.Fatalf("resolved ticket leaked into pending list: %+v", tk)
		}
	}
}

func TestTechnicianAvailableFailsOpenOnBadContext(t *testing.T) {
	c := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-cancelled context forces the query to error out

	if !c.TechnicianAvailable(ctx, 5, 30) {
		t.Fatalf("TechnicianAvailable must fail open (return true) on query error")
	}
}
