// Package directory is the realtime engine's only persistence
// collaborator (C7, §4.7, §6): caller lookup against the read-only
// "clients" database, and ticket history/pending/insert/load queries
// against "tickets". Every operation is time-bounded via ctx.
package directory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokutor-ai/voicedesk/pkg/sanitize"
)

// DefaultQueryTimeout bounds every directory query so a stalled database
// never blocks the dialog (§5, §7 DirectoryError policy).
const DefaultQueryTimeout = 3 * time.Second

// ProblemType mirrors the ticket field enumeration in §3.
type ProblemType string

const (
	ProblemInternet ProblemType = "internet"
	ProblemMobile   ProblemType = "mobile"
	ProblemUnknown  ProblemType = "unknown"
)

// Status mirrors the ticket status enumeration in §3.
type Status string

const (
	StatusResolved    Status = "resolved"
	StatusTransferred Status = "transferred"
	StatusFailed      Status = "failed"
)

// Sentiment mirrors the ticket sentiment enumeration in §3.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Severity mirrors the ticket severity enumeration in §3.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Profile is the caller record from the "clients" database.
type Profile struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	BoxModel    string
}

// TicketSummary is a compact history row, newest first.
type TicketSummary struct {
	TicketID    string
	ProblemType ProblemType
	Status      Status
	CreatedAt   time.Time
}

// Ticket is the full append-only row written at call end (§3).
type Ticket struct {
	CallID          string
	CallerNumber    string
	ClientName      string
	ClientEmail     string
	ProblemType     ProblemType
	Status          Status
	Sentiment       Sentiment
	Summary         string
	DurationSeconds int
	Tag             string
	Severity        Severity
	CreatedAt       time.Time
}

// Client wraps two bounded connection pools (§5: 2-10 per database).
type Client struct {
	clients *pgxpool.Pool
	tickets *pgxpool.Pool
	names   *sanitize.List
}

// Open connects the clients and tickets pools using the given DSNs,
// bounding each to [2,10] connections (§5, §6 DB_CLIENTS_DSN/DB_TICKETS_DSN).
func Open(ctx context.Context, clientsDSN, ticketsDSN string, names *sanitize.List) (*Client, error) {
	clientsPool, err := newBoundedPool(ctx, clientsDSN)
	if err != nil {
		return nil, err
	}
	ticketsPool, err := newBoundedPool(ctx, ticketsDSN)
	if err != nil {
		clientsPool.Close()
		return nil, err
	}
	return &Client{clients: clientsPool, tickets: ticketsPool, names: names}, nil
}

func newBoundedPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MinConns = 2
	cfg.MaxConns = 10
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Close releases both connection pools.
func (c *Client) Close() {
	c.clients.Close()
	c.tickets.Close()
}

func (c *Client) sanitizeStr(s string) string {
	if c.names == nil {
		return sanitize.StripNUL(s)
	}
	return c.names.String(s)
}

// LookupCaller returns the caller's profile, if known. A miss yields
// (nil, nil); a database error yields (nil, err). Either way the profile is
// nil, and the dialog treats the caller as unknown (§4.7 DirectoryError:
// "treat caller as unknown").
func (c *Client) LookupCaller(ctx context.Context, phone string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	phone = c.sanitizeStr(phone)
	row := c.clients.QueryRow(ctx,
		`SELECT phone_number, first_name, last_name, box_model FROM clients WHERE phone_number = $1`, phone)

	var p Profile
	if err := row.Scan(&p.PhoneNumber, &p.FirstName, &p.LastName, &p.BoxModel); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.FirstName = c.sanitizeStr(p.FirstName)
	p.LastName = c.sanitizeStr(p.LastName)
	return &p, nil
}

// LookupHistory returns up to limit ticket summaries for phone, newest
// first (§4.7).
func (c *Client) LookupHistory(ctx context.Context, phone string, limit int) ([]TicketSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	phone = c.sanitizeStr(phone)
	rows, err := c.tickets.Query(ctx,
		`SELECT id, problem_type, status, created_at FROM tickets
		 WHERE caller_number = $1 ORDER BY created_at DESC LIMIT $2`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TicketSummary
	for rows.Next() {
		var t TicketSummary
		if err := rows.Scan(&t.TicketID, &t.ProblemType, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LookupPending returns tickets with status != resolved for phone, newest
// first, bounded by limit (§4.7).
func (c *Client) LookupPending(ctx context.Context, phone string, limit int) ([]Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	phone = c.sanitizeStr(phone)
	rows, err := c.tickets.Query(ctx,
		`SELECT id, caller_number, problem_type, status, created_at FROM tickets
		 WHERE caller_number = $1 AND status != $2 ORDER BY created_at DESC LIMIT $3`,
		phone, StatusResolved, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.CallID, &t.CallerNumber, &t.ProblemType, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTicket inserts t exactly once, at call teardown. Not idempotent;
// callers must call this at most once per call (§4.7, §5).
func (c *Client) CreateTicket(ctx context.Context, t Ticket) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	t.CallerNumber = c.sanitizeStr(t.CallerNumber)
	t.ClientName = c.sanitizeStr(t.ClientName)
	t.ClientEmail = c.sanitizeStr(t.ClientEmail)
	t.Summary = c.sanitizeStr(t.Summary)
	t.Tag = c.sanitizeStr(t.Tag)

	var id string
	err := c.tickets.QueryRow(ctx,
		`INSERT INTO tickets
		   (call_id, caller_number, client_name, client_email, problem_type,
		    status, sentiment, summary, duration_seconds, tag, severity, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 RETURNING id`,
		t.CallID, t.CallerNumber, t.ClientName, t.ClientEmail, t.ProblemType,
		t.Status, t.Sentiment, t.Summary, t.DurationSeconds, t.Tag, t.Severity, t.CreatedAt,
	).Scan(&id)
	return id, err
}

// TechnicianAvailable returns true iff fewer than maxActive tickets were
// transferred in the last windowMin minutes. On any query error it
// fail-opens (returns true) per §4.7 and §8 property 7.
func (c *Client) TechnicianAvailable(ctx context.Context, maxActive int, windowMin int) bool {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var count int
	err := c.tickets.QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE status = $1 AND created_at > now() - ($2 * interval '1 minute')`,
		StatusTransferred, windowMin,
	).Scan(&count)
	if err != nil {
		return true // fail-open
	}
	return count < maxActive
}
