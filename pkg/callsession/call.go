// Package callsession implements the call session (C8, §4.8) and its
// embedded timeout monitor (C12, §4.12): the hub that owns one call's
// framer I/O, playout clock, dialog state, and barge-in, fanning out to
// five cooperating activities joined on a single errgroup.Group bound to
// the call's context (grounded on the teacher's own context-first
// cancellation discipline in pkg/orchestrator/managed_stream.go, and on
// the errgroup usage pattern present in MrWong99-glyphoxa/NeboLoop-nebo).
package callsession

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/voicedesk/pkg/audiosocket"
	"github.com/lokutor-ai/voicedesk/pkg/dialog"
	"github.com/lokutor-ai/voicedesk/pkg/directory"
	"github.com/lokutor-ai/voicedesk/pkg/phrasecache"
	"github.com/lokutor-ai/voicedesk/pkg/providers/llm"
	"github.com/lokutor-ai/voicedesk/pkg/providers/stt"
	"github.com/lokutor-ai/voicedesk/pkg/providers/tts"
	"github.com/lokutor-ai/voicedesk/pkg/recorder"
	"github.com/lokutor-ai/voicedesk/pkg/sanitize"
)

// Logger is the narrow logging surface this package needs, matching the
// shape used throughout the rest of the corpus's packages so a single
// charmbracelet/log-backed adapter (see cmd/voicebot) satisfies all of
// them.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// Call is the per-call data model (§3). It is owned exclusively by the
// one Session that created it; every field mutation happens on the
// dialog activity's goroutine except where noted.
type Call struct {
	CallID       string
	CallerNumber string
	StartedAt    time.Time

	CallerProfile *directory.Profile
	History       []directory.TicketSummary
	PendingTicket *directory.Ticket

	DialogState dialog.State
	Context     dialog.Context

	LastUserSpeechAt time.Time
	IsSpeaking       bool

	// SkipTicket marks a call that must not produce a ticket at teardown
	// (§4.9 INIT closed-hours branch).
	SkipTicket bool
	Transcript []string
}

// Settings bundles the tunables §6 exposes as env vars, already resolved
// by the caller (cmd/voicebot via internal/config) into concrete values so
// this package never parses an environment variable itself.
type Settings struct {
	SilenceWarning time.Duration
	SilenceHangup  time.Duration
	MaxCallDur     time.Duration

	TechnicianMaxActive int
	TechnicianLoadWindow int

	SentimentAngerThreshold int
	NegativeKeywords        *sanitize.List

	// BusinessOpen reports whether the support desk is open at t (§4.9
	// INIT closed-hours branch); injected so this package never imports
	// the config package's YAML schedule type.
	BusinessOpen func(t time.Time) bool

	// AMILookup resolves a caller number by call UUID when the handshake
	// didn't carry one (§4.9 INIT, §6 AMI). A nil func or an error both
	// mean "unknown caller".
	AMILookup func(ctx context.Context, callID string) (string, error)

	PromptTemplates PromptSet

	STT   stt.Config
	TTSVoice tts.VoiceConfig

	RecordingsDir string
}

// Deps bundles the shared, process-wide collaborators every call session
// borrows (§9 "global state"): the phrase cache, the TTS session, the LLM
// client, and the directory client. All are safe for concurrent use by many
// calls. Each call opens its own STT session from Settings.
type Deps struct {
	Cache      *phrasecache.Cache
	TTS        *tts.Session
	LLM        *llm.Client
	Directory  *directory.Client
	Events     EventSink
	Logger     Logger
}

// EventSink receives observability events published by a call session
// (SPEC_FULL.md "Event bus for observability/testing" — grounded on the
// teacher's own OrchestratorEvent channel). Implementations must not
// block; Metrics and test harnesses both implement this.
type EventSink interface {
	Publish(callID string, eventType string, data interface{})
}

type noopEventSink struct{}

func (noopEventSink) Publish(string, string, interface{}) {}

// Session runs one call end to end: accepted connection in, ticket+
// recording out.
type Session struct {
	conn     net.Conn
	settings Settings
	deps     Deps
	logger   Logger

	call *Call

	recorder *recorder.Recorder

	mu          sync.Mutex
	sttSession  *stt.Session
	sttMode     stt.Mode
	isSpeaking  bool
	ttsCancel   context.CancelFunc
	bgCancel    context.CancelFunc
	queue       *playoutQueue

	inbound chan []byte
	turns   chan turn
	modeCh  chan stt.Mode

	forceEnd chan struct{}
	endOnce  sync.Once
}

// turn is one final user utterance delivered to the dialog activity.
type turn struct {
	transcript string
}

// New constructs a Session for an already-accepted, already-handshaken
// connection. callID is the identifier ParseHandshake resolved (§4.10).
func New(conn net.Conn, callID string, settings Settings, deps Deps, logger Logger) *Session {
	if logger == nil {
		logger = noopLogger{}
	}
	if deps.Events == nil {
		deps.Events = noopEventSink{}
	}

	now := time.Now()
	s := &Session{
		conn:     conn,
		settings: settings,
		deps:     deps,
		logger:   logger,
		call: &Call{
			CallID:           callID,
			StartedAt:        now,
			DialogState:      dialog.Init,
			LastUserSpeechAt: now,
		},
		queue:    newPlayoutQueue(),
		inbound:  make(chan []byte, 64),
		turns:    make(chan turn, 8),
		modeCh:   make(chan stt.Mode, 1),
		forceEnd: make(chan struct{}),
	}

	rec, err := recorder.Open(settings.RecordingsDir, callID, now)
	if err != nil {
		logger.Warn("recorder disabled", "call_id", callID, "error", err)
	}
	s.recorder = rec

	return s
}

// Run drives the call to completion: it blocks until the connection
// closes, the call times out, or a fatal error occurs, then always tears
// down (recorder close, directory ticket insert, STT close, socket close
// — §5 "Call teardown cancels all per-call tasks... always executes").
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.inboundActivity(gctx) })
	g.Go(func() error { return s.sttFeederActivity(gctx) })
	g.Go(func() error { return s.playoutClockActivity(gctx) })
	g.Go(func() error { return s.dialogActivity(gctx) })
	g.Go(func() error { return s.monitorActivity(gctx) })

	s.runInitialTransitions(gctx)

	_ = g.Wait()
	s.teardown(ctx)
}

// end requests that every activity stop; safe to call multiple times and
// from any activity (e.g. a fatal playout-clock write failure, §7 Fatal).
func (s *Session) end() {
	s.endOnce.Do(func() { close(s.forceEnd) })
}

func (s *Session) teardown(ctx context.Context) {
	s.closeSTT()
	_ = s.recorder.Close()
	_ = s.conn.Close()

	status, sentiment := s.finalTicketOutcome()
	if status == "" {
		return // closed-hours or scanner path: no ticket (§4.9, §8 scenario 5)
	}

	summary := s.buildSummary(ctx)
	ticket := directory.Ticket{
		CallID:          s.call.CallID,
		CallerNumber:    s.call.CallerNumber,
		ClientEmail:     s.call.Context.Email,
		ClientName:      s.call.Context.ClientName,
		ProblemType:     directory.ProblemType(s.call.Context.ProblemType),
		Status:          status,
		Sentiment:       sentiment,
		Summary:         summary,
		DurationSeconds: int(time.Since(s.call.StartedAt).Seconds()),
		Severity:        severityFor(sentiment, status),
		CreatedAt:       time.Now(),
	}
	if s.deps.Directory != nil {
		if _, err := s.deps.Directory.CreateTicket(ctx, ticket); err != nil {
			s.logger.Error("ticket insert failed, keeping recording", "call_id", s.call.CallID, "error", err)
		}
	}
	s.deps.Events.Publish(s.call.CallID, "ticket_created", ticket)
}

// finalTicketOutcome derives the ticket status/sentiment from where the
// dialog ended up (§4.9, §8). Returns ("", "") for a call that must not
// produce a ticket at all (the INIT closed-hours branch).
func (s *Session) finalTicketOutcome() (directory.Status, directory.Sentiment) {
	s.mu.Lock()
	state := s.call.DialogState
	skip := s.call.SkipTicket
	dctx := s.call.Context
	s.mu.Unlock()

	if skip {
		return "", ""
	}

	sentiment := directory.SentimentNeutral
	switch {
	case dctx.ForceTransfer:
		sentiment = directory.SentimentNegative
	case state == dialog.Goodbye:
		sentiment = directory.SentimentPositive
	}

	switch state {
	case dialog.Transfer:
		return directory.StatusTransferred, sentiment
	case dialog.Goodbye:
		return directory.StatusResolved, sentiment
	default:
		return directory.StatusFailed, directory.SentimentNegative
	}
}

// buildSummary asks the LLM to condense the call's transcript (§4.6
// Summarize, §4.7 Ticket.Summary). A nil or failing LLM yields an empty
// summary rather than blocking teardown.
func (s *Session) buildSummary(ctx context.Context) string {
	if s.deps.LLM == nil {
		return ""
	}
	s.mu.Lock()
	digest := ""
	if len(s.call.Transcript) > 0 {
		digest = joinLines(s.call.Transcript)
	}
	s.mu.Unlock()
	if digest == "" {
		return ""
	}
	summary := s.deps.LLM.Summarize(ctx, s.settings.PromptTemplates.SummaryPrompt, digest)
	if summary == llm.FallbackReply {
		return ""
	}
	return summary
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}

func severityFor(sentiment directory.Sentiment, status directory.Status) directory.Severity {
	switch {
	case sentiment == directory.SentimentNegative:
		return directory.SeverityHigh
	case status == directory.StatusTransferred:
		return directory.SeverityMedium
	default:
		return directory.SeverityLow
	}
}

// inboundActivity reads AudioSocket frames and fans audio payloads out to
// the recorder and the STT feeder (§4.8 activity 1).
func (s *Session) inboundActivity(ctx context.Context) error {
	defer close(s.inbound)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.forceEnd:
			return nil
		default:
		}

		frame, err := audiosocket.Decode(s.conn)
		if err != nil {
			s.end()
			return nil // ConnectionClosed: normal termination (§7)
		}
		if frame.Type != audiosocket.Audio {
			continue
		}

		if err := s.recorder.Write(frame.Payload); err != nil {
			s.logger.Warn("recording write failed", "call_id", s.call.CallID, "error", err)
		}

		select {
		case s.inbound <- frame.Payload:
		case <-ctx.Done():
			return nil
		case <-s.forceEnd:
			return nil
		}
	}
}

var _ io.Closer = (*recorder.Recorder)(nil)
