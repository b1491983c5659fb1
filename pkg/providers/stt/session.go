// Package stt streams captured PCM to the speech-to-text provider over a
// WebSocket (grounded on the teacher's own coder/websocket session pattern
// in its TTS provider) and delivers interim/final transcripts plus VAD
// "speech started" events back to the call (§4.4, §6).
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"
)

// Mode controls the provider's endpointing threshold (§4.4). The session is
// re-created, not reconfigured, when the mode changes across dialog turns.
type Mode string

const (
	ModeOpen  Mode = "open"
	ModeYesNo Mode = "yes_no"
	ModeQuick Mode = "quick"
)

// EndpointingMS returns the trailing-silence threshold for mode, in
// milliseconds (§4.4: open ≈1200ms, yes_no/quick ≈500ms).
func EndpointingMS(mode Mode) int {
	switch mode {
	case ModeOpen:
		return 1200
	default:
		return 500
	}
}

// EventType distinguishes a transcript delivery from a bare VAD signal.
type EventType string

const (
	EventTranscript   EventType = "transcript"
	EventSpeechStart  EventType = "speech_started"
)

// Event is delivered to the call session's STT-feeder activity.
type Event struct {
	Type       EventType
	Transcript string
	IsFinal    bool
}

// KeywordBoost biases recognition toward a domain word. Intensity must be
// in [1,3]; 0 and 4 are rejected by NewKeywordBoost (§6).
type KeywordBoost struct {
	Word      string
	Intensity int
}

// NewKeywordBoost validates intensity before constructing the boost.
func NewKeywordBoost(word string, intensity int) (KeywordBoost, error) {
	if intensity < 1 || intensity > 3 {
		return KeywordBoost{}, fmt.Errorf("stt: keyword intensity %d out of range [1,3]", intensity)
	}
	return KeywordBoost{Word: word, Intensity: intensity}, nil
}

func (k KeywordBoost) String() string {
	return fmt.Sprintf("%s:%d", k.Word, k.Intensity)
}

// Config configures the streaming wire contract (§6).
type Config struct {
	Endpoint string // base wss URL, e.g. "wss://api.deepgram.com/v1/listen"
	APIKey   string
	Model    string
	Language string // "fr" per §6
	Keywords []KeywordBoost
}

// Session is one live streaming STT connection for a call. At most one
// audio producer (the call's STT-feeder activity) writes to it at a time.
type Session struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open dials the provider with the wire knobs from §6 for the given mode
// and streams decoded events to onEvent until the session is closed or the
// provider ends the stream. onEvent must not block.
func Open(ctx context.Context, cfg Config, mode Mode, onEvent func(Event)) (*Session, error) {
	u, err := buildURL(cfg, mode)
	if err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(sessCtx, u, &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Authorization": {"Token " + cfg.APIKey}},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stt: dial failed: %w", err)
	}

	s := &Session{conn: conn, cancel: cancel, done: make(chan struct{})}
	go s.readLoop(sessCtx, onEvent)
	return s, nil
}

func buildURL(cfg Config, mode Mode) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("stt: invalid endpoint: %w", err)
	}

	q := u.Query()
	if cfg.Model != "" {
		q.Set("model", cfg.Model)
	}
	lang := cfg.Language
	if lang == "" {
		lang = "fr"
	}
	q.Set("language", lang)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "8000")
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	q.Set("vad_events", "true")
	q.Set("endpointing", strconv.Itoa(EndpointingMS(mode)))
	for _, kw := range cfg.Keywords {
		q.Add("keywords", kw.String())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Write forwards one PCM chunk to the provider as a binary message.
func (s *Session) Write(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("stt: session closed")
	}
	s.mu.Unlock()
	return s.conn.Write(ctx, websocket.MessageBinary, pcm)
}

// Close ends the session. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	<-s.done
	return err
}

type providerMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *Session) readLoop(ctx context.Context, onEvent func(Event)) {
	defer close(s.done)

	for {
		_, payload, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		var msg providerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch {
		case msg.Type == "SpeechStarted":
			onEvent(Event{Type: EventSpeechStart})
		case len(msg.Channel.Alternatives) > 0:
			transcript := msg.Channel.Alternatives[0].Transcript
			if strings.TrimSpace(transcript) == "" {
				continue
			}
			onEvent(Event{Type: EventTranscript, Transcript: transcript, IsFinal: msg.IsFinal})
		}
	}
}
