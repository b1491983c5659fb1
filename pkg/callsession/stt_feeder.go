package callsession

import (
	"context"
	"time"

	"github.com/lokutor-ai/voicedesk/pkg/dialog"
	"github.com/lokutor-ai/voicedesk/pkg/providers/stt"
)

// requestMode tells the STT-feeder activity which endpointing mode the
// current dialog state wants (§4.4, §4.9 "STT-mode selection"). The
// session is re-created, not reconfigured, when the mode actually changes.
func (s *Session) requestMode(mode stt.Mode) {
	select {
	case s.modeCh <- mode:
	default:
		// A mode switch is already pending; the feeder will pick up the
		// latest desired mode once it drains this one. Replace it.
		select {
		case <-s.modeCh:
		default:
		}
		s.modeCh <- mode
	}
}

// sttFeederActivity owns the one live STT session for the call: it
// (re)opens it on mode changes and forwards every inbound PCM chunk to it
// (§4.8 activity 2). If the provider closes or errors, the call proceeds
// without STT rather than failing (§4.4, §7).
func (s *Session) sttFeederActivity(ctx context.Context) error {
	defer s.closeSTT()

	s.openSTT(ctx, dialog.STTModeFor(dialog.Init))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.forceEnd:
			return nil
		case mode := <-s.modeCh:
			if mode != s.sttMode {
				s.openSTT(ctx, mode)
			}
		case pcm, ok := <-s.inbound:
			if !ok {
				return nil
			}
			s.mu.Lock()
			sess := s.sttSession
			s.mu.Unlock()
			if sess != nil {
				_ = sess.Write(ctx, pcm) // provider error: degrade silently (§7)
			}
		}
	}
}

func (s *Session) openSTT(ctx context.Context, mode stt.Mode) {
	s.closeSTT()

	sess, err := stt.Open(ctx, s.settings.STT, mode, func(ev stt.Event) {
		s.handleSTTEvent(ev)
	})
	if err != nil {
		s.logger.Warn("stt session unavailable, degrading to cache-only", "call_id", s.call.CallID, "error", err)
		s.mu.Lock()
		s.sttSession = nil
		s.sttMode = mode
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.sttSession = sess
	s.sttMode = mode
	s.mu.Unlock()
}

func (s *Session) closeSTT() {
	s.mu.Lock()
	sess := s.sttSession
	s.sttSession = nil
	s.mu.Unlock()
	if sess != nil {
		_ = sess.Close()
	}
}

// handleSTTEvent is the STT session's onEvent callback (called from its
// own read-loop goroutine, so it must not block — §4.4). A bare VAD
// "speech started" event never triggers barge-in, only a non-empty
// transcript does (§4.8); both kinds of event still count as evidence the
// caller is present, resetting the silence timer C12 watches.
func (s *Session) handleSTTEvent(ev stt.Event) {
	s.touchLastUserSpeech()

	if ev.Type == stt.EventSpeechStart {
		return
	}

	if s.IsSpeaking() {
		s.bargeIn()
		if !ev.IsFinal {
			s.logger.Debug("interim transcript during barge-in", "call_id", s.call.CallID, "text", ev.Transcript)
			return
		}
	}

	if !ev.IsFinal {
		return // interim outside of barge-in: dispatch only happens on final (§9 open question)
	}

	select {
	case s.turns <- turn{transcript: ev.Transcript}:
	default:
		s.logger.Warn("dialog activity backlogged, dropping transcript", "call_id", s.call.CallID)
	}
}

func (s *Session) touchLastUserSpeech() {
	s.mu.Lock()
	s.call.LastUserSpeechAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) lastUserSpeech() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call.LastUserSpeechAt
}
