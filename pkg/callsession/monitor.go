package callsession

import (
	"context"
	"time"

	"github.com/lokutor-ai/voicedesk/pkg/dialog"
)

// monitorActivity is the embedded timeout monitor (C12, §4.12): a
// once-a-second tick enforcing the silence-warning, silence-hangup, and
// max-call-duration limits. StartedAt never changes, so it needs no lock;
// DialogState and LastUserSpeechAt are read through the session's
// accessors.
//
// "reset the timer" (§4.12) is implemented as a local debounce flag rather
// than mutating LastUserSpeechAt: resetting LastUserSpeechAt itself would
// make the hangup threshold unreachable, since warning always fires first
// at the shorter of the two durations.
func (s *Session) monitorActivity(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	warned := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.forceEnd:
			return nil
		case now := <-ticker.C:
			if s.settings.MaxCallDur > 0 && now.Sub(s.call.StartedAt) > s.settings.MaxCallDur {
				s.SayStatic(PhraseGoodbye)
				s.setState(dialog.Goodbye)
				s.end()
				return nil
			}

			state := s.state()
			if state == dialog.Init || state == dialog.Goodbye || state == dialog.Transfer || state == dialog.Error {
				continue
			}
			if s.IsSpeaking() {
				continue
			}

			silence := now.Sub(s.lastUserSpeech())
			switch {
			case s.settings.SilenceHangup > 0 && silence > s.settings.SilenceHangup:
				s.SayStatic(PhraseGoodbye)
				s.setState(dialog.Goodbye)
				s.end()
				return nil
			case s.settings.SilenceWarning > 0 && silence > s.settings.SilenceWarning:
				if !warned {
					s.SayStatic(PhraseStillThere)
					warned = true
				}
			default:
				warned = false
			}
		}
	}
}
