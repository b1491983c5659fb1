package callsession

import (
	"context"
	"time"

	"github.com/lokutor-ai/voicedesk/pkg/audiosocket"
)

// playoutTick is the fixed 20ms cadence the outbound AudioSocket stream is
// clocked at (§4.8 activity 3, §8 testable property "playout cadence").
const playoutTick = 20 * time.Millisecond

// playoutClockActivity writes exactly one BytesPer20ms frame to the
// connection every 20ms: the next queued chunk if one is ready, otherwise
// silence-fill. It clears IsSpeaking once the queue has drained and no
// background producer is still live. A write failure is fatal to the call
// (§7 Fatal error): it marks the dialog context and ends the session rather
// than retrying indefinitely.
func (s *Session) playoutClockActivity(ctx context.Context) error {
	ticker := time.NewTicker(playoutTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.forceEnd:
			return nil
		case <-ticker.C:
			chunk, ok := s.queue.Dequeue()
			if !ok {
				chunk = audiosocket.Silence(20)
				s.onQueueDrained()
			}
			if err := audiosocket.EncodeAudio(s.conn, chunk); err != nil {
				s.logger.Error("playout write failed, ending call", "call_id", s.call.CallID, "error", err)
				s.markFatal()
				s.end()
				return nil
			}
		}
	}
}

// onQueueDrained clears IsSpeaking once the queue is empty and there is no
// live TTS or hybrid producer still expected to enqueue more audio.
func (s *Session) onQueueDrained() {
	s.mu.Lock()
	producing := s.ttsCancel != nil || s.bgCancel != nil
	s.mu.Unlock()
	if !producing {
		s.setSpeaking(false)
	}
}

func (s *Session) markFatal() {
	s.mu.Lock()
	s.call.Context.FatalError = true
	s.mu.Unlock()
}
