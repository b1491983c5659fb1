package callsession

import (
	"context"

	"github.com/lokutor-ai/voicedesk/pkg/audiosocket"
)

// setSpeaking sets the IsSpeaking flag under the session lock and
// publishes a bot-speaking/bot-silent event for observability (SPEC_FULL
// "Event bus").
func (s *Session) setSpeaking(speaking bool) {
	s.mu.Lock()
	changed := s.isSpeaking != speaking
	s.isSpeaking = speaking
	s.mu.Unlock()
	if changed {
		if speaking {
			s.deps.Events.Publish(s.call.CallID, "bot_speaking", nil)
		} else {
			s.deps.Events.Publish(s.call.CallID, "bot_silent", nil)
		}
	}
}

// IsSpeaking reports the call's current IsSpeaking invariant (§3).
func (s *Session) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSpeaking
}

// enqueuePCM splits pcm into 320-byte chunks and pushes them onto the live
// playout queue.
func (s *Session) enqueuePCM(pcm []byte) {
	for _, chunk := range audiosocket.Chunk320(pcm) {
		s.queue.Enqueue(chunk)
	}
}

// SayStatic plays a pre-rendered cached phrase (§4.8). Enqueuing is
// synchronous and fast (the PCM is already fully decoded), satisfying the
// "holds the dialog activity until Say* has enqueued all chunks" rule
// (§5) trivially.
func (s *Session) SayStatic(key string) {
	pcm, ok := s.deps.Cache.GetStatic(key)
	if !ok {
		s.logger.Warn("static phrase missing", "call_id", s.call.CallID, "key", key)
		return
	}
	s.setSpeaking(true)
	s.enqueuePCM(pcm)
}

// SayDynamic plays text, using the dynamic cache when available and
// falling back to a live TTS session otherwise (§4.3, §4.5, §4.8). On a
// cache hit TTS is never invoked (§4.3 invariant). On a miss, playout
// starts as soon as the first chunk is produced ("incremental playback");
// this call blocks only until that first chunk lands or the stream ends
// with nothing (§5: "Dialog: suspends ... on TTS first-chunk arrival"). A
// stream that ends having produced no chunks at all (provider error, decode
// failure) falls back to the cached fallback sentence (§4.6/§7
// ProviderError) instead of leaving the dialog activity blocked. On normal
// (non-cancelled) completion the full utterance is cached via PutDynamic; a
// cancelled (barge-in) completion never caches (§4.5).
func (s *Session) SayDynamic(ctx context.Context, text string) {
	if pcm, ok := s.deps.Cache.GetDynamic(text); ok {
		s.setSpeaking(true)
		s.enqueuePCM(pcm)
		return
	}

	ttsCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ttsCancel = cancel
	s.mu.Unlock()
	s.setSpeaking(true)

	chunks, errc := s.deps.TTS.StreamSynthesize(ttsCtx, text, s.settings.TTSVoice)

	first := true
	firstCh := make(chan struct{})
	go func() {
		var accumulated []byte
		cancelled := false
		failed := false
		for c := range chunks {
			accumulated = append(accumulated, c...)
			s.queue.Enqueue(padOne(c))
			if first {
				first = false
				close(firstCh)
			}
		}
		select {
		case <-ttsCtx.Done():
			cancelled = true
		default:
		}
		if err := <-errc; err != nil {
			failed = true
		}
		if first {
			// The stream produced nothing at all: fall back to the cached
			// sentence rather than leaving the caller's select blocked
			// until an unrelated timeout fires.
			if !cancelled {
				s.SayStatic(PhraseFallback)
			}
			close(firstCh)
		}
		if !cancelled && !failed && len(accumulated) > 0 {
			s.deps.Cache.PutDynamic(text, accumulated)
		}
		s.mu.Lock()
		if s.ttsCancel != nil {
			s.ttsCancel = nil
		}
		s.mu.Unlock()
	}()

	select {
	case <-firstCh:
	case <-ttsCtx.Done():
	}
}

// padOne right-pads a single TTS chunk to the 320-byte frame size; TTS
// output chunks already come sized for 20ms framing from the resampler
// pool, but the last chunk of a stream may be short.
func padOne(chunk []byte) []byte {
	return audiosocket.PadTo320(chunk)
}

// SayHybrid plays a static prefix immediately while a personalized
// dynamic suffix synthesizes in the background, then hands playout off to
// the dynamic audio the instant the static half finishes and at least one
// dynamic chunk is ready (§4.8 "hybrid latency masking", §9). Both halves
// are cancellable by barge-in.
func (s *Session) SayHybrid(ctx context.Context, key, text string) {
	pcm, ok := s.deps.Cache.GetStatic(key)
	if !ok {
		s.SayDynamic(ctx, text)
		return
	}

	if cached, ok := s.deps.Cache.GetDynamic(text); ok {
		// Both halves are already known: no latency to mask, just play
		// them back to back on the live queue.
		s.setSpeaking(true)
		s.enqueuePCM(pcm)
		s.enqueuePCM(cached)
		return
	}

	bgCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.bgCancel = cancel
	s.mu.Unlock()

	holding := make(chan []byte, 64)
	go func() {
		defer close(holding)
		chunks, errc := s.deps.TTS.StreamSynthesize(bgCtx, text, s.settings.TTSVoice)
		var accumulated []byte
		for c := range chunks {
			accumulated = append(accumulated, c...)
			select {
			case holding <- padOne(c):
			case <-bgCtx.Done():
				return
			}
		}
		cancelled := false
		select {
		case <-bgCtx.Done():
			cancelled = true
		default:
		}
		if err := <-errc; err != nil {
			cancelled = true
		}
		if !cancelled && len(accumulated) > 0 {
			s.deps.Cache.PutDynamic(text, accumulated)
		}
	}()

	s.setSpeaking(true)
	s.enqueuePCM(pcm)

	// Handoff: wait for the static half to finish playing, then drain
	// whatever the background producer has buffered onto the live queue
	// and keep forwarding anything it produces afterward.
	go func() {
		s.queue.WaitEmpty(bgCtx.Done())
		for {
			select {
			case c, ok := <-holding:
				if !ok {
					s.mu.Lock()
					s.bgCancel = nil
					s.mu.Unlock()
					return
				}
				s.queue.Enqueue(c)
			case <-bgCtx.Done():
				return
			}
		}
	}()
}

// bargeIn implements §4.8's barge-in sequence: drain the playout queue,
// cancel any live TTS session and any background hybrid producer, and
// clear IsSpeaking — all atomically with respect to new enqueues (§5).
func (s *Session) bargeIn() {
	s.mu.Lock()
	ttsCancel := s.ttsCancel
	bgCancel := s.bgCancel
	s.ttsCancel = nil
	s.bgCancel = nil
	s.isSpeaking = false
	s.mu.Unlock()

	s.queue.Drain()
	if ttsCancel != nil {
		ttsCancel()
	}
	if bgCancel != nil {
		bgCancel()
	}
	s.deps.Events.Publish(s.call.CallID, "barge_in", nil)
}
