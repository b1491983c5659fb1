// Package tts streams text to the speech-synthesis provider over HTTPS
// (§4.5, §6) and pipes the MP3 response through the resampler pool to
// produce 8kHz PCM chunks sized for 20ms framing. The session is
// cancellable: cancelling ctx stops chunk production promptly by closing
// the in-flight HTTP response body, mirroring the teacher's own
// context-first cancellation discipline (pkg/orchestrator/managed_stream.go).
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lokutor-ai/voicedesk/pkg/resample"
)

// VoiceConfig carries the provider tuning knobs named in §6.
type VoiceConfig struct {
	Model         string
	Voice         string
	Stability     float64
	Similarity    float64
	Style         float64
	SpeakerBoost  bool
}

// Config configures the HTTPS endpoint and credentials.
type Config struct {
	Endpoint string // e.g. "https://api.elevenlabs.io/v1/text-to-speech/<voice>/stream"
	APIKey   string
}

// Session is a reusable client against one TTS endpoint; individual
// synthesis calls are independent and may run concurrently, though the
// call session (C8) enforces at most one live session per call.
type Session struct {
	cfg  Config
	pool *resample.Pool
	http *http.Client
}

// New creates a Session that decodes provider MP3 output via pool.
func New(cfg Config, pool *resample.Pool) *Session {
	return &Session{cfg: cfg, pool: pool, http: http.DefaultClient}
}

type synthesizeRequest struct {
	Text          string  `json:"text"`
	ModelID       string  `json:"model_id,omitempty"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Style           float64 `json:"style"`
		SpeakerBoost    bool    `json:"use_speaker_boost"`
	} `json:"voice_settings"`
}

// StreamSynthesize streams text through the provider and returns a channel
// of 8kHz/16-bit/mono PCM chunks sized for 20ms framing, plus a single
// terminal error on errc. Cancelling ctx stops production within one
// provider read and one resample job (§4.5, §5 cancellation & timeouts).
func (s *Session) StreamSynthesize(ctx context.Context, text string, voice VoiceConfig) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errc)

		resp, err := s.request(ctx, text, voice)
		if err != nil {
			errc <- err
			return
		}
		defer resp.Body.Close()

		pcmChunks, decodeErr := s.pool.MP3StreamToPCM8k(ctx, resp.Body)
		for c := range pcmChunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
		if err := <-decodeErr; err != nil {
			errc <- err
		}
	}()

	return chunks, errc
}

func (s *Session) request(ctx context.Context, text string, voice VoiceConfig) (*http.Response, error) {
	var payload synthesizeRequest
	payload.Text = text
	payload.ModelID = voice.Model
	payload.VoiceSettings.Stability = voice.Stability
	payload.VoiceSettings.SimilarityBoost = voice.Similarity
	payload.VoiceSettings.Style = voice.Style
	payload.VoiceSettings.SpeakerBoost = voice.SpeakerBoost

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("tts: status %d", resp.StatusCode)
	}
	return resp, nil
}

// Name identifies this collaborator in logs/metrics.
func (s *Session) Name() string { return "tts" }
