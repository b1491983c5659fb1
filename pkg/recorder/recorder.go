// Package recorder appends captured inbound PCM to a per-call file (C11,
// §4.11). Failure to open is non-fatal — the call proceeds unrecorded;
// failure to write disables recording for the rest of the call rather than
// aborting it, mirroring the teacher's discipline of never letting an
// ancillary collaborator bring a call down (§7).
package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Recorder writes raw 8kHz/16-bit/mono PCM audio-frame payloads to a single
// per-call file. A nil *Recorder, or one whose Open failed, is a safe no-op
// sink: Write silently does nothing.
type Recorder struct {
	f       *os.File
	enabled bool
}

// FileName builds the per-call recording path per §6:
// <base>/call_<CallID>_<YYYYMMDD_HHMMSS>.raw.
func FileName(dir, callID string, startedAt time.Time) string {
	ts := startedAt.Format("20060102_150405")
	return filepath.Join(dir, fmt.Sprintf("call_%s_%s.raw", callID, ts))
}

// Open creates (or appends to) the recording file for callID under dir,
// creating dir if needed. A failure to open yields a disabled Recorder and
// a non-nil error for logging — never a reason to abort the call (§4.11,
// §7).
func Open(dir, callID string, startedAt time.Time) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Recorder{enabled: false}, fmt.Errorf("recorder: mkdir %s: %w", dir, err)
	}
	path := FileName(dir, callID, startedAt)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &Recorder{enabled: false}, fmt.Errorf("recorder: open %s: %w", path, err)
	}
	return &Recorder{f: f, enabled: true}, nil
}

// Write appends payload (one audio frame's worth of PCM) to the file. Once
// a write fails, recording is disabled for the remainder of the call
// (§4.11) — further Write calls are silent no-ops.
func (r *Recorder) Write(payload []byte) error {
	if r == nil || !r.enabled {
		return nil
	}
	if _, err := r.f.Write(payload); err != nil {
		r.enabled = false
		return fmt.Errorf("recorder: write failed, recording disabled: %w", err)
	}
	return nil
}

// Enabled reports whether the recorder is still accepting writes.
func (r *Recorder) Enabled() bool {
	return r != nil && r.enabled
}

// Close closes the underlying file, if any. Idempotent-safe to call on a
// disabled recorder.
func (r *Recorder) Close() error {
	if r == nil || r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.enabled = false
	return err
}
