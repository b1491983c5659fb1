// Package resample runs CPU-bound audio conversion (MP3 → 8kHz PCM for
// playout, PCM → MP3 for the offline recording collaborator) on a bounded
// worker pool, so decoding never blocks a call's playout clock (§4.2, §5).
package resample

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/semaphore"

	"github.com/lokutor-ai/voicedesk/pkg/audiosocket"
)

// Decoder turns a stream of MP3 bytes into 16-bit/mono/little-endian PCM
// samples at 8 kHz; Encoder does the reverse. Both are interfaces so the
// codec can be swapped: this package ships MP3Decoder (mp3.go, built on
// go-mp3) as its Decoder and NullEncoder as its only Encoder.
// What this package owns — and what §8's testable properties exercise — is
// the worker-pool bounding, the fixed 320-byte chunking, and the
// end-of-stream padding, all of which are codec-independent.
type Decoder interface {
	// DecodePCM8k decodes r (MP3) fully and returns 8kHz/16-bit/mono LE PCM.
	DecodePCM8k(r io.Reader) ([]byte, error)
}

// Encoder is the offline batch direction (§4.2), used by the nightly
// transcoding collaborator, not by the realtime path.
type Encoder interface {
	EncodeMP3(pcm []byte) ([]byte, error)
}

// Pool bounds concurrent resampling jobs to a fixed worker count so decode
// work never starves the playout clock's 20ms cadence.
type Pool struct {
	sem     *semaphore.Weighted
	decoder Decoder
	encoder Encoder
}

// DefaultWorkers is used when PROCESS_POOL_WORKERS is unset (§6).
const DefaultWorkers = 3

// NewPool creates a Pool with the given worker bound. workers <= 0 falls
// back to DefaultWorkers.
func NewPool(workers int, decoder Decoder, encoder Encoder) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		decoder: decoder,
		encoder: encoder,
	}
}

// MP3StreamToPCM8k decodes mp3 fully (off the caller's goroutine, on the
// bounded pool) and delivers the result as a channel of fixed 320-byte PCM
// chunks, padded at the end if needed. The channel is closed after the
// final chunk or a single error value.
func (p *Pool) MP3StreamToPCM8k(ctx context.Context, mp3 io.Reader) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 8)
	errc := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errc)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			errc <- err
			return
		}
		defer p.sem.Release(1)

		pcm, err := p.decoder.DecodePCM8k(mp3)
		if err != nil {
			errc <- fmt.Errorf("resample: decode failed: %w", err)
			return
		}

		for _, chunk := range audiosocket.Chunk320(pcm) {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errc
}

// PCMToMP3 is the offline batch direction used by the logs-to-MP3
// collaborator; it runs on the same bounded pool as the realtime direction
// since both are CPU-heavy codec work.
func (p *Pool) PCMToMP3(ctx context.Context, pcm []byte) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	return p.encoder.EncodeMP3(pcm)
}

// BufferDecoder adapts an in-memory MP3 buffer for tests and small inputs
// without requiring a real streaming codec.
type BufferDecoder struct {
	// Fn performs the actual MP3 → PCM conversion; tests substitute a fake.
	Fn func([]byte) ([]byte, error)
}

func (d BufferDecoder) DecodePCM8k(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return d.Fn(data)
}

// NullEncoder is a placeholder Encoder for configurations that never
// exercise the offline PCM→MP3 direction (e.g. unit tests of the realtime
// path only).
type NullEncoder struct{}

func (NullEncoder) EncodeMP3(pcm []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(pcm)
	return buf.Bytes(), nil
}
