package resample

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder is the realtime Decoder wired into the production pool
// (cmd/voicebot): it decodes an ElevenLabs MP3 stream with go-mp3 (the pure
// Go decoder the ecosystem actually ships, since none of the reference
// repos carry a codec of their own) and downmixes/decimates the result to
// the 8kHz mono PCM the playout clock writes to the socket.
type MP3Decoder struct{}

// DecodePCM8k implements Decoder.
func (MP3Decoder) DecodePCM8k(r io.Reader) ([]byte, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("resample: mp3 decode: %w", err)
	}

	stereo, err := io.ReadAll(dec)
	if err != nil && len(stereo) == 0 {
		return nil, fmt.Errorf("resample: mp3 read: %w", err)
	}

	return downsampleTo8kMono(stereo, dec.SampleRate()), nil
}

// downsampleTo8kMono turns go-mp3's interleaved 16-bit stereo PCM at
// srcRate into mono PCM at 8kHz: average the two channels, then pick the
// nearest source sample for each output tick. Good enough for a voice
// codec path whose downstream consumer (the telephony leg) is itself
// narrowband.
func downsampleTo8kMono(stereo []byte, srcRate int) []byte {
	if srcRate <= 0 {
		srcRate = 44100
	}

	frames := len(stereo) / 4
	if frames == 0 {
		return nil
	}

	const targetRate = 8000
	outFrames := frames * targetRate / srcRate
	if outFrames == 0 {
		return nil
	}

	out := make([]byte, outFrames*2)
	for i := 0; i < outFrames; i++ {
		srcIdx := i * srcRate / targetRate
		if srcIdx >= frames {
			srcIdx = frames - 1
		}
		l := int16(binary.LittleEndian.Uint16(stereo[srcIdx*4:]))
		r := int16(binary.LittleEndian.Uint16(stereo[srcIdx*4+2:]))
		mono := int16((int32(l) + int32(r)) / 2)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(mono))
	}
	return out
}
