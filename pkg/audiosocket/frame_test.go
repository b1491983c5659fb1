package audiosocket

import (
	"bytes"
	"io"
	"testing"

	"pgregory.net/rapid"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	f := Frame{Type: Audio, Payload: bytes.Repeat([]byte{0x7f}, BytesPer20ms)}

	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != f.Type || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
	}
}

func TestDecodeConnectionClosedMidHeader(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0x10, 0x00}))
	if err != ErrConnectionClosed {
		t.Fatalf("want ErrConnectionClosed, got %v", err)
	}
}

func TestDecodeConnectionClosedMidPayload(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0x10, 0x00, 0x05, 0x01, 0x02}))
	if err != ErrConnectionClosed {
		t.Fatalf("want ErrConnectionClosed, got %v", err)
	}
}

func TestDecodeTolerantOfNonAudioType(t *testing.T) {
	var buf bytes.Buffer
	Encode(&buf, Frame{Type: 0x02, Payload: []byte("hello")})
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type == Audio {
		t.Fatalf("unexpected audio type for non-audio frame")
	}
}

func TestChunk320PadsFinalChunk(t *testing.T) {
	pcm := make([]byte, BytesPer20ms+10)
	chunks := Chunk320(pcm)
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(chunks))
	}
	if len(chunks[1]) != BytesPer20ms {
		t.Fatalf("final chunk not padded to %d: got %d", BytesPer20ms, len(chunks[1]))
	}
}

func TestSilenceSampleCount(t *testing.T) {
	s := Silence(20)
	if len(s) != 320 {
		t.Fatalf("20ms of silence should be 320 bytes, got %d", len(s))
	}
	for _, b := range s {
		if b != 0 {
			t.Fatalf("silence must be all zero")
		}
	}
}

// TestRoundTripProperty is the §8 "decode ∘ encode = identity on valid
// frames" invariant, fuzzed over frame type and payload length.
func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ft := FrameType(rapid.Byte().Draw(rt, "type"))
		payload := rapid.SliceOfN(rapid.Byte(), 0, 2000).Draw(rt, "payload")

		var buf bytes.Buffer
		if err := Encode(&buf, Frame{Type: ft, Payload: payload}); err != nil {
			rt.Fatalf("Encode: %v", err)
		}
		got, err := Decode(&buf)
		if err != nil {
			rt.Fatalf("Decode: %v", err)
		}
		if got.Type != ft || !bytes.Equal(got.Payload, payload) {
			rt.Fatalf("round trip mismatch")
		}
		if _, err := buf.ReadByte(); err != io.EOF {
			rt.Fatalf("expected buffer fully consumed")
		}
	})
}
