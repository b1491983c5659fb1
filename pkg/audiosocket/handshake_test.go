package audiosocket

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
)

func TestParseHandshakeBinaryUUID(t *testing.T) {
	id := uuid.MustParse("11112222-3333-4444-5555-666677778888")
	buf := make([]byte, 19)
	buf[0] = 0x01
	binary.BigEndian.PutUint16(buf[1:3], 16)
	copy(buf[3:], id[:])

	got, err := ParseHandshake(buf)
	if err != nil {
		t.Fatalf("ParseHandshake: %v", err)
	}
	if got != id.String() {
		t.Fatalf("got %q, want %q", got, id.String())
	}
}

func TestParseHandshakeTextIdentifier(t *testing.T) {
	got, err := ParseHandshake([]byte("agent-call-42\x00\x00"))
	if err != nil {
		t.Fatalf("ParseHandshake: %v", err)
	}
	if got != "agent-call-42" {
		t.Fatalf("got %q", got)
	}
}

func TestParseHandshakeHexFallback(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	got, err := ParseHandshake(raw)
	if err != nil {
		t.Fatalf("ParseHandshake: %v", err)
	}
	if got != "deadbeef" {
		t.Fatalf("got %q", got)
	}
}

func TestParseHandshakeRejectsHTTP(t *testing.T) {
	_, err := ParseHandshake([]byte("GET / HTTP/1.1\r\n"))
	if err != ErrScanTraffic {
		t.Fatalf("want ErrScanTraffic, got %v", err)
	}
}

func TestParseHandshakeRejectsTLS(t *testing.T) {
	_, err := ParseHandshake([]byte{0x16, 0x03, 0x01, 0x00, 0x2f})
	if err != ErrScanTraffic {
		t.Fatalf("want ErrScanTraffic, got %v", err)
	}
}
