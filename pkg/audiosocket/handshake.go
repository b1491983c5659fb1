package audiosocket

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// HandshakeMax is the most bytes C10 reads before giving up on identifying
// the caller.
const HandshakeMax = 64

// ErrScanTraffic marks a connection that looks like an HTTP request or a TLS
// ClientHello rather than an AudioSocket handshake — almost certainly
// internet scan noise hitting the PBX port.
var ErrScanTraffic = errors.New("audiosocket: scan traffic, not a handshake")

// looksLikeHTTP reports whether b opens with a recognizable HTTP request
// line verb.
func looksLikeHTTP(b []byte) bool {
	verbs := []string{"GET ", "POST", "PUT ", "HEAD", "OPTI", "DELE", "PATC", "CONN", "TRAC"}
	if len(b) < 4 {
		return false
	}
	for _, v := range verbs {
		if string(b[:4]) == v {
			return true
		}
	}
	return false
}

// looksLikeTLS reports whether b opens with a TLS record header
// (ContentType=handshake, major version 3).
func looksLikeTLS(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x16 && b[1] == 0x03
}

// ParseHandshake classifies the first bytes read from a freshly accepted
// connection (up to HandshakeMax) and returns a caller identifier, per §4.10:
//
//  1. HTTP verbs or a TLS record header are scan traffic: ErrScanTraffic.
//  2. 0x01 | len:u16be | 16-byte UUID is the binary handshake.
//  3. Otherwise, NUL-stripped UTF-8 text is used as the identifier.
//  4. If that is empty, the hex of the first 16 bytes is used.
func ParseHandshake(b []byte) (string, error) {
	if looksLikeHTTP(b) || looksLikeTLS(b) {
		return "", ErrScanTraffic
	}

	if len(b) >= 19 && b[0] == 0x01 {
		length := binary.BigEndian.Uint16(b[1:3])
		if length == 16 && len(b) >= 3+16 {
			id, err := uuid.FromBytes(b[3:19])
			if err == nil {
				return id.String(), nil
			}
		}
	}

	text := stripNUL(b)
	if utf8.Valid(text) {
		if s := string(text); len(s) > 0 {
			return s, nil
		}
	}

	n := 16
	if len(b) < n {
		n = len(b)
	}
	return hex.EncodeToString(b[:n]), nil
}

func stripNUL(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0x00 {
			out = append(out, c)
		}
	}
	return out
}
