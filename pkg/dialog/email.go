package dialog

import (
	"regexp"
	"strings"
)

// emailRe matches a well-formed email address already present in text —
// e.g. one the LLM already normalized, or one the caller spelled out
// cleanly. Checked first so NormalizeEmail is idempotent.
var emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]+`)

// spokenEmailRe matches the French STT rendering of a dictated address:
// "<local> arobase <domain> point <tld>" (§8 round-trip property).
var spokenEmailRe = regexp.MustCompile(`(?i)([a-z0-9._%+\-]+)\s+arobase\s+([a-z0-9\-]+)\s+point\s+([a-z]+)`)

// NormalizeEmail extracts and lowercases an email address from a
// transcribed utterance. It returns ("", false) if no email-shaped phrase
// is present — callers use this both to detect the "email-shaped text"
// predicate (§4.9 AWAITING_IDENTITY/IDENTIFICATION transition) and to
// produce the Extracted.Email value stored in Context.
//
// NormalizeEmail is idempotent: normalizing an already-normalized address
// returns it unchanged, since a clean "local@domain.tld" string matches
// emailRe before spokenEmailRe is ever tried (§8).
func NormalizeEmail(text string) (string, bool) {
	if m := emailRe.FindString(text); m != "" {
		return strings.ToLower(m), true
	}
	if m := spokenEmailRe.FindStringSubmatch(text); m != nil {
		local, domain, tld := m[1], m[2], m[3]
		return strings.ToLower(local + "@" + domain + "." + tld), true
	}
	return "", false
}

// IsEmailShaped reports whether text contains an email address in either
// written or spoken-French form — the predicate the AWAITING_IDENTITY /
// IDENTIFICATION transition tests (§4.9).
func IsEmailShaped(text string) bool {
	_, ok := NormalizeEmail(text)
	return ok
}
