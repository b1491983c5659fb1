// Package sanitize implements the string-sanitization pass required before
// any value is persisted to a ticket, used as a file name, or logged: strip
// NUL bytes and redact configured profanity/negative-sentiment tokens. The
// sanitizer is total (it runs over every string in a value, recursively)
// and idempotent (sanitize(sanitize(x)) == sanitize(x)).
package sanitize

import (
	"strings"
	"unicode/utf8"
)

// Redaction is the substitution placed where a matched profanity token used
// to be.
const Redaction = "[redacted]"

// List is a lowercase set of tokens to redact from strings, built once at
// startup by the caller (cmd/voicebot passes a fixed in-code list; see §7,
// §6 SENTIMENT_ANGER_THRESHOLD collaborator).
type List struct {
	tokens []string
}

// NewList builds a List from the given tokens, normalizing to lowercase and
// dropping empties/duplicates.
func NewList(tokens []string) *List {
	seen := make(map[string]struct{}, len(tokens))
	l := &List{}
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		l.tokens = append(l.tokens, t)
	}
	return l
}

// String strips NUL bytes, coerces invalid UTF-8 to the replacement
// character, and redacts every configured token (case-insensitively) found
// in s. It is pure and idempotent: running it twice is a no-op the second
// time, since the redaction placeholder itself never matches a token.
func (l *List) String(s string) string {
	s = StripNUL(s)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	if l == nil || len(l.tokens) == 0 {
		return s
	}

	lower := strings.ToLower(s)
	for _, tok := range l.tokens {
		if !strings.Contains(lower, tok) {
			continue
		}
		s = replaceFold(s, tok)
		lower = strings.ToLower(s)
	}
	return s
}

// CountMatches returns the number of (possibly overlapping-free) occurrences
// of configured tokens in s, used by the sentiment guard (§4.9) to
// increment the per-call anger counter.
func (l *List) CountMatches(s string) int {
	if l == nil {
		return 0
	}
	lower := strings.ToLower(s)
	count := 0
	for _, tok := range l.tokens {
		count += strings.Count(lower, tok)
	}
	return count
}

// StripNUL removes every NUL byte from s.
func StripNUL(s string) string {
	if !strings.ContainsRune(s, 0x00) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 0x00 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Dict sanitizes every string value in m recursively: nested maps and
// slices are walked, non-string values pass through unchanged. This backs
// the "sanitizer is total" requirement in §7 for structured payloads (e.g.
// directory lookup results) rather than only flat ticket fields.
func (l *List) Dict(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[StripNUL(k)] = l.value(v)
	}
	return out
}

func (l *List) value(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return l.String(x)
	case map[string]interface{}:
		return l.Dict(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = l.value(item)
		}
		return out
	default:
		return v
	}
}

func replaceFold(s, tok string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for {
		idx := strings.Index(lower[i:], tok)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		start := i + idx
		b.WriteString(s[i:start])
		b.WriteString(Redaction)
		i = start + len(tok)
	}
	return b.String()
}
