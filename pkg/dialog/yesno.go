package dialog

import "strings"

// yesKeywords and noKeywords are the deterministic fallback vocabulary for
// a yes/no answer when the model's own classification doesn't already
// resolve to yes/no (ported from the original implementation's
// extract_yes_no, which used the same keyword-count approach "as a
// fallback if the LLM intent fails").
var yesKeywords = []string{
	"oui", "ouais", "ok", "d'accord", "exact", "exactement",
	"tout à fait", "bien sûr", "affirmatif", "correct",
}

var noKeywords = []string{
	"non", "pas du tout", "jamais", "négatif", "aucunement",
}

// KeywordYesNo scores text against both keyword lists. A strict majority
// for one side reports that answer; a tie (including 0-0) reports
// neither, leaving the caller's existing classification untouched.
func KeywordYesNo(text string) (isYes, isNo bool) {
	lower := strings.ToLower(text)
	yesScore := countKeywords(lower, yesKeywords)
	noScore := countKeywords(lower, noKeywords)
	switch {
	case yesScore > noScore:
		return true, false
	case noScore > yesScore:
		return false, true
	default:
		return false, false
	}
}
