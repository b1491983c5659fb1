package dialog

import "strings"

// internetKeywords and mobileKeywords are the two closed, domain-specific
// keyword lists §4.9 calls for ("scored by keyword match on two closed
// keyword lists"). Scoring must be deterministic and reproducible by
// tests, so these stay fixed, ordinary French-support-desk vocabulary.
var internetKeywords = []string{
	"internet", "wifi", "wi-fi", "box", "modem", "modème", "routeur",
	"connexion", "adsl", "fibre", "débit", "ethernet",
}

// "réseau" is ambiguous between a home internet connection and a mobile
// carrier signal; the support-desk corpus uses it almost exclusively for
// "no mobile signal" ("pas de réseau"), so it is scored as a mobile
// keyword, not an internet one.
var mobileKeywords = []string{
	"portable", "mobile", "téléphone", "smartphone", "sim", "forfait",
	"appel", "sms", "réseau", "4g", "5g", "batterie",
}

// DetectProblemType scores text against both keyword lists and returns the
// higher-scoring category. A tie — including zero matches on both sides —
// resolves to ProblemInternet (§4.9, §8 "tie → internet"). Matching is
// case-insensitive substring counting, which keeps the scoring pure and
// reproducible across runs, as §8 requires.
func DetectProblemType(text string) ProblemType {
	lower := strings.ToLower(text)

	internetScore := countKeywords(lower, internetKeywords)
	mobileScore := countKeywords(lower, mobileKeywords)

	if mobileScore > internetScore {
		return ProblemMobile
	}
	return ProblemInternet
}

func countKeywords(lower string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		count += strings.Count(lower, kw)
	}
	return count
}
