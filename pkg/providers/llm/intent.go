package llm

// Kind enumerates the intent classification results the dialog FSM (C9)
// transitions on, per §3.
type Kind string

const (
	KindYes              Kind = "yes"
	KindNo               Kind = "no"
	KindUnclear          Kind = "unclear"
	KindOffTopic         Kind = "off_topic"
	KindEmailProvided    Kind = "email_provided"
	KindIdentityProvided Kind = "identity_provided"
	KindProblemPersists  Kind = "problem_persists"
)

// Extracted holds the variant payload an Intent may carry, e.g. a parsed
// email or name when Kind is KindEmailProvided/KindIdentityProvided.
type Extracted struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
}

// Intent is the result of an LLM intent classification (§3).
type Intent struct {
	Kind                  Kind      `json:"kind"`
	Confidence            float64   `json:"confidence"`
	Extracted             Extracted `json:"extracted"`
	RequiresClarification bool      `json:"requires_clarification"`
	OffTopic              bool      `json:"off_topic"`
	Reasoning             string    `json:"reasoning,omitempty"`
}

// IsYes reports whether the intent affirmatively answers a yes/no prompt
// above the given confidence threshold (used by the TICKET_VERIFICATION
// and VERIFICATION transitions, §4.9).
func (i Intent) IsYes(minConfidence float64) bool {
	return i.Kind == KindYes && i.Confidence > minConfidence
}

// IsNo reports whether the intent is a negative answer.
func (i Intent) IsNo() bool {
	return i.Kind == KindNo
}
