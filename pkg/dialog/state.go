// Package dialog implements the declarative conversation state machine
// (C9, §4.9): a table of (FromState, predicate, ToState, action) rules
// evaluated in declaration order, exactly the "dynamic dispatch of
// transitions" design called for in §9 — this replaces the scattered
// conditional chains the predecessor system used.
package dialog

import "github.com/lokutor-ai/voicedesk/pkg/providers/llm"

// State enumerates the call's dialog states (§4.9). This set is
// authoritative per §9: other state lists that may exist elsewhere in the
// wider system are superseded by this one.
type State string

const (
	Init                 State = "INIT"
	Welcome              State = "WELCOME"
	TicketVerification   State = "TICKET_VERIFICATION"
	Identification       State = "IDENTIFICATION"
	AwaitingIdentity     State = "AWAITING_IDENTITY"
	Diagnostic           State = "DIAGNOSTIC"
	Solution             State = "SOLUTION"
	Verification         State = "VERIFICATION"
	Transfer             State = "TRANSFER"
	Goodbye              State = "GOODBYE"
	Error                State = "ERROR"
)

// ProblemType mirrors the ticket field enumeration (§3); kept as its own
// type in this package so the FSM doesn't import the persistence package
// for a pure dialog concept.
type ProblemType string

const (
	ProblemInternet ProblemType = "internet"
	ProblemMobile   ProblemType = "mobile"
	ProblemUnknown  ProblemType = "unknown"
)

// Attempt caps from §4.9: exceeding either forces a TRANSFER.
const (
	MaxClarificationAttempts = 2
	MaxConfirmationAttempts  = 3
)

// YesConfidenceThreshold is the minimum confidence for TICKET_VERIFICATION
// and VERIFICATION "yes" transitions (§4.9 table: "conf > 0.6").
const YesConfidenceThreshold = 0.6

// Context carries the call's typed slots (§3) that predicates read and
// actions mutate. Only the dialog activity mutates this value (§9).
type Context struct {
	ProblemType ProblemType
	UserSpokenInfo string
	Email          string
	ClientName     string

	NegativeCount int
	ForceTransfer bool
	FatalError    bool

	ClarificationAttempts int
	ConfirmationAttempts  int
}

// ExceededClarification reports whether the clarification cap was exceeded
// (§4.9 "Attempt counters").
func (c Context) ExceededClarification() bool {
	return c.ClarificationAttempts > MaxClarificationAttempts
}

// ExceededConfirmation reports whether the confirmation cap was exceeded.
func (c Context) ExceededConfirmation() bool {
	return c.ConfirmationAttempts > MaxConfirmationAttempts
}

// terminal reports whether further per-turn rule evaluation should not run
// for state — TRANSFER/GOODBYE/ERROR end the scripted conversation.
func terminal(s State) bool {
	return s == Transfer || s == Goodbye || s == Error
}

// Predicate is a pure function over (Context, Intent); it must not mutate
// either argument or have side effects (§4.9, §9).
type Predicate func(Context, llm.Intent) bool

// Rule is one row of the static transition table (§3 TransitionRule, §4.9).
// Action is an opaque key the call session (C8) interprets to run the
// associated Say*/side effect — the FSM itself never touches audio or
// providers, keeping it a pure decision table testable without I/O.
type Rule struct {
	From      State
	Predicate Predicate
	To        State
	Action    string
}

func always(Context, llm.Intent) bool { return true }
