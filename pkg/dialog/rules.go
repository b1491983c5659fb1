package dialog

import "github.com/lokutor-ai/voicedesk/pkg/providers/llm"

// Action keys the call session (C8) dispatches on. These are the "side
// effect" column of §4.9's transition table, kept as string constants
// rather than closures so the rule table stays pure data and easily
// tested in isolation.
const (
	ActionTicketTransferOK  = "ticket_transfer_ok"
	ActionTicketNotRelated  = "ticket_not_related"
	ActionClarify           = "clarify"
	ActionStoreEmailReply   = "store_email_reply"
	ActionLLMReply          = "llm_reply"
	ActionInternetSolution  = "internet_solution"
	ActionMobileSolution    = "mobile_solution"
	ActionAskVerification   = "ask_verification"
	ActionCongratulate      = "congratulate_goodbye"
	ActionReask             = "reask"
	ActionForceTransfer     = "force_transfer"
	ActionFatalError        = "fatal_error"
	ActionCheckTechnician   = "check_technician" // resolved dynamically, see ResolveTechnicianBranch
	ActionTransfer          = "transfer"
	ActionCallback          = "callback"
)

// globalRules are evaluated before the per-state table, on every state
// except the terminal ones (§4.9: "any (except TRANSFER/GOODBYE/ERROR)").
var globalRules = []Rule{
	{
		Predicate: func(c Context, _ llm.Intent) bool { return c.FatalError },
		To:        Error,
		Action:    ActionFatalError,
	},
	{
		Predicate: func(c Context, _ llm.Intent) bool { return c.ForceTransfer },
		To:        Transfer,
		Action:    ActionForceTransfer,
	},
}

// perStateRules is the declarative per-turn table from §4.9, evaluated in
// declaration order — the first matching rule for the current state wins.
var perStateRules = []Rule{
	{
		From:      TicketVerification,
		Predicate: func(_ Context, i llm.Intent) bool { return i.IsYes(YesConfidenceThreshold) },
		To:        Transfer,
		Action:    ActionTicketTransferOK,
	},
	{
		From: TicketVerification,
		Predicate: func(_ Context, i llm.Intent) bool {
			return i.IsNo() || i.Kind == llm.KindProblemPersists
		},
		To:     Diagnostic,
		Action: ActionTicketNotRelated,
	},
	{
		From:      TicketVerification,
		Predicate: always,
		To:        TicketVerification,
		Action:    ActionClarify,
	},
	{
		From:      AwaitingIdentity,
		Predicate: func(_ Context, i llm.Intent) bool { return i.Kind == llm.KindEmailProvided },
		To:        Identification,
		Action:    ActionStoreEmailReply,
	},
	{
		From:      Identification,
		Predicate: func(_ Context, i llm.Intent) bool { return i.Kind == llm.KindEmailProvided },
		To:        Identification,
		Action:    ActionStoreEmailReply,
	},
	{
		From:      Identification,
		Predicate: always,
		To:        Diagnostic,
		Action:    ActionLLMReply,
	},
	{
		From:      Diagnostic,
		Predicate: func(c Context, _ llm.Intent) bool { return c.ProblemType == ProblemInternet },
		To:        Solution,
		Action:    ActionInternetSolution,
	},
	{
		From:      Diagnostic,
		Predicate: func(c Context, _ llm.Intent) bool { return c.ProblemType == ProblemMobile },
		To:        Solution,
		Action:    ActionMobileSolution,
	},
	{
		From:      Verification,
		Predicate: func(_ Context, i llm.Intent) bool { return i.IsYes(YesConfidenceThreshold) },
		To:        Goodbye,
		Action:    ActionCongratulate,
	},
	{
		From:      Verification,
		Predicate: func(_ Context, i llm.Intent) bool { return i.IsNo() },
		To:        "", // resolved dynamically by ResolveTechnicianBranch
		Action:    ActionCheckTechnician,
	},
	{
		From:      Verification,
		Predicate: always,
		To:        Verification,
		Action:    ActionReask,
	},
}

// Evaluate returns the first rule that matches (state, ctx, intent): the
// global rules first (unless state is terminal), then the per-state table
// in declaration order (§4.9 tie-break rule). ok is false if nothing
// matched, meaning the dialog activity should hold its current state.
func Evaluate(state State, ctx Context, intent llm.Intent) (Rule, bool) {
	if !terminal(state) {
		if ctx.ExceededClarification() || ctx.ExceededConfirmation() {
			return Rule{From: state, To: Transfer, Action: ActionForceTransfer}, true
		}
		for _, r := range globalRules {
			if r.Predicate(ctx, intent) {
				return r, true
			}
		}
	}
	for _, r := range perStateRules {
		if r.From != state {
			continue
		}
		if r.Predicate(ctx, intent) {
			return r, true
		}
	}
	return Rule{}, false
}

// ResolveTechnicianBranch turns the ActionCheckTechnician placeholder into
// a concrete transition once the call session has consulted C7 (§4.9
// "Technician availability"): available → TRANSFER with a transfer
// prompt, unavailable → GOODBYE with a callback message.
func ResolveTechnicianBranch(available bool) Rule {
	if available {
		return Rule{From: Verification, To: Transfer, Action: ActionTransfer}
	}
	return Rule{From: Verification, To: Goodbye, Action: ActionCallback}
}
