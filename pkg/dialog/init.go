package dialog

// InitBranch is the one-time routing decision made at call start, before
// any user input (§4.9 "Initial transitions"). It is evaluated by the call
// session after the closed-hours check, the caller-number resolution, and
// the C7 directory lookups have all completed.
type InitBranch string

const (
	// BranchPendingKnown: profile known AND a pending ticket exists.
	BranchPendingKnown InitBranch = "pending_known"
	// BranchWelcomeKnown: profile known, no pending ticket.
	BranchWelcomeKnown InitBranch = "welcome_known"
	// BranchPendingHistory: no profile, but history exists and a ticket is
	// pending.
	BranchPendingHistory InitBranch = "pending_history"
	// BranchWelcomeHistory: no profile, history exists, nothing pending.
	BranchWelcomeHistory InitBranch = "welcome_history"
	// BranchNewCaller: nothing known about the caller at all.
	BranchNewCaller InitBranch = "new_caller"
)

// ResolveInitBranch implements the branch table in §4.9's "Initial
// transitions" section: the four boolean inputs are whatever the directory
// lookups (C7) returned, already evaluated by the caller.
func ResolveInitBranch(hasProfile, hasHistory, hasPending bool) InitBranch {
	switch {
	case hasProfile && hasPending:
		return BranchPendingKnown
	case hasProfile:
		return BranchWelcomeKnown
	case hasHistory && hasPending:
		return BranchPendingHistory
	case hasHistory:
		return BranchWelcomeHistory
	default:
		return BranchNewCaller
	}
}

// NextState returns the dialog state the call session should enter after
// playing the branch's initial utterance (§4.9).
func (b InitBranch) NextState() State {
	switch b {
	case BranchPendingKnown, BranchPendingHistory:
		return TicketVerification
	case BranchWelcomeKnown, BranchWelcomeHistory:
		return Diagnostic
	default:
		return AwaitingIdentity
	}
}
