package dialog

import "github.com/lokutor-ai/voicedesk/pkg/providers/stt"

// askStates are the dialog states that expect a short yes/no/confirmation
// reply and so use the tighter yes_no endpointing threshold (§4.9
// "STT-mode selection").
var askStates = map[State]bool{
	TicketVerification: true,
	Verification:       true,
	Solution:           true,
}

// STTModeFor returns the STT endpointing mode the call session should use
// while listening in state s (§4.9).
func STTModeFor(s State) stt.Mode {
	if askStates[s] {
		return stt.ModeYesNo
	}
	return stt.ModeOpen
}
