package callsession

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lokutor-ai/voicedesk/pkg/dialog"
	"github.com/lokutor-ai/voicedesk/pkg/directory"
	"github.com/lokutor-ai/voicedesk/pkg/providers/llm"
)

// solutionPauseDuration is the pacing sleep between playing a solution and
// asking "did that work?" (§4.9 "SOLUTION (after a 2s wait) -> VERIFICATION").
const solutionPauseDuration = 2 * time.Second

// dialogActivity is the FSM-driving activity (§4.8 activity 4, §4.9): it
// consumes final transcripts, applies the sentiment guard, evaluates the
// transition table, and dispatches the resulting action.
func (s *Session) dialogActivity(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.forceEnd:
			return nil
		case t := <-s.turns:
			s.handleTurn(ctx, t.transcript)
			if s.terminalReached() {
				s.end()
				return nil
			}
		}
	}
}

func (s *Session) terminalReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.call.DialogState
	return st == dialog.Transfer || st == dialog.Goodbye || st == dialog.Error
}

func (s *Session) state() dialog.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call.DialogState
}

func (s *Session) setState(st dialog.State) {
	s.mu.Lock()
	s.call.DialogState = st
	s.mu.Unlock()
	s.requestMode(dialog.STTModeFor(st))
}

func (s *Session) dialogContext() dialog.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call.Context
}

func (s *Session) setDialogContext(c dialog.Context) {
	s.mu.Lock()
	s.call.Context = c
	s.mu.Unlock()
}

func (s *Session) appendTranscript(line string) {
	s.mu.Lock()
	s.call.Transcript = append(s.call.Transcript, line)
	s.mu.Unlock()
}

// handleTurn applies the sentiment guard (pre-FSM, §4.9), resolves an
// Intent, evaluates the transition table, and dispatches the side effect.
func (s *Session) handleTurn(ctx context.Context, transcript string) {
	s.appendTranscript("caller: " + transcript)

	state := s.state()
	dctx := s.dialogContext()

	if s.settings.NegativeKeywords != nil {
		dctx.NegativeCount += s.settings.NegativeKeywords.CountMatches(transcript)
	}
	if s.settings.SentimentAngerThreshold > 0 && dctx.NegativeCount >= s.settings.SentimentAngerThreshold {
		dctx.ForceTransfer = true
	}

	intent := s.resolveIntent(ctx, state, &dctx, transcript)

	if intent.OffTopic || intent.Kind == llm.KindOffTopic {
		s.setDialogContext(dctx)
		s.SayStatic(PhraseOffTopic)
		return
	}

	if intent.RequiresClarification {
		dctx.ClarificationAttempts++
		if !dctx.ExceededClarification() {
			s.setDialogContext(dctx)
			s.SayStatic(PhraseClarify)
			return
		}
	}

	rule, ok := dialog.Evaluate(state, dctx, intent)
	if !ok {
		s.setDialogContext(dctx)
		return
	}

	switch rule.Action {
	case dialog.ActionClarify:
		dctx.ClarificationAttempts++
	case dialog.ActionReask:
		dctx.ConfirmationAttempts++
	}

	s.setDialogContext(dctx)
	s.dispatch(ctx, rule, dctx, intent, transcript)
}

// resolveIntent skips the LLM entirely once ForceTransfer has already been
// set this turn (the guard "bypasses any in-progress LLM call", §4.9), and
// also skips it for the deterministic email-shaped check in
// AWAITING_IDENTITY/IDENTIFICATION, since that predicate is a plain regex,
// not a model judgment.
func (s *Session) resolveIntent(ctx context.Context, state dialog.State, dctx *dialog.Context, transcript string) llm.Intent {
	if dctx.ForceTransfer {
		return llm.Intent{}
	}

	if state == dialog.AwaitingIdentity || state == dialog.Identification {
		if email, ok := dialog.NormalizeEmail(transcript); ok {
			return llm.Intent{Kind: llm.KindEmailProvided, Extracted: llm.Extracted{Email: email}}
		}
	}

	intent := s.deps.LLM.ClassifyJSON(ctx, s.settings.PromptTemplates.ClassifyIntent, transcript)

	if state == dialog.Diagnostic {
		dctx.ProblemType = dialog.DetectProblemType(transcript)
	}
	if intent.Kind == llm.KindIdentityProvided {
		name := strings.TrimSpace(intent.Extracted.FirstName + " " + intent.Extracted.LastName)
		if name != "" {
			dctx.ClientName = name
		}
	}

	// TICKET_VERIFICATION's not-related transition fires on "Intent.is_no
	// OR keyword-no" (§4.9): if the model didn't already call it yes/no/
	// problem-persists, fall back to the same keyword-count heuristic the
	// original implementation used ahead of any model call.
	if state == dialog.TicketVerification &&
		!intent.IsYes(dialog.YesConfidenceThreshold) &&
		intent.Kind != llm.KindNo && intent.Kind != llm.KindProblemPersists {
		if _, isNo := dialog.KeywordYesNo(transcript); isNo {
			intent.Kind = llm.KindNo
		}
	}

	return intent
}

// dispatch runs the side effect named by rule.Action and advances the
// dialog state, including the SOLUTION state's synchronous pacing sleep
// (§5 "Dialog: suspends ... on sleep calls used for pacing").
func (s *Session) dispatch(ctx context.Context, rule dialog.Rule, dctx dialog.Context, intent llm.Intent, transcript string) {
	switch rule.Action {
	case dialog.ActionTicketTransferOK:
		s.SayStatic(PhraseTicketTransfer)
		s.setState(rule.To)

	case dialog.ActionTicketNotRelated:
		s.SayStatic(PhraseTicketNotRelated)
		s.setState(rule.To)

	case dialog.ActionClarify:
		s.SayStatic(PhraseClarify)
		s.setState(rule.To)

	case dialog.ActionStoreEmailReply:
		dctx.Email = intent.Extracted.Email
		s.setDialogContext(dctx)
		reply := s.deps.LLM.Complete(ctx, s.settings.PromptTemplates.IdentificationReply, transcript)
		s.appendTranscript("bot: " + reply)
		s.SayDynamic(ctx, reply)
		s.setState(rule.To)

	case dialog.ActionLLMReply:
		reply := s.deps.LLM.Complete(ctx, s.settings.PromptTemplates.DiagnosticReply, transcript)
		s.appendTranscript("bot: " + reply)
		s.SayDynamic(ctx, reply)
		s.setState(rule.To)

	case dialog.ActionInternetSolution:
		s.SayStatic(PhraseAreYouOnMobile)
		s.SayStatic(PhraseInternetSolution)
		s.pauseThenAskVerification(ctx, rule.To)

	case dialog.ActionMobileSolution:
		s.SayStatic(PhraseRestartPhone)
		s.pauseThenAskVerification(ctx, rule.To)

	case dialog.ActionCongratulate:
		s.SayHybrid(ctx, PhraseGoodbye, s.congratulationText(dctx))
		s.setState(rule.To)

	case dialog.ActionCheckTechnician:
		available := false
		if s.deps.Directory != nil {
			available = s.deps.Directory.TechnicianAvailable(ctx, s.settings.TechnicianMaxActive, s.settings.TechnicianLoadWindow)
		}
		resolved := dialog.ResolveTechnicianBranch(available)
		if resolved.Action == dialog.ActionTransfer {
			s.SayStatic(PhraseTransfer)
		} else {
			s.SayDynamic(ctx, s.callbackText(dctx))
		}
		s.setState(resolved.To)

	case dialog.ActionReask:
		s.SayStatic(PhraseReask)
		s.setState(rule.To)

	case dialog.ActionForceTransfer:
		// §4.9/§8 scenario 3: the anger/sentiment guard plays the empathy
		// line before handing off, not the bare transfer phrase.
		s.SayStatic(PhraseEmpathy)
		s.SayStatic(PhraseTransfer)
		s.setState(rule.To)

	case dialog.ActionFatalError:
		dctx.FatalError = true
		s.setDialogContext(dctx)
		s.setState(rule.To)

	default:
		s.setState(rule.To)
	}
}

// pauseThenAskVerification implements the SOLUTION state's fixed 2s pacing
// sleep before asking "did that work?" and advancing to VERIFICATION,
// entirely within the current dialog-activity turn.
func (s *Session) pauseThenAskVerification(ctx context.Context, solutionState dialog.State) {
	s.setState(solutionState)
	select {
	case <-time.After(solutionPauseDuration):
	case <-ctx.Done():
		return
	case <-s.forceEnd:
		return
	}
	s.SayStatic(PhraseDidThatWork)
	s.setState(dialog.Verification)
}

func (s *Session) congratulationText(dctx dialog.Context) string {
	name := dctx.ClientName
	if name == "" {
		name = "cher client"
	}
	return fmt.Sprintf(s.settings.PromptTemplates.Congratulate, name)
}

func (s *Session) callbackText(dctx dialog.Context) string {
	name := dctx.ClientName
	if name == "" {
		name = "cher client"
	}
	return fmt.Sprintf(s.settings.PromptTemplates.CallbackMessage, name)
}

// runInitialTransitions executes the one-time INIT-state logic (§4.9
// "Initial transitions"): closed-hours check, caller-number resolution,
// the C7 lookups, and the branch table. It runs before the main per-turn
// loop and is not modeled by dialog.Evaluate, since it requires no user
// input.
func (s *Session) runInitialTransitions(ctx context.Context) {
	if s.settings.BusinessOpen != nil && !s.settings.BusinessOpen(time.Now()) {
		s.SayStatic(PhraseClosedHours)
		s.mu.Lock()
		s.call.SkipTicket = true
		s.call.DialogState = dialog.Goodbye
		s.mu.Unlock()
		s.end()
		return
	}

	s.resolveCallerNumber(ctx)

	var profile *directory.Profile
	var history []directory.TicketSummary
	var pending []directory.Ticket
	s.mu.Lock()
	number := s.call.CallerNumber
	s.mu.Unlock()

	if s.deps.Directory != nil && number != "" {
		profile, _ = s.deps.Directory.LookupCaller(ctx, number)
		history, _ = s.deps.Directory.LookupHistory(ctx, number, 5)
		pending, _ = s.deps.Directory.LookupPending(ctx, number, 1)
	}

	branch := dialog.ResolveInitBranch(profile != nil, len(history) > 0, len(pending) > 0)

	s.mu.Lock()
	s.call.CallerProfile = profile
	s.call.History = history
	if len(pending) > 0 {
		p := pending[0]
		s.call.PendingTicket = &p
	}
	s.mu.Unlock()

	s.playInitBranch(ctx, branch, profile, pending)
	s.setState(branch.NextState())
}

func (s *Session) playInitBranch(ctx context.Context, branch dialog.InitBranch, profile *directory.Profile, pending []directory.Ticket) {
	switch branch {
	case dialog.BranchPendingKnown, dialog.BranchPendingHistory:
		problem := "votre demande"
		if len(pending) > 0 {
			problem = string(pending[0].ProblemType)
		}
		s.SayHybrid(ctx, PhrasePendingIntro, fmt.Sprintf(s.settings.PromptTemplates.PendingTicketAsk, problem))
	case dialog.BranchWelcomeKnown:
		name := ""
		if profile != nil {
			name = profile.FirstName
		}
		s.SayHybrid(ctx, PhraseWelcome, fmt.Sprintf(s.settings.PromptTemplates.WelcomeBackKnown, name))
	case dialog.BranchWelcomeHistory:
		s.SayHybrid(ctx, PhraseWelcome, s.settings.PromptTemplates.WelcomeBackHistory)
	default:
		s.SayStatic(PhraseGreet)
		s.SayStatic(PhraseWelcome)
		s.SayStatic(PhraseAskIdentity)
	}
}

// resolveCallerNumber implements §4.9/§6: if the handshake identifier is a
// UUID (the binary handshake form), the caller number is unknown until
// resolved via the PBX AMI "CALLER_<uniqueid>" lookup; otherwise the
// handshake identifier is itself usable as the caller number (it was a
// plain text/hex identifier, not a call UUID).
func (s *Session) resolveCallerNumber(ctx context.Context) {
	s.mu.Lock()
	callID := s.call.CallID
	s.mu.Unlock()

	if _, err := uuid.Parse(callID); err != nil {
		s.mu.Lock()
		s.call.CallerNumber = callID
		s.mu.Unlock()
		return
	}

	if s.settings.AMILookup == nil {
		return
	}
	number, err := s.settings.AMILookup(ctx, callID)
	if err != nil || number == "" {
		return // unknown caller (§6: "timeouts and missing variables are treated as unknown caller")
	}
	s.mu.Lock()
	s.call.CallerNumber = number
	s.mu.Unlock()
}
