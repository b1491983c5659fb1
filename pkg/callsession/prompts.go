package callsession

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Static phrase cache keys (§4.3, §4.9). These name files under
// assets/cache/<key>.raw; WarnMissing is called against this list at
// startup so a missing phrase is caught before the first call, not during
// one.
const (
	PhraseGreet           = "greet"
	PhraseWelcome         = "welcome"
	PhraseAskIdentity     = "ask_identity"
	PhraseClosedHours     = "closed_hours"
	PhraseTicketTransfer  = "ticket_transfer_ok"
	PhraseTicketNotRelated = "ticket_not_related"
	PhraseClarify         = "clarify"
	PhraseAreYouOnMobile  = "are_you_on_mobile"
	PhraseRestartPhone    = "restart_phone"
	PhraseDidThatWork     = "did_that_work"
	PhraseStillThere      = "are_you_still_there"
	PhraseTransfer        = "transfer"
	PhraseGoodbye         = "goodbye"
	PhraseEmpathy         = "empathy_line"
	PhraseReask           = "reask"
	PhraseInternetSolution = "internet_solution"
	PhrasePendingIntro    = "pending_ticket_intro"
	// PhraseFallback is "Je suis désolé, pouvez-vous répéter ?" (§4.6's
	// deadline/ParseError fallback sentence), played whenever a dynamic
	// synthesis attempt produces no audio at all.
	PhraseFallback = "fallback_sentence"
	// PhraseOffTopic is played when the classifier flags a turn as not
	// addressed to the bot (the caller talking to someone else nearby);
	// the dialog state is held, not advanced.
	PhraseOffTopic = "off_topic_reprompt"
)

// StaticPhraseKeys lists every key WarnMissing should check for at startup.
var StaticPhraseKeys = []string{
	PhraseGreet, PhraseWelcome, PhraseAskIdentity, PhraseClosedHours,
	PhraseTicketTransfer, PhraseTicketNotRelated, PhraseClarify,
	PhraseAreYouOnMobile, PhraseRestartPhone, PhraseDidThatWork,
	PhraseStillThere, PhraseTransfer, PhraseGoodbye, PhraseEmpathy, PhraseReask,
	PhraseInternetSolution, PhrasePendingIntro, PhraseFallback, PhraseOffTopic,
}

// PromptSet holds every opaque LLM prompt and dynamic-text template the
// dialog activity needs (§5 "Prompt authoring": loaded from an external
// file at startup; the core never interprets these strings). Fields
// without a companion static cache key are always synthesized by TTS.
type PromptSet struct {
	ClassifyIntent     string `yaml:"classify_intent"`
	DiagnosticReply    string `yaml:"diagnostic_reply"`
	IdentificationReply string `yaml:"identification_reply"`
	SummaryPrompt      string `yaml:"summary_prompt"`
	SentimentPrompt    string `yaml:"sentiment_prompt"`

	PendingTicketAsk string `yaml:"pending_ticket_ask"`
	WelcomeBackKnown string `yaml:"welcome_back_known"`
	PendingHistoryAsk string `yaml:"pending_history_ask"`
	WelcomeBackHistory string `yaml:"welcome_back_history"`
	Congratulate     string `yaml:"congratulate"`
	CallbackMessage  string `yaml:"callback_message"`
}

// LoadPromptSet reads a YAML prompt file (§5). The core treats every value
// as an opaque string; hot-reload is out of scope.
func LoadPromptSet(path string) (PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PromptSet{}, err
	}
	var p PromptSet
	if err := yaml.Unmarshal(data, &p); err != nil {
		return PromptSet{}, err
	}
	return p, nil
}
