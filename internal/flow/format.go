// Package flow implements the intake dialogue engine: intent classification,
// the field-collection state machine, and response formatting.
package flow

import (
	"fmt"
	"strings"

	"github.com/digicsc/sevaflow/internal/models"
)

// Supported languages for structural messages. Free-form AI replies are
// passed through verbatim: they are already in the requested language by
// construction of the upstream model prompt.
const (
	LanguageEnglish = "english"
	LanguageHindi   = "hindi"
)

// messageKey identifies a canned structural phrase.
type messageKey string

const (
	msgFlowStarted    messageKey = "flow_started"
	msgFlowCancelled  messageKey = "flow_cancelled"
	msgConfirmHeader  messageKey = "confirm_header"
	msgConfirmAsk     messageKey = "confirm_ask"
	msgProcessing     messageKey = "processing"
	msgApology        messageKey = "apology"
	msgFlowActive     messageKey = "flow_active"
	msgFreelancer     messageKey = "freelancer"
	msgFieldRepeat    messageKey = "field_repeat"
	msgNothingToStop  messageKey = "nothing_to_stop"
	msgSubmissionNote messageKey = "submission_note"
)

// phrases holds the canned structural messages per language. Verbs that
// take a document title use a single %s.
var phrases = map[string]map[messageKey]string{
	LanguageEnglish: {
		msgFlowStarted:    "Let's get started with your %s. You can send 'cancel' at any time to stop.",
		msgFlowCancelled:  "Your %s request has been cancelled.",
		msgConfirmHeader:  "I have all the required details for your %s:",
		msgConfirmAsk:     "Please reply 'yes' to confirm and submit, or send any corrected details.",
		msgProcessing:     "Your %s request is being processed. You will be notified once it is complete.",
		msgApology:        "I'm sorry, I encountered an issue while processing your request. Please try again.",
		msgFlowActive:     "You already have a %s in progress. Please finish it, or send 'cancel' to start over.",
		msgFreelancer:     "I'm connecting you with one of our freelancer agents who can help with this request.",
		msgFieldRepeat:    "I didn't catch that.",
		msgNothingToStop:  "There is no request in progress right now. How can I help you?",
		msgSubmissionNote: "Thank you! Submitting your %s now.",
	},
	LanguageHindi: {
		msgFlowStarted:    "चलिए आपका %s शुरू करते हैं। रोकने के लिए कभी भी 'cancel' भेजें।",
		msgFlowCancelled:  "आपका %s अनुरोध रद्द कर दिया गया है।",
		msgConfirmHeader:  "आपके %s के लिए सभी आवश्यक विवरण मिल गए हैं:",
		msgConfirmAsk:     "कृपया पुष्टि करने के लिए 'yes' भेजें, या सही विवरण भेजें।",
		msgProcessing:     "आपका %s अनुरोध संसाधित किया जा रहा है। पूरा होने पर आपको सूचित किया जाएगा।",
		msgApology:        "क्षमा करें, आपके अनुरोध में समस्या आई। कृपया पुनः प्रयास करें।",
		msgFlowActive:     "आपका एक %s पहले से चल रहा है। कृपया उसे पूरा करें, या 'cancel' भेजें।",
		msgFreelancer:     "मैं आपको हमारे एक फ्रीलांसर एजेंट से जोड़ रहा हूँ।",
		msgFieldRepeat:    "मैं समझ नहीं पाया।",
		msgNothingToStop:  "अभी कोई अनुरोध चालू नहीं है। मैं आपकी कैसे मदद कर सकता हूँ?",
		msgSubmissionNote: "धन्यवाद! आपका %s अभी जमा किया जा रहा है।",
	},
}

// Formatter renders prompts, confirmation summaries, and structural
// messages. It performs no I/O.
type Formatter struct{}

// NewFormatter creates a response formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// ResolveLanguage canonicalizes a user-facing language name. The regional
// languages kumaoni and garhwali fall back to hindi for canned phrases;
// anything unrecognized falls back to english.
func ResolveLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case LanguageHindi, "kumaoni", "garhwali", "gharwali":
		return LanguageHindi
	default:
		return LanguageEnglish
	}
}

func (f *Formatter) phrase(language string, key messageKey) string {
	table, ok := phrases[ResolveLanguage(language)]
	if !ok {
		table = phrases[LanguageEnglish]
	}
	return table[key]
}

// FlowStarted renders the opening message of a new flow, including the
// first field's prompt.
func (f *Formatter) FlowStarted(schema models.DocumentSchema, language string) string {
	intro := fmt.Sprintf(f.phrase(language, msgFlowStarted), schema.Title)
	if len(schema.Fields) == 0 {
		return intro
	}
	return intro + "\n\n" + schema.Fields[0].Prompt
}

// FieldPrompt renders the prompt for the field at the given index.
func (f *Formatter) FieldPrompt(schema models.DocumentSchema, index int) string {
	if index < 0 || index >= len(schema.Fields) {
		return ""
	}
	return schema.Fields[index].Prompt
}

// FieldReprompt renders the re-ask for a field whose extraction yielded
// nothing: a short notice followed by the same prompt text.
func (f *Formatter) FieldReprompt(schema models.DocumentSchema, index int, language string) string {
	prompt := f.FieldPrompt(schema, index)
	return f.phrase(language, msgFieldRepeat) + " " + prompt
}

// ConfirmationSummary enumerates all collected fields in schema order and
// asks the user to confirm.
func (f *Formatter) ConfirmationSummary(schema models.DocumentSchema, s *models.CollectionSession, language string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(f.phrase(language, msgConfirmHeader), schema.Title))
	b.WriteString("\n")
	for _, field := range schema.Fields {
		b.WriteString(fmt.Sprintf("\n%s: %s", fieldLabel(field.Name), s.Fields[field.Name]))
	}
	b.WriteString("\n\n")
	b.WriteString(f.phrase(language, msgConfirmAsk))
	return b.String()
}

// SubmissionAccepted renders the post-confirmation receipt: the collected
// summary plus a processing notice. The submission outcome itself is not
// part of this message; the automation runs in the background.
func (f *Formatter) SubmissionAccepted(schema models.DocumentSchema, s *models.CollectionSession, language string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(f.phrase(language, msgSubmissionNote), schema.Title))
	b.WriteString("\n")
	for _, field := range schema.Fields {
		b.WriteString(fmt.Sprintf("\n%s: %s", fieldLabel(field.Name), s.Fields[field.Name]))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf(f.phrase(language, msgProcessing), schema.Title))
	return b.String()
}

// FlowCancelled renders the cancellation acknowledgement.
func (f *Formatter) FlowCancelled(schema models.DocumentSchema, language string) string {
	return fmt.Sprintf(f.phrase(language, msgFlowCancelled), schema.Title)
}

// FlowAlreadyActive renders the rejection issued when the user tries to
// start a new flow while one is in progress.
func (f *Formatter) FlowAlreadyActive(schema models.DocumentSchema, language string) string {
	return fmt.Sprintf(f.phrase(language, msgFlowActive), schema.Title)
}

// FreelancerHandoff renders the freelancer handoff notice.
func (f *Formatter) FreelancerHandoff(language string) string {
	return f.phrase(language, msgFreelancer)
}

// Apology renders the generic failure apology. Failures never produce
// silence: this is the floor every degraded path lands on.
func (f *Formatter) Apology(language string) string {
	return f.phrase(language, msgApology)
}

// fieldLabel turns a field key into a human-readable label.
func fieldLabel(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
