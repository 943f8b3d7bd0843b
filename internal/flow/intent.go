package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/digicsc/sevaflow/internal/genai"
	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/schema"
)

// freelancerServices lists offerings that require a human specialist
// rather than an automated flow or AI reply. The classification prompt
// enumerates these so the model can route matching requests.
var freelancerServices = []string{
	"website development",
	"custom application development",
	"logo design",
	"complex system integration",
	"data migration",
	"security audit",
	"performance optimization",
	"custom report generation",
	"api development",
}

const classifySystemPrompt = "You are a routing assistant for a citizen support desk. " +
	"Decide whether the user's message needs a human freelancer specialist or can be answered directly. " +
	"Reply with exactly one word: 'freelancer' or 'ai_response'. No explanation."

// Classifier routes an incoming message to a dialogue action: continue an
// active flow, start a new one, hand off to a freelancer, or answer with
// a free-form AI reply.
type Classifier struct {
	genai genai.ClientInterface
}

// NewClassifier creates an intent classifier backed by the given model
// client. The client is only consulted when deterministic rules do not
// decide the message.
func NewClassifier(client genai.ClientInterface) *Classifier {
	return &Classifier{genai: client}
}

// Classify decides what to do with the message. An active session always
// wins: every message belongs to the flow until it ends. Otherwise trigger
// keywords start a flow, an explicit ask for a human routes to a
// freelancer, and the model breaks the remaining tie. Model failures fall
// open to an AI reply so classification never blocks the conversation.
func (c *Classifier) Classify(ctx context.Context, active *models.CollectionSession, message string) models.IntentDecision {
	if active != nil {
		return models.IntentDecision{Kind: models.IntentContinue, DocumentType: active.DocumentType}
	}

	lower := strings.ToLower(message)
	for _, dt := range schema.Types() {
		for _, trigger := range schema.Triggers(dt) {
			if containsTrigger(lower, trigger) {
				slog.Debug("Classifier.Classify: trigger keyword matched", "documentType", dt, "trigger", trigger)
				return models.IntentDecision{Kind: models.IntentStart, DocumentType: dt}
			}
		}
	}

	if containsTrigger(lower, "freelancer") || containsTrigger(lower, "human agent") {
		return models.IntentDecision{Kind: models.IntentFreelancer}
	}

	return models.IntentDecision{Kind: c.classifyWithModel(ctx, message)}
}

// containsTrigger reports whether the trigger phrase occurs in the
// lowercased message at word boundaries. Plain substring matching would
// let short triggers like "rti" fire inside unrelated words such as
// "parties" or "advertise".
func containsTrigger(lower, trigger string) bool {
	for start := 0; ; start++ {
		i := strings.Index(lower[start:], trigger)
		if i < 0 {
			return false
		}
		start += i
		end := start + len(trigger)
		if (start == 0 || !isWordChar(lower[start-1])) && (end == len(lower) || !isWordChar(lower[end])) {
			return true
		}
	}
}

func isWordChar(b byte) bool {
	return ('a' <= b && b <= 'z') || ('0' <= b && b <= '9')
}

func (c *Classifier) classifyWithModel(ctx context.Context, message string) models.IntentKind {
	if c.genai == nil {
		return models.IntentAIResponse
	}

	var b strings.Builder
	b.WriteString("Freelancer services:\n")
	for _, svc := range freelancerServices {
		b.WriteString("- ")
		b.WriteString(svc)
		b.WriteString("\n")
	}
	b.WriteString("\nUser message: ")
	b.WriteString(message)

	reply, err := c.genai.GeneratePrompt(ctx, classifySystemPrompt, b.String())
	if err != nil {
		slog.Debug("Classifier.classifyWithModel: model unavailable, defaulting to AI response", "error", err)
		return models.IntentAIResponse
	}
	if strings.Contains(strings.ToLower(strings.TrimSpace(reply)), "freelancer") {
		return models.IntentFreelancer
	}
	return models.IntentAIResponse
}
