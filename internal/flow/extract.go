package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/digicsc/sevaflow/internal/genai"
	"github.com/digicsc/sevaflow/internal/models"
)

const extractSystemPrompt = "You extract a single form-field value from a chat message. " +
	"Reply with only the value, nothing else. If the message does not contain a usable value, reply with exactly NONE."

const correctionsSystemPrompt = "You extract corrected form-field values from a chat message. " +
	"Reply with a JSON object whose keys are the listed field names and whose values are the corrected values found in the message. " +
	"Omit fields the message does not mention. Reply with JSON only, no explanation."

// Extractor pulls field values out of free-form user messages with the
// model's help, falling back to the raw text when the model cannot.
type Extractor struct {
	genai genai.ClientInterface
}

// NewExtractor creates a field-value extractor.
func NewExtractor(client genai.ClientInterface) *Extractor {
	return &Extractor{genai: client}
}

// ExtractField returns the value the message provides for the field. A
// whitespace-only message yields "" so the caller can re-prompt. Model
// failures and NONE replies fall back to the trimmed raw message: the user
// typed something, and a literal reading beats losing their answer.
func (e *Extractor) ExtractField(ctx context.Context, field models.FieldSpec, message string) string {
	raw := strings.TrimSpace(message)
	if raw == "" {
		return ""
	}
	if e.genai == nil {
		return raw
	}

	userPrompt := "Field: " + field.Name + "\nQuestion asked: " + field.Prompt + "\nUser message: " + raw
	reply, err := e.genai.GeneratePrompt(ctx, extractSystemPrompt, userPrompt)
	if err != nil {
		slog.Debug("Extractor.ExtractField: model unavailable, using raw message", "field", field.Name, "error", err)
		return raw
	}
	value := strings.TrimSpace(reply)
	if value == "" || strings.EqualFold(value, "NONE") {
		return raw
	}
	return value
}

// ExtractCorrections parses corrected field values out of a message sent
// at the confirmation step. It returns only fields the model confidently
// returned, keyed by schema field names. A nil map means nothing usable
// was found.
func (e *Extractor) ExtractCorrections(ctx context.Context, docSchema models.DocumentSchema, message string) map[string]string {
	if e.genai == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString("Field names:\n")
	for _, field := range docSchema.Fields {
		b.WriteString("- ")
		b.WriteString(field.Name)
		b.WriteString("\n")
	}
	b.WriteString("\nUser message: ")
	b.WriteString(message)

	reply, err := e.genai.GeneratePrompt(ctx, correctionsSystemPrompt, b.String())
	if err != nil {
		slog.Debug("Extractor.ExtractCorrections: model unavailable", "documentType", docSchema.Type, "error", err)
		return nil
	}

	var parsed map[string]string
	if err := json.Unmarshal([]byte(stripJSONFences(reply)), &parsed); err != nil {
		slog.Debug("Extractor.ExtractCorrections: unparseable model reply", "documentType", docSchema.Type, "error", err)
		return nil
	}

	corrections := make(map[string]string)
	for _, field := range docSchema.Fields {
		if value, ok := parsed[field.Name]; ok {
			if value = strings.TrimSpace(value); value != "" {
				corrections[field.Name] = value
			}
		}
	}
	if len(corrections) == 0 {
		return nil
	}
	return corrections
}

// stripJSONFences removes a markdown code fence around a JSON payload.
// Models frequently wrap JSON in ```json blocks despite instructions.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
