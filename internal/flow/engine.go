package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digicsc/sevaflow/internal/genai"
	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/schema"
	"github.com/digicsc/sevaflow/internal/session"
)

const assistantSystemPrompt = "You are a helpful assistant for a citizen support desk that helps people " +
	"with Indian government services and documents. Answer concisely and practically."

// Engine is the top-level turn handler. It loads the session, classifies
// the message, and routes it to the flow controller or a free-form AI
// reply. Every degraded path still produces a reply: the user never gets
// silence.
type Engine struct {
	store      session.Store
	classifier *Classifier
	controller *Controller
	formatter  *Formatter
	genai      genai.ClientInterface
}

// NewEngine wires the dialogue engine together.
func NewEngine(store session.Store, classifier *Classifier, controller *Controller, formatter *Formatter, client genai.ClientInterface) *Engine {
	return &Engine{
		store:      store,
		classifier: classifier,
		controller: controller,
		formatter:  formatter,
		genai:      client,
	}
}

// HandleTurn processes one user message and returns the reply to deliver.
// documentTypeHint, when set and valid, starts that flow directly without
// classification (used by channel integrations that offer service menus).
// The only error paths are invalid arguments; operational failures
// degrade to an apology or a stateless AI reply instead.
func (e *Engine) HandleTurn(ctx context.Context, sessionKey, documentTypeHint, message, language string) (string, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return "", models.ErrEmptySessionKey
	}
	if strings.TrimSpace(message) == "" {
		return "", models.ErrEmptyMessage
	}

	active, err := e.store.Load(ctx, sessionKey)
	if err != nil {
		// Without the store there is no flow state; fall back to a
		// stateless reply rather than dropping the turn.
		slog.Error("Engine.HandleTurn: session store unavailable", "sessionKey", sessionKey, "error", err)
		return e.aiReply(ctx, message, language), nil
	}

	if active == nil && documentTypeHint != "" {
		dt := models.DocumentType(strings.ToLower(strings.TrimSpace(documentTypeHint)))
		if _, schemaErr := schema.Get(dt); schemaErr == nil {
			return e.startFlow(ctx, sessionKey, dt, language)
		}
		slog.Debug("Engine.HandleTurn: ignoring unknown document type hint", "sessionKey", sessionKey, "hint", documentTypeHint)
	}

	decision := e.classifier.Classify(ctx, active, message)
	slog.Debug("Engine.HandleTurn: message classified", "sessionKey", sessionKey, "intent", decision.Kind, "documentType", decision.DocumentType)

	switch decision.Kind {
	case models.IntentContinue:
		reply, err := e.controller.HandleActiveTurn(ctx, active, message)
		if err != nil {
			slog.Error("Engine.HandleTurn: active turn failed", "sessionKey", sessionKey, "error", err)
			return e.formatter.Apology(language), nil
		}
		return reply, nil
	case models.IntentStart:
		return e.startFlow(ctx, sessionKey, decision.DocumentType, language)
	case models.IntentFreelancer:
		return e.formatter.FreelancerHandoff(language), nil
	default:
		return e.aiReply(ctx, message, language), nil
	}
}

func (e *Engine) startFlow(ctx context.Context, sessionKey string, dt models.DocumentType, language string) (string, error) {
	reply, err := e.controller.StartFlow(ctx, sessionKey, dt, language)
	if err != nil {
		slog.Error("Engine.startFlow: failed to start flow", "sessionKey", sessionKey, "documentType", dt, "error", err)
		return e.formatter.Apology(language), nil
	}
	return reply, nil
}

// ActiveSession returns the caller's in-progress session, or nil when
// none exists.
func (e *Engine) ActiveSession(ctx context.Context, sessionKey string) (*models.CollectionSession, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return nil, models.ErrEmptySessionKey
	}
	return e.store.Load(ctx, sessionKey)
}

// CancelSession removes the caller's in-progress session. It returns
// ErrNoActiveSession when there is nothing to cancel.
func (e *Engine) CancelSession(ctx context.Context, sessionKey string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return models.ErrEmptySessionKey
	}
	active, err := e.store.Load(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("Engine.CancelSession: failed to load session: %w", err)
	}
	if active == nil {
		return models.ErrNoActiveSession
	}
	return e.store.Delete(ctx, sessionKey)
}

func (e *Engine) aiReply(ctx context.Context, message, language string) string {
	if e.genai == nil {
		return e.formatter.Apology(language)
	}
	system := assistantSystemPrompt
	if resolved := ResolveLanguage(language); resolved != LanguageEnglish {
		system += " Reply in " + resolved + "."
	}
	reply, err := e.genai.GeneratePrompt(ctx, system, message)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Error("Engine.aiReply: model unavailable", "error", err)
		return e.formatter.Apology(language)
	}
	return reply
}
