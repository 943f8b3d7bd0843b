package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/schema"
	"github.com/digicsc/sevaflow/internal/session"
)

// Submitter accepts a completed collection for background processing.
// Dispatch must only enqueue; the portal automation runs asynchronously.
type Submitter interface {
	Dispatch(ctx context.Context, req models.SubmissionRequest) error
}

// affirmations are the confirmation keywords accepted at the summary
// step. Matched against whole word tokens, except the multi-word entry
// handled separately.
var affirmations = map[string]bool{
	"yes":      true,
	"confirm":  true,
	"proceed":  true,
	"create":   true,
	"make":     true,
	"generate": true,
	"okay":     true,
	"ok":       true,
}

// fieldDefaultKeywords let the user accept a field's default value
// instead of typing one out.
var fieldDefaultKeywords = map[string]bool{
	"skip":    true,
	"default": true,
}

// Controller drives an active collection flow: it walks the schema's
// fields one prompt at a time, handles cancellation, and turns a
// confirmed collection into a submission.
type Controller struct {
	store      session.Store
	extractor  *Extractor
	formatter  *Formatter
	submitter  Submitter
	sessionTTL time.Duration
}

// NewController creates a flow controller. A zero ttl falls back to the
// default session TTL on every save.
func NewController(store session.Store, extractor *Extractor, formatter *Formatter, submitter Submitter, ttl time.Duration) *Controller {
	return &Controller{
		store:      store,
		extractor:  extractor,
		formatter:  formatter,
		submitter:  submitter,
		sessionTTL: ttl,
	}
}

// StartFlow creates a fresh session for the document type and returns the
// opening message with the first field's prompt.
func (c *Controller) StartFlow(ctx context.Context, sessionKey string, dt models.DocumentType, language string) (string, error) {
	docSchema, err := schema.Get(dt)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	s := &models.CollectionSession{
		SessionKey:   sessionKey,
		DocumentType: dt,
		FieldIndex:   0,
		Fields:       make(map[string]string),
		Language:     language,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.store.Save(ctx, s, c.sessionTTL); err != nil {
		return "", fmt.Errorf("Controller.StartFlow: failed to save session: %w", err)
	}

	slog.Debug("Controller.StartFlow: flow started", "sessionKey", sessionKey, "documentType", dt)
	return c.formatter.FlowStarted(docSchema, language), nil
}

// HandleActiveTurn advances an active session with the user's message.
// Cancellation wins over everything; otherwise the session is either at
// the confirmation step or collecting a field.
func (c *Controller) HandleActiveTurn(ctx context.Context, s *models.CollectionSession, message string) (string, error) {
	docSchema, err := schema.Get(s.DocumentType)
	if err != nil {
		// A stored session referencing an unknown type is unrecoverable.
		if delErr := c.store.Delete(ctx, s.SessionKey); delErr != nil {
			slog.Error("Controller.HandleActiveTurn: failed to delete orphaned session", "sessionKey", s.SessionKey, "error", delErr)
		}
		return "", err
	}

	if strings.EqualFold(strings.TrimSpace(message), "cancel") {
		if err := c.store.Delete(ctx, s.SessionKey); err != nil {
			return "", fmt.Errorf("Controller.HandleActiveTurn: failed to delete session on cancel: %w", err)
		}
		slog.Debug("Controller.HandleActiveTurn: flow cancelled", "sessionKey", s.SessionKey, "documentType", s.DocumentType)
		return c.formatter.FlowCancelled(docSchema, s.Language), nil
	}

	if s.AtConfirmation() {
		return c.handleConfirmation(ctx, docSchema, s, message)
	}
	return c.handleFieldTurn(ctx, docSchema, s, message)
}

func (c *Controller) handleConfirmation(ctx context.Context, docSchema models.DocumentSchema, s *models.CollectionSession, message string) (string, error) {
	if isAffirmation(message) {
		req := models.SubmissionRequest{
			ID:           uuid.New().String(),
			SessionKey:   s.SessionKey,
			DocumentType: s.DocumentType,
			Fields:       copyFields(s.Fields),
			Language:     s.Language,
			EnqueuedAt:   time.Now().UTC(),
		}
		if err := c.submitter.Dispatch(ctx, req); err != nil {
			return "", fmt.Errorf("Controller.handleConfirmation: failed to dispatch submission: %w", err)
		}
		if err := c.store.Delete(ctx, s.SessionKey); err != nil {
			// The submission is already queued; log and move on.
			slog.Error("Controller.handleConfirmation: failed to delete session after dispatch", "sessionKey", s.SessionKey, "error", err)
		}
		slog.Info("Controller.handleConfirmation: submission dispatched", "sessionKey", s.SessionKey, "documentType", s.DocumentType, "submissionID", req.ID)
		return c.formatter.SubmissionAccepted(docSchema, s, s.Language), nil
	}

	// Not a confirmation: treat the message as corrections and re-ask.
	if corrections := c.extractor.ExtractCorrections(ctx, docSchema, message); corrections != nil {
		for name, value := range corrections {
			s.SetField(name, value)
		}
		slog.Debug("Controller.handleConfirmation: corrections applied", "sessionKey", s.SessionKey, "fields", len(corrections))
	}
	if err := c.store.Save(ctx, s, c.sessionTTL); err != nil {
		return "", fmt.Errorf("Controller.handleConfirmation: failed to save session: %w", err)
	}
	return c.formatter.ConfirmationSummary(docSchema, s, s.Language), nil
}

func (c *Controller) handleFieldTurn(ctx context.Context, docSchema models.DocumentSchema, s *models.CollectionSession, message string) (string, error) {
	if s.FieldIndex < 0 || s.FieldIndex >= len(docSchema.Fields) {
		// Index drift means the stored session no longer matches the
		// schema; restart collection from the top.
		s.FieldIndex = 0
	}
	field := docSchema.Fields[s.FieldIndex]

	value := c.extractor.ExtractField(ctx, field, message)
	if value == "" {
		return c.formatter.FieldReprompt(docSchema, s.FieldIndex, s.Language), nil
	}
	if field.Default != "" && fieldDefaultKeywords[strings.ToLower(strings.TrimSpace(message))] {
		value = field.Default
	}
	s.SetField(field.Name, value)

	if s.FieldIndex+1 >= len(docSchema.Fields) {
		s.FieldIndex = models.FieldIndexConfirmation
	} else {
		s.FieldIndex++
	}
	if err := c.store.Save(ctx, s, c.sessionTTL); err != nil {
		return "", fmt.Errorf("Controller.handleFieldTurn: failed to save session: %w", err)
	}

	if s.AtConfirmation() {
		return c.formatter.ConfirmationSummary(docSchema, s, s.Language), nil
	}
	return c.formatter.FieldPrompt(docSchema, s.FieldIndex), nil
}

// isAffirmation reports whether the message confirms submission. Single
// keywords match as whole word tokens so "yesterday" does not confirm;
// "go ahead" is matched as a phrase.
func isAffirmation(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	if strings.Contains(lower, "go ahead") {
		return true
	}
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if affirmations[token] {
			return true
		}
	}
	return false
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
