package flow

import (
	"context"
	"errors"
	"sync"

	"github.com/digicsc/sevaflow/internal/models"
)

// stubModel implements genai.ClientInterface with a scripted reply
// function for tests.
type stubModel struct {
	replyFn func(systemPrompt, userPrompt string) (string, error)
}

func (m *stubModel) GeneratePrompt(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.replyFn == nil {
		return "", errors.New("stubModel: no reply function configured")
	}
	return m.replyFn(systemPrompt, userPrompt)
}

// echoModel returns a model that echoes the user prompt, useful where the
// reply content does not matter.
func echoModel() *stubModel {
	return &stubModel{replyFn: func(_, userPrompt string) (string, error) {
		return userPrompt, nil
	}}
}

// failingModel returns a model whose every call fails.
func failingModel() *stubModel {
	return &stubModel{replyFn: func(_, _ string) (string, error) {
		return "", models.ErrModelUnavailable
	}}
}

// verbatimExtractorModel returns a model that behaves like a perfectly
// literal extractor: field extraction echoes the message, everything else
// errors so deterministic paths stay deterministic in tests.
func verbatimExtractorModel() *stubModel {
	return &stubModel{replyFn: func(_, _ string) (string, error) {
		return "NONE", nil
	}}
}

// stubSubmitter records dispatched submission requests.
type stubSubmitter struct {
	mu        sync.Mutex
	dispatched []models.SubmissionRequest
	failWith  error
}

func (s *stubSubmitter) Dispatch(_ context.Context, req models.SubmissionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.dispatched = append(s.dispatched, req)
	return nil
}

func (s *stubSubmitter) requests() []models.SubmissionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SubmissionRequest, len(s.dispatched))
	copy(out, s.dispatched)
	return out
}
