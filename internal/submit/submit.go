// Package submit turns confirmed intake collections into background
// portal submissions.
//
// Dispatch durably enqueues a submission and returns immediately; the
// Runner polls the store, invokes the registered automation action for
// the document type, and records receipts. The chat turn that confirmed
// the collection never waits on a portal.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/store"
)

// Action executes the portal automation for one submission. Actions must
// be safe to retry: a failed attempt is re-run with the same request.
type Action func(ctx context.Context, req models.SubmissionRequest) error

var (
	actionsMu sync.RWMutex
	actions   = make(map[models.DocumentType]Action)
)

// RegisterAction registers the automation action for a document type,
// replacing any previous registration.
func RegisterAction(dt models.DocumentType, action Action) {
	actionsMu.Lock()
	defer actionsMu.Unlock()
	actions[dt] = action
	slog.Debug("submit.RegisterAction", "documentType", dt)
}

// GetAction returns the registered action for a document type, or the
// logging default when none is registered.
func GetAction(dt models.DocumentType) Action {
	actionsMu.RLock()
	defer actionsMu.RUnlock()
	if action, ok := actions[dt]; ok {
		return action
	}
	return logAction
}

// logAction is the default automation: it records the submission in the
// log and succeeds. Deployments register real portal actions on top.
func logAction(_ context.Context, req models.SubmissionRequest) error {
	slog.Info("submit.logAction: submission received",
		"submissionID", req.ID, "documentType", req.DocumentType, "fields", len(req.Fields))
	return nil
}

// Dispatcher enqueues confirmed submissions for background processing.
type Dispatcher struct {
	repo store.SubmissionRepo
}

// NewDispatcher creates a dispatcher backed by the given repo.
func NewDispatcher(repo store.SubmissionRepo) *Dispatcher {
	return &Dispatcher{repo: repo}
}

// Dispatch durably enqueues the submission and returns. The portal is
// never contacted here.
func (d *Dispatcher) Dispatch(_ context.Context, req models.SubmissionRequest) error {
	if req.ID == "" {
		return fmt.Errorf("Dispatcher.Dispatch: submission ID is empty")
	}
	if err := d.repo.EnqueueSubmission(req, time.Now()); err != nil {
		return fmt.Errorf("Dispatcher.Dispatch: failed to enqueue submission: %w", err)
	}
	slog.Info("Dispatcher.Dispatch: submission enqueued", "submissionID", req.ID, "documentType", req.DocumentType)
	return nil
}
