// Package submit provides the Runner that executes queued submissions.
package submit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/store"
)

// Runner periodically claims due submissions from the store and invokes
// the registered automation action for each.
type Runner struct {
	repo           store.SubmissionRepo
	pollInterval   time.Duration
	actionTimeout  time.Duration
	staleThreshold time.Duration
	claimLimit     int
}

// NewRunner creates a submission runner.
func NewRunner(repo store.SubmissionRepo, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Runner{
		repo:           repo,
		pollInterval:   pollInterval,
		actionTimeout:  2 * time.Minute,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
	}
}

// RecoverStale requeues submissions that were running when the process
// crashed. Should be called once at startup.
func (r *Runner) RecoverStale() error {
	staleBefore := time.Now().Add(-r.staleThreshold)
	n, err := r.repo.RequeueStaleSubmissions(staleBefore)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("Runner.RecoverStale: requeued stale submissions", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("Runner.Run: starting submission runner", "pollInterval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Runner.Run: stopping")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Runner) poll(ctx context.Context) {
	now := time.Now()
	subs, err := r.repo.ClaimDueSubmissions(now, r.claimLimit)
	if err != nil {
		slog.Error("Runner.poll: claim failed", "error", err)
		return
	}

	for _, sub := range subs {
		r.execute(ctx, sub, now)
	}
}

func (r *Runner) execute(ctx context.Context, sub store.Submission, now time.Time) {
	var req models.SubmissionRequest
	if err := json.Unmarshal([]byte(sub.PayloadJSON), &req); err != nil {
		// An unreadable payload will never succeed; burn its attempts.
		slog.Error("Runner.execute: corrupt submission payload", "submissionID", sub.ID, "error", err)
		if failErr := r.repo.FailSubmission(sub.ID, "corrupt payload: "+err.Error(), now); failErr != nil {
			slog.Error("Runner.execute: fail submission error", "submissionID", sub.ID, "error", failErr)
		}
		return
	}

	r.addReceipt(sub, models.SubmissionStatusRunning, "")

	slog.Debug("Runner.execute: executing submission", "submissionID", sub.ID, "documentType", sub.DocumentType, "attempt", sub.Attempt)
	actionCtx, cancel := context.WithTimeout(ctx, r.actionTimeout)
	err := GetAction(sub.DocumentType)(actionCtx, req)
	cancel()

	if err != nil {
		slog.Error("Runner.execute: submission failed", "submissionID", sub.ID, "documentType", sub.DocumentType, "error", err)
		// Exponential backoff: 30s, 60s, 120s, ...
		backoff := time.Duration(30*(1<<sub.Attempt)) * time.Second
		if failErr := r.repo.FailSubmission(sub.ID, err.Error(), now.Add(backoff)); failErr != nil {
			slog.Error("Runner.execute: fail submission error", "submissionID", sub.ID, "error", failErr)
		}
		r.addReceipt(sub, models.SubmissionStatusFailed, err.Error())
		return
	}

	if err := r.repo.CompleteSubmission(sub.ID); err != nil {
		slog.Error("Runner.execute: complete submission error", "submissionID", sub.ID, "error", err)
	}
	r.addReceipt(sub, models.SubmissionStatusCompleted, "")
	slog.Info("Runner.execute: submission completed", "submissionID", sub.ID, "documentType", sub.DocumentType)
}

func (r *Runner) addReceipt(sub store.Submission, status models.SubmissionStatus, message string) {
	receipt := models.SubmissionReceipt{
		SubmissionID: sub.ID,
		SessionKey:   sub.SessionKey,
		DocumentType: sub.DocumentType,
		Status:       status,
		Message:      message,
		Time:         time.Now().UTC(),
	}
	if err := r.repo.AddReceipt(receipt); err != nil {
		slog.Error("Runner.addReceipt: failed to record receipt", "submissionID", sub.ID, "error", err)
	}
}
