// Package store provides durable persistence for portal submissions.
//
// A confirmed intake flow becomes a queued submission row; a background
// runner claims due rows, invokes the portal automation, and records
// receipts. SQLite and PostgreSQL backends are selected by DSN, with an
// in-memory store for tests and DSN-less deployments.
package store

import (
	"strings"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
)

// DefaultMaxAttempts is the number of automation attempts before a
// submission is marked permanently failed.
const DefaultMaxAttempts = 3

// Submission is a durable submission record. PayloadJSON holds the
// serialized models.SubmissionRequest.
type Submission struct {
	ID           string                  `json:"id"`
	SessionKey   string                  `json:"session_key"`
	DocumentType models.DocumentType     `json:"document_type"`
	PayloadJSON  string                  `json:"payload_json"`
	Status       models.SubmissionStatus `json:"status"`
	Attempt      int                     `json:"attempt"`
	MaxAttempts  int                     `json:"max_attempts"`
	RunAt        time.Time               `json:"run_at"`
	LastError    string                  `json:"last_error,omitempty"`
	LockedAt     *time.Time              `json:"locked_at,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// SubmissionRepo defines the interface for durable submission persistence.
type SubmissionRepo interface {
	// EnqueueSubmission inserts a new queued submission. Re-enqueueing an
	// ID that already exists is a no-op, so dispatch retries stay safe.
	EnqueueSubmission(req models.SubmissionRequest, runAt time.Time) error

	// ClaimDueSubmissions marks up to limit queued submissions whose
	// run_at <= now as running and returns them.
	ClaimDueSubmissions(now time.Time, limit int) ([]Submission, error)

	// CompleteSubmission marks a submission as completed.
	CompleteSubmission(id string) error

	// FailSubmission stores the error and reschedules the submission for
	// retry at nextRunAt while attempt < max_attempts; otherwise marks it
	// permanently failed.
	FailSubmission(id string, errMsg string, nextRunAt time.Time) error

	// RequeueStaleSubmissions resets submissions that have been running
	// since before staleBefore back to queued (crash recovery).
	RequeueStaleSubmissions(staleBefore time.Time) (int, error)

	// GetSubmission retrieves a single submission by ID, nil when absent.
	GetSubmission(id string) (*Submission, error)

	// ListSubmissions returns all submissions for a session key, newest
	// first.
	ListSubmissions(sessionKey string) ([]Submission, error)

	// AddReceipt records the outcome of one automation attempt.
	AddReceipt(r models.SubmissionReceipt) error

	// ListReceipts returns all receipts for a session key, oldest first.
	ListReceipts(sessionKey string) ([]models.SubmissionReceipt, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration for store construction.
type Opts struct {
	// DSN is the database connection string: a PostgreSQL URL or an
	// SQLite file path.
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else, which is assumed to be a file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
