// Package store provides storage backends for SevaFlow.
//
// This file implements the SQLite-backed submission store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/digicsc/sevaflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements SubmissionRepo.
var _ SubmissionRepo = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN
// is a file path to the SQLite database file; the directory is created
// if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnqueueSubmission(req models.SubmissionRequest, runAt time.Time) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal submission payload: %w", err)
	}
	now := time.Now()

	// Re-dispatch of an already queued ID is a no-op.
	var existing string
	err = s.db.QueryRow(`SELECT id FROM submissions WHERE id = ?`, req.ID).Scan(&existing)
	if err == nil {
		slog.Debug("SQLiteStore.EnqueueSubmission: already enqueued", "id", req.ID)
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("enqueue existence check failed: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO submissions (id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'queued', 0, ?, ?, ?, ?)`,
		req.ID, req.SessionKey, string(req.DocumentType), string(payload), DefaultMaxAttempts, runAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("enqueue submission failed: %w", err)
	}
	slog.Debug("SQLiteStore.EnqueueSubmission", "id", req.ID, "documentType", req.DocumentType, "runAt", runAt)
	return nil
}

func (s *SQLiteStore) ClaimDueSubmissions(now time.Time, limit int) ([]Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, last_error, locked_at, created_at, updated_at
		 FROM submissions WHERE status = 'queued' AND run_at <= ? ORDER BY run_at ASC LIMIT ?`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due submissions query failed: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim due submissions iteration failed: %w", err)
	}

	for i := range subs {
		_, err := s.db.Exec(
			`UPDATE submissions SET status = 'running', locked_at = ?, updated_at = ? WHERE id = ?`,
			now, now, subs[i].ID,
		)
		if err != nil {
			return nil, fmt.Errorf("mark submission running failed: %w", err)
		}
		subs[i].Status = models.SubmissionStatusRunning
		subs[i].LockedAt = &now
	}

	return subs, nil
}

func (s *SQLiteStore) CompleteSubmission(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE submissions SET status = 'completed', locked_at = NULL, updated_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("complete submission failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FailSubmission(id string, errMsg string, nextRunAt time.Time) error {
	now := time.Now()

	var attempt, maxAttempts int
	err := s.db.QueryRow(`SELECT attempt, max_attempts FROM submissions WHERE id = ?`, id).Scan(&attempt, &maxAttempts)
	if err != nil {
		return fmt.Errorf("fail submission lookup failed: %w", err)
	}

	attempt++
	if attempt >= maxAttempts {
		_, err = s.db.Exec(
			`UPDATE submissions SET status = 'failed', attempt = ?, last_error = ?, locked_at = NULL, updated_at = ? WHERE id = ?`,
			attempt, errMsg, now, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE submissions SET status = 'queued', attempt = ?, last_error = ?, run_at = ?, locked_at = NULL, updated_at = ? WHERE id = ?`,
			attempt, errMsg, nextRunAt, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("fail submission update failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RequeueStaleSubmissions(staleBefore time.Time) (int, error) {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE submissions SET status = 'queued', locked_at = NULL, updated_at = ? WHERE status = 'running' AND locked_at < ?`,
		now, staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale submissions failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info("SQLiteStore.RequeueStaleSubmissions", "requeued", n)
	}
	return int(n), nil
}

func (s *SQLiteStore) GetSubmission(id string) (*Submission, error) {
	row := s.db.QueryRow(
		`SELECT id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, last_error, locked_at, created_at, updated_at
		 FROM submissions WHERE id = ?`, id,
	)
	sub, err := scanSubmissionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission failed: %w", err)
	}
	return &sub, nil
}

func (s *SQLiteStore) ListSubmissions(sessionKey string) ([]Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, last_error, locked_at, created_at, updated_at
		 FROM submissions WHERE session_key = ? ORDER BY created_at DESC`, sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions query failed: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions iteration failed: %w", err)
	}
	return subs, nil
}

func (s *SQLiteStore) AddReceipt(r models.SubmissionReceipt) error {
	_, err := s.db.Exec(
		`INSERT INTO submission_receipts (submission_id, session_key, document_type, status, message, time) VALUES (?, ?, ?, ?, ?, ?)`,
		r.SubmissionID, r.SessionKey, string(r.DocumentType), string(r.Status), nilIfEmpty(r.Message), r.Time,
	)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "submissionID", r.SubmissionID)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.SubmissionID, err)
	}
	slog.Debug("SQLiteStore AddReceipt succeeded", "submissionID", r.SubmissionID, "status", r.Status)
	return nil
}

func (s *SQLiteStore) ListReceipts(sessionKey string) ([]models.SubmissionReceipt, error) {
	rows, err := s.db.Query(
		`SELECT submission_id, session_key, document_type, status, message, time
		 FROM submission_receipts WHERE session_key = ? ORDER BY time ASC`, sessionKey,
	)
	if err != nil {
		slog.Error("SQLiteStore ListReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.SubmissionReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			slog.Error("SQLiteStore ListReceipts scan failed", "error", err)
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
