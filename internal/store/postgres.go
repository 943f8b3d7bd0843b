// Package store provides storage backends for SevaFlow.
//
// This file implements the PostgreSQL-backed submission store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/digicsc/sevaflow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ SubmissionRepo = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnqueueSubmission(req models.SubmissionRequest, runAt time.Time) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal submission payload: %w", err)
	}
	now := time.Now()

	_, err = s.db.Exec(
		`INSERT INTO submissions (id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'queued', 0, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		req.ID, req.SessionKey, string(req.DocumentType), string(payload), DefaultMaxAttempts, runAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("enqueue submission failed: %w", err)
	}
	slog.Debug("PostgresStore.EnqueueSubmission", "id", req.ID, "documentType", req.DocumentType, "runAt", runAt)
	return nil
}

func (s *PostgresStore) ClaimDueSubmissions(now time.Time, limit int) ([]Submission, error) {
	// FOR UPDATE SKIP LOCKED lets multiple runners share a queue.
	rows, err := s.db.Query(
		`UPDATE submissions SET status = 'running', locked_at = $1, updated_at = $1
		 WHERE id IN (
		   SELECT id FROM submissions WHERE status = 'queued' AND run_at <= $1
		   ORDER BY run_at ASC LIMIT $2 FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, last_error, locked_at, created_at, updated_at`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due submissions failed: %w", err)
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
	return subs, nil
}

func (s *PostgresStore) CompleteSubmission(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE submissions SET status = 'completed', locked_at = NULL, updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("complete submission failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) FailSubmission(id string, errMsg string, nextRunAt time.Time) error {
	now := time.Now()

	var attempt, maxAttempts int
	err := s.db.QueryRow(`SELECT attempt, max_attempts FROM submissions WHERE id = $1`, id).Scan(&attempt, &maxAttempts)
	if err != nil {
		return fmt.Errorf("fail submission lookup failed: %w", err)
	}

	attempt++
	if attempt >= maxAttempts {
		_, err = s.db.Exec(
			`UPDATE submissions SET status = 'failed', attempt = $1, last_error = $2, locked_at = NULL, updated_at = $3 WHERE id = $4`,
			attempt, errMsg, now, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE submissions SET status = 'queued', attempt = $1, last_error = $2, run_at = $3, locked_at = NULL, updated_at = $4 WHERE id = $5`,
			attempt, errMsg, nextRunAt, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("fail submission update failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) RequeueStaleSubmissions(staleBefore time.Time) (int, error) {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE submissions SET status = 'queued', locked_at = NULL, updated_at = $1 WHERE status = 'running' AND locked_at < $2`,
		now, staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale submissions failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info("PostgresStore.RequeueStaleSubmissions", "requeued", n)
	}
	return int(n), nil
}

func (s *PostgresStore) GetSubmission(id string) (*Submission, error) {
	row := s.db.QueryRow(
		`SELECT id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, last_error, locked_at, created_at, updated_at
		 FROM submissions WHERE id = $1`, id,
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

func (s *PostgresStore) ListSubmissions(sessionKey string) ([]Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, session_key, document_type, payload_json, status, attempt, max_attempts, run_at, last_error, locked_at, created_at, updated_at
		 FROM submissions WHERE session_key = $1 ORDER BY created_at DESC`, sessionKey,
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

func (s *PostgresStore) AddReceipt(r models.SubmissionReceipt) error {
	_, err := s.db.Exec(
		`INSERT INTO submission_receipts (submission_id, session_key, document_type, status, message, time) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.SubmissionID, r.SessionKey, string(r.DocumentType), string(r.Status), nilIfEmpty(r.Message), r.Time,
	)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "submissionID", r.SubmissionID)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.SubmissionID, err)
	}
	slog.Debug("PostgresStore AddReceipt succeeded", "submissionID", r.SubmissionID, "status", r.Status)
	return nil
}

func (s *PostgresStore) ListReceipts(sessionKey string) ([]models.SubmissionReceipt, error) {
	rows, err := s.db.Query(
		`SELECT submission_id, session_key, document_type, status, message, time
		 FROM submission_receipts WHERE session_key = $1 ORDER BY time ASC`, sessionKey,
	)
	if err != nil {
		slog.Error("PostgresStore ListReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.SubmissionReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			slog.Error("PostgresStore ListReceipts scan failed", "error", err)
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
