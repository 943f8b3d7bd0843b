package store

import (
	"database/sql"
	"fmt"

	"github.com/digicsc/sevaflow/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanSubmission scans a Submission from sql.Rows.
func scanSubmission(rows *sql.Rows) (Submission, error) {
	var sub Submission
	var docType, status string
	var lastError sql.NullString
	var lockedAt sql.NullTime
	err := rows.Scan(
		&sub.ID, &sub.SessionKey, &docType, &sub.PayloadJSON, &status, &sub.Attempt, &sub.MaxAttempts,
		&sub.RunAt, &lastError, &lockedAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return sub, fmt.Errorf("scan submission failed: %w", err)
	}
	sub.DocumentType = models.DocumentType(docType)
	sub.Status = models.SubmissionStatus(status)
	sub.LastError = lastError.String
	if lockedAt.Valid {
		sub.LockedAt = &lockedAt.Time
	}
	return sub, nil
}

// scanSubmissionRow scans a Submission from a single sql.Row.
func scanSubmissionRow(row *sql.Row) (Submission, error) {
	var sub Submission
	var docType, status string
	var lastError sql.NullString
	var lockedAt sql.NullTime
	err := row.Scan(
		&sub.ID, &sub.SessionKey, &docType, &sub.PayloadJSON, &status, &sub.Attempt, &sub.MaxAttempts,
		&sub.RunAt, &lastError, &lockedAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return sub, err
	}
	sub.DocumentType = models.DocumentType(docType)
	sub.Status = models.SubmissionStatus(status)
	sub.LastError = lastError.String
	if lockedAt.Valid {
		sub.LockedAt = &lockedAt.Time
	}
	return sub, nil
}

// scanReceipt scans a SubmissionReceipt from sql.Rows.
func scanReceipt(rows *sql.Rows) (models.SubmissionReceipt, error) {
	var r models.SubmissionReceipt
	var docType, status string
	var message sql.NullString
	err := rows.Scan(&r.SubmissionID, &r.SessionKey, &docType, &status, &message, &r.Time)
	if err != nil {
		return r, fmt.Errorf("scan receipt failed: %w", err)
	}
	r.DocumentType = models.DocumentType(docType)
	r.Status = models.SubmissionStatus(status)
	r.Message = message.String
	return r, nil
}
