// Package models defines submission records shared between the dialogue
// engine and the background dispatcher.
package models

import "time"

// SubmissionStatus tracks a queued submission through its lifecycle.
type SubmissionStatus string

const (
	SubmissionStatusQueued    SubmissionStatus = "queued"
	SubmissionStatusRunning   SubmissionStatus = "running"
	SubmissionStatusCompleted SubmissionStatus = "completed"
	SubmissionStatusFailed    SubmissionStatus = "failed"
)

// SubmissionRequest carries the fully collected field map of a confirmed
// intake flow to the per-type automation action.
type SubmissionRequest struct {
	ID           string            `json:"id"`
	SessionKey   string            `json:"session_key"`
	DocumentType DocumentType      `json:"document_type"`
	Fields       map[string]string `json:"fields"`
	Language     string            `json:"language,omitempty"`
	EnqueuedAt   time.Time         `json:"enqueued_at"`
}

// SubmissionReceipt records the outcome of one automation attempt. The user
// is never synchronously notified of this outcome; receipts exist for
// operators and the submissions API.
type SubmissionReceipt struct {
	SubmissionID string           `json:"submission_id"`
	SessionKey   string           `json:"session_key"`
	DocumentType DocumentType     `json:"document_type"`
	Status       SubmissionStatus `json:"status"`
	Message      string           `json:"message,omitempty"`
	Time         time.Time        `json:"time"`
}
