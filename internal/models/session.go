// Package models defines intake session state structures for SevaFlow flows.
package models

import "time"

// SessionVersion is the current serialization version for CollectionSession.
// Records carrying an unknown version are treated as absent sessions so that
// in-flight sessions never crash a newer or older reader.
const SessionVersion = 1

// Sentinel values for CollectionSession.FieldIndex.
const (
	// FieldIndexConfirmation marks a session whose fields are all collected
	// and which is waiting for the user to confirm submission.
	FieldIndexConfirmation = -1
)

// DefaultSessionTTL is how long an abandoned session survives in the store.
const DefaultSessionTTL = 24 * time.Hour

// CollectionSession is the persisted state of one in-progress intake flow.
// At most one session is active per session key at a time.
type CollectionSession struct {
	Version      int               `json:"version"`
	SessionKey   string            `json:"session_key"`
	DocumentType DocumentType      `json:"document_type"`
	FieldIndex   int               `json:"field_index"` // schema index or FieldIndexConfirmation
	Fields       map[string]string `json:"fields,omitempty"`
	Language     string            `json:"language,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// AtConfirmation reports whether every field is collected and the session is
// waiting for the user's go-ahead.
func (s *CollectionSession) AtConfirmation() bool {
	return s.FieldIndex == FieldIndexConfirmation
}

// SetField stores a collected value and bumps the update timestamp.
func (s *CollectionSession) SetField(name, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	s.Fields[name] = value
	s.UpdatedAt = time.Now()
}
