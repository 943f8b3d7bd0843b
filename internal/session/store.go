// Package session provides persistence for in-progress intake sessions.
//
// All reads go straight to the backing store on every turn so that multiple
// service instances observe consistent state. Two concurrent turns for the
// same session key are not serialized: the last Save wins. This is an
// accepted limitation inherited from the system's design; callers wanting
// strict correctness would need optimistic locking at this boundary.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
)

// KeyPrefix namespaces intake session keys in the shared store.
const KeyPrefix = "intake:"

// Store is the persistence contract for intake sessions.
type Store interface {
	// Load retrieves the session for a key. A missing or unreadable record
	// returns (nil, nil); corruption is logged, never surfaced as an error.
	// A non-nil error means the store itself is unreachable.
	Load(ctx context.Context, sessionKey string) (*models.CollectionSession, error)

	// Save upserts the session and resets its TTL countdown (sliding
	// expiration).
	Save(ctx context.Context, s *models.CollectionSession, ttl time.Duration) error

	// Delete removes the session. Deleting an absent key is not an error.
	Delete(ctx context.Context, sessionKey string) error
}

// storageKey builds the namespaced store key for a session.
func storageKey(sessionKey string) string {
	return KeyPrefix + sessionKey
}

// encodeSession serializes a session as a versioned JSON blob.
func encodeSession(s *models.CollectionSession) ([]byte, error) {
	s.Version = models.SessionVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", s.SessionKey, err)
	}
	return data, nil
}

// decodeSession deserializes a session blob. Unparseable or unknown-version
// records are treated as absent: the fault is logged and (nil, nil) is
// returned so a corrupt record never crashes the caller.
func decodeSession(sessionKey string, data []byte) *models.CollectionSession {
	var s models.CollectionSession
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Error("session.decodeSession: discarding unparseable session record", "sessionKey", sessionKey, "error", err)
		return nil
	}
	if s.Version != models.SessionVersion {
		slog.Warn("session.decodeSession: discarding session with unknown version", "sessionKey", sessionKey, "version", s.Version)
		return nil
	}
	return &s
}
