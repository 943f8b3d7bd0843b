// Package session provides a process-local in-memory session store.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
)

// MemoryStore keeps intake sessions in a TTL-aware map. It is scoped to a
// single process instance: state is neither durable nor shared, so it must
// not stand in for the Redis store behind a load balancer. Intended for
// tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Load retrieves the session for a key. Expired entries are treated as
// absent and removed.
func (m *MemoryStore) Load(ctx context.Context, sessionKey string) (*models.CollectionSession, error) {
	m.mu.Lock()
	entry, ok := m.entries[storageKey(sessionKey)]
	if ok && m.now().After(entry.expiresAt) {
		delete(m.entries, storageKey(sessionKey))
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		slog.Debug("MemoryStore.Load: session not found", "sessionKey", sessionKey)
		return nil, nil
	}
	s := decodeSession(sessionKey, entry.data)
	if s == nil {
		m.mu.Lock()
		delete(m.entries, storageKey(sessionKey))
		m.mu.Unlock()
		return nil, nil
	}
	return s, nil
}

// Save upserts the session with a sliding TTL.
func (m *MemoryStore) Save(ctx context.Context, s *models.CollectionSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[storageKey(s.SessionKey)] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	slog.Debug("MemoryStore.Save succeeded", "sessionKey", s.SessionKey, "ttl", ttl)
	return nil
}

// Delete removes the session. Absent keys are not an error.
func (m *MemoryStore) Delete(ctx context.Context, sessionKey string) error {
	m.mu.Lock()
	delete(m.entries, storageKey(sessionKey))
	m.mu.Unlock()
	slog.Debug("MemoryStore.Delete succeeded", "sessionKey", sessionKey)
	return nil
}
