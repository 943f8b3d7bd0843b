// Package session provides the Redis-backed session store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digicsc/sevaflow/internal/models"
)

// RedisStore persists intake sessions in a Redis-compatible store so state
// survives process restarts and is shared across service instances.
type RedisStore struct {
	client *redis.Client
}

// Opts holds configuration for the Redis session store.
type Opts struct {
	Addr     string
	Password string
	DB       int
}

// Option configures the Redis session store.
type Option func(*Opts)

// WithAddr sets the Redis server address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPassword sets the Redis password.
func WithPassword(password string) Option {
	return func(o *Opts) { o.Password = password }
}

// WithDB selects the Redis logical database.
func WithDB(db int) Option {
	return func(o *Opts) { o.DB = db }
}

// NewRedisStore opens a Redis connection and verifies it with a ping.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	slog.Debug("NewRedisStore invoked", "addr", cfg.Addr, "db", cfg.DB)

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		slog.Error("NewRedisStore ping failed", "error", err, "addr", cfg.Addr)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	slog.Debug("NewRedisStore connected", "addr", cfg.Addr)

	return &RedisStore{client: client}, nil
}

// Load retrieves the session for a key from Redis.
func (r *RedisStore) Load(ctx context.Context, sessionKey string) (*models.CollectionSession, error) {
	data, err := r.client.Get(ctx, storageKey(sessionKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		slog.Debug("RedisStore.Load: session not found", "sessionKey", sessionKey)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore.Load failed", "error", err, "sessionKey", sessionKey)
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	s := decodeSession(sessionKey, data)
	if s == nil {
		// Corrupt record: drop it so the next turn starts clean.
		if delErr := r.client.Del(ctx, storageKey(sessionKey)).Err(); delErr != nil {
			slog.Warn("RedisStore.Load: failed to delete corrupt session record", "error", delErr, "sessionKey", sessionKey)
		}
		return nil, nil
	}
	slog.Debug("RedisStore.Load succeeded", "sessionKey", sessionKey, "documentType", s.DocumentType, "fieldIndex", s.FieldIndex)
	return s, nil
}

// Save upserts the session with a sliding TTL.
func (r *RedisStore) Save(ctx context.Context, s *models.CollectionSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	data, err := encodeSession(s)
	if err != nil {
		slog.Error("RedisStore.Save encode failed", "error", err, "sessionKey", s.SessionKey)
		return err
	}
	if err := r.client.Set(ctx, storageKey(s.SessionKey), data, ttl).Err(); err != nil {
		slog.Error("RedisStore.Save failed", "error", err, "sessionKey", s.SessionKey)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	slog.Debug("RedisStore.Save succeeded", "sessionKey", s.SessionKey, "documentType", s.DocumentType, "fieldIndex", s.FieldIndex, "ttl", ttl)
	return nil
}

// Delete removes the session. Absent keys are not an error.
func (r *RedisStore) Delete(ctx context.Context, sessionKey string) error {
	if err := r.client.Del(ctx, storageKey(sessionKey)).Err(); err != nil {
		slog.Error("RedisStore.Delete failed", "error", err, "sessionKey", sessionKey)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	slog.Debug("RedisStore.Delete succeeded", "sessionKey", sessionKey)
	return nil
}

// Close releases the underlying Redis connection.
func (r *RedisStore) Close() error {
	slog.Debug("RedisStore.Close: closing redis connection")
	return r.client.Close()
}
