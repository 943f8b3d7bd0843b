// Package store provides storage backends for SevaFlow.
//
// This file implements the in-memory submission store used by tests and
// DSN-less deployments. Queued submissions do not survive a restart.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
)

type InMemoryStore struct {
	mu          sync.Mutex
	submissions map[string]*Submission
	receipts    []models.SubmissionReceipt
}

var _ SubmissionRepo = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{submissions: make(map[string]*Submission)}
}

func (s *InMemoryStore) EnqueueSubmission(req models.SubmissionRequest, runAt time.Time) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal submission payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[req.ID]; exists {
		return nil
	}
	now := time.Now()
	s.submissions[req.ID] = &Submission{
		ID:           req.ID,
		SessionKey:   req.SessionKey,
		DocumentType: req.DocumentType,
		PayloadJSON:  string(payload),
		Status:       models.SubmissionStatusQueued,
		MaxAttempts:  DefaultMaxAttempts,
		RunAt:        runAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (s *InMemoryStore) ClaimDueSubmissions(now time.Time, limit int) ([]Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Submission
	for _, sub := range s.submissions {
		if sub.Status == models.SubmissionStatusQueued && !sub.RunAt.After(now) {
			due = append(due, sub)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]Submission, 0, len(due))
	for _, sub := range due {
		sub.Status = models.SubmissionStatusRunning
		locked := now
		sub.LockedAt = &locked
		sub.UpdatedAt = now
		claimed = append(claimed, *sub)
	}
	return claimed, nil
}

func (s *InMemoryStore) CompleteSubmission(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	sub.Status = models.SubmissionStatusCompleted
	sub.LockedAt = nil
	sub.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) FailSubmission(id string, errMsg string, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	sub.Attempt++
	sub.LastError = errMsg
	sub.LockedAt = nil
	sub.UpdatedAt = time.Now()
	if sub.Attempt >= sub.MaxAttempts {
		sub.Status = models.SubmissionStatusFailed
	} else {
		sub.Status = models.SubmissionStatusQueued
		sub.RunAt = nextRunAt
	}
	return nil
}

func (s *InMemoryStore) RequeueStaleSubmissions(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.submissions {
		if sub.Status == models.SubmissionStatusRunning && sub.LockedAt != nil && sub.LockedAt.Before(staleBefore) {
			sub.Status = models.SubmissionStatusQueued
			sub.LockedAt = nil
			sub.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) GetSubmission(id string) (*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *InMemoryStore) ListSubmissions(sessionKey string) ([]Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []Submission
	for _, sub := range s.submissions {
		if sub.SessionKey == sessionKey {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (s *InMemoryStore) AddReceipt(r models.SubmissionReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) ListReceipts(sessionKey string) ([]models.SubmissionReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var receipts []models.SubmissionReceipt
	for _, r := range s.receipts {
		if r.SessionKey == sessionKey {
			receipts = append(receipts, r)
		}
	}
	return receipts, nil
}

func (s *InMemoryStore) Close() error { return nil }
