package code

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a dev-only fallback when DB is not configured.
type InMemoryStore struct {
	mu    sync.Mutex
	codes map[string]Record
}

// NewInMemoryStore constructs an in-memory code Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{codes: make(map[string]Record)}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// Put stores a fresh record unless a live one exists.
func (s *InMemoryStore) Put(ctx context.Context, rec Record, now time.Time) error {
	if rec.IdentityKey == "" || rec.Code == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.codes[rec.IdentityKey]; ok && existing.ExpiresAt.After(now) {
		return ErrAlreadyPending
	}
	s.codes[rec.IdentityKey] = rec
	return nil
}

// ConsumeMatching deletes the live record iff candidate matches.
func (s *InMemoryStore) ConsumeMatching(ctx context.Context, identityKey, candidate string, now time.Time) error {
	if identityKey == "" || candidate == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.codes[identityKey]
	if !ok {
		return ErrNotFound
	}
	if !rec.ExpiresAt.After(now) {
		// Passive expiry: purge the dead record while we hold the lock.
		delete(s.codes, identityKey)
		return ErrNotFound
	}
	if !codesEqual(rec.Code, candidate) {
		return ErrMismatch
	}

	delete(s.codes, identityKey)
	return nil
}

// Delete removes any record for identityKey.
func (s *InMemoryStore) Delete(ctx context.Context, identityKey string) error {
	if identityKey == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.codes, identityKey)
	s.mu.Unlock()
	return nil
}
