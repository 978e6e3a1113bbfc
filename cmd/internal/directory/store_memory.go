package directory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a dev-only fallback when DB is not configured.
type InMemoryStore struct {
	mu         sync.Mutex
	byKey      map[string]*Identity
	byStableID map[string]*Identity
}

// NewInMemoryStore constructs an in-memory identity Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byKey:      make(map[string]*Identity),
		byStableID: make(map[string]*Identity),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// EnsureVerified creates the identity on first verification, otherwise
// returns the existing record untouched.
func (s *InMemoryStore) EnsureVerified(ctx context.Context, identityKey string, now time.Time) (Identity, error) {
	identityKey = NormalizeEmail(identityKey)
	if identityKey == "" {
		return Identity{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byKey[identityKey]; ok {
		if !existing.Verified {
			existing.Verified = true
		}
		return *existing, nil
	}

	stableID, err := NewStableID(now)
	if err != nil {
		return Identity{}, err
	}
	alias, err := NewAlias()
	if err != nil {
		return Identity{}, err
	}

	id := &Identity{
		IdentityKey:  identityKey,
		StableID:     stableID,
		DisplayAlias: alias,
		Verified:     true,
		CreatedAt:    now,
	}
	s.byKey[identityKey] = id
	s.byStableID[stableID] = id
	return *id, nil
}

// Get returns the identity for identityKey.
func (s *InMemoryStore) Get(ctx context.Context, identityKey string) (Identity, error) {
	identityKey = NormalizeEmail(identityKey)
	if identityKey == "" {
		return Identity{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[identityKey]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return *id, nil
}

// GetByStableID returns the identity for a stable id.
func (s *InMemoryStore) GetByStableID(ctx context.Context, stableID string) (Identity, error) {
	stableID = strings.TrimSpace(stableID)
	if stableID == "" {
		return Identity{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byStableID[stableID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return *id, nil
}

// UpdateProfile applies the explicit profile-update path.
func (s *InMemoryStore) UpdateProfile(ctx context.Context, stableID string, upd ProfileUpdate) (Identity, error) {
	stableID = strings.TrimSpace(stableID)
	if stableID == "" {
		return Identity{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byStableID[stableID]
	if !ok {
		return Identity{}, ErrNotFound
	}

	if upd.DisplayAlias != nil {
		alias := strings.TrimSpace(*upd.DisplayAlias)
		if alias == "" {
			return Identity{}, ErrInvalidInput
		}
		id.DisplayAlias = alias
	}
	if upd.GraduationYear != nil {
		year := *upd.GraduationYear
		id.GraduationYear = &year
	}
	return *id, nil
}
