// Package directory owns the durable identity records behind Quad's
// passwordless login: one record per verified institutional email, keyed by
// an opaque stable id that the rest of the system uses in place of the email.
package directory

import (
	"context"
	"strings"
	"time"
)

// Identity is Quad's canonical security principal.
type Identity struct {
	// IdentityKey is the normalized institutional email.
	IdentityKey string

	// StableID is an opaque ULID assigned exactly once and never reused.
	StableID string

	// DisplayAlias is auto-assigned on first verification and mutable only
	// through UpdateProfile. Re-verification never touches it.
	DisplayAlias string

	Verified       bool
	GraduationYear *int

	CreatedAt time.Time
}

// ProfileUpdate describes the explicit profile-update path.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	DisplayAlias   *string
	GraduationYear *int
	Now            time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	// EnsureVerified returns the identity for identityKey, creating it on
	// first verification. A newly created identity gets a fresh stable id and
	// a generated alias. An existing identity is returned untouched.
	EnsureVerified(ctx context.Context, identityKey string, now time.Time) (Identity, error)

	// Get returns the identity for identityKey.
	Get(ctx context.Context, identityKey string) (Identity, error)

	// GetByStableID returns the identity for a stable id.
	GetByStableID(ctx context.Context, stableID string) (Identity, error)

	// UpdateProfile applies an explicit profile mutation and returns the
	// updated identity.
	UpdateProfile(ctx context.Context, stableID string, upd ProfileUpdate) (Identity, error)

	Close() error
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
