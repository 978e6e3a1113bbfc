package code

import (
	"context"
	"crypto/subtle"
	"time"
)

// Record is a stored one-time code.
//
// Invariant: at most one live (non-expired) record per identity key. Expired
// records are treated as absent whether or not they were physically purged.
type Record struct {
	IdentityKey string
	Code        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Store is the one-time-code persistence boundary.
type Store interface {
	// Put stores a fresh record. Fails with ErrAlreadyPending when a live
	// record for the same identity key exists; an expired leftover is
	// replaced.
	Put(ctx context.Context, rec Record, now time.Time) error

	// ConsumeMatching deletes the live record for identityKey iff candidate
	// matches the stored code, atomically with the match check.
	// Returns ErrNotFound when no live record exists (absent or expired),
	// ErrMismatch when the candidate differs (record is kept).
	ConsumeMatching(ctx context.Context, identityKey, candidate string, now time.Time) error

	// Delete unconditionally removes any record for identityKey.
	Delete(ctx context.Context, identityKey string) error

	Close() error
}

// codesEqual compares codes in constant time. Codes are short fixed-length
// numerics; length still participates in the comparison result.
func codesEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
