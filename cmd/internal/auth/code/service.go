// Package code implements the one-time verification codes behind Quad's
// passwordless login: at most one live code per identity, absolute expiry,
// single use.
package code

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"quad/cmd/internal/notify"
)

const (
	defaultCodeDigits = 6
	defaultTTL        = 5 * time.Minute
)

// Service issues and verifies one-time codes.
type Service struct {
	store    Store
	notifier notify.Notifier
	ttl      time.Duration
	digits   int
}

// Option configures the Service.
type Option func(*Service) error

// WithTTL overrides the code lifetime (default 5 minutes).
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl <= 0 {
			return ErrInvalidInput
		}
		s.ttl = ttl
		return nil
	}
}

// WithDigits overrides the code length (default 6).
func WithDigits(n int) Option {
	return func(s *Service) error {
		if n < 4 || n > 10 {
			return ErrInvalidInput
		}
		s.digits = n
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, notifier notify.Notifier, opts ...Option) (*Service, error) {
	if store == nil || notifier == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		ttl:      defaultTTL,
		digits:   defaultCodeDigits,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Issue generates a fresh code for identityKey and hands it to the notifier.
//
// Fails with ErrAlreadyPending when a non-expired code exists. A code whose
// delivery fails is rolled back so the user can retry immediately.
func (s *Service) Issue(ctx context.Context, identityKey string, now time.Time) error {
	identityKey = strings.ToLower(strings.TrimSpace(identityKey))
	if identityKey == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	plain, err := newNumericCode(s.digits)
	if err != nil {
		return err
	}

	rec := Record{
		IdentityKey: identityKey,
		Code:        plain,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, rec, now); err != nil {
		return err
	}

	if err := s.notifier.Send(ctx, identityKey, plain); err != nil {
		// Best-effort rollback; an orphaned record would otherwise block
		// re-issue until expiry.
		_ = s.store.Delete(ctx, identityKey)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	metricCodesIssued.Inc()
	return nil
}

// Verify consumes the live code for identityKey when candidate matches.
//
// Absent and expired records both fail with ErrNotFound. A mismatch leaves
// the record in place so the user can retry with the correct code. Deletion
// is atomic with the match check, so a second Verify with the same
// still-valid code fails with ErrNotFound (single-use guarantee).
func (s *Service) Verify(ctx context.Context, identityKey, candidate string, now time.Time) error {
	identityKey = strings.ToLower(strings.TrimSpace(identityKey))
	candidate = strings.TrimSpace(candidate)
	if identityKey == "" || candidate == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if err := s.store.ConsumeMatching(ctx, identityKey, candidate, now); err != nil {
		return err
	}

	metricCodesVerified.Inc()
	return nil
}

// newNumericCode returns a fixed-length numeric code from crypto/rand.
func newNumericCode(digits int) (string, error) {
	if digits <= 0 {
		digits = defaultCodeDigits
	}

	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
