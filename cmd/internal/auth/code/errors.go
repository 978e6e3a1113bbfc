package code

import "errors"

var (
	// ErrInvalidInput is returned for blank identity keys or malformed candidates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyPending is returned when a live code already exists for the identity.
	ErrAlreadyPending = errors.New("code already pending")

	// ErrNotFound is returned when no live code exists for the identity.
	// Expired codes are treated identically to absent ones.
	ErrNotFound = errors.New("code not found")

	// ErrMismatch is returned when the candidate differs from the stored code.
	ErrMismatch = errors.New("code mismatch")

	// ErrDeliveryFailed is returned when the notifier could not deliver the code.
	ErrDeliveryFailed = errors.New("code delivery failed")
)
