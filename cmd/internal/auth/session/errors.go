package session

import "errors"

var (
	// ErrInvalidToken is returned when a credential fails verification.
	// Malformed, tampered, and expired credentials are deliberately
	// indistinguishable to the caller.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
