// Package notify defines the delivery collaborator for one-time login codes.
//
// Real delivery providers (SMTP, transactional email APIs) are wired at
// deployment time; this package ships the boundary plus dev-grade defaults.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers a one-time code to the address behind identityKey.
//
// Send must complete before code issuance reports success: a code the user
// can never receive is worse than a failed request.
type Notifier interface {
	Send(ctx context.Context, identityKey, code string) error
}

// LogNotifier writes the code to the structured log. Dev only: codes are
// secrets and must never reach production logs.
type LogNotifier struct {
	Log *slog.Logger
}

// Send logs the code instead of delivering it.
func (n LogNotifier) Send(_ context.Context, identityKey, code string) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notify.code.dev_delivery", "identity_key", identityKey, "code", code)
	return nil
}

// NoopNotifier drops codes silently. Used in tests.
type NoopNotifier struct{}

// Send is a no-op.
func (NoopNotifier) Send(_ context.Context, _, _ string) error { return nil }
