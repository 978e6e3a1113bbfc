package session

import (
	"errors"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func newTestIssuer(t *testing.T) Issuer {
	t.Helper()
	secret := paseto.NewV4AsymmetricSecretKey()
	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = secret.ExportHex()

	iss, err := NewPasetoV4PublicIssuer(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicIssuer: %v", err)
	}
	return iss
}

func TestPasetoV4_IssueAndVerify(t *testing.T) {
	iss := newTestIssuer(t)

	now := time.Now().UTC()
	tok, exp, err := iss.Issue("a@cuchd.in", "01HZZZZZZZZZZZZZZZZZZZZZZZ", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got, want := exp, now.Add(time.Hour); got.Sub(want) > time.Second || want.Sub(got) > time.Second {
		t.Fatalf("expected 1h expiry, got %v", exp.Sub(now))
	}

	claims, err := iss.Verify(tok, now.Add(1*time.Second))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.IdentityKey != "a@cuchd.in" {
		t.Fatalf("wrong identity key: %q", claims.IdentityKey)
	}
	if claims.StableID != "01HZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Fatalf("wrong stable id: %q", claims.StableID)
	}
}

func TestPasetoV4_ExpiredCredentialRejected(t *testing.T) {
	iss := newTestIssuer(t)

	now := time.Now().UTC()
	tok, _, err := iss.Issue("a@cuchd.in", "sid", now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := iss.Verify(tok, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired credential, got %v", err)
	}
}

func TestPasetoV4_ForeignKeyRejected(t *testing.T) {
	issuerA := newTestIssuer(t)
	issuerB := newTestIssuer(t)

	now := time.Now().UTC()
	tok, _, err := issuerA.Issue("a@cuchd.in", "sid", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuerB.Verify(tok, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestPasetoV4_MalformedRejected(t *testing.T) {
	iss := newTestIssuer(t)

	for _, tok := range []string{"", "garbage", "v4.public.not-a-token"} {
		if _, err := iss.Verify(tok, time.Now().UTC()); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", tok, err)
		}
	}
}
