// Package session turns a verified identity into a signed, time-limited
// session credential and validates credentials on incoming requests.
package session

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// Wire claim names. Stable: changing them invalidates every outstanding
// credential.
const (
	claimIdentityKey = "identity_key"
	claimStableID    = "stable_id"
)

// Claims is the minimal identity envelope propagated across HTTP/WS.
type Claims struct {
	IdentityKey string
	StableID    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Issuer      string
}

// Issuer issues and verifies session credentials.
type Issuer interface {
	Issue(identityKey, stableID string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
	PublicKeyHex() string
}

// v4PublicIssuer signs credentials as PASETO v4.public tokens over an
// Ed25519 keypair. Credentials are self-contained: expiry is the only
// termination mechanism, there is no server-side session state.
type v4PublicIssuer struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicIssuer builds an Issuer from the configured signing key.
func NewPasetoV4PublicIssuer(cfg Config) (Issuer, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &v4PublicIssuer{
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

func (iss *v4PublicIssuer) PublicKeyHex() string {
	return iss.public.ExportHex()
}

func (iss *v4PublicIssuer) Issue(identityKey, stableID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(iss.ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(iss.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	_ = tok.Set(claimIdentityKey, identityKey)
	_ = tok.Set(claimStableID, stableID)

	return tok.V4Sign(iss.secret, nil), exp, nil
}

// Verify parses and validates a credential. Every failure mode (malformed,
// tampered, foreign key, expired, missing claims) collapses to
// ErrInvalidToken.
func (iss *v4PublicIssuer) Verify(token string, now time.Time) (Claims, error) {
	// Validating slightly in the future tolerates "nbf" on peers with
	// lagging clocks and makes expiry marginally stricter.
	validNow := now.Add(iss.clockSkew)

	// A fresh parser per call: rules must not accumulate across verifies.
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(iss.issuer))
	p.AddRule(paseto.NotExpired())
	p.AddRule(paseto.ValidAt(validNow))

	parsed, err := p.ParseV4Public(iss.public, token, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claimsFrom(parsed)
}

func claimsFrom(tok *paseto.Token) (Claims, error) {
	identityKey, err := tok.GetString(claimIdentityKey)
	if err != nil || identityKey == "" {
		return Claims{}, ErrInvalidToken
	}
	stableID, err := tok.GetString(claimStableID)
	if err != nil || stableID == "" {
		return Claims{}, ErrInvalidToken
	}

	issuer, _ := tok.GetIssuer()
	iat, _ := tok.GetIssuedAt()
	exp, _ := tok.GetExpiration()

	return Claims{
		IdentityKey: identityKey,
		StableID:    stableID,
		IssuedAt:    iat,
		ExpiresAt:   exp,
		Issuer:      issuer,
	}, nil
}
