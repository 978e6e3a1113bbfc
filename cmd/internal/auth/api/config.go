package authapi

import (
	"os"
	"strconv"
	"strings"
)

const (
	defaultEmailDomain  = "cuchd.in"
	defaultMaxBodyBytes = 64 << 10 // 64 KiB
)

// Config holds the HTTP auth surface configuration.
type Config struct {
	// EmailDomain is the institutional domain; only addresses under it may
	// request a login code.
	EmailDomain string

	MaxBodyBytes int64
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{
		EmailDomain:  defaultEmailDomain,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

// LoadConfigFromEnv loads Config from QUAD_AUTH_* environment variables,
// falling back to defaults for anything unset or invalid.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("QUAD_AUTH_EMAIL_DOMAIN")); v != "" {
		cfg.EmailDomain = strings.ToLower(strings.TrimPrefix(v, "@"))
	}
	if v := strings.TrimSpace(os.Getenv("QUAD_AUTH_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}

	return cfg
}
