package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// CodeTTL bounds how long a one-time login code stays valid.
	CodeTTL time.Duration

	// SeedCommunities is a comma-separated list of community ids created at
	// startup so a fresh deployment has rooms to join.
	SeedCommunities string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("QUAD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("QUAD_LOG_LEVEL", "info"),
		LogFormat: EnvString("QUAD_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("QUAD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("QUAD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("QUAD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("QUAD_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("QUAD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("QUAD_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("QUAD_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("QUAD_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("QUAD_READINESS_REQUIRE_DB", false),

		CodeTTL: EnvDuration("QUAD_AUTH_CODE_TTL", 5*time.Minute),

		SeedCommunities: EnvString("QUAD_SEED_COMMUNITIES", "general"),
	}
}
