package directory

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is an identity Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "quad").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("directory: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("directory: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed identity Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "quad",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("directory: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// EnsureVerified inserts the identity on first verification. The insert is
// racy-safe via ON CONFLICT DO NOTHING followed by a read: whoever wins the
// insert fixes stable_id and alias for everyone.
func (s *PostgresStore) EnsureVerified(ctx context.Context, identityKey string, now time.Time) (Identity, error) {
	identityKey = NormalizeEmail(identityKey)
	if identityKey == "" {
		return Identity{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	stableID, err := NewStableID(now)
	if err != nil {
		return Identity{}, err
	}
	alias, err := NewAlias()
	if err != nil {
		return Identity{}, err
	}

	identities := pgIdent(s.schema, "identities")

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+identities+` (identity_key, stable_id, display_alias, verified, created_at)
		 VALUES ($1, $2, $3, TRUE, $4)
		 ON CONFLICT (identity_key) DO UPDATE SET verified = TRUE`,
		identityKey, stableID, alias, now,
	); err != nil {
		return Identity{}, err
	}

	return s.Get(ctx, identityKey)
}

// Get returns the identity for identityKey.
func (s *PostgresStore) Get(ctx context.Context, identityKey string) (Identity, error) {
	identityKey = NormalizeEmail(identityKey)
	if identityKey == "" {
		return Identity{}, ErrInvalidInput
	}
	return s.getBy(ctx, "identity_key", identityKey)
}

// GetByStableID returns the identity for a stable id.
func (s *PostgresStore) GetByStableID(ctx context.Context, stableID string) (Identity, error) {
	stableID = strings.TrimSpace(stableID)
	if stableID == "" {
		return Identity{}, ErrInvalidInput
	}
	return s.getBy(ctx, "stable_id", stableID)
}

func (s *PostgresStore) getBy(ctx context.Context, column, value string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	identities := pgIdent(s.schema, "identities")

	var out Identity
	err := s.pool.QueryRow(ctx,
		`SELECT identity_key, stable_id, display_alias, verified, graduation_year, created_at
		   FROM `+identities+`
		  WHERE `+column+` = $1`,
		value,
	).Scan(&out.IdentityKey, &out.StableID, &out.DisplayAlias, &out.Verified, &out.GraduationYear, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	return out, nil
}

// UpdateProfile applies the explicit profile-update path.
func (s *PostgresStore) UpdateProfile(ctx context.Context, stableID string, upd ProfileUpdate) (Identity, error) {
	stableID = strings.TrimSpace(stableID)
	if stableID == "" {
		return Identity{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	var alias *string
	if upd.DisplayAlias != nil {
		a := strings.TrimSpace(*upd.DisplayAlias)
		if a == "" {
			return Identity{}, ErrInvalidInput
		}
		alias = &a
	}

	identities := pgIdent(s.schema, "identities")

	var out Identity
	err := s.pool.QueryRow(ctx,
		`UPDATE `+identities+`
		    SET display_alias = COALESCE($2, display_alias),
		        graduation_year = COALESCE($3, graduation_year)
		  WHERE stable_id = $1
		RETURNING identity_key, stable_id, display_alias, verified, graduation_year, created_at`,
		stableID, alias, upd.GraduationYear,
	).Scan(&out.IdentityKey, &out.StableID, &out.DisplayAlias, &out.Verified, &out.GraduationYear, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	return out, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
