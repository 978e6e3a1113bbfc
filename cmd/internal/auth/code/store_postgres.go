package code

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a code Store backed by PostgreSQL.
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
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("code: empty schema")
		}
		if !codePGIdentRE.MatchString(schema) {
			return errors.New("code: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed code Store.
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
		return nil, errors.New("code: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Put stores a fresh record unless a live one exists.
// The upsert only replaces an expired leftover; a live row wins the conflict.
func (s *PostgresStore) Put(ctx context.Context, rec Record, now time.Time) error {
	if rec.IdentityKey == "" || rec.Code == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	codes := s.table()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO `+codes+` (identity_key, code, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity_key) DO UPDATE
		     SET code = EXCLUDED.code,
		         issued_at = EXCLUDED.issued_at,
		         expires_at = EXCLUDED.expires_at
		   WHERE `+codes+`.expires_at <= $5`,
		rec.IdentityKey, rec.Code, rec.IssuedAt, rec.ExpiresAt, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPending
	}
	return nil
}

// ConsumeMatching deletes the live record iff candidate matches. The row is
// locked for the compare-and-delete so a concurrent second verify observes
// an absent record.
func (s *PostgresStore) ConsumeMatching(ctx context.Context, identityKey, candidate string, now time.Time) error {
	if identityKey == "" || candidate == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	codes := s.table()

	var stored string
	var expiresAt time.Time
	err = tx.QueryRow(ctx,
		`SELECT code, expires_at FROM `+codes+` WHERE identity_key = $1 FOR UPDATE`,
		identityKey,
	).Scan(&stored, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if !expiresAt.After(now) {
		// Passive expiry: purge the dead row while we hold the lock.
		if _, err := tx.Exec(ctx, `DELETE FROM `+codes+` WHERE identity_key = $1`, identityKey); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return ErrNotFound
	}

	if !codesEqual(stored, candidate) {
		return ErrMismatch
	}

	if _, err := tx.Exec(ctx, `DELETE FROM `+codes+` WHERE identity_key = $1`, identityKey); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes any record for identityKey.
func (s *PostgresStore) Delete(ctx context.Context, identityKey string) error {
	if identityKey == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE identity_key = $1`, identityKey)
	return err
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "one_time_codes"}.Sanitize()
}

var codePGIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
