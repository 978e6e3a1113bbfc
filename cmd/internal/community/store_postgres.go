package community

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Like toggles use per-message transactional advisory locks so concurrent
// toggles on the same message serialize, keeping like_count equal to the
// number of liker rows.
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
			return errors.New("community: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("community: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed community store.
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
		return nil, errors.New("community: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// EnsureCommunity creates the community if absent and returns the stored row.
func (s *PostgresStore) EnsureCommunity(ctx context.Context, c Community) (Community, error) {
	if strings.TrimSpace(c.ID) == "" {
		return Community{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Community{}, err
	}

	now := c.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	table := pgIdent(s.schema, "communities")
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+table+` (id, display_name, description, member_count, created_at)
		 VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.DisplayName, c.Description, now,
	); err != nil {
		return Community{}, fmt.Errorf("ensure community: %w", err)
	}

	return s.GetCommunity(ctx, c.ID)
}

// ListCommunities returns all communities ordered by id.
func (s *PostgresStore) ListCommunities(ctx context.Context) ([]Community, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := pgIdent(s.schema, "communities")
	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name, description, member_count, created_at
		   FROM `+table+`
		  ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Community
	for rows.Next() {
		var c Community
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.Description, &c.MemberCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCommunity returns one community by id.
func (s *PostgresStore) GetCommunity(ctx context.Context, id string) (Community, error) {
	if strings.TrimSpace(id) == "" {
		return Community{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Community{}, err
	}

	table := pgIdent(s.schema, "communities")

	var c Community
	err := s.pool.QueryRow(ctx,
		`SELECT id, display_name, description, member_count, created_at
		   FROM `+table+`
		  WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.DisplayName, &c.Description, &c.MemberCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Community{}, ErrNotFound
	}
	if err != nil {
		return Community{}, err
	}
	return c, nil
}

// Join increments the community's member count atomically.
func (s *PostgresStore) Join(ctx context.Context, communityID string) (Community, error) {
	return s.adjustMembers(ctx, communityID,
		`UPDATE %s
		    SET member_count = member_count + 1
		  WHERE id = $1
		RETURNING id, display_name, description, member_count, created_at`)
}

// Leave decrements the community's member count atomically, never below zero.
func (s *PostgresStore) Leave(ctx context.Context, communityID string) (Community, error) {
	return s.adjustMembers(ctx, communityID,
		`UPDATE %s
		    SET member_count = GREATEST(member_count - 1, 0)
		  WHERE id = $1
		RETURNING id, display_name, description, member_count, created_at`)
}

func (s *PostgresStore) adjustMembers(ctx context.Context, communityID, queryTmpl string) (Community, error) {
	if strings.TrimSpace(communityID) == "" {
		return Community{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Community{}, err
	}

	table := pgIdent(s.schema, "communities")
	q := fmt.Sprintf(queryTmpl, table)

	var c Community
	err := s.pool.QueryRow(ctx, q, communityID).
		Scan(&c.ID, &c.DisplayName, &c.Description, &c.MemberCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Community{}, ErrNotFound
	}
	if err != nil {
		return Community{}, err
	}
	return c, nil
}

// ToggleLike flips the actor's like on a message inside a transaction.
func (s *PostgresStore) ToggleLike(ctx context.Context, messageID, actorStableID string) (LikeState, error) {
	if strings.TrimSpace(messageID) == "" || strings.TrimSpace(actorStableID) == "" {
		return LikeState{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return LikeState{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return LikeState{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize all toggles per message so the read-modify-write never races.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, messageID); err != nil {
		return LikeState{}, fmt.Errorf("advisory lock: %w", err)
	}

	likes := pgIdent(s.schema, "message_likes")

	tag, err := tx.Exec(ctx,
		`DELETE FROM `+likes+` WHERE message_id = $1 AND liker_stable_id = $2`,
		messageID, actorStableID,
	)
	if err != nil {
		return LikeState{}, err
	}

	liked := tag.RowsAffected() == 0
	if liked {
		if _, err := tx.Exec(ctx,
			`INSERT INTO `+likes+` (message_id, liker_stable_id, created_at)
			 VALUES ($1, $2, now())`,
			messageID, actorStableID,
		); err != nil {
			return LikeState{}, err
		}
	}

	var count int64
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM `+likes+` WHERE message_id = $1`,
		messageID,
	).Scan(&count); err != nil {
		return LikeState{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return LikeState{}, err
	}

	return LikeState{MessageID: messageID, Liked: liked, LikeCount: count}, nil
}

// AppendComment appends a comment to a message's thread.
func (s *PostgresStore) AppendComment(ctx context.Context, in AppendCommentInput) (Comment, error) {
	if strings.TrimSpace(in.MessageID) == "" || strings.TrimSpace(in.AuthorID) == "" {
		return Comment{}, ErrInvalidInput
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Comment{}, ErrEmptyComment
	}
	if len([]rune(text)) > maxCommentChars {
		return Comment{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Comment{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	c := Comment{
		ID:          newCommentID(),
		MessageID:   in.MessageID,
		AuthorID:    in.AuthorID,
		AuthorAlias: in.AuthorAlias,
		Text:        text,
		CreatedAt:   now,
	}

	comments := pgIdent(s.schema, "message_comments")
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+comments+` (id, message_id, author_stable_id, author_alias, text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.MessageID, c.AuthorID, c.AuthorAlias, c.Text, c.CreatedAt,
	); err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}

	return c, nil
}

// ListComments returns a message's comments in append order.
func (s *PostgresStore) ListComments(ctx context.Context, messageID string) ([]Comment, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	comments := pgIdent(s.schema, "message_comments")
	rows, err := s.pool.Query(ctx,
		`SELECT id, message_id, author_stable_id, author_alias, text, created_at
		   FROM `+comments+`
		  WHERE message_id = $1
		  ORDER BY created_at ASC, id ASC`,
		messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.MessageID, &c.AuthorID, &c.AuthorAlias, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
