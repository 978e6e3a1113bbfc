package community

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

const maxCommentChars = 2000

// InMemoryStore is a dev-only Store when DB is not configured.
// A single mutex serializes every mutation, which trivially satisfies the
// serialized read-modify-write requirement for like toggles.
type InMemoryStore struct {
	mu          sync.Mutex
	communities map[string]*Community
	likers      map[string]map[string]struct{} // message_id -> set of liker stable ids
	comments    map[string][]Comment           // message_id -> ordered comments
}

// NewInMemoryStore constructs an in-memory community store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		communities: make(map[string]*Community),
		likers:      make(map[string]map[string]struct{}),
		comments:    make(map[string][]Comment),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// EnsureCommunity creates the community if absent and returns the stored row.
// Existing rows keep their member count and creation time.
func (s *InMemoryStore) EnsureCommunity(ctx context.Context, c Community) (Community, error) {
	if strings.TrimSpace(c.ID) == "" {
		return Community{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Community{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.communities[c.ID]; ok {
		return *existing, nil
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.MemberCount = 0
	cp := c
	s.communities[c.ID] = &cp
	return cp, nil
}

// ListCommunities returns all communities ordered by id.
func (s *InMemoryStore) ListCommunities(ctx context.Context) ([]Community, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Community, 0, len(s.communities))
	for _, c := range s.communities {
		out = append(out, *c)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCommunity returns one community by id.
func (s *InMemoryStore) GetCommunity(ctx context.Context, id string) (Community, error) {
	if err := ctx.Err(); err != nil {
		return Community{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.communities[id]
	if !ok {
		return Community{}, ErrNotFound
	}
	return *c, nil
}

// Join increments the community's member count.
func (s *InMemoryStore) Join(ctx context.Context, communityID string) (Community, error) {
	if err := ctx.Err(); err != nil {
		return Community{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.communities[communityID]
	if !ok {
		return Community{}, ErrNotFound
	}
	c.MemberCount++
	return *c, nil
}

// Leave decrements the community's member count, never below zero.
func (s *InMemoryStore) Leave(ctx context.Context, communityID string) (Community, error) {
	if err := ctx.Err(); err != nil {
		return Community{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.communities[communityID]
	if !ok {
		return Community{}, ErrNotFound
	}
	if c.MemberCount > 0 {
		c.MemberCount--
	}
	return *c, nil
}

// ToggleLike flips the actor's like on a message and returns the new state.
func (s *InMemoryStore) ToggleLike(ctx context.Context, messageID, actorStableID string) (LikeState, error) {
	if strings.TrimSpace(messageID) == "" || strings.TrimSpace(actorStableID) == "" {
		return LikeState{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return LikeState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.likers[messageID]
	if set == nil {
		set = make(map[string]struct{})
		s.likers[messageID] = set
	}

	var liked bool
	if _, ok := set[actorStableID]; ok {
		delete(set, actorStableID)
		liked = false
	} else {
		set[actorStableID] = struct{}{}
		liked = true
	}

	return LikeState{
		MessageID: messageID,
		Liked:     liked,
		LikeCount: int64(len(set)),
	}, nil
}

// AppendComment appends a comment to a message's thread.
func (s *InMemoryStore) AppendComment(ctx context.Context, in AppendCommentInput) (Comment, error) {
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

	s.mu.Lock()
	s.comments[in.MessageID] = append(s.comments[in.MessageID], c)
	s.mu.Unlock()

	return c, nil
}

// ListComments returns a message's comments in append order.
func (s *InMemoryStore) ListComments(ctx context.Context, messageID string) ([]Comment, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Comment(nil), s.comments[messageID]...), nil
}

func newCommentID() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "comment-fallback"
	}
	return hex.EncodeToString(b)
}
