// Package community holds Quad's durable community records and the social
// state attached to chat messages: membership counters, like toggles, and
// comment threads.
package community

import (
	"context"
	"time"
)

// Community is a durable community (one chat room maps to one community).
//
// MemberCount is adjusted only by explicit join/leave actions; live websocket
// presence never touches it, so the counter can drift from live connection
// counts and that is acceptable.
type Community struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is one comment appended to a chat message.
type Comment struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	AuthorID    string    `json:"author_id"`
	AuthorAlias string    `json:"author_alias"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// LikeState is the post-toggle like state of one message for one actor.
// LikeCount always equals the number of distinct likers.
type LikeState struct {
	MessageID string `json:"message_id"`
	Liked     bool   `json:"liked"`
	LikeCount int64  `json:"like_count"`
}

// AppendCommentInput carries one comment append.
type AppendCommentInput struct {
	MessageID   string
	AuthorID    string
	AuthorAlias string
	Text        string
	Now         time.Time
}

// Store is the durable community/social store.
//
// ToggleLike is a serialized read-modify-write per message: toggling twice
// from the same actor restores the prior state exactly.
type Store interface {
	EnsureCommunity(ctx context.Context, c Community) (Community, error)
	ListCommunities(ctx context.Context) ([]Community, error)
	GetCommunity(ctx context.Context, id string) (Community, error)

	Join(ctx context.Context, communityID string) (Community, error)
	Leave(ctx context.Context, communityID string) (Community, error)

	ToggleLike(ctx context.Context, messageID, actorStableID string) (LikeState, error)
	AppendComment(ctx context.Context, in AppendCommentInput) (Comment, error)
	ListComments(ctx context.Context, messageID string) ([]Comment, error)

	Close() error
}
