package chat

import (
	"context"
	"time"
)

// StoredMessage is the canonical persisted message representation.
type StoredMessage struct {
	RoomID      string
	ClientMsgID string
	ServerMsgID string
	Seq         int64
	AuthorID    string
	AuthorAlias string
	Text        string
	ImageURLs   []string
	CreatedAt   time.Time
}

// MessageStore persists and queries the per-room message log.
//
// Requirements:
//   - Idempotency per (room_id, client_msg_id)
//   - Monotonic seq per room (no gaps for duplicates)
//   - History query ordered by seq ASC
type MessageStore interface {
	AppendMessage(ctx context.Context, in AppendMessageInput) (AppendMessageResult, error)
	FetchHistory(ctx context.Context, in FetchHistoryInput) (FetchHistoryResult, error)
	Close() error
}

// AppendMessageInput describes a message append request.
// ImageURLs are already resolved: the upload phase completed before persist.
type AppendMessageInput struct {
	RoomID      string
	ClientMsgID string
	AuthorID    string
	AuthorAlias string
	Text        string
	ImageURLs   []string
	Now         time.Time
}

// AppendMessageResult is the append operation result.
type AppendMessageResult struct {
	Stored     StoredMessage
	Duplicated bool
}

// FetchHistoryInput describes a history query request.
type FetchHistoryInput struct {
	RoomID   string
	AfterSeq *int64
	Limit    int
}

// FetchHistoryResult contains the retrieved history window.
type FetchHistoryResult struct {
	Messages []StoredMessage
	HasMore  bool
}
