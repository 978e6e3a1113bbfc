// Package v1 defines the Quad chat wire contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a session handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the session handshake (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeRoomJoin joins a community room (client -> server) and is echoed back.
	TypeRoomJoin = "room_join"
	// TypeRoomLeave leaves a community room (client -> server).
	TypeRoomLeave = "room_leave"

	// TypeChatSend requests sending a new chat message (client -> server).
	TypeChatSend = "chat_send"
	// TypeMessageNew broadcasts a persisted message (server -> room members).
	TypeMessageNew = "message_new"

	// TypeHistoryFetch requests room history (client -> server).
	TypeHistoryFetch = "history_fetch"
	// TypeHistoryChunk returns a window of history (server -> client).
	TypeHistoryChunk = "history_chunk"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeRoomJoin,
		TypeRoomLeave,
		TypeChatSend,
		TypeMessageNew,
		TypeHistoryFetch,
		TypeHistoryChunk,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// HelloPayload is sent by the client to initiate a session.
// The credential is optional here when it was already supplied at upgrade time.
type HelloPayload struct {
	Token string `json:"token,omitempty"`
}

// HelloAckPayload confirms the handshake and echoes the resolved author identity.
type HelloAckPayload struct {
	ConnectionID string `json:"connection_id"`
	StableID     string `json:"stable_id"`
	Alias        string `json:"alias"`
}

// RoomJoinPayload requests membership in a room.
type RoomJoinPayload struct {
	RoomID string `json:"room_id"`
}

// RoomLeavePayload drops membership in a room.
type RoomLeavePayload struct {
	RoomID string `json:"room_id"`
}

// ChatSendPayload requests sending a message into a room.
// Images are inline base64-encoded payloads; they are uploaded server-side
// and replaced by stable URLs before the message becomes visible.
type ChatSendPayload struct {
	RoomID      string   `json:"room_id"`
	ClientMsgID string   `json:"client_msg_id"`
	Text        string   `json:"text"`
	Images      []string `json:"images,omitempty"`
}

// MessageNewPayload broadcasts a persisted message to room members.
type MessageNewPayload struct {
	RoomID      string    `json:"room_id"`
	ClientMsgID string    `json:"client_msg_id"`
	ServerMsgID string    `json:"server_msg_id"`
	Seq         int64     `json:"seq"`
	AuthorID    string    `json:"author_stable_id"`
	AuthorAlias string    `json:"author_alias"`
	Text        string    `json:"text"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryFetchPayload requests a window of room history.
type HistoryFetchPayload struct {
	RoomID   string `json:"room_id"`
	AfterSeq *int64 `json:"after_seq,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// HistoryChunkPayload returns a window of room history ordered by seq ASC.
type HistoryChunkPayload struct {
	RoomID   string              `json:"room_id"`
	Messages []MessageNewPayload `json:"messages"`
	HasMore  bool                `json:"has_more"`
}

// ErrorPayload reports a failure back to a single connection.
// Errors are never broadcast.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
