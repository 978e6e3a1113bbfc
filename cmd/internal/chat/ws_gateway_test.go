package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"

	"quad/cmd/internal/auth/session"
	"quad/cmd/internal/directory"
	"quad/cmd/internal/media"
	v1 "quad/shared/contracts/chat/v1"
)

func newTestGateway(t *testing.T, store MessageStore, uploader media.Uploader) *WSGateway {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := session.DefaultConfig()
	cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	sessions, err := session.NewPasetoV4PublicIssuer(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicIssuer: %v", err)
	}

	pipeline, err := NewPipeline(log, store, uploader)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	g, err := NewWSGateway(log, NewHub(log), store, pipeline, sessions, directory.NewInMemoryStore())
	if err != nil {
		t.Fatalf("NewWSGateway: %v", err)
	}
	return g
}

func TestRunSendSurvivesSenderDisconnect(t *testing.T) {
	store := NewInMemoryStore()
	uploader := media.NewMemoryUploader()
	g := newTestGateway(t, store, uploader)

	room := g.hub.GetOrCreateRoom("general")
	sender := NewClient("conn-sender", "sid-sender", "crimson-otter-11", 8)
	member := NewClient("conn-member", "sid-member", "amber-finch-42", 8)
	room.Join(sender)
	room.Join(member)

	// The sender's connection context is already torn down when the send
	// goroutine runs. The message must still upload, persist, and reach
	// the remaining room members.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g.runSend(ctx, sender, room, SendInput{
		Room:        room,
		ClientMsgID: "m-1",
		Text:        "still here",
		Images:      []media.Image{{Data: []byte("img-bytes")}},
	}, time.Now().UTC())

	if uploader.Len() != 1 {
		t.Fatalf("uploads = %d, want 1", uploader.Len())
	}

	out, err := store.FetchHistory(context.Background(), FetchHistoryInput{RoomID: "general", Limit: 10})
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(out.Messages) != 1 {
		t.Fatalf("persisted = %d, want 1", len(out.Messages))
	}

	select {
	case env := <-member.Send:
		if env.Type != v1.TypeMessageNew {
			t.Fatalf("member got %q, want %q", env.Type, v1.TypeMessageNew)
		}
	default:
		t.Fatal("member received nothing after sender disconnect")
	}
}
