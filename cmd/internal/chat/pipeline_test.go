package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"quad/cmd/internal/media"
	v1 "quad/shared/contracts/chat/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, up media.Uploader) (*Pipeline, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	if up == nil {
		up = media.NewMemoryUploader()
	}
	p, err := NewPipeline(testLogger(), store, up)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, store
}

func drainOne(t *testing.T, c *Client) v1.Envelope {
	t.Helper()
	select {
	case env := <-c.Send:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("no envelope received on %s", c.ConnectionID)
		return v1.Envelope{}
	}
}

func TestPipelineSendBroadcastsToAllMembers(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("general")

	a := NewClient("conn-a", "user-a", "brisk-otter-17", 16)
	b := NewClient("conn-b", "user-b", "mellow-heron-42", 16)
	room.Join(a)
	room.Join(b)

	img := media.Image{Data: []byte{0x89, 'P', 'N', 'G'}}
	stored, err := p.Send(context.Background(), SendInput{
		Room:        room,
		ClientMsgID: "m1",
		AuthorID:    "user-a",
		AuthorAlias: "brisk-otter-17",
		Text:        "hello",
		Images:      []media.Image{img},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if stored.Seq != 1 {
		t.Fatalf("seq = %d, want 1", stored.Seq)
	}
	if len(stored.ImageURLs) != 1 || stored.ImageURLs[0] == "" {
		t.Fatalf("image URLs = %v, want one resolved URL", stored.ImageURLs)
	}

	for _, c := range []*Client{a, b} {
		env := drainOne(t, c)
		if env.Type != v1.TypeMessageNew {
			t.Fatalf("type = %s, want %s", env.Type, v1.TypeMessageNew)
		}
		var got v1.MessageNewPayload
		if err := json.Unmarshal(env.Payload, &got); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if got.Text != "hello" || got.Seq != 1 {
			t.Fatalf("payload = %+v", got)
		}
		if len(got.ImageURLs) != 1 || got.ImageURLs[0] != stored.ImageURLs[0] {
			t.Fatalf("broadcast image URLs = %v, want %v", got.ImageURLs, stored.ImageURLs)
		}
		// Exactly one envelope per member.
		select {
		case extra := <-c.Send:
			t.Fatalf("unexpected extra envelope on %s: %s", c.ConnectionID, extra.Type)
		default:
		}
	}
}

func TestPipelineUploadFailureIsAllOrNothing(t *testing.T) {
	up := media.NewMemoryUploader()
	up.FailNext()

	p, store := newTestPipeline(t, up)
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("general")

	member := NewClient("conn-a", "user-a", "brisk-otter-17", 16)
	room.Join(member)

	_, err := p.Send(context.Background(), SendInput{
		Room:        room,
		ClientMsgID: "m1",
		AuthorID:    "user-a",
		AuthorAlias: "brisk-otter-17",
		Text:        "with pics",
		Images: []media.Image{
			{Data: []byte("one")},
			{Data: []byte("two")},
		},
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}

	// Nothing persisted.
	out, err := store.FetchHistory(context.Background(), FetchHistoryInput{RoomID: "general"})
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(out.Messages) != 0 {
		t.Fatalf("messages persisted after upload failure: %d", len(out.Messages))
	}

	// Nothing broadcast.
	select {
	case env := <-member.Send:
		t.Fatalf("unexpected broadcast after upload failure: %s", env.Type)
	default:
	}
}

func TestPipelineDuplicateIsNotRebroadcast(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("general")

	member := NewClient("conn-a", "user-a", "brisk-otter-17", 16)
	room.Join(member)

	in := SendInput{
		Room:        room,
		ClientMsgID: "same-id",
		AuthorID:    "user-a",
		AuthorAlias: "brisk-otter-17",
		Text:        "once",
	}

	first, err := p.Send(context.Background(), in)
	if err != nil {
		t.Fatalf("first Send: %v", err)
	}
	second, err := p.Send(context.Background(), in)
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if second.Seq != first.Seq || second.ServerMsgID != first.ServerMsgID {
		t.Fatalf("retransmit got a new identity: first=%+v second=%+v", first, second)
	}

	drainOne(t, member)
	select {
	case env := <-member.Send:
		t.Fatalf("duplicate was rebroadcast: %s", env.Type)
	default:
	}
}

func TestPipelineBroadcastOrderMatchesPersistOrder(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("general")

	member := NewClient("conn-a", "user-a", "brisk-otter-17", 256)
	room.Join(member)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Send(context.Background(), SendInput{
				Room:        room,
				ClientMsgID: NewRandomHex(8),
				AuthorID:    "user-a",
				AuthorAlias: "brisk-otter-17",
				Text:        "msg",
			})
			if err != nil {
				t.Errorf("Send: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var lastSeq int64
	for i := 0; i < n; i++ {
		env := drainOne(t, member)
		var got v1.MessageNewPayload
		if err := json.Unmarshal(env.Payload, &got); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if got.Seq <= lastSeq {
			t.Fatalf("broadcast out of order: seq %d after %d", got.Seq, lastSeq)
		}
		lastSeq = got.Seq
	}
	if lastSeq != n {
		t.Fatalf("last seq = %d, want %d", lastSeq, n)
	}
}
