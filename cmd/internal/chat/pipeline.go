package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quad/cmd/internal/media"
	v1 "quad/shared/contracts/chat/v1"
)

// ErrUploadFailed aborts a whole chat send: no message is persisted and
// nothing is broadcast when any image upload of that message fails.
var ErrUploadFailed = errors.New("chat: upload failed")

// Pipeline orchestrates one inbound chat event:
//
//	upload (await all images) -> durable append -> room fan-out
//
// Phases are strictly sequential within one event. Independent events run
// fully in parallel, including events in the same room: only the
// persist+broadcast tail is serialized per room (Room.commitMu), which pins
// relative broadcast order to relative persist order. Messages therefore
// become visible in upload-completion order, not receive order.
type Pipeline struct {
	log      *slog.Logger
	store    MessageStore
	uploader media.Uploader
}

// NewPipeline constructs a Pipeline.
func NewPipeline(log *slog.Logger, store MessageStore, uploader media.Uploader) (*Pipeline, error) {
	if log == nil {
		return nil, errors.New("chat: nil logger")
	}
	if store == nil {
		return nil, errors.New("chat: nil store")
	}
	if uploader == nil {
		return nil, errors.New("chat: nil uploader")
	}
	return &Pipeline{log: log, store: store, uploader: uploader}, nil
}

// SendInput is one inbound chat event. Author fields are trusted from the
// already-authenticated connection.
type SendInput struct {
	Room        *Room
	ClientMsgID string
	AuthorID    string
	AuthorAlias string
	Text        string
	Images      []media.Image
	Now         time.Time
}

// Send runs the full pipeline for one event and returns the stored message.
//
// On ErrUploadFailed nothing was persisted or broadcast; the caller reports
// the failure to the sending connection only.
func (p *Pipeline) Send(ctx context.Context, in SendInput) (StoredMessage, error) {
	if in.Room == nil {
		return StoredMessage{}, errors.New("chat: nil room")
	}
	if err := ctx.Err(); err != nil {
		return StoredMessage{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	urls, err := p.uploadAll(ctx, in.Images)
	if err != nil {
		metricUploadFailures.Inc()
		return StoredMessage{}, err
	}

	// Persist and broadcast under the room's commit lock: a message must
	// never be visible to any subscriber before it is durable, and broadcast
	// order must match persist order within the room.
	in.Room.commitMu.Lock()
	defer in.Room.commitMu.Unlock()

	res, err := p.store.AppendMessage(ctx, AppendMessageInput{
		RoomID:      in.Room.ID,
		ClientMsgID: in.ClientMsgID,
		AuthorID:    in.AuthorID,
		AuthorAlias: in.AuthorAlias,
		Text:        in.Text,
		ImageURLs:   urls,
		Now:         now,
	})
	if err != nil {
		return StoredMessage{}, fmt.Errorf("store append: %w", err)
	}

	if res.Duplicated {
		// Retransmit of an already-durable message: ack semantics are the
		// caller's concern, fan-out already happened the first time.
		return res.Stored, nil
	}
	metricMessagesPersisted.Inc()

	payload, _ := json.Marshal(messageNewPayload(res.Stored))
	delivered, dropped := in.Room.Broadcast(NewEnvelope(v1.TypeMessageNew, payload, now))
	metricBroadcastDelivered.Add(float64(delivered))
	metricBroadcastDropped.Add(float64(dropped))

	p.log.Info("chat.message.persisted",
		"room_id", res.Stored.RoomID,
		"seq", res.Stored.Seq,
		"images", len(urls),
		"delivered", delivered,
		"dropped", dropped,
	)
	return res.Stored, nil
}

// uploadAll resolves every inline image to a stable URL, in input order.
// Uploads within one message run concurrently; the phase completes only when
// every upload finished. Any failure fails the whole phase.
func (p *Pipeline) uploadAll(ctx context.Context, images []media.Image) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}

	urls := make([]string, len(images))
	errs := make([]error, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img media.Image) {
			defer wg.Done()
			url, err := p.uploader.Upload(ctx, img)
			if err != nil {
				errs[i] = err
				return
			}
			urls[i] = url
		}(i, img)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
	}
	return urls, nil
}

// NewEnvelope wraps a payload into a versioned wire envelope.
func NewEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewRandomHex(10),
		TS:      ts,
		Payload: payload,
	}
}

func messageNewPayload(m StoredMessage) v1.MessageNewPayload {
	return v1.MessageNewPayload{
		RoomID:      m.RoomID,
		ClientMsgID: m.ClientMsgID,
		ServerMsgID: m.ServerMsgID,
		Seq:         m.Seq,
		AuthorID:    m.AuthorID,
		AuthorAlias: m.AuthorAlias,
		Text:        m.Text,
		ImageURLs:   m.ImageURLs,
		CreatedAt:   m.CreatedAt,
	}
}
