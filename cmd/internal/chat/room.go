package chat

import (
	"log/slog"
	"sync"

	v1 "quad/shared/contracts/chat/v1"
)

// Room is an in-memory membership + broadcast fanout primitive for one
// community room. Live membership here is distinct from the durable
// "joined community" relation, which lives in the community store.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log *slog.Logger
	ID  string

	// commitMu serializes the persist+broadcast tail of the pipeline so that
	// relative broadcast order always matches relative persist order.
	// Upload phases run outside this lock.
	commitMu sync.Mutex

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a room.
func NewRoom(log *slog.Logger, id string) *Room {
	return &Room{
		log:     log,
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Join adds a client to live membership. Idempotent.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.ConnectionID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.ConnectionID] = client
	r.mu.Unlock()

	r.log.Info("room.member.join", "room_id", r.ID, "connection_id", client.ConnectionID)
}

// Leave removes a client from live membership. Never fails.
func (r *Room) Leave(connectionID string) {
	if r == nil || connectionID == "" {
		return
	}

	r.mu.Lock()
	_, present := r.members[connectionID]
	delete(r.members, connectionID)
	r.mu.Unlock()

	if present {
		r.log.Info("room.member.leave", "room_id", r.ID, "connection_id", connectionID)
	}
}

// MemberCount reports the live connection count.
func (r *Room) MemberCount() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Broadcast fanouts an envelope to all members, sender included: every
// client's view is derived solely from broadcasts.
// Non-blocking: if a member queue is full or the client is shutting down,
// that member simply misses the envelope. The persisted log is authoritative.
func (r *Room) Broadcast(env v1.Envelope) (delivered, dropped int) {
	if r == nil {
		return 0, 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			dropped++
			continue
		default:
		}

		select {
		case m.Send <- env:
			delivered++
		default:
			// Drop rather than block the whole room.
			dropped++
		}
	}
	return delivered, dropped
}
