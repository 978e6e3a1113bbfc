package chat

import (
	"encoding/json"
	"testing"
	"time"

	v1 "quad/shared/contracts/chat/v1"
)

func testEnvelope() v1.Envelope {
	p, _ := json.Marshal(map[string]string{"k": "v"})
	return NewEnvelope(v1.TypeMessageNew, p, time.Now().UTC())
}

func TestRoomJoinIsIdempotent(t *testing.T) {
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("r1")

	c := NewClient("conn-1", "user-1", "calm-finch-03", 8)
	room.Join(c)
	room.Join(c)

	if got := room.MemberCount(); got != 1 {
		t.Fatalf("member count = %d, want 1", got)
	}
}

func TestRoomBroadcastIsRoomScoped(t *testing.T) {
	hub := NewHub(testLogger())
	r1 := hub.GetOrCreateRoom("r1")
	r2 := hub.GetOrCreateRoom("r2")

	inRoom := NewClient("conn-1", "user-1", "calm-finch-03", 8)
	outside := NewClient("conn-2", "user-2", "brave-lynx-11", 8)
	r1.Join(inRoom)
	r2.Join(outside)

	delivered, dropped := r1.Broadcast(testEnvelope())
	if delivered != 1 || dropped != 0 {
		t.Fatalf("delivered=%d dropped=%d, want 1/0", delivered, dropped)
	}

	select {
	case <-inRoom.Send:
	default:
		t.Fatal("member did not receive the broadcast")
	}
	select {
	case env := <-outside.Send:
		t.Fatalf("non-member received %s", env.Type)
	default:
	}
}

func TestRoomBroadcastDropsOnBackpressure(t *testing.T) {
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("r1")

	slow := NewClient("conn-1", "user-1", "calm-finch-03", 1)
	room.Join(slow)

	if d, dr := room.Broadcast(testEnvelope()); d != 1 || dr != 0 {
		t.Fatalf("first: delivered=%d dropped=%d", d, dr)
	}
	// Queue is full now: the next broadcast must drop, not block.
	if d, dr := room.Broadcast(testEnvelope()); d != 0 || dr != 1 {
		t.Fatalf("second: delivered=%d dropped=%d, want 0/1", d, dr)
	}
}

func TestRoomBroadcastSkipsClosedClients(t *testing.T) {
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("r1")

	c := NewClient("conn-1", "user-1", "calm-finch-03", 8)
	room.Join(c)
	c.Close()

	delivered, dropped := room.Broadcast(testEnvelope())
	if delivered != 0 || dropped != 1 {
		t.Fatalf("delivered=%d dropped=%d, want 0/1", delivered, dropped)
	}
}

func TestRoomLeaveUnknownConnectionIsNoop(t *testing.T) {
	hub := NewHub(testLogger())
	room := hub.GetOrCreateRoom("r1")
	room.Leave("never-joined")
	if got := room.MemberCount(); got != 0 {
		t.Fatalf("member count = %d, want 0", got)
	}
}
