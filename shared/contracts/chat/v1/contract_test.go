package v1

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "valid hello", env: Envelope{V: Version, Type: TypeHello}},
		{name: "valid chat_send", env: Envelope{V: Version, Type: TypeChatSend}},
		{name: "missing version", env: Envelope{Type: TypeHello}, wantErr: true},
		{name: "wrong version", env: Envelope{V: "v2", Type: TypeHello}, wantErr: true},
		{name: "missing type", env: Envelope{V: Version}, wantErr: true},
		{name: "unknown type", env: Envelope{V: Version, Type: "shrug"}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.env.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	payload, _ := json.Marshal(ChatSendPayload{
		RoomID:      "general",
		ClientMsgID: "m1",
		Text:        "hey",
	})
	env := Envelope{
		V:       Version,
		Type:    TypeChatSend,
		ID:      "abc123",
		TS:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Payload: payload,
	}

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Envelope
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.V != Version || back.Type != TypeChatSend || back.ID != "abc123" {
		t.Fatalf("roundtrip mismatch: %+v", back)
	}

	var p ChatSendPayload
	if err := json.Unmarshal(back.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.RoomID != "general" || p.ClientMsgID != "m1" {
		t.Fatalf("payload mismatch: %+v", p)
	}
}
