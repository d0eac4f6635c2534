package protocol

import (
	"testing"
	"time"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(TypeSubscription, "quotes", SubscriptionData{
		Action:  ActionSubscribe,
		Symbols: []string{"AAPL", "TSLA"},
	})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}

	if env.Type != TypeSubscription {
		t.Errorf("Type = %s, want %s", env.Type, TypeSubscription)
	}
	if env.ID == "" {
		t.Error("ID should not be empty")
	}
	if env.Channel != "quotes" {
		t.Errorf("Channel = %s, want quotes", env.Channel)
	}

	now := time.Now().UnixMilli()
	if env.Timestamp == 0 || env.Timestamp > now {
		t.Errorf("Timestamp = %d, want recent epoch ms", env.Timestamp)
	}

	var data SubscriptionData
	if err := env.DecodeData(&data); err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	if data.Action != ActionSubscribe {
		t.Errorf("Action = %s, want %s", data.Action, ActionSubscribe)
	}
	if len(data.Symbols) != 2 {
		t.Errorf("Symbols = %v, want 2 entries", data.Symbols)
	}
}

func TestNewEnvelope_UniqueIDs(t *testing.T) {
	a, _ := NewEnvelope(TypePing, "", nil)
	b, _ := NewEnvelope(TypePing, "", nil)
	if a.ID == b.ID {
		t.Errorf("request IDs should be unique, both were %q", a.ID)
	}
}

func TestDecode(t *testing.T) {
	raw := `{"type":"ack","id":"req-1","timestamp":1705320000000,"channel":"quotes","data":{"success":true,"subscribed":["AAPL"]}}`

	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if env.Type != TypeAck {
		t.Errorf("Type = %s, want ack", env.Type)
	}
	if env.ID != "req-1" {
		t.Errorf("ID = %s, want req-1", env.ID)
	}
	if env.Timestamp != 1705320000000 {
		t.Errorf("Timestamp = %d, want 1705320000000", env.Timestamp)
	}

	var ack AckData
	if err := env.DecodeData(&ack); err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	if !ack.Success {
		t.Error("Success = false, want true")
	}
	if len(ack.Subscribed) != 1 || ack.Subscribed[0] != "AAPL" {
		t.Errorf("Subscribed = %v, want [AAPL]", ack.Subscribed)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDecode_MissingType(t *testing.T) {
	if _, err := Decode([]byte(`{"id":"x","timestamp":1}`)); err != ErrMissingType {
		t.Errorf("expected ErrMissingType, got %v", err)
	}
}

func TestDecode_MissingID(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"ping","timestamp":1}`)); err != ErrMissingID {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypePing, "", nil)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}

	raw, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	parsed, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if parsed.Type != TypePing {
		t.Errorf("Type = %s, want ping", parsed.Type)
	}
	if parsed.ID != env.ID {
		t.Errorf("ID = %s, want %s", parsed.ID, env.ID)
	}
}
