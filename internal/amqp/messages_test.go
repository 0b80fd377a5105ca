package amqp

import (
	"testing"
	"time"
)

func TestNewMutationMessage(t *testing.T) {
	msg := NewMutationMessage("expense.recorded", 42, "2024-03-01")

	if msg.Kind != "expense.recorded" {
		t.Errorf("Kind = %q, want %q", msg.Kind, "expense.recorded")
	}
	if msg.EntityID != 42 {
		t.Errorf("EntityID = %d, want 42", msg.EntityID)
	}
	if msg.Day != "2024-03-01" {
		t.Errorf("Day = %q, want %q", msg.Day, "2024-03-01")
	}
	if msg.EventID == "" {
		t.Error("EventID should not be empty")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}

	other := NewMutationMessage("expense.recorded", 42, "2024-03-01")
	if other.EventID == msg.EventID {
		t.Error("two messages should never share an event id")
	}
}

func TestMutationMessage_JSON(t *testing.T) {
	msg := &MutationMessage{
		EventID:   "e-1",
		Kind:      "template.deleted",
		EntityID:  7,
		Day:       "2024-01-31",
		Timestamp: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
	}

	raw, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := MutationMessageFromJSON(raw)
	if err != nil {
		t.Fatalf("MutationMessageFromJSON() error = %v", err)
	}

	if parsed.EventID != msg.EventID || parsed.Kind != msg.Kind ||
		parsed.EntityID != msg.EntityID || parsed.Day != msg.Day {
		t.Errorf("round-trip mismatch: %+v != %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestMutationMessage_InvalidJSON(t *testing.T) {
	if _, err := MutationMessageFromJSON([]byte(`{"entity_id": "not_a_number"}`)); err == nil {
		t.Error("MutationMessageFromJSON() should fail with invalid JSON")
	}
}
