package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MutationMessage tells the backup collaborator that a mutation committed.
// It carries only the entity id and the affected date; a consumer fetches
// current state from the repository, which makes delivery naturally
// last-writer-wins.
type MutationMessage struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"` // e.g. expense.recorded, template.deleted
	EntityID  int64     `json:"entity_id"`
	Day       string    `json:"day"` // YYYY-MM-DD, earliest affected date
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationMessage creates a mutation message with a fresh event id.
func NewMutationMessage(kind string, entityID int64, day string) *MutationMessage {
	return &MutationMessage{
		EventID:   uuid.NewString(),
		Kind:      kind,
		EntityID:  entityID,
		Day:       day,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON creates a message from JSON bytes
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
