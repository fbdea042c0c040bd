package amqp

import (
	"encoding/json"
	"time"

	"patrimonio/internal/core"
)

// RecalculateMessage asks the worker to rebuild an owner's daily snapshots
// from a given date through today. It is deliberately lightweight: the worker
// reloads all inputs from storage, so a stale message can never apply stale
// data.
type RecalculateMessage struct {
	OwnerID   string    `json:"owner_id"`
	From      core.Date `json:"from"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecalculateMessage creates a recalculation request starting at from.
func NewRecalculateMessage(ownerID string, from core.Date) *RecalculateMessage {
	return &RecalculateMessage{
		OwnerID:   ownerID,
		From:      from,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecalculateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecalculateMessageFromJSON creates a message from JSON bytes.
func RecalculateMessageFromJSON(data []byte) (*RecalculateMessage, error) {
	var msg RecalculateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
