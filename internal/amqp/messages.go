package amqp

import (
	"encoding/json"
	"time"
)

// TransactionEventMessage is the lightweight notification published when
// a transaction is written. Consumers fetch the full record from the
// store; the message carries only the identifiers.
type TransactionEventMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEventMessage creates a message for a transaction write.
func NewTransactionEventMessage(id, userID string, version int64) *TransactionEventMessage {
	return &TransactionEventMessage{
		ID:        id,
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
