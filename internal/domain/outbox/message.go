package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

// Message is an envelope written in the same database transaction as the
// record it describes, so it can be republished if the inline publish fails.
type Message struct {
	ID            int64               `json:"id"`
	TransactionID uuid.UUID           `json:"transaction_id"` // also the partition key
	Topic         string              `json:"topic"`
	EventID       string              `json:"event_id"`
	Payload       json.RawMessage     `json:"payload"` // marshalled envelope, published verbatim
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(topic string, transactionID uuid.UUID, env *event.Envelope) (*Message, error) {
	payload, err := env.Marshal()
	if err != nil {
		return nil, err
	}

	return &Message{
		TransactionID: transactionID,
		Topic:         topic,
		EventID:       env.EventID,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Key returns the partition key the payload must be published with.
func (m *Message) Key() string {
	return m.TransactionID.String()
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsPublished() {
	m.Status = shared.OutboxStatusPublished
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// Envelope decodes the stored payload.
func (m *Message) Envelope() (*event.Envelope, error) {
	return event.Parse(m.Payload)
}
