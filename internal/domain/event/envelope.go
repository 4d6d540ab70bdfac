// Package event defines the envelope exchanged between the transaction API and
// the anti-fraud service, together with the payloads it carries.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

// Version is the only envelope schema version this build understands.
const Version = "1.0"

// Type discriminates the payload carried in Envelope.Data
type Type string

const (
	TypeTransactionCreated   Type = "transaction.created"
	TypeTransactionValidated Type = "transaction.validated"
)

func (t Type) valid() bool {
	return t == TypeTransactionCreated || t == TypeTransactionValidated
}

// Envelope is the JSON message published on every topic. Unknown fields are
// ignored on decode so producers can add metadata without breaking consumers.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     Type            `json:"eventType"`
	EventVersion  string          `json:"eventVersion"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
}

func newEnvelope(eventType Type, correlationID string, data any) (*Envelope, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("%w: correlation id is required", shared.ErrInvalidInput)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return &Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          raw,
	}, nil
}

// Marshal encodes the envelope for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope %s: %w", e.EventID, err)
	}
	return b, nil
}

// LogAttrs returns the attributes every log line about this envelope carries.
func (e *Envelope) LogAttrs() []any {
	return []any{
		"event_id", e.EventID,
		"event_type", string(e.EventType),
		"correlation_id", e.CorrelationID,
	}
}

// Parse decodes and validates the envelope header. The payload is checked
// separately by Created or Validated.
func Parse(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, malformed("undecodable envelope: %v", err)
	}

	switch {
	case env.EventID == "":
		return nil, malformed("eventId is required")
	case env.EventType == "":
		return nil, malformed("eventType is required")
	case !env.EventType.valid():
		return nil, malformed("unknown eventType %q", env.EventType)
	case env.EventVersion != Version:
		return nil, malformed("unsupported eventVersion %q", env.EventVersion)
	case env.Timestamp.IsZero():
		return nil, malformed("timestamp is required")
	case env.CorrelationID == "":
		return nil, malformed("correlationId is required")
	case len(env.Data) == 0 || string(env.Data) == "null":
		return nil, malformed("data is required")
	}

	return &env, nil
}

// ParseAs is Parse plus a check that the envelope carries the expected type.
func ParseAs(raw []byte, expected Type) (*Envelope, error) {
	env, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if env.EventType != expected {
		return nil, malformed("expected eventType %q, got %q", expected, env.EventType)
	}
	return env, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrMalformedEnvelope, fmt.Sprintf(format, args...))
}
