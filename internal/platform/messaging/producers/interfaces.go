package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/yape-transaction-pipeline/internal/domain/event"
)

// Header keys set on every event written by EventProducer.
const (
	HeaderCorrelationID = "correlation-id"
	HeaderEventType     = "event-type"
	HeaderEventID       = "event-id"
	HeaderDLQReason     = "dlq-reason"
)

// EventPublisher writes envelopes to a topic, keyed for per-transaction ordering
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, env *event.Envelope) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, letter DeadLetter) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
