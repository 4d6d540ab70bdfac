package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// EventProducer publishes envelopes synchronously. The topic is chosen per
// message so one writer serves both transaction.created and
// transaction.validated.
type EventProducer struct {
	logger  *slog.Logger
	writer  KafkaWriter // Interface for testability
	timeout time.Duration
	metrics metrics.Recorder
}

var _ EventPublisher = (*EventProducer)(nil)

// NewEventProducer builds the writer. Topics must already exist (see EnsureTopics).
func NewEventProducer(logger *slog.Logger, cfg *config.KafkaConfig, recorder metrics.Recorder) *EventProducer {
	writer := &kafka.Writer{
		Addr: kafka.TCP(cfg.BrokerList()...),
		// Hash on the key keeps every event of one transaction on one partition.
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.PublishTimeout,
		BatchTimeout: 10 * time.Millisecond,
	}

	return newEventProducer(logger, writer, cfg.PublishTimeout, recorder)
}

func newEventProducer(logger *slog.Logger, writer KafkaWriter, timeout time.Duration, recorder metrics.Recorder) *EventProducer {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &EventProducer{
		logger:  logger,
		writer:  writer,
		timeout: timeout,
		metrics: recorder,
	}
}

// Publish returns once the broker has acknowledged the write. Failures wrap
// shared.ErrPublish.
func (p *EventProducer) Publish(ctx context.Context, topic string, key string, env *event.Envelope) error {
	value, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPublish, err)
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: envelopeHeaders(env),
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.RecordPublish(topic, err == nil, time.Since(start))
	if err != nil {
		p.logger.Error("Failed to publish event",
			append(env.LogAttrs(), "topic", topic, "key", key, "error", err)...,
		)
		return fmt.Errorf("%w: write to %s: %w", shared.ErrPublish, topic, err)
	}

	p.logger.Debug("Published event",
		append(env.LogAttrs(), "topic", topic, "key", key)...,
	)
	return nil
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing Kafka event producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka event writer: %w", err)
	}
	return nil
}

func envelopeHeaders(env *event.Envelope) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderCorrelationID, Value: []byte(env.CorrelationID)},
		{Key: HeaderEventType, Value: []byte(env.EventType)},
		{Key: HeaderEventID, Value: []byte(env.EventID)},
	}
}
