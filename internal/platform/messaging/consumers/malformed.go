package consumers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// MalformedDropper acknowledges messages that no retry can fix and parks them
// on the DLQ when one is configured.
type MalformedDropper struct {
	dlq     producers.DeadLetterPublisher
	logger  *slog.Logger
	metrics metrics.Recorder
	topic   string
}

// NewMalformedDropper creates a dropper for topic. dlq may be nil.
func NewMalformedDropper(logger *slog.Logger, dlq producers.DeadLetterPublisher, recorder metrics.Recorder, topic string) *MalformedDropper {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &MalformedDropper{
		dlq:     dlq,
		logger:  logger,
		metrics: recorder,
		topic:   topic,
	}
}

// Drop returns nil for a shared.ErrMalformedEnvelope cause so the offset is
// committed; any other cause is returned unchanged for redelivery. The DLQ
// write is best effort.
func (d *MalformedDropper) Drop(ctx context.Context, key []byte, value []byte, cause error) error {
	if !errors.Is(cause, shared.ErrMalformedEnvelope) {
		return cause
	}
	d.metrics.RecordConsume(d.topic, metrics.OutcomeDropped, 0)
	d.logger.Error("Dropping malformed event",
		"topic", d.topic,
		"message_key", string(key),
		"error", cause,
	)

	if d.dlq == nil {
		return nil
	}
	letter := producers.DeadLetter{
		Topic:    d.topic,
		Key:      key,
		Value:    value,
		Reason:   cause.Error(),
		Attempts: 1,
	}
	if err := d.dlq.PublishToDLQ(ctx, letter); err != nil {
		d.logger.Error("Failed to publish malformed event to DLQ",
			"topic", d.topic,
			"dlq_error", err,
			"message_key", string(key),
		)
	}
	return nil
}
