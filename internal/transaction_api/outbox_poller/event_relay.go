package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yape-transaction-pipeline/internal/domain/outbox"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
)

// ErrUndecodablePayload means the row was parked as FAILED_TO_PUBLISH by the
// relay itself; retrying cannot fix it.
var ErrUndecodablePayload = errors.New("outbox payload is not a valid envelope")

// EventRelay republishes outbox messages to Kafka
type EventRelay interface {
	Relay(ctx context.Context, message *outbox.Message) error
}

// EventRelayImpl implements EventRelay
type EventRelayImpl struct {
	outboxRepo outbox.Repository
	publisher  producers.EventPublisher
	logger     *slog.Logger
}

// NewEventRelay creates a new relay
func NewEventRelay(logger *slog.Logger, outboxRepo outbox.Repository, publisher producers.EventPublisher) EventRelay {
	return &EventRelayImpl{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// Relay publishes the stored envelope unchanged, so consumers see the same
// eventId as any earlier inline attempt, then marks the row published.
func (r *EventRelayImpl) Relay(ctx context.Context, message *outbox.Message) error {
	env, err := message.Envelope()
	if err != nil {
		r.logger.Error("Outbox payload is not a valid envelope",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			r.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		} else {
			message.MarkAsFailed()
		}
		return fmt.Errorf("outbox %d: %w: %w", message.ID, ErrUndecodablePayload, err)
	}

	logger := r.logger.With(env.LogAttrs()...).With("outbox_id", message.ID)
	logger.Info("Republishing outbox message", "topic", message.Topic, "attempts", message.Attempts)

	if err := r.publisher.Publish(ctx, message.Topic, message.Key(), env); err != nil {
		return fmt.Errorf("republish outbox %d failed: %w", message.ID, err)
	}

	if err := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusPublished); err != nil {
		logger.Error("Published but failed to mark outbox message as PUBLISHED", "error", err)
		return fmt.Errorf("outbox %d published, but marking it PUBLISHED failed: %w", message.ID, err)
	}
	message.MarkAsPublished()

	logger.Info("Outbox message republished")
	return nil
}
