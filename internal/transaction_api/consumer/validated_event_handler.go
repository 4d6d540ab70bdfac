package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/consumers"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
	"github.com/yape-transaction-pipeline/internal/transaction_api/service"
)

// ValidatedEventHandler handles transaction.validated messages from Kafka
type ValidatedEventHandler struct {
	reconciliationService service.ReconciliationService
	dropper               *consumers.MalformedDropper
	logger                *slog.Logger
}

// NewValidatedEventHandler creates a new handler. dlq may be nil.
func NewValidatedEventHandler(
	logger *slog.Logger,
	reconciliationService service.ReconciliationService,
	dlq producers.DeadLetterPublisher,
	recorder metrics.Recorder,
	topic string,
) *ValidatedEventHandler {
	return &ValidatedEventHandler{
		reconciliationService: reconciliationService,
		dropper:               consumers.NewMalformedDropper(logger, dlq, recorder, topic),
		logger:                logger,
	}
}

// HandleMessage applies one fraud decision. Malformed messages and status
// conflicts are acknowledged since no retry can fix them; a missing
// transaction or a store failure is returned so the message is redelivered.
func (h *ValidatedEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	env, err := event.ParseAs(value, event.TypeTransactionValidated)
	if err != nil {
		return h.dropper.Drop(ctx, key, value, err)
	}
	validated, err := env.Validated()
	if err != nil {
		return h.dropper.Drop(ctx, key, value, err)
	}

	logger := h.logger.With(env.LogAttrs()...).With(
		"transaction_external_id", validated.TransactionExternalID.String(),
	)
	if string(key) != validated.TransactionExternalID.String() {
		logger.Warn("Message key does not match transaction external id", "message_key", string(key))
	}

	err = h.reconciliationService.ApplyValidation(ctx, env, validated)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transaction.ErrStatusConflict{}):
		logger.Error("Acknowledging validated event that conflicts with stored status", "error", err)
		return nil
	default:
		return fmt.Errorf("reconciling transaction %s failed: %w", validated.TransactionExternalID, err)
	}
}
