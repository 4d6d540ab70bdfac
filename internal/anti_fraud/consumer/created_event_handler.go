package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yape-transaction-pipeline/internal/anti_fraud/service"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/consumers"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// CreatedEventHandler handles transaction.created messages from Kafka
type CreatedEventHandler struct {
	evaluationService service.EvaluationService
	dropper           *consumers.MalformedDropper
	logger            *slog.Logger
}

// NewCreatedEventHandler creates a new handler. dlq may be nil.
func NewCreatedEventHandler(
	logger *slog.Logger,
	evaluationService service.EvaluationService,
	dlq producers.DeadLetterPublisher,
	recorder metrics.Recorder,
	topic string,
) *CreatedEventHandler {
	return &CreatedEventHandler{
		evaluationService: evaluationService,
		dropper:           consumers.NewMalformedDropper(logger, dlq, recorder, topic),
		logger:            logger,
	}
}

// HandleMessage evaluates one created event. A malformed message is
// dead-lettered and acknowledged; any other failure is returned so the
// consumer redelivers it.
func (h *CreatedEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	env, err := event.ParseAs(value, event.TypeTransactionCreated)
	if err != nil {
		return h.dropper.Drop(ctx, key, value, err)
	}
	created, err := env.Created()
	if err != nil {
		return h.dropper.Drop(ctx, key, value, err)
	}

	logger := h.logger.With(env.LogAttrs()...).With(
		"transaction_external_id", created.TransactionExternalID.String(),
	)
	if string(key) != created.TransactionExternalID.String() {
		logger.Warn("Message key does not match transaction external id", "message_key", string(key))
	}

	logger.Debug("Received transaction for evaluation", "value", created.Value.String())

	if _, err := h.evaluationService.Evaluate(ctx, env.CorrelationID, created); err != nil {
		return fmt.Errorf("evaluating transaction %s failed: %w", created.TransactionExternalID, err)
	}
	return nil
}
