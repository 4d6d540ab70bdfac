package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yape-transaction-pipeline/internal/anti_fraud/rule"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// EvaluationService turns a created transaction into a validated event. It
// holds no state, so redelivering the same input is harmless.
type EvaluationService interface {
	Evaluate(ctx context.Context, correlationID string, created *event.TransactionCreated) (*event.Envelope, error)
}

type evaluationService struct {
	rule      *rule.ThresholdRule
	publisher producers.EventPublisher
	topic     string
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewEvaluationService publishes decisions to validatedTopic.
func NewEvaluationService(
	logger *slog.Logger,
	thresholdRule *rule.ThresholdRule,
	publisher producers.EventPublisher,
	validatedTopic string,
	recorder metrics.Recorder,
) EvaluationService {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &evaluationService{
		rule:      thresholdRule,
		publisher: publisher,
		topic:     validatedTopic,
		logger:    logger,
		metrics:   recorder,
	}
}

// Evaluate applies the rule and publishes the result keyed by the
// transaction's external id. The correlation id is carried over unchanged.
func (s *evaluationService) Evaluate(ctx context.Context, correlationID string, created *event.TransactionCreated) (*event.Envelope, error) {
	logger := s.logger.With(
		"correlation_id", correlationID,
		"transaction_external_id", created.TransactionExternalID.String(),
	)

	decision := s.rule.Evaluate(created.Value)

	env, err := event.NewValidated(correlationID, event.TransactionValidated{
		TransactionExternalID: created.TransactionExternalID,
		Status:                decision.Status,
		Reason:                decision.Reason,
		ValidatedAt:           time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build validated event: %w", err)
	}

	key := created.TransactionExternalID.String()
	if err := s.publisher.Publish(ctx, s.topic, key, env); err != nil {
		logger.Error("Failed to publish fraud decision",
			"status", string(decision.Status),
			"error", err,
		)
		return nil, fmt.Errorf("failed to publish decision for %s: %w", key, err)
	}

	s.metrics.RecordFraudDecision(string(decision.Status))
	logger.Info("Transaction evaluated",
		"event_id", env.EventID,
		"value", created.Value.String(),
		"status", string(decision.Status),
		"reason", decision.Reason,
	)
	return env, nil
}
