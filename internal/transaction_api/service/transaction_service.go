package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/journal"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	writer       TransactionWriter
	repo         transaction.Repository
	journal      journal.Repository
	cache        TransactionCache
	publisher    producers.EventPublisher
	createdTopic string
	logger       *slog.Logger
	metrics      metrics.Recorder
}

// NewTransactionService creates a new transaction service. cache and
// recorder may be nil.
func NewTransactionService(
	logger *slog.Logger,
	writer TransactionWriter,
	repo transaction.Repository,
	journalRepo journal.Repository,
	cache TransactionCache,
	publisher producers.EventPublisher,
	createdTopic string,
	recorder metrics.Recorder,
) *TransactionServiceImpl {
	if cache == nil {
		cache = noopCache{}
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &TransactionServiceImpl{
		writer:       writer,
		repo:         repo,
		journal:      journalRepo,
		cache:        cache,
		publisher:    publisher,
		createdTopic: createdTopic,
		logger:       logger,
		metrics:      recorder,
	}
}

// CreateTransaction stores the pending record first and only then publishes
// the created event keyed by the transaction's external id.
func (s *TransactionServiceImpl) CreateTransaction(ctx context.Context, cmd CreateTransactionCommand) (*transaction.Transaction, error) {
	correlationID := cmd.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	txn, err := transaction.NewTransaction(cmd.DebitAccountID, cmd.CreditAccountID, cmd.TransferTypeID, cmd.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	logger := s.logger.With(
		"correlation_id", correlationID,
		"transaction_external_id", txn.ExternalID.String(),
	)

	env, err := event.NewCreated(correlationID, event.TransactionCreated{
		TransactionExternalID:   txn.ExternalID,
		AccountExternalIDDebit:  txn.DebitAccountID,
		AccountExternalIDCredit: txn.CreditAccountID,
		TransferTypeID:          txn.TransferTypeID,
		Value:                   txn.Value,
		CreatedAt:               txn.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build created event: %w", err)
	}

	outboxID, err := s.writer.Save(ctx, txn, env)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			return nil, err
		}
		logger.Error("Failed to persist transaction", "error", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrPersistence, err)
	}

	key := txn.ExternalID.String()
	if err := s.publisher.Publish(ctx, s.createdTopic, key, env); err != nil {
		s.metrics.RecordTransactionCreated(false)
		logger.Error("Transaction persisted but created event not published",
			"event_id", env.EventID,
			"outbox_id", outboxID,
			"error", err,
		)
		if !errors.Is(err, shared.ErrPublish) {
			err = fmt.Errorf("%w: %w", shared.ErrPublish, err)
		}
		return txn, fmt.Errorf("transaction %s is pending but unpublished: %w", key, err)
	}
	s.metrics.RecordTransactionCreated(true)

	if outboxID != 0 {
		// The relay republishes the same bytes if this fails; consumers dedup on eventId.
		if err := s.writer.MarkPublished(ctx, outboxID); err != nil {
			logger.Warn("Failed to mark outbox message as published", "outbox_id", outboxID, "error", err)
		}
	}

	logger.Info("Transaction created",
		"event_id", env.EventID,
		"value", txn.Value.String(),
		"transfer_type_id", txn.TransferTypeID,
	)
	return txn, nil
}

// GetTransaction reads through the cache. Pending records always come from
// the store so a status change is never hidden by a stale entry.
func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, externalID uuid.UUID) (*transaction.Transaction, error) {
	cached, hit, err := s.cache.Get(ctx, externalID)
	if err != nil {
		s.logger.Warn("Transaction cache lookup failed", "transaction_external_id", externalID.String(), "error", err)
	}
	s.metrics.RecordCacheLookup(hit)
	if hit {
		return cached, nil
	}

	txn, err := s.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrPersistence, err)
	}

	if txn.Status.IsTerminal() {
		if err := s.cache.Set(ctx, txn); err != nil {
			s.logger.Warn("Failed to cache transaction", "transaction_external_id", externalID.String(), "error", err)
		}
	}
	return txn, nil
}

// ListValidations checks the transaction exists before reading its journal,
// so an unknown id is a not-found rather than an empty list.
func (s *TransactionServiceImpl) ListValidations(ctx context.Context, externalID uuid.UUID, limit int) ([]*journal.Entry, error) {
	if _, err := s.GetTransaction(ctx, externalID); err != nil {
		return nil, err
	}
	entries, err := s.journal.ListByTransaction(ctx, externalID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPersistence, err)
	}
	return entries, nil
}
