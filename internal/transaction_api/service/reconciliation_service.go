package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/journal"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// ReconciliationServiceImpl implements the ReconciliationService interface
type ReconciliationServiceImpl struct {
	repo    transaction.Repository
	journal journal.Repository
	cache   TransactionCache
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewReconciliationService creates a new reconciliation service. cache and
// recorder may be nil.
func NewReconciliationService(
	logger *slog.Logger,
	repo transaction.Repository,
	journalRepo journal.Repository,
	cache TransactionCache,
	recorder metrics.Recorder,
) *ReconciliationServiceImpl {
	if cache == nil {
		cache = noopCache{}
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &ReconciliationServiceImpl{
		repo:    repo,
		journal: journalRepo,
		cache:   cache,
		logger:  logger,
		metrics: recorder,
	}
}

// ApplyValidation moves the transaction to the decided status. The journal
// only short-circuits known redeliveries; the conditional update in the store
// is what keeps the status from ever flipping.
func (s *ReconciliationServiceImpl) ApplyValidation(ctx context.Context, env *event.Envelope, validated *event.TransactionValidated) error {
	logger := s.logger.With(env.LogAttrs()...).With(
		"transaction_external_id", validated.TransactionExternalID.String(),
		"status", string(validated.Status),
	)
	status := string(validated.Status)

	seen, err := s.journal.Exists(ctx, env.EventID)
	if err != nil {
		logger.Warn("Journal lookup failed, applying status anyway", "error", err)
	} else if seen {
		s.metrics.RecordStatusUpdate(status, false)
		logger.Info("Validated event already applied, skipping")
		return nil
	}

	txn, err := s.repo.UpdateStatus(ctx, validated.TransactionExternalID, validated.Status, validated.Reason)
	if err != nil {
		var conflict transaction.ErrStatusConflict
		switch {
		case errors.As(err, &conflict):
			s.metrics.RecordStatusUpdate(status, false)
			logger.Warn("Validated event contradicts stored status",
				"current_status", string(conflict.Current),
			)
			return err
		case errors.Is(err, transaction.ErrTransactionNotFound{}):
			logger.Warn("Transaction not found for validated event, will retry")
			return err
		default:
			return fmt.Errorf("%w: %w", shared.ErrPersistence, err)
		}
	}
	s.metrics.RecordStatusUpdate(status, true)

	if err := s.cache.Delete(ctx, txn.ExternalID); err != nil {
		logger.Warn("Failed to evict cached transaction", "error", err)
	}

	if err := s.journal.Record(ctx, journal.NewEntry(env, validated)); err != nil {
		if errors.Is(err, journal.ErrDuplicateEntry{}) {
			logger.Debug("Journal entry recorded concurrently")
		} else {
			logger.Error("Failed to record journal entry", "error", err)
		}
	}

	logger.Info("Transaction status reconciled", "reason", txn.Reason)
	return nil
}
