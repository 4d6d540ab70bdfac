package components

import (
	"log/slog"

	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/domain/journal"
	"github.com/yape-transaction-pipeline/internal/domain/outbox"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
	"github.com/yape-transaction-pipeline/internal/transaction_api/service"
)

// CreateTransactionService creates a TransactionService with all its
// dependencies. The outbox is only written when cfg.Outbox.Enabled is set.
func CreateTransactionService(
	logger *slog.Logger,
	cfg *config.Config,
	db TxExecutor,
	txnRepo transaction.Repository,
	outboxRepo outbox.Repository,
	journalRepo journal.Repository,
	cache service.TransactionCache,
	publisher producers.EventPublisher,
	recorder metrics.Recorder,
) service.TransactionService {
	var writer service.TransactionWriter
	if cfg.Outbox.Enabled {
		writer = NewOutboxWriter(logger, db, txnRepo, outboxRepo, cfg.Kafka.CreatedTopic)
		logger.Info("Transactional outbox enabled", "grace", cfg.Outbox.PublishGrace.String())
	} else {
		writer = NewDirectWriter(txnRepo)
		logger.Warn("Transactional outbox disabled; a failed publish leaves the transaction pending")
	}

	return service.NewTransactionService(
		logger,
		writer,
		txnRepo,
		journalRepo,
		cache,
		publisher,
		cfg.Kafka.CreatedTopic,
		recorder,
	)
}
