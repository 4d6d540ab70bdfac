package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/outbox"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
	"github.com/yape-transaction-pipeline/internal/transaction_api/service"
)

// TxExecutor runs fn inside a database transaction
type TxExecutor interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// OutboxWriter stores the transaction and its created event in one commit
type OutboxWriter struct {
	db         TxExecutor
	txnRepo    transaction.Repository
	outboxRepo outbox.Repository
	topic      string
	logger     *slog.Logger
}

var _ service.TransactionWriter = (*OutboxWriter)(nil)

func NewOutboxWriter(logger *slog.Logger, db TxExecutor, txnRepo transaction.Repository, outboxRepo outbox.Repository, topic string) *OutboxWriter {
	return &OutboxWriter{
		db:         db,
		txnRepo:    txnRepo,
		outboxRepo: outboxRepo,
		topic:      topic,
		logger:     logger,
	}
}

// Save inserts the transaction and a pending outbox row for env. Either both
// rows exist afterwards or neither does.
func (w *OutboxWriter) Save(ctx context.Context, txn *transaction.Transaction, env *event.Envelope) (int64, error) {
	msg, err := outbox.NewMessage(w.topic, txn.ExternalID, env)
	if err != nil {
		return 0, fmt.Errorf("failed to build outbox message for %s: %w", txn.ExternalID, err)
	}

	err = w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := w.txnRepo.WithTx(tx).Create(ctx, txn); err != nil {
			return err
		}
		if err := w.outboxRepo.WithTx(tx).Create(ctx, msg); err != nil {
			return fmt.Errorf("failed to create outbox message for %s: %w", txn.ExternalID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	w.logger.Debug("Transaction and outbox message stored",
		"transaction_external_id", txn.ExternalID.String(),
		"outbox_id", msg.ID,
		"event_id", msg.EventID,
	)
	return msg.ID, nil
}

func (w *OutboxWriter) MarkPublished(ctx context.Context, outboxID int64) error {
	return w.outboxRepo.UpdateStatus(ctx, outboxID, shared.OutboxStatusPublished)
}

// DirectWriter stores only the transaction. A failed publish leaves nothing
// behind for the relay to retry.
type DirectWriter struct {
	txnRepo transaction.Repository
}

var _ service.TransactionWriter = (*DirectWriter)(nil)

func NewDirectWriter(txnRepo transaction.Repository) *DirectWriter {
	return &DirectWriter{txnRepo: txnRepo}
}

func (w *DirectWriter) Save(ctx context.Context, txn *transaction.Transaction, _ *event.Envelope) (int64, error) {
	if err := w.txnRepo.Create(ctx, txn); err != nil {
		return 0, err
	}
	return 0, nil
}

func (w *DirectWriter) MarkPublished(context.Context, int64) error {
	return nil
}
