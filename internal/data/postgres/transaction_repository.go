// Package postgres provides PostgreSQL implementations of the domain repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
	"github.com/yape-transaction-pipeline/internal/platform/persistence"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx so the insert can share a commit
// with the outbox row describing it.
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new transaction. An unknown transfer type violates the
// foreign key and is reported as invalid input.
func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (external_id, account_external_id_debit, account_external_id_credit, transfer_type_id, value, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		txn.ExternalID,
		txn.DebitAccountID,
		txn.CreditAccountID,
		txn.TransferTypeID,
		txn.Value,
		txn.Status,
		txn.Reason,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("%w: %w", shared.ErrInvalidInput, transaction.ErrUnknownTransferTypeID)
		}
		r.logger.Error("Failed to create transaction", "external_id", txn.ExternalID.String(), "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByExternalID retrieves a transaction by its external id
func (r *TransactionRepository) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT external_id, account_external_id_debit, account_external_id_credit, transfer_type_id, value, status, reason, created_at, updated_at
		FROM transactions
		WHERE external_id = $1
	`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{ExternalID: externalID}
		}
		r.logger.Error("Failed to get transaction", "external_id", externalID.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// UpdateStatus moves a pending transaction to a terminal status in a single
// conditional UPDATE. When nothing matched, the current row decides the result:
// absent is ErrTransactionNotFound, already at the requested status is success,
// and any other terminal status is ErrStatusConflict.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, externalID uuid.UUID, status shared.TransactionStatus, reason string) (*transaction.Transaction, error) {
	if !status.IsTerminal() {
		return nil, transaction.ErrInvalidStatusChange
	}

	query := `
		UPDATE transactions
		SET status = $1, reason = $2, updated_at = NOW()
		WHERE external_id = $3 AND status = $4
		RETURNING external_id, account_external_id_debit, account_external_id_credit, transfer_type_id, value, status, reason, created_at, updated_at
	`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, status, reason, externalID, shared.TransactionStatusPending))
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("Failed to update transaction status",
			"external_id", externalID.String(),
			"status", string(status),
			"error", err,
		)
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	current, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if current.Status == shared.TransactionStatusPending {
		// Only a concurrent writer can leave the row pending here; retry later.
		return nil, fmt.Errorf("transaction %s changed during status update", externalID)
	}
	// A replay of the stored status passes; anything else is a conflict.
	if err := current.ApplyStatus(status, reason); err != nil {
		return nil, err
	}
	return current, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	err := row.Scan(
		&txn.ExternalID,
		&txn.DebitAccountID,
		&txn.CreditAccountID,
		&txn.TransferTypeID,
		&txn.Value,
		&txn.Status,
		&txn.Reason,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
