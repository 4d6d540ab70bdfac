package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

// Repository is the transaction store. UpdateStatus is the only mutation after
// Create and must never move a terminal record to a different status.
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByExternalID(ctx context.Context, externalID uuid.UUID) (*Transaction, error)
	UpdateStatus(ctx context.Context, externalID uuid.UUID, status shared.TransactionStatus, reason string) (*Transaction, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	ExternalID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.ExternalID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	// A nil target id matches any ErrTransactionNotFound
	if t.ExternalID == uuid.Nil {
		return true
	}
	return e.ExternalID == t.ExternalID
}

// ErrStatusConflict indicates an attempt to overwrite a terminal status
type ErrStatusConflict struct {
	ExternalID uuid.UUID
	Current    shared.TransactionStatus
	Requested  shared.TransactionStatus
}

func (e ErrStatusConflict) Error() string {
	return fmt.Sprintf("transaction %s is already %s, refusing %s", e.ExternalID, e.Current, e.Requested)
}

// Is matches any ErrStatusConflict.
func (e ErrStatusConflict) Is(target error) bool {
	_, ok := target.(ErrStatusConflict)
	return ok
}
