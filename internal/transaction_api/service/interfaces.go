package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/journal"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
)

// CreateTransactionCommand carries a validated transfer request. An empty
// CorrelationID starts a new causal chain.
type CreateTransactionCommand struct {
	DebitAccountID  string
	CreditAccountID string
	TransferTypeID  int
	Value           decimal.Decimal
	CorrelationID   string
}

// TransactionService defines the command and query side of the API
type TransactionService interface {
	// CreateTransaction persists a pending transaction and publishes its
	// created event. When the publish fails the persisted record is returned
	// together with an error wrapping shared.ErrPublish.
	CreateTransaction(ctx context.Context, cmd CreateTransactionCommand) (*transaction.Transaction, error)

	// GetTransaction returns transaction.ErrTransactionNotFound when absent.
	GetTransaction(ctx context.Context, externalID uuid.UUID) (*transaction.Transaction, error)

	// ListValidations returns the validated events applied to a transaction.
	ListValidations(ctx context.Context, externalID uuid.UUID, limit int) ([]*journal.Entry, error)
}

// ReconciliationService applies fraud decisions to stored transactions
type ReconciliationService interface {
	// ApplyValidation is safe to call repeatedly with the same envelope.
	// A decision contradicting the stored terminal status yields
	// transaction.ErrStatusConflict.
	ApplyValidation(ctx context.Context, env *event.Envelope, validated *event.TransactionValidated) error
}

// TransactionWriter persists a new transaction together with whatever is
// needed to publish its created event later.
type TransactionWriter interface {
	// Save returns the outbox row id, or 0 when no outbox row was written.
	Save(ctx context.Context, txn *transaction.Transaction, env *event.Envelope) (int64, error)
	MarkPublished(ctx context.Context, outboxID int64) error
}

// TransactionCache is the read cache in front of the store. Only terminal
// transactions are cached since they never change again.
type TransactionCache interface {
	Get(ctx context.Context, externalID uuid.UUID) (*transaction.Transaction, bool, error)
	Set(ctx context.Context, txn *transaction.Transaction) error
	Delete(ctx context.Context, externalID uuid.UUID) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*transaction.Transaction, bool, error) {
	return nil, false, nil
}
func (noopCache) Set(context.Context, *transaction.Transaction) error { return nil }
func (noopCache) Delete(context.Context, uuid.UUID) error             { return nil }
