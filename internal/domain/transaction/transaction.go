package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

var (
	ErrInvalidValue          = errors.New("value must be positive")
	ErrMissingAccount        = errors.New("debit and credit account ids are required")
	ErrInvalidTransferType   = errors.New("transfer type id must be positive")
	ErrInvalidStatusChange   = errors.New("status can only move from pending to approved or rejected")
	ErrUnknownTransferTypeID = errors.New("unknown transfer type")
)

// Values are stored as NUMERIC(18, 2).
const valueScale = 2

var maxValue = decimal.New(1, 16)

// Transfer types seeded by the initial migration.
const (
	TransferTypeTransfer   = 1
	TransferTypePayment    = 2
	TransferTypeWithdrawal = 3
)

var transferTypeNames = map[int]string{
	TransferTypeTransfer:   "Transfer",
	TransferTypePayment:    "Payment",
	TransferTypeWithdrawal: "Withdrawal",
}

// TransferTypeName returns the display name of a transfer type.
func TransferTypeName(id int) (string, error) {
	name, ok := transferTypeNames[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownTransferTypeID, id)
	}
	return name, nil
}

// Transaction is a money transfer request awaiting (or past) its fraud check.
// Only Status, Reason and UpdatedAt change after creation.
type Transaction struct {
	ExternalID      uuid.UUID                `json:"external_id"`
	DebitAccountID  string                   `json:"debit_account_id"`
	CreditAccountID string                   `json:"credit_account_id"`
	TransferTypeID  int                      `json:"transfer_type_id"`
	Value           decimal.Decimal          `json:"value"`
	Status          shared.TransactionStatus `json:"status"`
	Reason          string                   `json:"reason,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// NewTransaction builds a pending transaction with a fresh external id.
func NewTransaction(debitAccountID, creditAccountID string, transferTypeID int, value decimal.Decimal) (*Transaction, error) {
	if debitAccountID == "" || creditAccountID == "" {
		return nil, ErrMissingAccount
	}
	if transferTypeID <= 0 {
		return nil, ErrInvalidTransferType
	}
	if !value.IsPositive() {
		return nil, ErrInvalidValue
	}
	if !value.Equal(value.Truncate(valueScale)) {
		return nil, fmt.Errorf("%w: at most %d decimal places", ErrInvalidValue, valueScale)
	}
	if value.GreaterThanOrEqual(maxValue) {
		return nil, fmt.Errorf("%w: must be below %s", ErrInvalidValue, maxValue.String())
	}

	now := time.Now().UTC()
	return &Transaction{
		ExternalID:      uuid.New(),
		DebitAccountID:  debitAccountID,
		CreditAccountID: creditAccountID,
		TransferTypeID:  transferTypeID,
		Value:           value,
		Status:          shared.TransactionStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ApplyStatus records the fraud-check outcome. Re-applying the current
// terminal status is a no-op; any other change away from pending is refused.
func (t *Transaction) ApplyStatus(status shared.TransactionStatus, reason string) error {
	if !status.IsTerminal() {
		return ErrInvalidStatusChange
	}
	if t.Status == status {
		return nil
	}
	if t.Status != shared.TransactionStatusPending {
		return ErrStatusConflict{ExternalID: t.ExternalID, Current: t.Status, Requested: status}
	}

	t.Status = status
	t.Reason = reason
	t.UpdatedAt = time.Now().UTC()
	return nil
}
