package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yape-transaction-pipeline/internal/domain/journal"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
)

// CreateTransactionRequest represents a request to create a new transaction.
// Both tranferTypeId (the historical spelling) and transferTypeId are accepted.
type CreateTransactionRequest struct {
	AccountExternalIDDebit  string           `json:"accountExternalIdDebit" binding:"required,uuid"`
	AccountExternalIDCredit string           `json:"accountExternalIdCredit" binding:"required,uuid"`
	TranferTypeID           *int             `json:"tranferTypeId,omitempty"`
	TransferTypeID          *int             `json:"transferTypeId,omitempty"`
	Value                   *decimal.Decimal `json:"value" binding:"required"`
}

// transferType returns the transfer type id from whichever spelling was sent.
func (r CreateTransactionRequest) transferType() (int, bool) {
	switch {
	case r.TransferTypeID != nil:
		return *r.TransferTypeID, true
	case r.TranferTypeID != nil:
		return *r.TranferTypeID, true
	default:
		return 0, false
	}
}

// NamedValue wraps a display name the way clients expect it
type NamedValue struct {
	Name string `json:"name"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	TransactionExternalID string      `json:"transactionExternalId"`
	TransactionType       NamedValue  `json:"transactionType"`
	TransactionStatus     NamedValue  `json:"transactionStatus"`
	Value                 json.Number `json:"value"`
	Reason                string      `json:"reason,omitempty"`
	CreatedAt             string      `json:"createdAt"`
	UpdatedAt             string      `json:"updatedAt"`
}

// ValidationEventResponse represents one applied fraud decision
type ValidationEventResponse struct {
	EventID       string `json:"eventId"`
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	ValidatedAt   string `json:"validatedAt"`
	AppliedAt     string `json:"appliedAt"`
}

// EventsQuery bounds the journal listing
type EventsQuery struct {
	Limit int `form:"limit,default=50" binding:"min=1,max=200"`
}

func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	typeName, err := transaction.TransferTypeName(txn.TransferTypeID)
	if err != nil {
		typeName = "Unknown"
	}
	return TransactionResponse{
		TransactionExternalID: txn.ExternalID.String(),
		TransactionType:       NamedValue{Name: typeName},
		TransactionStatus:     NamedValue{Name: string(txn.Status)},
		Value:                 json.Number(txn.Value.String()),
		Reason:                txn.Reason,
		CreatedAt:             txn.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:             txn.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapJournalEntryToResponse(entry *journal.Entry) ValidationEventResponse {
	return ValidationEventResponse{
		EventID:       entry.EventID,
		CorrelationID: entry.CorrelationID,
		Status:        string(entry.Status),
		Reason:        entry.Reason,
		ValidatedAt:   entry.ValidatedAt.UTC().Format(time.RFC3339),
		AppliedAt:     entry.AppliedAt.UTC().Format(time.RFC3339),
	}
}
