package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionCreated is the payload of a transaction.created envelope.
type TransactionCreated struct {
	TransactionExternalID   uuid.UUID
	AccountExternalIDDebit  string
	AccountExternalIDCredit string
	TransferTypeID          int
	Value                   decimal.Decimal
	CreatedAt               time.Time
}

// value travels as a JSON number; json.Number keeps it exact in both directions.
type createdWire struct {
	TransactionExternalID   string      `json:"transactionExternalId"`
	AccountExternalIDDebit  string      `json:"accountExternalIdDebit"`
	AccountExternalIDCredit string      `json:"accountExternalIdCredit"`
	TransferTypeID          *int        `json:"transferTypeId"`
	Value                   json.Number `json:"value"`
	CreatedAt               *time.Time  `json:"createdAt"`
}

// NewCreated wraps d in a fresh transaction.created envelope.
func NewCreated(correlationID string, d TransactionCreated) (*Envelope, error) {
	transferTypeID := d.TransferTypeID
	createdAt := d.CreatedAt.UTC()
	return newEnvelope(TypeTransactionCreated, correlationID, createdWire{
		TransactionExternalID:   d.TransactionExternalID.String(),
		AccountExternalIDDebit:  d.AccountExternalIDDebit,
		AccountExternalIDCredit: d.AccountExternalIDCredit,
		TransferTypeID:          &transferTypeID,
		Value:                   json.Number(d.Value.String()),
		CreatedAt:               &createdAt,
	})
}

// Created decodes the payload of a transaction.created envelope.
func (e *Envelope) Created() (*TransactionCreated, error) {
	if e.EventType != TypeTransactionCreated {
		return nil, malformed("cannot read %q as %q", e.EventType, TypeTransactionCreated)
	}

	var w createdWire
	if err := json.Unmarshal(e.Data, &w); err != nil {
		return nil, malformed("undecodable %s data: %v", e.EventType, err)
	}

	id, err := uuid.Parse(w.TransactionExternalID)
	if err != nil {
		return nil, malformed("transactionExternalId: %v", err)
	}
	if w.AccountExternalIDDebit == "" || w.AccountExternalIDCredit == "" {
		return nil, malformed("account ids are required")
	}
	if w.TransferTypeID == nil {
		return nil, malformed("transferTypeId is required")
	}
	if w.Value == "" {
		return nil, malformed("value is required")
	}
	value, err := decimal.NewFromString(w.Value.String())
	if err != nil {
		return nil, malformed("value: %v", err)
	}
	if value.IsNegative() {
		return nil, malformed("value must not be negative")
	}
	if w.CreatedAt == nil {
		return nil, malformed("createdAt is required")
	}

	return &TransactionCreated{
		TransactionExternalID:   id,
		AccountExternalIDDebit:  w.AccountExternalIDDebit,
		AccountExternalIDCredit: w.AccountExternalIDCredit,
		TransferTypeID:          *w.TransferTypeID,
		Value:                   value,
		CreatedAt:               *w.CreatedAt,
	}, nil
}
