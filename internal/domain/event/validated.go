package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

// TransactionValidated is the payload of a transaction.validated envelope.
// Reason is only set for rejections.
type TransactionValidated struct {
	TransactionExternalID uuid.UUID
	Status                shared.TransactionStatus
	Reason                string
	ValidatedAt           time.Time
}

type validatedWire struct {
	TransactionExternalID string                   `json:"transactionExternalId"`
	Status                shared.TransactionStatus `json:"status"`
	Reason                string                   `json:"reason,omitempty"`
	ValidatedAt           *time.Time               `json:"validatedAt"`
}

// NewValidated wraps d in a fresh transaction.validated envelope.
func NewValidated(correlationID string, d TransactionValidated) (*Envelope, error) {
	validatedAt := d.ValidatedAt.UTC()
	return newEnvelope(TypeTransactionValidated, correlationID, validatedWire{
		TransactionExternalID: d.TransactionExternalID.String(),
		Status:                d.Status,
		Reason:                d.Reason,
		ValidatedAt:           &validatedAt,
	})
}

// Validated decodes the payload of a transaction.validated envelope.
func (e *Envelope) Validated() (*TransactionValidated, error) {
	if e.EventType != TypeTransactionValidated {
		return nil, malformed("cannot read %q as %q", e.EventType, TypeTransactionValidated)
	}

	var w validatedWire
	if err := json.Unmarshal(e.Data, &w); err != nil {
		return nil, malformed("undecodable %s data: %v", e.EventType, err)
	}

	id, err := uuid.Parse(w.TransactionExternalID)
	if err != nil {
		return nil, malformed("transactionExternalId: %v", err)
	}
	if !w.Status.IsTerminal() {
		return nil, malformed("status must be approved or rejected, got %q", w.Status)
	}
	if w.ValidatedAt == nil {
		return nil, malformed("validatedAt is required")
	}

	return &TransactionValidated{
		TransactionExternalID: id,
		Status:                w.Status,
		Reason:                w.Reason,
		ValidatedAt:           *w.ValidatedAt,
	}, nil
}
