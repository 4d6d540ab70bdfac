// Package journal records every validation outcome the transaction API has
// applied, keyed by the envelope's event id.
package journal

import (
	"time"

	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

// Entry is one applied transaction.validated envelope
type Entry struct {
	EventID               string                   `json:"event_id" bson:"event_id"`
	TransactionExternalID string                   `json:"transaction_external_id" bson:"transaction_external_id"`
	CorrelationID         string                   `json:"correlation_id" bson:"correlation_id"`
	Status                shared.TransactionStatus `json:"status" bson:"status"`
	Reason                string                   `json:"reason,omitempty" bson:"reason,omitempty"`
	ValidatedAt           time.Time                `json:"validated_at" bson:"validated_at"`
	AppliedAt             time.Time                `json:"applied_at" bson:"applied_at"`
}

// NewEntry builds the journal entry for an applied validation.
func NewEntry(env *event.Envelope, data *event.TransactionValidated) *Entry {
	return &Entry{
		EventID:               env.EventID,
		TransactionExternalID: data.TransactionExternalID.String(),
		CorrelationID:         env.CorrelationID,
		Status:                data.Status,
		Reason:                data.Reason,
		ValidatedAt:           data.ValidatedAt,
		AppliedAt:             time.Now().UTC(),
	}
}
