// Package rule holds the fraud decision.
package rule

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

// Decision is the outcome of evaluating one transaction. Reason is empty for
// approvals.
type Decision struct {
	Status shared.TransactionStatus
	Reason string
}

// ThresholdRule approves any value up to and including the threshold.
type ThresholdRule struct {
	threshold decimal.Decimal
}

func NewThresholdRule(threshold decimal.Decimal) *ThresholdRule {
	return &ThresholdRule{threshold: threshold}
}

func (r *ThresholdRule) Threshold() decimal.Decimal {
	return r.threshold
}

// Evaluate is pure: the same value always yields the same decision.
func (r *ThresholdRule) Evaluate(value decimal.Decimal) Decision {
	if value.LessThanOrEqual(r.threshold) {
		return Decision{Status: shared.TransactionStatusApproved}
	}
	return Decision{
		Status: shared.TransactionStatusRejected,
		Reason: fmt.Sprintf("Transaction amount %s exceeds threshold %s", value.String(), r.threshold.String()),
	}
}
