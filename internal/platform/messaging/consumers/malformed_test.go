package consumers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

type dropRecorder struct {
	metrics.NoOp
	outcomes []string
}

func (r *dropRecorder) RecordConsume(_ string, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestMalformedDropper_Drop(t *testing.T) {
	ctx := context.Background()
	malformed := fmt.Errorf("%w: missing eventId", shared.ErrMalformedEnvelope)

	t.Run("other errors pass through", func(t *testing.T) {
		dlq := new(MockDeadLetterPublisher)
		recorder := &dropRecorder{}
		d := NewMalformedDropper(newTestLogger(), dlq, recorder, "transaction.created")

		cause := errors.New("store unavailable")
		assert.Equal(t, cause, d.Drop(ctx, []byte("k"), []byte("v"), cause))
		dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything)
		assert.Empty(t, recorder.outcomes)
	})

	t.Run("malformed is parked and acknowledged", func(t *testing.T) {
		dlq := new(MockDeadLetterPublisher)
		recorder := &dropRecorder{}
		d := NewMalformedDropper(newTestLogger(), dlq, recorder, "transaction.validated")

		dlq.On("PublishToDLQ", ctx, mock.MatchedBy(func(l producers.DeadLetter) bool {
			return l.Topic == "transaction.validated" &&
				string(l.Key) == "k" &&
				string(l.Value) == "not json" &&
				l.Attempts == 1 &&
				l.Reason == malformed.Error()
		})).Return(nil).Once()

		assert.NoError(t, d.Drop(ctx, []byte("k"), []byte("not json"), malformed))
		dlq.AssertExpectations(t)
		assert.Equal(t, []string{metrics.OutcomeDropped}, recorder.outcomes)
	})

	t.Run("DLQ failure still acknowledges", func(t *testing.T) {
		dlq := new(MockDeadLetterPublisher)
		d := NewMalformedDropper(newTestLogger(), dlq, nil, "transaction.created")
		dlq.On("PublishToDLQ", ctx, mock.Anything).Return(errors.New("broker down")).Once()

		assert.NoError(t, d.Drop(ctx, []byte("k"), []byte("v"), malformed))
		dlq.AssertExpectations(t)
	})

	t.Run("no DLQ configured", func(t *testing.T) {
		d := NewMalformedDropper(newTestLogger(), nil, nil, "transaction.created")
		assert.NoError(t, d.Drop(ctx, []byte("k"), []byte("v"), malformed))
	})
}
