package consumer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
)

type MockEvaluationService struct {
	mock.Mock
}

func (m *MockEvaluationService) Evaluate(ctx context.Context, correlationID string, created *event.TransactionCreated) (*event.Envelope, error) {
	args := m.Called(ctx, correlationID, created)
	if env := args.Get(0); env != nil {
		return env.(*event.Envelope), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, letter producers.DeadLetter) error {
	return m.Called(ctx, letter).Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func createdMessage(t *testing.T, value string) (uuid.UUID, []byte) {
	t.Helper()
	id := uuid.New()
	env, err := event.NewCreated("corr-7", event.TransactionCreated{
		TransactionExternalID:   id,
		AccountExternalIDDebit:  uuid.NewString(),
		AccountExternalIDCredit: uuid.NewString(),
		TransferTypeID:          2,
		Value:                   decimal.RequireFromString(value),
		CreatedAt:               time.Now().UTC(),
	})
	require.NoError(t, err)
	raw, err := env.Marshal()
	require.NoError(t, err)
	return id, raw
}

func TestCreatedEventHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("evaluates a valid event", func(t *testing.T) {
		svc := new(MockEvaluationService)
		h := NewCreatedEventHandler(newTestLogger(), svc, nil, nil, "transaction.created")
		id, raw := createdMessage(t, "500")

		svc.On("Evaluate", ctx, "corr-7", mock.MatchedBy(func(c *event.TransactionCreated) bool {
			return c.TransactionExternalID == id && c.Value.Equal(decimal.NewFromInt(500))
		})).Return(&event.Envelope{}, nil).Once()

		require.NoError(t, h.HandleMessage(ctx, []byte(id.String()), raw))
		svc.AssertExpectations(t)
	})

	t.Run("publish failure is returned for redelivery", func(t *testing.T) {
		svc := new(MockEvaluationService)
		h := NewCreatedEventHandler(newTestLogger(), svc, nil, nil, "transaction.created")
		id, raw := createdMessage(t, "1500")

		svc.On("Evaluate", ctx, "corr-7", mock.Anything).
			Return(nil, errors.Join(shared.ErrPublish, errors.New("broker down"))).Once()

		err := h.HandleMessage(ctx, []byte(id.String()), raw)
		assert.ErrorIs(t, err, shared.ErrPublish)
	})
}

func TestCreatedEventHandler_MalformedMessages(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		value []byte
	}{
		{name: "not json", value: []byte("{not json")},
		{name: "missing eventId", value: []byte(`{"eventType":"transaction.created","eventVersion":"1.0","timestamp":"2024-01-01T00:00:00Z","correlationId":"c","data":{}}`)},
		{name: "unsupported version", value: []byte(`{"eventId":"e","eventType":"transaction.created","eventVersion":"2.0","timestamp":"2024-01-01T00:00:00Z","correlationId":"c","data":{}}`)},
		{name: "wrong event type", value: []byte(`{"eventId":"e","eventType":"transaction.validated","eventVersion":"1.0","timestamp":"2024-01-01T00:00:00Z","correlationId":"c","data":{}}`)},
		{name: "data shape mismatch", value: []byte(`{"eventId":"e","eventType":"transaction.created","eventVersion":"1.0","timestamp":"2024-01-01T00:00:00Z","correlationId":"c","data":{"transactionExternalId":"nope"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockEvaluationService)
			dlq := new(MockDeadLetterPublisher)
			dlq.On("PublishToDLQ", ctx, mock.MatchedBy(func(l producers.DeadLetter) bool {
				return l.Topic == "transaction.created" &&
					string(l.Value) == string(tt.value) &&
					l.Reason != ""
			})).Return(nil).Once()

			h := NewCreatedEventHandler(newTestLogger(), svc, dlq, nil, "transaction.created")
			assert.NoError(t, h.HandleMessage(ctx, []byte("key"), tt.value))

			svc.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)
			dlq.AssertExpectations(t)
		})
	}

	t.Run("dlq failure still acknowledges", func(t *testing.T) {
		dlq := new(MockDeadLetterPublisher)
		dlq.On("PublishToDLQ", ctx, mock.Anything).Return(errors.New("dlq down")).Once()

		h := NewCreatedEventHandler(newTestLogger(), new(MockEvaluationService), dlq, nil, "transaction.created")
		assert.NoError(t, h.HandleMessage(ctx, []byte("key"), []byte("garbage")))
		dlq.AssertExpectations(t)
	})

	t.Run("no dlq configured", func(t *testing.T) {
		h := NewCreatedEventHandler(newTestLogger(), new(MockEvaluationService), nil, nil, "transaction.created")
		assert.NoError(t, h.HandleMessage(ctx, []byte("key"), []byte("garbage")))
	})
}
