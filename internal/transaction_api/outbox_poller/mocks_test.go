package outbox_poller

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/outbox"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
)

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, createdBefore time.Time, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m.Called(tx).Get(0).(outbox.Repository)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic string, key string, env *event.Envelope) error {
	return m.Called(ctx, topic, key, env).Error(0)
}

func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func pendingMessage(t *testing.T, id int64, attempts int) *outbox.Message {
	t.Helper()
	txID := uuid.New()
	env, err := event.NewCreated("corr-relay", event.TransactionCreated{
		TransactionExternalID:   txID,
		AccountExternalIDDebit:  uuid.NewString(),
		AccountExternalIDCredit: uuid.NewString(),
		TransferTypeID:          1,
		Value:                   decimal.NewFromInt(300),
		CreatedAt:               time.Now().UTC(),
	})
	require.NoError(t, err)
	msg, err := outbox.NewMessage("transaction.created", txID, env)
	require.NoError(t, err)
	msg.ID = id
	msg.Attempts = attempts
	return msg
}
