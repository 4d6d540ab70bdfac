package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/journal"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type MockTransactionWriter struct {
	mock.Mock
}

func (m *MockTransactionWriter) Save(ctx context.Context, txn *transaction.Transaction, env *event.Envelope) (int64, error) {
	args := m.Called(ctx, txn, env)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionWriter) MarkPublished(ctx context.Context, outboxID int64) error {
	return m.Called(ctx, outboxID).Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	return m.Called(ctx, txn).Error(0)
}

func (m *MockTransactionRepository) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, externalID uuid.UUID, status shared.TransactionStatus, reason string) (*transaction.Transaction, error) {
	args := m.Called(ctx, externalID, status, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return m.Called(tx).Get(0).(transaction.Repository)
}

type MockJournalRepository struct {
	mock.Mock
}

func (m *MockJournalRepository) Record(ctx context.Context, entry *journal.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockJournalRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockJournalRepository) ListByTransaction(ctx context.Context, externalID uuid.UUID, limit int) ([]*journal.Entry, error) {
	args := m.Called(ctx, externalID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*journal.Entry), args.Error(1)
}

type MockTransactionCache struct {
	mock.Mock
}

func (m *MockTransactionCache) Get(ctx context.Context, externalID uuid.UUID) (*transaction.Transaction, bool, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*transaction.Transaction), args.Bool(1), args.Error(2)
}

func (m *MockTransactionCache) Set(ctx context.Context, txn *transaction.Transaction) error {
	return m.Called(ctx, txn).Error(0)
}

func (m *MockTransactionCache) Delete(ctx context.Context, externalID uuid.UUID) error {
	return m.Called(ctx, externalID).Error(0)
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
