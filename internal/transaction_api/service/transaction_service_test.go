package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/journal"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
)

const createdTopic = "transaction.created"

func validCommand() CreateTransactionCommand {
	return CreateTransactionCommand{
		DebitAccountID:  uuid.NewString(),
		CreditAccountID: uuid.NewString(),
		TransferTypeID:  1,
		Value:           decimal.NewFromInt(500),
		CorrelationID:   "corr-123",
	}
}

func TestTransactionService_CreateTransaction(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("Success", func(t *testing.T) {
		writer := new(MockTransactionWriter)
		publisher := new(MockEventPublisher)
		svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)

		var saved *transaction.Transaction
		var published *event.Envelope
		writer.On("Save", ctx, mock.AnythingOfType("*transaction.Transaction"), mock.AnythingOfType("*event.Envelope")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*transaction.Transaction) }).
			Return(int64(7), nil).Once()
		publisher.On("Publish", ctx, createdTopic, mock.AnythingOfType("string"), mock.AnythingOfType("*event.Envelope")).
			Run(func(args mock.Arguments) { published = args.Get(3).(*event.Envelope) }).
			Return(nil).Once()
		writer.On("MarkPublished", ctx, int64(7)).Return(nil).Once()

		txn, err := svc.CreateTransaction(ctx, validCommand())

		require.NoError(t, err)
		require.NotNil(t, txn)
		assert.Equal(t, shared.TransactionStatusPending, txn.Status)
		assert.NotEqual(t, uuid.Nil, txn.ExternalID)
		assert.Same(t, saved, txn)

		require.NotNil(t, published)
		assert.Equal(t, "corr-123", published.CorrelationID)
		assert.Equal(t, event.TypeTransactionCreated, published.EventType)
		created, err := published.Created()
		require.NoError(t, err)
		assert.Equal(t, txn.ExternalID, created.TransactionExternalID)
		assert.True(t, created.Value.Equal(decimal.NewFromInt(500)))

		publisher.AssertCalled(t, "Publish", ctx, createdTopic, txn.ExternalID.String(), published)
		writer.AssertExpectations(t)
	})

	t.Run("GeneratesCorrelationID", func(t *testing.T) {
		writer := new(MockTransactionWriter)
		publisher := new(MockEventPublisher)
		svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)

		writer.On("Save", ctx, mock.Anything, mock.Anything).Return(int64(0), nil).Once()
		publisher.On("Publish", ctx, createdTopic, mock.Anything, mock.MatchedBy(func(env *event.Envelope) bool {
			_, err := uuid.Parse(env.CorrelationID)
			return err == nil
		})).Return(nil).Once()

		cmd := validCommand()
		cmd.CorrelationID = ""
		_, err := svc.CreateTransaction(ctx, cmd)

		require.NoError(t, err)
		publisher.AssertExpectations(t)
		writer.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
	})

	t.Run("DistinctExternalIDs", func(t *testing.T) {
		writer := new(MockTransactionWriter)
		publisher := new(MockEventPublisher)
		svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)
		writer.On("Save", ctx, mock.Anything, mock.Anything).Return(int64(0), nil)
		publisher.On("Publish", ctx, createdTopic, mock.Anything, mock.Anything).Return(nil)

		seen := make(map[uuid.UUID]bool)
		for i := 0; i < 50; i++ {
			txn, err := svc.CreateTransaction(ctx, validCommand())
			require.NoError(t, err)
			assert.False(t, seen[txn.ExternalID])
			seen[txn.ExternalID] = true
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*CreateTransactionCommand)
		}{
			{"zero value", func(c *CreateTransactionCommand) { c.Value = decimal.Zero }},
			{"negative value", func(c *CreateTransactionCommand) { c.Value = decimal.NewFromInt(-5) }},
			{"sub-cent value", func(c *CreateTransactionCommand) { c.Value = decimal.RequireFromString("1000.004") }},
			{"value beyond column range", func(c *CreateTransactionCommand) { c.Value = decimal.RequireFromString("12345678901234567") }},
			{"missing debit", func(c *CreateTransactionCommand) { c.DebitAccountID = "" }},
			{"missing transfer type", func(c *CreateTransactionCommand) { c.TransferTypeID = 0 }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				writer := new(MockTransactionWriter)
				publisher := new(MockEventPublisher)
				svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)

				cmd := validCommand()
				tt.mutate(&cmd)
				txn, err := svc.CreateTransaction(ctx, cmd)

				assert.Nil(t, txn)
				assert.ErrorIs(t, err, shared.ErrInvalidInput)
				writer.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
				publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("UnknownTransferTypeIsInvalidInput", func(t *testing.T) {
		writer := new(MockTransactionWriter)
		publisher := new(MockEventPublisher)
		svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)

		writer.On("Save", ctx, mock.Anything, mock.Anything).
			Return(int64(0), errors.Join(shared.ErrInvalidInput, transaction.ErrUnknownTransferTypeID)).Once()

		cmd := validCommand()
		cmd.TransferTypeID = 99
		txn, err := svc.CreateTransaction(ctx, cmd)

		assert.Nil(t, txn)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.NotErrorIs(t, err, shared.ErrPersistence)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PersistenceFailureDoesNotPublish", func(t *testing.T) {
		writer := new(MockTransactionWriter)
		publisher := new(MockEventPublisher)
		svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)

		writer.On("Save", ctx, mock.Anything, mock.Anything).Return(int64(0), errors.New("connection refused")).Once()

		txn, err := svc.CreateTransaction(ctx, validCommand())

		assert.Nil(t, txn)
		assert.ErrorIs(t, err, shared.ErrPersistence)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PublishFailureReturnsRecord", func(t *testing.T) {
		writer := new(MockTransactionWriter)
		publisher := new(MockEventPublisher)
		svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)

		writer.On("Save", ctx, mock.Anything, mock.Anything).Return(int64(3), nil).Once()
		publisher.On("Publish", ctx, createdTopic, mock.Anything, mock.Anything).
			Return(errors.New("broker down")).Once()

		txn, err := svc.CreateTransaction(ctx, validCommand())

		require.NotNil(t, txn)
		assert.Equal(t, shared.TransactionStatusPending, txn.Status)
		assert.ErrorIs(t, err, shared.ErrPublish)
		writer.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
	})

	t.Run("MarkPublishedFailureIsNotFatal", func(t *testing.T) {
		writer := new(MockTransactionWriter)
		publisher := new(MockEventPublisher)
		svc := NewTransactionService(logger, writer, nil, nil, nil, publisher, createdTopic, nil)

		writer.On("Save", ctx, mock.Anything, mock.Anything).Return(int64(3), nil).Once()
		publisher.On("Publish", ctx, createdTopic, mock.Anything, mock.Anything).Return(nil).Once()
		writer.On("MarkPublished", ctx, int64(3)).Return(errors.New("db gone")).Once()

		txn, err := svc.CreateTransaction(ctx, validCommand())

		require.NoError(t, err)
		assert.NotNil(t, txn)
		writer.AssertExpectations(t)
	})
}

func TestTransactionService_GetTransaction(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	id := uuid.New()

	pending := &transaction.Transaction{ExternalID: id, Status: shared.TransactionStatusPending, Value: decimal.NewFromInt(10)}
	approved := &transaction.Transaction{ExternalID: id, Status: shared.TransactionStatusApproved, Value: decimal.NewFromInt(10)}

	tests := []struct {
		name       string
		setupMocks func(repo *MockTransactionRepository, cache *MockTransactionCache)
		want       *transaction.Transaction
		wantErr    error
	}{
		{
			name: "cache hit",
			setupMocks: func(repo *MockTransactionRepository, cache *MockTransactionCache) {
				cache.On("Get", ctx, id).Return(approved, true, nil).Once()
			},
			want: approved,
		},
		{
			name: "pending is not cached",
			setupMocks: func(repo *MockTransactionRepository, cache *MockTransactionCache) {
				cache.On("Get", ctx, id).Return(nil, false, nil).Once()
				repo.On("GetByExternalID", ctx, id).Return(pending, nil).Once()
			},
			want: pending,
		},
		{
			name: "terminal is cached on miss",
			setupMocks: func(repo *MockTransactionRepository, cache *MockTransactionCache) {
				cache.On("Get", ctx, id).Return(nil, false, nil).Once()
				repo.On("GetByExternalID", ctx, id).Return(approved, nil).Once()
				cache.On("Set", ctx, approved).Return(nil).Once()
			},
			want: approved,
		},
		{
			name: "cache errors fall through to the store",
			setupMocks: func(repo *MockTransactionRepository, cache *MockTransactionCache) {
				cache.On("Get", ctx, id).Return(nil, false, errors.New("redis down")).Once()
				repo.On("GetByExternalID", ctx, id).Return(approved, nil).Once()
				cache.On("Set", ctx, approved).Return(errors.New("redis down")).Once()
			},
			want: approved,
		},
		{
			name: "not found",
			setupMocks: func(repo *MockTransactionRepository, cache *MockTransactionCache) {
				cache.On("Get", ctx, id).Return(nil, false, nil).Once()
				repo.On("GetByExternalID", ctx, id).Return(nil, transaction.ErrTransactionNotFound{ExternalID: id}).Once()
			},
			wantErr: transaction.ErrTransactionNotFound{},
		},
		{
			name: "store failure",
			setupMocks: func(repo *MockTransactionRepository, cache *MockTransactionCache) {
				cache.On("Get", ctx, id).Return(nil, false, nil).Once()
				repo.On("GetByExternalID", ctx, id).Return(nil, errors.New("timeout")).Once()
			},
			wantErr: shared.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockTransactionRepository)
			cache := new(MockTransactionCache)
			tt.setupMocks(repo, cache)
			svc := NewTransactionService(logger, nil, repo, nil, cache, nil, createdTopic, nil)

			got, err := svc.GetTransaction(ctx, id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestTransactionService_ListValidations(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	id := uuid.New()
	txn := &transaction.Transaction{ExternalID: id, Status: shared.TransactionStatusPending}

	t.Run("Success", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		journalRepo := new(MockJournalRepository)
		svc := NewTransactionService(logger, nil, repo, journalRepo, nil, nil, createdTopic, nil)

		entries := []*journal.Entry{{EventID: "e1", TransactionExternalID: id.String(), Status: shared.TransactionStatusApproved, AppliedAt: time.Now()}}
		repo.On("GetByExternalID", ctx, id).Return(txn, nil).Once()
		journalRepo.On("ListByTransaction", ctx, id, 20).Return(entries, nil).Once()

		got, err := svc.ListValidations(ctx, id, 20)

		require.NoError(t, err)
		assert.Equal(t, entries, got)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		journalRepo := new(MockJournalRepository)
		svc := NewTransactionService(logger, nil, repo, journalRepo, nil, nil, createdTopic, nil)

		repo.On("GetByExternalID", ctx, id).Return(nil, transaction.ErrTransactionNotFound{ExternalID: id}).Once()

		_, err := svc.ListValidations(ctx, id, 20)

		assert.ErrorIs(t, err, transaction.ErrTransactionNotFound{})
		journalRepo.AssertNotCalled(t, "ListByTransaction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("JournalFailure", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		journalRepo := new(MockJournalRepository)
		svc := NewTransactionService(logger, nil, repo, journalRepo, nil, nil, createdTopic, nil)

		repo.On("GetByExternalID", ctx, id).Return(txn, nil).Once()
		journalRepo.On("ListByTransaction", ctx, id, 20).Return(nil, errors.New("mongo down")).Once()

		_, err := svc.ListValidations(ctx, id, 20)

		assert.ErrorIs(t, err, shared.ErrPersistence)
	})
}
