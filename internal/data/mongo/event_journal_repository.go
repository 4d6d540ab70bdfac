package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yape-transaction-pipeline/internal/domain/journal"
)

const (
	// JournalCollectionName is the name of the event journal collection in MongoDB
	JournalCollectionName = "event_journal"
)

// EventJournalRepository implements the journal.Repository interface for MongoDB
type EventJournalRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

var _ journal.Repository = (*EventJournalRepository)(nil)

// NewEventJournalRepository creates a new MongoDB journal repository
func NewEventJournalRepository(logger *slog.Logger, db *mongo.Database) *EventJournalRepository {
	return &EventJournalRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique event_id index that Record relies on to
// reject replays, plus the lookup index used by ListByTransaction.
func (r *EventJournalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(JournalCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_event_id"),
		},
		{
			Keys:    bson.D{{Key: "transaction_external_id", Value: 1}, {Key: "applied_at", Value: -1}},
			Options: options.Index().SetName("by_transaction"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create journal indexes: %w", err)
	}
	return nil
}

// Record stores an entry. The unique index turns a replay into ErrDuplicateEntry.
func (r *EventJournalRepository) Record(ctx context.Context, entry *journal.Entry) error {
	_, err := r.db.Collection(JournalCollectionName).InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return journal.ErrDuplicateEntry{EventID: entry.EventID}
		}
		r.logger.Error("Failed to record journal entry",
			"event_id", entry.EventID,
			"transaction_external_id", entry.TransactionExternalID,
			"error", err)
		return fmt.Errorf("failed to record journal entry: %w", err)
	}

	return nil
}

// Exists reports whether an envelope with this event id was already applied.
func (r *EventJournalRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := r.db.Collection(JournalCollectionName).FindOne(ctx, bson.M{"event_id": eventID}, opts).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		r.logger.Error("Failed to look up journal entry", "event_id", eventID, "error", err)
		return false, fmt.Errorf("failed to look up journal entry: %w", err)
	}

	return true, nil
}

// ListByTransaction returns the newest entries for a transaction first.
func (r *EventJournalRepository) ListByTransaction(ctx context.Context, externalID uuid.UUID, limit int) ([]*journal.Entry, error) {
	collection := r.db.Collection(JournalCollectionName)

	filter := bson.M{"transaction_external_id": externalID.String()}
	opts := options.Find().
		SetSort(bson.D{{Key: "applied_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list journal entries",
			"transaction_external_id", externalID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*journal.Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode journal entries",
			"transaction_external_id", externalID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode journal entries: %w", err)
	}

	return entries, nil
}
