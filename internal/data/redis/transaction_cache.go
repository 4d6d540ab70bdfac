// Package redis holds the read-through cache in front of the transaction store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
)

const keyPrefix = "transaction:"

// TransactionCache caches transactions as JSON under transaction:<externalId>.
type TransactionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewClient builds the go-redis client and pings it.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func NewTransactionCache(logger *slog.Logger, client *redis.Client, ttl time.Duration) *TransactionCache {
	return &TransactionCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(externalID uuid.UUID) string {
	return keyPrefix + externalID.String()
}

// Get returns the cached transaction. A miss is (nil, false, nil).
func (c *TransactionCache) Get(ctx context.Context, externalID uuid.UUID) (*transaction.Transaction, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(externalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached transaction: %w", err)
	}

	var txn transaction.Transaction
	if err := json.Unmarshal(val, &txn); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", "external_id", externalID.String(), "error", err)
		return nil, false, nil
	}
	return &txn, true, nil
}

// Set caches txn for the configured TTL.
func (c *TransactionCache) Set(ctx context.Context, txn *transaction.Transaction) error {
	b, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to encode transaction for cache: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(txn.ExternalID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache transaction: %w", err)
	}
	return nil
}

// Delete evicts a transaction, typically after its status changed.
func (c *TransactionCache) Delete(ctx context.Context, externalID uuid.UUID) error {
	if err := c.client.Del(ctx, cacheKey(externalID)).Err(); err != nil {
		return fmt.Errorf("failed to evict cached transaction: %w", err)
	}
	return nil
}
