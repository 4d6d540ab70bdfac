// Package workerpool bounds how many message handlers run at once across all
// partitions of a consumer.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/consumers"
)

type Pool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// New creates a pool of size workers. Submissions block while all are busy.
func New(size int, logger *slog.Logger) (*Pool, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Pool{
		pool:   pool,
		logger: logger,
	}, nil
}

// Wrap returns a handler that runs next on a pool worker and waits for its
// result. The caller's ordering guarantees are unchanged since it still
// blocks until the work is done.
func (p *Pool) Wrap(next consumers.MessageHandler) consumers.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		resultChan := make(chan error, 1)

		err := p.pool.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					resultChan <- fmt.Errorf("handler panic: %v", r)
				}
			}()
			resultChan <- next(ctx, key, value)
		})
		if err != nil {
			p.logger.Error("Failed to submit message to worker pool",
				"key", string(key),
				"error", err,
			)
			return fmt.Errorf("failed to submit to worker pool: %w", err)
		}

		// The handler sees ctx itself; returning early would let a retry of
		// the same key overlap this attempt.
		return <-resultChan
	}
}

// Shutdown gracefully shuts down the worker pool.
func (p *Pool) Shutdown() {
	p.logger.Info("Shutting down worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of running workers in the pool.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (p *Pool) Capacity() int {
	return p.pool.Cap()
}
