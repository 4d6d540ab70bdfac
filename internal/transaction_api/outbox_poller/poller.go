package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/domain/outbox"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// Relay outcomes reported to metrics.
const (
	RelayPublished = "published"
	RelayRetry     = "retry"
	RelayFailed    = "failed"
)

// Poller republishes outbox messages whose inline publish never completed
type Poller struct {
	outboxRepo       outbox.Repository
	relay            EventRelay
	logger           *slog.Logger
	metrics          metrics.Recorder
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	grace            time.Duration
	now              func() time.Time
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	relay EventRelay,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *Poller {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Poller{
		outboxRepo:       outboxRepo,
		relay:            relay,
		logger:           logger,
		metrics:          recorder,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		grace:            cfg.PublishGrace,
		now:              time.Now,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
		"publish_grace", p.grace.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

// processPendingMessages skips rows younger than the grace period; those
// still belong to an inline publish that may be in flight.
func (p *Poller) processPendingMessages(ctx context.Context) error {
	cutoff := p.now().UTC().Add(-p.grace)
	messages, err := p.outboxRepo.GetPending(ctx, cutoff, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger := p.logger.With("outbox_id", msg.ID, "transaction_id", msg.TransactionID.String(), "event_id", msg.EventID)

		err := p.relay.Relay(ctx, msg)
		if err == nil {
			p.metrics.RecordOutboxRelay(RelayPublished)
			continue
		}

		if errors.Is(err, ErrUndecodablePayload) {
			p.metrics.RecordOutboxRelay(RelayFailed)
			logger.Error("Outbox message cannot be decoded, not retrying", "error", err)
			continue
		}

		logger.Error("Failed to relay outbox message", "current_attempts", msg.Attempts, "error", err)

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			logger.Error("Failed to increment attempts for outbox message", "error", errInc)
			continue
		}
		msg.IncrementAttempts()

		if msg.Attempts >= p.maxRetryAttempts {
			p.metrics.RecordOutboxRelay(RelayFailed)
			logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
				"attempts_made", msg.Attempts,
			)
			if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
				logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", errUpdate)
				continue
			}
			msg.MarkAsFailed()
			continue
		}
		p.metrics.RecordOutboxRelay(RelayRetry)
	}
	return nil
}
