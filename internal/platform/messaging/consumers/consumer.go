package consumers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	// Subscribe blocks until ctx is cancelled or the reader is closed.
	Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error
	Close() error
}

// KafkaReader wraps kafka.Reader methods for testing
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReaderFactory opens a group reader for one topic.
type ReaderFactory func(topic string, groupID string) KafkaReader

// RetryPolicy controls redelivery of a failed message. kafka-go has no nack,
// so a failure is retried in place before the offset moves on.
type RetryPolicy struct {
	HandlerTimeout time.Duration // Deadline for a single attempt
	MaxAttempts    int           // Attempts before the message is dead-lettered
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

const (
	laneBuffer         = 64
	fetchErrorBackoff  = time.Second
	commitTimeout      = 10 * time.Second
	deadLetterTimeout  = 10 * time.Second
	maxAttemptsDefault = 10
)

var errDeadLetterDisabled = errors.New("dead letter queue disabled")

// KafkaConsumer implements Consumer using Kafka. Messages of one partition are
// handled strictly in order on a dedicated lane; different partitions run
// concurrently. An offset is committed only after its handler succeeded or
// the message was dead-lettered; a message that can be neither stays on its
// lane and is retried at the maximum backoff.
type KafkaConsumer struct {
	logger    *slog.Logger
	newReader ReaderFactory
	dlq       producers.DeadLetterPublisher
	metrics   metrics.Recorder
	policy    RetryPolicy

	mu      sync.Mutex
	readers []KafkaReader
}

// NewKafkaConsumer wires kafka-go group readers. dlq may be nil, in which case
// exhausted messages keep being retried instead of parked.
func NewKafkaConsumer(logger *slog.Logger, cfg *config.KafkaConfig, dlq producers.DeadLetterPublisher, recorder metrics.Recorder) *KafkaConsumer {
	factory := func(topic string, groupID string) KafkaReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.BrokerList(),
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: cfg.StartOffset,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Error(fmt.Sprintf(msg, args...), "topic", topic, "group_id", groupID)
			}),
		})
	}

	policy := RetryPolicy{
		HandlerTimeout: cfg.HandlerTimeout,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.RetryBackoff,
		MaxBackoff:     cfg.MaxRetryBackoff,
	}
	return newKafkaConsumer(logger, factory, policy, dlq, recorder)
}

func newKafkaConsumer(logger *slog.Logger, factory ReaderFactory, policy RetryPolicy, dlq producers.DeadLetterPublisher, recorder metrics.Recorder) *KafkaConsumer {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = maxAttemptsDefault
	}
	return &KafkaConsumer{
		logger:    logger,
		newReader: factory,
		dlq:       dlq,
		metrics:   recorder,
		policy:    policy,
	}
}

// Subscribe fetches from topic and dispatches every message to the lane of
// its partition. It returns nil once ctx is cancelled and all lanes drained.
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error {
	reader := c.newReader(topic, groupID)
	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	c.logger.Info("Subscribed to Kafka topic",
		"topic", topic,
		"group_id", groupID,
	)

	lanes := make(map[int]chan kafka.Message)
	var wg sync.WaitGroup
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
		c.logger.Info("Consumer stopped", "topic", topic, "group_id", groupID)
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka",
				"topic", topic,
				"group_id", groupID,
				"error", err,
			)
			if !sleep(ctx, fetchErrorBackoff) {
				return nil
			}
			continue
		}

		lane, ok := lanes[msg.Partition]
		if !ok {
			lane = make(chan kafka.Message, laneBuffer)
			lanes[msg.Partition] = lane
			wg.Add(1)
			go func() {
				defer wg.Done()
				for m := range lane {
					c.process(ctx, reader, handler, m)
				}
			}()
		}

		select {
		case lane <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// process runs the handler until it succeeds or attempts are exhausted, then
// commits. On shutdown the message is left uncommitted for redelivery.
func (c *KafkaConsumer) process(ctx context.Context, reader KafkaReader, handler MessageHandler, msg kafka.Message) {
	if ctx.Err() != nil {
		return
	}
	logger := c.logger.With(
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
	)
	logger.Debug("Received message from Kafka")

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := c.invoke(ctx, handler, msg)
		if err == nil {
			c.metrics.RecordConsume(msg.Topic, metrics.OutcomeSuccess, time.Since(start))
			c.commit(reader, msg, logger)
			return
		}
		if ctx.Err() != nil {
			logger.Info("Shutting down with message unacknowledged", "attempt", attempt, "error", err)
			return
		}

		if attempt >= c.policy.MaxAttempts {
			dlqErr := c.deadLetter(msg, attempt, err)
			if dlqErr == nil {
				c.metrics.RecordConsume(msg.Topic, metrics.OutcomeDeadLettered, time.Since(start))
				logger.Error("Message failed after max attempts, dead-lettered",
					"attempts", attempt,
					"error", err,
				)
				c.commit(reader, msg, logger)
				return
			}
			// The offset stays put until the message is handled or parked.
			logger.Error("Message failed after max attempts and could not be dead-lettered, retrying",
				"attempts", attempt,
				"error", err,
				"dlq_error", dlqErr,
			)
		}

		c.metrics.RecordConsume(msg.Topic, metrics.OutcomeRetry, time.Since(start))
		wait := c.policy.backoff(attempt)
		logger.Warn("Failed to process message, will retry",
			"attempt", attempt,
			"retry_in", wait.String(),
			"error", err,
		)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// invoke runs one attempt under the per-attempt deadline. A panicking handler
// counts as a failed attempt.
func (c *KafkaConsumer) invoke(ctx context.Context, handler MessageHandler, msg kafka.Message) (err error) {
	if c.policy.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.HandlerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg.Key, msg.Value)
}

func (c *KafkaConsumer) deadLetter(msg kafka.Message, attempts int, cause error) error {
	if c.dlq == nil {
		return errDeadLetterDisabled
	}
	ctx, cancel := context.WithTimeout(context.Background(), deadLetterTimeout)
	defer cancel()

	err := c.dlq.PublishToDLQ(ctx, producers.DeadLetter{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   msg.Headers,
		Reason:    cause.Error(),
		Attempts:  attempts,
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter message: %w", err)
	}
	return nil
}

// commit uses its own context so a message that finished just before shutdown
// is still acknowledged.
func (c *KafkaConsumer) commit(reader KafkaReader, msg kafka.Message, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	if err := reader.CommitMessages(ctx, msg); err != nil {
		logger.Error("Failed to commit message", "error", err)
		return
	}
	logger.Debug("Message committed successfully")
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.readers = nil
	return errors.Join(errs...)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
