package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yape-transaction-pipeline/internal/config"
)

// DeadLetter is a message the consumer gave up on, with where it came from.
type DeadLetter struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []kafka.Header
	Reason    string
	Attempts  int
}

type DLQProducer struct {
	logger   *slog.Logger
	writer   KafkaWriter
	dlqTopic string
}

var _ DeadLetterPublisher = (*DLQProducer)(nil)

// Returns nil producer if cfg.DLQTopic is empty (DLQ disabled)
func NewDLQProducer(logger *slog.Logger, cfg *config.KafkaConfig) *DLQProducer {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured. DLQProducer will not be initialized.")
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerList()...),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.PublishTimeout,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &DLQProducer{
		logger:   logger,
		writer:   writer,
		dlqTopic: cfg.DLQTopic,
	}
}

type dlqPayload struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int    `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	DLQReason         string `json:"dlq_reason"`
	Attempts          int    `json:"attempts"`
	Timestamp         string `json:"timestamp"`
}

// PublishToDLQ wraps the original bytes untouched so the message can be
// inspected or replayed. The original headers are carried over.
func (p *DLQProducer) PublishToDLQ(ctx context.Context, letter DeadLetter) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("DLQ producer not initialized")
	}

	value, err := json.Marshal(dlqPayload{
		OriginalTopic:     letter.Topic,
		OriginalPartition: letter.Partition,
		OriginalOffset:    letter.Offset,
		OriginalKey:       string(letter.Key),
		OriginalValue:     string(letter.Value),
		DLQReason:         letter.Reason,
		Attempts:          letter.Attempts,
		Timestamp:         time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message value: %w", err)
	}

	headers := make([]kafka.Header, 0, len(letter.Headers)+1)
	headers = append(headers, letter.Headers...)
	headers = append(headers, kafka.Header{Key: HeaderDLQReason, Value: []byte(letter.Reason)})

	msg := kafka.Message{
		Key:     letter.Key,
		Value:   value,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message to DLQ",
			"topic", p.dlqTopic,
			"original_topic", letter.Topic,
			"key", string(letter.Key),
			"error", err,
		)
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Warn("Published message to DLQ",
		"topic", p.dlqTopic,
		"original_topic", letter.Topic,
		"partition", letter.Partition,
		"offset", letter.Offset,
		"key", string(letter.Key),
		"reason", letter.Reason,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ Kafka message producer", "topic", p.dlqTopic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
