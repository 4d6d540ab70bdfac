package producers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"
	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/domain/event"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

// BreakerPublisher stops hammering an unavailable broker. While the circuit is
// open Publish fails fast with shared.ErrPublish, which callers already treat
// as a retryable publish failure.
type BreakerPublisher struct {
	next   EventPublisher
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

var _ EventPublisher = (*BreakerPublisher)(nil)

func NewBreakerPublisher(logger *slog.Logger, next EventPublisher, cfg *config.CircuitBreakerConfig, recorder metrics.Recorder) *BreakerPublisher {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	const name = "event-producer"

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// A cancelled caller says nothing about broker health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			recorder.RecordCircuitState(name, circuitState(to))
		},
	}

	return &BreakerPublisher{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

func (b *BreakerPublisher) Publish(ctx context.Context, topic string, key string, env *event.Envelope) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, topic, key, env)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("Circuit breaker rejected publish",
			append(env.LogAttrs(), "topic", topic, "state", b.cb.State().String())...,
		)
		return fmt.Errorf("%w: %w", shared.ErrPublish, err)
	}
	return err
}

// State reports the breaker state.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}

// HealthCheck fails while the circuit is open so /health reports the broker
// as degraded without publishing anything.
func (b *BreakerPublisher) HealthCheck(context.Context) error {
	if state := b.cb.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("circuit %s", state.String())
	}
	return nil
}

func (b *BreakerPublisher) Close() error {
	return b.next.Close()
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}
