// Package metrics records pipeline counters and latencies. Components depend
// on the Recorder interface; NoOp is used when METRICS_ENABLED is false.
package metrics

import "time"

// Consume outcomes reported by the Kafka consumer.
const (
	OutcomeSuccess      = "success"
	OutcomeRetry        = "retry"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeDropped      = "dropped"
)

// Recorder defines the metrics surface used by both services.
type Recorder interface {
	// Messaging
	RecordConsume(topic, outcome string, duration time.Duration)
	RecordPublish(topic string, success bool, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)

	// Domain
	RecordTransactionCreated(published bool)
	RecordFraudDecision(status string)
	RecordStatusUpdate(status string, applied bool)
	RecordOutboxRelay(outcome string)

	// Read cache
	RecordCacheLookup(hit bool)
}

// CircuitState mirrors the breaker states as gauge values.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOp discards everything.
type NoOp struct{}

var _ Recorder = NoOp{}

func (NoOp) RecordConsume(topic, outcome string, duration time.Duration)     {}
func (NoOp) RecordPublish(topic string, success bool, duration time.Duration) {}
func (NoOp) RecordCircuitState(name string, state CircuitState)               {}
func (NoOp) RecordTransactionCreated(published bool)                          {}
func (NoOp) RecordFraudDecision(status string)                                {}
func (NoOp) RecordStatusUpdate(status string, applied bool)                   {}
func (NoOp) RecordOutboxRelay(outcome string)                                 {}
func (NoOp) RecordCacheLookup(hit bool)                                       {}
