package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements Recorder on a private registry so each service
// exposes only its own collectors plus the Go runtime ones.
type Prometheus struct {
	registry *prometheus.Registry

	consumed       *prometheus.CounterVec
	consumeLatency *prometheus.HistogramVec
	published      *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	circuitState   *prometheus.GaugeVec
	circuitOpens   *prometheus.CounterVec
	created        *prometheus.CounterVec
	fraudDecisions *prometheus.CounterVec
	statusUpdates  *prometheus.CounterVec
	outboxRelays   *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus builds and registers every collector under namespace.
func NewPrometheus(namespace string) (*Prometheus, error) {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		consumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_consumed_total",
				Help:      "Kafka messages handled per topic and outcome",
			},
			[]string{"topic", "outcome"},
		),
		consumeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "message_handle_duration_seconds",
				Help:      "Time spent in the message handler, per attempt",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"topic"},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Events written to Kafka per topic and result",
			},
			[]string{"topic", "success"},
		),
		publishLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_publish_duration_seconds",
				Help:      "Kafka write latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"topic"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Number of times the circuit breaker opened",
			},
			[]string{"name"},
		),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_created_total",
				Help:      "Transactions persisted, by whether the created event was published inline",
			},
			[]string{"published"},
		),
		fraudDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fraud_decisions_total",
				Help:      "Anti-fraud decisions by resulting status",
			},
			[]string{"status"},
		),
		statusUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_updates_total",
				Help:      "Validated events reconciled, by status and whether the row changed",
			},
			[]string{"status", "applied"},
		),
		outboxRelays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_relays_total",
				Help:      "Outbox republish attempts by outcome",
			},
			[]string{"outcome"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Transaction read cache lookups",
			},
			[]string{"hit"},
		),
	}

	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.consumed,
		p.consumeLatency,
		p.published,
		p.publishLatency,
		p.circuitState,
		p.circuitOpens,
		p.created,
		p.fraudDecisions,
		p.statusUpdates,
		p.outboxRelays,
		p.cacheLookups,
	}
	for _, c := range cs {
		if err := p.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry is exposed for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) RecordConsume(topic, outcome string, duration time.Duration) {
	p.consumed.WithLabelValues(topic, outcome).Inc()
	p.consumeLatency.WithLabelValues(topic).Observe(duration.Seconds())
}

func (p *Prometheus) RecordPublish(topic string, success bool, duration time.Duration) {
	p.published.WithLabelValues(topic, strconv.FormatBool(success)).Inc()
	p.publishLatency.WithLabelValues(topic).Observe(duration.Seconds())
}

func (p *Prometheus) RecordCircuitState(name string, state CircuitState) {
	p.circuitState.WithLabelValues(name).Set(float64(state))
	if state == CircuitOpen {
		p.circuitOpens.WithLabelValues(name).Inc()
	}
}

func (p *Prometheus) RecordTransactionCreated(published bool) {
	p.created.WithLabelValues(strconv.FormatBool(published)).Inc()
}

func (p *Prometheus) RecordFraudDecision(status string) {
	p.fraudDecisions.WithLabelValues(status).Inc()
}

func (p *Prometheus) RecordStatusUpdate(status string, applied bool) {
	p.statusUpdates.WithLabelValues(status, strconv.FormatBool(applied)).Inc()
}

func (p *Prometheus) RecordOutboxRelay(outcome string) {
	p.outboxRelays.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) RecordCacheLookup(hit bool) {
	p.cacheLookups.WithLabelValues(strconv.FormatBool(hit)).Inc()
}
