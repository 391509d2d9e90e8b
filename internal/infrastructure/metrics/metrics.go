package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Projection metrics
	EventsProcessed      *prometheus.CounterVec
	ProjectionDuration   *prometheus.HistogramVec
	ConcurrencyConflicts *prometheus.CounterVec
	Anomalies            *prometheus.CounterVec

	// Stream metrics
	DeadLettered *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consolidation_events_processed_total",
				Help: "Total number of entry events processed by outcome",
			},
			[]string{"event_type", "outcome"},
		),
		ProjectionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "consolidation_projection_duration_seconds",
				Help:    "Duration of event projection including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
		ConcurrencyConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consolidation_concurrency_conflicts_total",
				Help: "Optimistic concurrency conflicts on daily balances",
			},
			[]string{"event_type"},
		),
		Anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consolidation_anomalies_total",
				Help: "Projection anomalies such as reverts against a missing day",
			},
			[]string{"kind"},
		),
		DeadLettered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consolidation_messages_dead_lettered_total",
				Help: "Stream messages moved to the dead-letter stream",
			},
			[]string{"reason"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consolidation_balance_cache_lookups_total",
				Help: "Daily balance cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// EventProcessed implements usecase.ProjectionObserver.
func (m *Metrics) EventProcessed(eventType, outcome string, duration time.Duration) {
	m.EventsProcessed.WithLabelValues(eventType, outcome).Inc()
	m.ProjectionDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// ConcurrencyConflict implements usecase.ProjectionObserver.
func (m *Metrics) ConcurrencyConflict(eventType string) {
	m.ConcurrencyConflicts.WithLabelValues(eventType).Inc()
}

// Anomaly implements usecase.ProjectionObserver.
func (m *Metrics) Anomaly(kind string) {
	m.Anomalies.WithLabelValues(kind).Inc()
}

// CacheLookup implements usecase.ProjectionObserver.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// MessageDeadLettered implements redisstream.Observer.
func (m *Metrics) MessageDeadLettered(reason string) {
	m.DeadLettered.WithLabelValues(reason).Inc()
}
