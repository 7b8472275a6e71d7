// Package metrics exposes the engine's observable structure (batch
// sizes, attempt counts, in-flight totals) as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcome label values
const (
	OutcomeResolved = "resolved"
	OutcomeRejected = "rejected"
)

// Metrics holds the engine's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	batchesTotal  prometheus.Counter
	batchSize     prometheus.Histogram
	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram
	attempts      prometheus.Histogram
	bypassTotal   prometheus.Counter
	settleMisses  prometheus.Counter
	inFlight      prometheus.GaugeFunc
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer, inFlight func() float64) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		batchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gqlherd",
			Name:      "batches_total",
			Help:      "Total number of batches dispatched",
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gqlherd",
			Name:      "batch_size",
			Help:      "Number of requests per dispatched batch",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gqlherd",
			Name:      "queries_total",
			Help:      "Total number of settled queries by outcome",
		}, []string{"outcome"}),
		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gqlherd",
			Name:      "query_duration_seconds",
			Help:      "Time from dispatch to settlement per query",
			Buckets:   prometheus.DefBuckets,
		}),
		attempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gqlherd",
			Name:      "query_attempts",
			Help:      "Round trips spent per settled query",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		bypassTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gqlherd",
			Name:      "bypass_total",
			Help:      "Requests that skipped batching via the fresh path",
		}),
		settleMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gqlherd",
			Name:      "settle_misses_total",
			Help:      "Settlements that found no registered handle",
		}),
		inFlight: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "gqlherd",
			Name:      "inflight_requests",
			Help:      "Requests currently anywhere in the pipeline",
		}, inFlight),
	}
}

// ObserveBatch records one dispatched batch of the given size
func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.batchesTotal.Inc()
	m.batchSize.Observe(float64(size))
}

// ObserveQuery records one settled query
func (m *Metrics) ObserveQuery(outcome string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.attempts.Observe(float64(attempts))
	m.queryDuration.Observe(elapsed.Seconds())
}

// IncBypass records one fresh-required submission
func (m *Metrics) IncBypass() {
	if m == nil {
		return
	}
	m.bypassTotal.Inc()
}

// IncSettleMiss records one settlement without a registered handle
func (m *Metrics) IncSettleMiss() {
	if m == nil {
		return
	}
	m.settleMisses.Inc()
}
