package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFallbackTotal       = "search_fallback_total"
	MetricCountDegradedTotal  = "search_count_degraded_total"
	MetricUnderReturnTotal    = "search_rank_under_return_total"
	MetricEnrichmentGapsTotal = "search_enrichment_gaps_total"
	MetricRankDuration        = "search_rank_duration_seconds"
)

// Metrics contains Prometheus metrics for the search service.
// All operations are safe on a nil receiver so tests can wire a nil
// Metrics without guarding every call site.
type Metrics struct {
	fallbackTotal       *prometheus.CounterVec
	countDegradedTotal  prometheus.Counter
	underReturnTotal    prometheus.Counter
	enrichmentGapsTotal prometheus.Counter
	rankDuration        prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them.
func NewMetrics() *Metrics {
	return &Metrics{
		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFallbackTotal,
				Help: "Total number of requests served by the fallback path, by reason",
			},
			[]string{"reason"},
		),
		countDegradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCountDegradedTotal,
				Help: "Total number of exact-predicate count failures recovered by the approximate count",
			},
		),
		underReturnTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricUnderReturnTotal,
				Help: "Total number of non-final pages where the ranking source returned fewer items than the limit",
			},
		),
		enrichmentGapsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricEnrichmentGapsTotal,
				Help: "Total number of ranked candidates assembled from snapshot fields because the relational record was missing",
			},
		),
		rankDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRankDuration,
				Help:    "Ranking source call duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
			},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.fallbackTotal,
		m.countDegradedTotal,
		m.underReturnTotal,
		m.enrichmentGapsTotal,
		m.rankDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Fallback reasons.
const (
	FallbackReasonRequested = "requested"
	FallbackReasonRankError = "rank_error"
)

// ObserveFallback records one request served by the fallback path.
func (m *Metrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(reason).Inc()
}

// ObserveCountDegraded records one exact-count failure recovered by the
// approximate count.
func (m *Metrics) ObserveCountDegraded() {
	if m == nil {
		return
	}
	m.countDegradedTotal.Inc()
}

// ObserveUnderReturn records one under-return anomaly from the ranking
// source.
func (m *Metrics) ObserveUnderReturn() {
	if m == nil {
		return
	}
	m.underReturnTotal.Inc()
}

// ObserveEnrichmentGaps records n candidates assembled from snapshots.
func (m *Metrics) ObserveEnrichmentGaps(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.enrichmentGapsTotal.Add(float64(n))
}

// ObserveRankDuration records one ranking source call duration.
func (m *Metrics) ObserveRankDuration(seconds float64) {
	if m == nil {
		return
	}
	m.rankDuration.Observe(seconds)
}
