package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRankCallsTotal       = "feed_rank_calls_total"
	MetricRankDuration         = "feed_rank_duration_seconds"
	MetricCandidatePoolSize    = "feed_candidate_pool_size"
	MetricFallbackTotal        = "feed_candidate_fallback_total"
	MetricSuppressedPostsTotal = "feed_suppressed_posts_total"
)

// Surface label values for ranking calls.
const (
	SurfaceHome    = "home"
	SurfaceExplore = "explore"
	SurfaceSearch  = "search"
)

// Status constants for call completion.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
)

// Metrics contains Prometheus metrics for feed ranking operations.
// All operations are thread-safe. A nil *Metrics is valid and records
// nothing, so wiring metrics stays optional in tests.
type Metrics struct {
	rankCalls    *prometheus.CounterVec
	rankDuration *prometheus.HistogramVec
	poolSize     *prometheus.HistogramVec
	fallbacks    *prometheus.CounterVec
	suppressed   *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankCallsTotal,
				Help: "Total number of ranking calls by surface and status",
			},
			[]string{"surface", "status"},
		),
		rankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankDuration,
				Help:    "Histogram of ranking call duration in seconds by surface",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
			},
			[]string{"surface"},
		),
		poolSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricCandidatePoolSize,
				Help:    "Histogram of raw candidate pool sizes by surface",
				Buckets: []float64{0, 5, 10, 25, 50, 100, 200, 400},
			},
			[]string{"surface"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFallbackTotal,
				Help: "Total number of candidate queries widened to their fallback stage",
			},
			[]string{"surface"},
		),
		suppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSuppressedPostsTotal,
				Help: "Total number of candidates removed by the negative-feedback filter",
			},
			[]string{"surface"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.rankCalls,
		m.rankDuration,
		m.poolSize,
		m.fallbacks,
		m.suppressed,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRankCalls increments the ranking call counter.
func (m *Metrics) IncRankCalls(surface, status string) {
	if m == nil {
		return
	}
	m.rankCalls.WithLabelValues(surface, status).Inc()
}

// ObserveRankDuration records a ranking call duration sample.
func (m *Metrics) ObserveRankDuration(surface string, seconds float64) {
	if m == nil {
		return
	}
	m.rankDuration.WithLabelValues(surface).Observe(seconds)
}

// ObservePoolSize records a raw candidate pool size sample.
func (m *Metrics) ObservePoolSize(surface string, size int) {
	if m == nil {
		return
	}
	m.poolSize.WithLabelValues(surface).Observe(float64(size))
}

// IncFallback increments the fallback-widening counter.
func (m *Metrics) IncFallback(surface string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(surface).Inc()
}

// AddSuppressed adds to the suppressed-posts counter.
func (m *Metrics) AddSuppressed(surface string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.suppressed.WithLabelValues(surface).Add(float64(count))
}
