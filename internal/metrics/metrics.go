package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for Reader-Pulse.
type Metrics struct {
	// Ingestion metrics
	EventsTracked *prometheus.CounterVec
	TrackFailures *prometheus.CounterVec

	// Report metrics
	ReportRequests *prometheus.CounterVec
	ReportLatency  *prometheus.HistogramVec
	ReportErrors   *prometheus.CounterVec

	// Engagement metrics
	Hearts prometheus.Counter

	// Newsletter metrics
	Subscriptions *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		EventsTracked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_tracked_total",
				Help:      "Total interaction events accepted into the log",
			},
			[]string{"event_type", "language"},
		),
		TrackFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "track_failures_total",
				Help:      "Ingestion writes that failed",
			},
			[]string{"reason"},
		),
		ReportRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_requests_total",
				Help:      "Report requests served",
			},
			[]string{"report"},
		),
		ReportLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_latency_seconds",
				Help:      "Report computation latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"report"},
		),
		ReportErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_errors_total",
				Help:      "Report requests that failed on the event log fetch",
			},
			[]string{"report"},
		),
		Hearts: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "article_hearts_total",
				Help:      "Article heart increments",
			},
		),
		Subscriptions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "newsletter_subscriptions_total",
				Help:      "Newsletter subscription outcomes",
			},
			[]string{"outcome"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by rate limiting",
			},
			[]string{"path"},
		),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEventTracked counts one accepted event.
func (m *Metrics) RecordEventTracked(eventType, language string) {
	m.EventsTracked.WithLabelValues(eventType, language).Inc()
}

// RecordTrackFailure counts one failed ingestion write.
func (m *Metrics) RecordTrackFailure(reason string) {
	m.TrackFailures.WithLabelValues(reason).Inc()
}

// ObserveReport records one served report and its latency.
func (m *Metrics) ObserveReport(report string, d time.Duration) {
	m.ReportRequests.WithLabelValues(report).Inc()
	m.ReportLatency.WithLabelValues(report).Observe(d.Seconds())
}

// RecordReportError counts one failed report.
func (m *Metrics) RecordReportError(report string) {
	m.ReportErrors.WithLabelValues(report).Inc()
}

// RecordHeart counts one heart increment.
func (m *Metrics) RecordHeart() {
	m.Hearts.Inc()
}

// RecordSubscription counts one subscription outcome.
func (m *Metrics) RecordSubscription(outcome string) {
	m.Subscriptions.WithLabelValues(outcome).Inc()
}

// RecordRateLimitHit counts one rate-limited request.
func (m *Metrics) RecordRateLimitHit(path string) {
	m.RateLimitHits.WithLabelValues(path).Inc()
}
