package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scoring and dispatch pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Profile metrics
	ProfilesBuilt   *prometheus.CounterVec
	ProfileFailures *prometheus.CounterVec
	ProfileLatency  prometheus.Histogram
	ValueScore      prometheus.Histogram

	// Dispatch metrics
	DispatchDecisions *prometheus.CounterVec
	DispatchedValue   *prometheus.CounterVec
	RecorderErrors    *prometheus.CounterVec

	// Conversions API metrics
	CAPIRequests *prometheus.CounterVec
	CAPILatency  *prometheus.HistogramVec

	// System metrics
	DBConnections    *prometheus.GaugeVec
	RedisLatency     *prometheus.HistogramVec
	GeoLookupLatency *prometheus.HistogramVec
	RateLimitHits    *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProfilesBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ltv_profiles_built_total",
				Help:      "Customer LTV profiles computed, by segment",
			},
			[]string{"segment"},
		),
		ProfileFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ltv_profile_failures_total",
				Help:      "Profile computations that produced no profile",
			},
			[]string{"reason"}, // no_history, history_error, invalid_input
		),
		ProfileLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ltv_profile_latency_seconds",
				Help:      "Time to load history and score a customer",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		ValueScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "meta_value_score",
				Help:      "Distribution of Meta value scores",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
		),

		DispatchDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_decisions_total",
				Help:      "Lifecycle dispatch decisions",
			},
			[]string{"stage", "event_name", "outcome"},
		),
		DispatchedValue: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatched_value_total",
				Help:      "Sum of event values accepted by the Conversions API",
			},
			[]string{"event_name"},
		),
		RecorderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_recorder_errors_total",
				Help:      "Failures writing dispatch records",
			},
			[]string{"recorder"},
		),

		CAPIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capi_requests_total",
				Help:      "Requests sent to the Meta Conversions API",
			},
			[]string{"event_name", "status"},
		),
		CAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capi_request_latency_seconds",
				Help:      "Meta Conversions API request latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"status"},
		),

		DBConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),
		RedisLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_latency_seconds",
				Help:      "Redis operation latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"operation"},
		),
		GeoLookupLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"cache_hit"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"path"},
		),
	}
}

// Handler returns the metrics HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordProfile records a computed profile.
func (m *Metrics) RecordProfile(segment string, score int, latency time.Duration) {
	if m == nil {
		return
	}
	m.ProfilesBuilt.WithLabelValues(segment).Inc()
	m.ValueScore.Observe(float64(score))
	m.ProfileLatency.Observe(latency.Seconds())
}

// RecordProfileFailure records a profile computation that yielded nothing.
func (m *Metrics) RecordProfileFailure(reason string) {
	if m == nil {
		return
	}
	m.ProfileFailures.WithLabelValues(reason).Inc()
}

// RecordDecision records a dispatcher decision and its outcome.
func (m *Metrics) RecordDecision(stage, eventName, outcome string) {
	if m == nil {
		return
	}
	m.DispatchDecisions.WithLabelValues(stage, eventName, outcome).Inc()
}

// RecordCAPIRequest records one Conversions API call.
func (m *Metrics) RecordCAPIRequest(eventName, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.CAPIRequests.WithLabelValues(eventName, status).Inc()
	m.CAPILatency.WithLabelValues(status).Observe(latency.Seconds())
}

// RecordDispatchedValue adds an accepted event value.
func (m *Metrics) RecordDispatchedValue(eventName string, value float64) {
	if m == nil || value <= 0 {
		return
	}
	m.DispatchedValue.WithLabelValues(eventName).Add(value)
}

// RecordRecorderError records a failed dispatch record write.
func (m *Metrics) RecordRecorderError(recorder string) {
	if m == nil {
		return
	}
	m.RecorderErrors.WithLabelValues(recorder).Inc()
}

// RecordRedisOp records Redis operation latency.
func (m *Metrics) RecordRedisOp(operation string, latency time.Duration) {
	if m == nil {
		return
	}
	m.RedisLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(cacheHit bool, latency time.Duration) {
	if m == nil {
		return
	}
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	m.GeoLookupLatency.WithLabelValues(hit).Observe(latency.Seconds())
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	if m == nil {
		return
	}
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(path string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(path).Inc()
}
