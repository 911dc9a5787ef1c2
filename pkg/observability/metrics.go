package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthDecisionsTotal  *prometheus.CounterVec
	ResolveDuration     prometheus.Histogram
	SessionsCreated     prometheus.Counter

	// Content metrics
	ContentOpsTotal     *prometheus.CounterVec
	ContentErrorsTotal  *prometheus.CounterVec

	// Search index metrics
	IndexOpsTotal       *prometheus.CounterVec
	IndexRebuildSeconds prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_auth_decisions_total",
				Help: "Permission gate decisions by outcome",
			},
			[]string{"decision"},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "folio_identity_resolve_duration_seconds",
				Help:    "Time to compute the effective permission set",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		SessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "folio_sessions_created_total",
				Help: "New sessions established",
			},
		),
		ContentOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_content_operations_total",
				Help: "Content repository operations by kind",
			},
			[]string{"schema", "operation"},
		),
		ContentErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_content_errors_total",
				Help: "Content repository failures by kind",
			},
			[]string{"schema", "operation"},
		),
		IndexOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_search_index_operations_total",
				Help: "Search index mutations by operation",
			},
			[]string{"operation"},
		),
		IndexRebuildSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "folio_search_index_rebuild_seconds",
				Help:    "Full index rebuild duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_cache_hits_total",
				Help: "Registry cache hits by entity",
			},
			[]string{"entity"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_cache_misses_total",
				Help: "Registry cache misses by entity",
			},
			[]string{"entity"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthDecisionsTotal,
		m.ResolveDuration,
		m.SessionsCreated,
		m.ContentOpsTotal,
		m.ContentErrorsTotal,
		m.IndexOpsTotal,
		m.IndexRebuildSeconds,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns an http.Handler serving the registry in Prometheus format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
