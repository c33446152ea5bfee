package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the authorization service.
type Metrics struct {
	// Decision metrics
	ChecksTotal      *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec
	DenialsTotal     *prometheus.CounterVec
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Role administration metrics
	RoleMutationsTotal *prometheus.CounterVec
	RolesTotal         prometheus.Gauge
	AssignmentsTotal   prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on the given registry. A
// nil registry gets a fresh one, keeping tests isolated from the global
// default.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_checks_total",
				Help: "Total number of authorization checks",
			},
			[]string{"kind", "decision"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authd_check_duration_seconds",
				Help:    "Authorization check duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
			},
			[]string{"kind"},
		),
		DenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_denials_total",
				Help: "Total number of denied checks by reason",
			},
			[]string{"reason"},
		),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authd_decision_cache_hits_total",
			Help: "Total number of decision cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authd_decision_cache_misses_total",
			Help: "Total number of decision cache misses",
		}),
		RoleMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_role_mutations_total",
				Help: "Total number of role and assignment mutations",
			},
			[]string{"operation"},
		),
		RolesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authd_roles_total",
			Help: "Number of stored roles",
		}),
		AssignmentsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authd_role_assignments_total",
			Help: "Number of stored role assignments",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authd_db_connections_active",
			Help: "Number of active database connections",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authd_db_connections_idle",
			Help: "Number of idle database connections",
		}),
	}

	registry.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.DenialsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RoleMutationsTotal,
		m.RolesTotal,
		m.AssignmentsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)
	return m
}

// ObserveCheck records one decision with its evaluation latency.
func (m *Metrics) ObserveCheck(kind string, allowed bool, reason string, duration time.Duration) {
	decision := "allow"
	if !allowed {
		decision = "deny"
		m.DenialsTotal.WithLabelValues(reason).Inc()
	}
	m.ChecksTotal.WithLabelValues(kind, decision).Inc()
	m.CheckDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
