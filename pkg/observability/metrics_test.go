package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_FreshRegistry(t *testing.T) {
	// two instances must not collide on registration
	a := NewMetrics(nil)
	b := NewMetrics(nil)
	assert.NotEqual(t, a.Registry(), b.Registry())
}

func TestObserveCheck(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveCheck("module", true, "", 2*time.Millisecond)
	m.ObserveCheck("module", false, "insufficient_permissions", time.Millisecond)
	m.ObserveCheck("role", false, "role_not_found", time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues("module", "allow")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues("module", "deny")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DenialsTotal.WithLabelValues("insufficient_permissions")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DenialsTotal.WithLabelValues("role_not_found")))
}

func TestObserveHTTPRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveHTTPRequest("POST", "/authz/check", 200, 5*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/authz/check", 200, 3*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/authz/roles", 404, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/authz/check", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/authz/roles", "404")))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveCheck("default", true, "", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "authd_checks_total")
}
