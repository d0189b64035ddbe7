package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("hits_total", "hits", "kind").WithLabelValues("a").Add(3)

	assert.Contains(t, scrape(t, c), `test_unit_hits_total{kind="a"} 3`)
}

func TestRegister_SameNameReturnsExisting(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "dup", "l").WithLabelValues("x").Inc()
	c.RegisterCounter("dup_total", "dup", "l").WithLabelValues("x").Inc()

	assert.Contains(t, scrape(t, c), `test_unit_dup_total{l="x"} 2`)
}

func TestRegister_TypeMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("thing", "thing")
	g := c.RegisterGauge("thing", "thing")
	assert.IsType(t, noopGaugeVec{}, g)
	assert.NotPanics(t, func() { g.WithLabelValues().Set(1) })
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_seconds", "op", nil, "op")
	d := NewTimer(h.WithLabelValues("rank")).ObserveDuration()
	assert.GreaterOrEqual(t, d, time.Duration(0))

	out := scrape(t, c)
	assert.Contains(t, out, `test_unit_op_seconds_count{op="rank"} 1`)
}

func TestAppMetrics(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RecordQuery("rank", 2*time.Millisecond, nil)
	m.RecordQuery("pca", time.Millisecond, errors.New("boom"))
	m.RecordCatalogLoad("fallback", 20, nil)
	m.RecordCacheAccess("catalog", true)
	m.RecordCacheAccess("catalog", false)
	m.RecordEvent("catalog.imported", nil)
	m.RecordHTTPRequest(http.MethodPost, "/api/v1/recommendations", 200, time.Millisecond)
	m.SetHealth("redis", true)

	out := scrape(t, c)
	for _, want := range []string{
		`test_unit_queries_total{operation="rank",status="success"} 1`,
		`test_unit_queries_total{operation="pca",status="error"} 1`,
		`test_unit_catalog_records{source="fallback"} 20`,
		`test_unit_catalog_loads_total{source="fallback",status="success"} 1`,
		`test_unit_cache_hits_total{cache="catalog"} 1`,
		`test_unit_cache_misses_total{cache="catalog"} 1`,
		`test_unit_events_published_total{status="success",topic="catalog.imported"} 1`,
		`test_unit_http_requests_total{method="POST",route="/api/v1/recommendations",status_code="200"} 1`,
		`test_unit_health_check_status{component="redis"} 1`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestNoopAppMetrics(t *testing.T) {
	m := NewNoopAppMetrics()
	assert.NotPanics(t, func() {
		m.RecordQuery("rank", time.Millisecond, nil)
		m.RecordCatalogLoad("file", 3, nil)
		m.SetHealth("db", false)
	})
}
