package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/internal/application/catalog"
	"github.com/Arisex96/bio-mat-new/internal/application/recommendation"
	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/internal/interfaces/http/handlers"
	"github.com/Arisex96/bio-mat-new/internal/testutil"
)

func newTestRouter(t *testing.T, checkers ...handlers.HealthChecker) http.Handler {
	t.Helper()
	log := testutil.NewMockLogger()
	src := &testutil.StaticSource{SourceName: "fixture", Catalog: testutil.SampleCatalog()}
	catSvc := catalog.NewService(catalog.Deps{Sources: []material.CatalogSource{src}, Logger: log})
	recSvc := recommendation.NewService(recommendation.Deps{Catalog: catSvc, Logger: log})

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "matsel_test"}, log)
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	return NewRouter(RouterConfig{
		CatalogHandler:        handlers.NewCatalogHandler(catSvc, log, 0),
		RecommendationHandler: handlers.NewRecommendationHandler(recSvc, log),
		AnalyticsHandler:      handlers.NewAnalyticsHandler(recSvc, log),
		HealthHandler:         handlers.NewHealthHandler("test", metrics.SetHealth, checkers...),
		Logger:                log,
		Metrics:               metrics,
		MetricsHandler:        collector.Handler(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RoutesRegistered(t *testing.T) {
	router := newTestRouter(t)
	routes := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/healthz", ""},
		{http.MethodGet, "/readyz", ""},
		{http.MethodGet, "/api/v1/catalog", ""},
		{http.MethodGet, "/api/v1/requirements/default", ""},
		{http.MethodPost, "/api/v1/recommendations", "{}"},
		{http.MethodPost, "/api/v1/recommendations/rank", "{}"},
		{http.MethodPost, "/api/v1/recommendations/deviations", "{}"},
		{http.MethodPost, "/api/v1/recommendations/profile", "{}"},
		{http.MethodPost, "/api/v1/recommendations/export", "{}"},
		{http.MethodPost, "/api/v1/analytics/correlation", "{}"},
		{http.MethodPost, "/api/v1/analytics/pca", `{"seed": 1}`},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := do(t, router, rt.method, rt.path, rt.body)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
	rec := do(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "matsel_test_http_requests_total")
}

func TestRouter_NilHandlersNoPanic(t *testing.T) {
	router := NewRouter(RouterConfig{})
	rec := do(t, router, http.MethodGet, "/api/v1/catalog", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ReadinessReportsFailures(t *testing.T) {
	router := newTestRouter(t,
		handlers.NewChecker("catalog", func(ctx context.Context) error { return nil }),
		handlers.NewChecker("redis", func(ctx context.Context) error { return assert.AnError }),
	)
	rec := do(t, router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp handlers.ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["catalog"].Status)
	assert.Equal(t, "unhealthy", resp.Components["redis"].Status)
}

func TestRouter_RankAndErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/recommendations/rank", `{"k": 2, "requirements": {"Su": {"value": 1020, "weight": 1}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res recommendation.RankResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Ranked, 2)
	assert.Equal(t, "fixture-v1", res.CatalogVersion)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"negative k", "/api/v1/recommendations/rank", `{"k": -1}`, http.StatusUnprocessableEntity, "MAT_001"},
		{"weight out of range", "/api/v1/recommendations", `{"requirements": {"Ro": {"value": 7800, "weight": 3}}}`, http.StatusUnprocessableEntity, "MAT_001"},
		{"unknown property", "/api/v1/recommendations/rank", `{"requirements": {"Colour": {"value": 1, "weight": 1}}}`, http.StatusUnprocessableEntity, "MAT_001"},
		{"malformed body", "/api/v1/recommendations/rank", `{"k":`, http.StatusBadRequest, "COMMON_002"},
		{"text column", "/api/v1/analytics/correlation", `{"columns": ["Su", "Desc"]}`, http.StatusUnprocessableEntity, "MAT_001"},
		{"oversized body", "/api/v1/analytics/correlation", `{"columns": ["` + strings.Repeat("a", int(handlers.MaxJSONBodySize)) + `"]}`, http.StatusBadRequest, "COMMON_002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			var e handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestRouter_ExportAttachment(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/api/v1/recommendations/export", `{"k": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), csvcatalog.ExportFileName)
	assert.NotEmpty(t, rec.Header().Get("X-Query-ID"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 4)
}

func TestRouter_CatalogImport(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	require.NoError(t, csvcatalog.WriteCatalog(&buf, testutil.SampleRecords()[:3]))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import?source=lab.csv", &buf)
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res catalog.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, "lab.csv", res.Source)

	ov := do(t, router, http.MethodGet, "/api/v1/catalog", "")
	var overview material.Overview
	require.NoError(t, json.Unmarshal(ov.Body.Bytes(), &overview))
	assert.Equal(t, 3, overview.Count)
	assert.Equal(t, res.Version, overview.Version)

	empty := do(t, router, http.MethodPost, "/api/v1/catalog/import", "")
	assert.Equal(t, http.StatusBadRequest, empty.Code)

	noRows := do(t, router, http.MethodPost, "/api/v1/catalog/import", "Material,Su\n")
	assert.Equal(t, http.StatusUnprocessableEntity, noRows.Code)
}

func TestRouter_PCAFlagsRecommended(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/api/v1/analytics/pca", `{"recommended": ["Steel SAE 4140 tempered"], "seed": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res material.PCAResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	flagged := 0
	for _, p := range res.Projections {
		if p.Recommended {
			flagged++
			assert.Equal(t, "6", p.ID)
		}
	}
	assert.Equal(t, 1, flagged)
}
