package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the metrics recorded by the services and HTTP layer.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	GRPCRequestsTotal   CounterVec

	QueriesTotal     CounterVec
	QueryDuration    HistogramVec
	CatalogSize      GaugeVec
	CatalogLoads     CounterVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	EventsPublished  CounterVec

	HealthCheckStatus GaugeVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultQueryDurationBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
)

// NewAppMetrics registers the application metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route"),
		GRPCRequestsTotal:   collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code"),

		QueriesTotal:     collector.RegisterCounter("queries_total", "Analytics operations by outcome", "operation", "status"),
		QueryDuration:    collector.RegisterHistogram("query_duration_seconds", "Analytics operation duration", DefaultQueryDurationBuckets, "operation"),
		CatalogSize:      collector.RegisterGauge("catalog_records", "Records in the current catalog snapshot", "source"),
		CatalogLoads:     collector.RegisterCounter("catalog_loads_total", "Catalog loads by source and outcome", "source", "status"),
		CacheHitsTotal:   collector.RegisterCounter("cache_hits_total", "Cache hits", "cache"),
		CacheMissesTotal: collector.RegisterCounter("cache_misses_total", "Cache misses", "cache"),
		EventsPublished:  collector.RegisterCounter("events_published_total", "Events published by topic and outcome", "topic", "status"),

		HealthCheckStatus: collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component"),
	}
}

// NewNoopAppMetrics returns metrics that record nothing.
func NewNoopAppMetrics() *AppMetrics {
	return NewAppMetrics(NewNoopCollector())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *AppMetrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordGRPCRequest(service, method, code string) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
}

func (m *AppMetrics) RecordQuery(operation string, duration time.Duration, err error) {
	m.QueriesTotal.WithLabelValues(operation, status(err)).Inc()
	m.QueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordCatalogLoad(source string, records int, err error) {
	m.CatalogLoads.WithLabelValues(source, status(err)).Inc()
	if err == nil {
		m.CatalogSize.WithLabelValues(source).Set(float64(records))
	}
}

func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func (m *AppMetrics) RecordEvent(topic string, err error) {
	m.EventsPublished.WithLabelValues(topic, status(err)).Inc()
}

func (m *AppMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}
