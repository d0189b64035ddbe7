// Package prometheus registers the service metrics on a private
// client_golang registry. Callers record through the small Vec interfaces
// below, so a disabled collector can hand out no-op metrics instead.
package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	// RegisterHistogram uses latency buckets from 0.5ms to 1s when buckets
	// is nil.
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	Handler() http.Handler
}

type (
	CounterVec   interface{ WithLabelValues(lvs ...string) Counter }
	GaugeVec     interface{ WithLabelValues(lvs ...string) Gauge }
	HistogramVec interface{ WithLabelValues(lvs ...string) Histogram }

	Counter interface {
		Inc()
		Add(delta float64)
	}
	Gauge interface {
		Set(value float64)
		Inc()
		Dec()
	}
	Histogram interface{ Observe(value float64) }
)

// CollectorConfig is the metrics section of the configuration file, minus
// the listener settings.
type CollectorConfig struct {
	Namespace            string            `mapstructure:"namespace"`
	Subsystem            string            `mapstructure:"subsystem"`
	EnableProcessMetrics bool              `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool              `mapstructure:"enable_go_metrics"`
	ConstLabels          map[string]string `mapstructure:"const_labels"`
}

var latencyBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

type registryCollector struct {
	cfg    CollectorConfig
	reg    *prometheus.Registry
	logger logging.Logger

	mu   sync.Mutex
	vecs map[string]prometheus.Collector
}

func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, errors.New(errors.ErrCodeConfigError, "metrics namespace is required")
	}
	reg := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}))
	}
	if cfg.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}
	return &registryCollector{cfg: cfg, reg: reg, logger: logger, vecs: map[string]prometheus.Collector{}}, nil
}

func (c *registryCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *registryCollector) opts(name, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   c.cfg.Namespace,
		Subsystem:   c.cfg.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.cfg.ConstLabels,
	}
}

// register adds vec under name, or returns what name already holds when it
// is a V as well. Registering a name twice is how separate components share
// a metric.
func register[V prometheus.Collector](c *registryCollector, name string, vec V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fq := prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)
	if prev, ok := c.vecs[fq]; ok {
		v, same := prev.(V)
		if !same {
			c.logger.Warn("metric registered twice with different types", logging.String("metric", fq))
		}
		return v, same
	}
	if err := c.reg.Register(vec); err != nil {
		c.logger.Error("metric registration failed", logging.String("metric", fq), logging.Err(err))
		var zero V
		return zero, false
	}
	c.vecs[fq] = vec
	return vec, true
}

func (c *registryCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	v, ok := register(c, name, prometheus.NewCounterVec(prometheus.CounterOpts(c.opts(name, help)), labels))
	if !ok {
		return noopCounterVec{}
	}
	return counters{v}
}

func (c *registryCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	v, ok := register(c, name, prometheus.NewGaugeVec(prometheus.GaugeOpts(c.opts(name, help)), labels))
	if !ok {
		return noopGaugeVec{}
	}
	return gauges{v}
}

func (c *registryCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if buckets == nil {
		buckets = latencyBuckets
	}
	o := c.opts(name, help)
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   o.Namespace,
		Subsystem:   o.Subsystem,
		Name:        o.Name,
		Help:        o.Help,
		ConstLabels: o.ConstLabels,
		Buckets:     buckets,
	}, labels)
	v, ok := register(c, name, hv)
	if !ok {
		return noopHistogramVec{}
	}
	return histograms{v}
}

type counters struct{ *prometheus.CounterVec }

func (v counters) WithLabelValues(lvs ...string) Counter { return v.CounterVec.WithLabelValues(lvs...) }

type gauges struct{ *prometheus.GaugeVec }

func (v gauges) WithLabelValues(lvs ...string) Gauge { return v.GaugeVec.WithLabelValues(lvs...) }

type histograms struct{ *prometheus.HistogramVec }

func (v histograms) WithLabelValues(lvs ...string) Histogram {
	return v.HistogramVec.WithLabelValues(lvs...)
}

// NewNoopCollector hands out metrics that record nothing and serves 404 on
// its handler.
func NewNoopCollector() MetricsCollector { return noopCollector{} }

type noopCollector struct{}

func (noopCollector) RegisterCounter(string, string, ...string) CounterVec { return noopCounterVec{} }
func (noopCollector) RegisterGauge(string, string, ...string) GaugeVec     { return noopGaugeVec{} }
func (noopCollector) RegisterHistogram(string, string, []float64, ...string) HistogramVec {
	return noopHistogramVec{}
}
func (noopCollector) Handler() http.Handler { return http.NotFoundHandler() }

// noopVec stands in for every vector and metric type.
type noopVec struct{}

type noopMetric struct{}

func (noopVec) WithLabelValues(...string) noopMetric { return noopMetric{} }

// Typed wrappers so noopVec satisfies each Vec interface's return type.
type (
	noopCounterVec   struct{ noopVec }
	noopGaugeVec     struct{ noopVec }
	noopHistogramVec struct{ noopVec }
)

func (noopCounterVec) WithLabelValues(...string) Counter     { return noopMetric{} }
func (noopGaugeVec) WithLabelValues(...string) Gauge         { return noopMetric{} }
func (noopHistogramVec) WithLabelValues(...string) Histogram { return noopMetric{} }

func (noopMetric) Inc()            {}
func (noopMetric) Dec()            {}
func (noopMetric) Add(float64)     {}
func (noopMetric) Set(float64)     {}
func (noopMetric) Observe(float64) {}
