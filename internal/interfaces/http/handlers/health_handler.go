package handlers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	probeTimeout    = 5 * time.Second
)

// HealthChecker is one dependency probed by /readyz.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

type namedCheck struct {
	name  string
	probe func(ctx context.Context) error
}

func (c namedCheck) Name() string                    { return c.name }
func (c namedCheck) Check(ctx context.Context) error { return c.probe(ctx) }

func NewChecker(name string, fn func(ctx context.Context) error) HealthChecker {
	return namedCheck{name: name, probe: fn}
}

// ComponentStatusFunc is told the outcome of each readiness probe, e.g. to
// feed a health gauge or the gRPC health service.
type ComponentStatusFunc func(component string, healthy bool)

type HealthHandler struct {
	version  string
	started  time.Time
	checkers []HealthChecker
	report   ComponentStatusFunc
}

func NewHealthHandler(version string, report ComponentStatusFunc, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now(), checkers: checkers, report: report}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type ReadinessResponse struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Liveness answers GET /healthz without touching any dependency.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Readiness answers GET /readyz with 503 as soon as one dependency fails.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{Status: "ready"}
	if len(h.checkers) > 0 {
		resp.Components = h.probeAll(r.Context())
	}
	code := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != statusHealthy {
			resp.Status, code = "not_ready", http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, resp)
}

// probeAll runs the checkers in parallel under one shared deadline.
func (h *HealthHandler) probeAll(ctx context.Context) map[string]ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	checks := make([]ComponentCheck, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		i, c := i, c
		g.Go(func() error {
			t0 := time.Now()
			err := c.Check(ctx)
			checks[i] = ComponentCheck{Status: statusHealthy, Latency: time.Since(t0).Truncate(time.Microsecond).String()}
			if err != nil {
				checks[i].Status, checks[i].Error = statusUnhealthy, err.Error()
			}
			if h.report != nil {
				h.report(c.Name(), err == nil)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]ComponentCheck, len(checks))
	for i, c := range h.checkers {
		out[c.Name()] = checks[i]
	}
	return out
}
