// Package grpc exposes the standard gRPC health service next to the HTTP
// API. Each dependency probed by /readyz is published as its own health
// service name, and the empty name reports the service as a whole.
package grpc

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/Arisex96/bio-mat-new/internal/config"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

const (
	maxRecvMsgSize = 4 << 20
	overallService = ""
)

type Option func(*Server)

func WithLogger(l logging.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics counts every RPC in m by service, method and status code.
func WithMetrics(m *prometheus.AppMetrics) Option { return func(s *Server) { s.metrics = m } }

// WithListener serves on ln instead of binding the configured port.
func WithListener(ln net.Listener) Option { return func(s *Server) { s.listener = ln } }

func WithGracefulTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.grace = d
		}
	}
}

type Server struct {
	srv      *grpc.Server
	health   *health.Server
	listener net.Listener
	logger   logging.Logger
	metrics  *prometheus.AppMetrics
	grace    time.Duration

	mu        sync.Mutex
	running   bool
	unhealthy map[string]struct{}
}

// NewServer binds the listener up front so a taken port fails at startup.
func NewServer(cfg *config.GRPCConfig, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeConfigError, "grpc config must not be nil")
	}
	s := &Server{
		logger:    logging.NewNopLogger(),
		grace:     10 * time.Second,
		unhealthy: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.listener == nil {
		addr := net.JoinHostPort("", strconv.Itoa(cfg.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "cannot bind grpc port").WithDetail(addr)
		}
		s.listener = ln
	}

	s.srv = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  5 * time.Minute,
			Timeout:               time.Second,
		}),
		grpc.ChainUnaryInterceptor(recoverUnary(s.logger), accessLog(s.logger), countUnary(s.metrics)),
		grpc.ChainStreamInterceptor(recoverStream(s.logger), countStream(s.metrics)),
	)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.health.SetServingStatus(overallService, healthpb.HealthCheckResponse_SERVING)

	if cfg.Reflection {
		reflection.Register(s.srv)
		s.logger.Info("grpc reflection service registered")
	}
	return s, nil
}

// SetComponentStatus has the signature of the HTTP readiness callback so one
// probe run updates both transports. The overall status is SERVING only while
// no component is unhealthy.
func (s *Server) SetComponentStatus(component string, healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if healthy {
		delete(s.unhealthy, component)
	} else {
		s.unhealthy[component] = struct{}{}
	}
	s.health.SetServingStatus(component, toServing(healthy))
	s.health.SetServingStatus(overallService, toServing(len(s.unhealthy) == 0))
}

func toServing(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Start blocks until Stop. It returns nil after a normal stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeConflict, "grpc server already started")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("grpc server listening", logging.String("address", s.Addr()))
	err := s.srv.Serve(s.listener)
	if err == nil || err == grpc.ErrServerStopped {
		return nil
	}
	return errors.Wrap(err, errors.ErrCodeInternal, "grpc server failed")
}

// Stop flips every health status to NOT_SERVING, drains in-flight calls and
// hard-stops whatever remains after the grace period or ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return s.listener.Close()
	}

	s.health.Shutdown()
	ctx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.srv.GracefulStop()
	}()
	select {
	case <-drained:
		s.logger.Info("grpc server stopped")
	case <-ctx.Done():
		s.logger.Warn("grpc drain timed out, closing remaining streams")
		s.srv.Stop()
	}
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
