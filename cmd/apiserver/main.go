// Command apiserver serves the materials recommendation HTTP API and the
// gRPC health service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Arisex96/bio-mat-new/internal/config"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/Arisex96/bio-mat-new/internal/interfaces/grpc"
	httpserver "github.com/Arisex96/bio-mat-new/internal/interfaces/http"
	"github.com/Arisex96/bio-mat-new/internal/interfaces/http/handlers"
	"github.com/Arisex96/bio-mat-new/internal/interfaces/http/middleware"
	"github.com/Arisex96/bio-mat-new/internal/platform"
)

// Build-time variables injected via ldflags.
var version = "dev"

const startupTimeout = time.Minute

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults and MATSEL_* env vars otherwise)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	p, err := platform.New(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("platform initialization failed", logging.Err(err))
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("platform close failed", logging.Err(err))
		}
	}()

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(&cfg.GRPC,
			grpcserver.WithLogger(logger.Named("grpc")),
			grpcserver.WithMetrics(p.Metrics),
			grpcserver.WithGracefulTimeout(cfg.Server.ShutdownTimeout),
		)
		if err != nil {
			return err
		}
	}

	report := func(component string, healthy bool) {
		p.Metrics.SetHealth(component, healthy)
		if grpcSrv != nil {
			grpcSrv.SetComponentStatus(component, healthy)
		}
	}
	checkers := make([]handlers.HealthChecker, 0, len(p.Checks))
	for _, c := range p.Checks {
		checkers = append(checkers, handlers.NewChecker(c.Name, c.Fn))
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.AllowedOrigins
	reqLog := middleware.DefaultLoggingConfig()
	reqLog.SkipPaths = append(reqLog.SkipPaths, cfg.Metrics.Path)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		CatalogHandler:        handlers.NewCatalogHandler(p.Catalog, logger.Named("http"), cfg.Server.MaxBodySize),
		RecommendationHandler: handlers.NewRecommendationHandler(p.Recommendation, logger.Named("http")),
		AnalyticsHandler:      handlers.NewAnalyticsHandler(p.Recommendation, logger.Named("http")),
		HealthHandler:         handlers.NewHealthHandler(version, report, checkers...),
		CORS:                  &cors,
		Logging:               &reqLog,
		Logger:                logger,
		Metrics:               p.Metrics,
		MetricsPath:           cfg.Metrics.Path,
		MetricsHandler:        p.Collector.Handler(),
	})
	httpSrv := httpserver.NewServer(httpserver.ServerOptions{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	if configPath != "" {
		err := config.Watch(configPath, func(next *config.Config) {
			p.Recommendation.UpdateSettings(platform.SettingsFromConfig(next.Analytics))
			logger.Info("analytics settings reloaded",
				logging.Int("default_k", next.Analytics.DefaultK),
				logging.Int("max_k", next.Analytics.MaxK))
		}, func(err error) {
			logger.Warn("config reload rejected", logging.Err(err))
		})
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	logger.Info("starting materials API server",
		logging.String("version", version),
		logging.Int("http_port", cfg.Server.Port),
		logging.Bool("grpc_enabled", cfg.GRPC.Enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var firstErr error
		if grpcSrv != nil {
			firstErr = grpcSrv.Stop(shutdownCtx)
		}
		if err := httpSrv.Stop(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", logging.Err(err))
		return err
	}
	logger.Info("servers stopped")
	return nil
}
