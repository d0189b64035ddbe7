// Command worker consumes catalog events and keeps the shared snapshot cache
// warm for the API servers.
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
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/messaging/kafka"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	httpserver "github.com/Arisex96/bio-mat-new/internal/interfaces/http"
	"github.com/Arisex96/bio-mat-new/internal/interfaces/http/handlers"
	"github.com/Arisex96/bio-mat-new/internal/platform"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

var version = "dev"

const (
	defaultHealthPort = 8081
	startupTimeout    = time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the health and metrics endpoint")
	flag.Parse()

	if err := run(*configPath, *healthPort); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, healthPort int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeConfigError, "the worker needs kafka.enabled")
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

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.GroupID,
		Topics:   []string{kafka.TopicCatalogImported},
		Retry:    kafka.RetryConfig{DeadLetterTopic: cfg.Kafka.DeadLetterTopic},
		Security: cfg.Kafka.SecurityConfig,
	}, logger.Named("consumer"))
	if err != nil {
		return err
	}
	warmer := newCatalogWarmer(p.Catalog, p.Metrics, logger.Named("warmer"))
	consumer.Subscribe(kafka.TopicCatalogImported, warmer.Handle)

	checkers := make([]handlers.HealthChecker, 0, len(p.Checks))
	for _, c := range p.Checks {
		checkers = append(checkers, handlers.NewChecker(c.Name, c.Fn))
	}
	healthSrv := httpserver.NewServer(httpserver.ServerOptions{
		Port:            healthPort,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(version, p.Metrics.SetHealth, checkers...),
		MetricsPath:    cfg.Metrics.Path,
		MetricsHandler: p.Collector.Handler(),
	}), logger)

	// Warm once at startup so a restart does not wait for the next import.
	if _, err := p.Catalog.Refresh(ctx); err != nil {
		logger.Warn("initial catalog refresh failed", logging.Err(err))
	}

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("worker started",
		logging.String("version", version),
		logging.String("topic", kafka.TopicCatalogImported),
		logging.String("group", cfg.Kafka.GroupID),
		logging.Int("health_port", healthPort))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(healthSrv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down worker")
		var firstErr error
		if err := consumer.Close(); err != nil {
			firstErr = err
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := healthSrv.Stop(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		return err
	}
	stats := consumer.Stats()
	logger.Info("worker stopped",
		logging.Int64("processed", stats.Processed),
		logging.Int64("failed", stats.Failed),
		logging.Int64("dead_lettered", stats.DeadLettered))
	return nil
}
