// Package platform assembles the services of one process from its
// configuration: stores, caches, object storage, event publishing, metrics
// and the two application services on top of them. The API server, the
// worker and the CLI share it.
package platform

import (
	"context"
	"database/sql"
	"time"

	"github.com/Arisex96/bio-mat-new/internal/application/catalog"
	"github.com/Arisex96/bio-mat-new/internal/application/recommendation"
	"github.com/Arisex96/bio-mat-new/internal/config"
	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/postgres"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/postgres/repositories"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/redis"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/sqlite"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/messaging/kafka"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/storage/minio"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

const (
	cachePrefix     = "matsel:"
	importLockName  = "catalog-import"
	importLockTTL   = time.Minute
	topicSetupLimit = 15 * time.Second
)

// Check probes one dependency.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Platform holds the wired services of a process.
type Platform struct {
	Config         *config.Config
	Logger         logging.Logger
	Collector      prometheus.MetricsCollector
	Metrics        *prometheus.AppMetrics
	Catalog        catalog.Service
	Recommendation recommendation.Service
	// Checks lists the dependencies readiness depends on, in wiring order.
	Checks []Check

	closers []func() error
}

// SettingsFromConfig converts the analytics section. A zero seed means
// unseeded.
func SettingsFromConfig(a config.AnalyticsConfig) recommendation.Settings {
	s := recommendation.Settings{DefaultK: a.DefaultK, MaxK: a.MaxK, PCAIterations: a.PCAIterations}
	if a.Seed != 0 {
		seed := a.Seed
		s.Seed = &seed
	}
	return s
}

// New connects every configured dependency. Disabled ones are left out and
// the services run without them. On error everything opened so far is
// closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (p *Platform, err error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeConfigError, "config must not be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p = &Platform{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = p.Close()
			p = nil
		}
	}()

	p.Collector = prometheus.NewNoopCollector()
	if cfg.Metrics.Enabled {
		if p.Collector, err = prometheus.NewMetricsCollector(cfg.Metrics.CollectorConfig, logger); err != nil {
			return nil, err
		}
	}
	p.Metrics = prometheus.NewAppMetrics(p.Collector)

	deps := catalog.Deps{Metrics: p.Metrics, Logger: logger.Named("catalog"), CacheTTL: cfg.Catalog.CacheTTL}
	recDeps := recommendation.Deps{
		Metrics:  p.Metrics,
		Logger:   logger.Named("recommendation"),
		Settings: SettingsFromConfig(cfg.Analytics),
	}

	repo, err := p.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	if repo != nil {
		deps.Repo = repo
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(&cfg.Redis.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client.Close)
		cache := redis.NewCatalogCache(redis.NewRedisCache(client, logger, redis.WithPrefix(cachePrefix)), logger, cfg.Catalog.CacheTTL)
		deps.Cache = cache
		deps.Lock = redis.NewMutex(client, logger, importLockName, redis.WithLockTTL(importLockTTL))
		p.Checks = append(p.Checks, Check{Name: "redis", Fn: client.Ping})
	}

	var objects *minio.CatalogObjectSource
	if cfg.MinIO.Enabled {
		client, err := minio.NewClient(&cfg.MinIO.MinIOConfig, logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client.Close)
		objects = minio.NewCatalogObjectSource(client)
		deps.Objects = objects
		recDeps.Exports = minio.NewExportStore(client)
		p.Checks = append(p.Checks, Check{Name: "minio", Fn: client.HealthCheck})
	}

	if cfg.Kafka.Enabled {
		events, err := p.openPublisher(ctx)
		if err != nil {
			return nil, err
		}
		deps.Events = events
		recDeps.Events = events
	}

	for _, name := range cfg.Catalog.Sources {
		switch name {
		case config.SourceDatabase:
			if repo != nil {
				deps.Sources = append(deps.Sources, material.RepositorySource{SourceName: cfg.Database.Driver, Repo: repo})
			}
		case config.SourceMinIO:
			if objects != nil {
				deps.Sources = append(deps.Sources, objects)
			}
		case config.SourceFile:
			deps.Sources = append(deps.Sources, csvcatalog.FileSource{Path: cfg.Catalog.FilePath})
		}
	}

	p.Catalog = catalog.NewService(deps)
	recDeps.Catalog = p.Catalog
	p.Recommendation = recommendation.NewService(recDeps)
	p.Checks = append(p.Checks, Check{Name: "catalog", Fn: func(ctx context.Context) error {
		_, err := p.Catalog.Snapshot(ctx)
		return err
	}})

	logger.Info("platform ready",
		logging.String("database", cfg.Database.Driver),
		logging.Bool("redis", cfg.Redis.Enabled),
		logging.Bool("minio", cfg.MinIO.Enabled),
		logging.Bool("kafka", cfg.Kafka.Enabled),
		logging.Strings("catalog_sources", cfg.Catalog.Sources))
	return p, nil
}

func (p *Platform) openRepository(ctx context.Context) (material.CatalogRepository, error) {
	cfg := p.Config.Database
	switch cfg.Driver {
	case config.DriverPostgres, config.DriverPGX:
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Postgres), ""); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to migrate catalog schema")
			}
			p.Logger.Info("catalog schema migrated")
		}
		conn, err := postgres.NewConnection(cfg.Postgres, p.Logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, conn.Close)
		p.Checks = append(p.Checks, Check{Name: "database", Fn: conn.HealthCheck})
		return repositories.NewPostgresMaterialRepo(conn, p.Logger), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, p.Logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, store.Close)
		p.Checks = append(p.Checks, Check{Name: "database", Fn: pingDB(store.DB())})
		return store, nil
	}
	return nil, nil
}

func (p *Platform) openPublisher(ctx context.Context) (*kafka.EventPublisher, error) {
	cfg := p.Config.Kafka
	if cfg.AutoCreateTopics {
		tm, err := kafka.NewTopicManager(cfg.Brokers, cfg.SecurityConfig, p.Logger)
		if err != nil {
			return nil, err
		}
		tctx, cancel := context.WithTimeout(ctx, topicSetupLimit)
		_, err = tm.EnsureTopics(tctx, kafka.DefaultTopics(cfg.ReplicationFactor))
		cancel()
		_ = tm.Close()
		if err != nil {
			return nil, err
		}
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Brokers, Security: cfg.SecurityConfig}, p.Logger)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, producer.Close)
	return kafka.NewEventPublisher(producer, cfg.ClientID), nil
}

func pingDB(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "database ping failed")
		}
		return nil
	}
}

// Close releases every dependency in reverse order of opening and returns
// the first error.
func (p *Platform) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}
