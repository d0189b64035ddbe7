// Package config defines the configuration of the material selection
// services and how it is loaded.
package config

import (
	"time"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/postgres"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/redis"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/messaging/kafka"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/storage/minio"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Database drivers.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite"
)

// Catalog sources, tried in the configured order.
const (
	SourceDatabase = "database"
	SourceMinIO    = "minio"
	SourceFile     = "file"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type GRPCConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Port       int  `mapstructure:"port"`
	Reflection bool `mapstructure:"reflection"`
}

// DatabaseConfig selects the catalog repository.
type DatabaseConfig struct {
	Driver      string                  `mapstructure:"driver"`
	Postgres    postgres.PostgresConfig `mapstructure:"postgres"`
	SQLitePath  string                  `mapstructure:"sqlite_path"`
	AutoMigrate bool                    `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	redis.RedisConfig `mapstructure:",squash"`
}

type MinIOConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	minio.MinIOConfig `mapstructure:",squash"`
}

type KafkaConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	Brokers              []string `mapstructure:"brokers"`
	GroupID              string   `mapstructure:"group_id"`
	ClientID             string   `mapstructure:"client_id"`
	AutoCreateTopics     bool     `mapstructure:"auto_create_topics"`
	ReplicationFactor    int      `mapstructure:"replication_factor"`
	DeadLetterTopic      string   `mapstructure:"dead_letter_topic"`
	kafka.SecurityConfig `mapstructure:",squash"`
}

type MetricsConfig struct {
	Enabled                    bool   `mapstructure:"enabled"`
	Path                       string `mapstructure:"path"`
	prometheus.CollectorConfig `mapstructure:",squash"`
}

// CatalogConfig controls where the catalog snapshot comes from.
type CatalogConfig struct {
	Sources  []string      `mapstructure:"sources"`
	FilePath string        `mapstructure:"file_path"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AnalyticsConfig holds the query defaults. It is safe to reload at runtime.
type AnalyticsConfig struct {
	DefaultK      int   `mapstructure:"default_k"`
	MaxK          int   `mapstructure:"max_k"`
	PCAIterations int   `mapstructure:"pca_iterations"`
	Seed          int64 `mapstructure:"seed"`
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	GRPC      GRPCConfig        `mapstructure:"grpc"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	MinIO     MinIOConfig       `mapstructure:"minio"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	Log       logging.LogConfig `mapstructure:"log"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Catalog   CatalogConfig     `mapstructure:"catalog"`
	Analytics AnalyticsConfig   `mapstructure:"analytics"`
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeConfigError, "invalid configuration").WithDetailf(format, args...)
}

// Validate reports the first semantic problem in a defaulted Config.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535 || c.GRPC.Port == c.Server.Port) {
		return invalid("grpc.port %d must be a free port in [1, 65535]", c.GRPC.Port)
	}

	switch c.Database.Driver {
	case DriverNone:
	case DriverPostgres, DriverPGX:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return invalid("database.postgres.host and database.postgres.database are required for driver %q", c.Database.Driver)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return invalid("database.sqlite_path is required for driver sqlite")
		}
	default:
		return invalid("database.driver %q is invalid; expected none|postgres|pgx|sqlite", c.Database.Driver)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
		return invalid("redis.addr is required when redis is enabled")
	}
	if c.MinIO.Enabled && c.MinIO.Endpoint == "" {
		return invalid("minio.endpoint is required when minio is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return invalid("kafka.brokers must contain at least one broker when kafka is enabled")
	}

	for _, s := range c.Catalog.Sources {
		switch s {
		case SourceDatabase:
			if c.Database.Driver == DriverNone {
				return invalid("catalog source %q needs database.driver", s)
			}
		case SourceMinIO:
			if !c.MinIO.Enabled {
				return invalid("catalog source %q needs minio.enabled", s)
			}
		case SourceFile:
			if c.Catalog.FilePath == "" {
				return invalid("catalog source %q needs catalog.file_path", s)
			}
		default:
			return invalid("catalog source %q is invalid; expected database|minio|file", s)
		}
	}
	if c.Catalog.CacheTTL < 0 {
		return invalid("catalog.cache_ttl must be >= 0")
	}

	if c.Analytics.MaxK < 1 || c.Analytics.MaxK > 10 {
		return invalid("analytics.max_k %d is out of range [1, 10]", c.Analytics.MaxK)
	}
	if c.Analytics.DefaultK < 1 || c.Analytics.DefaultK > c.Analytics.MaxK {
		return invalid("analytics.default_k %d is out of range [1, %d]", c.Analytics.DefaultK, c.Analytics.MaxK)
	}
	if c.Analytics.PCAIterations < 1 {
		return invalid("analytics.pca_iterations must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}
	return nil
}
