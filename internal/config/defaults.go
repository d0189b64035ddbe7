package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultGRPCPort   = 9090

	DefaultSQLitePath = "matsel.db"
	DefaultPGPort     = 5432
	DefaultPGDatabase = "matsel"

	DefaultRedisAddr     = "localhost:6379"
	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaGroupID  = "matsel-worker"
	DefaultKafkaClientID = "matsel"
	DefaultMinIOEndpoint = "localhost:9000"

	DefaultCatalogCacheTTL = 10 * time.Minute

	DefaultK             = 5
	DefaultMaxK          = 10
	DefaultPCAIterations = 100

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills zero-value fields. Explicit settings are kept.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 8 << 20
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverNone
	}
	if cfg.Database.SQLitePath == "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.SQLitePath = DefaultSQLitePath
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = DefaultPGPort
	}
	if cfg.Database.Postgres.Database == "" {
		cfg.Database.Postgres.Database = DefaultPGDatabase
	}
	if cfg.Database.Driver == DriverPostgres || cfg.Database.Driver == DriverPGX {
		cfg.Database.Postgres.Driver = cfg.Database.Driver
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" && len(cfg.Redis.ClusterAddrs) == 0 && len(cfg.Redis.SentinelAddrs) == 0 {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.MinIO.Enabled && cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "matsel"
	}

	if len(cfg.Catalog.Sources) == 0 {
		cfg.Catalog.Sources = defaultSources(cfg)
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = DefaultCatalogCacheTTL
	}

	if cfg.Analytics.MaxK == 0 {
		cfg.Analytics.MaxK = DefaultMaxK
	}
	if cfg.Analytics.DefaultK == 0 {
		cfg.Analytics.DefaultK = DefaultK
		if cfg.Analytics.DefaultK > cfg.Analytics.MaxK {
			cfg.Analytics.DefaultK = cfg.Analytics.MaxK
		}
	}
	if cfg.Analytics.PCAIterations == 0 {
		cfg.Analytics.PCAIterations = DefaultPCAIterations
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// defaultSources lists every configured source, database first.
func defaultSources(cfg *Config) []string {
	var s []string
	if cfg.Database.Driver != DriverNone {
		s = append(s, SourceDatabase)
	}
	if cfg.MinIO.Enabled {
		s = append(s, SourceMinIO)
	}
	if cfg.Catalog.FilePath != "" {
		s = append(s, SourceFile)
	}
	return s
}
