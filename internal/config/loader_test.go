package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 8081
  allowed_origins: ["https://materials.example.com"]
database:
  driver: sqlite
  sqlite_path: /var/lib/matsel/catalog.db
redis:
  enabled: true
  addr: redis:6379
  db: 2
minio:
  enabled: true
  endpoint: minio:9000
  catalog_bucket: steels
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
catalog:
  sources: [database, minio]
  cache_ttl: 2m
analytics:
  default_k: 3
  seed: 42
log:
  level: debug
  format: console
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, []string{"https://materials.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/var/lib/matsel/catalog.db", cfg.Database.SQLitePath)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "steels", cfg.MinIO.CatalogBucket)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{SourceDatabase, SourceMinIO}, cfg.Catalog.Sources)
	assert.Equal(t, 2*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 3, cfg.Analytics.DefaultK)
	assert.Equal(t, int64(42), cfg.Analytics.Seed)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MATSEL_SERVER_PORT", "9000")
	t.Setenv("MATSEL_ANALYTICS_MAX_K", "4")
	t.Setenv("MATSEL_REDIS_ADDR", "cache:6380")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Analytics.MaxK)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MATSEL_DATABASE_DRIVER", "sqlite")
	t.Setenv("MATSEL_DATABASE_SQLITE_PATH", "/tmp/m.db")
	t.Setenv("MATSEL_CATALOG_FILE_PATH", "/data/steels.csv")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/m.db", cfg.Database.SQLitePath)
	assert.Equal(t, []string{SourceDatabase, SourceFile}, cfg.Catalog.Sources)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "analytics:\n  max_k: 50\n"))
	assert.Error(t, err)

	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "analytics:\n  default_k: 2\n")

	changed := make(chan *Config, 16)
	require.NoError(t, Watch(path, func(c *Config) { changed <- c }, nil))

	require.NoError(t, os.WriteFile(path, []byte("analytics:\n  default_k: 7\n"), 0o600))

	// Editors and os.WriteFile may produce several events; wait for the
	// final content.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Analytics.DefaultK == 7 {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
