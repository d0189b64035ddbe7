// Package redis caches catalog snapshots and coordinates catalog imports
// across replicas.
package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.ErrCodeCacheError, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.ErrCodeCacheError, "redis connection failed")
)

// Deployment modes.
const (
	ModeStandalone = "standalone"
	ModeSentinel   = "sentinel"
	ModeCluster    = "cluster"
)

const connectTimeout = 5 * time.Second

// RedisConfig selects the deployment and tunes the connection pool. Zero
// values take the defaults of withDefaults.
type RedisConfig struct {
	Mode            string        `mapstructure:"mode"`
	Addr            string        `mapstructure:"addr"`
	MasterName      string        `mapstructure:"master_name"`
	SentinelAddrs   []string      `mapstructure:"sentinel_addrs"`
	ClusterAddrs    []string      `mapstructure:"cluster_addrs"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	MaxIdleTime     time.Duration `mapstructure:"max_idle_time"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	TLSCAFile       string        `mapstructure:"tls_ca_file"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"`
}

// withDefaults returns a copy with every unset tunable filled in.
func (c RedisConfig) withDefaults() RedisConfig {
	setDuration := func(d *time.Duration, v time.Duration) {
		if *d == 0 {
			*d = v
		}
	}
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10 * runtime.GOMAXPROCS(0)
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	setDuration(&c.MaxIdleTime, 5*time.Minute)
	setDuration(&c.DialTimeout, 5*time.Second)
	setDuration(&c.ReadTimeout, 3*time.Second)
	setDuration(&c.WriteTimeout, 3*time.Second)
	setDuration(&c.MinRetryBackoff, 8*time.Millisecond)
	setDuration(&c.MaxRetryBackoff, 512*time.Millisecond)
	return c
}

func (c RedisConfig) validate() error {
	switch c.Mode {
	case ModeStandalone:
		if c.Addr == "" {
			return errors.New(errors.ErrCodeConfigError, "redis addr is required in standalone mode")
		}
	case ModeSentinel:
		if c.MasterName == "" || len(c.SentinelAddrs) == 0 {
			return errors.New(errors.ErrCodeConfigError, "redis sentinel mode needs master_name and sentinel_addrs")
		}
	case ModeCluster:
		if len(c.ClusterAddrs) == 0 {
			return errors.New(errors.ErrCodeConfigError, "redis cluster mode needs cluster_addrs")
		}
	default:
		return errors.New(errors.ErrCodeConfigError, "unknown redis mode").WithDetail(c.Mode)
	}
	return nil
}

func (c RedisConfig) tlsConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	cfg := &tls.Config{InsecureSkipVerify: c.TLSInsecure, MinVersion: tls.VersionTLS12}
	if c.TLSCAFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(c.TLSCAFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigError, "failed to read redis CA file").WithDetail(c.TLSCAFile)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New(errors.ErrCodeConfigError, "redis CA file has no certificates").WithDetail(c.TLSCAFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// universal maps the config onto go-redis options shared by all three modes.
func (c RedisConfig) universal(tlsCfg *tls.Config) *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		MasterName:      c.MasterName,
		Username:        c.Username,
		Password:        c.Password,
		DB:              c.DB,
		PoolSize:        c.PoolSize,
		MinIdleConns:    c.MinIdleConns,
		ConnMaxIdleTime: c.MaxIdleTime,
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		MaxRetries:      c.MaxRetries,
		MinRetryBackoff: c.MinRetryBackoff,
		MaxRetryBackoff: c.MaxRetryBackoff,
		TLSConfig:       tlsCfg,
	}
	switch c.Mode {
	case ModeSentinel:
		opts.Addrs = c.SentinelAddrs
	case ModeCluster:
		opts.Addrs = c.ClusterAddrs
	default:
		opts.Addrs = []string{c.Addr}
	}
	return opts
}

// Client is a closable handle on a go-redis client. Commands on a closed
// Client fail with ErrClientClosed instead of a pool error.
type Client struct {
	rdb    redis.UniversalClient
	mode   string
	logger logging.Logger
	closed atomic.Bool
}

// NewClient connects and pings. cfg is not modified.
func NewClient(cfg *RedisConfig, log logging.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeConfigError, "redis config must not be nil")
	}
	c := cfg.withDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}

	opts := c.universal(tlsCfg)
	var rdb redis.UniversalClient
	switch c.Mode {
	case ModeCluster:
		rdb = redis.NewClusterClient(opts.Cluster())
	case ModeSentinel:
		rdb = redis.NewFailoverClient(opts.Failover())
	default:
		rdb = redis.NewClient(opts.Simple())
	}

	client := &Client{rdb: rdb, mode: c.Mode, logger: log}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	log.Info("redis connected", logging.String("mode", c.Mode), logging.Strings("addrs", opts.Addrs))
	return client, nil
}

// NewClientWithUniversal wraps an existing go-redis client.
func NewClientWithUniversal(rdb redis.UniversalClient, log logging.Logger) *Client {
	return &Client{rdb: rdb, mode: ModeStandalone, logger: log}
}

// conn returns the underlying client unless Close has been called.
func (c *Client) conn() (redis.UniversalClient, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.rdb, nil
}

// Mode reports the deployment mode the client was built for.
func (c *Client) Mode() string { return c.mode }

func (c *Client) Ping(ctx context.Context) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

// Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("failed to close redis client", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to close redis client")
	}
	c.logger.Info("redis client closed")
	return nil
}
