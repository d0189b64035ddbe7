package postgres

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// database/sql driver names.
const (
	DriverPQ  = "postgres" // github.com/lib/pq
	DriverPGX = "pgx"      // github.com/jackc/pgx/v5/stdlib
)

const (
	pingTimeout     = 5 * time.Second
	poolBusyWarning = 0.8
)

// PostgresConfig holds the database configuration. Zero pool and timeout
// values take the defaults of withDefaults.
type PostgresConfig struct {
	Driver           string        `mapstructure:"driver"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Database         string        `mapstructure:"database"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.Driver == "" {
		c.Driver = DriverPQ
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.StatementTimeout == 0 {
		c.StatementTimeout = 30 * time.Second
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = 10 * time.Second
	}
	return c
}

// BuildDSN renders cfg as a postgres:// URL, which both drivers and
// golang-migrate accept. Timeouts become server-side session settings.
func BuildDSN(cfg PostgresConfig) string {
	c := cfg.withDefaults()
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("statement_timeout", strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10))
	q.Set("lock_timeout", strconv.FormatInt(c.LockTimeout.Milliseconds(), 10))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Opener opens a database/sql pool. sql.Open is the default.
type Opener func(driver, dsn string) (*sql.DB, error)

type ConnOption func(*connOptions)

type connOptions struct {
	open Opener
}

// WithOpener replaces sql.Open, mainly for sqlmock.
func WithOpener(open Opener) ConnOption {
	return func(o *connOptions) { o.open = open }
}

// Connection is a pinged PostgreSQL pool.
type Connection struct {
	db        *sql.DB
	logger    logging.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewConnection opens the pool and verifies it with a ping.
func NewConnection(cfg PostgresConfig, log logging.Logger, opts ...ConnOption) (*Connection, error) {
	o := connOptions{open: sql.Open}
	for _, opt := range opts {
		opt(&o)
	}
	c := cfg.withDefaults()
	if c.Driver != DriverPQ && c.Driver != DriverPGX {
		return nil, errors.New(errors.ErrCodeConfigError, "unsupported postgres driver").WithDetail(c.Driver)
	}

	db, err := o.open(c.Driver, BuildDSN(c))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open database connection")
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed").
			WithDetail(net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
	}

	log.Info("postgres connected",
		logging.String("driver", c.Driver),
		logging.String("host", c.Host),
		logging.Int("port", c.Port),
		logging.String("database", c.Database))
	return &Connection{db: db, logger: log}, nil
}

// NewConnectionWithDB wraps an existing pool.
func NewConnectionWithDB(db *sql.DB, log logging.Logger) *Connection {
	return &Connection{db: db, logger: log}
}

func (c *Connection) DB() *sql.DB { return c.db }

func (c *Connection) Stats() sql.DBStats { return c.db.Stats() }

// HealthCheck pings and warns when most open connections are busy.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "database health check failed")
	}
	if st := c.db.Stats(); st.OpenConnections > 0 {
		if busy := float64(st.InUse) / float64(st.OpenConnections); busy > poolBusyWarning {
			c.logger.Warn("postgres pool nearly exhausted",
				logging.Int("in_use", st.InUse),
				logging.Int("open", st.OpenConnections),
				logging.Int("max_open", st.MaxOpenConnections))
		}
	}
	return nil
}

// Close is idempotent and returns the first close error on every call.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		if err := c.db.Close(); err != nil {
			c.closeErr = errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to close database")
			c.logger.Error("postgres close failed", logging.Err(err))
			return
		}
		c.logger.Info("postgres connection closed")
	})
	return c.closeErr
}
