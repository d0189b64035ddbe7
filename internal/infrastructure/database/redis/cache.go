package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

const (
	nullMarker   = "__null__"
	nullTTL      = 30 * time.Second
	defaultTTL   = 15 * time.Minute
	scanPageSize = 100
)

// Cache is a JSON key-value cache with a key prefix.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// GetOrSet reads key into dest, calling loader on a miss. Concurrent
	// misses for one key share a single loader call.
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *Client
	logger logging.Logger
	prefix string
	jitter bool
	group  singleflight.Group
}

type CacheOption func(*redisCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

// WithoutJitter stores entries with their exact TTL.
func WithoutJitter() CacheOption {
	return func(c *redisCache) { c.jitter = false }
}

func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	c := &redisCache{client: client, logger: log, prefix: "matsel:", jitter: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) key(k string) string { return c.prefix + k }

// expiry applies the default and spreads expiry by up to 10% either way so
// replicas that filled together do not all miss together.
func (c *redisCache) expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if !c.jitter {
		return ttl
	}
	return ttl + time.Duration(float64(ttl)*0.1*(rand.Float64()*2-1))
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	rdb, err := c.client.conn()
	if err != nil {
		return err
	}
	data, err := rdb.Get(ctx, c.key(key)).Bytes()
	switch {
	case err == redis.Nil:
		return ErrCacheMiss
	case err != nil:
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache").WithDetail(key)
	case string(data) == nullMarker:
		return ErrCacheMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return c.setRaw(ctx, key, data, c.expiry(ttl))
}

func (c *redisCache) setRaw(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	rdb, err := c.client.conn()
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache").WithDetail(key)
	}
	return nil
}

// GetOrSet treats read failures as misses so the loader still runs. A nil
// loader result is remembered briefly as a null marker and reported as
// ErrCacheMiss.
func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if err != ErrCacheMiss {
		c.logger.Warn("cache read failed, loading from source", logging.String("key", key), logging.Err(err))
	}

	data, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			if err := c.setRaw(ctx, key, nullMarker, nullTTL); err != nil {
				c.logger.Warn("failed to cache null marker", logging.String("key", key), logging.Err(err))
			}
			return []byte(nil), nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, ErrSerializationFailed.WithCause(err)
		}
		if err := c.setRaw(ctx, key, b, c.expiry(ttl)); err != nil {
			c.logger.Warn("failed to fill cache", logging.String("key", key), logging.Err(err))
		}
		return b, nil
	})
	if err != nil {
		return err
	}
	b := data.([]byte)
	if b == nil {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

// DeleteByPrefix scans rather than using KEYS so large databases are not
// blocked. It returns how many keys were removed.
func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	rdb, err := c.client.conn()
	if err != nil {
		return 0, err
	}
	var deleted int64
	iter := rdb.Scan(ctx, 0, c.key(prefix)+"*", scanPageSize).Iterator()
	batch := make([]string, 0, scanPageSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := rdb.Del(ctx, batch...).Result()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete cache keys")
		}
		deleted += n
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanPageSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "failed to scan cache keys")
	}
	return deleted, flush()
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
