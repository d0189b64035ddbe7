package redis

import (
	"context"
	"time"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
)

const (
	catalogPrefix = "catalog:"
	catalogKey    = catalogPrefix + "current"
)

// CatalogCache shares the current catalog snapshot between processes.
type CatalogCache struct {
	cache Cache
	log   logging.Logger
	ttl   time.Duration
}

// NewCatalogCache wraps cache. A zero ttl keeps the cache default.
func NewCatalogCache(cache Cache, log logging.Logger, ttl time.Duration) *CatalogCache {
	return &CatalogCache{cache: cache, log: log, ttl: ttl}
}

// Load returns the cached snapshot or ErrCacheMiss.
func (c *CatalogCache) Load(ctx context.Context) (*material.Catalog, error) {
	var cat material.Catalog
	if err := c.cache.Get(ctx, catalogKey, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// LoadOrFill returns the cached snapshot, calling fill once across concurrent
// callers on a miss.
func (c *CatalogCache) LoadOrFill(ctx context.Context, fill func(ctx context.Context) (*material.Catalog, error)) (*material.Catalog, error) {
	var cat material.Catalog
	err := c.cache.GetOrSet(ctx, catalogKey, &cat, c.ttl, func(ctx context.Context) (interface{}, error) {
		loaded, err := fill(ctx)
		if err != nil || loaded == nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// Store caches cat as the current snapshot.
func (c *CatalogCache) Store(ctx context.Context, cat *material.Catalog) error {
	return c.cache.Set(ctx, catalogKey, cat, c.ttl)
}

// Invalidate drops every catalog key, including snapshots written under
// older key layouts.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	n, err := c.cache.DeleteByPrefix(ctx, catalogPrefix)
	if err != nil {
		return err
	}
	c.log.Debug("invalidated catalog cache", logging.Int64("keys", n))
	return nil
}

// Ping checks the backing store.
func (c *CatalogCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}
