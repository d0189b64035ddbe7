// Package catalog provides the application service that owns the current
// catalog snapshot: where it is loaded from, how it is cached and how a new
// one is imported.
package catalog

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/messaging/kafka"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

const (
	cacheName = "catalog"
	// snapshotLoadTimeout bounds one shared load across every source.
	snapshotLoadTimeout = time.Minute
)

// Service defines the catalog application operations.
type Service interface {
	// Snapshot returns the current catalog. It never fails for lack of data:
	// the embedded dataset is used when no configured source has a catalog.
	Snapshot(ctx context.Context) (*material.Catalog, error)

	// Refresh reloads from the sources, bypassing every cache layer, and
	// stores the result as the current snapshot.
	Refresh(ctx context.Context) (*material.Catalog, error)

	// Import parses a CSV catalog and makes it the current one.
	Import(ctx context.Context, r io.Reader, source string) (*ImportResult, error)

	Overview(ctx context.Context) (*material.Overview, error)
}

// SnapshotCache is a shared cache of the current snapshot.
type SnapshotCache interface {
	LoadOrFill(ctx context.Context, fill func(ctx context.Context) (*material.Catalog, error)) (*material.Catalog, error)
	Store(ctx context.Context, cat *material.Catalog) error
	Invalidate(ctx context.Context) error
}

// Locker serialises imports across replicas.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// ObjectStore keeps the raw CSV of the current catalog.
type ObjectStore interface {
	PutCatalog(ctx context.Context, data []byte) error
}

// EventPublisher announces imports.
type EventPublisher interface {
	CatalogImported(ctx context.Context, payload kafka.CatalogImportedPayload) error
}

// ImportResult describes an accepted import.
type ImportResult struct {
	Version    string    `json:"version"`
	Source     string    `json:"source"`
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	Invalid    int       `json:"invalid"`
	Persisted  bool      `json:"persisted"`
	Uploaded   bool      `json:"uploaded"`
	ImportedAt time.Time `json:"imported_at"`
}

// Deps wires the service. Only Logger is required; every other collaborator
// is optional and skipped when nil.
type Deps struct {
	Sources  []material.CatalogSource
	Repo     material.CatalogRepository
	Cache    SnapshotCache
	Lock     Locker
	Objects  ObjectStore
	Events   EventPublisher
	Metrics  *prometheus.AppMetrics
	Logger   logging.Logger
	CacheTTL time.Duration
}

type snapshot struct {
	cat     *material.Catalog
	expires time.Time
	pinned  bool
}

type serviceImpl struct {
	deps  Deps
	group singleflight.Group
	now   func() time.Time

	mu    sync.RWMutex
	local *snapshot
}

// NewService creates the catalog service.
func NewService(deps Deps) Service {
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewNoopAppMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{deps: deps, now: time.Now}
}

func (s *serviceImpl) cached() *material.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.local == nil {
		return nil
	}
	if !s.local.pinned && !s.now().Before(s.local.expires) {
		return nil
	}
	return s.local.cat
}

func (s *serviceImpl) remember(cat *material.Catalog, pinned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = &snapshot{cat: cat, expires: s.now().Add(s.deps.CacheTTL), pinned: pinned}
}

func (s *serviceImpl) Snapshot(ctx context.Context) (*material.Catalog, error) {
	if cat := s.cached(); cat != nil {
		s.deps.Metrics.RecordCacheAccess("local", true)
		return cat, nil
	}
	s.deps.Metrics.RecordCacheAccess("local", false)

	// The load is shared by every waiter, so it must not die with the caller
	// that happened to start it. Each caller still honours its own ctx.
	ch := s.group.DoChan("snapshot", func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotLoadTimeout)
		defer cancel()
		if cat := s.cached(); cat != nil {
			return cat, nil
		}
		cat, err := s.loadShared(loadCtx)
		if err != nil {
			return nil, err
		}
		s.remember(cat, false)
		return cat, nil
	})

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "catalog snapshot cancelled")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*material.Catalog), nil
	}
}

// loadShared goes through the shared cache when one is configured. A broken
// cache is logged and bypassed.
func (s *serviceImpl) loadShared(ctx context.Context) (*material.Catalog, error) {
	if s.deps.Cache == nil {
		return s.loadSources(ctx)
	}
	filled := false
	cat, err := s.deps.Cache.LoadOrFill(ctx, func(ctx context.Context) (*material.Catalog, error) {
		filled = true
		return s.loadSources(ctx)
	})
	if err == nil {
		s.deps.Metrics.RecordCacheAccess(cacheName, !filled)
		return cat, nil
	}
	if errors.IsCode(err, errors.ErrCodeCacheError) || errors.IsCode(err, errors.ErrCodeSerialization) {
		s.deps.Logger.Warn("catalog cache unavailable, loading directly", logging.Err(err))
		return s.loadSources(ctx)
	}
	return nil, err
}

// loadSources tries each source in order and falls back to the embedded
// dataset. A source without a catalog is skipped quietly; a failing source
// is logged and skipped.
func (s *serviceImpl) loadSources(ctx context.Context) (*material.Catalog, error) {
	for _, src := range s.deps.Sources {
		cat, err := src.Load(ctx)
		if err == nil && cat.Len() > 0 {
			s.deps.Metrics.RecordCatalogLoad(src.Name(), cat.Len(), nil)
			s.deps.Logger.Info("catalog loaded",
				logging.String("source", src.Name()),
				logging.Int("records", cat.Len()),
				logging.String("version", cat.Version()))
			return cat, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "catalog load cancelled")
		}
		switch {
		case err == nil, errors.IsCode(err, errors.ErrCodeCatalogNotFound), errors.IsCode(err, errors.ErrCodeCatalogEmpty):
			s.deps.Logger.Debug("catalog source has no data", logging.String("source", src.Name()))
		default:
			s.deps.Metrics.RecordCatalogLoad(src.Name(), 0, err)
			s.deps.Logger.Warn("catalog source failed", logging.String("source", src.Name()), logging.Err(err))
		}
	}

	cat, err := csvcatalog.FallbackCatalog()
	if err != nil {
		s.deps.Metrics.RecordCatalogLoad(csvcatalog.FallbackSourceName, 0, err)
		return nil, err
	}
	s.deps.Metrics.RecordCatalogLoad(csvcatalog.FallbackSourceName, cat.Len(), nil)
	s.deps.Logger.Info("using embedded catalog", logging.Int("records", cat.Len()))
	return cat, nil
}

func (s *serviceImpl) Refresh(ctx context.Context) (*material.Catalog, error) {
	cat, err := s.loadSources(ctx)
	if err != nil {
		return nil, err
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Store(ctx, cat); err != nil {
			s.deps.Logger.Warn("failed to cache refreshed catalog", logging.Err(err))
		}
	}
	s.remember(cat, false)
	return cat, nil
}

func (s *serviceImpl) Import(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read catalog upload")
	}
	if source == "" {
		source = "upload"
	}
	cat, parsed, err := csvcatalog.ParseCatalog(buf.Bytes(), source)
	if err != nil {
		return nil, err
	}

	if s.deps.Lock != nil {
		if err := s.deps.Lock.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := s.deps.Lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.deps.Logger.Warn("failed to release import lock", logging.Err(err))
			}
		}()
	}

	res := &ImportResult{
		Version:    cat.Version(),
		Source:     source,
		Records:    cat.Len(),
		Skipped:    parsed.Skipped,
		Invalid:    parsed.Invalid,
		ImportedAt: cat.LoadedAt(),
	}
	if s.deps.Repo != nil {
		if err := s.deps.Repo.ReplaceAll(ctx, cat.Records()); err != nil {
			return nil, err
		}
		res.Persisted = true
	}
	if s.deps.Objects != nil {
		if err := s.deps.Objects.PutCatalog(ctx, buf.Bytes()); err != nil {
			if !res.Persisted {
				return nil, err
			}
			s.deps.Logger.Warn("failed to upload catalog object", logging.Err(err))
		} else {
			res.Uploaded = true
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx); err != nil {
			s.deps.Logger.Warn("failed to invalidate catalog cache", logging.Err(err))
		} else if err := s.deps.Cache.Store(ctx, cat); err != nil {
			s.deps.Logger.Warn("failed to cache imported catalog", logging.Err(err))
		}
	}
	// Nothing persisted the import, so the sources would bring back the old
	// catalog once the local copy expired.
	s.remember(cat, !res.Persisted && !res.Uploaded)

	s.deps.Metrics.RecordCatalogLoad(source, cat.Len(), nil)
	s.deps.Logger.Info("catalog imported",
		logging.String("source", source),
		logging.String("version", res.Version),
		logging.Int("records", res.Records),
		logging.Int("skipped", res.Skipped),
		logging.Int("invalid", res.Invalid))

	if s.deps.Events != nil {
		err := s.deps.Events.CatalogImported(ctx, kafka.CatalogImportedPayload{
			Version:    res.Version,
			Source:     res.Source,
			Records:    res.Records,
			Skipped:    res.Skipped,
			Invalid:    res.Invalid,
			ImportedAt: res.ImportedAt,
		})
		s.deps.Metrics.RecordEvent(kafka.TopicCatalogImported, err)
		if err != nil {
			s.deps.Logger.Warn("failed to publish catalog.imported", logging.Err(err))
		}
	}
	return res, nil
}

func (s *serviceImpl) Overview(ctx context.Context) (*material.Overview, error) {
	cat, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ov := cat.Overview()
	return &ov, nil
}
