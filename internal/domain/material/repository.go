package material

import "context"

// CatalogRepository persists catalog records. Implementations replace the
// stored catalog atomically; there are no partial updates.
type CatalogRepository interface {
	// ReplaceAll swaps the stored catalog for records.
	ReplaceAll(ctx context.Context, records []Record) error

	// LoadAll returns every stored record in insertion order.
	LoadAll(ctx context.Context) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// CatalogSource produces catalog snapshots. A source that currently holds no
// catalog returns an error carrying errors.ErrCodeCatalogNotFound so that the
// caller can fall through to the next source.
type CatalogSource interface {
	Name() string
	Load(ctx context.Context) (*Catalog, error)
}

// RepositorySource adapts a CatalogRepository to a CatalogSource.
type RepositorySource struct {
	SourceName string
	Repo       CatalogRepository
}

// Name implements CatalogSource.
func (s RepositorySource) Name() string { return s.SourceName }

// Load implements CatalogSource.
func (s RepositorySource) Load(ctx context.Context) (*Catalog, error) {
	recs, err := s.Repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errCatalogNotFound(s.SourceName)
	}
	return NewCatalog(recs, WithSource(s.SourceName)), nil
}
