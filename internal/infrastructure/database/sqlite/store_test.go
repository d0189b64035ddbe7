package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ReplaceAndLoad(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	recs, err := csvcatalog.Fallback()
	require.NoError(t, err)
	require.NoError(t, s.ReplaceAll(ctx, recs))

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(recs), n)
}

func TestStore_ReplaceDiscardsPrevious(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	first := []material.Record{
		material.NewRecord("a", "A", "").With(material.PropDensity, 7800),
		material.NewRecord("b", "B", "").With(material.PropDensity, 7900),
	}
	require.NoError(t, s.ReplaceAll(ctx, first))

	second := []material.Record{material.NewRecord("c", "C", "aged").With(material.PropPoissonsRatio, 0.33)}
	require.NoError(t, s.ReplaceAll(ctx, second))

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "C aged", got[0].Label())
	_, ok := got[0].Value(material.PropDensity)
	assert.False(t, ok)
}

func TestStore_EmptySourceIsNotFound(t *testing.T) {
	s := tempStore(t)
	src := material.RepositorySource{SourceName: "sqlite", Repo: s}

	_, err := src.Load(context.Background())
	assert.Equal(t, errors.ErrCodeCatalogNotFound, errors.GetCode(err))
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open(":memory:", logging.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.ReplaceAll(context.Background(), []material.Record{material.NewRecord("x", "X", "").With(material.PropTensileStrength, 1)}))
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
