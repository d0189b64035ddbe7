package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
)

// FixtureLoadedAt is the load time stamped on SampleCatalog.
var FixtureLoadedAt = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// Steel builds a record with all six analysed properties.
func Steel(id, name, heat string, su, sy, e, g, mu, ro float64) material.Record {
	return material.NewRecord(id, name, heat).
		With(material.PropTensileStrength, su).
		With(material.PropYieldStrength, sy).
		With(material.PropElasticModulus, e).
		With(material.PropShearModulus, g).
		With(material.PropPoissonsRatio, mu).
		With(material.PropDensity, ro)
}

// SampleRecords is a handful of SAE steels.
func SampleRecords() []material.Record {
	return []material.Record{
		Steel("1", "Steel SAE 1015", "as-rolled", 421, 314, 207000, 79000, 0.3, 7860),
		Steel("2", "Steel SAE 1020", "normalized", 441, 346, 207000, 79000, 0.3, 7860),
		Steel("3", "Steel SAE 1030", "as-rolled", 552, 345, 207000, 79000, 0.3, 7860),
		Steel("4", "Steel SAE 1040", "annealed", 519, 353, 207000, 79000, 0.3, 7860),
		Steel("5", "Steel SAE 1045", "tempered", 676, 413, 206000, 80000, 0.29, 7850),
		Steel("6", "Steel SAE 4140", "tempered", 1020, 655, 205000, 80000, 0.29, 7850),
		Steel("7", "Steel SAE 4340", "annealed", 745, 470, 205000, 80000, 0.29, 7850),
		Steel("8", "Steel SAE 52100", "annealed", 683, 510, 210000, 80000, 0.3, 7810),
	}
}

// SampleCatalog wraps SampleRecords with a fixed version and load time.
func SampleCatalog() *material.Catalog {
	return material.NewCatalog(SampleRecords(),
		material.WithVersion("fixture-v1"),
		material.WithSource("fixture"),
		material.WithLoadedAt(FixtureLoadedAt))
}

// MockCatalogRepository is a testify mock of material.CatalogRepository.
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) ReplaceAll(ctx context.Context, records []material.Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockCatalogRepository) LoadAll(ctx context.Context) ([]material.Record, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]material.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalogRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// StaticSource is a material.CatalogSource returning a fixed result.
type StaticSource struct {
	SourceName string
	Catalog    *material.Catalog
	Err        error
	Calls      int
}

func (s *StaticSource) Name() string { return s.SourceName }

func (s *StaticSource) Load(ctx context.Context) (*material.Catalog, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Catalog, nil
}
