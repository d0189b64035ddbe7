package csvcatalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

func TestFallback_LoadsSteelDataset(t *testing.T) {
	recs, err := Fallback()
	require.NoError(t, err)
	require.Len(t, recs, 20)

	first := recs[0]
	assert.Equal(t, "D8894772B88F495093C43AF905AB6373", first.ID)
	assert.Equal(t, "ANSI", first.Std)
	assert.Equal(t, "Steel SAE 1015 as-rolled", first.Label())
	su, ok := first.Value(material.PropTensileStrength)
	require.True(t, ok)
	assert.Equal(t, 421.0, su)
	assert.Equal(t, 7860.0, first.ValueOrZero(material.PropDensity))

	// Callers get their own copy.
	recs[0].Name = "mutated"
	again, err := Fallback()
	require.NoError(t, err)
	assert.Equal(t, "Steel SAE 1015", again[0].Name)
}

func TestFallbackCatalog(t *testing.T) {
	c, err := FallbackCatalog()
	require.NoError(t, err)
	assert.Equal(t, 20, c.Len())
	assert.Equal(t, FallbackSourceName, c.Source())
	assert.NotEmpty(t, c.Version())
}

func TestParse_LongHeadersAndNulls(t *testing.T) {
	data := "Material,Heat treatment,Ultimate_Tensile_Strength_MPa,Yield_Strength_MPa,Density_kg_per_m3,Colour\n" +
		"Alloy X,,500,,7800,red\n" +
		"Alloy Y,aged,abc,250,,blue\n"

	res, err := Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 0, res.Skipped)

	x := res.Records[0]
	assert.Equal(t, "row-2", x.ID)
	assert.Equal(t, "Alloy X", x.Label())
	_, ok := x.Value(material.PropYieldStrength)
	assert.False(t, ok)

	y := res.Records[1]
	assert.Equal(t, "Alloy Y aged", y.Label())
	_, ok = y.Value(material.PropTensileStrength)
	assert.False(t, ok, "unparsable cells are missing")
	assert.Equal(t, 250.0, y.ValueOrZero(material.PropYieldStrength))
}

func TestParse_SkipsRowsWithoutProperties(t *testing.T) {
	data := "ID,Material,Su,A5\n" +
		"1,Only aux,,30\n" +
		",,,\n" +
		"2,Real,400,\n"

	res, err := Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "2", res.Records[0].ID)
}

func TestParse_NonFiniteCellsAreInvalid(t *testing.T) {
	data := "ID,Material,Heat treatment,Su,Sy,E,G,mu,Ro\n" +
		"1,A,x,NaN,300,200000,80000,0.3,7800\n" +
		"2,B,y,550,Inf,205000,81000,0.29,7850\n" +
		"3,C,z,-Infinity,310,201000,80500,0.3,7820\n" +
		"4,D,w,520,320,202000,80200,0.3,7830\n"

	cat, res, err := ParseCatalog([]byte(data), "upload")
	require.NoError(t, err)
	require.Equal(t, 4, cat.Len())
	assert.Equal(t, 3, res.Invalid)

	_, ok := cat.At(0).Value(material.PropTensileStrength)
	assert.False(t, ok)
	_, ok = cat.At(1).Value(material.PropYieldStrength)
	assert.False(t, ok)

	ranked, err := material.Rank(cat, material.DefaultRequirements(), 4)
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	for _, m := range ranked {
		assert.False(t, math.IsNaN(m.DistanceScore), m.Label())
		assert.False(t, math.IsInf(m.DistanceScore, 0), m.Label())
	}
	// Record A misses Su, which counts as 0 and sits far from the 500 MPa target.
	assert.NotEqual(t, "1", ranked[0].Record.ID)

	_, err = json.Marshal(ranked)
	assert.NoError(t, err)
	_, err = json.Marshal(cat)
	assert.NoError(t, err)
}

func TestParse_ByteOrderMark(t *testing.T) {
	res, err := Parse(strings.NewReader("\ufeffMaterial,Su\nA,1\n"))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "A", res.Records[0].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		code errors.ErrorCode
	}{
		{"empty file", "", errors.ErrCodeCatalogEmpty},
		{"no material column", "ID,Su\n1,2\n", errors.ErrCodeCatalogParseError},
		{"no property column", "Material,A5\nX,1\n", errors.ErrCodeDegenerateData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestWriteRecommendations(t *testing.T) {
	c, err := FallbackCatalog()
	require.NoError(t, err)
	ranked, err := material.Rank(c, material.DefaultRequirements(), 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRecommendations(&buf, ranked))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{
		"Material",
		"Ultimate_Tensile_Strength_MPa",
		"Yield_Strength_MPa",
		"Elastic_Modulus_MPa",
		"Shear_Modulus_MPa",
		"Poissons_Ratio",
		"Density_kg_per_m3",
		"Distance_Score",
	}, rows[0])
	assert.Equal(t, ranked[0].Label(), rows[1][0])
	assert.Len(t, rows[1], 8)
}

func TestWriteCatalog_RoundTripsThroughParse(t *testing.T) {
	recs, err := Fallback()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, recs))

	res, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, recs, res.Records)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steel.csv")
	require.NoError(t, os.WriteFile(path, fallbackCSV, 0o600))

	c, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, c.Len())
	assert.Equal(t, "file:"+path, c.Source())

	_, err = FileSource{Path: filepath.Join(dir, "missing.csv")}.Load(context.Background())
	assert.Equal(t, errors.ErrCodeCatalogNotFound, errors.GetCode(err))

	_, err = FileSource{}.Load(context.Background())
	assert.Equal(t, errors.ErrCodeCatalogNotFound, errors.GetCode(err))
}

func TestParseCatalog_Empty(t *testing.T) {
	_, res, err := ParseCatalog([]byte("Material,Su\nA,\n"), "upload")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCatalogEmpty, errors.GetCode(err))
	assert.Equal(t, 1, res.Skipped)
}
