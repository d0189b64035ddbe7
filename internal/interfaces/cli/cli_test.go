package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/internal/application/catalog"
	"github.com/Arisex96/bio-mat-new/internal/application/recommendation"
	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/testutil"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

type cliEnv struct {
	config  string
	catalog string
	dir     string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "matsel.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: warn\n"), 0o600))

	var buf bytes.Buffer
	require.NoError(t, csvcatalog.WriteCatalog(&buf, testutil.SampleRecords()))
	catPath := filepath.Join(dir, "steels.csv")
	require.NoError(t, os.WriteFile(catPath, buf.Bytes(), 0o600))

	return cliEnv{config: cfgPath, catalog: catPath, dir: dir}
}

func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config", e.config, "--catalog", e.catalog, "--no-color"}, args...)
	err := Run(context.Background(), full, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestRank_JSON(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "rank", "-o", "json", "-k", "3", "--su", "1020:1", "--sy", "655:1")
	require.NoError(t, err)

	var res recommendation.RankResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, "6", res.Ranked[0].Record.ID)
	assert.Equal(t, 1, res.Ranked[0].Position)
	assert.Equal(t, material.Requirement{Target: 1020, Weight: 1}, res.Requirements[material.PropTensileStrength])
	// Unset flags keep the default requirement.
	assert.Equal(t, material.DefaultRequirements()[material.PropDensity], res.Requirements[material.PropDensity])
}

func TestRank_Table(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "rank", "-k", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Top 2 of catalog")
	assert.Contains(t, strings.ToUpper(out), "SCORE")
	assert.Contains(t, out, "Steel SAE")
}

func TestRank_Text(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "rank", "-o", "text", "-k", "1", "--su", "1020:1", "--sy", "655:1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "1  Steel SAE 4140 tempered"), lines[len(lines)-1])
}

func TestRank_InvalidRequirement(t *testing.T) {
	env := newCLIEnv(t)

	_, errOut, err := env.run(t, "rank", "--su", "abc")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
	assert.Contains(t, errOut, "Error:")

	_, _, err = env.run(t, "rank", "--su", "500:2")
	assert.True(t, errors.IsInputPrecondition(err))

	_, _, err = env.run(t, "rank", "-k", "-1")
	assert.True(t, errors.IsInputPrecondition(err))
}

func TestInvalidOutputFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.run(t, "rank", "-o", "yaml")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestDeviations(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "deviations", "-o", "json", "-k", "4")
	require.NoError(t, err)

	var res recommendation.DeviationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.ByScore, 4)
	require.Len(t, res.ByTotal, 4)
	for i := 1; i < len(res.ByTotal); i++ {
		assert.LessOrEqual(t, res.ByTotal[i-1].TotalAbsolute, res.ByTotal[i].TotalAbsolute)
	}

	out, _, err = env.run(t, "deviations", "-k", "2", "--by-total")
	require.NoError(t, err)
	assert.Contains(t, out, "%")
}

func TestCorrelate(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "correlate", "-o", "json", "--columns", "Su,Sy")
	require.NoError(t, err)

	var m material.CorrelationMatrix
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	require.Equal(t, 2, m.Size())
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.InDelta(t, m.At(0, 1), m.At(1, 0), 1e-12)

	out, _, err = env.run(t, "correlate")
	require.NoError(t, err)
	for _, code := range []string{"Su", "Sy", "E", "G", "mu", "Ro"} {
		assert.Contains(t, out, code)
	}

	_, _, err = env.run(t, "correlate", "--columns", "Su,Desc")
	assert.True(t, errors.IsInputPrecondition(err))
}

func TestPCA_SeededIsReproducible(t *testing.T) {
	env := newCLIEnv(t)
	first, _, err := env.run(t, "pca", "-o", "json", "--seed", "7", "-k", "2")
	require.NoError(t, err)
	second, _, err := env.run(t, "pca", "-o", "json", "--seed", "7", "-k", "2")
	require.NoError(t, err)
	assert.JSONEq(t, first, second)

	var res material.PCAResult
	require.NoError(t, json.Unmarshal([]byte(first), &res))
	require.Len(t, res.Projections, len(testutil.SampleRecords()))
	flagged := 0
	for _, p := range res.Projections {
		if p.Recommended {
			flagged++
		}
	}
	assert.Equal(t, 2, flagged)
}

func TestCatalogOverview(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "catalog", "overview", "-o", "json")
	require.NoError(t, err)

	var ov material.Overview
	require.NoError(t, json.Unmarshal([]byte(out), &ov))
	assert.Equal(t, len(testutil.SampleRecords()), ov.Count)
	assert.Equal(t, "file:"+env.catalog, ov.Source)
	require.Len(t, ov.Ranges, material.NumProperties)
	assert.Equal(t, 421.0, ov.Ranges[0].Min)
	assert.Equal(t, 1020.0, ov.Ranges[0].Max)
}

func TestCatalogImport_WithoutStore(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "catalog", "import", env.catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 8 materials")
	assert.Contains(t, out, "not saved")

	out, _, err = env.run(t, "catalog", "import", env.catalog, "-o", "json", "--source", "lab")
	require.NoError(t, err)
	var res catalog.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "lab", res.Source)
	assert.False(t, res.Persisted)
}

func TestCatalogImport_Errors(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.run(t, "catalog", "import", filepath.Join(env.dir, "missing.csv"))
	assert.True(t, errors.IsNotFound(err))

	empty := filepath.Join(env.dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("Material,Su\n"), 0o600))
	_, _, err = env.run(t, "catalog", "import", empty)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCatalogEmpty))

	_, _, err = env.run(t, "catalog", "import")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run(t, "export", "-k", "3")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvcatalog.ExportHeader(), rows[0])

	file := filepath.Join(env.dir, "out.csv")
	out, _, err = env.run(t, "export", "-k", "2", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "2 materials written")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	// version needs no configuration or catalog.
	err := Run(context.Background(), []string{"version", "-o", "json", "--config", "/does/not/exist.yaml"}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, Version, info["version"])
}

func TestMissingConfigFile(t *testing.T) {
	err := Run(context.Background(), []string{"rank", "--config", "/does/not/exist.yaml"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigError))
}

func TestRequirementFlags(t *testing.T) {
	tests := []struct {
		raw     string
		want    material.Requirement
		wantErr bool
	}{
		{raw: "500", want: material.Requirement{Target: 500, Weight: material.DefaultRequirementWeight}},
		{raw: "500:1", want: material.Requirement{Target: 500, Weight: 1}},
		{raw: " 0.3 : 0 ", want: material.Requirement{Target: 0.3, Weight: 0}},
		{raw: "x:1", wantErr: true},
		{raw: "1:y", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseRequirement(tt.raw, material.DefaultRequirementWeight)
			if tt.wantErr {
				assert.NotNil(t, err)
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"A", "Long"}, [][]string{{"xyz", "1"}, {"q"}})
	assert.Equal(t, "A    Long\n---  ----\nxyz  1\nq    \n", out)
	assert.Empty(t, FormatTable(nil, nil))
}

func TestDB_RequiresPostgres(t *testing.T) {
	env := newCLIEnv(t)
	for _, args := range [][]string{
		{"db", "status"},
		{"db", "migrate"},
		{"db", "rollback", "--steps", "2"},
		{"db", "force", "1"},
	} {
		_, _, err := env.run(t, args...)
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfigError), "%v: %v", args, err)
	}
}

func TestDB_ForceNeedsIntegerVersion(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.run(t, "db", "force", "latest")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = env.run(t, "db", "force")
	assert.Error(t, err)
}
