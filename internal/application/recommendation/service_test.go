package recommendation

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/messaging/kafka"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/storage/minio"
	"github.com/Arisex96/bio-mat-new/internal/testutil"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// --- Mocks ---

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Snapshot(ctx context.Context) (*material.Catalog, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*material.Catalog), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, id, fileName string, data []byte) (*minio.ExportUpload, error) {
	args := m.Called(ctx, id, fileName, data)
	if v := args.Get(0); v != nil {
		return v.(*minio.ExportUpload), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) RecommendationComputed(ctx context.Context, payload kafka.RecommendationComputedPayload) error {
	return m.Called(ctx, payload).Error(0)
}

func newTestService(t *testing.T, cat *material.Catalog) (*serviceImpl, *MockCatalog) {
	t.Helper()
	mc := new(MockCatalog)
	mc.On("Snapshot", mock.Anything).Return(cat, nil)
	svc := NewService(Deps{Catalog: mc, Logger: testutil.NewMockLogger()}).(*serviceImpl)
	svc.newID = func() string { return "q-1" }
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, mc
}

func seed(v int64) *int64 { return &v }

// --- Settings ---

func TestUpdateSettings_Defaults(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	assert.Equal(t, DefaultSettings(), svc.Settings())

	svc.UpdateSettings(Settings{DefaultK: 20, MaxK: 8})
	got := svc.Settings()
	assert.Equal(t, 8, got.DefaultK)
	assert.Equal(t, 8, got.MaxK)
	assert.Equal(t, material.DefaultPowerIterations, got.PCAIterations)
}

// --- Query resolution ---

func TestRank_KHandling(t *testing.T) {
	tests := []struct {
		name    string
		k       int
		want    int
		wantErr bool
	}{
		{"zero uses default", 0, 5, false},
		{"explicit", 3, 3, false},
		{"clamped to max", 50, 8, false},
		{"negative rejected", -1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, testutil.SampleCatalog())
			res, err := svc.Rank(context.Background(), Query{K: tt.k})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInputPrecondition(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.K)
			assert.Len(t, res.Ranked, tt.want)
		})
	}
}

func TestRank_PartialRequirementsMergeDefaults(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	res, err := svc.Rank(context.Background(), Query{
		Requirements: material.RequirementSpec{
			material.PropTensileStrength: {Target: 1020, Weight: 1},
			material.PropYieldStrength:   {Target: 655, Weight: 1},
		},
		K: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1020.0, res.Requirements[material.PropTensileStrength].Target)
	assert.Equal(t, 200000.0, res.Requirements[material.PropElasticModulus].Target)
	assert.Equal(t, material.DefaultRequirementWeight, res.Requirements[material.PropDensity].Weight)
	assert.Equal(t, "6", res.Ranked[0].Record.ID)
	assert.Equal(t, "fixture-v1", res.CatalogVersion)
}

func TestRank_InvalidWeight(t *testing.T) {
	svc, mc := newTestService(t, testutil.SampleCatalog())
	_, err := svc.Rank(context.Background(), Query{
		Requirements: material.RequirementSpec{material.PropDensity: {Target: 7800, Weight: 2}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInputPrecondition(err))
	mc.AssertNotCalled(t, "Snapshot", mock.Anything)
}

func TestRank_CatalogError(t *testing.T) {
	mc := new(MockCatalog)
	mc.On("Snapshot", mock.Anything).Return(nil, errors.New(errors.ErrCodeDatabaseError, "down"))
	log := testutil.NewMockLogger()
	svc := NewService(Deps{Catalog: mc, Logger: log})

	_, err := svc.Rank(context.Background(), Query{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	assert.True(t, log.HasMessage("error", "query failed"))
}

// --- Recommend ---

func TestRecommend_FullReport(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	events := new(MockEvents)
	events.On("RecommendationComputed", mock.Anything, mock.MatchedBy(func(p kafka.RecommendationComputedPayload) bool {
		return p.QueryID == "q-1" && p.K == 3 && len(p.Recommended) == 3 && p.CatalogVersion == "fixture-v1"
	})).Return(nil).Once()
	svc.events = events

	rep, err := svc.Recommend(context.Background(), Query{K: 3, Seed: seed(42)})
	require.NoError(t, err)

	assert.Equal(t, "q-1", rep.QueryID)
	assert.Equal(t, 8, rep.CatalogSize)
	require.Len(t, rep.Ranked, 3)
	require.Len(t, rep.Deviations, 3)
	require.Len(t, rep.ByTotal, 3)
	assert.Equal(t, rep.Ranked[0].Label(), rep.Deviations[0].Label)
	require.NotNil(t, rep.Correlation)
	assert.Equal(t, material.NumProperties, rep.Correlation.Size())
	require.NotNil(t, rep.Projection)
	assert.Len(t, rep.Projection.Projections, 8)
	require.Len(t, rep.Profile, 4)
	assert.True(t, rep.Profile[0].Target)
	assert.Empty(t, rep.Warnings)

	flagged := 0
	for _, p := range rep.Projection.Projections {
		if p.Recommended {
			flagged++
		}
	}
	assert.GreaterOrEqual(t, flagged, 3)
	events.AssertExpectations(t)
}

func TestRecommend_SeededProjectionIsReproducible(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	a, err := svc.Recommend(context.Background(), Query{Seed: seed(7)})
	require.NoError(t, err)
	b, err := svc.Recommend(context.Background(), Query{Seed: seed(7)})
	require.NoError(t, err)
	assert.Equal(t, a.Projection.Components, b.Projection.Components)

	svc.UpdateSettings(Settings{Seed: seed(7)})
	c, err := svc.Recommend(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, a.Projection.Components, c.Projection.Components)
}

func TestRecommend_SingleRecordCatalogWarnsForPCA(t *testing.T) {
	cat := material.NewCatalog(testutil.SampleRecords()[:1])
	svc, _ := newTestService(t, cat)

	rep, err := svc.Recommend(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, rep.Ranked, 1)
	assert.Nil(t, rep.Projection)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "PCA needs at least 2 records")
}

func TestRecommend_PublishFailureIsNotFatal(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	events := new(MockEvents)
	events.On("RecommendationComputed", mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeMessagingError, "broker gone"))
	svc.events = events

	_, err := svc.Recommend(context.Background(), Query{})
	assert.NoError(t, err)
}

// --- Single views ---

func TestDeviations_BothOrders(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	res, err := svc.Deviations(context.Background(), Query{K: 8})
	require.NoError(t, err)
	require.Len(t, res.ByScore, 8)
	require.Len(t, res.ByTotal, 8)
	for i := 1; i < len(res.ByTotal); i++ {
		assert.LessOrEqual(t, res.ByTotal[i-1].TotalAbsolute, res.ByTotal[i].TotalAbsolute)
	}
	for i, row := range res.ByScore {
		assert.Equal(t, i+1, row.Position)
	}
}

func TestProfile_TargetFirst(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	res, err := svc.Profile(context.Background(), Query{K: 2})
	require.NoError(t, err)
	require.Len(t, res.Series, 3)
	assert.Equal(t, "Target", res.Series[0].Label)
	assert.Len(t, res.Properties, material.NumProperties)
	for _, s := range res.Series {
		for _, v := range s.Values {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestCorrelation_Columns(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())

	all, err := svc.Correlation(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, material.NumProperties, all.Size())

	two, err := svc.Correlation(context.Background(), []string{"Su", "Sy"})
	require.NoError(t, err)
	assert.Equal(t, 2, two.Size())

	_, err = svc.Correlation(context.Background(), []string{"Su", "Desc"})
	assert.True(t, errors.IsInputPrecondition(err))
}

func TestProjection_Flags(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	res, err := svc.Projection(context.Background(), []string{"Steel SAE 4140 tempered"}, seed(1))
	require.NoError(t, err)
	for _, p := range res.Projections {
		assert.Equal(t, p.ID == "6", p.Recommended, p.Label)
	}
}

// --- Export ---

func TestExport_WritesCSVAndUploads(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "q-1", csvcatalog.ExportFileName, mock.Anything).
		Return(&minio.ExportUpload{Bucket: "matsel-exports", Key: "recommendations/q-1/" + csvcatalog.ExportFileName}, nil)
	svc.exports = up

	var buf bytes.Buffer
	res, err := svc.Export(context.Background(), Query{K: 4}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Records)
	require.NotNil(t, res.Upload)
	assert.Equal(t, "matsel-exports", res.Upload.Bucket)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, csvcatalog.ExportHeader(), rows[0])
	up.AssertExpectations(t)
}

func TestExport_UploadFailureStillWrites(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleCatalog())
	up := new(MockUploader)
	up.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeStorageError, "bucket missing"))
	svc.exports = up

	var buf bytes.Buffer
	res, err := svc.Export(context.Background(), Query{}, &buf)
	require.NoError(t, err)
	assert.Nil(t, res.Upload)
	assert.NotZero(t, buf.Len())
}
