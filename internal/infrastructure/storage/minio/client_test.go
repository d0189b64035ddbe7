package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/Arisex96/bio-mat-new/pkg/errors"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockObjectAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockObjectAPI) SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error {
	return m.Called(ctx, bucketName, config).Error(0)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockObjectAPI) Open(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockObjectAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expiry, reqParams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockObjectAPI
	client *Client
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.client = NewClientWithAPI(s.api, MinIOConfig{}, logging.NewNopLogger())
}

func (s *ClientTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestDefaults() {
	in := MinIOConfig{ExportBucket: "exports"}
	cfg := in.withDefaults()

	assert.Equal(s.T(), "us-east-1", cfg.Region)
	assert.Equal(s.T(), "matsel-catalogs", cfg.CatalogBucket)
	assert.Equal(s.T(), "current/catalog.csv", cfg.CatalogObject)
	assert.Equal(s.T(), "exports", cfg.ExportBucket)
	assert.Equal(s.T(), 30, cfg.ExportTTLDays)
	assert.Equal(s.T(), time.Hour, cfg.PresignExpiry)
	assert.Empty(s.T(), in.Region, "input is not modified")
}

func (s *ClientTestSuite) TestPrepare_CreatesMissingBucket() {
	s.api.On("BucketExists", mock.Anything, "matsel-catalogs").Return(true, nil)
	s.api.On("BucketExists", mock.Anything, "matsel-exports").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "matsel-exports", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)
	s.api.On("SetBucketLifecycle", mock.Anything, "matsel-exports", mock.MatchedBy(func(c *lifecycle.Configuration) bool {
		return len(c.Rules) == 1 && c.Rules[0].Prefix == "recommendations/" && c.Rules[0].Expiration.Days == 30
	})).Return(nil)

	assert.NoError(s.T(), s.client.Prepare(context.Background()))
}

func (s *ClientTestSuite) TestPrepare_BucketCheckFails() {
	s.api.On("BucketExists", mock.Anything, "matsel-catalogs").Return(false, errors.New("denied"))

	err := s.client.Prepare(context.Background())
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestPrepare_LifecycleRejectedIsNotFatal() {
	s.api.On("BucketExists", mock.Anything, mock.Anything).Return(true, nil)
	s.api.On("SetBucketLifecycle", mock.Anything, "matsel-exports", mock.Anything).Return(errors.New("not implemented"))

	assert.NoError(s.T(), s.client.Prepare(context.Background()))
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("BucketExists", mock.Anything, "matsel-catalogs").Return(true, nil).Once()
	assert.NoError(s.T(), s.client.HealthCheck(context.Background()))

	s.api.On("BucketExists", mock.Anything, "matsel-catalogs").Return(false, nil).Once()
	err := s.client.HealthCheck(context.Background())
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))

	s.api.On("BucketExists", mock.Anything, "matsel-catalogs").Return(false, errors.New("timeout")).Once()
	err = s.client.HealthCheck(context.Background())
	assert.ErrorContains(s.T(), err, "timeout")
}

func (s *ClientTestSuite) TestCatalogSource_Load() {
	body := "Material,Heat treatment,Su,Sy,E,G,mu,Ro\nSteel SAE 1020,annealed,395,295,207000,79000,0.3,7860\n"
	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.api.On("StatObject", mock.Anything, "matsel-catalogs", "current/catalog.csv", mock.Anything).
		Return(minio.ObjectInfo{ETag: "etag-1", Size: int64(len(body)), LastModified: modified}, nil)
	s.api.On("Open", mock.Anything, "matsel-catalogs", "current/catalog.csv").
		Return(io.NopCloser(strings.NewReader(body)), nil)

	cat, err := NewCatalogObjectSource(s.client).Load(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, cat.Len())
	assert.Equal(s.T(), "etag-1", cat.Version())
	assert.Equal(s.T(), modified, cat.LoadedAt())
	assert.Equal(s.T(), "s3://matsel-catalogs/current/catalog.csv", cat.Source())
}

func (s *ClientTestSuite) TestCatalogSource_MissingObject() {
	s.api.On("StatObject", mock.Anything, "matsel-catalogs", "current/catalog.csv", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	_, err := NewCatalogObjectSource(s.client).Load(context.Background())
	assert.Equal(s.T(), pkgerrors.ErrCodeCatalogNotFound, pkgerrors.GetCode(err))
}

func (s *ClientTestSuite) TestCatalogSource_PutCatalog() {
	data := []byte("Material,Su\nA,1\n")
	s.api.On("PutObject", mock.Anything, "matsel-catalogs", "current/catalog.csv", mock.Anything, int64(len(data)),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool { return o.ContentType == "text/csv" })).
		Return(minio.UploadInfo{Size: int64(len(data))}, nil)

	assert.NoError(s.T(), NewCatalogObjectSource(s.client).PutCatalog(context.Background(), data))
}

func (s *ClientTestSuite) TestExportStore_Upload() {
	data := []byte("Material,Distance_Score\n")
	key := "recommendations/q-1/material_recommendations.csv"
	u, _ := url.Parse("https://minio.local/matsel-exports/" + key + "?X-Amz-Signature=abc")

	s.api.On("PutObject", mock.Anything, "matsel-exports", key, mock.Anything, int64(len(data)), mock.Anything).
		Return(minio.UploadInfo{Size: int64(len(data))}, nil)
	s.api.On("PresignedGetObject", mock.Anything, "matsel-exports", key, time.Hour, url.Values(nil)).
		Return(u, nil)

	store := NewExportStore(s.client)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	up, err := store.Upload(context.Background(), "q-1", "material_recommendations.csv", data)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), key, up.Key)
	assert.Equal(s.T(), u.String(), up.URL)
	assert.Equal(s.T(), fixed.Add(time.Hour), up.ExpiresAt)
}

func (s *ClientTestSuite) TestClosedClient() {
	require.NoError(s.T(), s.client.Close())
	_, err := NewCatalogObjectSource(s.client).Load(context.Background())
	assert.Equal(s.T(), ErrClientClosed, err)
	assert.Equal(s.T(), ErrClientClosed, s.client.HealthCheck(context.Background()))
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
