// Package minio keeps raw catalog files and recommendation exports in an
// S3-compatible object store.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

var ErrClientClosed = errors.New(errors.ErrCodeStorageError, "object store client is closed")

const connectTimeout = 10 * time.Second

// ObjectAPI is the part of the SDK client this package calls. Open returns
// an object body without checking that the object exists.
type ObjectAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error)
}

type sdkAPI struct{ *minio.Client }

func (a sdkAPI) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return a.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// MinIOConfig names the endpoint and the two buckets. Exports older than
// ExportTTLDays are removed by a bucket lifecycle rule.
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	CatalogBucket   string        `mapstructure:"catalog_bucket"`
	CatalogObject   string        `mapstructure:"catalog_object"`
	ExportBucket    string        `mapstructure:"export_bucket"`
	ExportPrefix    string        `mapstructure:"export_prefix"`
	ExportTTLDays   int           `mapstructure:"export_ttl_days"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

func (c MinIOConfig) withDefaults() MinIOConfig {
	orDefault := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	orDefault(&c.Region, "us-east-1")
	orDefault(&c.CatalogBucket, "matsel-catalogs")
	orDefault(&c.CatalogObject, "current/catalog.csv")
	orDefault(&c.ExportBucket, "matsel-exports")
	orDefault(&c.ExportPrefix, "recommendations/")
	if c.ExportTTLDays == 0 {
		c.ExportTTLDays = 30
	}
	if c.PresignExpiry == 0 {
		c.PresignExpiry = time.Hour
	}
	return c
}

type Client struct {
	api    ObjectAPI
	cfg    MinIOConfig
	logger logging.Logger
	closed atomic.Bool
}

// NewClient connects, then creates missing buckets and the export expiry
// rule. cfg is not modified.
func NewClient(cfg *MinIOConfig, log logging.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeConfigError, "minio config must not be nil")
	}
	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.withDefaults().Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigError, "invalid minio endpoint").WithDetail(cfg.Endpoint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if _, err := sdk.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "object store unreachable").WithDetail(cfg.Endpoint)
	}

	c := NewClientWithAPI(sdkAPI{sdk}, *cfg, log)
	if err := c.Prepare(ctx); err != nil {
		return nil, err
	}
	log.Info("object store connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI skips connecting; tests pass a mock ObjectAPI.
func NewClientWithAPI(api ObjectAPI, cfg MinIOConfig, log logging.Logger) *Client {
	return &Client{api: api, cfg: cfg.withDefaults(), logger: log}
}

func (c *Client) Config() MinIOConfig { return c.cfg }

// Prepare creates missing buckets and installs the export expiry rule. A
// store that rejects lifecycle rules only gets a warning.
func (c *Client) Prepare(ctx context.Context) error {
	for _, b := range []string{c.cfg.CatalogBucket, c.cfg.ExportBucket} {
		ok, err := c.api.BucketExists(ctx, b)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "cannot check bucket").WithDetail(b)
		}
		if ok {
			continue
		}
		if err := c.api.MakeBucket(ctx, b, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "cannot create bucket").WithDetail(b)
		}
		c.logger.Info("bucket created", logging.String("bucket", b))
	}

	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:         "expire-exports",
		Status:     "Enabled",
		Prefix:     c.cfg.ExportPrefix,
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(c.cfg.ExportTTLDays)},
	}}
	if err := c.api.SetBucketLifecycle(ctx, c.cfg.ExportBucket, rules); err != nil {
		c.logger.Warn("export expiry rule not installed", logging.String("bucket", c.cfg.ExportBucket), logging.Err(err))
	}
	return nil
}

// HealthCheck fails when the store is unreachable or the catalog bucket is
// gone.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	ok, err := c.api.BucketExists(ctx, c.cfg.CatalogBucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "object store health check failed")
	}
	if !ok {
		return errors.New(errors.ErrCodeStorageError, "catalog bucket missing").WithDetail(c.cfg.CatalogBucket)
	}
	return nil
}

// Close only marks the client closed; the SDK holds no connections to
// release.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *Client) ready() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}

func isNoSuchKey(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
