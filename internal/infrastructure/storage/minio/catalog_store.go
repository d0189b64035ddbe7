package minio

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/catalog/csvcatalog"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

const csvContentType = "text/csv"

// CatalogObjectSource reads the current catalog CSV from the catalog bucket.
// It implements material.CatalogSource.
type CatalogObjectSource struct {
	client *Client
}

func NewCatalogObjectSource(client *Client) *CatalogObjectSource {
	return &CatalogObjectSource{client: client}
}

func (s *CatalogObjectSource) Name() string {
	cfg := s.client.cfg
	return "s3://" + cfg.CatalogBucket + "/" + cfg.CatalogObject
}

func (s *CatalogObjectSource) Load(ctx context.Context) (*material.Catalog, error) {
	if err := s.client.ready(); err != nil {
		return nil, err
	}
	cfg := s.client.cfg

	info, err := s.client.api.StatObject(ctx, cfg.CatalogBucket, cfg.CatalogObject, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.New(errors.ErrCodeCatalogNotFound, "no catalog object").WithDetail(s.Name())
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat catalog object")
	}

	body, err := s.client.api.Open(ctx, cfg.CatalogBucket, cfg.CatalogObject)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read catalog object")
	}
	defer body.Close()

	res, err := csvcatalog.Parse(body)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, errors.New(errors.ErrCodeCatalogEmpty, "catalog object has no usable rows").WithDetail(s.Name())
	}

	s.client.logger.Debug("loaded catalog object",
		logging.String("object", s.Name()),
		logging.Int64("size", info.Size),
		logging.Int("records", len(res.Records)),
	)
	return material.NewCatalog(res.Records,
		material.WithSource(s.Name()),
		material.WithVersion(info.ETag),
		material.WithLoadedAt(info.LastModified),
	), nil
}

// PutCatalog replaces the current catalog object with data.
func (s *CatalogObjectSource) PutCatalog(ctx context.Context, data []byte) error {
	if err := s.client.ready(); err != nil {
		return err
	}
	cfg := s.client.cfg
	_, err := s.client.api.PutObject(ctx, cfg.CatalogBucket, cfg.CatalogObject,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: csvContentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload catalog object")
	}
	return nil
}

// ExportUpload is a stored recommendation export.
type ExportUpload struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportStore uploads recommendation exports and hands out presigned links.
type ExportStore struct {
	client *Client
	now    func() time.Time
}

func NewExportStore(client *Client) *ExportStore {
	return &ExportStore{client: client, now: time.Now}
}

// Upload stores data under <prefix><id>/<fileName> and returns a presigned
// download URL.
func (s *ExportStore) Upload(ctx context.Context, id, fileName string, data []byte) (*ExportUpload, error) {
	if err := s.client.ready(); err != nil {
		return nil, err
	}
	cfg := s.client.cfg
	key := path.Join(cfg.ExportPrefix, id, fileName)

	info, err := s.client.api.PutObject(ctx, cfg.ExportBucket, key,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType:        csvContentType,
			ContentDisposition: `attachment; filename="` + fileName + `"`,
		})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload export")
	}

	u, err := s.client.api.PresignedGetObject(ctx, cfg.ExportBucket, key, cfg.PresignExpiry, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign export")
	}
	return &ExportUpload{
		Bucket:    cfg.ExportBucket,
		Key:       key,
		Size:      info.Size,
		URL:       u.String(),
		ExpiresAt: s.now().Add(cfg.PresignExpiry),
	}, nil
}
