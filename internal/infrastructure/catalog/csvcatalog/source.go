package csvcatalog

import (
	"bytes"
	"context"
	"os"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// FileSource loads a catalog from a CSV file on local disk.
type FileSource struct {
	Path string
}

// Name implements material.CatalogSource.
func (s FileSource) Name() string { return "file:" + s.Path }

// Load implements material.CatalogSource. A missing file or an empty path
// reports errors.ErrCodeCatalogNotFound.
func (s FileSource) Load(ctx context.Context) (*material.Catalog, error) {
	if s.Path == "" {
		return nil, errors.New(errors.ErrCodeCatalogNotFound, "no catalog file configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "catalog load cancelled")
	}
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeCatalogNotFound, "catalog file not found").WithDetail(s.Path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCatalogParseError, "failed to open catalog file").WithDetail(s.Path)
	}
	defer f.Close()

	res, err := Parse(f)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, errors.New(errors.ErrCodeCatalogEmpty, "catalog file has no usable rows").WithDetail(s.Path)
	}
	return material.NewCatalog(res.Records, material.WithSource(s.Name())), nil
}

// ParseCatalog parses an in-memory payload, as received by an upload
// endpoint, into a catalog snapshot labelled with source.
func ParseCatalog(data []byte, source string) (*material.Catalog, *Result, error) {
	res, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	if len(res.Records) == 0 {
		return nil, res, errors.New(errors.ErrCodeCatalogEmpty, "catalog has no usable rows")
	}
	return material.NewCatalog(res.Records, material.WithSource(source)), res, nil
}
