package csvcatalog

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
)

// FallbackSourceName labels catalogs built from the embedded dataset.
const FallbackSourceName = "embedded"

//go:embed fallback.csv
var fallbackCSV []byte

var (
	fallbackOnce sync.Once
	fallbackRecs []material.Record
	fallbackErr  error
)

// Fallback returns the records of the embedded SAE steel dataset. The file is
// parsed once; callers receive their own copy.
func Fallback() ([]material.Record, error) {
	fallbackOnce.Do(func() {
		res, err := Parse(bytes.NewReader(fallbackCSV))
		if err != nil {
			fallbackErr = err
			return
		}
		fallbackRecs = res.Records
	})
	if fallbackErr != nil {
		return nil, fallbackErr
	}
	out := make([]material.Record, len(fallbackRecs))
	copy(out, fallbackRecs)
	return out, nil
}

// FallbackCatalog wraps Fallback in a catalog snapshot.
func FallbackCatalog() (*material.Catalog, error) {
	recs, err := Fallback()
	if err != nil {
		return nil, err
	}
	return material.NewCatalog(recs, material.WithSource(FallbackSourceName)), nil
}
