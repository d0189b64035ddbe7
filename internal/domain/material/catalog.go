package material

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Catalog is an immutable snapshot of material records. Every analytics
// function takes the snapshot as an explicit argument; nothing in this
// package holds catalog state between calls.
type Catalog struct {
	version  string
	source   string
	loadedAt time.Time
	records  []Record
}

// CatalogOption customises NewCatalog.
type CatalogOption func(*Catalog)

// WithVersion sets the snapshot version instead of a generated one.
func WithVersion(v string) CatalogOption {
	return func(c *Catalog) {
		if v != "" {
			c.version = v
		}
	}
}

// WithSource records where the snapshot came from ("postgres", "file", ...).
func WithSource(s string) CatalogOption {
	return func(c *Catalog) { c.source = s }
}

// WithLoadedAt overrides the load timestamp.
func WithLoadedAt(t time.Time) CatalogOption {
	return func(c *Catalog) { c.loadedAt = t }
}

// NewCatalog copies records into a new snapshot.
func NewCatalog(records []Record, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		version:  uuid.NewString(),
		loadedAt: time.Now().UTC(),
		records:  append([]Record(nil), records...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of records. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// At returns the i-th record by value.
func (c *Catalog) At(i int) Record {
	return c.records[i]
}

// Records returns a copy of all records in catalog order.
func (c *Catalog) Records() []Record {
	if c == nil {
		return nil
	}
	return append([]Record(nil), c.records...)
}

// Labels returns the material labels in catalog order.
func (c *Catalog) Labels() []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.records[i].Label()
	}
	return out
}

// Version, Source and LoadedAt return zero values for a nil catalog.
func (c *Catalog) Version() string {
	if c == nil {
		return ""
	}
	return c.version
}

func (c *Catalog) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

func (c *Catalog) LoadedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.loadedAt
}

// PresentProperties returns the properties for which at least one record has
// a value, in canonical order.
func (c *Catalog) PresentProperties() []Property {
	out := make([]Property, 0, NumProperties)
	if c == nil {
		return out
	}
	for i, p := range Properties {
		for _, r := range c.records {
			if r.Values[i].Valid {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// PropertyRange is the observed span of one property. Missing values are
// ignored; Present is false when no record has the property.
type PropertyRange struct {
	Property Property `json:"property"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Count    int      `json:"count"`
	Present  bool     `json:"present"`
}

// Overview summarises a catalog: record count and observed range per property.
type Overview struct {
	Version  string          `json:"version"`
	Source   string          `json:"source"`
	LoadedAt time.Time       `json:"loaded_at"`
	Count    int             `json:"count"`
	Ranges   []PropertyRange `json:"ranges"`
}

// Overview computes the dataset overview. A nil catalog reports zero records.
func (c *Catalog) Overview() Overview {
	if c == nil {
		c = &Catalog{}
	}
	ov := Overview{
		Version:  c.version,
		Source:   c.source,
		LoadedAt: c.loadedAt,
		Count:    len(c.records),
		Ranges:   make([]PropertyRange, 0, NumProperties),
	}
	for i, p := range Properties {
		pr := PropertyRange{Property: p, Min: math.Inf(1), Max: math.Inf(-1)}
		for _, r := range c.records {
			v := r.Values[i]
			if !v.Valid {
				continue
			}
			pr.Count++
			pr.Min = math.Min(pr.Min, v.Float64)
			pr.Max = math.Max(pr.Max, v.Float64)
		}
		if pr.Count == 0 {
			pr.Min, pr.Max = 0, 0
		} else {
			pr.Present = true
		}
		ov.Ranges = append(ov.Ranges, pr)
	}
	return ov
}

type catalogJSON struct {
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Records  []Record  `json:"records"`
}

// MarshalJSON encodes the whole snapshot, used by the snapshot cache.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(catalogJSON{
		Version:  c.version,
		Source:   c.source,
		LoadedAt: c.loadedAt,
		Records:  c.records,
	})
}

// UnmarshalJSON restores a snapshot encoded by MarshalJSON.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	var in catalogJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Catalog{
		version:  in.Version,
		source:   in.Source,
		loadedAt: in.LoadedAt,
		records:  in.Records,
	}
	return nil
}

func errCatalogNotFound(source string) *errors.AppError {
	return errors.New(errors.ErrCodeCatalogNotFound, "no catalog stored").WithDetail("source=" + source)
}
