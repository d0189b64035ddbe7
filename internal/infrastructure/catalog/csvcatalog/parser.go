// Package csvcatalog reads and writes material catalogs in the comma-separated
// layout used by the published steel datasets:
//
//	Std,ID,Material,Heat treatment,Su,Sy,A5,Bhn,E,G,mu,Ro,pH,Desc,HV
//
// Short property headers (Su, Sy, E, G, mu, Ro) and their canonical long
// names are both accepted.
package csvcatalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Result is the outcome of parsing one catalog file.
type Result struct {
	Records []material.Record
	// Skipped counts data rows without any analysed property.
	Skipped int
	// Invalid counts numeric cells that could not be parsed and were read as
	// missing.
	Invalid int
}

type columnKind int

const (
	kindIgnored columnKind = iota
	kindProperty
	kindAuxiliary
	kindStd
	kindID
	kindName
	kindHeat
	kindDesc
)

type column struct {
	kind columnKind
	prop material.Property
	aux  string
}

func classify(header string) column {
	h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if p, err := material.ParseProperty(h); err == nil {
		return column{kind: kindProperty, prop: p}
	}
	for _, a := range material.AuxiliaryColumns {
		if strings.EqualFold(a, h) {
			return column{kind: kindAuxiliary, aux: a}
		}
	}
	switch strings.ToLower(h) {
	case "std":
		return column{kind: kindStd}
	case "id":
		return column{kind: kindID}
	case "material":
		return column{kind: kindName}
	case "heat treatment", "heat_treatment":
		return column{kind: kindHeat}
	case "desc", "description":
		return column{kind: kindDesc}
	}
	return column{kind: kindIgnored}
}

// Parse reads a catalog from r. The first row is the header and must contain
// a Material column and at least one analysed property column. Empty numeric
// cells are missing values; so are cells that do not parse as numbers.
func Parse(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeCatalogEmpty, "catalog file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCatalogParseError, "failed to read catalog header")
	}

	cols := make([]column, len(header))
	var hasName, hasProp bool
	for i, h := range header {
		cols[i] = classify(h)
		hasName = hasName || cols[i].kind == kindName
		hasProp = hasProp || cols[i].kind == kindProperty
	}
	if !hasName {
		return nil, errors.New(errors.ErrCodeCatalogParseError, "catalog header has no Material column")
	}
	if !hasProp {
		return nil, errors.DegenerateData("catalog header has no numeric property column").
			WithDetail(strings.Join(header, ","))
	}

	res := &Result{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCatalogParseError, "malformed catalog row").
				WithDetailf("line=%d", line)
		}
		if isBlank(row) {
			continue
		}

		rec := material.Record{}
		for i, cell := range row {
			if i >= len(cols) {
				break
			}
			cell = strings.TrimSpace(cell)
			c := cols[i]
			switch c.kind {
			case kindProperty, kindAuxiliary:
				v, ok, bad := parseNumber(cell)
				if bad {
					res.Invalid++
				}
				if !ok {
					continue
				}
				if c.kind == kindProperty {
					rec = rec.With(c.prop, v)
				} else {
					rec = rec.WithAuxiliary(c.aux, v)
				}
			case kindStd:
				rec.Std = cell
			case kindID:
				rec.ID = cell
			case kindName:
				rec.Name = cell
			case kindHeat:
				rec.HeatTreatment = cell
			case kindDesc:
				rec.Description = cell
			}
		}
		if !rec.HasAnyValue() {
			res.Skipped++
			continue
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("row-%d", line)
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// parseNumber returns the value, whether a value is present, and whether the
// cell was non-empty but unparsable. NaN and infinities are unparsable: they
// would poison every min/max the analytics compute.
func parseNumber(cell string) (float64, bool, bool) {
	if cell == "" {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, true
	}
	return v, true, false
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
