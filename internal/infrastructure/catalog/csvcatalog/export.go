package csvcatalog

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// ExportFileName is the download name of a recommendation export.
const ExportFileName = "material_recommendations.csv"

// ExportHeader is the header row of a recommendation export.
func ExportHeader() []string {
	h := make([]string, 0, material.NumProperties+2)
	h = append(h, material.ColMaterial)
	for _, p := range material.Properties {
		h = append(h, string(p))
	}
	return append(h, material.ColDistance)
}

// WriteRecommendations writes ranked materials as CSV: the label, the six
// properties under their canonical names, and the distance score. Missing
// values are written as empty cells.
func WriteRecommendations(w io.Writer, ranked []material.RankedMaterial) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader()); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write export header")
	}
	for _, m := range ranked {
		row := make([]string, 0, material.NumProperties+2)
		row = append(row, m.Label())
		for _, p := range material.Properties {
			row = append(row, formatValue(m.Record, p))
		}
		row = append(row, strconv.FormatFloat(m.DistanceScore, 'f', -1, 64))
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write export row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to flush export")
	}
	return nil
}

// WriteCatalog writes records in the raw catalog layout accepted by Parse.
func WriteCatalog(w io.Writer, records []material.Record) error {
	cw := csv.NewWriter(w)
	header := []string{material.ColStd, material.ColID, material.ColMaterial, material.ColHeatTreat}
	for _, p := range material.Properties {
		header = append(header, p.Code())
	}
	header = append(header, material.AuxiliaryColumns...)
	header = append(header, material.ColDescription)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write catalog header")
	}

	for _, r := range records {
		row := []string{r.Std, r.ID, r.Name, r.HeatTreatment}
		for _, p := range material.Properties {
			row = append(row, formatValue(r, p))
		}
		for _, v := range r.Auxiliary {
			row = append(row, formatNull(v))
		}
		row = append(row, r.Description)
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write catalog row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to flush catalog")
	}
	return nil
}

func formatValue(r material.Record, p material.Property) string {
	return formatNull(r.Values[p.Index()])
}

func formatNull(v material.NullFloat) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
