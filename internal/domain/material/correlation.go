package material

import (
	"math"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// MinCorrelationPairs is the smallest number of paired observations for which
// a correlation is reported. Fewer pairs yield 0.
const MinCorrelationPairs = 3

// CorrelationMatrix is a square Pearson correlation matrix. Labels index both
// rows and columns.
type CorrelationMatrix struct {
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
}

// At returns the correlation between the i-th and j-th columns.
func (m *CorrelationMatrix) At(i, j int) float64 {
	return m.Values[i][j]
}

// Size returns the number of columns.
func (m *CorrelationMatrix) Size() int {
	return len(m.Labels)
}

// Correlate computes the Pearson correlation matrix over the named numeric
// columns. Columns may be property names, property codes or auxiliary columns.
//
// Degenerate pairs are recovered locally: fewer than MinCorrelationPairs
// records with both values present, a zero sum of squares, or a non-finite
// result all give 0. The diagonal is exactly 1. Each cell is computed on its
// own, so symmetry holds numerically rather than by copying.
func Correlate(c *Catalog, columns []string) (*CorrelationMatrix, error) {
	if len(columns) == 0 {
		return nil, errors.InputPrecondition("at least one column is required")
	}
	for _, col := range columns {
		if err := ValidateColumn(col); err != nil {
			return nil, err
		}
	}

	// Stage 1: extract each column once.
	recs := c.Records()
	data := make([][]NullFloat, len(columns))
	for j, col := range columns {
		data[j] = make([]NullFloat, len(recs))
		for n, r := range recs {
			v, _ := r.Column(col)
			data[j][n] = v
		}
	}

	// Stage 2: pairwise coefficients.
	m := &CorrelationMatrix{
		Labels: append([]string(nil), columns...),
		Values: make([][]float64, len(columns)),
	}
	for i := range columns {
		m.Values[i] = make([]float64, len(columns))
		for j := range columns {
			if i == j {
				m.Values[i][j] = 1
				continue
			}
			m.Values[i][j] = pearson(data[i], data[j])
		}
	}
	return m, nil
}

// CorrelateProperties is Correlate over analysed properties; with no
// arguments it uses all six.
func CorrelateProperties(c *Catalog, props ...Property) (*CorrelationMatrix, error) {
	if len(props) == 0 {
		props = Properties[:]
	}
	cols := make([]string, len(props))
	for i, p := range props {
		cols[i] = string(p)
	}
	return Correlate(c, cols)
}

// pearson returns the correlation of x and y over rows where both are present.
func pearson(x, y []NullFloat) float64 {
	var xs, ys []float64
	for n := range x {
		if x[n].Valid && y[n].Valid {
			xs = append(xs, x[n].Float64)
			ys = append(ys, y[n].Float64)
		}
	}
	if len(xs) < MinCorrelationPairs || isConstant(xs) || isConstant(ys) {
		return 0
	}

	cnt := float64(len(xs))
	var meanX, meanY float64
	for n := range xs {
		meanX += xs[n]
		meanY += ys[n]
	}
	meanX /= cnt
	meanY /= cnt

	var num, ssX, ssY float64
	for n := range xs {
		dx := xs[n] - meanX
		dy := ys[n] - meanY
		num += dx * dy
		ssX += dx * dx
		ssY += dy * dy
	}
	if ssX == 0 || ssY == 0 {
		return 0
	}
	r := num / math.Sqrt(ssX*ssY)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// isConstant reports whether every element equals the first. Summing equal
// values can leave a rounding residue in the mean, so constancy is checked
// on the raw values.
func isConstant(xs []float64) bool {
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}
