package material

import (
	"math"
	"sort"
)

// Closeness bands a deviation magnitude for presentation.
type Closeness string

const (
	ClosenessVeryClose Closeness = "very_close"
	ClosenessClose     Closeness = "close"
	ClosenessSomewhat  Closeness = "somewhat"
	ClosenessFar       Closeness = "far"
)

// Band limits, in percent.
const (
	VeryCloseLimit = 5.0
	CloseLimit     = 15.0
	SomewhatLimit  = 30.0
)

// ClosenessOf bands |deviation|: ≤5 very close, ≤15 close, ≤30 somewhat,
// otherwise far. For an absolute deviation (target 0) the same limits apply
// to the raw difference.
func ClosenessOf(deviation float64) Closeness {
	d := math.Abs(deviation)
	switch {
	case d <= VeryCloseLimit:
		return ClosenessVeryClose
	case d <= CloseLimit:
		return ClosenessClose
	case d <= SomewhatLimit:
		return ClosenessSomewhat
	default:
		return ClosenessFar
	}
}

// PropertyDeviation is the signed deviation of one property from its target.
// Percent is false when the target is 0 and Deviation is the plain difference.
type PropertyDeviation struct {
	Property  Property  `json:"property"`
	Value     float64   `json:"value"`
	Target    float64   `json:"target"`
	Deviation float64   `json:"deviation"`
	Percent   bool      `json:"percent"`
	Closeness Closeness `json:"closeness"`
}

// RecordDeviation holds a ranked record's deviations in canonical property
// order together with the sum of their magnitudes.
type RecordDeviation struct {
	ID            string                           `json:"id"`
	Label         string                           `json:"label"`
	Position      int                              `json:"position"`
	DistanceScore float64                          `json:"distance_score"`
	Properties    [NumProperties]PropertyDeviation `json:"properties"`
	TotalAbsolute float64                          `json:"total_absolute_deviation"`
}

// Deviation returns the deviation for p.
func (d RecordDeviation) Deviation(p Property) PropertyDeviation {
	return d.Properties[p.Index()]
}

// DeviationOf computes the deviation of value from target: a percentage when
// target is non-zero, the absolute difference otherwise.
func DeviationOf(value, target float64) (deviation float64, percent bool) {
	if target != 0 {
		return (value - target) / target * 100, true
	}
	return value - target, false
}

// Deviations computes per-property deviations for every ranked record, in
// the ranker's order. Missing values count as 0. The result is independent
// of requirement weights.
func Deviations(ranked []RankedMaterial, req RequirementSpec) []RecordDeviation {
	out := make([]RecordDeviation, len(ranked))
	for n, m := range ranked {
		rd := RecordDeviation{
			ID:            m.Record.ID,
			Label:         m.Label(),
			Position:      m.Position,
			DistanceScore: m.DistanceScore,
		}
		for i, p := range Properties {
			v := m.Record.ValueOrZero(p)
			t := req[p].Target
			dev, pct := DeviationOf(v, t)
			rd.Properties[i] = PropertyDeviation{
				Property:  p,
				Value:     v,
				Target:    t,
				Deviation: dev,
				Percent:   pct,
				Closeness: ClosenessOf(dev),
			}
			rd.TotalAbsolute += math.Abs(dev)
		}
		out[n] = rd
	}
	return out
}

// OrderByTotalDeviation returns a copy of rows sorted by ascending total
// absolute deviation, ties in input order. rows itself is not reordered, so
// the distance-score view and this view can be presented side by side.
func OrderByTotalDeviation(rows []RecordDeviation) []RecordDeviation {
	out := append([]RecordDeviation(nil), rows...)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].TotalAbsolute < out[b].TotalAbsolute
	})
	return out
}
