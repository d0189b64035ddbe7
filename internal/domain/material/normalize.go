package material

import "math"

// DisplayMidpoint is the normalized value shown for a property whose range is
// zero in display mode.
const DisplayMidpoint = 0.5

// Bounds is the min/max of one property over a set of records.
type Bounds struct {
	Property Property `json:"property"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
}

// Range returns Max - Min.
func (b Bounds) Range() float64 {
	return b.Max - b.Min
}

// Degenerate reports whether every observed value is equal.
func (b Bounds) Degenerate() bool {
	return b.Max == b.Min
}

// NormalizeForRanking maps v into [0,1] relative to b. The second return is
// false when the range is zero: the ranker must skip the property entirely
// rather than add an arbitrary constant term.
func (b Bounds) NormalizeForRanking(v float64) (float64, bool) {
	if b.Degenerate() {
		return 0, false
	}
	return (v - b.Min) / b.Range(), true
}

// NormalizeForDisplay maps v into [0,1] relative to b, returning the midpoint
// when the range is zero.
func (b Bounds) NormalizeForDisplay(v float64) float64 {
	if b.Degenerate() {
		return DisplayMidpoint
	}
	return (v - b.Min) / b.Range()
}

// ComputeBounds returns the min/max of p across the catalog, treating missing
// values as 0. An empty catalog yields {0,0}.
func ComputeBounds(c *Catalog, p Property) Bounds {
	return boundsOf(c.Records(), p)
}

// ComputeAllBounds returns the bounds of every property in canonical order.
func ComputeAllBounds(c *Catalog) [NumProperties]Bounds {
	var out [NumProperties]Bounds
	recs := c.Records()
	for i, p := range Properties {
		out[i] = boundsOf(recs, p)
	}
	return out
}

// DisplayBounds returns the bounds of p over records with the requirement
// target folded in, so the target always lands inside [0,1] on a chart.
func DisplayBounds(records []Record, p Property, target float64) Bounds {
	b := boundsOf(records, p)
	if len(records) == 0 {
		return Bounds{Property: p, Min: target, Max: target}
	}
	b.Min = math.Min(b.Min, target)
	b.Max = math.Max(b.Max, target)
	return b
}

func boundsOf(records []Record, p Property) Bounds {
	b := Bounds{Property: p}
	for i, r := range records {
		v := r.ValueOrZero(p)
		if i == 0 {
			b.Min, b.Max = v, v
			continue
		}
		if v < b.Min {
			b.Min = v
		}
		if v > b.Max {
			b.Max = v
		}
	}
	return b
}

// DisplayPoint is one radar-chart series: the normalized value of each
// property for a record or for the requirement target.
type DisplayPoint struct {
	Label  string                 `json:"label"`
	Target bool                   `json:"target"`
	Values [NumProperties]float64 `json:"values"`
	Raw    [NumProperties]float64 `json:"raw"`
}

// DisplayProfile normalizes records and the requirement targets for display.
// The target series comes first.
func DisplayProfile(records []Record, req RequirementSpec) []DisplayPoint {
	var bounds [NumProperties]Bounds
	for i, p := range Properties {
		bounds[i] = DisplayBounds(records, p, req[p].Target)
	}

	out := make([]DisplayPoint, 0, len(records)+1)
	target := DisplayPoint{Label: "Target", Target: true}
	for i, p := range Properties {
		t := req[p].Target
		target.Raw[i] = t
		target.Values[i] = bounds[i].NormalizeForDisplay(t)
	}
	out = append(out, target)

	for _, r := range records {
		pt := DisplayPoint{Label: r.Label()}
		for i, p := range Properties {
			v := r.ValueOrZero(p)
			pt.Raw[i] = v
			pt.Values[i] = bounds[i].NormalizeForDisplay(v)
		}
		out = append(out, pt)
	}
	return out
}
