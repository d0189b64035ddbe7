package material

import (
	"math"
	"sort"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// RankedMaterial is a catalog record with its distance to the requirements.
// Scores are only comparable within one Rank call because they depend on that
// call's min/max normalization.
type RankedMaterial struct {
	Record        Record  `json:"record"`
	DistanceScore float64 `json:"distance_score"`
	// Position is the 1-based rank.
	Position int `json:"position"`
}

// Label returns the record's material label.
func (m RankedMaterial) Label() string {
	return m.Record.Label()
}

// Rank scores every record of the catalog against req and returns the k best,
// lowest distance first.
//
// The score is the weighted Euclidean distance in min/max-normalized space:
//
//	score = sqrt( Σ_p w_p · (norm_p(target_p) − norm_p(value_p))² )
//
// Properties whose range over the catalog is zero are skipped. Missing values
// count as 0. Ties keep catalog order. k larger than the catalog returns the
// whole catalog ranked; an empty catalog returns an empty slice.
func Rank(c *Catalog, req RequirementSpec, k int) ([]RankedMaterial, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, errors.InputPrecondition("k must be at least 1").WithDetailf("k=%d", k)
	}
	if c.Len() == 0 {
		return []RankedMaterial{}, nil
	}

	// Stage 1: bounds and normalized targets per property.
	bounds := ComputeAllBounds(c)
	var (
		normTarget [NumProperties]float64
		active     [NumProperties]bool
	)
	for i, p := range Properties {
		normTarget[i], active[i] = bounds[i].NormalizeForRanking(req[p].Target)
	}

	// Stage 2: weighted squared distance per record.
	scored := make([]RankedMaterial, c.Len())
	for n := range scored {
		rec := c.At(n)
		var acc float64
		for i, p := range Properties {
			if !active[i] {
				continue
			}
			nv, _ := bounds[i].NormalizeForRanking(rec.ValueOrZero(p))
			d := normTarget[i] - nv
			acc += req[p].Weight * d * d
		}
		scored[n] = RankedMaterial{Record: rec, DistanceScore: math.Sqrt(acc)}
	}

	// Stage 3: stable ascending sort, truncate.
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].DistanceScore < scored[b].DistanceScore
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	for i := range scored {
		scored[i].Position = i + 1
	}
	return scored, nil
}

// Labels returns the material labels of ranked in order.
func Labels(ranked []RankedMaterial) []string {
	out := make([]string, len(ranked))
	for i, m := range ranked {
		out[i] = m.Label()
	}
	return out
}
