package material

import (
	"math"
	"math/rand"
	"time"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// DefaultPowerIterations is the fixed number of power-iteration steps per
// component.
const DefaultPowerIterations = 100

// Projection is one record placed in the plane of the first two principal
// axes.
type Projection struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Recommended bool    `json:"recommended"`
}

// PCAResult is a best-effort two-component embedding of a catalog. The axes
// are seeded randomly, so their sign and exact direction may differ between
// calls unless a fixed source is supplied.
type PCAResult struct {
	Properties  []Property   `json:"properties"`
	Means       []float64    `json:"means"`
	StdDevs     []float64    `json:"std_devs"`
	Components  [2][]float64 `json:"components"`
	Projections []Projection `json:"projections"`
}

type pcaConfig struct {
	src        rand.Source
	iterations int
}

// PCAOption customises Project.
type PCAOption func(*pcaConfig)

// WithRandSource seeds the initial vectors from src. The source is used by a
// single call only; callers running PCA concurrently must not share one.
func WithRandSource(src rand.Source) PCAOption {
	return func(c *pcaConfig) { c.src = src }
}

// WithSeed is WithRandSource(rand.NewSource(seed)).
func WithSeed(seed int64) PCAOption {
	return func(c *pcaConfig) { c.src = rand.NewSource(seed) }
}

// WithIterations overrides DefaultPowerIterations. Values below 1 are ignored.
func WithIterations(n int) PCAOption {
	return func(c *pcaConfig) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// Project computes the first two principal axes of the z-scored catalog by
// power iteration with one deflation step, and projects every record onto
// them. Records whose label appears in recommended are flagged.
//
// Only properties present in at least one record are used; missing values
// count as 0. A zero-variance column standardizes to 0. Fewer than two
// records is an input precondition failure since the covariance divides by
// N-1.
func Project(c *Catalog, recommended []string, opts ...PCAOption) (*PCAResult, error) {
	n := c.Len()
	if n < 2 {
		return nil, errors.InputPrecondition("PCA needs at least 2 records").WithDetailf("records=%d", n)
	}

	cfg := pcaConfig{iterations: DefaultPowerIterations}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.src == nil {
		cfg.src = rand.NewSource(time.Now().UnixNano())
	}
	rng := rand.New(cfg.src)

	props := c.PresentProperties()
	recs := c.Records()

	// Stage 1: data matrix and z-scores (population std).
	z, means, stds := standardize(recs, props)

	// Stage 2: covariance of the standardized data.
	cov := covariance(z, len(props))

	// Stage 3: dominant axis.
	pc1 := powerIteration(cov, rng, cfg.iterations)

	// Stage 4: deflate by pc1 ⊗ pc1 and find the second axis.
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] -= pc1[i] * pc1[j]
		}
	}
	pc2 := powerIteration(cov, rng, cfg.iterations)

	// Stage 5: projection.
	flag := make(map[string]struct{}, len(recommended))
	for _, l := range recommended {
		flag[l] = struct{}{}
	}
	res := &PCAResult{
		Properties:  props,
		Means:       means,
		StdDevs:     stds,
		Components:  [2][]float64{pc1, pc2},
		Projections: make([]Projection, n),
	}
	for r, row := range z {
		label := recs[r].Label()
		_, isRec := flag[label]
		res.Projections[r] = Projection{
			X:           dot(row, pc1),
			Y:           dot(row, pc2),
			ID:          recs[r].ID,
			Label:       label,
			Recommended: isRec,
		}
	}
	return res, nil
}

// standardize builds the N×P matrix of z-scores.
func standardize(recs []Record, props []Property) (z [][]float64, means, stds []float64) {
	n, p := len(recs), len(props)
	means = make([]float64, p)
	stds = make([]float64, p)

	cols := make([][]float64, p)
	for j, prop := range props {
		cols[j] = make([]float64, n)
		for r, rec := range recs {
			cols[j][r] = rec.ValueOrZero(prop)
		}
		var sum float64
		for _, v := range cols[j] {
			sum += v
		}
		means[j] = sum / float64(n)
		if isConstant(cols[j]) {
			continue
		}
		var ss float64
		for _, v := range cols[j] {
			d := v - means[j]
			ss += d * d
		}
		stds[j] = math.Sqrt(ss / float64(n))
	}

	z = make([][]float64, n)
	for r := range z {
		z[r] = make([]float64, p)
		for j := range props {
			if stds[j] == 0 {
				continue
			}
			z[r][j] = (cols[j][r] - means[j]) / stds[j]
		}
	}
	return z, means, stds
}

// covariance returns Σ z_i·z_j / (N-1) over the rows of z.
func covariance(z [][]float64, p int) [][]float64 {
	denom := float64(len(z) - 1)
	cov := make([][]float64, p)
	for i := range cov {
		cov[i] = make([]float64, p)
		for j := range cov[i] {
			var s float64
			for _, row := range z {
				s += row[i] * row[j]
			}
			cov[i][j] = s / denom
		}
	}
	return cov
}

// powerIteration approximates the dominant eigenvector of m. If the product
// collapses to the zero vector (all-degenerate data) the zero vector is
// returned and every projection onto it is 0.
func powerIteration(m [][]float64, rng *rand.Rand, iterations int) []float64 {
	n := len(m)
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()
	}
	if !normalize(v) && n > 0 {
		v[0] = 1
	}

	next := make([]float64, n)
	for it := 0; it < iterations; it++ {
		for i := range next {
			var s float64
			for j := range v {
				s += m[i][j] * v[j]
			}
			next[i] = s
		}
		if !normalize(next) {
			return make([]float64, n)
		}
		v, next = next, v
	}
	return v
}

// normalize scales v to unit length in place. It reports false for a zero or
// non-finite vector.
func normalize(v []float64) bool {
	var ss float64
	for _, x := range v {
		ss += x * x
	}
	mag := math.Sqrt(ss)
	if mag == 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
		return false
	}
	for i := range v {
		v[i] /= mag
	}
	return true
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
