package material

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Requirement is the user's target value and importance weight for one
// property. Weight 0 excludes the property from ranking; it is still shown.
type Requirement struct {
	Target float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// RequirementSpec maps each of the six properties to a Requirement.
// A valid spec names all six.
type RequirementSpec map[Property]Requirement

// DefaultRequirementWeight is the weight applied to every default requirement.
const DefaultRequirementWeight = 0.5

// DefaultRequirements returns the requirements a fresh session starts with:
// a generic structural steel.
func DefaultRequirements() RequirementSpec {
	return RequirementSpec{
		PropTensileStrength: {Target: 500, Weight: DefaultRequirementWeight},
		PropYieldStrength:   {Target: 300, Weight: DefaultRequirementWeight},
		PropElasticModulus:  {Target: 200000, Weight: DefaultRequirementWeight},
		PropShearModulus:    {Target: 80000, Weight: DefaultRequirementWeight},
		PropPoissonsRatio:   {Target: 0.3, Weight: DefaultRequirementWeight},
		PropDensity:         {Target: 7800, Weight: DefaultRequirementWeight},
	}
}

// Validate checks that all six properties are present with finite targets and
// weights in [0,1].
func (s RequirementSpec) Validate() error {
	if len(s) == 0 {
		return errors.InputPrecondition("requirements must not be empty")
	}
	var missing []string
	for _, p := range Properties {
		if _, ok := s[p]; !ok {
			missing = append(missing, p.Code())
		}
	}
	if len(missing) > 0 {
		return errors.InputPrecondition("requirements must name all six properties").
			WithDetailf("missing=%v", missing)
	}
	for p, r := range s {
		if !p.IsValid() {
			return errors.InputPrecondition("requirements name an unknown property").WithDetail(string(p))
		}
		if math.IsNaN(r.Target) || math.IsInf(r.Target, 0) {
			return errors.InputPrecondition("requirement target must be finite").WithDetail(p.Code())
		}
		if math.IsNaN(r.Weight) || r.Weight < 0 || r.Weight > 1 {
			return errors.InputPrecondition("requirement weight must be within [0,1]").
				WithDetailf("%s weight=%v", p.Code(), r.Weight)
		}
	}
	return nil
}

// Merge returns a copy of s with every property missing from s taken from
// base. Useful for partial updates on top of DefaultRequirements.
func (s RequirementSpec) Merge(base RequirementSpec) RequirementSpec {
	out := make(RequirementSpec, NumProperties)
	for p, r := range base {
		out[p] = r
	}
	for p, r := range s {
		out[p] = r
	}
	return out
}

// Targets returns the target values in canonical property order.
func (s RequirementSpec) Targets() [NumProperties]float64 {
	var out [NumProperties]float64
	for i, p := range Properties {
		out[i] = s[p].Target
	}
	return out
}

// MarshalJSON keys requirements by canonical property name in stable order.
func (s RequirementSpec) MarshalJSON() ([]byte, error) {
	m := make(map[string]Requirement, len(s))
	for p, r := range s {
		m[string(p)] = r
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts canonical names or short codes as keys. Any other key
// is an input precondition failure, like an unknown analytics column.
func (s *RequirementSpec) UnmarshalJSON(data []byte) error {
	var m map[string]Requirement
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(RequirementSpec, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p, err := ParseProperty(k)
		if err != nil {
			return errors.InputPrecondition("requirements name an unknown property").WithDetail("property=" + k)
		}
		if _, dup := out[p]; dup {
			return errors.InputPrecondition("duplicate requirement").WithDetail("property=" + p.Code())
		}
		out[p] = m[k]
	}
	*s = out
	return nil
}
