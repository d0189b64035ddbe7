package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// requirementFlags binds one "target[:weight]" flag per property, named by
// the lower-case property code: --su, --sy, --e, --g, --mu, --ro.
type requirementFlags struct {
	values map[material.Property]*string
}

func bindRequirementFlags(fs *pflag.FlagSet) *requirementFlags {
	rf := &requirementFlags{values: make(map[material.Property]*string, material.NumProperties)}
	def := material.DefaultRequirements()
	for _, p := range material.Properties {
		usage := p.DisplayName()
		if p.Unit() != "" {
			usage += " (" + p.Unit() + ")"
		}
		usage += " requirement as target[:weight], default " +
			strconv.FormatFloat(def[p].Target, 'g', -1, 64) + ":" +
			strconv.FormatFloat(def[p].Weight, 'g', -1, 64)
		rf.values[p] = fs.String(flagName(p), "", usage)
	}
	return rf
}

func flagName(p material.Property) string {
	return strings.ToLower(p.Code())
}

// spec returns the requirements named on the command line, or nil when none
// were given. A flag without a weight keeps the default weight.
func (rf *requirementFlags) spec() (material.RequirementSpec, error) {
	var spec material.RequirementSpec
	def := material.DefaultRequirements()
	for _, p := range material.Properties {
		raw := strings.TrimSpace(*rf.values[p])
		if raw == "" {
			continue
		}
		req, err := parseRequirement(raw, def[p].Weight)
		if err != nil {
			return nil, err.WithDetailf("--%s %s", flagName(p), raw)
		}
		if spec == nil {
			spec = make(material.RequirementSpec, material.NumProperties)
		}
		spec[p] = req
	}
	return spec, nil
}

func parseRequirement(raw string, defaultWeight float64) (material.Requirement, *errors.AppError) {
	targetStr, weightStr, hasWeight := strings.Cut(raw, ":")
	target, err := strconv.ParseFloat(strings.TrimSpace(targetStr), 64)
	if err != nil {
		return material.Requirement{}, errors.New(errors.ErrCodeBadRequest, "requirement target is not a number")
	}
	req := material.Requirement{Target: target, Weight: defaultWeight}
	if hasWeight {
		w, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
		if err != nil {
			return material.Requirement{}, errors.New(errors.ErrCodeBadRequest, "requirement weight is not a number")
		}
		req.Weight = w
	}
	return req, nil
}
