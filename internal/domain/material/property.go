package material

import (
	"strings"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Property identifies one of the six numeric mechanical properties used by
// every analysis. The zero value is not a valid property.
type Property string

const (
	PropTensileStrength Property = "Ultimate_Tensile_Strength_MPa"
	PropYieldStrength   Property = "Yield_Strength_MPa"
	PropElasticModulus  Property = "Elastic_Modulus_MPa"
	PropShearModulus    Property = "Shear_Modulus_MPa"
	PropPoissonsRatio   Property = "Poissons_Ratio"
	PropDensity         Property = "Density_kg_per_m3"
)

// NumProperties is the number of analysed properties.
const NumProperties = 6

// Properties lists the analysed properties in canonical order. Matrix rows,
// PCA components and CSV exports all follow this order.
var Properties = [NumProperties]Property{
	PropTensileStrength,
	PropYieldStrength,
	PropElasticModulus,
	PropShearModulus,
	PropPoissonsRatio,
	PropDensity,
}

type propertyMeta struct {
	code    string
	display string
	unit    string
}

var propertyMetas = map[Property]propertyMeta{
	PropTensileStrength: {code: "Su", display: "Tensile Strength", unit: "MPa"},
	PropYieldStrength:   {code: "Sy", display: "Yield Strength", unit: "MPa"},
	PropElasticModulus:  {code: "E", display: "Elastic Modulus", unit: "MPa"},
	PropShearModulus:    {code: "G", display: "Shear Modulus", unit: "MPa"},
	PropPoissonsRatio:   {code: "mu", display: "Poisson's Ratio", unit: ""},
	PropDensity:         {code: "Ro", display: "Density", unit: "kg/m³"},
}

// IsValid reports whether p is one of the six analysed properties.
func (p Property) IsValid() bool {
	_, ok := propertyMetas[p]
	return ok
}

// String returns the canonical column name.
func (p Property) String() string {
	return string(p)
}

// Code returns the short CSV header used by raw catalog files ("Su", "mu", ...).
func (p Property) Code() string {
	return propertyMetas[p].code
}

// DisplayName returns a human-readable name.
func (p Property) DisplayName() string {
	return propertyMetas[p].display
}

// Unit returns the measurement unit, empty for dimensionless properties.
func (p Property) Unit() string {
	return propertyMetas[p].unit
}

// Index returns the position of p in Properties, or -1.
func (p Property) Index() int {
	for i, q := range Properties {
		if q == p {
			return i
		}
	}
	return -1
}

// ParseProperty accepts a canonical column name or a short code, ignoring case
// and surrounding whitespace.
func ParseProperty(s string) (Property, error) {
	s = strings.TrimSpace(s)
	for _, p := range Properties {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.Code()) {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeUnknownProperty, "unknown material property").WithDetail("property=" + s)
}

// Auxiliary numeric columns carried by catalog records but not used for
// ranking or PCA. They are available to the correlation engine.
const (
	ColElongation  = "A5"
	ColBrinell     = "Bhn"
	ColPH          = "pH"
	ColVickers     = "HV"
	ColID          = "ID"
	ColStd         = "Std"
	ColMaterial    = "Material"
	ColHeatTreat   = "Heat treatment"
	ColDescription = "Desc"
	ColDistance    = "Distance_Score"
)

// AuxiliaryColumns lists the auxiliary numeric columns in file order.
var AuxiliaryColumns = []string{ColElongation, ColBrinell, ColPH, ColVickers}

// textColumns are known record fields that hold opaque strings.
var textColumns = map[string]struct{}{
	strings.ToLower(ColID):          {},
	strings.ToLower(ColStd):         {},
	strings.ToLower(ColMaterial):    {},
	strings.ToLower(ColHeatTreat):   {},
	strings.ToLower(ColDescription): {},
}

// IsTextColumn reports whether name is a known non-numeric record field.
func IsTextColumn(name string) bool {
	_, ok := textColumns[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
