package material

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// NullFloat is a float64 that may be absent. Catalog files routinely leave
// cells empty; absence is distinct from zero.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float returns a present NullFloat.
func Float(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// OrZero returns the value, or 0 when absent.
func (n NullFloat) OrZero() float64 {
	if !n.Valid {
		return 0
	}
	return n.Float64
}

// Ptr returns a pointer to the value, or nil when absent.
func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// MarshalJSON encodes an absent value as null. JSON has no encoding for
// NaN or infinities, so those are an error.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	if math.IsNaN(n.Float64) || math.IsInf(n.Float64, 0) {
		return nil, fmt.Errorf("non-finite value %v", n.Float64)
	}
	return []byte(strconv.FormatFloat(n.Float64, 'g', -1, 64)), nil
}

// UnmarshalJSON accepts a number or null.
func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Float(v)
	return nil
}

// NumAuxiliary is the number of auxiliary numeric columns.
const NumAuxiliary = 4

// Record is one material row of the catalog. It is a value type: copying a
// Record copies all of its data, so a Record handed out by a Catalog cannot
// be used to mutate the snapshot.
type Record struct {
	ID            string
	Std           string
	Name          string
	HeatTreatment string
	Description   string

	Values    [NumProperties]NullFloat
	Auxiliary [NumAuxiliary]NullFloat
}

// NewRecord returns a record with no numeric values set.
func NewRecord(id, name, heatTreatment string) Record {
	return Record{ID: id, Name: name, HeatTreatment: heatTreatment}
}

// Label is the synthetic "Material" field: base name and heat treatment
// joined by a space. Labels are not guaranteed to be unique.
func (r Record) Label() string {
	return strings.TrimSpace(strings.TrimSpace(r.Name) + " " + strings.TrimSpace(r.HeatTreatment))
}

// Value returns the value of p and whether it is present.
func (r Record) Value(p Property) (float64, bool) {
	i := p.Index()
	if i < 0 || !r.Values[i].Valid {
		return 0, false
	}
	return r.Values[i].Float64, true
}

// ValueOrZero returns the value of p, treating a missing value as 0.
func (r Record) ValueOrZero(p Property) float64 {
	v, _ := r.Value(p)
	return v
}

// With returns a copy of r with p set to v.
func (r Record) With(p Property, v float64) Record {
	if i := p.Index(); i >= 0 {
		r.Values[i] = Float(v)
	}
	return r
}

// WithAuxiliary returns a copy of r with the auxiliary column set to v.
// Unknown column names are ignored.
func (r Record) WithAuxiliary(column string, v float64) Record {
	if i := auxIndex(column); i >= 0 {
		r.Auxiliary[i] = Float(v)
	}
	return r
}

// HasAnyValue reports whether at least one analysed property is present.
func (r Record) HasAnyValue() bool {
	for _, v := range r.Values {
		if v.Valid {
			return true
		}
	}
	return false
}

// Column resolves a numeric column by property name, property code or
// auxiliary column name. Text fields and unknown names are rejected as an
// input precondition failure since only numeric columns can be analysed.
func (r Record) Column(name string) (NullFloat, error) {
	if p, err := ParseProperty(name); err == nil {
		return r.Values[p.Index()], nil
	}
	if i := auxIndex(name); i >= 0 {
		return r.Auxiliary[i], nil
	}
	return NullFloat{}, columnError(name)
}

// ValidateColumn checks that name refers to a numeric column.
func ValidateColumn(name string) error {
	_, err := Record{}.Column(name)
	return err
}

func columnError(name string) *errors.AppError {
	if IsTextColumn(name) {
		return errors.InputPrecondition("column is not numeric").WithDetail("column=" + name)
	}
	return errors.InputPrecondition("unknown column").WithDetail("column=" + name)
}

func auxIndex(column string) int {
	column = strings.TrimSpace(column)
	for i, c := range AuxiliaryColumns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

type recordJSON struct {
	ID            string               `json:"id"`
	Std           string               `json:"std,omitempty"`
	Name          string               `json:"name"`
	HeatTreatment string               `json:"heat_treatment,omitempty"`
	Material      string               `json:"material"`
	Description   string               `json:"description,omitempty"`
	Properties    map[string]NullFloat `json:"properties"`
	Auxiliary     map[string]NullFloat `json:"auxiliary,omitempty"`
}

// MarshalJSON renders the record with its label and named property values.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:            r.ID,
		Std:           r.Std,
		Name:          r.Name,
		HeatTreatment: r.HeatTreatment,
		Material:      r.Label(),
		Description:   r.Description,
		Properties:    make(map[string]NullFloat, NumProperties),
	}
	for i, p := range Properties {
		out.Properties[string(p)] = r.Values[i]
	}
	for i, c := range AuxiliaryColumns {
		if r.Auxiliary[i].Valid {
			if out.Auxiliary == nil {
				out.Auxiliary = make(map[string]NullFloat, NumAuxiliary)
			}
			out.Auxiliary[c] = r.Auxiliary[i]
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. Property keys may be canonical
// names or short codes.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rec := Record{
		ID:            in.ID,
		Std:           in.Std,
		Name:          in.Name,
		HeatTreatment: in.HeatTreatment,
		Description:   in.Description,
	}
	for k, v := range in.Properties {
		p, err := ParseProperty(k)
		if err != nil {
			return err
		}
		rec.Values[p.Index()] = v
	}
	for k, v := range in.Auxiliary {
		if i := auxIndex(k); i >= 0 {
			rec.Auxiliary[i] = v
		}
	}
	*r = rec
	return nil
}
