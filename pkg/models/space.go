package models

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

// ParameterType selects how values of a varying parameter are represented.
type ParameterType string

const (
	ParameterTypeFloat ParameterType = "float"
	ParameterTypeInt   ParameterType = "int"
)

// VaryingParameter is one input dimension of the search space.
type VaryingParameter struct {
	Name       string        `json:"name" yaml:"name"`
	LowerBound float64       `json:"lower_bound" yaml:"lower_bound"`
	UpperBound float64       `json:"upper_bound" yaml:"upper_bound"`
	Default    *float64      `json:"default,omitempty" yaml:"default,omitempty"`
	Type       ParameterType `json:"type,omitempty" yaml:"type,omitempty"`

	// IsFidelity marks the parameter that trades evaluation cost for accuracy.
	// TargetValue is the fidelity at which results count as final; when unset
	// the upper bound is used.
	IsFidelity  bool     `json:"is_fidelity,omitempty" yaml:"is_fidelity,omitempty"`
	TargetValue *float64 `json:"fidelity_target_value,omitempty" yaml:"fidelity_target_value,omitempty"`
}

// Target returns the fidelity value at which results count as final.
func (vp VaryingParameter) Target() float64 {
	if vp.TargetValue != nil {
		return *vp.TargetValue
	}
	return vp.UpperBound
}

// intRange returns the smallest and largest integers inside the bounds.
func (vp VaryingParameter) intRange() (float64, float64) {
	return math.Ceil(vp.LowerBound), math.Floor(vp.UpperBound)
}

// Objective is an output the generator optimizes.
type Objective struct {
	Name     string `json:"name" yaml:"name"`
	Minimize bool   `json:"minimize" yaml:"minimize"`
}

// Better reports whether a is strictly better than b for this objective.
func (o Objective) Better(a, b float64) bool {
	if o.Minimize {
		return a < b
	}
	return a > b
}

// Direction returns "minimize" or "maximize".
func (o Objective) Direction() string {
	if o.Minimize {
		return "minimize"
	}
	return "maximize"
}

// AnalyzedParameter is a derived output the evaluator must populate.
type AnalyzedParameter struct {
	Name string `json:"name" yaml:"name"`
}

// Point maps varying parameter names to concrete values.
type Point map[string]float64

// Clone returns a copy of the point.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}
	out := make(Point, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Space is the parameter space definition of a campaign.
type Space struct {
	Varying    []VaryingParameter  `json:"varying_parameters" yaml:"varying_parameters"`
	Objectives []Objective         `json:"objectives" yaml:"objectives"`
	Analyzed   []AnalyzedParameter `json:"analyzed_parameters,omitempty" yaml:"analyzed_parameters,omitempty"`
}

// Validate checks bounds and name uniqueness across all parameter kinds.
func (s *Space) Validate() error {
	if len(s.Varying) == 0 {
		return fmt.Errorf("at least one varying parameter must be defined")
	}
	if len(s.Objectives) == 0 {
		return fmt.Errorf("at least one objective must be defined")
	}

	names := make(map[string]string)
	claim := func(name, kind string) error {
		if name == "" {
			return fmt.Errorf("%s name cannot be empty", kind)
		}
		if prev, ok := names[name]; ok {
			return fmt.Errorf("duplicate name %q (%s and %s)", name, prev, kind)
		}
		names[name] = kind
		return nil
	}

	var fidelity string
	for _, vp := range s.Varying {
		if err := claim(vp.Name, "varying parameter"); err != nil {
			return err
		}
		if !utils.IsFinite(vp.LowerBound) || !utils.IsFinite(vp.UpperBound) {
			return fmt.Errorf("varying parameter %s: bounds must be finite numbers", vp.Name)
		}
		if !(vp.LowerBound < vp.UpperBound) {
			return fmt.Errorf("varying parameter %s: lower_bound %g must be < upper_bound %g", vp.Name, vp.LowerBound, vp.UpperBound)
		}
		switch vp.Type {
		case "", ParameterTypeFloat:
		case ParameterTypeInt:
			if lo, hi := vp.intRange(); lo > hi {
				return fmt.Errorf("varying parameter %s: no integer in [%g, %g]", vp.Name, vp.LowerBound, vp.UpperBound)
			}
		default:
			return fmt.Errorf("varying parameter %s: invalid type %q (must be float or int)", vp.Name, vp.Type)
		}
		if vp.Default != nil {
			if err := vp.checkValue("default", *vp.Default); err != nil {
				return err
			}
		}
		if vp.TargetValue != nil {
			if !vp.IsFidelity {
				return fmt.Errorf("varying parameter %s: fidelity_target_value requires is_fidelity", vp.Name)
			}
			if err := vp.checkValue("fidelity_target_value", *vp.TargetValue); err != nil {
				return err
			}
		}
		if vp.IsFidelity {
			if fidelity != "" {
				return fmt.Errorf("varying parameter %s: only one fidelity parameter allowed, %s is already one", vp.Name, fidelity)
			}
			fidelity = vp.Name
		}
	}
	for _, obj := range s.Objectives {
		if err := claim(obj.Name, "objective"); err != nil {
			return err
		}
	}
	for _, ap := range s.Analyzed {
		if err := claim(ap.Name, "analyzed parameter"); err != nil {
			return err
		}
	}
	return nil
}

func (vp VaryingParameter) checkValue(field string, v float64) error {
	if !utils.IsFinite(v) {
		return fmt.Errorf("varying parameter %s: %s must be a finite number", vp.Name, field)
	}
	if v < vp.LowerBound || v > vp.UpperBound {
		return fmt.Errorf("varying parameter %s: %s %g outside [%g, %g]", vp.Name, field, v, vp.LowerBound, vp.UpperBound)
	}
	if vp.Type == ParameterTypeInt && v != math.Trunc(v) {
		return fmt.Errorf("varying parameter %s: %s %g is not an integer", vp.Name, field, v)
	}
	return nil
}

// Fidelity returns the fidelity parameter, if the space has one.
func (s *Space) Fidelity() (VaryingParameter, bool) {
	for _, vp := range s.Varying {
		if vp.IsFidelity {
			return vp, true
		}
	}
	return VaryingParameter{}, false
}

// AtTargetFidelity reports whether p was evaluated at the target fidelity.
// Spaces without a fidelity parameter accept every point.
func (s *Space) AtTargetFidelity(p Point) bool {
	vp, ok := s.Fidelity()
	if !ok {
		return true
	}
	return p[vp.Name] == vp.Target()
}

// Objective returns the objective with the given name.
func (s *Space) Objective(name string) (Objective, bool) {
	for _, obj := range s.Objectives {
		if obj.Name == name {
			return obj, true
		}
	}
	return Objective{}, false
}

// Contains reports whether p assigns an in-bounds value to every varying parameter
// and nothing else.
func (s *Space) Contains(p Point) error {
	if len(p) != len(s.Varying) {
		return fmt.Errorf("point has %d values, space has %d varying parameters", len(p), len(s.Varying))
	}
	for _, vp := range s.Varying {
		v, ok := p[vp.Name]
		if !ok {
			return fmt.Errorf("point is missing parameter %s", vp.Name)
		}
		if math.IsNaN(v) || v < vp.LowerBound || v > vp.UpperBound {
			return fmt.Errorf("parameter %s=%g outside [%g, %g]", vp.Name, v, vp.LowerBound, vp.UpperBound)
		}
		if vp.Type == ParameterTypeInt && v != math.Trunc(v) {
			return fmt.Errorf("parameter %s=%g is not an integer", vp.Name, v)
		}
	}
	return nil
}

// Normalize clamps every value into bounds and rounds integer parameters.
func (s *Space) Normalize(p Point) Point {
	out := make(Point, len(s.Varying))
	for _, vp := range s.Varying {
		v := p[vp.Name]
		if vp.Type == ParameterTypeInt {
			lo, hi := vp.intRange()
			out[vp.Name] = utils.ClampFloat64(math.Round(v), lo, hi)
			continue
		}
		out[vp.Name] = utils.ClampFloat64(v, vp.LowerBound, vp.UpperBound)
	}
	return out
}

// DefaultPoint uses each parameter's default, or the midpoint of its bounds.
// A fidelity parameter without a default starts at its target.
func (s *Space) DefaultPoint() Point {
	p := make(Point, len(s.Varying))
	for _, vp := range s.Varying {
		if vp.Default != nil {
			p[vp.Name] = *vp.Default
			continue
		}
		if vp.IsFidelity {
			p[vp.Name] = vp.Target()
			continue
		}
		p[vp.Name] = vp.LowerBound + (vp.UpperBound-vp.LowerBound)/2
	}
	return s.Normalize(p)
}

// OutputNames lists objective names followed by analyzed parameter names.
func (s *Space) OutputNames() []string {
	out := make([]string, 0, len(s.Objectives)+len(s.Analyzed))
	for _, obj := range s.Objectives {
		out = append(out, obj.Name)
	}
	for _, ap := range s.Analyzed {
		out = append(out, ap.Name)
	}
	return out
}

// Equal reports whether both spaces define the same parameters in the same order.
func (s *Space) Equal(other *Space) bool {
	if other == nil {
		return false
	}
	if len(s.Varying) != len(other.Varying) || len(s.Objectives) != len(other.Objectives) || len(s.Analyzed) != len(other.Analyzed) {
		return false
	}
	for i, vp := range s.Varying {
		ov := other.Varying[i]
		if vp.Name != ov.Name || vp.LowerBound != ov.LowerBound || vp.UpperBound != ov.UpperBound || normType(vp.Type) != normType(ov.Type) ||
			vp.IsFidelity != ov.IsFidelity || (vp.IsFidelity && vp.Target() != ov.Target()) {
			return false
		}
	}
	for i, obj := range s.Objectives {
		if obj != other.Objectives[i] {
			return false
		}
	}
	for i, ap := range s.Analyzed {
		if ap != other.Analyzed[i] {
			return false
		}
	}
	return true
}

func normType(t ParameterType) ParameterType {
	if t == "" {
		return ParameterTypeFloat
	}
	return t
}
