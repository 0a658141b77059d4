package models

import (
	"math"
	"strings"
	"testing"
)

func testSpace() *Space {
	return &Space{
		Varying: []VaryingParameter{
			{Name: "x0", LowerBound: 0, UpperBound: 15},
			{Name: "x1", LowerBound: 0, UpperBound: 15},
		},
		Objectives: []Objective{{Name: "f", Minimize: true}},
	}
}

func TestSpaceValidate(t *testing.T) {
	if err := testSpace().Validate(); err != nil {
		t.Fatalf("expected valid space, got %v", err)
	}

	def := 20.0
	inf := math.Inf(1)
	half := 1.5
	target := 4.0
	tests := []struct {
		name    string
		mutate  func(s *Space)
		wantErr string
	}{
		{"no varying", func(s *Space) { s.Varying = nil }, "varying parameter"},
		{"no objectives", func(s *Space) { s.Objectives = nil }, "objective"},
		{"inverted bounds", func(s *Space) { s.Varying[0].LowerBound = 20 }, "must be <"},
		{"equal bounds", func(s *Space) { s.Varying[0].UpperBound = 0 }, "must be <"},
		{"duplicate varying", func(s *Space) { s.Varying[1].Name = "x0" }, "duplicate"},
		{"objective clashes with varying", func(s *Space) { s.Objectives[0].Name = "x1" }, "duplicate"},
		{"analyzed clashes with objective", func(s *Space) {
			s.Analyzed = []AnalyzedParameter{{Name: "f"}}
		}, "duplicate"},
		{"default out of bounds", func(s *Space) { s.Varying[0].Default = &def }, "outside"},
		{"bad type", func(s *Space) { s.Varying[0].Type = "complex" }, "invalid type"},
		{"empty name", func(s *Space) { s.Varying[0].Name = "" }, "cannot be empty"},
		{"infinite upper bound", func(s *Space) { s.Varying[0].UpperBound = math.Inf(1) }, "finite"},
		{"infinite lower bound", func(s *Space) { s.Varying[0].LowerBound = math.Inf(-1) }, "finite"},
		{"nan bound", func(s *Space) { s.Varying[0].LowerBound = math.NaN() }, "finite"},
		{"infinite default", func(s *Space) { s.Varying[0].Default = &inf }, "finite"},
		{"int without integers", func(s *Space) {
			s.Varying[0] = VaryingParameter{Name: "x0", LowerBound: 0.2, UpperBound: 0.4, Type: ParameterTypeInt}
		}, "no integer"},
		{"fractional int default", func(s *Space) {
			s.Varying[0].Type = ParameterTypeInt
			s.Varying[0].Default = &half
		}, "not an integer"},
		{"target without fidelity", func(s *Space) { s.Varying[0].TargetValue = &target }, "requires is_fidelity"},
		{"target out of bounds", func(s *Space) {
			s.Varying[0].IsFidelity = true
			s.Varying[0].TargetValue = &def
		}, "outside"},
		{"two fidelity parameters", func(s *Space) {
			s.Varying[0].IsFidelity = true
			s.Varying[1].IsFidelity = true
		}, "only one fidelity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSpace()
			tt.mutate(s)
			err := s.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSpaceContainsAndNormalize(t *testing.T) {
	s := testSpace()
	s.Varying[1].Type = ParameterTypeInt

	if err := s.Contains(Point{"x0": 1, "x1": 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Contains(Point{"x0": 1}); err == nil {
		t.Fatalf("expected error for missing parameter")
	}
	if err := s.Contains(Point{"x0": 1, "x1": 16}); err == nil {
		t.Fatalf("expected error for out-of-bounds value")
	}
	if err := s.Contains(Point{"x0": 1, "y": 2}); err == nil {
		t.Fatalf("expected error for unknown parameter")
	}

	if err := s.Contains(Point{"x0": 1, "x1": 1.5}); err == nil || !strings.Contains(err.Error(), "not an integer") {
		t.Fatalf("expected fractional int value to be rejected, got %v", err)
	}

	p := s.Normalize(Point{"x0": -3, "x1": 7.6})
	if p["x0"] != 0 {
		t.Fatalf("expected x0 clamped to 0, got %g", p["x0"])
	}
	if p["x1"] != 8 {
		t.Fatalf("expected x1 rounded to 8, got %g", p["x1"])
	}
}

func TestSpaceDefaultPoint(t *testing.T) {
	s := testSpace()
	d := 3.0
	s.Varying[0].Default = &d
	p := s.DefaultPoint()
	if p["x0"] != 3 || p["x1"] != 7.5 {
		t.Fatalf("unexpected default point %v", p)
	}
}

func TestSpaceIntBoundsNormalizeInside(t *testing.T) {
	s := &Space{
		Varying:    []VaryingParameter{{Name: "n", LowerBound: 0.5, UpperBound: 3.5, Type: ParameterTypeInt}},
		Objectives: []Objective{{Name: "f"}},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid space, got %v", err)
	}
	for in, want := range map[float64]float64{-2: 1, 0.5: 1, 2.4: 2, 3.5: 3, 9: 3} {
		p := s.Normalize(Point{"n": in})
		if p["n"] != want {
			t.Fatalf("normalize(%g): expected %g, got %g", in, want, p["n"])
		}
		if err := s.Contains(p); err != nil {
			t.Fatalf("normalized point must be contained: %v", err)
		}
	}
	if got := s.DefaultPoint()["n"]; got != 2 {
		t.Fatalf("expected default 2, got %g", got)
	}
}

func TestSpaceFidelity(t *testing.T) {
	s := testSpace()
	if _, ok := s.Fidelity(); ok {
		t.Fatalf("space without fidelity parameter reported one")
	}
	if !s.AtTargetFidelity(Point{"x0": 1, "x1": 1}) {
		t.Fatalf("every point is at target fidelity without a fidelity parameter")
	}

	s.Varying[1].IsFidelity = true
	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid space, got %v", err)
	}
	vp, ok := s.Fidelity()
	if !ok || vp.Name != "x1" || vp.Target() != 15 {
		t.Fatalf("expected x1 with target 15, got %+v ok=%v", vp, ok)
	}
	if got := s.DefaultPoint()["x1"]; got != 15 {
		t.Fatalf("fidelity default should start at target, got %g", got)
	}

	target := 10.0
	s.Varying[1].TargetValue = &target
	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid space, got %v", err)
	}
	if !s.AtTargetFidelity(Point{"x0": 1, "x1": 10}) || s.AtTargetFidelity(Point{"x0": 1, "x1": 15}) {
		t.Fatalf("target fidelity check ignored fidelity_target_value")
	}
}

func TestSpaceEqual(t *testing.T) {
	a, b := testSpace(), testSpace()
	if !a.Equal(b) {
		t.Fatalf("expected equal spaces")
	}
	b.Varying[0].Type = ParameterTypeFloat
	if !a.Equal(b) {
		t.Fatalf("empty type and float should compare equal")
	}
	b.Objectives[0].Minimize = false
	if a.Equal(b) {
		t.Fatalf("expected direction change to break equality")
	}
	b = testSpace()
	b.Varying[1].IsFidelity = true
	if a.Equal(b) {
		t.Fatalf("expected fidelity flag to break equality")
	}
	if a.Equal(nil) {
		t.Fatalf("nil space must not be equal")
	}
}

func TestObjectiveBetter(t *testing.T) {
	min := Objective{Name: "f", Minimize: true}
	max := Objective{Name: "g"}
	if !min.Better(1, 2) || min.Better(2, 1) {
		t.Fatalf("minimize ordering wrong")
	}
	if !max.Better(2, 1) || max.Better(1, 2) {
		t.Fatalf("maximize ordering wrong")
	}
	if min.Direction() != "minimize" || max.Direction() != "maximize" {
		t.Fatalf("unexpected directions")
	}
}
