package params

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/danielpatrickdp/potential/internal/fault"
)

func TestLaterParametersReferenceEarlier(t *testing.T) {
	s, err := Build([]Pair{{"a", "1"}, {"b", "a + 1"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := s.Get("b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b != 2 {
		t.Fatalf("expected b == 2, got %g", b)
	}
}

func TestDerivedValuesUseMath(t *testing.T) {
	s, err := Build([]Pair{
		{"w", "0.5"},
		{"a", "2 * pi"},
		{"v0", "sqrt(16) * w"},
		{"edge", "-inf"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a, _ := s.Get("a"); math.Abs(a-2*math.Pi) > 1e-12 {
		t.Errorf("a: expected 2pi, got %g", a)
	}
	if v0, _ := s.Get("v0"); v0 != 2 {
		t.Errorf("v0: expected 2, got %g", v0)
	}
	if e, _ := s.Get("edge"); !math.IsInf(e, -1) {
		t.Errorf("edge: expected -Inf, got %g", e)
	}
	if got := strings.Join(s.Names(), ","); got != "w,a,v0,edge" {
		t.Errorf("names out of order: %s", got)
	}
	if s.Len() != 4 || !s.Contains("w") || s.Contains("pi") {
		t.Error("membership does not match the defined parameters")
	}
}

func TestBuildRejects(t *testing.T) {
	cases := []struct {
		name  string
		pairs []Pair
		param string
		also  error
	}{
		{"duplicate", []Pair{{"a", "1"}, {"a", "2"}}, "a", nil},
		{"forward reference", []Pair{{"b", "a + 1"}, {"a", "1"}}, "b", fault.ErrExpression},
		{"undefined", []Pair{{"a", "missing * 2"}}, "a", fault.ErrExpression},
		{"disallowed call", []Pair{{"a", "open(1)"}}, "a", fault.ErrExpression},
		{"attribute access", []Pair{{"a", "numpy.pi"}}, "a", fault.ErrExpression},
		{"runtime fault", []Pair{{"a", "log(0)"}}, "a", fault.ErrExpression},
		{"reserved name", []Pair{{"x", "1"}}, "x", nil},
		{"bad identifier", []Pair{{"2a", "1"}}, "2a", nil},
		{"keyword", []Pair{{"lambda", "1"}}, "lambda", nil},
		{"empty name", []Pair{{"", "1"}}, "", nil},
		{"tuple value", []Pair{{"a", "1, 2"}}, "a", fault.ErrExpression},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Build(tc.pairs)
			if err == nil {
				t.Fatalf("expected error, got store with %v", s.Names())
			}
			if !errors.Is(err, fault.ErrParameter) {
				t.Fatalf("expected parameter error, got %v", err)
			}
			if tc.also != nil && !errors.Is(err, tc.also) {
				t.Fatalf("expected cause %v, got %v", tc.also, err)
			}
			var fe *fault.Error
			if !errors.As(err, &fe) || fe.Param != tc.param {
				t.Fatalf("expected parameter %q in error, got %v", tc.param, err)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	s, err := Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Get("nope"); !errors.Is(err, fault.ErrParameter) {
		t.Fatalf("expected parameter error, got %v", err)
	}
	if _, ok := s.Lookup("nope"); ok {
		t.Fatal("Lookup found an undefined name")
	}
}

func TestRebuildPropagatesToDependents(t *testing.T) {
	s, err := Build([]Pair{{"l", "2"}, {"w", "l / 4"}, {"v0", "10"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r, err := s.Rebuild(map[string]float64{"l": 8})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if w, _ := r.Get("w"); w != 2 {
		t.Errorf("w: expected 2 after rebuild, got %g", w)
	}
	if w, _ := s.Get("w"); w != 0.5 {
		t.Errorf("original store changed: w = %g", w)
	}
	if got := r.Pairs()[0].Value; got != "8" {
		t.Errorf("override not recorded in source pairs: %q", got)
	}

	r, err = s.Rebuild(map[string]float64{"v0": math.Inf(1)})
	if err != nil {
		t.Fatalf("Rebuild with inf: %v", err)
	}
	if v, _ := r.Get("v0"); !math.IsInf(v, 1) {
		t.Errorf("v0: expected +Inf, got %g", v)
	}

	if _, err := s.Rebuild(map[string]float64{"k": 1}); !errors.Is(err, fault.ErrParameter) {
		t.Fatalf("unknown override: expected parameter error, got %v", err)
	}
}

func TestAllAndPairsAreCopies(t *testing.T) {
	s, err := Build([]Pair{{"a", "3"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	all := s.All()
	all[0].Value = 99
	pairs := s.Pairs()
	pairs[0].Value = "99"
	if v, _ := s.Get("a"); v != 3 || s.Pairs()[0].Value != "3" {
		t.Fatal("store mutated through returned slices")
	}
}
