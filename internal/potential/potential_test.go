package potential

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/params"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// #region helpers
func mustBuild(t *testing.T, pairs []params.Pair, specs ...string) *Potential {
	t.Helper()
	p, err := Build(pairs, Specs(specs...))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func scalarAt(t *testing.T, p *Potential, x float64) float64 {
	t.Helper()
	v, err := p.EvaluateScalar(x)
	if err != nil {
		t.Fatalf("EvaluateScalar(%g): %v", x, err)
	}
	return v
}

func bumpDown(t *testing.T) *Potential {
	t.Helper()
	return mustBuild(t,
		[]params.Pair{{Name: "a", Value: "2"}, {Name: "w", Value: "1"}, {Name: "v0", Value: "15"}},
		"-inf, w|0",
		"a, inf|0",
		"w, a|v0",
	)
}

// #endregion helpers

// #region core-tests
func TestSplitParabolaRoundTrip(t *testing.T) {
	p := mustBuild(t, nil, "-2,0|x**2", "0,2|-(x**2)")
	want := map[float64]float64{-1: 1, 0: 0, 1: -1}
	for x, w := range want {
		if got := scalarAt(t, p, x); got != w {
			t.Errorf("V(%g): expected %g, got %g", x, w, got)
		}
	}

	v, err := p.Evaluate(tensor.Array([]float64{-1, 0, 1}))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := v.Floats()
	for i, w := range []float64{1, 0, -1} {
		if got[i] != w {
			t.Errorf("element %d: expected %g, got %g", i, w, got[i])
		}
	}
}

func TestCoveringRegionsDefinedEverywhere(t *testing.T) {
	p := mustBuild(t, []params.Pair{{Name: "k", Value: "3"}},
		"-inf, -1|k",
		"-1, 1|k * x",
		"1, inf|-k",
	)
	for _, x := range []float64{-1e12, -1, -0.5, 0, 0.5, 1, 1e12, math.Inf(1), math.Inf(-1)} {
		if _, err := p.EvaluateScalar(x); err != nil {
			t.Errorf("V(%g): %v", x, err)
		}
	}
	if got := scalarAt(t, p, 0.5); got != 1.5 {
		t.Errorf("V(0.5): expected 1.5, got %g", got)
	}
	if got := scalarAt(t, p, 5); got != -3 {
		t.Errorf("V(5): expected -3, got %g", got)
	}
}

func TestSharedBoundaryResolvesToLowerIndex(t *testing.T) {
	p := mustBuild(t, nil, "-1, 0|10", "0, 1|20")
	if got := scalarAt(t, p, 0); got != 10 {
		t.Fatalf("V(0): expected first region, got %g", got)
	}
	_, err := p.EvaluateScalar(2)
	if !errors.Is(err, fault.ErrDomain) {
		t.Fatalf("V(2): expected domain error, got %v", err)
	}
	var fe *fault.Error
	errors.As(err, &fe)
	if fe.Value != 2 || fe.Element != -1 {
		t.Fatalf("domain error lacks context: %+v", fe)
	}
}

func TestOverlapPrecedenceFollowsIndexNotListOrder(t *testing.T) {
	regions := []RawRegion{
		{Index: 5, Spec: "-10, 10|5"},
		{Index: 2, Spec: "0, 1|2"},
		{Index: 9, Spec: "-1, 0|9"},
	}
	p, err := Build(nil, regions)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cases := map[float64]float64{0.5: 2, 0: 2, -0.5: 5, 7: 5}
	for x, want := range cases {
		if got := scalarAt(t, p, x); got != want {
			t.Errorf("V(%g): expected %g, got %g", x, want, got)
		}
	}

	v, err := p.Evaluate(tensor.Array([]float64{0.5, 0, -0.5, 7}))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for i, want := range []float64{2, 2, 5, 5} {
		if v.At(i) != want {
			t.Errorf("element %d: expected %g, got %g", i, want, v.At(i))
		}
	}
	if regions[0].Index != 5 {
		t.Fatal("Build reordered the caller's slice")
	}
}

func TestArrayOutsideDomainReportsFirstElement(t *testing.T) {
	p := mustBuild(t, nil, "-1, 0|0", "0, 1|1")
	_, err := p.Evaluate(tensor.Array([]float64{0, 0.5, 3, -4}))
	if !errors.Is(err, fault.ErrDomain) {
		t.Fatalf("expected domain error, got %v", err)
	}
	var fe *fault.Error
	errors.As(err, &fe)
	if fe.Element != 2 || fe.Value != 3 {
		t.Fatalf("expected element 2 = 3, got element %d = %g", fe.Element, fe.Value)
	}
}

func TestEmptyArray(t *testing.T) {
	p := mustBuild(t, nil, "0, 1|x")
	v, err := p.Evaluate(tensor.Array(nil))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.IsArray() || v.Len() != 0 {
		t.Fatalf("expected empty array, got %s", v)
	}
}

func TestEvaluateRejectsZeroValue(t *testing.T) {
	p := mustBuild(t, nil, "-1, 0|x**2", "0, 1|-x**2")
	v, err := p.Evaluate(tensor.Value{})
	if !errors.Is(err, fault.ErrConfig) {
		t.Fatalf("expected config error, got %s %v", v, err)
	}
	if got, err := p.Evaluate(tensor.Scalar(0)); err != nil || got.At(0) != 0 {
		t.Fatalf("Evaluate(0) = %s, %v", got, err)
	}
}

// #endregion core-tests

// #region scale-tests
func TestScaleReturnsNewPotential(t *testing.T) {
	p := mustBuild(t, nil, "-2,0|x**2", "0,2|-(x**2)")
	xs := tensor.Linspace(-2, 2, 9)
	before, err := p.Evaluate(xs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	scaled := p.Scale(3).Scale(0.5)
	if scaled.Strength() != 1.5 || p.Strength() != 1 {
		t.Fatalf("unexpected strengths %g / %g", scaled.Strength(), p.Strength())
	}
	got, err := scaled.Evaluate(xs)
	if err != nil {
		t.Fatalf("Evaluate scaled: %v", err)
	}
	after, err := p.Evaluate(xs)
	if err != nil {
		t.Fatalf("Evaluate original: %v", err)
	}
	for i := 0; i < xs.Len(); i++ {
		if got.At(i) != 1.5*before.At(i) {
			t.Errorf("element %d: expected %g, got %g", i, 1.5*before.At(i), got.At(i))
		}
		if after.At(i) != before.At(i) {
			t.Errorf("element %d: original changed from %g to %g", i, before.At(i), after.At(i))
		}
	}
}

// #endregion scale-tests

// #region build-error-tests
func TestBuildErrors(t *testing.T) {
	cases := []struct {
		name    string
		pairs   []params.Pair
		regions []RawRegion
		kind    error
	}{
		{"no regions", nil, nil, fault.ErrConfig},
		{"missing separator", nil, Specs("0, 1"), fault.ErrConfig},
		{"duplicate index", nil, []RawRegion{{0, "0,1|x"}, {0, "1,2|x"}}, fault.ErrConfig},
		{"undefined parameter in function", nil, Specs("0, 1|v0 * x"), fault.ErrExpression},
		{"disallowed call", nil, Specs("0, 1|system(x)"), fault.ErrExpression},
		{"undefined parameter in domain", nil, Specs("0, a|x"), fault.ErrRegion},
		{"inverted domain", nil, Specs("1, 0|x"), fault.ErrRegion},
		{"bad parameter", []params.Pair{{Name: "a", Value: "b"}}, Specs("0, 1|x"), fault.ErrParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Build(tc.pairs, tc.regions)
			if p != nil {
				t.Fatal("a failed build must not return a potential")
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestMissingSeparatorNamesRegion(t *testing.T) {
	_, err := Build(nil, []RawRegion{{Index: 0, Spec: "0,1|x"}, {Index: 3, Spec: "junk"}})
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Region != 3 {
		t.Fatalf("expected error for region 3, got %v", err)
	}
}

func TestParseRegionSpec(t *testing.T) {
	d, f, err := ParseRegionSpec("  -a, a |  where(x > 0, 1, 2) | 3 ")
	if err != nil {
		t.Fatalf("ParseRegionSpec: %v", err)
	}
	if d != "-a, a" || f != "where(x > 0, 1, 2) | 3" {
		t.Fatalf("unexpected split %q / %q", d, f)
	}
}

func TestRuntimeMathFaultAtEvaluation(t *testing.T) {
	p := mustBuild(t, nil, "-1, 1|log(x)")
	if _, err := p.EvaluateScalar(-0.5); !errors.Is(err, fault.ErrExpression) {
		t.Fatalf("expected expression error, got %v", err)
	}
}

// #endregion build-error-tests

// #region supplemented-tests
func TestParamAccess(t *testing.T) {
	p := bumpDown(t)
	if w, err := p.Param("w"); err != nil || w != 1 {
		t.Fatalf("Param(w): %g, %v", w, err)
	}
	if _, err := p.Param("dummy"); !errors.Is(err, fault.ErrParameter) {
		t.Fatalf("Param(dummy): expected parameter error, got %v", err)
	}
}

func TestBumpDownAdjust(t *testing.T) {
	base := bumpDown(t)
	cases := []struct{ a, w, v0 float64 }{
		{2, 1, 15},
		{1e5, 5e4, 1234},
		{1. / 3, 1. / 6, 10},
		{math.Pi, math.Pi / 2, -math.Sqrt2},
	}
	for _, tc := range cases {
		p, err := base.Adjust(map[string]float64{"a": tc.a, "w": tc.w, "v0": tc.v0})
		if err != nil {
			t.Fatalf("Adjust: %v", err)
		}
		checks := []struct{ x, want float64 }{
			{tc.w + (tc.a-tc.w)/2, tc.v0},
			{0.75 * tc.w, 0},
			{1.25 * tc.w, tc.v0},
			{-0.5 * tc.a, 0},
			{-tc.w, 0},
			{tc.a, 0},
		}
		for _, c := range checks {
			if got := scalarAt(t, p, c.x); got != c.want {
				t.Errorf("a=%g w=%g: V(%g) expected %g, got %g", tc.a, tc.w, c.x, c.want, got)
			}
		}
		v, err := p.Evaluate(tensor.Linspace(-tc.a, tc.a, 100))
		if err != nil || v.Len() != 100 {
			t.Errorf("linspace evaluation: %v", err)
		}
	}
	if v0, _ := base.Param("v0"); v0 != 15 {
		t.Fatalf("Adjust changed the original: v0 = %g", v0)
	}
}

func TestAdjustErrors(t *testing.T) {
	p := bumpDown(t)
	if _, err := p.Adjust(map[string]float64{"dummy": 1}); !errors.Is(err, fault.ErrParameter) {
		t.Fatalf("unknown parameter: expected parameter error, got %v", err)
	}
	// w > a inverts the last region.
	if _, err := p.Adjust(map[string]float64{"w": 5}); !errors.Is(err, fault.ErrRegion) {
		t.Fatalf("inverted domain: expected region error, got %v", err)
	}
}

func TestAdjustKeepsStrength(t *testing.T) {
	p := bumpDown(t).Scale(2)
	q, err := p.Adjust(map[string]float64{"v0": 4})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if got := scalarAt(t, q, 1.5); got != 8 {
		t.Fatalf("expected 2 * 4, got %g", got)
	}
}

func TestDefinitionRebuilds(t *testing.T) {
	p := bumpDown(t).Scale(-2)
	def := p.Definition()
	if def.Strength == nil || *def.Strength != -2 {
		t.Fatalf("definition lost strength: %+v", def)
	}
	q, err := BuildDefinition(def)
	if err != nil {
		t.Fatalf("BuildDefinition: %v", err)
	}
	for _, x := range []float64{-3, 0.5, 1.5, 2, 7} {
		if a, b := scalarAt(t, p, x), scalarAt(t, q, x); a != b {
			t.Errorf("V(%g): %g vs rebuilt %g", x, a, b)
		}
	}
}

func TestConcurrentEvaluation(t *testing.T) {
	p := mustBuild(t, []params.Pair{{Name: "l", Value: "1"}, {Name: "w", Value: "0.25"}, {Name: "v0", Value: "10"}},
		"-inf, inf|v0 * ((x % l) < w)")
	xs := tensor.Linspace(-5, 5, 1001)
	want, err := p.Evaluate(xs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Scale(1).Evaluate(xs)
			if err != nil {
				errs <- err
				return
			}
			for i := 0; i < xs.Len(); i++ {
				if got.At(i) != want.At(i) {
					errs <- errors.New("concurrent evaluation diverged")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

// #endregion supplemented-tests
