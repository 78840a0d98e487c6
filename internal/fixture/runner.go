package fixture

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/potential"
)

// Tolerance is the relative error allowed between expected and computed
// values.
const Tolerance = 1e-12

// #region types
// Result is the outcome of one case. Build failures are reported as a
// single result with ID "build".
type Result struct {
	ID     string
	Got    []float64
	Err    error
	Passed bool
	Reason string
}

// Summary aggregates results across fixtures.
type Summary struct {
	Fixtures int
	Cases    int
	Passed   int
	Failed   int
}

// #endregion types

// #region run
// Run builds the fixture's potential, applies Adjust then Scale, and checks
// every case. Each case is evaluated as an array and point by point as
// scalars; the two must agree.
func Run(f *Fixture) []Result {
	p, err := potential.BuildDefinition(f.Definition)
	if err == nil && len(f.Adjust) > 0 {
		p, err = p.Adjust(f.Adjust)
	}
	if f.BuildError != "" {
		return []Result{expectFailure("build", f.BuildError, err)}
	}
	if err != nil {
		return []Result{{ID: "build", Err: err, Reason: fmt.Sprintf("build failed: %v", err)}}
	}
	if f.Scale != nil {
		p = p.Scale(*f.Scale)
	}

	results := make([]Result, 0, len(f.Cases))
	for _, c := range f.Cases {
		results = append(results, runCase(p, c))
	}
	return results
}

func runCase(p *potential.Potential, c Case) Result {
	got, err := p.EvaluateArray(c.X)
	if c.Error != "" {
		return expectFailure(c.ID, c.Error, err)
	}
	res := Result{ID: c.ID, Got: got, Err: err}
	if err != nil {
		res.Reason = fmt.Sprintf("unexpected error: %v", err)
		return res
	}
	if len(got) != len(c.Want) {
		res.Reason = fmt.Sprintf("got %d values, want %d", len(got), len(c.Want))
		return res
	}
	for i, x := range c.X {
		if !approxEqual(got[i], c.Want[i]) {
			res.Reason = fmt.Sprintf("V(%g) = %g, want %g", x, got[i], c.Want[i])
			return res
		}
		y, err := p.EvaluateScalar(x)
		if err != nil {
			res.Reason = fmt.Sprintf("scalar V(%g): %v", x, err)
			return res
		}
		if y != got[i] {
			res.Reason = fmt.Sprintf("scalar V(%g) = %g disagrees with array value %g", x, y, got[i])
			return res
		}
	}
	res.Passed = true
	return res
}

func expectFailure(id, kind string, err error) Result {
	res := Result{ID: id, Err: err}
	if err == nil {
		res.Reason = fmt.Sprintf("expected %s error, got none", kind)
		return res
	}
	var fe *fault.Error
	if !errors.As(err, &fe) {
		res.Reason = fmt.Sprintf("expected %s error, got unclassified %v", kind, err)
		return res
	}
	if string(fe.Kind) != kind {
		res.Reason = fmt.Sprintf("expected %s error, got %s: %v", kind, fe.Kind, err)
		return res
	}
	res.Passed = true
	return res
}

func approxEqual(got, want float64) bool {
	if got == want {
		return true
	}
	return math.Abs(got-want) <= Tolerance*math.Max(1, math.Abs(want))
}

// #endregion run

// #region summarize
// Summarize counts passed and failed cases. results holds one slice per
// fixture.
func Summarize(results [][]Result) Summary {
	s := Summary{Fixtures: len(results)}
	for _, rs := range results {
		for _, r := range rs {
			s.Cases++
			if r.Passed {
				s.Passed++
			} else {
				s.Failed++
			}
		}
	}
	return s
}

// #endregion summarize
