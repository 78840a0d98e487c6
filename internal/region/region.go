package region

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/potential/internal/expr"
	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/params"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// #region region
// Region is a closed interval [Lower, Upper] bound to a function of the
// input variable. The bounds are resolved once at build time; the function
// is compiled at build time and evaluated per call.
type Region struct {
	index      int
	domainSpec string
	funcSpec   string
	lower      float64
	upper      float64
	fn         *expr.Program
}

// #endregion region

// #region build
// Build resolves the domain of region index against ps and compiles its
// function. The domain must evaluate to exactly two scalars with
// lower <= upper. The function may reference only the input variable, the
// parameters in ps and math constants.
func Build(index int, domainSpec, functionSpec string, ps *params.Store) (*Region, error) {
	ev := ps.Evaluator()
	lower, upper, err := resolveDomain(ev, index, domainSpec, ps)
	if err != nil {
		return nil, err
	}

	fn, err := ev.Compile(functionSpec)
	if err != nil {
		return nil, fault.InRegion(err, index)
	}
	known := func(name string) bool { return name == params.InputVar || ps.Contains(name) }
	if err := fn.Check(known); err != nil {
		return nil, fault.InRegion(err, index)
	}

	return &Region{
		index:      index,
		domainSpec: domainSpec,
		funcSpec:   functionSpec,
		lower:      lower,
		upper:      upper,
		fn:         fn,
	}, nil
}

func resolveDomain(ev *expr.Evaluator, index int, spec string, ps *params.Store) (float64, float64, error) {
	progs, err := ev.CompileTuple(spec)
	if err != nil {
		return 0, 0, fault.Region(index, "invalid domain", fault.InRegion(err, index))
	}
	if len(progs) != 2 {
		return 0, 0, fault.Region(index, fmt.Sprintf("domain %q must be a pair (lower, upper), got %d values", spec, len(progs)), nil)
	}

	var bounds [2]float64
	for i, p := range progs {
		v, err := p.Eval(ps)
		if err != nil {
			return 0, 0, fault.Region(index, "cannot resolve domain", fault.InRegion(err, index))
		}
		f, ok := v.Float()
		if !ok {
			return 0, 0, fault.Region(index, fmt.Sprintf("domain %q bound %d is not a scalar", spec, i), nil)
		}
		if math.IsNaN(f) {
			return 0, 0, fault.Region(index, fmt.Sprintf("domain %q bound %d is NaN", spec, i), nil)
		}
		bounds[i] = f
	}
	if bounds[0] > bounds[1] {
		return 0, 0, fault.Region(index, fmt.Sprintf("inverted domain: lower %g > upper %g", bounds[0], bounds[1]), nil)
	}
	return bounds[0], bounds[1], nil
}

// #endregion build

// #region membership
// Contains reports whether lower <= x <= upper.
func (r *Region) Contains(x float64) bool {
	return r.lower <= x && x <= r.upper
}

// Mask computes membership for every element of x.
func (r *Region) Mask(x tensor.Value) tensor.Mask {
	return tensor.MaskOf(x, r.Contains)
}

// #endregion membership

// #region evaluate
// Evaluate computes the region's function at x with the parameters in ps.
// A constant function is broadcast to the shape of x.
func (r *Region) Evaluate(x tensor.Value, ps *params.Store) (tensor.Value, error) {
	ns := expr.Layered{expr.Vars{params.InputVar: x}, ps}
	v, err := r.fn.Eval(ns)
	if err != nil {
		return tensor.Value{}, fault.InRegion(err, r.index)
	}
	out, err := tensor.Broadcast(v, x)
	if err != nil {
		return tensor.Value{}, fault.InRegion(fault.Expression(r.funcSpec, -1, err.Error()), r.index)
	}
	return out, nil
}

// #endregion evaluate

// #region accessors
// Index returns the declaration index that sets precedence.
func (r *Region) Index() int { return r.index }

// Lower returns the resolved lower bound.
func (r *Region) Lower() float64 { return r.lower }

// Upper returns the resolved upper bound.
func (r *Region) Upper() float64 { return r.upper }

// DomainSpec returns the domain source text.
func (r *Region) DomainSpec() string { return r.domainSpec }

// FunctionSpec returns the function source text.
func (r *Region) FunctionSpec() string { return r.funcSpec }

// Spec returns the region in its "domain|function" source form.
func (r *Region) Spec() string {
	return r.domainSpec + "|" + r.funcSpec
}

// String implements fmt.Stringer.
func (r *Region) String() string {
	return fmt.Sprintf("region %d [%g, %g]: %s", r.index, r.lower, r.upper, r.funcSpec)
}

// #endregion accessors
