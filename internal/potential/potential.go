// Package potential builds and evaluates piecewise one-dimensional
// potentials.
//
// A Potential is an ordered list of regions sharing one parameter set. An
// input point takes its value from the lowest-index region whose closed
// interval contains it; points outside every region are a DomainError.
// The whole result is multiplied by the potential's strength.
//
// Built potentials are immutable. Scale and Adjust return new values and
// a Potential is safe for concurrent use.
package potential

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/potential/internal/expr"
	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/params"
	"github.com/danielpatrickdp/potential/internal/region"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// Separator splits a region spec into its domain and function.
const Separator = "|"

// #region potential
// Potential is a piecewise function of one variable.
type Potential struct {
	name     string
	raw      []RawRegion
	regions  []*region.Region
	params   *params.Store
	strength float64
}

// #endregion potential

// #region build
// Build creates a potential from raw parameter pairs and region specs using
// the standard math capability.
func Build(pairs []params.Pair, regions []RawRegion) (*Potential, error) {
	return BuildWith(expr.NewEvaluator(nil), pairs, regions)
}

// BuildWith is Build with an explicit evaluator.
func BuildWith(ev *expr.Evaluator, pairs []params.Pair, regions []RawRegion) (*Potential, error) {
	raw, err := normalize(regions)
	if err != nil {
		return nil, err
	}
	ps, err := params.BuildWith(ev, pairs)
	if err != nil {
		return nil, err
	}
	built, err := buildRegions(raw, ps)
	if err != nil {
		return nil, err
	}
	return &Potential{raw: raw, regions: built, params: ps, strength: 1}, nil
}

// BuildDefinition builds the potential described by def, applying its
// name and strength.
func BuildDefinition(def Definition) (*Potential, error) {
	p, err := Build(def.Parameters, def.Regions)
	if err != nil {
		return nil, err
	}
	p.name = def.Name
	if def.Strength != nil {
		p.strength = *def.Strength
	}
	return p, nil
}

// normalize validates the region list and orders it by index. The input
// slice is not modified.
func normalize(regions []RawRegion) ([]RawRegion, error) {
	if len(regions) == 0 {
		return nil, fault.Config("a potential needs at least one region", nil)
	}
	raw := make([]RawRegion, len(regions))
	copy(raw, regions)
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Index < raw[j].Index })
	for i := 1; i < len(raw); i++ {
		if raw[i].Index == raw[i-1].Index {
			return nil, fault.Config(fmt.Sprintf("region index %d is declared more than once", raw[i].Index), nil)
		}
	}
	return raw, nil
}

func buildRegions(raw []RawRegion, ps *params.Store) ([]*region.Region, error) {
	out := make([]*region.Region, 0, len(raw))
	for _, rr := range raw {
		domain, fn, err := ParseRegionSpec(rr.Spec)
		if err != nil {
			return nil, fault.InRegion(err, rr.Index)
		}
		r, err := region.Build(rr.Index, domain, fn, ps)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseRegionSpec splits a "domain|function" spec on the first separator
// and trims both halves.
func ParseRegionSpec(spec string) (domain, function string, err error) {
	d, f, ok := strings.Cut(spec, Separator)
	if !ok {
		return "", "", fault.Config(fmt.Sprintf("region spec %q has no %q separator", spec, Separator), nil)
	}
	return strings.TrimSpace(d), strings.TrimSpace(f), nil
}

// #endregion build

// #region evaluate
// Evaluate returns the potential at x with the shape of x.
func (p *Potential) Evaluate(x tensor.Value) (tensor.Value, error) {
	if x.IsArray() {
		out, err := p.EvaluateArray(x.Floats())
		if err != nil {
			return tensor.Value{}, err
		}
		return tensor.Array(out), nil
	}
	f, ok := x.Float()
	if !ok {
		return tensor.Value{}, fault.Config("x holds neither a scalar nor an array", nil)
	}
	v, err := p.EvaluateScalar(f)
	if err != nil {
		return tensor.Value{}, err
	}
	return tensor.Scalar(v), nil
}

// EvaluateScalar evaluates the potential at a single point.
func (p *Potential) EvaluateScalar(x float64) (float64, error) {
	for _, r := range p.regions {
		if !r.Contains(x) {
			continue
		}
		v, err := r.Evaluate(tensor.Scalar(x), p.params)
		if err != nil {
			return 0, err
		}
		f, _ := v.Float()
		return p.strength * f, nil
	}
	return 0, fault.Domain(x, -1, fmt.Sprintf("x = %g is outside every region", x))
}

// EvaluateArray evaluates the potential elementwise. Each region is
// evaluated once over the elements it claims. Any element outside every
// region fails the whole call.
func (p *Potential) EvaluateArray(xs []float64) ([]float64, error) {
	x := tensor.Array(xs)
	out := make([]float64, len(xs))
	done := make(tensor.Mask, len(xs))

	for _, r := range p.regions {
		hit := r.Mask(x).AndNot(done)
		if !hit.Any() {
			continue
		}
		v, err := r.Evaluate(tensor.Select(x, hit), p.params)
		if err != nil {
			return nil, err
		}
		if err := tensor.Scatter(out, hit, v); err != nil {
			return nil, fault.InRegion(fault.Expression(r.FunctionSpec(), -1, err.Error()), r.Index())
		}
		done = done.Or(hit)
	}

	if missing := done.Not(); missing.Any() {
		i := missing.First()
		return nil, fault.Domain(xs[i], i, fmt.Sprintf("x[%d] = %g is outside every region (%d of %d points uncovered)",
			i, xs[i], missing.Count(), len(xs)))
	}
	for i := range out {
		out[i] *= p.strength
	}
	return out, nil
}

// #endregion evaluate

// #region derive
// Scale returns a potential with its strength multiplied by factor. The
// receiver is unchanged; regions and parameters are shared.
func (p *Potential) Scale(factor float64) *Potential {
	c := *p
	c.strength = p.strength * factor
	return &c
}

// Adjust returns a potential with the named parameters replaced. Parameters
// derived from them are re-evaluated and every domain is resolved again.
// Strength and name carry over. A name that is not a parameter is a
// ParameterError rather than being skipped.
func (p *Potential) Adjust(overrides map[string]float64) (*Potential, error) {
	ps, err := p.params.Rebuild(overrides)
	if err != nil {
		return nil, err
	}
	built, err := buildRegions(p.raw, ps)
	if err != nil {
		return nil, err
	}
	return &Potential{name: p.name, raw: p.raw, regions: built, params: ps, strength: p.strength}, nil
}

// #endregion derive

// #region accessors
// Name returns the name the potential was defined under, if any.
func (p *Potential) Name() string { return p.name }

// Strength returns the multiplicative scale factor.
func (p *Potential) Strength() float64 { return p.strength }

// Param returns the value of the named parameter.
func (p *Potential) Param(name string) (float64, error) {
	return p.params.Get(name)
}

// Params returns the parameter store.
func (p *Potential) Params() *params.Store { return p.params }

// Regions returns the regions in precedence order.
func (p *Potential) Regions() []*region.Region {
	out := make([]*region.Region, len(p.regions))
	copy(out, p.regions)
	return out
}

// Definition returns the source the potential can be rebuilt from.
func (p *Potential) Definition() Definition {
	raw := make([]RawRegion, len(p.raw))
	copy(raw, p.raw)
	strength := p.strength
	return Definition{
		Name:       p.name,
		Parameters: p.params.Pairs(),
		Regions:    raw,
		Strength:   &strength,
	}
}

// #endregion accessors
