// Package params holds the named values shared by every expression of a
// potential.
package params

import (
	"math"
	"strconv"

	"github.com/danielpatrickdp/potential/internal/expr"
	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// InputVar is the name the evaluation input is bound to. It cannot be used
// as a parameter name.
const InputVar = "x"

// #region types
// Pair is one raw parameter entry: a name and its value expression.
type Pair struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Entry is a resolved parameter.
type Entry struct {
	Name  string
	Value float64
}

// Store maps parameter names to resolved values. It is immutable once
// built and implements expr.Namespace.
type Store struct {
	ev     *expr.Evaluator
	pairs  []Pair
	names  []string
	values map[string]float64
}

// #endregion types

// #region build
// Build evaluates pairs in order against the standard math capability.
func Build(pairs []Pair) (*Store, error) {
	return BuildWith(expr.NewEvaluator(nil), pairs)
}

// BuildWith evaluates pairs in order. Each value may reference the
// parameters defined before it.
func BuildWith(ev *expr.Evaluator, pairs []Pair) (*Store, error) {
	return build(ev, pairs, nil)
}

func build(ev *expr.Evaluator, pairs []Pair, overrides map[string]float64) (*Store, error) {
	s := &Store{
		ev:     ev,
		pairs:  make([]Pair, 0, len(pairs)),
		names:  make([]string, 0, len(pairs)),
		values: make(map[string]float64, len(pairs)),
	}
	for _, p := range pairs {
		if err := checkName(p.Name); err != nil {
			return nil, err
		}
		if _, dup := s.values[p.Name]; dup {
			return nil, fault.Parameter(p.Name, "defined more than once", nil)
		}

		if v, ok := overrides[p.Name]; ok {
			p.Value = formatNumber(v)
		}
		v, err := ev.Evaluate(p.Value, s)
		if err != nil {
			return nil, fault.Parameter(p.Name, "cannot evaluate value", err)
		}
		f, ok := v.Float()
		if !ok {
			return nil, fault.Parameter(p.Name, "value must be a scalar, got "+v.String(), nil)
		}

		s.pairs = append(s.pairs, p)
		s.names = append(s.names, p.Name)
		s.values[p.Name] = f
	}
	return s, nil
}

func checkName(name string) error {
	switch {
	case name == "":
		return fault.Parameter(name, "empty parameter name", nil)
	case name == InputVar:
		return fault.Parameter(name, "name is reserved for the input variable", nil)
	case !expr.IsIdentifier(name):
		return fault.Parameter(name, "not a valid identifier", nil)
	}
	return nil
}

// #endregion build

// #region rebuild
// Rebuild re-evaluates the source pairs with the named parameters replaced
// by fixed values, so that parameters derived from them follow. Every
// override must name an existing parameter.
func (s *Store) Rebuild(overrides map[string]float64) (*Store, error) {
	for name := range overrides {
		if !s.Contains(name) {
			return nil, fault.Parameter(name, "no such parameter", nil)
		}
	}
	return build(s.ev, s.pairs, overrides)
}

// formatNumber renders f so that the expression language reads it back
// exactly.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// #endregion rebuild

// #region accessors
// Get returns the value of name.
func (s *Store) Get(name string) (float64, error) {
	v, ok := s.values[name]
	if !ok {
		return 0, fault.Parameter(name, "no such parameter", nil)
	}
	return v, nil
}

// Contains reports whether name is defined.
func (s *Store) Contains(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Lookup implements expr.Namespace.
func (s *Store) Lookup(name string) (tensor.Value, bool) {
	v, ok := s.values[name]
	if !ok {
		return tensor.Value{}, false
	}
	return tensor.Scalar(v), true
}

// Len returns the number of parameters.
func (s *Store) Len() int { return len(s.names) }

// Names returns the parameter names in definition order.
func (s *Store) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// All returns the resolved parameters in definition order.
func (s *Store) All() []Entry {
	out := make([]Entry, len(s.names))
	for i, n := range s.names {
		out[i] = Entry{Name: n, Value: s.values[n]}
	}
	return out
}

// Pairs returns the source pairs the store was built from.
func (s *Store) Pairs() []Pair {
	out := make([]Pair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// Evaluator returns the evaluator the store was built with.
func (s *Store) Evaluator() *expr.Evaluator { return s.ev }

// #endregion accessors
