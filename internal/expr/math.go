package expr

import (
	"fmt"
	"math"
	"sort"

	"github.com/danielpatrickdp/potential/internal/tensor"
)

// #region func
// Func is a whitelisted function callable from expressions.
type Func struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 for variadic
	Call    func(args []tensor.Value) (tensor.Value, error)
}

func (f Func) arity() string {
	switch {
	case f.MaxArgs < 0:
		return fmt.Sprintf("at least %d", f.MinArgs)
	case f.MinArgs == f.MaxArgs:
		return fmt.Sprintf("%d", f.MinArgs)
	default:
		return fmt.Sprintf("%d to %d", f.MinArgs, f.MaxArgs)
	}
}

// #endregion func

// #region math
// Math is the math capability exposed to expressions: the only functions an
// expression may call and the named constants it may read. It is passed to
// the Evaluator explicitly and is never part of a parameter set.
type Math struct {
	funcs  map[string]Func
	consts map[string]float64
}

// NewMath builds a capability from the given functions and constants.
func NewMath(funcs []Func, consts map[string]float64) *Math {
	m := &Math{funcs: make(map[string]Func, len(funcs)), consts: make(map[string]float64, len(consts))}
	for _, f := range funcs {
		m.funcs[f.Name] = f
	}
	for k, v := range consts {
		m.consts[k] = v
	}
	return m
}

// Func looks up a function by name.
func (m *Math) Func(name string) (Func, bool) {
	f, ok := m.funcs[name]
	return f, ok
}

// Const looks up a constant by name.
func (m *Math) Const(name string) (float64, bool) {
	c, ok := m.consts[name]
	return c, ok
}

// FuncNames returns the sorted function names.
func (m *Math) FuncNames() []string {
	names := make([]string, 0, len(m.funcs))
	for n := range m.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ConstNames returns the sorted constant names.
func (m *Math) ConstNames() []string {
	names := make([]string, 0, len(m.consts))
	for n := range m.consts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// #endregion math

// #region std
// Std is the standard math surface.
var Std = NewMath(stdFuncs(), map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"inf": math.Inf(1),
	"nan": math.NaN(),
})

func stdFuncs() []Func {
	positive := func(x float64) bool { return x > 0 }
	unit := func(x float64) bool { return x >= -1 && x <= 1 }
	nonNeg := func(x float64) bool { return x >= 0 }

	return []Func{
		unary("abs", math.Abs, nil),
		unary("sqrt", math.Sqrt, nonNeg),
		unary("exp", math.Exp, nil),
		unary("log", math.Log, positive),
		unary("log10", math.Log10, positive),
		unary("log2", math.Log2, positive),
		unary("sin", math.Sin, nil),
		unary("cos", math.Cos, nil),
		unary("tan", math.Tan, nil),
		unary("asin", math.Asin, unit),
		unary("acos", math.Acos, unit),
		unary("atan", math.Atan, nil),
		unary("arcsin", math.Asin, unit),
		unary("arccos", math.Acos, unit),
		unary("arctan", math.Atan, nil),
		unary("sinh", math.Sinh, nil),
		unary("cosh", math.Cosh, nil),
		unary("tanh", math.Tanh, nil),
		unary("floor", math.Floor, nil),
		unary("ceil", math.Ceil, nil),
		unary("round", math.RoundToEven, nil),
		unary("sign", sign, nil),
		binary("pow", math.Pow),
		binary("atan2", math.Atan2),
		binary("arctan2", math.Atan2),
		binary("hypot", math.Hypot),
		binary("heaviside", heaviside),
		variadic("min", 2, func(xs []float64) float64 {
			out := xs[0]
			for _, x := range xs[1:] {
				out = math.Min(out, x)
			}
			return out
		}),
		variadic("max", 2, func(xs []float64) float64 {
			out := xs[0]
			for _, x := range xs[1:] {
				out = math.Max(out, x)
			}
			return out
		}),
		fixed("where", 3, func(xs []float64) float64 {
			if xs[0] != 0 {
				return xs[1]
			}
			return xs[2]
		}),
		fixed("clip", 3, func(xs []float64) float64 {
			return math.Min(math.Max(xs[0], xs[1]), xs[2])
		}),
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return x // keeps 0, -0 and NaN
	}
}

// heaviside follows numpy: 0 below zero, h0 at zero, 1 above.
func heaviside(x, h0 float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 0:
		return 1
	case x == 0:
		return h0
	default:
		return x
	}
}

// #endregion std

// #region wrappers
func unary(name string, f func(float64) float64, domain func(float64) bool) Func {
	return Func{Name: name, MinArgs: 1, MaxArgs: 1, Call: func(args []tensor.Value) (tensor.Value, error) {
		x := args[0]
		if domain != nil {
			for i := 0; i < x.Len(); i++ {
				v := x.At(i)
				if !math.IsNaN(v) && !domain(v) {
					return tensor.Value{}, fmt.Errorf("math domain error: %s(%g)", name, v)
				}
			}
		}
		return checkNaN(name, args, tensor.Map(x, f))
	}}
}

func binary(name string, f func(x, y float64) float64) Func {
	return Func{Name: name, MinArgs: 2, MaxArgs: 2, Call: func(args []tensor.Value) (tensor.Value, error) {
		out, err := tensor.Zip(args[0], args[1], f)
		if err != nil {
			return tensor.Value{}, fmt.Errorf("%s: %w", name, err)
		}
		return checkNaN(name, args, out)
	}}
}

func fixed(name string, n int, f func(xs []float64) float64) Func {
	return Func{Name: name, MinArgs: n, MaxArgs: n, Call: zipCall(name, f)}
}

func variadic(name string, minArgs int, f func(xs []float64) float64) Func {
	return Func{Name: name, MinArgs: minArgs, MaxArgs: -1, Call: zipCall(name, f)}
}

func zipCall(name string, f func(xs []float64) float64) func([]tensor.Value) (tensor.Value, error) {
	return func(args []tensor.Value) (tensor.Value, error) {
		out, err := tensor.ZipN(args, f)
		if err != nil {
			return tensor.Value{}, fmt.Errorf("%s: %w", name, err)
		}
		return checkNaN(name, args, out)
	}
}

// checkNaN rejects results that turned NaN without a NaN input.
func checkNaN(name string, args []tensor.Value, out tensor.Value) (tensor.Value, error) {
	if !tensor.HasNaN(out) {
		return out, nil
	}
	for _, a := range args {
		if tensor.HasNaN(a) {
			return out, nil
		}
	}
	return tensor.Value{}, fmt.Errorf("math domain error: %s produced NaN", name)
}

// #endregion wrappers
