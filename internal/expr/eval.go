// Package expr evaluates a restricted arithmetic expression language.
//
// Sources are parsed once into a Program and evaluated any number of times.
// The language has numbers, names, arithmetic and comparison operators and
// calls to the functions of a Math capability. Attribute access, indexing,
// assignment, keywords and calls to anything outside the capability are
// rejected at compile time.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// #region namespace
// Namespace resolves names to values during evaluation.
type Namespace interface {
	Lookup(name string) (tensor.Value, bool)
}

// Vars is a Namespace backed by a map.
type Vars map[string]tensor.Value

// Lookup implements Namespace.
func (v Vars) Lookup(name string) (tensor.Value, bool) {
	x, ok := v[name]
	return x, ok
}

// Layered searches each namespace in order and returns the first hit.
type Layered []Namespace

// Lookup implements Namespace.
func (l Layered) Lookup(name string) (tensor.Value, bool) {
	for _, ns := range l {
		if ns == nil {
			continue
		}
		if v, ok := ns.Lookup(name); ok {
			return v, true
		}
	}
	return tensor.Value{}, false
}

// #endregion namespace

// #region evaluator
// Evaluator compiles and evaluates expressions against a fixed math
// capability.
type Evaluator struct {
	math *Math
}

// NewEvaluator returns an evaluator bound to m. A nil m selects Std.
func NewEvaluator(m *Math) *Evaluator {
	if m == nil {
		m = Std
	}
	return &Evaluator{math: m}
}

// Math returns the capability the evaluator exposes to expressions.
func (e *Evaluator) Math() *Math { return e.math }

// Compile parses src into a reusable Program. Tuples are rejected.
func (e *Evaluator) Compile(src string) (*Program, error) {
	root, err := parse(src, e.math)
	if err != nil {
		return nil, err
	}
	if t, ok := root.(*tupleNode); ok {
		return nil, fault.Expression(src, t.pos, "expected a single value, got a tuple")
	}
	return newProgram(src, root, e.math), nil
}

// CompileTuple parses src as a comma-separated list, optionally wrapped in
// parentheses, and returns one Program per element. A source without a
// comma yields a single Program.
func (e *Evaluator) CompileTuple(src string) ([]*Program, error) {
	root, err := parse(src, e.math)
	if err != nil {
		return nil, err
	}
	t, ok := root.(*tupleNode)
	if !ok {
		return []*Program{newProgram(src, root, e.math)}, nil
	}
	progs := make([]*Program, len(t.elems))
	for i, el := range t.elems {
		progs[i] = newProgram(src, el, e.math)
	}
	return progs, nil
}

// Evaluate compiles and runs src in one step.
func (e *Evaluator) Evaluate(src string, ns Namespace) (tensor.Value, error) {
	p, err := e.Compile(src)
	if err != nil {
		return tensor.Value{}, err
	}
	return p.Eval(ns)
}

// #endregion evaluator

// #region program
// Program is a parsed expression. It is immutable and safe for concurrent use.
type Program struct {
	src   string
	root  node
	math  *Math
	names []string
}

func newProgram(src string, root node, m *Math) *Program {
	p := &Program{src: src, root: root, math: m}
	seen := map[string]bool{}
	walk(root, func(n node) {
		if nn, ok := n.(*nameNode); ok && !seen[nn.name] {
			seen[nn.name] = true
			p.names = append(p.names, nn.name)
		}
	})
	return p
}

// Source returns the expression text the program was compiled from.
func (p *Program) Source() string { return p.src }

// Names returns the free names the program reads, in first-use order.
func (p *Program) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Check verifies that every free name is either known to the caller or a
// math constant, so that missing names surface before evaluation.
func (p *Program) Check(known func(name string) bool) error {
	var missing *nameNode
	walk(p.root, func(n node) {
		nn, ok := n.(*nameNode)
		if !ok || missing != nil {
			return
		}
		if known(nn.name) {
			return
		}
		if _, ok := p.math.Const(nn.name); ok {
			return
		}
		missing = nn
	})
	if missing != nil {
		return fault.Expression(p.src, missing.pos, "undefined name "+strconv.Quote(missing.name))
	}
	return nil
}

// Eval evaluates the program. Names resolve against ns first, then against
// the math constants. ns is never modified.
func (p *Program) Eval(ns Namespace) (tensor.Value, error) {
	return p.eval(p.root, ns)
}

func (p *Program) fail(n node, format string, args ...any) error {
	return fault.Expression(p.src, n.position(), fmt.Sprintf(format, args...))
}

func (p *Program) eval(n node, ns Namespace) (tensor.Value, error) {
	switch n := n.(type) {
	case *numNode:
		return tensor.Scalar(n.val), nil
	case *nameNode:
		if ns != nil {
			if v, ok := ns.Lookup(n.name); ok {
				if v.IsZero() {
					return tensor.Value{}, p.fail(n, "name %s is bound to no value", strconv.Quote(n.name))
				}
				return v, nil
			}
		}
		if c, ok := p.math.Const(n.name); ok {
			return tensor.Scalar(c), nil
		}
		return tensor.Value{}, p.fail(n, "undefined name %s", strconv.Quote(n.name))
	case *unaryNode:
		x, err := p.eval(n.x, ns)
		if err != nil {
			return tensor.Value{}, err
		}
		if n.op == "-" {
			return tensor.Map(x, func(v float64) float64 { return -v }), nil
		}
		return x, nil
	case *binaryNode:
		return p.evalBinary(n, ns)
	case *callNode:
		args := make([]tensor.Value, len(n.args))
		for i, a := range n.args {
			v, err := p.eval(a, ns)
			if err != nil {
				return tensor.Value{}, err
			}
			args[i] = v
		}
		out, err := n.fn.Call(args)
		if err != nil {
			return tensor.Value{}, p.fail(n, "%v", err)
		}
		return out, nil
	case *tupleNode:
		return tensor.Value{}, p.fail(n, "a tuple is not allowed here")
	default:
		return tensor.Value{}, p.fail(n, "unsupported construct")
	}
}

var (
	errDivZero = errors.New("division by zero")
	errModZero = errors.New("modulo by zero")
	errZeroPow = errors.New("division by zero: 0 raised to a negative power")
)

func (p *Program) evalBinary(n *binaryNode, ns Namespace) (tensor.Value, error) {
	l, err := p.eval(n.l, ns)
	if err != nil {
		return tensor.Value{}, err
	}
	r, err := p.eval(n.r, ns)
	if err != nil {
		return tensor.Value{}, err
	}

	var opErr error
	f := binaryOp(n.op, &opErr)
	out, err := tensor.Zip(l, r, f)
	if err != nil {
		return tensor.Value{}, p.fail(n, "operator %s: %v", n.op, err)
	}
	if opErr != nil {
		return tensor.Value{}, p.fail(n, "%v", opErr)
	}
	if tensor.HasNaN(out) && !tensor.HasNaN(l) && !tensor.HasNaN(r) {
		return tensor.Value{}, p.fail(n, "operator %s produced NaN", n.op)
	}
	return out, nil
}

func binaryOp(op string, opErr *error) func(x, y float64) float64 {
	b2f := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case "+":
		return func(x, y float64) float64 { return x + y }
	case "-":
		return func(x, y float64) float64 { return x - y }
	case "*":
		return func(x, y float64) float64 { return x * y }
	case "/":
		return func(x, y float64) float64 {
			if y == 0 {
				*opErr = errDivZero
				return 0
			}
			return x / y
		}
	case "//":
		return func(x, y float64) float64 {
			if y == 0 {
				*opErr = errDivZero
				return 0
			}
			return math.Floor(x / y)
		}
	case "%":
		// floored modulo: the result takes the sign of the divisor
		return func(x, y float64) float64 {
			if y == 0 {
				*opErr = errModZero
				return 0
			}
			return x - y*math.Floor(x/y)
		}
	case "**":
		return func(x, y float64) float64 {
			if x == 0 && y < 0 {
				*opErr = errZeroPow
				return 0
			}
			return math.Pow(x, y)
		}
	case "<":
		return func(x, y float64) float64 { return b2f(x < y) }
	case "<=":
		return func(x, y float64) float64 { return b2f(x <= y) }
	case ">":
		return func(x, y float64) float64 { return b2f(x > y) }
	case ">=":
		return func(x, y float64) float64 { return b2f(x >= y) }
	case "==":
		return func(x, y float64) float64 { return b2f(x == y) }
	case "!=":
		return func(x, y float64) float64 { return b2f(x != y) }
	default:
		return func(x, y float64) float64 { return math.NaN() }
	}
}

// #endregion program

// #region walk
func walk(n node, visit func(node)) {
	visit(n)
	switch n := n.(type) {
	case *unaryNode:
		walk(n.x, visit)
	case *binaryNode:
		walk(n.l, visit)
		walk(n.r, visit)
	case *callNode:
		for _, a := range n.args {
			walk(a, visit)
		}
	case *tupleNode:
		for _, e := range n.elems {
			walk(e, visit)
		}
	}
}

// #endregion walk
