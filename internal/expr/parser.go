package expr

import (
	"fmt"
	"strconv"

	"github.com/danielpatrickdp/potential/internal/fault"
)

// #region nodes
type node interface {
	position() int
}

type numNode struct {
	val float64
	pos int
}

type nameNode struct {
	name string
	pos  int
}

type unaryNode struct {
	op  string
	x   node
	pos int
}

type binaryNode struct {
	op   string
	l, r node
	pos  int
}

type callNode struct {
	fn   Func
	args []node
	pos  int
}

// tupleNode only appears where a comma-separated list was written. It is
// legal at the top of a domain expression and nowhere else.
type tupleNode struct {
	elems []node
	pos   int
}

func (n *numNode) position() int    { return n.pos }
func (n *nameNode) position() int   { return n.pos }
func (n *unaryNode) position() int  { return n.pos }
func (n *binaryNode) position() int { return n.pos }
func (n *callNode) position() int   { return n.pos }
func (n *tupleNode) position() int  { return n.pos }

// #endregion nodes

// #region parser
// parser is a recursive-descent parser over the token stream. Grammar, from
// loosest to tightest binding:
//
//	list       = expr { "," expr }
//	expr       = additive [ cmpop additive ]
//	additive   = term { ("+" | "-") term }
//	term       = unary { ("*" | "/" | "//" | "%") unary }
//	unary      = ("+" | "-") unary | power
//	power      = primary [ "**" unary ]
//	primary    = number | name | name "(" [ list ] ")" | "(" list ")"
type parser struct {
	src  string
	toks []token
	i    int
	math *Math
}

func parse(src string, m *Math) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks, math: m}
	if p.peek().kind == tokEOF {
		return nil, fault.Expression(src, 0, "empty expression")
	}
	root, err := p.list()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return root, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return fault.Expression(p.src, pos, fmt.Sprintf(format, args...))
}

func (p *parser) unexpected(t token) error {
	switch t.kind {
	case tokEOF:
		return p.errorf(t.pos, "unexpected end of expression")
	case tokLParen:
		return p.errorf(t.pos, "only named functions can be called")
	default:
		return p.errorf(t.pos, "unexpected %s", strconv.Quote(t.text))
	}
}

func (p *parser) list() (node, error) {
	start := p.peek().pos
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokComma {
		return first, nil
	}
	elems := []node{first}
	for p.peek().kind == tokComma {
		p.next()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &tupleNode{elems: elems, pos: start}, nil
}

func isCmp(op string) bool {
	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
		return true
	}
	return false
}

func (p *parser) expr() (node, error) {
	l, err := p.additive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokOp || !isCmp(t.text) {
		return l, nil
	}
	p.next()
	r, err := p.additive()
	if err != nil {
		return nil, err
	}
	if n := p.peek(); n.kind == tokOp && isCmp(n.text) {
		return nil, p.errorf(n.pos, "chained comparisons are not supported")
	}
	return &binaryNode{op: t.text, l: l, r: r, pos: t.pos}, nil
}

func (p *parser) additive() (node, error) {
	l, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return l, nil
		}
		p.next()
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		l = &binaryNode{op: t.text, l: l, r: r, pos: t.pos}
	}
}

func (p *parser) term() (node, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return l, nil
		}
		switch t.text {
		case "*", "/", "//", "%":
		default:
			return l, nil
		}
		p.next()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = &binaryNode{op: t.text, l: l, r: r, pos: t.pos}
	}
}

func (p *parser) unary() (node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: t.text, x: x, pos: t.pos}, nil
	}
	return p.power()
}

func (p *parser) power() (node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokLParen {
		return nil, p.unexpected(t)
	}
	if t.kind != tokOp || t.text != "**" {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: "**", l: base, r: exp, pos: t.pos}, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return &numNode{val: t.num, pos: t.pos}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		return &nameNode{name: t.text, pos: t.pos}, nil
	case tokLParen:
		inner, err := p.list()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			if c.kind == tokEOF {
				return nil, p.errorf(t.pos, "unclosed parenthesis")
			}
			return nil, p.unexpected(c)
		}
		return inner, nil
	default:
		return nil, p.unexpected(t)
	}
}

func (p *parser) call(name token) (node, error) {
	fn, ok := p.math.Func(name.text)
	if !ok {
		return nil, p.errorf(name.pos, "call to unknown function %s", strconv.Quote(name.text))
	}
	p.next() // (
	var args []node
	if p.peek().kind != tokRParen {
		for {
			a, err := p.expr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		if c.kind == tokEOF {
			return nil, p.errorf(name.pos, "unclosed call to %s", name.text)
		}
		return nil, p.unexpected(c)
	}
	if len(args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(args) > fn.MaxArgs) {
		return nil, p.errorf(name.pos, "%s takes %s arguments, got %d", fn.Name, fn.arity(), len(args))
	}
	return &callNode{fn: fn, args: args, pos: name.pos}, nil
}

// #endregion parser
