// Package fault defines the error kinds raised while building and
// evaluating potentials.
//
// Every error is a *Error carrying a Kind plus whatever context locates the
// faulty configuration entry: the parameter name, the region index, the
// expression text and the offending input value. Errors compare by kind,
// so callers can write errors.Is(err, fault.ErrDomain).
package fault

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
)

// #region kind
// Kind classifies an error.
type Kind string

const (
	KindExpression Kind = "EXPRESSION"
	KindParameter  Kind = "PARAMETER"
	KindRegion     Kind = "REGION"
	KindDomain     Kind = "DOMAIN"
	KindConfig     Kind = "CONFIG"
)

// GRPCCode maps the kind to a gRPC status code.
func (k Kind) GRPCCode() codes.Code {
	switch k {
	case KindExpression, KindParameter, KindRegion, KindConfig:
		return codes.InvalidArgument
	case KindDomain:
		return codes.OutOfRange
	default:
		return codes.Unknown
	}
}

// #endregion kind

// #region error
// NoRegion marks an error not tied to a region.
const NoRegion = -1

// Error is the domain error type.
type Error struct {
	Kind    Kind
	Message string
	Expr    string // offending expression source, if any
	Pos     int    // byte offset into Expr, -1 if unknown
	Param   string // parameter name, if any
	Region  int    // region index, NoRegion if none
	Value   float64
	Element int // array element index for domain errors, -1 for scalars
	Cause   error
}

// Sentinels for errors.Is.
var (
	ErrExpression = newError(KindExpression, "invalid expression")
	ErrParameter  = newError(KindParameter, "invalid parameter")
	ErrRegion     = newError(KindRegion, "invalid region")
	ErrDomain     = newError(KindDomain, "point outside every region")
	ErrConfig     = newError(KindConfig, "invalid configuration")
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	b.WriteString(" error")
	if e.Param != "" {
		fmt.Fprintf(&b, " in parameter %q", e.Param)
	}
	if e.Region != NoRegion {
		fmt.Fprintf(&b, " in region %d", e.Region)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Expr != "" {
		if e.Pos >= 0 {
			fmt.Fprintf(&b, " (expression %q at offset %d)", e.Expr, e.Pos)
		} else {
			fmt.Fprintf(&b, " (expression %q)", e.Expr)
		}
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// #endregion error

// #region constructors
func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Pos: -1, Region: NoRegion, Element: -1}
}

// Expression reports a malformed, disallowed or failing expression.
func Expression(src string, pos int, msg string) *Error {
	e := newError(KindExpression, msg)
	e.Expr = src
	e.Pos = pos
	return e
}

// Parameter reports a problem with the named parameter.
func Parameter(name, msg string, cause error) *Error {
	e := newError(KindParameter, msg)
	e.Param = name
	e.Cause = cause
	return e
}

// Region reports a malformed region.
func Region(index int, msg string, cause error) *Error {
	e := newError(KindRegion, msg)
	e.Region = index
	e.Cause = cause
	return e
}

// Domain reports an evaluation point not covered by any region.
// element is the array position of x, or -1 for a scalar input.
func Domain(x float64, element int, msg string) *Error {
	e := newError(KindDomain, msg)
	e.Value = x
	e.Element = element
	return e
}

// Config reports a structural problem in the supplied configuration.
func Config(msg string, cause error) *Error {
	e := newError(KindConfig, msg)
	e.Cause = cause
	return e
}

// InRegion returns a copy of err attributed to the given region index.
// Errors that are not *Error are returned unchanged.
func InRegion(err error, index int) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	c := *e
	c.Region = index
	return &c
}

// #endregion constructors
