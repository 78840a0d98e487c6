package tensor

import (
	"errors"
	"fmt"
	"math"
)

// #region value
// Value is either a scalar or a one-dimensional array of float64.
// Values are treated as immutable: every operation returns a new Value.
type Value struct {
	data  []float64
	array bool
}

// Scalar wraps a single number.
func Scalar(f float64) Value {
	return Value{data: []float64{f}}
}

// Array wraps a slice of numbers. The slice is copied.
func Array(xs []float64) Value {
	data := make([]float64, len(xs))
	copy(data, xs)
	return Value{data: data, array: true}
}

// IsArray reports whether v is array-valued.
func (v Value) IsArray() bool { return v.array }

// IsZero reports whether v is the zero Value, which holds neither a scalar
// nor an array.
func (v Value) IsZero() bool { return !v.array && len(v.data) == 0 }

// Len returns the number of elements (1 for a scalar).
func (v Value) Len() int { return len(v.data) }

// Float returns the scalar value. Arrays report ok=false.
func (v Value) Float() (float64, bool) {
	if v.array || len(v.data) != 1 {
		return 0, false
	}
	return v.data[0], true
}

// At returns element i. For a scalar every index yields the scalar; the
// zero Value yields NaN.
func (v Value) At(i int) float64 {
	if !v.array {
		if len(v.data) == 0 {
			return math.NaN()
		}
		return v.data[0]
	}
	return v.data[i]
}

// Floats returns a copy of the elements.
func (v Value) Floats() []float64 {
	out := make([]float64, len(v.data))
	copy(out, v.data)
	return out
}

// String formats scalars as numbers and arrays as bracketed lists.
func (v Value) String() string {
	if !v.array {
		if len(v.data) == 0 {
			return "<nil>"
		}
		return fmt.Sprintf("%g", v.data[0])
	}
	return fmt.Sprintf("%g", v.data)
}

// #endregion value

// #region elementwise
// Map applies f to every element.
func Map(v Value, f func(float64) float64) Value {
	out := make([]float64, len(v.data))
	for i, x := range v.data {
		out[i] = f(x)
	}
	return Value{data: out, array: v.array}
}

// Zip applies f elementwise to a and b, broadcasting scalars.
// Two arrays must have the same length.
func Zip(a, b Value, f func(x, y float64) float64) (Value, error) {
	n, array, err := broadcast(a, b)
	if err != nil {
		return Value{}, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = f(a.At(i), b.At(i))
	}
	return Value{data: out, array: array}, nil
}

// ZipN applies f elementwise across all args, broadcasting scalars.
func ZipN(args []Value, f func(xs []float64) float64) (Value, error) {
	n, array := 1, false
	for _, a := range args {
		if a.IsZero() {
			return Value{}, errZero
		}
		if !a.array {
			continue
		}
		if array && a.Len() != n {
			return Value{}, fmt.Errorf("length mismatch: %d vs %d", n, a.Len())
		}
		n, array = a.Len(), true
	}
	out := make([]float64, n)
	buf := make([]float64, len(args))
	for i := range out {
		for j, a := range args {
			buf[j] = a.At(i)
		}
		out[i] = f(buf)
	}
	return Value{data: out, array: array}, nil
}

// Broadcast returns v shaped like target: a scalar v is repeated to the
// length of an array target; otherwise v must already match.
func Broadcast(v, target Value) (Value, error) {
	if v.IsZero() || target.IsZero() {
		return Value{}, errZero
	}
	if !target.array {
		if v.array {
			return Value{}, fmt.Errorf("array of length %d where a scalar is expected", v.Len())
		}
		return v, nil
	}
	if !v.array {
		out := make([]float64, target.Len())
		for i := range out {
			out[i] = v.data[0]
		}
		return Value{data: out, array: true}, nil
	}
	if v.Len() != target.Len() {
		return Value{}, fmt.Errorf("length mismatch: %d vs %d", v.Len(), target.Len())
	}
	return v, nil
}

var errZero = errors.New("operand holds no value")

func broadcast(a, b Value) (int, bool, error) {
	switch {
	case a.IsZero() || b.IsZero():
		return 0, false, errZero
	case a.array && b.array:
		if a.Len() != b.Len() {
			return 0, false, fmt.Errorf("length mismatch: %d vs %d", a.Len(), b.Len())
		}
		return a.Len(), true, nil
	case a.array:
		return a.Len(), true, nil
	case b.array:
		return b.Len(), true, nil
	default:
		return 1, false, nil
	}
}

// HasNaN reports whether any element is NaN.
func HasNaN(v Value) bool {
	for _, x := range v.data {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// #endregion elementwise

// #region mask
// Mask is an elementwise boolean selection over a Value.
type Mask []bool

// MaskOf evaluates pred on every element of v.
func MaskOf(v Value, pred func(float64) bool) Mask {
	m := make(Mask, len(v.data))
	for i, x := range v.data {
		m[i] = pred(x)
	}
	return m
}

// Count returns the number of selected elements.
func (m Mask) Count() int {
	n := 0
	for _, b := range m {
		if b {
			n++
		}
	}
	return n
}

// Any reports whether at least one element is selected.
func (m Mask) Any() bool {
	for _, b := range m {
		if b {
			return true
		}
	}
	return false
}

// AndNot returns m with every element also selected in other cleared.
func (m Mask) AndNot(other Mask) Mask {
	out := make(Mask, len(m))
	for i := range m {
		out[i] = m[i] && !other[i]
	}
	return out
}

// Or returns the elementwise union of m and other.
func (m Mask) Or(other Mask) Mask {
	out := make(Mask, len(m))
	for i := range m {
		out[i] = m[i] || other[i]
	}
	return out
}

// Not returns the complement of m.
func (m Mask) Not() Mask {
	out := make(Mask, len(m))
	for i := range m {
		out[i] = !m[i]
	}
	return out
}

// First returns the index of the first selected element, or -1.
func (m Mask) First() int {
	for i, b := range m {
		if b {
			return i
		}
	}
	return -1
}

// Select gathers the elements of v chosen by m into a new array.
// A scalar v with a one-element mask keeps its scalar shape.
func Select(v Value, m Mask) Value {
	if !v.array {
		return v
	}
	out := make([]float64, 0, m.Count())
	for i, b := range m {
		if b {
			out = append(out, v.data[i])
		}
	}
	return Value{data: out, array: true}
}

// Scatter writes the elements of src, in order, into the positions of dst
// selected by m. src is broadcast when scalar. dst is modified in place and
// must be owned by the caller.
func Scatter(dst []float64, m Mask, src Value) error {
	if src.IsZero() {
		return errZero
	}
	want := m.Count()
	if src.array && src.Len() != want {
		return fmt.Errorf("scatter: %d values for %d positions", src.Len(), want)
	}
	j := 0
	for i, b := range m {
		if !b {
			continue
		}
		dst[i] = src.At(j)
		j++
	}
	return nil
}

// #endregion mask

// #region concat
// Concat joins values end to end into a single array.
func Concat(vs ...Value) Value {
	n := 0
	for _, v := range vs {
		n += v.Len()
	}
	out := make([]float64, 0, n)
	for _, v := range vs {
		out = append(out, v.data...)
	}
	return Value{data: out, array: true}
}

// Linspace returns n evenly spaced samples over [start, stop].
func Linspace(start, stop float64, n int) Value {
	if n <= 0 {
		return Value{data: []float64{}, array: true}
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return Value{data: out, array: true}
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return Value{data: out, array: true}
}

// #endregion concat
