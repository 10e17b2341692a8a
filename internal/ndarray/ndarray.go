// Package ndarray provides the dense row-major float64 arrays exchanged with
// the projection engine.
package ndarray

import (
	"fmt"
	"slices"
)

// Span is a half-open index range [Lo, Hi) along one axis.
type Span struct {
	Lo, Hi int
}

// All returns the span covering an axis of length n.
func All(n int) Span { return Span{0, n} }

// One returns the span covering the single index i.
func One(i int) Span { return Span{i, i + 1} }

// Dense is an N-dimensional array stored in row-major order.
type Dense struct {
	shape   []int
	strides []int
	data    []float64
}

// New allocates a zero-filled array with the given shape.
func New(shape ...int) *Dense {
	n := 1
	for _, s := range shape {
		if s < 0 {
			panic(fmt.Sprintf("ndarray: negative dimension %d", s))
		}
		n *= s
	}
	d := &Dense{shape: slices.Clone(shape), data: make([]float64, n)}
	d.strides = make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		d.strides[i] = stride
		stride *= shape[i]
	}
	return d
}

// Shape returns a copy of the array's shape.
func (d *Dense) Shape() []int { return slices.Clone(d.shape) }

// Dims returns the number of axes.
func (d *Dense) Dims() int { return len(d.shape) }

// Len returns the number of elements.
func (d *Dense) Len() int { return len(d.data) }

// Data exposes the backing slice in row-major order.
func (d *Dense) Data() []float64 { return d.data }

func (d *Dense) offset(idx []int) int {
	if len(idx) != len(d.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for %d-d array", len(idx), len(d.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= d.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range [0,%d) on axis %d", v, d.shape[i], i))
		}
		off += v * d.strides[i]
	}
	return off
}

// At returns the element at idx.
func (d *Dense) At(idx ...int) float64 { return d.data[d.offset(idx)] }

// Set stores v at idx.
func (d *Dense) Set(v float64, idx ...int) { d.data[d.offset(idx)] = v }

// Fill sets every element to v.
func (d *Dense) Fill(v float64) {
	for i := range d.data {
		d.data[i] = v
	}
}

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	c := New(d.shape...)
	copy(c.data, d.data)
	return c
}

// SameShape reports whether o has exactly d's shape.
func (d *Dense) SameShape(o *Dense) bool {
	return o != nil && slices.Equal(d.shape, o.shape)
}

// CheckShape returns an error unless d has the given shape.
func (d *Dense) CheckShape(shape ...int) error {
	if d == nil {
		return fmt.Errorf("array is nil, want shape %v", shape)
	}
	if !slices.Equal(d.shape, shape) {
		return fmt.Errorf("shape %v, want %v", d.shape, shape)
	}
	return nil
}

// CopyFrom overwrites d with the contents of src, which must have the same
// shape.
func (d *Dense) CopyFrom(src *Dense) error {
	if !d.SameShape(src) {
		return fmt.Errorf("copy shape %v into %v", src.Shape(), d.shape)
	}
	copy(d.data, src.data)
	return nil
}

func (d *Dense) spans(spans []Span) ([]Span, error) {
	if len(spans) > len(d.shape) {
		return nil, fmt.Errorf("%d spans for %d-d array", len(spans), len(d.shape))
	}
	full := make([]Span, len(d.shape))
	for i := range d.shape {
		if i < len(spans) {
			s := spans[i]
			if s.Lo < 0 || s.Hi > d.shape[i] || s.Lo > s.Hi {
				return nil, fmt.Errorf("span [%d,%d) out of range [0,%d) on axis %d", s.Lo, s.Hi, d.shape[i], i)
			}
			full[i] = s
		} else {
			full[i] = All(d.shape[i])
		}
	}
	return full, nil
}

// walk calls fn with the flat offset of every element inside spans.
func (d *Dense) walk(spans []Span, fn func(off int)) {
	var rec func(axis, base int)
	rec = func(axis, base int) {
		if axis == len(spans) {
			fn(base)
			return
		}
		for i := spans[axis].Lo; i < spans[axis].Hi; i++ {
			rec(axis+1, base+i*d.strides[axis])
		}
	}
	rec(0, 0)
}

// SumRange sums the elements inside the given spans. Axes beyond the spans
// supplied are summed in full.
func (d *Dense) SumRange(spans ...Span) (float64, error) {
	full, err := d.spans(spans)
	if err != nil {
		return 0, err
	}
	var sum float64
	d.walk(full, func(off int) { sum += d.data[off] })
	return sum, nil
}

// FillRange assigns v to every element inside the given spans. Axes beyond
// the spans supplied are filled in full.
func (d *Dense) FillRange(v float64, spans ...Span) error {
	full, err := d.spans(spans)
	if err != nil {
		return err
	}
	d.walk(full, func(off int) { d.data[off] = v })
	return nil
}

// Row returns the trailing-axis vector addressed by the leading indices. The
// returned slice aliases d.
func (d *Dense) Row(lead ...int) []float64 {
	if len(lead) != len(d.shape)-1 {
		panic(fmt.Sprintf("ndarray: row needs %d leading indices, got %d", len(d.shape)-1, len(lead)))
	}
	idx := append(slices.Clone(lead), 0)
	off := d.offset(idx)
	return d.data[off : off+d.shape[len(d.shape)-1]]
}

// Each calls fn with every multi-index and its value in row-major order.
// The index slice is reused between calls.
func (d *Dense) Each(fn func(idx []int, v float64)) {
	idx := make([]int, len(d.shape))
	for off, v := range d.data {
		rem := off
		for i := range d.shape {
			idx[i] = rem / d.strides[i]
			rem %= d.strides[i]
		}
		fn(idx, v)
	}
}
