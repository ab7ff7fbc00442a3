// Package domain implements horizontal statistical reductions of gridded
// ocean-model fields: labeled arrays, basin mask sets, and the weighted
// mean-difference and RMSE reducers.
package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// Conventional dimension names for MOM6 output.
const (
	DimTime = "time"
	DimZl   = "z_l"
	DimYh   = "yh"
	DimXh   = "xh"

	// DimRegion is the discrete basin-identifier axis on per-basin results.
	DimRegion = "region"
)

// Field is a labeled multi-dimensional float64 array. Dimension names index
// into Data.Shape positionally. Missing values are NaN.
type Field struct {
	Name   string
	Dims   []string
	Coords map[string][]float64 // numeric coordinates, keyed by dim name
	Labels map[string][]string  // string coordinates for discrete axes (e.g. region)
	Data   *sparse.DenseArray
}

// NewField allocates a zero-filled field with the given dimension names and shape.
func NewField(name string, dims []string, shape ...int) (*Field, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("field %s: %d dimension names for %d axes", name, len(dims), len(shape))
	}
	return &Field{
		Name:   name,
		Dims:   dims,
		Coords: make(map[string][]float64),
		Labels: make(map[string][]string),
		Data:   sparse.ZerosDense(shape...),
	}, nil
}

// HasDim reports whether the field carries a dimension with the given name.
func (f *Field) HasDim(name string) bool {
	return f.DimIndex(name) >= 0
}

// DimIndex returns the axis position of the named dimension, or -1.
func (f *Field) DimIndex(name string) int {
	for i, d := range f.Dims {
		if d == name {
			return i
		}
	}
	return -1
}

// DimLen returns the length of the named dimension, or 0 if absent.
func (f *Field) DimLen(name string) int {
	i := f.DimIndex(name)
	if i < 0 {
		return 0
	}
	return f.Data.Shape[i]
}

// NDims returns the number of axes.
func (f *Field) NDims() int {
	return len(f.Dims)
}

// SetCoord attaches a numeric coordinate to a dimension. The length must
// match the dimension length.
func (f *Field) SetCoord(dim string, values []float64) error {
	if !f.HasDim(dim) {
		return fmt.Errorf("field %s: %w: %s", f.Name, ErrMissingDim, dim)
	}
	if len(values) != f.DimLen(dim) {
		return fmt.Errorf("field %s: coordinate %s has %d values for dimension of length %d",
			f.Name, dim, len(values), f.DimLen(dim))
	}
	f.Coords[dim] = values
	return nil
}

// RenameDim renames a dimension in place, moving any attached coordinate.
// Used to map observation naming conventions onto the model's.
func (f *Field) RenameDim(from, to string) error {
	i := f.DimIndex(from)
	if i < 0 {
		return fmt.Errorf("field %s: %w: %s", f.Name, ErrMissingDim, from)
	}
	f.Dims[i] = to
	if c, ok := f.Coords[from]; ok {
		delete(f.Coords, from)
		f.Coords[to] = c
	}
	if l, ok := f.Labels[from]; ok {
		delete(f.Labels, from)
		f.Labels[to] = l
	}
	return nil
}

// copyCoord returns a fresh copy of a coordinate slice, or nil.
func copyCoord(values []float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// Sub returns a new field holding f - g elementwise. The subtrahend must
// either match f's dimensions exactly or match all but f's leading dimension,
// in which case it is broadcast across it (a time-invariant observation
// subtracted from every time step). The result carries f's coordinates.
// This is the residual (model minus observation) construction.
func (f *Field) Sub(g *Field) (*Field, error) {
	fDims := f.Dims
	broadcast := false
	switch {
	case len(g.Dims) == len(f.Dims):
	case len(g.Dims) == len(f.Dims)-1:
		fDims = f.Dims[1:]
		broadcast = true
	default:
		return nil, fmt.Errorf("residual %s - %s: rank mismatch (%d vs %d)", f.Name, g.Name, len(f.Dims), len(g.Dims))
	}
	offset := len(f.Dims) - len(fDims)
	for i, d := range fDims {
		if g.Dims[i] != d {
			return nil, fmt.Errorf("residual %s - %s: %w: %s", f.Name, g.Name, ErrMissingDim, d)
		}
		if f.Data.Shape[i+offset] != g.Data.Shape[i] {
			return nil, fmt.Errorf("residual %s - %s: dimension %s has length %d vs %d",
				f.Name, g.Name, d, f.Data.Shape[i+offset], g.Data.Shape[i])
		}
	}
	out, err := NewField(f.Name+"_residual", append([]string{}, f.Dims...), f.Data.Shape...)
	if err != nil {
		return nil, err
	}
	for d, c := range f.Coords {
		out.Coords[d] = copyCoord(c)
	}
	if !broadcast {
		for i, v := range f.Data.Elements {
			out.Data.Elements[i] = v - g.Data.Elements[i]
		}
		return out, nil
	}
	stride := len(g.Data.Elements)
	for i, v := range f.Data.Elements {
		out.Data.Elements[i] = v - g.Data.Elements[i%stride]
	}
	return out, nil
}

// Mean returns the NaN-skipping arithmetic mean of all elements, or NaN if
// every element is missing.
func (f *Field) Mean() float64 {
	var sum float64
	var n int
	for _, v := range f.Data.Elements {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
