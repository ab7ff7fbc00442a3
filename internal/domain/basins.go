package domain

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// BasinSet is an ordered collection of named 2-D binary basin masks sharing
// a pair of horizontal dimensions. The region names form the discrete
// coordinate of per-basin reduction results, in this order.
type BasinSet struct {
	Regions []string
	Dims    [2]string
	masks   *sparse.DenseArray // (region, dims[0], dims[1])
}

// NewBasinSet builds a basin set from a (region, h0, h1) mask array.
// Every mask value must be exactly 0 or 1.
func NewBasinSet(regions []string, dims [2]string, masks *sparse.DenseArray) (*BasinSet, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: no region coordinate values", ErrMalformedBasinSet)
	}
	if masks == nil || len(masks.Shape) != 3 {
		return nil, fmt.Errorf("%w: masks must be a 3-D (region, %s, %s) array", ErrMalformedBasinSet, dims[0], dims[1])
	}
	if masks.Shape[0] != len(regions) {
		return nil, fmt.Errorf("%w: %d masks for %d regions", ErrMalformedBasinSet, masks.Shape[0], len(regions))
	}
	for i, v := range masks.Elements {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: mask value %v at flat index %d is not 0 or 1", ErrMalformedBasinSet, v, i)
		}
	}
	return &BasinSet{Regions: regions, Dims: dims, masks: masks}, nil
}

// Len returns the number of basins.
func (b *BasinSet) Len() int {
	return len(b.Regions)
}

// Mask returns the 2-D mask for basin i as a fresh array.
func (b *BasinSet) Mask(i int) *sparse.DenseArray {
	n0, n1 := b.masks.Shape[1], b.masks.Shape[2]
	out := sparse.ZerosDense(n0, n1)
	for j := 0; j < n0; j++ {
		for k := 0; k < n1; k++ {
			out.Set(b.masks.Get(i, j, k), j, k)
		}
	}
	return out
}

// MaskShape returns the horizontal shape shared by all masks.
func (b *BasinSet) MaskShape() (int, int) {
	return b.masks.Shape[1], b.masks.Shape[2]
}
