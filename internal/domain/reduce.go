package domain

import (
	"fmt"
	"log"
	"math"

	"github.com/ctessum/sparse"
)

// ReduceMode identifies which reduction branch applies. The mode is resolved
// once at the call boundary, with all preconditions validated up front.
type ReduceMode int

const (
	// ModeUnweighted averages the field alone over the horizontal dims.
	ModeUnweighted ReduceMode = iota
	// ModeWeightedGlobal applies a weighting field over the whole domain.
	ModeWeightedGlobal
	// ModeWeightedPerBasin applies the weighting field separately per basin.
	ModeWeightedPerBasin
)

// ReduceOptions configures a horizontal reduction. Weights and Basins are
// optional; Basins requires Weights. Dims defaults to (yh, xh).
type ReduceOptions struct {
	Dims    [2]string
	Weights *Field
	Basins  *BasinSet
	Debug   bool
}

func (o ReduceOptions) withDefaults() ReduceOptions {
	if o.Dims[0] == "" && o.Dims[1] == "" {
		o.Dims = [2]string{DimYh, DimXh}
	}
	return o
}

// ResolveMode validates the field/weights/basins combination and returns the
// reduction mode. All contract violations surface here, before any
// computation starts.
func ResolveMode(field *Field, opts ReduceOptions) (ReduceMode, error) {
	dims := opts.Dims
	for _, d := range dims {
		if !field.HasDim(d) {
			return 0, fmt.Errorf("field %s: %w: %s", field.Name, ErrMissingDim, d)
		}
	}

	if opts.Basins != nil && opts.Weights == nil {
		return 0, ErrBasinsWithoutWeights
	}
	if opts.Weights == nil {
		return ModeUnweighted, nil
	}

	w := opts.Weights
	if w.Data == nil || len(w.Dims) == 0 {
		return 0, ErrWeightsType
	}

	if opts.Basins == nil {
		for _, d := range dims {
			if !w.HasDim(d) {
				return 0, fmt.Errorf("weights %s: %w: %s", w.Name, ErrMissingDim, d)
			}
		}
		// Every weight dimension must exist on the field with matching length
		// so the weights broadcast against it.
		for i, d := range w.Dims {
			a := field.DimIndex(d)
			if a < 0 {
				return 0, fmt.Errorf("weights %s: dimension %s: %w on field %s", w.Name, d, ErrMissingDim, field.Name)
			}
			if field.Data.Shape[a] != w.Data.Shape[i] {
				return 0, fmt.Errorf("weights %s: dimension %s has length %d, field has %d",
					w.Name, d, w.Data.Shape[i], field.Data.Shape[a])
			}
		}
		return ModeWeightedGlobal, nil
	}

	// Per-basin mode.
	if len(opts.Basins.Regions) == 0 {
		return 0, fmt.Errorf("%w: no region coordinate values", ErrMalformedBasinSet)
	}
	if len(w.Dims) != 3 {
		return 0, fmt.Errorf("%w: got %d-D weights %s", ErrWeightsShape, len(w.Dims), w.Name)
	}
	if len(field.Dims) != 4 || field.Dims[2] != dims[0] || field.Dims[3] != dims[1] {
		return 0, fmt.Errorf("field %s: basin reductions require a (time, layer, %s, %s) field, got %v",
			field.Name, dims[0], dims[1], field.Dims)
	}
	zName := field.Dims[1]
	if w.Dims[0] != zName || w.Dims[1] != dims[0] || w.Dims[2] != dims[1] {
		return 0, fmt.Errorf("%w: weights %s dims %v, want (%s, %s, %s)",
			ErrWeightsShape, w.Name, w.Dims, zName, dims[0], dims[1])
	}
	for i := 0; i < 3; i++ {
		if w.Data.Shape[i] != field.Data.Shape[i+1] {
			return 0, fmt.Errorf("weights %s: dimension %s has length %d, field has %d",
				w.Name, w.Dims[i], w.Data.Shape[i], field.Data.Shape[i+1])
		}
	}
	if opts.Basins.Dims != dims {
		return 0, fmt.Errorf("%w: masks are over %v, reduction is over %v", ErrMalformedBasinSet, opts.Basins.Dims, dims)
	}
	m0, m1 := opts.Basins.MaskShape()
	if m0 != field.Data.Shape[2] || m1 != field.Data.Shape[3] {
		return 0, fmt.Errorf("%w: mask shape (%d, %d) does not match field (%d, %d)",
			ErrMalformedBasinSet, m0, m1, field.Data.Shape[2], field.Data.Shape[3])
	}
	return ModeWeightedPerBasin, nil
}

// HorizontalMeanRMSE collapses the two horizontal dimensions of a residual
// field to its root-mean-square error, optionally weighted and optionally
// split by basin. The result is indexed by the remaining dimensions, with a
// leading region axis in basin mode. A zero total weight yields NaN for that
// cell, not an error.
func HorizontalMeanRMSE(field *Field, opts ReduceOptions) (*Field, error) {
	return horizontalReduce(field, opts, true)
}

// HorizontalMeanDiff collapses the two horizontal dimensions of a residual
// field to its weighted mean, with the same optionality as
// HorizontalMeanRMSE.
func HorizontalMeanDiff(field *Field, opts ReduceOptions) (*Field, error) {
	return horizontalReduce(field, opts, false)
}

func horizontalReduce(field *Field, opts ReduceOptions, square bool) (*Field, error) {
	opts = opts.withDefaults()
	mode, err := ResolveMode(field, opts)
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeUnweighted:
		return reduceUnweighted(field, opts.Dims, square)
	case ModeWeightedGlobal:
		return reduceWeighted(field, opts.Weights, opts.Dims, square, opts.Debug)
	default:
		return reducePerBasin(field, opts, square)
	}
}

// collapsedField allocates the output field for a reduction over dims,
// carrying over the remaining dimensions and their coordinates.
func collapsedField(field *Field, dims [2]string) (*Field, []int, int, int) {
	ax0 := field.DimIndex(dims[0])
	ax1 := field.DimIndex(dims[1])
	outDims := make([]string, 0, len(field.Dims)-2)
	outShape := make([]int, 0, len(field.Dims)-2)
	for a, d := range field.Dims {
		if a == ax0 || a == ax1 {
			continue
		}
		outDims = append(outDims, d)
		outShape = append(outShape, field.Data.Shape[a])
	}
	out, _ := NewField(field.Name, outDims, outShape...)
	for _, d := range outDims {
		if c, ok := field.Coords[d]; ok {
			out.Coords[d] = copyCoord(c)
		}
	}
	return out, outShape, ax0, ax1
}

// decodeIndex writes the row-major decomposition of flat into idx for the
// non-collapsed axes of the field.
func decodeIndex(flat int, outShape []int, idx []int, ax0, ax1 int) {
	rem := flat
	outIdx := make([]int, len(outShape))
	for i := len(outShape) - 1; i >= 0; i-- {
		outIdx[i] = rem % outShape[i]
		rem /= outShape[i]
	}
	oi := 0
	for a := range idx {
		if a == ax0 || a == ax1 {
			continue
		}
		idx[a] = outIdx[oi]
		oi++
	}
}

func reduceUnweighted(field *Field, dims [2]string, square bool) (*Field, error) {
	out, outShape, ax0, ax1 := collapsedField(field, dims)
	n0 := field.Data.Shape[ax0]
	n1 := field.Data.Shape[ax1]
	idx := make([]int, len(field.Dims))
	for flat := range out.Data.Elements {
		decodeIndex(flat, outShape, idx, ax0, ax1)
		var sum float64
		var n int
		for i0 := 0; i0 < n0; i0++ {
			idx[ax0] = i0
			for i1 := 0; i1 < n1; i1++ {
				idx[ax1] = i1
				v := field.Data.Get(idx...)
				if math.IsNaN(v) {
					continue
				}
				if square {
					sum += v * v
				} else {
					sum += v
				}
				n++
			}
		}
		res := math.NaN()
		if n > 0 {
			res = sum / float64(n)
			if square {
				res = math.Sqrt(res)
			}
		}
		out.Data.Elements[flat] = res
	}
	return out, nil
}

func reduceWeighted(field, weights *Field, dims [2]string, square, debug bool) (*Field, error) {
	out, outShape, ax0, ax1 := collapsedField(field, dims)
	n0 := field.Data.Shape[ax0]
	n1 := field.Data.Shape[ax1]

	// Map each weight axis onto the corresponding field axis.
	wAxes := make([]int, len(weights.Dims))
	for wi, d := range weights.Dims {
		wAxes[wi] = field.DimIndex(d)
	}

	idx := make([]int, len(field.Dims))
	wIdx := make([]int, len(weights.Dims))
	totals := make([]float64, len(out.Data.Elements))
	for flat := range out.Data.Elements {
		decodeIndex(flat, outShape, idx, ax0, ax1)
		var num, wsum float64
		for i0 := 0; i0 < n0; i0++ {
			idx[ax0] = i0
			for i1 := 0; i1 < n1; i1++ {
				idx[ax1] = i1
				for wi, a := range wAxes {
					wIdx[wi] = idx[a]
				}
				w := weights.Data.Get(wIdx...)
				if math.IsNaN(w) {
					// Missing weight: the cell is excluded from the
					// normalization, not treated as zero.
					continue
				}
				wsum += w
				v := field.Data.Get(idx...)
				if math.IsNaN(v) {
					continue
				}
				if square {
					num += v * v * w
				} else {
					num += v * w
				}
			}
		}
		totals[flat] = wsum
		res := math.NaN()
		if wsum != 0 && !math.IsNaN(wsum) {
			res = num / wsum
			if square {
				res = math.Sqrt(res)
			}
		}
		out.Data.Elements[flat] = res
	}
	if debug {
		log.Printf("total weights: %v", totals)
		log.Printf("reduced %s: %v", field.Name, out.Data.Elements)
	}
	return out, nil
}

// ExpandRegion replicates a 2-D basin mask identically across the vertical
// layers of field, producing a (layer, h0, h1) mask labeled with the field's
// vertical coordinate and the weights' horizontal coordinates. Pure broadcast
// replication; the caller has already validated dimension names.
func ExpandRegion(mask *sparse.DenseArray, field, weights *Field, dims [2]string) *Field {
	zName := field.Dims[1]
	nz := field.Data.Shape[1]
	n0 := mask.Shape[0]
	n1 := mask.Shape[1]
	out, _ := NewField("region3d", []string{zName, dims[0], dims[1]}, nz, n0, n1)
	if c, ok := field.Coords[zName]; ok {
		out.Coords[zName] = copyCoord(c)
	}
	for _, d := range dims {
		if c, ok := weights.Coords[d]; ok {
			out.Coords[d] = copyCoord(c)
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < n0; j++ {
			for i := 0; i < n1; i++ {
				out.Data.Set(mask.Get(j, i), k, j, i)
			}
		}
	}
	return out
}

// maskWeights restricts weights to cells where the expanded region mask is
// one. Cells outside the basin become NaN so they drop out of both the
// numerator and the total-weight normalization.
func maskWeights(weights, region3d *Field) *Field {
	out, _ := NewField(weights.Name, append([]string{}, weights.Dims...), weights.Data.Shape...)
	for d, c := range weights.Coords {
		out.Coords[d] = copyCoord(c)
	}
	for i, w := range weights.Data.Elements {
		if region3d.Data.Elements[i] == 1 {
			out.Data.Elements[i] = w
		} else {
			out.Data.Elements[i] = math.NaN()
		}
	}
	return out
}

// reducePerBasin folds the weighted kernel over the ordered basin sequence,
// assembling a (region, time, layer) result. Each basin's reduction is
// computed independently on a masked copy of the weights; no partial writes
// into the output happen before all basins succeed.
func reducePerBasin(field *Field, opts ReduceOptions, square bool) (*Field, error) {
	basins := opts.Basins
	dims := opts.Dims
	zName := field.Dims[1]

	perBasin := make([]*Field, 0, basins.Len())
	for bi, region := range basins.Regions {
		if opts.Debug {
			log.Printf("region: %s", region)
		}
		region3d := ExpandRegion(basins.Mask(bi), field, opts.Weights, dims)
		masked := maskWeights(opts.Weights, region3d)
		r, err := reduceWeighted(field, masked, dims, square, opts.Debug)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region, err)
		}
		perBasin = append(perBasin, r)
	}

	nt := field.Data.Shape[0]
	nz := field.Data.Shape[1]
	out, err := NewField(field.Name, []string{DimRegion, field.Dims[0], zName}, basins.Len(), nt, nz)
	if err != nil {
		return nil, err
	}
	out.Labels[DimRegion] = append([]string{}, basins.Regions...)
	if c, ok := field.Coords[field.Dims[0]]; ok {
		out.Coords[field.Dims[0]] = copyCoord(c)
	}
	if c, ok := field.Coords[zName]; ok {
		out.Coords[zName] = copyCoord(c)
	}
	for bi, r := range perBasin {
		for t := 0; t < nt; t++ {
			for k := 0; k < nz; k++ {
				out.Data.Set(r.Data.Get(t, k), bi, t, k)
			}
		}
	}
	return out, nil
}
