package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

// field4D builds a (time, z_l, yh, xh) field with per-time constant values.
func field4D(t *testing.T, perTime []float64, nz, ny, nx int) *Field {
	t.Helper()
	f, err := NewField("residual", []string{DimTime, DimZl, DimYh, DimXh}, len(perTime), nz, ny, nx)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	for ti, v := range perTime {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					f.Data.Set(v, ti, k, j, i)
				}
			}
		}
	}
	return f
}

// weights3D builds (z_l, yh, xh) weights from a 2-D pattern replicated
// across layers.
func weights3D(t *testing.T, pattern [][]float64, nz int) *Field {
	t.Helper()
	ny := len(pattern)
	nx := len(pattern[0])
	w, err := NewField("area", []string{DimZl, DimYh, DimXh}, nz, ny, nx)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				w.Data.Set(pattern[j][i], k, j, i)
			}
		}
	}
	return w
}

func basinSet(t *testing.T, regions []string, masks [][][]float64) *BasinSet {
	t.Helper()
	ny := len(masks[0])
	nx := len(masks[0][0])
	arr := sparse.ZerosDense(len(regions), ny, nx)
	for b := range masks {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				arr.Set(masks[b][j][i], b, j, i)
			}
		}
	}
	bs, err := NewBasinSet(regions, [2]string{DimYh, DimXh}, arr)
	if err != nil {
		t.Fatalf("NewBasinSet: %v", err)
	}
	return bs
}

// TestHorizontalMeanRMSE_Unweighted checks the sqrt(mean(f^2)) kernel on the
// concrete scenario from the diagnostics: a (2, 1, 2, 2) residual of 1s and
// 3s reduces to [1, 3].
func TestHorizontalMeanRMSE_Unweighted(t *testing.T) {
	f := field4D(t, []float64{1, 3}, 1, 2, 2)

	out, err := HorizontalMeanRMSE(f, ReduceOptions{})
	if err != nil {
		t.Fatalf("HorizontalMeanRMSE: %v", err)
	}

	if len(out.Dims) != 2 || out.Dims[0] != DimTime || out.Dims[1] != DimZl {
		t.Fatalf("result dims: expected (time, z_l), got %v", out.Dims)
	}
	want := []float64{1, 3}
	for ti, w := range want {
		got := out.Data.Get(ti, 0)
		if math.Abs(got-w) > 1e-12 {
			t.Errorf("time %d: expected %.1f, got %.10f", ti, w, got)
		}
	}
}

func TestHorizontalMeanDiff_Unweighted(t *testing.T) {
	f := field4D(t, []float64{1, 3}, 1, 2, 2)

	out, err := HorizontalMeanDiff(f, ReduceOptions{})
	if err != nil {
		t.Fatalf("HorizontalMeanDiff: %v", err)
	}
	want := []float64{1, 3}
	for ti, w := range want {
		got := out.Data.Get(ti, 0)
		if math.Abs(got-w) > 1e-12 {
			t.Errorf("time %d: expected %.1f, got %.10f", ti, w, got)
		}
	}
}

// TestHorizontalMeanRMSE_UnitWeights checks that uniformly-1 weights
// reproduce the unweighted result exactly.
func TestHorizontalMeanRMSE_UnitWeights(t *testing.T) {
	f := field4D(t, []float64{1, 3}, 1, 2, 2)
	w := weights3D(t, [][]float64{{1, 1}, {1, 1}}, 1)

	weighted, err := HorizontalMeanRMSE(f, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("weighted: %v", err)
	}
	unweighted, err := HorizontalMeanRMSE(f, ReduceOptions{})
	if err != nil {
		t.Fatalf("unweighted: %v", err)
	}
	for i := range weighted.Data.Elements {
		if math.Abs(weighted.Data.Elements[i]-unweighted.Data.Elements[i]) > 1e-12 {
			t.Errorf("element %d: weighted %.10f != unweighted %.10f",
				i, weighted.Data.Elements[i], unweighted.Data.Elements[i])
		}
	}
}

// TestHorizontalMeanRMSE_WeightedFormula verifies the weighted quadratic
// mean against a hand-computed value on a non-uniform field.
func TestHorizontalMeanRMSE_WeightedFormula(t *testing.T) {
	f := field4D(t, []float64{0}, 1, 2, 2)
	// Field values 1, 2, 3, 4; weights 1, 2, 3, 4.
	vals := []float64{1, 2, 3, 4}
	ws := []float64{1, 2, 3, 4}
	n := 0
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			f.Data.Set(vals[n], 0, 0, j, i)
			n++
		}
	}
	w := weights3D(t, [][]float64{{ws[0], ws[1]}, {ws[2], ws[3]}}, 1)

	out, err := HorizontalMeanRMSE(f, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("HorizontalMeanRMSE: %v", err)
	}

	var num, den float64
	for i := range vals {
		num += vals[i] * vals[i] * ws[i]
		den += ws[i]
	}
	want := math.Sqrt(num / den)
	got := out.Data.Get(0, 0)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %.10f, got %.10f", want, got)
	}
}

// TestHorizontalMeanDiff_CheckerboardWeights reproduces the checkerboard
// scenario: a uniform field is insensitive to the weight pattern.
func TestHorizontalMeanDiff_CheckerboardWeights(t *testing.T) {
	f := field4D(t, []float64{1, 3}, 1, 2, 2)
	w := weights3D(t, [][]float64{{1, 0}, {0, 1}}, 1)

	out, err := HorizontalMeanDiff(f, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("HorizontalMeanDiff: %v", err)
	}
	got := out.Data.Get(0, 0)
	if math.Abs(got-1.0) > 1e-12 {
		t.Errorf("time 0: expected 1.0, got %.10f", got)
	}
}

// TestHorizontalMeanDiff_Linearity checks that the mean-difference reducer
// is linear in the field for fixed weights.
func TestHorizontalMeanDiff_Linearity(t *testing.T) {
	f1 := field4D(t, []float64{0}, 1, 2, 2)
	f2 := field4D(t, []float64{0}, 1, 2, 2)
	v1 := []float64{0.5, -1.25, 2.0, 3.5}
	v2 := []float64{1.0, 4.0, -2.5, 0.25}
	n := 0
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			f1.Data.Set(v1[n], 0, 0, j, i)
			f2.Data.Set(v2[n], 0, 0, j, i)
			n++
		}
	}
	sum := field4D(t, []float64{0}, 1, 2, 2)
	for i := range sum.Data.Elements {
		sum.Data.Elements[i] = f1.Data.Elements[i] + f2.Data.Elements[i]
	}
	w := weights3D(t, [][]float64{{1, 2}, {3, 4}}, 1)

	r1, err := HorizontalMeanDiff(f1, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("f1: %v", err)
	}
	r2, err := HorizontalMeanDiff(f2, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("f2: %v", err)
	}
	rs, err := HorizontalMeanDiff(sum, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}

	want := r1.Data.Get(0, 0) + r2.Data.Get(0, 0)
	got := rs.Data.Get(0, 0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("linearity: expected %.10f, got %.10f", want, got)
	}
}

// TestHorizontalMeanDiff_PerBasin reproduces the two-basin scenario: left
// half mean 1.0, right half mean 2.0.
func TestHorizontalMeanDiff_PerBasin(t *testing.T) {
	f := field4D(t, []float64{0}, 1, 2, 2)
	for j := 0; j < 2; j++ {
		f.Data.Set(1, 0, 0, j, 0)
		f.Data.Set(2, 0, 0, j, 1)
	}
	w := weights3D(t, [][]float64{{1, 1}, {1, 1}}, 1)
	bs := basinSet(t, []string{"left", "right"}, [][][]float64{
		{{1, 0}, {1, 0}},
		{{0, 1}, {0, 1}},
	})

	out, err := HorizontalMeanDiff(f, ReduceOptions{Weights: w, Basins: bs})
	if err != nil {
		t.Fatalf("HorizontalMeanDiff: %v", err)
	}

	if out.Data.Shape[0] != 2 {
		t.Fatalf("expected leading dimension 2, got %d", out.Data.Shape[0])
	}
	if out.Dims[0] != DimRegion {
		t.Fatalf("expected leading region axis, got %v", out.Dims)
	}
	if got := out.Labels[DimRegion]; len(got) != 2 || got[0] != "left" || got[1] != "right" {
		t.Fatalf("region labels: got %v", got)
	}

	if got := out.Data.Get(0, 0, 0); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("left basin: expected 1.0, got %.10f", got)
	}
	if got := out.Data.Get(1, 0, 0); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("right basin: expected 2.0, got %.10f", got)
	}
}

// TestHorizontalMeanRMSE_FullDomainBasin checks that a single all-ones basin
// reproduces the global weighted result.
func TestHorizontalMeanRMSE_FullDomainBasin(t *testing.T) {
	f := field4D(t, []float64{0, 0}, 3, 2, 2)
	vals := []float64{1, -2, 3, -4}
	for ti := 0; ti < 2; ti++ {
		for k := 0; k < 3; k++ {
			n := 0
			for j := 0; j < 2; j++ {
				for i := 0; i < 2; i++ {
					f.Data.Set(vals[n]*float64(ti+1), ti, k, j, i)
					n++
				}
			}
		}
	}
	w := weights3D(t, [][]float64{{2, 1}, {1, 2}}, 3)
	bs := basinSet(t, []string{"Global"}, [][][]float64{{{1, 1}, {1, 1}}})

	global, err := HorizontalMeanRMSE(f, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	perBasin, err := HorizontalMeanRMSE(f, ReduceOptions{Weights: w, Basins: bs})
	if err != nil {
		t.Fatalf("per-basin: %v", err)
	}

	for ti := 0; ti < 2; ti++ {
		for k := 0; k < 3; k++ {
			g := global.Data.Get(ti, k)
			b := perBasin.Data.Get(0, ti, k)
			if math.Abs(g-b) > 1e-12 {
				t.Errorf("(%d, %d): global %.10f != basin %.10f", ti, k, g, b)
			}
		}
	}
}

// TestReduce_MissingWeightsExcluded checks that NaN weights drop cells from
// the normalization instead of contributing zero.
func TestReduce_MissingWeightsExcluded(t *testing.T) {
	f := field4D(t, []float64{0}, 1, 2, 2)
	vals := []float64{10, 2, 2, 2}
	n := 0
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			f.Data.Set(vals[n], 0, 0, j, i)
			n++
		}
	}
	w := weights3D(t, [][]float64{{math.NaN(), 1}, {1, 1}}, 1)

	out, err := HorizontalMeanDiff(f, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("HorizontalMeanDiff: %v", err)
	}
	// The masked-out value 10 must not influence the mean of the remaining 2s.
	if got := out.Data.Get(0, 0); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("expected 2.0, got %.10f", got)
	}
}

// TestReduce_ZeroTotalWeight checks that a zero weight sum yields NaN, not
// an error.
func TestReduce_ZeroTotalWeight(t *testing.T) {
	f := field4D(t, []float64{1}, 1, 2, 2)
	w := weights3D(t, [][]float64{{0, 0}, {0, 0}}, 1)

	out, err := HorizontalMeanRMSE(f, ReduceOptions{Weights: w})
	if err != nil {
		t.Fatalf("HorizontalMeanRMSE: %v", err)
	}
	if got := out.Data.Get(0, 0); !math.IsNaN(got) {
		t.Errorf("expected NaN for zero total weight, got %v", got)
	}
}

func TestResolveMode_Errors(t *testing.T) {
	f := field4D(t, []float64{1}, 1, 2, 2)
	w := weights3D(t, [][]float64{{1, 1}, {1, 1}}, 1)
	bs := basinSet(t, []string{"Global"}, [][][]float64{{{1, 1}, {1, 1}}})

	tests := []struct {
		name string
		opts ReduceOptions
		want error
	}{
		{
			name: "missing field dimension",
			opts: ReduceOptions{Dims: [2]string{"lat", "lon"}},
			want: ErrMissingDim,
		},
		{
			name: "basins without weights",
			opts: ReduceOptions{Basins: bs},
			want: ErrBasinsWithoutWeights,
		},
		{
			name: "weights without data",
			opts: ReduceOptions{Weights: &Field{Name: "bare"}},
			want: ErrWeightsType,
		},
		{
			name: "missing weights dimension",
			opts: func() ReduceOptions {
				w2, _ := NewField("area", []string{"lat", "lon"}, 2, 2)
				return ReduceOptions{Weights: w2}
			}(),
			want: ErrMissingDim,
		},
		{
			name: "2-D weights in basin mode",
			opts: func() ReduceOptions {
				w2, _ := NewField("area", []string{DimYh, DimXh}, 2, 2)
				return ReduceOptions{Weights: w2, Basins: bs}
			}(),
			want: ErrWeightsShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HorizontalMeanRMSE(f, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			_, err = HorizontalMeanDiff(f, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("mean diff: expected %v, got %v", tt.want, err)
			}
		})
	}

	// Basin mode accepts only valid combinations.
	if _, err := HorizontalMeanRMSE(f, ReduceOptions{Weights: w, Basins: bs}); err != nil {
		t.Errorf("valid basin reduction: unexpected error %v", err)
	}
}

// TestExpandRegion checks pure replication of a 2-D mask across layers and
// coordinate propagation.
func TestExpandRegion(t *testing.T) {
	f := field4D(t, []float64{1}, 3, 2, 2)
	if err := f.SetCoord(DimZl, []float64{5, 15, 30}); err != nil {
		t.Fatalf("SetCoord: %v", err)
	}
	w := weights3D(t, [][]float64{{1, 1}, {1, 1}}, 3)
	if err := w.SetCoord(DimYh, []float64{-1, 1}); err != nil {
		t.Fatalf("SetCoord: %v", err)
	}

	mask := sparse.ZerosDense(2, 2)
	mask.Set(1, 0, 1)
	mask.Set(1, 1, 0)

	region3d := ExpandRegion(mask, f, w, [2]string{DimYh, DimXh})

	if len(region3d.Dims) != 3 || region3d.Dims[0] != DimZl {
		t.Fatalf("expected (z_l, yh, xh) mask, got %v", region3d.Dims)
	}
	for k := 0; k < 3; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				if region3d.Data.Get(k, j, i) != mask.Get(j, i) {
					t.Errorf("layer %d: mask not replicated at (%d, %d)", k, j, i)
				}
			}
		}
	}
	if got := region3d.Coords[DimZl]; len(got) != 3 || got[2] != 30 {
		t.Errorf("z_l coordinate not carried: %v", got)
	}
	if got := region3d.Coords[DimYh]; len(got) != 2 || got[0] != -1 {
		t.Errorf("yh coordinate not carried: %v", got)
	}
}

// TestHorizontalMeanRMSE_CustomDims checks reductions over non-default
// dimension names.
func TestHorizontalMeanRMSE_CustomDims(t *testing.T) {
	f, err := NewField("residual", []string{DimTime, "lat", "lon"}, 1, 2, 2)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	for i := range f.Data.Elements {
		f.Data.Elements[i] = 2
	}

	out, err := HorizontalMeanRMSE(f, ReduceOptions{Dims: [2]string{"lat", "lon"}})
	if err != nil {
		t.Fatalf("HorizontalMeanRMSE: %v", err)
	}
	if got := out.Data.Get(0); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("expected 2.0, got %.10f", got)
	}
}
