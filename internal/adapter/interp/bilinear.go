// Package interp regrids observational climatology onto model horizontal
// coordinates using bilinear interpolation.
package interp

import (
	"fmt"
	"math"
)

// Grid2D is a regular 2-D grid of values over increasing coordinates.
// Values[j][i] corresponds to (X[i], Y[j]). NaN entries are missing.
type Grid2D struct {
	X      []float64
	Y      []float64
	Values [][]float64
}

// Validate checks coordinate ordering and value shape.
func (g *Grid2D) Validate() error {
	if len(g.X) < 2 {
		return fmt.Errorf("grid must have at least 2 X coordinates")
	}
	if len(g.Y) < 2 {
		return fmt.Errorf("grid must have at least 2 Y coordinates")
	}
	if len(g.Values) != len(g.Y) {
		return fmt.Errorf("number of value rows (%d) must match Y coordinates (%d)", len(g.Values), len(g.Y))
	}
	for j, row := range g.Values {
		if len(row) != len(g.X) {
			return fmt.Errorf("row %d has %d values, expected %d", j, len(row), len(g.X))
		}
	}
	for i := 1; i < len(g.X); i++ {
		if g.X[i] <= g.X[i-1] {
			return fmt.Errorf("X coordinates must be strictly increasing")
		}
	}
	for j := 1; j < len(g.Y); j++ {
		if g.Y[j] <= g.Y[j-1] {
			return fmt.Errorf("Y coordinates must be strictly increasing")
		}
	}
	return nil
}

// cellIndex locates the interval of coords containing x, or -1.
func cellIndex(coords []float64, x float64) int {
	if x < coords[0] || x > coords[len(coords)-1] {
		return -1
	}
	lo, hi := 0, len(coords)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if coords[mid] <= x {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// At interpolates the grid at (x, y). Points outside the grid, and points
// whose enclosing cell has any missing corner, return NaN: a destination
// cell without full source coverage is no-data, not an error.
func (g *Grid2D) At(x, y float64) float64 {
	xi := cellIndex(g.X, x)
	yi := cellIndex(g.Y, y)
	if xi < 0 || yi < 0 {
		return math.NaN()
	}

	x0, x1 := g.X[xi], g.X[xi+1]
	y0, y1 := g.Y[yi], g.Y[yi+1]
	v00 := g.Values[yi][xi]
	v10 := g.Values[yi][xi+1]
	v01 := g.Values[yi+1][xi]
	v11 := g.Values[yi+1][xi+1]
	if math.IsNaN(v00) || math.IsNaN(v10) || math.IsNaN(v01) || math.IsNaN(v11) {
		return math.NaN()
	}

	t := (x - x0) / (x1 - x0)
	u := (y - y0) / (y1 - y0)
	t = math.Max(0, math.Min(1, t))
	u = math.Max(0, math.Min(1, u))

	return (1-t)*(1-u)*v00 + t*(1-u)*v10 + (1-t)*u*v01 + t*u*v11
}

// Regrid samples the grid at every (dstX[i], dstY[j]) pair, producing a
// destination layer shaped [len(dstY)][len(dstX)].
func (g *Grid2D) Regrid(dstX, dstY []float64) ([][]float64, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source grid: %w", err)
	}
	out := make([][]float64, len(dstY))
	for j, y := range dstY {
		out[j] = make([]float64, len(dstX))
		for i, x := range dstX {
			out[j][i] = g.At(x, y)
		}
	}
	return out, nil
}
