// Package basins loads the named ocean basin mask set used for per-basin
// reductions.
package basins

import (
	"fmt"
	"strconv"

	"github.com/rmshkv/mom6-tools/internal/adapter/store/nc"
	"github.com/rmshkv/mom6-tools/internal/domain"
)

// Load reads a (region, yh, xh) basin mask variable into a BasinSet. The
// variable's leading dimension must be the region coordinate; region labels
// are the string representation of the coordinate values, in file order.
func Load(path, varName string) (*domain.BasinSet, error) {
	f, err := nc.ReadField(path, varName)
	if err != nil {
		return nil, fmt.Errorf("failed to load basin masks: %w", err)
	}
	if len(f.Dims) != 3 {
		return nil, fmt.Errorf("basin masks %s: %w: expected a 3-D (region, yh, xh) variable, got %v",
			varName, domain.ErrMalformedBasinSet, f.Dims)
	}
	if f.Dims[0] != domain.DimRegion {
		return nil, fmt.Errorf("basin masks %s: %w: leading dimension is %s, not %s",
			varName, domain.ErrMalformedBasinSet, f.Dims[0], domain.DimRegion)
	}

	names := RegionNames(f.Coords[domain.DimRegion], f.Data.Shape[0])
	bs, err := domain.NewBasinSet(names, [2]string{f.Dims[1], f.Dims[2]}, f.Data)
	if err != nil {
		return nil, fmt.Errorf("basin masks %s: %w", varName, err)
	}
	return bs, nil
}

// RegionNames renders the region coordinate values as basin labels. Without
// a coordinate variable the index stands in.
func RegionNames(coord []float64, n int) []string {
	names := make([]string, n)
	for i := range names {
		if i < len(coord) {
			names[i] = strconv.FormatFloat(coord[i], 'g', -1, 64)
		} else {
			names[i] = strconv.Itoa(i)
		}
	}
	return names
}
