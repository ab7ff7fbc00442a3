// Package climo stages the model climatology for a case: it reads the
// per-variable climatology files and bounds them to the requested years.
package climo

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/rmshkv/mom6-tools/internal/adapter/store/nc"
	"github.com/rmshkv/mom6-tools/internal/domain"
)

// Generator stages climatology fields for a diagnosed case.
type Generator struct {
	dir       string
	caseName  string
	startYear int
	endYear   int
}

// NewGenerator creates a climatology generator rooted at a case output
// directory. Climatology files are named "<case>.<variable>.climo.nc".
func NewGenerator(dir, caseName string, startYear, endYear int) *Generator {
	return &Generator{
		dir:       dir,
		caseName:  caseName,
		startYear: startYear,
		endYear:   endYear,
	}
}

// Stage reads the climatology for a variable and bounds it to the
// configured years. The result is a (time, z_l, yh, xh) field.
func (g *Generator) Stage(varName string) (*domain.Field, error) {
	path := filepath.Join(g.dir, fmt.Sprintf("%s.%s.climo.nc", g.caseName, varName))
	f, err := nc.ReadField(path, varName)
	if err != nil {
		return nil, fmt.Errorf("failed to stage climatology for %s: %w", varName, err)
	}
	if len(f.Dims) != 4 || f.Dims[0] != domain.DimTime {
		return nil, fmt.Errorf("climatology %s: expected a (time, z_l, yh, xh) variable, got %v", varName, f.Dims)
	}
	return SelectYears(f, g.startYear, g.endYear)
}

// SelectYears bounds a field's leading time axis to [startYear, endYear].
// Time coordinate values are fractional years; a field without a time
// coordinate is returned unchanged.
func SelectYears(f *domain.Field, startYear, endYear int) (*domain.Field, error) {
	if len(f.Dims) == 0 || f.Dims[0] != domain.DimTime {
		return nil, fmt.Errorf("field %s: %w: %s", f.Name, domain.ErrMissingDim, domain.DimTime)
	}
	times := f.Coords[domain.DimTime]
	if times == nil {
		return f, nil
	}

	keep := make([]int, 0, len(times))
	for i, tv := range times {
		year := int(math.Floor(tv))
		if year >= startYear && year <= endYear {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(times) {
		return f, nil
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("field %s: no time steps between years %d and %d", f.Name, startYear, endYear)
	}

	shape := append([]int{len(keep)}, f.Data.Shape[1:]...)
	out, err := domain.NewField(f.Name, append([]string{}, f.Dims...), shape...)
	if err != nil {
		return nil, err
	}
	for d, c := range f.Coords {
		if d == domain.DimTime {
			continue
		}
		out.Coords[d] = append([]float64{}, c...)
	}
	coord := make([]float64, len(keep))
	stride := 1
	for _, n := range f.Data.Shape[1:] {
		stride *= n
	}
	for oi, ti := range keep {
		coord[oi] = times[ti]
		copy(out.Data.Elements[oi*stride:(oi+1)*stride], f.Data.Elements[ti*stride:(ti+1)*stride])
	}
	out.Coords[domain.DimTime] = coord
	return out, nil
}
