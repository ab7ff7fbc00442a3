// Package grid loads the model case grid: horizontal coordinates and the
// area/volume weighting fields used by the reductions.
package grid

import (
	"fmt"

	"github.com/rmshkv/mom6-tools/internal/adapter/store/nc"
	"github.com/rmshkv/mom6-tools/internal/domain"
)

// Conventional MOM6 static-file variable names.
const (
	areaVarName   = "areacello"
	volumeVarName = "volcello"
)

// Grid holds the model's horizontal coordinates and weighting fields.
type Grid struct {
	Xh []float64
	Yh []float64

	// Area is the 2-D (yh, xh) cell area, the weighting for single-layer
	// reductions.
	Area *domain.Field

	// Volume is the 3-D (z_l, yh, xh) cell volume, the weighting required
	// for per-basin reductions. Nil when the static file carries no volcello.
	Volume *domain.Field
}

// Load reads the grid from an ocean static file.
func Load(staticPath string) (*Grid, error) {
	xh, err := nc.ReadCoord(staticPath, domain.DimXh)
	if err != nil {
		return nil, fmt.Errorf("failed to load grid: %w", err)
	}
	yh, err := nc.ReadCoord(staticPath, domain.DimYh)
	if err != nil {
		return nil, fmt.Errorf("failed to load grid: %w", err)
	}

	area, err := nc.ReadField(staticPath, areaVarName)
	if err != nil {
		return nil, fmt.Errorf("failed to load grid: %w", err)
	}
	if !area.HasDim(domain.DimYh) || !area.HasDim(domain.DimXh) {
		return nil, fmt.Errorf("grid %s: %s is not a (%s, %s) field", staticPath, areaVarName, domain.DimYh, domain.DimXh)
	}

	g := &Grid{Xh: xh, Yh: yh, Area: area}

	// volcello is optional; without it only global reductions are possible.
	if vol, err := nc.ReadField(staticPath, volumeVarName); err == nil {
		g.Volume = vol
	}

	return g, nil
}
