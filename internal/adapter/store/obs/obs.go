// Package obs loads observational climatology (PHC temperature and salinity)
// and renames it onto the model's coordinate naming convention.
package obs

import (
	"fmt"

	"github.com/rmshkv/mom6-tools/internal/adapter/interp"
	"github.com/rmshkv/mom6-tools/internal/adapter/store/nc"
	"github.com/rmshkv/mom6-tools/internal/domain"
)

// FileConfig defines the expected observation file structure.
type FileConfig struct {
	TempVarName string // E.g., "TEMP".
	SaltVarName string // E.g., "SALT".

	// Renames maps observation dimension names onto the model's.
	Renames map[string]string
}

// DefaultConfig returns the PHC2 file configuration.
func DefaultConfig() FileConfig {
	return FileConfig{
		TempVarName: "TEMP",
		SaltVarName: "SALT",
		Renames: map[string]string{
			"X":     domain.DimXh,
			"Y":     domain.DimYh,
			"depth": domain.DimZl,
		},
	}
}

// Store loads reference temperature and salinity climatologies.
type Store struct {
	tempPath string
	saltPath string
	config   FileConfig
}

// NewStore creates an observation store for the given PHC file paths.
func NewStore(tempPath, saltPath string) *Store {
	return &Store{
		tempPath: tempPath,
		saltPath: saltPath,
		config:   DefaultConfig(),
	}
}

// LoadTemperature returns the observed temperature climatology on the
// model's horizontal coordinates.
func (s *Store) LoadTemperature(xh, yh []float64) (*domain.Field, error) {
	return s.load(s.tempPath, s.config.TempVarName, xh, yh)
}

// LoadSalinity returns the observed salinity climatology on the model's
// horizontal coordinates.
func (s *Store) LoadSalinity(xh, yh []float64) (*domain.Field, error) {
	return s.load(s.saltPath, s.config.SaltVarName, xh, yh)
}

func (s *Store) load(path, varName string, xh, yh []float64) (*domain.Field, error) {
	f, err := nc.ReadField(path, varName)
	if err != nil {
		return nil, fmt.Errorf("failed to load observation %s: %w", varName, err)
	}
	for from, to := range s.config.Renames {
		if f.HasDim(from) {
			if err := f.RenameDim(from, to); err != nil {
				return nil, err
			}
		}
	}
	return Align(f, xh, yh)
}

// Align places an observation field onto the model's horizontal coordinates.
// When the observation already matches the model grid shape its coordinates
// are overridden in place; otherwise each layer is regridded bilinearly, with
// cells outside the observation's coverage becoming missing.
func Align(f *domain.Field, xh, yh []float64) (*domain.Field, error) {
	if len(f.Dims) != 3 || f.Dims[1] != domain.DimYh || f.Dims[2] != domain.DimXh {
		return nil, fmt.Errorf("observation %s: expected a (%s, %s, %s) field, got %v",
			f.Name, domain.DimZl, domain.DimYh, domain.DimXh, f.Dims)
	}

	ny := f.DimLen(domain.DimYh)
	nx := f.DimLen(domain.DimXh)
	if ny == len(yh) && nx == len(xh) {
		if err := f.SetCoord(domain.DimYh, yh); err != nil {
			return nil, err
		}
		if err := f.SetCoord(domain.DimXh, xh); err != nil {
			return nil, err
		}
		return f, nil
	}

	srcX := f.Coords[domain.DimXh]
	srcY := f.Coords[domain.DimYh]
	if srcX == nil || srcY == nil {
		return nil, fmt.Errorf("observation %s: shape (%d, %d) does not match the model grid (%d, %d) and carries no coordinates to regrid from",
			f.Name, ny, nx, len(yh), len(xh))
	}

	nz := f.DimLen(domain.DimZl)
	out, err := domain.NewField(f.Name, []string{domain.DimZl, domain.DimYh, domain.DimXh}, nz, len(yh), len(xh))
	if err != nil {
		return nil, err
	}
	if c, ok := f.Coords[domain.DimZl]; ok {
		out.Coords[domain.DimZl] = append([]float64{}, c...)
	}
	if err := out.SetCoord(domain.DimYh, yh); err != nil {
		return nil, err
	}
	if err := out.SetCoord(domain.DimXh, xh); err != nil {
		return nil, err
	}

	for k := 0; k < nz; k++ {
		layer := make([][]float64, ny)
		for j := 0; j < ny; j++ {
			layer[j] = make([]float64, nx)
			for i := 0; i < nx; i++ {
				layer[j][i] = f.Data.Get(k, j, i)
			}
		}
		src := &interp.Grid2D{X: srcX, Y: srcY, Values: layer}
		dst, err := src.Regrid(xh, yh)
		if err != nil {
			return nil, fmt.Errorf("observation %s layer %d: %w", f.Name, k, err)
		}
		for j := range dst {
			for i := range dst[j] {
				out.Data.Set(dst[j][i], k, j, i)
			}
		}
	}
	return out, nil
}
