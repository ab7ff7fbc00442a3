// Package nc reads labeled N-dimensional variables from NetCDF sources into
// domain fields.
package nc

import (
	"fmt"
	"math"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/rmshkv/mom6-tools/internal/domain"
)

// ReadField reads a variable and its dimension coordinates into a labeled
// field. Fill values and missing values become NaN. Coordinate variables are
// picked up when a 1-D variable shares a dimension's name.
func ReadField(path, varName string) (*domain.Field, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	v, err := nc.Var(varName)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found in %s: %w", varName, path, err)
	}

	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions of %s: %w", varName, err)
	}

	names := make([]string, len(dims))
	shape := make([]int, len(dims))
	total := 1
	for i, d := range dims {
		name, err := d.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimension name: %w", err)
		}
		length, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get length of dimension %s: %w", name, err)
		}
		names[i] = name
		shape[i] = int(length)
		total *= int(length)
	}

	flat, err := readFloat64s(v, total)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", varName, err)
	}

	// Replace _FillValue or missing_value with NaN so downstream reductions
	// treat those cells as missing.
	if fv, ok := fillValue(v); ok {
		for i, val := range flat {
			if val == fv {
				flat[i] = math.NaN()
			}
		}
	}

	field, err := domain.NewField(varName, names, shape...)
	if err != nil {
		return nil, err
	}
	copy(field.Data.Elements, flat)

	// Attach coordinate variables.
	for _, name := range names {
		cv, err := nc.Var(name)
		if err != nil {
			continue
		}
		cdims, err := cv.Dims()
		if err != nil || len(cdims) != 1 {
			continue
		}
		length, err := cdims[0].Len()
		if err != nil {
			continue
		}
		coord, err := readFloat64s(cv, int(length))
		if err != nil {
			continue
		}
		if err := field.SetCoord(name, coord); err != nil {
			return nil, err
		}
	}

	return field, nil
}

// ReadCoord reads a 1-D coordinate variable.
func ReadCoord(path, varName string) ([]float64, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	v, err := nc.Var(varName)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found in %s: %w", varName, path, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions of %s: %w", varName, err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1-D coordinate %s, got %d-D", varName, len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readFloat64s(v, int(length))
}

// fillValue returns the _FillValue or missing_value attribute if present.
func fillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if a == (netcdf.Attr{}) {
			continue
		}
		if n, err := a.Len(); err == nil && n > 0 {
			buf64 := make([]float64, 1)
			if err := a.ReadFloat64s(buf64); err == nil {
				return buf64[0], true
			}
			buf32 := make([]float32, 1)
			if err := a.ReadFloat32s(buf32); err == nil {
				return float64(buf32[0]), true
			}
			bufi := make([]int32, 1)
			if err := a.ReadInt32s(bufi); err == nil {
				return float64(bufi[0]), true
			}
		}
	}
	return 0, false
}

// readFloat64s reads a variable of any supported numeric type as float64.
func readFloat64s(v netcdf.Var, total int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}
