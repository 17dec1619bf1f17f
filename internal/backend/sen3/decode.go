package sen3

import (
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/eoprod/eoprod/pkg/types"
)

// flatten converts the nested slices returned by the NetCDF reader into a
// row-major float64 slice and its shape.
func flatten(values interface{}) ([]float64, []int, error) {
	v := reflect.ValueOf(values)
	if !v.IsValid() {
		return nil, nil, fmt.Errorf("variable has no values")
	}
	var shape []int
	for t := v.Type(); t.Kind() == reflect.Slice; t = t.Elem() {
		shape = append(shape, 0)
	}

	var out []float64
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if depth == len(shape) {
			f, ok := toFloat(v)
			if !ok {
				return fmt.Errorf("unsupported element type %s", v.Type())
			}
			out = append(out, f)
			return nil
		}
		n := v.Len()
		if shape[depth] == 0 {
			shape[depth] = n
		} else if shape[depth] != n {
			return fmt.Errorf("ragged array at depth %d: %d != %d", depth, n, shape[depth])
		}
		for i := 0; i < n; i++ {
			if err := walk(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(v.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

// scaling is the CF packing of a variable.
type scaling struct {
	scale    float64
	offset   float64
	fill     float64
	hasFill  bool
	validMin float64
	validMax float64
}

func newScaling(attrs api.AttributeMap) scaling {
	s := scaling{
		scale:    1,
		validMin: math.Inf(-1),
		validMax: math.Inf(1),
	}
	if attrs == nil {
		return s
	}
	if f, ok := attrFloat(attrs, "scale_factor"); ok {
		s.scale = f
	}
	if f, ok := attrFloat(attrs, "add_offset"); ok {
		s.offset = f
	}
	if f, ok := attrFloat(attrs, "_FillValue"); ok {
		s.fill, s.hasFill = f, true
	}
	if f, ok := attrFloat(attrs, "valid_min"); ok {
		s.validMin = f
	}
	if f, ok := attrFloat(attrs, "valid_max"); ok {
		s.validMax = f
	}
	return s
}

// decode unpacks raw values into a raster. Fill values, values outside the
// valid range and NaN are marked invalid.
func (s scaling) decode(raw []float64, width, height int) *types.Raster {
	r := types.NewRaster(width, height)
	for i, v := range raw {
		if (s.hasFill && v == s.fill) || v < s.validMin || v > s.validMax || math.IsNaN(v) {
			r.Valid[i] = false
			continue
		}
		r.Values[i] = v*s.scale + s.offset
	}
	return r
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	return toFloat(rv)
}

func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	v, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// upsample interpolates a tie-point grid bilinearly onto the full grid. Tie
// point (i, j) sits on full pixel (i*acFactor, j*alFactor).
func upsample(tie *types.Raster, width, height, acFactor, alFactor int) *types.Raster {
	out := types.NewRaster(width, height)
	for y := 0; y < height; y++ {
		ty := float64(y) / float64(alFactor)
		y0 := min(int(ty), tie.Height-1)
		y1 := min(y0+1, tie.Height-1)
		fy := ty - float64(y0)
		if y0 == y1 {
			fy = 0
		}
		for x := 0; x < width; x++ {
			tx := float64(x) / float64(acFactor)
			x0 := min(int(tx), tie.Width-1)
			x1 := min(x0+1, tie.Width-1)
			fx := tx - float64(x0)
			if x0 == x1 {
				fx = 0
			}

			v00, ok00 := tie.At(x0, y0)
			v10, ok10 := tie.At(x1, y0)
			v01, ok01 := tie.At(x0, y1)
			v11, ok11 := tie.At(x1, y1)
			if !(ok00 && ok10 && ok01 && ok11) {
				out.Invalidate(x, y)
				continue
			}
			top := v00 + (v10-v00)*fx
			bottom := v01 + (v11-v01)*fx
			out.Set(x, y, top+(bottom-top)*fy)
		}
	}
	return out
}

// replicate enlarges a coarse raster by an integer factor with nearest
// neighbour replication.
func replicate(coarse *types.Raster, width, height, factor int) *types.Raster {
	out := types.NewRaster(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v, ok := coarse.At(x/factor, y/factor)
			if !ok {
				out.Invalidate(x, y)
				continue
			}
			out.Set(x, y, v)
		}
	}
	return out
}
