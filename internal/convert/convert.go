// Package convert orchestrates radiance to reflectance conversion. The
// radiometric model itself is supplied by the caller.
package convert

import (
	"regexp"
	"slices"
	"time"

	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

var radianceName = regexp.MustCompile(`^(Oa\d{2})_radiance$`)

// ReflectanceName returns the reflectance band for a radiance band name.
func ReflectanceName(radiance string) (string, bool) {
	m := radianceName.FindStringSubmatch(radiance)
	if m == nil {
		return "", false
	}
	return m[1] + "_reflectance", true
}

// Converter turns a window of radiance into reflectance. src is the
// sub-product the band belongs to, so auxiliary fields (solar flux, solar
// zenith angle) can be read over the same box.
type Converter interface {
	Reflectance(src types.NativeProduct, band string, box types.PixelBox, radiance *types.Raster) (*types.Raster, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(src types.NativeProduct, band string, box types.PixelBox, radiance *types.Raster) (*types.Raster, error)

// Reflectance implements Converter.
func (f ConverterFunc) Reflectance(src types.NativeProduct, band string, box types.PixelBox, radiance *types.Raster) (*types.Raster, error) {
	return f(src, band, box, radiance)
}

// Engine derives reflectance products.
type Engine struct {
	Converter Converter
	Logger    *utils.Logger
	Metrics   types.MetricsCollector
}

// NewEngine returns an engine delegating to c.
func NewEngine(c Converter, logger *utils.Logger, metrics types.MetricsCollector) *Engine {
	return &Engine{Converter: c, Logger: logger.OrNop().WithComponent("convert"), Metrics: metrics}
}

// Radiance2Reflectance derives a product whose Oa*_radiance variables are
// replaced by Oa*_reflectance variables with empty units. The log gains a
// rad2refl entry without parameters.
func (e *Engine) Radiance2Reflectance(agg *product.Aggregate) (out *product.Aggregate, err error) {
	start := time.Now()
	defer func() {
		if e.Metrics != nil {
			e.Metrics.RecordOperation("rad2refl", time.Since(start), err == nil)
			if err != nil {
				e.Metrics.RecordError("rad2refl", err)
			}
		}
	}()

	if e.Converter == nil {
		return nil, errors.NewError(errors.ErrCodeInvalidState, "no reflectance converter configured").
			WithComponent("convert")
	}

	renames := make(map[string]string)
	variables := agg.Variables()
	for i, d := range variables {
		if refl, ok := ReflectanceName(d.Name); ok {
			renames[d.Name] = refl
			variables[i].Name = refl
			variables[i].Units = ""
		}
	}
	if len(renames) == 0 {
		return nil, errors.NewError(errors.ErrCodeVariableNotFound, "product has no radiance bands").
			WithComponent("convert")
	}

	subs := agg.SubProducts()
	handles := make([]types.NativeProduct, len(subs))
	names := make([][]string, len(subs))
	for i, s := range subs {
		// The view renames native fields, which may differ from variable names.
		native := make(map[string]string)
		for _, n := range s.VariableNames {
			if refl, ok := renames[n]; ok {
				native[s.Field(n)] = refl
				n = refl
			}
			names[i] = append(names[i], n)
		}
		handles[i] = newView(s.Handle, native, e.Converter)
	}

	out, err = agg.DeriveWith(handles, variables, names, product.NewEntry("rad2refl"), nil)
	if err != nil {
		return nil, err
	}
	e.Logger.OrNop().Debugw("Converted radiance to reflectance", "bands", len(renames))
	return out, nil
}

// view exposes a sub-product with radiance fields renamed and converted on
// read. It borrows the source handle.
type view struct {
	types.NativeProduct
	toSource  map[string]string
	fromSrc   map[string]string
	converter Converter
}

func newView(src types.NativeProduct, renames map[string]string, c Converter) *view {
	v := &view{NativeProduct: src, toSource: map[string]string{}, fromSrc: map[string]string{}, converter: c}
	for _, name := range src.FieldNames() {
		if refl, ok := renames[name]; ok {
			v.toSource[refl] = name
			v.fromSrc[name] = refl
		}
	}
	return v
}

func (v *view) source(name string) string {
	if src, ok := v.toSource[name]; ok {
		return src
	}
	return name
}

func (v *view) FieldNames() []string {
	names := v.NativeProduct.FieldNames()
	for i, n := range names {
		if refl, ok := v.fromSrc[n]; ok {
			names[i] = refl
		}
	}
	return names
}

func (v *view) Field(name string) (types.FieldInfo, error) {
	if _, hidden := v.fromSrc[name]; hidden {
		return types.FieldInfo{}, errors.Errorf(errors.ErrCodeVariableNotFound, "no field %s", name)
	}
	src := v.source(name)
	info, err := v.NativeProduct.Field(src)
	if err != nil {
		return info, err
	}
	if src != name {
		info.Name = name
		info.Units = ""
		info.SpectralResponse = slices.Clone(info.SpectralResponse)
	}
	return info, nil
}

func (v *view) Unit(field string) string {
	if _, ok := v.toSource[field]; ok {
		return ""
	}
	return v.NativeProduct.Unit(field)
}

func (v *view) ReadPixels(field string, box types.PixelBox) (*types.Raster, error) {
	src, ok := v.toSource[field]
	if !ok {
		if _, hidden := v.fromSrc[field]; hidden {
			return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "no field %s", field)
		}
		return v.NativeProduct.ReadPixels(field, box)
	}
	rad, err := v.NativeProduct.ReadPixels(src, box)
	if err != nil {
		return nil, err
	}
	return v.converter.Reflectance(v.NativeProduct, src, box, rad)
}

// Close is a no-op: the view borrows the source handle.
func (v *view) Close() error { return nil }
