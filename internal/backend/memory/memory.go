// Package memory is an in-process raster backend. It holds decoded bands in
// memory and serves as the output of collocation and as a fixture backend.
package memory

import (
	"maps"
	"slices"

	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// Band is one field held in memory. Auxiliary bands keep their own size.
type Band struct {
	Info      types.FieldInfo
	Raster    *types.Raster
	Auxiliary bool
}

// Product is an in-memory sub-product.
type Product struct {
	name     string
	meta     types.Metadata
	geocoder types.Geocoder
	order    []string
	bands    map[string]*Band
	closed   bool
}

// New creates an empty product. meta.Columns and meta.Rows fix the raster size
// of every band added later.
func New(name string, meta types.Metadata, geocoder types.Geocoder) *Product {
	meta.Extra = maps.Clone(meta.Extra)
	return &Product{
		name:     name,
		meta:     meta,
		geocoder: geocoder,
		bands:    make(map[string]*Band),
	}
}

// AddBand stores a band. The raster must match the product size; an empty
// info.Shape defaults to [rows, columns].
func (p *Product) AddBand(info types.FieldInfo, r *types.Raster) error {
	if err := p.checkName(info.Name); err != nil {
		return err
	}
	if r.Width != p.meta.Columns || r.Height != p.meta.Rows {
		return errors.Errorf(errors.ErrCodeInvalidState, "band %s is %dx%d, product is %dx%d",
			info.Name, r.Width, r.Height, p.meta.Columns, p.meta.Rows).WithComponent("memory")
	}
	p.add(info, r, false)
	return nil
}

// AddAuxiliary stores a field that is not on the product grid, such as a
// per-detector table. Its raster keeps its own size and region extraction
// copies it unchanged. An empty info.Shape defaults to [height, width].
func (p *Product) AddAuxiliary(info types.FieldInfo, r *types.Raster) error {
	if err := p.checkName(info.Name); err != nil {
		return err
	}
	p.add(info, r, true)
	return nil
}

func (p *Product) checkName(name string) error {
	if name == "" {
		return errors.NewError(errors.ErrCodeInvalidState, "band name is empty").WithComponent("memory")
	}
	if _, exists := p.bands[name]; exists {
		return errors.Errorf(errors.ErrCodeInvalidState, "band %s already exists", name).WithComponent("memory")
	}
	return nil
}

func (p *Product) add(info types.FieldInfo, r *types.Raster, aux bool) {
	if len(info.Shape) == 0 {
		info.Shape = []int{r.Height, r.Width}
	}
	if info.DType == "" {
		info.DType = "float64"
	}
	p.order = append(p.order, info.Name)
	p.bands[info.Name] = &Band{Info: info, Raster: r, Auxiliary: aux}
}

// AddFunc stores a band whose values are computed per pixel.
func (p *Product) AddFunc(info types.FieldInfo, fn func(x, y int) float64) error {
	r := types.NewRaster(p.meta.Columns, p.meta.Rows)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			r.Set(x, y, fn(x, y))
		}
	}
	return p.AddBand(info, r)
}

// Has reports whether a band exists.
func (p *Product) Has(name string) bool {
	_, ok := p.bands[name]
	return ok
}

// Closed reports whether Close has been called.
func (p *Product) Closed() bool { return p.closed }

// Name implements types.NativeProduct.
func (p *Product) Name() string { return p.name }

// FieldNames implements types.NativeProduct.
func (p *Product) FieldNames() []string { return slices.Clone(p.order) }

// Field implements types.NativeProduct.
func (p *Product) Field(name string) (types.FieldInfo, error) {
	b, ok := p.bands[name]
	if !ok {
		return types.FieldInfo{}, errors.Errorf(errors.ErrCodeVariableNotFound, "no field %s in %s", name, p.name)
	}
	info := b.Info
	info.Shape = slices.Clone(info.Shape)
	info.SpectralResponse = slices.Clone(info.SpectralResponse)
	return info, nil
}

// Unit implements types.NativeProduct.
func (p *Product) Unit(field string) string {
	if b, ok := p.bands[field]; ok {
		return b.Info.Units
	}
	return ""
}

// ReadPixels implements types.NativeProduct.
func (p *Product) ReadPixels(field string, box types.PixelBox) (*types.Raster, error) {
	if p.closed {
		return nil, errors.Errorf(errors.ErrCodeInvalidState, "product %s is closed", p.name)
	}
	b, ok := p.bands[field]
	if !ok {
		return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "no field %s in %s", field, p.name)
	}
	if box.Width < 1 || box.Height < 1 || box.UpperLeftX < 0 || box.UpperLeftY < 0 ||
		box.LowerRightX() >= b.Raster.Width || box.LowerRightY() >= b.Raster.Height {
		return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
			"window %s outside %dx%d raster", box, b.Raster.Width, b.Raster.Height).
			WithComponent("memory")
	}

	out := types.NewRaster(box.Width, box.Height)
	for y := 0; y < box.Height; y++ {
		src := (box.UpperLeftY+y)*b.Raster.Width + box.UpperLeftX
		copy(out.Values[y*box.Width:(y+1)*box.Width], b.Raster.Values[src:src+box.Width])
		copy(out.Valid[y*box.Width:(y+1)*box.Width], b.Raster.Valid[src:src+box.Width])
	}
	return out, nil
}

// Geocoding implements types.NativeProduct.
func (p *Product) Geocoding() (types.Geocoder, error) {
	if p.geocoder == nil {
		return nil, errors.Errorf(errors.ErrCodeGeometryInvalid, "product %s has no geocoding", p.name)
	}
	return p.geocoder, nil
}

// Metadata implements types.NativeProduct.
func (p *Product) Metadata() types.Metadata {
	m := p.meta
	m.Extra = maps.Clone(p.meta.Extra)
	return m
}

// Close implements types.NativeProduct.
func (p *Product) Close() error {
	p.closed = true
	return nil
}

// ExtractRegion implements types.RegionExtractor by copying the window into a
// new product.
func (p *Product) ExtractRegion(box types.PixelBox) (types.NativeProduct, error) {
	meta := p.Metadata()
	meta.Columns, meta.Rows = box.Width, box.Height

	var geo types.Geocoder
	if p.geocoder != nil {
		geo = geocode.Offset{Base: p.geocoder, DX: float64(box.UpperLeftX), DY: float64(box.UpperLeftY)}
	}
	out := New(p.name, meta, geo)
	for _, name := range p.order {
		if b := p.bands[name]; b.Auxiliary {
			r, err := p.ReadPixels(name, types.FullBox(b.Raster.Width, b.Raster.Height))
			if err != nil {
				return nil, err
			}
			info, _ := p.Field(name)
			if err := out.AddAuxiliary(info, r); err != nil {
				return nil, err
			}
			continue
		}
		r, err := p.ReadPixels(name, box)
		if err != nil {
			return nil, err
		}
		info, _ := p.Field(name)
		info.Shape = []int{box.Height, box.Width}
		if err := out.AddBand(info, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Opener serves pre-built products by path.
type Opener struct {
	Products map[string][]*Product
}

// Open returns the sub-products registered for path.
func (o *Opener) Open(path string) ([]types.NativeProduct, error) {
	ps, ok := o.Products[path]
	if !ok {
		return nil, errors.Errorf(errors.ErrCodeAdapterOpen, "no in-memory product at %s", path)
	}
	out := make([]types.NativeProduct, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out, nil
}
