package sen3

import (
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/eoprod/eoprod/internal/cache"
	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

type fieldKind int

const (
	kindFull fieldKind = iota
	kindTie
	kindCoarse
	kindDetector
)

// field locates a native field inside the product directory.
type field struct {
	file     string
	variable string
	kind     fieldKind
	factor   int
	// plane selects one slice of the last dimension of a 3-D variable, or
	// -1 for 2-D variables. Detector fields use it as the band row of a
	// table with planes detectors.
	plane  int
	planes int
	// index names the detector index field of a detector table field.
	index string
	info  types.FieldInfo
	scale scaling
}

// Product is one grid of an opened SEN3 directory.
type Product struct {
	grid   Grid
	meta   types.Metadata
	order  []string
	fields map[string]*field
	tieAC  int
	tieAL  int
	reader *reader

	geoOnce sync.Once
	geo     types.Geocoder
	geoErr  error
	closed  bool
}

// Name implements types.NativeProduct.
func (p *Product) Name() string { return p.grid.Name }

// FieldNames implements types.NativeProduct.
func (p *Product) FieldNames() []string { return slices.Clone(p.order) }

// Field implements types.NativeProduct.
func (p *Product) Field(name string) (types.FieldInfo, error) {
	f, ok := p.fields[name]
	if !ok {
		return types.FieldInfo{}, errors.Errorf(errors.ErrCodeVariableNotFound, "no field %s in %s", name, p.grid.Name)
	}
	info := f.info
	info.Shape = slices.Clone(info.Shape)
	return info, nil
}

// Unit implements types.NativeProduct.
func (p *Product) Unit(name string) string {
	if f, ok := p.fields[name]; ok {
		return f.info.Units
	}
	return ""
}

// Metadata implements types.NativeProduct.
func (p *Product) Metadata() types.Metadata {
	m := p.meta
	m.Extra = maps.Clone(p.meta.Extra)
	return m
}

// ReadPixels implements types.NativeProduct. The whole field is decoded once
// and kept in the shared cache.
func (p *Product) ReadPixels(name string, box types.PixelBox) (*types.Raster, error) {
	if p.closed {
		return nil, errors.Errorf(errors.ErrCodeInvalidState, "product %s is closed", p.grid.Name)
	}
	f, ok := p.fields[name]
	if !ok {
		return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "no field %s in %s", name, p.grid.Name)
	}
	if box.Width < 1 || box.Height < 1 || box.UpperLeftX < 0 || box.UpperLeftY < 0 ||
		box.LowerRightX() >= p.meta.Columns || box.LowerRightY() >= p.meta.Rows {
		return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
			"window %s outside %dx%d raster", box, p.meta.Columns, p.meta.Rows).
			WithComponent("sen3")
	}

	full, err := p.decoded(name, f)
	if err != nil {
		return nil, err
	}
	return crop(full, box), nil
}

func (p *Product) decoded(name string, f *field) (*types.Raster, error) {
	key := cache.Key(f.file, name)
	if r := p.reader.cached(key); r != nil {
		return r, nil
	}

	width, height := p.meta.Columns, p.meta.Rows
	var r *types.Raster
	switch f.kind {
	case kindTie:
		tw, th := tieSize(width, p.tieAC), tieSize(height, p.tieAL)
		tie, err := p.reader.read(f, tw, th)
		if err != nil {
			return nil, err
		}
		r = upsample(tie, width, height, p.tieAC, p.tieAL)
	case kindCoarse:
		cw, ch := coarseSize(width, f.factor), coarseSize(height, f.factor)
		coarse, err := p.reader.read(f, cw, ch)
		if err != nil {
			return nil, err
		}
		r = replicate(coarse, width, height, f.factor)
	case kindDetector:
		var err error
		if r, err = p.detectorField(f); err != nil {
			return nil, err
		}
	default:
		var err error
		if r, err = p.reader.read(f, width, height); err != nil {
			return nil, err
		}
	}
	p.reader.store(key, r)
	return r, nil
}

// detectorField looks up the band row of f's table for every pixel's
// detector. Pixels without a valid detector index are invalid.
func (p *Product) detectorField(f *field) (*types.Raster, error) {
	idx, ok := p.fields[f.index]
	if !ok {
		return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "no detector index %s in %s", f.index, p.grid.Name).
			WithComponent("sen3")
	}
	detectors, err := p.decoded(f.index, idx)
	if err != nil {
		return nil, err
	}
	table, _, err := p.reader.values(f.file, f.variable)
	if err != nil {
		return nil, err
	}
	if len(table) < (f.plane+1)*f.planes {
		return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
			"%s has %d values, want band %d of %d detectors", f.variable, len(table), f.plane+1, f.planes).
			WithComponent("sen3")
	}
	row := table[f.plane*f.planes : (f.plane+1)*f.planes]

	raw := make([]float64, len(detectors.Values))
	for i, d := range detectors.Values {
		if !detectors.Valid[i] || d < 0 || int(d) >= len(row) {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = row[int(d)]
	}
	return f.scale.decode(raw, detectors.Width, detectors.Height), nil
}

// Geocoding implements types.NativeProduct from the grid's latitude and
// longitude fields.
func (p *Product) Geocoding() (types.Geocoder, error) {
	p.geoOnce.Do(func() {
		full := types.FullBox(p.meta.Columns, p.meta.Rows)
		lat, err := p.ReadPixels(p.grid.Latitude, full)
		if err != nil {
			p.geoErr = err
			return
		}
		lon, err := p.ReadPixels(p.grid.Longitude, full)
		if err != nil {
			p.geoErr = err
			return
		}
		geo, err := geocode.NewPixel(p.meta.Columns, p.meta.Rows, lat.Values, lon.Values)
		if err != nil {
			p.geoErr = errors.NewError(errors.ErrCodeGeometryInvalid, "cannot build pixel geocoding").
				WithCause(err).WithComponent("sen3")
			return
		}
		p.geo = geo
	})
	return p.geo, p.geoErr
}

// Close implements types.NativeProduct. Cached rasters stay in the shared
// cache.
func (p *Product) Close() error {
	p.closed = true
	return nil
}

func crop(r *types.Raster, box types.PixelBox) *types.Raster {
	out := types.NewRaster(box.Width, box.Height)
	for y := 0; y < box.Height; y++ {
		src := (box.UpperLeftY+y)*r.Width + box.UpperLeftX
		copy(out.Values[y*box.Width:(y+1)*box.Width], r.Values[src:src+box.Width])
		copy(out.Valid[y*box.Width:(y+1)*box.Width], r.Valid[src:src+box.Width])
	}
	return out
}

// tieSize is the tie-point count covering n pixels at the given step.
func tieSize(n, step int) int {
	return (n-1)/step + 1
}

func coarseSize(n, factor int) int {
	return (n + factor - 1) / factor
}
