package collocate

import (
	"math"

	"github.com/eoprod/eoprod/internal/backend/memory"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// GridCollocator resamples through the geocodings of both products. Every
// master pixel center is mapped to slave pixel coordinates and the slave
// raster is sampled there. Slave fields off the raster grid, such as
// per-detector tables, are copied unchanged; master fields are added under
// their renamed names.
type GridCollocator struct{}

type sample struct {
	x, y float64
	ok   bool
}

// Collocate implements types.Collocator.
func (GridCollocator) Collocate(master, slave types.NativeProduct, method types.ResamplingMethod,
	rules types.RenameRules) (types.NativeProduct, error) {
	var sampler func(r *types.Raster, s sample) (float64, bool)
	switch method {
	case types.NearestNeighbour:
		sampler = nearest
	case types.BilinearInterpolation:
		sampler = bilinear
	default:
		return nil, errors.Errorf(errors.ErrCodeResamplingUnsupported,
			"grid collocation does not implement %s", method).
			WithComponent("collocate").
			WithDetail("supported", []types.ResamplingMethod{types.NearestNeighbour, types.BilinearInterpolation})
	}

	masterGeo, err := master.Geocoding()
	if err != nil {
		return nil, err
	}
	slaveGeo, err := slave.Geocoding()
	if err != nil {
		return nil, err
	}

	mm, sm := master.Metadata(), slave.Metadata()
	grid := make([]sample, mm.Columns*mm.Rows)
	for y := 0; y < mm.Rows; y++ {
		for x := 0; x < mm.Columns; x++ {
			lat, lon, err := masterGeo.ToLatLon(float64(x), float64(y))
			if err != nil {
				continue
			}
			sx, sy, err := slaveGeo.ToPixel(lat, lon)
			if err != nil {
				continue
			}
			grid[y*mm.Columns+x] = sample{x: sx, y: sy, ok: true}
		}
	}

	meta := sm
	meta.Columns, meta.Rows = mm.Columns, mm.Rows
	out := memory.New(slave.Name(), meta, masterGeo)

	for _, name := range slave.FieldNames() {
		info, err := slave.Field(name)
		if err != nil {
			return nil, err
		}
		if !rasterShaped(info, sm) {
			if err := passThrough(out, slave, name, info, rules.SlaveName(name)); err != nil {
				return nil, err
			}
			continue
		}
		src, err := slave.ReadPixels(name, types.FullBox(sm.Columns, sm.Rows))
		if err != nil {
			return nil, err
		}
		dst := types.NewRaster(mm.Columns, mm.Rows)
		for i, s := range grid {
			x, y := i%mm.Columns, i/mm.Columns
			if v, ok := sampler(src, s); ok {
				dst.Set(x, y, v)
			} else {
				dst.Invalidate(x, y)
			}
		}
		info.Name = rules.SlaveName(name)
		info.Shape = nil
		if err := out.AddBand(info, dst); err != nil {
			return nil, err
		}
	}

	for _, name := range master.FieldNames() {
		info, err := master.Field(name)
		if err != nil {
			return nil, err
		}
		renamed := rules.MasterName(name)
		if !rasterShaped(info, mm) || out.Has(renamed) {
			continue
		}
		r, err := master.ReadPixels(name, types.FullBox(mm.Columns, mm.Rows))
		if err != nil {
			return nil, err
		}
		info.Name = renamed
		info.Shape = nil
		if err := out.AddBand(info, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// passThrough copies a 1-D or 2-D field that does not follow the raster grid.
// Fields of other ranks are not carried.
func passThrough(out *memory.Product, src types.NativeProduct, name string, info types.FieldInfo, renamed string) error {
	var box types.PixelBox
	switch len(info.Shape) {
	case 1:
		box = types.FullBox(1, info.Shape[0])
	case 2:
		box = types.FullBox(info.Shape[1], info.Shape[0])
	default:
		return nil
	}
	if box.Width < 1 || box.Height < 1 {
		return nil
	}
	r, err := src.ReadPixels(name, box)
	if err != nil {
		return err
	}
	info.Name = renamed
	return out.AddAuxiliary(info, r)
}

func rasterShaped(info types.FieldInfo, m types.Metadata) bool {
	return len(info.Shape) == 2 && info.Shape[0] == m.Rows && info.Shape[1] == m.Columns
}

func nearest(r *types.Raster, s sample) (float64, bool) {
	if !s.ok {
		return 0, false
	}
	return r.At(int(math.Floor(s.x+0.5)), int(math.Floor(s.y+0.5)))
}

// bilinear weights the valid neighbours of s. Outside the raster it falls
// back to the nearest pixel.
func bilinear(r *types.Raster, s sample) (float64, bool) {
	if !s.ok {
		return 0, false
	}
	x0, y0 := int(math.Floor(s.x)), int(math.Floor(s.y))
	fx, fy := s.x-float64(x0), s.y-float64(y0)

	var sum, weight float64
	for dy := 0; dy <= 1; dy++ {
		for dx := 0; dx <= 1; dx++ {
			v, ok := r.At(x0+dx, y0+dy)
			if !ok {
				continue
			}
			w := (1 - math.Abs(float64(dx)-fx)) * (1 - math.Abs(float64(dy)-fy))
			sum += w * v
			weight += w
		}
	}
	if weight <= 0 {
		return nearest(r, s)
	}
	return sum / weight, true
}
