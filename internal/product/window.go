package product

import (
	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// Window is a sub-product restricted to a pixel box. It either borrows the
// source handle or owns a handle the backend extracted for it; Close only
// releases what the window owns. An optional mask hides pixels outside a
// polygon.
type Window struct {
	base  types.NativeProduct
	box   types.PixelBox
	mask  *types.RegionMask
	owned bool
}

// NewWindow returns a view of src restricted to box, which must lie inside
// the raster. Backends implementing types.RegionExtractor materialize the
// window themselves.
func NewWindow(src types.NativeProduct, box types.PixelBox, mask *types.RegionMask) (*Window, error) {
	if mask != nil && (mask.Width != box.Width || mask.Height != box.Height) {
		return nil, errors.Errorf(errors.ErrCodeGeometryInvalid,
			"mask is %dx%d for a %dx%d window", mask.Width, mask.Height, box.Width, box.Height)
	}
	if ex, ok := src.(types.RegionExtractor); ok {
		h, err := ex.ExtractRegion(box)
		if err != nil {
			return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
				"cannot extract %s from %s", box, src.Name()).WithCause(err).WithComponent("window")
		}
		return &Window{base: h, box: types.FullBox(box.Width, box.Height), mask: mask, owned: true}, nil
	}
	return &Window{base: src, box: box, mask: mask}, nil
}

// Owned reports whether Close releases the underlying handle.
func (w *Window) Owned() bool { return w.owned }

// Box returns the window in the coordinates of the underlying handle.
func (w *Window) Box() types.PixelBox { return w.box }

// Name implements types.NativeProduct.
func (w *Window) Name() string { return w.base.Name() }

// FieldNames implements types.NativeProduct.
func (w *Window) FieldNames() []string { return w.base.FieldNames() }

// Field implements types.NativeProduct. Raster-shaped fields report the
// window size.
func (w *Window) Field(name string) (types.FieldInfo, error) {
	info, err := w.base.Field(name)
	if err != nil {
		return info, err
	}
	meta := w.base.Metadata()
	if len(info.Shape) == 2 && info.Shape[0] == meta.Rows && info.Shape[1] == meta.Columns {
		info.Shape = []int{w.box.Height, w.box.Width}
	}
	return info, nil
}

// Unit implements types.NativeProduct.
func (w *Window) Unit(field string) string { return w.base.Unit(field) }

// ReadPixels implements types.NativeProduct. box is relative to the window.
func (w *Window) ReadPixels(field string, box types.PixelBox) (*types.Raster, error) {
	if box.Width < 1 || box.Height < 1 || box.UpperLeftX < 0 || box.UpperLeftY < 0 ||
		box.LowerRightX() >= w.box.Width || box.LowerRightY() >= w.box.Height {
		return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
			"window %s outside %dx%d subset", box, w.box.Width, w.box.Height).WithComponent("window")
	}
	abs := box
	abs.UpperLeftX += w.box.UpperLeftX
	abs.UpperLeftY += w.box.UpperLeftY
	abs.CenterX += w.box.UpperLeftX
	abs.CenterY += w.box.UpperLeftY

	r, err := w.base.ReadPixels(field, abs)
	if err != nil {
		return nil, err
	}
	if w.mask != nil {
		if err := r.ApplyMask(w.mask.Crop(box.UpperLeftX, box.UpperLeftY, box.Width, box.Height)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Geocoding implements types.NativeProduct.
func (w *Window) Geocoding() (types.Geocoder, error) {
	g, err := w.base.Geocoding()
	if err != nil || w.owned {
		return g, err
	}
	return geocode.Offset{Base: g, DX: float64(w.box.UpperLeftX), DY: float64(w.box.UpperLeftY)}, nil
}

// Metadata implements types.NativeProduct.
func (w *Window) Metadata() types.Metadata {
	m := w.base.Metadata()
	m.Columns, m.Rows = w.box.Width, w.box.Height
	return m
}

// Close implements types.NativeProduct.
func (w *Window) Close() error {
	if !w.owned {
		return nil
	}
	return w.base.Close()
}
