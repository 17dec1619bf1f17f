package types

import "fmt"

// Raster holds decoded pixel values and the backend's validity mask.
type Raster struct {
	Width  int
	Height int
	Values []float64
	Valid  []bool
}

// NewRaster allocates a raster whose pixels are all zero and valid.
func NewRaster(width, height int) *Raster {
	r := &Raster{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
		Valid:  make([]bool, width*height),
	}
	for i := range r.Valid {
		r.Valid[i] = true
	}
	return r
}

// At returns the value at (x, y) and whether it is valid.
func (r *Raster) At(x, y int) (float64, bool) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return 0, false
	}
	i := y*r.Width + x
	return r.Values[i], r.Valid[i]
}

// Set stores a valid value at (x, y).
func (r *Raster) Set(x, y int, v float64) {
	i := y*r.Width + x
	r.Values[i] = v
	r.Valid[i] = true
}

// Invalidate marks (x, y) as not valid.
func (r *Raster) Invalidate(x, y int) {
	r.Valid[y*r.Width+x] = false
}

// ApplyMask intersects the validity mask with m using logical AND.
func (r *Raster) ApplyMask(m *RegionMask) error {
	if m == nil {
		return nil
	}
	if m.Width != r.Width || m.Height != r.Height {
		return fmt.Errorf("mask size %dx%d does not match raster size %dx%d",
			m.Width, m.Height, r.Width, r.Height)
	}
	for i, inside := range m.Pix {
		r.Valid[i] = r.Valid[i] && inside
	}
	return nil
}

// ValidCount returns the number of valid pixels.
func (r *Raster) ValidCount() int {
	n := 0
	for _, v := range r.Valid {
		if v {
			n++
		}
	}
	return n
}

// SizeBytes approximates the memory held by the raster.
func (r *Raster) SizeBytes() int64 {
	return int64(len(r.Values))*8 + int64(len(r.Valid))
}
