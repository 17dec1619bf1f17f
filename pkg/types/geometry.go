package types

import "fmt"

// Position is a geographic location in degrees.
type Position struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// PixelBox is an integer pixel window in raster coordinates.
type PixelBox struct {
	UpperLeftX int `json:"upper_left_x"`
	UpperLeftY int `json:"upper_left_y"`
	Width      int `json:"width"`
	Height     int `json:"height"`
	CenterX    int `json:"center_x"`
	CenterY    int `json:"center_y"`
}

// FullBox returns the box covering a whole width x height raster.
func FullBox(width, height int) PixelBox {
	return PixelBox{Width: width, Height: height, CenterX: width / 2, CenterY: height / 2}
}

// LowerRightX is the last column inside the box.
func (b PixelBox) LowerRightX() int { return b.UpperLeftX + b.Width - 1 }

// LowerRightY is the last row inside the box.
func (b PixelBox) LowerRightY() int { return b.UpperLeftY + b.Height - 1 }

// Contains reports whether pixel (x, y) lies inside the box.
func (b PixelBox) Contains(x, y int) bool {
	return x >= b.UpperLeftX && x <= b.LowerRightX() && y >= b.UpperLeftY && y <= b.LowerRightY()
}

// Clip intersects the box with a width x height raster. The center is clamped
// into the clipped window. ok is false when the intersection is empty.
func (b PixelBox) Clip(width, height int) (PixelBox, bool) {
	x0, y0 := max(b.UpperLeftX, 0), max(b.UpperLeftY, 0)
	x1, y1 := min(b.LowerRightX(), width-1), min(b.LowerRightY(), height-1)
	if x1 < x0 || y1 < y0 {
		return PixelBox{}, false
	}
	return PixelBox{
		UpperLeftX: x0,
		UpperLeftY: y0,
		Width:      x1 - x0 + 1,
		Height:     y1 - y0 + 1,
		CenterX:    min(max(b.CenterX, x0), x1),
		CenterY:    min(max(b.CenterY, y0), y1),
	}, true
}

// String renders the box as (x, y, width, height, cx, cy).
func (b PixelBox) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d, %d, %d)",
		b.UpperLeftX, b.UpperLeftY, b.Width, b.Height, b.CenterX, b.CenterY)
}

// RegionMask is a row-major boolean raster aligned with a PixelBox.
type RegionMask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewRegionMask allocates an all-false mask.
func NewRegionMask(width, height int) *RegionMask {
	return &RegionMask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// At returns the mask value at (x, y); out-of-range reads are false.
func (m *RegionMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set writes the mask value at (x, y); out-of-range writes are ignored.
func (m *RegionMask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of true pixels.
func (m *RegionMask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Crop returns the sub-mask starting at (x0, y0) with the given size.
func (m *RegionMask) Crop(x0, y0, width, height int) *RegionMask {
	out := NewRegionMask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Pix[y*width+x] = m.At(x0+x, y0+y)
		}
	}
	return out
}

// Clone returns a deep copy of m.
func (m *RegionMask) Clone() *RegionMask {
	if m == nil {
		return nil
	}
	return &RegionMask{Width: m.Width, Height: m.Height, Pix: append([]bool(nil), m.Pix...)}
}
