package geocode

import (
	"math"

	"github.com/eoprod/eoprod/pkg/errors"
)

// Pixel geocodes through per-pixel latitude and longitude grids, as shipped
// with swath products. Grids are row-major width x height.
type Pixel struct {
	width  int
	height int
	lat    []float64
	lon    []float64
	stride int
}

// NewPixel builds a lookup geocoding from latitude/longitude grids.
func NewPixel(width, height int, lat, lon []float64) (*Pixel, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf(errors.ErrCodeGeometryInvalid, "invalid grid size %dx%d", width, height).
			WithComponent("geocode")
	}
	if len(lat) != width*height || len(lon) != width*height {
		return nil, errors.Errorf(errors.ErrCodeGeometryInvalid,
			"grid length mismatch: lat=%d lon=%d want %d", len(lat), len(lon), width*height).
			WithComponent("geocode")
	}
	stride := min(width, height) / 64
	if stride < 1 {
		stride = 1
	}
	return &Pixel{width: width, height: height, lat: lat, lon: lon, stride: stride}, nil
}

// ToLatLon interpolates the grids bilinearly. Positions beyond the grid are
// extrapolated from the edge cells.
func (g *Pixel) ToLatLon(x, y float64) (float64, float64, error) {
	x0, fx := cell(x, g.width)
	y0, fy := cell(y, g.height)
	x1, y1 := min(x0+1, g.width-1), min(y0+1, g.height-1)

	i00, i10 := y0*g.width+x0, y0*g.width+x1
	i01, i11 := y1*g.width+x0, y1*g.width+x1

	lat := bilinear(g.lat[i00], g.lat[i10], g.lat[i01], g.lat[i11], fx, fy)

	ref := g.lon[i00]
	lon := ref + bilinear(0,
		wrap(g.lon[i10]-ref), wrap(g.lon[i01]-ref), wrap(g.lon[i11]-ref), fx, fy)
	return lat, wrap(lon), nil
}

// ToPixel finds the nearest grid node and refines it to sub-pixel precision
// with Newton steps on the bilinear model.
func (g *Pixel) ToPixel(lat, lon float64) (float64, float64, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, outOfCoverage(lat, lon)
	}
	coslat := math.Cos(lat * math.Pi / 180)

	bx, by := 0, 0
	best := math.Inf(1)
	for y := 0; y < g.height; y += g.stride {
		for x := 0; x < g.width; x += g.stride {
			if d := g.dist2(x, y, lat, lon, coslat); d < best {
				best, bx, by = d, x, y
			}
		}
	}

	// Descend to the nearest node at full resolution.
	for {
		moved := false
		for dy := -g.stride; dy <= g.stride; dy++ {
			for dx := -g.stride; dx <= g.stride; dx++ {
				x, y := bx+dx, by+dy
				if x < 0 || y < 0 || x >= g.width || y >= g.height {
					continue
				}
				if d := g.dist2(x, y, lat, lon, coslat); d < best {
					best, bx, by, moved = d, x, y, true
				}
			}
		}
		if !moved {
			break
		}
	}

	fx, fy := float64(bx), float64(by)
	for iter := 0; iter < 5; iter++ {
		la, lo, _ := g.ToLatLon(fx, fy)
		la1, lo1, _ := g.ToLatLon(fx+1, fy)
		la2, lo2, _ := g.ToLatLon(fx, fy+1)

		a, b := wrap(lo1-lo)*coslat, wrap(lo2-lo)*coslat
		c, d := la1-la, la2-la
		det := a*d - b*c
		if det == 0 {
			break
		}
		ex, ey := wrap(lon-lo)*coslat, lat-la
		sx := (d*ex - b*ey) / det
		sy := (a*ey - c*ex) / det
		fx, fy = fx+sx, fy+sy
		if math.Abs(sx) < 1e-6 && math.Abs(sy) < 1e-6 {
			break
		}
	}

	if !inside(fx, fy, g.width, g.height) {
		return 0, 0, outOfCoverage(lat, lon)
	}
	// Reject positions much farther from the grid than one pixel.
	if best > 4*g.pixelSize2(bx, by, coslat) {
		return 0, 0, outOfCoverage(lat, lon)
	}
	return fx, fy, nil
}

func (g *Pixel) dist2(x, y int, lat, lon, coslat float64) float64 {
	i := y*g.width + x
	dlat := g.lat[i] - lat
	dlon := wrap(g.lon[i]-lon) * coslat
	return dlat*dlat + dlon*dlon
}

// pixelSize2 is the squared diagonal of the cell at (x, y) in scaled degrees.
func (g *Pixel) pixelSize2(x, y int, coslat float64) float64 {
	x1, y1 := min(x+1, g.width-1), min(y+1, g.height-1)
	if x1 == x && x > 0 {
		x1 = x - 1
	}
	if y1 == y && y > 0 {
		y1 = y - 1
	}
	i, j := y*g.width+x, y1*g.width+x1
	dlat := g.lat[j] - g.lat[i]
	dlon := wrap(g.lon[j]-g.lon[i]) * coslat
	return dlat*dlat + dlon*dlon
}

// cell returns the lower node index for interpolation and the fractional
// offset from it, which falls outside [0, 1] when extrapolating.
func cell(v float64, n int) (int, float64) {
	if n == 1 {
		return 0, 0
	}
	i := int(math.Floor(v))
	i = max(0, min(i, n-2))
	return i, v - float64(i)
}

func bilinear(v00, v10, v01, v11, fx, fy float64) float64 {
	top := v00 + (v10-v00)*fx
	bottom := v01 + (v11-v01)*fx
	return top + (bottom-top)*fy
}

// wrap normalizes a longitude or longitude difference to [-180, 180).
func wrap(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
