// Package subset reduces geographic requests to pixel windows and region
// masks, and derives subset products from them.
package subset

import (
	"math"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// Sampling estimates the local pixel pitch in meters at (x, y): the distance
// from the pixel to its right and lower neighbours. It assumes the pitch is
// uniform near (x, y).
func Sampling(geo types.Geocoder, geod types.Geodesic, x, y float64) (dx, dy float64, err error) {
	lat, lon, err := geo.ToLatLon(x, y)
	if err != nil {
		return 0, 0, err
	}
	latX, lonX, err := geo.ToLatLon(x+1, y)
	if err != nil {
		return 0, 0, err
	}
	latY, lonY, err := geo.ToLatLon(x, y+1)
	if err != nil {
		return 0, 0, err
	}

	center := types.Position{Lon: lon, Lat: lat}
	dx = geod.Distance(center, types.Position{Lon: lonX, Lat: latX})
	dy = geod.Distance(center, types.Position{Lon: lonY, Lat: latY})
	if dx <= 0 || dy <= 0 || math.IsNaN(dx) || math.IsNaN(dy) {
		return 0, 0, errors.Errorf(errors.ErrCodeGeometryInvalid,
			"degenerate sampling %gx%g m at pixel (%g, %g)", dx, dy, x, y).WithComponent("subset")
	}
	return dx, dy, nil
}

// Pos2Pixs returns the pixel box of side sizeM meters around pos. The center
// is the pixel holding pos and the box spans 2n+1 pixels per axis, so it is
// at least one pixel wide. n is capped at maxHalfExtent.
func Pos2Pixs(geo types.Geocoder, geod types.Geodesic, pos types.Position, sizeM float64) (types.PixelBox, error) {
	if sizeM < 0 || math.IsNaN(sizeM) || math.IsInf(sizeM, 0) {
		return types.PixelBox{}, errors.Errorf(errors.ErrCodeGeometryInvalid, "invalid size %g m", sizeM).
			WithComponent("subset")
	}
	fx, fy, err := geo.ToPixel(pos.Lat, pos.Lon)
	if err != nil {
		return types.PixelBox{}, err
	}
	dx, dy, err := Sampling(geo, geod, fx, fy)
	if err != nil {
		return types.PixelBox{}, err
	}

	nx := halfExtent(sizeM, dx)
	ny := halfExtent(sizeM, dy)
	cx, cy := int(math.Floor(fx)), int(math.Floor(fy))

	return types.PixelBox{
		UpperLeftX: cx - nx,
		UpperLeftY: cy - ny,
		Width:      2*nx + 1,
		Height:     2*ny + 1,
		CenterX:    cx,
		CenterY:    cy,
	}, nil
}

// maxHalfExtent bounds the half-width of a position box, in pixels. It is
// far beyond any raster, so clipping gives the same window.
const maxHalfExtent = 1 << 24

func halfExtent(sizeM, step float64) int {
	return int(math.Min(math.Floor(sizeM/2/step), maxHalfExtent))
}

// WKT2Pixs projects polygon vertices to pixels and returns their bounding
// box together with the polygon mask over that box. Boundary pixels are
// inside the mask.
func WKT2Pixs(geo types.Geocoder, vertices []types.Position) (types.PixelBox, *types.RegionMask, error) {
	if len(vertices) < 3 {
		return types.PixelBox{}, nil, errors.Errorf(errors.ErrCodeGeometryInvalid,
			"polygon needs at least 3 vertices, got %d", len(vertices)).WithComponent("subset")
	}

	pts := make([]point, len(vertices))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, v := range vertices {
		x, y, err := geo.ToPixel(v.Lat, v.Lon)
		if err != nil {
			return types.PixelBox{}, nil, err
		}
		pts[i] = point{x, y}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	box := types.PixelBox{
		UpperLeftX: x0,
		UpperLeftY: y0,
		Width:      int(math.Floor(maxX)) - x0 + 1,
		Height:     int(math.Floor(maxY)) - y0 + 1,
	}
	box.CenterX = x0 + box.Width/2
	box.CenterY = y0 + box.Height/2

	for i := range pts {
		pts[i].x -= float64(x0)
		pts[i].y -= float64(y0)
	}
	return box, Rasterize(pts, box.Width, box.Height), nil
}
