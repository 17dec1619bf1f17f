// Package geocode implements pixel <-> geographic transforms for backends
// that do not bring their own: a regular affine grid and a per-pixel
// latitude/longitude lookup.
package geocode

import (
	"math"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// Affine maps pixels to a regular latitude/longitude grid:
// lon = OriginLon + x*StepLon, lat = OriginLat + y*StepLat.
// Width and Height bound the coverage of ToPixel; zero means unbounded.
type Affine struct {
	OriginLon float64
	OriginLat float64
	StepLon   float64
	StepLat   float64
	Width     int
	Height    int
}

// Identity returns an unbounded affine geocoding with x = lon and y = lat.
func Identity() Affine {
	return Affine{StepLon: 1, StepLat: 1}
}

// ToPixel implements types.Geocoder.
func (a Affine) ToPixel(lat, lon float64) (float64, float64, error) {
	if a.StepLon == 0 || a.StepLat == 0 {
		return 0, 0, errors.NewError(errors.ErrCodeGeometryInvalid, "affine geocoding has zero step")
	}
	x := (lon - a.OriginLon) / a.StepLon
	y := (lat - a.OriginLat) / a.StepLat
	if !inside(x, y, a.Width, a.Height) {
		return 0, 0, outOfCoverage(lat, lon)
	}
	return x, y, nil
}

// ToLatLon implements types.Geocoder. Positions beyond the grid are
// extrapolated.
func (a Affine) ToLatLon(x, y float64) (float64, float64, error) {
	return a.OriginLat + y*a.StepLat, a.OriginLon + x*a.StepLon, nil
}

// Offset exposes a window of a larger geocoding: pixel (0, 0) of the window is
// pixel (DX, DY) of Base.
type Offset struct {
	Base types.Geocoder
	DX   float64
	DY   float64
}

// ToPixel implements types.Geocoder.
func (o Offset) ToPixel(lat, lon float64) (float64, float64, error) {
	x, y, err := o.Base.ToPixel(lat, lon)
	if err != nil {
		return 0, 0, err
	}
	return x - o.DX, y - o.DY, nil
}

// ToLatLon implements types.Geocoder.
func (o Offset) ToLatLon(x, y float64) (float64, float64, error) {
	return o.Base.ToLatLon(x+o.DX, y+o.DY)
}

func inside(x, y float64, width, height int) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	if width > 0 && (x < -0.5 || x >= float64(width)-0.5) {
		return false
	}
	if height > 0 && (y < -0.5 || y >= float64(height)-0.5) {
		return false
	}
	return true
}

func outOfCoverage(lat, lon float64) *errors.ProductError {
	return errors.Errorf(errors.ErrCodeGeometryOutOfCoverage,
		"position lat=%.6f lon=%.6f is outside the product coverage", lat, lon).
		WithComponent("geocode").
		WithDetail("lat", lat).
		WithDetail("lon", lon)
}
