// Package geodesy provides great-circle distances and WKT polygon helpers on
// top of github.com/paulmach/orb.
package geodesy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// Haversine measures great-circle distances on a sphere of radius
// orb.EarthRadius (6378137 m).
type Haversine struct{}

// Distance implements types.Geodesic.
func (Haversine) Distance(a, b types.Position) float64 {
	return geo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}

// ParseWKT parses a WKT polygon into its outer ring vertices. The closing
// vertex is dropped when it repeats the first one.
func ParseWKT(s string) ([]types.Position, error) {
	poly, err := wkt.UnmarshalPolygon(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Errorf(errors.ErrCodeGeometryMalformedWKT, "cannot parse polygon %q", s).
			WithCause(err).
			WithComponent("geodesy")
	}
	if len(poly) == 0 {
		return nil, errors.Errorf(errors.ErrCodeGeometryMalformedWKT, "polygon %q has no ring", s).
			WithComponent("geodesy")
	}

	ring := poly[0]
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return nil, errors.Errorf(errors.ErrCodeGeometryMalformedWKT,
			"polygon needs at least 3 distinct vertices, got %d", len(ring)).
			WithComponent("geodesy")
	}

	out := make([]types.Position, len(ring))
	for i, p := range ring {
		out[i] = types.Position{Lon: p.Lon(), Lat: p.Lat()}
	}
	return out, nil
}

// FormatWKT renders vertices as a closed WKT polygon.
func FormatWKT(vertices []types.Position) string {
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.Lon, v.Lat})
	}
	if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return wkt.MarshalString(orb.Polygon{ring})
}

// Pos2WKT returns the square of side sizeM meters centred on pos as a WKT
// polygon. Corners lie at bearings 45, 135, 225 and 315 degrees.
func Pos2WKT(pos types.Position, sizeM float64) string {
	return FormatWKT(Square(pos, sizeM))
}

// Square returns the corners of the square of side sizeM centred on pos.
func Square(pos types.Position, sizeM float64) []types.Position {
	half := math.Sqrt(sizeM * sizeM / 2)
	center := orb.Point{pos.Lon, pos.Lat}

	corners := make([]types.Position, 4)
	for k := range corners {
		p := geo.PointAtBearingAndDistance(center, 45+float64(k)*90, half)
		corners[k] = types.Position{Lon: p.Lon(), Lat: p.Lat()}
	}
	return corners
}

// FormatPosition renders a point request as "lon,lat,size".
func FormatPosition(pos types.Position, sizeM float64) string {
	return fmt.Sprintf("%s,%s,%s",
		strconv.FormatFloat(pos.Lon, 'g', -1, 64),
		strconv.FormatFloat(pos.Lat, 'g', -1, 64),
		strconv.FormatFloat(sizeM, 'g', -1, 64))
}
