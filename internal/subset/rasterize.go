package subset

import (
	"math"
	"slices"

	"github.com/eoprod/eoprod/pkg/types"
)

type point struct {
	x, y float64
}

// Rasterize fills a polygon given in box-local pixel coordinates. Pixel (i, j)
// is the integer point (i, j). Rows are filled with an even-odd scan-line
// pass, then every edge is traced so boundary pixels are always set.
func Rasterize(pts []point, width, height int) *types.RegionMask {
	mask := types.NewRegionMask(width, height)
	n := len(pts)
	if n == 0 {
		return mask
	}

	xs := make([]float64, 0, n)
	for row := 0; row < height; row++ {
		y := float64(row)
		xs = xs[:0]
		for i := 0; i < n; i++ {
			a, b := pts[i], pts[(i+1)%n]
			if a.y == b.y {
				continue
			}
			lo, hi := a, b
			if lo.y > hi.y {
				lo, hi = hi, lo
			}
			// Half-open in y so shared vertices count once.
			if y < lo.y || y >= hi.y {
				continue
			}
			xs = append(xs, lo.x+(y-lo.y)*(hi.x-lo.x)/(hi.y-lo.y))
		}
		slices.Sort(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			from := max(int(math.Ceil(xs[k]-1e-9)), 0)
			to := min(int(math.Floor(xs[k+1]+1e-9)), width-1)
			for x := from; x <= to; x++ {
				mask.Set(x, row, true)
			}
		}
	}

	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		line(mask, round(a.x), round(a.y), round(b.x), round(b.y))
	}
	return mask
}

// line sets the pixels of a Bresenham segment; pixels outside the mask are
// ignored.
func line(m *types.RegionMask, x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		m.Set(x0, y0, true)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func round(v float64) int { return int(math.Floor(v + 0.5)) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
