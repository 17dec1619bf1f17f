package subset

import (
	stderrors "errors"
	"time"

	"github.com/eoprod/eoprod/internal/geodesy"
	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Request selects a region either by a point and square size or by a WKT
// polygon.
type Request struct {
	Position *types.Position
	SizeM    float64
	WKT      string
}

// PositionRequest builds a point request.
func PositionRequest(lon, lat, sizeM float64) Request {
	return Request{Position: &types.Position{Lon: lon, Lat: lat}, SizeM: sizeM}
}

// PolygonRequest builds a polygon request.
func PolygonRequest(wkt string) Request {
	return Request{WKT: wkt}
}

func (r Request) validate() error {
	if (r.Position == nil) == (r.WKT == "") {
		return errors.NewError(errors.ErrCodeGeometryInvalid, "request needs exactly one of a position or a polygon").
			WithComponent("subset")
	}
	return nil
}

func (r Request) entry() product.ProcessingEntry {
	if r.Position != nil {
		return product.NewEntry("subset", "pos", geodesy.FormatPosition(*r.Position, r.SizeM))
	}
	return product.NewEntry("subset", "wkt", r.WKT)
}

// Region is the resolved window of one sub-product.
type Region struct {
	SubProduct string
	Box        types.PixelBox
	Mask       *types.RegionMask
}

// Engine derives subset products.
type Engine struct {
	Geodesic types.Geodesic
	// Clip intersects boxes with the raster; otherwise a box crossing the
	// raster edge is an error.
	Clip    bool
	Logger  *utils.Logger
	Metrics types.MetricsCollector
}

// NewEngine returns an engine using haversine distances and clipping.
func NewEngine(logger *utils.Logger, metrics types.MetricsCollector) *Engine {
	return &Engine{
		Geodesic: geodesy.Haversine{},
		Clip:     true,
		Logger:   logger.OrNop().WithComponent("subset"),
		Metrics:  metrics,
	}
}

// Regions resolves the request on every sub-product of agg without
// extracting anything.
func (e *Engine) Regions(agg *product.Aggregate, req Request) ([]Region, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var vertices []types.Position
	if req.WKT != "" {
		var err error
		if vertices, err = geodesy.ParseWKT(req.WKT); err != nil {
			return nil, err
		}
	}

	subs := agg.SubProducts()
	regions := make([]Region, 0, len(subs))
	for _, sub := range subs {
		geo, err := sub.Handle.Geocoding()
		if err != nil {
			return nil, err
		}

		var (
			box  types.PixelBox
			mask *types.RegionMask
		)
		if req.Position != nil {
			box, err = Pos2Pixs(geo, e.geodesic(), *req.Position, req.SizeM)
		} else {
			box, mask, err = WKT2Pixs(geo, vertices)
		}
		if err != nil {
			return nil, err
		}

		meta := sub.Handle.Metadata()
		clipped, ok := box.Clip(meta.Columns, meta.Rows)
		if !ok {
			return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
				"window %s does not intersect the %dx%d raster of %s", box, meta.Columns, meta.Rows, sub.Name).
				WithComponent("subset")
		}
		if clipped != box {
			if !e.Clip {
				return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
					"window %s exceeds the %dx%d raster of %s", box, meta.Columns, meta.Rows, sub.Name).
					WithComponent("subset")
			}
			if mask != nil {
				mask = mask.Crop(clipped.UpperLeftX-box.UpperLeftX, clipped.UpperLeftY-box.UpperLeftY,
					clipped.Width, clipped.Height)
			}
		}
		regions = append(regions, Region{SubProduct: sub.Name, Box: clipped, Mask: mask})
	}
	return regions, nil
}

// Subset derives the product restricted to the requested region. The source
// aggregate is left untouched and must stay open while the subset is used.
func (e *Engine) Subset(agg *product.Aggregate, req Request) (out *product.Aggregate, err error) {
	start := time.Now()
	log := e.Logger.OrNop()
	defer func() {
		if e.Metrics != nil {
			e.Metrics.RecordOperation("subset", time.Since(start), err == nil)
			if err != nil {
				e.Metrics.RecordError("subset", err)
			}
		}
		if err != nil {
			log.Warnw("Subset failed", "error", err)
		}
	}()

	regions, err := e.Regions(agg, req)
	if err != nil {
		return nil, err
	}

	subs := agg.SubProducts()
	handles := make([]types.NativeProduct, 0, len(subs))
	release := func() error {
		var errs []error
		for _, h := range handles {
			if cerr := h.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		return stderrors.Join(errs...)
	}
	for i, sub := range subs {
		w, werr := product.NewWindow(sub.Handle, regions[i].Box, regions[i].Mask)
		if werr != nil {
			return nil, stderrors.Join(werr, release())
		}
		handles = append(handles, w)
	}

	first := regions[0]
	src := agg.Attributes()
	var step time.Duration
	if scope, ok := src.Scope(first.SubProduct); ok {
		step = taxonomy.RowInterval(src.StartTime, src.EndTime, scope.Rows)
	}
	out, err = agg.Derive(handles, req.entry(), func(a *product.Attributes) error {
		shiftTimes(a, first.Box, step)
		return nil
	})
	if err != nil {
		return nil, stderrors.Join(err, release())
	}

	log.Debugw("Subset product",
		"product", agg.Attributes().ProductName,
		"box", first.Box.String(),
		"masked", first.Mask != nil)
	return out, nil
}

// shiftTimes moves the acquisition window to the rows kept by box, given the
// source time step per row.
func shiftTimes(a *product.Attributes, box types.PixelBox, step time.Duration) {
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return
	}
	a.StartTime = a.StartTime.Add(time.Duration(box.UpperLeftY) * step)
	a.EndTime = a.StartTime.Add(time.Duration(box.Height-1) * step)
}

func (e *Engine) geodesic() types.Geodesic {
	if e.Geodesic == nil {
		return geodesy.Haversine{}
	}
	return e.Geodesic
}
