package types

import "time"

// NativeProduct is one opened sub-product as exposed by a raster backend.
// Handles are single-owner: callers must not share one across goroutines.
type NativeProduct interface {
	// Name identifies the sub-product, typically its resolution ("1000m", "500m").
	Name() string
	FieldNames() []string
	Field(name string) (FieldInfo, error)
	Unit(field string) string
	ReadPixels(field string, box PixelBox) (*Raster, error)
	Geocoding() (Geocoder, error)
	Metadata() Metadata
	Close() error
}

// RegionExtractor is implemented by backends that can materialize a pixel
// window as a product of its own.
type RegionExtractor interface {
	ExtractRegion(box PixelBox) (NativeProduct, error)
}

// Geocoder converts between pixel and geographic coordinates. Integer pixel
// coordinates address pixel centers. Both directions may fail for input
// outside the product coverage.
type Geocoder interface {
	ToPixel(lat, lon float64) (x, y float64, err error)
	ToLatLon(x, y float64) (lat, lon float64, err error)
}

// Geodesic measures distances on the Earth in meters.
type Geodesic interface {
	Distance(a, b Position) float64
}

// Collocator resamples a slave product onto the grid of a master product.
type Collocator interface {
	Collocate(master, slave NativeProduct, method ResamplingMethod, rules RenameRules) (NativeProduct, error)
}

// MetricsCollector receives operation outcomes.
type MetricsCollector interface {
	RecordOperation(operation string, duration time.Duration, success bool)
	RecordError(operation string, err error)
}
