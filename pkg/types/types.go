package types

import (
	"strings"
	"time"

	"github.com/eoprod/eoprod/pkg/errors"
)

// FieldInfo describes one native field of a sub-product.
type FieldInfo struct {
	Name             string    `json:"name"`
	DType            string    `json:"dtype"`
	Shape            []int     `json:"shape"`
	Units            string    `json:"units"`
	Wavelength       float64   `json:"wavelength,omitempty"`
	Bandwidth        float64   `json:"bandwidth,omitempty"`
	SpectralResponse []float64 `json:"spectral_response,omitempty"`
}

// Metadata is the product-level information a backend reads at open time.
type Metadata struct {
	ProductName   string                 `json:"product_name"`
	ProductString string                 `json:"product_string"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       time.Time              `json:"end_time"`
	Columns       int                    `json:"columns"`
	Rows          int                    `json:"rows"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// ResamplingMethod selects the kernel used by collocation.
type ResamplingMethod string

const (
	NearestNeighbour      ResamplingMethod = "nearest_neighbour"
	BilinearInterpolation ResamplingMethod = "bilinear_interpolation"
	CubicConvolution      ResamplingMethod = "cubic_convolution"
	BisincInterpolation   ResamplingMethod = "bisinc_interpolation"
	BicubicInterpolation  ResamplingMethod = "bicubic_interpolation"
)

// ResamplingMethods lists every accepted method.
var ResamplingMethods = []ResamplingMethod{
	NearestNeighbour,
	BilinearInterpolation,
	CubicConvolution,
	BisincInterpolation,
	BicubicInterpolation,
}

// ParseResamplingMethod validates a method name.
func ParseResamplingMethod(s string) (ResamplingMethod, error) {
	for _, m := range ResamplingMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", errors.Errorf(errors.ErrCodeInvalidResampling, "invalid resampling method %q", s).
		WithDetail("allowed", ResamplingMethods)
}

// OriginalNamePlaceholder is replaced by the source band name in rename patterns.
const OriginalNamePlaceholder = "${ORIGINAL_NAME}"

// RenameRules controls band naming in a collocated product.
type RenameRules struct {
	MasterPattern string
	SlavePattern  string
	RenameMaster  bool
	RenameSlave   bool
}

// DefaultRenameRules suffixes master bands with "_M" and keeps slave names.
func DefaultRenameRules() RenameRules {
	return RenameRules{
		MasterPattern: OriginalNamePlaceholder + "_M",
		SlavePattern:  OriginalNamePlaceholder + "_S",
		RenameMaster:  true,
		RenameSlave:   false,
	}
}

// MasterName returns the collocated name of a master band.
func (r RenameRules) MasterName(name string) string {
	if !r.RenameMaster {
		return name
	}
	return strings.ReplaceAll(r.MasterPattern, OriginalNamePlaceholder, name)
}

// SlaveName returns the collocated name of a slave band.
func (r RenameRules) SlaveName(name string) string {
	if !r.RenameSlave {
		return name
	}
	return strings.ReplaceAll(r.SlavePattern, OriginalNamePlaceholder, name)
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Size        int64   `json:"size"`
	Capacity    int64   `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}
