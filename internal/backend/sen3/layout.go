package sen3

import (
	"fmt"
	"regexp"
	"strings"
)

// Grid is one resolution of a product. Its files are selected by file-name
// suffix and its geolocation is read from GeoFile.
type Grid struct {
	Name string
	// Suffix selects the files of this grid ("_an", "_in"). An empty suffix
	// takes every file no other grid claims.
	Suffix    string
	GeoFile   string
	Latitude  string
	Longitude string
	// SamplingAC and SamplingAL are the nominal pixel sizes in meters.
	SamplingAC float64
	SamplingAL float64
	Coarse     []Coarse
}

// Coarse pulls fields of a coarser grid onto a finer one by pixel
// replication.
type Coarse struct {
	Suffix string
	Factor int
	Fields *regexp.Regexp
}

// Layout describes how the NetCDF files of a product family map onto
// sub-products. Grids are listed finest first.
type Layout struct {
	Grids []Grid
	// Planes names the 2-D fields split out of a 3-D tie-point variable;
	// the pattern receives the 1-based plane index.
	Planes map[string]string
	// Spectral returns the band center and width of a field, in nm.
	Spectral func(field string) (wavelength, bandwidth float64, ok bool)
	Detectors *Detectors
}

// Detectors expands instrument tables shaped (bands, detectors) into one
// per-pixel field per band, looked up through the detector index field.
type Detectors struct {
	Index string
	// Tables maps a table variable to its field name pattern; the pattern
	// receives the 1-based band number.
	Tables map[string]string
}

func (d *Detectors) pattern(variable string) (string, bool) {
	if d == nil {
		return "", false
	}
	pattern, ok := d.Tables[variable]
	return pattern, ok
}

func (l Layout) gridFor(stem string) (int, bool) {
	fallback := -1
	for i, g := range l.Grids {
		if g.Suffix == "" {
			if fallback < 0 {
				fallback = i
			}
			continue
		}
		if strings.HasSuffix(stem, g.Suffix) {
			return i, true
		}
	}
	return fallback, fallback >= 0
}

func (l Layout) planeName(variable string, k int) string {
	if pattern, ok := l.Planes[variable]; ok {
		return fmt.Sprintf(pattern, k)
	}
	return fmt.Sprintf("%s_%d", variable, k)
}

func (l Layout) spectral(field string) (float64, float64) {
	if l.Spectral == nil {
		return 0, 0
	}
	wl, bw, ok := l.Spectral(field)
	if !ok {
		return 0, 0
	}
	return wl, bw
}

var olciBands = [21][2]float64{
	{400, 15}, {412.5, 10}, {442.5, 10}, {490, 10}, {510, 10}, {560, 10}, {620, 10},
	{665, 10}, {673.75, 7.5}, {681.25, 7.5}, {708.75, 10}, {753.75, 7.5}, {761.25, 2.5},
	{764.375, 3.75}, {767.5, 2.5}, {778.75, 15}, {865, 20}, {885, 10}, {900, 10},
	{940, 20}, {1020, 40},
}

var olciBand = regexp.MustCompile(`^Oa(\d{2})_`)

// OLCISpectral resolves Oa01..Oa21 prefixed fields.
func OLCISpectral(field string) (float64, float64, bool) {
	m := olciBand.FindStringSubmatch(field)
	if m == nil {
		return 0, 0, false
	}
	var n int
	if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil || n < 1 || n > len(olciBands) {
		return 0, 0, false
	}
	b := olciBands[n-1]
	return b[0], b[1], true
}

var slstrBands = map[string][2]float64{
	"S1": {554.27, 19.26}, "S2": {659.47, 19.25}, "S3": {868, 20.6},
	"S4": {1374.8, 20.8}, "S5": {1613.4, 60.68}, "S6": {2255.7, 50.15},
	"S7": {3742, 398}, "S8": {10854, 776}, "S9": {12022.5, 905},
	"F1": {3742, 398}, "F2": {10854, 776},
}

var slstrBand = regexp.MustCompile(`^([SF]\d)_(radiance|BT)_`)

// SLSTRSpectral resolves S1..S9 and F1..F2 radiance and brightness
// temperature fields.
func SLSTRSpectral(field string) (float64, float64, bool) {
	m := slstrBand.FindStringSubmatch(field)
	if m == nil {
		return 0, 0, false
	}
	b, ok := slstrBands[m[1]]
	return b[0], b[1], ok
}

var olciPlanes = map[string]string{
	"atmospheric_temperature_profile": "atmospheric_temperature_profile_pressure_level_%d",
	"horizontal_wind":                 "horizontal_wind_vector_%d",
	"reference_pressure_level":        "reference_pressure_level_%d",
}

var olciDetectors = &Detectors{
	Index: "detector_index",
	Tables: map[string]string{
		"solar_flux": "solar_flux_band_%d",
		"lambda0":    "lambda0_band_%d",
		"FWHM":       "FWHM_band_%d",
	},
}

func olciGrid(name string, sampling float64) Grid {
	return Grid{
		Name:       name,
		GeoFile:    "geo_coordinates.nc",
		Latitude:   "latitude",
		Longitude:  "longitude",
		SamplingAC: sampling,
		SamplingAL: sampling,
	}
}

// OLCIFull is the layout of OLCI full resolution products (EFR, WFR, LFR).
func OLCIFull() Layout {
	return Layout{Grids: []Grid{olciGrid("300m", 300)}, Planes: olciPlanes, Spectral: OLCISpectral,
		Detectors: olciDetectors}
}

// OLCIReduced is the layout of OLCI reduced resolution products (ERR, WRR,
// LRR).
func OLCIReduced() Layout {
	return Layout{Grids: []Grid{olciGrid("1200m", 1200)}, Planes: olciPlanes, Spectral: OLCISpectral,
		Detectors: olciDetectors}
}

// SLSTRBrightnessTemperature matches the 1 km thermal bands.
var SLSTRBrightnessTemperature = regexp.MustCompile(`^(S[789]|F[12])_BT_in$`)

// SLSTRL1 is the layout of SLSTR RBT products: the 500 m stripe A grid,
// which also carries the 1 km thermal bands, then the 1 km grid.
func SLSTRL1() Layout {
	return Layout{
		Grids: []Grid{
			{
				Name:       "500m",
				Suffix:     "_an",
				GeoFile:    "geodetic_an.nc",
				Latitude:   "latitude_an",
				Longitude:  "longitude_an",
				SamplingAC: 500,
				SamplingAL: 500,
				Coarse:     []Coarse{{Suffix: "_in", Factor: 2, Fields: SLSTRBrightnessTemperature}},
			},
			{
				Name:       "1000m",
				Suffix:     "_in",
				GeoFile:    "geodetic_in.nc",
				Latitude:   "latitude_in",
				Longitude:  "longitude_in",
				SamplingAC: 1000,
				SamplingAL: 1000,
			},
		},
		Spectral: SLSTRSpectral,
	}
}

// SLSTRL2 is the layout of SLSTR WST, WCT and LST products.
func SLSTRL2() Layout {
	return Layout{Grids: []Grid{{
		Name:       "1000m",
		GeoFile:    "geodetic_in.nc",
		Latitude:   "latitude_in",
		Longitude:  "longitude_in",
		SamplingAC: 1000,
		SamplingAL: 1000,
	}}}
}

// Synergy is the layout of SYN surface reflectance products.
func Synergy() Layout {
	return Layout{Grids: []Grid{{
		Name:       "300m",
		GeoFile:    "geolocation.nc",
		Latitude:   "lat",
		Longitude:  "lon",
		SamplingAC: 300,
		SamplingAL: 300,
	}}}
}
