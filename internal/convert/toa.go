package convert

import (
	"math"
	"strconv"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// DefaultZenithField holds the solar zenith angle of OLCI products, in degrees.
const DefaultZenithField = "SZA"

// TOA computes top of atmosphere reflectance
//
//	rho = pi * L / (E0 * cos(sza))
//
// where L is the band radiance and E0 the solar irradiance in the same units.
// E0 comes from Irradiance when the band has an entry there, otherwise from
// the per-pixel solar_flux_band_<n> field of the sub-product.
type TOA struct {
	Zenith     string
	Irradiance map[string]float64
}

// Reflectance implements Converter. Pixels whose radiance, angle or
// irradiance is missing, or where the sun is below the horizon, are invalid.
func (t TOA) Reflectance(src types.NativeProduct, band string, box types.PixelBox, radiance *types.Raster) (*types.Raster, error) {
	zenith := t.Zenith
	if zenith == "" {
		zenith = DefaultZenithField
	}
	sza, err := src.ReadPixels(zenith, box)
	if err != nil {
		return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "cannot read solar zenith %s for %s", zenith, band).
			WithCause(err).WithComponent("convert")
	}

	var irradiance func(x, y int) (float64, bool)
	if e0, ok := t.Irradiance[band]; ok {
		irradiance = func(int, int) (float64, bool) { return e0, true }
	} else {
		field, ok := FluxField(band)
		if !ok {
			return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "no solar irradiance for %s", band).
				WithComponent("convert")
		}
		flux, err := src.ReadPixels(field, box)
		if err != nil {
			return nil, errors.Errorf(errors.ErrCodeVariableNotFound, "cannot read %s for %s", field, band).
				WithCause(err).WithComponent("convert")
		}
		irradiance = flux.At
	}

	out := types.NewRaster(radiance.Width, radiance.Height)
	for y := 0; y < radiance.Height; y++ {
		for x := 0; x < radiance.Width; x++ {
			l, ok1 := radiance.At(x, y)
			angle, ok2 := sza.At(x, y)
			e0, ok3 := irradiance(x, y)
			cos := math.Cos(angle * math.Pi / 180)
			if !ok1 || !ok2 || !ok3 || e0 <= 0 || cos <= 0 {
				out.Invalidate(x, y)
				continue
			}
			out.Set(x, y, math.Pi*l/(e0*cos))
		}
	}
	return out, nil
}

// FluxField returns the solar flux field of a radiance band: Oa07_radiance
// maps to solar_flux_band_7.
func FluxField(radiance string) (string, bool) {
	m := radianceName.FindStringSubmatch(radiance)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1][2:])
	if err != nil {
		return "", false
	}
	return "solar_flux_band_" + strconv.Itoa(n), true
}
