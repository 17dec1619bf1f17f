package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/internal/backend/memory"
	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

func TestReflectanceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Oa01_radiance", "Oa01_reflectance", true},
		{"Oa21_radiance", "Oa21_reflectance", true},
		{"Oa1_radiance", "", false},
		{"S1_radiance_an", "", false},
		{"Oa01_radiance_err", "", false},
	}
	for _, tt := range tests {
		got, ok := ReflectanceName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func openOLCI(t *testing.T, fields ...string) *product.Aggregate {
	t.Helper()

	p := memory.New("300m", types.Metadata{ProductName: "OLCI", Columns: 3, Rows: 2}, geocode.Identity())
	for _, f := range fields {
		require.NoError(t, p.AddFunc(types.FieldInfo{Name: f, Units: "mW.m-2.sr-1.nm-1", Wavelength: 400}, func(x, y int) float64 {
			return float64(10 * (y*3 + x))
		}))
	}
	a := &product.Adapter{
		Family:   "olci",
		Taxonomy: taxonomy.NewResolver(nil, nil),
		Opener:   &memory.Opener{Products: map[string][]*memory.Product{"olci": {p}}},
	}
	agg, err := a.Open("olci")
	require.NoError(t, err)
	t.Cleanup(func() { _ = agg.Close() })
	return agg
}

func TestRadiance2Reflectance(t *testing.T) {
	t.Parallel()

	agg := openOLCI(t, "Oa01_radiance", "Oa02_radiance", "SZA")

	var seen []string
	e := NewEngine(ConverterFunc(func(_ types.NativeProduct, band string, _ types.PixelBox, r *types.Raster) (*types.Raster, error) {
		seen = append(seen, band)
		for i := range r.Values {
			r.Values[i] /= 100
		}
		return r, nil
	}), nil, nil)

	out, err := e.Radiance2Reflectance(agg)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, []string{"Oa01_reflectance", "Oa02_reflectance", "SZA"}, out.VariableNames(types.VTypeData))
	d, ok := out.Variable("Oa02_reflectance")
	require.True(t, ok)
	assert.Equal(t, "", d.Units)
	assert.Equal(t, types.VClassSpectral, d.VClass)

	src, _ := agg.Variable("Oa02_radiance")
	assert.Equal(t, "mW.m-2.sr-1.nm-1", src.Units)

	log := out.ProcessingLog("")
	require.Len(t, log, 1)
	assert.Equal(t, "rad2refl", log[0].Name)
	assert.Empty(t, log[0].Parameters)

	r, err := out.ReadPixels("Oa02_reflectance", types.FullBox(3, 2), nil)
	require.NoError(t, err)
	v, _ := r.At(2, 1)
	assert.InDelta(t, 0.5, v, 1e-12)
	assert.Equal(t, []string{"Oa02_radiance"}, seen)

	r, err = out.ReadPixels("SZA", types.FullBox(3, 2), nil)
	require.NoError(t, err)
	v, _ = r.At(2, 1)
	assert.Equal(t, 50.0, v)

	_, err = out.ReadPixels("Oa01_radiance", types.FullBox(1, 1), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariableCombination))
}

func TestRadiance2ReflectanceWithoutRadiance(t *testing.T) {
	t.Parallel()

	agg := openOLCI(t, "chl_nn")
	e := NewEngine(ConverterFunc(func(_ types.NativeProduct, _ string, _ types.PixelBox, r *types.Raster) (*types.Raster, error) {
		return r, nil
	}), nil, nil)

	_, err := e.Radiance2Reflectance(agg)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariableNotFound))

	_, err = NewEngine(nil, nil, nil).Radiance2Reflectance(agg)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
}

func TestTOA(t *testing.T) {
	t.Parallel()

	p := memory.New("300m", types.Metadata{ProductName: "OLCI", Columns: 2, Rows: 2}, geocode.Identity())
	require.NoError(t, p.AddFunc(types.FieldInfo{Name: "Oa07_radiance"}, func(x, y int) float64 { return float64(10 + x + 2*y) }))
	require.NoError(t, p.AddFunc(types.FieldInfo{Name: "solar_flux_band_7"}, func(x, y int) float64 { return 2 * math.Pi }))
	require.NoError(t, p.AddFunc(types.FieldInfo{Name: "SZA"}, func(x, y int) float64 {
		if x == 1 && y == 1 {
			return 95 // sun below the horizon
		}
		return 60
	}))

	box := types.FullBox(2, 2)
	rad, err := p.ReadPixels("Oa07_radiance", box)
	require.NoError(t, err)

	refl, err := TOA{}.Reflectance(p, "Oa07_radiance", box, rad)
	require.NoError(t, err)
	v, ok := refl.At(1, 0)
	require.True(t, ok)
	assert.InDelta(t, 11.0, v, 1e-9)
	_, ok = refl.At(1, 1)
	assert.False(t, ok)

	refl, err = TOA{Irradiance: map[string]float64{"Oa07_radiance": math.Pi}}.Reflectance(p, "Oa07_radiance", box, rad)
	require.NoError(t, err)
	v, _ = refl.At(0, 1)
	assert.InDelta(t, 24.0, v, 1e-9)

	_, err = TOA{Zenith: "solar_zenith"}.Reflectance(p, "Oa07_radiance", box, rad)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariableNotFound))
	_, err = TOA{}.Reflectance(p, "Oa08_radiance", box, rad)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariableNotFound))

	field, ok := FluxField("Oa21_radiance")
	assert.True(t, ok)
	assert.Equal(t, "solar_flux_band_21", field)
	_, ok = FluxField("S1_radiance_an")
	assert.False(t, ok)
}
