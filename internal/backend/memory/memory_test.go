package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

func newProduct(t *testing.T) *Product {
	t.Helper()

	p := New("300m", types.Metadata{ProductName: "TEST", Columns: 4, Rows: 3}, geocode.Identity())
	require.NoError(t, p.AddFunc(types.FieldInfo{Name: "radiance"}, func(x, y int) float64 { return float64(10*y + x) }))
	return p
}

func TestAddBandErrors(t *testing.T) {
	t.Parallel()

	p := newProduct(t)
	tests := []struct {
		name string
		info types.FieldInfo
		r    *types.Raster
	}{
		{"empty name", types.FieldInfo{}, types.NewRaster(4, 3)},
		{"duplicate", types.FieldInfo{Name: "radiance"}, types.NewRaster(4, 3)},
		{"wrong size", types.FieldInfo{Name: "flags"}, types.NewRaster(3, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.AddBand(tt.info, tt.r)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
		})
	}

	err := p.AddAuxiliary(types.FieldInfo{Name: "radiance"}, types.NewRaster(2, 2))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
}

func TestAuxiliaryField(t *testing.T) {
	t.Parallel()

	p := newProduct(t)
	table := types.NewRaster(5, 2)
	for i := range table.Values {
		table.Values[i] = float64(100 + i)
	}
	require.NoError(t, p.AddAuxiliary(types.FieldInfo{Name: "solar_flux"}, table))

	info, err := p.Field("solar_flux")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, info.Shape)

	r, err := p.ReadPixels("solar_flux", types.FullBox(5, 2))
	require.NoError(t, err)
	v, _ := r.At(4, 1)
	assert.Equal(t, 109.0, v)

	// Region extraction crops grid bands and copies auxiliary fields whole.
	sub, err := p.ExtractRegion(types.PixelBox{UpperLeftX: 1, UpperLeftY: 1, Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"radiance", "solar_flux"}, sub.FieldNames())

	info, err = sub.Field("solar_flux")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, info.Shape)
	r, err = sub.ReadPixels("solar_flux", types.FullBox(5, 2))
	require.NoError(t, err)
	v, _ = r.At(4, 1)
	assert.Equal(t, 109.0, v)

	r, err = sub.ReadPixels("radiance", types.FullBox(2, 2))
	require.NoError(t, err)
	v, _ = r.At(0, 0)
	assert.Equal(t, 11.0, v)
}

func TestReadPixelsErrors(t *testing.T) {
	t.Parallel()

	p := newProduct(t)
	_, err := p.ReadPixels("missing", types.FullBox(1, 1))
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariableNotFound))
	_, err = p.ReadPixels("radiance", types.FullBox(5, 3))
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegionExtraction))

	require.NoError(t, p.Close())
	_, err = p.ReadPixels("radiance", types.FullBox(1, 1))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
}
