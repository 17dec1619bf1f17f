package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/pkg/errors"
)

func TestDescriptorClone(t *testing.T) {
	t.Parallel()

	d := Descriptor{
		Name:   "Oa01_radiance",
		DType:  "float32",
		NDims:  2,
		Shape:  []int{10, 20},
		VType:  VTypeData,
		VClass: VClassSpectral,
		Spectral: &SpectralInfo{
			Wavelength:       400,
			Bandwidth:        15,
			SpectralResponse: []float64{0.1, 0.9},
		},
	}

	c := d.Clone()
	c.Shape[0] = 99
	c.Spectral.Wavelength = 1
	c.Spectral.SpectralResponse[0] = 5

	assert.Equal(t, 10, d.Shape[0])
	assert.Equal(t, 400.0, d.Spectral.Wavelength)
	assert.Equal(t, 0.1, d.Spectral.SpectralResponse[0])
	require.NoError(t, d.Validate())
}

func TestDescriptorValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       Descriptor
		wantErr bool
	}{
		{name: "valid", d: Descriptor{Name: "lat", NDims: 2, Shape: []int{2, 2}}},
		{name: "empty name", d: Descriptor{NDims: 0}, wantErr: true},
		{name: "shape mismatch", d: Descriptor{Name: "x", NDims: 2, Shape: []int{1}}, wantErr: true},
		{name: "spectral without info", d: Descriptor{Name: "x", VClass: VClassSpectral}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err=%v", err)
		})
	}
}

func TestParseVType(t *testing.T) {
	t.Parallel()

	for _, vt := range AllVTypes {
		got, err := ParseVType(vt.String())
		require.NoError(t, err)
		assert.Equal(t, vt, got)
	}
	_, err := ParseVType("bogus")
	assert.Error(t, err)
}

func TestPixelBox(t *testing.T) {
	t.Parallel()

	b := PixelBox{UpperLeftX: -2, UpperLeftY: 1, Width: 5, Height: 3, CenterX: 0, CenterY: 2}
	assert.True(t, b.Contains(-2, 1))
	assert.True(t, b.Contains(2, 3))
	assert.False(t, b.Contains(3, 3))

	clipped, ok := b.Clip(10, 10)
	require.True(t, ok)
	assert.Equal(t, PixelBox{UpperLeftX: 0, UpperLeftY: 1, Width: 3, Height: 3, CenterX: 0, CenterY: 2}, clipped)

	_, ok = PixelBox{UpperLeftX: 20, UpperLeftY: 20, Width: 2, Height: 2}.Clip(10, 10)
	assert.False(t, ok)

	assert.Equal(t, "(-2, 1, 5, 3, 0, 2)", b.String())
}

func TestRegionMaskAndRaster(t *testing.T) {
	t.Parallel()

	m := NewRegionMask(3, 2)
	m.Set(0, 0, true)
	m.Set(2, 1, true)
	m.Set(5, 5, true)
	assert.Equal(t, 2, m.Count())
	assert.False(t, m.At(-1, 0))

	crop := m.Crop(1, 0, 2, 2)
	assert.Equal(t, 1, crop.Count())
	assert.True(t, crop.At(1, 1))

	r := NewRaster(3, 2)
	r.Invalidate(2, 1)
	require.NoError(t, r.ApplyMask(m))
	assert.Equal(t, 1, r.ValidCount())

	assert.Error(t, r.ApplyMask(NewRegionMask(1, 1)))
}

func TestParseResamplingMethod(t *testing.T) {
	t.Parallel()

	for _, m := range ResamplingMethods {
		got, err := ParseResamplingMethod(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseResamplingMethod("lanczos")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidResampling))
}

func TestRenameRules(t *testing.T) {
	t.Parallel()

	r := DefaultRenameRules()
	assert.Equal(t, "Oa01_radiance_M", r.MasterName("Oa01_radiance"))
	assert.Equal(t, "S1_radiance_an", r.SlaveName("S1_radiance_an"))

	r.RenameSlave = true
	assert.Equal(t, "B1_S", r.SlaveName("B1"))
}
