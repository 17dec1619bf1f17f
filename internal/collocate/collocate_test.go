package collocate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/internal/backend/memory"
	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

func grid(t *testing.T, name, sub string, geo types.Geocoder, cols, rows int, fields ...string) *memory.Product {
	t.Helper()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	p := memory.New(sub, types.Metadata{
		ProductName: name,
		StartTime:   start,
		EndTime:     start.Add(time.Minute),
		Columns:     cols,
		Rows:        rows,
	}, geo)
	for i, f := range fields {
		base := float64(1000 * (i + 1))
		require.NoError(t, p.AddFunc(types.FieldInfo{Name: f, Units: "K"}, func(x, y int) float64 {
			return base + float64(100*y+x)
		}))
	}
	return p
}

func open(t *testing.T, family string, subs ...*memory.Product) *product.Aggregate {
	t.Helper()

	a := &product.Adapter{
		Family:   family,
		Taxonomy: taxonomy.NewResolver(nil, nil),
		Opener:   &memory.Opener{Products: map[string][]*memory.Product{family: subs}},
	}
	agg, err := a.Open(family)
	require.NoError(t, err)
	t.Cleanup(func() { _ = agg.Close() })
	return agg
}

func TestCollocateNearest(t *testing.T) {
	t.Parallel()

	slave := open(t, "slave", grid(t, "SLAVE", "1000m", geocode.Identity(), 10, 10, "B1", "B2"))
	master := open(t, "master", grid(t, "MASTER", "1000m", geocode.Identity(), 10, 10, "B1"))

	out, err := NewEngine(nil, nil).Collocate(slave, master, "nearest_neighbour")
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, slave.AllVariableNames(), out.AllVariableNames())

	log := out.ProcessingLog("")
	require.Len(t, log, 1)
	assert.Equal(t, "collocate", log[0].Name)
	assert.Equal(t, map[string]string{
		"slave_product":  "SLAVE",
		"master_product": "MASTER",
		"resampling":     "nearest_neighbour",
	}, log[0].Parameters)
	assert.Empty(t, slave.ProcessingLog(""))

	attrs := out.Attributes()
	assert.Equal(t, 10, attrs.Scopes[0].Columns)
	assert.Equal(t, 10, attrs.Scopes[0].Rows)

	r, err := out.ReadPixels("B2", types.PixelBox{UpperLeftX: 3, UpperLeftY: 4, Width: 1, Height: 1}, nil)
	require.NoError(t, err)
	v, ok := r.At(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 2403.0, v)

	sub, err := out.SubProductFor("B1")
	require.NoError(t, err)
	assert.Contains(t, sub.Handle.FieldNames(), "B1_M")
}

func TestCollocateOntoShiftedGrid(t *testing.T) {
	t.Parallel()

	slave := open(t, "slave", grid(t, "SLAVE", "1000m", geocode.Identity(), 10, 10, "B1"))
	// Master pixel (x, y) sits at slave pixel (x+2.5, y+1).
	shifted := geocode.Affine{OriginLon: 2.5, OriginLat: 1, StepLon: 1, StepLat: 1}
	master := open(t, "master", grid(t, "MASTER", "1000m", shifted, 4, 3, "M1"))

	out, err := NewEngine(nil, nil).Collocate(slave, master, "bilinear_interpolation")
	require.NoError(t, err)
	defer out.Close()

	d, _ := out.Variable("B1")
	assert.Equal(t, []int{3, 4}, d.Shape)

	r, err := out.ReadPixels("B1", types.FullBox(4, 3), nil)
	require.NoError(t, err)
	v, ok := r.At(0, 0)
	assert.True(t, ok)
	// Halfway between slave (2, 1) = 1102 and (3, 1) = 1103.
	assert.InDelta(t, 1102.5, v, 1e-9)
}

func TestCollocateCarriesAuxiliaryFields(t *testing.T) {
	t.Parallel()

	s := grid(t, "SLAVE", "1000m", geocode.Identity(), 10, 10, "B1")
	flux := types.NewRaster(10, 21)
	for i := range flux.Values {
		flux.Values[i] = float64(1500 + i)
	}
	require.NoError(t, s.AddAuxiliary(types.FieldInfo{Name: "solar_flux"}, flux))
	slave := open(t, "slave", s)
	master := open(t, "master", grid(t, "MASTER", "1000m", geocode.Identity(), 4, 3, "M1"))

	out, err := NewEngine(nil, nil).Collocate(slave, master, "nearest_neighbour")
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, slave.AllVariableNames(), out.AllVariableNames())
	d, _ := out.Variable("solar_flux")
	assert.Equal(t, []int{21, 10}, d.Shape)

	r, err := out.ReadPixels("solar_flux", types.FullBox(10, 21), nil)
	require.NoError(t, err)
	v, ok := r.At(3, 20)
	assert.True(t, ok)
	assert.Equal(t, 1703.0, v)

	for _, name := range out.AllVariableNames() {
		d, _ := out.Variable(name)
		box := types.FullBox(1, d.Shape[0])
		if len(d.Shape) == 2 {
			box = types.FullBox(d.Shape[1], d.Shape[0])
		}
		_, err := out.ReadPixels(name, box, nil)
		assert.NoError(t, err, name)
	}
}

func TestCollocateRenamedSlave(t *testing.T) {
	t.Parallel()

	slave := open(t, "slave", grid(t, "SLAVE", "1000m", geocode.Identity(), 10, 10, "B1"))
	master := open(t, "master", grid(t, "MASTER", "1000m", geocode.Identity(), 10, 10, "B1"))

	e := NewEngine(nil, nil)
	e.Rules.RenameSlave = true
	out, err := e.Collocate(slave, master, "nearest_neighbour")
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, []string{"B1", taxonomy.TimeStampName}, out.AllVariableNames())
	sub, err := out.SubProductFor("B1")
	require.NoError(t, err)
	assert.Equal(t, "B1_S", sub.Field("B1"))
	assert.ElementsMatch(t, []string{"B1_S", "B1_M"}, sub.Handle.FieldNames())

	r, err := out.ReadPixels("B1", types.PixelBox{UpperLeftX: 2, UpperLeftY: 5, Width: 1, Height: 1}, nil)
	require.NoError(t, err)
	v, ok := r.At(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 1502.0, v)
}

func TestCollocateInvalidResampling(t *testing.T) {
	t.Parallel()

	slave := open(t, "slave", grid(t, "SLAVE", "1000m", geocode.Identity(), 10, 10, "B1"))
	master := open(t, "master", grid(t, "MASTER", "1000m", geocode.Identity(), 10, 10, "B1"))

	for _, method := range []string{"", "nearest", "Bilinear_Interpolation", "lanczos"} {
		_, err := NewEngine(nil, nil).Collocate(slave, master, method)
		require.Error(t, err, method)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidResampling), method)
	}

	_, err := NewEngine(nil, nil).Collocate(slave, master, "cubic_convolution")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeResamplingUnsupported))
}

// flaky succeeds on the first call only.
type flaky struct {
	produced []*memory.Product
}

func (f *flaky) Collocate(master, slave types.NativeProduct, _ types.ResamplingMethod, _ types.RenameRules) (types.NativeProduct, error) {
	if len(f.produced) > 0 {
		return nil, fmt.Errorf("resampler crashed")
	}
	p := memory.New(slave.Name(), master.Metadata(), nil)
	f.produced = append(f.produced, p)
	return p, nil
}

func TestCollocateReleasesHandlesOnFailure(t *testing.T) {
	t.Parallel()

	slave := open(t, "slave",
		grid(t, "SLAVE", "1000m", geocode.Identity(), 4, 4, "S1"),
		grid(t, "SLAVE", "500m", geocode.Identity(), 8, 8, "S7"))
	master := open(t, "master", grid(t, "MASTER", "1000m", geocode.Identity(), 4, 4, "M1"))

	f := &flaky{}
	e := NewEngine(nil, nil)
	e.Collocator = f

	_, err := e.Collocate(slave, master, "nearest_neighbour")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCollocationFailed))
	require.Len(t, f.produced, 1)
	assert.True(t, f.produced[0].Closed())
	assert.False(t, slave.Closed())
}
