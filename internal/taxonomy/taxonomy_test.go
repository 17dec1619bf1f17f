package taxonomy

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// fakeProduct is a field list with fixed metadata.
type fakeProduct struct {
	name   string
	fields []string
	rows   int
	cols   int
}

func (f *fakeProduct) Name() string         { return f.name }
func (f *fakeProduct) FieldNames() []string { return f.fields }
func (f *fakeProduct) Unit(string) string   { return "unit" }
func (f *fakeProduct) Close() error         { return nil }

func (f *fakeProduct) Field(name string) (types.FieldInfo, error) {
	for _, n := range f.fields {
		if n == name {
			info := types.FieldInfo{Name: name, DType: "float32", Shape: []int{f.rows, f.cols}}
			if name[0] == 'B' {
				info.Wavelength = 490
				info.Bandwidth = 10
			}
			return info, nil
		}
	}
	return types.FieldInfo{}, fmt.Errorf("no field %s", name)
}

func (f *fakeProduct) ReadPixels(string, types.PixelBox) (*types.Raster, error) {
	return nil, fmt.Errorf("not readable")
}

func (f *fakeProduct) Geocoding() (types.Geocoder, error) { return nil, fmt.Errorf("no geocoding") }

func (f *fakeProduct) Metadata() types.Metadata {
	return types.Metadata{ProductName: f.name, Columns: f.cols, Rows: f.rows}
}

var olciLike = &Family{
	Name: "olci_like",
	Claims: map[types.VType]NameRule{
		types.VTypeMask:           Names("quality_flags"),
		types.VTypeMeteorological: Patterns(`^humidity$`, `^total_`),
		types.VTypeSensor:         Names("SZA", "OZA").With(Patterns(`^lambda0_band_\d+$`)),
		types.VTypeInfo:           Names("altitude", "SZA"),
	},
}

func TestPartitionExample(t *testing.T) {
	t.Parallel()

	p := &fakeProduct{name: "p", fields: []string{"B1", "B2", "lon", "lat"}, rows: 5, cols: 3}
	r := NewResolver(nil, nil)

	part := r.Partition(p)
	assert.Equal(t, []string{"B1", "B2"}, part[types.VTypeData])
	assert.Equal(t, []string{"lon", "lat", TimeStampName}, part[types.VTypeInfo])
	assert.Empty(t, part[types.VTypeMask])
	require.NoError(t, part.Check(append(p.fields, TimeStampName)))

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	stamps := TimeStamps(start, start.Add(10*time.Minute), 5)
	require.Len(t, stamps, 5)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 5, 0, 0, time.UTC), stamps[2])
	assert.Equal(t, start.Add(10*time.Minute), stamps[4])
}

func TestTimeStampsEdgeCases(t *testing.T) {
	t.Parallel()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, TimeStamps(start, start.Add(time.Hour), 0))
	assert.Equal(t, []time.Time{start}, TimeStamps(start, start.Add(time.Hour), 1))
	assert.Equal(t, time.Duration(0), RowInterval(start, start.Add(time.Hour), 1))
}

func TestClaimPrecedence(t *testing.T) {
	t.Parallel()

	p := &fakeProduct{
		name: "p",
		fields: []string{
			"Oa01_radiance", "quality_flags", "humidity", "total_ozone", "SZA", "OZA",
			"lambda0_band_1", "altitude", "latitude", "longitude",
		},
		rows: 4, cols: 4,
	}
	r := NewResolver(nil, olciLike)

	tests := []struct {
		vt   types.VType
		want []string
	}{
		{types.VTypeData, []string{"Oa01_radiance"}},
		{types.VTypeMask, []string{"quality_flags"}},
		{types.VTypeMeteorological, []string{"humidity", "total_ozone"}},
		{types.VTypeSensor, []string{"OZA", "lambda0_band_1"}},
		{types.VTypeInfo, []string{"longitude", "latitude", "altitude", "SZA", TimeStampName}},
	}
	for _, tt := range tests {
		t.Run(tt.vt.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, r.VariableNames(tt.vt, p))
		})
	}

	assert.Equal(t, []string{"Oa01_radiance"}, r.DataVariableNames(p))
	assert.Equal(t, []string{"quality_flags"}, r.MaskVariableNames(p))
	assert.Equal(t, []string{"humidity", "total_ozone"}, r.MeteorologicalVariableNames(p))
	assert.Equal(t, []string{"OZA", "lambda0_band_1"}, r.SensorVariableNames(p))
	assert.Contains(t, r.InfoVariableNames(p), TimeStampName)
}

func TestPartitionProperty(t *testing.T) {
	t.Parallel()

	pool := []string{
		"B1", "B2", "B3", "quality_flags", "humidity", "total_ozone", "total_columnar_water_vapour",
		"SZA", "OZA", "lambda0_band_1", "lambda0_band_2", "altitude", "latitude", "longitude",
		"lat", "lon", "detector_index", "time_stamp",
	}
	rng := rand.New(rand.NewSource(7))
	r := NewResolver(nil, olciLike)

	for i := 0; i < 200; i++ {
		var fields []string
		for _, f := range pool {
			if rng.Intn(2) == 0 {
				fields = append(fields, f)
			}
		}
		rng.Shuffle(len(fields), func(a, b int) { fields[a], fields[b] = fields[b], fields[a] })
		p := &fakeProduct{name: "p", fields: fields, rows: 2, cols: 2}

		universe := []string{TimeStampName}
		for _, f := range fields {
			if f != TimeStampName {
				universe = append(universe, f)
			}
		}
		require.NoError(t, r.Partition(p).Check(universe), "fields %v", fields)
	}
}

func TestPartitionCheck(t *testing.T) {
	t.Parallel()

	overlap := Partition{types.VTypeData: {"a"}, types.VTypeMask: {"a"}}
	err := overlap.Check([]string{"a"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariablePartition))

	missing := Partition{types.VTypeData: {"a"}}
	assert.Error(t, missing.Check([]string{"a", "b"}))

	extra := Partition{types.VTypeData: {"a", "c"}}
	assert.Error(t, extra.Check([]string{"a"}))

	assert.Equal(t, []string{"a", "c"}, extra.All())
}

func TestCreateVariable(t *testing.T) {
	t.Parallel()

	p := &fakeProduct{name: "p", fields: []string{"B1", "quality_flags", "latitude"}, rows: 6, cols: 4}
	r := NewResolver(nil, olciLike)

	d, err := r.CreateDataVariable(p, "B1")
	require.NoError(t, err)
	assert.Equal(t, types.VClassSpectral, d.VClass)
	require.NotNil(t, d.Spectral)
	assert.Equal(t, 490.0, d.Spectral.Wavelength)
	assert.Equal(t, []int{6, 4}, d.Shape)
	assert.Equal(t, "unit", d.Units)
	require.NoError(t, d.Validate())

	m, err := r.CreateMaskVariable(p, "quality_flags")
	require.NoError(t, err)
	assert.Equal(t, types.VTypeMask, m.VType)
	assert.Equal(t, types.VClassDefault, m.VClass)

	ts, err := r.CreateInfoVariable(p, TimeStampName)
	require.NoError(t, err)
	assert.Equal(t, "datetime", ts.DType)
	assert.Equal(t, "UTC", ts.Units)
	assert.Equal(t, []int{6}, ts.Shape)

	_, err = r.CreateMaskVariable(p, "B1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariableNotFound))

	_, err = r.CreateSensorVariable(p, "SZA")
	assert.Error(t, err)
	_, err = r.CreateMeteorologicalVariable(p, "humidity")
	assert.Error(t, err)
}

func TestEditHook(t *testing.T) {
	t.Parallel()

	var input types.Descriptor
	family := &Family{
		Name: "edited",
		Edits: map[types.VType]EditFunc{
			types.VTypeData: func(d types.Descriptor, p types.NativeProduct) types.Descriptor {
				input = d.Clone()
				d.Name += "_" + p.Name()
				d.Shape[0] = 99
				return d
			},
		},
	}
	p := &fakeProduct{name: "500m", fields: []string{"S8_BT_io"}, rows: 3, cols: 3}
	r := NewResolver(nil, family)

	d, err := r.CreateDataVariable(p, "S8_BT_io")
	require.NoError(t, err)
	assert.Equal(t, "S8_BT_io_500m", d.Name)
	assert.Equal(t, []int{99, 3}, d.Shape)
	assert.Equal(t, "S8_BT_io", input.Name)
	assert.Equal(t, []int{3, 3}, input.Shape)

	resolved, err := r.Resolve(p)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "S8_BT_io", resolved[0].Native)
	assert.Equal(t, "S8_BT_io_500m", resolved[0].Descriptor.Name)

	descs, err := r.Descriptors(p)
	require.NoError(t, err)
	assert.Equal(t, "S8_BT_io_500m", descs[0].Name)
	assert.Equal(t, TimeStampName, descs[1].Name)
}

func TestNameRuleSelect(t *testing.T) {
	t.Parallel()

	rule := Names("c", "a", "missing").With(Patterns(`^x\d$`))
	assert.Equal(t, []string{"c", "a", "x1", "x2"}, rule.Select([]string{"x1", "a", "b", "c", "x2", "xx"}))
	assert.Empty(t, NameRule{}.Select([]string{"a"}))
}
