package product

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/internal/backend/memory"
	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

var (
	testStart = time.Date(2020, 3, 1, 10, 0, 0, 0, time.UTC)
	testEnd   = testStart.Add(30 * time.Second)
)

func newBand(t *testing.T, name string, cols, rows int, fields ...string) *memory.Product {
	t.Helper()

	p := memory.New(name, types.Metadata{
		ProductName:   "S3A_OL_1_EFR____TEST.SEN3",
		ProductString: "S3A_OL_1_EFR",
		StartTime:     testStart,
		EndTime:       testEnd,
		Columns:       cols,
		Rows:          rows,
		Extra:         map[string]interface{}{"site": "test"},
	}, geocode.Identity())
	for i, f := range fields {
		offset := float64(i * 100)
		require.NoError(t, p.AddFunc(types.FieldInfo{Name: f, Units: "mW"}, func(x, y int) float64 {
			return offset + float64(y*cols+x)
		}))
	}
	return p
}

var testFamily = &taxonomy.Family{
	Name: "test",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Names("quality_flags"),
	},
}

func openTest(t *testing.T, handles ...*memory.Product) *Aggregate {
	t.Helper()

	opener := &memory.Opener{Products: map[string][]*memory.Product{"p": handles}}
	a := &Adapter{Family: "test", Taxonomy: taxonomy.NewResolver(nil, testFamily), Opener: opener}
	agg, err := a.Open("p")
	require.NoError(t, err)
	return agg
}

func TestAdapterOpen(t *testing.T) {
	t.Parallel()

	agg := openTest(t, newBand(t, "1000m", 4, 3, "radiance", "quality_flags", "latitude"))

	assert.Equal(t, []string{"radiance"}, agg.VariableNames(types.VTypeData))
	assert.Equal(t, []string{"quality_flags"}, agg.VariableNames(types.VTypeMask))
	assert.Equal(t, []string{"latitude", taxonomy.TimeStampName}, agg.VariableNames(types.VTypeInfo))

	attrs := agg.Attributes()
	assert.Equal(t, Single, attrs.Shape)
	assert.Equal(t, "satellite", attrs.ProductType)
	assert.Empty(t, agg.ProcessingLog("anything"))

	d, ok := agg.Variable(taxonomy.TimeStampName)
	require.True(t, ok)
	assert.Equal(t, []int{3}, d.Shape)
}

func TestAdapterOpenUnknownPath(t *testing.T) {
	t.Parallel()

	a := &Adapter{Family: "test", Opener: &memory.Opener{}}
	_, err := a.Open("missing")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAdapterOpen))
}

func TestSubProductFor(t *testing.T) {
	t.Parallel()

	agg := openTest(t,
		newBand(t, "1000m", 4, 3, "S1_radiance", "latitude"),
		newBand(t, "500m", 8, 6, "S7_radiance", "latitude"))

	assert.Equal(t, PerSubProduct, agg.Attributes().Shape)

	sub, err := agg.SubProductFor("S1_radiance", "latitude")
	require.NoError(t, err)
	assert.Equal(t, "1000m", sub.Name)

	sub, err = agg.SubProductFor("S7_radiance")
	require.NoError(t, err)
	assert.Equal(t, "500m", sub.Name)

	_, err = agg.SubProductFor("S1_radiance", "S7_radiance")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeVariableCombination))
	assert.Contains(t, err.Error(), "cannot open combination of variables")
}

func TestReadPixelsMask(t *testing.T) {
	t.Parallel()

	agg := openTest(t, newBand(t, "1000m", 4, 3, "radiance"))

	mask := types.NewRegionMask(2, 2)
	mask.Set(0, 0, true)
	mask.Set(1, 1, true)

	r, err := agg.ReadPixels("radiance", types.PixelBox{UpperLeftX: 1, UpperLeftY: 1, Width: 2, Height: 2}, mask)
	require.NoError(t, err)
	v, ok := r.At(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 5.0, v)
	_, ok = r.At(1, 0)
	assert.False(t, ok)
	assert.Equal(t, 2, r.ValidCount())

	_, err = agg.ReadPixels("radiance", types.PixelBox{UpperLeftX: 3, Width: 2, Height: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegionExtraction))
}

func TestReadTimeStamps(t *testing.T) {
	t.Parallel()

	agg := openTest(t, newBand(t, "1000m", 2, 4, "radiance"))

	r, err := agg.ReadPixels(taxonomy.TimeStampName, types.PixelBox{Width: 1, Height: 4}, nil)
	require.NoError(t, err)
	for y, want := range []time.Time{testStart, testStart.Add(10 * time.Second), testStart.Add(20 * time.Second), testEnd} {
		v, _ := r.At(0, y)
		assert.Equal(t, float64(want.Unix()), v)
	}
}

func TestDeriveAppendOnly(t *testing.T) {
	t.Parallel()

	agg := openTest(t, newBand(t, "1000m", 4, 3, "radiance"))

	cur := agg
	for i := 0; i < 3; i++ {
		h := newBand(t, "1000m", 2, 2, "radiance")
		next, err := cur.Derive([]types.NativeProduct{h}, NewEntry("subset", "pos", "step"), nil)
		require.NoError(t, err)
		assert.Len(t, next.ProcessingLog(""), i+1)
		assert.Len(t, cur.ProcessingLog(""), i, "source log must not change")
		cur = next
	}

	d, ok := cur.Variable("radiance")
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, d.Shape)
	ts, _ := cur.Variable(taxonomy.TimeStampName)
	assert.Equal(t, []int{2}, ts.Shape)

	attrs := cur.Attributes()
	assert.Equal(t, 2, attrs.Scopes[0].Columns)
	d0, _ := agg.Variable("radiance")
	assert.Equal(t, []int{3, 4}, d0.Shape)
}

func TestDeriveDeepCopy(t *testing.T) {
	t.Parallel()

	agg := openTest(t, newBand(t, "1000m", 4, 3, "radiance"))
	derived, err := agg.Derive(
		[]types.NativeProduct{newBand(t, "1000m", 4, 3, "radiance")},
		NewEntry("noop"),
		func(a *Attributes) error {
			a.Extra["site"] = "changed"
			a.ProductName = "derived"
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, "test", agg.Attributes().Extra["site"])
	assert.Equal(t, "changed", derived.Attributes().Extra["site"])
	assert.NotEqual(t, agg.Attributes().ProductName, derived.Attributes().ProductName)

	log := derived.ProcessingLog("")
	log[0].Parameters["x"] = "y"
	assert.Empty(t, derived.ProcessingLog("")[0].Parameters)
}

func TestDerivePerSubProduct(t *testing.T) {
	t.Parallel()

	agg := openTest(t,
		newBand(t, "1000m", 4, 3, "S1_radiance"),
		newBand(t, "500m", 8, 6, "S7_radiance"))

	derived, err := agg.Derive([]types.NativeProduct{
		newBand(t, "1000m", 2, 2, "S1_radiance"),
		newBand(t, "500m", 4, 4, "S7_radiance"),
	}, NewEntry("subset", "wkt", "POLYGON"), nil)
	require.NoError(t, err)

	flat := derived.Attributes().Flatten()
	assert.Equal(t, 2, flat["product_columns_1000m"])
	assert.Equal(t, 4, flat["product_rows_500m"])
	assert.Len(t, derived.ProcessingLog("500m"), 1)

	_, err = agg.Derive([]types.NativeProduct{newBand(t, "1000m", 2, 2)}, NewEntry("x"), nil)
	assert.Error(t, err)
}

func TestDeriveMapped(t *testing.T) {
	t.Parallel()

	agg := openTest(t, newBand(t, "1000m", 4, 3, "radiance", "quality_flags"))
	names := []string{"radiance", taxonomy.TimeStampName}
	variables := make([]types.Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := agg.Variable(name)
		require.True(t, ok)
		variables = append(variables, d)
	}

	derived, err := agg.DeriveMapped(
		[]types.NativeProduct{newBand(t, "1000m", 4, 3, "radiance_S")},
		variables, [][]string{names},
		[]map[string]string{{"radiance": "radiance_S"}},
		NewEntry("collocate"), nil)
	require.NoError(t, err)

	assert.Equal(t, names, derived.AllVariableNames())
	sub, err := derived.SubProductFor("radiance")
	require.NoError(t, err)
	assert.Equal(t, "radiance_S", sub.Field("radiance"))

	r, err := derived.ReadPixels("radiance", types.PixelBox{UpperLeftX: 1, UpperLeftY: 2, Width: 1, Height: 1}, nil)
	require.NoError(t, err)
	v, _ := r.At(0, 0)
	assert.Equal(t, 9.0, v)

	_, err = agg.DeriveMapped(
		[]types.NativeProduct{newBand(t, "1000m", 4, 3, "radiance")},
		variables, [][]string{names}, []map[string]string{},
		NewEntry("collocate"), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
}

func TestAggregateClose(t *testing.T) {
	t.Parallel()

	h1 := newBand(t, "1000m", 4, 3, "a")
	h2 := newBand(t, "500m", 8, 6, "b")
	agg := openTest(t, h1, h2)

	require.NoError(t, agg.Close())
	assert.True(t, h1.Closed())
	assert.True(t, h2.Closed())
	assert.NoError(t, agg.Close())

	_, err := agg.ReadPixels("a", types.FullBox(1, 1), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
}

func TestSerialize(t *testing.T) {
	t.Parallel()

	attrs := &Attributes{
		ProductName: "P",
		StartTime:   time.Date(2021, 5, 6, 7, 8, 9, 500, time.UTC),
		Scopes:      []Scope{{Columns: 2, Rows: 3}},
		Extra: map[string]interface{}{
			"flag":        true,
			"other":       false,
			"missing":     nil,
			"coordinates": "lat lon",
			"gain":        1.5,
		},
	}

	out := attrs.Serialize()
	assert.Equal(t, "True", out["flag"])
	assert.Equal(t, "False", out["other"])
	assert.Equal(t, "None", out["missing"])
	assert.Equal(t, "None", out[KeyEndTime])
	assert.Equal(t, "2021-05-06T07:08:09", out[KeyStartTime])
	assert.Equal(t, "1.5", out["gain"])
	assert.Equal(t, "2", out[KeyProductColumns])
	assert.Equal(t, "[]", out[KeyProductProcessing])
	assert.NotContains(t, out, KeyCoordinates)
}

func TestWindowBorrowed(t *testing.T) {
	t.Parallel()

	src := newBand(t, "1000m", 4, 3, "radiance")
	// Hide ExtractRegion so the generic view is used.
	borrowed := struct{ types.NativeProduct }{src}

	mask := types.NewRegionMask(2, 2)
	mask.Set(1, 1, true)
	w, err := NewWindow(borrowed, types.PixelBox{UpperLeftX: 2, UpperLeftY: 1, Width: 2, Height: 2}, mask)
	require.NoError(t, err)
	assert.False(t, w.Owned())
	assert.Equal(t, 2, w.Metadata().Columns)

	r, err := w.ReadPixels("radiance", types.FullBox(2, 2))
	require.NoError(t, err)
	v, ok := r.At(1, 1)
	assert.True(t, ok)
	assert.Equal(t, 11.0, v)
	assert.Equal(t, 1, r.ValidCount())

	info, err := w.Field("radiance")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, info.Shape)

	require.NoError(t, w.Close())
	assert.False(t, src.Closed())
}

func TestWindowOwned(t *testing.T) {
	t.Parallel()

	src := newBand(t, "1000m", 4, 3, "radiance")
	w, err := NewWindow(src, types.PixelBox{UpperLeftX: 1, Width: 2, Height: 1}, nil)
	require.NoError(t, err)
	assert.True(t, w.Owned())

	r, err := w.ReadPixels("radiance", types.FullBox(2, 1))
	require.NoError(t, err)
	v, _ := r.At(0, 0)
	assert.Equal(t, 1.0, v)

	require.NoError(t, w.Close())
	assert.False(t, src.Closed())
}
