package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoprod/eoprod/internal/backend/memory"
	"github.com/eoprod/eoprod/internal/geocode"
	"github.com/eoprod/eoprod/internal/registry"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

func newRegistry(t *testing.T, b Backends) *registry.Registry {
	t.Helper()

	reg := registry.New(nil, nil)
	require.NoError(t, Register(reg, b))
	return reg
}

func TestRegisterOrder(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, Backends{})
	assert.Equal(t, Names(), reg.Names())
	assert.Equal(t, "olci_l1_efr", reg.Names()[0])

	err := Register(reg, Backends{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAdapterRegistration))
}

func TestResolveFamilies(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, Backends{})

	tests := []struct {
		input string
		want  string
	}{
		{"/data/S3A_OL_1_EFR____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN1_O_NT_002.SEN3", "olci_l1_efr"},
		{"/data/S3A_OL_1_EFR____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN1_O_NT_002.SEN3/xfdumanifest.xml", "olci_l1_efr"},
		{"/data/S3B_OL_1_ERR____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN1_O_NT_002.SEN3/", "olci_l1_err"},
		{"S3A_OL_2_WFR____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_MAR_O_NT_002.SEN3", "olci_l2_full"},
		{"S3A_OL_2_LRR____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN1_O_NT_002.SEN3", "olci_l2_reduced"},
		{"s3://bucket/S3B_SL_1_RBT____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN2_O_NT_004.SEN3", "slstr_l1_rbt"},
		{"S3A_SL_2_LST____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN2_O_NT_004.SEN3", "slstr_l2"},
		{"S3A_SY_2_SYN____20200101T101010_20200101T101310_20200102T120000_0179_053_179_2340_LN2_O_NT_002.SEN3", "synergy"},
		{"/data/S2A_MSIL1C_20200101T101031_N0208_R022_T32TQM_20200101T121346.SAFE", "msi_l1c"},
		{"/data/S2B_MSIL2A_20200101T101031_N0213_R022_T32TQM_20200101T121346.SAFE/MTD_MSIL2A.xml", "msi_l2a"},
		{"OL_1_EFR", "olci_l1_efr"},
		{"SL_1_RBT", "slstr_l1_rbt"},
		{"S2_MSI_Level-2A", "msi_l2a"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			e, ok := reg.ResolveEntry(tt.input)
			require.True(t, ok, tt.input)
			assert.Equal(t, tt.want, e.Name)
		})
	}

	for _, miss := range []string{
		"/data/LC08_L1TP_042034_20200101_20200113_01_T1",
		"/data/S3A_OL_1_EFR.nc",
		"OL_1_XXX",
		"",
	} {
		assert.Nil(t, reg.Resolve(miss), miss)
	}
}

func TestMSIWithoutBackend(t *testing.T) {
	t.Parallel()

	const path = "/data/S2A_MSIL1C_20200101T101031_N0208_R022_T32TQM_20200101T121346.SAFE"
	reg := newRegistry(t, Backends{})
	e, ok := reg.ResolveEntry(path)
	require.True(t, ok)
	assert.Equal(t, NoMSIBackend, e.Unavailable)

	_, err := reg.Open(path, registry.Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAdapterOpen))
	assert.Contains(t, err.Error(), NoMSIBackend)

	olci, ok := reg.ResolveEntry("OL_1_EFR")
	require.True(t, ok)
	assert.Empty(t, olci.Unavailable)
}

func TestMSIBackend(t *testing.T) {
	t.Parallel()

	const path = "/data/S2A_MSIL2A_20200101T101031_N0213_R022_T32TQM_20200101T121346.SAFE"
	p := memory.New("10m", types.Metadata{ProductName: "S2A_MSIL2A", Columns: 2, Rows: 2}, geocode.Identity())
	for _, f := range []string{"B02", "B03", "SCL", "AOT"} {
		require.NoError(t, p.AddFunc(types.FieldInfo{Name: f}, func(x, y int) float64 { return 1 }))
	}
	reg := newRegistry(t, Backends{MSI: &memory.Opener{Products: map[string][]*memory.Product{path: {p}}}})
	e, ok := reg.ResolveEntry(path)
	require.True(t, ok)
	assert.Empty(t, e.Unavailable)

	agg, err := reg.Open(path, registry.Options{})
	require.NoError(t, err)
	defer agg.Close()

	assert.Equal(t, []string{"B02", "B03"}, agg.VariableNames(types.VTypeData))
	assert.Equal(t, []string{"SCL"}, agg.VariableNames(types.VTypeMask))
	assert.Equal(t, []string{"AOT"}, agg.VariableNames(types.VTypeMeteorological))
	assert.Equal(t, "MSI Level 2A", agg.Attributes().ProductType)
}

func TestSLSTRBrightnessTemperatureRename(t *testing.T) {
	t.Parallel()

	sub := func(name string, size int, fields ...string) *memory.Product {
		p := memory.New(name, types.Metadata{ProductName: "S3A_SL_1_RBT", Columns: size, Rows: size}, geocode.Identity())
		for _, f := range fields {
			require.NoError(t, p.AddFunc(types.FieldInfo{Name: f, Units: "K"}, func(x, y int) float64 {
				return float64(size*100 + y*size + x)
			}))
		}
		return p
	}

	ctor := newRegistry(t, Backends{}).Resolve("SL_1_RBT")
	require.NotNil(t, ctor)
	a := ctor(registry.Options{})
	a.Opener = &memory.Opener{Products: map[string][]*memory.Product{"rbt": {
		sub("500m", 4, "S1_radiance_an", "S8_BT_in", "latitude_an"),
		sub("1000m", 2, "S8_BT_in", "latitude_in"),
	}}}

	agg, err := a.Open("rbt")
	require.NoError(t, err)
	defer agg.Close()

	assert.Equal(t, []string{"S1_radiance_an", "S8_BT_in_500m", "S8_BT_in"}, agg.VariableNames(types.VTypeData))
	assert.Equal(t, []string{"latitude_an", "time_stamp", "latitude_in"}, agg.VariableNames(types.VTypeInfo))

	fine, err := agg.SubProductFor("S8_BT_in_500m")
	require.NoError(t, err)
	assert.Equal(t, "500m", fine.Name)
	assert.Equal(t, "S8_BT_in", fine.Field("S8_BT_in_500m"))

	coarse, err := agg.SubProductFor("S8_BT_in")
	require.NoError(t, err)
	assert.Equal(t, "1000m", coarse.Name)

	r, err := agg.ReadPixels("S8_BT_in_500m", types.FullBox(4, 4), nil)
	require.NoError(t, err)
	v, _ := r.At(3, 3)
	assert.Equal(t, 415.0, v)

	r, err = agg.ReadPixels("S8_BT_in", types.FullBox(2, 2), nil)
	require.NoError(t, err)
	v, _ = r.At(1, 1)
	assert.Equal(t, 203.0, v)

	d, ok := agg.Variable("S8_BT_in_500m")
	require.True(t, ok)
	assert.Equal(t, []int{4, 4}, d.Shape)
}
