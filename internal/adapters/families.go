package adapters

import (
	"github.com/eoprod/eoprod/internal/backend/sen3"
	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/types"
)

// definition is the static description of one product family.
type definition struct {
	name         string
	dirPattern   string
	productTypes []string
	productType  string
	family       *taxonomy.Family
	// layout is nil for families read through Backends.MSI.
	layout func() sen3.Layout
}

var olciL1 = &taxonomy.Family{
	Name: "olci_l1",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Names("quality_flags"),
		types.VTypeMeteorological: taxonomy.Patterns(
			`^atmospheric_temperature_profile`,
			`^horizontal_wind`,
			`^humidity$`,
			`^reference_pressure_level`,
			`^sea_level_pressure$`,
			`^total_columnar_water_vapour$`,
			`^total_ozone$`,
		),
		types.VTypeSensor: taxonomy.Names("SZA", "SAA", "OZA", "OAA", "detector_index", "frame_offset").
			With(taxonomy.Patterns(`^lambda0_band_\d+$`, `^FWHM_band_\d+$`, `^solar_flux_band_\d+$`)),
		types.VTypeInfo: taxonomy.Names("altitude", "TP_latitude", "TP_longitude"),
	},
}

var olciL2 = &taxonomy.Family{
	Name: "olci_l2",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Names("WQSF", "LQSF").
			With(taxonomy.Patterns(`^LQSF_`, `^WQSF_`, `^OTCI_quality_flags`)),
		types.VTypeMeteorological: taxonomy.Names(
			"humidity", "sea_level_pressure", "total_columnar_water_vapour", "total_ozone",
		).With(taxonomy.Patterns(
			`^horizontal_wind_vector_\d+$`,
			`^atmospheric_temperature_profile_pressure_level_\d+$`,
			`^reference_pressure_level_\d+$`,
		)),
		types.VTypeSensor: taxonomy.Names("detector_index", "frame_offset").
			With(taxonomy.Patterns(`^FWHM_band_\d+$`, `^lambda0_band_\d+$`)),
		types.VTypeInfo: taxonomy.Names("altitude", "TP_latitude", "TP_longitude", "OAA", "OZA", "SAA", "SZA").
			With(taxonomy.Patterns(`^solar_flux_band_\d+$`)),
	},
}

// slstrL1 renames the 1 km thermal bands carried on the 500 m grid so they do
// not collide with the same bands of the 1 km sub-product.
var slstrL1 = &taxonomy.Family{
	Name: "slstr_l1",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Patterns(`^(cloud|confidence|pointing|bayes|probability_cloud)_`, `^S\d_exception_`),
		types.VTypeMeteorological: taxonomy.Patterns(
			`^(u|v)_wind_t[xn]$`, `^(surface_pressure|total_column_water_vapour|total_column_ozone)_t[xn]$`,
		),
		types.VTypeSensor: taxonomy.Patterns(`^(sat|solar)_(zenith|azimuth)_t[no]$`, `^detector_`, `^pixel_`),
		types.VTypeInfo:   taxonomy.Patterns(`^(latitude|longitude|elevation|x|y)_(a|b|i|f)[no]$`),
	},
	Edits: map[types.VType]taxonomy.EditFunc{
		types.VTypeData: func(d types.Descriptor, p types.NativeProduct) types.Descriptor {
			if p.Name() == "500m" && sen3.SLSTRBrightnessTemperature.MatchString(d.Name) {
				d.Name += "_500m"
			}
			return d
		},
	},
}

var slstrL2 = &taxonomy.Family{
	Name: "slstr_l2",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Patterns(`^(l2p_flags|quality_level|confidence_in|cloud_in|bayes_in)$`, `^LST_(uncertainty|flags)`),
		types.VTypeInfo: taxonomy.Patterns(`^(latitude|longitude|elevation)_in$`),
	},
}

var synergy = &taxonomy.Family{
	Name: "synergy",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Names("CLOUD_flags", "OLC_flags", "SLN_flags", "SLO_flags", "SYN_flags"),
	},
}

var msiL1 = &taxonomy.Family{
	Name: "msi_l1c",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Patterns(`^MSK_`, `^opaque_clouds`, `^cirrus_clouds`),
		types.VTypeSensor: taxonomy.Patterns(
			`^(sun|view)_(zenith|azimuth)`, `^(view_zenith|view_azimuth)_B\w+$`,
		),
	},
}

var msiL2 = &taxonomy.Family{
	Name: "msi_l2a",
	Claims: map[types.VType]taxonomy.NameRule{
		types.VTypeMask: taxonomy.Names("SCL", "CLD", "SNW").
			With(taxonomy.Patterns(`^MSK_`, `^quality_(cloud|snow)_confidence$`, `^scl_`)),
		types.VTypeMeteorological: taxonomy.Names("AOT", "WVP"),
		types.VTypeSensor: taxonomy.Patterns(
			`^(sun|view)_(zenith|azimuth)`, `^(view_zenith|view_azimuth)_B\w+$`,
		),
	},
}

// definitions is the registration order. The first matching entry wins, so more
// specific patterns come first.
var definitions = []definition{
	{
		name:         "olci_l1_efr",
		dirPattern:   "S3?_OL_1_EFR*.SEN3",
		productTypes: []string{"OL_1_EFR", "OLCI_L1_EFR"},
		productType:  "OLCI Level 1 EFR",
		family:       olciL1,
		layout:       sen3.OLCIFull,
	},
	{
		name:         "olci_l1_err",
		dirPattern:   "S3?_OL_1_ERR*.SEN3",
		productTypes: []string{"OL_1_ERR", "OLCI_L1_ERR"},
		productType:  "OLCI Level 1 ERR",
		family:       olciL1,
		layout:       sen3.OLCIReduced,
	},
	{
		name:         "olci_l2_full",
		dirPattern:   "S3?_OL_2_[WL]FR*.SEN3",
		productTypes: []string{"OL_2_WFR", "OL_2_LFR"},
		productType:  "OLCI Level 2 FR",
		family:       olciL2,
		layout:       sen3.OLCIFull,
	},
	{
		name:         "olci_l2_reduced",
		dirPattern:   "S3?_OL_2_[WL]RR*.SEN3",
		productTypes: []string{"OL_2_WRR", "OL_2_LRR"},
		productType:  "OLCI Level 2 RR",
		family:       olciL2,
		layout:       sen3.OLCIReduced,
	},
	{
		name:         "slstr_l1_rbt",
		dirPattern:   "S3?_SL_1_RBT*.SEN3",
		productTypes: []string{"SL_1_RBT", "SLSTR_L1_RBT"},
		productType:  "SLSTR Level 1 RBT",
		family:       slstrL1,
		layout:       sen3.SLSTRL1,
	},
	{
		name:         "slstr_l2",
		dirPattern:   "S3?_SL_2_[WL]*.SEN3",
		productTypes: []string{"SL_2_WCT", "SL_2_WST", "SL_2_LST"},
		productType:  "SLSTR Level 2",
		family:       slstrL2,
		layout:       sen3.SLSTRL2,
	},
	{
		name:         "synergy",
		dirPattern:   "S3?_SY_[12]_*.SEN3",
		productTypes: []string{"SY_1_SYN", "SY_2_SYN", "SY_2_VG1", "SY_2_VGP"},
		productType:  "SYNERGY",
		family:       synergy,
		layout:       sen3.Synergy,
	},
	{
		name:         "msi_l1c",
		dirPattern:   "S2*_MSIL1C_*.SAFE",
		productTypes: []string{"S2_MSI_Level-1C", "MSIL1C"},
		productType:  "MSI Level 1C",
		family:       msiL1,
	},
	{
		name:         "msi_l2a",
		dirPattern:   "S2*_MSIL2A_*.SAFE",
		productTypes: []string{"S2_MSI_Level-2A", "MSIL2A"},
		productType:  "MSI Level 2A",
		family:       msiL2,
	},
}
