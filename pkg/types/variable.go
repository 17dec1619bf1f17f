package types

import (
	"fmt"
	"strings"
)

// VType is the category a variable belongs to.
type VType int

const (
	VTypeData VType = iota
	VTypeMask
	VTypeMeteorological
	VTypeSensor
	VTypeInfo
)

// AllVTypes lists the categories in canonical order.
var AllVTypes = []VType{VTypeData, VTypeMask, VTypeMeteorological, VTypeSensor, VTypeInfo}

// String returns the category name.
func (v VType) String() string {
	switch v {
	case VTypeData:
		return "data"
	case VTypeMask:
		return "mask"
	case VTypeMeteorological:
		return "meteorological"
	case VTypeSensor:
		return "sensor"
	case VTypeInfo:
		return "info"
	default:
		return fmt.Sprintf("vtype(%d)", int(v))
	}
}

// ParseVType parses a category name.
func ParseVType(s string) (VType, error) {
	for _, vt := range AllVTypes {
		if strings.EqualFold(vt.String(), s) {
			return vt, nil
		}
	}
	return VTypeData, fmt.Errorf("unknown variable type: %q", s)
}

// VClass is the structural kind of a variable.
type VClass int

const (
	VClassDefault VClass = iota
	VClassSpectral
)

// String returns the class name.
func (c VClass) String() string {
	if c == VClassSpectral {
		return "spectral"
	}
	return "default"
}

// SpectralInfo carries the band characteristics of spectral variables.
type SpectralInfo struct {
	Wavelength       float64   `json:"wavelength"`
	Bandwidth        float64   `json:"bandwidth"`
	SpectralResponse []float64 `json:"spectral_response,omitempty"`
}

// Descriptor is the typed metadata record for one band, grid or field.
type Descriptor struct {
	Name     string        `json:"name"`
	DType    string        `json:"dtype"`
	NDims    int           `json:"ndims"`
	Shape    []int         `json:"shape"`
	Units    string        `json:"units"`
	VType    VType         `json:"vtype"`
	VClass   VClass        `json:"vclass"`
	Spectral *SpectralInfo `json:"spectral,omitempty"`
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	out := d
	if d.Shape != nil {
		out.Shape = append([]int(nil), d.Shape...)
	}
	if d.Spectral != nil {
		s := *d.Spectral
		if d.Spectral.SpectralResponse != nil {
			s.SpectralResponse = append([]float64(nil), d.Spectral.SpectralResponse...)
		}
		out.Spectral = &s
	}
	return out
}

// Validate checks the structural invariants of a descriptor.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor name is empty")
	}
	if d.NDims != len(d.Shape) {
		return fmt.Errorf("descriptor %s: ndims %d does not match shape %v", d.Name, d.NDims, d.Shape)
	}
	if (d.VClass == VClassSpectral) != (d.Spectral != nil) {
		return fmt.Errorf("descriptor %s: spectral info must be set exactly for spectral variables", d.Name)
	}
	return nil
}

// CloneDescriptors deep-copies a descriptor list.
func CloneDescriptors(in []Descriptor) []Descriptor {
	if in == nil {
		return nil
	}
	out := make([]Descriptor, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}
