package taxonomy

import (
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// Partition maps each category to its ordered variable names.
type Partition map[types.VType][]string

// All returns every name in category order.
func (p Partition) All() []string {
	var out []string
	for _, vt := range types.AllVTypes {
		out = append(out, p[vt]...)
	}
	return out
}

// Check verifies that the categories are pairwise disjoint and cover exactly
// the names in universe.
func (p Partition) Check(universe []string) error {
	owner := make(map[string]types.VType)
	for _, vt := range types.AllVTypes {
		for _, name := range p[vt] {
			if prev, dup := owner[name]; dup {
				return errors.Errorf(errors.ErrCodeVariablePartition,
					"%s assigned to both %s and %s", name, prev, vt)
			}
			owner[name] = vt
		}
	}

	want := make(map[string]bool, len(universe))
	for _, name := range universe {
		want[name] = true
		if _, ok := owner[name]; !ok {
			return errors.Errorf(errors.ErrCodeVariablePartition, "%s has no category", name)
		}
	}
	for name := range owner {
		if !want[name] {
			return errors.Errorf(errors.ErrCodeVariablePartition, "%s is not a product variable", name)
		}
	}
	return nil
}

// FromDescriptors rebuilds a partition from a descriptor list.
func FromDescriptors(ds []types.Descriptor) Partition {
	p := Partition{}
	for _, d := range ds {
		p[d.VType] = append(p[d.VType], d.Name)
	}
	return p
}

// DataVariableNames lists the data variables of p.
func (r *Resolver) DataVariableNames(p types.NativeProduct) []string {
	return r.VariableNames(types.VTypeData, p)
}

// MaskVariableNames lists the mask variables of p.
func (r *Resolver) MaskVariableNames(p types.NativeProduct) []string {
	return r.VariableNames(types.VTypeMask, p)
}

// MeteorologicalVariableNames lists the meteorological variables of p.
func (r *Resolver) MeteorologicalVariableNames(p types.NativeProduct) []string {
	return r.VariableNames(types.VTypeMeteorological, p)
}

// SensorVariableNames lists the sensor variables of p.
func (r *Resolver) SensorVariableNames(p types.NativeProduct) []string {
	return r.VariableNames(types.VTypeSensor, p)
}

// InfoVariableNames lists the info variables of p.
func (r *Resolver) InfoVariableNames(p types.NativeProduct) []string {
	return r.VariableNames(types.VTypeInfo, p)
}

// CreateDataVariable builds the data descriptor of name.
func (r *Resolver) CreateDataVariable(p types.NativeProduct, name string) (types.Descriptor, error) {
	return r.CreateVariable(types.VTypeData, p, name)
}

// CreateMaskVariable builds the mask descriptor of name.
func (r *Resolver) CreateMaskVariable(p types.NativeProduct, name string) (types.Descriptor, error) {
	return r.CreateVariable(types.VTypeMask, p, name)
}

// CreateMeteorologicalVariable builds the meteorological descriptor of name.
func (r *Resolver) CreateMeteorologicalVariable(p types.NativeProduct, name string) (types.Descriptor, error) {
	return r.CreateVariable(types.VTypeMeteorological, p, name)
}

// CreateSensorVariable builds the sensor descriptor of name.
func (r *Resolver) CreateSensorVariable(p types.NativeProduct, name string) (types.Descriptor, error) {
	return r.CreateVariable(types.VTypeSensor, p, name)
}

// CreateInfoVariable builds the info descriptor of name.
func (r *Resolver) CreateInfoVariable(p types.NativeProduct, name string) (types.Descriptor, error) {
	return r.CreateVariable(types.VTypeInfo, p, name)
}
