// Package taxonomy partitions the native fields of a product into the five
// variable categories and builds their descriptors.
//
// Behaviour is composed from a default Strategy and one Family override
// record per product family; there is no per-family type hierarchy.
package taxonomy

import (
	"regexp"
	"slices"
	"time"

	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// TimeStampName is the synthesized per-row acquisition time variable.
const TimeStampName = "time_stamp"

// NameRule claims native fields by exact name or by pattern. Only fields the
// product actually has are selected.
type NameRule struct {
	Names    []string
	Patterns []*regexp.Regexp
}

// Names builds a rule from a fixed name list.
func Names(names ...string) NameRule {
	return NameRule{Names: names}
}

// Patterns builds a rule from regular expressions. It panics on an invalid
// expression, so it is meant for package-level family tables.
func Patterns(exprs ...string) NameRule {
	r := NameRule{}
	for _, e := range exprs {
		r.Patterns = append(r.Patterns, regexp.MustCompile(e))
	}
	return r
}

// With returns a rule matching either r or other.
func (r NameRule) With(other NameRule) NameRule {
	return NameRule{
		Names:    append(slices.Clone(r.Names), other.Names...),
		Patterns: append(slices.Clone(r.Patterns), other.Patterns...),
	}
}

// Select returns the available fields claimed by the rule: listed names in
// rule order, then pattern matches in native order.
func (r NameRule) Select(available []string) []string {
	has := make(map[string]bool, len(available))
	for _, name := range available {
		has[name] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, name := range r.Names {
		if has[name] && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range available {
		if seen[name] {
			continue
		}
		for _, p := range r.Patterns {
			if p.MatchString(name) {
				out = append(out, name)
				seen[name] = true
				break
			}
		}
	}
	return out
}

// EditFunc overrides a default descriptor for one family or resolution. It
// receives a private copy and returns the descriptor to use.
type EditFunc func(d types.Descriptor, p types.NativeProduct) types.Descriptor

// Family is the override record of one product family.
type Family struct {
	Name string
	// Claims for mask, meteorological, sensor and info. Data is always the
	// remainder; a data claim is ignored.
	Claims map[types.VType]NameRule
	Edits  map[types.VType]EditFunc
}

// Strategy is the default behaviour shared by every family.
type Strategy struct {
	LongitudeNames []string
	LatitudeNames  []string
	ProductType    string
}

// DefaultStrategy returns the stock strategy.
func DefaultStrategy() *Strategy {
	return &Strategy{
		LongitudeNames: []string{"longitude", "lon"},
		LatitudeNames:  []string{"latitude", "lat"},
		ProductType:    "satellite",
	}
}

// claimOrder is the precedence used when two rules claim the same field.
var claimOrder = []types.VType{
	types.VTypeInfo,
	types.VTypeMask,
	types.VTypeMeteorological,
	types.VTypeSensor,
}

// Resolver answers taxonomy queries for products of one family.
type Resolver struct {
	strategy *Strategy
	family   *Family
}

// NewResolver combines a strategy with a family record. Nil arguments select
// the default strategy and an empty family.
func NewResolver(strategy *Strategy, family *Family) *Resolver {
	if strategy == nil {
		strategy = DefaultStrategy()
	}
	if family == nil {
		family = &Family{Name: "generic"}
	}
	return &Resolver{strategy: strategy, family: family}
}

// Family returns the family name.
func (r *Resolver) Family() string { return r.family.Name }

// Strategy returns the default strategy in use.
func (r *Resolver) Strategy() *Strategy { return r.strategy }

// Partition splits the fields of p into the five categories.
func (r *Resolver) Partition(p types.NativeProduct) Partition {
	fields := p.FieldNames()
	part := Partition{}
	claimed := make(map[string]bool, len(fields))

	for _, vt := range claimOrder {
		rule := r.family.Claims[vt]
		if vt == types.VTypeInfo {
			rule = Names(r.strategy.LongitudeNames...).
				With(Names(r.strategy.LatitudeNames...)).
				With(rule)
		}
		for _, name := range rule.Select(fields) {
			if claimed[name] || name == TimeStampName {
				continue
			}
			claimed[name] = true
			part[vt] = append(part[vt], name)
		}
	}
	part[types.VTypeInfo] = append(part[types.VTypeInfo], TimeStampName)

	for _, name := range fields {
		if !claimed[name] && name != TimeStampName {
			part[types.VTypeData] = append(part[types.VTypeData], name)
		}
	}
	return part
}

// VariableNames returns the ordered names of category vt.
func (r *Resolver) VariableNames(vt types.VType, p types.NativeProduct) []string {
	return slices.Clone(r.Partition(p)[vt])
}

// CreateVariable builds the descriptor of name in category vt, applying the
// family edit hook for that category.
func (r *Resolver) CreateVariable(vt types.VType, p types.NativeProduct, name string) (types.Descriptor, error) {
	if !slices.Contains(r.Partition(p)[vt], name) {
		return types.Descriptor{}, errors.Errorf(errors.ErrCodeVariableNotFound,
			"%s is not a %s variable of %s", name, vt, p.Name()).
			WithComponent("taxonomy")
	}
	return r.create(vt, p, name)
}

func (r *Resolver) create(vt types.VType, p types.NativeProduct, name string) (types.Descriptor, error) {
	var d types.Descriptor
	if vt == types.VTypeInfo && name == TimeStampName {
		d = types.Descriptor{
			Name:  TimeStampName,
			DType: "datetime",
			NDims: 1,
			Shape: []int{p.Metadata().Rows},
			Units: "UTC",
			VType: types.VTypeInfo,
		}
	} else {
		fi, err := p.Field(name)
		if err != nil {
			return types.Descriptor{}, errors.Errorf(errors.ErrCodeVariableNotFound,
				"cannot describe %s", name).WithCause(err).WithComponent("taxonomy")
		}
		units := fi.Units
		if units == "" {
			units = p.Unit(name)
		}
		d = types.Descriptor{
			Name:  name,
			DType: fi.DType,
			NDims: len(fi.Shape),
			Shape: slices.Clone(fi.Shape),
			Units: units,
			VType: vt,
		}
		if fi.Wavelength > 0 {
			d.VClass = types.VClassSpectral
			d.Spectral = &types.SpectralInfo{
				Wavelength:       fi.Wavelength,
				Bandwidth:        fi.Bandwidth,
				SpectralResponse: slices.Clone(fi.SpectralResponse),
			}
		}
	}

	if edit := r.family.Edits[vt]; edit != nil {
		d = edit(d.Clone(), p)
	}
	return d, nil
}

// Resolved pairs a descriptor with the native field it was built from. The
// names differ when an edit hook renamed the descriptor.
type Resolved struct {
	Native     string
	Descriptor types.Descriptor
}

// Resolve builds every descriptor of p in category order.
func (r *Resolver) Resolve(p types.NativeProduct) ([]Resolved, error) {
	part := r.Partition(p)
	var out []Resolved
	for _, vt := range types.AllVTypes {
		for _, name := range part[vt] {
			d, err := r.create(vt, p, name)
			if err != nil {
				return nil, err
			}
			out = append(out, Resolved{Native: name, Descriptor: d})
		}
	}
	return out, nil
}

// Descriptors builds every descriptor of p in category order.
func (r *Resolver) Descriptors(p types.NativeProduct) ([]types.Descriptor, error) {
	resolved, err := r.Resolve(p)
	if err != nil {
		return nil, err
	}
	out := make([]types.Descriptor, len(resolved))
	for i, res := range resolved {
		out[i] = res.Descriptor
	}
	return out, nil
}

// TimeStamps interpolates row acquisition times linearly between start and
// end. A single row gets start; no rows yields nil.
func TimeStamps(start, end time.Time, rows int) []time.Time {
	if rows <= 0 {
		return nil
	}
	out := make([]time.Time, rows)
	if rows == 1 {
		out[0] = start
		return out
	}
	step := RowInterval(start, end, rows)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * step)
	}
	return out
}

// RowInterval is the time between consecutive rows.
func RowInterval(start, end time.Time, rows int) time.Duration {
	if rows <= 1 {
		return 0
	}
	return end.Sub(start) / time.Duration(rows-1)
}
