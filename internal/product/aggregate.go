// Package product implements the product aggregate: the sub-products opened
// for one acquisition, their merged variables, and the attribute set with
// its append-only processing log.
package product

import (
	stderrors "errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// SubProduct is one native-resolution instance backing an aggregate.
type SubProduct struct {
	Name          string
	Handle        types.NativeProduct
	VariableNames []string
	// Fields maps variable names to native field names where they differ.
	Fields map[string]string
}

func (s SubProduct) clone() SubProduct {
	s.VariableNames = slices.Clone(s.VariableNames)
	s.Fields = maps.Clone(s.Fields)
	return s
}

// Field returns the native field backing a variable.
func (s SubProduct) Field(variable string) string {
	if native, ok := s.Fields[variable]; ok {
		return native
	}
	return variable
}

func (s SubProduct) has(name string) bool {
	return slices.Contains(s.VariableNames, name)
}

// Aggregate is the unit of work: sub-products plus merged variables and
// attributes. An aggregate owns its handles; Close releases them.
type Aggregate struct {
	subProducts []SubProduct
	variables   []types.Descriptor
	attrs       *Attributes
	closed      bool
}

// New validates and assembles an aggregate. All inputs are copied.
func New(subs []SubProduct, variables []types.Descriptor, attrs *Attributes) (*Aggregate, error) {
	if len(subs) == 0 {
		return nil, errors.NewError(errors.ErrCodeInvalidState, "product has no sub-products").
			WithComponent("product")
	}
	if attrs == nil {
		return nil, errors.NewError(errors.ErrCodeInvalidState, "product has no attributes").
			WithComponent("product")
	}
	if len(attrs.Scopes) != len(subs) {
		return nil, errors.Errorf(errors.ErrCodeInvalidState,
			"attributes hold %d scopes for %d sub-products", len(attrs.Scopes), len(subs)).
			WithComponent("product")
	}
	if len(subs) > 1 && attrs.Shape != PerSubProduct {
		return nil, errors.NewError(errors.ErrCodeInvalidState,
			"multi-resolution product requires per-sub-product attributes").WithComponent("product")
	}

	known := make(map[string]bool, len(variables))
	for _, d := range variables {
		if err := d.Validate(); err != nil {
			return nil, errors.NewError(errors.ErrCodeVariablePartition, err.Error()).WithComponent("product")
		}
		if known[d.Name] {
			return nil, errors.Errorf(errors.ErrCodeVariablePartition, "duplicate variable %s", d.Name).
				WithComponent("product")
		}
		known[d.Name] = true
	}
	for _, s := range subs {
		for _, name := range s.VariableNames {
			if !known[name] {
				return nil, errors.Errorf(errors.ErrCodeVariablePartition,
					"sub-product %s lists unknown variable %s", s.Name, name).WithComponent("product")
			}
		}
	}

	a := &Aggregate{
		variables: types.CloneDescriptors(variables),
		attrs:     attrs.Clone(),
	}
	for _, s := range subs {
		a.subProducts = append(a.subProducts, s.clone())
	}
	return a, nil
}

// SubProducts returns the ordered sub-product list.
func (a *Aggregate) SubProducts() []SubProduct {
	out := make([]SubProduct, len(a.subProducts))
	for i, s := range a.subProducts {
		out[i] = s.clone()
	}
	return out
}

// Variables returns copies of every descriptor.
func (a *Aggregate) Variables() []types.Descriptor {
	return types.CloneDescriptors(a.variables)
}

// Variable returns a copy of one descriptor.
func (a *Aggregate) Variable(name string) (types.Descriptor, bool) {
	for _, d := range a.variables {
		if d.Name == name {
			return d.Clone(), true
		}
	}
	return types.Descriptor{}, false
}

// VariableNames returns the names of category vt in order.
func (a *Aggregate) VariableNames(vt types.VType) []string {
	var out []string
	for _, d := range a.variables {
		if d.VType == vt {
			out = append(out, d.Name)
		}
	}
	return out
}

// AllVariableNames returns every variable name in order.
func (a *Aggregate) AllVariableNames() []string {
	out := make([]string, len(a.variables))
	for i, d := range a.variables {
		out[i] = d.Name
	}
	return out
}

// Partition returns the category partition of the variables.
func (a *Aggregate) Partition() taxonomy.Partition {
	return taxonomy.FromDescriptors(a.variables)
}

// Attributes returns a deep copy of the attribute set.
func (a *Aggregate) Attributes() *Attributes {
	return a.attrs.Clone()
}

// ProcessingLog returns the log of one sub-product (any name for a Single shape).
func (a *Aggregate) ProcessingLog(subProduct string) []ProcessingEntry {
	return a.attrs.ProcessingLog(subProduct)
}

// SubProductFor returns the first sub-product that resolves every requested
// variable.
func (a *Aggregate) SubProductFor(names ...string) (SubProduct, error) {
	for _, s := range a.subProducts {
		ok := true
		for _, name := range names {
			if !s.has(name) {
				ok = false
				break
			}
		}
		if ok {
			return s.clone(), nil
		}
	}
	return SubProduct{}, errors.Errorf(errors.ErrCodeVariableCombination,
		"cannot open combination of variables: %s", strings.Join(names, ", ")).
		WithComponent("product").
		WithDetail("variables", names)
}

// TimeStamps returns the per-row acquisition times of a sub-product.
func (a *Aggregate) TimeStamps(subProduct string) []time.Time {
	s, ok := a.attrs.Scope(subProduct)
	if !ok {
		return nil
	}
	return taxonomy.TimeStamps(a.attrs.StartTime, a.attrs.EndTime, s.Rows)
}

// ReadPixels reads a window of one variable. The optional caller mask is
// intersected with the backend validity mask using logical AND. time_stamp
// reads yield Unix seconds per row.
func (a *Aggregate) ReadPixels(name string, box types.PixelBox, mask *types.RegionMask) (*types.Raster, error) {
	if a.closed {
		return nil, errors.NewError(errors.ErrCodeInvalidState, "product is closed").WithComponent("product")
	}
	sub, err := a.SubProductFor(name)
	if err != nil {
		return nil, err
	}

	var r *types.Raster
	if name == taxonomy.TimeStampName {
		r, err = a.readTimeStamps(sub.Name, box)
	} else {
		r, err = sub.Handle.ReadPixels(sub.Field(name), box)
	}
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeUnknownError {
			err = errors.Errorf(errors.ErrCodeRegionExtraction,
				"cannot read %s window %s", name, box).WithCause(err).WithComponent("product")
		}
		return nil, err
	}

	if err := r.ApplyMask(mask); err != nil {
		return nil, errors.NewError(errors.ErrCodeGeometryInvalid, err.Error()).WithComponent("product")
	}
	return r, nil
}

func (a *Aggregate) readTimeStamps(subProduct string, box types.PixelBox) (*types.Raster, error) {
	stamps := a.TimeStamps(subProduct)
	if box.Width < 1 || box.Height < 1 || box.UpperLeftY < 0 || box.LowerRightY() >= len(stamps) {
		return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
			"time_stamp rows %d..%d outside %d rows", box.UpperLeftY, box.LowerRightY(), len(stamps))
	}
	r := types.NewRaster(box.Width, box.Height)
	for y := 0; y < box.Height; y++ {
		t := stamps[box.UpperLeftY+y]
		v := float64(t.Unix()) + float64(t.Nanosecond())/1e9
		for x := 0; x < box.Width; x++ {
			r.Set(x, y, v)
		}
	}
	return r, nil
}

// Derive builds a new aggregate over new handles, one per sub-product in the
// same order. Variables are copied (2-D shapes follow the new dimensions),
// attributes are deep-copied, dimensions refreshed from the handles, entry
// appended to every scope, and mutate may adjust the copy further. The
// receiver is never modified. The new aggregate owns handles.
func (a *Aggregate) Derive(handles []types.NativeProduct, entry ProcessingEntry, mutate func(*Attributes) error) (*Aggregate, error) {
	return a.DeriveWith(handles, a.variables, nil, entry, mutate)
}

// DeriveWith is Derive with an explicit variable list and per-sub-product
// variable names. A nil names slice keeps the source assignment.
func (a *Aggregate) DeriveWith(handles []types.NativeProduct, variables []types.Descriptor, names [][]string,
	entry ProcessingEntry, mutate func(*Attributes) error) (*Aggregate, error) {
	return a.DeriveMapped(handles, variables, names, nil, entry, mutate)
}

// DeriveMapped is DeriveWith for handles whose field names differ from the
// source: fields[i] maps each variable of sub-product i to its field in
// handles[i]. A nil fields slice keeps the source mapping.
func (a *Aggregate) DeriveMapped(handles []types.NativeProduct, variables []types.Descriptor, names [][]string,
	fields []map[string]string, entry ProcessingEntry, mutate func(*Attributes) error) (*Aggregate, error) {
	if len(handles) != len(a.subProducts) {
		return nil, errors.Errorf(errors.ErrCodeInvalidState,
			"derivation produced %d sub-products for %d", len(handles), len(a.subProducts)).
			WithComponent("product")
	}
	if (names != nil && len(names) != len(handles)) || (fields != nil && len(fields) != len(handles)) {
		return nil, errors.Errorf(errors.ErrCodeInvalidState,
			"derivation names %d and fields %d do not match %d sub-products", len(names), len(fields), len(handles)).
			WithComponent("product")
	}

	attrs := a.attrs.Clone()
	subs := make([]SubProduct, len(handles))
	resized := make(map[string][2]int)
	for i, h := range handles {
		src := a.subProducts[i]
		meta := h.Metadata()

		scope := &attrs.Scopes[i]
		for _, name := range src.VariableNames {
			if _, done := resized[name]; !done {
				resized[name] = [2]int{scope.Rows, scope.Columns}
			}
		}
		scope.Columns, scope.Rows = meta.Columns, meta.Rows

		subs[i] = SubProduct{Name: src.Name, Handle: h, VariableNames: slices.Clone(src.VariableNames)}
		if names != nil {
			subs[i].VariableNames = slices.Clone(names[i])
		}
		if fields != nil {
			for variable, native := range fields[i] {
				if subs[i].has(variable) && native != variable {
					if subs[i].Fields == nil {
						subs[i].Fields = make(map[string]string)
					}
					subs[i].Fields[variable] = native
				}
			}
			continue
		}
		for variable, native := range src.Fields {
			if subs[i].has(variable) {
				if subs[i].Fields == nil {
					subs[i].Fields = make(map[string]string)
				}
				subs[i].Fields[variable] = native
			}
		}
	}
	attrs.AppendProcessing(entry)
	if mutate != nil {
		if err := mutate(attrs); err != nil {
			return nil, err
		}
	}

	vars := types.CloneDescriptors(variables)
	for i := range vars {
		old, ok := resized[vars[i].Name]
		if !ok {
			continue
		}
		sub := subs[0]
		for _, s := range subs {
			if s.has(vars[i].Name) {
				sub = s
				break
			}
		}
		scope, _ := attrs.Scope(sub.Name)
		reshape(&vars[i], old, [2]int{scope.Rows, scope.Columns})
	}

	return New(subs, vars, attrs)
}

// reshape updates raster-shaped descriptors to new dimensions.
func reshape(d *types.Descriptor, old, now [2]int) {
	switch {
	case d.Name == taxonomy.TimeStampName && d.NDims == 1:
		d.Shape = []int{now[0]}
	case d.NDims == 2 && d.Shape[0] == old[0] && d.Shape[1] == old[1]:
		d.Shape = []int{now[0], now[1]}
	}
}

// Closed reports whether Close has been called.
func (a *Aggregate) Closed() bool { return a.closed }

// Close releases every sub-product handle. It is safe to call more than
// once; errors from all handles are joined.
func (a *Aggregate) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	var errs []error
	for _, s := range a.subProducts {
		if s.Handle == nil {
			continue
		}
		if err := s.Handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
