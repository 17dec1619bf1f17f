// Package sen3 reads Sentinel-3 SEN3 product directories: one NetCDF file
// per band or auxiliary group, full-resolution grids plus tie-point grids.
package sen3

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/eoprod/eoprod/internal/cache"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

// GroupOpener opens a NetCDF file.
type GroupOpener func(path string) (api.Group, error)

// Opener opens SEN3 directories laid out as Layout describes. It implements
// product.Opener.
type Opener struct {
	Layout    Layout
	Cache     *cache.LRUCache
	Logger    *utils.Logger
	OpenGroup GroupOpener
}

// NewOpener returns an opener reading files with the native NetCDF reader.
func NewOpener(layout Layout, c *cache.LRUCache, logger *utils.Logger) *Opener {
	return &Opener{
		Layout:    layout,
		Cache:     c,
		Logger:    logger.OrNop().WithComponent("sen3"),
		OpenGroup: netcdf.Open,
	}
}

// Open lists the NetCDF files of the product at path (the .SEN3 directory or
// a file inside it) and returns one sub-product per grid, finest first.
func (o *Opener) Open(path string) ([]types.NativeProduct, error) {
	dir, err := productDir(path)
	if err != nil {
		return nil, err
	}
	name, err := ParseName(filepath.Base(dir))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Errorf(errors.ErrCodeAdapterOpen, "cannot list %s", dir).
			WithCause(err).WithComponent("sen3")
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".nc") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)

	r := &reader{open: o.groupOpener(), cache: o.Cache}
	log := o.Logger.OrNop().With("product", filepath.Base(dir))

	var out []types.NativeProduct
	for i, g := range o.Layout.Grids {
		if !slices.Contains(files, g.GeoFile) {
			log.Debugw("Grid not present", "grid", g.Name)
			continue
		}
		p, err := o.openGrid(r, dir, name, i, files)
		if err != nil {
			return nil, err
		}
		log.Debugw("Opened grid", "grid", g.Name, "fields", len(p.order),
			"columns", p.meta.Columns, "rows", p.meta.Rows)
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.Errorf(errors.ErrCodeAdapterOpen, "no known grid in %s", dir).
			WithComponent("sen3")
	}
	return out, nil
}

func (o *Opener) groupOpener() GroupOpener {
	if o.OpenGroup != nil {
		return o.OpenGroup
	}
	return netcdf.Open
}

func (o *Opener) openGrid(r *reader, dir string, name Name, index int, files []string) (*Product, error) {
	g := o.Layout.Grids[index]

	// The geolocation grid fixes the raster size.
	geoPath := filepath.Join(dir, g.GeoFile)
	_, shape, err := r.values(geoPath, g.Latitude)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, errors.Errorf(errors.ErrCodeAdapterOpen, "%s in %s is not 2-D", g.Latitude, g.GeoFile).
			WithComponent("sen3")
	}

	p := &Product{
		grid: g,
		meta: types.Metadata{
			ProductName:   filepath.Base(dir),
			ProductString: name.ProductString,
			StartTime:     name.Start,
			EndTime:       name.End,
			Rows:          shape[0],
			Columns:       shape[1],
			Extra: map[string]interface{}{
				"platform":            name.Mission,
				"instrument":          name.Instrument,
				"spatial_sampling_ac": g.SamplingAC,
				"spatial_sampling_al": g.SamplingAL,
			},
		},
		fields: make(map[string]*field),
		tieAC:  1,
		tieAL:  1,
		reader: r,
	}
	if !name.Creation.IsZero() {
		p.meta.Extra["creation_time"] = name.Creation
	}

	for _, file := range files {
		stem := strings.TrimSuffix(file, ".nc")
		if gi, ok := o.Layout.gridFor(stem); ok && gi == index {
			if err := o.scanFile(p, filepath.Join(dir, file)); err != nil {
				return nil, err
			}
		}
		for _, c := range g.Coarse {
			if strings.HasSuffix(stem, c.Suffix) {
				if err := o.scanCoarse(p, filepath.Join(dir, file), c); err != nil {
					return nil, err
				}
			}
		}
	}
	return p, nil
}

// scanFile registers the full-grid and tie-point variables of one file.
func (o *Opener) scanFile(p *Product, path string) error {
	grp, err := p.reader.open(path)
	if err != nil {
		return openError(path, err)
	}
	defer grp.Close()

	width, height := p.meta.Columns, p.meta.Rows
	if attrs := grp.Attributes(); attrs != nil {
		if ac, ok := attrFloat(attrs, "ac_subsampling_factor"); ok && ac >= 1 {
			p.tieAC = int(ac)
		}
		if al, ok := attrFloat(attrs, "al_subsampling_factor"); ok && al >= 1 {
			p.tieAL = int(al)
		}
	}
	tieN := int64(tieSize(width, p.tieAC) * tieSize(height, p.tieAL))

	for _, v := range grp.ListVariables() {
		vg, err := grp.GetVarGetter(v)
		if err != nil {
			return openError(path, err)
		}
		dims := vg.Dimensions()
		n := vg.Len()

		if pattern, ok := o.Layout.Detectors.pattern(v); ok && len(dims) == 2 {
			if err := o.scanTable(p, path, grp, v, pattern, vg); err != nil {
				return err
			}
			continue
		}

		switch {
		case len(dims) == 2 && n == int64(width*height) && !isTie(dims):
			o.addField(p, v, &field{file: path, variable: v, kind: kindFull, plane: -1}, vg)
		case len(dims) == 2 && isTie(dims) && n == tieN:
			o.addField(p, v, &field{file: path, variable: v, kind: kindTie, plane: -1}, vg)
		case len(dims) == 3 && isTie(dims) && tieN > 0 && n%tieN == 0:
			planes := int(n / tieN)
			for k := 0; k < planes; k++ {
				name := o.Layout.planeName(v, k+1)
				o.addField(p, name, &field{file: path, variable: v, kind: kindTie, plane: k, planes: planes}, vg)
			}
		}
	}
	return nil
}

// scanTable registers one field per band of a (bands, detectors) table.
func (o *Opener) scanTable(p *Product, path string, grp api.Group, v, pattern string, vg api.VarGetter) error {
	tv, err := grp.GetVariable(v)
	if err != nil {
		return openError(path, err)
	}
	_, shape, err := flatten(tv.Values)
	if err != nil {
		return errors.Errorf(errors.ErrCodeAdapterOpen, "cannot decode %s", v).
			WithCause(err).WithComponent("sen3")
	}
	if len(shape) != 2 {
		return nil
	}
	for band := 0; band < shape[0]; band++ {
		o.addField(p, fmt.Sprintf(pattern, band+1), &field{
			file:     path,
			variable: v,
			kind:     kindDetector,
			plane:    band,
			planes:   shape[1],
			index:    o.Layout.Detectors.Index,
		}, vg)
	}
	return nil
}

// scanCoarse registers the fields of a coarser grid file selected by c.
func (o *Opener) scanCoarse(p *Product, path string, c Coarse) error {
	grp, err := p.reader.open(path)
	if err != nil {
		return openError(path, err)
	}
	defer grp.Close()

	want := int64(coarseSize(p.meta.Columns, c.Factor) * coarseSize(p.meta.Rows, c.Factor))
	for _, v := range grp.ListVariables() {
		if c.Fields != nil && !c.Fields.MatchString(v) {
			continue
		}
		vg, err := grp.GetVarGetter(v)
		if err != nil {
			return openError(path, err)
		}
		if len(vg.Dimensions()) == 2 && vg.Len() == want {
			o.addField(p, v, &field{file: path, variable: v, kind: kindCoarse, factor: c.Factor, plane: -1}, vg)
		}
	}
	return nil
}

func (o *Opener) addField(p *Product, name string, f *field, vg api.VarGetter) {
	if _, dup := p.fields[name]; dup {
		return
	}
	attrs := vg.Attributes()
	wl, bw := o.Layout.spectral(name)
	f.scale = newScaling(attrs)
	f.info = types.FieldInfo{
		Name:       name,
		DType:      vg.Type(),
		Shape:      []int{p.meta.Rows, p.meta.Columns},
		Units:      attrString(attrs, "units"),
		Wavelength: wl,
		Bandwidth:  bw,
	}
	p.fields[name] = f
	p.order = append(p.order, name)
}

func isTie(dims []string) bool {
	return strings.HasPrefix(dims[0], "tie_")
}

func productDir(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Errorf(errors.ErrCodeAdapterOpen, "cannot open %s", path).
			WithCause(err).WithComponent("sen3")
	}
	if info.IsDir() {
		return filepath.Clean(path), nil
	}
	return filepath.Dir(path), nil
}

func openError(path string, err error) error {
	return errors.Errorf(errors.ErrCodeAdapterOpen, "cannot read %s", filepath.Base(path)).
		WithCause(err).WithComponent("sen3")
}

// reader decodes variables and shares the raster cache between the grids of
// one product.
type reader struct {
	open  GroupOpener
	cache *cache.LRUCache
}

func (r *reader) cached(key string) *types.Raster {
	if r.cache == nil {
		return nil
	}
	return r.cache.Get(key)
}

func (r *reader) store(key string, raster *types.Raster) {
	if r.cache != nil {
		r.cache.Put(key, raster)
	}
}

func (r *reader) values(path, variable string) ([]float64, []int, error) {
	grp, err := r.open(path)
	if err != nil {
		return nil, nil, openError(path, err)
	}
	defer grp.Close()

	v, err := grp.GetVariable(variable)
	if err != nil {
		return nil, nil, errors.Errorf(errors.ErrCodeVariableNotFound, "no variable %s in %s", variable, filepath.Base(path)).
			WithCause(err).WithComponent("sen3")
	}
	vals, shape, err := flatten(v.Values)
	if err != nil {
		return nil, nil, errors.Errorf(errors.ErrCodeRegionExtraction, "cannot decode %s", variable).
			WithCause(err).WithComponent("sen3")
	}
	return vals, shape, nil
}

// read decodes f into a width x height raster.
func (r *reader) read(f *field, width, height int) (*types.Raster, error) {
	vals, _, err := r.values(f.file, f.variable)
	if err != nil {
		return nil, err
	}
	if f.plane >= 0 {
		plane := make([]float64, 0, width*height)
		for i := f.plane; i < len(vals); i += f.planes {
			plane = append(plane, vals[i])
		}
		vals = plane
	}
	if len(vals) != width*height {
		return nil, errors.Errorf(errors.ErrCodeRegionExtraction,
			"%s has %d values, want %dx%d", f.variable, len(vals), width, height).
			WithComponent("sen3")
	}
	return f.scale.decode(vals, width, height), nil
}
