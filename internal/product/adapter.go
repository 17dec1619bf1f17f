package product

import (
	stderrors "errors"
	"time"

	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Opener opens the native sub-products stored at a path, finest resolution
// first.
type Opener interface {
	Open(path string) ([]types.NativeProduct, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) ([]types.NativeProduct, error)

// Open implements Opener.
func (f OpenerFunc) Open(path string) ([]types.NativeProduct, error) { return f(path) }

// Adapter turns a path into an aggregate for one product family.
type Adapter struct {
	Family   string
	Taxonomy *taxonomy.Resolver
	Opener   Opener
	Logger   *utils.Logger
	Metrics  types.MetricsCollector
}

// Open opens every sub-product at path, resolves their variables and builds
// the aggregate. On failure all handles opened so far are closed.
func (a *Adapter) Open(path string) (agg *Aggregate, err error) {
	start := time.Now()
	log := a.Logger.OrNop().With("family", a.Family, "path", path)
	defer func() {
		if a.Metrics != nil {
			a.Metrics.RecordOperation("open", time.Since(start), err == nil)
			if err != nil {
				a.Metrics.RecordError("open", err)
			}
		}
	}()

	handles, err := a.Opener.Open(path)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeUnknownError {
			err = errors.Errorf(errors.ErrCodeAdapterOpen, "cannot open %s", path).
				WithCause(err).WithComponent("adapter").WithContext("family", a.Family)
		}
		return nil, err
	}
	if len(handles) == 0 {
		return nil, errors.Errorf(errors.ErrCodeAdapterOpen, "no sub-products at %s", path).
			WithComponent("adapter")
	}

	agg, err = a.assemble(handles)
	if err != nil {
		errs := []error{err}
		for _, h := range handles {
			if cerr := h.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		log.Warnw("Open failed", "error", err)
		return nil, stderrors.Join(errs...)
	}

	log.Debugw("Opened product",
		"sub_products", len(handles),
		"variables", len(agg.variables))
	return agg, nil
}

func (a *Adapter) assemble(handles []types.NativeProduct) (*Aggregate, error) {
	resolver := a.Taxonomy
	if resolver == nil {
		resolver = taxonomy.NewResolver(nil, nil)
	}

	var (
		variables []types.Descriptor
		seen      = make(map[string]bool)
		subs      = make([]SubProduct, 0, len(handles))
	)
	for _, h := range handles {
		resolved, err := resolver.Resolve(h)
		if err != nil {
			return nil, err
		}
		sub := SubProduct{Name: h.Name(), Handle: h}
		for _, res := range resolved {
			d := res.Descriptor
			sub.VariableNames = append(sub.VariableNames, d.Name)
			if d.Name != res.Native {
				if sub.Fields == nil {
					sub.Fields = make(map[string]string)
				}
				sub.Fields[d.Name] = res.Native
			}
			// The finest sub-product describes a shared variable.
			if !seen[d.Name] {
				seen[d.Name] = true
				variables = append(variables, d)
			}
		}
		subs = append(subs, sub)
	}

	all := make([]string, len(variables))
	for i, d := range variables {
		all[i] = d.Name
	}
	if err := taxonomy.FromDescriptors(variables).Check(all); err != nil {
		return nil, err
	}

	productType := resolver.Strategy().ProductType
	return New(subs, variables, NewAttributes(handles, productType))
}
