// Package collocate resamples a slave product onto the grid of a master
// product.
package collocate

import (
	stderrors "errors"
	"time"

	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Engine pairs sub-products and delegates the pixel work to a Collocator.
type Engine struct {
	Collocator types.Collocator
	Rules      types.RenameRules
	Logger     *utils.Logger
	Metrics    types.MetricsCollector
}

// NewEngine returns an engine using the grid collocator and the default
// rename rules: master bands get the _M suffix, slave bands keep their names.
func NewEngine(logger *utils.Logger, metrics types.MetricsCollector) *Engine {
	return &Engine{
		Collocator: &GridCollocator{},
		Rules:      types.DefaultRenameRules(),
		Logger:     logger.OrNop().WithComponent("collocate"),
		Metrics:    metrics,
	}
}

// Collocate resamples slave onto master. resampling is validated before any
// work is done. Neither input is modified; on failure every handle produced
// so far is closed.
func (e *Engine) Collocate(slave, master *product.Aggregate, resampling string) (out *product.Aggregate, err error) {
	start := time.Now()
	log := e.Logger.OrNop()
	defer func() {
		if e.Metrics != nil {
			e.Metrics.RecordOperation("collocate", time.Since(start), err == nil)
			if err != nil {
				e.Metrics.RecordError("collocate", err)
			}
		}
		if err != nil {
			log.Warnw("Collocation failed", "error", err, "resampling", resampling)
		}
	}()

	method, err := types.ParseResamplingMethod(resampling)
	if err != nil {
		return nil, err
	}
	if slave == nil || master == nil {
		return nil, errors.NewError(errors.ErrCodeCollocationFailed, "collocation needs a slave and a master product").
			WithComponent("collocate")
	}

	slaveSubs, masterSubs := slave.SubProducts(), master.SubProducts()
	handles := make([]types.NativeProduct, 0, len(slaveSubs))
	release := func() error {
		var errs []error
		for _, h := range handles {
			if cerr := h.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		return stderrors.Join(errs...)
	}

	for i, s := range slaveSubs {
		m := masterSubs[0]
		if len(masterSubs) > 1 && i < len(masterSubs) {
			m = masterSubs[i]
		}
		h, cerr := e.Collocator.Collocate(m.Handle, s.Handle, method, e.Rules)
		if cerr != nil {
			if errors.CodeOf(cerr) == errors.ErrCodeUnknownError {
				cerr = errors.Errorf(errors.ErrCodeCollocationFailed,
					"cannot collocate %s onto %s", s.Name, m.Name).WithCause(cerr).WithComponent("collocate")
			}
			return nil, stderrors.Join(cerr, release())
		}
		handles = append(handles, h)
	}

	entry := product.NewEntry("collocate",
		"slave_product", slave.Attributes().ProductName,
		"master_product", master.Attributes().ProductName,
		"resampling", string(method))
	variables, names, fields := carried(slave, handles, e.Rules)
	out, err = slave.DeriveMapped(handles, variables, names, fields, entry, nil)
	if err != nil {
		return nil, stderrors.Join(err, release())
	}
	if dropped := len(slave.Variables()) - len(variables); dropped > 0 {
		log.Debugw("Variables not carried by collocation", "count", dropped)
	}

	log.Debugw("Collocated product",
		"slave", slave.Attributes().ProductName,
		"master", master.Attributes().ProductName,
		"resampling", method)
	return out, nil
}

// carried keeps the slave variables whose fields survived collocation and
// maps each one to its field in the collocated handle, which carries the
// slave rename.
func carried(slave *product.Aggregate, handles []types.NativeProduct, rules types.RenameRules) (
	[]types.Descriptor, [][]string, []map[string]string) {
	subs := slave.SubProducts()
	names := make([][]string, len(subs))
	fields := make([]map[string]string, len(subs))
	kept := make(map[string]bool)
	for i, s := range subs {
		fields[i] = make(map[string]string)
		for _, v := range s.VariableNames {
			if v != taxonomy.TimeStampName {
				native := rules.SlaveName(s.Field(v))
				if _, err := handles[i].Field(native); err != nil {
					continue
				}
				fields[i][v] = native
			}
			names[i] = append(names[i], v)
			kept[v] = true
		}
	}

	var variables []types.Descriptor
	for _, d := range slave.Variables() {
		if kept[d.Name] {
			variables = append(variables, d)
		}
	}
	return variables, names, fields
}
