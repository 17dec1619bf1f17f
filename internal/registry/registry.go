// Package registry maps product paths and product-type strings to adapter
// constructors. The registry is a static ordered list of predicate and
// constructor pairs populated at startup.
package registry

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
	"github.com/eoprod/eoprod/pkg/utils"
)

// Options are handed to a constructor when an adapter is built.
type Options struct {
	Logger  *utils.Logger
	Metrics types.MetricsCollector
}

// Constructor builds the adapter of one product family.
type Constructor func(opts Options) *product.Adapter

// Matcher is a pure predicate over a path or product-type string.
type Matcher func(input string) bool

// Entry is one registered family.
type Entry struct {
	Name  string
	Match Matcher
	New   Constructor
	// Unavailable, when set, says why the family cannot be opened in this
	// build. Such entries still resolve.
	Unavailable string
}

// Check returns ADAPTER_OPEN when the entry cannot open products.
func (e Entry) Check(input string) error {
	if e.Unavailable == "" {
		return nil
	}
	return errors.Errorf(errors.ErrCodeAdapterOpen, "%s cannot open %s: %s", e.Name, input, e.Unavailable).
		WithComponent("registry").
		WithContext("family", e.Name)
}

// ResolutionRecorder is implemented by metrics collectors that count
// resolutions per adapter.
type ResolutionRecorder interface {
	RecordResolution(adapter string)
}

// Registry holds entries in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	enabled map[string]bool
	logger  *utils.Logger
	metrics ResolutionRecorder
}

// New creates an empty registry.
func New(logger *utils.Logger, metrics ResolutionRecorder) *Registry {
	return &Registry{
		logger:  logger.OrNop().WithComponent("registry"),
		metrics: metrics,
	}
}

// Register appends an entry. Names must be unique.
func (r *Registry) Register(e Entry) error {
	if e.Name == "" || e.Match == nil || e.New == nil {
		return errors.NewError(errors.ErrCodeAdapterRegistration, "entry requires a name, a matcher and a constructor").
			WithComponent("registry").
			WithContext("name", e.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.Name == e.Name {
			return errors.Errorf(errors.ErrCodeAdapterRegistration, "adapter %s already registered", e.Name).
				WithComponent("registry")
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

// Enable restricts resolution to the named entries. No names enables all.
func (r *Registry) Enable(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(names) == 0 {
		r.enabled = nil
		return nil
	}
	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		if !slices.ContainsFunc(r.entries, func(e Entry) bool { return e.Name == name }) {
			return errors.Errorf(errors.ErrCodeAdapterRegistration, "unknown adapter %s", name).
				WithComponent("registry")
		}
		enabled[name] = true
	}
	r.enabled = enabled
	return nil
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

// ResolveEntry returns the first enabled entry whose predicate matches input.
// Unavailable entries are returned like any other.
func (r *Registry) ResolveEntry(input string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if r.enabled != nil && !r.enabled[e.Name] {
			continue
		}
		if e.Match(input) {
			r.record(e.Name)
			r.logger.Debugw("Resolved adapter", "input", input, "adapter", e.Name)
			return e, true
		}
	}
	r.record("none")
	r.logger.Debugw("No adapter matches", "input", input)
	return Entry{}, false
}

// Resolve returns the constructor of the first matching entry, or nil when
// nothing matches. A miss is not an error.
func (r *Registry) Resolve(input string) Constructor {
	e, ok := r.ResolveEntry(input)
	if !ok {
		return nil
	}
	return e.New
}

// Open resolves path and opens it with the matched adapter. A miss is
// reported as ADAPTER_NOT_FOUND.
func (r *Registry) Open(path string, opts Options) (*product.Aggregate, error) {
	e, ok := r.ResolveEntry(path)
	if !ok {
		return nil, errors.Errorf(errors.ErrCodeAdapterNotFound, "no adapter understands %s", path).
			WithComponent("registry")
	}
	if err := e.Check(path); err != nil {
		return nil, err
	}
	return e.New(opts).Open(path)
}

func (r *Registry) record(name string) {
	if r.metrics != nil {
		r.metrics.RecordResolution(name)
	}
}

// DirName returns the product directory name of input: the base name, or the
// parent's when input points at a file inside a product.
func DirName(input string) string {
	return utils.ProductDirName(input)
}

// MatchDir builds a matcher testing the product directory name against a
// shell pattern (see path/filepath.Match).
func MatchDir(pattern string) Matcher {
	return func(input string) bool {
		ok, err := filepath.Match(pattern, DirName(input))
		return err == nil && ok
	}
}

// MatchType builds a matcher testing for an exact product-type string.
func MatchType(productTypes ...string) Matcher {
	return func(input string) bool {
		return slices.Contains(productTypes, strings.TrimSpace(input))
	}
}

// Any combines matchers with logical OR.
func Any(ms ...Matcher) Matcher {
	return func(input string) bool {
		for _, m := range ms {
			if m(input) {
				return true
			}
		}
		return false
	}
}
