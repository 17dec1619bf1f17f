// Package adapters registers the supported product families with an adapter
// registry. Each family is a name pattern, a taxonomy override record and a
// raster backend.
package adapters

import (
	"github.com/eoprod/eoprod/internal/backend/sen3"
	"github.com/eoprod/eoprod/internal/cache"
	"github.com/eoprod/eoprod/internal/product"
	"github.com/eoprod/eoprod/internal/registry"
	"github.com/eoprod/eoprod/internal/taxonomy"
	"github.com/eoprod/eoprod/pkg/errors"
	"github.com/eoprod/eoprod/pkg/types"
)

// Backends supplies the raster readers shared by the registered families.
type Backends struct {
	// Cache holds decoded Sentinel-3 rasters. Nil disables caching.
	Cache *cache.LRUCache
	// OpenGroup overrides the NetCDF reader of the Sentinel-3 families.
	OpenGroup sen3.GroupOpener
	// MSI opens Sentinel-2 SAFE products. Without it the MSI families still
	// resolve but are registered as unavailable.
	MSI product.Opener
}

// Names returns the family names in registration order.
func Names() []string {
	out := make([]string, len(definitions))
	for i, s := range definitions {
		out[i] = s.name
	}
	return out
}

// Register adds every family to reg in a fixed order.
func Register(reg *registry.Registry, b Backends) error {
	for _, s := range definitions {
		entry := registry.Entry{
			Name:        s.name,
			Match:       registry.Any(registry.MatchDir(s.dirPattern), registry.MatchType(s.productTypes...)),
			New:         constructor(s, b),
			Unavailable: unavailable(s, b),
		}
		if err := reg.Register(entry); err != nil {
			return err
		}
	}
	return nil
}

func constructor(s definition, b Backends) registry.Constructor {
	strategy := taxonomy.DefaultStrategy()
	strategy.ProductType = s.productType
	resolver := taxonomy.NewResolver(strategy, s.family)

	return func(opts registry.Options) *product.Adapter {
		return &product.Adapter{
			Family:   s.name,
			Taxonomy: resolver,
			Opener:   opener(s, b, opts),
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
		}
	}
}

// NoMSIBackend is the unavailability reason of the Sentinel-2 families when
// Backends.MSI is nil.
const NoMSIBackend = "no Sentinel-2 backend configured"

func unavailable(s definition, b Backends) string {
	if s.layout == nil && b.MSI == nil {
		return NoMSIBackend
	}
	return ""
}

func opener(s definition, b Backends, opts registry.Options) product.Opener {
	if s.layout == nil {
		if b.MSI != nil {
			return b.MSI
		}
		return product.OpenerFunc(func(path string) ([]types.NativeProduct, error) {
			return nil, errors.Errorf(errors.ErrCodeAdapterOpen, "%s for %s", NoMSIBackend, path).
				WithComponent("adapters").WithContext("family", s.name)
		})
	}

	o := sen3.NewOpener(s.layout(), b.Cache, opts.Logger)
	if b.OpenGroup != nil {
		o.OpenGroup = b.OpenGroup
	}
	return o
}
