package mapbox

import (
	"context"

	"github.com/couchcryptid/price-locator/internal/cache"
	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/observability"
)

// CachedLookup wraps a PostalLookup with an in-memory LRU cache.
type CachedLookup struct {
	inner   domain.PostalLookup
	cache   *cache.LRU[domain.PostalResult]
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a postal lookup.
func NewCachedLookup(inner domain.PostalLookup, maxEntries int, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   cache.NewLRU[domain.PostalResult](maxEntries, 0, nil),
		metrics: metrics,
	}
}

func (c *CachedLookup) LookupPostalCode(ctx context.Context, cep string) (domain.PostalResult, error) {
	if result, ok := c.cache.Get(cep); ok {
		c.metrics.PostalCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.PostalCache.WithLabelValues("miss").Inc()

	result, err := c.inner.LookupPostalCode(ctx, cep)
	if err != nil {
		return result, err
	}
	// Only cache hits so unknown CEPs can be retried.
	if result.Lat != 0 || result.Lon != 0 {
		c.cache.Put(cep, result)
	}
	return result, nil
}
