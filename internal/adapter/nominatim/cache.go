package nominatim

import (
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
)

// CachedGeocoder wraps a Geocoder with a process-lifetime cache keyed by the
// normalized query. "Not found" answers are cached too so an unresolvable
// place costs one upstream call. Errors are never cached.
type CachedGeocoder struct {
	inner   domain.Geocoder
	metrics *observability.Metrics

	mu      sync.RWMutex
	entries map[string]*domain.GeocodeResult
	flight  singleflight.Group
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		metrics: metrics,
		entries: make(map[string]*domain.GeocodeResult),
	}
}

// NormalizeQuery folds case and collapses whitespace so equivalent spellings
// share one cache entry.
func NormalizeQuery(query string) string {
	return cases.Fold().String(strings.Join(strings.Fields(query), " "))
}

// Resolve returns the cached answer for query or asks the wrapped geocoder.
// Concurrent misses for the same key share a single upstream call. A caller
// whose ctx ends stops waiting without cancelling the call for the others.
func (c *CachedGeocoder) Resolve(ctx context.Context, query string) (*domain.GeocodeResult, error) {
	key := NormalizeQuery(query)
	if key == "" {
		return nil, domain.Validation(op, "query must not be blank")
	}

	if result, ok := c.lookup(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	// The shared lookup outlives any one caller; the client timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		if result, ok := c.lookup(key); ok {
			return result, nil
		}
		result, err := c.inner.Resolve(shared, query)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = result
		c.mu.Unlock()
		return result, nil
	})

	select {
	case <-ctx.Done():
		return nil, domain.TransportFailure(op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyResult(res.Val.(*domain.GeocodeResult)), nil
	}
}

// Len reports the number of cached queries, including "not found" entries.
func (c *CachedGeocoder) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CachedGeocoder) lookup(key string) (*domain.GeocodeResult, bool) {
	c.mu.RLock()
	result, ok := c.entries[key]
	c.mu.RUnlock()
	return copyResult(result), ok
}

func copyResult(r *domain.GeocodeResult) *domain.GeocodeResult {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}
