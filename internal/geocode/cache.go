package geocode

import (
	"context"
	"fmt"
	"strings"

	"github.com/bbernstein/gotgas/backend-go/internal/cache"
	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
)

// CachedGeocoder wraps a Geocoder with a TTL'd LRU cache. Only non-empty
// results are cached so a transient miss can be retried.
type CachedGeocoder struct {
	inner   Geocoder
	forward *cache.LRU[string, Place]
	reverse *cache.LRU[string, string]
	metrics *metrics.Metrics
}

var _ Geocoder = (*CachedGeocoder)(nil)

func NewCachedGeocoder(inner Geocoder, forward *cache.LRU[string, Place], reverse *cache.LRU[string, string], m *metrics.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		forward: forward,
		reverse: reverse,
		metrics: m,
	}
}

func (c *CachedGeocoder) Forward(ctx context.Context, query string) (Place, error) {
	key := "fwd:" + strings.ToLower(strings.TrimSpace(query))
	if place, ok := c.forward.Get(key); ok {
		c.observe("hit")
		return place, nil
	}
	c.observe("miss")

	place, err := c.inner.Forward(ctx, query)
	if err != nil {
		return place, err
	}
	c.forward.Set(key, place)
	return place, nil
}

func (c *CachedGeocoder) Reverse(ctx context.Context, coord geo.Coordinate) (string, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", coord.Latitude, coord.Longitude)
	if name, ok := c.reverse.Get(key); ok {
		c.observe("hit")
		return name, nil
	}
	c.observe("miss")

	name, err := c.inner.Reverse(ctx, coord)
	if err != nil {
		return name, err
	}
	if name != "" {
		c.reverse.Set(key, name)
	}
	return name, nil
}

func (c *CachedGeocoder) observe(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.GeocodeCache.WithLabelValues(result).Inc()
}
