package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gotgas"

// Metrics holds the Prometheus collectors for station discovery and favorites.
type Metrics struct {
	Searches         *prometheus.CounterVec // labels: outcome={ready,failed,stale}
	SearchDuration   prometheus.Histogram
	StationsReturned prometheus.Histogram

	ProviderRequests *prometheus.CounterVec // labels: outcome={success,error}

	GeocodeRequests *prometheus.CounterVec // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	FavoritesMutations *prometheus.CounterVec // labels: op={add,remove,rename}, outcome={success,unchanged,rejected,error}
}

func newCollectors() *Metrics {
	return &Metrics{
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Station searches by final outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of a complete station search.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		StationsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stations_returned",
			Help:      "Stations in each ready search result.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Map data provider requests by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		FavoritesMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorites_mutations_total",
			Help:      "Favorites store mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
}

// NewMetrics creates and registers all collectors with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(
		m.Searches,
		m.SearchDuration,
		m.StationsReturned,
		m.ProviderRequests,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.FavoritesMutations,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many instances as they like.
func NewMetricsForTesting() *Metrics {
	return newCollectors()
}
