// Package app wires configuration into the handlers used by the cmd binaries.
package app

import (
	"context"
	"fmt"

	"github.com/bbernstein/gotgas/backend-go/internal/cache"
	"github.com/bbernstein/gotgas/backend-go/internal/config"
	"github.com/bbernstein/gotgas/backend-go/internal/favorites"
	"github.com/bbernstein/gotgas/backend-go/internal/geocode"
	"github.com/bbernstein/gotgas/backend-go/internal/handler"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/internal/overpass"
	"github.com/bbernstein/gotgas/backend-go/internal/station"
	"github.com/bbernstein/gotgas/backend-go/internal/storage"
	"github.com/bbernstein/gotgas/backend-go/pkg/http/client"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// NewFavoritesBlob opens the favorites slot on the configured backend
func NewFavoritesBlob(ctx context.Context, cfg *config.Config) (favorites.Blob, error) {
	switch cfg.FavoritesBackend {
	case config.BackendFile:
		blob := storage.NewFileBlob(cfg.FavoritesDir, cfg.FavoritesSlot)
		log.Debug().Str("path", blob.Path()).Msg("Using file favorites backend")
		return blob, nil
	case config.BackendS3:
		s3Client, err := storage.NewS3Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating S3 client: %w", err)
		}
		return storage.NewS3Blob(s3Client, cfg.FavoritesBucket, cfg.FavoritesSlot), nil
	case config.BackendDynamoDB:
		dynamoClient, err := storage.NewDynamoClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating DynamoDB client: %w", err)
		}
		return storage.NewDynamoBlob(dynamoClient, cfg.FavoritesTable, cfg.FavoritesSlot, clockwork.NewRealClock()), nil
	default:
		return nil, fmt.Errorf("unknown favorites backend %q", cfg.FavoritesBackend)
	}
}

func NewFavoritesStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*favorites.Store, error) {
	blob, err := NewFavoritesBlob(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return favorites.NewStore(blob, favorites.WithMetrics(m)), nil
}

// NewGeocoder returns nil when no Mapbox token is configured.
func NewGeocoder(cfg *config.Config, cacheCfg *config.CacheConfig, m *metrics.Metrics) (geocode.Geocoder, error) {
	if !cfg.MapsEnabled() {
		log.Warn().Msg("No Mapbox token configured, map features disabled")
		return nil, nil
	}

	httpClient := client.New(client.Options{
		BaseURL: cfg.MapboxURL,
		Timeout: cfg.HTTPTimeout,
	})
	mapbox := geocode.NewClient(cfg.MapboxToken, httpClient, m)
	if !cacheCfg.EnableLRUCache {
		return mapbox, nil
	}

	ttl := cacheCfg.GetGeocodeLRUTTL()
	forward, err := cache.NewLRU[string, geocode.Place](cacheCfg.GeocodeLRUSize, ttl, nil)
	if err != nil {
		return nil, fmt.Errorf("creating forward geocode cache: %w", err)
	}
	reverse, err := cache.NewLRU[string, string](cacheCfg.GeocodeLRUSize, ttl, nil)
	if err != nil {
		return nil, fmt.Errorf("creating reverse geocode cache: %w", err)
	}
	return geocode.NewCachedGeocoder(mapbox, forward, reverse, m), nil
}

func NewEngine(cfg *config.Config, m *metrics.Metrics, geocoder geocode.Geocoder, favs *favorites.Store) *station.Engine {
	httpClient := client.New(client.Options{
		BaseURL: cfg.OverpassURL,
		Timeout: cfg.HTTPTimeout,
	})

	opts := []station.Option{
		station.WithMetrics(m),
		station.WithStagger(cfg.EnrichStagger),
		station.WithEnrichLimit(cfg.EnrichLimit),
	}
	if geocoder != nil {
		opts = append(opts, station.WithReverser(geocoder))
	}
	if favs != nil {
		opts = append(opts, station.WithFavorites(favs))
	}
	return station.NewEngine(overpass.NewClient(httpClient, m), opts...)
}

// NewStationsHandler builds the search handler with its engine, geocoder and
// favorites cross-reference.
func NewStationsHandler(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*handler.StationsHandler, error) {
	geocoder, err := NewGeocoder(cfg, config.GetCacheConfig(), m)
	if err != nil {
		return nil, err
	}

	favs, err := NewFavoritesStore(ctx, cfg, m)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(cfg, m, geocoder, favs)
	return handler.NewStationsHandler(engine, geocoder, handler.StationsOptions{
		DefaultCenter:      cfg.DefaultCenter,
		DefaultRadiusMiles: cfg.DefaultRadiusMiles,
		MapsEnabled:        cfg.MapsEnabled(),
	}), nil
}

func NewFavoritesHandler(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*handler.FavoritesHandler, error) {
	favs, err := NewFavoritesStore(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	return handler.NewFavoritesHandler(favs), nil
}
