package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML overlay. Unset keys leave the current value alone.
type fileConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	HTTPTimeout string `yaml:"http_timeout"`
	HTTPAddr    string `yaml:"http_addr"`
	Overpass    struct {
		URL string `yaml:"url"`
	} `yaml:"overpass"`
	Mapbox struct {
		Token string `yaml:"token"`
		URL   string `yaml:"url"`
	} `yaml:"mapbox"`
	Search struct {
		DefaultLatitude    *float64 `yaml:"default_latitude"`
		DefaultLongitude   *float64 `yaml:"default_longitude"`
		DefaultRadiusMiles *float64 `yaml:"default_radius_miles"`
		EnrichStagger      string   `yaml:"enrich_stagger"`
		EnrichLimit        *int     `yaml:"enrich_limit"`
	} `yaml:"search"`
	Favorites struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
		Bucket  string `yaml:"bucket"`
		Table   string `yaml:"table"`
		Slot    string `yaml:"slot"`
	} `yaml:"favorites"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&cfg.Environment, fc.Environment)
	if fc.LogLevel != "" {
		WithLogLevel(fc.LogLevel)(cfg)
	}
	if err := setDuration(&cfg.HTTPTimeout, fc.HTTPTimeout); err != nil {
		return fmt.Errorf("http_timeout: %w", err)
	}
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.OverpassURL, fc.Overpass.URL)
	setString(&cfg.MapboxToken, fc.Mapbox.Token)
	setString(&cfg.MapboxURL, fc.Mapbox.URL)

	if fc.Search.DefaultLatitude != nil {
		cfg.DefaultCenter.Latitude = *fc.Search.DefaultLatitude
	}
	if fc.Search.DefaultLongitude != nil {
		cfg.DefaultCenter.Longitude = *fc.Search.DefaultLongitude
	}
	if fc.Search.DefaultRadiusMiles != nil {
		cfg.DefaultRadiusMiles = *fc.Search.DefaultRadiusMiles
	}
	if err := setDuration(&cfg.EnrichStagger, fc.Search.EnrichStagger); err != nil {
		return fmt.Errorf("search.enrich_stagger: %w", err)
	}
	if fc.Search.EnrichLimit != nil {
		cfg.EnrichLimit = *fc.Search.EnrichLimit
	}

	if fc.Favorites.Backend != "" {
		WithFavoritesBackend(fc.Favorites.Backend)(cfg)
	}
	setString(&cfg.FavoritesDir, fc.Favorites.Dir)
	setString(&cfg.FavoritesBucket, fc.Favorites.Bucket)
	setString(&cfg.FavoritesTable, fc.Favorites.Table)
	setString(&cfg.FavoritesSlot, fc.Favorites.Slot)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
