package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bbernstein/gotgas/backend-go/internal/geo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type FavoritesBackend string

const (
	BackendFile     FavoritesBackend = "file"
	BackendS3       FavoritesBackend = "s3"
	BackendDynamoDB FavoritesBackend = "dynamodb"
)

const (
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"
	DefaultMapboxURL   = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	DefaultSlot        = "gotgas:favorites"
)

// DefaultCenter is used when a search names no location
var DefaultCenter = geo.Coordinate{Latitude: 35.311795, Longitude: -80.741203}

type Config struct {
	Environment string
	LogLevel    zerolog.Level
	HTTPTimeout time.Duration
	HTTPAddr    string

	OverpassURL string
	MapboxToken string
	MapboxURL   string

	DefaultCenter      geo.Coordinate
	DefaultRadiusMiles float64
	EnrichStagger      time.Duration
	EnrichLimit        int

	FavoritesBackend FavoritesBackend
	FavoritesDir     string
	FavoritesBucket  string
	FavoritesTable   string
	FavoritesSlot    string
}

type Option func(*Config)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(level)
		if err != nil {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

// WithHTTPTimeout allows setting the HTTP timeout
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

func WithHTTPAddr(addr string) Option {
	return func(c *Config) {
		c.HTTPAddr = addr
	}
}

func WithOverpassURL(url string) Option {
	return func(c *Config) {
		c.OverpassURL = url
	}
}

// WithMapbox sets the geocoding credential and endpoint. An empty token
// disables map features.
func WithMapbox(token, url string) Option {
	return func(c *Config) {
		c.MapboxToken = strings.TrimSpace(token)
		if url != "" {
			c.MapboxURL = url
		}
	}
}

func WithDefaultRadius(miles float64) Option {
	return func(c *Config) {
		c.DefaultRadiusMiles = miles
	}
}

func WithEnrichment(stagger time.Duration, limit int) Option {
	return func(c *Config) {
		c.EnrichStagger = stagger
		c.EnrichLimit = limit
	}
}

func WithFavoritesBackend(backend string) Option {
	return func(c *Config) {
		c.FavoritesBackend = FavoritesBackend(strings.ToLower(backend))
	}
}

func WithFavoritesLocation(dir, bucket, table, slot string) Option {
	return func(c *Config) {
		c.FavoritesDir = dir
		c.FavoritesBucket = bucket
		c.FavoritesTable = table
		c.FavoritesSlot = slot
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment:        "production",
		LogLevel:           zerolog.InfoLevel,
		HTTPTimeout:        10 * time.Second,
		HTTPAddr:           ":8080",
		OverpassURL:        DefaultOverpassURL,
		MapboxURL:          DefaultMapboxURL,
		DefaultCenter:      DefaultCenter,
		DefaultRadiusMiles: 40,
		EnrichStagger:      100 * time.Millisecond,
		EnrichLimit:        8,
		FavoritesBackend:   BackendFile,
		FavoritesDir:       "data",
		FavoritesSlot:      DefaultSlot,
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// MapsEnabled reports whether a geocoding credential is configured
func (c *Config) MapsEnabled() bool {
	return c.MapboxToken != ""
}

// Validate checks the settings that cannot be defaulted sensibly
func (c *Config) Validate() error {
	switch c.FavoritesBackend {
	case BackendFile:
		if c.FavoritesDir == "" {
			return fmt.Errorf("favorites backend %q requires FAVORITES_DIR", c.FavoritesBackend)
		}
	case BackendS3:
		if c.FavoritesBucket == "" {
			return fmt.Errorf("favorites backend %q requires FAVORITES_BUCKET", c.FavoritesBackend)
		}
	case BackendDynamoDB:
		if c.FavoritesTable == "" {
			return fmt.Errorf("favorites backend %q requires FAVORITES_TABLE", c.FavoritesBackend)
		}
	default:
		return fmt.Errorf("unknown favorites backend %q", c.FavoritesBackend)
	}

	if err := c.DefaultCenter.Validate(); err != nil {
		return fmt.Errorf("default center: %w", err)
	}
	if c.DefaultRadiusMiles < geo.MinRadiusMiles || c.DefaultRadiusMiles > geo.MaxRadiusMiles {
		return fmt.Errorf("default radius %v outside [%v, %v]", c.DefaultRadiusMiles, geo.MinRadiusMiles, geo.MaxRadiusMiles)
	}
	if c.EnrichLimit < 1 {
		return fmt.Errorf("enrich limit must be positive, got %d", c.EnrichLimit)
	}
	if c.EnrichStagger < 0 {
		return fmt.Errorf("enrich stagger must not be negative, got %s", c.EnrichStagger)
	}
	return nil
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	// Setup console logger for development environments
	if c.Environment == "local" || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// GOTGAS_CONFIG and then environment variables, and validates the result.
func Load() (*Config, error) {
	cfg := New()

	if path := os.Getenv("GOTGAS_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := New()
	applyEnv(cfg)
	return cfg
}

// applyEnv overrides cfg with every variable that is set
func applyEnv(cfg *Config) {
	token := getEnvOrDefault("MAPBOX_TOKEN", getEnvOrDefault("NEXT_PUBLIC_MAPBOX_TOKEN", cfg.MapboxToken))

	opts := []Option{
		WithEnvironment(getEnvOrDefault("ENV", cfg.Environment)),
		WithLogLevel(getEnvOrDefault("LOG_LEVEL", cfg.LogLevel.String())),
		WithHTTPTimeout(getDurationEnvOrDefault("HTTP_TIMEOUT", cfg.HTTPTimeout)),
		WithHTTPAddr(getEnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)),
		WithOverpassURL(getEnvOrDefault("OVERPASS_URL", cfg.OverpassURL)),
		WithMapbox(token, getEnvOrDefault("MAPBOX_URL", cfg.MapboxURL)),
		WithDefaultRadius(getEnvFloat("DEFAULT_RADIUS_MILES", cfg.DefaultRadiusMiles)),
		WithEnrichment(
			getDurationEnvOrDefault("ENRICH_STAGGER", cfg.EnrichStagger),
			getEnvInt("ENRICH_LIMIT", cfg.EnrichLimit),
		),
		WithFavoritesBackend(getEnvOrDefault("FAVORITES_BACKEND", string(cfg.FavoritesBackend))),
		WithFavoritesLocation(
			getEnvOrDefault("FAVORITES_DIR", cfg.FavoritesDir),
			getEnvOrDefault("FAVORITES_BUCKET", cfg.FavoritesBucket),
			getEnvOrDefault("FAVORITES_TABLE", cfg.FavoritesTable),
			getEnvOrDefault("FAVORITES_SLOT", cfg.FavoritesSlot),
		),
	}
	for _, opt := range opts {
		opt(cfg)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Warn().Str("key", key).Msg("Invalid duration value in environment variable, using default")
	}
	return defaultValue
}
