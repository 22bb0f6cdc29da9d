package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Quote cache.
	CacheBackend    string
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisAddr       string

	ProviderTimeout time.Duration
	SearchTimeout   time.Duration
	FeedURLs        []string

	// Freight and scoring model.
	FuelPrice            float64
	FuelConsumptionPerKm float64
	PriceCap             float64
	TimeCap              float64
	TopN                 int

	// Mapbox postal lookup configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Search audit trail.
	AuditEnabled    bool
	KafkaBrokers    []string
	KafkaAuditTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	providerTimeout, err := parsePositiveDuration("PROVIDER_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}
	searchTimeout, err := parsePositiveDuration("SEARCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	cacheMaxEntries, err := parsePositiveInt("CACHE_MAX_ENTRIES", 1024)
	if err != nil {
		return nil, err
	}
	topN, err := parsePositiveInt("TOP_N", 10)
	if err != nil {
		return nil, err
	}

	fuelPrice, err := parsePositiveFloat("FUEL_PRICE", 6.0)
	if err != nil {
		return nil, err
	}
	fuelConsumption, err := parsePositiveFloat("FUEL_CONSUMPTION_PER_KM", 0.01)
	if err != nil {
		return nil, err
	}
	priceCap, err := parsePositiveFloat("PRICE_CAP", 200)
	if err != nil {
		return nil, err
	}
	timeCap, err := parsePositiveFloat("TIME_CAP", 10)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CacheBackend:    strings.ToLower(sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheBackendMemory)),
		CacheTTL:        cacheTTL,
		CacheMaxEntries: cacheMaxEntries,
		RedisAddr:       sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),

		ProviderTimeout: providerTimeout,
		SearchTimeout:   searchTimeout,
		FeedURLs:        splitList(os.Getenv("FEED_URLS")),

		FuelPrice:            fuelPrice,
		FuelConsumptionPerKm: fuelConsumption,
		PriceCap:             priceCap,
		TimeCap:              timeCap,
		TopN:                 topN,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		AuditEnabled:    os.Getenv("AUDIT_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAuditTopic: sharedcfg.EnvOrDefault("KAFKA_AUDIT_TOPIC", "price-search-results"),
	}

	switch cfg.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required when CACHE_BACKEND is redis")
		}
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory or redis", cfg.CacheBackend)
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.AuditEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when AUDIT_ENABLED is true")
		}
		if cfg.KafkaAuditTopic == "" {
			return nil, errors.New("KAFKA_AUDIT_TOPIC is required when AUDIT_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
