package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/price-locator/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/price-locator/internal/adapter/kafka"
	"github.com/couchcryptid/price-locator/internal/adapter/mapbox"
	"github.com/couchcryptid/price-locator/internal/adapter/seed"
	"github.com/couchcryptid/price-locator/internal/aggregator"
	"github.com/couchcryptid/price-locator/internal/cache"
	"github.com/couchcryptid/price-locator/internal/config"
	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/freight"
	"github.com/couchcryptid/price-locator/internal/geo"
	"github.com/couchcryptid/price-locator/internal/locator"
	"github.com/couchcryptid/price-locator/internal/observability"
	"github.com/couchcryptid/price-locator/internal/scoring"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// metrics registers with the default registry exactly once per process.
var metrics = sync.OnceValue(observability.NewMetrics)

// app is a fully wired service plus the resources it must release.
type app struct {
	service *locator.Service
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(cfg *config.Config, logger *slog.Logger, m *observability.Metrics) (*app, error) {
	a := &app{}
	clock := clockwork.NewRealClock()
	regions := domain.Regions()
	var readiness []locator.ReadinessCheck

	var store domain.QuoteCache
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rs := cache.NewRedisStore(client, cfg.CacheTTL)
		a.closers = append(a.closers, client.Close)
		readiness = append(readiness, func(ctx context.Context) error {
			if err := rs.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})
		store = rs
		logger.Info("quote cache", "backend", "redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	default:
		store = cache.NewMemoryStore(cfg.CacheMaxEntries, cfg.CacheTTL, clock)
		logger.Info("quote cache", "backend", "memory", "max_entries", cfg.CacheMaxEntries, "ttl", cfg.CacheTTL)
	}

	providers := []domain.SourceProvider{seed.New(clock)}
	for _, u := range cfg.FeedURLs {
		p, err := feed.NewProvider(u, cfg.ProviderTimeout, logger, clock)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		providers = append(providers, p)
	}

	sources := []geo.PostalSource{{Name: "cep_table", Lookup: geo.NewCEPTable(regions)}}
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, m)
		// Mapbox knows street-level centroids, so it goes ahead of the state table.
		sources = append([]geo.PostalSource{{
			Name:   "mapbox",
			Lookup: mapbox.NewCachedLookup(client, cfg.MapboxCacheSize, m),
		}}, sources...)
		m.MapboxEnabled.Set(1)
		logger.Info("mapbox postal lookup enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		m.MapboxEnabled.Set(0)
		logger.Info("mapbox postal lookup disabled")
	}
	resolver := geo.NewResolver(sources, geo.NewRegionIndex(regions), logger, m)

	var publisher domain.ResultPublisher
	if cfg.AuditEnabled {
		pub := kafkaadapter.NewPublisher(cfg, logger, m)
		a.closers = append(a.closers, pub.Close)
		publisher = pub
		logger.Info("search audit enabled", "topic", cfg.KafkaAuditTopic, "brokers", cfg.KafkaBrokers)
	}

	agg := aggregator.New(providers, store, cfg.ProviderTimeout, logger, m, clock)
	est := freight.NewEstimator(regions, logger, m, freight.WithFuel(cfg.FuelPrice, cfg.FuelConsumptionPerKm))
	scorer := scoring.NewEngine(cfg.PriceCap, cfg.TimeCap)

	a.service = locator.New(resolver, agg, est, scorer, logger, m, locator.Options{
		TopN:          cfg.TopN,
		SearchTimeout: cfg.SearchTimeout,
		Regions:       regions,
		Publisher:     publisher,
		Clock:         clock,
		Readiness:     readiness,
	})
	logger.Info("price locator ready", "providers", agg.Providers())
	return a, nil
}
