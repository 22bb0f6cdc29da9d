// Package aggregator fans a commodity request out to every registered source
// provider and caches the merged quote snapshot per (commodity, volume bucket).
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// DefaultProviderTimeout bounds a single provider call when none is configured.
const DefaultProviderTimeout = 8 * time.Second

// Aggregator collects quotes from all providers, in registration order.
type Aggregator struct {
	providers []domain.SourceProvider
	cache     domain.QuoteCache
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	flights   singleflight.Group

	mu       sync.Mutex
	inflight map[string]*collection
}

// New creates an Aggregator. A non-positive timeout uses DefaultProviderTimeout.
func New(providers []domain.SourceProvider, cache domain.QuoteCache, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Aggregator{
		providers: providers,
		cache:     cache,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
		clock:     domain.ClockOrReal(clock),
		inflight:  make(map[string]*collection),
	}
}

// CacheKey returns the snapshot key for a commodity and volume.
func CacheKey(commodityID string, volume float64) string {
	return fmt.Sprintf("%s|%d", commodityID, VolumeBucket(volume))
}

// VolumeBucket groups volumes in steps of 1000 units.
func VolumeBucket(volume float64) int64 {
	if volume <= 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return 0
	}
	return int64(math.Floor(volume / 1000))
}

// Providers returns the registered provider names.
func (a *Aggregator) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

// Collect returns the quotes for commodityID. A fresh cached snapshot is
// returned as stored; otherwise every provider is queried concurrently and a
// complete, non-empty result is cached. Concurrent misses on the same key
// share one fan-out, which runs detached from any single caller and is
// bounded only by the provider timeout. A caller whose context ends first
// gets the quotes that have arrived so far, marked partial.
func (a *Aggregator) Collect(ctx context.Context, commodityID string, volume float64) domain.QuoteSet {
	key := CacheKey(commodityID, volume)

	if quotes, ok := a.cached(ctx, key); ok {
		return domain.QuoteSet{Quotes: quotes, CacheHit: true}
	}

	c := a.join(key)
	ch := a.flights.DoChan(key, func() (any, error) {
		return a.refresh(context.WithoutCancel(ctx), key, commodityID, c), nil
	})

	select {
	case res := <-ch:
		return share(res)
	case <-ctx.Done():
	}

	select {
	case res := <-ch:
		return share(res)
	default:
	}
	quotes := c.arrived()
	a.logger.Warn("search deadline reached, using quotes collected so far",
		"commodity", commodityID,
		"quotes", len(quotes),
		"error", ctx.Err(),
	)
	return domain.QuoteSet{Quotes: quotes, Partial: true}
}

// share gives every caller its own copy of the flight's quotes.
func share(res singleflight.Result) domain.QuoteSet {
	set, _ := res.Val.(domain.QuoteSet)
	set.Quotes = slices.Clone(set.Quotes)
	return set
}

// Clear drops every cached snapshot.
func (a *Aggregator) Clear(ctx context.Context) error {
	if err := a.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear quote cache: %w", err)
	}
	a.logger.Info("quote cache cleared")
	return nil
}

func (a *Aggregator) cached(ctx context.Context, key string) ([]domain.Quote, bool) {
	quotes, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.metrics.QuoteCache.WithLabelValues("error").Inc()
		a.logger.Warn("quote cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		a.metrics.QuoteCache.WithLabelValues("miss").Inc()
		a.logger.Debug("quote cache miss", "key", key)
		return nil, false
	}
	a.metrics.QuoteCache.WithLabelValues("hit").Inc()
	a.logger.Debug("quote cache hit", "key", key, "quotes", len(quotes))
	return quotes, true
}

// collection holds the provider results of one fan-out as they arrive.
type collection struct {
	mu      sync.Mutex
	started bool
	results []providerResult
}

type providerResult struct {
	quotes []domain.Quote
	done   bool
}

func (c *collection) record(i int, quotes []domain.Quote) {
	c.mu.Lock()
	c.results[i] = providerResult{quotes: quotes, done: true}
	c.mu.Unlock()
}

// arrived merges the finished providers' quotes in registration order.
func (c *collection) arrived() []domain.Quote {
	quotes, _ := c.merge()
	return quotes
}

func (c *collection) merge() ([]domain.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	complete := true
	var merged []domain.Quote
	for _, r := range c.results {
		if !r.done {
			complete = false
			continue
		}
		merged = append(merged, r.quotes...)
	}
	return merged, complete
}

// join returns the collection callers of key share until its fan-out ends.
func (a *Aggregator) join(key string) *collection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.inflight[key]; ok {
		return c
	}
	c := &collection{results: make([]providerResult, len(a.providers))}
	a.inflight[key] = c
	return c
}

// claim marks c as owned by the running fan-out. A collection already used by
// an earlier fan-out is replaced with a fresh one.
func (a *Aggregator) claim(key string, c *collection) *collection {
	a.mu.Lock()
	defer a.mu.Unlock()
	c.mu.Lock()
	used := c.started
	c.started = true
	c.mu.Unlock()
	if used {
		c = &collection{started: true, results: make([]providerResult, len(a.providers))}
	}
	a.inflight[key] = c
	return c
}

func (a *Aggregator) release(key string, c *collection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inflight[key] == c {
		delete(a.inflight, key)
	}
}

// refresh runs one fan-out for key and caches a complete, non-empty result.
func (a *Aggregator) refresh(ctx context.Context, key, commodityID string, c *collection) domain.QuoteSet {
	c = a.claim(key, c)
	defer a.release(key, c)

	if quotes, ok := a.cached(ctx, key); ok {
		return domain.QuoteSet{Quotes: quotes, CacheHit: true}
	}

	set := a.fanOut(ctx, commodityID, c)
	if !set.Partial && len(set.Quotes) > 0 {
		if err := a.cache.Set(ctx, key, set.Quotes); err != nil {
			a.logger.Warn("quote cache write failed", "key", key, "error", err)
		}
	}
	return set
}

func (a *Aggregator) fanOut(ctx context.Context, commodityID string, c *collection) domain.QuoteSet {
	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.record(i, a.collectOne(ctx, p, commodityID))
		}()
	}
	wg.Wait()

	merged, complete := c.merge()
	a.metrics.QuotesCollected.Observe(float64(len(merged)))
	return domain.QuoteSet{Quotes: merged, Partial: !complete}
}

// collectOne calls a single provider under its own timeout. Failures are
// logged and yield no quotes.
func (a *Aggregator) collectOne(ctx context.Context, p domain.SourceProvider, commodityID string) []domain.Quote {
	name := p.Name()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := a.clock.Now()
	quotes, err := p.Collect(ctx, commodityID)
	a.metrics.ProviderDuration.WithLabelValues(name).Observe(a.clock.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
			err = fmt.Errorf("%w: %s after %s: %w", domain.ErrProviderTimeout, name, a.timeout, err)
		} else if errors.Is(err, context.Canceled) {
			outcome = "cancelled"
		}
		a.metrics.ProviderRequests.WithLabelValues(name, outcome).Inc()
		a.logger.Warn("provider collection failed",
			"provider", name,
			"commodity", commodityID,
			"error", err,
		)
		return nil
	}

	valid := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.CommodityID != commodityID {
			a.metrics.InvalidQuotes.Inc()
			a.logger.Warn("dropping quote for other commodity",
				"provider", name,
				"want", commodityID,
				"got", q.CommodityID,
			)
			continue
		}
		if err := q.Validate(); err != nil {
			a.metrics.InvalidQuotes.Inc()
			a.logger.Warn("dropping invalid quote", "provider", name, "error", err)
			continue
		}
		if q.SourceName == "" {
			q.SourceName = name
		}
		valid = append(valid, q)
	}

	outcome := "success"
	if len(valid) == 0 {
		outcome = "empty"
	}
	a.metrics.ProviderRequests.WithLabelValues(name, outcome).Inc()
	a.logger.Debug("provider collected", "provider", name, "commodity", commodityID, "quotes", len(valid))
	return valid
}
