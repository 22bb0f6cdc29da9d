// Package locator ranks sourcing options for a buyer: it resolves the buyer
// location, aggregates quotes, prices freight for each quote, and orders the
// results by weighted composite score.
package locator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// Defaults applied when a request or Options leaves a value unset.
const (
	DefaultVolume = 1000.0
	DefaultTopN   = 10

	// StaleAfter is the quote age past which confidence drops.
	StaleAfter = 24 * time.Hour
)

// Confidence penalties, multiplied together.
const (
	estimatedFreightFactor = 0.6
	unavailableFactor      = 0.5
	staleQuoteFactor       = 0.8
)

// LocationResolver normalizes free-form buyer input.
type LocationResolver interface {
	Resolve(ctx context.Context, raw string) (domain.Location, error)
}

// QuoteCollector returns the quotes for a commodity and drops cached snapshots.
type QuoteCollector interface {
	Collect(ctx context.Context, commodityID string, volume float64) domain.QuoteSet
	Clear(ctx context.Context) error
}

// FreightEstimator prices transport from an origin region to the buyer.
type FreightEstimator interface {
	Estimate(originRegion string, destination domain.Location, volume float64) (domain.Freight, error)
}

// Scorer computes a composite score for validated weights, lower is better.
type Scorer interface {
	Composite(q domain.Quote, f domain.Freight, w domain.Weights) float64
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Options tunes a Service. Zero values take the package defaults.
type Options struct {
	TopN          int
	SearchTimeout time.Duration
	Regions       map[string]domain.Region
	Publisher     domain.ResultPublisher
	Clock         clockwork.Clock
	Readiness     []ReadinessCheck
}

// Service is the price search orchestrator.
type Service struct {
	resolver  LocationResolver
	quotes    QuoteCollector
	freight   FreightEstimator
	scorer    Scorer
	logger    *slog.Logger
	metrics   *observability.Metrics
	topN      int
	timeout   time.Duration
	regions   map[string]domain.Region
	publisher domain.ResultPublisher
	clock     clockwork.Clock
	readiness []ReadinessCheck
}

// New creates a Service from its collaborators.
func New(resolver LocationResolver, quotes QuoteCollector, freight FreightEstimator, scorer Scorer, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Service {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Regions == nil {
		opts.Regions = domain.Regions()
	}
	return &Service{
		resolver:  resolver,
		quotes:    quotes,
		freight:   freight,
		scorer:    scorer,
		logger:    logger,
		metrics:   metrics,
		topN:      opts.TopN,
		timeout:   opts.SearchTimeout,
		regions:   opts.Regions,
		publisher: opts.Publisher,
		clock:     domain.ClockOrReal(opts.Clock),
		readiness: opts.Readiness,
	}
}

// Search runs a price search. The returned error wraps one of
// domain.ErrInvalidLocation, domain.ErrInvalidWeights,
// domain.ErrUnsupportedProduct, domain.ErrInvalidVolume or domain.ErrNoDataFound.
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResult, error) {
	start := s.clock.Now()
	result, err := s.search(ctx, req)
	s.metrics.SearchDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.SearchRequests.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		s.logger.Info("search rejected",
			"commodity", req.CommodityID,
			"location", req.BuyerLocation,
			"error", err,
		)
		return domain.SearchResult{}, err
	}

	s.logger.Info("search completed",
		"search_id", result.SearchID,
		"commodity", result.CommodityID,
		"location", result.BuyerLocation.String(),
		"options", result.TotalOptionsFound,
		"best_region", result.BestChoice.OriginRegion,
		"partial", result.Partial,
	)
	s.publish(ctx, result)
	return result, nil
}

func (s *Service) search(ctx context.Context, req domain.SearchRequest) (domain.SearchResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	loc, err := s.resolver.Resolve(ctx, req.BuyerLocation)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidLocation) {
			err = fmt.Errorf("%w: %w", domain.ErrInvalidLocation, err)
		}
		return domain.SearchResult{}, err
	}

	weights := domain.DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	if err := weights.Validate(); err != nil {
		return domain.SearchResult{}, err
	}

	commodity := NormalizeCommodity(req.CommodityID)
	if err := domain.ValidateProduct(commodity); err != nil {
		return domain.SearchResult{}, err
	}

	volume := DefaultVolume
	if req.Volume != nil {
		volume = *req.Volume
	}
	if volume <= 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return domain.SearchResult{}, fmt.Errorf("%w: %g", domain.ErrInvalidVolume, volume)
	}

	set := s.quotes.Collect(ctx, commodity, volume)
	if len(set.Quotes) == 0 {
		return domain.SearchResult{}, fmt.Errorf("%w for %s near %s", domain.ErrNoDataFound, commodity, loc)
	}

	now := s.clock.Now()
	choices := make([]domain.Choice, 0, len(set.Quotes))
	for _, q := range set.Quotes {
		// Price, total and score all see the same cent-rounded unit price.
		q.UnitPrice = roundCents(q.UnitPrice)
		f, err := s.freight.Estimate(q.OriginRegion, loc, volume)
		if err != nil {
			s.logger.Warn("skipping quote, freight estimate failed",
				"supplier", q.SupplierID,
				"region", q.OriginRegion,
				"error", err,
			)
			continue
		}
		choices = append(choices, s.choice(q, f, s.scorer.Composite(q, f, weights), now))
	}
	if len(choices) == 0 {
		return domain.SearchResult{}, fmt.Errorf("%w for %s near %s", domain.ErrNoDataFound, commodity, loc)
	}

	Rank(choices)
	total := len(choices)
	top := choices[:min(s.topN, total)]
	best := top[0]

	return domain.SearchResult{
		SearchID:          uuid.NewString(),
		CommodityID:       commodity,
		BuyerLocation:     loc,
		SearchTimestamp:   now.UTC(),
		WeightsUsed:       weights,
		Volume:            volume,
		Choices:           top,
		BestChoice:        &best,
		TotalOptionsFound: total,
		Partial:           set.Partial,
	}, nil
}

func (s *Service) choice(q domain.Quote, f domain.Freight, score float64, now time.Time) domain.Choice {
	return domain.Choice{
		OriginLabel:    s.originLabel(q),
		OriginRegion:   q.OriginRegion,
		UnitPrice:      q.UnitPrice,
		FreightCost:    f.Cost,
		TotalCost:      roundCents(q.UnitPrice + f.Cost),
		DistanceKm:     f.DistanceKm,
		LeadTimeDays:   f.LeadTimeDays,
		QualityScore:   q.QualityScore,
		CompositeScore: score,
		SupplierID:     q.SupplierID,
		SourceName:     q.SourceName,
		Confidence:     Confidence(q, f, now),
		Estimated:      f.Estimated(),
	}
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// originLabel renders "City - UF", or the region name without a city.
func (s *Service) originLabel(q domain.Quote) string {
	if q.OriginCity != "" {
		return q.OriginCity + " - " + q.OriginRegion
	}
	if r, ok := s.regions[q.OriginRegion]; ok {
		return r.Name
	}
	return q.OriginRegion
}

// Confidence rates how much a choice can be trusted, in [0,1].
func Confidence(q domain.Quote, f domain.Freight, now time.Time) float64 {
	c := 1.0
	if f.Estimated() {
		c *= estimatedFreightFactor
	}
	if !q.Available {
		c *= unavailableFactor
	}
	if !q.CollectedAt.IsZero() && now.Sub(q.CollectedAt) > StaleAfter {
		c *= staleQuoteFactor
	}
	return decimal.NewFromFloat(c).Round(2).InexactFloat64()
}

// Rank sorts choices by composite score, then SupplierID, then OriginRegion.
func Rank(choices []domain.Choice) {
	slices.SortStableFunc(choices, func(a, b domain.Choice) int {
		return cmp.Or(
			cmp.Compare(a.CompositeScore, b.CompositeScore),
			strings.Compare(a.SupplierID, b.SupplierID),
			strings.Compare(a.OriginRegion, b.OriginRegion),
		)
	})
}

// NormalizeCommodity lowercases and trims a commodity id.
func NormalizeCommodity(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (s *Service) publish(ctx context.Context, result domain.SearchResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, result); err != nil {
		s.logger.Warn("search audit publish failed", "search_id", result.SearchID, "error", err)
	}
}

// SupportedProducts lists the commodity ids Search accepts.
func (s *Service) SupportedProducts() []string {
	return domain.SupportedProducts()
}

// SupportedRegions returns a copy of the region catalogue.
func (s *Service) SupportedRegions() map[string]domain.Region {
	out := make(map[string]domain.Region, len(s.regions))
	for code, r := range s.regions {
		out[code] = r
	}
	return out
}

// ClearCache drops every cached quote snapshot.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.quotes.Clear(ctx)
}

// CheckReadiness returns the first failing dependency check.
func (s *Service) CheckReadiness(ctx context.Context) error {
	for _, check := range s.readiness {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidLocation):
		return "invalid_location"
	case errors.Is(err, domain.ErrInvalidWeights):
		return "invalid_weights"
	case errors.Is(err, domain.ErrUnsupportedProduct):
		return "unsupported_product"
	case errors.Is(err, domain.ErrInvalidVolume):
		return "invalid_volume"
	case errors.Is(err, domain.ErrNoDataFound):
		return "no_data"
	default:
		return "error"
	}
}
