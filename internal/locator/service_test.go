package locator_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/price-locator/internal/adapter/seed"
	"github.com/couchcryptid/price-locator/internal/aggregator"
	"github.com/couchcryptid/price-locator/internal/cache"
	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/freight"
	"github.com/couchcryptid/price-locator/internal/geo"
	"github.com/couchcryptid/price-locator/internal/locator"
	"github.com/couchcryptid/price-locator/internal/observability"
	"github.com/couchcryptid/price-locator/internal/scoring"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mutableProvider struct {
	mu     sync.Mutex
	quotes []domain.Quote
	calls  int
}

func (p *mutableProvider) Name() string { return "mutable" }

func (p *mutableProvider) Collect(_ context.Context, _ string) ([]domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return append([]domain.Quote(nil), p.quotes...), nil
}

func (p *mutableProvider) set(quotes []domain.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes = quotes
}

type fixedCollector struct {
	set     domain.QuoteSet
	cleared bool
}

func (c *fixedCollector) Collect(context.Context, string, float64) domain.QuoteSet { return c.set }

func (c *fixedCollector) Clear(context.Context) error {
	c.cleared = true
	return nil
}

type failingFreight struct {
	inner  locator.FreightEstimator
	region string
}

func (f *failingFreight) Estimate(origin string, dest domain.Location, volume float64) (domain.Freight, error) {
	if origin == f.region {
		return domain.Freight{}, errors.New("routing unavailable")
	}
	return f.inner.Estimate(origin, dest, volume)
}

type recordingPublisher struct {
	results []domain.SearchResult
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, r domain.SearchResult) error {
	p.results = append(p.results, r)
	return p.err
}

// --- helpers ---

type fixture struct {
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
	regions map[string]domain.Region
}

func newFixture() fixture {
	return fixture{
		clock:   clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)),
		metrics: observability.NewMetricsForTesting(),
		regions: domain.Regions(),
	}
}

func (f fixture) resolver() *geo.Resolver {
	sources := []geo.PostalSource{{Name: "cep_table", Lookup: geo.NewCEPTable(f.regions)}}
	return geo.NewResolver(sources, geo.NewRegionIndex(f.regions), slog.Default(), f.metrics)
}

func (f fixture) estimator() *freight.Estimator {
	return freight.NewEstimator(f.regions, slog.Default(), f.metrics)
}

func (f fixture) aggregator(providers ...domain.SourceProvider) *aggregator.Aggregator {
	store := cache.NewMemoryStore(32, time.Hour, f.clock)
	return aggregator.New(providers, store, time.Second, slog.Default(), f.metrics, f.clock)
}

func (f fixture) service(quotes locator.QuoteCollector, opts locator.Options) *locator.Service {
	opts.Clock = f.clock
	return locator.New(f.resolver(), quotes, f.estimator(), scoring.NewEngine(0, 0), slog.Default(), f.metrics, opts)
}

func (f fixture) seededService(opts locator.Options) *locator.Service {
	return f.service(f.aggregator(seed.New(f.clock)), opts)
}

func request(location, commodity string) domain.SearchRequest {
	return domain.SearchRequest{BuyerLocation: location, CommodityID: commodity}
}

func ptr[T any](v T) *T { return &v }

func quote(region, supplier string, price, quality float64) domain.Quote {
	return domain.Quote{
		CommodityID:  "soja",
		OriginRegion: region,
		UnitPrice:    price,
		QualityScore: quality,
		SupplierID:   supplier,
		SourceName:   "test",
		Available:    true,
	}
}

// --- tests ---

func TestSearch_SaoPauloSoja(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	req := request("01310-100", "soja")
	req.Volume = ptr(1000.0)
	req.Weights = &domain.Weights{Price: 0.5, Time: 0.3, Quality: 0.2}

	res, err := svc.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "soja", res.CommodityID)
	assert.Equal(t, "01310-100", res.BuyerLocation.PostalCode)
	assert.Equal(t, "SP", res.BuyerLocation.AdminRegion)
	assert.Equal(t, 8, res.TotalOptionsFound)
	assert.Len(t, res.Choices, 8)
	assert.NotEmpty(t, res.SearchID)
	assert.Equal(t, f.clock.Now(), res.SearchTimestamp)
	assert.Equal(t, *req.Weights, res.WeightsUsed)
	assert.False(t, res.Partial)

	require.NotNil(t, res.BestChoice)
	assert.Equal(t, res.Choices[0], *res.BestChoice)
	for _, c := range res.Choices {
		assert.LessOrEqual(t, res.BestChoice.CompositeScore, c.CompositeScore)
		assert.InDelta(t, c.UnitPrice+c.FreightCost, c.TotalCost, 1e-9)
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		assert.False(t, c.Estimated)
	}
	for i := 1; i < len(res.Choices); i++ {
		assert.LessOrEqual(t, res.Choices[i-1].CompositeScore, res.Choices[i].CompositeScore)
	}
}

func TestSearch_OriginLabel(t *testing.T) {
	f := newFixture()
	q := quote("PR", "p1", 140, 0.8)
	noCity := quote("GO", "g1", 150, 0.8)
	q.OriginCity = "Cascavel"
	svc := f.service(&fixedCollector{set: domain.QuoteSet{Quotes: []domain.Quote{q, noCity}}}, locator.Options{})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	labels := map[string]string{}
	for _, c := range res.Choices {
		labels[c.SupplierID] = c.OriginLabel
	}
	assert.Equal(t, "Cascavel - PR", labels["p1"])
	assert.Equal(t, "Goiás", labels["g1"])
}

func TestSearch_DefaultsApplied(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	res, err := svc.Search(context.Background(), request("01310100", "soja"))
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultWeights(), res.WeightsUsed)
	assert.InDelta(t, locator.DefaultVolume, res.Volume, 1e-9)
}

func TestSearch_UnsupportedProduct(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	_, err := svc.Search(context.Background(), request("01310-100", "wheat_xyz"))
	require.ErrorIs(t, err, domain.ErrUnsupportedProduct)
	assert.Contains(t, err.Error(), "not supported")
	for _, id := range domain.SupportedProducts() {
		assert.Contains(t, err.Error(), id)
	}
}

func TestSearch_CommodityIsNormalized(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	res, err := svc.Search(context.Background(), request("01310-100", "  SOJA "))
	require.NoError(t, err)
	assert.Equal(t, "soja", res.CommodityID)
}

func TestSearch_InvalidLocation(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	for _, raw := range []string{"not-a-location", "", "123", "91.0, 10.0"} {
		_, err := svc.Search(context.Background(), request(raw, "soja"))
		require.ErrorIs(t, err, domain.ErrInvalidLocation, raw)
		assert.Contains(t, err.Error(), "Invalid location")
	}
}

func TestSearch_CoordinatesInput(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	res, err := svc.Search(context.Background(), request("-23.5505, -46.6333", "soja"))
	require.NoError(t, err)

	assert.InDelta(t, -23.5505, res.BuyerLocation.Lat, 1e-9)
	assert.Equal(t, "SP", res.BuyerLocation.AdminRegion)
	assert.Empty(t, res.BuyerLocation.PostalCode)
}

func TestSearch_InvalidWeights(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	req := request("01310-100", "soja")
	req.Weights = &domain.Weights{Price: 0.7, Time: 0.3, Quality: 0.2}

	_, err := svc.Search(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidWeights)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestSearch_InvalidVolume(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{})

	req := request("01310-100", "soja")
	req.Volume = ptr(-10.0)

	_, err := svc.Search(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidVolume)
}

func TestSearch_NoData(t *testing.T) {
	f := newFixture()
	empty := seed.NewWithCatalog(map[string][]seed.Entry{}, f.clock)
	svc := f.service(f.aggregator(empty), locator.Options{})

	_, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.ErrorIs(t, err, domain.ErrNoDataFound)
	assert.Contains(t, err.Error(), "No data found")
}

func TestSearch_TopNTruncatesButCountsAll(t *testing.T) {
	f := newFixture()
	svc := f.seededService(locator.Options{TopN: 3})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	assert.Len(t, res.Choices, 3)
	assert.Equal(t, 8, res.TotalOptionsFound)
}

func TestSearch_TieBreakBySupplierThenRegion(t *testing.T) {
	f := newFixture()
	// Identical offers from the same region score the same.
	quotes := []domain.Quote{
		quote("MG", "zeta", 150, 0.8),
		quote("MG", "alpha", 150, 0.8),
		quote("MG", "mid", 150, 0.8),
	}
	svc := f.service(&fixedCollector{set: domain.QuoteSet{Quotes: quotes}}, locator.Options{})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	got := make([]string, len(res.Choices))
	for i, c := range res.Choices {
		got[i] = c.SupplierID
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, got)
}

func TestSearch_CacheIdempotence(t *testing.T) {
	f := newFixture()
	p := &mutableProvider{quotes: []domain.Quote{quote("MT", "a", 130, 0.8), quote("PR", "b", 148, 0.9)}}
	svc := f.service(f.aggregator(p), locator.Options{})

	first, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	p.set([]domain.Quote{quote("RS", "c", 120, 0.9)})
	f.clock.Advance(30 * time.Minute)

	second, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	if diff := cmp.Diff(suppliers(first.Choices), suppliers(second.Choices)); diff != "" {
		t.Errorf("supplier composition changed within TTL (-first +second):\n%s", diff)
	}

	f.clock.Advance(31 * time.Minute)
	third, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, suppliers(third.Choices))
}

func TestSearch_UnknownRegionUsesEstimatedFreight(t *testing.T) {
	f := newFixture()
	quotes := []domain.Quote{quote("XX", "ghost", 130, 0.8), quote("SP", "local", 160, 0.8)}
	svc := f.service(&fixedCollector{set: domain.QuoteSet{Quotes: quotes}}, locator.Options{})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalOptionsFound)

	for _, c := range res.Choices {
		if c.SupplierID != "ghost" {
			continue
		}
		assert.True(t, c.Estimated)
		assert.InDelta(t, 50.0, c.FreightCost, 1e-9)
		assert.Equal(t, 3, c.LeadTimeDays)
		assert.InDelta(t, 0.6, c.Confidence, 1e-9)
		assert.Equal(t, "XX", c.OriginLabel)
	}
}

func TestSearch_FreightFailureSkipsQuote(t *testing.T) {
	f := newFixture()
	est := &failingFreight{inner: f.estimator(), region: "MT"}
	svc := locator.New(f.resolver(), f.aggregator(seed.New(f.clock)), est, scoring.NewEngine(0, 0),
		slog.Default(), f.metrics, locator.Options{Clock: f.clock})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	assert.Equal(t, 7, res.TotalOptionsFound)
	for _, c := range res.Choices {
		assert.NotEqual(t, "MT", c.OriginRegion)
	}
}

func TestSearch_StaleQuoteLowersConfidence(t *testing.T) {
	f := newFixture()
	fresh := quote("PR", "fresh", 148, 0.9)
	fresh.CollectedAt = f.clock.Now().Add(-time.Hour)
	stale := quote("GO", "stale", 140, 0.8)
	stale.CollectedAt = f.clock.Now().Add(-48 * time.Hour)
	unavailable := quote("MG", "sold-out", 150, 0.8)
	unavailable.Available = false
	svc := f.service(&fixedCollector{set: domain.QuoteSet{Quotes: []domain.Quote{fresh, stale, unavailable}}}, locator.Options{})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	conf := map[string]float64{}
	for _, c := range res.Choices {
		conf[c.SupplierID] = c.Confidence
	}
	assert.InDelta(t, 1.0, conf["fresh"], 1e-9)
	assert.InDelta(t, 0.8, conf["stale"], 1e-9)
	assert.InDelta(t, 0.5, conf["sold-out"], 1e-9)
}

func TestSearch_PartialFlagPropagates(t *testing.T) {
	f := newFixture()
	set := domain.QuoteSet{Quotes: []domain.Quote{quote("PR", "p", 148, 0.9)}, Partial: true}
	svc := f.service(&fixedCollector{set: set}, locator.Options{})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)
	assert.True(t, res.Partial)
}

func TestSearch_SubCentPriceRoundedConsistently(t *testing.T) {
	f := newFixture()
	set := domain.QuoteSet{Quotes: []domain.Quote{quote("PR", "p", 150.456, 0.9)}}
	svc := f.service(&fixedCollector{set: set}, locator.Options{})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	require.Len(t, res.Choices, 1)
	c := res.Choices[0]
	assert.Equal(t, 150.46, c.UnitPrice)
	assert.InDelta(t, c.UnitPrice+c.FreightCost, c.TotalCost, 1e-9)
}

func TestSearch_PublishesResult(t *testing.T) {
	f := newFixture()
	pub := &recordingPublisher{}
	svc := f.seededService(locator.Options{Publisher: pub})

	res, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)

	require.Len(t, pub.results, 1)
	assert.Equal(t, res.SearchID, pub.results[0].SearchID)
}

func TestSearch_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := f.seededService(locator.Options{Publisher: pub})

	_, err := svc.Search(context.Background(), request("01310-100", "soja"))
	require.NoError(t, err)
}

func TestSearch_ErrorsAreNotPublished(t *testing.T) {
	f := newFixture()
	pub := &recordingPublisher{}
	svc := f.seededService(locator.Options{Publisher: pub})

	_, err := svc.Search(context.Background(), request("not-a-location", "soja"))
	require.Error(t, err)
	assert.Empty(t, pub.results)
}

func TestRank_Deterministic(t *testing.T) {
	choices := []domain.Choice{
		{SupplierID: "b", OriginRegion: "PR", CompositeScore: 0.4},
		{SupplierID: "a", OriginRegion: "SP", CompositeScore: 0.4},
		{SupplierID: "a", OriginRegion: "MG", CompositeScore: 0.4},
		{SupplierID: "z", OriginRegion: "MT", CompositeScore: 0.1},
	}
	locator.Rank(choices)

	want := []string{"z/MT", "a/MG", "a/SP", "b/PR"}
	got := make([]string, len(choices))
	for i, c := range choices {
		got[i] = c.SupplierID + "/" + c.OriginRegion
	}
	assert.Equal(t, want, got)
}

func TestConfidence_Combined(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	q := domain.Quote{Available: false, CollectedAt: now.Add(-25 * time.Hour)}
	f := domain.Freight{Method: domain.MethodEstimated}

	// 0.6 * 0.5 * 0.8
	assert.InDelta(t, 0.24, locator.Confidence(q, f, now), 1e-9)
}

func TestCatalogueAccessors(t *testing.T) {
	f := newFixture()
	coll := &fixedCollector{}
	svc := f.service(coll, locator.Options{})

	assert.Equal(t, domain.SupportedProducts(), svc.SupportedProducts())

	regions := svc.SupportedRegions()
	assert.Len(t, regions, 27)
	delete(regions, "SP")
	assert.Len(t, svc.SupportedRegions(), 27, "returned map is a copy")

	require.NoError(t, svc.ClearCache(context.Background()))
	assert.True(t, coll.cleared)
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture()
	down := errors.New("redis unreachable")
	svc := f.service(&fixedCollector{}, locator.Options{
		Readiness: []locator.ReadinessCheck{
			func(context.Context) error { return nil },
			func(context.Context) error { return down },
		},
	})
	require.ErrorIs(t, svc.CheckReadiness(context.Background()), down)

	ok := f.service(&fixedCollector{}, locator.Options{})
	assert.NoError(t, ok.CheckReadiness(context.Background()))
}

func suppliers(choices []domain.Choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.SupplierID
	}
	return out
}
