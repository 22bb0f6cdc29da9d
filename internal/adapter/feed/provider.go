// Package feed collects quotes from HTTP JSON price feeds.
//
// A feed answers GET <url>?commodity=<id> with a body of the form
// {"quotes": [{"origin_region": "MT", "unit_price": 130, ...}]}.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	maxErrorBody   = 1024
	maxAttempts    = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = time.Second
)

// Provider is a domain.SourceProvider backed by one JSON feed.
type Provider struct {
	name       string
	feedURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewProvider creates a feed provider. The provider name is "feed:<host>".
func NewProvider(feedURL string, timeout time.Duration, logger *slog.Logger, clock clockwork.Clock) (*Provider, error) {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid feed url %q", feedURL)
	}
	return &Provider{
		name:       "feed:" + u.Host,
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      domain.ClockOrReal(clock),
		logger:     logger,
	}, nil
}

func (p *Provider) Name() string { return p.name }

// Collect fetches the feed's quotes for commodityID. Network errors and 5xx
// responses are retried with exponential backoff until ctx is done.
func (p *Provider) Collect(ctx context.Context, commodityID string) ([]domain.Quote, error) {
	u, err := url.Parse(p.feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("commodity", commodityID)
	u.RawQuery = q.Encode()

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		payload, retryable, err := p.fetch(ctx, u.String())
		if err == nil {
			return p.toQuotes(payload, commodityID), nil
		}
		if !retryable || attempt >= maxAttempts {
			return nil, err
		}
		p.logger.Warn("feed request failed, retrying",
			"feed", p.name,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, fmt.Errorf("feed %s: %w", p.name, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (p *Provider) fetch(ctx context.Context, fullURL string) (feedResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return feedResponse{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return feedResponse{}, ctx.Err() == nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return feedResponse{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return feedResponse{}, resp.StatusCode >= 500,
			fmt.Errorf("feed %s: status %d: %s", p.name, resp.StatusCode, body)
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return feedResponse{}, false, fmt.Errorf("decode feed: %w", err)
	}
	return payload, false, nil
}

func (p *Provider) toQuotes(payload feedResponse, commodityID string) []domain.Quote {
	now := p.clock.Now().UTC()
	quotes := make([]domain.Quote, 0, len(payload.Quotes))
	for _, fq := range payload.Quotes {
		quotes = append(quotes, fq.toQuote(commodityID, p.name, now))
	}
	p.logger.Debug("feed collected", "feed", p.name, "commodity", commodityID, "count", len(quotes))
	return quotes
}

type feedResponse struct {
	Quotes []feedQuote `json:"quotes"`
}

type feedQuote struct {
	CommodityID  string     `json:"commodity_id"`
	OriginRegion string     `json:"origin_region"`
	OriginCity   string     `json:"origin_city"`
	UnitPrice    float64    `json:"unit_price"`
	QualityScore float64    `json:"quality_score"`
	SupplierID   string     `json:"supplier_id"`
	CollectedAt  *time.Time `json:"collected_at"`
	Available    *bool      `json:"available"`
}

// toQuote fills defaults: the requested commodity, the feed name as source,
// now as collection time, and available unless the feed says otherwise.
func (fq feedQuote) toQuote(commodityID, source string, now time.Time) domain.Quote {
	q := domain.Quote{
		CommodityID:  fq.CommodityID,
		OriginRegion: fq.OriginRegion,
		OriginCity:   fq.OriginCity,
		UnitPrice:    fq.UnitPrice,
		QualityScore: fq.QualityScore,
		SupplierID:   fq.SupplierID,
		CollectedAt:  now,
		SourceName:   source,
		Available:    true,
	}
	if q.CommodityID == "" {
		q.CommodityID = commodityID
	}
	if fq.CollectedAt != nil {
		q.CollectedAt = fq.CollectedAt.UTC()
	}
	if fq.Available != nil {
		q.Available = *fq.Available
	}
	return q
}
