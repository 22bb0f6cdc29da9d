package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.PostalLookup using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox postal code client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// LookupPostalCode resolves an 8-digit CEP to coordinates, city, and state.
// An unknown CEP returns a zero result and no error.
func (c *Client) LookupPostalCode(ctx context.Context, cep string) (domain.PostalResult, error) {
	query := cep
	if len(cep) == 8 {
		query = cep[:5] + "-" + cep[5:]
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"country":      {"br"},
		"types":        {"postcode"},
		"limit":        {"1"},
	}

	start := time.Now()
	result, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.MapboxAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.PostalResult{}, err
	}
	c.logger.Debug("mapbox postal lookup", "cep", cep, "city", result.City, "region", result.AdminRegion)
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.PostalResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.PostalResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PostalResult{}, fmt.Errorf("postal lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.PostalResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.PostalResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return domain.PostalResult{}, nil
	}

	f := mapboxResp.Features[0]
	result := domain.PostalResult{Confidence: f.Relevance}
	if len(f.Center) == 2 {
		result.Lon = f.Center[0]
		result.Lat = f.Center[1]
	}
	for _, ctxEntry := range f.Context {
		switch {
		case strings.HasPrefix(ctxEntry.ID, "place."):
			result.City = ctxEntry.Text
		case strings.HasPrefix(ctxEntry.ID, "region."):
			result.AdminRegion = regionCode(ctxEntry.ShortCode)
		}
	}
	return result, nil
}

// regionCode turns an ISO 3166-2 code such as "BR-SP" into "SP".
func regionCode(shortCode string) string {
	code := strings.ToUpper(shortCode)
	if _, after, ok := strings.Cut(code, "-"); ok {
		code = after
	}
	if _, ok := domain.LookupRegion(code); !ok {
		return ""
	}
	return code
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	Text      string         `json:"text"`
	Relevance float64        `json:"relevance"`
	Context   []contextEntry `json:"context"`
}

type contextEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}
