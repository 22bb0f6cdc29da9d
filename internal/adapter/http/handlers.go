package http

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/couchcryptid/price-locator/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const maxRequestBody = 1 << 16

// PriceLocator is the search surface the HTTP layer exposes.
type PriceLocator interface {
	Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResult, error)
	SupportedProducts() []string
	SupportedRegions() map[string]domain.Region
	ClearCache(ctx context.Context) error
	CheckReadiness(ctx context.Context) error
}

type handlers struct {
	locator PriceLocator
	logger  *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// searchQuery serves GET /v1/search. The w_* parameters must be given
// together or not at all.
func (h *handlers) searchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.search(w, r, req)
}

// searchBody serves POST /v1/search with a JSON SearchRequest.
func (h *handlers) searchBody(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}
	h.search(w, r, req)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request, req domain.SearchRequest) {
	result, err := h.locator.Search(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

func (h *handlers) products(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{"products": h.locator.SupportedProducts()})
}

func (h *handlers) regions(w http.ResponseWriter, _ *http.Request) {
	byCode := h.locator.SupportedRegions()
	regions := make([]domain.Region, 0, len(byCode))
	for _, r := range byCode {
		regions = append(regions, r)
	}
	slices.SortFunc(regions, func(a, b domain.Region) int { return cmp.Compare(a.Code, b.Code) })
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]domain.Region{"regions": regions})
}

func (h *handlers) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.locator.ClearCache(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps caller errors to 4xx and everything else to 500.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	sharedobs.WriteJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidLocation),
		errors.Is(err, domain.ErrInvalidWeights),
		errors.Is(err, domain.ErrInvalidVolume):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedProduct),
		errors.Is(err, domain.ErrNoDataFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseSearchQuery(q url.Values) (domain.SearchRequest, error) {
	req := domain.SearchRequest{
		BuyerLocation: q.Get("location"),
		CommodityID:   q.Get("commodity"),
	}

	if v := q.Get("volume"); v != "" {
		volume, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("%w: %q", domain.ErrInvalidVolume, v)
		}
		req.Volume = &volume
	}

	keys := []string{"w_price", "w_time", "w_quality"}
	var given int
	for _, k := range keys {
		if q.Has(k) {
			given++
		}
	}
	switch given {
	case 0:
		return req, nil
	case len(keys):
	default:
		return req, fmt.Errorf("%w: w_price, w_time and w_quality must be given together", domain.ErrInvalidWeights)
	}

	vals := make([]float64, len(keys))
	for i, k := range keys {
		f, err := strconv.ParseFloat(q.Get(k), 64)
		if err != nil {
			return req, fmt.Errorf("%w: %s=%q is not a number", domain.ErrInvalidWeights, k, q.Get(k))
		}
		vals[i] = f
	}
	req.Weights = &domain.Weights{Price: vals[0], Time: vals[1], Quality: vals[2]}
	return req, nil
}
