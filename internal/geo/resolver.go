package geo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/observability"
)

// PostalSource is a named PostalLookup. Sources are tried in order.
type PostalSource struct {
	Name   string
	Lookup domain.PostalLookup
}

// Resolver turns free-form buyer input into a domain.Location.
type Resolver struct {
	sources []PostalSource
	index   *RegionIndex
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewResolver creates a Resolver. index may be nil, in which case coordinate
// input is returned without an admin region.
func NewResolver(sources []PostalSource, index *RegionIndex, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		sources: sources,
		index:   index,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve parses raw as a "lat, lon" pair or an 8-digit CEP. It returns an
// error wrapping domain.ErrInvalidLocation when neither reading works.
func (r *Resolver) Resolve(ctx context.Context, raw string) (domain.Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Location{}, fmt.Errorf("%w: empty input", domain.ErrInvalidLocation)
	}

	// Coordinates win only when both tokens are in-range floats.
	if lat, lon, ok := parseCoordinates(raw); ok {
		loc := domain.Location{Lat: lat, Lon: lon}
		if region, found := r.nearestRegion(lat, lon); found {
			loc.AdminRegion = region.Code
		}
		return loc, nil
	}

	cep := stripNonDigits(raw)
	if len(cep) != 8 {
		return domain.Location{}, fmt.Errorf("%w: %q is neither a CEP nor a lat,lon pair", domain.ErrInvalidLocation, raw)
	}
	return r.resolvePostal(ctx, cep)
}

func (r *Resolver) resolvePostal(ctx context.Context, cep string) (domain.Location, error) {
	for _, src := range r.sources {
		result, err := src.Lookup.LookupPostalCode(ctx, cep)
		if err != nil {
			r.logger.Warn("postal lookup failed",
				"source", src.Name,
				"cep", cep,
				"error", err,
			)
			r.metrics.PostalLookups.WithLabelValues(src.Name, "error").Inc()
			continue
		}
		if (result.Lat == 0 && result.Lon == 0) || !domain.ValidCoordinates(result.Lat, result.Lon) {
			r.metrics.PostalLookups.WithLabelValues(src.Name, "empty").Inc()
			continue
		}
		r.metrics.PostalLookups.WithLabelValues(src.Name, "success").Inc()

		loc := domain.Location{
			PostalCode:  FormatCEP(cep),
			Lat:         result.Lat,
			Lon:         result.Lon,
			City:        result.City,
			AdminRegion: result.AdminRegion,
		}
		if loc.AdminRegion == "" {
			if region, found := r.nearestRegion(loc.Lat, loc.Lon); found {
				loc.AdminRegion = region.Code
			}
		}
		return loc, nil
	}
	return domain.Location{}, fmt.Errorf("%w: CEP %s could not be resolved", domain.ErrInvalidLocation, FormatCEP(cep))
}

func (r *Resolver) nearestRegion(lat, lon float64) (domain.Region, bool) {
	if r.index == nil {
		return domain.Region{}, false
	}
	return r.index.Nearest(lat, lon)
}

// parseCoordinates reads "lat, lon". Both tokens must be finite floats in range.
func parseCoordinates(raw string) (float64, float64, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || !domain.ValidCoordinates(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// FormatCEP renders 8 digits as "NNNNN-NNN". Other inputs are returned as-is.
func FormatCEP(digits string) string {
	if len(digits) != 8 {
		return digits
	}
	return digits[:5] + "-" + digits[5:]
}
