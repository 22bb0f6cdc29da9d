// Package freight estimates road transport cost and lead time from an origin
// region centroid to a buyer location.
package freight

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/geo"
	"github.com/couchcryptid/price-locator/internal/observability"
	"github.com/shopspring/decimal"
)

// Model defaults.
const (
	DefaultFuelPrice            = 6.0
	DefaultFuelConsumptionPerKm = 0.01

	kmPerLeadDay     = 500.0
	volumeUnit       = 1000.0
	minVolumeFactor  = 0.1
	fallbackDistance = 500.0
	fallbackCost     = 50.0
	fallbackLeadDays = 3
)

// Estimator computes Freight for quotes.
type Estimator struct {
	regions         map[string]domain.Region
	fuelPrice       float64
	fuelConsumption float64
	logger          *slog.Logger
	metrics         *observability.Metrics
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithFuel overrides the fuel price and consumption per km.
func WithFuel(price, consumptionPerKm float64) Option {
	return func(e *Estimator) {
		if price > 0 {
			e.fuelPrice = price
		}
		if consumptionPerKm > 0 {
			e.fuelConsumption = consumptionPerKm
		}
	}
}

// NewEstimator creates an Estimator over the region catalogue.
func NewEstimator(regions map[string]domain.Region, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Estimator {
	e := &Estimator{
		regions:         regions,
		fuelPrice:       DefaultFuelPrice,
		fuelConsumption: DefaultFuelConsumptionPerKm,
		logger:          logger,
		metrics:         metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns the freight from originRegion to destination for volume
// units. An unknown region yields the fallback estimate, not an error. Only
// an invalid destination fails.
func (e *Estimator) Estimate(originRegion string, destination domain.Location, volume float64) (domain.Freight, error) {
	if !destination.Valid() || math.IsNaN(destination.Lat) || math.IsNaN(destination.Lon) {
		return domain.Freight{}, fmt.Errorf("%w: destination %s", domain.ErrInvalidLocation, destination)
	}

	region, ok := e.regions[originRegion]
	if !ok {
		e.metrics.FreightFallbacks.Inc()
		e.logger.Warn("freight fallback for unknown region",
			"region", originRegion,
			"error", domain.ErrUnknownRegion,
		)
		return Fallback(originRegion, destination), nil
	}

	distance := geo.Distance(region.Location(), destination)
	return domain.Freight{
		Origin:       originRegion,
		Destination:  destination,
		DistanceKm:   roundCents(distance),
		Cost:         roundCents(e.cost(distance, volume)),
		LeadTimeDays: LeadTimeDays(distance),
		Method:       domain.MethodRoad,
	}, nil
}

// EstimateBetween returns the great-circle distance between two locations in km.
func (e *Estimator) EstimateBetween(a, b domain.Location) float64 {
	return geo.Distance(a, b)
}

// Fallback is the fixed estimate used when the origin region is unknown.
func Fallback(origin string, destination domain.Location) domain.Freight {
	return domain.Freight{
		Origin:       origin,
		Destination:  destination,
		DistanceKm:   fallbackDistance,
		Cost:         fallbackCost,
		LeadTimeDays: fallbackLeadDays,
		Method:       domain.MethodEstimated,
	}
}

// LeadTimeDays is one day per 500 km, never less than one.
func LeadTimeDays(distanceKm float64) int {
	return max(1, int(math.Floor(distanceKm/kmPerLeadDay)))
}

func (e *Estimator) cost(distanceKm, volume float64) float64 {
	factor := max(volume/volumeUnit, minVolumeFactor)
	return distanceKm * e.fuelPrice * e.fuelConsumption * factor
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
