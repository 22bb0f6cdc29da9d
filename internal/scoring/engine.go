// Package scoring turns a quote and its freight into a composite score where
// lower is better.
package scoring

import (
	"github.com/couchcryptid/price-locator/internal/domain"
)

// Default normalization caps.
const (
	DefaultPriceCap = 200.0
	DefaultTimeCap  = 10.0
)

// Engine scores quotes against fixed price and lead-time caps.
type Engine struct {
	priceCap float64
	timeCap  float64
}

// NewEngine creates an Engine. Non-positive caps take the defaults.
func NewEngine(priceCap, timeCap float64) *Engine {
	if priceCap <= 0 {
		priceCap = DefaultPriceCap
	}
	if timeCap <= 0 {
		timeCap = DefaultTimeCap
	}
	return &Engine{priceCap: priceCap, timeCap: timeCap}
}

// Breakdown holds the normalized components of a score, each in [0,1].
type Breakdown struct {
	Price   float64
	Time    float64
	Quality float64
}

// Normalize maps a quote and freight onto the [0,1] components.
func (e *Engine) Normalize(q domain.Quote, f domain.Freight) Breakdown {
	total := q.UnitPrice + f.Cost
	return Breakdown{
		Price:   clamp01(total / e.priceCap),
		Time:    clamp01(float64(f.LeadTimeDays) / e.timeCap),
		Quality: clamp01(1 - q.QualityScore),
	}
}

// Weighted combines the components with w.
func (b Breakdown) Weighted(w domain.Weights) float64 {
	return w.Price*b.Price + w.Time*b.Time + w.Quality*b.Quality
}

// Score returns the weighted composite for q delivered with f. It fails with
// domain.ErrInvalidWeights when w does not sum to 1.0.
func (e *Engine) Score(q domain.Quote, f domain.Freight, w domain.Weights) (float64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	return e.Composite(q, f, w), nil
}

// Composite is Score for weights the caller has already validated.
func (e *Engine) Composite(q domain.Quote, f domain.Freight, w domain.Weights) float64 {
	return e.Normalize(q, f).Weighted(w)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
