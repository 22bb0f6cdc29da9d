package domain

import (
	"fmt"
	"math"
)

// WeightTolerance is how far the weight sum may drift from 1.0.
const WeightTolerance = 0.01

// Weights trade price against delivery time and quality.
type Weights struct {
	Price   float64 `json:"price"`
	Time    float64 `json:"time"`
	Quality float64 `json:"quality"`
}

// DefaultWeights favors price, then delivery time, then quality.
func DefaultWeights() Weights {
	return Weights{Price: 0.5, Time: 0.3, Quality: 0.2}
}

// Sum returns Price + Time + Quality.
func (w Weights) Sum() float64 {
	return w.Price + w.Time + w.Quality
}

// Validate rejects negative weights and sums outside 1.0 ± WeightTolerance.
func (w Weights) Validate() error {
	if w.Price < 0 || w.Time < 0 || w.Quality < 0 {
		return fmt.Errorf("%w: negative weight in %+v", ErrInvalidWeights, w)
	}
	sum := w.Sum()
	if math.IsNaN(sum) || math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("%w, got %.3f", ErrInvalidWeights, sum)
	}
	return nil
}
