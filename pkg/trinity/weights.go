package trinity

import (
	"errors"
	"fmt"
	"math"
)

// Pillar is one of the five Trinity channels.
type Pillar string

const (
	Truth    Pillar = "truth"
	Goodness Pillar = "goodness"
	Beauty   Pillar = "beauty"
	Serenity Pillar = "serenity"
	Eternity Pillar = "eternity"
)

// Pillars lists every channel in canonical order.
var Pillars = []Pillar{Truth, Goodness, Beauty, Serenity, Eternity}

// ErrInvalidWeights is returned by ValidateWeights.
var ErrInvalidWeights = errors.New("invalid trinity weights")

const weightTolerance = 1e-9

// Weights is the SSOT weighting of the pillars.
var Weights = map[Pillar]float64{
	Truth:    0.35,
	Goodness: 0.35,
	Beauty:   0.20,
	Serenity: 0.08,
	Eternity: 0.02,
}

// DefaultWeights returns a copy of the SSOT weights.
func DefaultWeights() map[Pillar]float64 {
	out := make(map[Pillar]float64, len(Weights))
	for k, v := range Weights {
		out[k] = v
	}
	return out
}

// ValidateWeights checks that every pillar has a non-negative weight and that
// the weights sum to 1.0.
func ValidateWeights(w map[Pillar]float64) error {
	var sum float64
	for _, p := range Pillars {
		v, ok := w[p]
		if !ok {
			return fmt.Errorf("%w: missing pillar %q", ErrInvalidWeights, p)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative weight for %q", ErrInvalidWeights, p)
		}
		sum += v
	}
	if len(w) != len(Pillars) {
		return fmt.Errorf("%w: expected %d pillars, got %d", ErrInvalidWeights, len(Pillars), len(w))
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.12f", ErrInvalidWeights, sum)
	}
	return nil
}
