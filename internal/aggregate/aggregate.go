// Package aggregate fuses per-strategy candidate signals into one composite
// signal, weighted by the adaptive per-strategy weights and gated by the
// active mode threshold.
package aggregate

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ekaraca/marketscan/internal/domain"
)

// WeightFunc resolves the current weight for a strategy. Weights are read once
// per fusion so a composite records exactly the weights that produced it.
type WeightFunc func(strategy string) float64

// Aggregator combines candidate signals using weight-normalized signed
// strengths. Strategies disagreeing on direction cancel linearly.
type Aggregator struct{}

// New returns an Aggregator.
func New() *Aggregator { return &Aggregator{} }

// Fuse combines all candidate signals for one symbol on one tick. The second
// return is false when no signal clears the mode threshold. The threshold is
// inclusive: a composite exactly at the boundary is emitted.
//
// Entry, stop and target levels are left zero; the caller completes them from
// the current price and the mode's distances.
func (a *Aggregator) Fuse(symbol string, signals []domain.StrategySignal, weightOf WeightFunc, mode domain.ModeProfile, now time.Time) (domain.CompositeSignal, bool) {
	var num, den float64
	contributions := make([]domain.Contribution, 0, len(signals))
	directions := make([]domain.Direction, 0, len(signals))
	for _, sig := range signals {
		w := weightOf(sig.Strategy)
		strength := sig.Strength
		if !finite(w) || w <= 0 || !finite(strength) {
			continue
		}
		if strength < 0 {
			strength = 0
		} else if strength > 1 {
			strength = 1
		}
		num += w * sig.Direction.Sign() * strength
		den += w
		contributions = append(contributions, domain.Contribution{
			Strategy: sig.Strategy,
			Weight:   w,
			Strength: strength,
			Regime:   sig.Regime,
		})
		directions = append(directions, sig.Direction)
	}
	if den <= 0 {
		return domain.CompositeSignal{}, false
	}

	score := num / den
	if score == 0 || math.Abs(score) < mode.Threshold {
		return domain.CompositeSignal{}, false
	}
	dir := domain.DirectionLong
	if score < 0 {
		dir = domain.DirectionShort
	}

	var agree float64
	for i := range contributions {
		if directions[i] == dir {
			contributions[i].Agreed = true
			agree += contributions[i].Weight
		}
	}

	return domain.CompositeSignal{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Direction:     dir,
		Score:         score,
		Confidence:    agree / den,
		Contributions: contributions,
		Mode:          mode.Name,
		CreatedAt:     now,
	}, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
