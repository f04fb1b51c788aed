// Package strategy provides the shared evaluation contract for signal
// detectors and a registry for selecting them by name. Detectors are total:
// malformed or boundary indicator data yields "no signal", never a fault.
package strategy

import (
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/indicator"
)

// Input carries everything a detector may consult for one evaluation. The
// scanner builds one Input per (symbol, tick); detectors must not retain it.
type Input struct {
	Series     *domain.PriceSeries
	Indicators *indicator.Set

	// Bias is the higher-timeframe direction gate. BiasOK is false when the
	// bias series was unavailable or flat; detectors requiring a bias stay
	// silent then.
	Bias   domain.Direction
	BiasOK bool

	Mode domain.ModeProfile
	Now  time.Time
}

// Strategy is a single signal detector.
type Strategy interface {
	Name() string
	// Evaluate inspects one symbol's current series and indicators and
	// returns a candidate signal. ok is false when no valid setup exists,
	// which is a normal result, not an error.
	Evaluate(in Input) (sig domain.StrategySignal, ok bool)
}

// Resetter is implemented by detectors holding per-symbol state.
type Resetter interface {
	Reset()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
