package domain

import "time"

// Direction is the side of a signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign returns +1 for long, -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Regime labels the market condition a detector fired under. It doubles as a
// rationale tag and as a feature for the weight model.
type Regime string

const (
	RegimeTrend    Regime = "trend"
	RegimeRange    Regime = "range"
	RegimeSMC      Regime = "smc"
	RegimeMomentum Regime = "momentum"
	RegimePreBreak Regime = "prebreak"
)

// StrategySignal is one strategy's candidate opinion for a symbol on a single
// tick. Strength is in [0,1].
type StrategySignal struct {
	Strategy  string    `json:"strategy"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	Regime    Regime    `json:"regime"`
	Tags      []string  `json:"tags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasTag reports whether the signal carries the given rationale tag.
func (s StrategySignal) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Contribution records the exact weight and strength a strategy contributed to
// a composite signal, so outcome feedback updates the same state that produced
// the signal.
type Contribution struct {
	Strategy string  `json:"strategy"`
	Weight   float64 `json:"weight"`
	Strength float64 `json:"strength"`
	Regime   Regime  `json:"regime"`
	Agreed   bool    `json:"agreed"`
}

// CompositeSignal is the fused, mode-gated trade signal for one symbol. It is
// created by the aggregator, completed with price levels by the scanner, and
// mutated only by lifecycle transitions.
type CompositeSignal struct {
	ID            string         `json:"id"`
	Symbol        string         `json:"symbol"`
	Direction     Direction      `json:"direction"`
	Score         float64        `json:"score"`      // composite score in [-1,1]
	Confidence    float64        `json:"confidence"` // agreeing weight / total weight
	Contributions []Contribution `json:"contributions"`
	Mode          string         `json:"mode"`

	Entry     float64   `json:"entry"`
	Stop      float64   `json:"stop"`
	Target    float64   `json:"target"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OutcomeResult is the terminal result of a composite signal.
type OutcomeResult string

const (
	OutcomeWin     OutcomeResult = "WIN"
	OutcomeLoss    OutcomeResult = "LOSS"
	OutcomeTimeout OutcomeResult = "TIMEOUT"
)

// Outcome resolves exactly one CompositeSignal and is immutable once written.
type Outcome struct {
	SignalID       string        `json:"signal_id"`
	Symbol         string        `json:"symbol"`
	Result         OutcomeResult `json:"result"`
	ResolvedAt     time.Time     `json:"resolved_at"`
	RealizedReturn float64       `json:"realized_return"`
}

// StrategyStats is the read-only view of one strategy's adaptive state.
type StrategyStats struct {
	Strategy       string  `json:"strategy"`
	Weight         float64 `json:"weight"`
	SampleCount    int     `json:"sample_count"`
	SkippedUpdates int     `json:"skipped_updates"`
	Accuracy       float64 `json:"accuracy"` // rolling, 0 when no samples
}
