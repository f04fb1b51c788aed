package domain

import (
	"context"
	"time"
)

// WeightState is the persistable snapshot of the adaptive weight model for one
// strategy.
type WeightState struct {
	Strategy       string             `json:"strategy"`
	Weight         float64            `json:"weight"`
	Bias           float64            `json:"bias"`
	Coefficients   map[string]float64 `json:"coefficients"`
	SampleCount    int                `json:"sample_count"`
	SkippedUpdates int                `json:"skipped_updates"`
	RecentResults  []float64          `json:"recent_results"` // 1 win, 0 loss, ring tail
}

// PendingSignal is the persistable snapshot of one unresolved composite
// signal. It carries the resolution cursor alongside the signal so that a
// restarted process resumes bar-walking exactly where the previous one
// stopped, with the timeout budget intact.
type PendingSignal struct {
	Signal      CompositeSignal `json:"signal"`
	LastBar     time.Time       `json:"last_bar"` // open time of the newest examined bar
	BarsElapsed int             `json:"bars_elapsed"`
}

// StateStore persists the weight model and the pending-signal pool across
// restarts.
type StateStore interface {
	SaveWeights(ctx context.Context, states []WeightState) error
	LoadWeights(ctx context.Context) ([]WeightState, error)

	SavePending(ctx context.Context, p PendingSignal) error
	DeletePending(ctx context.Context, symbol string) error
	LoadPending(ctx context.Context) ([]PendingSignal, error)
}

// HistoryStore records resolved signals for the stats surface. Implementations
// must tolerate being nil-configured out; the scanner treats history as
// best-effort.
type HistoryStore interface {
	RecordResolved(ctx context.Context, sig CompositeSignal, out Outcome) error
	StrategyRecord(ctx context.Context, strategy string) (wins, losses, timeouts int, err error)
}
