// Package weights maintains the adaptive per-strategy influence used by the
// aggregator. Each strategy carries an online logistic learner over its
// signal-time attributes; the published weight is the squashed bias scaled
// into [0, WMax], so a zeroed learner publishes the fixed prior WMax/2.
package weights

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/ekaraca/marketscan/internal/domain"
)

// Config tunes the online learner.
type Config struct {
	LearningRate   float64
	L2             float64
	WMax           float64
	AccuracyWindow int
}

// DefaultConfig returns the standard learner settings.
func DefaultConfig() Config {
	return Config{
		LearningRate:   0.02,
		L2:             1e-4,
		WMax:           2.0,
		AccuracyWindow: 50,
	}
}

type state struct {
	bias    float64
	coef    map[string]float64
	samples int
	skipped int
	recent  []float64
}

// Model is the process-wide weight vector. All mutation goes through Update,
// Reset and Restore under one mutex; reads take the shared lock.
type Model struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	states map[string]*state
}

// New creates a model with no learned state; every strategy starts at the
// prior.
func New(cfg Config, logger *slog.Logger) *Model {
	return &Model{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "weights")),
		states: make(map[string]*state),
	}
}

// Track ensures an entry exists for each named strategy so stats and
// snapshots list it even before its first outcome.
func (m *Model) Track(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		if _, ok := m.states[n]; !ok {
			m.states[n] = newState()
		}
	}
}

func newState() *state {
	return &state{coef: make(map[string]float64)}
}

// Prior is the weight of a strategy with no learned state.
func (m *Model) Prior() float64 { return m.cfg.WMax / 2 }

// Weight returns the current published weight for a strategy, clamped into
// [0, WMax]. Unknown strategies get the prior.
func (m *Model) Weight(strategy string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[strategy]
	if !ok {
		return m.Prior()
	}
	return m.publish(st)
}

func (m *Model) publish(st *state) float64 {
	w := m.cfg.WMax * sigmoid(st.bias)
	if w < 0 {
		return 0
	}
	if w > m.cfg.WMax {
		return m.cfg.WMax
	}
	return w
}

// Update applies one resolved outcome to every contributing strategy. WIN
// trains toward 1, LOSS toward 0; TIMEOUT is a half-rate step toward the
// neutral 0.5 label. An update that would turn any parameter non-finite is
// rejected, the previous state retained, and the event counted as skipped.
func (m *Model) Update(out domain.Outcome, contributions []domain.Contribution) {
	label, rate := 0.0, m.cfg.LearningRate
	switch out.Result {
	case domain.OutcomeWin:
		label = 1
	case domain.OutcomeLoss:
		label = 0
	case domain.OutcomeTimeout:
		label, rate = 0.5, m.cfg.LearningRate/2
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range contributions {
		st, ok := m.states[c.Strategy]
		if !ok {
			st = newState()
			m.states[c.Strategy] = st
		}
		if !m.step(st, c, label, rate) {
			st.skipped++
			m.logger.Warn("weight update skipped",
				slog.String("strategy", c.Strategy),
				slog.String("signal_id", out.SignalID),
				slog.String("result", string(out.Result)))
			continue
		}
		st.samples++
		st.recent = append(st.recent, label)
		if len(st.recent) > m.cfg.AccuracyWindow {
			st.recent = st.recent[len(st.recent)-m.cfg.AccuracyWindow:]
		}
	}
}

// step performs one gradient step on a copy and commits only if every
// parameter stays finite.
func (m *Model) step(st *state, c domain.Contribution, label, rate float64) bool {
	x := features(c)
	z := st.bias
	for k, v := range x {
		z += st.coef[k] * v
	}
	p := sigmoid(z)
	grad := p - label

	bias := st.bias - rate*grad
	if !finite(bias) {
		return false
	}
	next := make(map[string]float64, len(x))
	for k, v := range x {
		nv := st.coef[k] - rate*(grad*v+m.cfg.L2*st.coef[k])
		if !finite(nv) {
			return false
		}
		next[k] = nv
	}
	st.bias = bias
	for k, v := range next {
		st.coef[k] = v
	}
	return true
}

// features builds the named feature vector from a recorded contribution.
func features(c domain.Contribution) map[string]float64 {
	x := map[string]float64{
		"strength": c.Strength,
	}
	if c.Regime != "" {
		x["regime_"+string(c.Regime)] = 1
	}
	if c.Agreed {
		x["agreed"] = 1
	}
	return x
}

// Stats returns the read-only per-strategy view, sorted by strategy name.
func (m *Model) Stats() []domain.StrategyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.StrategyStats, 0, len(m.states))
	for name, st := range m.states {
		out = append(out, domain.StrategyStats{
			Strategy:       name,
			Weight:         m.publish(st),
			SampleCount:    st.samples,
			SkippedUpdates: st.skipped,
			Accuracy:       accuracy(st.recent),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

func accuracy(recent []float64) float64 {
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, v := range recent {
		sum += v
	}
	return sum / float64(len(recent))
}

// Reset reinitializes every tracked strategy to the fixed prior and zeroes
// its counters. Tracked names are kept so the change is immediately visible
// in Stats.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.states {
		m.states[name] = newState()
	}
	m.logger.Info("weight model reset", slog.Int("strategies", len(m.states)))
}

// Snapshot exports the full model state for persistence.
func (m *Model) Snapshot() []domain.WeightState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.WeightState, 0, len(m.states))
	for name, st := range m.states {
		coef := make(map[string]float64, len(st.coef))
		for k, v := range st.coef {
			coef[k] = v
		}
		out = append(out, domain.WeightState{
			Strategy:       name,
			Weight:         m.publish(st),
			Bias:           st.bias,
			Coefficients:   coef,
			SampleCount:    st.samples,
			SkippedUpdates: st.skipped,
			RecentResults:  append([]float64(nil), st.recent...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

// Restore replaces the model state from a persisted snapshot. Entries with
// non-finite parameters are rejected.
func (m *Model) Restore(states []domain.WeightState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	restored := make(map[string]*state, len(states))
	for _, ws := range states {
		if !finite(ws.Bias) {
			return fmt.Errorf("weights: restore %s: non-finite bias", ws.Strategy)
		}
		st := newState()
		st.bias = ws.Bias
		for k, v := range ws.Coefficients {
			if !finite(v) {
				return fmt.Errorf("weights: restore %s: non-finite coefficient %s", ws.Strategy, k)
			}
			st.coef[k] = v
		}
		st.samples = ws.SampleCount
		st.skipped = ws.SkippedUpdates
		st.recent = append([]float64(nil), ws.RecentResults...)
		if len(st.recent) > m.cfg.AccuracyWindow {
			st.recent = st.recent[len(st.recent)-m.cfg.AccuracyWindow:]
		}
		restored[ws.Strategy] = st
	}
	m.states = restored
	return nil
}

func sigmoid(z float64) float64 {
	if z < -30 {
		return 0
	}
	if z > 30 {
		return 1
	}
	return 1 / (1 + math.Exp(-z))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
