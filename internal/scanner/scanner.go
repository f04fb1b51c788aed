// Package scanner drives the signal lifecycle: on a fixed tick it refreshes
// the symbol universe, resolves pending signals against fresh candles, and
// evaluates strategies over newly fetched history. Pending-pool and weight
// mutations happen only on the tick goroutine; symbol workers return proposals.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ekaraca/marketscan/internal/aggregate"
	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/exchange"
	"github.com/ekaraca/marketscan/internal/indicator"
	"github.com/ekaraca/marketscan/internal/notify"
	"github.com/ekaraca/marketscan/internal/strategy"
	"github.com/ekaraca/marketscan/internal/weights"
)

// Config tunes the scan loop.
type Config struct {
	TickInterval  time.Duration
	ScanTimeframe string
	BarInterval   time.Duration // duration of one ScanTimeframe bar
	ScanLookback  int
	BiasTimeframe string
	BiasLookback  int

	Concurrency  int
	FetchTimeout time.Duration

	// Symbols pins the universe; when empty it is refreshed from the
	// exchange by 24h quote volume.
	Symbols         []string
	QuoteAsset      string
	MinQuoteVolume  float64
	MaxSymbols      int
	UniverseRefresh time.Duration

	// Post-loss penalty: signal strength on a symbol is damped by up to
	// PenaltyDepth right after a loss, recovering with PenaltyHalfLife.
	PenaltyDepth    float64
	PenaltyHalfLife time.Duration

	InitialMode string
	Modes       map[string]domain.ModeProfile

	Indicator indicator.Params
}

// DefaultConfig returns the standard scanner settings.
func DefaultConfig() Config {
	return Config{
		TickInterval:    5 * time.Minute,
		ScanTimeframe:   "15m",
		BarInterval:     15 * time.Minute,
		ScanLookback:    320,
		BiasTimeframe:   "1h",
		BiasLookback:    180,
		Concurrency:     8,
		FetchTimeout:    10 * time.Second,
		QuoteAsset:      "USDT",
		MinQuoteVolume:  20_000_000,
		MaxSymbols:      30,
		UniverseRefresh: 6 * time.Hour,
		PenaltyDepth:    0.5,
		PenaltyHalfLife: 2 * time.Hour,
		InitialMode:     "balanced",
		Modes: map[string]domain.ModeProfile{
			"aggressive":   {Name: "aggressive", Threshold: 0.25, Cooldown: 15 * time.Minute, StopPct: 0.010, TargetPct: 0.015, TimeoutBars: 12},
			"balanced":     {Name: "balanced", Threshold: 0.40, Cooldown: 30 * time.Minute, StopPct: 0.012, TargetPct: 0.020, TimeoutBars: 12},
			"conservative": {Name: "conservative", Threshold: 0.55, Cooldown: 40 * time.Minute, StopPct: 0.015, TargetPct: 0.028, TimeoutBars: 12},
		},
		Indicator: indicator.DefaultParams(),
	}
}

// pending is one composite signal awaiting resolution.
type pending struct {
	sig         domain.CompositeSignal
	timeoutBars int
	barsElapsed int
	lastBar     time.Time // open time of the newest bar already examined
}

// Scanner owns the pending pool, the cooldown table and the active mode. All
// of them are mutated only between or at the start of ticks.
type Scanner struct {
	cfg        Config
	connector  exchange.Connector
	prices     exchange.PriceSource // may be nil
	strategies *strategy.Registry
	aggregator *aggregate.Aggregator
	model      *weights.Model
	notifier   *notify.Notifier
	states     domain.StateStore   // may be nil
	history    domain.HistoryStore // may be nil
	logger     *slog.Logger

	now func() time.Time

	commands chan func()

	mu            sync.RWMutex
	mode          domain.ModeProfile
	universe      []string
	universeAsOf  time.Time
	pendingPool   map[string]*pending
	cooldownUntil map[string]time.Time
	lastLoss      map[string]time.Time
}

// New creates a Scanner. prices, states and history may be nil; the scanner
// then falls back to REST prices and runs without persistence.
func New(
	cfg Config,
	connector exchange.Connector,
	prices exchange.PriceSource,
	strategies *strategy.Registry,
	aggregator *aggregate.Aggregator,
	model *weights.Model,
	notifier *notify.Notifier,
	states domain.StateStore,
	history domain.HistoryStore,
	logger *slog.Logger,
) (*Scanner, error) {
	mode, ok := cfg.Modes[cfg.InitialMode]
	if !ok {
		return nil, fmt.Errorf("scanner: unknown initial mode %q", cfg.InitialMode)
	}
	return &Scanner{
		cfg:           cfg,
		connector:     connector,
		prices:        prices,
		strategies:    strategies,
		aggregator:    aggregator,
		model:         model,
		notifier:      notifier,
		states:        states,
		history:       history,
		logger:        logger.With(slog.String("component", "scanner")),
		now:           time.Now,
		commands:      make(chan func(), 16),
		mode:          mode,
		pendingPool:   make(map[string]*pending),
		cooldownUntil: make(map[string]time.Time),
		lastLoss:      make(map[string]time.Time),
	}, nil
}

// Run restores persisted state, then ticks until ctx is cancelled. The first
// tick runs immediately.
func (s *Scanner) Run(ctx context.Context) error {
	s.restore(ctx)
	s.model.Track(s.strategies.List()...)

	s.logger.Info("scanner starting",
		slog.Duration("tick", s.cfg.TickInterval),
		slog.String("mode", s.ActiveMode().Name))

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// SetMode queues a mode switch; it takes effect at the next tick boundary.
func (s *Scanner) SetMode(name string) error {
	profile, ok := s.cfg.Modes[name]
	if !ok {
		return fmt.Errorf("scanner: %w: unknown mode %q", domain.ErrNotFound, name)
	}
	s.enqueue(func() {
		s.mu.Lock()
		prev := s.mode.Name
		s.mode = profile
		s.mu.Unlock()
		if prev != profile.Name {
			s.logger.Info("mode switched", slog.String("from", prev), slog.String("to", profile.Name))
			s.notifier.System(context.Background(), "Mode switched", prev+" -> "+profile.Name)
		}
	})
	return nil
}

// ResetWeights queues a full weight-model reset, applied at the next tick
// boundary together with a reset of stateful detectors.
func (s *Scanner) ResetWeights() {
	s.enqueue(func() {
		s.model.Reset()
		s.strategies.ResetAll()
		s.persistWeights(context.Background())
		s.notifier.System(context.Background(), "Weights reset", "all strategies back to prior")
	})
}

func (s *Scanner) enqueue(cmd func()) {
	select {
	case s.commands <- cmd:
	default:
		// Commands only ever run on the tick goroutine; executing one inline
		// here would mutate state mid-tick. Dropping is safe because every
		// command is idempotent and can be re-issued.
		s.logger.Warn("command queue full, dropping command")
	}
}

// drainCommands applies queued commands. Called only from the tick goroutine.
func (s *Scanner) drainCommands() {
	for {
		select {
		case cmd := <-s.commands:
			cmd()
		default:
			return
		}
	}
}

// ActiveMode returns the mode profile the next tick will run under.
func (s *Scanner) ActiveMode() domain.ModeProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Pending returns a snapshot of the pending pool.
func (s *Scanner) Pending() []domain.CompositeSignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CompositeSignal, 0, len(s.pendingPool))
	for _, p := range s.pendingPool {
		out = append(out, p.sig)
	}
	return out
}

// Stats exposes the weight model's read-only view.
func (s *Scanner) Stats() []domain.StrategyStats {
	return s.model.Stats()
}

// Universe returns the symbols scanned on the last tick.
func (s *Scanner) Universe() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.universe...)
}

// restore reloads the weight snapshot and pending pool from the state store.
func (s *Scanner) restore(ctx context.Context) {
	if s.states == nil {
		return
	}
	if snap, err := s.states.LoadWeights(ctx); err == nil {
		if err := s.model.Restore(snap); err != nil {
			s.logger.Warn("weight snapshot rejected", slog.String("error", err.Error()))
		} else {
			s.logger.Info("weights restored", slog.Int("strategies", len(snap)))
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("weight restore failed", slog.String("error", err.Error()))
	}

	snaps, err := s.states.LoadPending(ctx)
	if err != nil {
		s.logger.Warn("pending restore failed", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		profile, ok := s.cfg.Modes[snap.Signal.Mode]
		if !ok {
			profile = s.mode
		}
		s.pendingPool[snap.Signal.Symbol] = &pending{
			sig:         snap.Signal,
			timeoutBars: profile.TimeoutBars,
			barsElapsed: snap.BarsElapsed,
			lastBar:     snap.LastBar,
		}
	}
	if len(snaps) > 0 {
		s.logger.Info("pending signals restored", slog.Int("count", len(snaps)))
	}
}

func (s *Scanner) persistWeights(ctx context.Context) {
	if s.states == nil {
		return
	}
	if err := s.states.SaveWeights(ctx, s.model.Snapshot()); err != nil {
		s.logger.Warn("weight persist failed", slog.String("error", err.Error()))
	}
}
