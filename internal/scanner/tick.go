package scanner

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/indicator"
	"github.com/ekaraca/marketscan/internal/strategy"
)

// resolution is a worker's proposal for one pending signal: how many new bars
// were examined and, when terminal, the outcome. Result is empty for pure
// progress.
type resolution struct {
	result   domain.OutcomeResult
	exit     float64
	barsSeen int
	lastBar  time.Time
}

// emission is a worker's proposal for a new pending signal.
type emission struct {
	sig     domain.CompositeSignal
	lastBar time.Time
}

type symbolResult struct {
	symbol     string
	resolution *resolution
	emission   *emission
	err        error
}

// tick runs one full scan cycle. Commands queued since the previous tick are
// applied first so the whole cycle runs under one mode profile.
func (s *Scanner) tick(ctx context.Context) {
	started := s.now()
	s.drainCommands()
	mode := s.ActiveMode()
	s.refreshUniverse(ctx)

	symbols := s.Universe()
	if len(symbols) == 0 {
		s.logger.Warn("empty symbol universe, skipping tick")
		return
	}

	// Snapshot shared state; workers never touch the pool directly.
	s.mu.RLock()
	pendingSnap := make(map[string]pending, len(s.pendingPool))
	for sym, p := range s.pendingPool {
		pendingSnap[sym] = *p
	}
	cooldownSnap := make(map[string]time.Time, len(s.cooldownUntil))
	for sym, until := range s.cooldownUntil {
		cooldownSnap[sym] = until
	}
	s.mu.RUnlock()

	var (
		resMu   sync.Mutex
		results []symbolResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, symbol := range symbols {
		symbol := symbol
		p, hasPending := pendingSnap[symbol]
		cooledUntil := cooldownSnap[symbol]
		g.Go(func() error {
			res := s.processSymbol(gctx, symbol, mode, p, hasPending, cooledUntil)
			resMu.Lock()
			results = append(results, res)
			resMu.Unlock()
			// A symbol's failure is recorded, never propagated; one bad
			// symbol must not cancel the rest of the tick.
			return nil
		})
	}
	_ = g.Wait()

	emitted, resolved, failed := s.apply(ctx, results, mode)
	s.logger.Info("tick complete",
		slog.String("mode", mode.Name),
		slog.Int("symbols", len(symbols)),
		slog.Int("emitted", emitted),
		slog.Int("resolved", resolved),
		slog.Int("failed", failed),
		slog.Duration("took", s.now().Sub(started)))
}

// processSymbol fetches one symbol's history and produces either a resolution
// proposal (symbol has a pending signal) or an emission proposal.
func (s *Scanner) processSymbol(ctx context.Context, symbol string, mode domain.ModeProfile, p pending, hasPending bool, cooledUntil time.Time) symbolResult {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	series, err := s.connector.FetchHistory(fetchCtx, symbol, s.cfg.ScanTimeframe, s.cfg.ScanLookback)
	cancel()
	if err != nil {
		return symbolResult{symbol: symbol, err: err}
	}

	if hasPending {
		res := resolvePending(p, series)
		return symbolResult{symbol: symbol, resolution: &res}
	}

	now := s.now()
	if now.Before(cooledUntil) {
		return symbolResult{symbol: symbol}
	}

	ind, err := indicator.Compute(series, s.cfg.Indicator)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			s.logger.Debug("insufficient history", slog.String("symbol", symbol))
			return symbolResult{symbol: symbol}
		}
		return symbolResult{symbol: symbol, err: err}
	}

	bias, biasOK := s.fetchBias(ctx, symbol)

	in := strategy.Input{
		Series:     series,
		Indicators: ind,
		Bias:       bias,
		BiasOK:     biasOK,
		Mode:       mode,
		Now:        now,
	}
	penalty := s.penalty(symbol, now)
	var candidates []domain.StrategySignal
	for _, st := range s.strategies.All() {
		sig, ok := st.Evaluate(in)
		if !ok {
			continue
		}
		sig.Strength *= penalty
		candidates = append(candidates, sig)
	}
	if len(candidates) == 0 {
		return symbolResult{symbol: symbol}
	}

	comp, ok := s.aggregator.Fuse(symbol, candidates, s.model.Weight, mode, now)
	if !ok {
		return symbolResult{symbol: symbol}
	}

	last, _ := series.Last()
	entry := last.Close
	if s.prices != nil {
		if p, ok := s.prices.LastPrice(symbol); ok && p > 0 {
			entry = p
		}
	}
	comp.Entry = entry
	if comp.Direction == domain.DirectionLong {
		comp.Stop = entry * (1 - mode.StopPct)
		comp.Target = entry * (1 + mode.TargetPct)
	} else {
		comp.Stop = entry * (1 + mode.StopPct)
		comp.Target = entry * (1 - mode.TargetPct)
	}
	comp.ExpiresAt = now.Add(time.Duration(mode.TimeoutBars) * s.cfg.BarInterval)

	return symbolResult{symbol: symbol, emission: &emission{sig: comp, lastBar: last.OpenTime}}
}

// resolvePending walks the closed bars newer than the last examined one, in
// order, checking the stop before the target inside each bar. When both levels
// are touched within a single bar the stop wins. The timeout triggers only
// after a bar count, never mid-bar.
func resolvePending(p pending, series *domain.PriceSeries) resolution {
	res := resolution{lastBar: p.lastBar}
	sig := p.sig
	barsElapsed := p.barsElapsed
	for _, bar := range series.Candles {
		if !bar.OpenTime.After(res.lastBar) {
			continue
		}
		res.lastBar = bar.OpenTime
		res.barsSeen++
		barsElapsed++

		if sig.Direction == domain.DirectionLong {
			if bar.Low <= sig.Stop {
				res.result, res.exit = domain.OutcomeLoss, sig.Stop
				return res
			}
			if bar.High >= sig.Target {
				res.result, res.exit = domain.OutcomeWin, sig.Target
				return res
			}
		} else {
			if bar.High >= sig.Stop {
				res.result, res.exit = domain.OutcomeLoss, sig.Stop
				return res
			}
			if bar.Low <= sig.Target {
				res.result, res.exit = domain.OutcomeWin, sig.Target
				return res
			}
		}

		if barsElapsed >= p.timeoutBars {
			res.result, res.exit = domain.OutcomeTimeout, bar.Close
			return res
		}
	}
	return res
}

// apply commits all proposals serially on the tick goroutine: pool and weight
// mutations stay single-writer, and each outcome resolves and updates weights
// atomically before the next is considered.
func (s *Scanner) apply(ctx context.Context, results []symbolResult, mode domain.ModeProfile) (emitted, resolved, failed int) {
	now := s.now()
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			s.logger.Warn("symbol skipped",
				slog.String("symbol", r.symbol),
				slog.String("error", r.err.Error()))

		case r.resolution != nil:
			if s.applyResolution(ctx, r.symbol, *r.resolution, now) {
				resolved++
			}

		case r.emission != nil:
			if s.applyEmission(ctx, *r.emission, mode, now) {
				emitted++
			}
		}
	}
	return emitted, resolved, failed
}

func (s *Scanner) applyResolution(ctx context.Context, symbol string, res resolution, now time.Time) bool {
	s.mu.Lock()
	p, ok := s.pendingPool[symbol]
	if !ok {
		s.mu.Unlock()
		return false
	}
	p.barsElapsed += res.barsSeen
	p.lastBar = res.lastBar
	if res.result == "" {
		snap := domain.PendingSignal{Signal: p.sig, LastBar: p.lastBar, BarsElapsed: p.barsElapsed}
		s.mu.Unlock()
		if res.barsSeen > 0 {
			s.persistPending(ctx, snap)
		}
		return false
	}
	sig := p.sig
	delete(s.pendingPool, symbol)
	if res.result == domain.OutcomeLoss {
		s.lastLoss[symbol] = now
	}
	s.mu.Unlock()

	out := domain.Outcome{
		SignalID:       sig.ID,
		Symbol:         symbol,
		Result:         res.result,
		ResolvedAt:     now,
		RealizedReturn: realizedReturn(sig, res.exit),
	}
	s.model.Update(out, sig.Contributions)
	s.persistWeights(ctx)
	if s.states != nil {
		if err := s.states.DeletePending(ctx, symbol); err != nil {
			s.logger.Warn("pending delete failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
	}
	if s.history != nil {
		if err := s.history.RecordResolved(ctx, sig, out); err != nil {
			s.logger.Warn("history record failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
	}
	s.notifier.SignalResolved(ctx, sig, out)
	s.logger.Info("signal resolved",
		slog.String("symbol", symbol),
		slog.String("result", string(out.Result)),
		slog.Float64("return", out.RealizedReturn))
	return true
}

func (s *Scanner) applyEmission(ctx context.Context, em emission, mode domain.ModeProfile, now time.Time) bool {
	s.mu.Lock()
	if _, exists := s.pendingPool[em.sig.Symbol]; exists {
		s.mu.Unlock()
		return false
	}
	if until, ok := s.cooldownUntil[em.sig.Symbol]; ok && now.Before(until) {
		s.mu.Unlock()
		return false
	}
	s.pendingPool[em.sig.Symbol] = &pending{
		sig:         em.sig,
		timeoutBars: mode.TimeoutBars,
		lastBar:     em.lastBar,
	}
	s.cooldownUntil[em.sig.Symbol] = now.Add(mode.Cooldown)
	s.mu.Unlock()

	s.persistPending(ctx, domain.PendingSignal{Signal: em.sig, LastBar: em.lastBar})
	s.notifier.SignalEmitted(ctx, em.sig)
	s.logger.Info("signal emitted",
		slog.String("symbol", em.sig.Symbol),
		slog.String("direction", string(em.sig.Direction)),
		slog.Float64("score", em.sig.Score),
		slog.Float64("confidence", em.sig.Confidence))
	return true
}

// persistPending writes the pending snapshot with its cursor, best-effort.
func (s *Scanner) persistPending(ctx context.Context, snap domain.PendingSignal) {
	if s.states == nil {
		return
	}
	if err := s.states.SavePending(ctx, snap); err != nil {
		s.logger.Warn("pending persist failed",
			slog.String("symbol", snap.Signal.Symbol),
			slog.String("error", err.Error()))
	}
}

// realizedReturn is the signed fractional return from entry to exit.
func realizedReturn(sig domain.CompositeSignal, exit float64) float64 {
	if sig.Entry == 0 {
		return 0
	}
	return sig.Direction.Sign() * (exit - sig.Entry) / sig.Entry
}

// fetchBias derives the higher-timeframe direction from the bias EMA slope.
func (s *Scanner) fetchBias(ctx context.Context, symbol string) (domain.Direction, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	series, err := s.connector.FetchHistory(fetchCtx, symbol, s.cfg.BiasTimeframe, s.cfg.BiasLookback)
	if err != nil {
		s.logger.Debug("bias fetch failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return "", false
	}
	ema, err := indicator.EMA(series.Closes(), s.cfg.Indicator.EMABias)
	if err != nil {
		return "", false
	}
	cur, prev := indicator.Last(ema), indicator.Prev(ema, 1)
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return "", false
	}
	switch {
	case cur > prev:
		return domain.DirectionLong, true
	case cur < prev:
		return domain.DirectionShort, true
	default:
		return "", false
	}
}

// penalty damps signal strength on a symbol right after a loss, recovering
// exponentially with the configured half-life.
func (s *Scanner) penalty(symbol string, now time.Time) float64 {
	if s.cfg.PenaltyDepth <= 0 || s.cfg.PenaltyHalfLife <= 0 {
		return 1
	}
	s.mu.RLock()
	lossAt, ok := s.lastLoss[symbol]
	s.mu.RUnlock()
	if !ok {
		return 1
	}
	age := now.Sub(lossAt)
	if age < 0 {
		age = 0
	}
	halfLives := float64(age) / float64(s.cfg.PenaltyHalfLife)
	return 1 - s.cfg.PenaltyDepth*math.Exp2(-halfLives)
}

// refreshUniverse keeps the scanned symbol list current. A pinned list never
// refreshes; otherwise the exchange's volume ranking is consulted on the
// configured interval. Symbols carrying a pending signal are retained even
// when they drop out of the ranking.
func (s *Scanner) refreshUniverse(ctx context.Context) {
	if len(s.cfg.Symbols) > 0 {
		s.mu.Lock()
		s.universe = append([]string(nil), s.cfg.Symbols...)
		s.mu.Unlock()
		return
	}
	s.mu.RLock()
	fresh := !s.universeAsOf.IsZero() && s.now().Sub(s.universeAsOf) < s.cfg.UniverseRefresh
	s.mu.RUnlock()
	if fresh {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	symbols, err := s.connector.TopSymbols(fetchCtx, s.cfg.QuoteAsset, s.cfg.MinQuoteVolume, s.cfg.MaxSymbols)
	cancel()
	if err != nil {
		s.logger.Warn("universe refresh failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		seen[sym] = true
	}
	for sym := range s.pendingPool {
		if !seen[sym] {
			symbols = append(symbols, sym)
		}
	}
	s.universe = symbols
	s.universeAsOf = s.now()
	s.logger.Info("universe refreshed", slog.Int("symbols", len(symbols)))
}
