package strategy

import (
	"testing"
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
)

var testEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// mkSeries builds a series from [open, high, low, close, volume] rows spaced
// one hour apart.
func mkSeries(symbol string, rows [][5]float64) *domain.PriceSeries {
	candles := make([]domain.Candle, len(rows))
	for i, r := range rows {
		candles[i] = domain.Candle{
			OpenTime: testEpoch.Add(time.Duration(i) * time.Hour),
			Open:     r[0],
			High:     r[1],
			Low:      r[2],
			Close:    r[3],
			Volume:   r[4],
		}
	}
	return &domain.PriceSeries{Symbol: symbol, Timeframe: "1h", Candles: candles}
}

// sweepCHOCHRows models the full long setup: a swing low at bar 5 (97.0), a
// sweep wick to 96.2 rejected back above at bar 12, a change of character
// close at bar 16 that also leaves a bullish gap at 101.0-101.2, and a
// retracement into that gap at bar 18.
func sweepCHOCHRows() [][5]float64 {
	return [][5]float64{
		{100, 101, 99.5, 100.5, 100},   // 0
		{100.5, 101.5, 100, 101, 100},  // 1
		{101, 102, 100.5, 101.5, 100},  // 2
		{101.5, 102.5, 100, 100.8, 100},
		{100.8, 101.2, 98.0, 98.5, 100},
		{98.5, 99, 97.0, 97.5, 100}, // 5: swing low
		{97.5, 99.5, 97.2, 99, 100},
		{99, 100.5, 98.8, 100, 100},
		{100, 101.8, 99.8, 101.5, 100},
		{101.5, 102.2, 100.8, 101.2, 100}, // 9: swing high
		{101.2, 101.6, 99.5, 100, 100},
		{100, 100.8, 98.5, 99, 100},
		{99, 99.5, 96.2, 97.8, 100}, // 12: sweep and rejection
		{97.8, 99.8, 97.5, 99.5, 100},
		{99.5, 101, 99.2, 100.8, 100},
		{100.8, 102.0, 100.5, 101.5, 100},
		{101.5, 103.5, 101.2, 103.2, 100}, // 16: CHOCH, bull FVG 101.0-101.2
		{103.2, 103.4, 102.6, 103.0, 100},
		{103.0, 103.2, 101.1, 102.4, 100}, // 18: trades into the gap
		{102.4, 103.0, 102.2, 102.8, 100},
	}
}

// Feeding the sweep/CHOCH/retracement sequence bar by bar must yield exactly
// one signal, at the retracement bar and not before.
func TestSMCSingleSignalAtRetracement(t *testing.T) {
	rows := sweepCHOCHRows()
	s := NewSMC(DefaultSMCConfig())

	var fired []int
	var got domain.StrategySignal
	for end := 7; end <= len(rows); end++ {
		series := mkSeries("TESTUSDT", rows[:end])
		sig, ok := s.Evaluate(Input{
			Series: series,
			Bias:   domain.DirectionLong,
			BiasOK: true,
			Now:    testEpoch.Add(time.Duration(end) * time.Hour),
		})
		if ok {
			fired = append(fired, end-1)
			got = sig
		}
	}
	if len(fired) != 1 {
		t.Fatalf("signals fired at bars %v, want exactly one", fired)
	}
	if fired[0] != 18 {
		t.Fatalf("signal at bar %d, want 18 (retracement bar)", fired[0])
	}
	if got.Direction != domain.DirectionLong {
		t.Errorf("direction = %s, want LONG", got.Direction)
	}
	if got.Regime != domain.RegimeSMC {
		t.Errorf("regime = %s, want %s", got.Regime, domain.RegimeSMC)
	}
	if !got.HasTag("fvg_entry") {
		t.Errorf("tags = %v, want fvg_entry", got.Tags)
	}
	if got.Strength <= 0 || got.Strength > 1 {
		t.Errorf("strength = %v, want in (0, 1]", got.Strength)
	}
}

// A close back below the sweep wick resets the cycle without emitting.
func TestSMCInvalidationResets(t *testing.T) {
	rows := sweepCHOCHRows()[:15] // swept state armed at bar 14
	s := NewSMC(DefaultSMCConfig())

	for end := 7; end <= len(rows); end++ {
		s.Evaluate(Input{
			Series: mkSeries("TESTUSDT", rows[:end]),
			Bias:   domain.DirectionLong,
			BiasOK: true,
			Now:    testEpoch,
		})
	}
	if s.Phase("TESTUSDT") != int(smcSwept) {
		t.Fatalf("phase = %d, want swept", s.Phase("TESTUSDT"))
	}

	// Close far below the sweep extreme.
	rows = append(rows, [5]float64{97.5, 97.8, 95.0, 95.2, 100})
	sig, ok := s.Evaluate(Input{
		Series: mkSeries("TESTUSDT", rows),
		Bias:   domain.DirectionLong,
		BiasOK: true,
		Now:    testEpoch,
	})
	if ok {
		t.Fatalf("unexpected signal %+v after invalidation", sig)
	}
	if s.Phase("TESTUSDT") != int(smcIdle) {
		t.Errorf("phase = %d after invalidation, want idle", s.Phase("TESTUSDT"))
	}
}

// An opposing higher-timeframe bias suppresses the sweep detection entirely.
func TestSMCBiasGate(t *testing.T) {
	rows := sweepCHOCHRows()
	s := NewSMC(DefaultSMCConfig())

	for end := 7; end <= len(rows); end++ {
		sig, ok := s.Evaluate(Input{
			Series: mkSeries("TESTUSDT", rows[:end]),
			Bias:   domain.DirectionShort,
			BiasOK: true,
			Now:    testEpoch,
		})
		if ok {
			t.Fatalf("unexpected long-side signal %+v under short bias", sig)
		}
	}
	if s.Phase("TESTUSDT") != int(smcIdle) {
		t.Errorf("phase = %d under opposing bias, want idle", s.Phase("TESTUSDT"))
	}
}

// A swept phase that never progresses resets after the stall bound.
func TestSMCStallReset(t *testing.T) {
	cfg := DefaultSMCConfig()
	cfg.MaxStall = 3
	s := NewSMC(cfg)

	rows := sweepCHOCHRows()[:15]
	for end := 7; end <= len(rows); end++ {
		s.Evaluate(Input{
			Series: mkSeries("TESTUSDT", rows[:end]),
			Bias:   domain.DirectionLong,
			BiasOK: true,
			Now:    testEpoch,
		})
	}
	if s.Phase("TESTUSDT") != int(smcSwept) {
		t.Fatalf("phase = %d, want swept", s.Phase("TESTUSDT"))
	}

	// Drift sideways below the CHOCH level; no progression.
	for i := 0; i < cfg.MaxStall+1; i++ {
		rows = append(rows, [5]float64{100.8, 101.2, 100.4, 100.9, 100})
		s.Evaluate(Input{
			Series: mkSeries("TESTUSDT", rows),
			Bias:   domain.DirectionLong,
			BiasOK: true,
			Now:    testEpoch,
		})
	}
	if s.Phase("TESTUSDT") != int(smcIdle) {
		t.Errorf("phase = %d after stall, want idle", s.Phase("TESTUSDT"))
	}
}

// Reset drops every per-symbol machine back to idle.
func TestSMCReset(t *testing.T) {
	rows := sweepCHOCHRows()[:15]
	s := NewSMC(DefaultSMCConfig())
	for end := 7; end <= len(rows); end++ {
		s.Evaluate(Input{
			Series: mkSeries("TESTUSDT", rows[:end]),
			Bias:   domain.DirectionLong,
			BiasOK: true,
			Now:    testEpoch,
		})
	}
	if s.Phase("TESTUSDT") == int(smcIdle) {
		t.Fatal("setup did not arm the state machine")
	}
	s.Reset()
	if s.Phase("TESTUSDT") != int(smcIdle) {
		t.Errorf("phase = %d after Reset, want idle", s.Phase("TESTUSDT"))
	}
}
