package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/indicator"
)

// SMCConfig tunes the smart-money-concept detector.
type SMCConfig struct {
	SweepEps    float64 // fractional excursion beyond a swing to count as a sweep
	BOSEps      float64 // fractional break beyond structure for a CHOCH
	FVGLookback int     // bars scanned for fair value gaps
	OTELow      float64 // retracement zone lower bound
	OTEHigh     float64 // retracement zone upper bound
	SwingLeft   int
	SwingRight  int
	MinLegPct   float64 // minimum impulse leg size relative to price
	MaxStall    int     // ticks a phase may stall before reset
}

// DefaultSMCConfig mirrors the original parameters.
func DefaultSMCConfig() SMCConfig {
	return SMCConfig{
		SweepEps:    0.0005,
		BOSEps:      0.0005,
		FVGLookback: 20,
		OTELow:      0.62,
		OTEHigh:     0.79,
		SwingLeft:   2,
		SwingRight:  2,
		MinLegPct:   0.004,
		MaxStall:    8,
	}
}

type smcPhase int

const (
	smcIdle smcPhase = iota
	smcSwept
	smcCHOCH // entry zone armed
)

// smcState is the per-symbol progression through
// idle → liquidity_swept → change_of_character_confirmed → entry_zone_active.
type smcState struct {
	phase        smcPhase
	dir          domain.Direction
	refExtreme   float64   // swept prior swing extreme
	sweepExtreme float64   // sweep wick extreme; closing beyond it invalidates
	sweepTime    time.Time // open time of the sweep bar
	legLow       float64
	legHigh      float64
	zoneLow      float64
	zoneHigh     float64
	fromFVG      bool
	stall        int
}

// SMC detects liquidity sweeps followed by a change of character and an entry
// inside a fair-value-gap or optimal-trade-entry retracement zone. Signals are
// emitted only when the entry zone activates; each cycle emits at most once.
type SMC struct {
	cfg SMCConfig

	mu     sync.Mutex
	states map[string]*smcState
}

// NewSMC creates the detector with empty per-symbol state.
func NewSMC(cfg SMCConfig) *SMC {
	return &SMC{cfg: cfg, states: make(map[string]*smcState)}
}

func (s *SMC) Name() string { return "smc" }

// Reset clears all per-symbol state machines back to idle.
func (s *SMC) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]*smcState)
}

// Phase exposes the current phase for a symbol; used by tests.
func (s *SMC) Phase(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[symbol]; ok {
		return int(st.phase)
	}
	return int(smcIdle)
}

// Evaluate implements Strategy. One call advances the symbol's state machine
// by as many transitions as the current bar supports; a signal is produced
// only on the transition into the active entry zone.
func (s *SMC) Evaluate(in Input) (domain.StrategySignal, bool) {
	if in.Series == nil || in.Series.Len() < s.cfg.SwingLeft+s.cfg.SwingRight+3 {
		return domain.StrategySignal{}, false
	}
	last, ok := in.Series.Last()
	if !ok {
		return domain.StrategySignal{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[in.Series.Symbol]
	if st == nil {
		st = &smcState{}
		s.states[in.Series.Symbol] = st
	}

	if st.phase != smcIdle && s.invalidated(st, last) {
		*st = smcState{}
	}

	progressed := false
	if st.phase == smcIdle {
		progressed = s.detectSweep(in, st)
	}
	if st.phase == smcSwept {
		if s.detectCHOCH(in, st, last.Close) {
			progressed = true
		}
	}
	if st.phase == smcCHOCH {
		if sig, fired := s.checkEntryZone(in, st, last); fired {
			*st = smcState{}
			return sig, true
		}
	}

	if st.phase != smcIdle {
		if progressed {
			st.stall = 0
		} else {
			st.stall++
			if st.stall > s.cfg.MaxStall {
				*st = smcState{}
			}
		}
	}
	return domain.StrategySignal{}, false
}

func (s *SMC) invalidated(st *smcState, last domain.Candle) bool {
	if st.dir == domain.DirectionLong {
		return last.Close < st.sweepExtreme*(1-s.cfg.SweepEps)
	}
	return last.Close > st.sweepExtreme*(1+s.cfg.SweepEps)
}

// detectSweep looks for a wick beyond a prior swing extreme rejected back
// inside, in the direction of the higher-timeframe bias.
func (s *SMC) detectSweep(in Input, st *smcState) bool {
	highs, lows := in.Series.Highs(), in.Series.Lows()
	swingHighs, swingLows, err := indicator.FindSwings(highs, lows, s.cfg.SwingLeft, s.cfg.SwingRight)
	if err != nil {
		return false
	}

	if in.Bias != domain.DirectionShort && len(swingLows) >= 2 {
		prev, cur := swingLows[len(swingLows)-2], swingLows[len(swingLows)-1]
		ref := prev.Price * (1 - s.cfg.SweepEps)
		sweptDown := cur.Price < ref
		rejected := in.Series.Candles[cur.Index].Close > ref
		if sweptDown && rejected {
			st.phase = smcSwept
			st.dir = domain.DirectionLong
			st.refExtreme = prev.Price
			st.sweepExtreme = cur.Price
			st.sweepTime = in.Series.Candles[cur.Index].OpenTime
			st.stall = 0
			return true
		}
	}
	if in.Bias != domain.DirectionLong && len(swingHighs) >= 2 {
		prev, cur := swingHighs[len(swingHighs)-2], swingHighs[len(swingHighs)-1]
		ref := prev.Price * (1 + s.cfg.SweepEps)
		sweptUp := cur.Price > ref
		rejected := in.Series.Candles[cur.Index].Close < ref
		if sweptUp && rejected {
			st.phase = smcSwept
			st.dir = domain.DirectionShort
			st.refExtreme = prev.Price
			st.sweepExtreme = cur.Price
			st.sweepTime = in.Series.Candles[cur.Index].OpenTime
			st.stall = 0
			return true
		}
	}
	return false
}

// detectCHOCH confirms the change of character: after the sweep, price must
// close beyond the minor opposing structure formed at or after the sweep bar.
// On confirmation the impulse leg and the entry zone are fixed.
func (s *SMC) detectCHOCH(in Input, st *smcState, close float64) bool {
	highs, lows := in.Series.Highs(), in.Series.Lows()
	swingHighs, swingLows, err := indicator.FindSwings(highs, lows, s.cfg.SwingLeft, s.cfg.SwingRight)
	if err != nil {
		return false
	}

	if st.dir == domain.DirectionLong {
		minor, ok := latestSwingSince(swingHighs, in.Series, st.sweepTime)
		if !ok || close <= minor.Price*(1+s.cfg.BOSEps) {
			return false
		}
		st.legLow = st.sweepExtreme
		st.legHigh = math.Max(close, minor.Price)
	} else {
		minor, ok := latestSwingSince(swingLows, in.Series, st.sweepTime)
		if !ok || close >= minor.Price*(1-s.cfg.BOSEps) {
			return false
		}
		st.legHigh = st.sweepExtreme
		st.legLow = math.Min(close, minor.Price)
	}

	leg := st.legHigh - st.legLow
	if leg/(close+1e-12) < s.cfg.MinLegPct {
		*st = smcState{}
		return false
	}

	bull, bear, _ := indicator.FindFVGs(highs, lows, s.cfg.FVGLookback)
	if st.dir == domain.DirectionLong {
		if bull != nil {
			st.zoneLow, st.zoneHigh, st.fromFVG = bull.Low, bull.High, true
		} else {
			// OTE retracement measured down from the leg high.
			st.zoneLow = st.legHigh - leg*s.cfg.OTEHigh
			st.zoneHigh = st.legHigh - leg*s.cfg.OTELow
		}
	} else {
		if bear != nil {
			st.zoneLow, st.zoneHigh, st.fromFVG = bear.Low, bear.High, true
		} else {
			st.zoneLow = st.legLow + leg*s.cfg.OTELow
			st.zoneHigh = st.legLow + leg*s.cfg.OTEHigh
		}
	}
	st.phase = smcCHOCH
	st.stall = 0
	return true
}

// checkEntryZone fires when the current bar trades into the armed zone and
// rejects in the signal direction.
func (s *SMC) checkEntryZone(in Input, st *smcState, last domain.Candle) (domain.StrategySignal, bool) {
	// Strict comparison: the bar that created an FVG shares its boundary with
	// the zone and must not trigger the entry itself.
	var touched, held bool
	if st.dir == domain.DirectionLong {
		touched = last.Low < st.zoneHigh
		held = last.Close >= st.zoneLow
	} else {
		touched = last.High > st.zoneLow
		held = last.Close <= st.zoneHigh
	}
	if !touched || !held {
		return domain.StrategySignal{}, false
	}

	leg := st.legHigh - st.legLow
	legPct := leg / (last.Close + 1e-12)
	strength := clamp01(0.50 + 0.20*clamp01(legPct/0.02))
	tags := []string{"liquidity_sweep", "choch"}
	if st.fromFVG {
		strength = clamp01(strength + 0.10)
		tags = append(tags, "fvg_entry")
	} else {
		tags = append(tags, "ote_entry")
	}
	return domain.StrategySignal{
		Strategy:  s.Name(),
		Symbol:    in.Series.Symbol,
		Direction: st.dir,
		Strength:  strength,
		Regime:    domain.RegimeSMC,
		Tags:      tags,
		Timestamp: in.Now,
	}, true
}

// latestSwingSince returns the most recent swing whose bar opened at or after
// t, falling back to the most recent swing overall when the rebound has not
// yet printed a confirmed pivot.
func latestSwingSince(swings []indicator.Swing, series *domain.PriceSeries, t time.Time) (indicator.Swing, bool) {
	for i := len(swings) - 1; i >= 0; i-- {
		sw := swings[i]
		if !series.Candles[sw.Index].OpenTime.Before(t) {
			return sw, true
		}
	}
	if len(swings) > 0 {
		return swings[len(swings)-1], true
	}
	return indicator.Swing{}, false
}
