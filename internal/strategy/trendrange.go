package strategy

import (
	"math"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/indicator"
)

// TrendRangeConfig tunes the trend/range detector. Zero value is not usable;
// start from DefaultTrendRangeConfig.
type TrendRangeConfig struct {
	ADXTrendMin  float64 // ADX at or above this is a trend regime
	BWidthRange  float64 // BB width at or below this is a range regime
	BreakBuffer  float64 // fractional buffer a breakout must clear
	RetestTolATR float64 // retest tolerance as a multiple of ATR
	BodyStrong   float64 // body/range ratio for a conviction bar
	RSILongMax   float64 // range bounce: RSI below this for longs
	RSIShortMin  float64 // range bounce: RSI above this for shorts
	VolMult      float64 // range bounce: volume vs 20-bar average
}

// DefaultTrendRangeConfig mirrors the balanced defaults.
func DefaultTrendRangeConfig() TrendRangeConfig {
	return TrendRangeConfig{
		ADXTrendMin:  18,
		BWidthRange:  0.055,
		BreakBuffer:  0.0008,
		RetestTolATR: 0.25,
		BodyStrong:   0.55,
		RSILongMax:   36,
		RSIShortMin:  64,
		VolMult:      1.40,
	}
}

// TrendRange classifies the current volatility regime and looks for Donchian
// breakouts with retest-or-momentum confirmation in trends, or
// Bollinger-extreme reversals in ranges.
type TrendRange struct {
	cfg TrendRangeConfig
}

// NewTrendRange creates the detector.
func NewTrendRange(cfg TrendRangeConfig) *TrendRange {
	return &TrendRange{cfg: cfg}
}

func (s *TrendRange) Name() string { return "trend_range" }

// Evaluate implements Strategy.
func (s *TrendRange) Evaluate(in Input) (domain.StrategySignal, bool) {
	ind := in.Indicators
	if in.Series == nil || ind == nil || in.Series.Len() < 3 {
		return domain.StrategySignal{}, false
	}
	adx := indicator.Last(ind.ADX)
	bw := indicator.Last(ind.BBWidth)
	if math.IsNaN(adx) {
		return domain.StrategySignal{}, false
	}
	if adx >= s.cfg.ADXTrendMin {
		return s.evaluateTrend(in, adx)
	}
	if !math.IsNaN(bw) && bw <= s.cfg.BWidthRange {
		return s.evaluateRange(in, bw)
	}
	return domain.StrategySignal{}, false
}

// evaluateTrend detects a Donchian breakout on the previous bar that either
// retested and held the broken level or carries momentum confirmation.
func (s *TrendRange) evaluateTrend(in Input, adx float64) (domain.StrategySignal, bool) {
	if !in.BiasOK {
		return domain.StrategySignal{}, false
	}
	ind := in.Indicators
	closes := in.Series.Closes()
	close := indicator.Last(closes)
	prevClose := indicator.Prev(closes, 1)
	atr := indicator.Last(ind.ATR)
	body := indicator.Last(ind.Body)
	// Channel level before the breakout bar.
	dcHi := indicator.Prev(ind.DonchianHi, 1)
	dcLo := indicator.Prev(ind.DonchianLo, 1)
	if anyNaN(close, prevClose, atr, dcHi, dcLo) {
		return domain.StrategySignal{}, false
	}

	var (
		dir      domain.Direction
		level    float64
		breakout bool
		breakMag float64
	)
	switch in.Bias {
	case domain.DirectionLong:
		dir = domain.DirectionLong
		level = dcHi
		breakout = prevClose > dcHi*(1+s.cfg.BreakBuffer) && close >= prevClose
		breakMag = (close - dcHi) / (atr + 1e-12)
	case domain.DirectionShort:
		dir = domain.DirectionShort
		level = dcLo
		breakout = prevClose < dcLo*(1-s.cfg.BreakBuffer) && close <= prevClose
		breakMag = (dcLo - close) / (atr + 1e-12)
	default:
		return domain.StrategySignal{}, false
	}
	if !breakout {
		return domain.StrategySignal{}, false
	}

	retest := s.retestHeld(in, dir, level, atr)
	momentum := s.momentumConfirm(in, dir)
	if !retest && !momentum {
		return domain.StrategySignal{}, false
	}

	// Strength scales with breakout magnitude, trend strength and bar
	// conviction.
	strength := clamp01(0.45 + 0.25*clamp01(breakMag) + 0.2*clamp01((adx-s.cfg.ADXTrendMin)/20) + 0.1*body)
	tags := []string{"donchian_break"}
	if retest {
		tags = append(tags, "retest_hold")
	} else {
		tags = append(tags, "momentum_confirm")
	}
	return domain.StrategySignal{
		Strategy:  s.Name(),
		Symbol:    in.Series.Symbol,
		Direction: dir,
		Strength:  strength,
		Regime:    domain.RegimeTrend,
		Tags:      tags,
		Timestamp: in.Now,
	}, true
}

// evaluateRange detects a false-breakout re-entry at a Bollinger extreme with
// an RSI extreme, a conviction bar and above-average volume.
func (s *TrendRange) evaluateRange(in Input, bw float64) (domain.StrategySignal, bool) {
	ind := in.Indicators
	closes := in.Series.Closes()
	vols := in.Series.Volumes()
	close := indicator.Last(closes)
	prevClose := indicator.Prev(closes, 1)
	rsi := indicator.Last(ind.RSI)
	bbU := indicator.Last(ind.BBUpper)
	bbL := indicator.Last(ind.BBLower)
	body := indicator.Last(ind.Body)
	if anyNaN(close, prevClose, rsi, bbU, bbL) {
		return domain.StrategySignal{}, false
	}
	volMA, err := indicator.SMA(vols, 20)
	if err != nil {
		return domain.StrategySignal{}, false
	}
	volOK := indicator.Last(vols) > indicator.Last(volMA)*s.cfg.VolMult

	nearLower := close <= bbL*(1+0.0010)
	nearUpper := close >= bbU*(1-0.0010)
	reEnterLong := prevClose < bbL && close > bbL
	reEnterShort := prevClose > bbU && close < bbU

	// Strength scales with band-penetration depth and the squeeze tightness.
	squeeze := clamp01(1 - bw/math.Max(1e-6, s.cfg.BWidthRange))

	if nearLower && reEnterLong && rsi < s.cfg.RSILongMax && body >= s.cfg.BodyStrong && volOK && in.Bias != domain.DirectionShort {
		depth := clamp01((bbL - indicator.Last(in.Series.Lows())) / (bbU - bbL + 1e-12) * 10)
		strength := clamp01(0.35 + 0.25*clamp01((s.cfg.RSILongMax-rsi)/s.cfg.RSILongMax*2) + 0.2*depth + 0.2*squeeze)
		return domain.StrategySignal{
			Strategy:  s.Name(),
			Symbol:    in.Series.Symbol,
			Direction: domain.DirectionLong,
			Strength:  strength,
			Regime:    domain.RegimeRange,
			Tags:      []string{"bb_bounce", "false_break_reenter"},
			Timestamp: in.Now,
		}, true
	}
	if nearUpper && reEnterShort && rsi > s.cfg.RSIShortMin && body >= s.cfg.BodyStrong && volOK && in.Bias != domain.DirectionLong {
		depth := clamp01((indicator.Last(in.Series.Highs()) - bbU) / (bbU - bbL + 1e-12) * 10)
		strength := clamp01(0.35 + 0.25*clamp01((rsi-s.cfg.RSIShortMin)/(100-s.cfg.RSIShortMin)*2) + 0.2*depth + 0.2*squeeze)
		return domain.StrategySignal{
			Strategy:  s.Name(),
			Symbol:    in.Series.Symbol,
			Direction: domain.DirectionShort,
			Strength:  strength,
			Regime:    domain.RegimeRange,
			Tags:      []string{"bb_bounce", "false_break_reenter"},
			Timestamp: in.Now,
		}, true
	}
	return domain.StrategySignal{}, false
}

// retestHeld reports whether the current bar touched back to the broken level
// (within an ATR tolerance) and closed away from it with conviction.
func (s *TrendRange) retestHeld(in Input, dir domain.Direction, level, atr float64) bool {
	last, ok := in.Series.Last()
	if !ok {
		return false
	}
	tol := s.cfg.RetestTolATR * atr
	rng := last.High - last.Low
	if rng <= 0 {
		return false
	}
	if dir == domain.DirectionLong {
		touched := last.Low <= level+tol
		strong := last.Close > last.Open && (last.Close-last.Open)/rng > s.cfg.BodyStrong
		return touched && strong
	}
	touched := last.High >= level-tol
	strong := last.Close < last.Open && (last.Open-last.Close)/rng > s.cfg.BodyStrong
	return touched && strong
}

// momentumConfirm checks the fast/slow EMA alignment with a conviction bar in
// the breakout direction.
func (s *TrendRange) momentumConfirm(in Input, dir domain.Direction) bool {
	ind := in.Indicators
	eFast := indicator.Last(ind.EMAFast)
	eSlow := indicator.Last(ind.EMASlow)
	body := indicator.Last(ind.Body)
	closes := in.Series.Closes()
	close := indicator.Last(closes)
	prevClose := indicator.Prev(closes, 1)
	if anyNaN(eFast, eSlow, close, prevClose) {
		return false
	}
	if dir == domain.DirectionLong {
		return eFast > eSlow && close >= prevClose && body >= 0.60
	}
	return eFast < eSlow && close <= prevClose && body >= 0.60
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
