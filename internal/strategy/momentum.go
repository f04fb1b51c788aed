package strategy

import (
	"math"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/indicator"
)

// MomentumConfig tunes the momentum-breakout detector.
type MomentumConfig struct {
	PreBreakATR   float64 // arm when price is within this many ATRs of the channel
	RSIRiseLong   float64 // oscillator must rise through this for longs
	RSIRiseShort  float64 // oscillator must fall through this for shorts
	BodyMin       float64 // minimum body/range on the trigger bar
	RelVolMin     float64 // volume vs 20-bar average
	NetBodyMin    float64 // signed 3-bar body sum over total range
	PreBreakScale float64 // strength multiplier for pre-break signals
}

// DefaultMomentumConfig mirrors the original early-trigger settings.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		PreBreakATR:   0.40,
		RSIRiseLong:   55,
		RSIRiseShort:  45,
		BodyMin:       0.45,
		RelVolMin:     1.20,
		NetBodyMin:    0.80,
		PreBreakScale: 0.65,
	}
}

// Momentum detects Donchian/EMA breakouts confirmed by a rising oscillator,
// with an early pre-break state at reduced strength while price approaches but
// has not yet closed beyond the channel.
type Momentum struct {
	cfg MomentumConfig
}

// NewMomentum creates the detector.
func NewMomentum(cfg MomentumConfig) *Momentum {
	return &Momentum{cfg: cfg}
}

func (s *Momentum) Name() string { return "momentum" }

// Evaluate implements Strategy.
func (s *Momentum) Evaluate(in Input) (domain.StrategySignal, bool) {
	ind := in.Indicators
	if in.Series == nil || ind == nil || !in.BiasOK {
		return domain.StrategySignal{}, false
	}
	closes := in.Series.Closes()
	close := indicator.Last(closes)
	atr := indicator.Last(ind.ATR)
	eFast := indicator.Last(ind.EMAFast)
	eSlow := indicator.Last(ind.EMASlow)
	dcHi := indicator.Prev(ind.DonchianHi, 1)
	dcLo := indicator.Prev(ind.DonchianLo, 1)
	rsi := indicator.Last(ind.RSI)
	prevRSI := indicator.Prev(ind.RSI, 1)
	if anyNaN(close, atr, eFast, eSlow, dcHi, dcLo, rsi, prevRSI) {
		return domain.StrategySignal{}, false
	}
	prebreak := s.cfg.PreBreakATR * atr

	switch in.Bias {
	case domain.DirectionLong:
		nearBreak := close >= dcHi-prebreak
		emaUp := eFast > eSlow && close > eFast
		oscRising := prevRSI < s.cfg.RSIRiseLong && rsi >= s.cfg.RSIRiseLong
		if !nearBreak || !emaUp || !oscRising || !s.confirm(in, domain.DirectionLong) {
			return domain.StrategySignal{}, false
		}
		return s.emit(in, domain.DirectionLong, close, dcHi, prebreak, close >= dcHi), true
	case domain.DirectionShort:
		nearBreak := close <= dcLo+prebreak
		emaDn := eFast < eSlow && close < eFast
		oscFalling := prevRSI > s.cfg.RSIRiseShort && rsi <= s.cfg.RSIRiseShort
		if !nearBreak || !emaDn || !oscFalling || !s.confirm(in, domain.DirectionShort) {
			return domain.StrategySignal{}, false
		}
		return s.emit(in, domain.DirectionShort, close, dcLo, prebreak, close <= dcLo), true
	}
	return domain.StrategySignal{}, false
}

func (s *Momentum) emit(in Input, dir domain.Direction, close, level, prebreak float64, broken bool) domain.StrategySignal {
	// Confirmed breakouts carry full strength scaled by penetration; pre-break
	// signals carry reduced strength scaled by proximity to the channel.
	var strength float64
	regime := domain.RegimeMomentum
	tags := []string{"ema_aligned", "osc_rising"}
	if broken {
		pen := math.Abs(close-level) / (prebreak + 1e-12)
		strength = clamp01(0.60 + 0.3*clamp01(pen))
		tags = append(tags, "confirmed")
	} else {
		regime = domain.RegimePreBreak
		proximity := 1 - math.Abs(level-close)/(prebreak+1e-12)
		strength = clamp01(s.cfg.PreBreakScale * clamp01(0.5+0.5*proximity))
		tags = append(tags, "prebreak")
	}
	return domain.StrategySignal{
		Strategy:  s.Name(),
		Symbol:    in.Series.Symbol,
		Direction: dir,
		Strength:  strength,
		Regime:    regime,
		Tags:      tags,
		Timestamp: in.Now,
	}
}

// confirm applies the 2-of-3 momentum gate: conviction body, relative volume,
// and signed 3-bar net body.
func (s *Momentum) confirm(in Input, dir domain.Direction) bool {
	n := in.Series.Len()
	if n < 21 {
		return false
	}
	body := indicator.Last(in.Indicators.Body)
	bodyOK := body >= s.cfg.BodyMin

	vols := in.Series.Volumes()
	volMA, err := indicator.SMA(vols, 20)
	if err != nil {
		return false
	}
	volOK := indicator.Last(vols) > indicator.Last(volMA)*s.cfg.RelVolMin

	var netBody, totalRange float64
	for i := n - 3; i < n; i++ {
		c := in.Series.Candles[i]
		if dir == domain.DirectionLong {
			netBody += math.Max(0, c.Close-c.Open)
		} else {
			netBody += math.Max(0, c.Open-c.Close)
		}
		totalRange += c.High - c.Low
	}
	netOK := netBody/math.Max(1e-9, totalRange) >= s.cfg.NetBodyMin

	hits := 0
	for _, ok := range []bool{bodyOK, volOK, netOK} {
		if ok {
			hits++
		}
	}
	return hits >= 2
}
