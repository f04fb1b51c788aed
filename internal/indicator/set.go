package indicator

import (
	"math"

	"github.com/ekaraca/marketscan/internal/domain"
)

// Params fixes the windows used for a computed Set. The zero value is not
// usable; start from DefaultParams.
type Params struct {
	EMAFast     int
	EMASlow     int
	EMABias     int
	RSIPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	StochK      int
	StochSmooth int
	BBPeriod    int
	BBK         float64
	DonchianWin int
	ATRPeriod   int
	ADXPeriod   int
}

// DefaultParams mirrors the standard windows used across the pipeline.
func DefaultParams() Params {
	return Params{
		EMAFast:     9,
		EMASlow:     21,
		EMABias:     50,
		RSIPeriod:   14,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		StochK:      14,
		StochSmooth: 3,
		BBPeriod:    20,
		BBK:         2.0,
		DonchianWin: 20,
		ATRPeriod:   14,
		ADXPeriod:   14,
	}
}

// MinHistory is the number of candles Compute needs for every series in the
// Set to have at least one valid value.
func (p Params) MinHistory() int {
	min := p.EMABias
	if n := p.MACDSlow + p.MACDSignal; n > min {
		min = n
	}
	if n := p.BBPeriod; n > min {
		min = n
	}
	if n := p.DonchianWin + 1; n > min {
		min = n
	}
	// Wilder smoothing needs a few extra bars to wash out the seed.
	return min + 10
}

// Set is the full indicator bundle aligned to one PriceSeries. Ephemeral:
// computed per tick and discarded.
type Set struct {
	Params Params

	RSI        []float64
	EMAFast    []float64
	EMASlow    []float64
	EMABias    []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	StochK     []float64
	StochD     []float64
	BBMid      []float64
	BBUpper    []float64
	BBLower    []float64
	BBWidth    []float64
	DonchianHi []float64
	DonchianLo []float64
	ATR        []float64
	ADX        []float64
	Body       []float64
}

// Compute derives the full Set from a price series. It fails with
// domain.ErrInsufficientData when the series is shorter than
// Params.MinHistory.
func Compute(series *domain.PriceSeries, p Params) (*Set, error) {
	if series == nil || series.Len() < p.MinHistory() {
		return nil, domain.ErrInsufficientData
	}
	opens, closes := series.Opens(), series.Closes()
	highs, lows := series.Highs(), series.Lows()

	s := &Set{Params: p}
	var err error
	if s.RSI, err = RSI(closes, p.RSIPeriod); err != nil {
		return nil, err
	}
	if s.EMAFast, err = EMA(closes, p.EMAFast); err != nil {
		return nil, err
	}
	if s.EMASlow, err = EMA(closes, p.EMASlow); err != nil {
		return nil, err
	}
	if s.EMABias, err = EMA(closes, p.EMABias); err != nil {
		return nil, err
	}
	if s.MACD, s.MACDSignal, s.MACDHist, err = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal); err != nil {
		return nil, err
	}
	if s.StochK, s.StochD, err = Stochastic(highs, lows, closes, p.StochK, p.StochSmooth); err != nil {
		return nil, err
	}
	if s.BBMid, s.BBUpper, s.BBLower, s.BBWidth, err = Bollinger(closes, p.BBPeriod, p.BBK); err != nil {
		return nil, err
	}
	if s.DonchianHi, s.DonchianLo, err = Donchian(highs, lows, p.DonchianWin); err != nil {
		return nil, err
	}
	if s.ATR, err = ATR(highs, lows, closes, p.ATRPeriod); err != nil {
		return nil, err
	}
	if s.ADX, err = ADX(highs, lows, closes, p.ADXPeriod); err != nil {
		return nil, err
	}
	if s.Body, err = BodyStrength(opens, closes, highs, lows); err != nil {
		return nil, err
	}
	return s, nil
}

// Bias classifies the prevailing direction from the slope of the bias EMA:
// long when rising, short when falling, neither when flat or not yet seeded.
func (s *Set) Bias() (domain.Direction, bool) {
	cur, prev := Last(s.EMABias), Prev(s.EMABias, 1)
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
