package strategy

import (
	"testing"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/indicator"
)

// flatRows returns n quiet bars around price with unit volume.
func flatRows(n int, price float64) [][5]float64 {
	rows := make([][5]float64, n)
	for i := range rows {
		rows[i] = [5]float64{price, price + 0.5, price - 0.5, price, 100}
	}
	return rows
}

func TestTrendBreakoutWithMomentumConfirm(t *testing.T) {
	rows := flatRows(21, 100)
	rows[19] = [5]float64{100, 102.3, 99.8, 102, 100}     // breakout bar
	rows[20] = [5]float64{102, 102.8, 101.8, 102.5, 150} // follow-through
	series := mkSeries("TESTUSDT", rows)

	ind := &indicator.Set{
		ADX:        []float64{25},
		ATR:        []float64{1.0},
		Body:       []float64{0.7},
		DonchianHi: []float64{101, 101},
		DonchianLo: []float64{98, 98},
		EMAFast:    []float64{102},
		EMASlow:    []float64{101},
	}
	s := NewTrendRange(DefaultTrendRangeConfig())
	sig, ok := s.Evaluate(Input{
		Series:     series,
		Indicators: ind,
		Bias:       domain.DirectionLong,
		BiasOK:     true,
		Now:        testEpoch,
	})
	if !ok {
		t.Fatal("expected a trend breakout signal")
	}
	if sig.Direction != domain.DirectionLong || sig.Regime != domain.RegimeTrend {
		t.Fatalf("got %s/%s, want LONG/%s", sig.Direction, sig.Regime, domain.RegimeTrend)
	}
	if !sig.HasTag("donchian_break") || !sig.HasTag("momentum_confirm") {
		t.Errorf("tags = %v, want donchian_break and momentum_confirm", sig.Tags)
	}
	if sig.Strength <= 0 || sig.Strength > 1 {
		t.Errorf("strength = %v, want in (0, 1]", sig.Strength)
	}
}

func TestTrendNoBreakoutStaysSilent(t *testing.T) {
	series := mkSeries("TESTUSDT", flatRows(21, 100))
	ind := &indicator.Set{
		ADX:        []float64{25},
		ATR:        []float64{1.0},
		Body:       []float64{0.3},
		DonchianHi: []float64{101, 101},
		DonchianLo: []float64{98, 98},
		EMAFast:    []float64{100},
		EMASlow:    []float64{100},
	}
	s := NewTrendRange(DefaultTrendRangeConfig())
	if sig, ok := s.Evaluate(Input{Series: series, Indicators: ind, Bias: domain.DirectionLong, BiasOK: true, Now: testEpoch}); ok {
		t.Fatalf("unexpected signal %+v on a flat series", sig)
	}
}

func TestTrendRequiresBias(t *testing.T) {
	rows := flatRows(21, 100)
	rows[19] = [5]float64{100, 102.3, 99.8, 102, 100}
	rows[20] = [5]float64{102, 102.8, 101.8, 102.5, 150}
	ind := &indicator.Set{
		ADX:        []float64{25},
		ATR:        []float64{1.0},
		Body:       []float64{0.7},
		DonchianHi: []float64{101, 101},
		DonchianLo: []float64{98, 98},
		EMAFast:    []float64{102},
		EMASlow:    []float64{101},
	}
	s := NewTrendRange(DefaultTrendRangeConfig())
	if sig, ok := s.Evaluate(Input{Series: mkSeries("TESTUSDT", rows), Indicators: ind, BiasOK: false, Now: testEpoch}); ok {
		t.Fatalf("unexpected signal %+v without a bias", sig)
	}
}

func TestRangeFalseBreakReentry(t *testing.T) {
	rows := flatRows(21, 100)
	rows[19] = [5]float64{98.2, 98.4, 97.6, 97.8, 100}   // close below the lower band
	rows[20] = [5]float64{97.9, 98.15, 97.7, 98.05, 200} // re-enter on volume
	series := mkSeries("TESTUSDT", rows)

	ind := &indicator.Set{
		ADX:     []float64{10},
		BBWidth: []float64{0.03},
		RSI:     []float64{30},
		BBUpper: []float64{102, 102},
		BBLower: []float64{98, 98},
		Body:    []float64{0.6},
	}
	s := NewTrendRange(DefaultTrendRangeConfig())
	sig, ok := s.Evaluate(Input{Series: series, Indicators: ind, Now: testEpoch})
	if !ok {
		t.Fatal("expected a range bounce signal")
	}
	if sig.Direction != domain.DirectionLong || sig.Regime != domain.RegimeRange {
		t.Fatalf("got %s/%s, want LONG/%s", sig.Direction, sig.Regime, domain.RegimeRange)
	}
	if !sig.HasTag("bb_bounce") || !sig.HasTag("false_break_reenter") {
		t.Errorf("tags = %v", sig.Tags)
	}

	// An opposing bias suppresses the bounce.
	if sig, ok := s.Evaluate(Input{Series: series, Indicators: ind, Bias: domain.DirectionShort, BiasOK: true, Now: testEpoch}); ok {
		t.Fatalf("unexpected signal %+v against the bias", sig)
	}
}

func TestRangeRequiresVolume(t *testing.T) {
	rows := flatRows(21, 100)
	rows[19] = [5]float64{98.2, 98.4, 97.6, 97.8, 100}
	rows[20] = [5]float64{97.9, 98.15, 97.7, 98.05, 100} // average volume only
	ind := &indicator.Set{
		ADX:     []float64{10},
		BBWidth: []float64{0.03},
		RSI:     []float64{30},
		BBUpper: []float64{102, 102},
		BBLower: []float64{98, 98},
		Body:    []float64{0.6},
	}
	s := NewTrendRange(DefaultTrendRangeConfig())
	if sig, ok := s.Evaluate(Input{Series: mkSeries("TESTUSDT", rows), Indicators: ind, Now: testEpoch}); ok {
		t.Fatalf("unexpected signal %+v without volume expansion", sig)
	}
}
