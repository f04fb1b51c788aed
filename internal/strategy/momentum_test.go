package strategy

import (
	"testing"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/indicator"
)

func momentumInd() *indicator.Set {
	return &indicator.Set{
		ATR:        []float64{1.0},
		EMAFast:    []float64{101.8},
		EMASlow:    []float64{101},
		DonchianHi: []float64{102.5, 102.5},
		DonchianLo: []float64{97, 97},
		RSI:        []float64{52, 58},
		Body:       []float64{0.6},
	}
}

func TestMomentumConfirmedBreakout(t *testing.T) {
	rows := flatRows(21, 100)
	rows[19] = [5]float64{100.8, 101.3, 100.5, 101, 100}
	rows[20] = [5]float64{101, 103.2, 100.9, 103, 200}

	s := NewMomentum(DefaultMomentumConfig())
	sig, ok := s.Evaluate(Input{
		Series:     mkSeries("TESTUSDT", rows),
		Indicators: momentumInd(),
		Bias:       domain.DirectionLong,
		BiasOK:     true,
		Now:        testEpoch,
	})
	if !ok {
		t.Fatal("expected a confirmed breakout signal")
	}
	if sig.Regime != domain.RegimeMomentum {
		t.Fatalf("regime = %s, want %s", sig.Regime, domain.RegimeMomentum)
	}
	if !sig.HasTag("confirmed") {
		t.Errorf("tags = %v, want confirmed", sig.Tags)
	}
	if sig.Strength < 0.60 {
		t.Errorf("strength = %v, want >= 0.60 for a confirmed break", sig.Strength)
	}
}

func TestMomentumPreBreakReducedStrength(t *testing.T) {
	rows := flatRows(21, 100)
	rows[19] = [5]float64{100.8, 101.3, 100.5, 101, 100}
	rows[20] = [5]float64{101, 102.3, 100.9, 102.2, 200} // inside the channel still

	s := NewMomentum(DefaultMomentumConfig())
	sig, ok := s.Evaluate(Input{
		Series:     mkSeries("TESTUSDT", rows),
		Indicators: momentumInd(),
		Bias:       domain.DirectionLong,
		BiasOK:     true,
		Now:        testEpoch,
	})
	if !ok {
		t.Fatal("expected a pre-break signal near the channel")
	}
	if sig.Regime != domain.RegimePreBreak {
		t.Fatalf("regime = %s, want %s", sig.Regime, domain.RegimePreBreak)
	}
	if !sig.HasTag("prebreak") {
		t.Errorf("tags = %v, want prebreak", sig.Tags)
	}
	if sig.Strength >= 0.60 {
		t.Errorf("strength = %v, want below the confirmed floor", sig.Strength)
	}
}

func TestMomentumRequiresOscillatorCross(t *testing.T) {
	rows := flatRows(21, 100)
	rows[19] = [5]float64{100.8, 101.3, 100.5, 101, 100}
	rows[20] = [5]float64{101, 103.2, 100.9, 103, 200}

	ind := momentumInd()
	ind.RSI = []float64{58, 58} // already above threshold, no cross this bar

	s := NewMomentum(DefaultMomentumConfig())
	if sig, ok := s.Evaluate(Input{Series: mkSeries("TESTUSDT", rows), Indicators: ind, Bias: domain.DirectionLong, BiasOK: true, Now: testEpoch}); ok {
		t.Fatalf("unexpected signal %+v without an oscillator cross", sig)
	}
}

func TestMomentumRequiresBias(t *testing.T) {
	rows := flatRows(21, 100)
	rows[20] = [5]float64{101, 103.2, 100.9, 103, 200}
	s := NewMomentum(DefaultMomentumConfig())
	if sig, ok := s.Evaluate(Input{Series: mkSeries("TESTUSDT", rows), Indicators: momentumInd(), BiasOK: false, Now: testEpoch}); ok {
		t.Fatalf("unexpected signal %+v without a bias", sig)
	}
}
