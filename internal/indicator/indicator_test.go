package indicator

import (
	"errors"
	"math"
	"testing"

	"github.com/ekaraca/marketscan/internal/domain"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestEMASeedIsSimpleAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	out, err := EMA(values, 3)
	if err != nil {
		t.Fatalf("EMA: %v", err)
	}
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Errorf("warm-up positions should be NaN, got %v %v", out[0], out[1])
	}
	if !almostEqual(out[2], 2.0, 1e-12) {
		t.Errorf("seed should be SMA of first window (2.0), got %v", out[2])
	}
	// alpha = 2/(3+1) = 0.5, so out[3] = 0.5*4 + 0.5*2 = 3.
	if !almostEqual(out[3], 3.0, 1e-12) {
		t.Errorf("expected 3.0 at index 3, got %v", out[3])
	}
}

func TestEMAInsufficientData(t *testing.T) {
	if _, err := EMA([]float64{1, 2}, 3); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestRSIBounds(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + 5*math.Sin(float64(i)/3)
	}
	out, err := RSI(values, 14)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if v < 0 || v > 100 {
			t.Fatalf("RSI out of bounds at %d: %v", i, v)
		}
	}
}

func TestRSIMonotonicRise(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i)
	}
	out, err := RSI(values, 14)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	if got := Last(out); !almostEqual(got, 100, 1e-6) {
		t.Errorf("monotonic rise should give RSI ~100, got %v", got)
	}
}

func TestDonchianChannel(t *testing.T) {
	highs := []float64{10, 12, 11, 15, 13}
	lows := []float64{8, 9, 7, 11, 10}
	up, lo, err := Donchian(highs, lows, 3)
	if err != nil {
		t.Fatalf("Donchian: %v", err)
	}
	if up[4] != 15 || lo[4] != 7 {
		t.Errorf("expected upper 15 / lower 7, got %v / %v", up[4], lo[4])
	}
	if !math.IsNaN(up[1]) {
		t.Errorf("warm-up position should be NaN")
	}
}

func TestBollingerWidthNonNegative(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 50 + 2*math.Cos(float64(i)/2)
	}
	mid, up, lo, width, err := Bollinger(values, 20, 2.0)
	if err != nil {
		t.Fatalf("Bollinger: %v", err)
	}
	i := len(values) - 1
	if up[i] < mid[i] || mid[i] < lo[i] {
		t.Errorf("band ordering violated: %v %v %v", lo[i], mid[i], up[i])
	}
	if width[i] < 0 {
		t.Errorf("negative band width: %v", width[i])
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := range highs {
		highs[i] = 101
		lows[i] = 99
		closes[i] = 100
	}
	out, err := ATR(highs, lows, closes, 14)
	if err != nil {
		t.Fatalf("ATR: %v", err)
	}
	if got := Last(out); !almostEqual(got, 2.0, 1e-9) {
		t.Errorf("constant 2-point range should converge to ATR 2, got %v", got)
	}
}

func TestDeterministicAcrossCalls(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		values[i] = 100 + 7*math.Sin(float64(i)/5) + 0.3*float64(i%7)
	}
	a, err := EMA(values, 21)
	if err != nil {
		t.Fatalf("EMA: %v", err)
	}
	b, _ := EMA(values, 21)
	for i := range a {
		if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
			continue
		}
		if a[i] != b[i] {
			t.Fatalf("non-deterministic output at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFindSwings(t *testing.T) {
	//               0   1   2   3   4   5   6   7   8
	highs := []float64{10, 11, 14, 11, 10, 11, 12, 11, 10}
	lows := []float64{9, 8, 10, 9, 7, 8, 9, 8, 7.5}
	sh, sl, err := FindSwings(highs, lows, 2, 2)
	if err != nil {
		t.Fatalf("FindSwings: %v", err)
	}
	if len(sh) != 2 || sh[0].Index != 2 || sh[1].Index != 6 {
		t.Fatalf("expected swing highs at 2 and 6, got %+v", sh)
	}
	if len(sl) != 1 || sl[0].Index != 4 {
		t.Fatalf("expected swing low at 4, got %+v", sl)
	}
}

func TestFindFVGs(t *testing.T) {
	// Bar 4 gaps above bar 2's high (low[4]=13 > high[2]=11).
	highs := []float64{10, 10.5, 11, 13.5, 14.5}
	lows := []float64{9, 9.5, 10, 12, 13}
	bull, bear, err := FindFVGs(highs, lows, 10)
	if err != nil {
		t.Fatalf("FindFVGs: %v", err)
	}
	if bull == nil {
		t.Fatal("expected a bullish FVG")
	}
	if bull.Low != 11 || bull.High != 13 {
		t.Errorf("bull FVG bounds wrong: %+v", bull)
	}
	if bear != nil {
		t.Errorf("unexpected bearish FVG: %+v", bear)
	}
}

func TestComputeSetInsufficientHistory(t *testing.T) {
	series := &domain.PriceSeries{Symbol: "BTCUSDT", Timeframe: "15m"}
	for i := 0; i < 20; i++ {
		series.Candles = append(series.Candles, domain.Candle{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10})
	}
	if _, err := Compute(series, DefaultParams()); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
