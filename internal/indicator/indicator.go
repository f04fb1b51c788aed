// Package indicator provides pure, stateless technical-indicator functions
// over price history. Every function declares a minimum input length and
// returns domain.ErrInsufficientData below it; otherwise the result is a slice
// aligned to the input where warm-up positions hold NaN. All outputs are
// deterministic for identical input and safe for concurrent use.
package indicator

import (
	"math"

	"github.com/ekaraca/marketscan/internal/domain"
)

// SMA returns the simple moving average with window n.
func SMA(values []float64, n int) ([]float64, error) {
	if n <= 0 || len(values) < n {
		return nil, domain.ErrInsufficientData
	}
	out := nanSlice(len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out, nil
}

// EMA returns the exponential moving average with span n. The seed is the
// simple average of the first n values; positions before the seed are NaN.
func EMA(values []float64, n int) ([]float64, error) {
	if n <= 0 || len(values) < n {
		return nil, domain.ErrInsufficientData
	}
	out := nanSlice(len(values))
	var seed float64
	for i := 0; i < n; i++ {
		seed += values[i]
	}
	seed /= float64(n)
	out[n-1] = seed
	alpha := 2.0 / (float64(n) + 1.0)
	for i := n; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// wilder applies Wilder's recursive smoothing (alpha = 1/n) seeded with the
// first value, mirroring an exponentially weighted mean without adjustment.
func wilder(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	alpha := 1.0 / float64(n)
	prev := values[0]
	out[0] = prev
	for i := 1; i < len(values); i++ {
		v := values[i]
		if math.IsNaN(v) {
			out[i] = prev
			continue
		}
		prev = alpha*v + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI returns the relative strength index over the given period, using simple
// rolling means of gains and losses.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return nil, domain.ErrInsufficientData
	}
	up := make([]float64, len(closes))
	dn := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			up[i] = d
		} else {
			dn[i] = -d
		}
	}
	out := nanSlice(len(closes))
	var sumUp, sumDn float64
	for i := 1; i < len(closes); i++ {
		sumUp += up[i]
		sumDn += dn[i]
		if i > period {
			sumUp -= up[i-period]
			sumDn -= dn[i-period]
		}
		if i >= period {
			ru := sumUp / float64(period)
			rd := sumDn / float64(period)
			rs := ru / (rd + 1e-12)
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out, nil
}

// MACD returns the MACD line, its signal line and the histogram for the given
// fast/slow/signal spans.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, hist []float64, err error) {
	if len(closes) < slow+signal {
		return nil, nil, nil, domain.ErrInsufficientData
	}
	emaFast, err := EMA(closes, fast)
	if err != nil {
		return nil, nil, nil, err
	}
	emaSlow, err := EMA(closes, slow)
	if err != nil {
		return nil, nil, nil, err
	}
	macd = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) {
			macd[i] = emaFast[i] - emaSlow[i]
		}
	}
	// Signal line: EMA over the valid region of the MACD line.
	signalLine = nanSlice(len(closes))
	start := slow - 1
	sub, err := EMA(macd[start:], signal)
	if err != nil {
		return nil, nil, nil, err
	}
	copy(signalLine[start:], sub)
	hist = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signalLine[i]) {
			hist[i] = macd[i] - signalLine[i]
		}
	}
	return macd, signalLine, hist, nil
}

// Stochastic returns the %K and %D oscillator lines. %K looks back kPeriod
// bars; %D is an SMA of %K with window smooth.
func Stochastic(highs, lows, closes []float64, kPeriod, smooth int) (k, d []float64, err error) {
	if kPeriod <= 0 || smooth <= 0 || len(closes) < kPeriod+smooth-1 {
		return nil, nil, domain.ErrInsufficientData
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, nil, domain.ErrInsufficientData
	}
	k = nanSlice(len(closes))
	for i := kPeriod - 1; i < len(closes); i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i - kPeriod + 1; j < i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		rng := hh - ll
		if rng <= 0 {
			k[i] = 50
			continue
		}
		k[i] = (closes[i] - ll) / rng * 100
	}
	d = nanSlice(len(closes))
	sub, err := SMA(k[kPeriod-1:], smooth)
	if err != nil {
		return nil, nil, err
	}
	copy(d[kPeriod-1:], sub)
	return k, d, nil
}

// Bollinger returns the middle band (SMA), upper and lower bands at k standard
// deviations, and the normalized band width (upper-lower)/mid.
func Bollinger(closes []float64, n int, k float64) (mid, upper, lower, width []float64, err error) {
	if n <= 1 || len(closes) < n {
		return nil, nil, nil, nil, domain.ErrInsufficientData
	}
	mid, err = SMA(closes, n)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	width = nanSlice(len(closes))
	for i := n - 1; i < len(closes); i++ {
		var ss float64
		for j := i - n + 1; j <= i; j++ {
			d := closes[j] - mid[i]
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(n)) // population std, ddof=0
		upper[i] = mid[i] + k*sd
		lower[i] = mid[i] - k*sd
		width[i] = (upper[i] - lower[i]) / (mid[i] + 1e-12)
	}
	return mid, upper, lower, width, nil
}

// Donchian returns the highest-high and lowest-low channel over win bars.
func Donchian(highs, lows []float64, win int) (upper, lower []float64, err error) {
	if win <= 0 || len(highs) < win || len(lows) < win {
		return nil, nil, domain.ErrInsufficientData
	}
	upper = nanSlice(len(highs))
	lower = nanSlice(len(lows))
	for i := win - 1; i < len(highs); i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i - win + 1; j < i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		upper[i] = hh
		lower[i] = ll
	}
	return upper, lower, nil
}

// ATR returns Wilder's average true range over n bars.
func ATR(highs, lows, closes []float64, n int) ([]float64, error) {
	if n <= 0 || len(closes) < n+1 {
		return nil, domain.ErrInsufficientData
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, domain.ErrInsufficientData
	}
	tr := make([]float64, len(closes))
	tr[0] = highs[0] - lows[0]
	for i := 1; i < len(closes); i++ {
		pc := closes[i-1]
		tr[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-pc), math.Abs(lows[i]-pc)))
	}
	return wilder(tr, n), nil
}

// ADX returns the average directional index over n bars.
func ADX(highs, lows, closes []float64, n int) ([]float64, error) {
	atr, err := ATR(highs, lows, closes, n)
	if err != nil {
		return nil, err
	}
	plusDM := make([]float64, len(closes))
	minusDM := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		up := highs[i] - highs[i-1]
		dn := lows[i-1] - lows[i]
		if up > dn && up > 0 {
			plusDM[i] = up
		}
		if dn > up && dn > 0 {
			minusDM[i] = dn
		}
	}
	plusSm := wilder(plusDM, n)
	minusSm := wilder(minusDM, n)
	dx := make([]float64, len(closes))
	for i := range closes {
		pdi := 100 * plusSm[i] / (atr[i] + 1e-12)
		ndi := 100 * minusSm[i] / (atr[i] + 1e-12)
		dx[i] = math.Abs(pdi-ndi) / (pdi + ndi + 1e-12) * 100
	}
	return wilder(dx, n), nil
}

// BodyStrength returns per-bar body/range ratios in [0,1]. Bars with zero
// range score 0.
func BodyStrength(opens, closes, highs, lows []float64) ([]float64, error) {
	if len(opens) == 0 || len(opens) != len(closes) || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, domain.ErrInsufficientData
	}
	out := make([]float64, len(closes))
	for i := range closes {
		rng := math.Abs(highs[i] - lows[i])
		if rng == 0 {
			continue
		}
		out[i] = math.Abs(closes[i]-opens[i]) / rng
	}
	return out, nil
}

// Last returns the final value of a series, or NaN for an empty one.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Prev returns the value k positions before the end, or NaN when out of range.
func Prev(values []float64, k int) float64 {
	i := len(values) - 1 - k
	if i < 0 {
		return math.NaN()
	}
	return values[i]
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
