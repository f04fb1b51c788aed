package indicator

import "github.com/ekaraca/marketscan/internal/domain"

// Swing is a confirmed pivot in the price structure.
type Swing struct {
	Index int
	Price float64
}

// FindSwings returns swing highs and swing lows: bars that are the strict
// extreme of a window extending left bars back and right bars forward. Results
// are ordered by index.
func FindSwings(highs, lows []float64, left, right int) (swingHighs, swingLows []Swing, err error) {
	if left <= 0 || right <= 0 || len(highs) < left+right+1 || len(highs) != len(lows) {
		return nil, nil, domain.ErrInsufficientData
	}
	for i := left; i < len(highs)-right; i++ {
		isHigh, isLow := true, true
		for j := i - left; j <= i+right; j++ {
			if j == i {
				continue
			}
			if highs[j] >= highs[i] {
				isHigh = false
			}
			if lows[j] <= lows[i] {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			swingHighs = append(swingHighs, Swing{Index: i, Price: highs[i]})
		}
		if isLow {
			swingLows = append(swingLows, Swing{Index: i, Price: lows[i]})
		}
	}
	return swingHighs, swingLows, nil
}

// FVG is a fair value gap: a price range skipped by an impulsive move. For a
// bullish gap Low/High bound the untraded range below price; for a bearish gap
// the range above.
type FVG struct {
	Low   float64
	High  float64
	Index int
}

// FindFVGs scans the last lookback bars for three-candle gaps and returns the
// most recent bullish and bearish gap, if any.
func FindFVGs(highs, lows []float64, lookback int) (bull, bear *FVG, err error) {
	if len(highs) < 3 || len(highs) != len(lows) {
		return nil, nil, domain.ErrInsufficientData
	}
	start := len(highs) - lookback
	if start < 2 {
		start = 2
	}
	for i := start; i < len(highs); i++ {
		if lows[i] > highs[i-2] {
			bull = &FVG{Low: highs[i-2], High: lows[i], Index: i}
		}
		if highs[i] < lows[i-2] {
			bear = &FVG{Low: highs[i], High: lows[i-2], Index: i}
		}
	}
	return bull, bear, nil
}
