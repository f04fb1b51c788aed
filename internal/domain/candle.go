// Package domain holds the core entities shared across the scanner pipeline:
// price series, strategy and composite signals, outcomes, weight statistics,
// and the store/cache interfaces implemented by the adapters.
package domain

import "time"

// Candle is a single OHLCV bar.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// PriceSeries is the ordered OHLCV history for one symbol and timeframe.
// Candles are ordered oldest-first. A series is fetched per tick and never
// persisted.
type PriceSeries struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

// Len returns the number of candles in the series.
func (s *PriceSeries) Len() int { return len(s.Candles) }

// Last returns the most recent candle. The boolean is false for an empty
// series.
func (s *PriceSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes returns the close values oldest-first.
func (s *PriceSeries) Closes() []float64 { return s.column(func(c Candle) float64 { return c.Close }) }

// Opens returns the open values oldest-first.
func (s *PriceSeries) Opens() []float64 { return s.column(func(c Candle) float64 { return c.Open }) }

// Highs returns the high values oldest-first.
func (s *PriceSeries) Highs() []float64 { return s.column(func(c Candle) float64 { return c.High }) }

// Lows returns the low values oldest-first.
func (s *PriceSeries) Lows() []float64 { return s.column(func(c Candle) float64 { return c.Low }) }

// Volumes returns the volume values oldest-first.
func (s *PriceSeries) Volumes() []float64 {
	return s.column(func(c Candle) float64 { return c.Volume })
}

func (s *PriceSeries) column(f func(Candle) float64) []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = f(c)
	}
	return out
}
