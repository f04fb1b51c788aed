// Package exchange provides market-data access: a REST connector for candle
// history and the symbol universe, and a websocket stream that keeps a
// last-price cache warm for pending-signal resolution.
package exchange

import (
	"context"

	"github.com/ekaraca/marketscan/internal/domain"
)

// Connector is the market-data dependency of the scanner.
type Connector interface {
	// FetchHistory returns up to limit most recent closed candles for the
	// symbol and timeframe, oldest first.
	FetchHistory(ctx context.Context, symbol, timeframe string, limit int) (*domain.PriceSeries, error)

	// FetchLastPrice returns the most recent traded price.
	FetchLastPrice(ctx context.Context, symbol string) (float64, error)

	// TopSymbols returns up to max symbols quoted in quote, filtered by a
	// minimum 24h quote volume and sorted by volume descending.
	TopSymbols(ctx context.Context, quote string, minQuoteVolume float64, max int) ([]string, error)
}

// PriceSource yields the freshest known price for a symbol. The websocket
// stream implements it; a Connector-backed fallback is used when the stream
// has no quote yet.
type PriceSource interface {
	LastPrice(symbol string) (float64, bool)
}
