package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
)

// BinanceConfig tunes the REST client.
type BinanceConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration // doubles per attempt
}

// DefaultBinanceConfig points at the public spot API.
func DefaultBinanceConfig() BinanceConfig {
	return BinanceConfig{
		BaseURL:    "https://api.binance.com",
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Binance is the REST client for the Binance spot market-data API. All
// endpoints used are public; no signing is required.
type Binance struct {
	cfg        BinanceConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBinance creates a Binance REST connector.
func NewBinance(cfg BinanceConfig, logger *slog.Logger) *Binance {
	return &Binance{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "binance")),
	}
}

// FetchHistory implements Connector using the klines endpoint. The most
// recent, still-open candle is dropped so indicator values are stable across
// ticks.
func (b *Binance) FetchHistory(ctx context.Context, symbol, timeframe string, limit int) (*domain.PriceSeries, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit+1))

	body, err := b.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, timeframe, err)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, domain.ErrNoData)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance: parse kline: %w", err)
		}
		candles = append(candles, c)
	}
	// Drop the unfinished bar.
	if len(candles) > 1 {
		candles = candles[:len(candles)-1]
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return &domain.PriceSeries{Symbol: symbol, Timeframe: timeframe, Candles: candles}, nil
}

// FetchLastPrice implements Connector using the ticker price endpoint.
func (b *Binance) FetchLastPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := b.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("binance: ticker price %s: %w", symbol, err)
	}
	var resp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("binance: decode ticker price: %w", err)
	}
	p, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse price %q: %w", resp.Price, err)
	}
	return p, nil
}

// TopSymbols implements Connector using the 24h ticker statistics.
func (b *Binance) TopSymbols(ctx context.Context, quote string, minQuoteVolume float64, max int) ([]string, error) {
	body, err := b.get(ctx, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, fmt.Errorf("binance: 24h tickers: %w", err)
	}
	var tickers []struct {
		Symbol      string `json:"symbol"`
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("binance: decode 24h tickers: %w", err)
	}

	type vol struct {
		symbol string
		qv     float64
	}
	var candidates []vol
	for _, t := range tickers {
		if len(t.Symbol) <= len(quote) || t.Symbol[len(t.Symbol)-len(quote):] != quote {
			continue
		}
		qv, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil || qv < minQuoteVolume {
			continue
		}
		candidates = append(candidates, vol{symbol: t.Symbol, qv: qv})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].qv > candidates[j].qv })
	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.symbol
	}
	return out, nil
}

// get performs a GET with bounded retry on transient failures. Rate limiting
// maps to domain.ErrRateLimited and is retried after backoff.
func (b *Binance) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := b.cfg.BaseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	delay := b.cfg.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		body, retryable, err := b.doGet(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		b.logger.Warn("request retrying",
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}
	return nil, lastErr
}

func (b *Binance) doGet(ctx context.Context, fullURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		// 418 is Binance's auto-ban escalation of 429.
		return nil, true, fmt.Errorf("HTTP %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	default:
		return nil, false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}
}

// parseKline decodes one klines row: open time, then OHLCV as strings.
func parseKline(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("short kline row (%d fields)", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d %q: %w", i+1, s, err)
		}
		vals[i] = v
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
