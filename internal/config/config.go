// Package config defines the top-level configuration for the market scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETSCAN_* environment variables.
type Config struct {
	Exchange ExchangeConfig        `toml:"exchange"`
	Scanner  ScannerConfig         `toml:"scanner"`
	Modes    map[string]ModeConfig `toml:"modes"`
	Weights  WeightsConfig         `toml:"weights"`
	Redis    RedisConfig           `toml:"redis"`
	Postgres PostgresConfig        `toml:"postgres"`
	Server   ServerConfig          `toml:"server"`
	Notify   NotifyConfig          `toml:"notify"`
	Mode     string                `toml:"mode"`
	LogLevel string                `toml:"log_level"`
}

// ModeConfig is one risk-mode profile table. A [modes.<name>] section in the
// TOML file replaces the whole built-in profile for that name.
type ModeConfig struct {
	Threshold   float64  `toml:"threshold"`
	Cooldown    duration `toml:"cooldown"`
	StopPct     float64  `toml:"stop_pct"`
	TargetPct   float64  `toml:"target_pct"`
	TimeoutBars int      `toml:"timeout_bars"`
}

// ExchangeConfig holds the REST and websocket endpoints for market data.
type ExchangeConfig struct {
	BaseURL    string   `toml:"base_url"`
	WsURL      string   `toml:"ws_url"`
	Timeout    duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
	RetryDelay duration `toml:"retry_delay"`
	StreamOn   bool     `toml:"stream_enabled"`
}

// ScannerConfig holds the scan-loop parameters.
type ScannerConfig struct {
	TickInterval  duration `toml:"tick_interval"`
	ScanTimeframe string   `toml:"scan_timeframe"`
	BarInterval   duration `toml:"bar_interval"`
	ScanLookback  int      `toml:"scan_lookback"`
	BiasTimeframe string   `toml:"bias_timeframe"`
	BiasLookback  int      `toml:"bias_lookback"`
	Concurrency   int      `toml:"concurrency"`
	FetchTimeout  duration `toml:"fetch_timeout"`

	Symbols         []string `toml:"symbols"`
	QuoteAsset      string   `toml:"quote_asset"`
	MinQuoteVolume  float64  `toml:"min_quote_volume"`
	MaxSymbols      int      `toml:"max_symbols"`
	UniverseRefresh duration `toml:"universe_refresh"`

	PenaltyDepth    float64  `toml:"penalty_depth"`
	PenaltyHalfLife duration `toml:"penalty_half_life"`
}

// WeightsConfig holds the online weight-model parameters.
type WeightsConfig struct {
	LearningRate   float64 `toml:"learning_rate"`
	L2             float64 `toml:"l2"`
	WMax           float64 `toml:"w_max"`
	AccuracyWindow int     `toml:"accuracy_window"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			BaseURL:    "https://api.binance.com",
			WsURL:      "wss://stream.binance.com:9443/ws/!miniTicker@arr",
			Timeout:    duration{10 * time.Second},
			MaxRetries: 3,
			RetryDelay: duration{500 * time.Millisecond},
			StreamOn:   true,
		},
		Scanner: ScannerConfig{
			TickInterval:    duration{5 * time.Minute},
			ScanTimeframe:   "15m",
			BarInterval:     duration{15 * time.Minute},
			ScanLookback:    320,
			BiasTimeframe:   "1h",
			BiasLookback:    180,
			Concurrency:     8,
			FetchTimeout:    duration{10 * time.Second},
			QuoteAsset:      "USDT",
			MinQuoteVolume:  20_000_000,
			MaxSymbols:      30,
			UniverseRefresh: duration{6 * time.Hour},
			PenaltyDepth:    0.5,
			PenaltyHalfLife: duration{2 * time.Hour},
		},
		Modes: map[string]ModeConfig{
			"aggressive":   {Threshold: 0.25, Cooldown: duration{15 * time.Minute}, StopPct: 0.010, TargetPct: 0.015, TimeoutBars: 12},
			"balanced":     {Threshold: 0.40, Cooldown: duration{30 * time.Minute}, StopPct: 0.012, TargetPct: 0.020, TimeoutBars: 12},
			"conservative": {Threshold: 0.55, Cooldown: duration{40 * time.Minute}, StopPct: 0.015, TargetPct: 0.028, TimeoutBars: 12},
		},
		Weights: WeightsConfig{
			LearningRate:   0.02,
			L2:             1e-4,
			WMax:           2.0,
			AccuracyWindow: 50,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "marketscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"signal", "outcome", "system"},
		},
		Mode:     "balanced",
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if err := domain.ValidateModeName(strings.ToLower(c.Mode)); err != nil {
		errs = append(errs, err.Error())
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Mode profile tables
	if _, ok := c.Modes[strings.ToLower(c.Mode)]; !ok {
		errs = append(errs, fmt.Sprintf("modes: no profile table for mode %q", c.Mode))
	}
	names := make([]string, 0, len(c.Modes))
	for name := range c.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := c.Modes[name]
		if err := domain.ValidateModeName(name); err != nil {
			errs = append(errs, "modes: "+err.Error())
		}
		if m.Threshold <= 0 || m.Threshold > 1 {
			errs = append(errs, fmt.Sprintf("modes.%s: threshold must be in (0, 1], got %g", name, m.Threshold))
		}
		if m.StopPct <= 0 {
			errs = append(errs, fmt.Sprintf("modes.%s: stop_pct must be > 0", name))
		}
		if m.TargetPct <= 0 {
			errs = append(errs, fmt.Sprintf("modes.%s: target_pct must be > 0", name))
		}
		if m.TimeoutBars < 1 {
			errs = append(errs, fmt.Sprintf("modes.%s: timeout_bars must be >= 1", name))
		}
		if m.Cooldown.Duration < 0 {
			errs = append(errs, fmt.Sprintf("modes.%s: cooldown must not be negative", name))
		}
	}

	// Exchange
	if c.Exchange.BaseURL == "" {
		errs = append(errs, "exchange: base_url must not be empty")
	}
	if c.Exchange.StreamOn && c.Exchange.WsURL == "" {
		errs = append(errs, "exchange: ws_url must not be empty when stream_enabled")
	}
	if c.Exchange.MaxRetries < 0 {
		errs = append(errs, "exchange: max_retries must be >= 0")
	}

	// Scanner
	if c.Scanner.TickInterval.Duration <= 0 {
		errs = append(errs, "scanner: tick_interval must be > 0")
	}
	if c.Scanner.BarInterval.Duration <= 0 {
		errs = append(errs, "scanner: bar_interval must be > 0")
	}
	if c.Scanner.ScanLookback < 60 {
		errs = append(errs, "scanner: scan_lookback must be >= 60")
	}
	if c.Scanner.BiasLookback < 60 {
		errs = append(errs, "scanner: bias_lookback must be >= 60")
	}
	if c.Scanner.Concurrency < 1 {
		errs = append(errs, "scanner: concurrency must be >= 1")
	}
	if len(c.Scanner.Symbols) == 0 {
		if c.Scanner.QuoteAsset == "" {
			errs = append(errs, "scanner: quote_asset must not be empty when symbols is unset")
		}
		if c.Scanner.MaxSymbols < 1 {
			errs = append(errs, "scanner: max_symbols must be >= 1")
		}
	}
	if c.Scanner.PenaltyDepth < 0 || c.Scanner.PenaltyDepth >= 1 {
		errs = append(errs, fmt.Sprintf("scanner: penalty_depth must be in [0, 1), got %g", c.Scanner.PenaltyDepth))
	}

	// Weights
	if c.Weights.LearningRate <= 0 {
		errs = append(errs, "weights: learning_rate must be > 0")
	}
	if c.Weights.L2 < 0 {
		errs = append(errs, "weights: l2 must be >= 0")
	}
	if c.Weights.WMax <= 0 {
		errs = append(errs, "weights: w_max must be > 0")
	}
	if c.Weights.AccuracyWindow < 1 {
		errs = append(errs, "weights: accuracy_window must be >= 1")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify: token and chat id must be set together, or both empty.
	tk := c.Notify.TelegramToken != ""
	ch := c.Notify.TelegramChatID != ""
	if tk != ch {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
