package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. An empty path skips the
// file and uses defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "MARKETSCAN_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.WsURL, "MARKETSCAN_EXCHANGE_WS_URL")
	setDuration(&cfg.Exchange.Timeout, "MARKETSCAN_EXCHANGE_TIMEOUT")
	setInt(&cfg.Exchange.MaxRetries, "MARKETSCAN_EXCHANGE_MAX_RETRIES")
	setBool(&cfg.Exchange.StreamOn, "MARKETSCAN_EXCHANGE_STREAM_ENABLED")

	// ── Scanner ──
	setDuration(&cfg.Scanner.TickInterval, "MARKETSCAN_SCANNER_TICK_INTERVAL")
	setStringSlice(&cfg.Scanner.Symbols, "MARKETSCAN_SCANNER_SYMBOLS")
	setStr(&cfg.Scanner.QuoteAsset, "MARKETSCAN_SCANNER_QUOTE_ASSET")
	setFloat64(&cfg.Scanner.MinQuoteVolume, "MARKETSCAN_SCANNER_MIN_QUOTE_VOLUME")
	setInt(&cfg.Scanner.MaxSymbols, "MARKETSCAN_SCANNER_MAX_SYMBOLS")
	setInt(&cfg.Scanner.Concurrency, "MARKETSCAN_SCANNER_CONCURRENCY")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MARKETSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MARKETSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETSCAN_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "MARKETSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "MARKETSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MARKETSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARKETSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARKETSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARKETSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARKETSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARKETSCAN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MARKETSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MARKETSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MARKETSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MARKETSCAN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARKETSCAN_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "MARKETSCAN_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARKETSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "MARKETSCAN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETSCAN_MODE")
	setStr(&cfg.LogLevel, "MARKETSCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
