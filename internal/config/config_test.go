package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeFile(t, `
mode = "aggressive"

[scanner]
tick_interval = "1m"
symbols = ["BTCUSDT", "ETHUSDT"]

[server]
port = 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "aggressive" {
		t.Errorf("Mode = %q, want aggressive", cfg.Mode)
	}
	if cfg.Scanner.TickInterval.Duration != time.Minute {
		t.Errorf("TickInterval = %v, want 1m", cfg.Scanner.TickInterval.Duration)
	}
	if len(cfg.Scanner.Symbols) != 2 {
		t.Errorf("Symbols = %v, want 2 entries", cfg.Scanner.Symbols)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Exchange.BaseURL != "https://api.binance.com" {
		t.Errorf("BaseURL = %q, want default", cfg.Exchange.BaseURL)
	}
	if cfg.Weights.WMax != 2.0 {
		t.Errorf("WMax = %g, want default 2.0", cfg.Weights.WMax)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "balanced" {
		t.Errorf("Mode = %q, want balanced", cfg.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETSCAN_MODE", "conservative")
	t.Setenv("MARKETSCAN_SERVER_API_KEY", "sekrit")
	t.Setenv("MARKETSCAN_SCANNER_SYMBOLS", "BTCUSDT, SOLUSDT ,")
	t.Setenv("MARKETSCAN_REDIS_ENABLED", "true")
	t.Setenv("MARKETSCAN_SCANNER_TICK_INTERVAL", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "conservative" {
		t.Errorf("Mode = %q, want conservative", cfg.Mode)
	}
	if cfg.Server.APIKey != "sekrit" {
		t.Errorf("APIKey = %q, want sekrit", cfg.Server.APIKey)
	}
	want := []string{"BTCUSDT", "SOLUSDT"}
	if len(cfg.Scanner.Symbols) != len(want) || cfg.Scanner.Symbols[0] != want[0] || cfg.Scanner.Symbols[1] != want[1] {
		t.Errorf("Symbols = %v, want %v", cfg.Scanner.Symbols, want)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled = false, want true")
	}
	if cfg.Scanner.TickInterval.Duration != 90*time.Second {
		t.Errorf("TickInterval = %v, want 90s", cfg.Scanner.TickInterval.Duration)
	}
}

func TestModeTablesOverrideDefaults(t *testing.T) {
	path := writeFile(t, `
[modes.balanced]
threshold = 0.50
cooldown = "45m"
stop_pct = 0.02
target_pct = 0.03
timeout_bars = 8
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	m := cfg.Modes["balanced"]
	if m.Threshold != 0.50 || m.Cooldown.Duration != 45*time.Minute || m.TimeoutBars != 8 {
		t.Errorf("balanced = %+v, want overridden profile", m)
	}
	// Untouched profiles keep their defaults.
	if a := cfg.Modes["aggressive"]; a.Threshold != 0.25 || a.Cooldown.Duration != 15*time.Minute {
		t.Errorf("aggressive = %+v, want default profile", a)
	}
	if len(cfg.Modes) != 3 {
		t.Errorf("modes = %d tables, want 3", len(cfg.Modes))
	}
}

func TestValidateRejectsBadModeTables(t *testing.T) {
	cfg := Defaults()
	cfg.Modes["reckless"] = ModeConfig{Threshold: 0.1, StopPct: 0.01, TargetPct: 0.02, TimeoutBars: 12}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Errorf("unknown mode table should fail: %v", err)
	}

	cfg = Defaults()
	// A partial TOML table zeroes the unset fields; every one must be flagged.
	cfg.Modes["balanced"] = ModeConfig{Threshold: 0.5}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("incomplete mode table should fail")
	}
	for _, frag := range []string{"stop_pct", "target_pct", "timeout_bars"} {
		if !strings.Contains(err.Error(), frag) {
			t.Errorf("error missing %q: %v", frag, err)
		}
	}

	cfg = Defaults()
	delete(cfg.Modes, "balanced")
	cfg.Mode = "balanced"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "no profile table") {
		t.Errorf("missing table for active mode should fail: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "reckless"
	cfg.Server.Port = 99999
	cfg.Scanner.PenaltyDepth = 1.5
	cfg.Notify.TelegramToken = "token-without-chat"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	for _, frag := range []string{"unknown mode", "port must be", "penalty_depth", "telegram_token"} {
		if !strings.Contains(err.Error(), frag) {
			t.Errorf("error missing %q: %v", frag, err)
		}
	}
}

func TestValidatePostgresOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = false
	cfg.Postgres.Database = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled postgres should not be validated: %v", err)
	}

	cfg.Postgres.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("enabled postgres with empty database should fail")
	}
}
