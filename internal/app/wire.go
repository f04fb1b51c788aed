package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ekaraca/marketscan/internal/aggregate"
	"github.com/ekaraca/marketscan/internal/config"
	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/exchange"
	"github.com/ekaraca/marketscan/internal/notify"
	"github.com/ekaraca/marketscan/internal/scanner"
	"github.com/ekaraca/marketscan/internal/store/postgres"
	"github.com/ekaraca/marketscan/internal/store/redis"
	"github.com/ekaraca/marketscan/internal/strategy"
	"github.com/ekaraca/marketscan/internal/weights"
)

// Dependencies bundles the long-running components the application drives. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Scanner *scanner.Scanner
	Stream  *exchange.Stream    // nil when the price stream is disabled
	History domain.HistoryStore // nil without postgres
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Exchange ---
	connector := exchange.NewBinance(exchange.BinanceConfig{
		BaseURL:    cfg.Exchange.BaseURL,
		Timeout:    cfg.Exchange.Timeout.Duration,
		MaxRetries: cfg.Exchange.MaxRetries,
		RetryDelay: cfg.Exchange.RetryDelay.Duration,
	}, logger)

	var stream *exchange.Stream
	var prices exchange.PriceSource
	if cfg.Exchange.StreamOn {
		stream = exchange.NewStream(cfg.Exchange.WsURL, logger)
		prices = stream
	}

	// --- Redis state store ---
	var states domain.StateStore
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		states = redis.NewStateStore(redisClient)
	}

	// --- PostgreSQL history store ---
	var history domain.HistoryStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		history = postgres.NewSignalStore(pgClient.Pool())
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	notifier := notify.New(senders, cfg.Notify.Events, logger)

	// --- Strategies ---
	registry := strategy.NewRegistry()
	registry.Register(strategy.NewTrendRange(strategy.DefaultTrendRangeConfig()))
	registry.Register(strategy.NewSMC(strategy.DefaultSMCConfig()))
	registry.Register(strategy.NewMomentum(strategy.DefaultMomentumConfig()))

	// --- Weight model ---
	model := weights.New(weights.Config{
		LearningRate:   cfg.Weights.LearningRate,
		L2:             cfg.Weights.L2,
		WMax:           cfg.Weights.WMax,
		AccuracyWindow: cfg.Weights.AccuracyWindow,
	}, logger)

	// --- Scanner ---
	scanCfg := scanner.DefaultConfig()
	scanCfg.TickInterval = cfg.Scanner.TickInterval.Duration
	scanCfg.ScanTimeframe = cfg.Scanner.ScanTimeframe
	scanCfg.BarInterval = cfg.Scanner.BarInterval.Duration
	scanCfg.ScanLookback = cfg.Scanner.ScanLookback
	scanCfg.BiasTimeframe = cfg.Scanner.BiasTimeframe
	scanCfg.BiasLookback = cfg.Scanner.BiasLookback
	scanCfg.Concurrency = cfg.Scanner.Concurrency
	scanCfg.FetchTimeout = cfg.Scanner.FetchTimeout.Duration
	scanCfg.Symbols = cfg.Scanner.Symbols
	scanCfg.QuoteAsset = cfg.Scanner.QuoteAsset
	scanCfg.MinQuoteVolume = cfg.Scanner.MinQuoteVolume
	scanCfg.MaxSymbols = cfg.Scanner.MaxSymbols
	scanCfg.UniverseRefresh = cfg.Scanner.UniverseRefresh.Duration
	scanCfg.PenaltyDepth = cfg.Scanner.PenaltyDepth
	scanCfg.PenaltyHalfLife = cfg.Scanner.PenaltyHalfLife.Duration
	scanCfg.InitialMode = cfg.Mode
	scanCfg.Modes = make(map[string]domain.ModeProfile, len(cfg.Modes))
	for name, m := range cfg.Modes {
		scanCfg.Modes[name] = domain.ModeProfile{
			Name:        name,
			Threshold:   m.Threshold,
			Cooldown:    m.Cooldown.Duration,
			StopPct:     m.StopPct,
			TargetPct:   m.TargetPct,
			TimeoutBars: m.TimeoutBars,
		}
	}

	sc, err := scanner.New(
		scanCfg,
		connector,
		prices,
		registry,
		aggregate.New(),
		model,
		notifier,
		states,
		history,
		logger,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: scanner: %w", err)
	}

	return &Dependencies{Scanner: sc, Stream: stream, History: history}, cleanup, nil
}
