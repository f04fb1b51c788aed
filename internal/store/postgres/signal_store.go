package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaraca/marketscan/internal/domain"
)

// SignalStore implements domain.HistoryStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// RecordResolved writes the resolved signal and one row per contributing
// strategy in a single transaction. Re-recording an already stored signal is
// a no-op.
func (s *SignalStore) RecordResolved(ctx context.Context, sig domain.CompositeSignal, out domain.Outcome) error {
	contributions, err := json.Marshal(sig.Contributions)
	if err != nil {
		return fmt.Errorf("postgres: marshal contributions: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSignal = `
		INSERT INTO resolved_signals (
			id, symbol, direction, score, confidence, mode,
			entry, stop, target, contributions, created_at,
			result, realized_return, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`
	tag, err := tx.Exec(ctx, insertSignal,
		sig.ID, sig.Symbol, string(sig.Direction), sig.Score, sig.Confidence, sig.Mode,
		sig.Entry, sig.Stop, sig.Target, contributions, sig.CreatedAt,
		string(out.Result), out.RealizedReturn, out.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert resolved signal %s: %w", sig.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	batch := &pgx.Batch{}
	const insertOutcome = `
		INSERT INTO strategy_outcomes (
			signal_id, strategy, weight, strength, regime, agreed, result, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (signal_id, strategy) DO NOTHING`
	for _, c := range sig.Contributions {
		batch.Queue(insertOutcome,
			sig.ID, c.Strategy, c.Weight, c.Strength, string(c.Regime), c.Agreed,
			string(out.Result), out.ResolvedAt,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range sig.Contributions {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: insert strategy outcome %s: %w", sig.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit resolved signal %s: %w", sig.ID, err)
	}
	return nil
}

// StrategyRecord returns the win/loss/timeout counts recorded for a strategy.
func (s *SignalStore) StrategyRecord(ctx context.Context, strategy string) (wins, losses, timeouts int, err error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE result = 'WIN'),
			COUNT(*) FILTER (WHERE result = 'LOSS'),
			COUNT(*) FILTER (WHERE result = 'TIMEOUT')
		FROM strategy_outcomes
		WHERE strategy = $1`
	if err := s.pool.QueryRow(ctx, query, strategy).Scan(&wins, &losses, &timeouts); err != nil {
		return 0, 0, 0, fmt.Errorf("postgres: strategy record %s: %w", strategy, err)
	}
	return wins, losses, timeouts, nil
}
