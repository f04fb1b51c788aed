package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ekaraca/marketscan/internal/domain"
)

const (
	weightsKey = "marketscan:weights"
	pendingKey = "marketscan:pending" // hash: symbol -> PendingSignal JSON
)

// StateStore implements domain.StateStore on Redis. The weight model is one
// JSON blob; the pending pool is a hash keyed by symbol so at most one pending
// signal per symbol is representable by construction.
type StateStore struct {
	rdb *redis.Client
}

// NewStateStore creates a StateStore backed by the given Client.
func NewStateStore(c *Client) *StateStore {
	return &StateStore{rdb: c.Underlying()}
}

// SaveWeights replaces the persisted weight snapshot.
func (s *StateStore) SaveWeights(ctx context.Context, states []domain.WeightState) error {
	blob, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("redis: marshal weights: %w", err)
	}
	if err := s.rdb.Set(ctx, weightsKey, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis: save weights: %w", err)
	}
	return nil
}

// LoadWeights returns the persisted weight snapshot, or domain.ErrNotFound
// when none has been saved yet.
func (s *StateStore) LoadWeights(ctx context.Context) ([]domain.WeightState, error) {
	blob, err := s.rdb.Get(ctx, weightsKey).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load weights: %w", err)
	}
	var states []domain.WeightState
	if err := json.Unmarshal(blob, &states); err != nil {
		return nil, fmt.Errorf("redis: decode weights: %w", err)
	}
	return states, nil
}

// SavePending upserts the pending snapshot for its symbol, including the
// resolution cursor.
func (s *StateStore) SavePending(ctx context.Context, p domain.PendingSignal) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal pending %s: %w", p.Signal.Symbol, err)
	}
	if err := s.rdb.HSet(ctx, pendingKey, p.Signal.Symbol, blob).Err(); err != nil {
		return fmt.Errorf("redis: save pending %s: %w", p.Signal.Symbol, err)
	}
	return nil
}

// DeletePending removes the pending signal for a symbol. Deleting an absent
// symbol is not an error.
func (s *StateStore) DeletePending(ctx context.Context, symbol string) error {
	if err := s.rdb.HDel(ctx, pendingKey, symbol).Err(); err != nil {
		return fmt.Errorf("redis: delete pending %s: %w", symbol, err)
	}
	return nil
}

// LoadPending returns every persisted pending snapshot.
func (s *StateStore) LoadPending(ctx context.Context) ([]domain.PendingSignal, error) {
	vals, err := s.rdb.HGetAll(ctx, pendingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load pending: %w", err)
	}
	out := make([]domain.PendingSignal, 0, len(vals))
	for symbol, blob := range vals {
		var p domain.PendingSignal
		if err := json.Unmarshal([]byte(blob), &p); err != nil {
			return nil, fmt.Errorf("redis: decode pending %s: %w", symbol, err)
		}
		out = append(out, p)
	}
	return out, nil
}
