package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ib-trading-desk/internal/position"
)

// Redis keys for open-position snapshots.
const (
	// positionKeyPrefix is the prefix for individual snapshots.
	// Format: desk:position:{symbol}
	positionKeyPrefix = "desk:position"

	// positionSetKey holds the symbols with a persisted snapshot.
	positionSetKey = "desk:positions"

	// positionStateTTL bounds how long a stale snapshot survives. Positions
	// close within hours; a generous TTL covers weekends.
	positionStateTTL = 7 * 24 * time.Hour
)

// PositionStateStore persists open-position snapshots so the tracker can be
// restored after a restart. When Redis is unavailable it falls back to an
// in-memory map so the desk keeps running without persistence.
type PositionStateStore struct {
	client         *redis.Client
	logger         zerolog.Logger
	fallback       map[string]*position.Position
	fallbackMu     sync.RWMutex
	redisAvailable atomic.Bool
}

// NewPositionStateStore creates a store. A nil client means memory-only
// operation.
func NewPositionStateStore(client *redis.Client, logger zerolog.Logger) *PositionStateStore {
	store := &PositionStateStore{
		client:   client,
		logger:   logger.With().Str("component", "PositionStateStore").Logger(),
		fallback: make(map[string]*position.Position),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			store.logger.Warn().Err(err).Msg("Redis unavailable, using in-memory fallback")
		} else {
			store.redisAvailable.Store(true)
		}
	}

	return store
}

func positionKey(symbol string) string {
	return fmt.Sprintf("%s:%s", positionKeyPrefix, symbol)
}

// Save persists a snapshot of an open position.
func (s *PositionStateStore) Save(ctx context.Context, pos *position.Position) error {
	if pos == nil {
		return nil
	}

	s.fallbackMu.Lock()
	s.fallback[pos.Symbol] = pos
	s.fallbackMu.Unlock()

	if s.client == nil {
		return nil
	}

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position state: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, positionKey(pos.Symbol), data, positionStateTTL)
	pipe.SAdd(ctx, positionSetKey, pos.Symbol)
	pipe.Expire(ctx, positionSetKey, positionStateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.redisAvailable.Store(false)
		s.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Failed to persist position state to Redis")
		return nil // fallback already holds it
	}

	s.redisAvailable.Store(true)
	return nil
}

// Delete removes a symbol's snapshot after its position closes.
func (s *PositionStateStore) Delete(ctx context.Context, symbol string) error {
	s.fallbackMu.Lock()
	delete(s.fallback, symbol)
	s.fallbackMu.Unlock()

	if s.client == nil {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, positionKey(symbol))
	pipe.SRem(ctx, positionSetKey, symbol)
	if _, err := pipe.Exec(ctx); err != nil {
		s.redisAvailable.Store(false)
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to delete position state from Redis")
	}
	return nil
}

// LoadAll returns every persisted open-position snapshot, preferring Redis
// and falling back to the in-memory map.
func (s *PositionStateStore) LoadAll(ctx context.Context) ([]*position.Position, error) {
	if s.client != nil {
		positions, err := s.loadFromRedis(ctx)
		if err == nil {
			s.redisAvailable.Store(true)
			return positions, nil
		}
		s.redisAvailable.Store(false)
		s.logger.Warn().Err(err).Msg("Failed to load position state from Redis, using fallback")
	}

	s.fallbackMu.RLock()
	defer s.fallbackMu.RUnlock()

	positions := make([]*position.Position, 0, len(s.fallback))
	for _, pos := range s.fallback {
		positions = append(positions, pos)
	}
	return positions, nil
}

func (s *PositionStateStore) loadFromRedis(ctx context.Context) ([]*position.Position, error) {
	symbols, err := s.client.SMembers(ctx, positionSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list position symbols: %w", err)
	}

	var positions []*position.Position
	for _, symbol := range symbols {
		data, err := s.client.Get(ctx, positionKey(symbol)).Bytes()
		if err == redis.Nil {
			// Snapshot expired but the set entry lingered.
			s.client.SRem(ctx, positionSetKey, symbol)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load position %s: %w", symbol, err)
		}

		var pos position.Position
		if err := json.Unmarshal(data, &pos); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Discarding corrupt position snapshot")
			continue
		}
		positions = append(positions, &pos)
	}
	return positions, nil
}

// RedisAvailable reports whether the last Redis operation succeeded.
func (s *PositionStateStore) RedisAvailable() bool {
	return s.redisAvailable.Load()
}
