package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/perpx/trade-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) UpsertPair(ctx context.Context, p *model.PairState) error {
	if err := s.primary.UpsertPair(ctx, p); err != nil {
		return err
	}
	s.cachePair(ctx, p)
	s.rdb.Set(ctx, symbolKey(p.Symbol), p.ID, s.ttl)
	return nil
}

func (s *CachedStore) SaveTrade(ctx context.Context, t *model.TradeState) error {
	if err := s.primary.SaveTrade(ctx, t); err != nil {
		return err
	}
	// Invalidate; next read re-attaches a fresh pair snapshot.
	s.rdb.Del(ctx, tradeKey(t.ID))
	return nil
}

func (s *CachedStore) DeleteTrade(ctx context.Context, id string) error {
	if err := s.primary.DeleteTrade(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradeKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPair(ctx context.Context, id string) (*model.PairState, error) {
	data, err := s.rdb.Get(ctx, pairKey(id)).Bytes()
	if err == nil {
		var p model.PairState
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPair(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cachePair(ctx, p)
	return p, nil
}

func (s *CachedStore) GetPairBySymbol(ctx context.Context, symbol string) (*model.PairState, error) {
	// Try cache via symbol→pairID mapping.
	pairID, err := s.rdb.Get(ctx, symbolKey(symbol)).Result()
	if err == nil {
		return s.GetPair(ctx, pairID)
	}

	p, err := s.primary.GetPairBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.cachePair(ctx, p)
	s.rdb.Set(ctx, symbolKey(symbol), p.ID, s.ttl)
	return p, nil
}

func (s *CachedStore) GetTrade(ctx context.Context, id string) (*model.TradeState, error) {
	data, err := s.rdb.Get(ctx, tradeKey(id)).Bytes()
	if err == nil {
		var t model.TradeState
		if json.Unmarshal(data, &t) == nil {
			// The trade is cached without its pair; attach the pair
			// through the pair cache so a freshly upserted accumulator
			// snapshot is visible immediately.
			pair, perr := s.GetPair(ctx, t.PairID)
			if perr == nil {
				t.Pair = pair
				return &t, nil
			}
		}
	}

	t, err := s.primary.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheTrade(ctx, t)
	return t, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPairs(ctx context.Context) ([]model.PairState, error) {
	return s.primary.ListPairs(ctx)
}

func (s *CachedStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeState, error) {
	return s.primary.GetTradesByTrader(ctx, trader)
}

// --- Cache helpers ---

func (s *CachedStore) cachePair(ctx context.Context, p *model.PairState) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, pairKey(p.ID), data, s.ttl)
	}
}

// cacheTrade stores the trade body only. The pair snapshot is attached
// on read so cached trades never pin a stale accumulator state.
func (s *CachedStore) cacheTrade(ctx context.Context, t *model.TradeState) {
	cp := *t
	cp.Pair = nil
	if data, err := json.Marshal(&cp); err == nil {
		s.rdb.Set(ctx, tradeKey(t.ID), data, s.ttl)
	}
}

func pairKey(id string) string       { return fmt.Sprintf("pair:%s", id) }
func symbolKey(symbol string) string { return fmt.Sprintf("symbol:%s", symbol) }
func tradeKey(id string) string      { return fmt.Sprintf("trade:%s", id) }
