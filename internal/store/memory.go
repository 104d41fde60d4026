package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/perpx/trade-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	pairs  map[string]*model.PairState
	trades map[string]*model.TradeState
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pairs:  make(map[string]*model.PairState),
		trades: make(map[string]*model.TradeState),
	}
}

func (s *MemoryStore) UpsertPair(_ context.Context, p *model.PairState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	cp := *p
	s.pairs[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPair(_ context.Context, id string) (*model.PairState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pairs[id]
	if !ok {
		return nil, fmt.Errorf("pair %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPairBySymbol(_ context.Context, symbol string) (*model.PairState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pairs {
		if p.Symbol == symbol {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("pair for symbol %s not found", symbol)
}

func (s *MemoryStore) ListPairs(_ context.Context) ([]model.PairState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]model.PairState, 0, len(s.pairs))
	for _, p := range s.pairs {
		pairs = append(pairs, *p)
	}
	return pairs, nil
}

func (s *MemoryStore) SaveTrade(_ context.Context, t *model.TradeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	cp.Pair = nil // the pair snapshot is attached on read
	s.trades[t.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTrade(_ context.Context, id string) (*model.TradeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s not found", id)
	}
	cp := *t
	if p, ok := s.pairs[t.PairID]; ok {
		pc := *p
		cp.Pair = &pc
	}
	return &cp, nil
}

func (s *MemoryStore) GetTradesByTrader(_ context.Context, trader string) ([]model.TradeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeState
	for _, t := range s.trades {
		if t.Trader != trader {
			continue
		}
		cp := *t
		if p, ok := s.pairs[t.PairID]; ok {
			pc := *p
			cp.Pair = &pc
		}
		result = append(result, cp)
	}
	return result, nil
}

func (s *MemoryStore) DeleteTrade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[id]; !ok {
		return fmt.Errorf("trade %s not found", id)
	}
	delete(s.trades, id)
	return nil
}
