// Package store defines the persistence interface for pair accumulator
// snapshots and open-trade snapshots. Implementations include
// PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing).
package store

import (
	"context"

	"github.com/perpx/trade-engine/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of
// truth; Redis provides a read-through cache layer. The engine itself
// never touches a Store — only the service layer does.
type Store interface {
	// --- Pair snapshots ---

	// UpsertPair inserts or replaces a pair's accumulator snapshot.
	UpsertPair(ctx context.Context, pair *model.PairState) error

	// GetPair retrieves a pair snapshot by its ID.
	GetPair(ctx context.Context, id string) (*model.PairState, error)

	// GetPairBySymbol retrieves a pair snapshot by its symbol, e.g. "BTC/USD".
	GetPairBySymbol(ctx context.Context, symbol string) (*model.PairState, error)

	// ListPairs returns all known pair snapshots.
	ListPairs(ctx context.Context) ([]model.PairState, error)

	// --- Open-trade snapshots ---

	// SaveTrade inserts or replaces an open-trade snapshot.
	SaveTrade(ctx context.Context, trade *model.TradeState) error

	// GetTrade retrieves a trade with its pair snapshot attached.
	GetTrade(ctx context.Context, id string) (*model.TradeState, error)

	// GetTradesByTrader returns all trades for one trader, pairs attached.
	GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeState, error)

	// DeleteTrade removes a closed trade's snapshot.
	DeleteTrade(ctx context.Context, id string) error
}
