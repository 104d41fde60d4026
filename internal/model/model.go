// Package model defines the core domain types shared across the trade
// engine. All monetary values use shopspring/decimal — never float64 for
// money.
//
// PairState and TradeState are transient value objects: the caller builds
// them from indexer data, hands them to the engine, and discards them.
// The engine never mutates or caches them.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PairState is a per-market accumulator snapshot, indexed by block height.
// All fields are expressed in human units (descaled from their on-chain
// fixed-point representation).
type PairState struct {
	ID     string `json:"id" db:"id"`
	Symbol string `json:"symbol" db:"symbol"` // e.g. "BTC/USD"

	// Funding accumulators and curve parameters.
	AccFundingLong       decimal.Decimal `json:"acc_funding_long" db:"acc_funding_long"`
	AccFundingShort      decimal.Decimal `json:"acc_funding_short" db:"acc_funding_short"`
	LastFundingRate      decimal.Decimal `json:"last_funding_rate" db:"last_funding_rate"`
	MaxFundingFeePerBlock decimal.Decimal `json:"max_funding_fee_per_block" db:"max_funding_fee_per_block"`
	LastFundingBlock     uint64          `json:"last_funding_block" db:"last_funding_block"`
	LongOI               decimal.Decimal `json:"long_oi" db:"long_oi"`
	ShortOI              decimal.Decimal `json:"short_oi" db:"short_oi"`
	MaxOI                decimal.Decimal `json:"max_oi" db:"max_oi"`
	HillInflectionPoint  decimal.Decimal `json:"hill_inflection_point" db:"hill_inflection_point"`
	HillPosScale         decimal.Decimal `json:"hill_pos_scale" db:"hill_pos_scale"`
	HillNegScale         decimal.Decimal `json:"hill_neg_scale" db:"hill_neg_scale"`
	SpringFactor         decimal.Decimal `json:"spring_factor" db:"spring_factor"`
	SFactorUpScaleP      decimal.Decimal `json:"s_factor_up_scale_p" db:"s_factor_up_scale_p"`
	SFactorDownScaleP    decimal.Decimal `json:"s_factor_down_scale_p" db:"s_factor_down_scale_p"`

	// Rollover accumulator.
	AccRollover         decimal.Decimal `json:"acc_rollover" db:"acc_rollover"`
	LastRolloverBlock   uint64          `json:"last_rollover_block" db:"last_rollover_block"`
	RolloverFeePerBlock decimal.Decimal `json:"rollover_fee_per_block" db:"rollover_fee_per_block"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TradeState is a per-position snapshot. Rollover and Funding hold the
// accumulator values recorded at the trade's last settlement (open or
// last partial close) — per-trade fees are always deltas against these,
// never against zero.
type TradeState struct {
	ID     string `json:"id" db:"id"`
	Trader string `json:"trader" db:"trader"`
	PairID string `json:"pair_id" db:"pair_id"`

	Collateral      decimal.Decimal `json:"collateral" db:"collateral"`
	Leverage        decimal.Decimal `json:"leverage" db:"leverage"`
	HighestLeverage decimal.Decimal `json:"highest_leverage" db:"highest_leverage"`
	OpenPrice       decimal.Decimal `json:"open_price" db:"open_price"`
	IsBuy           bool            `json:"is_buy" db:"is_buy"`
	Rollover        decimal.Decimal `json:"rollover" db:"rollover"`
	Funding         decimal.Decimal `json:"funding" db:"funding"`

	Pair *PairState `json:"pair,omitempty" db:"-"`

	OpenedAt time.Time `json:"opened_at" db:"opened_at"`
}

// PriceSnapshot is a single-point-in-time quote triplet.
// Invariant: Bid <= Mid <= Ask.
type PriceSnapshot struct {
	Mid decimal.Decimal `json:"mid"`
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// TradeMetrics is the derived, immutable output of the orchestrator.
// An all-zero value means "metrics unavailable" (missing input), not a
// valid zero-PnL trade.
type TradeMetrics struct {
	Pnl              decimal.Decimal `json:"pnl"`
	PnlPercent       decimal.Decimal `json:"pnl_percent"`
	Rollover         decimal.Decimal `json:"rollover"`
	Funding          decimal.Decimal `json:"funding"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	NetPnl           decimal.Decimal `json:"net_pnl"` // same as TotalProfit
	NetValue         decimal.Decimal `json:"net_value"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
	PriceImpact      decimal.Decimal `json:"price_impact"`
}
