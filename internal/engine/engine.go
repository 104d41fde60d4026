// Package engine composes the funding, rollover, impact and PnL models
// into the per-trade metrics snapshot callers display. It is the only
// package the service layer needs to talk to for economics.
//
// Every call is a pure function of its input snapshots: no I/O, no
// caching, no shared state, deterministic for identical inputs — safe
// to invoke concurrently as long as each caller owns its snapshots.
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/perpx/trade-engine/internal/formulae"
	"github.com/perpx/trade-engine/internal/funding"
	"github.com/perpx/trade-engine/internal/model"
)

// FundingRate advances a pair's funding state to the given block.
func FundingRate(pair *model.PairState, block uint64, verbose bool) (funding.Accrual, error) {
	return funding.Accrue(fundingParams(pair), block, verbose)
}

// FundingRatesLongShort returns the per-block display rates for both
// sides: the payer's is negative, the receiver's is OI-weighted so that
// total paid equals total received.
func FundingRatesLongShort(pair *model.PairState, block uint64) (longRate, shortRate decimal.Decimal, err error) {
	a, err := FundingRate(pair, block, false)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	longRate, shortRate = funding.RatesLongShort(a, pair.LongOI, pair.ShortOI)
	return longRate, shortRate, nil
}

// TradeMetrics computes the full metrics snapshot for an open trade
// against a price snapshot at a block, assuming a hypothetical close.
//
// A missing trade, pair, price or block returns zeroed metrics and no
// error: "no metrics yet" is an expected transient state while
// position and price data load, not a fault. Callers must treat the
// all-zero value as unavailable, not as a zero-PnL trade.
func TradeMetrics(trade *model.TradeState, price *model.PriceSnapshot, block uint64) (model.TradeMetrics, error) {
	if trade == nil || trade.Pair == nil || price == nil || block == 0 {
		return model.TradeMetrics{}, nil
	}
	pair := trade.Pair

	currentRollover := formulae.CurrentRolloverFee(
		pair.AccRollover, pair.RolloverFeePerBlock, pair.LastRolloverBlock, block)
	rolloverFee := formulae.TradeRolloverFee(
		trade.Rollover, currentRollover, trade.Collateral, trade.Leverage)

	accrual, err := funding.Accrue(fundingParams(pair), block, false)
	if err != nil {
		return model.TradeMetrics{}, err
	}
	currentFunding := accrual.AccFundingShort
	if trade.IsBuy {
		currentFunding = accrual.AccFundingLong
	}
	fundingFee := formulae.TradeFundingFee(
		trade.Funding, currentFunding, trade.Collateral, trade.Leverage)

	// Metrics always price a hypothetical close.
	impact := formulae.PriceImpact(price.Mid, price.Bid, price.Ask, false, trade.IsBuy)

	pnl := formulae.TradeProfit(
		trade.OpenPrice, impact.PriceAfterImpact, trade.IsBuy,
		trade.Collateral, trade.Leverage, trade.HighestLeverage)
	totalProfit := formulae.TotalProfit(pnl, rolloverFee, fundingFee)

	return model.TradeMetrics{
		Pnl:         pnl,
		PnlPercent:  formulae.ProfitPercent(totalProfit, trade.Collateral),
		Rollover:    rolloverFee,
		Funding:     fundingFee,
		TotalProfit: totalProfit,
		NetPnl:      totalProfit,
		NetValue:    trade.Collateral.Add(totalProfit),
		LiquidationPrice: formulae.LiquidationPrice(
			trade.OpenPrice, trade.IsBuy,
			trade.Collateral, trade.Leverage, trade.HighestLeverage,
			rolloverFee, fundingFee),
		PriceImpact: impact.PriceAfterImpact,
	}, nil
}

func fundingParams(p *model.PairState) funding.Params {
	return funding.Params{
		AccFundingLong:        p.AccFundingLong,
		AccFundingShort:       p.AccFundingShort,
		LastFundingRate:       p.LastFundingRate,
		MaxFundingFeePerBlock: p.MaxFundingFeePerBlock,
		LastFundingBlock:      p.LastFundingBlock,
		LongOI:                p.LongOI,
		ShortOI:               p.ShortOI,
		MaxOI:                 p.MaxOI,
		HillInflectionPoint:   p.HillInflectionPoint,
		HillPosScale:          p.HillPosScale,
		HillNegScale:          p.HillNegScale,
		SpringFactor:          p.SpringFactor,
		SFactorUpScaleP:       p.SFactorUpScaleP,
		SFactorDownScaleP:     p.SFactorDownScaleP,
	}
}
