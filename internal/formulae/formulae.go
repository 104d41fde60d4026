// Package formulae implements the per-trade economics: rollover
// accrual, fee projection against recorded accumulator snapshots, price
// impact, profit/loss and liquidation price.
//
// Every function is pure and stateless; degenerate denominators (zero
// collateral, zero open price, zero mid) return a defined zero rather
// than an error — those are legitimate market states, not faults.
// All monetary values use shopspring/decimal — never float64 for money.
package formulae

import "github.com/shopspring/decimal"

// prec is the decimal precision used for divisions.
const prec int32 = 32

var (
	hundred = decimal.NewFromInt(100)

	// MaxProfitP caps the reported profit percentage at 900%.
	MaxProfitP = decimal.NewFromInt(900)

	// MaxStopLossP is the widest stop-loss distance, 85% of collateral.
	MaxStopLossP = decimal.NewFromInt(85)
)

// CurrentRolloverFee advances the rollover accumulator to currentBlock:
// accRollover + rolloverFeePerBlock × blocks elapsed. Purely additive
// and direction-independent — the cost of holding leverage at all.
func CurrentRolloverFee(accRollover, rolloverFeePerBlock decimal.Decimal, lastRolloverBlock, currentBlock uint64) decimal.Decimal {
	if currentBlock <= lastRolloverBlock {
		return accRollover
	}
	elapsed := decimal.NewFromUint64(currentBlock - lastRolloverBlock)
	return accRollover.Add(rolloverFeePerBlock.Mul(elapsed))
}

// TradeRolloverFee is the rollover owed by one trade since its recorded
// snapshot: (current - recorded) × collateral × leverage. The recorded
// value, never zero, is the baseline — the delta covers only the span
// since the trade's last settlement.
func TradeRolloverFee(tradeRollover, currentRollover, collateral, leverage decimal.Decimal) decimal.Decimal {
	return currentRollover.Sub(tradeRollover).Mul(collateral).Mul(leverage)
}

// TradeFundingFee is the funding owed by one trade since its recorded
// snapshot, against the accumulator of the trade's own side.
func TradeFundingFee(tradeFunding, currentFunding, collateral, leverage decimal.Decimal) decimal.Decimal {
	return currentFunding.Sub(tradeFunding).Mul(collateral).Mul(leverage)
}

// Impact is the spread-adjusted execution price for a directional fill.
type Impact struct {
	PriceImpactP     decimal.Decimal `json:"price_impact_p"`
	PriceAfterImpact decimal.Decimal `json:"price_after_impact"`
}

// PriceImpact selects the execution side of the book and quantifies the
// half-spread cost. Opening a long or closing a short buys at the ask;
// opening a short or closing a long sells at the bid. A zero mid price
// yields a zero Impact.
func PriceImpact(mid, bid, ask decimal.Decimal, isOpen, isLong bool) Impact {
	if mid.IsZero() {
		return Impact{}
	}
	aboveSpot := isOpen == isLong
	used := bid
	if aboveSpot {
		used = ask
	}
	impactP := mid.Sub(used).Abs().DivRound(mid, prec).Mul(hundred)
	return Impact{PriceImpactP: impactP, PriceAfterImpact: used}
}

// effectiveLeverage caps PnL scaling at the leverage in force when the
// position's risk was last assessed.
func effectiveLeverage(leverage, highestLeverage decimal.Decimal) decimal.Decimal {
	return decimal.Min(leverage, highestLeverage)
}

// TradeProfit is the gross (fee-free) PnL of an open trade at an
// execution price: (price move / open price) × collateral × effective
// leverage, signed by direction.
func TradeProfit(openPrice, currentPrice decimal.Decimal, isLong bool, collateral, leverage, highestLeverage decimal.Decimal) decimal.Decimal {
	if openPrice.IsZero() {
		return decimal.Zero
	}
	diff := currentPrice.Sub(openPrice)
	if !isLong {
		diff = diff.Neg()
	}
	effLev := effectiveLeverage(leverage, highestLeverage)
	return diff.Mul(collateral).Mul(effLev).DivRound(openPrice, prec)
}

// TotalProfit deducts the fees already owed from the gross PnL.
// Order matters: fees come off after the price term, so a profitable
// move can still net negative.
func TotalProfit(grossProfit, rolloverFee, fundingFee decimal.Decimal) decimal.Decimal {
	return grossProfit.Sub(rolloverFee).Sub(fundingFee)
}

// ProfitPercent is the net profit relative to collateral, in percent,
// capped at MaxProfitP. Zero collateral yields zero.
func ProfitPercent(totalProfit, collateral decimal.Decimal) decimal.Decimal {
	if collateral.IsZero() {
		return decimal.Zero
	}
	p := totalProfit.DivRound(collateral, prec).Mul(hundred)
	if p.GreaterThan(MaxProfitP) {
		return MaxProfitP
	}
	return p
}

// LiquidationPrice solves for the execution price at which net value
// (collateral + total profit) reaches zero:
//
//	long:  open × (1 - (collateral - fees) / (collateral × effLeverage))
//	short: open × (1 + (collateral - fees) / (collateral × effLeverage))
//
// Fees at or above collateral mean the position is liquidatable at any
// price: the result is zero. The price is clamped to zero, never
// negative.
func LiquidationPrice(openPrice decimal.Decimal, isLong bool, collateral, leverage, highestLeverage, rolloverFee, fundingFee decimal.Decimal) decimal.Decimal {
	if collateral.IsZero() {
		return decimal.Zero
	}
	fees := rolloverFee.Add(fundingFee)
	if fees.GreaterThanOrEqual(collateral) {
		return decimal.Zero
	}
	effLev := effectiveLeverage(leverage, highestLeverage)
	if effLev.IsZero() {
		return decimal.Zero
	}

	distance := openPrice.Mul(collateral.Sub(fees)).DivRound(collateral.Mul(effLev), prec)
	var liq decimal.Decimal
	if isLong {
		liq = openPrice.Sub(distance)
	} else {
		liq = openPrice.Add(distance)
	}
	if liq.IsNegative() {
		return decimal.Zero
	}
	return liq
}
