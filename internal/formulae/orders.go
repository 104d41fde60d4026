package formulae

import "github.com/shopspring/decimal"

// TakeProfitPrice is the price at which a trade reaches profitP percent
// of collateral: openPrice ± openPrice × profitP / (leverage × 100).
// Clamped to zero on the downside.
func TakeProfitPrice(openPrice, profitP, leverage decimal.Decimal, isLong bool) decimal.Decimal {
	if leverage.IsZero() {
		return openPrice
	}
	diff := openPrice.Mul(profitP).DivRound(leverage.Mul(hundred), prec)
	tp := openPrice.Sub(diff)
	if isLong {
		tp = openPrice.Add(diff)
	}
	if tp.IsNegative() {
		return decimal.Zero
	}
	return tp
}

// MaxTakeProfitPrice is TakeProfitPrice at the MaxProfitP cap.
func MaxTakeProfitPrice(openPrice, leverage decimal.Decimal, isLong bool) decimal.Decimal {
	return TakeProfitPrice(openPrice, MaxProfitP, leverage, isLong)
}

// StopLossPrice mirrors TakeProfitPrice on the losing side: the price
// at which the trade loses lossP percent of collateral.
func StopLossPrice(openPrice, lossP, leverage decimal.Decimal, isLong bool) decimal.Decimal {
	if leverage.IsZero() {
		return openPrice
	}
	diff := openPrice.Mul(lossP).DivRound(leverage.Mul(hundred), prec)
	sl := openPrice.Add(diff)
	if isLong {
		sl = openPrice.Sub(diff)
	}
	if sl.IsNegative() {
		return decimal.Zero
	}
	return sl
}

// TopUpLeverage is the leverage after adding collateral to an open
// position, notional held constant.
func TopUpLeverage(collateral, leverage, addedCollateral decimal.Decimal) decimal.Decimal {
	total := collateral.Add(addedCollateral)
	if total.IsZero() {
		return decimal.Zero
	}
	return collateral.Mul(leverage).DivRound(total, prec)
}

// OpeningFee computes the open fee for a signed trade size (positive
// long, negative short) against the current OI skew. The portion of the
// trade that reduces the skew pays the maker rate — but only while
// leverage stays at or under makerMaxLeverage — and the rest pays the
// taker rate. Rates are percentages.
func OpeningFee(tradeSize, leverage, oiDelta, makerMaxLeverage, makerFeeP, takerFeeP decimal.Decimal) decimal.Decimal {
	size := tradeSize.Abs()

	var makerAmount decimal.Decimal
	if tradeSize.Sign() != 0 && oiDelta.Sign() != 0 && tradeSize.Sign() != oiDelta.Sign() {
		makerAmount = decimal.Min(size, oiDelta.Abs())
	}
	if leverage.GreaterThan(makerMaxLeverage) {
		makerAmount = decimal.Zero
	}
	takerAmount := size.Sub(makerAmount)

	fee := makerAmount.Mul(makerFeeP).Add(takerAmount.Mul(takerFeeP))
	return fee.DivRound(hundred, prec)
}

// TradeValue returns the position's current redeemable value together
// with the liquidation margin it must stay above. The margin threshold
// is a percentage of collateral, scaled by leverage relative to the
// pair's maximum.
func TradeValue(liqMarginThresholdP, collateral, percentProfit, rolloverFee, fundingFee, leverage, maxLeverage decimal.Decimal) (value, liqMargin decimal.Decimal) {
	value = collateral.
		Add(collateral.Mul(percentProfit).DivRound(hundred, prec)).
		Sub(rolloverFee).
		Sub(fundingFee)

	if maxLeverage.IsZero() {
		return value, decimal.Zero
	}
	liqMargin = collateral.
		Mul(liqMarginThresholdP).DivRound(hundred, prec).
		Mul(leverage).DivRound(maxLeverage, prec)
	return value, liqMargin
}
