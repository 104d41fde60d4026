package formulae

import (
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func assertEq(t *testing.T, got, want decimal.Decimal, msg string) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(d(1e-12)) {
		t.Errorf("%s: got %s, want %s", msg, got, want)
	}
}

// --- Rollover ---

func TestCurrentRolloverFee(t *testing.T) {
	got := CurrentRolloverFee(d(1.5), d(0.001), 100, 350)
	assertEq(t, got, d(1.75), "acc + perBlock*250")
}

func TestCurrentRolloverFee_MonotonicInBlock(t *testing.T) {
	prev := decimal.Zero
	for _, block := range []uint64{100, 101, 500, 10_000, 1_000_000} {
		fee := CurrentRolloverFee(d(2), d(0.0007), 100, block)
		if fee.LessThan(prev) {
			t.Errorf("rollover decreased at block %d: %s < %s", block, fee, prev)
		}
		prev = fee
	}
}

func TestCurrentRolloverFee_NoElapsedBlocks(t *testing.T) {
	got := CurrentRolloverFee(d(3), d(0.5), 200, 200)
	assertEq(t, got, d(3), "no elapsed blocks")
}

// --- Per-trade fee projection ---

func TestTradeRolloverFee_DeltaSinceSnapshot(t *testing.T) {
	// Accrued only since the trade's recorded value, not since inception.
	got := TradeRolloverFee(d(1.2), d(1.5), d(100), d(10))
	assertEq(t, got, d(300), "(1.5-1.2)*100*10")
}

func TestTradeFundingFee_NegativeDeltaMeansReceived(t *testing.T) {
	// Receiver side: its accumulator fell below the snapshot.
	got := TradeFundingFee(d(0.1), d(0.05), d(50), d(20))
	assertEq(t, got, d(-50), "(0.05-0.1)*50*20")
}

// --- Price impact ---

func TestPriceImpact_CloseSides(t *testing.T) {
	mid, bid, ask := d(60000), d(59900), d(60100)

	// Closing a long sells at the bid.
	long := PriceImpact(mid, bid, ask, false, true)
	assertEq(t, long.PriceAfterImpact, bid, "long close executes at bid")

	// Closing a short buys at the ask.
	short := PriceImpact(mid, bid, ask, false, false)
	assertEq(t, short.PriceAfterImpact, ask, "short close executes at ask")
}

func TestPriceImpact_OpenSidesInvert(t *testing.T) {
	mid, bid, ask := d(60000), d(59900), d(60100)

	long := PriceImpact(mid, bid, ask, true, true)
	assertEq(t, long.PriceAfterImpact, ask, "long open executes at ask")

	short := PriceImpact(mid, bid, ask, true, false)
	assertEq(t, short.PriceAfterImpact, bid, "short open executes at bid")
}

func TestPriceImpact_WiderSpreadWorseExecution(t *testing.T) {
	mid := d(60000)
	narrow := PriceImpact(mid, d(59990), d(60010), false, true)
	wide := PriceImpact(mid, d(59500), d(60500), false, true)
	if wide.PriceImpactP.LessThanOrEqual(narrow.PriceImpactP) {
		t.Errorf("wider spread should cost more: wide=%s narrow=%s",
			wide.PriceImpactP, narrow.PriceImpactP)
	}
}

func TestPriceImpact_ZeroMid(t *testing.T) {
	got := PriceImpact(d(0), d(1), d(2), false, true)
	if !got.PriceImpactP.IsZero() || !got.PriceAfterImpact.IsZero() {
		t.Errorf("zero mid should yield zero impact, got %+v", got)
	}
}

func TestPriceImpact_Percent(t *testing.T) {
	got := PriceImpact(d(100), d(99), d(101), false, true)
	assertEq(t, got.PriceImpactP, d(1), "1% half-spread")
}

// --- PnL ---

func TestTradeProfit_Long(t *testing.T) {
	// 60000 -> 60600 at 100x on 10 collateral: 10 * 100 * (600/60000) = 10.
	got := TradeProfit(d(60000), d(60600), true, d(10), d(100), d(100))
	assertEq(t, got, d(10), "long gross PnL")
}

func TestTradeProfit_ShortSignFlips(t *testing.T) {
	got := TradeProfit(d(60000), d(60600), false, d(10), d(100), d(100))
	assertEq(t, got, d(-10), "short loses on a rally")
}

func TestTradeProfit_EffectiveLeverageCap(t *testing.T) {
	// Nominal 100x but capped at 50x when highestLeverage is lower.
	got := TradeProfit(d(60000), d(60600), true, d(10), d(100), d(50))
	assertEq(t, got, d(5), "PnL scales by min(leverage, highestLeverage)")
}

func TestTradeProfit_ZeroOpenPrice(t *testing.T) {
	got := TradeProfit(d(0), d(100), true, d(10), d(10), d(10))
	if !got.IsZero() {
		t.Errorf("zero open price should yield zero, got %s", got)
	}
}

func TestTotalProfit_FeeDeduction(t *testing.T) {
	got := TotalProfit(d(100), d(2), d(1))
	assertEq(t, got, d(97), "gross - rollover - funding")
}

func TestProfitPercent(t *testing.T) {
	assertEq(t, ProfitPercent(d(97), d(10)), d(900), "capped at 900%")
	assertEq(t, ProfitPercent(d(5), d(10)), d(50), "50%")
	assertEq(t, ProfitPercent(d(-5), d(10)), d(-50), "-50%")
	if !ProfitPercent(d(100), d(0)).IsZero() {
		t.Error("zero collateral should yield zero percent")
	}
}

// --- Liquidation ---

func TestLiquidationPrice_Long(t *testing.T) {
	// No fees at 100x: liquidation one part in 100 below open.
	got := LiquidationPrice(d(60000), true, d(10), d(100), d(100), d(0), d(0))
	assertEq(t, got, d(59400), "long liq at open*(1-1/100)")
}

func TestLiquidationPrice_Short(t *testing.T) {
	got := LiquidationPrice(d(60000), false, d(10), d(100), d(100), d(0), d(0))
	assertEq(t, got, d(60600), "short liq at open*(1+1/100)")
}

func TestLiquidationPrice_FeesPullLongLiqCloser(t *testing.T) {
	noFees := LiquidationPrice(d(60000), true, d(10), d(100), d(100), d(0), d(0))
	withFees := LiquidationPrice(d(60000), true, d(10), d(100), d(100), d(2), d(1))
	if withFees.LessThanOrEqual(noFees) {
		t.Errorf("fees should raise the long liquidation price: %s <= %s", withFees, noFees)
	}
}

func TestLiquidationPrice_FeesExceedCollateral(t *testing.T) {
	// rollover+funding = 15 against collateral 10: liquidatable at any
	// price, so the output clamps to zero for both directions.
	for _, isLong := range []bool{true, false} {
		got := LiquidationPrice(d(60000), isLong, d(10), d(100), d(100), d(10), d(5))
		if !got.IsZero() {
			t.Errorf("isLong=%v: fees >= collateral must clamp to 0, got %s", isLong, got)
		}
	}
}

func TestLiquidationPrice_NeverNegative(t *testing.T) {
	// Low leverage long: algebraic result open*(1-1/L) stays positive,
	// but a sub-1x effective leverage would push it below zero.
	got := LiquidationPrice(d(100), true, d(10), d(0.5), d(0.5), d(0), d(0))
	if got.IsNegative() {
		t.Errorf("liquidation price must never be negative, got %s", got)
	}
}

func TestLiquidationPrice_ZeroCollateral(t *testing.T) {
	if got := LiquidationPrice(d(100), true, d(0), d(10), d(10), d(0), d(0)); !got.IsZero() {
		t.Errorf("zero collateral should yield zero, got %s", got)
	}
}
