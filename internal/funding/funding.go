// Package funding implements the open-interest funding model: a bounded
// "hill" curve maps OI skew to a target per-block rate, and a spring
// factor relaxes the live rate toward that target with asymmetric
// up/down speed (hysteresis). Accumulator indices integrate the rate
// over elapsed blocks so per-trade fees can be taken as deltas.
//
// Every function is a pure function of its inputs. All arithmetic uses
// shopspring/decimal — never float64 for money.
package funding

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// prec is the decimal precision used for divisions and transcendentals.
// Intermediate values never leave decimal form, so error does not
// compound across the formula chain.
const prec int32 = 32

// expPrec is the overall significant-digit precision for exponentials.
// Hull-Abrham stays stable for the large negative exponents a long
// block horizon produces, where a Taylor expansion would not.
const expPrec uint32 = 32

var hundred = decimal.NewFromInt(100)

// Params is the per-pair funding state and curve shape, in human units
// (descaled from on-chain fixed point).
type Params struct {
	AccFundingLong        decimal.Decimal
	AccFundingShort       decimal.Decimal
	LastFundingRate       decimal.Decimal
	MaxFundingFeePerBlock decimal.Decimal
	LastFundingBlock      uint64

	LongOI  decimal.Decimal
	ShortOI decimal.Decimal
	MaxOI   decimal.Decimal

	HillInflectionPoint decimal.Decimal
	HillPosScale        decimal.Decimal
	HillNegScale        decimal.Decimal
	SpringFactor        decimal.Decimal
	SFactorUpScaleP     decimal.Decimal
	SFactorDownScaleP   decimal.Decimal
}

// Accrual is the funding state advanced to a block. A positive rate
// means longs pay; the receiving side's index moves by the paid amount
// scaled by the payer/receiver OI ratio so that total paid equals total
// received.
type Accrual struct {
	AccFundingLong    decimal.Decimal
	AccFundingShort   decimal.Decimal
	LatestFundingRate decimal.Decimal
	TargetFundingRate decimal.Decimal
	LongsPay          bool
}

// NormalizedSkew returns (longOI - shortOI) / max(maxOI, longOI, shortOI),
// or zero when all three are zero.
func NormalizedSkew(longOI, shortOI, maxOI decimal.Decimal) decimal.Decimal {
	denom := decimal.Max(maxOI, longOI, shortOI)
	if denom.IsZero() {
		return decimal.Zero
	}
	return longOI.Sub(shortOI).DivRound(denom, prec)
}

// TargetRate maps a normalized skew through the hill curve:
//
//	hill(x) = x² / (inflection² + x²)
//
// so the curve reaches half its maximum at |skew| = inflection and
// saturates toward 1. The output is scaled by hillPosScale for
// majority-long skew and hillNegScale for majority-short skew, carries
// the skew's sign, and is clipped to ±maxRate. Zero skew yields zero.
func TargetRate(skew, inflection, posScale, negScale, maxRate decimal.Decimal) decimal.Decimal {
	if skew.IsZero() {
		return decimal.Zero
	}
	x := skew.Abs()
	x2 := x.Mul(x)
	denom := inflection.Mul(inflection).Add(x2)
	if denom.IsZero() {
		return decimal.Zero
	}
	hill := x2.DivRound(denom, prec)

	scale := posScale
	if skew.IsNegative() {
		scale = negScale
	}

	target := maxRate.Mul(scale).Mul(hill)
	if target.GreaterThan(maxRate) {
		target = maxRate
	}
	if skew.IsNegative() {
		target = target.Neg()
	}
	return target
}

// Accrue advances the funding state from p.LastFundingBlock to block.
//
// The live rate relaxes exponentially toward the target:
//
//	r(t) = target + (last - target)·e^(-k·t)
//
// where k = springFactor × sFactorUpScaleP/100 while the rate magnitude
// is growing toward a larger target, and sFactorDownScaleP/100 while it
// is shrinking — the hysteresis that makes the rate chase imbalance
// faster than it forgives it.
//
// Equal OI is a defined state, not a fault: the rate is zero and no
// side pays. A receiving side with zero OI accrues nothing.
func Accrue(p Params, block uint64, verbose bool) (Accrual, error) {
	out := Accrual{
		AccFundingLong:  p.AccFundingLong,
		AccFundingShort: p.AccFundingShort,
		LongsPay:        p.LongOI.GreaterThan(p.ShortOI),
	}

	skew := NormalizedSkew(p.LongOI, p.ShortOI, p.MaxOI)
	if skew.IsZero() {
		// Balanced book: rate is zero and no side pays.
		return out, nil
	}

	target := TargetRate(skew, p.HillInflectionPoint, p.HillPosScale, p.HillNegScale, p.MaxFundingFeePerBlock)
	out.TargetFundingRate = target

	if block <= p.LastFundingBlock {
		out.LatestFundingRate = p.LastFundingRate
		return out, nil
	}
	elapsed := decimal.NewFromUint64(block - p.LastFundingBlock)

	k := p.SpringFactor
	if target.Abs().GreaterThanOrEqual(p.LastFundingRate.Abs()) {
		k = k.Mul(p.SFactorUpScaleP).DivRound(hundred, prec)
	} else {
		k = k.Mul(p.SFactorDownScaleP).DivRound(hundred, prec)
	}

	last := p.LastFundingRate
	latest, err := rateAt(last, target, k, elapsed)
	if err != nil {
		return Accrual{}, err
	}
	out.LatestFundingRate = latest

	// Integrate the rate, splitting at a sign crossing so each segment
	// is charged to the side actually paying during it.
	segments := [][2]decimal.Decimal{{decimal.Zero, elapsed}}
	if last.Sign() != 0 && latest.Sign() != 0 && last.Sign() != latest.Sign() {
		t0, cerr := crossing(last, target, k)
		if cerr != nil {
			return Accrual{}, cerr
		}
		if t0.IsPositive() && t0.LessThan(elapsed) {
			segments = [][2]decimal.Decimal{{decimal.Zero, t0}, {t0, elapsed}}
		}
	}

	for _, seg := range segments {
		paid, ierr := integrate(last, target, k, seg[0], seg[1])
		if ierr != nil {
			return Accrual{}, ierr
		}
		applyAccrual(&out, paid, p.LongOI, p.ShortOI)
	}

	if verbose {
		slog.Debug("funding accrual",
			"skew", skew.String(),
			"target", target.String(),
			"latest", latest.String(),
			"acc_long", out.AccFundingLong.String(),
			"acc_short", out.AccFundingShort.String(),
			"longs_pay", out.LongsPay,
		)
	}
	return out, nil
}

// rateAt evaluates r(t) = target + (last-target)·e^(-k·t).
func rateAt(last, target, k, t decimal.Decimal) (decimal.Decimal, error) {
	if k.IsZero() {
		return last, nil
	}
	e, err := k.Mul(t).Neg().ExpHullAbrham(expPrec)
	if err != nil {
		return decimal.Zero, fmt.Errorf("funding: rate decay: %w", err)
	}
	return target.Add(last.Sub(target).Mul(e)), nil
}

// integrate returns ∫ r(t)dt over [t1, t2]:
//
//	target·(t2-t1) + (last-target)/k · (e^(-k·t1) - e^(-k·t2))
func integrate(last, target, k, t1, t2 decimal.Decimal) (decimal.Decimal, error) {
	dt := t2.Sub(t1)
	if k.IsZero() {
		return last.Mul(dt), nil
	}
	e1, err := k.Mul(t1).Neg().ExpHullAbrham(expPrec)
	if err != nil {
		return decimal.Zero, fmt.Errorf("funding: integrate: %w", err)
	}
	e2, err := k.Mul(t2).Neg().ExpHullAbrham(expPrec)
	if err != nil {
		return decimal.Zero, fmt.Errorf("funding: integrate: %w", err)
	}
	transient := last.Sub(target).Mul(e1.Sub(e2)).DivRound(k, prec)
	return target.Mul(dt).Add(transient), nil
}

// crossing returns the block offset at which r(t) = 0:
//
//	t0 = ln((target-last)/target) / k
//
// Only called when last and the rate at the horizon have opposite signs,
// so the argument of ln is > 1.
func crossing(last, target, k decimal.Decimal) (decimal.Decimal, error) {
	ratio := target.Sub(last).DivRound(target, prec)
	ln, err := ratio.Ln(prec)
	if err != nil {
		return decimal.Zero, fmt.Errorf("funding: sign crossing: %w", err)
	}
	return ln.DivRound(k, prec), nil
}

// applyAccrual charges a signed integral to the paying side's index and
// credits the receiver OI-weighted, so total paid equals total received.
// A receiver with zero OI gets nothing (guarded, not an error).
func applyAccrual(out *Accrual, paid, longOI, shortOI decimal.Decimal) {
	switch paid.Sign() {
	case 1: // longs pay
		out.AccFundingLong = out.AccFundingLong.Add(paid)
		if shortOI.IsPositive() {
			received := paid.Mul(longOI).DivRound(shortOI, prec)
			out.AccFundingShort = out.AccFundingShort.Sub(received)
		}
	case -1: // shorts pay
		out.AccFundingShort = out.AccFundingShort.Sub(paid)
		if longOI.IsPositive() {
			received := paid.Mul(shortOI).DivRound(longOI, prec)
			out.AccFundingLong = out.AccFundingLong.Add(received)
		}
	}
}

// RatesLongShort converts an accrual into the per-block display pair:
// the paying side's rate is negative (a cost), the receiving side's is
// the payer's rate scaled by payerOI/receiverOI. A receiver with zero
// OI gets zero (no one to distribute to).
func RatesLongShort(a Accrual, longOI, shortOI decimal.Decimal) (longRate, shortRate decimal.Decimal) {
	rate := a.LatestFundingRate.Abs()
	if a.LongsPay {
		longRate = rate.Neg()
		if shortOI.IsPositive() {
			shortRate = rate.Mul(longOI).DivRound(shortOI, prec)
		}
		return longRate, shortRate
	}
	shortRate = rate.Neg()
	if longOI.IsPositive() {
		longRate = rate.Mul(shortOI).DivRound(longOI, prec)
	}
	return longRate, shortRate
}
