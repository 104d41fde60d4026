package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpx/trade-engine/internal/fixedpoint"
)

// PairStateRaw carries the on-chain fixed-point integers exactly as the
// indexer reports them. Prices, rates and accumulator indices are
// 18-decimal, open interest is 6-decimal USD, leverage and percentage
// parameters are 2-decimal.
type PairStateRaw struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`

	AccFundingLong        string `json:"accFundingLong"`
	AccFundingShort       string `json:"accFundingShort"`
	LastFundingRate       string `json:"lastFundingRate"`
	MaxFundingFeePerBlock string `json:"maxFundingFeePerBlock"`
	LastFundingBlock      uint64 `json:"lastFundingBlock"`
	LongOI                string `json:"longOI"`
	ShortOI               string `json:"shortOI"`
	MaxOI                 string `json:"maxOI"`
	HillInflectionPoint   string `json:"hillInflectionPoint"`
	HillPosScale          string `json:"hillPosScale"`
	HillNegScale          string `json:"hillNegScale"`
	SpringFactor          string `json:"springFactor"`
	SFactorUpScaleP       string `json:"sFactorUpScaleP"`
	SFactorDownScaleP     string `json:"sFactorDownScaleP"`

	AccRollover         string `json:"accRollover"`
	LastRolloverBlock   uint64 `json:"lastRolloverBlock"`
	RolloverFeePerBlock string `json:"rolloverFeePerBlock"`
}

// Parse descales every raw field into a PairState. The first malformed
// field aborts with a *fixedpoint.FormatError.
func (r *PairStateRaw) Parse() (*PairState, error) {
	p := &PairState{
		ID:                r.ID,
		Symbol:            r.Symbol,
		LastFundingBlock:  r.LastFundingBlock,
		LastRolloverBlock: r.LastRolloverBlock,
		UpdatedAt:         time.Now().UTC(),
	}

	fields := []struct {
		dst   *decimal.Decimal
		raw   string
		scale fixedpoint.Scale
	}{
		{&p.AccFundingLong, r.AccFundingLong, fixedpoint.Scale18},
		{&p.AccFundingShort, r.AccFundingShort, fixedpoint.Scale18},
		{&p.LastFundingRate, r.LastFundingRate, fixedpoint.Scale18},
		{&p.MaxFundingFeePerBlock, r.MaxFundingFeePerBlock, fixedpoint.Scale18},
		{&p.LongOI, r.LongOI, fixedpoint.Scale6},
		{&p.ShortOI, r.ShortOI, fixedpoint.Scale6},
		{&p.MaxOI, r.MaxOI, fixedpoint.Scale6},
		{&p.HillInflectionPoint, r.HillInflectionPoint, fixedpoint.Scale18},
		{&p.HillPosScale, r.HillPosScale, fixedpoint.Scale2},
		{&p.HillNegScale, r.HillNegScale, fixedpoint.Scale2},
		{&p.SpringFactor, r.SpringFactor, fixedpoint.Scale18},
		{&p.SFactorUpScaleP, r.SFactorUpScaleP, fixedpoint.Scale2},
		{&p.SFactorDownScaleP, r.SFactorDownScaleP, fixedpoint.Scale2},
		{&p.AccRollover, r.AccRollover, fixedpoint.Scale18},
		{&p.RolloverFeePerBlock, r.RolloverFeePerBlock, fixedpoint.Scale18},
	}
	for _, f := range fields {
		d, err := fixedpoint.FromRaw(f.raw, f.scale)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return p, nil
}

// TradeStateRaw carries a position snapshot in on-chain fixed point.
type TradeStateRaw struct {
	ID     string `json:"id"`
	Trader string `json:"trader"`

	Collateral      string `json:"collateral"`
	Leverage        string `json:"leverage"`
	HighestLeverage string `json:"highestLeverage"`
	OpenPrice       string `json:"openPrice"`
	IsBuy           bool   `json:"isBuy"`
	Rollover        string `json:"rollover"`
	Funding         string `json:"funding"`
}

// Parse descales every raw field into a TradeState. The pair reference
// is attached by the caller.
func (r *TradeStateRaw) Parse() (*TradeState, error) {
	t := &TradeState{
		ID:       r.ID,
		Trader:   r.Trader,
		IsBuy:    r.IsBuy,
		OpenedAt: time.Now().UTC(),
	}

	fields := []struct {
		dst   *decimal.Decimal
		raw   string
		scale fixedpoint.Scale
	}{
		{&t.Collateral, r.Collateral, fixedpoint.Scale6},
		{&t.Leverage, r.Leverage, fixedpoint.Scale2},
		{&t.HighestLeverage, r.HighestLeverage, fixedpoint.Scale2},
		{&t.OpenPrice, r.OpenPrice, fixedpoint.Scale18},
		{&t.Rollover, r.Rollover, fixedpoint.Scale18},
		{&t.Funding, r.Funding, fixedpoint.Scale18},
	}
	for _, f := range fields {
		d, err := fixedpoint.FromRaw(f.raw, f.scale)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return t, nil
}
