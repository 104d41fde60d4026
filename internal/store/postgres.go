package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/perpx/trade-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const pairColumns = `id, symbol,
	acc_funding_long::TEXT, acc_funding_short::TEXT, last_funding_rate::TEXT,
	max_funding_fee_per_block::TEXT, last_funding_block,
	long_oi::TEXT, short_oi::TEXT, max_oi::TEXT,
	hill_inflection_point::TEXT, hill_pos_scale::TEXT, hill_neg_scale::TEXT,
	spring_factor::TEXT, s_factor_up_scale_p::TEXT, s_factor_down_scale_p::TEXT,
	acc_rollover::TEXT, last_rollover_block, rollover_fee_per_block::TEXT,
	updated_at`

func (s *PostgresStore) UpsertPair(ctx context.Context, p *model.PairState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pairs (id, symbol,
			acc_funding_long, acc_funding_short, last_funding_rate,
			max_funding_fee_per_block, last_funding_block,
			long_oi, short_oi, max_oi,
			hill_inflection_point, hill_pos_scale, hill_neg_scale,
			spring_factor, s_factor_up_scale_p, s_factor_down_scale_p,
			acc_rollover, last_rollover_block, rollover_fee_per_block,
			updated_at)
		 VALUES ($1, $2,
			$3::NUMERIC, $4::NUMERIC, $5::NUMERIC,
			$6::NUMERIC, $7,
			$8::NUMERIC, $9::NUMERIC, $10::NUMERIC,
			$11::NUMERIC, $12::NUMERIC, $13::NUMERIC,
			$14::NUMERIC, $15::NUMERIC, $16::NUMERIC,
			$17::NUMERIC, $18, $19::NUMERIC,
			$20)
		 ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			acc_funding_long = EXCLUDED.acc_funding_long,
			acc_funding_short = EXCLUDED.acc_funding_short,
			last_funding_rate = EXCLUDED.last_funding_rate,
			max_funding_fee_per_block = EXCLUDED.max_funding_fee_per_block,
			last_funding_block = EXCLUDED.last_funding_block,
			long_oi = EXCLUDED.long_oi,
			short_oi = EXCLUDED.short_oi,
			max_oi = EXCLUDED.max_oi,
			hill_inflection_point = EXCLUDED.hill_inflection_point,
			hill_pos_scale = EXCLUDED.hill_pos_scale,
			hill_neg_scale = EXCLUDED.hill_neg_scale,
			spring_factor = EXCLUDED.spring_factor,
			s_factor_up_scale_p = EXCLUDED.s_factor_up_scale_p,
			s_factor_down_scale_p = EXCLUDED.s_factor_down_scale_p,
			acc_rollover = EXCLUDED.acc_rollover,
			last_rollover_block = EXCLUDED.last_rollover_block,
			rollover_fee_per_block = EXCLUDED.rollover_fee_per_block,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Symbol,
		p.AccFundingLong.String(), p.AccFundingShort.String(), p.LastFundingRate.String(),
		p.MaxFundingFeePerBlock.String(), p.LastFundingBlock,
		p.LongOI.String(), p.ShortOI.String(), p.MaxOI.String(),
		p.HillInflectionPoint.String(), p.HillPosScale.String(), p.HillNegScale.String(),
		p.SpringFactor.String(), p.SFactorUpScaleP.String(), p.SFactorDownScaleP.String(),
		p.AccRollover.String(), p.LastRolloverBlock, p.RolloverFeePerBlock.String(),
		p.UpdatedAt,
	)
	return err
}

// pgxRow covers both pgx.Row and pgx.Rows for shared scan helpers.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanPair(row pgxRow) (*model.PairState, error) {
	var p model.PairState
	var accFL, accFS, lastRate, maxRate string
	var longOI, shortOI, maxOI string
	var inflection, posScale, negScale string
	var spring, upScale, downScale string
	var accRoll, rollPerBlock string

	if err := row.Scan(&p.ID, &p.Symbol,
		&accFL, &accFS, &lastRate,
		&maxRate, &p.LastFundingBlock,
		&longOI, &shortOI, &maxOI,
		&inflection, &posScale, &negScale,
		&spring, &upScale, &downScale,
		&accRoll, &p.LastRolloverBlock, &rollPerBlock,
		&p.UpdatedAt); err != nil {
		return nil, err
	}

	p.AccFundingLong, _ = decimal.NewFromString(accFL)
	p.AccFundingShort, _ = decimal.NewFromString(accFS)
	p.LastFundingRate, _ = decimal.NewFromString(lastRate)
	p.MaxFundingFeePerBlock, _ = decimal.NewFromString(maxRate)
	p.LongOI, _ = decimal.NewFromString(longOI)
	p.ShortOI, _ = decimal.NewFromString(shortOI)
	p.MaxOI, _ = decimal.NewFromString(maxOI)
	p.HillInflectionPoint, _ = decimal.NewFromString(inflection)
	p.HillPosScale, _ = decimal.NewFromString(posScale)
	p.HillNegScale, _ = decimal.NewFromString(negScale)
	p.SpringFactor, _ = decimal.NewFromString(spring)
	p.SFactorUpScaleP, _ = decimal.NewFromString(upScale)
	p.SFactorDownScaleP, _ = decimal.NewFromString(downScale)
	p.AccRollover, _ = decimal.NewFromString(accRoll)
	p.RolloverFeePerBlock, _ = decimal.NewFromString(rollPerBlock)

	return &p, nil
}

func (s *PostgresStore) GetPair(ctx context.Context, id string) (*model.PairState, error) {
	p, err := scanPair(s.pool.QueryRow(ctx,
		`SELECT `+pairColumns+` FROM pairs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get pair %s: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) GetPairBySymbol(ctx context.Context, symbol string) (*model.PairState, error) {
	p, err := scanPair(s.pool.QueryRow(ctx,
		`SELECT `+pairColumns+` FROM pairs WHERE symbol = $1`, symbol))
	if err != nil {
		return nil, fmt.Errorf("get pair by symbol %s: %w", symbol, err)
	}
	return p, nil
}

func (s *PostgresStore) ListPairs(ctx context.Context) ([]model.PairState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pairColumns+` FROM pairs ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []model.PairState
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, *p)
	}
	return pairs, rows.Err()
}

func (s *PostgresStore) SaveTrade(ctx context.Context, t *model.TradeState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, trader, pair_id,
			collateral, leverage, highest_leverage, open_price, is_buy,
			rollover, funding, opened_at)
		 VALUES ($1, $2, $3,
			$4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8,
			$9::NUMERIC, $10::NUMERIC, $11)
		 ON CONFLICT (id) DO UPDATE SET
			collateral = EXCLUDED.collateral,
			leverage = EXCLUDED.leverage,
			highest_leverage = EXCLUDED.highest_leverage,
			open_price = EXCLUDED.open_price,
			is_buy = EXCLUDED.is_buy,
			rollover = EXCLUDED.rollover,
			funding = EXCLUDED.funding`,
		t.ID, t.Trader, t.PairID,
		t.Collateral.String(), t.Leverage.String(), t.HighestLeverage.String(),
		t.OpenPrice.String(), t.IsBuy,
		t.Rollover.String(), t.Funding.String(), t.OpenedAt,
	)
	return err
}

const tradeColumns = `id, trader, pair_id,
	collateral::TEXT, leverage::TEXT, highest_leverage::TEXT,
	open_price::TEXT, is_buy, rollover::TEXT, funding::TEXT, opened_at`

func scanTrade(row pgxRow) (*model.TradeState, error) {
	var t model.TradeState
	var coll, lev, highLev, openPrice, rollover, funding string

	if err := row.Scan(&t.ID, &t.Trader, &t.PairID,
		&coll, &lev, &highLev,
		&openPrice, &t.IsBuy, &rollover, &funding, &t.OpenedAt); err != nil {
		return nil, err
	}

	t.Collateral, _ = decimal.NewFromString(coll)
	t.Leverage, _ = decimal.NewFromString(lev)
	t.HighestLeverage, _ = decimal.NewFromString(highLev)
	t.OpenPrice, _ = decimal.NewFromString(openPrice)
	t.Rollover, _ = decimal.NewFromString(rollover)
	t.Funding, _ = decimal.NewFromString(funding)

	return &t, nil
}

func (s *PostgresStore) GetTrade(ctx context.Context, id string) (*model.TradeState, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	pair, err := s.GetPair(ctx, t.PairID)
	if err != nil {
		return nil, err
	}
	t.Pair = pair
	return t, nil
}

func (s *PostgresStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE trader = $1 ORDER BY opened_at`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeState
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach pair snapshots, one lookup per distinct pair.
	pairs := make(map[string]*model.PairState)
	for i := range trades {
		p, ok := pairs[trades[i].PairID]
		if !ok {
			p, err = s.GetPair(ctx, trades[i].PairID)
			if err != nil {
				return nil, err
			}
			pairs[trades[i].PairID] = p
		}
		cp := *p
		trades[i].Pair = &cp
	}
	return trades, nil
}

func (s *PostgresStore) DeleteTrade(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s not found", id)
	}
	return nil
}
