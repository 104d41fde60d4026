// Package trade provides the HTTP handlers for ingesting pair and trade
// state from the indexer and serving funding rates and per-trade metrics.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perpx/trade-engine/internal/engine"
	"github.com/perpx/trade-engine/internal/fixedpoint"
	"github.com/perpx/trade-engine/internal/metrics"
	"github.com/perpx/trade-engine/internal/model"
	"github.com/perpx/trade-engine/internal/store"
)

// Service handles pair and trade state operations. The engine itself is
// stateless; the service only stores snapshots and evaluates them on
// request.
type Service struct {
	store store.Store
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub) *Service {
	return &Service{
		store: st,
		wsHub: hub,
	}
}

// --- Request/Response types ---

// OpenTradeRequest is the JSON body for POST /trades. The trade fields
// arrive in on-chain fixed point; pair_id names an already-ingested pair.
type OpenTradeRequest struct {
	PairID string `json:"pairId"`
	model.TradeStateRaw
}

// FundingRatesResponse is the JSON body returned from the funding endpoint.
// Rates are per-block and signed from each side's perspective: negative
// means that side pays.
type FundingRatesResponse struct {
	PairID    string          `json:"pair_id"`
	Symbol    string          `json:"symbol"`
	Block     uint64          `json:"block"`
	LongRate  decimal.Decimal `json:"long_rate"`
	ShortRate decimal.Decimal `json:"short_rate"`
}

// MetricsRequest is the JSON body for the metrics endpoint: a price
// snapshot in on-chain fixed point plus the block to evaluate at.
type MetricsRequest struct {
	Mid   string `json:"mid"`
	Bid   string `json:"bid"`
	Ask   string `json:"ask"`
	Block uint64 `json:"block"`
}

// --- HTTP Handlers ---

// UpsertPair handles POST /api/v1/pairs
// Ingests a raw fixed-point pair snapshot from the indexer.
func (s *Service) UpsertPair(w http.ResponseWriter, r *http.Request) {
	var raw model.PairStateRaw
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if raw.ID == "" {
		raw.ID = uuid.New().String()
	}
	if raw.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	pair, err := raw.Parse()
	if err != nil {
		var ferr *fixedpoint.FormatError
		if errors.As(err, &ferr) {
			metrics.ParseFailures.Inc()
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "failed to parse pair state", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := s.store.UpsertPair(ctx, pair); err != nil {
		writeError(w, "failed to store pair", http.StatusInternalServerError)
		return
	}

	if pairs, err := s.store.ListPairs(ctx); err == nil {
		metrics.ActivePairs.Set(float64(len(pairs)))
	}

	slog.Info("pair upserted",
		"id", pair.ID,
		"symbol", pair.Symbol,
		"funding_block", pair.LastFundingBlock,
		"long_oi", pair.LongOI.String(),
		"short_oi", pair.ShortOI.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pair)
}

// ListPairs handles GET /api/v1/pairs
func (s *Service) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.store.ListPairs(r.Context())
	if err != nil {
		writeError(w, "failed to list pairs", http.StatusInternalServerError)
		return
	}
	if pairs == nil {
		pairs = []model.PairState{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pairs)
}

// GetPair handles GET /api/v1/pairs/{pairID}
func (s *Service) GetPair(w http.ResponseWriter, r *http.Request) {
	pairID := chi.URLParam(r, "pairID")

	pair, err := s.store.GetPair(r.Context(), pairID)
	if err != nil {
		writeError(w, "pair not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pair)
}

// GetFundingRates handles GET /api/v1/pairs/{pairID}/funding?block=N
// Projects the stored accumulator state forward to the requested block
// and returns the per-block rate split across sides.
func (s *Service) GetFundingRates(w http.ResponseWriter, r *http.Request) {
	pairID := chi.URLParam(r, "pairID")

	block, err := strconv.ParseUint(r.URL.Query().Get("block"), 10, 64)
	if err != nil || block == 0 {
		writeError(w, "block query parameter is required", http.StatusBadRequest)
		return
	}

	pair, err := s.store.GetPair(r.Context(), pairID)
	if err != nil {
		writeError(w, "pair not found", http.StatusNotFound)
		return
	}
	if block < pair.LastFundingBlock {
		writeError(w, "block precedes last funding settlement", http.StatusBadRequest)
		return
	}

	longRate, shortRate, err := engine.FundingRatesLongShort(pair, block)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	payer := "none"
	switch {
	case longRate.IsNegative():
		payer = "longs"
	case shortRate.IsNegative():
		payer = "shorts"
	}
	metrics.FundingComputations.WithLabelValues(payer).Inc()

	resp := FundingRatesResponse{
		PairID:    pair.ID,
		Symbol:    pair.Symbol,
		Block:     block,
		LongRate:  longRate,
		ShortRate: shortRate,
	}

	// Broadcast the refreshed rates.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "funding_rates",
			PairID:    pair.ID,
			Symbol:    pair.Symbol,
			Block:     block,
			LongRate:  longRate.String(),
			ShortRate: shortRate.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// OpenTrade handles POST /api/v1/trades
// Ingests a raw fixed-point position snapshot tied to a known pair.
func (s *Service) OpenTrade(w http.ResponseWriter, r *http.Request) {
	var req OpenTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PairID == "" {
		writeError(w, "pairId is required", http.StatusBadRequest)
		return
	}
	if req.Trader == "" {
		writeError(w, "trader is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	pair, err := s.store.GetPair(ctx, req.PairID)
	if err != nil {
		writeError(w, "pair not found: "+req.PairID, http.StatusNotFound)
		return
	}

	trade, err := req.TradeStateRaw.Parse()
	if err != nil {
		var ferr *fixedpoint.FormatError
		if errors.As(err, &ferr) {
			metrics.ParseFailures.Inc()
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "failed to parse trade state", http.StatusBadRequest)
		return
	}
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	trade.PairID = pair.ID

	if err := s.store.SaveTrade(ctx, trade); err != nil {
		writeError(w, "failed to store trade", http.StatusInternalServerError)
		return
	}
	trade.Pair = pair

	slog.Info("trade stored",
		"trade_id", trade.ID,
		"trader", trade.Trader,
		"pair", pair.Symbol,
		"collateral", trade.Collateral.String(),
		"leverage", trade.Leverage.String(),
		"is_buy", trade.IsBuy,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(trade)
}

// GetTrade handles GET /api/v1/trades/{tradeID}
func (s *Service) GetTrade(w http.ResponseWriter, r *http.Request) {
	tradeID := chi.URLParam(r, "tradeID")

	trade, err := s.store.GetTrade(r.Context(), tradeID)
	if err != nil {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trade)
}

// ListTraderTrades handles GET /api/v1/traders/{trader}/trades
func (s *Service) ListTraderTrades(w http.ResponseWriter, r *http.Request) {
	trader := chi.URLParam(r, "trader")

	trades, err := s.store.GetTradesByTrader(r.Context(), trader)
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeState{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// CloseTrade handles DELETE /api/v1/trades/{tradeID}
func (s *Service) CloseTrade(w http.ResponseWriter, r *http.Request) {
	tradeID := chi.URLParam(r, "tradeID")

	if err := s.store.DeleteTrade(r.Context(), tradeID); err != nil {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}

	slog.Info("trade closed", "trade_id", tradeID)
	w.WriteHeader(http.StatusNoContent)
}

// GetTradeMetrics handles POST /api/v1/trades/{tradeID}/metrics
// Evaluates the full metric set for a stored trade against a caller-
// supplied price snapshot and block height.
func (s *Service) GetTradeMetrics(w http.ResponseWriter, r *http.Request) {
	tradeID := chi.URLParam(r, "tradeID")

	var req MetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Block == 0 {
		writeError(w, "block is required", http.StatusBadRequest)
		return
	}

	price, err := parsePriceSnapshot(&req)
	if err != nil {
		metrics.ParseFailures.Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	trade, err := s.store.GetTrade(r.Context(), tradeID)
	if err != nil {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}

	start := time.Now()
	m, err := engine.TradeMetrics(trade, price, req.Block)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	metrics.MetricsComputations.Inc()
	metrics.MetricsLatency.Observe(time.Since(start).Seconds())

	slog.Info("trade metrics computed",
		"trade_id", trade.ID,
		"block", req.Block,
		"net_value", m.NetValue.String(),
		"liq_price", m.LiquidationPrice.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// parsePriceSnapshot descales the raw 18-decimal quote triplet.
func parsePriceSnapshot(req *MetricsRequest) (*model.PriceSnapshot, error) {
	var snap model.PriceSnapshot
	fields := []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&snap.Mid, req.Mid},
		{&snap.Bid, req.Bid},
		{&snap.Ask, req.Ask},
	}
	for _, f := range fields {
		d, err := fixedpoint.FromRaw(f.raw, fixedpoint.Scale18)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return &snap, nil
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
