package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/perpx/trade-engine/internal/model"
	"github.com/perpx/trade-engine/internal/store"
	"github.com/perpx/trade-engine/internal/trade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*trade.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := trade.NewService(ms, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/pairs", svc.UpsertPair)
	r.Get("/api/v1/pairs", svc.ListPairs)
	r.Get("/api/v1/pairs/{pairID}", svc.GetPair)
	r.Get("/api/v1/pairs/{pairID}/funding", svc.GetFundingRates)
	r.Post("/api/v1/trades", svc.OpenTrade)
	r.Get("/api/v1/trades/{tradeID}", svc.GetTrade)
	r.Delete("/api/v1/trades/{tradeID}", svc.CloseTrade)
	r.Post("/api/v1/trades/{tradeID}/metrics", svc.GetTradeMetrics)
	r.Get("/api/v1/traders/{trader}/trades", svc.ListTraderTrades)

	return svc, ms, r
}

// seedPair stores a pair snapshot directly, in human units.
func seedPair(t *testing.T, ms *store.MemoryStore, id string, longOI, shortOI float64, block uint64) *model.PairState {
	t.Helper()
	p := &model.PairState{
		ID:                    id,
		Symbol:                "BTC/USD",
		MaxFundingFeePerBlock: d(0.05),
		LastFundingBlock:      block,
		LongOI:                d(longOI),
		ShortOI:               d(shortOI),
		MaxOI:                 d(100000),
		HillInflectionPoint:   d(0.1),
		HillPosScale:          d(0.94),
		HillNegScale:          d(1.15),
		SpringFactor:          d(0.000005),
		SFactorUpScaleP:       d(130),
		SFactorDownScaleP:     d(90),
		LastRolloverBlock:     block,
		UpdatedAt:             time.Now().UTC(),
	}
	if err := ms.UpsertPair(context.Background(), p); err != nil {
		t.Fatalf("failed to seed pair: %v", err)
	}
	return p
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// rawPair is a valid indexer payload: 18-decimal rates and prices,
// 6-decimal open interest, 2-decimal percentages.
func rawPair(id string) model.PairStateRaw {
	return model.PairStateRaw{
		ID:                    id,
		Symbol:                "BTC/USD",
		AccFundingLong:        "0",
		AccFundingShort:       "0",
		LastFundingRate:       "0",
		MaxFundingFeePerBlock: "50000000000000000",
		LastFundingBlock:      100,
		LongOI:                "50000000000",
		ShortOI:               "30000000000",
		MaxOI:                 "100000000000",
		HillInflectionPoint:   "100000000000000000",
		HillPosScale:          "94",
		HillNegScale:          "115",
		SpringFactor:          "5000000000000",
		SFactorUpScaleP:       "13000",
		SFactorDownScaleP:     "9000",
		AccRollover:           "0",
		LastRolloverBlock:     100,
		RolloverFeePerBlock:   "1000000000000",
	}
}

// rawTrade is a valid position payload: 100 collateral at 10x long
// opened at 60000.
func rawTrade(id string) model.TradeStateRaw {
	return model.TradeStateRaw{
		ID:              id,
		Trader:          "0xabc",
		Collateral:      "100000000",
		Leverage:        "1000",
		HighestLeverage: "1000",
		OpenPrice:       "60000000000000000000000",
		IsBuy:           true,
		Rollover:        "0",
		Funding:         "0",
	}
}

// --- Pair ingestion tests ---

func TestUpsertPair_Descaling(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/pairs", rawPair("pair-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var p model.PairState
	json.Unmarshal(w.Body.Bytes(), &p)

	if !p.LongOI.Equal(d(50000)) {
		t.Errorf("long OI should descale to 50000, got %s", p.LongOI)
	}
	if !p.MaxFundingFeePerBlock.Equal(d(0.05)) {
		t.Errorf("max funding fee should descale to 0.05, got %s", p.MaxFundingFeePerBlock)
	}
	if !p.SFactorUpScaleP.Equal(d(130)) {
		t.Errorf("up scale should descale to 130, got %s", p.SFactorUpScaleP)
	}
}

func TestUpsertPair_MalformedField(t *testing.T) {
	_, _, router := newTestEnv(t)

	raw := rawPair("pair-1")
	raw.LongOI = "not-a-number"

	w := doJSON(t, router, "POST", "/api/v1/pairs", raw)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed field, got %d", w.Code)
	}
}

func TestUpsertPair_FractionalRawRejected(t *testing.T) {
	_, _, router := newTestEnv(t)

	raw := rawPair("pair-1")
	raw.ShortOI = "30000000000.5"

	w := doJSON(t, router, "POST", "/api/v1/pairs", raw)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for fractional raw value, got %d", w.Code)
	}
}

func TestGetPair_NotFound(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/pairs/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

// --- Funding rate tests ---

func TestGetFundingRates_LongsPay(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 60000, 30000, 100)

	w := doJSON(t, router, "GET", "/api/v1/pairs/pair-1/funding?block=200", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.FundingRatesResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if !resp.LongRate.IsNegative() {
		t.Errorf("longs should pay on a long-heavy book, got %s", resp.LongRate)
	}
	if !resp.ShortRate.IsPositive() {
		t.Errorf("shorts should receive on a long-heavy book, got %s", resp.ShortRate)
	}
}

func TestGetFundingRates_BalancedBook(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 40000, 40000, 100)

	w := doJSON(t, router, "GET", "/api/v1/pairs/pair-1/funding?block=200", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.FundingRatesResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if !resp.LongRate.IsZero() || !resp.ShortRate.IsZero() {
		t.Errorf("balanced book should have zero rates, got %s / %s", resp.LongRate, resp.ShortRate)
	}
}

func TestGetFundingRates_MissingBlock(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 60000, 30000, 100)

	w := doJSON(t, router, "GET", "/api/v1/pairs/pair-1/funding", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without block param, got %d", w.Code)
	}
}

func TestGetFundingRates_StaleBlock(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 60000, 30000, 100)

	w := doJSON(t, router, "GET", "/api/v1/pairs/pair-1/funding?block=50", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for block before settlement, got %d", w.Code)
	}
}

// --- Trade lifecycle tests ---

func TestOpenTrade_AttachesPair(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 60000, 30000, 100)

	req := trade.OpenTradeRequest{PairID: "pair-1", TradeStateRaw: rawTrade("trade-1")}
	w := doJSON(t, router, "POST", "/api/v1/trades", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var ts model.TradeState
	json.Unmarshal(w.Body.Bytes(), &ts)

	if !ts.Collateral.Equal(d(100)) {
		t.Errorf("collateral should descale to 100, got %s", ts.Collateral)
	}
	if !ts.Leverage.Equal(d(10)) {
		t.Errorf("leverage should descale to 10, got %s", ts.Leverage)
	}
	if ts.Pair == nil || ts.Pair.Symbol != "BTC/USD" {
		t.Error("response should include the pair snapshot")
	}
}

func TestOpenTrade_UnknownPair(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := trade.OpenTradeRequest{PairID: "nope", TradeStateRaw: rawTrade("trade-1")}
	w := doJSON(t, router, "POST", "/api/v1/trades", req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown pair, got %d", w.Code)
	}
}

func TestCloseTrade(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 60000, 30000, 100)

	req := trade.OpenTradeRequest{PairID: "pair-1", TradeStateRaw: rawTrade("trade-1")}
	if w := doJSON(t, router, "POST", "/api/v1/trades", req); w.Code != http.StatusCreated {
		t.Fatalf("failed to open trade: %d", w.Code)
	}

	if w := doJSON(t, router, "DELETE", "/api/v1/trades/trade-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := doJSON(t, router, "GET", "/api/v1/trades/trade-1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", w.Code)
	}
}

func TestListTraderTrades(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 60000, 30000, 100)

	for _, id := range []string{"trade-1", "trade-2"} {
		req := trade.OpenTradeRequest{PairID: "pair-1", TradeStateRaw: rawTrade(id)}
		if w := doJSON(t, router, "POST", "/api/v1/trades", req); w.Code != http.StatusCreated {
			t.Fatalf("failed to open trade %s: %d", id, w.Code)
		}
	}

	w := doJSON(t, router, "GET", "/api/v1/traders/0xabc/trades", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var trades []model.TradeState
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
}

// --- Metrics endpoint tests ---

func TestGetTradeMetrics_ProfitableLong(t *testing.T) {
	_, ms, router := newTestEnv(t)
	// Balanced book and zero accumulators: no funding, no rollover.
	p := seedPair(t, ms, "pair-1", 40000, 40000, 100)
	p.RolloverFeePerBlock = decimal.Zero
	if err := ms.UpsertPair(context.Background(), p); err != nil {
		t.Fatalf("failed to reseed pair: %v", err)
	}

	req := trade.OpenTradeRequest{PairID: "pair-1", TradeStateRaw: rawTrade("trade-1")}
	if w := doJSON(t, router, "POST", "/api/v1/trades", req); w.Code != http.StatusCreated {
		t.Fatalf("failed to open trade: %d", w.Code)
	}

	// Price moved 60000 → 60600: a 1% move at 10x on 100 collateral
	// yields 100*10*(600/60000) = 10.
	mreq := trade.MetricsRequest{
		Mid:   "60600000000000000000000",
		Bid:   "60600000000000000000000",
		Ask:   "60600000000000000000000",
		Block: 200,
	}
	w := doJSON(t, router, "POST", "/api/v1/trades/trade-1/metrics", mreq)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var m model.TradeMetrics
	json.Unmarshal(w.Body.Bytes(), &m)

	if !m.Pnl.Equal(d(10)) {
		t.Errorf("pnl should be 10, got %s", m.Pnl)
	}
	if !m.NetValue.Equal(d(110)) {
		t.Errorf("net value should be 110, got %s", m.NetValue)
	}
}

func TestGetTradeMetrics_MalformedPrice(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 40000, 40000, 100)

	req := trade.OpenTradeRequest{PairID: "pair-1", TradeStateRaw: rawTrade("trade-1")}
	if w := doJSON(t, router, "POST", "/api/v1/trades", req); w.Code != http.StatusCreated {
		t.Fatalf("failed to open trade: %d", w.Code)
	}

	mreq := trade.MetricsRequest{Mid: "oops", Bid: "0", Ask: "0", Block: 200}
	w := doJSON(t, router, "POST", "/api/v1/trades/trade-1/metrics", mreq)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed price, got %d", w.Code)
	}
}

func TestGetTradeMetrics_MissingBlock(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedPair(t, ms, "pair-1", 40000, 40000, 100)

	req := trade.OpenTradeRequest{PairID: "pair-1", TradeStateRaw: rawTrade("trade-1")}
	if w := doJSON(t, router, "POST", "/api/v1/trades", req); w.Code != http.StatusCreated {
		t.Fatalf("failed to open trade: %d", w.Code)
	}

	mreq := trade.MetricsRequest{Mid: "0", Bid: "0", Ask: "0"}
	w := doJSON(t, router, "POST", "/api/v1/trades/trade-1/metrics", mreq)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without block, got %d", w.Code)
	}
}
