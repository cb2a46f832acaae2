package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ib-trading-desk/internal/broker"
	"ib-trading-desk/internal/database"
	"ib-trading-desk/internal/events"
	"ib-trading-desk/internal/position"
	"ib-trading-desk/internal/pricing"
	"ib-trading-desk/internal/risk"
)

type fakeMarketData struct {
	quote   pricing.Quote
	fiveMin []pricing.Bar
	daily   []pricing.Bar
	summary broker.AccountSummary
}

func (f *fakeMarketData) Quote(ctx context.Context, symbol string) (pricing.Quote, error) {
	return f.quote, nil
}

func (f *fakeMarketData) FiveMinuteBars(ctx context.Context, symbol string) ([]pricing.Bar, error) {
	return f.fiveMin, nil
}

func (f *fakeMarketData) DailyBars(ctx context.Context, symbol string) ([]pricing.Bar, error) {
	return f.daily, nil
}

func (f *fakeMarketData) AccountSummary(ctx context.Context) (broker.AccountSummary, error) {
	return f.summary, nil
}

func newTestServer(t *testing.T) (*Server, *position.Tracker) {
	t.Helper()

	logger := zerolog.Nop()
	tracker := position.NewTracker(logger)
	riskManager := risk.NewManager(risk.Config{
		MaxRiskPerTrade:  1.0,
		MaxDailyDrawdown: 5.0,
		MaxOpenPositions: 5,
	}, logger)
	riskManager.UpdateAccount(100000, 200000)

	market := &fakeMarketData{
		quote: pricing.Quote{Last: 50.00, Bid: 49.99, Ask: 50.01},
		fiveMin: []pricing.Bar{
			{Low: 49.20, High: 50.10, Open: 49.50, Close: 50.00, Timestamp: time.Now().Add(-5 * time.Minute)},
			{Low: 49.40, High: 50.20, Open: 50.00, Close: 50.05, Timestamp: time.Now()},
		},
		summary: broker.AccountSummary{Account: "DU1234567", NetLiquidation: 100000, BuyingPower: 200000},
	}

	server := NewServer(ServerConfig{Port: 0, ProductionMode: true}, Deps{
		Deriver:     pricing.NewDeriver(pricing.Config{}, logger),
		RiskManager: riskManager,
		Tracker:     tracker,
		MarketData:  market,
		Submitter:   broker.NewPaperSubmitter(logger),
		EventBus:    events.NewEventBus(),
	}, logger)

	return server, tracker
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func TestPreviewOrderReportsAllErrors(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/orders/preview", map[string]interface{}{
		"direction": "BUY",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Valid {
		t.Error("Expected invalid preview")
	}
	if len(resp.Errors) < 2 {
		t.Errorf("Expected multiple validation errors, got %v", resp.Errors)
	}
}

func TestPlaceOrderDerivesPricesAndOpensPosition(t *testing.T) {
	server, tracker := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/orders", map[string]interface{}{
		"symbol":    "AAPL",
		"direction": "BUY",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	pos := tracker.Get("AAPL")
	if pos == nil {
		t.Fatal("Expected open position after order placement")
	}
	if pos.Quantity <= 0 {
		t.Errorf("Expected risk-sized quantity, got %d", pos.Quantity)
	}
	if pos.StopLoss >= pos.EntryPrice {
		t.Errorf("Long stop %.2f should sit below entry %.2f", pos.StopLoss, pos.EntryPrice)
	}
}

func TestPlaceOrderRejectsInvalidForm(t *testing.T) {
	server, _ := newTestServer(t)

	// Stop above entry on a BUY fails validation even with explicit prices.
	w := doJSON(t, server, http.MethodPost, "/api/orders", map[string]interface{}{
		"symbol":      "AAPL",
		"direction":   "BUY",
		"quantity":    10,
		"entry_price": 50.0,
		"stop_loss":   51.0,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestClosePositionFullFlow(t *testing.T) {
	server, tracker := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/orders", map[string]interface{}{
		"symbol":    "MSFT",
		"direction": "BUY",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, server, http.MethodPost, "/api/positions/MSFT/close", map[string]interface{}{
		"price": 55.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if tracker.Get("MSFT") != nil {
		t.Error("Expected position to be closed")
	}
	if len(tracker.ClosedPositions()) != 1 {
		t.Errorf("Expected 1 closed position, got %d", len(tracker.ClosedPositions()))
	}
}

func TestClosePositionNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/positions/TSLA/close", map[string]interface{}{
		"price": 100.0,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSuggestOrder(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/orders/suggest?symbol=aapl&direction=BUY", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Symbol     string `json:"symbol"`
			Suggestion struct {
				EntryPrice float64 `json:"entry_price"`
				StopLoss   float64 `json:"stop_loss"`
				TakeProfit float64 `json:"take_profit"`
			} `json:"suggestion"`
			Shares int `json:"shares"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data.Symbol != "AAPL" {
		t.Errorf("Expected normalized symbol AAPL, got %s", resp.Data.Symbol)
	}
	if resp.Data.Suggestion.EntryPrice != 50.01 {
		t.Errorf("Expected ask entry 50.01, got %.4f", resp.Data.Suggestion.EntryPrice)
	}
	if resp.Data.Suggestion.StopLoss >= resp.Data.Suggestion.EntryPrice {
		t.Error("Long stop should sit below entry")
	}
	if resp.Data.Shares <= 0 {
		t.Errorf("Expected positive suggested share count, got %d", resp.Data.Shares)
	}
}

func TestAuthStatusWithoutAuth(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/auth/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["auth_enabled"] {
		t.Error("Expected auth_enabled false")
	}
}

func TestHealthReportsPositionStoreState(t *testing.T) {
	server, _ := newTestServer(t)
	server.deps.PositionStore = database.NewPositionStateStore(nil, zerolog.Nop())

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %s", resp["status"])
	}
	if resp["redis"] != "degraded" {
		t.Errorf("Expected degraded redis without a client, got %s", resp["redis"])
	}
}

func TestAccountSummaryFallsBackToRiskManager(t *testing.T) {
	server, _ := newTestServer(t)
	server.deps.MarketData = nil

	w := doJSON(t, server, http.MethodGet, "/api/account", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			NetLiquidation float64 `json:"net_liquidation"`
			Stale          bool    `json:"stale"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data.NetLiquidation != 100000 {
		t.Errorf("Expected last known value 100000, got %.2f", resp.Data.NetLiquidation)
	}
	if !resp.Data.Stale {
		t.Error("Expected stale flag on fallback response")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("/api/test") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("/api/test") {
		t.Error("Fourth request should be rejected")
	}
	if !limiter.Allow("/api/other") {
		t.Error("Different endpoint should have its own budget")
	}
}
