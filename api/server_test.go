package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Aidin1998/pincex_sim/api"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/bots"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/factory"
	"github.com/Aidin1998/pincex_sim/internal/simulation"
	"github.com/Aidin1998/pincex_sim/internal/simulation/latency"
	"github.com/Aidin1998/pincex_sim/internal/trading/engine"
	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func setupRouter(t *testing.T, capacity int) (*gin.Engine, *simulation.Simulation) {
	t.Helper()
	return setupRouterWith(t, capacity, api.Options{})
}

func setupRouterWith(t *testing.T, capacity int, opts api.Options) (*gin.Engine, *simulation.Simulation) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	book, err := orderbook.New(orderbook.Options{})
	require.NoError(t, err)
	bus := events.NewInMemoryEventBus(nil)
	eng := engine.New(nil, book, bus)
	lat := latency.New(latency.Config{Min: time.Millisecond, Max: 5 * time.Millisecond, Seed: 1}, nil)
	strategies := factory.NewStrategyFactory()
	mgr := bots.NewManager(nil, bots.Config{Capacity: capacity, Seed: 1}, strategies, eng, lat, bus)
	sim := simulation.New(nil, simulation.Config{ReferencePrice: 10000}, eng, lat, mgr)
	inst := model.NewInstrument("SIM-USD", decimal.New(1, -2))
	srv := api.NewServer(nil, sim, strategies, inst, nil, opts)
	return srv.Router(), sim
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func problem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p), w.Body.String())
	return p
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupRouter(t, 10)
	w := do(t, r, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "SIM-USD", resp["symbol"])
}

func TestHealthCheck_CanceledRequest(t *testing.T) {
	r, _ := setupRouter(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	problem(t, w)
}

func TestOrders_RestMatchAndCancel(t *testing.T) {
	r, _ := setupRouter(t, 10)

	w := do(t, r, http.MethodPost, "/api/v1/orders", map[string]interface{}{"side": "SELL", "price": "100.05", "size": "2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed struct {
		Order struct {
			ID         uint64 `json:"id"`
			Status     string `json:"status"`
			PriceTicks int64  `json:"price_ticks"`
		} `json:"order"`
		Trades []json.RawMessage `json:"trades"`
	}
	decode(t, w, &placed)
	assert.Equal(t, "OPEN", placed.Order.Status)
	assert.Equal(t, int64(10005), placed.Order.PriceTicks)
	assert.Empty(t, placed.Trades)
	askID := placed.Order.ID

	w = do(t, r, http.MethodGet, "/api/v1/book/top", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var top struct {
		BestBid *string `json:"best_bid"`
		BestAsk *string `json:"best_ask"`
	}
	decode(t, w, &top)
	assert.Nil(t, top.BestBid)
	require.NotNil(t, top.BestAsk)
	assert.Equal(t, "100.05", *top.BestAsk)

	w = do(t, r, http.MethodPost, "/api/v1/orders", map[string]interface{}{"side": "BID", "kind": "MARKET", "size": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &placed)
	assert.Equal(t, "FILLED", placed.Order.Status)
	assert.Len(t, placed.Trades, 1)

	w = do(t, r, http.MethodGet, "/api/v1/trades?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trades []map[string]interface{}
	decode(t, w, &trades)
	require.Len(t, trades, 1)
	assert.Equal(t, "100.05", trades[0]["price"])

	w = do(t, r, http.MethodGet, "/api/v1/orders/"+itoa(askID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/orders/"+itoa(askID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodDelete, "/api/v1/orders/"+itoa(askID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, problem(t, w)["type"], "order-not-found")
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func TestOrders_MarketWithoutLiquidityIsRejected(t *testing.T) {
	r, _ := setupRouter(t, 10)
	w := do(t, r, http.MethodPost, "/api/v1/orders", map[string]interface{}{"side": "ASK", "kind": "MARKET", "size": "3"})
	require.Equal(t, http.StatusCreated, w.Code)
	var placed struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
	}
	decode(t, w, &placed)
	assert.Equal(t, "REJECTED", placed.Order.Status)
}

func TestOrders_Validation(t *testing.T) {
	r, _ := setupRouter(t, 10)
	cases := []map[string]interface{}{
		{"price": "1", "size": "1"},
		{"side": "UP", "price": "1", "size": "1"},
		{"side": "BID", "kind": "STOP", "price": "1", "size": "1"},
		{"side": "BID", "price": "1", "size": "0"},
		{"side": "BID", "price": "1.001", "size": "1"},
		{"side": "BID", "size": "1"},
		{"side": "BID", "price": "184467440737095516.17", "size": "1"},
		{"side": "ASK", "price": "92233720368547758.07", "size": "1"},
	}
	for _, body := range cases {
		w := do(t, r, http.MethodPost, "/api/v1/orders", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v -> %s", body, w.Body.String())
		problem(t, w)
	}

	w := do(t, r, http.MethodGet, "/api/v1/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/book?depth=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBook_Depth(t *testing.T) {
	r, _ := setupRouter(t, 10)
	for _, p := range []string{"99.00", "98.00", "97.00"} {
		w := do(t, r, http.MethodPost, "/api/v1/orders", map[string]interface{}{"side": "BID", "price": p, "size": "1"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := do(t, r, http.MethodGet, "/api/v1/book?depth=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var book struct {
		Bids []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []json.RawMessage `json:"asks"`
	}
	decode(t, w, &book)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, "99", book.Bids[0].Price)
	assert.Equal(t, "98", book.Bids[1].Price)
	assert.Empty(t, book.Asks)
}

func TestBots_DeployListRemove(t *testing.T) {
	r, sim := setupRouter(t, 3)

	w := do(t, r, http.MethodPost, "/api/v1/bots", map[string]interface{}{"strategy": "noise", "count": 2, "params": map[string]interface{}{"probability": 0.5}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var deployed struct {
		IDs []string `json:"ids"`
	}
	decode(t, w, &deployed)
	require.Len(t, deployed.IDs, 2)

	w = do(t, r, http.MethodPost, "/api/v1/bots", map[string]interface{}{"strategy": "whale", "count": 2})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	p := problem(t, w)
	assert.Contains(t, p["type"], "bot-capacity")
	assert.Len(t, p["deployed"], 1)

	w = do(t, r, http.MethodGet, "/api/v1/bots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	decode(t, w, &list)
	require.Len(t, list, 3)
	assert.Equal(t, "noise", list[0]["strategy"])

	sim.Step(context.Background())

	w = do(t, r, http.MethodDelete, "/api/v1/bots/"+deployed.IDs[0], nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/api/v1/bots/"+deployed.IDs[0], nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodDelete, "/api/v1/bots/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBots_UnknownStrategySuggests(t *testing.T) {
	r, _ := setupRouter(t, 3)
	w := do(t, r, http.MethodPost, "/api/v1/bots", map[string]interface{}{"strategy": "snipr"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	p := problem(t, w)
	assert.Equal(t, "sniper", p["suggestion"])
	assert.True(t, strings.HasSuffix(p["type"].(string), "unknown-strategy"))

	w = do(t, r, http.MethodPost, "/api/v1/bots", map[string]interface{}{"strategy": "market_maker", "params": map[string]interface{}{"spread_ticks": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStrategiesAndMetrics(t *testing.T) {
	r, _ := setupRouter(t, 3)
	w := do(t, r, http.MethodGet, "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var infos []map[string]interface{}
	decode(t, w, &infos)
	assert.Len(t, infos, 7)

	w = do(t, r, http.MethodGet, "/api/v1/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pincex_sim_")

	w = do(t, r, http.MethodGet, "/api/v1/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrders_RateLimited(t *testing.T) {
	r, _ := setupRouterWith(t, 10, api.Options{RateLimit: 0.001, RateBurst: 2})
	order := map[string]interface{}{"side": "BID", "price": "99.00", "size": "1"}

	assert.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/v1/orders", order).Code)
	assert.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/v1/orders", order).Code)
	w := do(t, r, http.MethodPost, "/api/v1/orders", order)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, problem(t, w)["type"], "rate-limited")

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/v1/book", nil).Code)
}
