package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Aidin1998/pincex_sim/api/responses"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/bots"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/factory"
	"github.com/Aidin1998/pincex_sim/internal/simulation"
	"github.com/Aidin1998/pincex_sim/internal/trading/engine"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	apierrors "github.com/Aidin1998/pincex_sim/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultDepth      = 20
	defaultTradeLimit = 100
	maxDeployCount    = 100
)

// Handlers serves the simulator API.
type Handlers struct {
	logger     *zap.Logger
	sim        *simulation.Simulation
	strategies *factory.StrategyFactory
	instrument model.Instrument
}

func New(logger *zap.Logger, sim *simulation.Simulation, strategies *factory.StrategyFactory, instrument model.Instrument) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{logger: logger, sim: sim, strategies: strategies, instrument: instrument}
}

type PlaceOrderRequest struct {
	Side  string          `json:"side" binding:"required"`
	Kind  string          `json:"kind"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type PlaceOrderResponse struct {
	Order  OrderView   `json:"order"`
	Trades []TradeView `json:"trades"`
}

// PlaceOrder submits a manual order straight to the engine.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, apierrors.FromBindingError(err, c.Request.URL.Path))
		return
	}
	side, err := model.ParseSide(req.Side)
	if err != nil {
		responses.BadRequest(c, err.Error(), apierrors.ValidationError{Field: "side", Value: req.Side, Message: "must be BID or ASK", Code: "oneof"})
		return
	}
	kind := model.KindLimit
	if req.Kind != "" {
		if kind, err = model.ParseKind(req.Kind); err != nil {
			responses.BadRequest(c, err.Error(), apierrors.ValidationError{Field: "kind", Value: req.Kind, Message: "must be LIMIT or MARKET", Code: "oneof"})
			return
		}
	}
	if !req.Size.IsPositive() {
		responses.BadRequest(c, "size must be positive", apierrors.ValidationError{Field: "size", Value: req.Size, Message: "must be positive", Code: "gt"})
		return
	}
	var price model.Price
	if kind == model.KindLimit {
		if price, err = h.instrument.ToTicks(req.Price); err != nil || price <= 0 {
			responses.Error(c, apierrors.NewInvalidOrderError(fmt.Sprintf("invalid limit price %s", req.Price), c.Request.URL.Path))
			return
		}
	}

	var (
		order  *model.Order
		trades []model.Trade
	)
	err = h.sim.Exec(c.Request.Context(), func() error {
		eng := h.sim.Engine()
		var err error
		order, trades, err = eng.Submit(c.Request.Context(), model.NewOrder(eng.NextOrderID(), uuid.Nil, side, kind, price, req.Size))
		return err
	})
	switch {
	case errors.Is(err, engine.ErrDuplicateOrder):
		responses.Error(c, apierrors.NewConflictError(err.Error(), c.Request.URL.Path))
		return
	case errors.Is(err, model.ErrInvalidOrder):
		responses.Error(c, apierrors.NewInvalidOrderError(err.Error(), c.Request.URL.Path))
		return
	case err != nil:
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	responses.Created(c, PlaceOrderResponse{Order: orderView(h.instrument, order), Trades: tradeViews(h.instrument, trades)})
}

func parseOrderID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		responses.BadRequest(c, "order id must be a positive integer")
		return 0, false
	}
	return id, true
}

// CancelOrder cancels a resting order.
func (h *Handlers) CancelOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	var canceled *model.Order
	if err := h.sim.Exec(c.Request.Context(), func() error {
		canceled = h.sim.Engine().Cancel(c.Request.Context(), id)
		return nil
	}); err != nil {
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	if canceled == nil {
		responses.Error(c, apierrors.NewOrderNotFoundError(fmt.Sprintf("order %d is not resting", id), c.Request.URL.Path))
		return
	}
	responses.Success(c, orderView(h.instrument, canceled), "Order canceled")
}

// GetOrder returns a resting order.
func (h *Handlers) GetOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	var view *OrderView
	if err := h.sim.Exec(c.Request.Context(), func() error {
		if o, found := h.sim.Engine().Order(id); found {
			v := orderView(h.instrument, o)
			view = &v
		}
		return nil
	}); err != nil {
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	if view == nil {
		responses.Error(c, apierrors.NewOrderNotFoundError(fmt.Sprintf("order %d is not resting", id), c.Request.URL.Path))
		return
	}
	responses.Success(c, view)
}

func queryInt(c *gin.Context, key string, def, max int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		responses.BadRequest(c, fmt.Sprintf("%s must be between 1 and %d", key, max),
			apierrors.ValidationError{Field: key, Value: raw, Message: fmt.Sprintf("must be between 1 and %d", max), Code: "range"})
		return 0, false
	}
	return n, true
}

// Book returns the aggregated book to ?depth= levels per side.
func (h *Handlers) Book(c *gin.Context) {
	depth, ok := queryInt(c, "depth", defaultDepth, 1000)
	if !ok {
		return
	}
	var view BookView
	if err := h.sim.Exec(c.Request.Context(), func() error {
		view = bookView(h.instrument, h.sim.Engine().Snapshot(depth))
		return nil
	}); err != nil {
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	responses.Success(c, view)
}

// Top returns best bid, best ask and spread.
func (h *Handlers) Top(c *gin.Context) {
	var view TopView
	if err := h.sim.Exec(c.Request.Context(), func() error {
		eng := h.sim.Engine()
		view = TopView{
			Symbol:    h.instrument.Symbol,
			BestBid:   priceOrNil(h.instrument, eng.BestBid(), 0),
			BestAsk:   priceOrNil(h.instrument, eng.BestAsk(), model.PriceInfinity),
			Spread:    h.instrument.FromTicks(eng.Spread()),
			LastPrice: priceOrNil(h.instrument, eng.LastPrice(), 0),
			Reference: h.instrument.FromTicks(h.sim.Reference().Price()),
		}
		return nil
	}); err != nil {
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	view.Step = h.sim.Steps()
	responses.Success(c, view)
}

// Trades returns the most recent trades, oldest first.
func (h *Handlers) Trades(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultTradeLimit, 1000)
	if !ok {
		return
	}
	var trades []model.Trade
	if err := h.sim.Exec(c.Request.Context(), func() error {
		trades = h.sim.Engine().Trades(limit)
		return nil
	}); err != nil {
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	responses.Success(c, tradeViews(h.instrument, trades))
}

type DeployRequest struct {
	Strategy string                 `json:"strategy" binding:"required"`
	Count    int                    `json:"count" binding:"omitempty,gte=1,lte=100"`
	Params   map[string]interface{} `json:"params"`
}

type DeployResponse struct {
	IDs []uuid.UUID `json:"ids"`
}

// DeployBots deploys count agents of one strategy. Deployment stops at the
// first failure; agents already deployed stay.
func (h *Handlers) DeployBots(c *gin.Context) {
	var req DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, apierrors.FromBindingError(err, c.Request.URL.Path))
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	var ids []uuid.UUID
	err := h.sim.Exec(c.Request.Context(), func() error {
		for i := 0; i < req.Count && i < maxDeployCount; i++ {
			id, err := h.sim.Bots().Deploy(c.Request.Context(), req.Strategy, req.Params)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		problem := h.deployProblem(c, req.Strategy, err)
		if len(ids) > 0 {
			problem.WithExtra("deployed", ids)
		}
		responses.Error(c, problem)
		return
	}
	responses.Created(c, DeployResponse{IDs: ids}, fmt.Sprintf("Deployed %d %s bot(s)", len(ids), req.Strategy))
}

func (h *Handlers) deployProblem(c *gin.Context, strategy string, err error) *apierrors.ProblemDetails {
	path := c.Request.URL.Path
	switch {
	case errors.Is(err, factory.ErrUnknownStrategy):
		p := apierrors.NewUnknownStrategyError(err.Error(), path)
		if s := h.strategies.Suggest(strategy); s != "" {
			p.WithExtra("suggestion", s)
		}
		return p.WithExtra("available", h.strategies.GetAvailableStrategies())
	case errors.Is(err, bots.ErrCapacity):
		return apierrors.NewCapacityError(err.Error(), path)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apierrors.NewServiceUnavailableError(err.Error(), path)
	default:
		return apierrors.NewValidationError(err.Error(), path)
	}
}

// RemoveBot removes one agent.
func (h *Handlers) RemoveBot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		responses.BadRequest(c, "bot id must be a UUID")
		return
	}
	err = h.sim.Exec(c.Request.Context(), func() error {
		return h.sim.Bots().Remove(c.Request.Context(), id)
	})
	switch {
	case errors.Is(err, bots.ErrBotNotFound):
		responses.Error(c, apierrors.NewBotNotFoundError(err.Error(), c.Request.URL.Path))
	case err != nil:
		responses.ServiceUnavailable(c, err.Error())
	default:
		responses.NoContent(c)
	}
}

// ListBots lists agents in deployment order.
func (h *Handlers) ListBots(c *gin.Context) {
	var states interface{}
	if err := h.sim.Exec(c.Request.Context(), func() error {
		states = h.sim.Bots().List()
		return nil
	}); err != nil {
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	responses.Success(c, states)
}

// Strategies lists deployable strategies and their parameters.
func (h *Handlers) Strategies(c *gin.Context) {
	responses.Success(c, h.strategies.GetAllStrategyInfo())
}

// Health reports liveness plus a few loop counters.
func (h *Handlers) Health(c *gin.Context) {
	var agents, resting int
	var stats engine.Stats
	err := h.sim.Exec(c.Request.Context(), func() error {
		agents = h.sim.Bots().Len()
		resting = h.sim.Engine().Resting()
		stats = h.sim.Engine().Stats()
		return nil
	})
	if err != nil {
		responses.ServiceUnavailable(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"symbol":  h.instrument.Symbol,
		"step":    h.sim.Steps(),
		"now":     h.sim.Now().String(),
		"bots":    agents,
		"resting": resting,
		"stats":   stats,
	})
}
