// Package engine matches incoming orders against the limit order book.
//
// The engine is the only writer of the book. It is not safe for concurrent use:
// callers serialize access (the simulation loop owns it). Every call runs the
// full matching loop for one order before returning.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/Aidin1998/pincex_sim/internal/trading/sequence"
	"github.com/Aidin1998/pincex_sim/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultHistorySize = 1000

var ErrDuplicateOrder = errors.New("duplicate order id")

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source stamped on orders and trades.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHistorySize bounds the number of trades kept for Trades.
func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.history = newTradeRing(n)
		}
	}
}

// Engine represents the matching engine for a single instrument.
type Engine struct {
	logger   *zap.Logger
	book     *orderbook.OrderBook
	bus      events.EventBus
	now      func() time.Time
	orderIDs *sequence.Sequencer
	arrivals *sequence.Sequencer
	tradeSeq *sequence.Sequencer
	history  *tradeRing
	stats    *Collector
	last     model.Price
}

// New creates an engine over book, publishing on bus.
func New(logger *zap.Logger, book *orderbook.OrderBook, bus events.EventBus, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:   logger,
		book:     book,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
		orderIDs: sequence.New(0),
		arrivals: sequence.New(0),
		tradeSeq: sequence.New(0),
		history:  newTradeRing(defaultHistorySize),
		stats:    NewCollector(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NextOrderID reserves an order id ahead of submission.
func (e *Engine) NextOrderID() uint64 {
	return e.orderIDs.Next()
}

// Submit matches order against the book. Limit remainders rest; market
// remainders are dropped and the order ends Rejected. A Rejected outcome is not
// an error; err is only set for invalid or duplicate orders.
func (e *Engine) Submit(ctx context.Context, order *model.Order) (*model.Order, []model.Trade, error) {
	start := time.Now()
	if order.ID == 0 {
		order.ID = e.NextOrderID()
	}
	if err := order.Validate(); err != nil {
		e.reject(ctx, order, events.ReasonInvalid)
		return order, nil, err
	}
	if _, exists := e.book.Get(order.ID); exists {
		e.reject(ctx, order, events.ReasonInvalid)
		return order, nil, fmt.Errorf("%w: %d", ErrDuplicateOrder, order.ID)
	}

	order.Seq = e.arrivals.Next()
	order.CreatedAt = e.now()
	order.Remaining = order.Size
	order.Status = model.StatusOpen
	metrics.OrdersProcessed.WithLabelValues(string(order.Side), string(order.Kind)).Inc()
	e.publishOrder(ctx, events.TypeOrderPlaced, order, "")

	trades := e.match(ctx, order)

	switch {
	case order.Status == model.StatusFilled:
	case order.Kind == model.KindMarket:
		e.reject(ctx, order, events.ReasonNoLiquidity)
	default:
		if err := e.book.AddOrder(order); err != nil {
			panic(fmt.Sprintf("engine: invariant violated: %v", err))
		}
	}

	e.stats.RecordOrder(order, len(trades), time.Since(start))
	metrics.OrderLatency.Observe(time.Since(start).Seconds())
	e.observeBook()
	e.logger.Debug("Order processed",
		zap.Uint64("order_id", order.ID),
		zap.String("side", string(order.Side)),
		zap.String("kind", string(order.Kind)),
		zap.String("status", string(order.Status)),
		zap.Int("trades", len(trades)))
	return order, trades, nil
}

func (e *Engine) match(ctx context.Context, taker *model.Order) []model.Trade {
	var trades []model.Trade
	opposite := taker.Side.Opposite()
	for !model.IsDust(taker.Remaining) {
		level := e.book.BestLevel(opposite)
		if level == nil || !taker.Crosses(level.Price) {
			break
		}
		maker := level.Head()
		if maker == nil {
			panic(fmt.Sprintf("engine: invariant violated: empty level %d at top of %s", level.Price, opposite))
		}
		size := decimal.Min(taker.Remaining, maker.Remaining)
		taker.Fill(size)
		e.book.Fill(maker, size)

		trade := model.Trade{
			ID:            uuid.New(),
			Seq:           e.tradeSeq.Next(),
			MakerOrderID:  maker.ID,
			TakerOrderID:  taker.ID,
			MakerOwner:    maker.Owner,
			TakerOwner:    taker.Owner,
			Price:         maker.Price,
			Size:          size,
			AggressorSide: taker.Side,
			ExecutedAt:    e.now(),
		}
		trades = append(trades, trade)
		e.history.add(trade)
		e.last = trade.Price
		metrics.TradesExecuted.Inc()
		metrics.TradedVolume.Add(size.InexactFloat64())
		e.bus.Publish(ctx, events.Event{
			Topic:   events.TopicTrade,
			Type:    events.TypeTradeExecuted,
			Payload: events.TradeEvent{Trade: trade},
		})
	}
	return trades
}

// Cancel removes a resting order. It returns nil for unknown or terminal ids.
func (e *Engine) Cancel(ctx context.Context, id uint64) *model.Order {
	order := e.book.CancelOrder(id)
	if order == nil {
		return nil
	}
	e.stats.RecordCancel()
	e.observeBook()
	e.publishOrder(ctx, events.TypeOrderCanceled, order, "")
	return order
}

func (e *Engine) reject(ctx context.Context, order *model.Order, reason string) {
	order.Status = model.StatusRejected
	e.stats.RecordReject()
	metrics.OrdersRejected.WithLabelValues(reason).Inc()
	e.logger.Info("Order rejected",
		zap.Uint64("order_id", order.ID),
		zap.String("reason", reason),
		zap.String("filled", order.Filled().String()))
	e.publishOrder(ctx, events.TypeOrderRejected, order, reason)
}

func (e *Engine) publishOrder(ctx context.Context, typ string, order *model.Order, reason string) {
	e.bus.Publish(ctx, events.Event{
		Topic:   events.TopicOrder,
		Type:    typ,
		Payload: events.OrderEvent{Order: *order, Reason: reason},
	})
}

func (e *Engine) observeBook() {
	metrics.BookDepth.WithLabelValues(string(model.SideBid)).Set(float64(e.book.Depth(model.SideBid)))
	metrics.BookDepth.WithLabelValues(string(model.SideAsk)).Set(float64(e.book.Depth(model.SideAsk)))
	metrics.BookSpread.Set(float64(e.book.Spread()))
}

// Order returns a resting order by id.
func (e *Engine) Order(id uint64) (*model.Order, bool) {
	return e.book.Get(id)
}

// Resting is the number of orders on the book.
func (e *Engine) Resting() int { return e.book.Len() }

// Trades returns up to limit most recent trades, oldest first.
func (e *Engine) Trades(limit int) []model.Trade {
	return e.history.last(limit)
}

// LastPrice is the price of the most recent trade, or 0 before any trade.
func (e *Engine) LastPrice() model.Price { return e.last }

func (e *Engine) BestBid() model.Price { return e.book.BestBid() }

func (e *Engine) BestAsk() model.Price { return e.book.BestAsk() }

func (e *Engine) Spread() model.Price { return e.book.Spread() }

func (e *Engine) Snapshot(depth int) orderbook.Snapshot { return e.book.Snapshot(depth) }

// Stats returns counters accumulated since start.
func (e *Engine) Stats() Stats { return e.stats.Snapshot() }
