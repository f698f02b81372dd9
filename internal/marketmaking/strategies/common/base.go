package common

import (
	"math/rand"
	"sort"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnedOrder is an agent's local view of one of its orders.
type OwnedOrder struct {
	ID        uint64
	Kind      model.Kind
	Side      model.Side
	Price     model.Price
	Remaining decimal.Decimal
	// Live is set once the engine has accepted the order.
	Live bool
}

// BaseAgent tracks owned orders, position and counters. Strategies embed it
// and supply Tick.
type BaseAgent struct {
	id        uuid.UUID
	strategy  string
	params    map[string]interface{}
	rng       *rand.Rand
	orders    map[uint64]*OwnedOrder
	position  decimal.Decimal
	fills     int64
	submitted int64
}

func NewBaseAgent(cfg StrategyConfig) *BaseAgent {
	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(id.ID())))
	}
	return &BaseAgent{
		id:       id,
		strategy: cfg.Type,
		params:   cfg.Parameters,
		rng:      rng,
		orders:   make(map[uint64]*OwnedOrder),
		position: decimal.Zero,
	}
}

func (b *BaseAgent) ID() uuid.UUID { return b.id }

func (b *BaseAgent) Strategy() string { return b.strategy }

func (b *BaseAgent) Rand() *rand.Rand { return b.rng }

// Position is net size bought minus size sold.
func (b *BaseAgent) Position() decimal.Decimal { return b.position }

// Submit sends an order through env and starts tracking it.
func (b *BaseAgent) Submit(env Env, kind model.Kind, side model.Side, price model.Price, size decimal.Decimal) (uint64, error) {
	id, err := env.Orders.Submit(kind, side, price, size)
	if err != nil {
		return 0, err
	}
	b.submitted++
	b.orders[id] = &OwnedOrder{ID: id, Kind: kind, Side: side, Price: price, Remaining: size}
	return id, nil
}

// Cancel requests cancellation. The order stays tracked until the engine
// confirms, since it may fill first.
func (b *BaseAgent) Cancel(env Env, id uint64) error {
	if _, ok := b.orders[id]; !ok {
		return nil
	}
	return env.Orders.Cancel(id)
}

// CancelAll requests cancellation of every tracked limit order.
func (b *BaseAgent) CancelAll(env Env) error {
	for _, o := range b.OpenOrders() {
		if o.Kind != model.KindLimit {
			continue
		}
		if err := env.Orders.Cancel(o.ID); err != nil {
			return err
		}
	}
	return nil
}

// OpenOrders returns tracked orders by ascending id.
func (b *BaseAgent) OpenOrders() []OwnedOrder {
	out := make([]OwnedOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Owns reports whether id is a tracked order.
func (b *BaseAgent) Owns(id uint64) bool {
	_, ok := b.orders[id]
	return ok
}

func (b *BaseAgent) OnOrderPlaced(order model.Order) {
	if o, ok := b.orders[order.ID]; ok {
		o.Live = true
	}
}

func (b *BaseAgent) OnOrderCanceled(order model.Order) {
	delete(b.orders, order.ID)
}

func (b *BaseAgent) OnTrade(trade model.Trade, role Role) {
	id := trade.TakerOrderID
	if role == RoleMaker {
		id = trade.MakerOrderID
	}
	o, ok := b.orders[id]
	if !ok {
		return
	}
	b.fills++
	if o.Side == model.SideBid {
		b.position = b.position.Add(trade.Size)
	} else {
		b.position = b.position.Sub(trade.Size)
	}
	o.Remaining = o.Remaining.Sub(trade.Size)
	if model.IsDust(o.Remaining) {
		delete(b.orders, id)
	}
}

func (b *BaseAgent) Snapshot() AgentState {
	return AgentState{
		ID:         b.id,
		Strategy:   b.strategy,
		Parameters: b.params,
		OpenOrders: len(b.orders),
		Position:   b.position,
		Fills:      b.fills,
		Submitted:  b.submitted,
	}
}

// Mid is the book midpoint, falling back to the last trade and then the
// reference price when a side is empty.
func Mid(m MarketView) model.Price {
	bid, ask := m.BestBid(), m.BestAsk()
	if bid > 0 && ask != model.PriceInfinity {
		return (bid + ask) / 2
	}
	if last := m.LastPrice(); last > 0 {
		return last
	}
	return m.ReferencePrice()
}
