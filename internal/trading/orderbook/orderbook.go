// Package orderbook holds resting liquidity for a single instrument.
//
// Orders rest in price levels (FIFO by arrival) kept in one PriceIndex per side,
// with a global id lookup. The book never matches: the engine reads the best
// opposing level, fills against its head and adds any limit remainder back here.
// The book is not safe for concurrent use; it has a single writer.
package orderbook

import (
	"errors"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

// MaxSnapshotDepth caps how many levels per side a snapshot may return.
const MaxSnapshotDepth = 1000

var (
	ErrDuplicateOrder = errors.New("order already in book")
	ErrNotRestable    = errors.New("order cannot rest")
)

// Options selects the index backend and snapshot limits.
type Options struct {
	Index            string
	Degree           int
	MaxSnapshotDepth int
}

// OrderBook is the limit order book: bid and ask indices plus an id lookup.
type OrderBook struct {
	bids     PriceIndex
	asks     PriceIndex
	orders   map[uint64]*entry
	maxDepth int
}

// New builds an empty book.
func New(opts Options) (*OrderBook, error) {
	bids, err := NewPriceIndex(model.SideBid, opts.Index, opts.Degree)
	if err != nil {
		return nil, err
	}
	asks, err := NewPriceIndex(model.SideAsk, opts.Index, opts.Degree)
	if err != nil {
		return nil, err
	}
	maxDepth := opts.MaxSnapshotDepth
	if maxDepth <= 0 || maxDepth > MaxSnapshotDepth {
		maxDepth = MaxSnapshotDepth
	}
	return &OrderBook{
		bids:     bids,
		asks:     asks,
		orders:   make(map[uint64]*entry),
		maxDepth: maxDepth,
	}, nil
}

func (ob *OrderBook) index(side model.Side) PriceIndex {
	if side == model.SideBid {
		return ob.bids
	}
	return ob.asks
}

// AddOrder rests a limit order at its price behind everything already there.
func (ob *OrderBook) AddOrder(order *model.Order) error {
	if _, exists := ob.orders[order.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, order.ID)
	}
	if order.Kind != model.KindLimit || order.Status.Terminal() || model.IsDust(order.Remaining) {
		return fmt.Errorf("%w: order %d kind=%s status=%s", ErrNotRestable, order.ID, order.Kind, order.Status)
	}
	idx := ob.index(order.Side)
	level := idx.Get(order.Price)
	if level == nil {
		level = newPriceLevel(order.Price)
		idx.Insert(order.Price, level)
	}
	ob.orders[order.ID] = level.enqueue(order)
	return nil
}

// CancelOrder removes a resting order and marks it Canceled.
// It returns nil, with no state change, when the id is unknown or terminal.
func (ob *OrderBook) CancelOrder(id uint64) *model.Order {
	e, ok := ob.orders[id]
	if !ok || e.order.Status.Terminal() {
		return nil
	}
	ob.remove(e)
	e.order.Status = model.StatusCanceled
	return e.order
}

func (ob *OrderBook) remove(e *entry) {
	level := e.level
	if level == nil {
		panic(fmt.Sprintf("orderbook: invariant violated: order %d has no level", e.order.ID))
	}
	level.unlink(e)
	delete(ob.orders, e.order.ID)
	if level.Empty() {
		ob.index(e.order.Side).Remove(level.Price)
	}
}

// Fill executes size against a resting maker order. The level's volume moves by
// exactly what the order lost, and a filled maker leaves the book.
func (ob *OrderBook) Fill(maker *model.Order, size decimal.Decimal) {
	e, ok := ob.orders[maker.ID]
	if !ok {
		panic(fmt.Sprintf("orderbook: invariant violated: fill of unknown order %d", maker.ID))
	}
	before := maker.Remaining
	maker.Fill(size)
	e.level.volume = e.level.volume.Sub(before.Sub(maker.Remaining))
	if maker.Status == model.StatusFilled {
		ob.remove(e)
	}
}

// BestLevel returns the best level of side, or nil if the side is empty.
func (ob *OrderBook) BestLevel(side model.Side) *PriceLevel {
	return ob.index(side).Best()
}

// BestBid returns the highest bid, or 0 when there are no bids.
func (ob *OrderBook) BestBid() model.Price {
	if best := ob.bids.Best(); best != nil {
		return best.Price
	}
	return 0
}

// BestAsk returns the lowest ask, or model.PriceInfinity when there are no asks.
func (ob *OrderBook) BestAsk() model.Price {
	if best := ob.asks.Best(); best != nil {
		return best.Price
	}
	return model.PriceInfinity
}

// Spread is best ask minus best bid, or 0 when either side is empty.
func (ob *OrderBook) Spread() model.Price {
	if ob.bids.Best() == nil || ob.asks.Best() == nil {
		return 0
	}
	return ob.BestAsk() - ob.BestBid()
}

// Get returns a resting order by id.
func (ob *OrderBook) Get(id uint64) (*model.Order, bool) {
	e, ok := ob.orders[id]
	if !ok {
		return nil, false
	}
	return e.order, true
}

// Len is the number of resting orders.
func (ob *OrderBook) Len() int { return len(ob.orders) }

// Depth is the number of price levels on side.
func (ob *OrderBook) Depth(side model.Side) int { return ob.index(side).Len() }

// LevelView is one aggregated row of a snapshot.
type LevelView struct {
	Price  model.Price     `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Orders int             `json:"orders"`
}

// Snapshot is a read-only copy of the top of both sides, best to worst.
type Snapshot struct {
	Bids []LevelView `json:"bids"`
	Asks []LevelView `json:"asks"`
}

// Snapshot returns up to depth levels per side.
func (ob *OrderBook) Snapshot(depth int) Snapshot {
	if depth <= 0 || depth > ob.maxDepth {
		depth = ob.maxDepth
	}
	return Snapshot{
		Bids: collect(ob.bids, depth),
		Asks: collect(ob.asks, depth),
	}
}

func collect(idx PriceIndex, depth int) []LevelView {
	out := make([]LevelView, 0, min(depth, idx.Len()))
	idx.Walk(depth, func(level *PriceLevel) bool {
		if level.Empty() {
			panic(fmt.Sprintf("orderbook: invariant violated: empty level %d in index", level.Price))
		}
		out = append(out, LevelView{Price: level.Price, Volume: level.Volume(), Orders: level.Len()})
		return true
	})
	return out
}
