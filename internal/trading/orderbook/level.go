package orderbook

import (
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

// entry links a resting order into its level's FIFO queue.
type entry struct {
	order *model.Order
	level *PriceLevel
	prev  *entry
	next  *entry
}

// PriceLevel is the FIFO queue of orders resting at one price.
type PriceLevel struct {
	Price  model.Price
	head   *entry
	tail   *entry
	volume decimal.Decimal
	count  int
}

func newPriceLevel(price model.Price) *PriceLevel {
	return &PriceLevel{Price: price, volume: decimal.Zero}
}

func (pl *PriceLevel) enqueue(o *model.Order) *entry {
	e := &entry{order: o, level: pl}
	if pl.head == nil {
		pl.head = e
		pl.tail = e
	} else {
		pl.tail.next = e
		e.prev = pl.tail
		pl.tail = e
	}
	pl.volume = pl.volume.Add(o.Remaining)
	pl.count++
	return e
}

func (pl *PriceLevel) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		pl.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		pl.tail = e.prev
	}
	e.prev, e.next, e.level = nil, nil, nil
	pl.volume = pl.volume.Sub(e.order.Remaining)
	pl.count--
	if pl.count == 0 {
		pl.volume = decimal.Zero
	}
}

// Head returns the oldest order at this price, or nil.
func (pl *PriceLevel) Head() *model.Order {
	if pl.head == nil {
		return nil
	}
	return pl.head.order
}

// Volume is the sum of remaining sizes resting at this price.
func (pl *PriceLevel) Volume() decimal.Decimal { return pl.volume }

func (pl *PriceLevel) Len() int { return pl.count }

func (pl *PriceLevel) Empty() bool { return pl.count == 0 }

// Orders returns the resting orders in arrival order.
func (pl *PriceLevel) Orders() []*model.Order {
	out := make([]*model.Order, 0, pl.count)
	for e := pl.head; e != nil; e = e.next {
		out = append(out, e.order)
	}
	return out
}
