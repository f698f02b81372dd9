// Package strategytest provides in-memory doubles for driving agents in tests.
package strategytest

import (
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/shopspring/decimal"
)

// Market is a settable MarketView.
type Market struct {
	Bid, Ask, Last, Reference model.Price
	Book                      orderbook.Snapshot
}

func NewMarket(reference model.Price) *Market {
	return &Market{Ask: model.PriceInfinity, Reference: reference}
}

func (m *Market) BestBid() model.Price        { return m.Bid }
func (m *Market) BestAsk() model.Price        { return m.Ask }
func (m *Market) LastPrice() model.Price      { return m.Last }
func (m *Market) ReferencePrice() model.Price { return m.Reference }

func (m *Market) Snapshot(depth int) orderbook.Snapshot {
	snap := m.Book
	if depth > 0 {
		if len(snap.Bids) > depth {
			snap.Bids = snap.Bids[:depth]
		}
		if len(snap.Asks) > depth {
			snap.Asks = snap.Asks[:depth]
		}
	}
	return snap
}

// Submitted is one recorded Submit call.
type Submitted struct {
	ID    uint64
	Kind  model.Kind
	Side  model.Side
	Price model.Price
	Size  decimal.Decimal
}

// Orders records calls instead of sending them anywhere.
type Orders struct {
	next      uint64
	Submitted []Submitted
	Canceled  []uint64
}

func (o *Orders) Submit(kind model.Kind, side model.Side, price model.Price, size decimal.Decimal) (uint64, error) {
	o.next++
	o.Submitted = append(o.Submitted, Submitted{ID: o.next, Kind: kind, Side: side, Price: price, Size: size})
	return o.next, nil
}

func (o *Orders) Cancel(orderID uint64) error {
	o.Canceled = append(o.Canceled, orderID)
	return nil
}

// Reset clears recorded calls but keeps id allocation moving.
func (o *Orders) Reset() {
	o.Submitted = nil
	o.Canceled = nil
}

// Env bundles a market and recorder into a common.Env at the given step.
func Env(m *Market, o *Orders, step uint64) common.Env {
	return common.Env{Step: step, Market: m, Orders: o}
}
