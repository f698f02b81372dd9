package handlers

import (
	"time"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderView struct {
	ID         uint64          `json:"id"`
	Owner      *uuid.UUID      `json:"owner,omitempty"`
	Side       model.Side      `json:"side"`
	Kind       model.Kind      `json:"kind"`
	Price      decimal.Decimal `json:"price"`
	PriceTicks model.Price     `json:"price_ticks"`
	Size       decimal.Decimal `json:"size"`
	Remaining  decimal.Decimal `json:"remaining"`
	Filled     decimal.Decimal `json:"filled"`
	Status     model.Status    `json:"status"`
	Seq        uint64          `json:"seq"`
	CreatedAt  time.Time       `json:"created_at"`
}

type TradeView struct {
	ID            uuid.UUID       `json:"id"`
	Seq           uint64          `json:"seq"`
	MakerOrderID  uint64          `json:"maker_order_id"`
	TakerOrderID  uint64          `json:"taker_order_id"`
	Price         decimal.Decimal `json:"price"`
	PriceTicks    model.Price     `json:"price_ticks"`
	Size          decimal.Decimal `json:"size"`
	AggressorSide model.Side      `json:"aggressor_side"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

type LevelView struct {
	Price      decimal.Decimal `json:"price"`
	PriceTicks model.Price     `json:"price_ticks"`
	Volume     decimal.Decimal `json:"volume"`
	Orders     int             `json:"orders"`
}

type BookView struct {
	Symbol string      `json:"symbol"`
	Bids   []LevelView `json:"bids"`
	Asks   []LevelView `json:"asks"`
}

// TopView uses null for an empty side.
type TopView struct {
	Symbol    string           `json:"symbol"`
	BestBid   *decimal.Decimal `json:"best_bid"`
	BestAsk   *decimal.Decimal `json:"best_ask"`
	Spread    decimal.Decimal  `json:"spread"`
	LastPrice *decimal.Decimal `json:"last_price"`
	Reference decimal.Decimal  `json:"reference"`
	Step      uint64           `json:"step"`
}

func orderView(inst model.Instrument, o *model.Order) OrderView {
	v := OrderView{
		ID:         o.ID,
		Side:       o.Side,
		Kind:       o.Kind,
		Price:      inst.FromTicks(o.Price),
		PriceTicks: o.Price,
		Size:       o.Size,
		Remaining:  o.Remaining,
		Filled:     o.Filled(),
		Status:     o.Status,
		Seq:        o.Seq,
		CreatedAt:  o.CreatedAt,
	}
	if o.Owner != uuid.Nil {
		owner := o.Owner
		v.Owner = &owner
	}
	return v
}

func tradeViews(inst model.Instrument, trades []model.Trade) []TradeView {
	out := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		out = append(out, TradeView{
			ID:            t.ID,
			Seq:           t.Seq,
			MakerOrderID:  t.MakerOrderID,
			TakerOrderID:  t.TakerOrderID,
			Price:         inst.FromTicks(t.Price),
			PriceTicks:    t.Price,
			Size:          t.Size,
			AggressorSide: t.AggressorSide,
			ExecutedAt:    t.ExecutedAt,
		})
	}
	return out
}

func bookView(inst model.Instrument, snap orderbook.Snapshot) BookView {
	return BookView{Symbol: inst.Symbol, Bids: levels(inst, snap.Bids), Asks: levels(inst, snap.Asks)}
}

func levels(inst model.Instrument, in []orderbook.LevelView) []LevelView {
	out := make([]LevelView, 0, len(in))
	for _, l := range in {
		out = append(out, LevelView{Price: inst.FromTicks(l.Price), PriceTicks: l.Price, Volume: l.Volume, Orders: l.Orders})
	}
	return out
}

func priceOrNil(inst model.Instrument, p model.Price, empty model.Price) *decimal.Decimal {
	if p == empty {
		return nil
	}
	d := inst.FromTicks(p)
	return &d
}
