package engine

import (
	"sync/atomic"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
)

// Collector aggregates engine counters. Reads are safe from any goroutine.
type Collector struct {
	ordersProcessed  atomic.Int64
	limitOrders      atomic.Int64
	marketOrders     atomic.Int64
	tradesExecuted   atomic.Int64
	ordersRejected   atomic.Int64
	ordersCanceled   atomic.Int64
	processingTimeNs atomic.Int64
}

// Stats is a point-in-time copy of the collector.
type Stats struct {
	OrdersProcessed int64         `json:"orders_processed"`
	LimitOrders     int64         `json:"limit_orders"`
	MarketOrders    int64         `json:"market_orders"`
	TradesExecuted  int64         `json:"trades_executed"`
	OrdersRejected  int64         `json:"orders_rejected"`
	OrdersCanceled  int64         `json:"orders_canceled"`
	AvgProcessing   time.Duration `json:"avg_processing_ns"`
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordOrder(order *model.Order, trades int, took time.Duration) {
	c.ordersProcessed.Add(1)
	if order.Kind == model.KindMarket {
		c.marketOrders.Add(1)
	} else {
		c.limitOrders.Add(1)
	}
	c.tradesExecuted.Add(int64(trades))
	c.processingTimeNs.Add(took.Nanoseconds())
}

func (c *Collector) RecordReject() { c.ordersRejected.Add(1) }

func (c *Collector) RecordCancel() { c.ordersCanceled.Add(1) }

func (c *Collector) Snapshot() Stats {
	s := Stats{
		OrdersProcessed: c.ordersProcessed.Load(),
		LimitOrders:     c.limitOrders.Load(),
		MarketOrders:    c.marketOrders.Load(),
		TradesExecuted:  c.tradesExecuted.Load(),
		OrdersRejected:  c.ordersRejected.Load(),
		OrdersCanceled:  c.ordersCanceled.Load(),
	}
	if s.OrdersProcessed > 0 {
		s.AvgProcessing = time.Duration(c.processingTimeNs.Load() / s.OrdersProcessed)
	}
	return s
}
