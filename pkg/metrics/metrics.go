package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersProcessed counts orders that reached the engine by side and kind.
var OrdersProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_sim_orders_processed_total",
		Help: "Total number of orders processed by the engine",
	},
	[]string{"side", "kind"},
)

// OrdersRejected counts rejected orders by reason.
var OrdersRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_sim_orders_rejected_total",
		Help: "Total number of orders rejected by the engine",
	},
	[]string{"reason"},
)

// OrderLatency records wall time spent matching a single order.
var OrderLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "pincex_sim_order_processing_latency_seconds",
		Help:    "Latency in seconds to process individual orders",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	},
)

// Trade metrics
var (
	TradesExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_sim_trades_executed_total",
			Help: "Total number of trades executed",
		},
	)

	TradedVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_sim_traded_volume_total",
			Help: "Total executed size",
		},
	)
)

// Book metrics
var (
	BookDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pincex_sim_book_levels",
			Help: "Number of price levels per side",
		},
		[]string{"side"},
	)

	BookSpread = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pincex_sim_book_spread_ticks",
			Help: "Best ask minus best bid in ticks, 0 when a side is empty",
		},
	)
)

// Bot population metrics
var (
	BotsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pincex_sim_bots_active",
			Help: "Number of deployed bots by strategy",
		},
		[]string{"strategy"},
	)

	BotsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_sim_bots_rejected_total",
			Help: "Deployments refused at the capacity ceiling",
		},
	)
)

// SimulatedLatency records the network delay sampled for each deferred call.
var SimulatedLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "pincex_sim_simulated_latency_seconds",
		Help:    "Simulated network delay applied to bot requests",
		Buckets: prometheus.ExponentialBuckets(1e-4, 2, 12),
	},
)

// EventsPublished counts bus events by type.
var EventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_sim_events_published_total",
		Help: "Events published on the in-process bus",
	},
	[]string{"type"},
)

// SinkErrors counts failed writes to external sinks (kafka, redis).
var SinkErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_sim_sink_errors_total",
		Help: "Failed writes to external sinks",
	},
	[]string{"sink"},
)

// APIRateLimited counts API requests refused by the rate limiter.
var APIRateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_sim_api_rate_limited_total",
		Help: "API requests rejected with 429 by the rate limiter",
	},
	[]string{"route"},
)

func init() {
	prometheus.MustRegister(OrdersProcessed, OrdersRejected, OrderLatency)
	prometheus.MustRegister(TradesExecuted, TradedVolume, BookDepth, BookSpread)
	prometheus.MustRegister(BotsActive, BotsRejected, SimulatedLatency)
	prometheus.MustRegister(EventsPublished, SinkErrors, APIRateLimited)
}
