// Package common provides the agent contract shared by all trading strategies
package common

import (
	"context"
	"math/rand"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Agent is a trading bot driven by the simulation tick. Strategies differ only
// in what they do inside Tick; the hooks keep their view of owned orders current.
type Agent interface {
	ID() uuid.UUID
	Strategy() string

	// Tick is invoked once per simulation step.
	Tick(ctx context.Context, env Env) error

	OnOrderPlaced(order model.Order)
	// OnOrderCanceled also receives orders that were rejected by the engine.
	OnOrderCanceled(order model.Order)
	// OnTrade is called at most once per role the agent plays in the trade.
	OnTrade(trade model.Trade, role Role)

	Snapshot() AgentState
}

// Role of an agent's order in a trade.
type Role string

const (
	RoleMaker Role = "maker"
	RoleTaker Role = "taker"
)

// OrderEntry places and cancels orders on behalf of one agent. Calls return
// immediately; the engine sees them after a simulated network delay.
type OrderEntry interface {
	Submit(kind model.Kind, side model.Side, price model.Price, size decimal.Decimal) (uint64, error)
	Cancel(orderID uint64) error
}

// MarketView is the read-only market an agent observes at tick time.
type MarketView interface {
	BestBid() model.Price
	BestAsk() model.Price
	LastPrice() model.Price
	ReferencePrice() model.Price
	Snapshot(depth int) orderbook.Snapshot
}

// Env is handed to Tick.
type Env struct {
	Now    time.Duration
	Step   uint64
	Market MarketView
	Orders OrderEntry
}

// StrategyConfig holds configuration for any strategy
type StrategyConfig struct {
	ID         uuid.UUID              `json:"id"`
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
	Rand       *rand.Rand             `json:"-"`
}

// AgentState is a summary for operators.
type AgentState struct {
	ID         uuid.UUID              `json:"id"`
	Strategy   string                 `json:"strategy"`
	Parameters map[string]interface{} `json:"parameters"`
	OpenOrders int                    `json:"open_orders"`
	Position   decimal.Decimal        `json:"position"`
	Fills      int64                  `json:"fills"`
	Submitted  int64                  `json:"submitted"`
}

// RiskLevel represents the risk level of a strategy
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// StrategyInfo describes a registered strategy type.
type StrategyInfo struct {
	Type        string                `json:"type"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	RiskLevel   RiskLevel             `json:"risk_level"`
	Parameters  []ParameterDefinition `json:"parameters"`
}

// ParameterDefinition defines a strategy parameter
type ParameterDefinition struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Default     float64 `json:"default"`
	MinValue    float64 `json:"min_value"`
	MaxValue    float64 `json:"max_value"`
}
