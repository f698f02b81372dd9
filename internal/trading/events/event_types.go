package events

import (
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/google/uuid"
)

// Event topics
const (
	TopicTrade = "trade"
	TopicOrder = "order"
	TopicBot   = "bot"
	TopicLog   = "log"
)

// Event types
const (
	TypeTradeExecuted = "TRADE_EXECUTED"
	TypeOrderPlaced   = "ORDER_PLACED"
	TypeOrderCanceled = "ORDER_CANCELED"
	TypeOrderRejected = "ORDER_REJECTED"
	TypeBotDeployed   = "BOT_DEPLOYED"
	TypeBotRemoved    = "BOT_REMOVED"
	TypeLog           = "LOG"
)

// Rejection reasons carried by OrderEvent.Reason
const (
	ReasonNoLiquidity = "no_liquidity"
	ReasonInvalid     = "invalid"
)

// TradeEvent is published once per execution, in execution order.
type TradeEvent struct {
	Trade model.Trade `json:"trade"`
}

// OrderEvent carries a copy of the order at the time of the transition.
type OrderEvent struct {
	Order  model.Order `json:"order"`
	Reason string      `json:"reason,omitempty"`
}

type BotEvent struct {
	AgentID  uuid.UUID `json:"agent_id"`
	Strategy string    `json:"strategy"`
}

// LogEvent is an operator-facing diagnostic line.
type LogEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
