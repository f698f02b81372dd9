// Package bots supervises the population of trading agents. Every order an
// agent sends reaches the engine through the latency simulator; trade and order
// events are routed back to the owning agent.
package bots

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/factory"
	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCapacity    = errors.New("bot capacity reached")
	ErrBotNotFound = errors.New("bot not found")
	ErrNotOwner    = errors.New("order not owned by bot")
)

// Exchange is the engine surface the manager drives.
type Exchange interface {
	NextOrderID() uint64
	Submit(ctx context.Context, order *model.Order) (*model.Order, []model.Trade, error)
	Cancel(ctx context.Context, id uint64) *model.Order
	Order(id uint64) (*model.Order, bool)
}

// Scheduler defers a call by a simulated network delay.
type Scheduler interface {
	Schedule(fn func()) time.Duration
}

// Config for the manager.
type Config struct {
	Capacity int
	// CancelOnRemove cancels a removed bot's resting orders. By default they
	// stay on the book until matched or canceled by id.
	CancelOnRemove bool
	Seed           int64
}

// Manager owns the agent population. It is driven from the simulation loop and
// is not safe for concurrent use.
type Manager struct {
	logger    *zap.Logger
	cfg       Config
	factory   *factory.StrategyFactory
	exchange  Exchange
	scheduler Scheduler
	bus       events.EventBus
	rng       *rand.Rand

	agents map[uuid.UUID]common.Agent
	order  []uuid.UUID
	owners map[uint64]uuid.UUID
}

func NewManager(logger *zap.Logger, cfg Config, f *factory.StrategyFactory, exchange Exchange, scheduler Scheduler, bus events.EventBus) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger:    logger,
		cfg:       cfg,
		factory:   f,
		exchange:  exchange,
		scheduler: scheduler,
		bus:       bus,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		agents:    make(map[uuid.UUID]common.Agent),
		owners:    make(map[uint64]uuid.UUID),
	}
	bus.Subscribe(events.TopicTrade, m.onTrade)
	bus.Subscribe(events.TopicOrder, m.onOrder)
	return m
}

// Deploy builds an agent of strategyType and starts ticking it. At the
// capacity ceiling the request is rejected and logged with no state change.
func (m *Manager) Deploy(ctx context.Context, strategyType string, params map[string]interface{}) (uuid.UUID, error) {
	if m.cfg.Capacity > 0 && len(m.agents) >= m.cfg.Capacity {
		metrics.BotsRejected.Inc()
		m.log(ctx, "warn", fmt.Sprintf("bot deployment rejected: capacity %d reached", m.cfg.Capacity),
			zap.String("strategy", strategyType))
		return uuid.Nil, fmt.Errorf("%w: %d", ErrCapacity, m.cfg.Capacity)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	agent, err := m.factory.CreateStrategy(strategyType, common.StrategyConfig{
		ID:         uuid.New(),
		Parameters: params,
		Rand:       rand.New(rand.NewSource(m.rng.Int63())),
	})
	if err != nil {
		return uuid.Nil, err
	}

	id := agent.ID()
	m.agents[id] = agent
	m.order = append(m.order, id)
	metrics.BotsActive.WithLabelValues(strategyType).Inc()
	m.logger.Info("Bot deployed", zap.String("bot_id", id.String()), zap.String("strategy", strategyType))
	m.bus.Publish(ctx, events.Event{
		Topic:   events.TopicBot,
		Type:    events.TypeBotDeployed,
		Payload: events.BotEvent{AgentID: id, Strategy: strategyType},
	})
	return id, nil
}

// Remove stops ticking the agent and discards it.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	agent, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}
	delete(m.agents, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.cfg.CancelOnRemove {
		dctx := context.WithoutCancel(ctx)
		// Each Schedule draws a latency sample, so cancels go out in id order.
		owned := make([]uint64, 0)
		for orderID, owner := range m.owners {
			if owner == id {
				owned = append(owned, orderID)
			}
		}
		sort.Slice(owned, func(i, j int) bool { return owned[i] < owned[j] })
		for _, orderID := range owned {
			orderID := orderID
			m.scheduler.Schedule(func() { m.exchange.Cancel(dctx, orderID) })
		}
	}

	metrics.BotsActive.WithLabelValues(agent.Strategy()).Dec()
	m.logger.Info("Bot removed", zap.String("bot_id", id.String()), zap.String("strategy", agent.Strategy()))
	m.bus.Publish(ctx, events.Event{
		Topic:   events.TopicBot,
		Type:    events.TypeBotRemoved,
		Payload: events.BotEvent{AgentID: id, Strategy: agent.Strategy()},
	})
	return nil
}

// SubmitOrder reserves an order id for the agent and schedules the engine call.
// The order is processed even if the agent is removed while it is in flight.
func (m *Manager) SubmitOrder(ctx context.Context, agentID uuid.UUID, kind model.Kind, side model.Side, price model.Price, size decimal.Decimal) (uint64, error) {
	if _, ok := m.agents[agentID]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrBotNotFound, agentID)
	}
	id := m.exchange.NextOrderID()
	m.owners[id] = agentID
	dctx := context.WithoutCancel(ctx)
	m.scheduler.Schedule(func() {
		order, _, err := m.exchange.Submit(dctx, model.NewOrder(id, agentID, side, kind, price, size))
		if err != nil {
			m.logger.Warn("Bot order refused", zap.String("bot_id", agentID.String()), zap.Uint64("order_id", id), zap.Error(err))
		}
		if order != nil && order.Status.Terminal() {
			delete(m.owners, id)
		}
	})
	return id, nil
}

// CancelOrder schedules a cancel for an order the agent owns.
func (m *Manager) CancelOrder(ctx context.Context, agentID uuid.UUID, orderID uint64) error {
	if _, ok := m.agents[agentID]; !ok {
		return fmt.Errorf("%w: %s", ErrBotNotFound, agentID)
	}
	if owner, ok := m.owners[orderID]; !ok || owner != agentID {
		return fmt.Errorf("%w: %d", ErrNotOwner, orderID)
	}
	dctx := context.WithoutCancel(ctx)
	m.scheduler.Schedule(func() { m.exchange.Cancel(dctx, orderID) })
	return nil
}

// Tick runs one decision step for every agent in deployment order.
func (m *Manager) Tick(ctx context.Context, now time.Duration, step uint64, market common.MarketView) {
	ids := append([]uuid.UUID(nil), m.order...)
	for _, id := range ids {
		agent, ok := m.agents[id]
		if !ok {
			continue
		}
		env := common.Env{
			Now:    now,
			Step:   step,
			Market: market,
			Orders: agentOrders{m: m, ctx: ctx, id: id},
		}
		if err := agent.Tick(ctx, env); err != nil {
			m.logger.Warn("Bot tick failed", zap.String("bot_id", id.String()), zap.String("strategy", agent.Strategy()), zap.Error(err))
		}
	}
}

func (m *Manager) onTrade(e events.Event) {
	te, ok := e.Payload.(events.TradeEvent)
	if !ok {
		return
	}
	trade := te.Trade
	if owner, ok := m.owners[trade.MakerOrderID]; ok {
		if agent, live := m.agents[owner]; live {
			agent.OnTrade(trade, common.RoleMaker)
		}
		if _, resting := m.exchange.Order(trade.MakerOrderID); !resting {
			delete(m.owners, trade.MakerOrderID)
		}
	}
	if owner, ok := m.owners[trade.TakerOrderID]; ok {
		if agent, live := m.agents[owner]; live {
			agent.OnTrade(trade, common.RoleTaker)
		}
	}
}

func (m *Manager) onOrder(e events.Event) {
	oe, ok := e.Payload.(events.OrderEvent)
	if !ok {
		return
	}
	owner, ok := m.owners[oe.Order.ID]
	if !ok {
		return
	}
	agent, live := m.agents[owner]
	switch e.Type {
	case events.TypeOrderPlaced:
		if live {
			agent.OnOrderPlaced(oe.Order)
		}
	case events.TypeOrderCanceled, events.TypeOrderRejected:
		if live {
			agent.OnOrderCanceled(oe.Order)
		}
		delete(m.owners, oe.Order.ID)
	}
}

func (m *Manager) log(ctx context.Context, level, msg string, fields ...zap.Field) {
	if l, ok := m.bus.(interface {
		Log(ctx context.Context, level, message string, fields ...zap.Field)
	}); ok {
		l.Log(ctx, level, msg, fields...)
		return
	}
	m.logger.Warn(msg, fields...)
}

// Get returns a deployed agent.
func (m *Manager) Get(id uuid.UUID) (common.Agent, bool) {
	a, ok := m.agents[id]
	return a, ok
}

// List summarizes agents in deployment order.
func (m *Manager) List() []common.AgentState {
	out := make([]common.AgentState, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.agents[id].Snapshot())
	}
	return out
}

func (m *Manager) Len() int { return len(m.agents) }

// OwnerOf returns the agent routing notifications for orderID.
func (m *Manager) OwnerOf(orderID uint64) (uuid.UUID, bool) {
	id, ok := m.owners[orderID]
	return id, ok
}

type agentOrders struct {
	m   *Manager
	ctx context.Context
	id  uuid.UUID
}

func (h agentOrders) Submit(kind model.Kind, side model.Side, price model.Price, size decimal.Decimal) (uint64, error) {
	return h.m.SubmitOrder(h.ctx, h.id, kind, side, price, size)
}

func (h agentOrders) Cancel(orderID uint64) error {
	return h.m.CancelOrder(h.ctx, h.id, orderID)
}
