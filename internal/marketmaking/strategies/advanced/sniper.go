package advanced

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

const TypeSniper = "sniper"

// Sniper stays idle for a warm-up period, then fires a market order whenever
// the traded price strays trigger ticks from the reference, betting on reversion.
type Sniper struct {
	*common.BaseAgent
	wait     uint64
	trigger  model.Price
	size     decimal.Decimal
	cooldown uint64
	lastShot uint64
	shot     bool
}

func NewSniper(config common.StrategyConfig) (*Sniper, error) {
	r := &common.ParamReader{Params: config.Parameters}
	s := &Sniper{
		BaseAgent: common.NewBaseAgent(config),
		wait:      uint64(r.Int("wait", 20)),
		trigger:   model.Price(r.Int("trigger_ticks", 5)),
		size:      r.Decimal("size", 5),
		cooldown:  uint64(r.Int("cooldown", 30)),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if s.trigger < 1 || !s.size.IsPositive() {
		return nil, fmt.Errorf("sniper needs trigger_ticks >= 1 and positive size")
	}
	return s, nil
}

func (s *Sniper) Tick(ctx context.Context, env common.Env) error {
	if env.Step < s.wait {
		return nil
	}
	if s.shot && env.Step-s.lastShot < s.cooldown {
		return nil
	}
	ref := env.Market.ReferencePrice()
	price := env.Market.LastPrice()
	if price <= 0 {
		price = common.Mid(env.Market)
	}
	if ref <= 0 || price <= 0 {
		return nil
	}

	dev := price - ref
	var side model.Side
	switch {
	case dev >= s.trigger:
		side = model.SideAsk
	case dev <= -s.trigger:
		side = model.SideBid
	default:
		return nil
	}
	if _, err := s.Submit(env, model.KindMarket, side, 0, s.size); err != nil {
		return err
	}
	s.lastShot = env.Step
	s.shot = true
	return nil
}
