package advanced

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

const TypeWhale = "whale"

// Whale periodically sends one large limit order priced through the opposite
// touch, sweeping several levels and resting whatever is left.
type Whale struct {
	*common.BaseAgent
	size       decimal.Decimal
	interval   uint64
	aggression model.Price
	lastOrder  uint64
}

func NewWhale(config common.StrategyConfig) (*Whale, error) {
	r := &common.ParamReader{Params: config.Parameters}
	w := &Whale{
		BaseAgent:  common.NewBaseAgent(config),
		size:       r.Decimal("size", 50),
		interval:   uint64(r.Int("interval", 40)),
		aggression: model.Price(r.Int("aggression_ticks", 3)),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if !w.size.IsPositive() || w.interval == 0 || w.aggression < 0 {
		return nil, fmt.Errorf("whale needs positive size and interval")
	}
	return w, nil
}

func (s *Whale) Tick(ctx context.Context, env common.Env) error {
	if env.Step-s.lastOrder < s.interval {
		return nil
	}
	side := model.SideBid
	if s.Rand().Intn(2) == 0 {
		side = model.SideAsk
	}

	var price model.Price
	if side == model.SideBid {
		touch := env.Market.BestAsk()
		if touch == model.PriceInfinity {
			touch = env.Market.ReferencePrice()
		}
		price = touch + s.aggression
	} else {
		touch := env.Market.BestBid()
		if touch == 0 {
			touch = env.Market.ReferencePrice()
		}
		price = touch - s.aggression
	}
	if price <= 0 {
		return nil
	}
	if _, err := s.Submit(env, model.KindLimit, side, price, s.size); err != nil {
		return err
	}
	s.lastOrder = env.Step
	return nil
}
