// Package advanced provides directional and opportunistic strategies
package advanced

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

const TypeMomentum = "momentum"

// Momentum buys after the last price rose by threshold ticks over the lookback
// window and sells after it fell by as much.
type Momentum struct {
	*common.BaseAgent
	lookback  int
	threshold model.Price
	size      decimal.Decimal
	cooldown  uint64
	window    []model.Price
	lastFire  uint64
	fired     bool
}

func NewMomentum(config common.StrategyConfig) (*Momentum, error) {
	r := &common.ParamReader{Params: config.Parameters}
	m := &Momentum{
		BaseAgent: common.NewBaseAgent(config),
		lookback:  r.Int("lookback", 10),
		threshold: model.Price(r.Int("threshold_ticks", 3)),
		size:      r.Decimal("size", 1),
		cooldown:  uint64(r.Int("cooldown", 5)),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if m.lookback < 2 || m.threshold < 1 || !m.size.IsPositive() {
		return nil, fmt.Errorf("momentum needs lookback >= 2, threshold_ticks >= 1 and positive size")
	}
	return m, nil
}

func (s *Momentum) Tick(ctx context.Context, env common.Env) error {
	last := env.Market.LastPrice()
	if last <= 0 {
		return nil
	}
	s.window = append(s.window, last)
	if len(s.window) > s.lookback {
		s.window = s.window[len(s.window)-s.lookback:]
	}
	if len(s.window) < s.lookback {
		return nil
	}
	if s.fired && env.Step-s.lastFire < s.cooldown {
		return nil
	}

	move := s.window[len(s.window)-1] - s.window[0]
	var side model.Side
	switch {
	case move >= s.threshold:
		side = model.SideBid
	case move <= -s.threshold:
		side = model.SideAsk
	default:
		return nil
	}
	if _, err := s.Submit(env, model.KindMarket, side, 0, s.size); err != nil {
		return err
	}
	s.lastFire = env.Step
	s.fired = true
	return nil
}
