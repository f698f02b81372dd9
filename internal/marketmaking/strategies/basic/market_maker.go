// Package basic provides liquidity-providing strategies
package basic

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

const TypeMarketMaker = "market_maker"

// MarketMaker quotes a symmetric ladder around the reference price and
// requotes every few steps. Quotes lean against accumulated inventory.
type MarketMaker struct {
	*common.BaseAgent
	spread       model.Price
	levels       int
	size         decimal.Decimal
	requoteEvery uint64
	skew         decimal.Decimal
	lastQuote    uint64
	quoted       bool
}

// NewMarketMaker creates a market maker from its parameters
func NewMarketMaker(config common.StrategyConfig) (*MarketMaker, error) {
	r := &common.ParamReader{Params: config.Parameters}
	mm := &MarketMaker{
		BaseAgent:    common.NewBaseAgent(config),
		spread:       model.Price(r.Int("spread_ticks", 4)),
		levels:       r.Int("levels", 1),
		size:         r.Decimal("size", 1),
		requoteEvery: uint64(r.Int("requote_every", 5)),
		skew:         r.Decimal("inventory_skew", 0),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if mm.spread < 2 {
		return nil, fmt.Errorf("spread_ticks must be at least 2, got %d", mm.spread)
	}
	if mm.levels < 1 || !mm.size.IsPositive() || mm.requoteEvery == 0 {
		return nil, fmt.Errorf("levels, size and requote_every must be positive")
	}
	return mm, nil
}

func (s *MarketMaker) Tick(ctx context.Context, env common.Env) error {
	if s.quoted && env.Step-s.lastQuote < s.requoteEvery {
		return nil
	}
	if err := s.CancelAll(env); err != nil {
		return err
	}

	center := env.Market.ReferencePrice()
	if center <= 0 {
		center = common.Mid(env.Market)
	}
	if center <= 0 {
		return nil
	}
	// long inventory pushes quotes down, short pushes them up
	center -= model.Price(s.Position().Mul(s.skew).Round(0).IntPart())

	half := s.spread / 2
	for i := 0; i < s.levels; i++ {
		bid := center - half - model.Price(i)
		ask := center + half + model.Price(i)
		if bid > 0 {
			if _, err := s.Submit(env, model.KindLimit, model.SideBid, bid, s.size); err != nil {
				return err
			}
		}
		if _, err := s.Submit(env, model.KindLimit, model.SideAsk, ask, s.size); err != nil {
			return err
		}
	}
	s.lastQuote = env.Step
	s.quoted = true
	return nil
}
