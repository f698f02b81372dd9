// Package arbitrage trades the book against an external reference feed
package arbitrage

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

const TypeArbitrage = "arbitrage"

// Arbitrage lifts asks priced threshold ticks under the reference and hits
// bids priced threshold ticks over it, within a position limit.
type Arbitrage struct {
	*common.BaseAgent
	threshold   model.Price
	size        decimal.Decimal
	maxPosition decimal.Decimal
}

func NewArbitrage(config common.StrategyConfig) (*Arbitrage, error) {
	r := &common.ParamReader{Params: config.Parameters}
	a := &Arbitrage{
		BaseAgent:   common.NewBaseAgent(config),
		threshold:   model.Price(r.Int("threshold_ticks", 3)),
		size:        r.Decimal("size", 1),
		maxPosition: r.Decimal("max_position", 10),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if a.threshold < 1 || !a.size.IsPositive() || !a.maxPosition.IsPositive() {
		return nil, fmt.Errorf("arbitrage needs threshold_ticks >= 1 and positive size and max_position")
	}
	return a, nil
}

func (s *Arbitrage) Tick(ctx context.Context, env common.Env) error {
	ref := env.Market.ReferencePrice()
	if ref <= 0 {
		return nil
	}
	pos := s.Position()
	if ask := env.Market.BestAsk(); ask != model.PriceInfinity && ask <= ref-s.threshold {
		if pos.Add(s.size).LessThanOrEqual(s.maxPosition) {
			_, err := s.Submit(env, model.KindMarket, model.SideBid, 0, s.size)
			return err
		}
	}
	if bid := env.Market.BestBid(); bid > 0 && bid >= ref+s.threshold {
		if pos.Sub(s.size).GreaterThanOrEqual(s.maxPosition.Neg()) {
			_, err := s.Submit(env, model.KindMarket, model.SideAsk, 0, s.size)
			return err
		}
	}
	return nil
}
