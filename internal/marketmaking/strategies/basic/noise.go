package basic

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
)

const TypeNoise = "noise"

// Noise trades small random orders around the mid. It keeps at most maxOpen
// resting orders, canceling the oldest first.
type Noise struct {
	*common.BaseAgent
	probability float64
	marketRatio float64
	maxSize     float64
	priceRange  int
	maxOpen     int
}

func NewNoise(config common.StrategyConfig) (*Noise, error) {
	r := &common.ParamReader{Params: config.Parameters}
	n := &Noise{
		BaseAgent:   common.NewBaseAgent(config),
		probability: r.Float("probability", 0.3),
		marketRatio: r.Float("market_ratio", 0.2),
		maxSize:     r.Float("max_size", 2),
		priceRange:  r.Int("price_range_ticks", 10),
		maxOpen:     r.Int("max_open", 5),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if n.maxSize <= 0 || n.priceRange < 1 {
		return nil, fmt.Errorf("max_size and price_range_ticks must be positive")
	}
	return n, nil
}

func (s *Noise) Tick(ctx context.Context, env common.Env) error {
	rng := s.Rand()
	if open := s.OpenOrders(); len(open) > s.maxOpen {
		if err := s.Cancel(env, open[0].ID); err != nil {
			return err
		}
	}
	if rng.Float64() >= s.probability {
		return nil
	}

	side := model.SideBid
	if rng.Intn(2) == 0 {
		side = model.SideAsk
	}
	size := decimal.NewFromFloat(s.maxSize * (0.1 + 0.9*rng.Float64())).Round(3)
	if !size.IsPositive() {
		return nil
	}
	if rng.Float64() < s.marketRatio {
		_, err := s.Submit(env, model.KindMarket, side, 0, size)
		return err
	}

	mid := common.Mid(env.Market)
	if mid <= 0 {
		return nil
	}
	price := mid + model.Price(rng.Intn(2*s.priceRange+1)-s.priceRange)
	if price <= 0 {
		price = 1
	}
	_, err := s.Submit(env, model.KindLimit, side, price, size)
	return err
}
