package advanced

import (
	"context"
	"fmt"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/common"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/shopspring/decimal"
)

const TypePredatory = "predatory"

// Predatory watches the visible depth for unusually large resting levels and
// steps one tick in front of them. Orders are pulled once the wall they were
// front-running is gone.
type Predatory struct {
	*common.BaseAgent
	minVolume decimal.Decimal
	size      decimal.Decimal
	depth     int
}

func NewPredatory(config common.StrategyConfig) (*Predatory, error) {
	r := &common.ParamReader{Params: config.Parameters}
	p := &Predatory{
		BaseAgent: common.NewBaseAgent(config),
		minVolume: r.Decimal("min_volume", 20),
		size:      r.Decimal("size", 1),
		depth:     r.Int("depth", 10),
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if !p.minVolume.IsPositive() || !p.size.IsPositive() || p.depth < 1 {
		return nil, fmt.Errorf("predatory needs positive min_volume, size and depth")
	}
	return p, nil
}

func (s *Predatory) Tick(ctx context.Context, env common.Env) error {
	snap := env.Market.Snapshot(s.depth)
	bestBid, bestAsk := env.Market.BestBid(), env.Market.BestAsk()

	targets := map[model.Side]model.Price{}
	if wall, ok := s.largest(snap.Bids, model.SideBid); ok && wall.Price+1 < bestAsk {
		targets[model.SideBid] = wall.Price + 1
	}
	if wall, ok := s.largest(snap.Asks, model.SideAsk); ok && wall.Price-1 > bestBid {
		targets[model.SideAsk] = wall.Price - 1
	}

	holding := map[model.Side]bool{}
	for _, o := range s.OpenOrders() {
		if o.Kind != model.KindLimit {
			continue
		}
		if target, ok := targets[o.Side]; ok && target == o.Price {
			holding[o.Side] = true
			continue
		}
		if err := s.Cancel(env, o.ID); err != nil {
			return err
		}
	}
	for _, side := range []model.Side{model.SideBid, model.SideAsk} {
		target, ok := targets[side]
		if !ok || holding[side] {
			continue
		}
		if _, err := s.Submit(env, model.KindLimit, side, target, s.size); err != nil {
			return err
		}
	}
	return nil
}

// largest finds the biggest level at or above minVolume, ignoring size the
// agent itself rests there.
func (s *Predatory) largest(levels []orderbook.LevelView, side model.Side) (orderbook.LevelView, bool) {
	own := map[model.Price]decimal.Decimal{}
	for _, o := range s.OpenOrders() {
		if o.Side == side {
			own[o.Price] = own[o.Price].Add(o.Remaining)
		}
	}
	var (
		best  orderbook.LevelView
		found bool
	)
	for _, level := range levels {
		vol := level.Volume.Sub(own[level.Price])
		if vol.LessThan(s.minVolume) {
			continue
		}
		if !found || vol.GreaterThan(best.Volume) {
			best = orderbook.LevelView{Price: level.Price, Volume: vol, Orders: level.Orders}
			found = true
		}
	}
	return best, found
}
