package simulation

import (
	"github.com/Aidin1998/pincex_sim/internal/trading/engine"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
)

// marketView is what agents see during a tick.
type marketView struct {
	engine *engine.Engine
	feed   *ReferenceFeed
}

func (m marketView) BestBid() model.Price        { return m.engine.BestBid() }
func (m marketView) BestAsk() model.Price        { return m.engine.BestAsk() }
func (m marketView) LastPrice() model.Price      { return m.engine.LastPrice() }
func (m marketView) ReferencePrice() model.Price { return m.feed.Price() }

func (m marketView) Snapshot(depth int) orderbook.Snapshot { return m.engine.Snapshot(depth) }
