package engine

import (
	"context"
	"math/rand"
	"testing"

	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestEngine(t *testing.T, backend string, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	book, err := orderbook.New(orderbook.Options{Index: backend})
	require.NoError(t, err)
	bus := events.NewInMemoryEventBus(nil)
	rec := &recorder{}
	bus.SubscribeAll(func(e events.Event) { rec.events = append(rec.events, e) })
	return New(nil, book, bus, opts...), rec
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func limitOrder(side model.Side, price model.Price, size string) *model.Order {
	return model.NewOrder(0, uuid.Nil, side, model.KindLimit, price, dec(size))
}

func marketOrder(side model.Side, size string) *model.Order {
	return model.NewOrder(0, uuid.Nil, side, model.KindMarket, 0, dec(size))
}

func submit(t *testing.T, e *Engine, o *model.Order) (*model.Order, []model.Trade) {
	t.Helper()
	got, trades, err := e.Submit(context.Background(), o)
	require.NoError(t, err)
	return got, trades
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend string)) {
	for _, backend := range []string{orderbook.IndexBTree, orderbook.IndexRBTree} {
		t.Run(backend, func(t *testing.T) { fn(t, backend) })
	}
}

func TestScenarioA_LimitCrossesRestingBid(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		e, _ := newTestEngine(t, backend)

		bid, trades := submit(t, e, limitOrder(model.SideBid, 100, "5"))
		assert.Empty(t, trades)
		assert.Equal(t, model.StatusOpen, bid.Status)

		ask, trades := submit(t, e, limitOrder(model.SideAsk, 100, "3"))
		require.Len(t, trades, 1)
		assert.Equal(t, model.Price(100), trades[0].Price)
		assert.True(t, trades[0].Size.Equal(dec("3")))
		assert.Equal(t, bid.ID, trades[0].MakerOrderID)
		assert.Equal(t, ask.ID, trades[0].TakerOrderID)
		assert.Equal(t, model.SideAsk, trades[0].AggressorSide)
		assert.Equal(t, model.StatusFilled, ask.Status)

		assert.Equal(t, model.Price(100), e.BestBid())
		assert.Equal(t, model.PriceInfinity, e.BestAsk())
		snap := e.Snapshot(10)
		require.Len(t, snap.Bids, 1)
		assert.True(t, snap.Bids[0].Volume.Equal(dec("2")))
		assert.Empty(t, snap.Asks)
	})
}

func TestScenarioB_MarketOrderExhaustsLiquidity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		e, rec := newTestEngine(t, backend)
		submit(t, e, limitOrder(model.SideAsk, 101, "10"))
		rec.events = nil

		mkt, trades := submit(t, e, marketOrder(model.SideBid, "15"))
		require.Len(t, trades, 1)
		assert.Equal(t, model.Price(101), trades[0].Price)
		assert.True(t, trades[0].Size.Equal(dec("10")))

		assert.Equal(t, model.StatusRejected, mkt.Status)
		assert.True(t, mkt.Filled().Equal(dec("10")))
		assert.True(t, mkt.Remaining.Equal(dec("5")))
		_, resting := e.Order(mkt.ID)
		assert.False(t, resting, "market orders never rest")
		assert.Equal(t, model.PriceInfinity, e.BestAsk())
		assert.Equal(t, model.Price(0), e.BestBid())

		assert.Equal(t, []string{
			events.TypeOrderPlaced,
			events.TypeTradeExecuted,
			events.TypeOrderRejected,
		}, rec.types())
		rejected := rec.events[2].Payload.(events.OrderEvent)
		assert.Equal(t, events.ReasonNoLiquidity, rejected.Reason)
	})
}

func TestScenarioC_SamePriceFIFO(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		e, _ := newTestEngine(t, backend)
		a, _ := submit(t, e, limitOrder(model.SideBid, 100, "5"))
		b, _ := submit(t, e, limitOrder(model.SideBid, 100, "5"))

		_, trades := submit(t, e, limitOrder(model.SideAsk, 100, "7"))
		require.Len(t, trades, 2)
		assert.Equal(t, a.ID, trades[0].MakerOrderID)
		assert.True(t, trades[0].Size.Equal(dec("5")))
		assert.Equal(t, b.ID, trades[1].MakerOrderID)
		assert.True(t, trades[1].Size.Equal(dec("2")))
		assert.Less(t, trades[0].Seq, trades[1].Seq)

		_, ok := e.Order(a.ID)
		assert.False(t, ok)
		assert.Equal(t, model.StatusFilled, a.Status)
		rest, ok := e.Order(b.ID)
		require.True(t, ok)
		assert.True(t, rest.Remaining.Equal(dec("3")))
		assert.Equal(t, model.StatusPartiallyFilled, rest.Status)
	})
}

func TestMarketOrderWithEmptyBookIsRejected(t *testing.T) {
	e, rec := newTestEngine(t, orderbook.IndexBTree)
	mkt, trades := submit(t, e, marketOrder(model.SideAsk, "1"))
	assert.Empty(t, trades)
	assert.Equal(t, model.StatusRejected, mkt.Status)
	assert.Equal(t, []string{events.TypeOrderPlaced, events.TypeOrderRejected}, rec.types())
	assert.Equal(t, int64(1), e.Stats().OrdersRejected)
}

func TestMarketOrderFullyFilled(t *testing.T) {
	e, _ := newTestEngine(t, orderbook.IndexBTree)
	submit(t, e, limitOrder(model.SideBid, 99, "2"))
	submit(t, e, limitOrder(model.SideBid, 100, "2"))

	mkt, trades := submit(t, e, marketOrder(model.SideAsk, "3"))
	require.Len(t, trades, 2)
	assert.Equal(t, model.Price(100), trades[0].Price)
	assert.Equal(t, model.Price(99), trades[1].Price)
	assert.Equal(t, model.StatusFilled, mkt.Status)
	assert.Equal(t, model.Price(99), e.LastPrice())
}

func TestBetterPriceBeatsEarlierArrival(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		e, _ := newTestEngine(t, backend)
		early, _ := submit(t, e, limitOrder(model.SideAsk, 102, "1"))
		better, _ := submit(t, e, limitOrder(model.SideAsk, 101, "1"))

		_, trades := submit(t, e, limitOrder(model.SideBid, 102, "2"))
		require.Len(t, trades, 2)
		assert.Equal(t, better.ID, trades[0].MakerOrderID)
		assert.Equal(t, model.Price(101), trades[0].Price)
		assert.Equal(t, early.ID, trades[1].MakerOrderID)
	})
}

func TestLimitStopsAtCrossingBoundary(t *testing.T) {
	e, _ := newTestEngine(t, orderbook.IndexRBTree)
	submit(t, e, limitOrder(model.SideAsk, 100, "1"))
	submit(t, e, limitOrder(model.SideAsk, 105, "1"))

	bid, trades := submit(t, e, limitOrder(model.SideBid, 101, "3"))
	require.Len(t, trades, 1)
	assert.Equal(t, model.StatusPartiallyFilled, bid.Status)
	assert.Equal(t, model.Price(101), e.BestBid())
	assert.Equal(t, model.Price(105), e.BestAsk())
	assert.Equal(t, model.Price(4), e.Spread())
}

func TestFractionalSizesWithinEpsilon(t *testing.T) {
	e, _ := newTestEngine(t, orderbook.IndexBTree)
	maker, _ := submit(t, e, limitOrder(model.SideAsk, 100, "1.0000005"))

	_, trades := submit(t, e, limitOrder(model.SideBid, 100, "1"))
	require.Len(t, trades, 1)
	assert.Equal(t, model.StatusFilled, maker.Status)
	_, ok := e.Order(maker.ID)
	assert.False(t, ok, "dust remainder is purged")
	assert.Equal(t, model.PriceInfinity, e.BestAsk())
}

func TestSubmitInvalidAndDuplicate(t *testing.T) {
	e, rec := newTestEngine(t, orderbook.IndexBTree)

	bad := limitOrder(model.SideBid, 0, "1")
	got, trades, err := e.Submit(context.Background(), bad)
	assert.ErrorIs(t, err, model.ErrInvalidOrder)
	assert.Empty(t, trades)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, []string{events.TypeOrderRejected}, rec.types())

	first, _ := submit(t, e, limitOrder(model.SideBid, 100, "1"))
	dup := limitOrder(model.SideBid, 100, "1")
	dup.ID = first.ID
	_, _, err = e.Submit(context.Background(), dup)
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestPreassignedIDsAreKept(t *testing.T) {
	e, _ := newTestEngine(t, orderbook.IndexBTree)
	id := e.NextOrderID()
	o := limitOrder(model.SideBid, 100, "1")
	o.ID = id
	got, _ := submit(t, e, o)
	assert.Equal(t, id, got.ID)
	assert.NotEqual(t, id, e.NextOrderID())
}

func TestCancelIsIdempotent(t *testing.T) {
	e, rec := newTestEngine(t, orderbook.IndexBTree)
	o, _ := submit(t, e, limitOrder(model.SideBid, 100, "1"))
	rec.events = nil

	canceled := e.Cancel(context.Background(), o.ID)
	require.NotNil(t, canceled)
	assert.Equal(t, model.StatusCanceled, canceled.Status)
	assert.Nil(t, e.Cancel(context.Background(), o.ID))
	assert.Nil(t, e.Cancel(context.Background(), 9999))
	assert.Equal(t, []string{events.TypeOrderCanceled}, rec.types())
	assert.Equal(t, model.Price(0), e.BestBid())
}

func TestCancelAfterFillReturnsNil(t *testing.T) {
	e, _ := newTestEngine(t, orderbook.IndexBTree)
	maker, _ := submit(t, e, limitOrder(model.SideAsk, 100, "1"))
	submit(t, e, marketOrder(model.SideBid, "1"))
	assert.Nil(t, e.Cancel(context.Background(), maker.ID))
}

func TestTradeHistoryIsBounded(t *testing.T) {
	e, _ := newTestEngine(t, orderbook.IndexBTree, WithHistorySize(3))
	for i := 0; i < 5; i++ {
		submit(t, e, limitOrder(model.SideAsk, 100, "1"))
		submit(t, e, marketOrder(model.SideBid, "1"))
	}
	trades := e.Trades(0)
	require.Len(t, trades, 3)
	assert.Equal(t, uint64(3), trades[0].Seq)
	assert.Equal(t, uint64(5), trades[2].Seq)
	assert.Len(t, e.Trades(2), 2)
	assert.Equal(t, uint64(5), e.Trades(1)[0].Seq)
}

// Random flow: every trade conserves size, no order overfills and filled
// orders never stay in the book.
func TestConservationRandomized(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		rng := rand.New(rand.NewSource(42))
		e, _ := newTestEngine(t, backend)
		all := map[uint64]*model.Order{}
		remaining := map[uint64]decimal.Decimal{}

		for i := 0; i < 2000; i++ {
			side := model.SideBid
			if rng.Intn(2) == 0 {
				side = model.SideAsk
			}
			size := decimal.NewFromInt(int64(1 + rng.Intn(20))).Div(decimal.NewFromInt(4))
			var o *model.Order
			if rng.Intn(5) == 0 {
				o = model.NewOrder(0, uuid.Nil, side, model.KindMarket, 0, size)
			} else {
				o = model.NewOrder(0, uuid.Nil, side, model.KindLimit, model.Price(95+rng.Intn(10)), size)
			}

			// snapshot maker remainders before matching
			for id, r := range all {
				remaining[id] = r.Remaining
			}
			got, trades := submit(t, e, o)
			all[got.ID] = got
			taken := decimal.Zero
			for _, tr := range trades {
				maker := all[tr.MakerOrderID]
				require.NotNil(t, maker)
				require.True(t, tr.Size.LessThanOrEqual(remaining[maker.ID]))
				remaining[maker.ID] = remaining[maker.ID].Sub(tr.Size)
				require.True(t, maker.Remaining.Equal(remaining[maker.ID]))
				require.Equal(t, maker.Price, tr.Price)
				taken = taken.Add(tr.Size)
			}
			require.True(t, got.Filled().Equal(taken))

			if rng.Intn(4) == 0 {
				for id := range all {
					e.Cancel(context.Background(), id)
					break
				}
			}
			for _, ord := range all {
				require.False(t, ord.Remaining.IsNegative())
				_, resting := e.Order(ord.ID)
				if ord.Status.Terminal() {
					require.False(t, resting)
				}
			}
			require.True(t, e.BestBid() < e.BestAsk(), "book must not stay crossed")
		}
	})
}
