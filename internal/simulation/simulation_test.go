package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/bots"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/basic"
	"github.com/Aidin1998/pincex_sim/internal/marketmaking/strategies/factory"
	"github.com/Aidin1998/pincex_sim/internal/simulation/latency"
	"github.com/Aidin1998/pincex_sim/internal/trading/engine"
	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSim(t *testing.T, cfg Config) *Simulation {
	t.Helper()
	book, err := orderbook.New(orderbook.Options{})
	require.NoError(t, err)
	bus := events.NewInMemoryEventBus(nil)
	eng := engine.New(nil, book, bus)
	lat := latency.New(latency.Config{Min: time.Millisecond, Max: 20 * time.Millisecond, Seed: cfg.Seed}, nil)
	mgr := bots.NewManager(nil, bots.Config{Capacity: 50, Seed: cfg.Seed}, factory.NewStrategyFactory(), eng, lat, bus)
	return New(nil, cfg, eng, lat, mgr)
}

func TestReferenceFeed_Deterministic(t *testing.T) {
	a := NewReferenceFeed(10000, 3, 42)
	b := NewReferenceFeed(10000, 3, 42)
	for i := 0; i < 500; i++ {
		require.Equal(t, a.Step(), b.Step())
		require.GreaterOrEqual(t, a.Price(), model.Price(1))
	}
}

func TestReferenceFeed_FlatAndFloor(t *testing.T) {
	flat := NewReferenceFeed(100, 0, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, model.Price(100), flat.Step())
	}
	low := NewReferenceFeed(1, 50, 1)
	for i := 0; i < 200; i++ {
		require.GreaterOrEqual(t, low.Step(), model.Price(1))
	}
}

func TestStep_AdvancesClockAndPublishes(t *testing.T) {
	s := newSim(t, Config{TickInterval: 50 * time.Millisecond, ReferencePrice: 10000, Seed: 1})
	var frames []Frame
	s.OnStep(func(_ context.Context, f Frame) { frames = append(frames, f) })

	s.Step(context.Background())
	s.Step(context.Background())
	require.Len(t, frames, 2)
	assert.Equal(t, uint64(2), frames[1].Step)
	assert.Equal(t, 100*time.Millisecond, frames[1].Now)
	assert.Equal(t, model.Price(10000), frames[1].Reference)
	assert.Equal(t, model.PriceInfinity, frames[1].BestAsk)
}

func TestStep_MarketMakerQuotesArriveAfterLatency(t *testing.T) {
	s := newSim(t, Config{TickInterval: 100 * time.Millisecond, ReferencePrice: 10000, Seed: 2})
	require.NoError(t, s.Exec(context.Background(), func() error {
		_, err := s.Bots().Deploy(context.Background(), basic.TypeMarketMaker, map[string]interface{}{"spread_ticks": 4})
		return err
	}))

	first := s.Step(context.Background())
	assert.Empty(t, first.Book.Bids, "quotes are still in flight after the deciding step")

	second := s.Step(context.Background())
	require.NotEmpty(t, second.Book.Bids)
	require.NotEmpty(t, second.Book.Asks)
	assert.Less(t, second.BestBid, second.BestAsk)
	assert.Equal(t, model.Price(4), second.Spread)
}

func TestExec_ManualOrder(t *testing.T) {
	s := newSim(t, Config{ReferencePrice: 100})
	var order *model.Order
	err := s.Exec(context.Background(), func() error {
		o := model.NewOrder(s.Engine().NextOrderID(), uuid.Nil, model.SideBid, model.KindLimit, 99, decimal.NewFromInt(1))
		var err error
		order, _, err = s.Engine().Submit(context.Background(), o)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, order.Status)
	assert.Equal(t, model.Price(99), s.Frame().BestBid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Exec(ctx, func() error { return nil }), context.Canceled)
}

func TestRun_StopsAtMaxSteps(t *testing.T) {
	s := newSim(t, Config{MaxSteps: 25, ReferencePrice: 10000, Volatility: 2, Seed: 3})
	for _, name := range []string{basic.TypeMarketMaker, basic.TypeNoise, basic.TypeNoise} {
		_, err := s.Bots().Deploy(context.Background(), name, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, uint64(25), s.Steps())
	assert.Equal(t, 25*defaultTickInterval, s.Now())
}

func TestRun_CancelIsCleanStop(t *testing.T) {
	s := newSim(t, Config{Speed: 1000, TickInterval: time.Second, ReferencePrice: 100})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}

// Same seed, same deployment: identical book after the same number of steps.
func TestRun_Reproducible(t *testing.T) {
	run := func() Frame {
		s := newSim(t, Config{MaxSteps: 40, ReferencePrice: 5000, Volatility: 1.5, Seed: 11})
		for _, name := range []string{basic.TypeMarketMaker, basic.TypeNoise} {
			_, err := s.Bots().Deploy(context.Background(), name, nil)
			require.NoError(t, err)
		}
		require.NoError(t, s.Run(context.Background()))
		return s.Frame()
	}
	a, b := run(), run()
	assert.Equal(t, a.Book, b.Book)
	assert.Equal(t, a.Reference, b.Reference)
}
