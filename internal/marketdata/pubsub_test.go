package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/simulation"
	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu        sync.Mutex
	values    map[string][]byte
	ttls      map[string]time.Duration
	published map[string][][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{values: map[string][]byte{}, ttls: map[string]time.Duration{}, published: map[string][][]byte{}}
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memBackend) Publish(_ context.Context, channel string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[channel] = append(m.published[channel], value)
	return nil
}

func (m *memBackend) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memBackend) count(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published[channel])
}

func TestPublisher_StoresFrameAndTrades(t *testing.T) {
	backend := newMemBackend()
	bus := events.NewInMemoryEventBus(nil)
	p := NewPublisher(backend, "SIM-USD", "sim", 30*time.Second, 8, nil)
	p.Attach(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.OnFrame(ctx, simulation.Frame{Step: 1, BestBid: 99})
	p.OnFrame(ctx, simulation.Frame{Step: 2, BestBid: 100, BestAsk: 102, Spread: 2, Reference: 101})
	bus.Publish(ctx, events.Event{
		Topic:   events.TopicTrade,
		Type:    events.TypeTradeExecuted,
		Payload: events.TradeEvent{Trade: model.Trade{Seq: 1, Price: 101, Size: decimal.NewFromInt(1)}},
	})

	require.Eventually(t, func() bool {
		raw, ok := backend.get(p.TopKey())
		if !ok {
			return false
		}
		var top TopOfBook
		return json.Unmarshal(raw, &top) == nil && top.Step == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return backend.count(p.TradeChannel()) == 1 }, 2*time.Second, 10*time.Millisecond)

	raw, ok := backend.get(p.TopKey())
	require.True(t, ok)
	var top TopOfBook
	require.NoError(t, json.Unmarshal(raw, &top))
	assert.Equal(t, "SIM-USD", top.Symbol)
	assert.Equal(t, model.Price(2), top.Spread)
	_, ok = backend.get(p.BookKey())
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, backend.ttls[p.BookKey()])
}
