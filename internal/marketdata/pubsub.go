// Package marketdata mirrors the simulated market into Redis: the latest book
// snapshot and top of book are stored under fixed keys and every trade is
// published on a channel.
package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/simulation"
	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sinkName = "redis"

// Backend is the store the publisher writes to.
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Publish(ctx context.Context, channel string, value []byte) error
}

// RedisBackend implements Backend using Redis
type RedisBackend struct {
	client redis.Cmdable
}

func NewRedisBackend(client redis.Cmdable) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisBackend) Publish(ctx context.Context, channel string, value []byte) error {
	return r.client.Publish(ctx, channel, value).Err()
}

// TopOfBook is stored at <prefix>:top.
type TopOfBook struct {
	Symbol    string      `json:"symbol"`
	Step      uint64      `json:"step"`
	BestBid   model.Price `json:"best_bid"`
	BestAsk   model.Price `json:"best_ask"`
	Spread    model.Price `json:"spread"`
	LastPrice model.Price `json:"last_price"`
	Reference model.Price `json:"reference"`
}

// Publisher keeps only the newest frame pending; trades queue up to a bound.
type Publisher struct {
	backend Backend
	logger  *zap.Logger
	symbol  string
	prefix  string
	ttl     time.Duration

	mu     sync.Mutex
	frame  *simulation.Frame
	wake   chan struct{}
	trades chan model.Trade
}

func NewPublisher(backend Backend, symbol, prefix string, ttl time.Duration, buffer int, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Publisher{
		backend: backend,
		logger:  logger,
		symbol:  symbol,
		prefix:  prefix,
		ttl:     ttl,
		wake:    make(chan struct{}, 1),
		trades:  make(chan model.Trade, buffer),
	}
}

// Attach subscribes to trades on bus.
func (p *Publisher) Attach(bus events.EventBus) {
	bus.Subscribe(events.TopicTrade, p.onTrade)
}

// OnFrame is a simulation.Observer. Older unsent frames are replaced.
func (p *Publisher) OnFrame(_ context.Context, frame simulation.Frame) {
	p.mu.Lock()
	p.frame = &frame
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Publisher) onTrade(e events.Event) {
	te, ok := e.Payload.(events.TradeEvent)
	if !ok {
		return
	}
	select {
	case p.trades <- te.Trade:
	default:
		metrics.SinkErrors.WithLabelValues(sinkName).Inc()
	}
}

func (p *Publisher) BookKey() string      { return p.prefix + ":book" }
func (p *Publisher) TopKey() string       { return p.prefix + ":top" }
func (p *Publisher) TradeChannel() string { return p.prefix + ":trades" }

// Run writes until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("Redis market data publisher started", zap.String("prefix", p.prefix))
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-p.trades:
			p.publishTrade(ctx, t)
		case <-p.wake:
			p.mu.Lock()
			frame := p.frame
			p.frame = nil
			p.mu.Unlock()
			if frame != nil {
				p.storeFrame(ctx, *frame)
			}
		}
	}
}

func (p *Publisher) publishTrade(ctx context.Context, t model.Trade) {
	data, err := json.Marshal(t)
	if err == nil {
		err = p.backend.Publish(ctx, p.TradeChannel(), data)
	}
	if err != nil {
		p.fail("publish trade", err)
	}
}

func (p *Publisher) storeFrame(ctx context.Context, f simulation.Frame) {
	book, err := json.Marshal(f.Book)
	if err == nil {
		err = p.backend.Set(ctx, p.BookKey(), book, p.ttl)
	}
	if err != nil {
		p.fail("store book", err)
		return
	}
	top, err := json.Marshal(TopOfBook{
		Symbol:    p.symbol,
		Step:      f.Step,
		BestBid:   f.BestBid,
		BestAsk:   f.BestAsk,
		Spread:    f.Spread,
		LastPrice: f.LastPrice,
		Reference: f.Reference,
	})
	if err == nil {
		err = p.backend.Set(ctx, p.TopKey(), top, p.ttl)
	}
	if err != nil {
		p.fail("store top of book", err)
	}
}

func (p *Publisher) fail(op string, err error) {
	metrics.SinkErrors.WithLabelValues(sinkName).Inc()
	p.logger.Warn("Redis market data write failed", zap.String("op", op), zap.Error(err))
}
