// Package simulation drives the market on a virtual clock: each step moves the
// reference price, ticks every agent and delivers whatever the latency layer
// has due.
package simulation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/marketmaking/bots"
	"github.com/Aidin1998/pincex_sim/internal/simulation/latency"
	"github.com/Aidin1998/pincex_sim/internal/trading/engine"
	"github.com/Aidin1998/pincex_sim/internal/trading/model"
	"github.com/Aidin1998/pincex_sim/internal/trading/orderbook"
	"go.uber.org/zap"
)

const (
	defaultTickInterval  = 100 * time.Millisecond
	defaultSnapshotDepth = 20
)

// Config controls pacing and the reference feed.
type Config struct {
	TickInterval time.Duration
	// Speed is virtual time per wall-clock time. Zero runs steps back to back.
	Speed          float64
	MaxSteps       uint64
	ReferencePrice model.Price
	Volatility     float64
	Seed           int64
	SnapshotDepth  int
}

// Frame is the market state published after each step.
type Frame struct {
	Step      uint64             `json:"step"`
	Now       time.Duration      `json:"now"`
	Reference model.Price        `json:"reference"`
	BestBid   model.Price        `json:"best_bid"`
	BestAsk   model.Price        `json:"best_ask"`
	Spread    model.Price        `json:"spread"`
	LastPrice model.Price        `json:"last_price"`
	Book      orderbook.Snapshot `json:"book"`
}

// Observer receives a frame after every step. It runs on the loop and must not
// block.
type Observer func(ctx context.Context, frame Frame)

// Simulation owns the engine, latency simulator and bot manager. All access to
// them goes through Step or Exec, which never run concurrently.
type Simulation struct {
	logger    *zap.Logger
	cfg       Config
	engine    *engine.Engine
	latency   *latency.Simulator
	bots      *bots.Manager
	feed      *ReferenceFeed
	view      marketView
	observers []Observer

	mu   sync.Mutex
	step uint64
}

func New(logger *zap.Logger, cfg Config, eng *engine.Engine, lat *latency.Simulator, mgr *bots.Manager) *Simulation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.SnapshotDepth <= 0 {
		cfg.SnapshotDepth = defaultSnapshotDepth
	}
	feed := NewReferenceFeed(cfg.ReferencePrice, cfg.Volatility, cfg.Seed)
	return &Simulation{
		logger:  logger,
		cfg:     cfg,
		engine:  eng,
		latency: lat,
		bots:    mgr,
		feed:    feed,
		view:    marketView{engine: eng, feed: feed},
	}
}

// OnStep registers an observer. Call before Run.
func (s *Simulation) OnStep(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Step advances the virtual clock by one tick interval.
func (s *Simulation) Step(ctx context.Context) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepLocked(ctx)
}

func (s *Simulation) stepLocked(ctx context.Context) Frame {
	s.step++
	now := s.latency.Now() + s.cfg.TickInterval
	s.latency.Advance(now)
	s.feed.Step()
	s.bots.Tick(ctx, now, s.step, s.view)

	frame := s.frameLocked()
	for _, o := range s.observers {
		o(ctx, frame)
	}
	return frame
}

func (s *Simulation) frameLocked() Frame {
	return Frame{
		Step:      s.step,
		Now:       s.latency.Now(),
		Reference: s.feed.Price(),
		BestBid:   s.engine.BestBid(),
		BestAsk:   s.engine.BestAsk(),
		Spread:    s.engine.Spread(),
		LastPrice: s.engine.LastPrice(),
		Book:      s.engine.Snapshot(s.cfg.SnapshotDepth),
	}
}

// Frame returns the current state without stepping.
func (s *Simulation) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

// Exec runs fn with exclusive access to the simulation state.
func (s *Simulation) Exec(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// Run steps until ctx is done or MaxSteps is reached. A canceled context is a
// normal stop and returns nil.
func (s *Simulation) Run(ctx context.Context) error {
	s.logger.Info("Simulation started",
		zap.Duration("tick_interval", s.cfg.TickInterval),
		zap.Float64("speed", s.cfg.Speed),
		zap.Uint64("max_steps", s.cfg.MaxSteps))
	defer func() {
		s.logger.Info("Simulation stopped", zap.Uint64("steps", s.Steps()), zap.Int("pending", s.pending()))
	}()

	var tick <-chan time.Time
	if s.cfg.Speed > 0 {
		ticker := time.NewTicker(time.Duration(float64(s.cfg.TickInterval) / s.cfg.Speed))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if s.cfg.MaxSteps > 0 && s.Steps() >= s.cfg.MaxSteps {
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return ignoreCanceled(ctx.Err())
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return ignoreCanceled(err)
		}
		s.Step(ctx)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Steps is the number of steps taken.
func (s *Simulation) Steps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Simulation) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency.Pending()
}

// Now is the virtual time.
func (s *Simulation) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency.Now()
}

// Engine exposes the engine for use inside Exec.
func (s *Simulation) Engine() *engine.Engine { return s.engine }

// Bots exposes the bot manager for use inside Exec.
func (s *Simulation) Bots() *bots.Manager { return s.bots }

// Reference exposes the reference feed for use inside Exec.
func (s *Simulation) Reference() *ReferenceFeed { return s.feed }
