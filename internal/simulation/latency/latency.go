// Package latency defers callbacks on a virtual timeline to model network delay
// between a decision and its effect on the exchange.
package latency

import (
	"math/rand"
	"time"

	"github.com/Aidin1998/pincex_sim/pkg/metrics"
	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
	"go.uber.org/zap"
)

// Config bounds the sampled delay. Delays are uniform in [Min, Max].
type Config struct {
	Min  time.Duration
	Max  time.Duration
	Seed int64
}

type call struct {
	due time.Duration
	seq uint64
	fn  func()
}

// byDueThenSeq orders calls by due time, then by scheduling order.
func byDueThenSeq(a, b *call) int {
	switch {
	case a.due < b.due:
		return -1
	case a.due > b.due:
		return 1
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// Simulator is a deferred-callback scheduler on a virtual clock. It runs
// callbacks only from Advance, on the caller's goroutine, and is not safe for
// concurrent use.
type Simulator struct {
	logger *zap.Logger
	cfg    Config
	rng    *rand.Rand
	queue  *pq.Queue[*call]
	now    time.Duration
	seq    uint64
}

func New(cfg Config, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	return &Simulator{
		logger: logger,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		queue:  pq.NewWith[*call](byDueThenSeq),
	}
}

// Now is the virtual time reached by the last Advance.
func (s *Simulator) Now() time.Duration { return s.now }

// Sample draws one network delay.
func (s *Simulator) Sample() time.Duration {
	span := s.cfg.Max - s.cfg.Min
	if span <= 0 {
		return s.cfg.Min
	}
	return s.cfg.Min + time.Duration(s.rng.Int63n(int64(span)+1))
}

// Schedule defers fn by a sampled delay and returns the delay used.
func (s *Simulator) Schedule(fn func()) time.Duration {
	delay := s.Sample()
	s.ScheduleAfter(delay, fn)
	return delay
}

// ScheduleAfter defers fn by exactly delay from the current virtual time.
func (s *Simulator) ScheduleAfter(delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	s.queue.Enqueue(&call{due: s.now + delay, seq: s.seq, fn: fn})
	metrics.SimulatedLatency.Observe(delay.Seconds())
}

// Advance moves the clock to `to`, running every callback due at or before it
// in (due, schedule order). Callbacks scheduled while advancing run too if they
// fall due within the window. Returns the number of callbacks run.
func (s *Simulator) Advance(to time.Duration) int {
	ran := 0
	for {
		next, ok := s.queue.Peek()
		if !ok || next.due > to {
			break
		}
		s.queue.Dequeue()
		if next.due > s.now {
			s.now = next.due
		}
		s.run(next)
		ran++
	}
	if to > s.now {
		s.now = to
	}
	return ran
}

func (s *Simulator) run(c *call) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Deferred call panicked", zap.Any("recover", r), zap.Duration("due", c.due))
			panic(r)
		}
	}()
	c.fn()
}

// Pending is the number of callbacks not yet run.
func (s *Simulator) Pending() int { return s.queue.Size() }

// Flush runs everything still queued regardless of due time.
func (s *Simulator) Flush() int {
	ran := 0
	for !s.queue.Empty() {
		next, _ := s.queue.Peek()
		ran += s.Advance(next.due)
	}
	return ran
}
