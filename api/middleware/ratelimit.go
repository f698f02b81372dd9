// Package middleware holds gin middleware for the simulator API.
package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_sim/api/responses"
	"github.com/Aidin1998/pincex_sim/pkg/errors"
	"github.com/Aidin1998/pincex_sim/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	idleLimiterTTL = 10 * time.Minute
	sweepInterval  = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	rate  rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// NewLimiter allows rps requests per second per key with bursts of burst.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	return &Limiter{
		rate:    rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) > sweepInterval {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Allow takes a token for key. It returns the whole tokens left and, when
// refused, how long until the next token.
func (l *Limiter) Allow(key string) (bool, int, time.Duration) {
	now := l.now()
	lim := l.get(key, now)
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, 0
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, remaining(lim, now), wait
	}
	return true, remaining(lim, now), 0
}

func remaining(lim *rate.Limiter, now time.Time) int {
	t := lim.TokensAt(now)
	if t < 0 {
		return 0
	}
	return int(t)
}

// RateLimit rejects requests over the per-client budget with 429. A nil
// limiter lets everything through.
func RateLimit(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		ok, left, wait := l.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(left))
		if !ok {
			metrics.APIRateLimited.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			responses.Error(c, errors.NewRateLimitedError("request rate exceeded, retry later", c.Request.URL.Path))
			return
		}
		c.Next()
	}
}
