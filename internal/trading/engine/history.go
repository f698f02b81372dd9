package engine

import "github.com/Aidin1998/pincex_sim/internal/trading/model"

// tradeRing keeps the last N trades, overwriting the oldest when full.
type tradeRing struct {
	buf   []model.Trade
	start int
	count int
}

func newTradeRing(size int) *tradeRing {
	return &tradeRing{buf: make([]model.Trade, size)}
}

func (r *tradeRing) add(t model.Trade) {
	size := len(r.buf)
	idx := (r.start + r.count) % size
	if r.count == size {
		r.start = (r.start + 1) % size
		r.count--
	}
	r.buf[idx] = t
	r.count++
}

// last returns up to n newest trades, oldest first. n <= 0 means all.
func (r *tradeRing) last(n int) []model.Trade {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]model.Trade, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
