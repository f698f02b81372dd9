package simulation

import (
	"math"
	"math/rand"

	"github.com/Aidin1998/pincex_sim/internal/trading/model"
)

// ReferenceFeed is an external price moving as a seeded Gaussian random walk,
// in ticks. It never drops below one tick.
type ReferenceFeed struct {
	price      model.Price
	volatility float64
	rng        *rand.Rand
	carry      float64
}

func NewReferenceFeed(start model.Price, volatility float64, seed int64) *ReferenceFeed {
	if start < 1 {
		start = 1
	}
	return &ReferenceFeed{
		price:      start,
		volatility: math.Abs(volatility),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Price is the current reference price.
func (f *ReferenceFeed) Price() model.Price { return f.price }

// Step draws the next move. Fractional ticks accumulate until they add up to a
// whole tick, so low volatilities still drift.
func (f *ReferenceFeed) Step() model.Price {
	if f.volatility == 0 {
		return f.price
	}
	f.carry += f.rng.NormFloat64() * f.volatility
	move := math.Trunc(f.carry)
	f.carry -= move
	next := f.price + model.Price(move)
	if next < 1 {
		next = 1
		f.carry = 0
	}
	f.price = next
	return f.price
}
