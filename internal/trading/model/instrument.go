package model

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Instrument describes the single traded symbol and its tick grid.
type Instrument struct {
	Symbol   string
	TickSize decimal.Decimal
}

func NewInstrument(symbol string, tickSize decimal.Decimal) Instrument {
	if tickSize.Sign() <= 0 {
		tickSize = decimal.New(1, -2)
	}
	return Instrument{Symbol: symbol, TickSize: tickSize}
}

// ToTicks converts a decimal price to ticks, rejecting off-grid prices.
func (i Instrument) ToTicks(price decimal.Decimal) (Price, error) {
	ticks := price.Div(i.TickSize)
	if !ticks.Equal(ticks.Truncate(0)) {
		return 0, fmt.Errorf("%w: price %s is not a multiple of tick %s", ErrInvalidOrder, price, i.TickSize)
	}
	return i.checkRange(price, ticks)
}

// RoundToTicks converts a decimal price to the nearest tick.
func (i Instrument) RoundToTicks(price decimal.Decimal) (Price, error) {
	return i.checkRange(price, price.Div(i.TickSize).Round(0))
}

var (
	maxTicks = decimal.NewFromInt(math.MaxInt64 - 1)
	minTicks = decimal.NewFromInt(math.MinInt64 + 1)
)

// checkRange refuses tick counts that do not fit a Price or that collide
// with the sentinels.
func (i Instrument) checkRange(price, ticks decimal.Decimal) (Price, error) {
	if ticks.GreaterThan(maxTicks) || ticks.LessThan(minTicks) {
		return 0, fmt.Errorf("%w: price %s is out of range for tick %s", ErrInvalidOrder, price, i.TickSize)
	}
	return Price(ticks.IntPart()), nil
}

// FromTicks converts ticks back to a decimal price. The sentinels map to zero.
func (i Instrument) FromTicks(p Price) decimal.Decimal {
	if p == PriceInfinity {
		return decimal.Zero
	}
	return i.TickSize.Mul(decimal.NewFromInt(int64(p)))
}
