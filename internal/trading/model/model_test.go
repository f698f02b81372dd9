package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderFill(t *testing.T) {
	o := NewOrder(1, uuid.Nil, SideBid, KindLimit, 100, decimal.NewFromInt(5))

	o.Fill(decimal.NewFromInt(2))
	assert.Equal(t, StatusPartiallyFilled, o.Status)
	assert.True(t, o.Remaining.Equal(decimal.NewFromInt(3)))
	assert.True(t, o.Filled().Equal(decimal.NewFromInt(2)))

	// a remainder inside epsilon snaps to zero
	o.Fill(decimal.RequireFromString("2.9999999"))
	assert.Equal(t, StatusFilled, o.Status)
	assert.True(t, o.Remaining.IsZero())
}

func TestOrderOverfillPanics(t *testing.T) {
	o := NewOrder(1, uuid.Nil, SideAsk, KindLimit, 100, decimal.NewFromInt(1))
	assert.Panics(t, func() { o.Fill(decimal.NewFromInt(2)) })
}

func TestOrderValidate(t *testing.T) {
	cases := []struct {
		name string
		o    *Order
		ok   bool
	}{
		{"limit", NewOrder(1, uuid.Nil, SideBid, KindLimit, 100, decimal.NewFromInt(1)), true},
		{"market ignores price", NewOrder(1, uuid.Nil, SideAsk, KindMarket, 0, decimal.NewFromInt(1)), true},
		{"zero size", NewOrder(1, uuid.Nil, SideBid, KindLimit, 100, decimal.Zero), false},
		{"dust size", NewOrder(1, uuid.Nil, SideBid, KindLimit, 100, decimal.RequireFromString("0.0000001")), false},
		{"zero price", NewOrder(1, uuid.Nil, SideBid, KindLimit, 0, decimal.NewFromInt(1)), false},
		{"bad side", NewOrder(1, uuid.Nil, Side("UP"), KindLimit, 100, decimal.NewFromInt(1)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.o.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidOrder)
			}
		})
	}
}

func TestCrosses(t *testing.T) {
	bid := NewOrder(1, uuid.Nil, SideBid, KindLimit, 100, decimal.NewFromInt(1))
	assert.True(t, bid.Crosses(100))
	assert.True(t, bid.Crosses(99))
	assert.False(t, bid.Crosses(PriceInfinity))

	ask := NewOrder(2, uuid.Nil, SideAsk, KindLimit, 100, decimal.NewFromInt(1))
	assert.True(t, ask.Crosses(101))
	assert.False(t, ask.Crosses(0))
}

func TestInstrumentTicks(t *testing.T) {
	inst := NewInstrument("SIM", decimal.RequireFromString("0.01"))

	p, err := inst.ToTicks(decimal.RequireFromString("101.25"))
	require.NoError(t, err)
	assert.Equal(t, Price(10125), p)
	assert.Equal(t, "101.25", inst.FromTicks(p).String())

	_, err = inst.ToTicks(decimal.RequireFromString("101.255"))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	rounded, err := inst.RoundToTicks(decimal.RequireFromString("101.255"))
	require.NoError(t, err)
	assert.Equal(t, Price(10126), rounded)

	for _, raw := range []string{"184467440737095516.17", "92233720368547758.07", "-184467440737095516.11"} {
		_, err = inst.ToTicks(decimal.RequireFromString(raw))
		assert.ErrorIs(t, err, ErrInvalidOrder, raw)
		_, err = inst.RoundToTicks(decimal.RequireFromString(raw))
		assert.ErrorIs(t, err, ErrInvalidOrder, raw)
	}
	p, err = inst.ToTicks(decimal.RequireFromString("92233720368547758.06"))
	require.NoError(t, err)
	assert.Equal(t, PriceInfinity-1, p)
	assert.True(t, inst.FromTicks(PriceInfinity).IsZero())
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, SideBid, s)
	assert.Equal(t, SideAsk, s.Opposite())

	_, err = ParseSide("hold")
	assert.ErrorIs(t, err, ErrInvalidSide)
}
