package latency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceRunsInDueOrder(t *testing.T) {
	s := New(Config{}, nil)
	var got []string
	s.ScheduleAfter(30*time.Millisecond, func() { got = append(got, "c") })
	s.ScheduleAfter(10*time.Millisecond, func() { got = append(got, "a") })
	s.ScheduleAfter(20*time.Millisecond, func() { got = append(got, "b") })

	assert.Equal(t, 2, s.Advance(20*time.Millisecond))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 20*time.Millisecond, s.Now())
	assert.Equal(t, 1, s.Pending())

	assert.Equal(t, 1, s.Advance(time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, time.Second, s.Now())
}

func TestEqualDueKeepsScheduleOrder(t *testing.T) {
	s := New(Config{}, nil)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		s.ScheduleAfter(5*time.Millisecond, func() { got = append(got, i) })
	}
	s.Advance(5 * time.Millisecond)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

// Two submissions in the same step can arrive in the opposite order.
func TestLaterDecisionCanArriveFirst(t *testing.T) {
	s := New(Config{}, nil)
	var got []string
	s.ScheduleAfter(8*time.Millisecond, func() { got = append(got, "first decision") })
	s.ScheduleAfter(2*time.Millisecond, func() { got = append(got, "second decision") })
	s.Advance(10 * time.Millisecond)
	assert.Equal(t, []string{"second decision", "first decision"}, got)
}

func TestCallbacksScheduledDuringAdvance(t *testing.T) {
	s := New(Config{}, nil)
	var got []string
	s.ScheduleAfter(time.Millisecond, func() {
		got = append(got, "outer")
		s.ScheduleAfter(time.Millisecond, func() { got = append(got, "inner") })
		s.ScheduleAfter(time.Hour, func() { got = append(got, "late") })
	})
	assert.Equal(t, 2, s.Advance(5*time.Millisecond))
	assert.Equal(t, []string{"outer", "inner"}, got)
	assert.Equal(t, 1, s.Flush())
	assert.Equal(t, []string{"outer", "inner", "late"}, got)
	assert.Equal(t, 0, s.Pending())
}

func TestSampleWithinBoundsAndSeeded(t *testing.T) {
	cfg := Config{Min: 2 * time.Millisecond, Max: 9 * time.Millisecond, Seed: 11}
	a, b := New(cfg, nil), New(cfg, nil)
	for i := 0; i < 500; i++ {
		d := a.Sample()
		require.GreaterOrEqual(t, d, cfg.Min)
		require.LessOrEqual(t, d, cfg.Max)
		require.Equal(t, d, b.Sample())
	}

	fixed := New(Config{Min: 3 * time.Millisecond, Max: time.Millisecond}, nil)
	assert.Equal(t, 3*time.Millisecond, fixed.Sample())
}
