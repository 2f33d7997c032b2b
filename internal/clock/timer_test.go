package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ now time.Duration }

func (c *fakeClock) source() Source { return func() time.Duration { return c.now } }

func TestTickClamps(t *testing.T) {
	clk := &fakeClock{now: 10 * time.Second}
	tm := New(clk.source())
	tm.Reset()

	steps := []struct {
		delta time.Duration
		want  float32
	}{
		{-10 * time.Millisecond, 0},
		{50 * time.Millisecond, 0.05},
		{5 * time.Second, 0.1},
		{16 * time.Millisecond, 0.016},
		{100 * time.Millisecond, 0.1},
	}
	for _, s := range steps {
		clk.now += s.delta
		assert.InDelta(t, s.want, tm.Tick(), 1e-6, "delta %v", s.delta)
	}
}

func TestTotalTime(t *testing.T) {
	clk := &fakeClock{now: time.Second}
	tm := New(clk.source())
	tm.Reset()
	assert.Zero(t, tm.TotalTime())

	clk.now += 2 * time.Second
	tm.Tick()
	clk.now += 500 * time.Millisecond
	tm.Tick()
	assert.InDelta(t, 2.5, tm.TotalTime(), 1e-6)
}

func TestResetRestartsDelta(t *testing.T) {
	clk := &fakeClock{}
	tm := New(clk.source())
	tm.Reset()
	clk.now += time.Hour
	tm.Reset()
	clk.now += 20 * time.Millisecond
	assert.InDelta(t, 0.02, tm.Tick(), 1e-6)
}

func TestMonotonicAdvances(t *testing.T) {
	tm := New(nil)
	tm.Reset()
	dt := tm.Tick()
	assert.GreaterOrEqual(t, dt, float32(0))
	assert.LessOrEqual(t, dt, float32(MaxDelta.Seconds()))
}
