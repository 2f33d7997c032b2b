// Package clock measures frame deltas.
package clock

import "time"

// MaxDelta caps a single step; longer pauses (a debugger break, a stalled
// window) advance the simulation by MaxDelta only.
const MaxDelta = 100 * time.Millisecond

// Source returns a monotonic timestamp.
type Source func() time.Duration

// Monotonic reads the runtime's monotonic clock relative to process start.
func Monotonic() Source {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}

type Timer struct {
	now  Source
	base time.Duration
	prev time.Duration
	curr time.Duration
}

// New returns a timer over src, or the monotonic clock when src is nil.
// Call Reset before the first Tick.
func New(src Source) *Timer {
	if src == nil {
		src = Monotonic()
	}
	return &Timer{now: src}
}

// Reset takes the current time as both base and previous timestamp.
func (t *Timer) Reset() {
	now := t.now()
	t.base, t.prev, t.curr = now, now, now
}

// Tick returns the seconds since the previous Tick or Reset, clamped to
// [0, MaxDelta].
func (t *Timer) Tick() float32 {
	t.curr = t.now()
	dt := t.curr - t.prev
	t.prev = t.curr

	if dt < 0 {
		dt = 0
	}
	if dt > MaxDelta {
		dt = MaxDelta
	}
	return float32(dt.Seconds())
}

// TotalTime is the seconds between Reset and the last Tick, unclamped.
func (t *Timer) TotalTime() float32 {
	return float32((t.curr - t.base).Seconds())
}
