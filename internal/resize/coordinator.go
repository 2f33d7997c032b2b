// Package resize coalesces window resize notifications into swapchain
// recreations.
//
// A live drag emits many size notifications per second. While a drag is in
// progress only the last size is remembered, and the device is resized once
// when the drag ends. Sizes reported outside a drag (programmatic resizes,
// restore from minimize) are applied immediately.
package resize

import (
	"fmt"
	"time"

	"Trigon/internal/render"
)

// DefaultSettleDelay ends a drag when no size change arrived for this long.
const DefaultSettleDelay = 200 * time.Millisecond

// Resizer is the device side of a resize.
type Resizer interface {
	Resize(width, height uint32) error
	Extent() render.Extent
}

// Listener receives resize notifications from the window layer.
type Listener interface {
	BeginDrag()
	OnResize(width, height uint32) error
	EndDrag() error
}

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option func(*Coordinator)

// WithSettleDelay sets how long a drag may stay quiet before Poll ends it.
// Zero disables the timeout, leaving EndDrag as the only way out.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.settle = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator is a two-state machine (Idle, Dragging) in front of a Resizer.
// It implements Listener and is used from the render thread only.
type Coordinator struct {
	target Resizer
	now    func() time.Time
	settle time.Duration

	state      State
	pending    render.Extent
	hasPending bool
	lastChange time.Time
}

var _ Listener = (*Coordinator)(nil)

func New(target Resizer, opts ...Option) *Coordinator {
	c := &Coordinator{
		target: target,
		now:    time.Now,
		settle: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginDrag enters Dragging. It is ignored while already dragging.
func (c *Coordinator) BeginDrag() {
	if c.state == Dragging {
		return
	}
	c.state = Dragging
	c.lastChange = c.now()
	render.Logger().Debug("resize drag started")
}

// SizeChanged records the size while dragging, or resizes the device
// immediately when idle.
func (c *Coordinator) SizeChanged(width, height uint32) error {
	if c.state == Dragging {
		c.pending = render.Extent{Width: width, Height: height}
		c.hasPending = true
		c.lastChange = c.now()
		return nil
	}
	return c.apply(render.Extent{Width: width, Height: height})
}

// OnResize is the window callback; it is SizeChanged.
func (c *Coordinator) OnResize(width, height uint32) error {
	return c.SizeChanged(width, height)
}

// EndDrag returns to Idle and applies the last size seen during the drag,
// once, if it differs from the device's current extent.
func (c *Coordinator) EndDrag() error {
	if c.state != Dragging {
		return nil
	}
	c.state = Idle
	ext, ok := c.pending, c.hasPending
	c.pending, c.hasPending = render.Extent{}, false
	if !ok || ext == c.target.Extent() {
		render.Logger().Debug("resize drag ended without size change")
		return nil
	}
	return c.apply(ext)
}

// Poll ends a drag that has been quiet for the settle delay. Call it once
// per loop iteration.
func (c *Coordinator) Poll() error {
	if c.state != Dragging || c.settle <= 0 {
		return nil
	}
	if c.now().Sub(c.lastChange) < c.settle {
		return nil
	}
	return c.EndDrag()
}

func (c *Coordinator) apply(ext render.Extent) error {
	render.Logger().Debug("applying resize", "extent", ext.String())
	if err := c.target.Resize(ext.Width, ext.Height); err != nil {
		return fmt.Errorf("resize to %s: %w", ext, err)
	}
	return nil
}

func (c *Coordinator) State() State { return c.state }

// Pending returns the size recorded during the current drag.
func (c *Coordinator) Pending() (render.Extent, bool) { return c.pending, c.hasPending }
