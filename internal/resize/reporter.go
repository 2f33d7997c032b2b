package resize

import "Trigon/internal/render"

// Reporter turns raw framebuffer size events into Listener calls for a
// window system that reports no drag boundaries.
//
// A change between two visible sizes opens (or extends) a drag, which the
// Coordinator's settle delay closes. Entering or leaving a zero size and
// restoring from minimize are delivered outside a drag, so they resize
// immediately. Repeats of the last reported size are dropped.
type Reporter struct {
	l    Listener
	last render.Extent
}

// NewReporter starts from the window's current framebuffer size.
func NewReporter(l Listener, width, height int) *Reporter {
	return &Reporter{l: l, last: toExtent(width, height)}
}

// FramebufferChanged is the framebuffer size callback.
func (r *Reporter) FramebufferChanged(width, height int) error {
	ext := toExtent(width, height)
	return r.report(ext, visible(r.last) && visible(ext))
}

// Restored is the iconify callback for the un-minimize edge.
func (r *Reporter) Restored(width, height int) error {
	return r.report(toExtent(width, height), false)
}

func (r *Reporter) report(ext render.Extent, drag bool) error {
	if ext == r.last {
		return nil
	}
	r.last = ext
	if drag {
		r.l.BeginDrag()
	}
	return r.l.OnResize(ext.Width, ext.Height)
}

func visible(ext render.Extent) bool { return ext.Width > 0 && ext.Height > 0 }

func toExtent(width, height int) render.Extent {
	return render.Extent{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))}
}
