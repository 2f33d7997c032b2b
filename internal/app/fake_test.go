package app

import (
	"errors"
	"fmt"

	"Trigon/internal/render"
	"Trigon/internal/resize"
)

type testTarget struct {
	id  int
	ext render.Extent
}

func (t *testTarget) Extent() render.Extent { return t.ext }

// testBackend is a recording render.Backend.
type testBackend struct {
	calls []string

	resizeErr   error
	failTargets int
	// surface, when set, fixes the swapchain size to the window's like a
	// window system that reports a current extent, and makes Clear report
	// the surface lost while the buffers do not match it.
	surface *scriptWindow

	devices  int
	buffers  render.Extent
	nextID   int
	bound    render.RenderTarget
	pipeline *render.PipelineDesc
	uniform  []byte
	draws    int
	presents int
}

func (b *testBackend) record(format string, args ...any) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *testBackend) CreateDevice(desc render.DeviceDesc) error {
	b.record("CreateDevice")
	b.devices++
	b.buffers = desc.Extent
	return nil
}

func (b *testBackend) CreateRenderTarget() (render.RenderTarget, error) {
	b.record("CreateRenderTarget")
	if b.failTargets > 0 {
		b.failTargets--
		return nil, errors.New("out of memory")
	}
	b.nextID++
	return &testTarget{id: b.nextID, ext: b.buffers}, nil
}

func (b *testBackend) BindRenderTarget(rt render.RenderTarget) { b.bound = rt }

func (b *testBackend) ReleaseRenderTarget(render.RenderTarget) {}

func (b *testBackend) ResizeBuffers(ext render.Extent) error {
	if b.surface != nil {
		ext = b.surface.extent()
	}
	b.record("ResizeBuffers %s", ext)
	if b.resizeErr != nil {
		return b.resizeErr
	}
	b.buffers = ext
	return nil
}

func (b *testBackend) SetViewport(render.Viewport) {}

func (b *testBackend) CreatePipeline(desc render.PipelineDesc) error {
	b.record("CreatePipeline")
	b.pipeline = &desc
	return nil
}

func (b *testBackend) CreateVertexBuffer([]byte) error { return nil }

func (b *testBackend) CreateUniformBuffer(int) error { return nil }

func (b *testBackend) Clear(render.Color) error {
	if b.bound == nil {
		return errors.New("no render target bound")
	}
	if b.surface != nil && b.buffers != b.surface.extent() {
		return fmt.Errorf("acquire: %w", render.ErrSurfaceLost)
	}
	return nil
}

func (b *testBackend) WriteUniform(data []byte) error {
	b.uniform = append(b.uniform[:0], data...)
	return nil
}

func (b *testBackend) BindUniform(uint32) {}

func (b *testBackend) Draw(uint32) error {
	b.draws++
	return nil
}

func (b *testBackend) Present(int) error {
	b.presents++
	return nil
}

func (b *testBackend) Release() { b.record("Release") }

// scriptWindow runs one scripted step per ProcessMessages call and closes
// after the last one.
type scriptWindow struct {
	w, h      int
	steps     []func(w *scriptWindow)
	step      int
	minimized bool
	titles    []string
	listener  resize.Listener
}

func (w *scriptWindow) FramebufferSize() (int, int) { return w.w, w.h }

func (w *scriptWindow) extent() render.Extent {
	return render.Extent{Width: uint32(w.w), Height: uint32(w.h)}
}

func (w *scriptWindow) ProcessMessages() bool {
	if w.step >= len(w.steps) {
		return false
	}
	if fn := w.steps[w.step]; fn != nil {
		fn(w)
	}
	w.step++
	return true
}

func (w *scriptWindow) Minimized() bool { return w.minimized }

func (w *scriptWindow) SetTitle(title string) { w.titles = append(w.titles, title) }

func (w *scriptWindow) SetResizeListener(l resize.Listener) { w.listener = l }

func (w *scriptWindow) drag(sizes ...[2]int) {
	w.listener.BeginDrag()
	for _, s := range sizes {
		w.w, w.h = s[0], s[1]
		_ = w.listener.OnResize(uint32(s[0]), uint32(s[1]))
	}
	_ = w.listener.EndDrag()
}

// liveResize reports one size the way glfw does mid-drag: a drag is opened
// (or extended) and never explicitly ended.
func (w *scriptWindow) liveResize(width, height int) {
	w.w, w.h = width, height
	w.listener.BeginDrag()
	_ = w.listener.OnResize(uint32(width), uint32(height))
}

func idleSteps(n int) []func(*scriptWindow) {
	return make([]func(*scriptWindow), n)
}
