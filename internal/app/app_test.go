package app

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Trigon/internal/camera"
	"Trigon/internal/render"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ShaderPath = "../../shaders/basic.wgsl"
	cfg.Validation = false
	return cfg
}

// stepClock advances by step on every read.
func stepClock(step time.Duration) func() time.Duration {
	var now time.Duration
	return func() time.Duration {
		now += step
		return now
	}
}

func newTestApp(t *testing.T, win *scriptWindow, b *testBackend) *App {
	t.Helper()
	a, err := New(testConfig(), win, b, WithClock(stepClock(250*time.Millisecond)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewBuildsPipelineFromShader(t *testing.T) {
	b := &testBackend{}
	win := &scriptWindow{w: 800, h: 600}
	a := newTestApp(t, win, b)

	require.NotNil(t, b.pipeline)
	assert.Equal(t, render.VertexLayout, b.pipeline.Layout)
	assert.Equal(t, render.Extent{Width: 800, Height: 600}, a.Device().Extent())
	assert.Same(t, a, win.listener)
	assert.InDelta(t, float32(800)/600, a.camera.Aspect(), 1e-6)
}

func TestNewMissingShader(t *testing.T) {
	cfg := testConfig()
	cfg.ShaderPath = "does/not/exist.wgsl"
	_, err := New(cfg, &scriptWindow{w: 800, h: 600}, &testBackend{})
	assert.Error(t, err)
}

func TestNewEmptyWindowFails(t *testing.T) {
	_, err := New(testConfig(), &scriptWindow{}, &testBackend{})
	assert.ErrorIs(t, err, render.ErrCreationFailed)
}

func TestFirstFrameUploadsTransposedViewProj(t *testing.T) {
	b := &testBackend{}
	win := &scriptWindow{w: 1280, h: 720}
	a := newTestApp(t, win, b)

	require.NoError(t, a.Renderer().Frame(0))

	cam := camera.New()
	want := mgl32.Ident4().Mul4(cam.View()).Mul4(cam.Proj()).Transpose()
	got, err := render.DecodePayload(b.uniform)
	require.NoError(t, err)
	assert.True(t, got.WorldViewProj.ApproxEqualThreshold(want, 1e-6), "got %v want %v", got.WorldViewProj, want)
	assert.Equal(t, 1, b.draws)
	assert.Equal(t, 1, b.presents)
}

func TestRunRendersUntilClose(t *testing.T) {
	b := &testBackend{}
	win := &scriptWindow{w: 800, h: 600, steps: idleSteps(5)}
	a := newTestApp(t, win, b)

	require.NoError(t, a.Run())
	assert.Equal(t, 5, b.draws)
	assert.Equal(t, 5, b.presents)
	// Four frames at 250ms close the first one-second window.
	assert.Equal(t, []string{"Trigon - FPS: 4.0"}, win.titles)
	assert.InDelta(t, 0.5, a.Renderer().Angle(), 1e-6, "each step clamps to 100ms")
}

func TestRunSkipsMinimizedFrames(t *testing.T) {
	b := &testBackend{}
	steps := []func(*scriptWindow){
		nil,
		func(w *scriptWindow) { w.minimized = true },
		nil,
		func(w *scriptWindow) { w.minimized = false },
	}
	win := &scriptWindow{w: 800, h: 600, steps: steps}
	a := newTestApp(t, win, b)

	require.NoError(t, a.Run())
	assert.Equal(t, 2, b.draws)
}

func TestRunAppliesDragOnce(t *testing.T) {
	b := &testBackend{}
	steps := idleSteps(3)
	steps[1] = func(w *scriptWindow) { w.drag([2]int{100, 100}, [2]int{200, 200}, [2]int{1024, 768}) }
	win := &scriptWindow{w: 800, h: 600, steps: steps}
	a := newTestApp(t, win, b)
	b.calls = nil

	require.NoError(t, a.Run())
	assert.Equal(t, []string{"ResizeBuffers 1024x768", "CreateRenderTarget"}, b.calls)
	assert.Equal(t, render.Extent{Width: 1024, Height: 768}, a.Device().Extent())
	assert.InDelta(t, float32(1024)/768, a.camera.Aspect(), 1e-6)
	assert.Equal(t, 3, b.draws)
}

func TestRunContinuesAfterRecoveredResize(t *testing.T) {
	b := &testBackend{}
	steps := idleSteps(3)
	steps[1] = func(w *scriptWindow) { w.drag([2]int{640, 480}) }
	win := &scriptWindow{w: 800, h: 600, steps: steps}
	a := newTestApp(t, win, b)
	b.resizeErr = errors.New("buffer still referenced")

	require.NoError(t, a.Run())
	assert.Equal(t, render.Extent{Width: 800, Height: 600}, a.Device().Extent())
	assert.Equal(t, 3, b.draws)
	assert.Equal(t, 1, b.devices)
}

func TestRunReinitializesAfterLostTarget(t *testing.T) {
	b := &testBackend{}
	steps := idleSteps(3)
	steps[1] = func(w *scriptWindow) {
		b.failTargets = 1
		w.drag([2]int{640, 480})
	}
	win := &scriptWindow{w: 800, h: 600, steps: steps}
	a := newTestApp(t, win, b)

	require.NoError(t, a.Run())
	assert.Equal(t, 2, b.devices)
	assert.Equal(t, render.Extent{Width: 640, Height: 480}, a.Device().Extent())
	assert.Equal(t, 3, b.draws)
}

func TestRunStopsOnFrameError(t *testing.T) {
	b := &testBackend{}
	win := &scriptWindow{w: 800, h: 600, steps: idleSteps(3)}
	a := newTestApp(t, win, b)
	a.Device().Release()

	err := a.Run()
	assert.ErrorIs(t, err, render.ErrNotInitialized)
	assert.Zero(t, b.draws)
}

func newLiveDragApp(t *testing.T, steps []func(*scriptWindow)) (*App, *testBackend) {
	t.Helper()
	win := &scriptWindow{w: 800, h: 600, steps: steps}
	b := &testBackend{surface: win}
	cfg := testConfig()
	cfg.SettleDelay = time.Hour
	a, err := New(cfg, win, b, WithClock(stepClock(250*time.Millisecond)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	b.calls = nil
	return a, b
}

func TestRunRendersNothingDuringLiveDrag(t *testing.T) {
	steps := idleSteps(6)
	for i := 1; i < len(steps); i++ {
		w, h := 800+10*i, 600+10*(i-1)
		steps[i] = func(win *scriptWindow) { win.liveResize(w, h) }
	}
	a, b := newLiveDragApp(t, steps)

	require.NoError(t, a.Run())
	assert.Empty(t, b.calls, "no swapchain recreation before the drag ends")
	assert.Equal(t, 1, b.draws)
	assert.Equal(t, render.Extent{Width: 800, Height: 600}, a.Device().Extent())
}

func TestRunRecreatesOnceWhenLiveDragEnds(t *testing.T) {
	steps := []func(*scriptWindow){
		nil,
		func(w *scriptWindow) { w.liveResize(810, 600) },
		func(w *scriptWindow) { w.liveResize(830, 620) },
		func(w *scriptWindow) { w.liveResize(850, 640) },
		func(w *scriptWindow) { _ = w.listener.EndDrag() },
		nil,
	}
	a, b := newLiveDragApp(t, steps)

	require.NoError(t, a.Run())
	assert.Equal(t, []string{"ResizeBuffers 850x640", "CreateRenderTarget"}, b.calls)
	assert.Equal(t, render.Extent{Width: 850, Height: 640}, a.Device().Extent())
	assert.Equal(t, 3, b.draws)
}

func TestRunLogsDroppedResizeErrors(t *testing.T) {
	var logs bytes.Buffer
	render.SetLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { render.SetLogger(nil) })

	b := &testBackend{}
	steps := idleSteps(3)
	steps[1] = func(w *scriptWindow) {
		_ = w.listener.OnResize(640, 480)
		_ = w.listener.OnResize(320, 240)
	}
	win := &scriptWindow{w: 800, h: 600, steps: steps}
	a := newTestApp(t, win, b)
	b.resizeErr = errors.New("buffer still referenced")

	require.NoError(t, a.Run())
	assert.Contains(t, logs.String(), "resize error dropped")
	assert.Contains(t, logs.String(), "320x240")
	assert.Equal(t, 3, b.draws)
}
