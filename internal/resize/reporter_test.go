package resize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Trigon/internal/render"
)

func newReporterCoordinator() (*Reporter, *Coordinator, *fakeDevice) {
	dev := &fakeDevice{extent: render.Extent{Width: 800, Height: 600}}
	c := New(dev)
	return NewReporter(c, 800, 600), c, dev
}

func TestReporterVisibleChangesDrag(t *testing.T) {
	r, c, dev := newReporterCoordinator()

	require.NoError(t, r.FramebufferChanged(810, 600))
	require.NoError(t, r.FramebufferChanged(820, 610))
	assert.Equal(t, Dragging, c.State())
	assert.Empty(t, dev.calls)

	require.NoError(t, c.EndDrag())
	assert.Equal(t, []render.Extent{{Width: 820, Height: 610}}, dev.calls)
}

func TestReporterRestoreIsImmediate(t *testing.T) {
	r, c, dev := newReporterCoordinator()

	require.NoError(t, r.FramebufferChanged(0, 0))
	assert.Equal(t, Idle, c.State())

	require.NoError(t, r.Restored(1024, 768))
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, []render.Extent{{}, {Width: 1024, Height: 768}}, dev.calls)

	// glfw also reports the framebuffer change; it repeats the restore.
	require.NoError(t, r.FramebufferChanged(1024, 768))
	assert.Len(t, dev.calls, 2)
	assert.Equal(t, Idle, c.State())
}

func TestReporterFramebufferFirstRestore(t *testing.T) {
	r, c, dev := newReporterCoordinator()

	require.NoError(t, r.FramebufferChanged(0, 0))
	require.NoError(t, r.FramebufferChanged(800, 600))
	require.NoError(t, r.Restored(800, 600))

	assert.Equal(t, Idle, c.State())
	assert.Equal(t, []render.Extent{{}, {Width: 800, Height: 600}}, dev.calls)
}

func TestReporterIgnoresUnchangedAndNegative(t *testing.T) {
	r, c, dev := newReporterCoordinator()

	require.NoError(t, r.Restored(800, 600))
	require.NoError(t, r.FramebufferChanged(800, 600))
	assert.Empty(t, dev.calls)

	require.NoError(t, r.FramebufferChanged(-5, 600))
	assert.Equal(t, Idle, c.State(), "a zero width is not part of a drag")
	assert.Equal(t, []render.Extent{{Width: 0, Height: 600}}, dev.calls)
}
