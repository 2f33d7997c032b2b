package main

import (
	"github.com/vulkan-go/glfw/v3.3/glfw"

	"Trigon/internal/render"
	"Trigon/internal/resize"
)

// window adapts a glfw window to app.Window and vk.Window.
type window struct {
	*glfw.Window
}

func newWindow(title string, width, height int) (*window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, err
	}
	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})
	return &window{Window: win}, nil
}

func (w *window) FramebufferSize() (int, int) {
	return w.GetFramebufferSize()
}

// ProcessMessages dispatches pending events. While iconified it blocks for
// up to 100ms instead of spinning.
func (w *window) ProcessMessages() bool {
	if w.ShouldClose() {
		return false
	}
	if w.Minimized() {
		glfw.WaitEventsTimeout(0.1)
	} else {
		glfw.PollEvents()
	}
	return !w.ShouldClose()
}

func (w *window) Minimized() bool {
	if w.GetAttrib(glfw.Iconified) == glfw.True {
		return true
	}
	width, height := w.GetFramebufferSize()
	return width == 0 || height == 0
}

// SetResizeListener routes framebuffer size changes to l. glfw reports no
// drag boundaries, so a change between visible sizes opens (or extends) a
// drag that the coordinator's settle delay closes. Restoring from minimize
// resizes immediately.
func (w *window) SetResizeListener(l resize.Listener) {
	width, height := w.GetFramebufferSize()
	r := resize.NewReporter(l, width, height)
	w.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		logResizeErr(r.FramebufferChanged(width, height))
	})
	w.SetIconifyCallback(func(gw *glfw.Window, iconified bool) {
		if iconified {
			return
		}
		logResizeErr(r.Restored(gw.GetFramebufferSize()))
	})
}

func logResizeErr(err error) {
	if err != nil {
		render.Logger().Warn("resize notification failed", "err", err)
	}
}
