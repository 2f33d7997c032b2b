// Package app wires the window, the device, the resize coordinator, the
// timer and the camera into the render loop.
package app

import (
	"errors"
	"fmt"
	"os"

	"Trigon/internal/camera"
	"Trigon/internal/clock"
	"Trigon/internal/render"
	"Trigon/internal/resize"
)

// Window is the platform window as seen by the loop.
type Window interface {
	render.Surface
	// ProcessMessages pumps pending events, dispatching resize callbacks on
	// this thread. It returns false once, when the window should close.
	ProcessMessages() bool
	Minimized() bool
	SetTitle(title string)
	SetResizeListener(l resize.Listener)
}

type App struct {
	cfg      Config
	window   Window
	shader   string
	device   *render.Context
	coord    *resize.Coordinator
	timer    *clock.Timer
	camera   *camera.Camera
	renderer *Renderer
	fps      fpsMeter

	resizeErr error
}

type Option func(*App)

// WithClock drives the frame timer from src.
func WithClock(src clock.Source) Option {
	return func(a *App) { a.timer = clock.New(src) }
}

// New initializes the device on win, builds the pipeline from the shader at
// cfg.ShaderPath and registers for resize notifications.
func New(cfg Config, win Window, backend render.Backend, opts ...Option) (*App, error) {
	src, err := os.ReadFile(cfg.ShaderPath)
	if err != nil {
		return nil, fmt.Errorf("read shader: %w", err)
	}

	a := &App{
		cfg:    cfg,
		window: win,
		shader: string(src),
		device: render.NewContext(backend, cfg.Validation),
		timer:  clock.New(nil),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.initDevice(); err != nil {
		return nil, err
	}

	a.camera = camera.New()
	a.camera.SetLookAt(cfg.Eye, cfg.Target, cfg.Up)
	ext := a.device.Extent()
	a.camera.SetLens(cfg.FovY, ext.Width, ext.Height, cfg.Near, cfg.Far)
	a.renderer = NewRenderer(a.device, a.camera)

	a.coord = resize.New(a.device, resize.WithSettleDelay(cfg.SettleDelay))
	win.SetResizeListener(a)
	return a, nil
}

func (a *App) initDevice() error {
	// Zero size: read the window's current client area.
	if err := a.device.Init(a.window, 0, 0); err != nil {
		return err
	}
	if err := a.device.CreatePipeline(a.shader); err != nil {
		a.device.Release()
		return err
	}
	return nil
}

// Run renders until the window asks to close. It returns the first error
// that could not be recovered from.
func (a *App) Run() error {
	a.timer.Reset()
	for a.window.ProcessMessages() {
		if err := a.takeResizeErr(); err != nil {
			return err
		}
		if err := a.coord.Poll(); err != nil {
			if err := a.recoverFrom(err); err != nil {
				return err
			}
		}
		// A drag invalidates the surface at every intermediate size; rendering
		// resumes once the coordinator has applied the final one.
		if a.window.Minimized() || a.coord.State() == resize.Dragging {
			continue
		}

		dt := a.timer.Tick()
		if err := a.renderer.Frame(dt); err != nil {
			if err := a.recoverFrom(err); err != nil {
				return err
			}
			continue
		}
		if fps, ok := a.fps.frame(a.timer.TotalTime()); ok {
			a.window.SetTitle(fmt.Sprintf("%s - FPS: %.1f", a.cfg.Title, fps))
		}
	}
	return nil
}

// recoverFrom keeps going after a resize that restored its previous target, and
// tears down and reinitializes the device after one that did not.
func (a *App) recoverFrom(err error) error {
	var rerr *render.ResizeError
	if !errors.As(err, &rerr) {
		return err
	}
	if rerr.Recovered {
		render.Logger().Warn("resize failed, keeping previous size", "err", err)
		return nil
	}
	render.Logger().Error("device lost during resize, reinitializing", "err", err)
	a.device.Release()
	if err := a.initDevice(); err != nil {
		return fmt.Errorf("reinitialize after failed resize: %w", err)
	}
	return nil
}

func (a *App) takeResizeErr() error {
	err := a.resizeErr
	a.resizeErr = nil
	if err == nil {
		return nil
	}
	return a.recoverFrom(err)
}

// BeginDrag, OnResize and EndDrag make App the window's resize.Listener.
// The first error is kept until the loop regains control from
// ProcessMessages; later ones in the same iteration are logged.
func (a *App) BeginDrag() { a.coord.BeginDrag() }

func (a *App) OnResize(width, height uint32) error {
	a.keep(a.coord.OnResize(width, height))
	return nil
}

func (a *App) EndDrag() error {
	a.keep(a.coord.EndDrag())
	return nil
}

func (a *App) keep(err error) {
	switch {
	case err == nil:
	case a.resizeErr == nil:
		a.resizeErr = err
	default:
		render.Logger().Warn("resize error dropped, an earlier one is pending", "err", err)
	}
}

// Device exposes the render context, for inspection.
func (a *App) Device() *render.Context { return a.device }

func (a *App) Renderer() *Renderer { return a.renderer }

// Close releases the device.
func (a *App) Close() {
	a.device.Release()
}
