package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime"

	"github.com/vulkan-go/glfw/v3.3/glfw"

	"Trigon/internal/app"
	"Trigon/internal/render"
	"Trigon/internal/vk"
)

var errNoVulkanLoader = errors.New("GLFW Vulkan loader not found")

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	logger := newLogger()
	render.SetLogger(logger)

	if err := run(); err != nil {
		logger.Error("trigon", "err", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("TRIGON_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run() error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()
	if !glfw.VulkanSupported() {
		return errNoVulkanLoader
	}

	cfg := app.DefaultConfig()
	win, err := newWindow(cfg.Title, int(cfg.Width), int(cfg.Height))
	if err != nil {
		return err
	}
	defer win.Destroy()

	// Wait for a non-zero framebuffer before creating the swapchain.
	for !win.ShouldClose() {
		if w, h := win.FramebufferSize(); w > 0 && h > 0 {
			break
		}
		glfw.WaitEventsTimeout(0.01)
	}
	if win.ShouldClose() {
		return nil
	}

	backend := vk.NewBackend(glfw.GetVulkanGetInstanceProcAddress)
	a, err := app.New(cfg, win, backend)
	if err != nil {
		return err
	}
	defer a.Close()

	render.Logger().Debug("entering main loop")
	return a.Run()
}
