package app

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"

	"Trigon/internal/camera"
	"Trigon/internal/render"
)

// Device is the part of render.Context a frame needs.
type Device interface {
	BeginFrame() error
	UpdateUniform(m mgl32.Mat4) error
	Draw() error
	EndFrame() error
	Extent() render.Extent
}

// Renderer spins the triangle about +Y and submits one frame per call.
type Renderer struct {
	device Device
	camera *camera.Camera
	angle  float32
	extent render.Extent
}

func NewRenderer(device Device, cam *camera.Camera) *Renderer {
	r := &Renderer{device: device, camera: cam}
	r.syncExtent()
	return r
}

// Frame advances the rotation by dt seconds and renders. The device calls
// are fixed: BeginFrame, UpdateUniform, Draw, EndFrame.
func (r *Renderer) Frame(dt float32) error {
	r.angle += dt
	r.syncExtent()

	wvp := r.WorldViewProj()
	if err := r.device.BeginFrame(); err != nil {
		return err
	}
	if err := r.device.UpdateUniform(wvp.Transpose()); err != nil {
		return err
	}
	if err := r.device.Draw(); err != nil {
		return err
	}
	return r.device.EndFrame()
}

// WorldViewProj is world * view * proj for the current angle.
func (r *Renderer) WorldViewProj() mgl32.Mat4 {
	world := camera.RotationY(r.angle)
	return world.Mul4(r.camera.View()).Mul4(r.camera.Proj())
}

func (r *Renderer) Angle() float32 { return r.angle }

// Resized re-applies the camera lens for a new back-buffer size. Zero
// extents (minimized) keep the previous aspect ratio.
func (r *Renderer) Resized(ext render.Extent) {
	if ext == r.extent || !ext.Valid() {
		return
	}
	r.extent = ext
	r.camera.SetExtent(ext.Width, ext.Height)
}

// syncExtent follows the device's extent, which changes after a resize or a
// swapchain rebuild.
func (r *Renderer) syncExtent() {
	r.Resized(r.device.Extent())
}
