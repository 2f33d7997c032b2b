package render

import "fmt"

// Extent is a surface or back-buffer size in pixels.
type Extent struct {
	Width, Height uint32
}

// Valid reports whether both dimensions are non-zero.
func (e Extent) Valid() bool { return e.Width > 0 && e.Height > 0 }

func (e Extent) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

// Viewport maps clip space onto the bound render target.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// FullViewport covers the whole extent with the [0,1] depth range.
func FullViewport(e Extent) Viewport {
	return Viewport{
		Width:    float32(e.Width),
		Height:   float32(e.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

// Color is linear RGBA.
type Color [4]float32

// BackgroundColor is the clear colour of every frame.
var BackgroundColor = Color{0.10, 0.15, 0.30, 1.0}

// Surface is the window the device presents into. Only the framebuffer
// extent is read by this package; backends may require more (see vk.Window).
type Surface interface {
	FramebufferSize() (width, height int)
}

// RenderTarget is a backend-owned view over the swapchain's back buffers.
type RenderTarget interface {
	Extent() Extent
}

// DeviceDesc describes the device and swapchain created together.
type DeviceDesc struct {
	Surface     Surface
	Extent      Extent
	BufferCount uint32
	Validation  bool
}

// PipelineDesc is the immutable pipeline state built from one shader binary.
type PipelineDesc struct {
	SPIRV         []uint32
	VertexEntry   string
	FragmentEntry string
	Layout        InputLayout
	UniformSize   uint32
}

// Backend is the GPU API under a Context. Calls are made from the render
// thread only, and the Context guarantees their ordering: a render target is
// unbound and released before ResizeBuffers, and recreated afterwards.
type Backend interface {
	// CreateDevice creates the device, its command context and the
	// swapchain in one step. Release must be safe after a failed call.
	CreateDevice(desc DeviceDesc) error
	// CreateRenderTarget creates a view over the current back buffers.
	CreateRenderTarget() (RenderTarget, error)
	// BindRenderTarget makes rt the output of Clear and Draw; nil unbinds.
	BindRenderTarget(rt RenderTarget)
	ReleaseRenderTarget(rt RenderTarget)
	// ResizeBuffers resizes the swapchain in place, keeping buffer count and
	// format. It fails while a render target view is still alive.
	ResizeBuffers(ext Extent) error
	SetViewport(vp Viewport)

	CreatePipeline(desc PipelineDesc) error
	CreateVertexBuffer(data []byte) error
	CreateUniformBuffer(size int) error

	// Clear starts a frame on the bound target. It returns ErrSurfaceLost
	// when the swapchain must be rebuilt before rendering.
	Clear(c Color) error
	// WriteUniform maps the uniform buffer for CPU write, copies data and
	// unmaps it.
	WriteUniform(data []byte) error
	BindUniform(slot uint32)
	Draw(vertexCount uint32) error
	// Present ends the frame. A syncInterval of 1 waits for vertical blank.
	Present(syncInterval int) error

	Release()
}
