package render

import (
	"errors"
	"fmt"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

const (
	swapchainBufferCount = 2
	presentSyncInterval  = 1
	triangleVertexCount  = 3
)

type framePhase int

const (
	phaseIdle framePhase = iota
	phaseBegun
	phaseUniform
	phaseDrawn
	// phaseSkipped is a frame whose back buffer could not be acquired; the
	// remaining calls of that frame are no-ops.
	phaseSkipped
)

func (p framePhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseBegun:
		return "begun"
	case phaseUniform:
		return "uniform"
	case phaseDrawn:
		return "drawn"
	case phaseSkipped:
		return "skipped"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Context owns the device, its swapchain and every resource created from
// them. It is driven from the render thread only.
//
// A frame is BeginFrame, UpdateUniform, Draw, EndFrame, in that order.
// Resize is only accepted between frames.
type Context struct {
	backend    Backend
	validation bool
	compile    func(source string) (*ShaderProgram, error)

	target   RenderTarget
	extent   Extent
	viewport Viewport

	ready    bool
	unusable bool
	pipeline bool
	phase    framePhase
}

// NewContext wraps a backend. When validation is set, Init first tries a
// validated device and falls back once to a plain one.
func NewContext(backend Backend, validation bool) *Context {
	return &Context{
		backend:    backend,
		validation: validation,
		compile:    CompileShader,
	}
}

// Init creates the device and swapchain sized width×height, creates and
// binds the render target and sets a full viewport. A zero dimension means
// the size is read from the surface.
func (c *Context) Init(surface Surface, width, height uint32) error {
	if c.ready {
		return errors.New("render: context already initialized")
	}
	if width == 0 || height == 0 {
		w, h := surface.FramebufferSize()
		width, height = uint32(max(w, 0)), uint32(max(h, 0))
	}
	ext := Extent{Width: width, Height: height}
	if !ext.Valid() {
		return fmt.Errorf("%w: surface extent %s", ErrCreationFailed, ext)
	}

	desc := DeviceDesc{
		Surface:     surface,
		Extent:      ext,
		BufferCount: swapchainBufferCount,
		Validation:  c.validation,
	}
	err := c.backend.CreateDevice(desc)
	if err != nil && desc.Validation {
		Logger().Warn("validated device creation failed, retrying without validation", "err", err)
		c.backend.Release()
		desc.Validation = false
		err = c.backend.CreateDevice(desc)
	}
	if err != nil {
		c.backend.Release()
		return fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}

	rt, err := c.backend.CreateRenderTarget()
	if err != nil {
		c.backend.Release()
		return fmt.Errorf("%w: create render target: %w", ErrCreationFailed, err)
	}
	c.bind(rt)
	c.ready = true
	c.unusable = false
	c.phase = phaseIdle
	Logger().Info("device initialized", "extent", c.extent.String(), "validation", desc.Validation)
	return nil
}

// CreatePipeline compiles source and builds the pipeline, the static vertex
// buffer and the per-frame uniform buffer. The input layout is reflected
// from the compiled vertex stage and must match Vertex.
func (c *Context) CreatePipeline(source string) error {
	if err := c.usable(); err != nil {
		return err
	}
	if c.pipeline {
		return ErrPipelineExists
	}

	prog, err := c.compile(source)
	if err != nil {
		return err
	}
	if !prog.Layout.Equal(VertexLayout) {
		return &ShaderCompileError{
			Stage:       "vertex",
			Diagnostics: fmt.Sprintf("input layout %v does not match vertex format %v", prog.Layout, VertexLayout),
		}
	}

	desc := PipelineDesc{
		SPIRV:         prog.SPIRV,
		VertexEntry:   VertexEntry,
		FragmentEntry: FragmentEntry,
		Layout:        prog.Layout,
		UniformSize:   PayloadSize,
	}
	if err := c.backend.CreatePipeline(desc); err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	if err := c.backend.CreateVertexBuffer(vertexBytes(Triangle)); err != nil {
		return fmt.Errorf("create vertex buffer: %w", err)
	}
	if err := c.backend.CreateUniformBuffer(PayloadSize); err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	c.pipeline = true
	Logger().Info("pipeline created", "spirv_words", len(prog.SPIRV), "stride", prog.Layout.Stride)
	return nil
}

// BeginFrame clears the bound render target to BackgroundColor. When the
// surface is out of date the frame is skipped and the render target rebuilt.
func (c *Context) BeginFrame() error {
	if err := c.usable(); err != nil {
		return err
	}
	if c.phase != phaseIdle {
		return fmt.Errorf("%w: begin frame during %s", ErrFrameOrder, c.phase)
	}
	err := c.backend.Clear(BackgroundColor)
	if errors.Is(err, ErrSurfaceLost) {
		Logger().Warn("surface out of date, skipping frame", "extent", c.extent.String())
		if err := c.rebuild(); err != nil {
			return err
		}
		c.phase = phaseSkipped
		return nil
	}
	if err != nil {
		return fmt.Errorf("begin frame: %w", err)
	}
	c.phase = phaseBegun
	return nil
}

// UpdateUniform uploads m, which must already be transposed, and binds the
// uniform buffer to vertex slot 0.
func (c *Context) UpdateUniform(m mgl32.Mat4) error {
	if err := c.usable(); err != nil {
		return err
	}
	if !c.pipeline {
		return ErrNoPipeline
	}
	switch c.phase {
	case phaseSkipped:
		return nil
	case phaseBegun:
	default:
		return fmt.Errorf("%w: update uniform during %s", ErrFrameOrder, c.phase)
	}
	if err := c.backend.WriteUniform(Payload{WorldViewProj: m}.Bytes()); err != nil {
		return fmt.Errorf("update uniform: %w", err)
	}
	c.backend.BindUniform(0)
	c.phase = phaseUniform
	return nil
}

// Draw issues the fixed three-vertex triangle-list draw.
func (c *Context) Draw() error {
	if err := c.usable(); err != nil {
		return err
	}
	if !c.pipeline {
		return ErrNoPipeline
	}
	switch c.phase {
	case phaseSkipped:
		return nil
	case phaseUniform:
	default:
		return fmt.Errorf("%w: draw during %s", ErrFrameOrder, c.phase)
	}
	if err := c.backend.Draw(triangleVertexCount); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	c.phase = phaseDrawn
	return nil
}

// EndFrame presents with sync interval 1, blocking until vertical blank.
func (c *Context) EndFrame() error {
	if err := c.usable(); err != nil {
		return err
	}
	switch c.phase {
	case phaseSkipped:
		c.phase = phaseIdle
		return nil
	case phaseDrawn:
	default:
		return fmt.Errorf("%w: end frame during %s", ErrFrameOrder, c.phase)
	}
	c.phase = phaseIdle
	err := c.backend.Present(presentSyncInterval)
	if errors.Is(err, ErrSurfaceLost) {
		Logger().Warn("surface out of date after present", "extent", c.extent.String())
		return c.rebuild()
	}
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// Resize recreates the swapchain buffers and the render target at
// width×height. A zero dimension means minimized and is ignored.
func (c *Context) Resize(width, height uint32) error {
	if err := c.usable(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		Logger().Debug("resize ignored, surface minimized", "width", width, "height", height)
		return nil
	}
	if c.phase != phaseIdle {
		return fmt.Errorf("%w: resize during %s", ErrFrameOrder, c.phase)
	}
	return c.resize(Extent{Width: width, Height: height})
}

func (c *Context) resize(ext Extent) error {
	// The view must be gone before the buffers it points at are resized.
	c.backend.BindRenderTarget(nil)
	c.backend.ReleaseRenderTarget(c.target)
	c.target = nil

	if err := c.backend.ResizeBuffers(ext); err != nil {
		return c.restore(ext, err)
	}
	rt, err := c.backend.CreateRenderTarget()
	if err != nil {
		c.unusable = true
		return &ResizeError{Width: ext.Width, Height: ext.Height, Err: fmt.Errorf("create render target: %w", err)}
	}
	c.bind(rt)
	Logger().Debug("swapchain resized", "extent", c.extent.String())
	return nil
}

// restore rebuilds a view over the unchanged buffers after a failed resize.
func (c *Context) restore(ext Extent, cause error) error {
	rt, err := c.backend.CreateRenderTarget()
	if err != nil {
		c.unusable = true
		Logger().Error("render target lost after failed resize", "err", err)
		return &ResizeError{Width: ext.Width, Height: ext.Height, Err: errors.Join(cause, err)}
	}
	c.target = rt
	c.backend.BindRenderTarget(rt)
	c.backend.SetViewport(c.viewport)
	return &ResizeError{Width: ext.Width, Height: ext.Height, Recovered: true, Err: cause}
}

// rebuild recreates the swapchain at the last known extent; the backend
// clamps it to what the surface currently reports.
func (c *Context) rebuild() error {
	return c.resize(c.extent)
}

func (c *Context) bind(rt RenderTarget) {
	c.target = rt
	c.backend.BindRenderTarget(rt)
	c.extent = rt.Extent()
	c.viewport = FullViewport(c.extent)
	c.backend.SetViewport(c.viewport)
}

func (c *Context) usable() error {
	if !c.ready {
		return ErrNotInitialized
	}
	if c.unusable {
		return ErrUnusable
	}
	return nil
}

// Viewport returns the active viewport.
func (c *Context) Viewport() Viewport { return c.viewport }

// Extent returns the size of the current back buffers.
func (c *Context) Extent() Extent { return c.extent }

// Release destroys the render target, then everything the backend owns.
// The context may be initialized again afterwards.
func (c *Context) Release() {
	if c.target != nil {
		c.backend.BindRenderTarget(nil)
		c.backend.ReleaseRenderTarget(c.target)
		c.target = nil
	}
	c.backend.Release()
	c.ready = false
	c.unusable = false
	c.pipeline = false
	c.phase = phaseIdle
	c.extent = Extent{}
	c.viewport = Viewport{}
}
