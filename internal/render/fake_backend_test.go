package render

import (
	"errors"
	"fmt"
)

type fakeTarget struct {
	id  int
	ext Extent
}

func (t *fakeTarget) Extent() Extent { return t.ext }

type fakeSurface struct{ w, h int }

func (s fakeSurface) FramebufferSize() (int, int) { return s.w, s.h }

// fakeBackend records every call and enforces the driver-level rule that
// buffers cannot be resized while a view over them is alive.
type fakeBackend struct {
	calls []string

	createDeviceErrs []error
	resizeErr        error
	targetErrAfter   int // fail CreateRenderTarget once this many targets exist; 0 disables
	clearErrs        []error
	presentErr       error

	desc      []DeviceDesc
	buffers   Extent
	live      map[int]bool
	nextID    int
	created   int
	bound     RenderTarget
	viewport  Viewport
	pipeline  *PipelineDesc
	vertices  []byte
	uniform   []byte
	uniformSz int
	released  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{live: map[int]bool{}}
}

func (b *fakeBackend) record(format string, args ...any) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *fakeBackend) CreateDevice(desc DeviceDesc) error {
	b.record("CreateDevice validation=%v", desc.Validation)
	b.desc = append(b.desc, desc)
	if len(b.createDeviceErrs) > 0 {
		err := b.createDeviceErrs[0]
		b.createDeviceErrs = b.createDeviceErrs[1:]
		if err != nil {
			return err
		}
	}
	b.buffers = desc.Extent
	return nil
}

func (b *fakeBackend) CreateRenderTarget() (RenderTarget, error) {
	b.record("CreateRenderTarget")
	if b.targetErrAfter > 0 && b.created >= b.targetErrAfter {
		return nil, errors.New("out of memory")
	}
	b.nextID++
	b.created++
	b.live[b.nextID] = true
	return &fakeTarget{id: b.nextID, ext: b.buffers}, nil
}

func (b *fakeBackend) BindRenderTarget(rt RenderTarget) {
	if rt == nil {
		b.record("Unbind")
	} else {
		b.record("Bind %d", rt.(*fakeTarget).id)
	}
	b.bound = rt
}

func (b *fakeBackend) ReleaseRenderTarget(rt RenderTarget) {
	if rt == nil {
		return
	}
	b.record("ReleaseRenderTarget %d", rt.(*fakeTarget).id)
	delete(b.live, rt.(*fakeTarget).id)
}

func (b *fakeBackend) ResizeBuffers(ext Extent) error {
	b.record("ResizeBuffers %s", ext)
	if len(b.live) > 0 || b.bound != nil {
		return errors.New("buffer still referenced")
	}
	if b.resizeErr != nil {
		return b.resizeErr
	}
	b.buffers = ext
	return nil
}

func (b *fakeBackend) SetViewport(vp Viewport) {
	b.record("SetViewport %vx%v", vp.Width, vp.Height)
	b.viewport = vp
}

func (b *fakeBackend) CreatePipeline(desc PipelineDesc) error {
	b.record("CreatePipeline")
	b.pipeline = &desc
	return nil
}

func (b *fakeBackend) CreateVertexBuffer(data []byte) error {
	b.record("CreateVertexBuffer %d", len(data))
	b.vertices = data
	return nil
}

func (b *fakeBackend) CreateUniformBuffer(size int) error {
	b.record("CreateUniformBuffer %d", size)
	b.uniformSz = size
	return nil
}

func (b *fakeBackend) Clear(Color) error {
	b.record("Clear")
	if len(b.clearErrs) > 0 {
		err := b.clearErrs[0]
		b.clearErrs = b.clearErrs[1:]
		return err
	}
	if b.bound == nil {
		return errors.New("no render target bound")
	}
	return nil
}

func (b *fakeBackend) WriteUniform(data []byte) error {
	b.record("WriteUniform")
	if len(data) != b.uniformSz {
		return fmt.Errorf("write of %d bytes into %d byte buffer", len(data), b.uniformSz)
	}
	b.uniform = append([]byte(nil), data...)
	return nil
}

func (b *fakeBackend) BindUniform(slot uint32) { b.record("BindUniform %d", slot) }

func (b *fakeBackend) Draw(n uint32) error {
	b.record("Draw %d", n)
	return nil
}

func (b *fakeBackend) Present(interval int) error {
	b.record("Present %d", interval)
	return b.presentErr
}

func (b *fakeBackend) Release() {
	b.record("Release")
	b.released++
}

func (b *fakeBackend) reset() { b.calls = nil }

// stubProgram skips naga so context tests do not depend on the compiler.
func stubProgram(layout InputLayout) func(string) (*ShaderProgram, error) {
	return func(string) (*ShaderProgram, error) {
		return &ShaderProgram{SPIRV: []uint32{spirvMagic}, Layout: layout}, nil
	}
}
