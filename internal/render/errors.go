package render

import (
	"errors"
	"fmt"
)

var (
	// ErrCreationFailed is returned when no usable adapter or driver could
	// back the device, even after the non-validated retry.
	ErrCreationFailed = errors.New("render: device creation failed")
	// ErrShaderCompileFailed matches every *ShaderCompileError.
	ErrShaderCompileFailed = errors.New("render: shader compile failed")
	// ErrResizeFailed matches every *ResizeError.
	ErrResizeFailed = errors.New("render: resize failed")

	ErrNotInitialized = errors.New("render: context not initialized")
	ErrUnusable       = errors.New("render: context unusable, reinitialize")
	ErrPipelineExists = errors.New("render: pipeline already created")
	ErrNoPipeline     = errors.New("render: pipeline not created")
	ErrFrameOrder     = errors.New("render: frame operation out of order")

	// ErrSurfaceLost is reported by a Backend when the swapchain no longer
	// matches the surface and the frame cannot be acquired or presented.
	ErrSurfaceLost = errors.New("render: surface out of date")
)

// ShaderCompileError carries the compiler diagnostics for a failed stage.
type ShaderCompileError struct {
	Stage       string
	Diagnostics string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("compile %s shader: %s", e.Stage, e.Diagnostics)
}

func (e *ShaderCompileError) Is(target error) bool {
	return target == ErrShaderCompileFailed
}

// ResizeError reports a failed swapchain resize. Recovered is true when the
// previous render target was restored and the context is still usable.
type ResizeError struct {
	Width, Height uint32
	Recovered     bool
	Err           error
}

func (e *ResizeError) Error() string {
	state := "context unusable"
	if e.Recovered {
		state = "previous target restored"
	}
	return fmt.Sprintf("resize to %dx%d (%s): %v", e.Width, e.Height, state, e.Err)
}

func (e *ResizeError) Unwrap() error { return e.Err }

func (e *ResizeError) Is(target error) bool {
	return target == ErrResizeFailed
}
