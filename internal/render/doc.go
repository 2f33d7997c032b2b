// Package render owns the graphics device and the resources created from it.
//
// A [Context] drives a [Backend] (the GPU API) through the device lifecycle:
// device and swapchain creation, the render target view over the back
// buffers, the immutable pipeline, and the per-frame uniform buffer. It
// enforces the frame sequence
//
//	BeginFrame -> UpdateUniform -> Draw -> EndFrame
//
// and the resize ordering
//
//	unbind -> release view -> resize buffers -> recreate view -> rebind -> viewport
//
// Shaders are WGSL, compiled to SPIR-V with naga. The vertex input layout is
// reflected from the compiled binary on every compile.
package render
