package render

import (
	"fmt"
	"slices"

	"github.com/gogpu/naga"
)

// Entry point names the shader source must define.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// Format is the type of one vertex attribute.
type Format int

const (
	FormatUndefined Format = iota
	FormatFloat32
	FormatFloat32x2
	FormatFloat32x3
	FormatFloat32x4
)

// Size is the attribute size in bytes.
func (f Format) Size() uint32 {
	switch f {
	case FormatFloat32:
		return 4
	case FormatFloat32x2:
		return 8
	case FormatFloat32x3:
		return 12
	case FormatFloat32x4:
		return 16
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case FormatFloat32:
		return "f32"
	case FormatFloat32x2:
		return "vec2<f32>"
	case FormatFloat32x3:
		return "vec3<f32>"
	case FormatFloat32x4:
		return "vec4<f32>"
	}
	return "undefined"
}

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// InputLayout maps vertex buffer bytes onto a vertex shader's inputs.
type InputLayout struct {
	Attributes []VertexAttribute
	Stride     uint32
}

func (l InputLayout) Equal(o InputLayout) bool {
	return l.Stride == o.Stride && slices.Equal(l.Attributes, o.Attributes)
}

// ShaderProgram is one compiled SPIR-V module holding both stages, and the
// input layout reflected from that same binary.
type ShaderProgram struct {
	SPIRV  []uint32
	Layout InputLayout
}

// CompileShader compiles WGSL source defining VertexEntry and FragmentEntry.
// Failures are reported as *ShaderCompileError carrying the diagnostics.
func CompileShader(source string) (*ShaderProgram, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, &ShaderCompileError{Stage: "wgsl", Diagnostics: err.Error()}
	}
	if len(spirvBytes)%4 != 0 {
		return nil, &ShaderCompileError{
			Stage:       "wgsl",
			Diagnostics: fmt.Sprintf("SPIR-V length %d is not a multiple of 4", len(spirvBytes)),
		}
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return ReflectProgram(words)
}

// ReflectProgram checks that a SPIR-V module exposes both entry points and
// derives the vertex input layout from the vertex entry's signature.
func ReflectProgram(words []uint32) (*ShaderProgram, error) {
	mod, err := parseSPIRV(words)
	if err != nil {
		return nil, &ShaderCompileError{Stage: "wgsl", Diagnostics: "invalid SPIR-V: " + err.Error()}
	}
	vs, ok := mod.entryPoint(executionModelVertex, VertexEntry)
	if !ok {
		return nil, &ShaderCompileError{Stage: "vertex", Diagnostics: "entry point " + VertexEntry + " not found"}
	}
	if _, ok := mod.entryPoint(executionModelFragment, FragmentEntry); !ok {
		return nil, &ShaderCompileError{Stage: "fragment", Diagnostics: "entry point " + FragmentEntry + " not found"}
	}
	layout, err := mod.inputLayout(vs)
	if err != nil {
		return nil, &ShaderCompileError{Stage: "vertex", Diagnostics: err.Error()}
	}
	return &ShaderProgram{SPIRV: words, Layout: layout}, nil
}
