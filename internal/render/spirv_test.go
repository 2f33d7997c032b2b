package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inst(op uint32, operands ...uint32) []uint32 {
	return append([]uint32{uint32(len(operands)+1)<<16 | op}, operands...)
}

func literal(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return words
}

type moduleBuilder struct{ words []uint32 }

func newModule() *moduleBuilder {
	return &moduleBuilder{words: []uint32{spirvMagic, 0x00010300, 0, 64, 0}}
}

func (m *moduleBuilder) add(op uint32, operands ...uint32) *moduleBuilder {
	m.words = append(m.words, inst(op, operands...)...)
	return m
}

func (m *moduleBuilder) entry(model, id uint32, name string, interfaces ...uint32) *moduleBuilder {
	ops := append([]uint32{model, id}, literal(name)...)
	return m.add(opEntryPoint, append(ops, interfaces...)...)
}

// triangleModule mirrors what the compiler emits for
// vs_main(@location(0) vec3<f32>, @location(1) vec4<f32>) plus a
// @builtin(vertex_index) input, and an fs_main fragment entry.
func triangleModule() *moduleBuilder {
	const (
		tFloat    = 1
		tVec3     = 2
		tVec4     = 3
		tPtrVec3  = 4
		tPtrVec4  = 5
		tUint     = 6
		tPtrUint  = 7
		vColor    = 10
		vPos      = 11
		vIndex    = 12
		fnVertex  = 20
		fnFrag    = 21
		builtinVI = 42
	)
	return newModule().
		entry(executionModelVertex, fnVertex, VertexEntry, vColor, vPos, vIndex).
		entry(executionModelFragment, fnFrag, FragmentEntry).
		add(opDecorate, vColor, decorationLocation, 1).
		add(opDecorate, vPos, decorationLocation, 0).
		add(opDecorate, vIndex, decorationBuiltIn, builtinVI).
		add(opTypeFloat, tFloat, 32).
		add(opTypeVector, tVec3, tFloat, 3).
		add(opTypeVector, tVec4, tFloat, 4).
		add(opTypeInt, tUint, 32, 0).
		add(opTypePointer, tPtrVec3, storageClassInput, tVec3).
		add(opTypePointer, tPtrVec4, storageClassInput, tVec4).
		add(opTypePointer, tPtrUint, storageClassInput, tUint).
		add(opVariable, tPtrVec4, vColor, storageClassInput).
		add(opVariable, tPtrVec3, vPos, storageClassInput).
		add(opVariable, tPtrUint, vIndex, storageClassInput)
}

func TestReflectProgramLayout(t *testing.T) {
	prog, err := ReflectProgram(triangleModule().words)
	require.NoError(t, err)
	assert.Equal(t, VertexLayout, prog.Layout)
}

func TestReflectProgramMissingEntries(t *testing.T) {
	onlyFragment := newModule().entry(executionModelFragment, 21, FragmentEntry)
	_, err := ReflectProgram(onlyFragment.words)
	var serr *ShaderCompileError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "vertex", serr.Stage)

	onlyVertex := newModule().entry(executionModelVertex, 20, VertexEntry)
	_, err = ReflectProgram(onlyVertex.words)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "fragment", serr.Stage)

	// Right name, wrong stage.
	swapped := newModule().
		entry(executionModelFragment, 20, VertexEntry).
		entry(executionModelVertex, 21, FragmentEntry)
	_, err = ReflectProgram(swapped.words)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "vertex", serr.Stage)
}

func TestReflectProgramRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		words []uint32
	}{
		{"empty", nil},
		{"bad magic", []uint32{0xdeadbeef, 0, 0, 0, 0}},
		{"zero length instruction", []uint32{spirvMagic, 0, 0, 0, 0, 0}},
		{"truncated", append(newModule().words, 4<<16|opDecorate, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReflectProgram(tt.words)
			assert.ErrorIs(t, err, ErrShaderCompileFailed)
		})
	}
}

func TestReflectProgramUnsupportedInput(t *testing.T) {
	m := newModule().
		entry(executionModelVertex, 20, VertexEntry, 10).
		entry(executionModelFragment, 21, FragmentEntry).
		add(opDecorate, 10, decorationLocation, 0).
		add(opTypeInt, 1, 32, 1).
		add(opTypeVector, 2, 1, 4).
		add(opTypePointer, 3, storageClassInput, 2).
		add(opVariable, 3, 10, storageClassInput)
	_, err := ReflectProgram(m.words)
	var serr *ShaderCompileError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "vertex", serr.Stage)
	assert.Contains(t, serr.Diagnostics, "location 0")
}

func TestDecodeLiteralString(t *testing.T) {
	for _, s := range []string{"", "abc", "main", "vs_main", "exactly8"} {
		words := literal(s)
		got, n := decodeLiteralString(append(words, 99))
		assert.Equal(t, s, got)
		assert.Equal(t, len(words), n)
	}
}
