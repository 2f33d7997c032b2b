package render

import (
	"encoding/binary"
	"fmt"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Vertex is the static geometry format: position then RGBA colour.
type Vertex struct {
	Pos   [3]float32
	Color [4]float32
}

const VertexStride = 28

// VertexLayout is the layout a vertex shader must declare to consume Vertex.
var VertexLayout = InputLayout{
	Attributes: []VertexAttribute{
		{Location: 0, Format: FormatFloat32x3, Offset: 0},
		{Location: 1, Format: FormatFloat32x4, Offset: 12},
	},
	Stride: VertexStride,
}

var Triangle = []Vertex{
	{Pos: [3]float32{0.0, 0.5, 0.0}, Color: [4]float32{1, 0, 0, 1}},
	{Pos: [3]float32{0.5, -0.5, 0.0}, Color: [4]float32{0, 1, 0, 1}},
	{Pos: [3]float32{-0.5, -0.5, 0.0}, Color: [4]float32{0, 0, 1, 1}},
}

func vertexBytes(verts []Vertex) []byte {
	out, err := binary.Append(make([]byte, 0, len(verts)*VertexStride), binary.LittleEndian, verts)
	if err != nil {
		panic(fmt.Sprintf("encode vertices: %v", err))
	}
	return out
}

// PayloadSize is the size of the per-frame uniform buffer.
const PayloadSize = 64

// Payload is the per-frame uniform data: one world-view-projection matrix,
// already transposed for upload.
type Payload struct {
	WorldViewProj mgl32.Mat4
}

// Bytes encodes the matrix as 16 little-endian floats in mgl32's
// column-major element order, which is how WGSL reads a mat4x4<f32>.
func (p Payload) Bytes() []byte {
	out, err := binary.Append(make([]byte, 0, PayloadSize), binary.LittleEndian, p.WorldViewProj)
	if err != nil {
		panic(fmt.Sprintf("encode payload: %v", err))
	}
	return out
}

// DecodePayload is the inverse of Payload.Bytes.
func DecodePayload(b []byte) (Payload, error) {
	if len(b) != PayloadSize {
		return Payload{}, fmt.Errorf("payload is %d bytes, want %d", len(b), PayloadSize)
	}
	var p Payload
	if _, err := binary.Decode(b, binary.LittleEndian, &p.WorldViewProj); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
