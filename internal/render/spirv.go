package render

import (
	"errors"
	"fmt"
	"sort"
)

const spirvMagic = 0x07230203

// SPIR-V opcodes, enumerants and decorations read by the reflector.
const (
	opEntryPoint  = 15
	opTypeInt     = 21
	opTypeFloat   = 22
	opTypeVector  = 23
	opTypePointer = 32
	opVariable    = 59
	opDecorate    = 71

	decorationBuiltIn  = 11
	decorationLocation = 30

	storageClassInput = 1

	executionModelVertex   = 0
	executionModelFragment = 4
)

type spirvEntryPoint struct {
	model      uint32
	name       string
	interfaces []uint32
}

type spirvVariable struct {
	typeID  uint32
	storage uint32
}

type spirvPointer struct {
	storage uint32
	pointee uint32
}

type spirvVector struct {
	component uint32
	count     uint32
}

type spirvScalar struct {
	float bool
	width uint32
}

// spirvModule is the subset of a SPIR-V module needed to rebuild a vertex
// input layout from the exact binary the pipeline is created with.
type spirvModule struct {
	entries   []spirvEntryPoint
	locations map[uint32]uint32
	builtins  map[uint32]bool
	variables map[uint32]spirvVariable
	pointers  map[uint32]spirvPointer
	vectors   map[uint32]spirvVector
	scalars   map[uint32]spirvScalar
}

func parseSPIRV(words []uint32) (*spirvModule, error) {
	if len(words) < 5 {
		return nil, errors.New("module shorter than header")
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("bad magic 0x%08x", words[0])
	}
	m := &spirvModule{
		locations: map[uint32]uint32{},
		builtins:  map[uint32]bool{},
		variables: map[uint32]spirvVariable{},
		pointers:  map[uint32]spirvPointer{},
		vectors:   map[uint32]spirvVector{},
		scalars:   map[uint32]spirvScalar{},
	}
	for i := 5; i < len(words); {
		count := int(words[i] >> 16)
		op := words[i] & 0xffff
		if count == 0 || i+count > len(words) {
			return nil, fmt.Errorf("truncated instruction at word %d", i)
		}
		ops := words[i+1 : i+count]
		switch op {
		case opEntryPoint:
			if len(ops) < 3 {
				return nil, fmt.Errorf("short OpEntryPoint at word %d", i)
			}
			name, n := decodeLiteralString(ops[2:])
			m.entries = append(m.entries, spirvEntryPoint{
				model:      ops[0],
				name:       name,
				interfaces: append([]uint32(nil), ops[2+n:]...),
			})
		case opDecorate:
			if len(ops) >= 3 && ops[1] == decorationLocation {
				m.locations[ops[0]] = ops[2]
			}
			if len(ops) >= 2 && ops[1] == decorationBuiltIn {
				m.builtins[ops[0]] = true
			}
		case opVariable:
			if len(ops) >= 3 {
				m.variables[ops[1]] = spirvVariable{typeID: ops[0], storage: ops[2]}
			}
		case opTypePointer:
			if len(ops) >= 3 {
				m.pointers[ops[0]] = spirvPointer{storage: ops[1], pointee: ops[2]}
			}
		case opTypeVector:
			if len(ops) >= 3 {
				m.vectors[ops[0]] = spirvVector{component: ops[1], count: ops[2]}
			}
		case opTypeFloat:
			if len(ops) >= 2 {
				m.scalars[ops[0]] = spirvScalar{float: true, width: ops[1]}
			}
		case opTypeInt:
			if len(ops) >= 2 {
				m.scalars[ops[0]] = spirvScalar{width: ops[1]}
			}
		}
		i += count
	}
	return m, nil
}

// decodeLiteralString reads a nul-terminated UTF-8 literal packed
// little-endian into words and reports how many words it used.
func decodeLiteralString(words []uint32) (string, int) {
	var b []byte
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(b), i + 1
			}
			b = append(b, c)
		}
	}
	return string(b), len(words)
}

func (m *spirvModule) entryPoint(model uint32, name string) (spirvEntryPoint, bool) {
	for _, e := range m.entries {
		if e.model == model && e.name == name {
			return e, true
		}
	}
	return spirvEntryPoint{}, false
}

// inputLayout builds the packed vertex layout of an entry point's
// location-decorated inputs. Built-in inputs are skipped.
func (m *spirvModule) inputLayout(e spirvEntryPoint) (InputLayout, error) {
	var attrs []VertexAttribute
	for _, id := range e.interfaces {
		v, ok := m.variables[id]
		if !ok || v.storage != storageClassInput || m.builtins[id] {
			continue
		}
		loc, ok := m.locations[id]
		if !ok {
			return InputLayout{}, fmt.Errorf("input %%%d has no location", id)
		}
		ptr, ok := m.pointers[v.typeID]
		if !ok {
			return InputLayout{}, fmt.Errorf("input %%%d is not a pointer", id)
		}
		format, err := m.format(ptr.pointee)
		if err != nil {
			return InputLayout{}, fmt.Errorf("input at location %d: %w", loc, err)
		}
		attrs = append(attrs, VertexAttribute{Location: loc, Format: format})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Location < attrs[j].Location })

	var offset uint32
	for i := range attrs {
		attrs[i].Offset = offset
		offset += attrs[i].Format.Size()
	}
	return InputLayout{Attributes: attrs, Stride: offset}, nil
}

func (m *spirvModule) format(typeID uint32) (Format, error) {
	if s, ok := m.scalars[typeID]; ok {
		if s.float && s.width == 32 {
			return FormatFloat32, nil
		}
		return FormatUndefined, fmt.Errorf("unsupported scalar type %%%d", typeID)
	}
	vec, ok := m.vectors[typeID]
	if !ok {
		return FormatUndefined, fmt.Errorf("unsupported type %%%d", typeID)
	}
	s, ok := m.scalars[vec.component]
	if !ok || !s.float || s.width != 32 {
		return FormatUndefined, fmt.Errorf("unsupported vector component %%%d", vec.component)
	}
	switch vec.count {
	case 2:
		return FormatFloat32x2, nil
	case 3:
		return FormatFloat32x3, nil
	case 4:
		return FormatFloat32x4, nil
	}
	return FormatUndefined, fmt.Errorf("unsupported vector width %d", vec.count)
}
