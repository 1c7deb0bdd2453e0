package metadata

import (
	"github.com/spaghettifunk/ludo/engine/memory"
)

/**
 * @brief The topology used to assemble primitives from indices.
 */
type MeshPrimitive int

const (
	MeshPrimitivePointList MeshPrimitive = iota
	MeshPrimitiveLineList
	MeshPrimitiveLineStrip
	MeshPrimitiveTriangleList
	MeshPrimitiveTriangleStrip
)

func (p MeshPrimitive) String() string {
	switch p {
	case MeshPrimitivePointList:
		return "points"
	case MeshPrimitiveLineList:
		return "lines"
	case MeshPrimitiveLineStrip:
		return "line strip"
	case MeshPrimitiveTriangleList:
		return "triangles"
	case MeshPrimitiveTriangleStrip:
		return "triangle strip"
	}
	return "unknown"
}

/** @brief A contiguous range of elements. */
type Range struct {
	Start uint32
	Count uint32
}

/**
 * @brief Sizes used to create a mesh buffer.
 */
type MeshBufferOptions struct {
	InstanceCount uint32
	IndexCount    uint32
	VertexCount   uint32
	Normals       bool
	Colors        bool
	TextureCount  uint8
	/** @brief Largest bone count of any mesh stored in the buffer. */
	BoneCount uint32
}

/**
 * @brief Index and vertex storage shared by many meshes.
 */
type MeshBuffer struct {
	ID        uint64
	Name      string
	Primitive MeshPrimitive
	Format    VertexFormat
	/** @brief 32-bit indices, allocated from the index heap. */
	Indices memory.View
	/** @brief Vertices of Format.Size bytes, allocated from the vertex heap. */
	Vertices memory.View
	/** @brief Textures sampled by meshes of this buffer, by slot. */
	Textures []*Texture
	BoneCount uint32
}

/**
 * @brief A sub-range of a mesh buffer. A mesh never owns its bytes.
 */
type Mesh struct {
	ID           uint64
	Name         string
	MeshBufferID uint64
	Primitive    MeshPrimitive
	Format       VertexFormat
	Indices      memory.View
	Vertices     memory.View
	/** @brief Vertex heap element that index value 0 refers to. */
	BaseVertex uint32
}

// IndexRange returns the position of the mesh indices from the base of the
// index heap.
func (m *Mesh) IndexRange() Range {
	return Range{Start: uint32(m.Indices.Start()), Count: uint32(m.Indices.Len())}
}

// VertexRange returns the position of the mesh vertices from the base of the
// vertex heap.
func (m *Mesh) VertexRange() Range {
	return Range{Start: uint32(m.Vertices.Start()), Count: uint32(m.Vertices.Len())}
}

/**
 * @brief A mesh drawn by a render program, with a range of instance slots
 * in the program's instance buffer.
 */
type MeshInstance struct {
	ID        uint64
	MeshID    uint64
	ProgramID uint64
	Indices   Range
	Vertices  Range
	Instances Range
}
