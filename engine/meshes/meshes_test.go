package meshes

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMesh(t *testing.T, format metadata.VertexFormat, indexCount, vertexCount uint32) *metadata.Mesh {
	t.Helper()
	indexBytes := uint64(indexCount) * uint64(metadata.IndexSize)
	vertexBytes := uint64(vertexCount) * uint64(format.Size)
	heap := memory.NewHeap("meshes", make([]byte, indexBytes+vertexBytes))

	indices, err := heap.Allocate(indexBytes)
	require.NoError(t, err)
	vertices, err := heap.Allocate(vertexBytes)
	require.NoError(t, err)
	return &metadata.Mesh{
		Name:     "test",
		Format:   format,
		Indices:  memory.NewView(indices, uint64(metadata.IndexSize)),
		Vertices: memory.NewView(vertices, uint64(format.Size)),
	}
}

func index(mesh *metadata.Mesh, i uint32) uint32 {
	return memory.Read[uint32](mesh.Indices.MustBytes(), uint64(i)*uint64(metadata.IndexSize))
}

func position(mesh *metadata.Mesh, i uint32) math.Vec3 {
	return memory.ReadVec3(mesh.Vertices.MustBytes(), uint64(i)*uint64(mesh.Format.Size)+uint64(mesh.Format.PositionOffset))
}

func normal(mesh *metadata.Mesh, i uint32) math.Vec3 {
	return memory.ReadVec3(mesh.Vertices.MustBytes(), uint64(i)*uint64(mesh.Format.Size)+uint64(mesh.Format.NormalOffset))
}

func TestRectangleCounts(t *testing.T) {
	indices, vertices := RectangleCounts(0, false)
	assert.Equal(t, uint32(6), indices)
	assert.Equal(t, uint32(6), vertices)

	indices, vertices = RectangleCounts(4, true)
	assert.Equal(t, uint32(96), indices)
	assert.Equal(t, uint32(25), vertices)
}

func TestRectangle(t *testing.T) {
	mesh := newMesh(t, metadata.VertexFormatPNT, 6, 6)
	indexIndex, vertexIndex := uint32(0), uint32(0)

	require.NoError(t, Rectangle(mesh, &indexIndex, &vertexIndex, NewRectangleOptions()))
	assert.Equal(t, uint32(6), indexIndex)
	assert.Equal(t, uint32(6), vertexIndex)

	for i := uint32(0); i < 6; i++ {
		assert.Equal(t, i, index(mesh, i))
		assert.True(t, normal(mesh, i).Near(math.NewVec3(0, 0, 1)))
	}
	assert.True(t, position(mesh, 0).Near(math.NewVec3(-0.5, -0.5, 0)))
	assert.True(t, position(mesh, 2).Near(math.NewVec3(0.5, 0.5, 0)))

	format := mesh.Format
	texCoord := memory.ReadVec2(mesh.Vertices.MustBytes(), 2*uint64(format.Size)+uint64(format.TextureOffset))
	assert.Equal(t, math.NewVec2(1, 1), texCoord)
}

func TestRectangleUniqueOnly(t *testing.T) {
	indexCount, vertexCount := RectangleCounts(2, true)
	mesh := newMesh(t, metadata.VertexFormatP, indexCount+6, vertexCount+4)
	// leave room in front to check the cursors are honoured
	indexIndex, vertexIndex := uint32(6), uint32(4)

	options := NewRectangleOptions()
	options.Divisions = 2
	options.UniqueOnly = true
	require.NoError(t, Rectangle(mesh, &indexIndex, &vertexIndex, options))
	assert.Equal(t, indexCount+6, indexIndex)
	assert.Equal(t, vertexCount+4, vertexIndex)

	// first cell of the 3x3 vertex grid
	assert.Equal(t, []uint32{4, 5, 8, 4, 8, 7}, []uint32{
		index(mesh, 6), index(mesh, 7), index(mesh, 8), index(mesh, 9), index(mesh, 10), index(mesh, 11),
	})
	assert.True(t, position(mesh, 4+4).Near(math.NewVec3(0, 0, 0)))
}

func TestRectangleCapacity(t *testing.T) {
	mesh := newMesh(t, metadata.VertexFormatP, 5, 6)
	indexIndex, vertexIndex := uint32(0), uint32(0)
	err := Rectangle(mesh, &indexIndex, &vertexIndex, NewRectangleOptions())
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
	assert.Equal(t, uint32(0), indexIndex)
}

func TestSphereIco(t *testing.T) {
	indexCount, vertexCount := SphereIcoCounts(1)
	assert.Equal(t, uint32(240), indexCount)
	assert.Equal(t, uint32(240), vertexCount)

	mesh := newMesh(t, metadata.VertexFormatPN, indexCount, vertexCount)
	indexIndex, vertexIndex := uint32(0), uint32(0)
	require.NoError(t, SphereIco(mesh, &indexIndex, &vertexIndex, 1))
	assert.Equal(t, indexCount, indexIndex)

	for i := uint32(0); i < vertexCount; i++ {
		p := position(mesh, i)
		assert.InDelta(t, 1, p.Length(), 1e-5)
		assert.True(t, normal(mesh, i).Near(p))
	}

	// faces wind counter-clockwise seen from outside
	for i := uint32(0); i < vertexCount; i += 3 {
		a, b, c := position(mesh, i), position(mesh, i+1), position(mesh, i+2)
		assert.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(a), float32(0))
	}
}

func TestIcoSection(t *testing.T) {
	assert.Equal(t, uint32(20), IcoSectionCount(1))
	assert.Equal(t, uint32(80), IcoSectionCount(2))

	indexCount, vertexCount := IcoSectionCounts(2, 3)
	assert.Equal(t, uint32(12), indexCount)
	assert.Equal(t, uint32(12), vertexCount)

	// section 5 of 80 is the second child of face 1
	section, err := IcoSectionTriangle(5, 2)
	require.NoError(t, err)
	expected := SphereIcoFaces()[1].subdivide()[1]
	assert.Equal(t, expected, section)

	mesh := newMesh(t, metadata.VertexFormatP, 24, 24)
	require.NoError(t, IcoSection(mesh, 12, 5, 2, 3))
	assert.Equal(t, uint32(12), index(mesh, 12))
	assert.Equal(t, uint32(23), index(mesh, 23))
	assert.True(t, position(mesh, 12).Near(expected[0]))

	_, err = IcoSectionTriangle(80, 2)
	assert.ErrorIs(t, err, core.ErrInvalidRange)
	assert.ErrorIs(t, IcoSection(mesh, 0, 0, 3, 2), core.ErrValidation)
	assert.ErrorIs(t, IcoSection(mesh, 20, 0, 2, 3), core.ErrCapacityExceeded)
}

func TestFindSphereIcoChunks(t *testing.T) {
	all := FindSphereIcoChunks(2, func(Triangle) bool { return true })
	assert.Len(t, all, 80)
	for index, triangle := range all {
		expected, err := IcoSectionTriangle(index, 2)
		require.NoError(t, err)
		assert.Equal(t, expected, triangle)
	}

	// sections touching the upper half of the sphere
	upper := FindSphereIcoChunks(3, func(triangle Triangle) bool {
		return triangle[0].Y > 0 || triangle[1].Y > 0 || triangle[2].Y > 0
	})
	assert.NotEmpty(t, upper)
	assert.Less(t, len(upper), int(IcoSectionCount(3)))
	for _, triangle := range upper {
		assert.True(t, triangle[0].Y > 0 || triangle[1].Y > 0 || triangle[2].Y > 0)
	}

	assert.Empty(t, FindSphereIcoChunks(0, func(Triangle) bool { return true }))
}
