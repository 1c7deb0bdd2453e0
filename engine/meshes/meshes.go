// Package meshes writes procedural geometry into meshes created by the mesh
// system. Generators take index and vertex cursors, relative to the mesh,
// and advance them past what they wrote.
package meshes

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

func checkCapacity(mesh *metadata.Mesh, what string, indexStart, indexCount, vertexStart, vertexCount uint32) error {
	if uint64(indexStart)+uint64(indexCount) > mesh.Indices.Len() || uint64(vertexStart)+uint64(vertexCount) > mesh.Vertices.Len() {
		err := fmt.Errorf("%s (%d indices, %d vertices at %d/%d) does not fit mesh '%s' (%d indices, %d vertices): %w",
			what, indexCount, vertexCount, indexStart, vertexStart, mesh.Name, mesh.Indices.Len(), mesh.Vertices.Len(), core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return err
	}
	return nil
}

// vertex holds every channel a generator may write. Channels missing from
// the mesh format are skipped.
type vertex struct {
	position math.Vec3
	normal   math.Vec3
	color    math.Vec4
	texCoord math.Vec2
}

func writeVertex(mesh *metadata.Mesh, index uint32, v vertex) {
	format := mesh.Format
	vertices := mesh.Vertices.MustBytes()
	base := uint64(index) * uint64(format.Size)

	memory.WriteVec3(vertices, base+uint64(format.PositionOffset), v.position)
	if format.HasNormal {
		memory.WriteVec3(vertices, base+uint64(format.NormalOffset), v.normal)
	}
	if format.HasColor {
		memory.WriteVec4(vertices, base+uint64(format.ColorOffset), v.color)
	}
	if format.HasTextureCoord {
		memory.WriteVec2(vertices, base+uint64(format.TextureOffset), v.texCoord)
	}
}

func writeIndex(mesh *metadata.Mesh, index uint32, value uint32) {
	memory.Write(mesh.Indices.MustBytes(), uint64(index)*uint64(metadata.IndexSize), value)
}
