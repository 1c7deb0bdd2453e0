package meshes

import (
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/**
 * @brief Describes a flat rectangle: a corner, the edges leaving it and the
 * texture coordinates mapped across it.
 */
type RectangleOptions struct {
	BottomLeft math.Vec3
	Right      math.Vec3
	Top        math.Vec3

	TexCoordMin   math.Vec2
	TexCoordDelta math.Vec2
	Color         math.Vec4

	/** @brief Cells along each edge; 0 is treated as 1. */
	Divisions uint32
	/** @brief Share the vertices of neighbouring cells. */
	UniqueOnly bool
}

// NewRectangleOptions returns a unit square on the XY plane centered at the
// origin, facing +Z.
func NewRectangleOptions() RectangleOptions {
	return RectangleOptions{
		BottomLeft:    math.NewVec3(-0.5, -0.5, 0),
		Right:         math.NewVec3(1, 0, 0),
		Top:           math.NewVec3(0, 1, 0),
		TexCoordDelta: math.NewVec2(1, 1),
		Color:         math.NewVec4One(),
		Divisions:     1,
	}
}

// RectangleCounts returns the indices and vertices Rectangle writes.
func RectangleCounts(divisions uint32, uniqueOnly bool) (uint32, uint32) {
	if divisions == 0 {
		divisions = 1
	}
	indices := divisions * divisions * 6
	if uniqueOnly {
		return indices, (divisions + 1) * (divisions + 1)
	}
	return indices, indices
}

/**
 * @brief Writes a rectangle as a triangle list, counter-clockwise when seen
 * from the side Right x Top points to.
 */
func Rectangle(mesh *metadata.Mesh, indexIndex, vertexIndex *uint32, options RectangleOptions) error {
	divisions := options.Divisions
	if divisions == 0 {
		divisions = 1
	}
	indexCount, vertexCount := RectangleCounts(divisions, options.UniqueOnly)
	if err := checkCapacity(mesh, "rectangle", *indexIndex, indexCount, *vertexIndex, vertexCount); err != nil {
		return err
	}

	normal := options.Right.Cross(options.Top).Normalize()
	step := 1 / float32(divisions)
	corner := func(column, row uint32) vertex {
		u, v := float32(column)*step, float32(row)*step
		return vertex{
			position: options.BottomLeft.Add(options.Right.MulScalar(u)).Add(options.Top.MulScalar(v)),
			normal:   normal,
			color:    options.Color,
			texCoord: options.TexCoordMin.Add(math.NewVec2(options.TexCoordDelta.X*u, options.TexCoordDelta.Y*v)),
		}
	}

	vertexStart := *vertexIndex
	if options.UniqueOnly {
		for row := uint32(0); row <= divisions; row++ {
			for column := uint32(0); column <= divisions; column++ {
				writeVertex(mesh, *vertexIndex, corner(column, row))
				*vertexIndex++
			}
		}
		at := func(column, row uint32) uint32 {
			return vertexStart + row*(divisions+1) + column
		}
		for row := uint32(0); row < divisions; row++ {
			for column := uint32(0); column < divisions; column++ {
				for _, index := range []uint32{
					at(column, row), at(column+1, row), at(column+1, row+1),
					at(column, row), at(column+1, row+1), at(column, row+1),
				} {
					writeIndex(mesh, *indexIndex, index)
					*indexIndex++
				}
			}
		}
		return nil
	}

	for row := uint32(0); row < divisions; row++ {
		for column := uint32(0); column < divisions; column++ {
			for _, c := range [][2]uint32{
				{column, row}, {column + 1, row}, {column + 1, row + 1},
				{column, row}, {column + 1, row + 1}, {column, row + 1},
			} {
				writeVertex(mesh, *vertexIndex, corner(c[0], c[1]))
				writeIndex(mesh, *indexIndex, *vertexIndex)
				*vertexIndex++
				*indexIndex++
			}
		}
	}
	return nil
}
