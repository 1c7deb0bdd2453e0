package meshes

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

// Triangle is three corners, counter-clockwise seen from outside the sphere.
type Triangle [3]math.Vec3

// IcoFaceCount is the number of faces of the icosahedron every sphere starts from.
const IcoFaceCount = 20

var icoFaces = func() [IcoFaceCount]Triangle {
	t := (1 + math32.Sqrt(5)) / 2
	corners := [12]math.Vec3{
		{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
		{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
		{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
	}
	indices := [IcoFaceCount][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	var faces [IcoFaceCount]Triangle
	for f, face := range indices {
		for c, corner := range face {
			faces[f][c] = corners[corner].Normalize()
		}
	}
	return faces
}()

// SphereIcoFaces returns the faces of a unit icosahedron.
func SphereIcoFaces() [IcoFaceCount]Triangle {
	return icoFaces
}

func pow4(exponent uint32) uint32 {
	return 1 << (2 * exponent)
}

// subdivide splits a triangle in four, pushing the new corners onto the
// unit sphere. The order of the children defines section indices.
func (t Triangle) subdivide() [4]Triangle {
	p01 := t[0].Add(t[1]).MulScalar(0.5).Normalize()
	p02 := t[0].Add(t[2]).MulScalar(0.5).Normalize()
	p12 := t[1].Add(t[2]).MulScalar(0.5).Normalize()
	return [4]Triangle{
		{t[0], p01, p02},
		{p01, t[1], p12},
		{p02, p12, t[2]},
		{p01, p12, p02},
	}
}

// SphereIcoCounts returns the indices and vertices SphereIco writes. Every
// triangle has its own three vertices.
func SphereIcoCounts(divisions uint32) (uint32, uint32) {
	count := IcoFaceCount * pow4(divisions) * 3
	return count, count
}

/**
 * @brief Writes a unit sphere made of the icosahedron faces, each split in
 * four divisions times.
 */
func SphereIco(mesh *metadata.Mesh, indexIndex, vertexIndex *uint32, divisions uint32) error {
	indexCount, vertexCount := SphereIcoCounts(divisions)
	if err := checkCapacity(mesh, "sphere", *indexIndex, indexCount, *vertexIndex, vertexCount); err != nil {
		return err
	}
	for _, face := range icoFaces {
		writeFace(mesh, indexIndex, vertexIndex, divisions, face)
	}
	return nil
}

func writeFace(mesh *metadata.Mesh, indexIndex, vertexIndex *uint32, divisions uint32, face Triangle) {
	if divisions > 0 {
		for _, child := range face.subdivide() {
			writeFace(mesh, indexIndex, vertexIndex, divisions-1, child)
		}
		return
	}
	for _, position := range face {
		writeVertex(mesh, *vertexIndex, sphereVertex(position))
		writeIndex(mesh, *indexIndex, *vertexIndex)
		*vertexIndex++
		*indexIndex++
	}
}

// sphereVertex maps a point of the unit sphere to an equirectangular
// texture coordinate.
func sphereVertex(position math.Vec3) vertex {
	return vertex{
		position: position,
		normal:   position,
		color:    math.NewVec4One(),
		texCoord: math.NewVec2(
			0.5+math32.Atan2(position.Z, position.X)/(2*math32.Pi),
			0.5-math32.Asin(math.Clamp(position.Y, -1, 1))/math32.Pi,
		),
	}
}

// IcoSectionCount returns the number of sections a sphere is cut into.
// Sections of one division are the icosahedron faces.
func IcoSectionCount(sectionDivisions uint32) uint32 {
	if sectionDivisions == 0 {
		return 0
	}
	return IcoFaceCount * pow4(sectionDivisions-1)
}

// IcoSectionCounts returns the indices and vertices IcoSection writes.
func IcoSectionCounts(sectionDivisions, divisions uint32) (uint32, uint32) {
	if divisions < sectionDivisions {
		return 0, 0
	}
	count := pow4(divisions-sectionDivisions) * 3
	return count, count
}

// IcoSectionTriangle returns the triangle covered by a section.
func IcoSectionTriangle(index, sectionDivisions uint32) (Triangle, error) {
	if sectionDivisions == 0 || index >= IcoSectionCount(sectionDivisions) {
		err := fmt.Errorf("section %d of a sphere with %d section divisions: %w", index, sectionDivisions, core.ErrInvalidRange)
		core.LogError(err.Error())
		return Triangle{}, err
	}
	perFace := pow4(sectionDivisions - 1)
	triangle := icoFaces[index/perFace]
	index %= perFace
	for level := sectionDivisions - 1; level > 0; level-- {
		perChild := pow4(level - 1)
		triangle = triangle.subdivide()[index/perChild]
		index %= perChild
	}
	return triangle, nil
}

/**
 * @brief Writes one section of a sphere divided divisions times. Sections
 * split the sphere sectionDivisions times, so each holds the triangles of
 * divisions - sectionDivisions further splits. Indices and vertices share
 * one cursor: the section occupies the same range of both.
 */
func IcoSection(mesh *metadata.Mesh, start uint32, index, sectionDivisions, divisions uint32) error {
	if divisions < sectionDivisions {
		err := fmt.Errorf("sphere divisions %d below section divisions %d: %w", divisions, sectionDivisions, core.ErrValidation)
		core.LogError(err.Error())
		return err
	}
	triangle, err := IcoSectionTriangle(index, sectionDivisions)
	if err != nil {
		return err
	}
	indexCount, vertexCount := IcoSectionCounts(sectionDivisions, divisions)
	if err := checkCapacity(mesh, "sphere section", start, indexCount, start, vertexCount); err != nil {
		return err
	}

	indexIndex, vertexIndex := start, start
	writeFace(mesh, &indexIndex, &vertexIndex, divisions-sectionDivisions, triangle)
	return nil
}

/**
 * @brief Returns the sections, keyed by index, whose triangle passes test.
 * The test runs on every level of the subdivision and a failing triangle
 * prunes the sections below it.
 */
func FindSphereIcoChunks(sectionDivisions uint32, test func(triangle Triangle) bool) map[uint32]Triangle {
	chunks := make(map[uint32]Triangle)
	if sectionDivisions == 0 {
		return chunks
	}

	var find func(triangle Triangle, index, level uint32)
	find = func(triangle Triangle, index, level uint32) {
		if !test(triangle) {
			return
		}
		if level == 0 {
			chunks[index] = triangle
			return
		}
		perChild := pow4(level - 1)
		for c, child := range triangle.subdivide() {
			find(child, index+uint32(c)*perChild, level-1)
		}
	}

	perFace := pow4(sectionDivisions - 1)
	for f, face := range icoFaces {
		find(face, uint32(f)*perFace, sectionDivisions-1)
	}
	return chunks
}
