package astrum

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/meshes"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/systems"
)

type terraSection struct {
	mesh     *metadata.Mesh
	instance metadata.MeshInstance
	near     bool
}

/**
 * @brief The planet. Its sphere is cut into sections; those facing the
 * camera are divided further than the rest. Every section is its own mesh
 * of one mesh buffer and is drawn with one instance of the terra program.
 */
type Terra struct {
	Radius     float32
	Program    *metadata.RenderProgram
	MeshBuffer *metadata.MeshBuffer

	sections []terraSection
}

/**
 * @brief Returns the sections of the planet that face viewDirection, the
 * direction from the camera towards the center of the planet.
 */
func NearSections(viewDirection math.Vec3) map[uint32]meshes.Triangle {
	towardsCamera := viewDirection.MulScalar(-1).Normalize()
	return meshes.FindSphereIcoChunks(TerraSectionDivisions, func(triangle meshes.Triangle) bool {
		center := math.NewVec3Zero()
		for _, corner := range triangle {
			if corner.Normalize().Dot(towardsCamera) >= TerraNearThreshold {
				return true
			}
			center = center.Add(corner)
		}
		return center.Normalize().Dot(towardsCamera) >= TerraNearThreshold
	})
}

func sectionDivisions(near bool) uint32 {
	if near {
		return TerraNearDivisions
	}
	return TerraFarDivisions
}

// TerraCounts returns the indices and vertices of the planet mesh buffer and
// its number of sections.
func TerraCounts(near map[uint32]meshes.Triangle) (uint32, uint32, uint32) {
	sections := meshes.IcoSectionCount(TerraSectionDivisions)
	var indexCount, vertexCount uint32
	for index := uint32(0); index < sections; index++ {
		_, isNear := near[index]
		i, v := meshes.IcoSectionCounts(TerraSectionDivisions, sectionDivisions(isNear))
		indexCount += i
		vertexCount += v
	}
	return indexCount, vertexCount, sections
}

/**
 * @brief Writes the planet geometry and creates the program drawing it.
 */
func AddTerra(sm *systems.SystemManager, radius float32, near map[uint32]meshes.Triangle) (*Terra, error) {
	indexCount, vertexCount, sectionCount := TerraCounts(near)
	mb, err := sm.Meshes.AddMeshBufferWithFormat(metadata.MeshBuffer{Name: "terra", Primitive: metadata.MeshPrimitiveTriangleList}, metadata.VertexFormatPN, indexCount, vertexCount, 0, 0)
	if err != nil {
		return nil, err
	}
	t := &Terra{Radius: radius, MeshBuffer: mb}

	t.Program, err = sm.Programs.Add(metadata.RenderProgram{Name: "terra", Primitive: mb.Primitive}, mb.Format, sectionCount)
	if err != nil {
		_ = sm.Meshes.RemoveMeshBuffer(mb)
		return nil, err
	}

	transform := math.NewMat4Scale(math.NewVec3(radius, radius, radius))
	start := uint32(0)
	for index := uint32(0); index < sectionCount; index++ {
		_, isNear := near[index]
		divisions := sectionDivisions(isNear)
		count, _ := meshes.IcoSectionCounts(TerraSectionDivisions, divisions)

		mesh, err := sm.Meshes.AddMesh(mb, systems.MeshOptions{
			Name:     fmt.Sprintf("terra_section_%d", index),
			Indices:  metadata.Range{Start: start, Count: count},
			Vertices: metadata.Range{Start: start, Count: count},
		})
		if err != nil {
			_ = t.Remove(sm)
			return nil, err
		}
		if err := meshes.IcoSection(mesh, 0, index, TerraSectionDivisions, divisions); err != nil {
			_ = t.Remove(sm)
			return nil, err
		}
		instance, err := sm.Programs.AddInstance(t.Program, mesh, 1)
		if err != nil {
			_ = t.Remove(sm)
			return nil, err
		}
		sm.Programs.SetInstanceTransform(t.Program, instance, 0, transform)

		t.sections = append(t.sections, terraSection{mesh: mesh, instance: instance, near: isNear})
		start += count
	}
	return t, nil
}

// NearCount returns the number of sections drawn in detail.
func (t *Terra) NearCount() int {
	count := 0
	for _, section := range t.sections {
		if section.near {
			count++
		}
	}
	return count
}

// Draw queues every section.
func (t *Terra) Draw(sm *systems.SystemManager) {
	for _, section := range t.sections {
		sm.Programs.Draw(t.Program, section.instance)
	}
}

func (t *Terra) Remove(sm *systems.SystemManager) error {
	var err error
	if t.Program != nil {
		err = sm.Programs.Remove(t.Program)
		t.Program = nil
	}
	if t.MeshBuffer != nil {
		if removeErr := sm.Meshes.RemoveMeshBuffer(t.MeshBuffer); err == nil {
			err = removeErr
		}
		t.MeshBuffer = nil
	}
	t.sections = nil
	return err
}
