package astrum

import (
	"path/filepath"
	"sort"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/resources"
	"github.com/spaghettifunk/ludo/engine/systems"
)

// scenePlan is what capacity planning learns about a loaded scene.
type scenePlan struct {
	path      string
	scene     *resources.Scene
	options   metadata.MeshBufferOptions
	format    metadata.VertexFormat
	meshCount uint32
}

/**
 * @brief Sizes every loaded scene. Scenes are returned sorted by path so
 * models are placed in the same order on every run.
 */
func planScenes(sm *systems.SystemManager, scenes map[string]*resources.Scene) ([]scenePlan, error) {
	plans := make([]scenePlan, 0, len(scenes))
	for path, scene := range scenes {
		options, err := sm.Imports.BuildMeshBufferOptions(scene, systems.ImportOptions{})
		if err != nil {
			return nil, err
		}
		meshCount, err := systems.ImportMeshCount(scene)
		if err != nil {
			return nil, err
		}
		plans = append(plans, scenePlan{
			path:      path,
			scene:     scene,
			options:   options,
			format:    sm.Meshes.Format(options),
			meshCount: meshCount,
		})
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].path < plans[j].path })
	return plans, nil
}

type modelMesh struct {
	mesh     *metadata.Mesh
	instance metadata.MeshInstance
}

/**
 * @brief An imported scene circling the planet. Skinned models play their
 * first animation.
 */
type Model struct {
	Name    string
	Program *metadata.RenderProgram
	Import  *systems.ImportResult

	meshes []modelMesh
	angle  float32
	spin   float32
}

/**
 * @brief Imports the planned scenes. Scenes sharing a vertex format share a
 * program, created here with room for all of their meshes.
 */
func addModels(sm *systems.SystemManager, plans []scenePlan) ([]*Model, error) {
	capacities := map[string]uint32{}
	for _, plan := range plans {
		capacities[plan.format.String()] += plan.meshCount
	}
	programs := map[string]*metadata.RenderProgram{}

	var models []*Model
	for i, plan := range plans {
		if plan.meshCount == 0 {
			core.LogWarn("model %s has no meshes to draw", plan.path)
			continue
		}
		result, err := sm.Imports.Import(plan.scene, systems.ImportOptions{})
		if err != nil {
			return models, err
		}
		model := &Model{
			Name:   filepath.Base(plan.path),
			Import: result,
			angle:  2 * math32.Pi * float32(i) / float32(len(plans)),
		}
		models = append(models, model)

		key := result.MeshBuffer.Format.String()
		program, ok := programs[key]
		if !ok {
			program, err = sm.Programs.Add(metadata.RenderProgram{Name: "models_" + key, Primitive: result.MeshBuffer.Primitive}, result.MeshBuffer.Format, capacities[key])
			if err != nil {
				return models, err
			}
			programs[key] = program
		}
		model.Program = program

		var handle uint64
		if result.Texture != nil && program.Format.HasTextureCoord {
			if handle, err = sm.Textures.Handle(result.Texture); err != nil {
				return models, err
			}
		}
		for _, mesh := range result.Meshes {
			instance, err := sm.Programs.AddInstance(program, mesh, 1)
			if err != nil {
				return models, err
			}
			if handle != 0 {
				if err := sm.Programs.SetInstanceTexture(program, instance, 0, handle); err != nil {
					return models, err
				}
			}
			model.meshes = append(model.meshes, modelMesh{mesh: mesh, instance: instance})
		}
		core.LogInfo("model %s imported: %d meshes, %d armatures, %d animations", model.Name, len(result.Meshes), len(result.Armatures), len(result.Animations))
	}
	return models, nil
}

// Transform places the model on its orbit.
func (m *Model) Transform() math.Mat4 {
	position := math.NewVec3(math32.Cos(m.angle)*ModelOrbitRadius, 0, math32.Sin(m.angle)*ModelOrbitRadius)
	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), m.spin, true)
	return math.NewMat4TRS(position, rotation, math.NewVec3One())
}

/**
 * @brief Advances the orbit and the animation and writes the instances.
 */
func (m *Model) Update(sm *systems.SystemManager, deltaTime, elapsed float64) error {
	m.angle = math32.Mod(m.angle+ModelOrbitSpeed*float32(deltaTime), 2*math32.Pi)
	m.spin = math32.Mod(m.spin+ModelSpinSpeed*float32(deltaTime), 2*math32.Pi)
	transform := m.Transform()

	var bones []math.Mat4
	if m.Program.Format.HasBoneWeights && len(m.Import.Armatures) > 0 {
		var animation *metadata.Animation
		if len(m.Import.Animations) > 0 {
			animation = m.Import.Animations[0]
		}
		bones = systems.BoneTransforms(m.Import.Armatures[0], m.Import.MeshBuffer.BoneCount, animation, float32(elapsed))
	}

	for _, mm := range m.meshes {
		sm.Programs.SetInstanceTransform(m.Program, mm.instance, 0, transform)
		if bones != nil {
			if err := sm.Programs.SetInstanceBones(m.Program, mm.instance, 0, bones); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) Draw(sm *systems.SystemManager) {
	for _, mm := range m.meshes {
		sm.Programs.Draw(m.Program, mm.instance)
	}
}
