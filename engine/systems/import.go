package systems

import (
	"fmt"
	"math/bits"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/ludo/engine/assets"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/resources"
)

/** @brief Nodes whose name contains this marker hold collision geometry. */
const RigidBodyMarker = "RigidBody"

/** @brief Used when an animation does not state its tick rate. */
const DefaultTicksPerSecond float32 = 24

/** @brief Configuration for the import system. */
type ImportSystemConfig struct {
	/** @brief Folder that diffuse texture paths are relative to. */
	ModelsFolder string
	Limits       metadata.RendererLimits
}

/**
 * @brief Options of a single import call.
 */
type ImportOptions struct {
	/** @brief Buffer to write into; a new one sized for the scene when nil. */
	MeshBuffer *metadata.MeshBuffer
	/** @brief First index and vertex of MeshBuffer to write to. */
	IndexStart  uint32
	VertexStart uint32
	/** @brief Instances the new mesh buffer is planned for. */
	InstanceCount uint32
	/** @brief Collapse all meshes into one mesh instead of one per source mesh. */
	Merge bool
}

/**
 * @brief Everything created by one import call.
 */
type ImportResult struct {
	ID              uuid.UUID
	MeshBuffer      *metadata.MeshBuffer
	Meshes          []*metadata.Mesh
	Armatures       []*metadata.Armature
	Animations      []*metadata.Animation
	RigidBodyShapes []*metadata.RigidBodyShape
	Texture         *metadata.Texture
}

// RigidBodyPartition names the group the rigid body shapes of the import belong to.
func (r *ImportResult) RigidBodyPartition() string {
	return r.ID.String() + "-rigid-body-shapes"
}

/**
 * @brief Converts generic scene graphs into mesh buffers, armatures,
 * animations, rigid body shapes and textures.
 */
type ImportSystem struct {
	Config *ImportSystemConfig

	armatureIDs  core.Identifiers
	animationIDs core.Identifiers
	shapeIDs     core.Identifiers

	meshSystem    *MeshSystem
	textureSystem *TextureSystem
	assetManager  *assets.AssetManager
}

func NewImportSystem(config *ImportSystemConfig, ms *MeshSystem, ts *TextureSystem, am *assets.AssetManager) (*ImportSystem, error) {
	if config.Limits.MaxBoneWeightsPerVertex == 0 {
		err := fmt.Errorf("NewImportSystem - config.Limits.MaxBoneWeightsPerVertex must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &ImportSystem{
		Config:        config,
		meshSystem:    ms,
		textureSystem: ts,
		assetManager:  am,
	}, nil
}

// importObject is a mesh placed in the scene by a node.
type importObject struct {
	mesh      int
	transform math.Mat4
}

/**
 * @brief Walks the tree accumulating transforms. Meshes under a node whose
 * name contains the rigid body marker, at any depth, are collision geometry.
 */
func findObjects(node *resources.SceneNode, parent math.Mat4, rigidBody bool) (meshes, rigidBodies []importObject) {
	transform := node.Transform.Mul(parent)
	rigidBody = rigidBody || node.HasMarker(RigidBodyMarker)

	for _, mesh := range node.Meshes {
		object := importObject{mesh: mesh, transform: transform}
		if rigidBody {
			rigidBodies = append(rigidBodies, object)
		} else {
			meshes = append(meshes, object)
		}
	}

	for _, child := range node.Children {
		childMeshes, childRigidBodies := findObjects(child, transform, rigidBody)
		meshes = append(meshes, childMeshes...)
		rigidBodies = append(rigidBodies, childRigidBodies...)
	}
	return meshes, rigidBodies
}

func sceneObjects(scene *resources.Scene) ([]importObject, []importObject, error) {
	if scene == nil || scene.Root == nil {
		err := fmt.Errorf("scene has no root node: %w", core.ErrValidation)
		core.LogError(err.Error())
		return nil, nil, err
	}
	meshes, rigidBodies := findObjects(scene.Root, math.NewMat4Identity(), false)
	for _, object := range append(append([]importObject(nil), meshes...), rigidBodies...) {
		if object.mesh < 0 || object.mesh >= len(scene.Meshes) {
			err := fmt.Errorf("node refers to mesh %d of %d: %w", object.mesh, len(scene.Meshes), core.ErrValidation)
			core.LogError(err.Error())
			return nil, nil, err
		}
	}
	return meshes, rigidBodies, nil
}

/**
 * @brief Meshes of one import share one primitive kind and one material.
 */
func validate(scene *resources.Scene, objects []importObject) error {
	if len(objects) == 0 {
		return nil
	}
	first := scene.Meshes[objects[0].mesh]
	primitive := first.PrimitiveTypes()

	for _, object := range objects {
		mesh := scene.Meshes[object.mesh]
		types := mesh.PrimitiveTypes()

		var err error
		switch {
		case types&resources.PrimitiveTypePolygon != 0:
			err = fmt.Errorf("mesh '%s': primitives must be points, lines or triangles: %w", mesh.Name, core.ErrValidation)
		case bits.OnesCount8(uint8(types)) != 1:
			err = fmt.Errorf("mesh '%s' mixes primitive kinds: %w", mesh.Name, core.ErrValidation)
		case types != primitive:
			err = fmt.Errorf("mesh '%s': meshes must have the same primitive: %w", mesh.Name, core.ErrValidation)
		case mesh.Material != first.Material:
			err = fmt.Errorf("mesh '%s': meshes must have the same material: %w", mesh.Name, core.ErrValidation)
		}
		if err != nil {
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

func meshPrimitive(types resources.PrimitiveType) metadata.MeshPrimitive {
	switch types {
	case resources.PrimitiveTypePoint:
		return metadata.MeshPrimitivePointList
	case resources.PrimitiveTypeLine:
		return metadata.MeshPrimitiveLineList
	}
	return metadata.MeshPrimitiveTriangleList
}

func diffuseTexture(scene *resources.Scene, mesh *resources.SceneMesh) string {
	if mesh.Material < 0 || mesh.Material >= len(scene.Materials) || scene.Materials[mesh.Material] == nil {
		return ""
	}
	return scene.Materials[mesh.Material].DiffuseTexture
}

func buildMeshBufferOptions(scene *resources.Scene, objects []importObject, options ImportOptions) metadata.MeshBufferOptions {
	result := metadata.MeshBufferOptions{
		InstanceCount: options.InstanceCount,
		Normals:       true,
	}
	hasTexture := false
	for _, object := range objects {
		mesh := scene.Meshes[object.mesh]
		result.IndexCount += mesh.IndexCount()
		result.VertexCount += uint32(len(mesh.Positions))
		result.Colors = result.Colors || len(mesh.Colors) > 0
		if count := uint32(len(mesh.Bones)); count > result.BoneCount {
			result.BoneCount = count
		}
		hasTexture = hasTexture || diffuseTexture(scene, mesh) != ""
	}
	if hasTexture {
		result.TextureCount = 1
	}
	return result
}

/**
 * @brief Sizes a mesh buffer for the renderable meshes of scene.
 */
func (is *ImportSystem) BuildMeshBufferOptions(scene *resources.Scene, options ImportOptions) (metadata.MeshBufferOptions, error) {
	meshes, _, err := sceneObjects(scene)
	if err != nil {
		return metadata.MeshBufferOptions{}, err
	}
	if err := validate(scene, meshes); err != nil {
		return metadata.MeshBufferOptions{}, err
	}
	if err := is.checkBones(scene, meshes); err != nil {
		return metadata.MeshBufferOptions{}, err
	}
	return buildMeshBufferOptions(scene, meshes, options), nil
}

/**
 * @brief Returns the index and vertex counts an import of scene writes.
 */
func ImportCounts(scene *resources.Scene) (uint32, uint32, error) {
	meshes, _, err := sceneObjects(scene)
	if err != nil {
		return 0, 0, err
	}
	if err := validate(scene, meshes); err != nil {
		return 0, 0, err
	}
	options := buildMeshBufferOptions(scene, meshes, ImportOptions{})
	return options.IndexCount, options.VertexCount, nil
}

// ImportMeshCount returns the number of meshes an import of scene creates
// without merging.
func ImportMeshCount(scene *resources.Scene) (uint32, error) {
	meshes, _, err := sceneObjects(scene)
	if err != nil {
		return 0, err
	}
	return uint32(len(meshes)), nil
}

// ImportCountsFile loads the scene at path and returns its import counts.
func (is *ImportSystem) ImportCountsFile(path string) (uint32, uint32, error) {
	scene, err := is.loadScene(path)
	if err != nil {
		return 0, 0, err
	}
	return ImportCounts(scene)
}

func (is *ImportSystem) loadScene(path string) (*resources.Scene, error) {
	if is.assetManager == nil {
		err := fmt.Errorf("cannot load model '%s' without an asset manager", path)
		core.LogError(err.Error())
		return nil, err
	}
	resource, err := is.assetManager.LoadAsset(path, metadata.ResourceTypeModel, nil)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	scene, ok := resource.Data.(*resources.Scene)
	if !ok {
		err := fmt.Errorf("resource '%s' is not a scene", path)
		core.LogError(err.Error())
		return nil, err
	}
	return scene, nil
}

/**
 * @brief Loads the model at path and imports it.
 */
func (is *ImportSystem) ImportFile(path string, options ImportOptions) (*ImportResult, error) {
	scene, err := is.loadScene(path)
	if err != nil {
		return nil, err
	}
	result, err := is.Import(scene, options)
	if err != nil {
		return nil, fmt.Errorf("import '%s': %w", path, err)
	}
	return result, nil
}

/**
 * @brief Imports scene in one synchronous pass. Nothing is rendered from the
 * result until the caller creates instances for its meshes.
 */
func (is *ImportSystem) Import(scene *resources.Scene, options ImportOptions) (*ImportResult, error) {
	meshObjects, rigidBodyObjects, err := sceneObjects(scene)
	if err != nil {
		return nil, err
	}
	if err := validate(scene, meshObjects); err != nil {
		return nil, err
	}
	if err := is.checkBones(scene, meshObjects); err != nil {
		return nil, err
	}

	result := &ImportResult{ID: uuid.New()}
	core.LogDebug("import %s: %d meshes, %d rigid bodies", result.ID, len(meshObjects), len(rigidBodyObjects))

	if len(meshObjects) > 0 {
		mb := options.MeshBuffer
		created := false
		if mb == nil {
			primitive := meshPrimitive(scene.Meshes[meshObjects[0].mesh].PrimitiveTypes())
			bufferOptions := buildMeshBufferOptions(scene, meshObjects, options)
			mb, err = is.meshSystem.AddMeshBuffer(metadata.MeshBuffer{Name: scene.Name, Primitive: primitive}, bufferOptions)
			if err != nil {
				return nil, err
			}
			created = true
		}
		result.MeshBuffer = mb

		if err := is.importMeshes(result, mb, scene, meshObjects, options); err != nil {
			is.rollback(result, created)
			return nil, err
		}

		if path := diffuseTexture(scene, scene.Meshes[meshObjects[0].mesh]); path != "" {
			texture, err := is.importTexture(path)
			if err != nil {
				is.rollback(result, created)
				return nil, err
			}
			result.Texture = texture
			if err := is.meshSystem.SetTexture(mb, texture, 0); err != nil {
				is.rollback(result, created)
				return nil, err
			}
		}
	}

	for _, object := range rigidBodyObjects {
		result.RigidBodyShapes = append(result.RigidBodyShapes, is.importRigidBodyShape(scene, object))
	}
	return result, nil
}

/**
 * @brief Undoes a failed import: the meshes, armature and animation ids and
 * texture it created go away, and so does the mesh buffer when the import
 * created it. A caller's mesh buffer keeps only what it held before.
 */
func (is *ImportSystem) rollback(result *ImportResult, createdBuffer bool) {
	if createdBuffer {
		_ = is.meshSystem.RemoveMeshBuffer(result.MeshBuffer)
	} else {
		for _, mesh := range result.Meshes {
			_ = is.meshSystem.RemoveMesh(mesh)
		}
	}
	for _, armature := range result.Armatures {
		_ = is.armatureIDs.Release(armature.ID)
	}
	for _, animation := range result.Animations {
		_ = is.animationIDs.Release(animation.ID)
	}
	if result.Texture != nil && is.textureSystem != nil {
		_ = is.textureSystem.Remove(result.Texture)
	}
	result.Meshes, result.Armatures, result.Animations, result.Texture = nil, nil, nil, nil
}

/**
 * @brief Fails when a mesh has more bones than an instance can hold.
 */
func (is *ImportSystem) checkBones(scene *resources.Scene, objects []importObject) error {
	limit := is.Config.Limits.MaxBonesPerArmature
	for _, object := range objects {
		mesh := scene.Meshes[object.mesh]
		if uint32(len(mesh.Bones)) > limit {
			err := fmt.Errorf("mesh '%s' has %d bones, at most %d per armature: %w", mesh.Name, len(mesh.Bones), limit, core.ErrCapacityExceeded)
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

func (is *ImportSystem) importMeshes(result *ImportResult, mb *metadata.MeshBuffer, scene *resources.Scene, objects []importObject, options ImportOptions) error {
	indexCount := uint32(0)
	vertexCount := uint32(0)
	for _, object := range objects {
		mesh := scene.Meshes[object.mesh]
		indexStart := options.IndexStart + indexCount
		vertexStart := options.VertexStart + vertexCount

		if err := is.writeMeshData(mb, scene, mesh, object.transform, indexStart, vertexStart); err != nil {
			return err
		}

		meshIndexCount := mesh.IndexCount()
		meshVertexCount := uint32(len(mesh.Positions))

		if !options.Merge {
			m, err := is.meshSystem.AddMesh(mb, MeshOptions{
				Name:                  mesh.Name,
				Indices:               metadata.Range{Start: indexStart, Count: meshIndexCount},
				Vertices:              metadata.Range{Start: vertexStart, Count: meshVertexCount},
				BufferRelativeIndices: true,
			})
			if err != nil {
				return err
			}
			result.Meshes = append(result.Meshes, m)

			if len(mesh.Bones) > 0 {
				armature, err := is.importArmature(scene, mesh, object.transform)
				if err != nil {
					return err
				}
				if armature != nil {
					result.Armatures = append(result.Armatures, armature)
				}
				result.Animations = append(result.Animations, is.importAnimations(scene, mesh)...)
			}
		}

		indexCount += meshIndexCount
		vertexCount += meshVertexCount
	}

	if options.Merge {
		m, err := is.meshSystem.AddMesh(mb, MeshOptions{
			Name:                  scene.Name,
			Indices:               metadata.Range{Start: options.IndexStart, Count: indexCount},
			Vertices:              metadata.Range{Start: options.VertexStart, Count: vertexCount},
			BufferRelativeIndices: true,
		})
		if err != nil {
			return err
		}
		result.Meshes = append(result.Meshes, m)
	}
	return nil
}

/**
 * @brief Packs the vertices of mesh, moved into scene space by transform,
 * and its indices offset by vertexStart. Channels the buffer has but the
 * mesh lacks get neutral values.
 */
func (is *ImportSystem) writeMeshData(mb *metadata.MeshBuffer, scene *resources.Scene, mesh *resources.SceneMesh, transform math.Mat4, indexStart, vertexStart uint32) error {
	format := mb.Format
	vertexCount := uint32(len(mesh.Positions))
	indexCount := mesh.IndexCount()

	if uint64(indexStart)+uint64(indexCount) > mb.Indices.Len() || uint64(vertexStart)+uint64(vertexCount) > mb.Vertices.Len() {
		err := fmt.Errorf("mesh '%s' (%d indices, %d vertices at %d/%d) does not fit mesh buffer '%s' (%d indices, %d vertices): %w",
			mesh.Name, indexCount, vertexCount, indexStart, vertexStart, mb.Name, mb.Indices.Len(), mb.Vertices.Len(), core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return err
	}
	if len(mesh.Bones) > 0 && !format.HasBoneWeights {
		err := fmt.Errorf("mesh '%s' has bones but mesh buffer '%s' has no bone weights: %w", mesh.Name, mb.Name, core.ErrValidation)
		core.LogError(err.Error())
		return err
	}

	indices := mb.Indices.MustBytes()
	byteIndex := uint64(indexStart) * uint64(metadata.IndexSize)
	for _, face := range mesh.Faces {
		for _, index := range face {
			if index >= vertexCount {
				err := fmt.Errorf("mesh '%s' index %d out of %d vertices: %w", mesh.Name, index, vertexCount, core.ErrValidation)
				core.LogError(err.Error())
				return err
			}
			memory.Write(indices, byteIndex, vertexStart+index)
			byteIndex += uint64(metadata.IndexSize)
		}
	}

	normals := mesh.Normals
	if len(normals) != len(mesh.Positions) {
		normals = generateNormals(mesh)
	}
	hasTexture := diffuseTexture(scene, mesh) != "" && len(mesh.TexCoords) == len(mesh.Positions)

	vertices := mb.Vertices.MustBytes()
	stride := uint64(format.Size)
	for i := uint32(0); i < vertexCount; i++ {
		base := uint64(vertexStart+i) * stride

		memory.WriteVec3(vertices, base+uint64(format.PositionOffset), mesh.Positions[i].Transform(transform))
		if format.HasNormal {
			memory.WriteVec3(vertices, base+uint64(format.NormalOffset), normals[i].TransformDirection(transform))
		}
		if format.HasColor {
			color := math.NewVec4One()
			if i < uint32(len(mesh.Colors)) {
				color = mesh.Colors[i]
			}
			memory.WriteVec4(vertices, base+uint64(format.ColorOffset), color)
		}
		if format.HasTextureCoord {
			coordinate := math.Vec2{}
			if hasTexture {
				coordinate = mesh.TexCoords[i]
			}
			memory.WriteVec2(vertices, base+uint64(format.TextureOffset), coordinate)
		}
		if format.HasBoneWeights {
			// bone indices and weights start out empty
			clear(vertices[base+uint64(format.BoneWeightsOffset) : base+stride])
		}
	}

	return is.writeBoneWeights(mb, mesh, vertexStart)
}

/**
 * @brief Writes every (bone, weight) pair into the first empty slot of its
 * vertex. A slot is empty while its weight is zero.
 */
func (is *ImportSystem) writeBoneWeights(mb *metadata.MeshBuffer, mesh *resources.SceneMesh, vertexStart uint32) error {
	if len(mesh.Bones) == 0 {
		return nil
	}
	format := mb.Format
	slots := uint64(format.BoneWeightCount())
	vertices := mb.Vertices.MustBytes()

	for boneIndex, bone := range mesh.Bones {
		for _, weight := range bone.Weights {
			if weight.Vertex >= uint32(len(mesh.Positions)) {
				err := fmt.Errorf("bone '%s' weights vertex %d of %d: %w", bone.Name, weight.Vertex, len(mesh.Positions), core.ErrValidation)
				core.LogError(err.Error())
				return err
			}

			firstIndex := uint64(vertexStart+weight.Vertex)*uint64(format.Size) + uint64(format.BoneWeightsOffset)
			firstWeight := firstIndex + slots*4

			slot := uint64(0)
			for ; slot < slots; slot++ {
				if memory.Read[float32](vertices, firstWeight+slot*4) == 0 {
					break
				}
			}
			if slot == slots {
				err := fmt.Errorf("vertex %d of mesh '%s' has more than %d bone weights: %w", weight.Vertex, mesh.Name, slots, core.ErrCapacityExceeded)
				core.LogError(err.Error())
				return err
			}

			memory.Write(vertices, firstIndex+slot*4, uint32(boneIndex))
			memory.Write(vertices, firstWeight+slot*4, weight.Weight)
		}
	}
	return nil
}

func generateNormals(mesh *resources.SceneMesh) []math.Vec3 {
	indices := make([]uint32, 0, mesh.IndexCount())
	for _, face := range mesh.Faces {
		if len(face) == 3 {
			indices = append(indices, face...)
		}
	}
	return math.GenerateNormals(mesh.Positions, indices)
}

/**
 * @brief Deduplicates nearly coincident positions into a convex point cloud.
 */
func (is *ImportSystem) importRigidBodyShape(scene *resources.Scene, object importObject) *metadata.RigidBodyShape {
	mesh := scene.Meshes[object.mesh]
	points := make([]math.Vec3, 0, len(mesh.Positions))

	for _, p := range mesh.Positions {
		position := p.Transform(object.transform)

		exists := false
		for _, point := range points {
			if point.Near(position) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		points = append(points, position)
	}

	shape := &metadata.RigidBodyShape{Name: mesh.Name, Points: points}
	shape.ID = is.shapeIDs.Acquire(shape)
	return shape
}

/**
 * @brief Loads a diffuse texture relative to the models folder.
 */
func (is *ImportSystem) importTexture(path string) (*metadata.Texture, error) {
	if is.textureSystem == nil {
		err := fmt.Errorf("cannot import texture '%s' without a texture system", path)
		core.LogError(err.Error())
		return nil, err
	}
	return is.textureSystem.Load(filepath.Join(is.Config.ModelsFolder, path))
}

/**
 * @brief Loads several model files on the job system workers. Decoding is
 * CPU only; the scenes are imported on the calling goroutine afterwards.
 */
func (is *ImportSystem) LoadScenes(paths []string, jobs *JobSystem) (map[string]*resources.Scene, error) {
	scenes := make(map[string]*resources.Scene, len(paths))
	var mutex sync.Mutex

	tasks := make([]JobTask, 0, len(paths))
	for _, path := range paths {
		path := path
		tasks = append(tasks, JobTask{
			Name: "load " + path,
			Run: func() error {
				scene, err := is.loadScene(path)
				if err != nil {
					return err
				}
				mutex.Lock()
				scenes[path] = scene
				mutex.Unlock()
				return nil
			},
		})
	}
	if err := jobs.RunAll(tasks); err != nil {
		return nil, err
	}
	return scenes, nil
}
