package systems

import (
	"fmt"
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleMesh(name string) *resources.SceneMesh {
	return &resources.SceneMesh{
		Name:      name,
		Positions: []math.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   []math.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Faces:     [][]uint32{{0, 1, 2}},
	}
}

func quadMesh(name string) *resources.SceneMesh {
	return &resources.SceneMesh{
		Name:      name,
		Positions: []math.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:   []math.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Faces:     [][]uint32{{0, 1, 2}, {0, 2, 3}},
	}
}

// cubeMesh has four vertices per face, the way exporters write flat shaded
// cubes.
func cubeMesh(name string) *resources.SceneMesh {
	corners := [6][4]math.Vec3{
		{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}},
		{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}},
		{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}},
		{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}},
		{{-1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {-1, 1, -1}},
		{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}},
	}
	mesh := &resources.SceneMesh{Name: name}
	for _, face := range corners {
		base := uint32(len(mesh.Positions))
		mesh.Positions = append(mesh.Positions, face[:]...)
		mesh.Faces = append(mesh.Faces, []uint32{base, base + 1, base + 2}, []uint32{base, base + 2, base + 3})
	}
	return mesh
}

func meshNode(name string, mesh int) *resources.SceneNode {
	node := resources.NewSceneNode(name)
	node.Meshes = []int{mesh}
	return node
}

func translated(node *resources.SceneNode, x, y, z float32) *resources.SceneNode {
	node.Transform = math.NewMat4Translation(math.NewVec3(x, y, z))
	return node
}

func twoMeshScene() *resources.Scene {
	return &resources.Scene{
		Name:   "pair",
		Root:   resources.NewSceneNode("root", meshNode("triangle", 0), translated(meshNode("quad", 1), 1, 0, 0)),
		Meshes: []*resources.SceneMesh{triangleMesh("triangle"), quadMesh("quad")},
	}
}

func readIndices(mesh *metadata.Mesh) []uint32 {
	data := mesh.Indices.MustBytes()
	out := make([]uint32, mesh.Indices.Len())
	for i := range out {
		out[i] = memory.Read[uint32](data, uint64(i)*uint64(metadata.IndexSize))
	}
	return out
}

func readPosition(mb *metadata.MeshBuffer, vertex uint32) math.Vec3 {
	return memory.ReadVec3(mb.Vertices.MustBytes(), uint64(vertex)*uint64(mb.Format.Size)+uint64(mb.Format.PositionOffset))
}

func TestImportCountsAreSums(t *testing.T) {
	indices, vertices, err := ImportCounts(twoMeshScene())
	require.NoError(t, err)
	assert.Equal(t, uint32(9), indices)
	assert.Equal(t, uint32(7), vertices)
}

func TestImportSeparateMeshes(t *testing.T) {
	s := newTestSystems(t)

	result, err := s.imports.Import(twoMeshScene(), ImportOptions{InstanceCount: 4})
	require.NoError(t, err)
	require.NotNil(t, result.MeshBuffer)
	require.Len(t, result.Meshes, 2)

	mb := result.MeshBuffer
	assert.Equal(t, uint64(9), mb.Indices.Len())
	assert.Equal(t, uint64(7), mb.Vertices.Len())
	assert.Equal(t, metadata.MeshPrimitiveTriangleList, mb.Primitive)
	assert.Equal(t, "p3n3", mb.Format.String())

	triangle, quad := result.Meshes[0], result.Meshes[1]
	assert.Equal(t, metadata.Range{Start: 0, Count: 3}, triangle.IndexRange())
	assert.Equal(t, metadata.Range{Start: 3, Count: 6}, quad.IndexRange())
	assert.Equal(t, metadata.Range{Start: 3, Count: 4}, quad.VertexRange())

	// indices count from the first vertex of the mesh buffer
	assert.Equal(t, []uint32{0, 1, 2}, readIndices(triangle))
	assert.Equal(t, []uint32{3, 4, 5, 3, 5, 6}, readIndices(quad))
	assert.Equal(t, triangle.BaseVertex, quad.BaseVertex)

	// node transforms are baked into the vertices
	assert.Equal(t, math.NewVec3(1, 0, 0), readPosition(mb, 3))
	assert.Equal(t, math.NewVec3(2, 1, 0), readPosition(mb, 5))
}

func TestImportMerged(t *testing.T) {
	s := newTestSystems(t)

	result, err := s.imports.Import(twoMeshScene(), ImportOptions{Merge: true})
	require.NoError(t, err)
	require.Len(t, result.Meshes, 1)
	assert.Equal(t, metadata.Range{Start: 0, Count: 9}, result.Meshes[0].IndexRange())
	assert.Equal(t, metadata.Range{Start: 0, Count: 7}, result.Meshes[0].VertexRange())
	assert.Empty(t, result.Armatures)
}

func TestImportIntoExistingMeshBuffer(t *testing.T) {
	s := newTestSystems(t)

	mb, err := s.meshes.AddMeshBuffer(metadata.MeshBuffer{Name: "shared"}, metadata.MeshBufferOptions{IndexCount: 12, VertexCount: 10, Normals: true})
	require.NoError(t, err)

	result, err := s.imports.Import(twoMeshScene(), ImportOptions{MeshBuffer: mb, IndexStart: 3, VertexStart: 3})
	require.NoError(t, err)
	assert.Same(t, mb, result.MeshBuffer)
	assert.Equal(t, []uint32{3, 4, 5}, readIndices(result.Meshes[0]))

	_, err = s.imports.Import(twoMeshScene(), ImportOptions{MeshBuffer: mb, IndexStart: 6, VertexStart: 6})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
}

func TestImportFailureKeepsExistingMeshBuffer(t *testing.T) {
	s := newTestSystems(t)

	mb, err := s.meshes.AddMeshBuffer(metadata.MeshBuffer{Name: "small"}, metadata.MeshBufferOptions{IndexCount: 5, VertexCount: 10, Normals: true})
	require.NoError(t, err)
	meshCount := len(s.meshes.Meshes)

	// the triangle fits, the quad does not
	_, err = s.imports.Import(twoMeshScene(), ImportOptions{MeshBuffer: mb})
	require.ErrorIs(t, err, core.ErrCapacityExceeded)
	assert.Len(t, s.meshes.Meshes, meshCount)
	assert.Contains(t, s.meshes.MeshBuffers, mb.ID)
}

func TestImportFailureReleasesArmatures(t *testing.T) {
	s := newTestSystems(t)

	scene := skinnedScene()
	scene.Meshes = append(scene.Meshes, quadMesh("Extra"))
	scene.Root.Children = append(scene.Root.Children, meshNode("Extra", 1))

	mb, err := s.meshes.AddMeshBuffer(metadata.MeshBuffer{Name: "skinned"}, metadata.MeshBufferOptions{IndexCount: 8, VertexCount: 8, Normals: true, BoneCount: 3})
	require.NoError(t, err)

	_, err = s.imports.Import(scene, ImportOptions{MeshBuffer: mb})
	require.ErrorIs(t, err, core.ErrCapacityExceeded)
	assert.Empty(t, s.meshes.Meshes)
	assert.Nil(t, s.imports.armatureIDs.Owner(1))

	result, err := s.imports.Import(skinnedScene(), ImportOptions{MeshBuffer: mb})
	require.NoError(t, err)
	require.Len(t, result.Armatures, 1)
	assert.Equal(t, uint64(1), result.Armatures[0].ID)
}

func TestImportTooManyBones(t *testing.T) {
	s := newTestSystems(t)

	scene := skinnedScene()
	mesh := scene.Meshes[0]
	for i := 0; i < 70; i++ {
		mesh.Bones = append(mesh.Bones, &resources.SceneBone{Name: fmt.Sprintf("extra_%d", i), Offset: math.NewMat4Identity()})
	}
	mesh.Bones[len(mesh.Bones)-1].Weights = []resources.VertexWeight{{Vertex: 0, Weight: 0.25}}
	require.Greater(t, uint32(len(mesh.Bones)), s.imports.Config.Limits.MaxBonesPerArmature)

	meshCount := len(s.meshes.Meshes)
	_, err := s.imports.Import(scene, ImportOptions{})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
	assert.Len(t, s.meshes.Meshes, meshCount)

	_, err = s.imports.BuildMeshBufferOptions(scene, ImportOptions{})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
}

func TestImportValidation(t *testing.T) {
	s := newTestSystems(t)

	mixedMaterials := twoMeshScene()
	mixedMaterials.Meshes[1].Material = 1
	mixedMaterials.Materials = []*resources.SceneMaterial{{Name: "a"}, {Name: "b"}}

	polygon := twoMeshScene()
	polygon.Meshes[1].Faces = [][]uint32{{0, 1, 2, 3}}

	mixedPrimitives := twoMeshScene()
	mixedPrimitives.Meshes[1].Faces = [][]uint32{{0, 1}, {2, 3}}

	for name, scene := range map[string]*resources.Scene{
		"materials":  mixedMaterials,
		"polygon":    polygon,
		"primitives": mixedPrimitives,
		"no root":    {Name: "empty"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.imports.Import(scene, ImportOptions{})
			assert.ErrorIs(t, err, core.ErrValidation)
			_, _, err = ImportCounts(scene)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
	assert.Empty(t, s.meshes.MeshBuffers)
}

func TestImportColorsAndGeneratedNormals(t *testing.T) {
	s := newTestSystems(t)

	scene := twoMeshScene()
	scene.Meshes[0].Normals = nil
	scene.Meshes[1].Colors = []math.Vec4{{1, 0, 0, 1}, {1, 0, 0, 1}, {1, 0, 0, 1}, {1, 0, 0, 1}}

	result, err := s.imports.Import(scene, ImportOptions{})
	require.NoError(t, err)
	mb := result.MeshBuffer
	require.True(t, mb.Format.HasColor)

	data := mb.Vertices.MustBytes()
	stride := uint64(mb.Format.Size)
	assert.Equal(t, math.NewVec3(0, 0, 1), memory.ReadVec3(data, uint64(mb.Format.NormalOffset)))
	assert.Equal(t, math.NewVec4One(), memory.ReadVec4(data, uint64(mb.Format.ColorOffset)))
	assert.Equal(t, math.NewVec4(1, 0, 0, 1), memory.ReadVec4(data, 3*stride+uint64(mb.Format.ColorOffset)))
}

// skinnedScene places a mesh and an armature root -> A -> B -> C with the
// bone offsets exporters write: mesh space to bone space in bind pose.
func skinnedScene() *resources.Scene {
	c := translated(resources.NewSceneNode("C"), 0, 1, 0)
	b := translated(resources.NewSceneNode("B", c), 0, 1, 0)
	a := translated(resources.NewSceneNode("A", b), 0, 1, 0)
	armature := translated(resources.NewSceneNode("Armature", a), 1, 0, 0)
	body := translated(meshNode("Body", 0), 0, 0, 2)
	root := resources.NewSceneNode("root", body, armature)

	mesh := quadMesh("Body")
	meshGlobal := body.Transform
	for _, name := range []string{"A", "B", "C"} {
		boneGlobal := math.NewMat4Identity()
		for node := root.Find(name); node != nil; node = parentOf(root, node) {
			boneGlobal = boneGlobal.Mul(node.Transform)
		}
		mesh.Bones = append(mesh.Bones, &resources.SceneBone{Name: name, Offset: meshGlobal.Mul(boneGlobal.Inverse())})
	}
	mesh.Bones[0].Weights = []resources.VertexWeight{{Vertex: 0, Weight: 1}, {Vertex: 1, Weight: 0.5}}
	mesh.Bones[1].Weights = []resources.VertexWeight{{Vertex: 1, Weight: 0.5}, {Vertex: 2, Weight: 1}, {Vertex: 3, Weight: 1}}

	return &resources.Scene{Name: "skinned", Root: root, Meshes: []*resources.SceneMesh{mesh}}
}

func parentOf(root, child *resources.SceneNode) *resources.SceneNode {
	var parent *resources.SceneNode
	root.Walk(func(node *resources.SceneNode) bool {
		for _, c := range node.Children {
			if c == child {
				parent = node
			}
		}
		return parent == nil
	})
	return parent
}

func TestImportBoneWeights(t *testing.T) {
	s := newTestSystems(t)

	result, err := s.imports.Import(skinnedScene(), ImportOptions{})
	require.NoError(t, err)
	mb := result.MeshBuffer
	require.True(t, mb.Format.HasBoneWeights)
	assert.Equal(t, uint32(3), mb.BoneCount)

	data := mb.Vertices.MustBytes()
	vertex := uint64(mb.Format.Size) + uint64(mb.Format.BoneWeightsOffset)
	slots := uint64(mb.Format.BoneWeightCount())
	assert.Equal(t, uint32(0), memory.Read[uint32](data, vertex))
	assert.Equal(t, uint32(1), memory.Read[uint32](data, vertex+4))
	assert.Equal(t, float32(0.5), memory.Read[float32](data, vertex+slots*4))
	assert.Equal(t, float32(0.5), memory.Read[float32](data, vertex+slots*4+4))
	assert.Equal(t, float32(0), memory.Read[float32](data, vertex+slots*4+8))
}

func TestImportBoneWeightOverflow(t *testing.T) {
	s := newTestSystems(t)

	scene := skinnedScene()
	mesh := scene.Meshes[0]
	for i := 0; i < 4; i++ {
		mesh.Bones = append(mesh.Bones, &resources.SceneBone{
			Name:    "extra",
			Offset:  math.NewMat4Identity(),
			Weights: []resources.VertexWeight{{Vertex: 0, Weight: 0.1}},
		})
	}

	_, err := s.imports.Import(scene, ImportOptions{})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)

	vertices, err := s.heaps.Get(metadata.HeapVertices)
	require.NoError(t, err)
	assert.Zero(t, vertices.Used())
}

func TestImportArmature(t *testing.T) {
	s := newTestSystems(t)

	result, err := s.imports.Import(skinnedScene(), ImportOptions{})
	require.NoError(t, err)
	require.Len(t, result.Armatures, 1)

	armature := result.Armatures[0]
	root := armature.Root
	assert.Equal(t, "A", root.Name)
	assert.Equal(t, int32(0), root.BoneIndex)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "B", root.Children[0].Name)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "C", root.Children[0].Children[0].Name)
	assert.Equal(t, int32(2), root.Children[0].Children[0].BoneIndex)

	// the root carries the transforms of the non-bone nodes above it
	assert.True(t, root.Transform.Near(math.NewMat4Translation(math.NewVec3(1, 1, 0))))
	assert.True(t, armature.Ancestors.Near(math.NewMat4Translation(math.NewVec3(1, 0, 0))))
	assert.NotNil(t, armature.Find("C"))
	assert.Nil(t, armature.Find("Armature"))
}

func TestImportArmatureMultipleRoots(t *testing.T) {
	s := newTestSystems(t)

	scene := skinnedScene()
	scene.Root.Children = append(scene.Root.Children, resources.NewSceneNode("D"))
	scene.Meshes[0].Bones = append(scene.Meshes[0].Bones, &resources.SceneBone{Name: "D", Offset: math.NewMat4Identity()})

	_, err := s.imports.Import(scene, ImportOptions{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestImportArmatureWithoutBoneNodes(t *testing.T) {
	s := newTestSystems(t)

	scene := skinnedScene()
	scene.Root.Children = scene.Root.Children[:1]

	result, err := s.imports.Import(scene, ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Armatures)
}

func TestImportAnimations(t *testing.T) {
	s := newTestSystems(t)

	scene := skinnedScene()
	scene.Animations = []*resources.SceneAnimation{{
		Name:     "wave",
		Duration: 48,
		Channels: []*resources.SceneChannel{
			{NodeName: "B", RotationKeys: []resources.QuaternionKey{{Time: 0, Value: math.NewQuatIdentity()}}},
			{NodeName: "Armature"},
		},
	}}

	result, err := s.imports.Import(scene, ImportOptions{})
	require.NoError(t, err)
	require.Len(t, result.Animations, 1)

	animation := result.Animations[0]
	assert.Equal(t, "wave", animation.Name)
	assert.Equal(t, float32(48), animation.Ticks)
	assert.Equal(t, DefaultTicksPerSecond, animation.TicksPerSecond)
	require.Len(t, animation.Nodes, 2)
	assert.Equal(t, int32(1), animation.Nodes[0].BoneIndex)
	assert.Equal(t, int32(-1), animation.Nodes[1].BoneIndex)
	assert.Len(t, animation.Nodes[0].RotationKeys, 1)
}

func TestImportSkinningMatchesSceneGraph(t *testing.T) {
	s := newTestSystems(t)

	scene := skinnedScene()
	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 0, 1), math.K_PI/2, true)
	scene.Animations = []*resources.SceneAnimation{{
		Name:           "bend",
		Duration:       10,
		TicksPerSecond: 10,
		Channels: []*resources.SceneChannel{{
			NodeName:     "B",
			PositionKeys: []resources.VectorKey{{Time: 0, Value: math.NewVec3(0, 1, 0)}},
			RotationKeys: []resources.QuaternionKey{{Time: 0, Value: rotation}},
		}},
	}}

	result, err := s.imports.Import(scene, ImportOptions{})
	require.NoError(t, err)
	require.Len(t, result.Armatures, 1)
	require.Len(t, result.Animations, 1)
	armature := result.Armatures[0]

	// vertex 2 of the quad follows B only
	meshGlobal := scene.Root.Find("Body").Transform
	source := scene.Meshes[0].Positions[2]
	imported := readPosition(result.MeshBuffer, 2)
	require.True(t, imported.Near(source.Transform(meshGlobal)))

	bind := BoneTransforms(armature, 3, nil, 0)
	assert.True(t, imported.Transform(bind[1]).Near(imported), "bind pose must not move vertices")

	// reference: mesh space -> bone space at bind -> posed bone -> scene
	armatureNode := scene.Root.Find("Armature").Transform
	a := scene.Root.Find("A").Transform
	bBind := scene.Root.Find("B").Transform.Mul(a).Mul(armatureNode)
	bPosed := math.NewMat4TRS(math.NewVec3(0, 1, 0), rotation, math.NewVec3One()).Mul(a).Mul(armatureNode)
	want := source.Transform(meshGlobal.Mul(bBind.Inverse()).Mul(bPosed))

	posed := BoneTransforms(armature, 3, result.Animations[0], 0.5)
	got := imported.Transform(posed[1])
	assert.True(t, got.Near(want), "got %v want %v", got, want)
	assert.False(t, got.Near(imported))
}

func TestImportRigidBodyShapes(t *testing.T) {
	s := newTestSystems(t)

	scene := &resources.Scene{
		Name: "crate",
		Root: resources.NewSceneNode("root",
			meshNode("Crate", 0),
			translated(resources.NewSceneNode("Crate_RigidBody", meshNode("Hull", 1)), 0, 5, 0),
		),
		Meshes: []*resources.SceneMesh{triangleMesh("Crate"), cubeMesh("Hull")},
	}

	indices, vertices, err := ImportCounts(scene)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), indices)
	assert.Equal(t, uint32(3), vertices)

	result, err := s.imports.Import(scene, ImportOptions{})
	require.NoError(t, err)
	require.Len(t, result.Meshes, 1)
	require.Len(t, result.RigidBodyShapes, 1)

	shape := result.RigidBodyShapes[0]
	assert.Equal(t, "Hull", shape.Name)
	assert.Len(t, shape.Points, 8)
	for _, p := range shape.Points {
		assert.True(t, p.Y == 4 || p.Y == 6, "point %v is not moved by the rigid body node", p)
	}
	assert.Equal(t, result.ID.String()+"-rigid-body-shapes", result.RigidBodyPartition())
}

func TestImportOnlyRigidBodies(t *testing.T) {
	s := newTestSystems(t)

	scene := &resources.Scene{
		Root:   resources.NewSceneNode("RigidBody", meshNode("Hull", 0)),
		Meshes: []*resources.SceneMesh{cubeMesh("Hull")},
	}
	result, err := s.imports.Import(scene, ImportOptions{})
	require.NoError(t, err)
	assert.Nil(t, result.MeshBuffer)
	assert.Empty(t, result.Meshes)
	assert.Len(t, result.RigidBodyShapes, 1)
}
