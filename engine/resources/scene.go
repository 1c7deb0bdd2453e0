package resources

import (
	"strings"

	"github.com/spaghettifunk/ludo/engine/math"
)

/**
 * @brief Primitive kinds found in a mesh, as bit flags.
 */
type PrimitiveType uint8

const (
	PrimitiveTypePoint    PrimitiveType = 0x1
	PrimitiveTypeLine     PrimitiveType = 0x2
	PrimitiveTypeTriangle PrimitiveType = 0x4
	PrimitiveTypePolygon  PrimitiveType = 0x8
)

/**
 * @brief A scene graph as described by an external asset format.
 */
type Scene struct {
	Name       string
	Root       *SceneNode
	Meshes     []*SceneMesh
	Materials  []*SceneMaterial
	Animations []*SceneAnimation
}

/**
 * @brief A node of the scene tree. Transform is relative to the parent.
 */
type SceneNode struct {
	Name      string
	Transform math.Mat4
	/** @brief Indices into Scene.Meshes. */
	Meshes   []int
	Children []*SceneNode
}

// NewSceneNode returns a node with an identity transform.
func NewSceneNode(name string, children ...*SceneNode) *SceneNode {
	return &SceneNode{Name: name, Transform: math.NewMat4Identity(), Children: children}
}

// Walk visits the node and its descendants depth first. Returning false
// from visit skips the children of that node.
func (n *SceneNode) Walk(visit func(node *SceneNode) bool) {
	if !visit(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Find returns the first node with the given name.
func (n *SceneNode) Find(name string) *SceneNode {
	var found *SceneNode
	n.Walk(func(node *SceneNode) bool {
		if found != nil {
			return false
		}
		if node.Name == name {
			found = node
			return false
		}
		return true
	})
	return found
}

// HasMarker reports whether the node name contains marker.
func (n *SceneNode) HasMarker(marker string) bool {
	return strings.Contains(n.Name, marker)
}

type VertexWeight struct {
	Vertex uint32
	Weight float32
}

/**
 * @brief A bone of a mesh: the node it follows, its inverse bind matrix and
 * the vertices it moves.
 */
type SceneBone struct {
	Name    string
	Offset  math.Mat4
	Weights []VertexWeight
}

/**
 * @brief Geometry attached to nodes. Colors and TexCoords are empty when the
 * mesh has no such channel.
 */
type SceneMesh struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	Colors    []math.Vec4
	TexCoords []math.Vec2
	Faces     [][]uint32
	/** @brief Index into Scene.Materials. */
	Material int
	Bones    []*SceneBone
}

// PrimitiveTypes returns the kinds of primitives used by the faces.
func (m *SceneMesh) PrimitiveTypes() PrimitiveType {
	var types PrimitiveType
	for _, face := range m.Faces {
		switch len(face) {
		case 0:
		case 1:
			types |= PrimitiveTypePoint
		case 2:
			types |= PrimitiveTypeLine
		case 3:
			types |= PrimitiveTypeTriangle
		default:
			types |= PrimitiveTypePolygon
		}
	}
	return types
}

// IndexCount returns faces times the size of the first face. Meshes hold a
// single primitive kind, so every face has the same size.
func (m *SceneMesh) IndexCount() uint32 {
	if len(m.Faces) == 0 {
		return 0
	}
	return uint32(len(m.Faces)) * uint32(len(m.Faces[0]))
}

// BoneIndex returns the index of the bone with name, or -1.
func (m *SceneMesh) BoneIndex(name string) int32 {
	for i, bone := range m.Bones {
		if bone.Name == name {
			return int32(i)
		}
	}
	return -1
}

/**
 * @brief Surface description shared by meshes.
 */
type SceneMaterial struct {
	Name string
	/** @brief Diffuse texture path relative to the models folder; empty when untextured. */
	DiffuseTexture string
}

type VectorKey struct {
	Time  float64
	Value math.Vec3
}

type QuaternionKey struct {
	Time  float64
	Value math.Quaternion
}

/**
 * @brief Keyframes of one node of an animation.
 */
type SceneChannel struct {
	NodeName     string
	PositionKeys []VectorKey
	RotationKeys []QuaternionKey
	ScaleKeys    []VectorKey
}

/**
 * @brief An animation. TicksPerSecond is 0 when the source does not say.
 */
type SceneAnimation struct {
	Name           string
	Duration       float64
	TicksPerSecond float64
	Channels       []*SceneChannel
}
