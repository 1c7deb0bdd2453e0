package metadata

import (
	"github.com/spaghettifunk/ludo/engine/math"
)

/**
 * @brief A node of a bone hierarchy.
 */
type ArmatureNode struct {
	Name      string
	Transform math.Mat4
	/** @brief Index of the bone in the mesh, -1 when the node is not a bone. */
	BoneIndex int32
	/** @brief Inverse bind matrix of the bone. */
	BoneOffset math.Mat4
	Children   []ArmatureNode
}

/**
 * @brief A tree of bones with exactly one root.
 */
type Armature struct {
	ID   uint64
	Name string
	/** @brief Accumulated transform of the non-bone nodes above the root. */
	Ancestors math.Mat4
	/** @brief Root bone; its Transform already includes Ancestors. */
	Root ArmatureNode
}

// Find returns the node with the given name.
func (a *Armature) Find(name string) *ArmatureNode {
	return a.Root.find(name)
}

func (n *ArmatureNode) find(name string) *ArmatureNode {
	if n.Name == name {
		return n
	}
	for i := range n.Children {
		if found := n.Children[i].find(name); found != nil {
			return found
		}
	}
	return nil
}

type VectorKey struct {
	Time  float32
	Value math.Vec3
}

type QuaternionKey struct {
	Time  float32
	Value math.Quaternion
}

/**
 * @brief Keyframe tracks of one node.
 */
type AnimationNode struct {
	Name string
	/** @brief Bone driven by the track, -1 when the node is not a bone of the mesh. */
	BoneIndex    int32
	PositionKeys []VectorKey
	RotationKeys []QuaternionKey
	ScaleKeys    []VectorKey
}

/**
 * @brief A named set of keyframe tracks.
 */
type Animation struct {
	ID             uint64
	Name           string
	Ticks          float32
	TicksPerSecond float32
	Nodes          []AnimationNode
}

/**
 * @brief A convex point cloud used as a collision proxy.
 */
type RigidBodyShape struct {
	ID     uint64
	Name   string
	Points []math.Vec3
}
