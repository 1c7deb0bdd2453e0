package systems

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/resources"
)

// bonePathNode mirrors the scene tree, marking nodes that are bones of the
// mesh or have one below them.
type bonePathNode struct {
	node     *resources.SceneNode
	onPath   bool
	children []bonePathNode
}

func findBonePath(node *resources.SceneNode, mesh *resources.SceneMesh) bonePathNode {
	path := bonePathNode{
		node:   node,
		onPath: mesh.BoneIndex(node.Name) >= 0,
	}
	for _, child := range node.Children {
		childPath := findBonePath(child, mesh)
		path.onPath = path.onPath || childPath.onPath
		path.children = append(path.children, childPath)
	}
	return path
}

/**
 * @brief Descends from the scene root through non-bone nodes until the first
 * bone, which becomes the armature root. ancestors accumulates the skipped
 * transforms.
 */
func toArmature(path bonePathNode, mesh *resources.SceneMesh, ancestors math.Mat4, meshInverse math.Mat4) (metadata.ArmatureNode, math.Mat4, error) {
	boneIndex := mesh.BoneIndex(path.node.Name)
	if boneIndex < 0 {
		var next *bonePathNode
		for i := range path.children {
			if !path.children[i].onPath {
				continue
			}
			if next != nil {
				err := fmt.Errorf("mesh '%s' has multiple root bones under '%s': %w", mesh.Name, path.node.Name, core.ErrValidation)
				core.LogError(err.Error())
				return metadata.ArmatureNode{}, ancestors, err
			}
			next = &path.children[i]
		}
		if next == nil {
			err := fmt.Errorf("mesh '%s': no bone below '%s': %w", mesh.Name, path.node.Name, core.ErrValidation)
			core.LogError(err.Error())
			return metadata.ArmatureNode{}, ancestors, err
		}
		return toArmature(*next, mesh, path.node.Transform.Mul(ancestors), meshInverse)
	}

	root := armatureNode(path, mesh, meshInverse)
	root.Transform = root.Transform.Mul(ancestors)
	return root, ancestors, nil
}

func armatureNode(path bonePathNode, mesh *resources.SceneMesh, meshInverse math.Mat4) metadata.ArmatureNode {
	node := metadata.ArmatureNode{
		Name:       path.node.Name,
		Transform:  path.node.Transform,
		BoneIndex:  mesh.BoneIndex(path.node.Name),
		BoneOffset: math.NewMat4Identity(),
	}
	if node.BoneIndex >= 0 {
		// offsets are relative to the mesh node; vertices were already moved
		// into scene space
		node.BoneOffset = meshInverse.Mul(mesh.Bones[node.BoneIndex].Offset)
	}
	for _, child := range path.children {
		if child.onPath {
			node.Children = append(node.Children, armatureNode(child, mesh, meshInverse))
		}
	}
	return node
}

/**
 * @brief Builds the armature of a skinned mesh placed by meshTransform.
 * Returns nil when no node of the scene is a bone of the mesh.
 */
func (is *ImportSystem) importArmature(scene *resources.Scene, mesh *resources.SceneMesh, meshTransform math.Mat4) (*metadata.Armature, error) {
	path := findBonePath(scene.Root, mesh)
	if !path.onPath {
		core.LogWarn("mesh '%s' has bones but none of them is in the scene tree", mesh.Name)
		return nil, nil
	}

	root, ancestors, err := toArmature(path, mesh, math.NewMat4Identity(), meshTransform.Inverse())
	if err != nil {
		return nil, err
	}

	armature := &metadata.Armature{
		Name:      mesh.Name,
		Ancestors: ancestors,
		Root:      root,
	}
	armature.ID = is.armatureIDs.Acquire(armature)
	return armature, nil
}

/**
 * @brief Copies every animation of scene with channels resolved against the
 * bones of mesh.
 */
func (is *ImportSystem) importAnimations(scene *resources.Scene, mesh *resources.SceneMesh) []*metadata.Animation {
	animations := make([]*metadata.Animation, 0, len(scene.Animations))
	for _, source := range scene.Animations {
		animation := &metadata.Animation{
			Name:           source.Name,
			Ticks:          float32(source.Duration),
			TicksPerSecond: float32(source.TicksPerSecond),
			Nodes:          make([]metadata.AnimationNode, 0, len(source.Channels)),
		}
		if animation.TicksPerSecond == 0 {
			animation.TicksPerSecond = DefaultTicksPerSecond
		}

		for _, channel := range source.Channels {
			node := metadata.AnimationNode{
				Name:         channel.NodeName,
				BoneIndex:    mesh.BoneIndex(channel.NodeName),
				PositionKeys: make([]metadata.VectorKey, len(channel.PositionKeys)),
				RotationKeys: make([]metadata.QuaternionKey, len(channel.RotationKeys)),
				ScaleKeys:    make([]metadata.VectorKey, len(channel.ScaleKeys)),
			}
			for i, key := range channel.PositionKeys {
				node.PositionKeys[i] = metadata.VectorKey{Time: float32(key.Time), Value: key.Value}
			}
			for i, key := range channel.RotationKeys {
				node.RotationKeys[i] = metadata.QuaternionKey{Time: float32(key.Time), Value: key.Value}
			}
			for i, key := range channel.ScaleKeys {
				node.ScaleKeys[i] = metadata.VectorKey{Time: float32(key.Time), Value: key.Value}
			}
			animation.Nodes = append(animation.Nodes, node)
		}

		animation.ID = is.animationIDs.Acquire(animation)
		animations = append(animations, animation)
	}
	return animations
}
