package systems

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

// keyIndex returns the key pair surrounding tick and how far tick lies
// between them.
func keyIndex(count int, time func(i int) float32, tick float32) (int, int, float32) {
	if count == 1 || tick <= time(0) {
		return 0, 0, 0
	}
	for i := 0; i < count-1; i++ {
		t0, t1 := time(i), time(i+1)
		if tick < t1 {
			if t1 == t0 {
				return i, i, 0
			}
			return i, i + 1, (tick - t0) / (t1 - t0)
		}
	}
	return count - 1, count - 1, 0
}

func sampleVector(keys []metadata.VectorKey, tick float32, fallback math.Vec3) math.Vec3 {
	if len(keys) == 0 {
		return fallback
	}
	a, b, t := keyIndex(len(keys), func(i int) float32 { return keys[i].Time }, tick)
	from, to := keys[a].Value, keys[b].Value
	return from.Add(to.Sub(from).MulScalar(t))
}

func sampleQuaternion(keys []metadata.QuaternionKey, tick float32) math.Quaternion {
	if len(keys) == 0 {
		return math.NewQuatIdentity()
	}
	a, b, t := keyIndex(len(keys), func(i int) float32 { return keys[i].Time }, tick)
	return keys[a].Value.Slerp(keys[b].Value, t)
}

/**
 * @brief Local transform of an animated node at tick. Missing position keys
 * keep the translation of rest.
 */
func SampleAnimationNode(node *metadata.AnimationNode, tick float32, rest math.Mat4) math.Mat4 {
	translation := sampleVector(node.PositionKeys, tick, rest.Translation())
	rotation := sampleQuaternion(node.RotationKeys, tick)
	scale := sampleVector(node.ScaleKeys, tick, math.NewVec3One())
	return math.NewMat4TRS(translation, rotation, scale)
}

/**
 * @brief Converts seconds into a tick of the animation, looping at its end.
 */
func AnimationTick(animation *metadata.Animation, seconds float32) float32 {
	tick := seconds * animation.TicksPerSecond
	if animation.Ticks > 0 {
		tick = math32.Mod(tick, animation.Ticks)
	}
	return tick
}

/**
 * @brief Computes the skinning matrix of every bone: its offset followed by
 * its global transform. animation may be nil for the bind pose. Slots of
 * bones not in the armature stay identity.
 */
func BoneTransforms(armature *metadata.Armature, boneCount uint32, animation *metadata.Animation, seconds float32) []math.Mat4 {
	transforms := make([]math.Mat4, boneCount)
	for i := range transforms {
		transforms[i] = math.NewMat4Identity()
	}

	channels := map[string]*metadata.AnimationNode{}
	tick := float32(0)
	if animation != nil {
		for i := range animation.Nodes {
			channels[animation.Nodes[i].Name] = &animation.Nodes[i]
		}
		tick = AnimationTick(animation, seconds)
	}

	var visit func(node *metadata.ArmatureNode, parent math.Mat4, root bool)
	visit = func(node *metadata.ArmatureNode, parent math.Mat4, root bool) {
		local := node.Transform
		if channel, ok := channels[node.Name]; ok {
			if root {
				rest := node.Transform.Mul(armature.Ancestors.Inverse())
				local = SampleAnimationNode(channel, tick, rest).Mul(armature.Ancestors)
			} else {
				local = SampleAnimationNode(channel, tick, node.Transform)
			}
		}
		global := local.Mul(parent)

		if node.BoneIndex >= 0 && uint32(node.BoneIndex) < boneCount {
			transforms[node.BoneIndex] = node.BoneOffset.Mul(global)
		}
		for i := range node.Children {
			visit(&node.Children[i], global, false)
		}
	}
	visit(&armature.Root, math.NewMat4Identity(), true)

	return transforms
}
