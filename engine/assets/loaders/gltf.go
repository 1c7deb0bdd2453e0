package loaders

import (
	"bytes"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/resources"
)

/**
 * @brief Loads glTF 2.0 scenes, both the JSON form (.gltf) with embedded or
 * external buffers and the binary container (.glb).
 */
type GltfLoader struct{}

func (gl *GltfLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	// Open resolves external buffers relative to the file
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf '%s': %s: %w", path, err.Error(), core.ErrUnsupportedFormat)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	scene, err := convertGltf(doc, name)
	if err != nil {
		return nil, fmt.Errorf("gltf '%s': %w", path, err)
	}
	return &metadata.Resource{
		Name:     name,
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     scene,
	}, nil
}

func (gl *GltfLoader) Unload(*metadata.Resource) error {
	return nil
}

/**
 * @brief Decodes a self contained glTF or GLB blob: buffers must be embedded
 * as data URIs or live in the binary chunk.
 */
func DecodeGltf(data []byte, name string) (*resources.Scene, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), core.ErrUnsupportedFormat)
	}
	return convertGltf(doc, name)
}

type gltfConverter struct {
	doc *gltf.Document
	// scene mesh indices of each glTF mesh, one per primitive
	meshes [][]int
}

func convertGltf(doc *gltf.Document, name string) (*resources.Scene, error) {
	conv := &gltfConverter{doc: doc}
	scene := &resources.Scene{Name: name}
	conv.materials(scene)
	if err := conv.sceneMeshes(scene); err != nil {
		return nil, err
	}
	if err := conv.nodes(scene, name); err != nil {
		return nil, err
	}
	if err := conv.animations(scene); err != nil {
		return nil, err
	}
	return scene, nil
}

func (conv *gltfConverter) accessor(index int) (*gltf.Accessor, error) {
	if index < 0 || index >= len(conv.doc.Accessors) || conv.doc.Accessors[index] == nil {
		return nil, fmt.Errorf("accessor %d: %w", index, core.ErrValidation)
	}
	return conv.doc.Accessors[index], nil
}

// floats reads an accessor flattened to float32 together with the number of
// components per element. Normalized integers are mapped to [0, 1].
func (conv *gltfConverter) floats(index int) ([]float32, int, error) {
	acc, err := conv.accessor(index)
	if err != nil {
		return nil, 0, err
	}
	data, err := modeler.ReadAccessor(conv.doc, acc, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("accessor %d: %s: %w", index, err.Error(), core.ErrValidation)
	}

	var out []float32
	count := 0
	switch values := data.(type) {
	case []float32:
		out, count = values, 1
	case [][2]float32:
		count = 2
		for _, v := range values {
			out = append(out, v[:]...)
		}
	case [][3]float32:
		count = 3
		for _, v := range values {
			out = append(out, v[:]...)
		}
	case [][4]float32:
		count = 4
		for _, v := range values {
			out = append(out, v[:]...)
		}
	case [][4][4]float32:
		// column by column, which is the row-vector layout of math.Mat4
		count = 16
		for _, m := range values {
			for _, column := range m {
				out = append(out, column[:]...)
			}
		}
	case [][3]uint8:
		count = 3
		for _, v := range values {
			out = append(out, unorm8(v[0], acc.Normalized), unorm8(v[1], acc.Normalized), unorm8(v[2], acc.Normalized))
		}
	case [][4]uint8:
		count = 4
		for _, v := range values {
			out = append(out, unorm8(v[0], acc.Normalized), unorm8(v[1], acc.Normalized), unorm8(v[2], acc.Normalized), unorm8(v[3], acc.Normalized))
		}
	case [][3]uint16:
		count = 3
		for _, v := range values {
			out = append(out, unorm16(v[0], acc.Normalized), unorm16(v[1], acc.Normalized), unorm16(v[2], acc.Normalized))
		}
	case [][4]uint16:
		count = 4
		for _, v := range values {
			out = append(out, unorm16(v[0], acc.Normalized), unorm16(v[1], acc.Normalized), unorm16(v[2], acc.Normalized), unorm16(v[3], acc.Normalized))
		}
	default:
		return nil, 0, fmt.Errorf("accessor %d: %T: %w", index, data, core.ErrUnsupportedFormat)
	}
	return out, count, nil
}

func unorm8(v uint8, normalized bool) float32 {
	if normalized {
		return float32(v) / 255
	}
	return float32(v)
}

func unorm16(v uint16, normalized bool) float32 {
	if normalized {
		return float32(v) / 65535
	}
	return float32(v)
}

func (conv *gltfConverter) materials(scene *resources.Scene) {
	for i, mat := range conv.doc.Materials {
		name := mat.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", i)
		}
		sm := &resources.SceneMaterial{Name: name}
		if pbr := mat.PBRMetallicRoughness; pbr != nil && pbr.BaseColorTexture != nil {
			sm.DiffuseTexture = conv.textureURI(int(pbr.BaseColorTexture.Index))
		}
		scene.Materials = append(scene.Materials, sm)
	}
}

// textureURI returns the image path of a texture. Embedded images are not
// supported and yield an empty path.
func (conv *gltfConverter) textureURI(index int) string {
	if index < 0 || index >= len(conv.doc.Textures) || conv.doc.Textures[index].Source == nil {
		return ""
	}
	source := int(*conv.doc.Textures[index].Source)
	if source < 0 || source >= len(conv.doc.Images) {
		return ""
	}
	image := conv.doc.Images[source]
	if image.URI == "" || strings.HasPrefix(image.URI, "data:") {
		core.LogWarn("gltf: embedded image %d ignored", source)
		return ""
	}
	return image.URI
}

func (conv *gltfConverter) sceneMeshes(scene *resources.Scene) error {
	conv.meshes = make([][]int, len(conv.doc.Meshes))
	for m, mesh := range conv.doc.Meshes {
		for p, prim := range mesh.Primitives {
			sm, err := conv.primitive(prim)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", m, p, err)
			}
			sm.Name = conv.meshName(m, p)
			conv.meshes[m] = append(conv.meshes[m], len(scene.Meshes))
			scene.Meshes = append(scene.Meshes, sm)
		}
	}
	return nil
}

func (conv *gltfConverter) primitive(prim *gltf.Primitive) (*resources.SceneMesh, error) {
	position, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute: %w", core.ErrValidation)
	}
	sm := &resources.SceneMesh{Material: -1}
	if prim.Material != nil {
		sm.Material = int(*prim.Material)
	}

	acc, err := conv.accessor(int(position))
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(conv.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("POSITION: %s: %w", err.Error(), core.ErrValidation)
	}
	sm.Positions = vec3s(positions)

	if normal, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acc, err = conv.accessor(int(normal)); err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(conv.doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("NORMAL: %s: %w", err.Error(), core.ErrValidation)
		}
		sm.Normals = vec3s(normals)
	}
	if uv, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acc, err = conv.accessor(int(uv)); err != nil {
			return nil, err
		}
		coords, err := modeler.ReadTextureCoord(conv.doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("TEXCOORD_0: %s: %w", err.Error(), core.ErrValidation)
		}
		for _, c := range coords {
			sm.TexCoords = append(sm.TexCoords, math.NewVec2(c[0], c[1]))
		}
	}
	if color, ok := prim.Attributes[gltf.COLOR_0]; ok {
		values, count, err := conv.floats(int(color))
		if err != nil {
			return nil, err
		}
		if count != 3 && count != 4 {
			return nil, fmt.Errorf("COLOR_0 is not VEC3 or VEC4: %w", core.ErrValidation)
		}
		for i := 0; i+count <= len(values); i += count {
			c := math.NewVec4(values[i], values[i+1], values[i+2], 1)
			if count == 4 {
				c.W = values[i+3]
			}
			sm.Colors = append(sm.Colors, c)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if acc, err = conv.accessor(int(*prim.Indices)); err != nil {
			return nil, err
		}
		if indices, err = modeler.ReadIndices(conv.doc, acc, nil); err != nil {
			return nil, fmt.Errorf("indices: %s: %w", err.Error(), core.ErrValidation)
		}
	} else {
		indices = make([]uint32, len(sm.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if sm.Faces, err = primitiveFaces(prim.Mode, indices); err != nil {
		return nil, err
	}
	return sm, nil
}

func vec3s(values [][3]float32) []math.Vec3 {
	out := make([]math.Vec3, len(values))
	for i, v := range values {
		out[i] = math.NewVec3(v[0], v[1], v[2])
	}
	return out
}

// primitiveFaces splits indices into faces, unrolling strips, loops and fans
// into lists.
func primitiveFaces(mode gltf.PrimitiveMode, indices []uint32) ([][]uint32, error) {
	var faces [][]uint32
	switch mode {
	case gltf.PrimitivePoints:
		for _, i := range indices {
			faces = append(faces, []uint32{i})
		}
	case gltf.PrimitiveLines:
		for i := 0; i+1 < len(indices); i += 2 {
			faces = append(faces, []uint32{indices[i], indices[i+1]})
		}
	case gltf.PrimitiveLineStrip, gltf.PrimitiveLineLoop:
		for i := 0; i+1 < len(indices); i++ {
			faces = append(faces, []uint32{indices[i], indices[i+1]})
		}
		if mode == gltf.PrimitiveLineLoop && len(indices) > 2 {
			faces = append(faces, []uint32{indices[len(indices)-1], indices[0]})
		}
	case gltf.PrimitiveTriangles:
		for i := 0; i+2 < len(indices); i += 3 {
			faces = append(faces, []uint32{indices[i], indices[i+1], indices[i+2]})
		}
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(indices); i++ {
			if i%2 == 0 {
				faces = append(faces, []uint32{indices[i], indices[i+1], indices[i+2]})
			} else {
				faces = append(faces, []uint32{indices[i+1], indices[i], indices[i+2]})
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(indices); i++ {
			faces = append(faces, []uint32{indices[0], indices[i], indices[i+1]})
		}
	default:
		return nil, fmt.Errorf("primitive mode %d: %w", mode, core.ErrUnsupportedFormat)
	}
	return faces, nil
}

func (conv *gltfConverter) nodeName(index int) string {
	if name := conv.doc.Nodes[index].Name; name != "" {
		return name
	}
	return fmt.Sprintf("node_%d", index)
}

func nodeTransform(node *gltf.Node) math.Mat4 {
	var data [16]float32
	for i, v := range node.Matrix {
		data[i] = float32(v)
	}
	// column-major storage is already the row-vector layout
	if node.Matrix != gltf.DefaultMatrix && data != ([16]float32{}) {
		return math.NewMat4(data)
	}

	t, r, s := node.Translation, node.Rotation, node.Scale
	rotation := math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}
	if rotation == (math.Quaternion{}) {
		rotation = math.NewQuatIdentity()
	}
	scale := math.NewVec3(float32(s[0]), float32(s[1]), float32(s[2]))
	if scale == math.NewVec3Zero() {
		scale = math.NewVec3One()
	}
	return math.NewMat4TRS(math.NewVec3(float32(t[0]), float32(t[1]), float32(t[2])), rotation, scale)
}

// nodes builds the node tree. A scene with several root nodes gets a
// synthesized root named after the file.
func (conv *gltfConverter) nodes(scene *resources.Scene, name string) error {
	var roots []int
	switch {
	case len(conv.doc.Scenes) > 0:
		index := 0
		if conv.doc.Scene != nil {
			index = int(*conv.doc.Scene)
		}
		if index < 0 || index >= len(conv.doc.Scenes) {
			return fmt.Errorf("scene %d: %w", index, core.ErrValidation)
		}
		for _, n := range conv.doc.Scenes[index].Nodes {
			roots = append(roots, int(n))
		}
	default:
		child := make([]bool, len(conv.doc.Nodes))
		for _, node := range conv.doc.Nodes {
			for _, c := range node.Children {
				if i := int(c); i >= 0 && i < len(child) {
					child[i] = true
				}
			}
		}
		for i := range conv.doc.Nodes {
			if !child[i] {
				roots = append(roots, i)
			}
		}
	}

	visited := make([]bool, len(conv.doc.Nodes))
	var build func(index int) (*resources.SceneNode, error)
	build = func(index int) (*resources.SceneNode, error) {
		if index < 0 || index >= len(conv.doc.Nodes) {
			return nil, fmt.Errorf("node %d: %w", index, core.ErrValidation)
		}
		if visited[index] {
			return nil, fmt.Errorf("node %d has several parents: %w", index, core.ErrValidation)
		}
		visited[index] = true

		node := conv.doc.Nodes[index]
		sn := resources.NewSceneNode(conv.nodeName(index))
		sn.Transform = nodeTransform(node)
		if node.Mesh != nil {
			mesh := int(*node.Mesh)
			if mesh < 0 || mesh >= len(conv.meshes) {
				return nil, fmt.Errorf("node %d: mesh %d: %w", index, mesh, core.ErrValidation)
			}
			sn.Meshes = append(sn.Meshes, conv.meshes[mesh]...)
			if node.Skin != nil {
				for p, m := range conv.meshes[mesh] {
					prim := conv.doc.Meshes[mesh].Primitives[p]
					if err := conv.skin(int(*node.Skin), scene.Meshes[m], prim); err != nil {
						return nil, err
					}
				}
			}
		}
		for _, c := range node.Children {
			child, err := build(int(c))
			if err != nil {
				return nil, err
			}
			sn.Children = append(sn.Children, child)
		}
		return sn, nil
	}

	if len(roots) == 1 {
		root, err := build(roots[0])
		if err != nil {
			return err
		}
		scene.Root = root
		return nil
	}
	scene.Root = resources.NewSceneNode(name)
	for _, r := range roots {
		child, err := build(r)
		if err != nil {
			return err
		}
		scene.Root.Children = append(scene.Root.Children, child)
	}
	return nil
}

// skin attaches the joints of a skin to a mesh as bones. A mesh shared by
// several skinned nodes keeps the first skin.
func (conv *gltfConverter) skin(index int, mesh *resources.SceneMesh, prim *gltf.Primitive) error {
	if len(mesh.Bones) > 0 {
		return nil
	}
	if index < 0 || index >= len(conv.doc.Skins) {
		return fmt.Errorf("skin %d: %w", index, core.ErrValidation)
	}
	skin := conv.doc.Skins[index]

	var inverseBinds []float32
	if skin.InverseBindMatrices != nil {
		values, count, err := conv.floats(int(*skin.InverseBindMatrices))
		if err != nil {
			return err
		}
		if count != 16 || len(values) < 16*len(skin.Joints) {
			return fmt.Errorf("skin %d: inverse bind matrices: %w", index, core.ErrValidation)
		}
		inverseBinds = values
	}

	for j, joint := range skin.Joints {
		node := int(joint)
		if node < 0 || node >= len(conv.doc.Nodes) {
			return fmt.Errorf("skin %d: joint %d: %w", index, node, core.ErrValidation)
		}
		bone := &resources.SceneBone{Name: conv.nodeName(node), Offset: math.NewMat4Identity()}
		if inverseBinds != nil {
			var data [16]float32
			copy(data[:], inverseBinds[j*16:])
			bone.Offset = math.NewMat4(data)
		}
		mesh.Bones = append(mesh.Bones, bone)
	}
	return conv.weights(mesh, prim)
}

func (conv *gltfConverter) weights(mesh *resources.SceneMesh, prim *gltf.Primitive) error {
	jointsIndex, hasJoints := prim.Attributes[gltf.JOINTS_0]
	weightsIndex, hasWeights := prim.Attributes[gltf.WEIGHTS_0]
	if !hasJoints || !hasWeights {
		return nil
	}
	jointsAccessor, err := conv.accessor(int(jointsIndex))
	if err != nil {
		return err
	}
	weightsAccessor, err := conv.accessor(int(weightsIndex))
	if err != nil {
		return err
	}
	joints, err := modeler.ReadJoints(conv.doc, jointsAccessor, nil)
	if err != nil {
		return fmt.Errorf("JOINTS_0: %s: %w", err.Error(), core.ErrValidation)
	}
	weights, err := modeler.ReadWeights(conv.doc, weightsAccessor, nil)
	if err != nil {
		return fmt.Errorf("WEIGHTS_0: %s: %w", err.Error(), core.ErrValidation)
	}
	if len(joints) != len(weights) {
		return fmt.Errorf("JOINTS_0 and WEIGHTS_0 mismatch: %w", core.ErrValidation)
	}

	for v := range joints {
		for k := range joints[v] {
			if weights[v][k] == 0 {
				continue
			}
			joint := int(joints[v][k])
			if joint >= len(mesh.Bones) {
				return fmt.Errorf("joint %d out of %d: %w", joint, len(mesh.Bones), core.ErrValidation)
			}
			bone := mesh.Bones[joint]
			bone.Weights = append(bone.Weights, resources.VertexWeight{Vertex: uint32(v), Weight: weights[v][k]})
		}
	}
	return nil
}

func (conv *gltfConverter) meshName(m, p int) string {
	name := conv.doc.Meshes[m].Name
	if name == "" {
		name = fmt.Sprintf("mesh_%d", m)
	}
	if len(conv.doc.Meshes[m].Primitives) > 1 {
		name = fmt.Sprintf("%s_%d", name, p)
	}
	return name
}

// animations converts samplers to keyframes. Times stay in seconds, so the
// animations run at one tick per second.
func (conv *gltfConverter) animations(scene *resources.Scene) error {
	for a, anim := range conv.doc.Animations {
		sa := &resources.SceneAnimation{Name: anim.Name, TicksPerSecond: 1}
		if sa.Name == "" {
			sa.Name = fmt.Sprintf("animation_%d", a)
		}
		channels := make(map[int]*resources.SceneChannel)

		for _, channel := range anim.Channels {
			if channel.Target.Node == nil || channel.Target.Path == gltf.TRSWeights {
				continue
			}
			node, samplerIndex := int(*channel.Target.Node), int(channel.Sampler)
			if node < 0 || node >= len(conv.doc.Nodes) || samplerIndex < 0 || samplerIndex >= len(anim.Samplers) {
				return fmt.Errorf("animation %d: bad channel target: %w", a, core.ErrValidation)
			}
			sampler := anim.Samplers[samplerIndex]
			times, _, err := conv.floats(int(sampler.Input))
			if err != nil {
				return err
			}
			values, count, err := conv.floats(int(sampler.Output))
			if err != nil {
				return err
			}
			// cubic splines store in-tangent, value and out-tangent per key
			stride, at := count, 0
			if sampler.Interpolation == gltf.InterpolationCubicSpline {
				stride, at = count*3, count
			}
			if len(values) < len(times)*stride {
				return fmt.Errorf("animation %d: sampler output too short: %w", a, core.ErrValidation)
			}

			sc, ok := channels[node]
			if !ok {
				sc = &resources.SceneChannel{NodeName: conv.nodeName(node)}
				channels[node] = sc
				sa.Channels = append(sa.Channels, sc)
			}
			for k, t := range times {
				v := values[k*stride+at:]
				time := float64(t)
				sa.Duration = gomath.Max(sa.Duration, time)
				switch channel.Target.Path {
				case gltf.TRSTranslation:
					sc.PositionKeys = append(sc.PositionKeys, resources.VectorKey{Time: time, Value: math.NewVec3(v[0], v[1], v[2])})
				case gltf.TRSScale:
					sc.ScaleKeys = append(sc.ScaleKeys, resources.VectorKey{Time: time, Value: math.NewVec3(v[0], v[1], v[2])})
				case gltf.TRSRotation:
					if count != 4 {
						return fmt.Errorf("animation %d: rotation is not VEC4: %w", a, core.ErrValidation)
					}
					q := math.Quaternion{X: v[0], Y: v[1], Z: v[2], W: v[3]}
					sc.RotationKeys = append(sc.RotationKeys, resources.QuaternionKey{Time: time, Value: q.Normalize()})
				default:
					return fmt.Errorf("animation %d: path %v: %w", a, channel.Target.Path, core.ErrUnsupportedFormat)
				}
			}
		}
		scene.Animations = append(scene.Animations, sa)
	}
	return nil
}
