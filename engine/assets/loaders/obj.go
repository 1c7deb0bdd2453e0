package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/resources"
)

const (
	objType = "obj"
	mtlType = "mtl"
	// index of a missing texture coordinate or normal
	objNoIndex = -1
)

/**
 * @brief Loads Wavefront OBJ files and the MTL library they name. Every
 * (object, material) pair becomes one scene mesh; polygons are triangulated
 * as fans.
 */
type ObjLoader struct{}

func (ol *ObjLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := newObjDecoder()
	if err := dec.parse(file, dec.parseObjLine); err != nil {
		return nil, fmt.Errorf("obj '%s': %w", path, err)
	}

	if dec.matlib != "" {
		mtl, err := os.Open(filepath.Join(filepath.Dir(path), dec.matlib))
		if err != nil {
			core.LogWarn("obj '%s': material library not loaded: %s", path, err.Error())
		} else {
			defer mtl.Close()
			dec.line = 1
			dec.matCurrent = nil
			if err := dec.parse(mtl, dec.parseMtlLine); err != nil {
				return nil, fmt.Errorf("mtl '%s': %w", dec.matlib, err)
			}
		}
	}
	for _, w := range dec.warnings {
		core.LogDebug(w)
	}

	scene, err := dec.scene(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("obj '%s': %w", path, err)
	}
	return &metadata.Resource{
		Name:     scene.Name,
		FullPath: path,
		Data:     scene,
	}, nil
}

func (ol *ObjLoader) Unload(*metadata.Resource) error {
	return nil
}

/**
 * @brief Decodes OBJ text, and optionally MTL text, into a scene.
 */
func DecodeObj(obj io.Reader, mtl io.Reader, name string) (*resources.Scene, error) {
	dec := newObjDecoder()
	if err := dec.parse(obj, dec.parseObjLine); err != nil {
		return nil, err
	}
	if mtl != nil {
		dec.line = 1
		dec.matCurrent = nil
		if err := dec.parse(mtl, dec.parseMtlLine); err != nil {
			return nil, err
		}
	}
	return dec.scene(name)
}

type objFace struct {
	vertices []int
	uvs      []int
	normals  []int
	material string
}

type objObject struct {
	name  string
	faces []objFace
}

type objMaterial struct {
	name    string
	diffuse math.Vec4
	mapKd   string
}

type objDecoder struct {
	objects   []objObject
	matlib    string
	materials map[string]*objMaterial
	// materials in order of first use
	materialOrder []string
	vertices      []math.Vec3
	normals       []math.Vec3
	uvs           []math.Vec2
	warnings      []string

	line       uint
	objCurrent *objObject
	matCurrent *objMaterial
}

func newObjDecoder() *objDecoder {
	return &objDecoder{
		materials: make(map[string]*objMaterial),
		line:      1,
	}
}

func (dec *objDecoder) parse(reader io.Reader, parseLine func(string) error) error {
	bufin := bufio.NewReader(reader)
	for {
		line, err := bufin.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if perr := parseLine(line); perr != nil {
			return perr
		}
		if err == io.EOF {
			return nil
		}
		dec.line++
	}
}

func (dec *objDecoder) parseObjLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	switch fields[0] {
	case "mtllib":
		if len(fields) < 2 {
			return dec.formatError("mtllib with no fields")
		}
		dec.matlib = strings.Join(fields[1:], " ")
	case "o", "g":
		if len(fields) < 2 {
			return dec.formatError("object with no name")
		}
		dec.addObject(fields[1])
	case "v":
		v, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.vertices = append(dec.vertices, math.NewVec3(v[0], v[1], v[2]))
	case "vn":
		v, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.normals = append(dec.normals, math.NewVec3(v[0], v[1], v[2]))
	case "vt":
		v, err := dec.parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		dec.uvs = append(dec.uvs, math.NewVec2(v[0], v[1]))
	case "f":
		return dec.parseFace(fields[1:], 3)
	case "l":
		return dec.parseFace(fields[1:], 2)
	case "p":
		return dec.parseFace(fields[1:], 1)
	case "usemtl":
		if len(fields) < 2 {
			return dec.formatError("usemtl with no fields")
		}
		dec.useMaterial(fields[1])
	case "s":
	default:
		dec.appendWarn(objType, "field not supported: "+fields[0])
	}
	return nil
}

func (dec *objDecoder) addObject(name string) {
	dec.objects = append(dec.objects, objObject{name: name})
	dec.objCurrent = &dec.objects[len(dec.objects)-1]
}

func (dec *objDecoder) useMaterial(name string) {
	mat, ok := dec.materials[name]
	if !ok {
		mat = &objMaterial{name: name, diffuse: math.NewVec4One()}
		dec.materials[name] = mat
		dec.materialOrder = append(dec.materialOrder, name)
	}
	dec.matCurrent = mat
}

func (dec *objDecoder) parseFloats(fields []string, count int) ([]float32, error) {
	if len(fields) < count {
		return nil, dec.formatError(fmt.Sprintf("expected %d values", count))
	}
	out := make([]float32, count)
	for i, f := range fields[:count] {
		val, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, dec.formatError(err.Error())
		}
		out[i] = float32(val)
	}
	return out, nil
}

// parseIndex resolves a 1-based or negative (relative) OBJ index.
func (dec *objDecoder) parseIndex(field string, count int) (int, error) {
	val, err := strconv.ParseInt(field, 10, 32)
	if err != nil {
		return 0, dec.formatError(err.Error())
	}
	var index int
	switch {
	case val > 0:
		index = int(val - 1)
	case val < 0:
		index = count + int(val)
	default:
		return 0, dec.formatError("index value equal to 0")
	}
	if index < 0 || index >= count {
		return 0, dec.formatError(fmt.Sprintf("index %d out of %d", val, count))
	}
	return index, nil
}

// parseFace parses f, l and p elements:
// f v1[/vt1][/vn1] v2[/vt2][/vn2] v3[/vt3][/vn3] ...
func (dec *objDecoder) parseFace(fields []string, minimum int) error {
	if dec.objCurrent == nil {
		dec.addObject(fmt.Sprintf("unnamed%d", dec.line))
	}
	if len(fields) < minimum {
		return dec.formatError(fmt.Sprintf("element with less than %d vertices", minimum))
	}

	face := objFace{
		vertices: make([]int, len(fields)),
		uvs:      make([]int, len(fields)),
		normals:  make([]int, len(fields)),
	}
	if dec.matCurrent != nil {
		face.material = dec.matCurrent.name
	}

	for pos, f := range fields {
		parts := strings.Split(f, "/")

		var err error
		if face.vertices[pos], err = dec.parseIndex(parts[0], len(dec.vertices)); err != nil {
			return err
		}

		face.uvs[pos] = objNoIndex
		if len(parts) > 1 && parts[1] != "" {
			if face.uvs[pos], err = dec.parseIndex(parts[1], len(dec.uvs)); err != nil {
				return err
			}
		}

		face.normals[pos] = objNoIndex
		if len(parts) > 2 && parts[2] != "" {
			if face.normals[pos], err = dec.parseIndex(parts[2], len(dec.normals)); err != nil {
				return err
			}
		}
	}

	// fans for polygons, segments for polylines, one face per point
	switch minimum {
	case 3:
		for i := 1; i+1 < len(fields); i++ {
			dec.objCurrent.faces = append(dec.objCurrent.faces, face.pick(0, i, i+1))
		}
	case 2:
		for i := 0; i+1 < len(fields); i++ {
			dec.objCurrent.faces = append(dec.objCurrent.faces, face.pick(i, i+1))
		}
	default:
		for i := range fields {
			dec.objCurrent.faces = append(dec.objCurrent.faces, face.pick(i))
		}
	}
	return nil
}

func (f objFace) pick(corners ...int) objFace {
	out := objFace{material: f.material}
	for _, c := range corners {
		out.vertices = append(out.vertices, f.vertices[c])
		out.uvs = append(out.uvs, f.uvs[c])
		out.normals = append(out.normals, f.normals[c])
	}
	return out
}

func (dec *objDecoder) parseMtlLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	if fields[0] != "newmtl" && dec.matCurrent == nil {
		return dec.formatError(fields[0] + " before newmtl")
	}
	switch fields[0] {
	case "newmtl":
		if len(fields) < 2 {
			return dec.formatError("newmtl with no fields")
		}
		mat, ok := dec.materials[fields[1]]
		if !ok {
			mat = &objMaterial{name: fields[1], diffuse: math.NewVec4One()}
			dec.materials[fields[1]] = mat
		}
		dec.matCurrent = mat
	case "Kd":
		v, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.matCurrent.diffuse = math.NewVec4(v[0], v[1], v[2], dec.matCurrent.diffuse.W)
	case "d":
		v, err := dec.parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		dec.matCurrent.diffuse.W = v[0]
	case "map_Kd":
		// options such as -s and -o come before the file name
		if len(fields) < 2 {
			return dec.formatError("map_Kd with no fields")
		}
		dec.matCurrent.mapKd = fields[len(fields)-1]
	default:
		dec.appendWarn(mtlType, "field not supported: "+fields[0])
	}
	return nil
}

type objVertexKey struct {
	vertex, uv, normal int
}

/**
 * @brief Builds the scene: a root node with one child per object, holding
 * one mesh per material used by the object.
 */
func (dec *objDecoder) scene(name string) (*resources.Scene, error) {
	if len(dec.objects) == 0 {
		return nil, errors.New("no objects")
	}

	scene := &resources.Scene{Name: name, Root: resources.NewSceneNode(name)}
	materialIndex := make(map[string]int)
	for _, matName := range dec.materialOrder {
		mat := dec.materials[matName]
		materialIndex[matName] = len(scene.Materials)
		scene.Materials = append(scene.Materials, &resources.SceneMaterial{Name: mat.name, DiffuseTexture: mat.mapKd})
	}

	for _, object := range dec.objects {
		node := resources.NewSceneNode(object.name)

		var order []string
		groups := make(map[string][]objFace)
		for _, face := range object.faces {
			if _, ok := groups[face.material]; !ok {
				order = append(order, face.material)
			}
			groups[face.material] = append(groups[face.material], face)
		}

		for _, matName := range order {
			mesh := dec.mesh(object.name, groups[matName])
			mesh.Material = -1
			if index, ok := materialIndex[matName]; ok {
				mesh.Material = index
				mesh.Name = object.name + "-" + matName
			}
			node.Meshes = append(node.Meshes, len(scene.Meshes))
			scene.Meshes = append(scene.Meshes, mesh)
		}
		scene.Root.Children = append(scene.Root.Children, node)
	}
	return scene, nil
}

func (dec *objDecoder) mesh(name string, faces []objFace) *resources.SceneMesh {
	mesh := &resources.SceneMesh{Name: name}
	unique := make(map[objVertexKey]uint32)
	hasNormals, hasUVs := true, true

	for _, face := range faces {
		indices := make([]uint32, len(face.vertices))
		for i := range face.vertices {
			key := objVertexKey{face.vertices[i], face.uvs[i], face.normals[i]}
			index, ok := unique[key]
			if !ok {
				index = uint32(len(mesh.Positions))
				unique[key] = index
				mesh.Positions = append(mesh.Positions, dec.vertices[key.vertex])

				normal := math.NewVec3Zero()
				if key.normal == objNoIndex {
					hasNormals = false
				} else {
					normal = dec.normals[key.normal]
				}
				mesh.Normals = append(mesh.Normals, normal)

				uv := math.Vec2{}
				if key.uv == objNoIndex {
					hasUVs = false
				} else {
					uv = dec.uvs[key.uv]
				}
				mesh.TexCoords = append(mesh.TexCoords, uv)
			}
			indices[i] = index
		}
		mesh.Faces = append(mesh.Faces, indices)
	}

	if !hasNormals {
		mesh.Normals = nil
	}
	if !hasUVs {
		mesh.TexCoords = nil
	}
	return mesh
}

func (dec *objDecoder) formatError(msg string) error {
	return fmt.Errorf("%s in line %d: %w", msg, dec.line, core.ErrValidation)
}

func (dec *objDecoder) appendWarn(ftype string, msg string) {
	dec.warnings = append(dec.warnings, fmt.Sprintf("%s(%d): %s", ftype, dec.line, msg))
}
