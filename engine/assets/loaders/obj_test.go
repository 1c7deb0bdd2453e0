package loaders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadObj = `# two materials on one quad, plus a polyline
mtllib quad.mtl
o Quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl red
s off
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl blue
f -4/1/1 -2/3/1 -1/4/1
o Line
l 1 2 3
`

const quadMtl = `newmtl red
Kd 1 0 0
map_Kd -s 1 1 1 textures/red.png
newmtl blue
Kd 0 0 1
d 0.5
`

func TestDecodeObj(t *testing.T) {
	scene, err := DecodeObj(strings.NewReader(quadObj), strings.NewReader(quadMtl), "quad")
	require.NoError(t, err)

	assert.Equal(t, "quad", scene.Name)
	require.Len(t, scene.Materials, 2)
	assert.Equal(t, "red", scene.Materials[0].Name)
	assert.Equal(t, "textures/red.png", scene.Materials[0].DiffuseTexture)
	assert.Equal(t, "", scene.Materials[1].DiffuseTexture)

	require.Len(t, scene.Root.Children, 2)
	assert.Equal(t, []int{0, 1}, scene.Root.Children[0].Meshes)
	assert.Equal(t, []int{2}, scene.Root.Children[1].Meshes)

	require.Len(t, scene.Meshes, 3)
	red := scene.Meshes[0]
	assert.Equal(t, "Quad-red", red.Name)
	assert.Equal(t, 0, red.Material)
	assert.Len(t, red.Positions, 4)
	assert.Equal(t, [][]uint32{{0, 1, 2}, {0, 2, 3}}, red.Faces)
	assert.Equal(t, resources.PrimitiveTypeTriangle, red.PrimitiveTypes())
	assert.Equal(t, math.NewVec2(1, 1), red.TexCoords[2])
	assert.Equal(t, math.NewVec3(0, 0, 1), red.Normals[0])

	blue := scene.Meshes[1]
	assert.Equal(t, 1, blue.Material)
	assert.Equal(t, [][]uint32{{0, 1, 2}}, blue.Faces)
	assert.Equal(t, []math.Vec3{
		math.NewVec3(0, 0, 0),
		math.NewVec3(1, 1, 0),
		math.NewVec3(0, 1, 0),
	}, blue.Positions)

	line := scene.Meshes[2]
	// the current material carries over to later objects
	assert.Equal(t, "Line-blue", line.Name)
	assert.Equal(t, 1, line.Material)
	assert.Equal(t, [][]uint32{{0, 1}, {1, 2}}, line.Faces)
	assert.Nil(t, line.Normals)
	assert.Nil(t, line.TexCoords)
}

func TestDecodeObjSharesVertices(t *testing.T) {
	obj := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3\nf 1 3 4\n"
	scene, err := DecodeObj(strings.NewReader(obj), nil, "shared")
	require.NoError(t, err)

	require.Len(t, scene.Meshes, 1)
	assert.Len(t, scene.Meshes[0].Positions, 4)
	assert.Equal(t, uint32(6), scene.Meshes[0].IndexCount())
}

func TestDecodeObjErrors(t *testing.T) {
	cases := map[string]string{
		"index out of range": "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1 2 4\n",
		"zero index":         "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 0 1 2\n",
		"short vertex":       "v 0 0\n",
		"bad float":          "v 0 x 0\n",
		"short face":         "v 0 0 0\nv 1 0 0\nf 1 2\n",
	}
	for name, obj := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeObj(strings.NewReader(obj), nil, "bad")
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	_, err := DecodeObj(strings.NewReader("# nothing\n"), nil, "empty")
	assert.Error(t, err)
}

func TestObjLoaderReadsMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadObj), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(quadMtl), 0o644))

	loader := &ModelLoader{}
	res, err := loader.Load(filepath.Join(dir, "quad.obj"), metadata.ResourceTypeModel, nil)
	require.NoError(t, err)

	scene, ok := res.Data.(*resources.Scene)
	require.True(t, ok)
	assert.Equal(t, "quad", scene.Name)
	assert.Equal(t, "textures/red.png", scene.Materials[0].DiffuseTexture)
}

func TestObjLoaderMissingMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadObj), 0o644))

	res, err := (&ObjLoader{}).Load(path, metadata.ResourceTypeModel, nil)
	require.NoError(t, err)
	scene := res.Data.(*resources.Scene)
	require.Len(t, scene.Materials, 2)
	assert.Equal(t, "", scene.Materials[0].DiffuseTexture)
}

func TestModelLoaderRejectsUnknownExtension(t *testing.T) {
	_, err := (&ModelLoader{}).Load("model.fbx", metadata.ResourceTypeModel, nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}
