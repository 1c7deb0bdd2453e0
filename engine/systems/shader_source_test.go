package systems

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShaderSource(t *testing.T) {
	limits := metadata.DefaultRendererLimits()

	vertex, err := GenerateShaderSource(metadata.ShaderStageVertex, metadata.VertexFormatPNT, limits)
	require.NoError(t, err)
	assert.Contains(t, vertex, "layout(location = 0) in vec3 position;")
	assert.Contains(t, vertex, "layout(location = 1) in vec3 normal;")
	assert.Contains(t, vertex, "layout(location = 2) in vec2 texture_coordinate;")
	assert.Contains(t, vertex, "binding = 3) buffer instance_layout")
	assert.NotContains(t, vertex, "bone_transforms")

	fragment, err := GenerateShaderSource(metadata.ShaderStageFragment, metadata.VertexFormatPNT, limits)
	require.NoError(t, err)
	assert.Contains(t, fragment, "texture(frag_texture_sampler, frag_texture_coordinate)")
}

func TestGenerateSkinnedShaderSource(t *testing.T) {
	format := metadata.NewVertexFormat(metadata.VertexFormatOptions{Normals: true, BoneWeights: 4})

	vertex, err := GenerateShaderSource(metadata.ShaderStageVertex, format, metadata.DefaultRendererLimits())
	require.NoError(t, err)
	assert.Contains(t, vertex, "in uvec4 uint_2;")
	assert.Contains(t, vertex, "in vec4 float_3;")
	assert.Contains(t, vertex, "mat4 bone_transforms[64];")
}

func TestGenerateShaderSourceRejects(t *testing.T) {
	limits := metadata.DefaultRendererLimits()

	_, err := GenerateShaderSource(metadata.ShaderStageGeometry, metadata.VertexFormatPN, limits)
	assert.Error(t, err)

	noPosition := metadata.NewVertexFormatFromComponents([]metadata.VertexComponent{{Tag: metadata.VertexComponentNormal, Count: 3}}...)
	_, err = GenerateShaderSource(metadata.ShaderStageVertex, noPosition, limits)
	assert.Error(t, err)

	wide := metadata.NewVertexFormatFromComponents([]metadata.VertexComponent{{Tag: metadata.VertexComponentPosition, Count: 3}, {Tag: metadata.VertexComponentFloat, Count: 8}}...)
	_, err = GenerateShaderSource(metadata.ShaderStageVertex, wide, limits)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}
