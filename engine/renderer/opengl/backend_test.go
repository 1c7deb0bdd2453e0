package opengl

import (
	"testing"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
)

func TestPixelFormat(t *testing.T) {
	format, xtype := pixelFormat(&metadata.Texture{Components: metadata.PixelComponentsBGRA, Datatype: metadata.PixelDatatypeUint8})
	assert.Equal(t, uint32(gl.BGRA), format)
	assert.Equal(t, uint32(gl.UNSIGNED_BYTE), xtype)

	format, xtype = pixelFormat(&metadata.Texture{Components: metadata.PixelComponentsRGBA, Datatype: metadata.PixelDatatypeFloat16})
	assert.Equal(t, uint32(gl.RGBA), format)
	assert.Equal(t, uint32(gl.HALF_FLOAT), xtype)

	format, xtype = pixelFormat(&metadata.Texture{Components: metadata.PixelComponentsDepth, Datatype: metadata.PixelDatatypeFloat32})
	assert.Equal(t, uint32(gl.DEPTH_COMPONENT), format)
	assert.Equal(t, uint32(gl.FLOAT), xtype)
}

func TestEveryInternalFormatMaps(t *testing.T) {
	for f := metadata.InternalFormatRGB8; f <= metadata.InternalFormatDepth32F; f++ {
		_, ok := internalFormats[f]
		assert.True(t, ok, "format %d", f)
	}
	_, ok := internalFormats[metadata.InternalFormatUnknown]
	assert.False(t, ok)
}

func TestPrimitiveMode(t *testing.T) {
	assert.Equal(t, uint32(gl.TRIANGLES), primitiveMode(metadata.MeshPrimitiveTriangleList))
	assert.Equal(t, uint32(gl.TRIANGLE_STRIP), primitiveMode(metadata.MeshPrimitiveTriangleStrip))
	assert.Equal(t, uint32(gl.LINES), primitiveMode(metadata.MeshPrimitiveLineList))
	assert.Equal(t, uint32(gl.POINTS), primitiveMode(metadata.MeshPrimitivePointList))
}
