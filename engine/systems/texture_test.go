package systems

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextureHandleIsCreatedOnce(t *testing.T) {
	s := newTestSystems(t)

	texture, err := s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsRGBA, Datatype: metadata.PixelDatatypeUint8, Width: 2, Height: 2}, metadata.TextureOptions{})
	require.NoError(t, err)

	first, err := s.textures.Handle(texture)
	require.NoError(t, err)
	second, err := s.textures.Handle(texture)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.backend.Count("TextureResidentHandle"))

	require.NoError(t, s.textures.Remove(texture))
	assert.Zero(t, s.backend.ResidentHandles())

	// a new texture reusing the id gets its own handle
	other, err := s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsRGB, Datatype: metadata.PixelDatatypeUint8, Width: 1, Height: 1}, metadata.TextureOptions{})
	require.NoError(t, err)
	assert.Equal(t, texture.ID, other.ID)
	handle, err := s.textures.Handle(other)
	require.NoError(t, err)
	assert.NotEqual(t, first, handle)
}

func TestTextureUnsupportedFormat(t *testing.T) {
	s := newTestSystems(t)

	_, err := s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsDepth, Datatype: metadata.PixelDatatypeUint8, Width: 4, Height: 4}, metadata.TextureOptions{})
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	depth, err := s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsDepth, Datatype: metadata.PixelDatatypeFloat32, Width: 4, Height: 4}, metadata.TextureOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(64), depth.DataSize())
}

func TestTextureWriteRead(t *testing.T) {
	s := newTestSystems(t)

	texture, err := s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsRGB, Datatype: metadata.PixelDatatypeUint8, Width: 2, Height: 1}, metadata.TextureOptions{})
	require.NoError(t, err)

	pixels := []byte{1, 2, 3, 4, 5, 6}
	require.NoError(t, s.textures.Write(texture, pixels))
	read, err := s.textures.Read(texture)
	require.NoError(t, err)
	assert.Equal(t, pixels, read)

	assert.ErrorIs(t, s.textures.Write(texture, pixels[:3]), core.ErrInvalidRange)
}

func TestTextureFromImage(t *testing.T) {
	s := newTestSystems(t)

	texture, err := s.textures.AddImage("checker", &metadata.ImageResourceData{
		ChannelCount: 4,
		BitsPerPixel: 32,
		Width:        1,
		Height:       1,
		Pixels:       []byte{255, 0, 255, 255},
	})
	require.NoError(t, err)
	assert.Equal(t, metadata.PixelComponentsRGBA, texture.Components)

	_, err = s.textures.AddImage("gray", &metadata.ImageResourceData{ChannelCount: 1, BitsPerPixel: 8, Width: 1, Height: 1, Pixels: []byte{0}})
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestTextureCapacity(t *testing.T) {
	s := newTestSystems(t)
	s.textures.Config.MaxTextureCount = 1

	_, err := s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsRGB, Datatype: metadata.PixelDatatypeUint8, Width: 1, Height: 1}, metadata.TextureOptions{})
	require.NoError(t, err)
	_, err = s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsRGB, Datatype: metadata.PixelDatatypeUint8, Width: 1, Height: 1}, metadata.TextureOptions{})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
}

func TestFrameBuffers(t *testing.T) {
	s := newTestSystems(t)
	frameBuffers, err := NewFrameBufferSystem(s.backend)
	require.NoError(t, err)

	_, err = frameBuffers.Add(metadata.FrameBuffer{Name: "empty"})
	assert.Error(t, err)

	color, err := s.textures.Add(metadata.Texture{Components: metadata.PixelComponentsRGBA, Datatype: metadata.PixelDatatypeFloat16, Width: 8, Height: 8}, metadata.TextureOptions{Samples: 4})
	require.NoError(t, err)
	scene, err := frameBuffers.Add(metadata.FrameBuffer{Width: 8, Height: 8, ColorTextures: []*metadata.Texture{color}})
	require.NoError(t, err)
	assert.NotEmpty(t, scene.Name)

	frameBuffers.Bind(scene)
	frameBuffers.Bind(nil)
	assert.Equal(t, 2, s.backend.Count("FrameBufferUseAndClear"))

	assert.Error(t, frameBuffers.Blit(scene, nil))
	require.NoError(t, frameBuffers.Shutdown())
	assert.Empty(t, frameBuffers.FrameBuffers)
}
