package astrum

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextureImageConvertsHalfFloats(t *testing.T) {
	texture := &metadata.Texture{
		Name:       "frame",
		Components: metadata.PixelComponentsRGBA,
		Datatype:   metadata.PixelDatatypeFloat16,
		Width:      1,
		Height:     2,
	}
	pixels := make([]byte, texture.DataSize())
	// bottom row: 1, 0.5, 0, 2
	for i, bits := range []uint16{0x3C00, 0x3800, 0x0000, 0x4000} {
		memory.Write(pixels, uint64(i*2), bits)
	}

	img, err := textureImage(texture, pixels)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 128, B: 0, A: 255}, img.NRGBAAt(0, 1))
	assert.Equal(t, color.NRGBA{}, img.NRGBAAt(0, 0))
}

func TestTextureImageSwapsBGR(t *testing.T) {
	texture := &metadata.Texture{
		Components: metadata.PixelComponentsBGR,
		Datatype:   metadata.PixelDatatypeUint8,
		Width:      1,
		Height:     1,
	}
	img, err := textureImage(texture, []byte{10, 20, 30})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 30, G: 20, B: 10, A: 255}, img.NRGBAAt(0, 0))
}

func TestTextureImageRejectsDepth(t *testing.T) {
	texture := &metadata.Texture{
		Components: metadata.PixelComponentsDepth,
		Datatype:   metadata.PixelDatatypeFloat32,
		Width:      1,
		Height:     1,
	}
	_, err := textureImage(texture, make([]byte, 4))
	assert.Error(t, err)
}

func TestScreenshotWritesWebP(t *testing.T) {
	e, a, _ := newTestEngine(t, 1)
	require.NoError(t, e.Run())

	path := filepath.Join(t.TempDir(), "frame.webp")
	require.NoError(t, a.Screenshot(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))

	require.NoError(t, e.Shutdown())
}
