package astrum

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/x448/float16"
)

/**
 * @brief Writes the last post-processed frame to path as a lossless WebP.
 */
func (a *Astrum) Screenshot(path string) error {
	if a.Chain == nil || len(a.Chain.Current.ColorTextures) == 0 {
		err := fmt.Errorf("no frame to capture: %w", core.ErrValidation)
		core.LogError(err.Error())
		return err
	}
	texture := a.Chain.Current.ColorTextures[0]
	pixels, err := a.sm.Textures.Read(texture)
	if err != nil {
		return err
	}
	img, err := textureImage(texture, pixels)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	defer f.Close()
	if err := nativewebp.Encode(f, img, nil); err != nil {
		err = fmt.Errorf("encode %s: %w", path, err)
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("screenshot written to %s (%dx%d)", path, texture.Width, texture.Height)
	return nil
}

/**
 * @brief Converts the pixels of a color texture to 8 bits per channel.
 * Float channels are clamped to [0, 1]. Rows are flipped: textures start at
 * the bottom row, images at the top one.
 */
func textureImage(t *metadata.Texture, pixels []byte) (*image.NRGBA, error) {
	if t.Components == metadata.PixelComponentsDepth {
		err := fmt.Errorf("texture '%s' holds depth, not color: %w", t.Name, core.ErrUnsupportedFormat)
		core.LogError(err.Error())
		return nil, err
	}
	if uint64(len(pixels)) < t.DataSize() {
		err := fmt.Errorf("texture '%s' needs %d bytes, got %d: %w", t.Name, t.DataSize(), len(pixels), core.ErrInvalidRange)
		core.LogError(err.Error())
		return nil, err
	}

	components := t.Components.Count()
	size := uint64(t.Datatype.Size())
	bgr := t.Components == metadata.PixelComponentsBGR || t.Components == metadata.PixelComponentsBGRA

	channel := func(offset uint64) uint8 {
		var value float32
		switch t.Datatype {
		case metadata.PixelDatatypeUint8:
			return pixels[offset]
		case metadata.PixelDatatypeFloat16:
			value = float16.Frombits(memory.Read[uint16](pixels, offset)).Float32()
		default:
			value = memory.Read[float32](pixels, offset)
		}
		return uint8(math32.Round(math.Clamp(value, 0, 1) * 255))
	}

	img := image.NewNRGBA(image.Rect(0, 0, int(t.Width), int(t.Height)))
	for y := uint32(0); y < t.Height; y++ {
		for x := uint32(0); x < t.Width; x++ {
			base := (uint64(y)*uint64(t.Width) + uint64(x)) * uint64(components) * size
			var rgba [4]uint8
			rgba[3] = 255
			for c := uint32(0); c < components; c++ {
				rgba[c] = channel(base + uint64(c)*size)
			}
			if bgr {
				rgba[0], rgba[2] = rgba[2], rgba[0]
			}
			img.SetNRGBA(int(x), int(t.Height-1-y), color.NRGBA{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]})
		}
	}
	return img, nil
}
