package loaders

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/**
 * @brief Decodes png, jpeg, gif, bmp, tiff, webp and tga files into tightly
 * packed 8 bit pixels. Opaque images come out as RGB, the rest as RGBA.
 */
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	flipY := false
	if typedParams, ok := params.(*metadata.ImageResourceParams); ok && typedParams != nil {
		flipY = typedParams.FlipY
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image '%s': %w", path, core.ErrUnsupportedFormat)
	}
	core.LogDebug("decoded %s image %s (%dx%d)", format, path, img.Bounds().Dx(), img.Bounds().Dy())

	data := DecodeImage(img, flipY)
	return &metadata.Resource{
		Name:     path,
		FullPath: path,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(*metadata.Resource) error {
	return nil
}

type opaquer interface {
	Opaque() bool
}

/**
 * @brief Converts a decoded image into rows of RGB or RGBA bytes, top row
 * first unless flipY is set.
 */
func DecodeImage(img image.Image, flipY bool) *metadata.ImageResourceData {
	bounds := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	channels := 4
	if o, ok := img.(opaquer); ok && o.Opaque() {
		channels = 3
	}

	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 0, width*height*channels)
	for row := 0; row < height; row++ {
		y := row
		if flipY {
			y = height - 1 - row
		}
		line := rgba.Pix[y*rgba.Stride : y*rgba.Stride+width*4]
		if channels == 4 {
			pixels = append(pixels, line...)
			continue
		}
		for x := 0; x < width; x++ {
			pixels = append(pixels, line[x*4], line[x*4+1], line[x*4+2])
		}
	}

	return &metadata.ImageResourceData{
		ChannelCount: uint8(channels),
		BitsPerPixel: sourceBitsPerPixel(img, channels),
		Width:        uint32(width),
		Height:       uint32(height),
		Pixels:       pixels,
	}
}

// sourceBitsPerPixel reports the pixel depth of the encoded image so callers
// can reject gray, paletted and 16 bit sources.
func sourceBitsPerPixel(img image.Image, channels int) uint8 {
	switch img.ColorModel() {
	case color.GrayModel, color.AlphaModel:
		return 8
	case color.Gray16Model, color.Alpha16Model:
		return 16
	case color.RGBA64Model, color.NRGBA64Model:
		return 64
	}
	if _, ok := img.(*image.Paletted); ok {
		return 8
	}
	return uint8(channels * 8)
}
