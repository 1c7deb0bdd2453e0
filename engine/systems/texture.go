package systems

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/assets"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
}

/**
 * @brief Creates GPU textures and owns their resident handles. A handle is
 * created the first time it is asked for and released with its texture.
 */
type TextureSystem struct {
	Config *TextureSystemConfig
	// Registered textures, by id.
	Textures map[uint64]*metadata.Texture

	// texture id -> resident handle
	handles      map[uint64]uint64
	ids          core.Identifiers
	assetManager *assets.AssetManager
	backend      renderer.RendererBackend
}

func NewTextureSystem(config *TextureSystemConfig, am *assets.AssetManager, backend renderer.RendererBackend) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		Config:       config,
		Textures:     make(map[uint64]*metadata.Texture),
		handles:      make(map[uint64]uint64),
		assetManager: am,
		backend:      backend,
	}, nil
}

/**
 * @brief Creates an empty texture. Samples above 1 request multisample
 * storage; otherwise the texture is filtered linearly and optionally clamped.
 */
func (ts *TextureSystem) Add(init metadata.Texture, options metadata.TextureOptions) (*metadata.Texture, error) {
	if uint32(len(ts.Textures)) >= ts.Config.MaxTextureCount {
		err := fmt.Errorf("texture system is full (%d textures): %w", ts.Config.MaxTextureCount, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return nil, err
	}

	texture := init
	format, ok := texture.InternalFormat()
	if !ok {
		err := fmt.Errorf("texture '%s' has unsupported components/datatype combination (%d/%d): %w", texture.Name, texture.Components, texture.Datatype, core.ErrUnsupportedFormat)
		core.LogError(err.Error())
		return nil, err
	}

	handle, err := ts.backend.TextureCreate(&texture, format, options)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	texture.Handle = handle
	texture.Samples = options.Samples

	t := &texture
	t.ID = ts.ids.Acquire(t)
	if t.Name == "" {
		t.Name = fmt.Sprintf("texture_%d", t.ID)
	}
	ts.Textures[t.ID] = t
	return t, nil
}

/**
 * @brief Uploads the whole pixel store. There are no partial updates.
 */
func (ts *TextureSystem) Write(t *metadata.Texture, pixels []byte) error {
	if uint64(len(pixels)) != t.DataSize() {
		err := fmt.Errorf("texture '%s' holds %d bytes, got %d: %w", t.Name, t.DataSize(), len(pixels), core.ErrInvalidRange)
		core.LogError(err.Error())
		return err
	}
	format, ok := t.InternalFormat()
	if !ok {
		err := fmt.Errorf("texture '%s': %w", t.Name, core.ErrUnsupportedFormat)
		core.LogError(err.Error())
		return err
	}
	if err := ts.backend.TextureWrite(t, format, pixels); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}

// Read downloads the whole pixel store.
func (ts *TextureSystem) Read(t *metadata.Texture) ([]byte, error) {
	data, err := ts.backend.TextureRead(t)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return data, nil
}

/**
 * @brief Returns the resident handle of the texture, creating it on first use.
 */
func (ts *TextureSystem) Handle(t *metadata.Texture) (uint64, error) {
	if handle, ok := ts.handles[t.ID]; ok {
		return handle, nil
	}
	handle, err := ts.backend.TextureResidentHandle(t.Handle)
	if err != nil {
		core.LogError(err.Error())
		return 0, err
	}
	ts.handles[t.ID] = handle
	return handle, nil
}

/**
 * @brief Destroys the texture and drops its resident handle so a reused id
 * never sees a stale handle.
 */
func (ts *TextureSystem) Remove(t *metadata.Texture) error {
	if _, ok := ts.Textures[t.ID]; !ok {
		err := fmt.Errorf("texture %d: %w", t.ID, core.ErrNotFound)
		core.LogError(err.Error())
		return err
	}
	if handle, ok := ts.handles[t.ID]; ok {
		ts.backend.TextureReleaseHandle(handle)
		delete(ts.handles, t.ID)
	}
	ts.backend.TextureDestroy(t.Handle)
	delete(ts.Textures, t.ID)
	if err := ts.ids.Release(t.ID); err != nil {
		core.LogWarn(err.Error())
	}
	t.Handle = 0
	return nil
}

/**
 * @brief Loads an image through the asset manager and uploads it. Only 24
 * and 32 bit RGB/RGBA images are accepted.
 */
func (ts *TextureSystem) Load(path string) (*metadata.Texture, error) {
	if ts.assetManager == nil {
		err := fmt.Errorf("cannot load texture '%s' without an asset manager", path)
		core.LogError(err.Error())
		return nil, err
	}
	resource, err := ts.assetManager.LoadAsset(path, metadata.ResourceTypeImage, &metadata.ImageResourceParams{})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	image, ok := resource.Data.(*metadata.ImageResourceData)
	if !ok {
		err := fmt.Errorf("resource '%s' is not an image", path)
		core.LogError(err.Error())
		return nil, err
	}
	return ts.AddImage(path, image)
}

/**
 * @brief Creates a texture from decoded image data.
 */
func (ts *TextureSystem) AddImage(name string, image *metadata.ImageResourceData) (*metadata.Texture, error) {
	if image.BitsPerPixel != 24 && image.BitsPerPixel != 32 {
		err := fmt.Errorf("image '%s' has %d bits per pixel, 24 or 32 required: %w", name, image.BitsPerPixel, core.ErrUnsupportedFormat)
		core.LogError(err.Error())
		return nil, err
	}

	var components metadata.PixelComponents
	switch image.ChannelCount {
	case 3:
		components = metadata.PixelComponentsRGB
	case 4:
		components = metadata.PixelComponentsRGBA
	default:
		err := fmt.Errorf("image '%s' has %d channels, RGB or RGBA required: %w", name, image.ChannelCount, core.ErrUnsupportedFormat)
		core.LogError(err.Error())
		return nil, err
	}

	t, err := ts.Add(metadata.Texture{
		Name:       name,
		Components: components,
		Datatype:   metadata.PixelDatatypeUint8,
		Width:      image.Width,
		Height:     image.Height,
	}, metadata.TextureOptions{})
	if err != nil {
		return nil, err
	}
	if err := ts.Write(t, image.Pixels); err != nil {
		_ = ts.Remove(t)
		return nil, err
	}
	return t, nil
}

func (ts *TextureSystem) Shutdown() error {
	for _, t := range ts.Textures {
		if err := ts.Remove(t); err != nil {
			return err
		}
	}
	return nil
}
