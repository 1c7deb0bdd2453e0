package systems

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/**
 * @brief Render targets: multisampled scene targets and post-processing
 * passes.
 */
type FrameBufferSystem struct {
	FrameBuffers map[uint64]*metadata.FrameBuffer

	ids     core.Identifiers
	backend renderer.RendererBackend
}

func NewFrameBufferSystem(backend renderer.RendererBackend) (*FrameBufferSystem, error) {
	return &FrameBufferSystem{
		FrameBuffers: make(map[uint64]*metadata.FrameBuffer),
		backend:      backend,
	}, nil
}

/**
 * @brief Creates a frame buffer over already created textures. Unnamed
 * frame buffers get a random name.
 */
func (fs *FrameBufferSystem) Add(init metadata.FrameBuffer) (*metadata.FrameBuffer, error) {
	fb := init
	if len(fb.ColorTextures) == 0 && fb.DepthTexture == nil {
		err := fmt.Errorf("frame buffer '%s' has no attachments", fb.Name)
		core.LogError(err.Error())
		return nil, err
	}
	if fb.Name == "" {
		fb.Name = "frame_buffer_" + uuid.NewString()
	}

	handle, err := fs.backend.FrameBufferCreate(&fb)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	fb.Handle = handle

	p := &fb
	p.ID = fs.ids.Acquire(p)
	fs.FrameBuffers[p.ID] = p
	return p, nil
}

func (fs *FrameBufferSystem) Remove(fb *metadata.FrameBuffer) error {
	if _, ok := fs.FrameBuffers[fb.ID]; !ok {
		err := fmt.Errorf("frame buffer %d: %w", fb.ID, core.ErrNotFound)
		core.LogError(err.Error())
		return err
	}
	fs.backend.FrameBufferDestroy(fb.Handle)
	delete(fs.FrameBuffers, fb.ID)
	return fs.ids.Release(fb.ID)
}

// Bind makes fb the draw target and clears it. A nil frame buffer is the window.
func (fs *FrameBufferSystem) Bind(fb *metadata.FrameBuffer) {
	if fb == nil {
		fs.backend.FrameBufferUseAndClear(0)
		return
	}
	fs.backend.FrameBufferUseAndClear(fb.Handle)
}

/**
 * @brief Copies source into destination, resolving multisampled color and
 * scaling when the sizes differ.
 */
func (fs *FrameBufferSystem) Blit(source, destination *metadata.FrameBuffer) error {
	if source == nil || destination == nil {
		err := fmt.Errorf("blit needs a source and a destination: %w", core.ErrInvalidRange)
		core.LogError(err.Error())
		return err
	}
	fs.backend.FrameBufferBlit(source, destination)
	return nil
}

func (fs *FrameBufferSystem) Shutdown() error {
	for _, fb := range fs.FrameBuffers {
		if err := fs.Remove(fb); err != nil {
			return err
		}
	}
	return nil
}
