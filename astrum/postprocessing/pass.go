package postprocessing

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/**
 * @brief Adds a pass copying the current output into a new frame buffer
 * with a depth attachment, or into the window when final is set. Copying
 * resolves multisampled textures into regular ones.
 */
func (c *Chain) AddPass(final bool) error {
	source := c.Current
	if final {
		c.add("present", func() error {
			return c.sm.FrameBuffers.Blit(source, c.window)
		})
		return nil
	}

	target, err := c.AddFrameBuffer(true, 1)
	if err != nil {
		return err
	}
	c.add(fmt.Sprintf("copy %s", target.Name), func() error {
		return c.sm.FrameBuffers.Blit(source, target)
	})
	c.Current = target
	return nil
}

// sourceColor returns the color texture the next pass reads.
func (c *Chain) sourceColor() (*metadata.Texture, error) {
	if len(c.Current.ColorTextures) == 0 {
		err := fmt.Errorf("frame buffer '%s' has no color attachment: %w", c.Current.Name, core.ErrValidation)
		core.LogError(err.Error())
		return nil, err
	}
	return c.Current.ColorTextures[0], nil
}
