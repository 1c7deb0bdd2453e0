package postprocessing

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
)

/**
 * @brief Adds a bloom: the pixels brighter than threshold are extracted at
 * half resolution, blurred iterations times with a separable gaussian and
 * added back onto the current output.
 */
func (c *Chain) AddBloom(iterations uint32, threshold float32) error {
	if iterations == 0 {
		err := fmt.Errorf("bloom needs at least one blur iteration: %w", core.ErrValidation)
		core.LogError(err.Error())
		return err
	}
	color, err := c.sourceColor()
	if err != nil {
		return err
	}

	// ping and pong hold the blurred bright pixels in turn
	ping, err := c.AddFrameBuffer(false, 0.5)
	if err != nil {
		return err
	}
	pong, err := c.AddFrameBuffer(false, 0.5)
	if err != nil {
		return err
	}
	target, err := c.AddFrameBuffer(false, 1)
	if err != nil {
		return err
	}

	extract, err := c.addProgram("bloom_threshold", "bloom_threshold.frag", color, nil, 1)
	if err != nil {
		return err
	}
	SetParameters(extract.program.ShaderBuffer, threshold)

	horizontal, err := c.addProgram("bloom_blur_horizontal", "bloom_blur.frag", ping.ColorTextures[0], nil, iterations)
	if err != nil {
		return err
	}
	SetParameters(horizontal.program.ShaderBuffer, 1, 0)

	vertical, err := c.addProgram("bloom_blur_vertical", "bloom_blur.frag", pong.ColorTextures[0], nil, iterations)
	if err != nil {
		return err
	}
	SetParameters(vertical.program.ShaderBuffer, 0, 1)

	combine, err := c.addProgram("bloom_combine", "bloom_combine.frag", color, ping.ColorTextures[0], 1)
	if err != nil {
		return err
	}

	c.add("bloom", func() error {
		if err := c.draw(extract, ping); err != nil {
			return err
		}
		for i := uint32(0); i < iterations; i++ {
			if err := c.draw(horizontal, pong); err != nil {
				return err
			}
			if err := c.draw(vertical, ping); err != nil {
				return err
			}
		}
		return c.draw(combine, target)
	})
	c.Current = target
	return nil
}
