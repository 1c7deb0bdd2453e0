package postprocessing

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
)

/**
 * @brief Adds a pass scattering light through the atmosphere of the planet
 * at center. It reads the color and depth of the current output, so the
 * current output needs a depth attachment.
 */
func (c *Chain) AddAtmosphere(center math.Vec3, planetRadius, atmosphereRadius float32) error {
	if atmosphereRadius <= planetRadius {
		err := fmt.Errorf("atmosphere radius %f must exceed planet radius %f: %w", atmosphereRadius, planetRadius, core.ErrValidation)
		core.LogError(err.Error())
		return err
	}
	color, err := c.sourceColor()
	if err != nil {
		return err
	}
	depth := c.Current.DepthTexture
	if depth == nil {
		err := fmt.Errorf("atmosphere needs the depth of frame buffer '%s': %w", c.Current.Name, core.ErrValidation)
		core.LogError(err.Error())
		return err
	}

	target, err := c.AddFrameBuffer(false, 1)
	if err != nil {
		return err
	}
	p, err := c.addProgram("atmosphere", "atmosphere.frag", color, depth, 1)
	if err != nil {
		return err
	}
	SetParameters(p.program.ShaderBuffer, center.X, center.Y, center.Z, planetRadius, atmosphereRadius)

	c.add("atmosphere", func() error {
		return c.draw(p, target)
	})
	c.Current = target
	return nil
}
