package postprocessing

// DefaultExposure keeps the HDR values as they are before mapping.
const DefaultExposure float32 = 1

/**
 * @brief Adds a pass mapping the HDR output into displayable range with
 * exposure tone mapping and gamma correction.
 */
func (c *Chain) AddToneMapping(exposure float32) error {
	color, err := c.sourceColor()
	if err != nil {
		return err
	}
	target, err := c.AddFrameBuffer(false, 1)
	if err != nil {
		return err
	}
	p, err := c.addProgram("tone_mapping", "tone_mapping.frag", color, nil, 1)
	if err != nil {
		return err
	}
	SetParameters(p.program.ShaderBuffer, exposure, 2.2)

	c.add("tone_mapping", func() error {
		return c.draw(p, target)
	})
	c.Current = target
	return nil
}
