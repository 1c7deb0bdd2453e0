package postprocessing

/**
 * @brief Adds a pass averaging the samples of the multisampled HDR color
 * texture of the current output into a single sampled texture.
 */
func (c *Chain) AddHDRResolve() error {
	color, err := c.sourceColor()
	if err != nil {
		return err
	}
	target, err := c.AddFrameBuffer(false, 1)
	if err != nil {
		return err
	}
	p, err := c.addProgram("hdr_resolve", "hdr_resolve.frag", color, nil, 1)
	if err != nil {
		return err
	}
	samples := color.Samples
	if samples == 0 {
		samples = 1
	}
	SetParameters(p.program.ShaderBuffer, float32(samples))

	c.add("hdr_resolve", func() error {
		return c.draw(p, target)
	})
	c.Current = target
	return nil
}
