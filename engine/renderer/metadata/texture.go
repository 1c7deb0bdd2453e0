package metadata

/**
 * @brief Channel layout of a texture.
 */
type PixelComponents int

const (
	PixelComponentsRGB PixelComponents = iota
	PixelComponentsRGBA
	PixelComponentsBGR
	PixelComponentsBGRA
	PixelComponentsDepth
)

// Count returns the number of channels.
func (c PixelComponents) Count() uint32 {
	switch c {
	case PixelComponentsRGB, PixelComponentsBGR:
		return 3
	case PixelComponentsRGBA, PixelComponentsBGRA:
		return 4
	case PixelComponentsDepth:
		return 1
	}
	return 0
}

/**
 * @brief Type of every channel of a texture.
 */
type PixelDatatype int

const (
	PixelDatatypeUint8 PixelDatatype = iota
	PixelDatatypeFloat16
	PixelDatatypeFloat32
)

// Size returns the size of one channel in bytes.
func (d PixelDatatype) Size() uint32 {
	switch d {
	case PixelDatatypeUint8:
		return 1
	case PixelDatatypeFloat16:
		return 2
	case PixelDatatypeFloat32:
		return 4
	}
	return 0
}

/**
 * @brief A GPU-resident pixel store.
 */
type Texture struct {
	ID         uint64
	Name       string
	Components PixelComponents
	Datatype   PixelDatatype
	Width      uint32
	Height     uint32
	/** @brief Backend texture object. */
	Handle uint32
	/** @brief Sample count the storage was created with; 0 or 1 is single sampled. */
	Samples uint32
}

/**
 * @brief Options used when creating the texture storage.
 */
type TextureOptions struct {
	/** @brief Samples > 1 requests multisample storage. */
	Samples uint32
	/** @brief Clamp texture coordinates to the edge. */
	Clamp bool
}

// PixelDepth returns the size of one pixel in bytes.
func (t *Texture) PixelDepth() uint32 {
	return t.Components.Count() * t.Datatype.Size()
}

// DataSize returns the size of the whole pixel store in bytes.
func (t *Texture) DataSize() uint64 {
	return uint64(t.Width) * uint64(t.Height) * uint64(t.PixelDepth())
}

/**
 * @brief Storage format of a texture on the GPU.
 */
type InternalFormat int

const (
	InternalFormatUnknown InternalFormat = iota
	InternalFormatRGB8
	InternalFormatRGB16F
	InternalFormatRGB32F
	InternalFormatRGBA8
	InternalFormatRGBA16F
	InternalFormatRGBA32F
	InternalFormatDepth32F
)

// InternalFormat maps components and datatype to a storage format. Only
// depth textures of 32-bit floats are supported.
func (t *Texture) InternalFormat() (InternalFormat, bool) {
	switch t.Components {
	case PixelComponentsRGB, PixelComponentsBGR:
		switch t.Datatype {
		case PixelDatatypeUint8:
			return InternalFormatRGB8, true
		case PixelDatatypeFloat16:
			return InternalFormatRGB16F, true
		case PixelDatatypeFloat32:
			return InternalFormatRGB32F, true
		}
	case PixelComponentsRGBA, PixelComponentsBGRA:
		switch t.Datatype {
		case PixelDatatypeUint8:
			return InternalFormatRGBA8, true
		case PixelDatatypeFloat16:
			return InternalFormatRGBA16F, true
		case PixelDatatypeFloat32:
			return InternalFormatRGBA32F, true
		}
	case PixelComponentsDepth:
		if t.Datatype == PixelDatatypeFloat32 {
			return InternalFormatDepth32F, true
		}
	}
	return InternalFormatUnknown, false
}
