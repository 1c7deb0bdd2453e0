package metadata

import "fmt"

/**
 * @brief The semantic tag of a vertex component.
 */
type VertexComponentTag byte

const (
	VertexComponentPosition     VertexComponentTag = 'p'
	VertexComponentNormal       VertexComponentTag = 'n'
	VertexComponentColor        VertexComponentTag = 'c'
	VertexComponentTexCoord     VertexComponentTag = 't'
	VertexComponentBoneWeights  VertexComponentTag = 'b'
	VertexComponentFloat        VertexComponentTag = 'f'
	VertexComponentInt          VertexComponentTag = 'i'
	VertexComponentUnsignedInt  VertexComponentTag = 'u'
	vertexComponentElementBytes uint32             = 4
)

/**
 * @brief One entry of a vertex format. Every element is 4 bytes wide.
 */
type VertexComponent struct {
	Tag   VertexComponentTag
	Count uint32
}

// Size returns the size of the component in bytes. A bone weight component
// holds Count indices followed by Count weights.
func (c VertexComponent) Size() uint32 {
	if c.Tag == VertexComponentBoneWeights {
		return 2 * c.Count * vertexComponentElementBytes
	}
	return c.Count * vertexComponentElementBytes
}

// Integer reports whether the component is read as integers on the GPU.
func (c VertexComponent) Integer() bool {
	return c.Tag == VertexComponentInt || c.Tag == VertexComponentUnsignedInt
}

/**
 * @brief An ordered list of vertex components. Size is the vertex stride.
 */
type VertexFormat struct {
	Components []VertexComponent
	Size       uint32

	HasNormal         bool
	HasColor          bool
	HasTextureCoord   bool
	HasBoneWeights    bool
	PositionOffset    uint32
	NormalOffset      uint32
	ColorOffset       uint32
	TextureOffset     uint32
	BoneWeightsOffset uint32
}

/**
 * @brief Describes which channels a vertex format carries besides the position.
 */
type VertexFormatOptions struct {
	Normals      bool
	Colors       bool
	TextureCount uint8
	/** @brief Number of bone index/weight slots; 0 means no skinning data. */
	BoneWeights uint32
}

/**
 * @brief Builds a vertex format from components, computing the stride and the
 * offset of every known channel.
 */
func NewVertexFormatFromComponents(components ...VertexComponent) VertexFormat {
	format := VertexFormat{Components: components}
	for _, c := range components {
		switch c.Tag {
		case VertexComponentPosition:
			format.PositionOffset = format.Size
		case VertexComponentNormal:
			format.HasNormal = true
			format.NormalOffset = format.Size
		case VertexComponentColor:
			format.HasColor = true
			format.ColorOffset = format.Size
		case VertexComponentTexCoord:
			format.HasTextureCoord = true
			format.TextureOffset = format.Size
		case VertexComponentBoneWeights:
			format.HasBoneWeights = true
			format.BoneWeightsOffset = format.Size
		}
		format.Size += c.Size()
	}
	return format
}

// NewVertexFormat builds the position/normal/color/texture/bone layout used
// by meshes and imports.
func NewVertexFormat(options VertexFormatOptions) VertexFormat {
	components := []VertexComponent{{Tag: VertexComponentPosition, Count: 3}}
	if options.Normals {
		components = append(components, VertexComponent{Tag: VertexComponentNormal, Count: 3})
	}
	if options.Colors {
		components = append(components, VertexComponent{Tag: VertexComponentColor, Count: 4})
	}
	if options.TextureCount > 0 {
		components = append(components, VertexComponent{Tag: VertexComponentTexCoord, Count: 2})
	}
	if options.BoneWeights > 0 {
		components = append(components, VertexComponent{Tag: VertexComponentBoneWeights, Count: options.BoneWeights})
	}
	return NewVertexFormatFromComponents(components...)
}

var (
	VertexFormatP   = NewVertexFormat(VertexFormatOptions{})
	VertexFormatPN  = NewVertexFormat(VertexFormatOptions{Normals: true})
	VertexFormatPNC = NewVertexFormat(VertexFormatOptions{Normals: true, Colors: true})
	VertexFormatPNT = NewVertexFormat(VertexFormatOptions{Normals: true, TextureCount: 1})
	VertexFormatPC  = NewVertexFormat(VertexFormatOptions{Colors: true})
	VertexFormatPT  = NewVertexFormat(VertexFormatOptions{TextureCount: 1})
)

/**
 * @brief Returns the components as they are bound to attribute slots: a bone
 * weight component becomes an unsigned int component of indices followed by
 * a float component of weights.
 */
func (f VertexFormat) PhysicalAttributes() []VertexComponent {
	attributes := make([]VertexComponent, 0, len(f.Components)+1)
	for _, c := range f.Components {
		if c.Tag == VertexComponentBoneWeights {
			attributes = append(attributes,
				VertexComponent{Tag: VertexComponentUnsignedInt, Count: c.Count},
				VertexComponent{Tag: VertexComponentFloat, Count: c.Count})
			continue
		}
		attributes = append(attributes, c)
	}
	return attributes
}

// Offset returns the byte offset of the first component with the given tag.
func (f VertexFormat) Offset(tag VertexComponentTag) (uint32, bool) {
	offset := uint32(0)
	for _, c := range f.Components {
		if c.Tag == tag {
			return offset, true
		}
		offset += c.Size()
	}
	return 0, false
}

// BoneWeightCount returns the number of bone slots of the format.
func (f VertexFormat) BoneWeightCount() uint32 {
	for _, c := range f.Components {
		if c.Tag == VertexComponentBoneWeights {
			return c.Count
		}
	}
	return 0
}

// String returns the compact tag notation of the format, e.g. "p3n3t2".
func (f VertexFormat) String() string {
	s := ""
	for _, c := range f.Components {
		s += fmt.Sprintf("%c%d", c.Tag, c.Count)
	}
	return s
}
