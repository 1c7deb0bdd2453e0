package metadata

const (
	/** @brief Number of bone index/weight slots stored with every skinned vertex. */
	DefaultMaxBoneWeightsPerVertex uint32 = 4
	/** @brief Number of bone matrices stored with every skinned instance. */
	DefaultMaxBonesPerArmature uint32 = 64

	/** @brief Size of a 4x4 float matrix in bytes. */
	Mat4Size uint32 = 64
	/** @brief Size of the frame context: view and projection matrices. */
	ContextSize uint32 = 2 * Mat4Size
	/** @brief Size of an index in bytes. Indices are always 32-bit. */
	IndexSize uint32 = 4

	/** @brief Storage buffer binding point of the frame context (camera matrices). */
	ContextBufferBinding uint32 = 0
	/** @brief Storage buffer binding point of the shader parameters. */
	ShaderBufferBinding uint32 = 2
	/** @brief Storage buffer binding point of the per-instance data. */
	InstanceBufferBinding uint32 = 3
)

/** @brief Names of the heaps created at startup. */
const (
	HeapDrawCommands = "ludo::vram_draw_commands"
	HeapIndices      = "ludo::vram_indices"
	HeapVertices     = "ludo::vram_vertices"
	HeapInstances    = "ludo::vram_instances"
	HeapHost         = "ludo::instances"
)

/**
 * @brief Limits that every vertex format and render program is built with.
 */
type RendererLimits struct {
	MaxBoneWeightsPerVertex uint32
	MaxBonesPerArmature     uint32
}

func DefaultRendererLimits() RendererLimits {
	return RendererLimits{
		MaxBoneWeightsPerVertex: DefaultMaxBoneWeightsPerVertex,
		MaxBonesPerArmature:     DefaultMaxBonesPerArmature,
	}
}

/**
 * @brief A render target made of color attachments and an optional depth
 * attachment.
 */
type FrameBuffer struct {
	ID            uint64
	Name          string
	Width         uint32
	Height        uint32
	ColorTextures []*Texture
	DepthTexture  *Texture
	/** @brief Backend object id. */
	Handle uint32
}
