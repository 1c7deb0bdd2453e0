package metadata

import (
	"github.com/spaghettifunk/ludo/engine/memory"
)

/**
 * @brief One indirect draw, laid out as the GPU reads it.
 */
type DrawCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	IndexStart    uint32
	VertexStart   uint32
	InstanceStart uint32
}

/** @brief Size of an encoded draw command in bytes. */
const DrawCommandSize uint32 = 20

// Encode writes the command at offset of dst.
func (c DrawCommand) Encode(dst []byte, offset uint64) {
	memory.Write(dst, offset, c.IndexCount)
	memory.Write(dst, offset+4, c.InstanceCount)
	memory.Write(dst, offset+8, c.IndexStart)
	memory.Write(dst, offset+12, c.VertexStart)
	memory.Write(dst, offset+16, c.InstanceStart)
}

func DecodeDrawCommand(src []byte, offset uint64) DrawCommand {
	return DrawCommand{
		IndexCount:    memory.Read[uint32](src, offset),
		InstanceCount: memory.Read[uint32](src, offset+4),
		IndexStart:    memory.Read[uint32](src, offset+8),
		VertexStart:   memory.Read[uint32](src, offset+12),
		InstanceStart: memory.Read[uint32](src, offset+16),
	}
}

/**
 * @brief The slice of the command buffer written this frame and not yet
 * committed.
 */
type ActiveCommands struct {
	Start uint32
	Count uint32
}

/**
 * @brief A linked shader pipeline with its draw command queue and its
 * per-instance data.
 */
type RenderProgram struct {
	ID   uint64
	Name string
	/** @brief Backend program object. */
	Handle    uint32
	Primitive MeshPrimitive
	Format    VertexFormat

	VertexShader   *Shader
	GeometryShader *Shader
	FragmentShader *Shader

	/** @brief Fixed capacity command buffer from the draw command heap. */
	CommandBuffer  memory.Allocation
	Capacity       uint32
	ActiveCommands ActiveCommands

	/** @brief Optional shader parameters, bound at ShaderBufferBinding. */
	ShaderBuffer *memory.DoubleBuffer

	/** @brief Bytes per instance; computed from the format when zero. */
	InstanceSize        uint32
	InstanceBufferFront memory.Allocation
	InstanceBufferBack  memory.Allocation
	/** @brief Number of instance slots handed out so far. */
	InstanceCount uint32

	/** @brief Push the double buffers every time the program is bound. */
	PushOnBind bool
}

// InstanceCapacity returns how many instances fit in the instance buffers.
func (p *RenderProgram) InstanceCapacity() uint32 {
	if p.InstanceSize == 0 {
		return 0
	}
	return uint32(p.InstanceBufferBack.Size) / p.InstanceSize
}

// TextureOffset returns the byte offset of the texture handle within an
// instance, and false when the format has no texture coordinates.
func (p *RenderProgram) TextureOffset() (uint32, bool) {
	if !p.Format.HasTextureCoord {
		return 0, false
	}
	return Mat4Size, true
}

// BonesOffset returns the byte offset of the bone matrices within an
// instance, and false when the format carries no bone weights.
func (p *RenderProgram) BonesOffset() (uint32, bool) {
	if !p.Format.HasBoneWeights {
		return 0, false
	}
	offset := Mat4Size
	if p.Format.HasTextureCoord {
		offset += 16
	}
	return offset, true
}
