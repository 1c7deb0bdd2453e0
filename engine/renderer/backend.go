package renderer

import "github.com/spaghettifunk/ludo/engine/renderer/metadata"

/**
 * @brief The graphics driver boundary. Buffers are persistently mapped: the
 * bytes returned by BufferCreate are the GPU-visible storage.
 */
type RendererBackend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32) error
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error

	BufferCreate(size uint64) (uint32, []byte, error)
	BufferDestroy(buffer uint32) error
	BufferBindStorage(binding, buffer uint32, offset, size uint64)
	/** @brief Binds the index, vertex and draw command buffers used by indirect draws. */
	BufferBindGeometry(indices, vertices, commands uint32)

	ShaderCreate(stage metadata.ShaderStage, source string) (uint32, string, error)
	ShaderDestroy(shader uint32)
	ProgramCreate(shaders []uint32) (uint32, string, error)
	ProgramValidate(program uint32) (bool, string)
	ProgramUse(program uint32)
	ProgramDestroy(program uint32)
	VertexAttribute(index uint32, component metadata.VertexComponent, stride, offset uint32)

	/** @brief Issues count draw commands read from the command buffer starting at offset bytes. */
	MultiDrawElementsIndirect(primitive metadata.MeshPrimitive, commands uint32, offset uint64, count, stride uint32)

	TextureCreate(texture *metadata.Texture, format metadata.InternalFormat, options metadata.TextureOptions) (uint32, error)
	TextureDestroy(texture uint32)
	TextureWrite(texture *metadata.Texture, format metadata.InternalFormat, pixels []byte) error
	TextureRead(texture *metadata.Texture) ([]byte, error)
	TextureResidentHandle(texture uint32) (uint64, error)
	TextureReleaseHandle(handle uint64)

	FrameBufferCreate(frameBuffer *metadata.FrameBuffer) (uint32, error)
	FrameBufferDestroy(frameBuffer uint32)
	/** @brief Binds the frame buffer for drawing and clears it; 0 is the window. */
	FrameBufferUseAndClear(frameBuffer uint32)
	FrameBufferBlit(source, destination *metadata.FrameBuffer)
}
