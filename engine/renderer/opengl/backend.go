package opengl

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

const bufferFlags = gl.MAP_READ_BIT | gl.MAP_WRITE_BIT | gl.MAP_PERSISTENT_BIT | gl.MAP_COHERENT_BIT

type frameBuffer struct {
	width  int32
	height int32
}

/**
 * @brief OpenGL 4.5 backend. Buffers are persistently mapped storage,
 * textures are sampled through bindless handles and every draw goes through
 * glMultiDrawElementsIndirect. The context must be current on the calling
 * thread before Initialize.
 */
type Backend struct {
	vao          uint32
	width        int32
	height       int32
	vertices     uint32
	attributes   uint32
	frameBuffers map[uint32]frameBuffer
	multisampled map[uint32]bool
}

func New() *Backend {
	return &Backend{
		frameBuffers: make(map[uint32]frameBuffer),
		multisampled: make(map[uint32]bool),
	}
}

func (b *Backend) Initialize(appName string, appWidth, appHeight uint32) error {
	if err := gl.Init(); err != nil {
		core.LogError("failed to initialize OpenGL: %s", err)
		return err
	}
	core.LogInfo("OpenGL %s on %s", gl.GoStr(gl.GetString(gl.VERSION)), gl.GoStr(gl.GetString(gl.RENDERER)))

	gl.CreateVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)
	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0, 0, 0, 1)
	b.width, b.height = int32(appWidth), int32(appHeight)
	core.LogDebug("OpenGL backend initialized for %s (%dx%d)", appName, appWidth, appHeight)
	return nil
}

func (b *Backend) Shutdown() error {
	if b.vao != 0 {
		gl.DeleteVertexArrays(1, &b.vao)
		b.vao = 0
	}
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	b.width, b.height = int32(width), int32(height)
	return nil
}

func (b *Backend) BeginFrame(deltaTime float64) error {
	return nil
}

func (b *Backend) EndFrame(deltaTime float64) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("OpenGL error 0x%x: %w", code, core.ErrBackend)
	}
	return nil
}

func (b *Backend) BufferCreate(size uint64) (uint32, []byte, error) {
	var buffer uint32
	gl.CreateBuffers(1, &buffer)
	gl.NamedBufferStorage(buffer, int(size), nil, bufferFlags)
	ptr := gl.MapNamedBufferRange(buffer, 0, int(size), bufferFlags)
	if ptr == nil {
		gl.DeleteBuffers(1, &buffer)
		return 0, nil, fmt.Errorf("failed to map a buffer of %d bytes: %w", size, core.ErrBackend)
	}
	return buffer, unsafe.Slice((*byte)(ptr), size), nil
}

func (b *Backend) BufferDestroy(buffer uint32) error {
	gl.UnmapNamedBuffer(buffer)
	gl.DeleteBuffers(1, &buffer)
	return nil
}

func (b *Backend) BufferBindStorage(binding, buffer uint32, offset, size uint64) {
	gl.BindBufferRange(gl.SHADER_STORAGE_BUFFER, binding, buffer, int(offset), int(size))
}

func (b *Backend) BufferBindGeometry(indices, vertices, commands uint32) {
	gl.VertexArrayElementBuffer(b.vao, indices)
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, commands)
	b.vertices = vertices
}

var shaderTypes = map[metadata.ShaderStage]uint32{
	metadata.ShaderStageVertex:   gl.VERTEX_SHADER,
	metadata.ShaderStageGeometry: gl.GEOMETRY_SHADER,
	metadata.ShaderStageFragment: gl.FRAGMENT_SHADER,
	metadata.ShaderStageCompute:  gl.COMPUTE_SHADER,
}

func (b *Backend) ShaderCreate(stage metadata.ShaderStage, source string) (uint32, string, error) {
	shaderType, ok := shaderTypes[stage]
	if !ok {
		return 0, "", fmt.Errorf("shader stage %d: %w", stage, core.ErrUnsupportedFormat)
	}
	shader := gl.CreateShader(shaderType)
	sources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, sources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	log := shaderLog(shader)
	if status == gl.FALSE {
		gl.DeleteShader(shader)
		return 0, log, fmt.Errorf("shader failed to compile: %w", core.ErrLinkage)
	}
	return shader, log, nil
}

func shaderLog(shader uint32) string {
	var length int32
	gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &length)
	if length == 0 {
		return ""
	}
	log := strings.Repeat("\x00", int(length+1))
	gl.GetShaderInfoLog(shader, length, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func programLog(program uint32) string {
	var length int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &length)
	if length == 0 {
		return ""
	}
	log := strings.Repeat("\x00", int(length+1))
	gl.GetProgramInfoLog(program, length, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func (b *Backend) ShaderDestroy(shader uint32) {
	gl.DeleteShader(shader)
}

func (b *Backend) ProgramCreate(shaders []uint32) (uint32, string, error) {
	program := gl.CreateProgram()
	for _, s := range shaders {
		gl.AttachShader(program, s)
	}
	gl.LinkProgram(program)
	for _, s := range shaders {
		gl.DetachShader(program, s)
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	log := programLog(program)
	if status == gl.FALSE {
		gl.DeleteProgram(program)
		return 0, log, fmt.Errorf("program failed to link: %w", core.ErrLinkage)
	}
	return program, log, nil
}

func (b *Backend) ProgramValidate(program uint32) (bool, string) {
	gl.ValidateProgram(program)
	var status int32
	gl.GetProgramiv(program, gl.VALIDATE_STATUS, &status)
	return status == gl.TRUE, programLog(program)
}

func (b *Backend) ProgramUse(program uint32) {
	gl.UseProgram(program)
}

func (b *Backend) ProgramDestroy(program uint32) {
	gl.DeleteProgram(program)
}

// VertexAttribute describes one attribute of the vertex buffer bound by the
// last BufferBindGeometry. Attribute 0 starts a new layout: attributes left
// over from a wider format are disabled.
func (b *Backend) VertexAttribute(index uint32, component metadata.VertexComponent, stride, offset uint32) {
	if index == 0 {
		for i := uint32(1); i < b.attributes; i++ {
			gl.DisableVertexArrayAttrib(b.vao, i)
		}
		b.attributes = 0
		gl.VertexArrayVertexBuffer(b.vao, 0, b.vertices, 0, int32(stride))
	}
	switch component.Tag {
	case metadata.VertexComponentInt:
		gl.VertexArrayAttribIFormat(b.vao, index, int32(component.Count), gl.INT, offset)
	case metadata.VertexComponentUnsignedInt:
		gl.VertexArrayAttribIFormat(b.vao, index, int32(component.Count), gl.UNSIGNED_INT, offset)
	default:
		gl.VertexArrayAttribFormat(b.vao, index, int32(component.Count), gl.FLOAT, false, offset)
	}
	gl.VertexArrayAttribBinding(b.vao, index, 0)
	gl.EnableVertexArrayAttrib(b.vao, index)
	if index+1 > b.attributes {
		b.attributes = index + 1
	}
}

func primitiveMode(primitive metadata.MeshPrimitive) uint32 {
	switch primitive {
	case metadata.MeshPrimitivePointList:
		return gl.POINTS
	case metadata.MeshPrimitiveLineList:
		return gl.LINES
	case metadata.MeshPrimitiveLineStrip:
		return gl.LINE_STRIP
	case metadata.MeshPrimitiveTriangleStrip:
		return gl.TRIANGLE_STRIP
	}
	return gl.TRIANGLES
}

func (b *Backend) MultiDrawElementsIndirect(primitive metadata.MeshPrimitive, commands uint32, offset uint64, count, stride uint32) {
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, commands)
	gl.MultiDrawElementsIndirect(primitiveMode(primitive), gl.UNSIGNED_INT, gl.PtrOffset(int(offset)), int32(count), int32(stride))
}

var internalFormats = map[metadata.InternalFormat]uint32{
	metadata.InternalFormatRGB8:     gl.RGB8,
	metadata.InternalFormatRGB16F:   gl.RGB16F,
	metadata.InternalFormatRGB32F:   gl.RGB32F,
	metadata.InternalFormatRGBA8:    gl.RGBA8,
	metadata.InternalFormatRGBA16F:  gl.RGBA16F,
	metadata.InternalFormatRGBA32F:  gl.RGBA32F,
	metadata.InternalFormatDepth32F: gl.DEPTH_COMPONENT32F,
}

// pixelFormat returns the client side format and type of the texture data.
func pixelFormat(t *metadata.Texture) (uint32, uint32) {
	format := uint32(gl.RGBA)
	switch t.Components {
	case metadata.PixelComponentsRGB:
		format = gl.RGB
	case metadata.PixelComponentsBGR:
		format = gl.BGR
	case metadata.PixelComponentsBGRA:
		format = gl.BGRA
	case metadata.PixelComponentsDepth:
		format = gl.DEPTH_COMPONENT
	}
	xtype := uint32(gl.UNSIGNED_BYTE)
	switch t.Datatype {
	case metadata.PixelDatatypeFloat16:
		xtype = gl.HALF_FLOAT
	case metadata.PixelDatatypeFloat32:
		xtype = gl.FLOAT
	}
	return format, xtype
}

func (b *Backend) TextureCreate(t *metadata.Texture, format metadata.InternalFormat, options metadata.TextureOptions) (uint32, error) {
	internal, ok := internalFormats[format]
	if !ok {
		return 0, fmt.Errorf("texture format %d: %w", format, core.ErrUnsupportedFormat)
	}

	var texture uint32
	if options.Samples > 1 {
		gl.CreateTextures(gl.TEXTURE_2D_MULTISAMPLE, 1, &texture)
		gl.TextureStorage2DMultisample(texture, int32(options.Samples), internal, int32(t.Width), int32(t.Height), true)
		b.multisampled[texture] = true
		return texture, nil
	}

	gl.CreateTextures(gl.TEXTURE_2D, 1, &texture)
	gl.TextureStorage2D(texture, 1, internal, int32(t.Width), int32(t.Height))
	gl.TextureParameteri(texture, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TextureParameteri(texture, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	wrap := int32(gl.REPEAT)
	if options.Clamp {
		wrap = gl.CLAMP_TO_EDGE
	}
	gl.TextureParameteri(texture, gl.TEXTURE_WRAP_S, wrap)
	gl.TextureParameteri(texture, gl.TEXTURE_WRAP_T, wrap)
	return texture, nil
}

func (b *Backend) TextureDestroy(texture uint32) {
	delete(b.multisampled, texture)
	gl.DeleteTextures(1, &texture)
}

func (b *Backend) TextureWrite(t *metadata.Texture, format metadata.InternalFormat, pixels []byte) error {
	if uint64(len(pixels)) != t.DataSize() {
		return fmt.Errorf("texture %d expects %d bytes, got %d: %w", t.Handle, t.DataSize(), len(pixels), core.ErrInvalidRange)
	}
	if b.multisampled[t.Handle] {
		return fmt.Errorf("multisampled texture %d cannot be written: %w", t.Handle, core.ErrUnsupportedFormat)
	}
	pixelFormat, xtype := pixelFormat(t)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TextureSubImage2D(t.Handle, 0, 0, 0, int32(t.Width), int32(t.Height), pixelFormat, xtype, gl.Ptr(pixels))
	return nil
}

func (b *Backend) TextureRead(t *metadata.Texture) ([]byte, error) {
	if b.multisampled[t.Handle] {
		return nil, fmt.Errorf("multisampled texture %d cannot be read: %w", t.Handle, core.ErrUnsupportedFormat)
	}
	out := make([]byte, t.DataSize())
	if len(out) == 0 {
		return out, nil
	}
	pixelFormat, xtype := pixelFormat(t)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.GetTextureImage(t.Handle, 0, pixelFormat, xtype, int32(len(out)), gl.Ptr(out))
	return out, nil
}

func (b *Backend) TextureResidentHandle(texture uint32) (uint64, error) {
	handle := gl.GetTextureHandleARB(texture)
	if handle == 0 {
		return 0, fmt.Errorf("no bindless handle for texture %d: %w", texture, core.ErrBackend)
	}
	gl.MakeTextureHandleResidentARB(handle)
	return handle, nil
}

func (b *Backend) TextureReleaseHandle(handle uint64) {
	gl.MakeTextureHandleNonResidentARB(handle)
}

func (b *Backend) FrameBufferCreate(fb *metadata.FrameBuffer) (uint32, error) {
	var handle uint32
	gl.CreateFramebuffers(1, &handle)

	attachments := make([]uint32, len(fb.ColorTextures))
	for i, t := range fb.ColorTextures {
		attachments[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
		gl.NamedFramebufferTexture(handle, attachments[i], t.Handle, 0)
	}
	if len(attachments) > 0 {
		gl.NamedFramebufferDrawBuffers(handle, int32(len(attachments)), &attachments[0])
	}
	if fb.DepthTexture != nil {
		gl.NamedFramebufferTexture(handle, gl.DEPTH_ATTACHMENT, fb.DepthTexture.Handle, 0)
	}

	if status := gl.CheckNamedFramebufferStatus(handle, gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &handle)
		return 0, fmt.Errorf("frame buffer '%s' incomplete (0x%x): %w", fb.Name, status, core.ErrBackend)
	}
	b.frameBuffers[handle] = frameBuffer{width: int32(fb.Width), height: int32(fb.Height)}
	return handle, nil
}

func (b *Backend) FrameBufferDestroy(handle uint32) {
	delete(b.frameBuffers, handle)
	gl.DeleteFramebuffers(1, &handle)
}

func (b *Backend) FrameBufferUseAndClear(handle uint32) {
	width, height := b.width, b.height
	if fb, ok := b.frameBuffers[handle]; ok {
		width, height = fb.width, fb.height
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, handle)
	gl.Viewport(0, 0, width, height)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (b *Backend) FrameBufferBlit(source, destination *metadata.FrameBuffer) {
	mask := uint32(gl.COLOR_BUFFER_BIT)
	if source.DepthTexture != nil && destination.DepthTexture != nil {
		mask |= gl.DEPTH_BUFFER_BIT
	}
	filter := uint32(gl.NEAREST)
	if source.Width != destination.Width || source.Height != destination.Height {
		// depth can only be scaled with nearest filtering
		if mask == gl.COLOR_BUFFER_BIT {
			filter = gl.LINEAR
		}
	}
	gl.BlitNamedFramebuffer(source.Handle, destination.Handle,
		0, 0, int32(source.Width), int32(source.Height),
		0, 0, int32(destination.Width), int32(destination.Height),
		mask, filter)
}
