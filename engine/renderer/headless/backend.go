package headless

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/**
 * @brief A recorded backend call.
 */
type Call struct {
	Name string
	Args []any
}

/**
 * @brief A recorded indirect multi-draw together with the commands it read.
 */
type DrawCall struct {
	Primitive     metadata.MeshPrimitive
	CommandBuffer uint32
	Offset        uint64
	Count         uint32
	Stride        uint32
	Program       uint32
	Commands      []metadata.DrawCommand
}

type program struct {
	shaders []uint32
}

type texture struct {
	format  metadata.InternalFormat
	samples uint32
	pixels  []byte
}

/**
 * @brief A backend that keeps buffers and textures in host memory and
 * records every call. Shader sources that are empty or contain "#error"
 * fail to compile.
 */
type Backend struct {
	Calls     []Call
	DrawCalls []DrawCall

	buffers      map[uint32][]byte
	shaders      map[uint32]metadata.ShaderStage
	programs     map[uint32]program
	textures     map[uint32]*texture
	handles      map[uint64]uint32
	frameBuffers map[uint32]*metadata.FrameBuffer

	nextID        uint32
	activeProgram uint32
	width         uint32
	height        uint32
	frames        uint64
}

func New() *Backend {
	return &Backend{
		buffers:      make(map[uint32][]byte),
		shaders:      make(map[uint32]metadata.ShaderStage),
		programs:     make(map[uint32]program),
		textures:     make(map[uint32]*texture),
		handles:      make(map[uint64]uint32),
		frameBuffers: make(map[uint32]*metadata.FrameBuffer),
	}
}

func (b *Backend) record(name string, args ...any) {
	b.Calls = append(b.Calls, Call{Name: name, Args: args})
}

func (b *Backend) id() uint32 {
	b.nextID++
	return b.nextID
}

// Count returns how many times the named call was recorded.
func (b *Backend) Count(name string) int {
	n := 0
	for _, c := range b.Calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls, keeping every resource alive.
func (b *Backend) Reset() {
	b.Calls = nil
	b.DrawCalls = nil
}

// Buffer returns the storage of a buffer.
func (b *Backend) Buffer(id uint32) []byte {
	return b.buffers[id]
}

func (b *Backend) Frames() uint64 {
	return b.frames
}

func (b *Backend) Initialize(appName string, appWidth, appHeight uint32) error {
	b.record("Initialize", appName, appWidth, appHeight)
	b.width = appWidth
	b.height = appHeight
	core.LogDebug("headless backend initialized for %s (%dx%d)", appName, appWidth, appHeight)
	return nil
}

func (b *Backend) Shutdown() error {
	b.record("Shutdown")
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	b.record("Resized", width, height)
	b.width = width
	b.height = height
	return nil
}

func (b *Backend) BeginFrame(deltaTime float64) error {
	b.record("BeginFrame", deltaTime)
	return nil
}

func (b *Backend) EndFrame(deltaTime float64) error {
	b.record("EndFrame", deltaTime)
	b.frames++
	return nil
}

func (b *Backend) BufferCreate(size uint64) (uint32, []byte, error) {
	id := b.id()
	b.record("BufferCreate", id, size)
	data := make([]byte, size)
	b.buffers[id] = data
	return id, data, nil
}

func (b *Backend) BufferDestroy(buffer uint32) error {
	b.record("BufferDestroy", buffer)
	if _, ok := b.buffers[buffer]; !ok {
		return fmt.Errorf("unknown buffer %d: %w", buffer, core.ErrNotFound)
	}
	delete(b.buffers, buffer)
	return nil
}

func (b *Backend) BufferBindStorage(binding, buffer uint32, offset, size uint64) {
	b.record("BufferBindStorage", binding, buffer, offset, size)
}

func (b *Backend) BufferBindGeometry(indices, vertices, commands uint32) {
	b.record("BufferBindGeometry", indices, vertices, commands)
}

func (b *Backend) ShaderCreate(stage metadata.ShaderStage, source string) (uint32, string, error) {
	if strings.TrimSpace(source) == "" {
		b.record("ShaderCreate", stage, uint32(0))
		return 0, "0:0: error: empty shader source", fmt.Errorf("%s shader failed to compile: %w", stage, core.ErrLinkage)
	}
	if i := strings.Index(source, "#error"); i >= 0 {
		b.record("ShaderCreate", stage, uint32(0))
		line := strings.Count(source[:i], "\n") + 1
		return 0, fmt.Sprintf("0:%d: error: #error directive", line), fmt.Errorf("%s shader failed to compile: %w", stage, core.ErrLinkage)
	}
	id := b.id()
	b.record("ShaderCreate", stage, id)
	b.shaders[id] = stage
	return id, "", nil
}

func (b *Backend) ShaderDestroy(shader uint32) {
	b.record("ShaderDestroy", shader)
	delete(b.shaders, shader)
}

func (b *Backend) ProgramCreate(shaders []uint32) (uint32, string, error) {
	var hasVertex, hasFragment bool
	for _, s := range shaders {
		stage, ok := b.shaders[s]
		if !ok {
			b.record("ProgramCreate", shaders, uint32(0))
			return 0, fmt.Sprintf("shader %d is not a valid shader object", s), fmt.Errorf("program failed to link: %w", core.ErrLinkage)
		}
		hasVertex = hasVertex || stage == metadata.ShaderStageVertex
		hasFragment = hasFragment || stage == metadata.ShaderStageFragment
	}
	if !hasVertex || !hasFragment {
		b.record("ProgramCreate", shaders, uint32(0))
		return 0, "program needs a vertex and a fragment shader", fmt.Errorf("program failed to link: %w", core.ErrLinkage)
	}
	id := b.id()
	b.record("ProgramCreate", shaders, id)
	b.programs[id] = program{shaders: append([]uint32(nil), shaders...)}
	return id, "", nil
}

func (b *Backend) ProgramValidate(p uint32) (bool, string) {
	b.record("ProgramValidate", p)
	if _, ok := b.programs[p]; !ok {
		return false, fmt.Sprintf("program %d does not exist", p)
	}
	return true, ""
}

func (b *Backend) ProgramUse(p uint32) {
	b.record("ProgramUse", p)
	b.activeProgram = p
}

func (b *Backend) ProgramDestroy(p uint32) {
	b.record("ProgramDestroy", p)
	delete(b.programs, p)
	if b.activeProgram == p {
		b.activeProgram = 0
	}
}

func (b *Backend) VertexAttribute(index uint32, component metadata.VertexComponent, stride, offset uint32) {
	b.record("VertexAttribute", index, component, stride, offset)
}

func (b *Backend) MultiDrawElementsIndirect(primitive metadata.MeshPrimitive, commands uint32, offset uint64, count, stride uint32) {
	b.record("MultiDrawElementsIndirect", primitive, commands, offset, count, stride)

	draw := DrawCall{
		Primitive:     primitive,
		CommandBuffer: commands,
		Offset:        offset,
		Count:         count,
		Stride:        stride,
		Program:       b.activeProgram,
	}
	data := b.buffers[commands]
	for i := uint32(0); i < count; i++ {
		at := offset + uint64(i)*uint64(stride)
		if at+uint64(metadata.DrawCommandSize) > uint64(len(data)) {
			break
		}
		draw.Commands = append(draw.Commands, metadata.DecodeDrawCommand(data, at))
	}
	b.DrawCalls = append(b.DrawCalls, draw)
}

func (b *Backend) TextureCreate(t *metadata.Texture, format metadata.InternalFormat, options metadata.TextureOptions) (uint32, error) {
	id := b.id()
	b.record("TextureCreate", id, format, options)
	b.textures[id] = &texture{format: format, samples: options.Samples}
	return id, nil
}

func (b *Backend) TextureDestroy(t uint32) {
	b.record("TextureDestroy", t)
	delete(b.textures, t)
}

func (b *Backend) TextureWrite(t *metadata.Texture, format metadata.InternalFormat, pixels []byte) error {
	b.record("TextureWrite", t.Handle, len(pixels))
	tex, ok := b.textures[t.Handle]
	if !ok {
		return fmt.Errorf("unknown texture %d: %w", t.Handle, core.ErrNotFound)
	}
	if uint64(len(pixels)) != t.DataSize() {
		return fmt.Errorf("texture %d expects %d bytes, got %d: %w", t.Handle, t.DataSize(), len(pixels), core.ErrInvalidRange)
	}
	tex.format = format
	tex.pixels = append(tex.pixels[:0], pixels...)
	return nil
}

func (b *Backend) TextureRead(t *metadata.Texture) ([]byte, error) {
	b.record("TextureRead", t.Handle)
	tex, ok := b.textures[t.Handle]
	if !ok {
		return nil, fmt.Errorf("unknown texture %d: %w", t.Handle, core.ErrNotFound)
	}
	out := make([]byte, t.DataSize())
	copy(out, tex.pixels)
	return out, nil
}

func (b *Backend) TextureResidentHandle(t uint32) (uint64, error) {
	if _, ok := b.textures[t]; !ok {
		return 0, fmt.Errorf("unknown texture %d: %w", t, core.ErrNotFound)
	}
	handle := uint64(t)<<32 | uint64(b.id())
	b.record("TextureResidentHandle", t, handle)
	b.handles[handle] = t
	return handle, nil
}

func (b *Backend) TextureReleaseHandle(handle uint64) {
	b.record("TextureReleaseHandle", handle)
	delete(b.handles, handle)
}

// ResidentHandles returns the number of handles currently resident.
func (b *Backend) ResidentHandles() int {
	return len(b.handles)
}

func (b *Backend) FrameBufferCreate(fb *metadata.FrameBuffer) (uint32, error) {
	for _, t := range fb.ColorTextures {
		if _, ok := b.textures[t.Handle]; !ok {
			return 0, fmt.Errorf("frame buffer color attachment %d: %w", t.Handle, core.ErrNotFound)
		}
	}
	id := b.id()
	b.record("FrameBufferCreate", id, fb.Width, fb.Height)
	b.frameBuffers[id] = fb
	return id, nil
}

func (b *Backend) FrameBufferDestroy(fb uint32) {
	b.record("FrameBufferDestroy", fb)
	delete(b.frameBuffers, fb)
}

func (b *Backend) FrameBufferUseAndClear(fb uint32) {
	b.record("FrameBufferUseAndClear", fb)
}

func (b *Backend) FrameBufferBlit(source, destination *metadata.FrameBuffer) {
	b.record("FrameBufferBlit", source.Handle, destination.Handle)
}
