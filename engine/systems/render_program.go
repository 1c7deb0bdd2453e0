package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/** @brief Configuration for the render program system. */
type RenderProgramSystemConfig struct {
	/** @brief The maximum number of render programs. */
	MaxProgramCount uint32
	Limits          metadata.RendererLimits
}

/**
 * @brief Creates render programs and runs their per-frame command queues.
 * Every program with pending commands is flushed with a single indirect
 * multi-draw.
 */
type RenderProgramSystem struct {
	Config *RenderProgramSystemConfig
	// Programs in creation order. EndFrame commits them in this order.
	Programs []*metadata.RenderProgram

	ids            core.Identifiers
	nextInstanceID uint64
	// shaders compiled on behalf of a program, released with it
	ownedShaders map[uint64][]*metadata.Shader

	heaps        *HeapSystem
	shaderSystem *ShaderSystem
	backend      renderer.RendererBackend
}

func NewRenderProgramSystem(config *RenderProgramSystemConfig, hs *HeapSystem, ss *ShaderSystem, backend renderer.RendererBackend) (*RenderProgramSystem, error) {
	if config.MaxProgramCount == 0 {
		err := fmt.Errorf("NewRenderProgramSystem - config.MaxProgramCount must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &RenderProgramSystem{
		Config:       config,
		ownedShaders: make(map[uint64][]*metadata.Shader),
		heaps:        hs,
		shaderSystem: ss,
		backend:      backend,
	}, nil
}

// InstanceSize returns the per-instance size a program needs for format:
// a transform, a texture handle when the format is textured and the bone
// matrices when it is skinned.
func InstanceSize(format metadata.VertexFormat, limits metadata.RendererLimits) uint32 {
	size := metadata.Mat4Size
	if format.HasTextureCoord {
		size += 16
	}
	if format.HasBoneWeights {
		size += limits.MaxBonesPerArmature * metadata.Mat4Size
	}
	return size
}

/**
 * @brief Creates a program for format. Missing vertex and fragment shaders
 * are generated from the format. capacity bounds both the draw commands per
 * frame and the instance slots.
 */
func (rps *RenderProgramSystem) Add(init metadata.RenderProgram, format metadata.VertexFormat, capacity uint32) (*metadata.RenderProgram, error) {
	program := init
	program.Format = format

	var owned []*metadata.Shader
	if program.VertexShader == nil {
		shader, err := rps.shaderSystem.Generate(metadata.ShaderStageVertex, format)
		if err != nil {
			return nil, err
		}
		program.VertexShader = shader
		owned = append(owned, shader)
	}
	if program.FragmentShader == nil {
		shader, err := rps.shaderSystem.Generate(metadata.ShaderStageFragment, format)
		if err != nil {
			rps.releaseShaders(owned)
			return nil, err
		}
		program.FragmentShader = shader
		owned = append(owned, shader)
	}

	if program.InstanceSize == 0 {
		program.InstanceSize = InstanceSize(format, rps.Config.Limits)
	}

	result, err := rps.create(program, capacity, owned)
	if err != nil {
		rps.releaseShaders(owned)
		return nil, err
	}
	return result, nil
}

/**
 * @brief Creates a program from shader files. Instance buffers are only
 * allocated when init.InstanceSize is set.
 */
func (rps *RenderProgramSystem) AddFromFiles(init metadata.RenderProgram, vertexPath, fragmentPath string, capacity uint32) (*metadata.RenderProgram, error) {
	program := init

	vertex, err := rps.shaderSystem.AddFromFile(metadata.ShaderStageVertex, vertexPath)
	if err != nil {
		return nil, err
	}
	fragment, err := rps.shaderSystem.AddFromFile(metadata.ShaderStageFragment, fragmentPath)
	if err != nil {
		rps.releaseShaders([]*metadata.Shader{vertex})
		return nil, err
	}
	program.VertexShader = vertex
	program.FragmentShader = fragment

	owned := []*metadata.Shader{vertex, fragment}
	result, err := rps.create(program, capacity, owned)
	if err != nil {
		rps.releaseShaders(owned)
		return nil, err
	}
	return result, nil
}

func (rps *RenderProgramSystem) create(program metadata.RenderProgram, capacity uint32, owned []*metadata.Shader) (*metadata.RenderProgram, error) {
	if uint32(len(rps.Programs)) >= rps.Config.MaxProgramCount {
		err := fmt.Errorf("render program system is full (%d programs): %w", rps.Config.MaxProgramCount, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return nil, err
	}

	commands, err := rps.heaps.Get(metadata.HeapDrawCommands)
	if err != nil {
		return nil, err
	}

	p := &program
	p.Capacity = capacity
	p.ActiveCommands = metadata.ActiveCommands{}
	p.InstanceCount = 0

	p.CommandBuffer, err = commands.AllocateAligned(uint64(capacity)*uint64(metadata.DrawCommandSize), 4)
	if err != nil {
		return nil, err
	}

	if p.InstanceSize > 0 {
		if err := rps.allocateInstanceBuffers(p, capacity); err != nil {
			rps.release(p)
			return nil, err
		}
	}

	if err := rps.link(p); err != nil {
		rps.release(p)
		return nil, err
	}

	p.ID = rps.ids.Acquire(p)
	if p.Name == "" {
		p.Name = fmt.Sprintf("render_program_%d", p.ID)
	}
	rps.Programs = append(rps.Programs, p)
	if len(owned) > 0 {
		rps.ownedShaders[p.ID] = owned
	}
	core.LogDebug("render program %s created (format %s, capacity %d, instance size %d)", p.Name, p.Format, capacity, p.InstanceSize)
	return p, nil
}

func (rps *RenderProgramSystem) allocateInstanceBuffers(p *metadata.RenderProgram, capacity uint32) error {
	front, err := rps.heaps.Get(metadata.HeapInstances)
	if err != nil {
		return err
	}
	back, err := rps.heaps.Get(metadata.HeapHost)
	if err != nil {
		return err
	}
	size := uint64(capacity) * uint64(p.InstanceSize)
	// std430 arrays of mat4 need 16 byte alignment
	p.InstanceBufferFront, err = front.AllocateAligned(size, 16)
	if err != nil {
		return err
	}
	p.InstanceBufferBack, err = back.AllocateAligned(size, 16)
	if err != nil {
		return err
	}
	p.InstanceBufferBack.Zero()
	return nil
}

func (rps *RenderProgramSystem) link(p *metadata.RenderProgram) error {
	shaders := []uint32{p.VertexShader.Handle}
	if p.GeometryShader != nil {
		shaders = append(shaders, p.GeometryShader.Handle)
	}
	shaders = append(shaders, p.FragmentShader.Handle)

	handle, log, err := rps.backend.ProgramCreate(shaders)
	if log != "" {
		if err != nil {
			core.LogError("render program link log: %s", log)
		} else {
			core.LogWarn("render program link log: %s", log)
		}
	}
	if err != nil {
		err = fmt.Errorf("failed to link render program '%s': %w", p.Name, wrapLinkage(err))
		core.LogError(err.Error())
		return err
	}
	p.Handle = handle
	return nil
}

// release returns every allocation of the program to its heap.
func (rps *RenderProgramSystem) release(p *metadata.RenderProgram) error {
	var errs []error
	if p.CommandBuffer.Valid() {
		errs = append(errs, p.CommandBuffer.Heap.Deallocate(p.CommandBuffer))
		p.CommandBuffer = memory.Allocation{}
	}
	if p.ShaderBuffer != nil {
		errs = append(errs, p.ShaderBuffer.Release())
		p.ShaderBuffer = nil
	}
	if p.InstanceBufferFront.Valid() {
		errs = append(errs, p.InstanceBufferFront.Heap.Deallocate(p.InstanceBufferFront))
		p.InstanceBufferFront = memory.Allocation{}
	}
	if p.InstanceBufferBack.Valid() {
		errs = append(errs, p.InstanceBufferBack.Heap.Deallocate(p.InstanceBufferBack))
		p.InstanceBufferBack = memory.Allocation{}
	}
	return errors.Join(errs...)
}

func (rps *RenderProgramSystem) releaseShaders(shaders []*metadata.Shader) {
	for _, s := range shaders {
		if err := rps.shaderSystem.Remove(s); err != nil {
			core.LogWarn(err.Error())
		}
	}
}

/**
 * @brief Destroys the program and returns its buffers. The program object is
 * deleted before the shaders it was linked from.
 */
func (rps *RenderProgramSystem) Remove(p *metadata.RenderProgram) error {
	index := -1
	for i, candidate := range rps.Programs {
		if candidate == p {
			index = i
			break
		}
	}
	if index == -1 {
		err := fmt.Errorf("render program '%s': %w", p.Name, core.ErrNotFound)
		core.LogError(err.Error())
		return err
	}

	rps.backend.ProgramDestroy(p.Handle)
	p.Handle = 0

	err := rps.release(p)
	rps.releaseShaders(rps.ownedShaders[p.ID])
	delete(rps.ownedShaders, p.ID)

	rps.Programs = append(rps.Programs[:index], rps.Programs[index+1:]...)
	if releaseErr := rps.ids.Release(p.ID); releaseErr != nil {
		core.LogWarn(releaseErr.Error())
	}
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}

/**
 * @brief Validates and activates the program, pushes its buffers when
 * PushOnBind is set and binds its storage buffers and vertex attributes.
 */
func (rps *RenderProgramSystem) Bind(p *metadata.RenderProgram) error {
	ok, log := rps.backend.ProgramValidate(p.Handle)
	if log != "" {
		core.LogWarn("render program validation log: %s", log)
	}
	if !ok {
		err := fmt.Errorf("failed to validate render program '%s': %w", p.Name, core.ErrLinkage)
		core.LogError(err.Error())
		return err
	}

	rps.backend.ProgramUse(p.Handle)

	if p.PushOnBind {
		rps.Push(p)
	}

	if p.ShaderBuffer != nil {
		front := p.ShaderBuffer.Front()
		rps.backend.BufferBindStorage(metadata.ShaderBufferBinding, front.Heap.Buffer, front.Offset, front.Size)
	}
	if p.InstanceBufferFront.Valid() {
		front := p.InstanceBufferFront
		rps.backend.BufferBindStorage(metadata.InstanceBufferBinding, front.Heap.Buffer, front.Offset, front.Size)
	}

	// programs drawing generated geometry run without mesh heaps
	var indices, vertices uint32
	if heap, ok := rps.heaps.Lookup(metadata.HeapIndices); ok {
		indices = heap.Buffer
	}
	if heap, ok := rps.heaps.Lookup(metadata.HeapVertices); ok {
		vertices = heap.Buffer
	}
	rps.backend.BufferBindGeometry(indices, vertices, p.CommandBuffer.Heap.Buffer)

	offset := uint32(0)
	for index, attribute := range p.Format.PhysicalAttributes() {
		rps.backend.VertexAttribute(uint32(index), attribute, p.Format.Size, offset)
		offset += attribute.Size()
	}
	return nil
}

/**
 * @brief Copies the shader parameters and the instance data to the GPU side.
 */
func (rps *RenderProgramSystem) Push(p *metadata.RenderProgram) {
	if p.ShaderBuffer != nil {
		p.ShaderBuffer.Push()
	}
	if p.InstanceBufferFront.Valid() && p.InstanceBufferBack.Valid() {
		copy(p.InstanceBufferFront.MustBytes(), p.InstanceBufferBack.MustBytes())
	}
}

/**
 * @brief Appends a draw command for the instance. Running past the command
 * buffer capacity is a programming error and panics.
 */
func (rps *RenderProgramSystem) AddDrawCommand(p *metadata.RenderProgram, instance metadata.MeshInstance) {
	position := p.ActiveCommands.Start + p.ActiveCommands.Count
	if position >= p.Capacity {
		panic(fmt.Errorf("render program '%s' command buffer overflow (capacity %d): %w", p.Name, p.Capacity, core.ErrCapacityExceeded))
	}

	command := metadata.DrawCommand{
		IndexCount:    instance.Indices.Count,
		InstanceCount: instance.Instances.Count,
		IndexStart:    instance.Indices.Start,
		VertexStart:   instance.Vertices.Start,
		InstanceStart: instance.Instances.Start,
	}
	command.Encode(p.CommandBuffer.MustBytes(), uint64(position)*uint64(metadata.DrawCommandSize))
	p.ActiveCommands.Count++
}

/**
 * @brief Flushes the pending commands with one indirect multi-draw. Does
 * nothing when no command is pending.
 */
func (rps *RenderProgramSystem) CommitDrawCommands(p *metadata.RenderProgram) error {
	if p.ActiveCommands.Count == 0 {
		return nil
	}

	if err := rps.Bind(p); err != nil {
		return err
	}

	offset := p.CommandBuffer.Offset + uint64(p.ActiveCommands.Start)*uint64(metadata.DrawCommandSize)
	rps.backend.MultiDrawElementsIndirect(p.Primitive, p.CommandBuffer.Heap.Buffer, offset, p.ActiveCommands.Count, metadata.DrawCommandSize)

	p.ActiveCommands.Start += p.ActiveCommands.Count
	p.ActiveCommands.Count = 0
	return nil
}

/**
 * @brief Hands out count consecutive instance slots for mesh.
 */
func (rps *RenderProgramSystem) AddInstance(p *metadata.RenderProgram, mesh *metadata.Mesh, count uint32) (metadata.MeshInstance, error) {
	if p.InstanceCount+count > p.InstanceCapacity() {
		err := fmt.Errorf("render program '%s' has %d of %d instance slots left, %d requested: %w",
			p.Name, p.InstanceCapacity()-p.InstanceCount, p.InstanceCapacity(), count, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return metadata.MeshInstance{}, err
	}

	instance := metadata.MeshInstance{
		MeshID:    mesh.ID,
		ProgramID: p.ID,
		Indices:   mesh.IndexRange(),
		Vertices:  metadata.Range{Start: mesh.BaseVertex, Count: mesh.VertexRange().Count},
		Instances: metadata.Range{Start: p.InstanceCount, Count: count},
	}
	p.InstanceCount += count
	rps.nextInstanceID++
	instance.ID = rps.nextInstanceID

	for i := uint32(0); i < count; i++ {
		rps.SetInstanceTransform(p, instance, i, math.NewMat4Identity())
	}
	return instance, nil
}

func (rps *RenderProgramSystem) instanceBytes(p *metadata.RenderProgram, instance metadata.MeshInstance, index uint32) []byte {
	if index >= instance.Instances.Count {
		panic(fmt.Sprintf("instance index %d out of range for mesh instance of %d", index, instance.Instances.Count))
	}
	slot := uint64(instance.Instances.Start + index)
	size := uint64(p.InstanceSize)
	return p.InstanceBufferBack.MustBytes()[slot*size : (slot+1)*size]
}

// SetInstanceTransform writes the model transform of one instance.
func (rps *RenderProgramSystem) SetInstanceTransform(p *metadata.RenderProgram, instance metadata.MeshInstance, index uint32, transform math.Mat4) {
	memory.WriteMat4(rps.instanceBytes(p, instance, index), 0, transform)
}

// InstanceTransform reads back the model transform of one instance.
func (rps *RenderProgramSystem) InstanceTransform(p *metadata.RenderProgram, instance metadata.MeshInstance, index uint32) math.Mat4 {
	return memory.ReadMat4(rps.instanceBytes(p, instance, index), 0)
}

// SetInstanceTexture writes the resident texture handle of one instance.
func (rps *RenderProgramSystem) SetInstanceTexture(p *metadata.RenderProgram, instance metadata.MeshInstance, index uint32, handle uint64) error {
	offset, ok := p.TextureOffset()
	if !ok {
		err := fmt.Errorf("render program '%s' has no texture coordinates", p.Name)
		core.LogError(err.Error())
		return err
	}
	memory.Write(rps.instanceBytes(p, instance, index), uint64(offset), handle)
	return nil
}

// SetInstanceBones writes the bone matrices of one instance.
func (rps *RenderProgramSystem) SetInstanceBones(p *metadata.RenderProgram, instance metadata.MeshInstance, index uint32, bones []math.Mat4) error {
	offset, ok := p.BonesOffset()
	if !ok {
		err := fmt.Errorf("render program '%s' has no bone weights", p.Name)
		core.LogError(err.Error())
		return err
	}
	if uint32(len(bones)) > rps.Config.Limits.MaxBonesPerArmature {
		err := fmt.Errorf("%d bones exceed the %d bones per armature: %w", len(bones), rps.Config.Limits.MaxBonesPerArmature, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return err
	}
	data := rps.instanceBytes(p, instance, index)
	for i, bone := range bones {
		memory.WriteMat4(data, uint64(offset)+uint64(i)*uint64(metadata.Mat4Size), bone)
	}
	return nil
}

/**
 * @brief Pushes the frame context and binds it for every program drawn
 * afterwards. The context holds the view and projection matrices.
 */
func (rps *RenderProgramSystem) BindContext(context *memory.DoubleBuffer) {
	context.Push()
	front := context.Front()
	rps.backend.BufferBindStorage(metadata.ContextBufferBinding, front.Heap.Buffer, front.Offset, front.Size)
}

/**
 * @brief Starts a frame: every program writes its commands from the start
 * of its command buffer again.
 */
func (rps *RenderProgramSystem) BeginFrame() {
	for _, p := range rps.Programs {
		p.ActiveCommands = metadata.ActiveCommands{}
	}
}

// Draw queues one draw of instance on p.
func (rps *RenderProgramSystem) Draw(p *metadata.RenderProgram, instance metadata.MeshInstance) {
	rps.AddDrawCommand(p, instance)
}

/**
 * @brief Commits every program in creation order.
 */
func (rps *RenderProgramSystem) EndFrame() error {
	for _, p := range rps.Programs {
		if err := rps.CommitDrawCommands(p); err != nil {
			return err
		}
	}
	return nil
}

func (rps *RenderProgramSystem) Shutdown() error {
	for len(rps.Programs) > 0 {
		if err := rps.Remove(rps.Programs[len(rps.Programs)-1]); err != nil {
			return err
		}
	}
	return nil
}
