package postprocessing

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/meshes"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/systems"
)

const (
	// VertexShader is shared by every pass: it places the rectangle over the
	// whole target and forwards texture coordinates.
	VertexShader = "postprocessing.vert"

	// Two resident texture handles followed by the float parameters of a pass.
	shaderBufferTextures = 2
	shaderBufferParams   = 8
	ShaderBufferSize     = shaderBufferTextures*8 + shaderBufferParams*4
)

/**
 * @brief A step of the chain. Render draws into the step's target.
 */
type Pass struct {
	Name   string
	Render func() error
}

/**
 * @brief An ordered list of full screen passes. Each pass reads the output
 * of the previous one; the first one reads the source frame buffer.
 */
type Chain struct {
	// Current is the output of the last added pass.
	Current *metadata.FrameBuffer
	Passes  []Pass

	sm           *systems.SystemManager
	shaderFolder string
	mesh         *metadata.Mesh
	window       *metadata.FrameBuffer
	width        uint32
	height       uint32

	programs     []*metadata.RenderProgram
	frameBuffers []*metadata.FrameBuffer
	textures     []*metadata.Texture
}

/**
 * @brief Creates an empty chain reading source. Pass shaders are loaded from
 * shaderFolder.
 */
func NewChain(sm *systems.SystemManager, shaderFolder string, source *metadata.FrameBuffer, width, height uint32) (*Chain, error) {
	if source == nil {
		err := fmt.Errorf("post-processing needs a source frame buffer: %w", core.ErrValidation)
		core.LogError(err.Error())
		return nil, err
	}
	mesh, err := AddRenderMesh(sm)
	if err != nil {
		return nil, err
	}
	return &Chain{
		Current:      source,
		sm:           sm,
		shaderFolder: shaderFolder,
		mesh:         mesh,
		window:       &metadata.FrameBuffer{Name: "window", Width: width, Height: height},
		width:        width,
		height:       height,
	}, nil
}

// RenderMeshCounts returns the indices and vertices AddRenderMesh needs.
func RenderMeshCounts() (uint32, uint32) {
	return meshes.RectangleCounts(1, false)
}

/**
 * @brief Adds the rectangle every pass draws. It covers clip space so the
 * vertex shader can pass positions through untouched.
 */
func AddRenderMesh(sm *systems.SystemManager) (*metadata.Mesh, error) {
	indexCount, vertexCount := RenderMeshCounts()
	mesh, err := sm.Meshes.AddStandaloneMesh("post-processing", metadata.MeshPrimitiveTriangleList, metadata.VertexFormatPT, indexCount, vertexCount)
	if err != nil {
		return nil, err
	}

	options := meshes.NewRectangleOptions()
	options.BottomLeft = math.NewVec3(-1, -1, 0)
	options.Right = math.NewVec3(2, 0, 0)
	options.Top = math.NewVec3(0, 2, 0)

	var indexIndex, vertexIndex uint32
	if err := meshes.Rectangle(mesh, &indexIndex, &vertexIndex, options); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return mesh, nil
}

/**
 * @brief Adds a frame buffer with one half float color texture, and a depth
 * texture when hasDepth is set. textureSize scales the window size.
 */
func (c *Chain) AddFrameBuffer(hasDepth bool, textureSize float32) (*metadata.FrameBuffer, error) {
	width := uint32(float32(c.width) * textureSize)
	height := uint32(float32(c.height) * textureSize)
	if width == 0 || height == 0 {
		err := fmt.Errorf("post-processing frame buffer of %dx%d: %w", width, height, core.ErrInvalidRange)
		core.LogError(err.Error())
		return nil, err
	}

	color, err := c.addTexture(metadata.Texture{
		Components: metadata.PixelComponentsRGBA,
		Datatype:   metadata.PixelDatatypeFloat16,
		Width:      width,
		Height:     height,
	})
	if err != nil {
		return nil, err
	}
	init := metadata.FrameBuffer{Width: width, Height: height, ColorTextures: []*metadata.Texture{color}}
	if hasDepth {
		depth, err := c.addTexture(metadata.Texture{
			Components: metadata.PixelComponentsDepth,
			Datatype:   metadata.PixelDatatypeFloat32,
			Width:      width,
			Height:     height,
		})
		if err != nil {
			return nil, err
		}
		init.DepthTexture = depth
	}

	fb, err := c.sm.FrameBuffers.Add(init)
	if err != nil {
		return nil, err
	}
	c.frameBuffers = append(c.frameBuffers, fb)
	return fb, nil
}

func (c *Chain) addTexture(init metadata.Texture) (*metadata.Texture, error) {
	texture, err := c.sm.Textures.Add(init, metadata.TextureOptions{Clamp: true})
	if err != nil {
		return nil, err
	}
	c.textures = append(c.textures, texture)
	return texture, nil
}

/**
 * @brief Creates the parameter buffer of a pass: two resident texture
 * handles followed by float parameters. The back half is already pushed.
 */
func CreateShaderBuffer(sm *systems.SystemManager, texture0, texture1 uint64) (*memory.DoubleBuffer, error) {
	front, err := sm.Heaps.Get(metadata.HeapInstances)
	if err != nil {
		return nil, err
	}
	back, err := sm.Heaps.Get(metadata.HeapHost)
	if err != nil {
		return nil, err
	}
	buffer, err := memory.NewDoubleBuffer(front, back, ShaderBufferSize)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	data := buffer.Back().MustBytes()
	memory.Write(data, 0, texture0)
	memory.Write(data, 8, texture1)
	buffer.Push()
	return buffer, nil
}

// SetParameters writes the float parameters of a shader buffer.
func SetParameters(buffer *memory.DoubleBuffer, values ...float32) {
	if len(values) > shaderBufferParams {
		panic(fmt.Sprintf("%d shader parameters, at most %d fit", len(values), shaderBufferParams))
	}
	data := buffer.Back().MustBytes()
	for i, value := range values {
		memory.Write(data, uint64(shaderBufferTextures*8+i*4), value)
	}
}

type program struct {
	program  *metadata.RenderProgram
	instance metadata.MeshInstance
}

/**
 * @brief Creates a program drawing the rectangle with fragment. capacity is
 * the number of times the program is drawn per frame.
 */
func (c *Chain) addProgram(name, fragment string, texture0, texture1 *metadata.Texture, capacity uint32) (program, error) {
	handles := [2]uint64{}
	for i, texture := range []*metadata.Texture{texture0, texture1} {
		if texture == nil {
			continue
		}
		handle, err := c.sm.Textures.Handle(texture)
		if err != nil {
			return program{}, err
		}
		handles[i] = handle
	}

	p, err := c.sm.Programs.AddFromFiles(metadata.RenderProgram{
		Name:         name,
		Primitive:    c.mesh.Primitive,
		Format:       c.mesh.Format,
		InstanceSize: metadata.Mat4Size,
		PushOnBind:   true,
	}, filepath.Join(c.shaderFolder, VertexShader), filepath.Join(c.shaderFolder, fragment), capacity)
	if err != nil {
		return program{}, err
	}
	c.programs = append(c.programs, p)

	p.ShaderBuffer, err = CreateShaderBuffer(c.sm, handles[0], handles[1])
	if err != nil {
		return program{}, err
	}
	instance, err := c.sm.Programs.AddInstance(p, c.mesh, 1)
	if err != nil {
		return program{}, err
	}
	return program{program: p, instance: instance}, nil
}

// draw renders the rectangle with p into target. A nil target is the window.
func (c *Chain) draw(p program, target *metadata.FrameBuffer) error {
	c.sm.FrameBuffers.Bind(target)
	c.sm.Programs.Draw(p.program, p.instance)
	return c.sm.Programs.CommitDrawCommands(p.program)
}

func (c *Chain) add(name string, render func() error) {
	c.Passes = append(c.Passes, Pass{Name: name, Render: render})
}

// Render runs every pass in order.
func (c *Chain) Render() error {
	for _, pass := range c.Passes {
		if err := pass.Render(); err != nil {
			return fmt.Errorf("post-processing pass %s: %w", pass.Name, err)
		}
	}
	return nil
}

/**
 * @brief Releases the programs, frame buffers and textures of the chain and
 * its rectangle.
 */
func (c *Chain) Shutdown() error {
	var errs []error
	for _, p := range c.programs {
		errs = append(errs, c.sm.Programs.Remove(p))
	}
	for _, fb := range c.frameBuffers {
		errs = append(errs, c.sm.FrameBuffers.Remove(fb))
	}
	for _, t := range c.textures {
		errs = append(errs, c.sm.Textures.Remove(t))
	}
	if mb, ok := c.sm.Meshes.MeshBuffers[c.mesh.MeshBufferID]; ok {
		errs = append(errs, c.sm.Meshes.RemoveMeshBuffer(mb))
	}
	c.programs, c.frameBuffers, c.textures, c.Passes = nil, nil, nil, nil
	return errors.Join(errs...)
}
