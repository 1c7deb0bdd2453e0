package astrum

import (
	"github.com/spaghettifunk/ludo/astrum/postprocessing"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/systems"
)

// instance buffers are 16 byte aligned
const instanceAlignment = 16

/**
 * @brief The storage everything created at startup needs. Heaps never grow,
 * so they are sized from these sums before anything is added to them.
 */
type Capacity struct {
	Commands      uint64
	Indices       uint64
	VertexBytes   uint64
	InstanceBytes uint64
}

/**
 * @brief Counts a mesh buffer. Vertex ranges start on a multiple of their
 * stride, which may skip up to one vertex.
 */
func (c *Capacity) AddMesh(indexCount, vertexCount uint32, format metadata.VertexFormat) {
	c.Indices += uint64(indexCount)
	c.VertexBytes += (uint64(vertexCount) + 1) * uint64(format.Size)
}

// AddProgram counts the command buffer and the instance buffers of a program.
func (c *Capacity) AddProgram(instanceSize, capacity uint32) {
	c.Commands += uint64(capacity)
	if instanceSize > 0 {
		c.InstanceBytes += uint64(instanceSize)*uint64(capacity) + instanceAlignment
	}
}

// AddBuffer counts a double buffer living next to the instance buffers.
func (c *Capacity) AddBuffer(size uint32) {
	c.InstanceBytes += uint64(size) + instanceAlignment
}

/**
 * @brief Counts the post-processing chain astrum builds: atmosphere, bloom
 * with bloomIterations blur passes in each direction and tone mapping.
 */
func (c *Capacity) AddPostProcessing(bloomIterations uint32) {
	indexCount, vertexCount := postprocessing.RenderMeshCounts()
	c.AddMesh(indexCount, vertexCount, metadata.VertexFormatPT)

	// atmosphere, bloom threshold, bloom combine and tone mapping
	for range 4 {
		c.AddProgram(metadata.Mat4Size, 1)
		c.AddBuffer(postprocessing.ShaderBufferSize)
	}
	// horizontal and vertical blur
	for range 2 {
		c.AddProgram(metadata.Mat4Size, bloomIterations)
		c.AddBuffer(postprocessing.ShaderBufferSize)
	}
}

/**
 * @brief Counts one program per vertex format for the imported scenes,
 * drawing every mesh once.
 */
func (c *Capacity) AddScenes(sm *systems.SystemManager, plans []scenePlan) {
	meshes := map[string]uint32{}
	formats := map[string]metadata.VertexFormat{}
	for _, plan := range plans {
		c.AddMesh(plan.options.IndexCount, plan.options.VertexCount, plan.format)
		meshes[plan.format.String()] += plan.meshCount
		formats[plan.format.String()] = plan.format
	}
	for name, format := range formats {
		c.AddProgram(systems.InstanceSize(format, sm.Limits), meshes[name])
	}
}

/**
 * @brief Creates the GPU heaps and the host heap the instance buffers are
 * staged in.
 */
func (c Capacity) Allocate(heaps *systems.HeapSystem) error {
	vram := []struct {
		name string
		size uint64
	}{
		{metadata.HeapDrawCommands, c.Commands * uint64(metadata.DrawCommandSize)},
		{metadata.HeapIndices, c.Indices * uint64(metadata.IndexSize)},
		{metadata.HeapVertices, c.VertexBytes},
		{metadata.HeapInstances, c.InstanceBytes},
	}
	for _, heap := range vram {
		if _, err := heaps.AllocateVRAM(heap.name, heap.size); err != nil {
			return err
		}
	}
	if _, err := heaps.AllocateHost(metadata.HeapHost, c.InstanceBytes); err != nil {
		return err
	}
	core.LogInfo("heaps: %d draw commands, %d indices, %d vertex bytes, %d instance bytes", c.Commands, c.Indices, c.VertexBytes, c.InstanceBytes)
	return nil
}
