package systems

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/** @brief Configuration for the mesh system. */
type MeshSystemConfig struct {
	Limits metadata.RendererLimits
}

/**
 * @brief Options of a mesh carved out of a mesh buffer. Ranges are in
 * elements relative to the start of the mesh buffer.
 */
type MeshOptions struct {
	Name     string
	Indices  metadata.Range
	Vertices metadata.Range
	/** @brief Index values count from the first vertex of the mesh buffer
	 * rather than from the first vertex of the mesh. */
	BufferRelativeIndices bool
}

/**
 * @brief Creates mesh buffers in the shared index and vertex heaps, and the
 * meshes that refer to ranges of them.
 */
type MeshSystem struct {
	Config      *MeshSystemConfig
	MeshBuffers map[uint64]*metadata.MeshBuffer
	Meshes      map[uint64]*metadata.Mesh

	bufferIDs core.Identifiers
	meshIDs   core.Identifiers
	heaps     *HeapSystem
}

func NewMeshSystem(config *MeshSystemConfig, hs *HeapSystem) (*MeshSystem, error) {
	if config.Limits.MaxBoneWeightsPerVertex == 0 {
		err := fmt.Errorf("NewMeshSystem - config.Limits.MaxBoneWeightsPerVertex must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &MeshSystem{
		Config:      config,
		MeshBuffers: make(map[uint64]*metadata.MeshBuffer),
		Meshes:      make(map[uint64]*metadata.Mesh),
		heaps:       hs,
	}, nil
}

// Format returns the vertex format a mesh buffer created with options uses.
func (ms *MeshSystem) Format(options metadata.MeshBufferOptions) metadata.VertexFormat {
	bones := uint32(0)
	if options.BoneCount > 0 {
		bones = ms.Config.Limits.MaxBoneWeightsPerVertex
	}
	return metadata.NewVertexFormat(metadata.VertexFormatOptions{
		Normals:      options.Normals,
		Colors:       options.Colors,
		TextureCount: options.TextureCount,
		BoneWeights:  bones,
	})
}

/**
 * @brief Allocates index and vertex storage for options. The vertex range
 * starts on a multiple of the stride so its offset is an element index.
 */
func (ms *MeshSystem) AddMeshBuffer(init metadata.MeshBuffer, options metadata.MeshBufferOptions) (*metadata.MeshBuffer, error) {
	format := ms.Format(options)
	return ms.AddMeshBufferWithFormat(init, format, options.IndexCount, options.VertexCount, options.TextureCount, options.BoneCount)
}

/**
 * @brief Allocates index and vertex storage for an explicit vertex format.
 */
func (ms *MeshSystem) AddMeshBufferWithFormat(init metadata.MeshBuffer, format metadata.VertexFormat, indexCount, vertexCount uint32, textureCount uint8, boneCount uint32) (*metadata.MeshBuffer, error) {
	indexHeap, err := ms.heaps.Get(metadata.HeapIndices)
	if err != nil {
		return nil, err
	}
	vertexHeap, err := ms.heaps.Get(metadata.HeapVertices)
	if err != nil {
		return nil, err
	}

	indices, err := indexHeap.AllocateAligned(uint64(indexCount)*uint64(metadata.IndexSize), uint64(metadata.IndexSize))
	if err != nil {
		return nil, err
	}
	vertices, err := vertexHeap.AllocateAligned(uint64(vertexCount)*uint64(format.Size), uint64(format.Size))
	if err != nil {
		_ = indexHeap.Deallocate(indices)
		return nil, err
	}
	mb := init
	mb.Format = format
	mb.Indices = memory.NewView(indices, uint64(metadata.IndexSize))
	mb.Vertices = memory.NewView(vertices, uint64(format.Size))
	mb.Textures = make([]*metadata.Texture, textureCount)
	mb.BoneCount = boneCount

	p := &mb
	p.ID = ms.bufferIDs.Acquire(p)
	if p.Name == "" {
		p.Name = fmt.Sprintf("mesh_buffer_%d", p.ID)
	}
	ms.MeshBuffers[p.ID] = p
	return p, nil
}

/**
 * @brief Creates a mesh over a range of the mesh buffer.
 */
func (ms *MeshSystem) AddMesh(mb *metadata.MeshBuffer, options MeshOptions) (*metadata.Mesh, error) {
	stride := uint64(mb.Format.Size)
	indices, err := mb.Indices.Slice(uint64(options.Indices.Start)*uint64(metadata.IndexSize), uint64(options.Indices.Count)*uint64(metadata.IndexSize))
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	vertices, err := mb.Vertices.Slice(uint64(options.Vertices.Start)*stride, uint64(options.Vertices.Count)*stride)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	mesh := &metadata.Mesh{
		Name:         options.Name,
		MeshBufferID: mb.ID,
		Primitive:    mb.Primitive,
		Format:       mb.Format,
		Indices:      memory.NewView(indices, uint64(metadata.IndexSize)),
		Vertices:     memory.NewView(vertices, stride),
	}
	if options.BufferRelativeIndices {
		mesh.BaseVertex = uint32(mb.Vertices.Start())
	} else {
		mesh.BaseVertex = uint32(mesh.Vertices.Start())
	}
	mesh.ID = ms.meshIDs.Acquire(mesh)
	if mesh.Name == "" {
		mesh.Name = fmt.Sprintf("%s_mesh_%d", mb.Name, mesh.ID)
	}
	ms.Meshes[mesh.ID] = mesh
	return mesh, nil
}

/**
 * @brief Creates a mesh buffer holding exactly one mesh with the given
 * format and counts.
 */
func (ms *MeshSystem) AddStandaloneMesh(name string, primitive metadata.MeshPrimitive, format metadata.VertexFormat, indexCount, vertexCount uint32) (*metadata.Mesh, error) {
	mb, err := ms.AddMeshBufferWithFormat(metadata.MeshBuffer{Name: name, Primitive: primitive}, format, indexCount, vertexCount, 0, 0)
	if err != nil {
		return nil, err
	}
	return ms.AddMesh(mb, MeshOptions{
		Name:     name,
		Indices:  metadata.Range{Count: indexCount},
		Vertices: metadata.Range{Count: vertexCount},
	})
}

// SetTexture stores texture in a texture slot of the mesh buffer.
func (ms *MeshSystem) SetTexture(mb *metadata.MeshBuffer, texture *metadata.Texture, slot int) error {
	if slot < 0 || slot >= len(mb.Textures) {
		err := fmt.Errorf("mesh buffer '%s' has %d texture slots, slot %d requested: %w", mb.Name, len(mb.Textures), slot, core.ErrInvalidRange)
		core.LogError(err.Error())
		return err
	}
	mb.Textures[slot] = texture
	return nil
}

func (ms *MeshSystem) RemoveMesh(mesh *metadata.Mesh) error {
	if _, ok := ms.Meshes[mesh.ID]; !ok {
		err := fmt.Errorf("mesh %d: %w", mesh.ID, core.ErrNotFound)
		core.LogError(err.Error())
		return err
	}
	delete(ms.Meshes, mesh.ID)
	return ms.meshIDs.Release(mesh.ID)
}

/**
 * @brief Removes the mesh buffer, its meshes and returns its storage.
 */
func (ms *MeshSystem) RemoveMeshBuffer(mb *metadata.MeshBuffer) error {
	if _, ok := ms.MeshBuffers[mb.ID]; !ok {
		err := fmt.Errorf("mesh buffer %d: %w", mb.ID, core.ErrNotFound)
		core.LogError(err.Error())
		return err
	}
	for id, mesh := range ms.Meshes {
		if mesh.MeshBufferID == mb.ID {
			delete(ms.Meshes, id)
			_ = ms.meshIDs.Release(id)
		}
	}
	if mb.Indices.Size > 0 {
		if err := mb.Indices.Heap.Deallocate(mb.Indices.Allocation); err != nil {
			return err
		}
	}
	if mb.Vertices.Size > 0 {
		if err := mb.Vertices.Heap.Deallocate(mb.Vertices.Allocation); err != nil {
			return err
		}
	}
	delete(ms.MeshBuffers, mb.ID)
	return ms.bufferIDs.Release(mb.ID)
}

func (ms *MeshSystem) Shutdown() error {
	for _, mb := range ms.MeshBuffers {
		if err := ms.RemoveMeshBuffer(mb); err != nil {
			return err
		}
	}
	return nil
}
