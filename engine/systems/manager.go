package systems

import (
	"errors"
	"runtime"

	"github.com/spaghettifunk/ludo/engine/assets"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

const (
	maxShaderCount  uint32 = 256
	maxProgramCount uint32 = 64
	maxTextureCount uint32 = 256
)

/**
 * @brief Owns every engine system. Heaps are created empty: the game sizes
 * and allocates them once it knows what it is going to load.
 */
type SystemManager struct {
	Config *core.Config
	Limits metadata.RendererLimits

	Heaps        *HeapSystem
	Shaders      *ShaderSystem
	Programs     *RenderProgramSystem
	Meshes       *MeshSystem
	Textures     *TextureSystem
	FrameBuffers *FrameBufferSystem
	Imports      *ImportSystem
	Jobs         *JobSystem
	Assets       *assets.AssetManager
}

func NewSystemManager(config *core.Config, backend renderer.RendererBackend, am *assets.AssetManager) (*SystemManager, error) {
	limits := metadata.RendererLimits{
		MaxBoneWeightsPerVertex: config.Renderer.MaxBoneWeightsPerVertex,
		MaxBonesPerArmature:     config.Renderer.MaxBonesPerArmature,
	}
	sm := &SystemManager{Config: config, Limits: limits, Assets: am}

	var err error
	if sm.Jobs, err = NewJobSystem(runtime.NumCPU(), 0); err != nil {
		return nil, err
	}
	if sm.Heaps, err = NewHeapSystem(backend); err != nil {
		return nil, err
	}
	if sm.Shaders, err = NewShaderSystem(&ShaderSystemConfig{
		MaxShaderCount: maxShaderCount,
		Limits:         limits,
	}, am, backend); err != nil {
		return nil, err
	}
	if sm.Programs, err = NewRenderProgramSystem(&RenderProgramSystemConfig{
		MaxProgramCount: maxProgramCount,
		Limits:          limits,
	}, sm.Heaps, sm.Shaders, backend); err != nil {
		return nil, err
	}
	if sm.Meshes, err = NewMeshSystem(&MeshSystemConfig{Limits: limits}, sm.Heaps); err != nil {
		return nil, err
	}
	if sm.Textures, err = NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: maxTextureCount,
	}, am, backend); err != nil {
		return nil, err
	}
	if sm.FrameBuffers, err = NewFrameBufferSystem(backend); err != nil {
		return nil, err
	}
	if sm.Imports, err = NewImportSystem(&ImportSystemConfig{
		ModelsFolder: config.ModelsFolder(),
		Limits:       limits,
	}, sm.Meshes, sm.Textures, am); err != nil {
		return nil, err
	}
	return sm, nil
}

/**
 * @brief Shuts the systems down in reverse creation order. Every system is
 * shut down even when an earlier one fails.
 */
func (sm *SystemManager) Shutdown() error {
	var errs []error
	errs = append(errs, sm.FrameBuffers.Shutdown())
	errs = append(errs, sm.Textures.Shutdown())
	errs = append(errs, sm.Meshes.Shutdown())
	errs = append(errs, sm.Programs.Shutdown())
	errs = append(errs, sm.Shaders.Shutdown())
	errs = append(errs, sm.Heaps.Shutdown())
	errs = append(errs, sm.Jobs.Shutdown())
	return errors.Join(errs...)
}
