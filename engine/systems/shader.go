package systems

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/assets"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief The maximum number of shaders held in the system. */
	MaxShaderCount uint32
	/** @brief Limits baked into generated shaders. */
	Limits metadata.RendererLimits
}

type ShaderSystem struct {
	// This system's configuration.
	Config *ShaderSystemConfig
	// A collection of created shaders, by id.
	Shaders map[uint64]*metadata.Shader

	ids          core.Identifiers
	assetManager *assets.AssetManager
	backend      renderer.RendererBackend
}

func NewShaderSystem(config *ShaderSystemConfig, am *assets.AssetManager, backend renderer.RendererBackend) (*ShaderSystem, error) {
	if config.MaxShaderCount == 0 {
		err := fmt.Errorf("NewShaderSystem - config.MaxShaderCount must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &ShaderSystem{
		Config:       config,
		Shaders:      make(map[uint64]*metadata.Shader),
		assetManager: am,
		backend:      backend,
	}, nil
}

/**
 * @brief Compiles source for the given stage. The compiler log is reported
 * as a warning on success and as an error on failure.
 */
func (ss *ShaderSystem) Add(stage metadata.ShaderStage, name, source string) (*metadata.Shader, error) {
	if uint32(len(ss.Shaders)) >= ss.Config.MaxShaderCount {
		err := fmt.Errorf("shader system is full (%d shaders): %w", ss.Config.MaxShaderCount, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return nil, err
	}

	handle, log, err := ss.backend.ShaderCreate(stage, source)
	if err != nil {
		if log != "" {
			core.LogError("%s shader '%s' compile log: %s", stage, name, log)
		}
		err = fmt.Errorf("failed to compile %s shader '%s': %w", stage, name, wrapLinkage(err))
		core.LogError(err.Error())
		return nil, err
	}
	if log != "" {
		core.LogWarn("%s shader '%s' compile log: %s", stage, name, log)
	}

	shader := &metadata.Shader{
		Name:   name,
		Stage:  stage,
		Source: source,
		Handle: handle,
	}
	shader.ID = ss.ids.Acquire(shader)
	ss.Shaders[shader.ID] = shader
	return shader, nil
}

/**
 * @brief Compiles the shader stored at path, resolved through the asset manager.
 */
func (ss *ShaderSystem) AddFromFile(stage metadata.ShaderStage, path string) (*metadata.Shader, error) {
	if ss.assetManager == nil {
		err := fmt.Errorf("cannot load shader '%s' without an asset manager", path)
		core.LogError(err.Error())
		return nil, err
	}
	resource, err := ss.assetManager.LoadAsset(path, metadata.ResourceTypeShader, nil)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	source, ok := resource.Data.(string)
	if !ok {
		err := fmt.Errorf("shader resource '%s' does not hold source text", path)
		core.LogError(err.Error())
		return nil, err
	}
	return ss.Add(stage, path, source)
}

/**
 * @brief Generates and compiles the default shader of a stage for a format.
 */
func (ss *ShaderSystem) Generate(stage metadata.ShaderStage, format metadata.VertexFormat) (*metadata.Shader, error) {
	source, err := GenerateShaderSource(stage, format, ss.Config.Limits)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return ss.Add(stage, fmt.Sprintf("generated_%s_%s", stage, format), source)
}

func (ss *ShaderSystem) Remove(shader *metadata.Shader) error {
	if shader == nil {
		return nil
	}
	if _, ok := ss.Shaders[shader.ID]; !ok {
		err := fmt.Errorf("shader %d: %w", shader.ID, core.ErrNotFound)
		core.LogError(err.Error())
		return err
	}
	ss.backend.ShaderDestroy(shader.Handle)
	delete(ss.Shaders, shader.ID)
	if err := ss.ids.Release(shader.ID); err != nil {
		core.LogWarn(err.Error())
	}
	shader.Handle = 0
	return nil
}

/**
 * @brief Shuts down the shader system, destroying every shader left.
 */
func (ss *ShaderSystem) Shutdown() error {
	for _, shader := range ss.Shaders {
		ss.backend.ShaderDestroy(shader.Handle)
	}
	ss.Shaders = make(map[uint64]*metadata.Shader)
	return nil
}
