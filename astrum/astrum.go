// Package astrum is a sample game: a planet with an atmosphere, the models
// of the asset folder circling it and a post-processing chain on top.
package astrum

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/ludo/astrum/postprocessing"
	"github.com/spaghettifunk/ludo/engine"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/systems"
)

type Astrum struct {
	Camera *Camera
	Terra  *Terra
	Models []*Model
	Chain  *postprocessing.Chain

	sm       *systems.SystemManager
	width    uint32
	height   uint32
	elapsed  float64
	msaa     *metadata.FrameBuffer
	textures []*metadata.Texture
}

func New() *Astrum {
	return &Astrum{}
}

// Game returns the engine callbacks of the sample.
func (a *Astrum) Game() *engine.Game {
	return &engine.Game{
		State:        a,
		FnInitialize: a.initialize,
		FnUpdate:     a.update,
		FnRender:     a.render,
		FnOnResize:   a.onResize,
		FnShutdown:   a.shutdown,
	}
}

func (a *Astrum) modelPaths() []string {
	var paths []string
	for _, asset := range a.sm.Assets.Assets(metadata.ResourceTypeModel) {
		paths = append(paths, asset.Path)
	}
	return paths
}

/**
 * @brief Loads the models, sizes and allocates the heaps from everything the
 * sample is about to create, then creates it.
 */
func (a *Astrum) initialize(sm *systems.SystemManager) error {
	a.sm = sm
	a.width = sm.Config.Application.Width
	a.height = sm.Config.Application.Height

	scenes, err := sm.Imports.LoadScenes(a.modelPaths(), sm.Jobs)
	if err != nil {
		return err
	}
	plans, err := planScenes(sm, scenes)
	if err != nil {
		return err
	}

	cameraPosition := math.NewVec3(0, TerraRadius*0.5, CameraDistance)
	near := NearSections(math.NewVec3Zero().Sub(cameraPosition))
	terraIndices, terraVertices, terraSections := TerraCounts(near)

	capacity := Capacity{}
	capacity.AddPostProcessing(BloomIterations)
	capacity.AddMesh(terraIndices, terraVertices, metadata.VertexFormatPN)
	capacity.AddProgram(systems.InstanceSize(metadata.VertexFormatPN, sm.Limits), terraSections)
	capacity.AddScenes(sm, plans)
	capacity.AddBuffer(metadata.ContextSize)
	if err := capacity.Allocate(sm.Heaps); err != nil {
		return err
	}

	a.Camera, err = NewCamera(sm, cameraPosition, math.NewVec3Zero())
	if err != nil {
		return err
	}
	a.Camera.SetViewport(a.width, a.height)

	a.Terra, err = AddTerra(sm, TerraRadius, near)
	if err != nil {
		return err
	}
	core.LogInfo("terra: %d sections, %d in detail", terraSections, a.Terra.NearCount())

	a.Models, err = addModels(sm, plans)
	if err != nil {
		return err
	}

	// created last: a resize releases and recreates them at the end of the heaps
	return a.addRenderTargets()
}

func (a *Astrum) samples() uint32 {
	if samples := a.sm.Config.Renderer.Samples; samples > 1 {
		return samples
	}
	return 1
}

/**
 * @brief Creates the multisampled frame buffer the scene is drawn into and
 * the post-processing chain reading it.
 */
func (a *Astrum) addRenderTargets() error {
	options := metadata.TextureOptions{Samples: a.samples()}
	color, err := a.sm.Textures.Add(metadata.Texture{
		Name:       "msaa_color",
		Components: metadata.PixelComponentsRGBA,
		Datatype:   metadata.PixelDatatypeFloat16,
		Width:      a.width,
		Height:     a.height,
	}, options)
	if err != nil {
		return err
	}
	a.textures = append(a.textures, color)
	depth, err := a.sm.Textures.Add(metadata.Texture{
		Name:       "msaa_depth",
		Components: metadata.PixelComponentsDepth,
		Datatype:   metadata.PixelDatatypeFloat32,
		Width:      a.width,
		Height:     a.height,
	}, options)
	if err != nil {
		return err
	}
	a.textures = append(a.textures, depth)

	a.msaa, err = a.sm.FrameBuffers.Add(metadata.FrameBuffer{
		Name:          "msaa",
		Width:         a.width,
		Height:        a.height,
		ColorTextures: []*metadata.Texture{color},
		DepthTexture:  depth,
	})
	if err != nil {
		return err
	}

	a.Chain, err = postprocessing.NewChain(a.sm, a.sm.Config.ShadersFolder(), a.msaa, a.width, a.height)
	if err != nil {
		return err
	}
	// the first pass resolves the multisampled textures
	if err := a.Chain.AddPass(false); err != nil {
		return err
	}
	if err := a.Chain.AddAtmosphere(math.NewVec3Zero(), TerraRadius, TerraRadius*TerraAtmosphereScale); err != nil {
		return err
	}
	if err := a.Chain.AddBloom(BloomIterations, BloomThreshold); err != nil {
		return err
	}
	if err := a.Chain.AddToneMapping(postprocessing.DefaultExposure); err != nil {
		return err
	}
	return a.Chain.AddPass(true)
}

func (a *Astrum) removeRenderTargets() error {
	var errs []error
	if a.Chain != nil {
		errs = append(errs, a.Chain.Shutdown())
		a.Chain = nil
	}
	if a.msaa != nil {
		errs = append(errs, a.sm.FrameBuffers.Remove(a.msaa))
		a.msaa = nil
	}
	for _, texture := range a.textures {
		errs = append(errs, a.sm.Textures.Remove(texture))
	}
	a.textures = nil
	return errors.Join(errs...)
}

func (a *Astrum) update(deltaTime float64) error {
	a.elapsed += deltaTime
	for _, model := range a.Models {
		if err := model.Update(a.sm, deltaTime, a.elapsed); err != nil {
			return fmt.Errorf("update model %s: %w", model.Name, err)
		}
	}
	return nil
}

/**
 * @brief Draws the scene into the multisampled frame buffer, then runs the
 * post-processing chain which ends on the window.
 */
func (a *Astrum) render(deltaTime float64) error {
	a.sm.Programs.BindContext(a.Camera.Write())
	a.sm.FrameBuffers.Bind(a.msaa)

	a.Terra.Draw(a.sm)
	if err := a.sm.Programs.CommitDrawCommands(a.Terra.Program); err != nil {
		return err
	}
	for _, model := range a.Models {
		model.Draw(a.sm)
	}
	for _, model := range a.Models {
		// programs shared by several models commit once
		if err := a.sm.Programs.CommitDrawCommands(model.Program); err != nil {
			return err
		}
	}
	return a.Chain.Render()
}

/**
 * @brief Follows the window size: the camera aspect and every render target.
 */
func (a *Astrum) onResize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	a.Camera.SetViewport(width, height)
	if width == a.width && height == a.height {
		return nil
	}
	a.width, a.height = width, height
	if err := a.removeRenderTargets(); err != nil {
		return err
	}
	return a.addRenderTargets()
}

func (a *Astrum) shutdown() error {
	if a.sm == nil {
		return nil
	}
	errs := []error{a.removeRenderTargets()}
	if a.Terra != nil {
		errs = append(errs, a.Terra.Remove(a.sm))
	}
	if a.Camera != nil {
		errs = append(errs, a.Camera.Release())
	}
	return errors.Join(errs...)
}
