package renderer

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
)

type RendererType uint8

const (
	Headless RendererType = iota
	OpenGL
)

/**
 * @brief Frame bracketing around the backend. Owns the frame counter used
 * for diagnostics.
 */
type Renderer struct {
	backend     RendererBackend
	frameNumber uint64
	inFrame     bool
}

func NewRenderer(backend RendererBackend) *Renderer {
	return &Renderer{backend: backend}
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) Initialize(appName string, appWidth, appHeight uint32) error {
	if err := r.backend.Initialize(appName, appWidth, appHeight); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

func (r *Renderer) OnResize(width, height uint32) error {
	return r.backend.Resized(width, height)
}

func (r *Renderer) BeginFrame(deltaTime float64) error {
	if r.inFrame {
		err := fmt.Errorf("frame %d already started", r.frameNumber)
		core.LogError(err.Error())
		return err
	}
	if err := r.backend.BeginFrame(deltaTime); err != nil {
		core.LogError(err.Error())
		return err
	}
	r.inFrame = true
	return nil
}

func (r *Renderer) EndFrame(deltaTime float64) error {
	if !r.inFrame {
		err := fmt.Errorf("frame %d was never started", r.frameNumber)
		core.LogError(err.Error())
		return err
	}
	r.inFrame = false
	r.frameNumber++
	if err := r.backend.EndFrame(deltaTime); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return err
	}
	return nil
}
