package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/ludo/engine/assets"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/platform"
	"github.com/spaghettifunk/ludo/engine/renderer"
	"github.com/spaghettifunk/ludo/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.Config
	isRunning     atomic.Bool
	isSuspended   bool
	events        *core.EventSystem
	platform      *platform.Platform
	renderer      *renderer.Renderer
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64
	frameCount    uint64
}

func New(g *Game, app *ApplicationConfig) (*Engine, error) {
	if app == nil || app.Backend == nil {
		err := fmt.Errorf("engine needs a renderer backend: %w", core.ErrValidation)
		core.LogError(err.Error())
		return nil, err
	}
	config := app.Config
	if config == nil {
		config = core.DefaultConfig()
	}
	core.SetLogLevel(config.LogLevel)

	events := core.NewEventSystem()
	am, err := assets.NewAssetManager(config.Assets.Folder, events)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	sm, err := systems.NewSystemManager(config, app.Backend, am)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		config:        config,
		events:        events,
		platform:      platform.New(events),
		renderer:      renderer.NewRenderer(app.Backend),
		assetManager:  am,
		systemManager: sm,
		width:         config.Application.Width,
		height:        config.Application.Height,
		clock:         core.NewClock(),
		metrics:       core.NewMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EventCodeApplicationQuit, e, e.onEvent)
	e.events.Register(core.EventCodeResized, e, e.onResized)

	app := e.config.Application
	if app.Window {
		if err := e.platform.Startup(app.Name, app.Width, app.Height, app.VSync); err != nil {
			return err
		}
		e.width, e.height = e.platform.FramebufferSize()
	}
	if err := e.renderer.Initialize(app.Name, e.width, e.height); err != nil {
		return err
	}
	if err := e.assetManager.Initialize(e.config.Assets.Watch); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.systemManager); err != nil {
			core.LogError("game initialization failed: %s", err)
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

/**
 * @brief Runs frames until the window closes, a quit event arrives, Stop is
 * called or the configured frame count is reached.
 */
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		err := fmt.Errorf("engine must be initialized before it runs")
		core.LogError(err.Error())
		return err
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.frame(delta); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.renderer.FrameNumber(), err)
			e.isRunning.Store(false)
			return err
		}

		if e.metrics.Update(delta) {
			core.LogDebug("fps: %.0f, frame time: %.3f ms", e.metrics.FPSValue(), e.metrics.FrameTime())
		}
		e.lastTime = currentTime

		e.frameCount++
		if limit := e.config.Application.Frames; limit > 0 && e.frameCount >= limit {
			e.isRunning.Store(false)
		}
	}
	return nil
}

func (e *Engine) frame(delta float64) error {
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return err
		}
	}

	if err := e.renderer.BeginFrame(delta); err != nil {
		return err
	}
	e.systemManager.Programs.BeginFrame()

	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(delta); err != nil {
			// close the frame so the backend is left in a usable state
			_ = e.renderer.EndFrame(delta)
			return err
		}
	}

	if err := e.systemManager.Programs.EndFrame(); err != nil {
		_ = e.renderer.EndFrame(delta)
		return err
	}
	if err := e.renderer.EndFrame(delta); err != nil {
		return err
	}
	e.platform.SwapBuffers()
	return nil
}

// Stop asks the running loop to return after the current frame. Safe to
// call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	errs = append(errs, e.assetManager.Shutdown())
	errs = append(errs, e.systemManager.Shutdown())
	errs = append(errs, e.renderer.Shutdown())
	errs = append(errs, e.platform.Shutdown())
	e.events.Unregister(core.EventCodeApplicationQuit, e)
	e.events.Unregister(core.EventCodeResized, e)

	e.currentStage = EngineStageUninitialized
	if err := errors.Join(errs...); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}

// Events returns the event system the platform and the asset watcher fire
// into.
func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) Systems() *systems.SystemManager {
	return e.systemManager
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	switch code {
	case core.EventCodeApplicationQuit:
		core.LogInfo("EventCodeApplicationQuit received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	width := context.Data.U32[0]
	height := context.Data.U32[1]

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.renderer.OnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}
