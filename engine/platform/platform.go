package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/ludo/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

/**
 * @brief The window of the application. Window events are translated into
 * engine events: a framebuffer resize fires EventCodeResized and Escape
 * fires EventCodeApplicationQuit.
 */
type Platform struct {
	Window *glfw.Window

	events *core.EventSystem
	width  uint32
	height uint32
}

func New(events *core.EventSystem) *Platform {
	return &Platform{events: events}
}

/**
 * @brief Creates the window with an OpenGL 4.6 core context and makes it
 * current on the calling thread.
 */
func (p *Platform) Startup(applicationName string, width, height uint32, vSync bool) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	window.MakeContextCurrent()
	if vSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)

	fbWidth, fbHeight := window.GetFramebufferSize()
	p.width, p.height = uint32(fbWidth), uint32(fbHeight)
	p.Window.Show()

	core.LogInfo("window '%s' created (%dx%d)", applicationName, p.width, p.height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
		glfw.Terminate()
	}
	return nil
}

/**
 * @brief Processes pending window events. Returns false once the window was
 * asked to close.
 */
func (p *Platform) PumpMessages() bool {
	if p.Window == nil {
		return true
	}
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

func (p *Platform) SwapBuffers() {
	if p.Window != nil {
		p.Window.SwapBuffers()
	}
}

// FramebufferSize returns the size of the drawable area in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	return p.width, p.height
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		p.events.Fire(core.EventCodeApplicationQuit, p, core.EventContext{})
		w.SetShouldClose(true)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.width, p.height = uint32(width), uint32(height)
	context := core.EventContext{}
	context.Data.U32[0] = p.width
	context.Data.U32[1] = p.height
	p.events.Fire(core.EventCodeResized, p, context)
}
