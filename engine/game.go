package engine

import (
	"github.com/spaghettifunk/ludo/engine/systems"
)

/**
 * @brief A game hosted by the engine. Every callback is optional.
 */
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once every system exists and before the first frame.
type Initialize func(sm *systems.SystemManager) error

// Update runs at the start of every frame, outside the render bracket.
type Update func(deltaTime float64) error

// Render queues the draws of the frame. The render programs are committed
// after it returns.
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
