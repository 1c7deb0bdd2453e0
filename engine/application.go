package engine

import (
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer"
)

/**
 * @brief What the engine needs to host a game: its configuration and the
 * graphics backend to drive.
 */
type ApplicationConfig struct {
	Config  *core.Config
	Backend renderer.RendererBackend
}
