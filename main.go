/*
Runs the astrum sample on the engine.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/ludo/astrum"
	"github.com/spaghettifunk/ludo/engine"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer"
	"github.com/spaghettifunk/ludo/engine/renderer/headless"
	"github.com/spaghettifunk/ludo/engine/renderer/opengl"
)

func main() {
	configPath := flag.String("config", "ludo.toml", "engine configuration file")
	screenshot := flag.String("screenshot", "", "write the last frame to this WebP file")
	flag.Parse()

	config, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}

	// without a window there is no GL context to draw into
	var backend renderer.RendererBackend = headless.New()
	if config.Application.Window {
		backend = opengl.New()
	}

	sample := astrum.New()
	e, err := engine.New(sample.Game(), &engine.ApplicationConfig{
		Config:  config,
		Backend: backend,
	})
	if err != nil {
		core.LogFatal("failed to create the engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("failed to initialize the engine: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the loop; shutdown happens on this goroutine once Run returns
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if runErr == nil && *screenshot != "" {
		if err := sample.Screenshot(*screenshot); err != nil {
			core.LogError("screenshot: %s", err)
		}
	}
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %s", runErr)
	}
}
