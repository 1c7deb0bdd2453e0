//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Checks the shaders and runs the astrum sample.
func (Run) Astrum() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run astrum...")
	if _, err := executeCmd("go", withArgs("run", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the configured number of frames and writes the last one to
// astrum.webp.
func (Run) Screenshot() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("run", ".", "-screenshot", "astrum.webp"), withStream())
	return err
}
