//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderFolder = "assets/shaders"

type Build mg.Namespace

// Builds every package of the module.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "./..."), withStream())
	return err
}

// Checks the shader sources: every file must declare a GLSL version. When
// glslangValidator is installed it also compiles them.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	files, err := shaderFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no shaders found in %s", shaderFolder)
	}
	for _, file := range files {
		source, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(strings.TrimSpace(string(source)), "#version") {
			return fmt.Errorf("%s does not start with a #version directive", file)
		}
	}

	if _, err := exec.LookPath("glslangValidator"); err != nil {
		fmt.Println("glslangValidator not found, skipping compilation")
		return nil
	}
	for _, file := range files {
		if _, err := executeCmd("glslangValidator", withArgs(filepath.Base(file)), withDir(shaderFolder)); err != nil {
			return err
		}
	}
	return nil
}

func shaderFiles() ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.vert", "*.frag", "*.geom"} {
		matches, err := filepath.Glob(filepath.Join(shaderFolder, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}
