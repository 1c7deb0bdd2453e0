package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the engine configuration, usually read from ludo.toml.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Application ApplicationConfig `toml:"application"`
	Assets      AssetsConfig      `toml:"assets"`
	Renderer    RendererConfig    `toml:"renderer"`
}

type ApplicationConfig struct {
	Name   string `toml:"name"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	VSync  bool   `toml:"v_sync"`
	// Window disables the platform window when false (headless runs).
	Window bool `toml:"window"`
	// Frames stops the main loop after that many frames. Zero runs until quit.
	Frames uint64 `toml:"frames"`
}

type AssetsConfig struct {
	Folder  string `toml:"folder"`
	Models  string `toml:"models"`
	Shaders string `toml:"shaders"`
	Watch   bool   `toml:"watch"`
}

type RendererConfig struct {
	MaxBonesPerArmature     uint32 `toml:"max_bones_per_armature"`
	MaxBoneWeightsPerVertex uint32 `toml:"max_bone_weights_per_vertex"`
	Samples                 uint32 `toml:"samples"`
}

// ModelsFolder is the folder diffuse texture paths of imported models are
// resolved against.
func (c *Config) ModelsFolder() string {
	return filepath.Join(c.Assets.Folder, c.Assets.Models)
}

func (c *Config) ShadersFolder() string {
	return filepath.Join(c.Assets.Folder, c.Assets.Shaders)
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Application: ApplicationConfig{
			Name:   "astrum",
			Width:  1920,
			Height: 1080,
		},
		Assets: AssetsConfig{
			Folder:  "assets",
			Models:  "models",
			Shaders: "shaders",
		},
		Renderer: RendererConfig{
			MaxBonesPerArmature:     64,
			MaxBoneWeightsPerVertex: 4,
			Samples:                 1,
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. A missing file is not
// an error: the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		LogWarn("config file '%s' not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config: parse %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Renderer.MaxBoneWeightsPerVertex == 0 {
		return nil, fmt.Errorf("config: max_bone_weights_per_vertex must be > 0: %w", ErrValidation)
	}
	return cfg, nil
}
