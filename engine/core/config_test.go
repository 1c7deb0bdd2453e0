package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ludo.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[application]
width = 640
frames = 10

[renderer]
samples = 4
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint32(640), cfg.Application.Width)
	assert.Equal(t, uint32(1080), cfg.Application.Height)
	assert.Equal(t, uint64(10), cfg.Application.Frames)
	assert.Equal(t, uint32(4), cfg.Renderer.Samples)
	assert.Equal(t, uint32(4), cfg.Renderer.MaxBoneWeightsPerVertex)
	assert.Equal(t, filepath.Join("assets", "shaders"), cfg.ShadersFolder())
}

func TestLoadConfigRepository(t *testing.T) {
	cfg, err := LoadConfig("../../ludo.toml")
	require.NoError(t, err)
	assert.Equal(t, "astrum", cfg.Application.Name)
	assert.False(t, cfg.Application.Window)
	assert.Equal(t, filepath.Join("assets", "models"), cfg.ModelsFolder())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[application]\nfullscreen = true\n"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsZeroBoneWeights(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[renderer]\nmax_bone_weights_per_vertex = 0\n"))
	assert.ErrorIs(t, err, ErrValidation)
}
