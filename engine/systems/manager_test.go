package systems

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/headless"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemManagerLifecycle(t *testing.T) {
	config := core.DefaultConfig()
	backend := headless.New()

	sm, err := NewSystemManager(config, backend, nil)
	require.NoError(t, err)
	assert.Equal(t, config.Renderer.MaxBonesPerArmature, sm.Limits.MaxBonesPerArmature)
	assert.Equal(t, config.ModelsFolder(), sm.Imports.Config.ModelsFolder)

	_, err = sm.Heaps.AllocateVRAM(metadata.HeapDrawCommands, 1<<10)
	require.NoError(t, err)
	_, err = sm.Heaps.AllocateVRAM(metadata.HeapInstances, 1<<16)
	require.NoError(t, err)
	_, err = sm.Heaps.AllocateHost(metadata.HeapHost, 1<<16)
	require.NoError(t, err)

	_, err = sm.Programs.Add(metadata.RenderProgram{Name: "pn"}, metadata.VertexFormatPN, 4)
	require.NoError(t, err)

	require.NoError(t, sm.Shutdown())
	assert.Empty(t, sm.Programs.Programs)
	assert.Empty(t, sm.Shaders.Shaders)
	assert.Equal(t, 2, backend.Count("BufferDestroy"))
}

func TestSystemManagerRejectsZeroBoneWeights(t *testing.T) {
	config := core.DefaultConfig()
	config.Renderer.MaxBoneWeightsPerVertex = 0

	_, err := NewSystemManager(config, headless.New(), nil)
	assert.Error(t, err)
}
