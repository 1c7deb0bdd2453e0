package systems

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/renderer/headless"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/require"
)

// testSystems wires the rendering systems on top of the headless backend.
type testSystems struct {
	backend  *headless.Backend
	heaps    *HeapSystem
	shaders  *ShaderSystem
	programs *RenderProgramSystem
	meshes   *MeshSystem
	textures *TextureSystem
	imports  *ImportSystem
}

func newTestSystems(t *testing.T) *testSystems {
	t.Helper()

	limits := metadata.DefaultRendererLimits()
	s := &testSystems{backend: headless.New()}

	var err error
	s.heaps, err = NewHeapSystem(s.backend)
	require.NoError(t, err)
	for name, size := range map[string]uint64{
		metadata.HeapDrawCommands: 1 << 12,
		metadata.HeapIndices:      1 << 16,
		metadata.HeapVertices:     1 << 20,
		metadata.HeapInstances:    1 << 20,
	} {
		_, err = s.heaps.AllocateVRAM(name, size)
		require.NoError(t, err)
	}
	_, err = s.heaps.AllocateHost(metadata.HeapHost, 1<<20)
	require.NoError(t, err)

	s.shaders, err = NewShaderSystem(&ShaderSystemConfig{MaxShaderCount: 64, Limits: limits}, nil, s.backend)
	require.NoError(t, err)
	s.programs, err = NewRenderProgramSystem(&RenderProgramSystemConfig{MaxProgramCount: 16, Limits: limits}, s.heaps, s.shaders, s.backend)
	require.NoError(t, err)
	s.meshes, err = NewMeshSystem(&MeshSystemConfig{Limits: limits}, s.heaps)
	require.NoError(t, err)
	s.textures, err = NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 16}, nil, s.backend)
	require.NoError(t, err)
	s.imports, err = NewImportSystem(&ImportSystemConfig{ModelsFolder: "assets/models", Limits: limits}, s.meshes, s.textures, nil)
	require.NoError(t, err)

	return s
}
