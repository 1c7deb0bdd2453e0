package postprocessing

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/assets"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/headless"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 64
	testHeight = 32
	assetDir   = "../../assets"
	shaderDir  = "../../assets/shaders"
)

func newSystems(t *testing.T) (*systems.SystemManager, *headless.Backend) {
	t.Helper()
	backend := headless.New()
	am, err := assets.NewAssetManager(assetDir, nil)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(false))

	sm, err := systems.NewSystemManager(core.DefaultConfig(), backend, am)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sm.Jobs.Shutdown() })

	for name, size := range map[string]uint64{
		metadata.HeapDrawCommands: 1 << 12,
		metadata.HeapIndices:      1 << 10,
		metadata.HeapVertices:     1 << 12,
		metadata.HeapInstances:    1 << 14,
	} {
		_, err := sm.Heaps.AllocateVRAM(name, size)
		require.NoError(t, err)
	}
	_, err = sm.Heaps.AllocateHost(metadata.HeapHost, 1<<14)
	require.NoError(t, err)
	return sm, backend
}

// msaaSource builds the multisampled frame buffer the scene is drawn into.
func msaaSource(t *testing.T, sm *systems.SystemManager, depth bool) *metadata.FrameBuffer {
	t.Helper()
	options := metadata.TextureOptions{Samples: 4}
	color, err := sm.Textures.Add(metadata.Texture{
		Components: metadata.PixelComponentsRGBA,
		Datatype:   metadata.PixelDatatypeFloat16,
		Width:      testWidth,
		Height:     testHeight,
	}, options)
	require.NoError(t, err)
	init := metadata.FrameBuffer{Name: "msaa", Width: testWidth, Height: testHeight, ColorTextures: []*metadata.Texture{color}}
	if depth {
		init.DepthTexture, err = sm.Textures.Add(metadata.Texture{
			Components: metadata.PixelComponentsDepth,
			Datatype:   metadata.PixelDatatypeFloat32,
			Width:      testWidth,
			Height:     testHeight,
		}, options)
		require.NoError(t, err)
	}
	fb, err := sm.FrameBuffers.Add(init)
	require.NoError(t, err)
	return fb
}

func params(buffer *memory.DoubleBuffer, count int) []float32 {
	values := make([]float32, count)
	for i := range values {
		values[i] = memory.Read[float32](buffer.Front().MustBytes(), uint64(shaderBufferTextures*8+i*4))
	}
	return values
}

func TestRenderMeshCoversClipSpace(t *testing.T) {
	sm, _ := newSystems(t)
	mesh, err := AddRenderMesh(sm)
	require.NoError(t, err)

	indices, vertices := RenderMeshCounts()
	assert.Equal(t, uint64(indices), mesh.Indices.Len())
	assert.Equal(t, uint64(vertices), mesh.Vertices.Len())
	assert.Equal(t, metadata.VertexFormatPT, mesh.Format)

	var corners []math.Vec3
	for i := uint64(0); i < mesh.Vertices.Len(); i++ {
		corners = append(corners, memory.ReadVec3(mesh.Vertices.Element(i), 0))
	}
	assert.Contains(t, corners, math.NewVec3(-1, -1, 0))
	assert.Contains(t, corners, math.NewVec3(1, -1, 0))
	assert.Contains(t, corners, math.NewVec3(1, 1, 0))
	assert.Contains(t, corners, math.NewVec3(-1, 1, 0))
	for _, corner := range corners {
		assert.LessOrEqual(t, corner.X*corner.X, float32(1))
		assert.LessOrEqual(t, corner.Y*corner.Y, float32(1))
	}
}

func TestChainRunsEveryPass(t *testing.T) {
	sm, backend := newSystems(t)
	source := msaaSource(t, sm, true)

	chain, err := NewChain(sm, shaderDir, source, testWidth, testHeight)
	require.NoError(t, err)
	require.NoError(t, chain.AddPass(false))
	assert.NotNil(t, chain.Current.DepthTexture)
	center := math.NewVec3(1, 2, 3)
	require.NoError(t, chain.AddAtmosphere(center, 10, 12))
	require.NoError(t, chain.AddBloom(5, 0.1))
	require.NoError(t, chain.AddToneMapping(DefaultExposure))
	require.NoError(t, chain.AddPass(true))
	assert.Len(t, chain.Passes, 5)
	assert.Len(t, chain.programs, 6)

	backend.Reset()
	sm.Programs.BeginFrame()
	require.NoError(t, chain.Render())
	require.NoError(t, sm.Programs.EndFrame())

	// atmosphere, threshold, 5 x (horizontal, vertical), combine, tone mapping
	assert.Len(t, backend.DrawCalls, 14)
	assert.Equal(t, 2, backend.Count("FrameBufferBlit"))
	assert.Equal(t, 14, backend.Count("FrameBufferUseAndClear"))
	for _, draw := range backend.DrawCalls {
		assert.Equal(t, uint32(1), draw.Count)
	}

	atmosphere := chain.programs[0]
	assert.Equal(t, []float32{1, 2, 3, 10, 12}, params(atmosphere.ShaderBuffer, 5))
	bloomThreshold := chain.programs[1]
	assert.Equal(t, []float32{0.1}, params(bloomThreshold.ShaderBuffer, 1))
	horizontal := chain.programs[2]
	assert.Equal(t, metadata.ActiveCommands{Start: 5, Count: 0}, horizontal.ActiveCommands)
	assert.Equal(t, []float32{1, 0}, params(horizontal.ShaderBuffer, 2))

	last := backend.Calls[len(backend.Calls)-1]
	require.Equal(t, "FrameBufferBlit", last.Name)
	assert.Equal(t, []any{chain.Current.Handle, uint32(0)}, last.Args)

	require.NoError(t, chain.Shutdown())
	assert.Empty(t, sm.Programs.Programs)
	assert.Equal(t, 0, backend.ResidentHandles())
	assert.Len(t, sm.FrameBuffers.FrameBuffers, 1)
}

func TestHDRResolveAveragesSamples(t *testing.T) {
	sm, backend := newSystems(t)
	source := msaaSource(t, sm, false)

	chain, err := NewChain(sm, shaderDir, source, testWidth, testHeight)
	require.NoError(t, err)
	require.NoError(t, chain.AddHDRResolve())
	assert.Nil(t, chain.Current.DepthTexture)

	sm.Programs.BeginFrame()
	require.NoError(t, chain.Render())
	require.Len(t, backend.DrawCalls, 1)

	resolve := chain.programs[0]
	assert.Equal(t, []float32{4}, params(resolve.ShaderBuffer, 1))
	handle := memory.Read[uint64](resolve.ShaderBuffer.Front().MustBytes(), 0)
	expected, err := sm.Textures.Handle(source.ColorTextures[0])
	require.NoError(t, err)
	assert.Equal(t, expected, handle)
}

func TestAtmosphereValidation(t *testing.T) {
	sm, _ := newSystems(t)
	chain, err := NewChain(sm, shaderDir, msaaSource(t, sm, false), testWidth, testHeight)
	require.NoError(t, err)

	assert.ErrorIs(t, chain.AddAtmosphere(math.NewVec3Zero(), 10, 12), core.ErrValidation)
	require.NoError(t, chain.AddPass(false))
	assert.ErrorIs(t, chain.AddAtmosphere(math.NewVec3Zero(), 10, 10), core.ErrValidation)
	assert.NoError(t, chain.AddAtmosphere(math.NewVec3Zero(), 10, 11))
}

func TestBloomNeedsIterations(t *testing.T) {
	sm, _ := newSystems(t)
	chain, err := NewChain(sm, shaderDir, msaaSource(t, sm, false), testWidth, testHeight)
	require.NoError(t, err)
	assert.ErrorIs(t, chain.AddBloom(0, 0.1), core.ErrValidation)
	assert.Empty(t, chain.Passes)
}

func TestChainNeedsSource(t *testing.T) {
	sm, _ := newSystems(t)
	_, err := NewChain(sm, shaderDir, nil, testWidth, testHeight)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestMissingShaderFails(t *testing.T) {
	sm, _ := newSystems(t)
	chain, err := NewChain(sm, t.TempDir(), msaaSource(t, sm, false), testWidth, testHeight)
	require.NoError(t, err)
	assert.ErrorIs(t, chain.AddToneMapping(DefaultExposure), core.ErrNotFound)
}
