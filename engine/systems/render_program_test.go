package systems

import (
	"bytes"
	"os"
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/headless"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProgram(t *testing.T, s *testSystems, capacity uint32) (*metadata.RenderProgram, *metadata.Mesh) {
	t.Helper()
	p, err := s.programs.Add(metadata.RenderProgram{Name: "test", Primitive: metadata.MeshPrimitiveTriangleList}, metadata.VertexFormatPN, capacity)
	require.NoError(t, err)
	mesh, err := s.meshes.AddStandaloneMesh("triangle", metadata.MeshPrimitiveTriangleList, metadata.VertexFormatPN, 3, 3)
	require.NoError(t, err)
	return p, mesh
}

func TestRenderProgramCommitFlushesPendingCommands(t *testing.T) {
	s := newTestSystems(t)
	p, mesh := newTestProgram(t, s, 8)

	first, err := s.programs.AddInstance(p, mesh, 2)
	require.NoError(t, err)
	second, err := s.programs.AddInstance(p, mesh, 1)
	require.NoError(t, err)

	s.programs.AddDrawCommand(p, first)
	s.programs.AddDrawCommand(p, second)
	assert.Equal(t, metadata.ActiveCommands{Start: 0, Count: 2}, p.ActiveCommands)

	require.NoError(t, s.programs.CommitDrawCommands(p))
	assert.Equal(t, metadata.ActiveCommands{Start: 2, Count: 0}, p.ActiveCommands)

	require.Len(t, s.backend.DrawCalls, 1)
	draw := s.backend.DrawCalls[0]
	assert.Equal(t, uint32(2), draw.Count)
	assert.Equal(t, metadata.DrawCommandSize, draw.Stride)
	assert.Equal(t, p.Handle, draw.Program)
	assert.Equal(t, []metadata.DrawCommand{
		{IndexCount: 3, InstanceCount: 2, IndexStart: mesh.IndexRange().Start, VertexStart: mesh.BaseVertex, InstanceStart: 0},
		{IndexCount: 3, InstanceCount: 1, IndexStart: mesh.IndexRange().Start, VertexStart: mesh.BaseVertex, InstanceStart: 2},
	}, draw.Commands)

	// nothing pending: no draw
	require.NoError(t, s.programs.CommitDrawCommands(p))
	assert.Len(t, s.backend.DrawCalls, 1)
}

func TestRenderProgramCommandsAppendWithinFrame(t *testing.T) {
	s := newTestSystems(t)
	p, mesh := newTestProgram(t, s, 4)
	instance, err := s.programs.AddInstance(p, mesh, 1)
	require.NoError(t, err)

	s.programs.AddDrawCommand(p, instance)
	require.NoError(t, s.programs.CommitDrawCommands(p))
	s.programs.AddDrawCommand(p, instance)
	require.NoError(t, s.programs.CommitDrawCommands(p))

	require.Len(t, s.backend.DrawCalls, 2)
	assert.Equal(t, s.backend.DrawCalls[0].Offset+uint64(metadata.DrawCommandSize), s.backend.DrawCalls[1].Offset)

	s.programs.BeginFrame()
	assert.Equal(t, metadata.ActiveCommands{}, p.ActiveCommands)
}

func TestRenderProgramCommandOverflowPanics(t *testing.T) {
	s := newTestSystems(t)
	p, mesh := newTestProgram(t, s, 1)
	instance, err := s.programs.AddInstance(p, mesh, 1)
	require.NoError(t, err)

	s.programs.AddDrawCommand(p, instance)
	assert.Panics(t, func() { s.programs.AddDrawCommand(p, instance) })
}

func TestRenderProgramLinkFailure(t *testing.T) {
	s := newTestSystems(t)

	vertex, err := s.shaders.Generate(metadata.ShaderStageVertex, metadata.VertexFormatPN)
	require.NoError(t, err)

	// two vertex stages and no fragment stage
	_, err = s.programs.Add(metadata.RenderProgram{Name: "broken", FragmentShader: vertex, VertexShader: vertex}, metadata.VertexFormatPN, 4)
	assert.ErrorIs(t, err, core.ErrLinkage)
	assert.Empty(t, s.programs.Programs)

	commands, err := s.heaps.Get(metadata.HeapDrawCommands)
	require.NoError(t, err)
	assert.Zero(t, commands.Used())
}

func TestRenderProgramCompileFailure(t *testing.T) {
	s := newTestSystems(t)

	_, err := s.shaders.Add(metadata.ShaderStageFragment, "broken", "#version 460\n#error nope\n")
	assert.ErrorIs(t, err, core.ErrLinkage)
}

func TestRenderProgramInstanceCapacity(t *testing.T) {
	s := newTestSystems(t)
	p, mesh := newTestProgram(t, s, 2)

	_, err := s.programs.AddInstance(p, mesh, 2)
	require.NoError(t, err)
	_, err = s.programs.AddInstance(p, mesh, 1)
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
}

func TestRenderProgramInstanceDataIsPushedOnBind(t *testing.T) {
	s := newTestSystems(t)
	p, mesh := newTestProgram(t, s, 4)
	p.PushOnBind = true

	instance, err := s.programs.AddInstance(p, mesh, 2)
	require.NoError(t, err)

	transform := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	s.programs.SetInstanceTransform(p, instance, 1, transform)
	assert.Equal(t, transform, s.programs.InstanceTransform(p, instance, 1))
	assert.Equal(t, math.NewMat4Identity(), s.programs.InstanceTransform(p, instance, 0))
	assert.Panics(t, func() { s.programs.InstanceTransform(p, instance, 2) })

	s.programs.Draw(p, instance)
	require.NoError(t, s.programs.EndFrame())

	assert.Equal(t, p.InstanceBufferBack.MustBytes(), p.InstanceBufferFront.MustBytes())
	assert.Equal(t, 1, s.backend.Count("BufferBindStorage"))
	assert.Equal(t, 1, s.backend.Count("BufferBindGeometry"))
	// position and normal
	assert.Equal(t, 2, s.backend.Count("VertexAttribute"))
}

func TestRenderProgramInstanceLayout(t *testing.T) {
	limits := metadata.DefaultRendererLimits()

	assert.Equal(t, uint32(64), InstanceSize(metadata.VertexFormatPN, limits))
	assert.Equal(t, uint32(80), InstanceSize(metadata.VertexFormatPNT, limits))

	skinned := metadata.NewVertexFormat(metadata.VertexFormatOptions{Normals: true, BoneWeights: 4})
	assert.Equal(t, uint32(64+64*64), InstanceSize(skinned, limits))
}

func TestRenderProgramSkinnedInstances(t *testing.T) {
	s := newTestSystems(t)

	format := metadata.NewVertexFormat(metadata.VertexFormatOptions{Normals: true, TextureCount: 1, BoneWeights: 4})
	p, err := s.programs.Add(metadata.RenderProgram{Name: "skinned"}, format, 2)
	require.NoError(t, err)
	mesh, err := s.meshes.AddStandaloneMesh("skinned", metadata.MeshPrimitiveTriangleList, format, 3, 3)
	require.NoError(t, err)
	instance, err := s.programs.AddInstance(p, mesh, 1)
	require.NoError(t, err)

	require.NoError(t, s.programs.SetInstanceTexture(p, instance, 0, 42))
	require.NoError(t, s.programs.SetInstanceBones(p, instance, 0, []math.Mat4{math.NewMat4Identity()}))

	tooMany := make([]math.Mat4, metadata.DefaultMaxBonesPerArmature+1)
	assert.ErrorIs(t, s.programs.SetInstanceBones(p, instance, 0, tooMany), core.ErrCapacityExceeded)

	plain, mesh2 := newTestProgram(t, s, 1)
	other, err := s.programs.AddInstance(plain, mesh2, 1)
	require.NoError(t, err)
	assert.Error(t, s.programs.SetInstanceTexture(plain, other, 0, 1))
}

func TestRenderProgramRemoveReleasesResources(t *testing.T) {
	s := newTestSystems(t)
	p, _ := newTestProgram(t, s, 4)

	require.NoError(t, s.programs.Remove(p))
	assert.Empty(t, s.programs.Programs)
	assert.Empty(t, s.shaders.Shaders)

	for _, name := range []string{metadata.HeapDrawCommands, metadata.HeapInstances, metadata.HeapHost} {
		heap, err := s.heaps.Get(name)
		require.NoError(t, err)
		assert.Zero(t, heap.Used(), name)
	}
	assert.Equal(t, 1, s.backend.Count("ProgramDestroy"))
}

func TestRenderProgramBindContextPushesMatrices(t *testing.T) {
	s := newTestSystems(t)
	front, err := s.heaps.Get(metadata.HeapInstances)
	require.NoError(t, err)
	back, err := s.heaps.Get(metadata.HeapHost)
	require.NoError(t, err)

	context, err := memory.NewDoubleBuffer(front, back, uint64(metadata.ContextSize))
	require.NoError(t, err)
	view := math.NewMat4Translation(math.NewVec3(0, 0, -5))
	memory.WriteMat4(context.Back().MustBytes(), 0, view)

	s.programs.BindContext(context)
	assert.Equal(t, view, memory.ReadMat4(context.Front().MustBytes(), 0))
	require.Equal(t, 1, s.backend.Count("BufferBindStorage"))
	call := s.backend.Calls[len(s.backend.Calls)-1]
	assert.Equal(t, "BufferBindStorage", call.Name)
	assert.Equal(t, metadata.ContextBufferBinding, call.Args[0])
	require.NoError(t, context.Release())
}

func TestRenderProgramBindWithoutMeshHeaps(t *testing.T) {
	backend := headless.New()
	limits := metadata.DefaultRendererLimits()
	heaps, err := NewHeapSystem(backend)
	require.NoError(t, err)
	_, err = heaps.AllocateVRAM(metadata.HeapDrawCommands, 1<<10)
	require.NoError(t, err)
	_, err = heaps.AllocateVRAM(metadata.HeapInstances, 1<<12)
	require.NoError(t, err)
	_, err = heaps.AllocateHost(metadata.HeapHost, 1<<12)
	require.NoError(t, err)

	shaders, err := NewShaderSystem(&ShaderSystemConfig{MaxShaderCount: 4, Limits: limits}, nil, backend)
	require.NoError(t, err)
	programs, err := NewRenderProgramSystem(&RenderProgramSystemConfig{MaxProgramCount: 2, Limits: limits}, heaps, shaders, backend)
	require.NoError(t, err)
	p, err := programs.Add(metadata.RenderProgram{Name: "generated"}, metadata.VertexFormatP, 1)
	require.NoError(t, err)

	var output bytes.Buffer
	core.SetLogOutput(&output)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })

	for i := 0; i < 3; i++ {
		require.NoError(t, programs.Bind(p))
	}
	assert.NotContains(t, output.String(), "ERRO")

	_, ok := heaps.Lookup(metadata.HeapIndices)
	assert.False(t, ok)
	calls := 0
	for _, call := range backend.Calls {
		if call.Name == "BufferBindGeometry" {
			assert.Equal(t, []any{uint32(0), uint32(0), p.CommandBuffer.Heap.Buffer}, call.Args)
			calls++
		}
	}
	assert.Equal(t, 3, calls)
}
