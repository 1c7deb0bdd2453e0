package systems

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapSystemVRAMHeapsAreBackendBuffers(t *testing.T) {
	s := newTestSystems(t)

	heap, err := s.heaps.Get(metadata.HeapVertices)
	require.NoError(t, err)
	assert.NotZero(t, heap.Buffer)

	a, err := heap.Allocate(16)
	require.NoError(t, err)
	copy(a.MustBytes(), []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3, 4}, s.backend.Buffer(heap.Buffer)[a.Offset:a.Offset+4])

	host, err := s.heaps.Get(metadata.HeapHost)
	require.NoError(t, err)
	assert.Zero(t, host.Buffer)
}

func TestHeapSystemRejectsDuplicatesAndUnknownNames(t *testing.T) {
	s := newTestSystems(t)

	_, err := s.heaps.AllocateHost(metadata.HeapHost, 16)
	assert.Error(t, err)

	_, err = s.heaps.Get("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHeapSystemShutdownDestroysBuffers(t *testing.T) {
	s := newTestSystems(t)

	require.NoError(t, s.heaps.Shutdown())
	assert.Equal(t, 4, s.backend.Count("BufferDestroy"))

	_, err := s.heaps.Get(metadata.HeapIndices)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
