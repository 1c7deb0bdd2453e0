package memory

import (
	"testing"

	"github.com/spaghettifunk/ludo/engine/core"
	lmath "github.com/spaghettifunk/ludo/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleBufferPushIsIdempotent(t *testing.T) {
	front := NewHeap("front", make([]byte, 64))
	back := NewHeap("back", make([]byte, 64))

	db, err := NewDoubleBuffer(front, back, 32)
	require.NoError(t, err)

	WriteVec4(db.Back().MustBytes(), 0, lmath.NewVec4(1, 2, 3, 4))
	Write(db.Back().MustBytes(), 16, uint32(99))

	db.Push()
	first := append([]byte(nil), db.Front().MustBytes()...)
	db.Push()
	assert.Equal(t, first, db.Front().MustBytes())
	assert.Equal(t, db.Back().MustBytes(), db.Front().MustBytes())
	assert.Equal(t, uint32(99), Read[uint32](db.Front().MustBytes(), 16))
}

func TestDoubleBufferFrontOnlyChangesOnPush(t *testing.T) {
	front := NewHeap("front", make([]byte, 16))
	back := NewHeap("back", make([]byte, 16))
	db, err := NewDoubleBuffer(front, back, 16)
	require.NoError(t, err)

	Write(db.Back().MustBytes(), 0, float32(3.5))
	assert.Equal(t, float32(0), Read[float32](db.Front().MustBytes(), 0))
	db.Push()
	assert.Equal(t, float32(3.5), Read[float32](db.Front().MustBytes(), 0))
}

func TestDoubleBufferReleasesOnFailure(t *testing.T) {
	front := NewHeap("front", make([]byte, 64))
	back := NewHeap("back", make([]byte, 8))

	_, err := NewDoubleBuffer(front, back, 32)
	require.ErrorIs(t, err, core.ErrOutOfMemory)
	assert.Equal(t, uint64(64), front.Free())
}

func TestDoubleBufferRelease(t *testing.T) {
	front := NewHeap("front", make([]byte, 64))
	back := NewHeap("back", make([]byte, 64))
	db, err := NewDoubleBuffer(front, back, 64)
	require.NoError(t, err)

	require.NoError(t, db.Release())
	assert.Equal(t, uint64(64), front.Free())
	assert.Equal(t, uint64(64), back.Free())
}

func TestAllocationBytesValidatesRange(t *testing.T) {
	h := NewHeap("test", make([]byte, 16))
	_, err := Allocation{Heap: h, Offset: 8, Size: 16}.Bytes()
	require.ErrorIs(t, err, core.ErrInvalidRange)

	a, err := h.Allocate(16)
	require.NoError(t, err)
	sub, err := a.Slice(4, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), sub.Offset)
	_, err = a.Slice(12, 8)
	require.ErrorIs(t, err, core.ErrInvalidRange)
}

func TestViewReadWrite(t *testing.T) {
	h := NewHeap("test", make([]byte, 256))
	a, err := h.AllocateAligned(128, 64)
	require.NoError(t, err)
	v := NewView(a, 64)

	assert.Equal(t, uint64(2), v.Len())
	m := lmath.NewMat4Translation(lmath.NewVec3(1, 2, 3))
	WriteMat4(v.Element(1), 0, m)
	assert.Equal(t, m, ReadMat4(v.Element(1), 0))

	Write(v.Element(0), 0, int16(-3))
	assert.Equal(t, int16(-3), Read[int16](v.Element(0), 0))
	assert.Panics(t, func() { v.Element(2) })
}
