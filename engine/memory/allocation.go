package memory

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaghettifunk/ludo/engine/core"
	lmath "github.com/spaghettifunk/ludo/engine/math"
	"golang.org/x/exp/constraints"
)

/**
 * @brief A range inside a heap. The heap owns the bytes; the allocation only
 * describes where they are.
 */
type Allocation struct {
	Heap   *Heap
	Offset uint64
	Size   uint64
}

// Valid reports whether the allocation refers to a heap.
func (a Allocation) Valid() bool {
	return a.Heap != nil
}

/**
 * @brief Returns the bytes described by the allocation, after checking the
 * range against the current size of the heap.
 */
func (a Allocation) Bytes() ([]byte, error) {
	if a.Heap == nil {
		return nil, fmt.Errorf("allocation has no heap: %w", core.ErrInvalidRange)
	}
	if a.Offset+a.Size > a.Heap.Size() || a.Offset+a.Size < a.Offset {
		return nil, fmt.Errorf("allocation [%d, %d) outside heap %q of %d bytes: %w",
			a.Offset, a.Offset+a.Size, a.Heap.Name, a.Heap.Size(), core.ErrInvalidRange)
	}
	return a.Heap.data[a.Offset : a.Offset+a.Size], nil
}

// MustBytes is Bytes for callers that own the allocation and already know it
// is in range.
func (a Allocation) MustBytes() []byte {
	b, err := a.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

// Slice returns a sub-range of the allocation.
func (a Allocation) Slice(offset, size uint64) (Allocation, error) {
	if offset+size > a.Size {
		return Allocation{}, fmt.Errorf("sub-range [%d, %d) outside allocation of %d bytes: %w", offset, offset+size, a.Size, core.ErrInvalidRange)
	}
	return Allocation{Heap: a.Heap, Offset: a.Offset + offset, Size: size}, nil
}

// Zero clears every byte of the allocation.
func (a Allocation) Zero() {
	clear(a.MustBytes())
}

/**
 * @brief A typed view of an allocation: an array of fixed-stride elements.
 */
type View struct {
	Allocation
	Stride uint64
}

func NewView(a Allocation, stride uint64) View {
	return View{Allocation: a, Stride: stride}
}

// Len returns the number of whole elements in the view.
func (v View) Len() uint64 {
	if v.Stride == 0 {
		return 0
	}
	return v.Size / v.Stride
}

// Element returns the bytes of element i.
func (v View) Element(i uint64) []byte {
	if i >= v.Len() {
		panic(fmt.Sprintf("element %d outside view of %d elements", i, v.Len()))
	}
	b := v.MustBytes()
	return b[i*v.Stride : (i+1)*v.Stride]
}

// Start returns the position of the view in elements from the heap base.
func (v View) Start() uint64 {
	if v.Stride == 0 {
		return 0
	}
	return v.Offset / v.Stride
}

/**
 * @brief Numeric types that can be stored in a view.
 */
type Numeric interface {
	constraints.Integer | constraints.Float
}

/**
 * @brief Writes value at byte offset of dst, little endian.
 */
func Write[T Numeric](dst []byte, offset uint64, value T) {
	b := dst[offset:]
	switch v := any(value).(type) {
	case int8:
		b[0] = byte(v)
	case uint8:
		b[0] = v
	case int16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case uint16:
		binary.LittleEndian.PutUint16(b, v)
	case int32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case uint32:
		binary.LittleEndian.PutUint32(b, v)
	case int:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case int64:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case uint:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case uint64:
		binary.LittleEndian.PutUint64(b, v)
	case uintptr:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	case float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unsupported numeric type %T", value))
	}
}

/**
 * @brief Reads a value at byte offset of src, little endian.
 */
func Read[T Numeric](src []byte, offset uint64) T {
	b := src[offset:]
	var zero T
	switch any(zero).(type) {
	case int8:
		return T(int8(b[0]))
	case uint8:
		return T(b[0])
	case int16:
		return T(int16(binary.LittleEndian.Uint16(b)))
	case uint16:
		return T(binary.LittleEndian.Uint16(b))
	case int32:
		return T(int32(binary.LittleEndian.Uint32(b)))
	case uint32:
		return T(binary.LittleEndian.Uint32(b))
	case int, int64:
		return T(int64(binary.LittleEndian.Uint64(b)))
	case uint, uint64, uintptr:
		return T(binary.LittleEndian.Uint64(b))
	case float32:
		return T(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case float64:
		return T(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	}
	panic(fmt.Sprintf("unsupported numeric type %T", zero))
}

func WriteVec2(dst []byte, offset uint64, v lmath.Vec2) {
	Write(dst, offset, v.X)
	Write(dst, offset+4, v.Y)
}

func WriteVec3(dst []byte, offset uint64, v lmath.Vec3) {
	Write(dst, offset, v.X)
	Write(dst, offset+4, v.Y)
	Write(dst, offset+8, v.Z)
}

func WriteVec4(dst []byte, offset uint64, v lmath.Vec4) {
	Write(dst, offset, v.X)
	Write(dst, offset+4, v.Y)
	Write(dst, offset+8, v.Z)
	Write(dst, offset+12, v.W)
}

func ReadVec2(src []byte, offset uint64) lmath.Vec2 {
	return lmath.Vec2{X: Read[float32](src, offset), Y: Read[float32](src, offset+4)}
}

func ReadVec3(src []byte, offset uint64) lmath.Vec3 {
	return lmath.Vec3{
		X: Read[float32](src, offset),
		Y: Read[float32](src, offset+4),
		Z: Read[float32](src, offset+8),
	}
}

func ReadVec4(src []byte, offset uint64) lmath.Vec4 {
	return lmath.Vec4{
		X: Read[float32](src, offset),
		Y: Read[float32](src, offset+4),
		Z: Read[float32](src, offset+8),
		W: Read[float32](src, offset+12),
	}
}

// WriteMat4 stores the 16 matrix elements in storage order.
func WriteMat4(dst []byte, offset uint64, m lmath.Mat4) {
	for i, f := range m.Data {
		Write(dst, offset+uint64(i)*4, f)
	}
}

func ReadMat4(src []byte, offset uint64) lmath.Mat4 {
	m := lmath.Mat4{}
	for i := range m.Data {
		m.Data[i] = Read[float32](src, offset+uint64(i)*4)
	}
	return m
}
