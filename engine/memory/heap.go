package memory

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/ludo/engine/core"
)

/**
 * @brief A contiguous free range inside a heap.
 */
type Extent struct {
	Offset uint64
	Size   uint64
}

func (e Extent) end() uint64 {
	return e.Offset + e.Size
}

/**
 * @brief A best-fit allocator over a fixed byte range. The range is either
 * host memory or a mapped GPU buffer; in the second case Buffer holds the
 * backend identifier of that buffer.
 */
type Heap struct {
	Name string
	/** @brief Backend buffer id, 0 when the heap lives in host memory. */
	Buffer uint32

	data []byte
	// sorted by offset, never adjacent
	free []Extent
	// offset -> size of live allocations
	allocated map[uint64]uint64
	used      uint64
}

/**
 * @brief Creates a new heap that manages the provided bytes. The heap never
 * grows: its capacity is len(data).
 */
func NewHeap(name string, data []byte) *Heap {
	h := &Heap{
		Name:      name,
		data:      data,
		allocated: make(map[uint64]uint64),
	}
	if len(data) > 0 {
		h.free = []Extent{{Offset: 0, Size: uint64(len(data))}}
	}
	return h
}

// Size returns the capacity of the heap in bytes.
func (h *Heap) Size() uint64 {
	return uint64(len(h.data))
}

// Used returns the number of bytes held by live allocations.
func (h *Heap) Used() uint64 {
	return h.used
}

// Free returns the number of bytes available for allocation.
func (h *Heap) Free() uint64 {
	var total uint64
	for _, e := range h.free {
		total += e.Size
	}
	return total
}

// Extents returns a copy of the free list, sorted by offset.
func (h *Heap) Extents() []Extent {
	out := make([]Extent, len(h.free))
	copy(out, h.free)
	return out
}

// Data exposes the whole backing range of the heap.
func (h *Heap) Data() []byte {
	return h.data
}

/**
 * @brief Allocates size bytes using a best-fit search over the free list.
 * @return ErrOutOfMemory when no free extent is large enough.
 */
func (h *Heap) Allocate(size uint64) (Allocation, error) {
	return h.AllocateAligned(size, 1)
}

/**
 * @brief Allocates size bytes whose offset is a multiple of align. Any
 * padding in front of the allocation remains free.
 */
func (h *Heap) AllocateAligned(size, align uint64) (Allocation, error) {
	if size == 0 {
		return Allocation{Heap: h}, nil
	}
	if align == 0 {
		align = 1
	}

	best := -1
	var bestStart, bestWaste uint64
	for i, e := range h.free {
		start := alignUp(e.Offset, align)
		if start >= e.end() || e.end()-start < size {
			continue
		}
		waste := e.Size - size
		if best == -1 || waste < bestWaste {
			best = i
			bestStart = start
			bestWaste = waste
			if waste == 0 {
				break
			}
		}
	}
	if best == -1 {
		err := fmt.Errorf("heap %q cannot allocate %d bytes (align %d, %d free): %w", h.Name, size, align, h.Free(), core.ErrOutOfMemory)
		core.LogError(err.Error())
		return Allocation{}, err
	}

	e := h.free[best]
	var replacement []Extent
	if bestStart > e.Offset {
		replacement = append(replacement, Extent{Offset: e.Offset, Size: bestStart - e.Offset})
	}
	if tail := bestStart + size; tail < e.end() {
		replacement = append(replacement, Extent{Offset: tail, Size: e.end() - tail})
	}
	h.free = append(h.free[:best], append(replacement, h.free[best+1:]...)...)

	h.allocated[bestStart] = size
	h.used += size

	return Allocation{Heap: h, Offset: bestStart, Size: size}, nil
}

/**
 * @brief Returns the allocation to the free list, merging it with adjacent
 * free extents.
 */
func (h *Heap) Deallocate(a Allocation) error {
	if a.Size == 0 {
		return nil
	}
	if a.Heap != h {
		err := fmt.Errorf("heap %q cannot release an allocation it does not own: %w", h.Name, core.ErrInvalidRange)
		core.LogError(err.Error())
		return err
	}
	size, ok := h.allocated[a.Offset]
	if !ok || size != a.Size {
		err := fmt.Errorf("heap %q has no allocation at offset %d of size %d: %w", h.Name, a.Offset, a.Size, core.ErrInvalidRange)
		core.LogError(err.Error())
		return err
	}
	delete(h.allocated, a.Offset)
	h.used -= size

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].Offset > a.Offset })
	released := Extent{Offset: a.Offset, Size: a.Size}

	// merge with the following extent
	if i < len(h.free) && released.end() == h.free[i].Offset {
		released.Size += h.free[i].Size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
	// merge with the preceding extent
	if i > 0 && h.free[i-1].end() == released.Offset {
		h.free[i-1].Size += released.Size
		return nil
	}

	h.free = append(h.free, Extent{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = released
	return nil
}

func alignUp(value, align uint64) uint64 {
	if r := value % align; r != 0 {
		return value + align - r
	}
	return value
}
