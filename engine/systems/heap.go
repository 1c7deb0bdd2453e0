package systems

import (
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer"
)

/**
 * @brief Owns the named heaps of the engine. GPU heaps live in persistently
 * mapped backend buffers, host heaps in Go memory. Heaps are sized once and
 * never grow.
 */
type HeapSystem struct {
	heaps   map[string]*memory.Heap
	order   []string
	backend renderer.RendererBackend
}

func NewHeapSystem(backend renderer.RendererBackend) (*HeapSystem, error) {
	if backend == nil {
		err := fmt.Errorf("func NewHeapSystem - backend must not be nil")
		core.LogError(err.Error())
		return nil, err
	}
	return &HeapSystem{
		heaps:   make(map[string]*memory.Heap),
		backend: backend,
	}, nil
}

/**
 * @brief Creates a GPU-resident heap of size bytes.
 */
func (hs *HeapSystem) AllocateVRAM(name string, size uint64) (*memory.Heap, error) {
	if _, exists := hs.heaps[name]; exists {
		err := fmt.Errorf("heap %q already exists", name)
		core.LogError(err.Error())
		return nil, err
	}
	buffer, data, err := hs.backend.BufferCreate(size)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	heap := memory.NewHeap(name, data)
	heap.Buffer = buffer
	hs.add(name, heap)
	core.LogDebug("allocated vram heap %s of %d bytes", name, size)
	return heap, nil
}

/**
 * @brief Creates a host heap of size bytes.
 */
func (hs *HeapSystem) AllocateHost(name string, size uint64) (*memory.Heap, error) {
	if _, exists := hs.heaps[name]; exists {
		err := fmt.Errorf("heap %q already exists", name)
		core.LogError(err.Error())
		return nil, err
	}
	heap := memory.NewHeap(name, make([]byte, size))
	hs.add(name, heap)
	core.LogDebug("allocated host heap %s of %d bytes", name, size)
	return heap, nil
}

func (hs *HeapSystem) add(name string, heap *memory.Heap) {
	hs.heaps[name] = heap
	hs.order = append(hs.order, name)
}

/**
 * @brief Returns the heap with the given name.
 */
func (hs *HeapSystem) Get(name string) (*memory.Heap, error) {
	heap, ok := hs.heaps[name]
	if !ok {
		err := fmt.Errorf("heap %q: %w", name, core.ErrNotFound)
		core.LogError(err.Error())
		return nil, err
	}
	return heap, nil
}

// Lookup returns the heap with the given name and whether it exists,
// without logging a miss.
func (hs *HeapSystem) Lookup(name string) (*memory.Heap, bool) {
	heap, ok := hs.heaps[name]
	return heap, ok
}

// Shutdown destroys the GPU buffers behind the VRAM heaps.
func (hs *HeapSystem) Shutdown() error {
	for i := len(hs.order) - 1; i >= 0; i-- {
		heap := hs.heaps[hs.order[i]]
		if heap.Buffer != 0 {
			if err := hs.backend.BufferDestroy(heap.Buffer); err != nil {
				core.LogError(err.Error())
				return err
			}
		}
		if heap.Used() > 0 {
			core.LogWarn("heap %s shut down with %d bytes still allocated", heap.Name, heap.Used())
		}
	}
	hs.heaps = make(map[string]*memory.Heap)
	hs.order = nil
	return nil
}
