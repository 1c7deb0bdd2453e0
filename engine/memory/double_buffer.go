package memory

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
)

/**
 * @brief A pair of equally sized allocations. The producer writes Back; the
 * consumer only ever reads Front, which changes exclusively through Push.
 */
type DoubleBuffer struct {
	front Allocation
	back  Allocation
}

/**
 * @brief Allocates size bytes from both heaps. If the second allocation fails
 * the first one is released again.
 */
func NewDoubleBuffer(front, back *Heap, size uint64) (*DoubleBuffer, error) {
	f, err := front.Allocate(size)
	if err != nil {
		return nil, fmt.Errorf("double buffer front: %w", err)
	}
	b, err := back.Allocate(size)
	if err != nil {
		_ = front.Deallocate(f)
		return nil, fmt.Errorf("double buffer back: %w", err)
	}
	return &DoubleBuffer{front: f, back: b}, nil
}

func (db *DoubleBuffer) Front() Allocation {
	return db.front
}

func (db *DoubleBuffer) Back() Allocation {
	return db.back
}

// Size is the size of each half.
func (db *DoubleBuffer) Size() uint64 {
	return db.back.Size
}

/**
 * @brief Copies the whole back range into the front range.
 */
func (db *DoubleBuffer) Push() {
	if db.back.Size == 0 {
		return
	}
	copy(db.front.MustBytes(), db.back.MustBytes())
}

/**
 * @brief Returns both halves to their heaps.
 */
func (db *DoubleBuffer) Release() error {
	var errs []error
	if db.front.Valid() {
		errs = append(errs, db.front.Heap.Deallocate(db.front))
	}
	if db.back.Valid() {
		errs = append(errs, db.back.Heap.Deallocate(db.back))
	}
	db.front = Allocation{}
	db.back = Allocation{}
	if err := errors.Join(errs...); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}
