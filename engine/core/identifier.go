package core

import "fmt"

// Identifiers hands out small integer ids and recycles released ones.
// The zero value is ready to use; id 0 is never handed out so that it can
// mean "unset" in records.
type Identifiers struct {
	owners []interface{}
}

func (ids *Identifiers) Acquire(owner interface{}) uint64 {
	if len(ids.owners) == 0 {
		ids.owners = make([]interface{}, 1, 100)
	}
	length := uint64(len(ids.owners))
	for i := uint64(1); i < length; i++ {
		// Existing free spot. Take it.
		if ids.owners[i] == nil {
			ids.owners[i] = owner
			return i
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	ids.owners = append(ids.owners, owner)
	return uint64(len(ids.owners)) - 1
}

func (ids *Identifiers) Release(id uint64) error {
	if len(ids.owners) == 0 {
		return fmt.Errorf("identifier release called before any id was acquired. Nothing was done")
	}

	length := uint64(len(ids.owners))
	if id == 0 || id >= length {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, length-1)
	}

	// Just zero out the entry, making it available for use.
	ids.owners[id] = nil
	return nil
}

// Owner returns the owner registered for id, or nil.
func (ids *Identifiers) Owner(id uint64) interface{} {
	if id >= uint64(len(ids.owners)) {
		return nil
	}
	return ids.owners[id]
}
