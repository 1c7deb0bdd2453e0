package core

import (
	"errors"
)

var (
	// ErrOutOfMemory means a heap has no free extent large enough for a request.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrValidation means the input does not satisfy the engine's layout rules
	// (mixed primitives or materials, polygon primitives, multiple root bones).
	ErrValidation = errors.New("validation failed")
	// ErrCapacityExceeded means a fixed capacity (bone weight slots, draw
	// commands, instances) was exceeded.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrLinkage means a shader failed to compile or a program failed to link
	// or validate.
	ErrLinkage = errors.New("shader linkage failed")
	// ErrUnsupportedFormat means a pixel depth, channel layout or file format
	// is not supported.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrInvalidRange means an allocation or view does not lie within its heap.
	ErrInvalidRange = errors.New("invalid range")
	// ErrNotFound means a named resource is not registered.
	ErrNotFound = errors.New("not found")
	// ErrBackend means the graphics driver rejected a call.
	ErrBackend = errors.New("backend failure")
	ErrUnknown = errors.New("unknown")
)
