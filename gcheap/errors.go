package gcheap

import "errors"

// ErrOutOfMemory is returned by Allocate when Collect could not free enough
// room for the requested allocation. The heap remains in a consistent
// state: allocPtr is rolled back and the preamble that was at allocPtr is
// restored.
var ErrOutOfMemory = errors.New("gcheap: out of memory")

// ErrRootSetOverflow is the panic value raised by NewRoot (and so by
// Allocate and AllocateWith) when registering a new out-of-heap handle
// would exceed the heap's fixed root-set capacity. This is treated as a
// programming error; callers that cannot avoid it entirely should still
// size MaxRoots generously.
var ErrRootSetOverflow = errors.New("gcheap: root set overflow")

// errEvacuationOutOfMemory is the panic value raised when to-space cannot
// hold the live+pinned set during a collection. Collect does not fail from
// the caller's perspective in the normal case; this condition indicates the
// heap was undersized for its pinned load and is unrecoverable.
type errEvacuationOutOfMemory struct {
	typeName string
}

func (e errEvacuationOutOfMemory) Error() string {
	return "gcheap: to-space exhausted while evacuating a " + e.typeName + " (heap undersized for pinned load)"
}
