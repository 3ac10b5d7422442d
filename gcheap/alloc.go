package gcheap

import "unsafe"

// AllocateWith constructs a T in h via construct and returns a registered
// root handle to it, together with its release function. If construct
// returns an error, the allocation is rolled back (allocPtr and the
// skip-record preamble are restored) and the error is returned unchanged.
// If the heap cannot find or make room even after a collection,
// ErrOutOfMemory is returned instead.
func AllocateWith[T any](h *Heap, construct func() (T, error)) (*Handle[T], func(), error) {
	info := TypeInfoFor[T]()

	var constructErr error
	off, err := h.allocateBytes(info, func(payload unsafe.Pointer) error {
		v, cerr := construct()
		if cerr != nil {
			constructErr = cerr
			return cerr
		}
		*(*T)(payload) = v
		return nil
	})
	if err != nil {
		if constructErr != nil {
			return nil, nil, constructErr
		}
		return nil, nil, err
	}

	handle, release := NewRoot[T](h)
	handle.payload = off
	return handle, release, nil
}

// Allocate constructs a T with the given value in h and returns a
// registered root handle to it, together with its release function.
func Allocate[T any](h *Heap, value T) (*Handle[T], func(), error) {
	return AllocateWith(h, func() (T, error) { return value, nil })
}
