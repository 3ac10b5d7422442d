// Package arena allocates the raw byte backing for a semispace heap: one
// contiguous allocation, later split into two equal halves by the caller.
//
// Because the heap built on top of this package is hosted inside a real
// Go process, on unix the backing allocation is obtained from the OS
// directly (mmap) rather than from the Go allocator, keeping the arena
// outside the reach of the host runtime's own garbage collector; other
// platforms fall back to a plain Go byte slice. The host GC never scans
// these bytes: handles stored in them hold integer offsets the managed
// heap interprets as addresses, and the *TypeInfo pointers in object
// headers stay reachable through gcheap's type registry.
package arena

import "fmt"

// Region is a fixed-size, page-backed byte region.
type Region struct {
	data []byte
	impl closer
}

type closer interface {
	close() error
}

// New reserves a region of exactly size bytes. size must be a positive
// multiple of the platform page size is not required, but callers that pass
// very small sizes will still get a whole-page mapping on platforms that
// back the region with mmap.
func New(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena: invalid size %d", size)
	}
	return newRegion(size)
}

// Bytes returns the region's backing storage. The returned slice is valid
// until Close is called.
func (r *Region) Bytes() []byte {
	return r.data
}

// Close releases the backing storage. The region must not be used
// afterwards.
func (r *Region) Close() error {
	if r.impl == nil {
		return nil
	}
	return r.impl.close()
}
