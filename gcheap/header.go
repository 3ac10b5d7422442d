package gcheap

import "unsafe"

// addr is a byte offset into Heap.bytes, the single backing allocation that
// holds both semispaces back to back. The zero value means "no address";
// real offsets are stored internally as (actual offset + 1) so that offset 0
// of the arena — which is a perfectly valid address, occupied by the initial
// sentinel header — never collides with "nil".
type addr uintptr

const nilAddr addr = 0

func mkaddr(off uintptr) addr { return addr(off + 1) }

func (a addr) valid() bool { return a != nilAddr }

func (a addr) offset() uintptr {
	if a == nilAddr {
		panic("gcheap: dereferenced a nil addr")
	}
	return uintptr(a) - 1
}

// header is the fixed prefix written at the start of every managed
// allocation. Its meaning depends on the combination of info/forwardee:
//
//	info != nil, forwardee == 0        live, un-evacuated, un-pinned object
//	info != nil, forwardee == self     pinned object (do not move)
//	info != nil, forwardee == other    evacuated; forwardee names the new header
//	info == nil, forwardee == 0        end-of-space sentinel
//	info == nil, forwardee != 0        skip record: no objects until forwardee
type header struct {
	info      *TypeInfo
	forwardee addr
}

const headerSize = unsafe.Sizeof(header{})

// isSentinel reports whether h is the "nothing more allocated here" marker.
func (h *header) isSentinel() bool {
	return h.info == nil && h.forwardee == nilAddr
}

// isSkip reports whether h is a skip record bridging a pinned island.
func (h *header) isSkip() bool {
	return h.info == nil && h.forwardee != nilAddr
}

// isPinned reports whether h describes an object pinned at its own address.
// selfAddr is the address of h itself within the arena.
func (h *header) isPinned(selfAddr addr) bool {
	return h.info != nil && h.forwardee == selfAddr
}

// isForwarded reports whether h describes an object already evacuated
// elsewhere (forwardee points at a different header, not itself).
func (h *header) isForwarded(selfAddr addr) bool {
	return h.info != nil && h.forwardee != nilAddr && h.forwardee != selfAddr
}

// isLiveUnmoved reports whether h describes a live object that has neither
// been evacuated nor pinned.
func (h *header) isLiveUnmoved() bool {
	return h.info != nil && h.forwardee == nilAddr
}
