package gcheap

import (
	"fmt"
	"unsafe"

	"github.com/gocheney/gcheap/internal/arena"
)

// DefaultHeapSize and DefaultMaxRoots are the defaults used when no
// configuration overrides them.
const (
	DefaultHeapSize = 1024
	DefaultMaxRoots = 1024
)

type spaceKind int

const (
	spaceFrom spaceKind = iota
	spaceTo
)

type collectPolicy int

const (
	collectIfNeeded collectPolicy = iota
	neverCollect
)

type rootEntry struct {
	ptr  unsafe.Pointer // *Handle[T], viewed as *handleHeader
	info *TypeInfo
}

// Heap is a fixed-size, single-threaded managed heap. The zero Heap is not
// usable; construct one with New.
type Heap struct {
	region   *arena.Region
	bytes    []byte // len(bytes) == 2*halfSize, backs both semispaces
	halfSize uintptr

	fromBase uintptr // base offset of the active (allocating) semispace
	toBase   uintptr // base offset of the reserved evacuation semispace
	allocPtr uintptr // absolute offset into bytes, always within the active space

	roots    []rootEntry
	maxRoots int
}

// New constructs a heap with the given total capacity (both semispaces
// combined) and root-set capacity. size must be a positive even number of
// bytes whose half is at least large enough to hold one header.
func New(size, maxRoots int) (*Heap, error) {
	if size <= 0 || size%2 != 0 {
		return nil, fmt.Errorf("gcheap: heap size must be a positive even number of bytes, got %d", size)
	}
	half := uintptr(size / 2)
	if half < headerSize {
		return nil, fmt.Errorf("gcheap: heap half-size %d is smaller than a header (%d bytes)", half, headerSize)
	}
	if maxRoots <= 0 {
		return nil, fmt.Errorf("gcheap: maxRoots must be positive, got %d", maxRoots)
	}
	region, err := arena.New(size)
	if err != nil {
		return nil, fmt.Errorf("gcheap: allocating backing arena: %w", err)
	}
	h := &Heap{
		region:   region,
		bytes:    region.Bytes(),
		halfSize: half,
		toBase:   half,
		maxRoots: maxRoots,
	}
	// Both semispaces start out empty except for an initial sentinel
	// header written at the base of each.
	*h.headerAt(0) = header{}
	*h.headerAt(half) = header{}
	h.allocPtr = h.fromBase
	return h, nil
}

// Close releases the heap's backing storage after finalizing every object
// still resident in either semispace. The root set must be empty.
func (h *Heap) Close() error {
	h.FinalizeAll()
	return h.region.Close()
}

// Used returns the number of bytes currently occupied in the active
// semispace.
func (h *Heap) Used() uintptr {
	return h.allocPtr - h.fromBase
}

// Capacity returns the usable size of a single semispace.
func (h *Heap) Capacity() uintptr {
	return h.halfSize
}

func (h *Heap) spaceBase(s spaceKind) uintptr {
	if s == spaceFrom {
		return h.fromBase
	}
	return h.toBase
}

func (h *Heap) headerAt(off uintptr) *header {
	return (*header)(unsafe.Pointer(&h.bytes[off]))
}

func (h *Heap) headerAtAddr(a addr) *header {
	return h.headerAt(a.offset())
}

func (h *Heap) payloadPointer(a addr) unsafe.Pointer {
	return unsafe.Pointer(&h.bytes[a.offset()+headerSize])
}

func (h *Heap) inFrom(a addr) bool {
	off := a.offset()
	return off >= h.fromBase && off < h.fromBase+h.halfSize
}

// adjustAllocPtr finds (and reserves, by leaving allocPtr pointing at) a
// slot of size bytes in the given space, hopping over pinned islands via
// their skip records, triggering a collection if permitted and necessary.
// A pinned object with nothing allocated ahead of it in its space has no
// skip record of its own (there was no gap for finalizeAndRebuildPins to
// thread one across), so adjustAllocPtr also recognizes landing directly
// on a live pinned header and steps over it the same way. It returns the
// header preamble that was found at the chosen slot, which the caller must
// restore on construction failure.
func (h *Heap) adjustAllocPtr(s spaceKind, policy collectPolicy, size uintptr) (header, error) {
	for {
		base := h.spaceBase(s)
		if h.allocPtr-base > h.halfSize-size {
			if policy != collectIfNeeded {
				return header{}, ErrOutOfMemory
			}
			h.Collect()
			base = h.spaceBase(s)
			if h.allocPtr-base > h.halfSize-size {
				return header{}, ErrOutOfMemory
			}
		}

		old := *h.headerAt(h.allocPtr)
		if old.info == nil && old.forwardee != nilAddr {
			nextPinned := old.forwardee.offset()
			if nextPinned-h.allocPtr < size+headerSize {
				skipInfo := h.headerAt(nextPinned).info
				h.allocPtr = nextPinned + skipInfo.Size
				continue
			}
			return old, nil
		}
		if old.info != nil && old.forwardee == mkaddr(h.allocPtr) {
			// A pinned object sits directly at allocPtr with no skip
			// record preceding it (it was the first object in its
			// island, so finalizeAndRebuildPins had nothing to thread a
			// record from). Step over it the same way a skip record
			// would, rather than let construction write over it.
			h.allocPtr += old.info.Size
			continue
		}
		return old, nil
	}
}

// allocateBytes reserves room for an object described by info, invokes
// construct on the reserved payload region, and either commits the new
// header and advances allocPtr (success) or rolls everything back
// (construct returned an error).
func (h *Heap) allocateBytes(info *TypeInfo, construct func(payload unsafe.Pointer) error) (addr, error) {
	if info.Size < headerSize {
		panic("gcheap: TypeInfo.Size is smaller than a header")
	}
	oldAllocPtr := h.allocPtr
	saved, err := h.adjustAllocPtr(spaceFrom, collectIfNeeded, info.Size)
	if err != nil {
		return nilAddr, err
	}

	resultOff := h.allocPtr
	if construct != nil {
		if cerr := construct(h.payloadPointer(mkaddr(resultOff))); cerr != nil {
			h.allocPtr = oldAllocPtr
			h.restorePreamble(spaceFrom, saved)
			return nilAddr, cerr
		}
	}

	*h.headerAt(resultOff) = header{info: info, forwardee: nilAddr}
	h.allocPtr += info.Size
	h.restorePreamble(spaceFrom, saved)
	return mkaddr(resultOff), nil
}

// restorePreamble writes saved back at the current allocPtr, but only if
// there's room for a whole header left in the space.
func (h *Heap) restorePreamble(s spaceKind, saved header) {
	base := h.spaceBase(s)
	if h.halfSize-(h.allocPtr-base) >= headerSize {
		*h.headerAt(h.allocPtr) = saved
	}
}

// evacuateAddr copies the object at a into to-space (unless it is pinned or
// already forwarded), returning the address of the live copy. It is safe to
// call more than once for the same address: the forwarded check makes a
// second evacuation of an already-moved object a no-op instead of a
// duplicate copy (see DESIGN.md, Correctness fixes from review).
func (h *Heap) evacuateAddr(a addr, info *TypeInfo) addr {
	hdr := h.headerAtAddr(a)
	if hdr.isPinned(a) {
		return a
	}
	if hdr.isForwarded(a) {
		return hdr.forwardee
	}

	saved, err := h.adjustAllocPtr(spaceTo, neverCollect, info.Size)
	if err != nil {
		panic(errEvacuationOutOfMemory{typeName: info.Name})
	}
	dstOff := h.allocPtr
	info.relocate(h.payloadPointer(a), h.payloadPointer(mkaddr(dstOff)))
	*h.headerAt(dstOff) = header{info: info, forwardee: nilAddr}
	h.allocPtr += info.Size
	h.restorePreamble(spaceTo, saved)

	newAddr := mkaddr(dstOff)
	hdr.forwardee = newAddr
	return newAddr
}

// VisitHandle is called once per managed-reference field found by a type's
// VisitPointers during the Cheney scan. If the reference is nil or already
// outside the current from-space (pinned, or pointing at to-space because
// it was already processed) it is left alone; otherwise the referent is
// evacuated (if needed) and the handle rewritten. Root-set entries use
// Handle.evacuate instead, which has no from-space gate — see its doc
// comment for why.
func VisitHandle[T any](hd *Handle[T], h *Heap) {
	if !hd.payload.valid() {
		return
	}
	if !h.inFrom(hd.payload) {
		return
	}
	hdr := h.headerAtAddr(hd.payload)
	switch {
	case hdr.isPinned(hd.payload):
		// Stays at its current address; nothing to rewrite.
	case hdr.isForwarded(hd.payload):
		hd.payload = hdr.forwardee
	default:
		hd.payload = h.evacuateAddr(hd.payload, TypeInfoFor[T]())
	}
}

// Collect runs one full stop-the-world collection cycle. It never returns
// an error: running out of to-space room mid-evacuation is an unrecoverable
// sizing error and panics.
func (h *Heap) Collect() {
	h.allocPtr = h.toBase
	scanPtr := h.toBase

	for _, r := range h.roots {
		r.info.evacuateRoot(r.ptr, h)
	}

	for scanPtr < h.allocPtr {
		hdr := h.headerAt(scanPtr)
		if hdr.info == nil {
			scanPtr = hdr.forwardee.offset()
			continue
		}
		hdr.info.VisitPointers(h.payloadPointer(mkaddr(scanPtr)), h)
		scanPtr += hdr.info.Size
	}

	h.finalizeAndRebuildPins()

	h.fromBase, h.toBase = h.toBase, h.fromBase
}

// finalizeAndRebuildPins walks the old from-space: finalizing unreached
// objects, threading skip records across surviving pinned islands, and
// leaving a trailing sentinel when room allows.
func (h *Heap) finalizeAndRebuildPins() {
	oldFromBase := h.fromBase
	pinSlot := oldFromBase
	walk := oldFromBase

	for h.halfSize-(walk-oldFromBase) >= headerSize {
		hdr := h.headerAt(walk)
		if hdr.info == nil {
			if hdr.forwardee != nilAddr {
				walk = hdr.forwardee.offset()
				continue
			}
			break
		}

		size := hdr.info.Size
		self := mkaddr(walk)
		switch {
		case hdr.isPinned(self):
			if pinSlot != walk {
				*h.headerAt(pinSlot) = header{info: nil, forwardee: self}
			}
			pinSlot = walk + size
		case hdr.isLiveUnmoved():
			if hdr.info.Finalize != nil {
				h.runFinalizer(hdr.info, walk)
			}
		}
		// isForwarded: object was evacuated, nothing to do here.
		walk += size
	}

	if h.halfSize-(pinSlot-oldFromBase) > headerSize {
		*h.headerAt(pinSlot) = header{}
	}
}

func (h *Heap) runFinalizer(info *TypeInfo, walk uintptr) {
	defer func() {
		if r := recover(); r != nil {
			panic(fmt.Sprintf("gcheap: finalizer for %s panicked: %v", info.Name, r))
		}
	}()
	info.Finalize(h.payloadPointer(mkaddr(walk)))
}

// FinalizeAll walks both semispaces and finalizes every unreached live
// object, as at heap teardown. The root set must be empty.
func (h *Heap) FinalizeAll() {
	if len(h.roots) != 0 {
		panic("gcheap: FinalizeAll called with a non-empty root set")
	}
	for _, base := range [2]uintptr{0, h.halfSize} {
		walk := base
		for h.halfSize-(walk-base) >= headerSize {
			hdr := h.headerAt(walk)
			if hdr.info == nil {
				if hdr.forwardee != nilAddr {
					walk = hdr.forwardee.offset()
					continue
				}
				break
			}
			size := hdr.info.Size
			if hdr.isLiveUnmoved() && hdr.info.Finalize != nil {
				h.runFinalizer(hdr.info, walk)
			}
			walk += size
		}
	}
}

func (h *Heap) pin(a addr) {
	hdr := h.headerAtAddr(a)
	if hdr.forwardee != nilAddr {
		panic("gcheap: Pin called on an object that is already pinned or forwarded")
	}
	hdr.forwardee = a
}

func (h *Heap) unpin(a addr) {
	hdr := h.headerAtAddr(a)
	if hdr.forwardee != a {
		panic("gcheap: Unpin called on an object that is not pinned")
	}
	hdr.forwardee = nilAddr
}

func (h *Heap) registerRoot(ptr unsafe.Pointer, info *TypeInfo) (int, error) {
	if len(h.roots) >= h.maxRoots {
		return -1, ErrRootSetOverflow
	}
	slot := len(h.roots)
	h.roots = append(h.roots, rootEntry{ptr: ptr, info: info})
	return slot, nil
}

// unregisterRoot removes the root at slot in O(1) by swapping it with the
// last entry and updating that entry's stored slot index, so handles need
// not be released in strict LIFO order (see DESIGN.md's Open Question
// resolutions).
func (h *Heap) unregisterRoot(slot int) {
	last := len(h.roots) - 1
	if slot != last {
		h.roots[slot] = h.roots[last]
		(*handleHeader)(h.roots[slot].ptr).rootSlot = slot
	}
	h.roots = h.roots[:last]
}
