package gcheap

import "unsafe"

// Handle is a managed reference to a value of type T living in the heap.
// It carries no T-typed storage of its own — only an arena
// address and, for out-of-heap handles, the handle's own slot in the root
// set — so its memory layout never depends on T and a Handle[T] embedded as
// a field of some managed payload is bitwise-copyable along with the rest
// of that payload.
type Handle[T any] struct {
	payload  addr
	rootSlot int
}

// handleHeader mirrors Handle[T]'s layout without a type parameter, used by
// the root set to rewrite a handle's payload/slot without knowing its T
// (every Handle[T] instantiation has this exact layout; see the comment on
// Handle above).
type handleHeader struct {
	payload  addr
	rootSlot int
}

// NewRoot registers a new out-of-heap handle in h's root set and returns it
// together with a release function. Handles that live outside the heap —
// on the stack, or embedded in an unmanaged struct — must be registered
// this way so the collector can find and evacuate them as roots; Go has no
// destructors, so callers must arrange to call release themselves,
// typically with defer, immediately after NewRoot. A Handle[T] used only as
// a field inside another managed type must NOT go through NewRoot: it is
// found by that type's VisitPointers instead.
func NewRoot[T any](h *Heap) (*Handle[T], func()) {
	handle := &Handle[T]{rootSlot: -1}
	slot, err := h.registerRoot(unsafe.Pointer(handle), TypeInfoFor[T]())
	if err != nil {
		// Root set overflow is a programming error: size MaxRoots for it.
		panic(err)
	}
	handle.rootSlot = slot

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		h.unregisterRoot(handle.rootSlot)
		handle.rootSlot = -1
	}
	return handle, release
}

// IsNil reports whether the handle currently refers to no object.
func (hd *Handle[T]) IsNil() bool {
	return !hd.payload.valid()
}

// Set makes hd refer to the same object as src (or nothing, if src is
// nil), without registering or deregistering anything: it copies the
// payload address verbatim.
func (hd *Handle[T]) Set(src *Handle[T]) {
	hd.payload = src.payload
}

// Clear makes hd refer to no object.
func (hd *Handle[T]) Clear() {
	hd.payload = nilAddr
}

// evacuate processes hd as a root-set entry during Collect. Unlike
// VisitHandle (used for in-object fields, which only needs to act on
// references still in from-space), a root must be evacuated unconditionally:
// an object pinned during the previous collection keeps its address while
// the semispace roles swap underneath it, so its root handle now points
// into what Collect currently calls to-space, not from-space. Gating root
// evacuation on from-space membership would leave such a handle unrewritten
// and let a later evacuation overwrite the pinned object's slot.
// evacuateAddr's own pinned/forwarded checks still apply, so pinned objects
// are left in place and already-forwarded ones are just rewritten.
func (hd *Handle[T]) evacuate(h *Heap) {
	if !hd.payload.valid() {
		return
	}
	hd.payload = h.evacuateAddr(hd.payload, TypeInfoFor[T]())
}

// View pins the handle's referent and returns a raw pointer to it valid
// until unpin is called. Like NewRoot's release function, unpin must be
// called explicitly — typically via defer — since Go has no scope-exit
// destructors.
func (hd *Handle[T]) View(h *Heap) (ptr *T, unpin func()) {
	if !hd.payload.valid() {
		return nil, func() {}
	}
	h.pin(hd.payload)
	a := hd.payload
	return (*T)(h.payloadPointer(a)), func() { h.unpin(a) }
}

// WithPin pins the handle's referent for the duration of fn and guarantees
// it is unpinned again even if fn panics — a convenience wrapper around
// View/Pin for the common scoped-access pattern.
func WithPin[T any](h *Heap, hd *Handle[T], fn func(*T)) {
	ptr, unpin := hd.View(h)
	defer unpin()
	fn(ptr)
}
