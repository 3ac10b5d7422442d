package gcheap

// PinHandle is a scoped pin obtained from Handle.Pin. While it is alive,
// the collector will not move its referent and raw pointers obtained
// through Value remain valid across any number of Collect calls. Call
// Unpin to release it — Go has no destructors, so the caller is expected
// to defer Unpin immediately after obtaining the PinHandle.
type PinHandle[T any] struct {
	heap *Heap
	addr addr
	done bool
}

// Pin pins hd's referent and returns a scoped handle to it. Pinning a nil
// handle returns a PinHandle whose Value is nil and whose Unpin is a no-op.
func (hd *Handle[T]) Pin(h *Heap) *PinHandle[T] {
	if !hd.payload.valid() {
		return &PinHandle[T]{heap: h, addr: nilAddr, done: true}
	}
	h.pin(hd.payload)
	return &PinHandle[T]{heap: h, addr: hd.payload}
}

// Value returns the pinned object's payload pointer. The pointer is valid
// until Unpin is called, including across any number of Collect calls in
// between.
func (p *PinHandle[T]) Value() *T {
	if !p.addr.valid() {
		return nil
	}
	return (*T)(p.heap.payloadPointer(p.addr))
}

// Unpin releases the pin. It is safe to call more than once.
func (p *PinHandle[T]) Unpin() {
	if p.done {
		return
	}
	p.done = true
	if p.addr.valid() {
		p.heap.unpin(p.addr)
	}
}

// UnscopedPin pins hd's referent and returns its raw payload pointer
// directly, for cases where the pin's lifetime cannot be stack-scoped. The
// caller must later call UnscopedUnpin on hd.
func (hd *Handle[T]) UnscopedPin(h *Heap) *T {
	if !hd.payload.valid() {
		return nil
	}
	h.pin(hd.payload)
	return (*T)(h.payloadPointer(hd.payload))
}

// UnscopedUnpin releases a pin taken with UnscopedPin.
func (hd *Handle[T]) UnscopedUnpin(h *Heap) {
	if !hd.payload.valid() {
		return
	}
	h.unpin(hd.payload)
}
