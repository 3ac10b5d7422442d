package main

import (
	"fmt"
	"unsafe"

	"github.com/gocheney/gcheap/gcheap"
)

// A is the demo's example managed payload: a single self-referential
// handle field, standing in for an arbitrary object graph node.
type A struct {
	Ptr gcheap.Handle[A]
}

func registerA(finalized *int) {
	gcheap.Register[A](gcheap.TypeInfo{
		Name: "A",
		Size: gcheap.SizeOf[A](),
		VisitPointers: func(payload unsafe.Pointer, h *gcheap.Heap) {
			a := (*A)(payload)
			gcheap.VisitHandle(&a.Ptr, h)
		},
		Finalize: func(payload unsafe.Pointer) {
			*finalized++
		},
	})
}

type scenario struct {
	name string
	run  func(n *narrator) error
}

var scenarios = []scenario{
	{"s1", scenarioS1},
	{"s2", scenarioS2},
	{"s3", scenarioS3},
	{"s4", scenarioS4},
	{"s5", scenarioS5},
	{"s6", scenarioS6},
}

// scenarioS1 demonstrates basic reclamation: a temporary with no retained
// handle is collected, while a chain of two retained objects survives.
func scenarioS1(n *narrator) error {
	n.heading("S1 basic reclamation")
	finalized := 0
	registerA(&finalized)

	h, err := gcheap.New(4096, 16)
	if err != nil {
		return err
	}
	defer h.Close()

	a1, releaseA1, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseA1()
	n.step("allocated a1")

	a2, releaseA2, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseA2()
	a1v, unpin1 := a1.View(h)
	a1v.Ptr.Set(a2)
	unpin1()
	n.step("allocated a2, set a1.Ptr := a2")

	func() {
		_, release3, err := gcheap.Allocate(h, A{})
		if err != nil {
			n.fatal("allocating a3: %v", err)
		}
		defer release3()
		n.step("allocated a3 (temporary, no retained handle after this scope)")
	}()

	n.step("collecting")
	h.Collect()

	if finalized != 1 {
		n.fatal("expected exactly 1 finalization, got %d", finalized)
	}
	if a1.IsNil() || a2.IsNil() {
		n.fatal("a1/a2 unexpectedly nil after collection")
	}
	n.step("a3 reclaimed, finalizer ran once; a1 and a2 survive")
	return nil
}

// scenarioS2 demonstrates a two-node cycle reclaimed once its handles go
// out of scope.
func scenarioS2(n *narrator) error {
	n.heading("S2 cycle reclamation")
	finalized := 0
	registerA(&finalized)

	h, err := gcheap.New(4096, 16)
	if err != nil {
		return err
	}
	defer h.Close()

	func() {
		c1, release1, err := gcheap.Allocate(h, A{})
		if err != nil {
			n.fatal("allocating c1: %v", err)
		}
		defer release1()
		c2, release2, err := gcheap.Allocate(h, A{})
		if err != nil {
			n.fatal("allocating c2: %v", err)
		}
		defer release2()

		c1v, unpin1 := c1.View(h)
		c1v.Ptr.Set(c2)
		unpin1()
		c2v, unpin2 := c2.View(h)
		c2v.Ptr.Set(c1)
		unpin2()
		n.step("allocated c1, c2; linked c1.Ptr<->c2.Ptr")
	}()

	n.step("handles out of scope, collecting")
	h.Collect()
	if finalized != 2 {
		n.fatal("expected exactly 2 finalizations for the cycle, got %d", finalized)
	}
	n.step("both cycle members reclaimed, each finalized exactly once")
	return nil
}

// scenarioS3 pins an object, captures a raw pointer to it, and confirms
// the pointer survives a collection unchanged.
func scenarioS3(n *narrator) error {
	n.heading("S3 pin survives collection")
	finalized := 0
	registerA(&finalized)

	h, err := gcheap.New(4096, 16)
	if err != nil {
		return err
	}
	defer h.Close()

	p, releaseP, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseP()

	rp := p.UnscopedPin(h)
	n.step("allocated p, pinned raw pointer %p", rp)

	h.Collect()
	p.UnscopedUnpin(h)
	after := p.UnscopedPin(h)
	p.UnscopedUnpin(h)
	if uintptr(unsafe.Pointer(rp)) != uintptr(unsafe.Pointer(after)) {
		n.fatal("pinned object moved: before=%p after=%p", rp, after)
	}
	n.step("p's payload address unchanged across Collect")
	return nil
}

// scenarioS4 keeps two ordinary objects alive ahead of a pinned one, so
// the collection right after pinning threads a genuine skip record across
// their old slots, then confirms a further allocation and collection
// evacuate around that record without disturbing the pin.
func scenarioS4(n *narrator) error {
	n.heading("S4 skip record threading")
	finalized := 0
	registerA(&finalized)

	h, err := gcheap.New(4096, 16)
	if err != nil {
		return err
	}
	defer h.Close()

	x, releaseX, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseX()
	y, releaseY, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseY()
	xv, unpinX := x.View(h)
	xv.Ptr.Set(y)
	unpinX()

	p, releaseP, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseP()
	rp := p.UnscopedPin(h)
	n.step("allocated x, y, and pinned p at %p", rp)

	h.Collect()
	p.UnscopedUnpin(h)
	after1 := p.UnscopedPin(h)
	if uintptr(unsafe.Pointer(rp)) != uintptr(unsafe.Pointer(after1)) {
		n.fatal("p moved even though it stayed pinned: before=%p after=%p", rp, after1)
	}
	n.step("x and y evacuated ahead of p; p's address unchanged")

	_, releaseFoo, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseFoo()
	n.step("allocated foo after collection; allocator stepped around p's skip record")

	h.Collect()
	stats := h.Stats()
	n.step("used=%d capacity=%d live=%d pinned=%d", stats.Used, stats.Capacity, stats.LiveObjects, stats.PinnedObjects)
	if stats.PinnedObjects != 1 {
		n.fatal("expected exactly 1 pinned object, got %d", stats.PinnedObjects)
	}
	p.UnscopedUnpin(h)
	return nil
}

// scenarioS5 keeps two ordinary objects alive ahead of a pinned one so
// there is somewhere for it to compact into once unpinned (a lone pinned
// object has nowhere else to go), then confirms it relocates on the next
// collection without being finalized (its handle is still live).
func scenarioS5(n *narrator) error {
	n.heading("S5 unpin reclamation")
	finalized := 0
	registerA(&finalized)

	h, err := gcheap.New(4096, 16)
	if err != nil {
		return err
	}
	defer h.Close()

	_, releaseX, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseX()
	_, releaseY, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseY()

	p, releaseP, err := gcheap.Allocate(h, A{})
	if err != nil {
		return err
	}
	defer releaseP()
	rp := p.UnscopedPin(h)
	n.step("allocated x, y, and pinned p at %p", rp)
	h.Collect()

	p.UnscopedUnpin(h)
	n.step("unpinned p")
	h.Collect()

	after, unpinAfter := p.View(h)
	defer unpinAfter()
	if uintptr(unsafe.Pointer(rp)) == uintptr(unsafe.Pointer(after)) {
		n.fatal("p did not relocate after unpin")
	}
	if finalized != 0 {
		n.fatal("p was finalized even though its handle is still live")
	}
	n.step("p relocated to a compacted position; no finalizer ran")
	return nil
}

// scenarioS6 exhausts the heap, confirms the out-of-memory signal, then
// confirms the heap remains usable once handles are dropped.
func scenarioS6(n *narrator) error {
	n.heading("S6 out-of-memory recovery")
	finalized := 0
	registerA(&finalized)

	h, err := gcheap.New(256, 64)
	if err != nil {
		return err
	}
	defer h.Close()

	var releases []func()
	var allocErr error
	count := 0
	for {
		_, release, err := gcheap.Allocate(h, A{})
		if err != nil {
			allocErr = err
			break
		}
		releases = append(releases, release)
		count++
	}
	if allocErr == nil {
		n.fatal("expected an out-of-memory error eventually")
	}
	n.step("allocated %d objects before hitting %v", count, allocErr)

	for _, release := range releases {
		release()
	}
	h.Collect()

	_, release, err := gcheap.Allocate(h, A{})
	if err != nil {
		return fmt.Errorf("heap unusable after dropping handles: %w", err)
	}
	release()
	n.step("heap usable again after dropping handles and collecting")
	return nil
}
