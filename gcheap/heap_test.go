package gcheap_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocheney/gcheap/gcheap"
)

// node is the test package's example managed payload: one self-referential
// handle field, exercising the same shape gcdemo's A type does.
type node struct {
	ptr gcheap.Handle[node]
}

func registerNode(t *testing.T, onFinalize func()) {
	t.Helper()
	gcheap.Register[node](gcheap.TypeInfo{
		Name: "node",
		Size: gcheap.SizeOf[node](),
		VisitPointers: func(payload unsafe.Pointer, h *gcheap.Heap) {
			n := (*node)(payload)
			gcheap.VisitHandle(&n.ptr, h)
		},
		Finalize: func(unsafe.Pointer) {
			if onFinalize != nil {
				onFinalize()
			}
		},
	})
}

func newTestHeap(t *testing.T, size, maxRoots int) *gcheap.Heap {
	t.Helper()
	h, err := gcheap.New(size, maxRoots)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestNewRejectsBadSizes(t *testing.T) {
	_, err := gcheap.New(0, 16)
	assert.Error(t, err)

	_, err = gcheap.New(3, 16)
	assert.Error(t, err)

	_, err = gcheap.New(64, 0)
	assert.Error(t, err)
}

func TestAllocateAndRead(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 4096, 16)

	handle, release, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer release()

	assert.False(t, handle.IsNil())
	ptr, unpin := handle.View(h)
	defer unpin()
	assert.NotNil(t, ptr)
}

// S1 — Basic reclamation: a temporary with no retained handle is
// collected, while a two-node chain allocated around it survives.
func TestBasicReclamation(t *testing.T) {
	finalizedCount := 0
	registerNode(t, func() { finalizedCount++ })
	h := newTestHeap(t, 4096, 16)

	a1, releaseA1, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseA1()

	a2, releaseA2, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseA2()

	a1v, unpin1 := a1.View(h)
	a1v.ptr.Set(a2)
	unpin1()

	func() {
		_, releaseTmp, err := gcheap.Allocate(h, node{})
		require.NoError(t, err)
		defer releaseTmp()
	}()

	h.Collect()

	assert.Equal(t, 1, finalizedCount)
	assert.False(t, a1.IsNil())
	assert.False(t, a2.IsNil())

	a1v2, unpin2 := a1.View(h)
	defer unpin2()
	assert.Equal(t, a2.IsNil(), a1v2.ptr.IsNil())
}

// S2 — Cycle: two nodes referencing each other are reclaimed together
// once their handles leave scope, each finalized exactly once.
func TestCycleReclamation(t *testing.T) {
	finalizedCount := 0
	registerNode(t, func() { finalizedCount++ })
	h := newTestHeap(t, 4096, 16)

	func() {
		c1, release1, err := gcheap.Allocate(h, node{})
		require.NoError(t, err)
		defer release1()
		c2, release2, err := gcheap.Allocate(h, node{})
		require.NoError(t, err)
		defer release2()

		c1v, unpin1 := c1.View(h)
		c1v.ptr.Set(c2)
		unpin1()
		c2v, unpin2 := c2.View(h)
		c2v.ptr.Set(c1)
		unpin2()
	}()

	h.Collect()
	assert.Equal(t, 2, finalizedCount)
}

// S3 — Pin survives collection: a pinned object's payload address is
// unchanged by Collect.
func TestPinSurvivesCollection(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 4096, 16)

	p, release, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer release()

	rp := p.UnscopedPin(h)
	h.Collect()
	p.UnscopedUnpin(h)
	after := p.UnscopedPin(h)
	p.UnscopedUnpin(h)

	assert.Same(t, rp, after)
}

// TestPinAtSpaceBase is the degenerate case of S4: the pinned object is
// the first (and, at the time of its first collection, only) thing ever
// allocated, so it sits at offset zero of its space with no skip record
// preceding it. The next collection's evacuation must still step around
// it instead of writing the first evacuated object over its header.
func TestPinAtSpaceBase(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 4096, 16)

	p, release, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer release()
	rp := p.UnscopedPin(h)

	h.Collect()

	foo, releaseFoo, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseFoo()

	h.Collect()

	stats := h.Stats()
	assert.Equal(t, 1, stats.PinnedObjects)
	p.UnscopedUnpin(h)
	after := p.UnscopedPin(h)
	p.UnscopedUnpin(h)
	assert.Same(t, rp, after)
	assert.False(t, foo.IsNil())
}

// S4 — Skip record threading: x and y survive ahead of the pinned object
// p, so the collection after p is pinned threads a genuine (non-empty)
// skip record across their old slots. A further allocation and collection
// must evacuate around that record without disturbing p.
func TestSkipRecordThreading(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 4096, 16)

	x, releaseX, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseX()
	y, releaseY, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseY()
	xv, unpinX := x.View(h)
	xv.ptr.Set(y)
	unpinX()

	p, release, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer release()
	rp := p.UnscopedPin(h)

	h.Collect()
	p.UnscopedUnpin(h)
	after1 := p.UnscopedPin(h)
	assert.Same(t, rp, after1)
	// p stays pinned here; the next collection must still thread a skip
	// record around it rather than disturb it.

	foo, releaseFoo, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseFoo()

	h.Collect()

	stats := h.Stats()
	assert.Equal(t, 1, stats.PinnedObjects)
	p.UnscopedUnpin(h)
	after2 := p.UnscopedPin(h)
	p.UnscopedUnpin(h)
	assert.Same(t, rp, after2)
	assert.False(t, x.IsNil())
	assert.False(t, y.IsNil())
	assert.False(t, foo.IsNil())
}

// S5 — Unpin reclamation: x and y give the collector room to compact p
// into once it is unpinned, so its payload address actually changes; a
// lone pinned object has nowhere else to go and can't demonstrate this.
func TestUnpinReclamation(t *testing.T) {
	finalizedCount := 0
	registerNode(t, func() { finalizedCount++ })
	h := newTestHeap(t, 4096, 16)

	x, releaseX, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseX()
	y, releaseY, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer releaseY()

	p, release, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer release()

	rp := p.UnscopedPin(h)
	h.Collect()
	p.UnscopedUnpin(h)
	h.Collect()

	after, unpin := p.View(h)
	defer unpin()

	assert.NotSame(t, rp, after)
	assert.Equal(t, 0, finalizedCount)
	assert.False(t, x.IsNil())
	assert.False(t, y.IsNil())
}

// S6 — OOM recovery: exhausting the heap returns ErrOutOfMemory, and the
// heap remains usable once handles are dropped.
func TestOutOfMemoryRecovery(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 128, 64)

	var releases []func()
	var lastErr error
	for {
		_, release, err := gcheap.Allocate(h, node{})
		if err != nil {
			lastErr = err
			break
		}
		releases = append(releases, release)
	}
	require.ErrorIs(t, lastErr, gcheap.ErrOutOfMemory)

	for _, release := range releases {
		release()
	}
	h.Collect()

	_, release, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	release()
}

func TestRootSetOverflow(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 4096, 2)

	_, release1, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer release1()
	_, release2, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	defer release2()

	require.PanicsWithValue(t, gcheap.ErrRootSetOverflow, func() {
		_, _, _ = gcheap.Allocate(h, node{})
	})
}

func TestConstructorErrorRollsBack(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 4096, 16)

	before := h.Used()
	_, _, err := gcheap.AllocateWith(h, func() (node, error) {
		return node{}, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before, h.Used())
}

func TestFinalizeAllRequiresEmptyRootSet(t *testing.T) {
	registerNode(t, nil)
	h, err := gcheap.New(4096, 16)
	require.NoError(t, err)

	_, release, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)

	assert.Panics(t, func() { h.FinalizeAll() })

	release()
	require.NoError(t, h.Close())
}

func TestNonLIFORootRelease(t *testing.T) {
	registerNode(t, nil)
	h := newTestHeap(t, 4096, 16)

	_, release1, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	_, release2, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)
	h3, release3, err := gcheap.Allocate(h, node{})
	require.NoError(t, err)

	release1()
	release3()
	release2()

	assert.False(t, h3.IsNil())
	h.Collect()
}
