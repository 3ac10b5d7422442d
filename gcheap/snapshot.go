package gcheap

// RegionKind classifies one entry of a Heap.Snapshot.
type RegionKind int

const (
	// RegionLive is a reachable, unpinned object (or, between collections,
	// any live object that simply hasn't been pinned).
	RegionLive RegionKind = iota
	// RegionPinned is an object the collector will not relocate.
	RegionPinned
	// RegionSkipGap is the space bridged by a skip record between pinned
	// islands; it holds no object.
	RegionSkipGap
)

// Region describes one contiguous stretch of the active semispace, as
// produced by Heap.Snapshot. Offset is relative to the start of the active
// semispace, not the combined arena.
type Region struct {
	Kind     RegionKind
	Offset   uintptr
	Size     uintptr
	TypeName string
}

// Stats summarizes the heap's current occupancy.
type Stats struct {
	Used          uintptr
	Capacity      uintptr
	LiveObjects   int
	PinnedObjects int
}

// Snapshot walks the active semispace and returns a description of every
// live object, pinned island, and skip gap it contains, in address order.
// It performs the same linear walk Collect's finalization phase does, but
// is read-only and safe to call at any time between collections.
func (h *Heap) Snapshot() []Region {
	var regions []Region
	walk := h.fromBase
	for h.halfSize-(walk-h.fromBase) >= headerSize {
		hdr := h.headerAt(walk)
		if hdr.info == nil {
			if hdr.forwardee == nilAddr {
				break
			}
			next := hdr.forwardee.offset()
			if next > walk {
				regions = append(regions, Region{
					Kind:   RegionSkipGap,
					Offset: walk - h.fromBase,
					Size:   next - walk,
				})
			}
			walk = next
			continue
		}

		kind := RegionLive
		if hdr.isPinned(mkaddr(walk)) {
			kind = RegionPinned
		}
		regions = append(regions, Region{
			Kind:     kind,
			Offset:   walk - h.fromBase,
			Size:     hdr.info.Size,
			TypeName: hdr.info.Name,
		})
		walk += hdr.info.Size
	}
	return regions
}

// Stats aggregates Snapshot into simple occupancy counters.
func (h *Heap) Stats() Stats {
	s := Stats{Used: h.Used(), Capacity: h.halfSize}
	for _, r := range h.Snapshot() {
		switch r.Kind {
		case RegionLive:
			s.LiveObjects++
		case RegionPinned:
			s.PinnedObjects++
		}
	}
	return s
}
