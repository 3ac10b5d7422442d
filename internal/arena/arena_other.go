//go:build !unix

package arena

// newRegion falls back to a plain Go allocation on non-unix platforms. It
// has no OS resource to release, so the region's impl stays nil and
// Region.Close's nil check makes Close a no-op.
func newRegion(size int) (*Region, error) {
	return &Region{data: make([]byte, size)}, nil
}
