package heapdump_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocheney/gcheap/gcheap"
	"github.com/gocheney/gcheap/internal/heapdump"
)

func TestWriteAndReadSnapshotRoundTrips(t *testing.T) {
	regions := []gcheap.Region{
		{Kind: gcheap.RegionLive, Offset: 0, Size: 32, TypeName: "node"},
		{Kind: gcheap.RegionSkipGap, Offset: 32, Size: 16},
		{Kind: gcheap.RegionPinned, Offset: 48, Size: 32, TypeName: "node"},
	}

	path := filepath.Join(t.TempDir(), "snap.ndjson")
	require.NoError(t, heapdump.WriteSnapshot(path, regions))

	got, err := heapdump.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, regions, got)
}

func TestWriteSnapshotAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.ndjson")
	first := []gcheap.Region{{Kind: gcheap.RegionLive, Offset: 0, Size: 8}}
	second := []gcheap.Region{{Kind: gcheap.RegionLive, Offset: 8, Size: 8}}

	require.NoError(t, heapdump.WriteSnapshot(path, first))
	require.NoError(t, heapdump.WriteSnapshot(path, second))

	got, err := heapdump.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
