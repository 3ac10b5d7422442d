package arena_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocheney/gcheap/internal/arena"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := arena.New(0)
	assert.Error(t, err)

	_, err = arena.New(-1)
	assert.Error(t, err)
}

func TestNewReturnsZeroedBytesOfRequestedLength(t *testing.T) {
	r, err := arena.New(4096)
	require.NoError(t, err)
	defer r.Close()

	b := r.Bytes()
	require.Len(t, b, 4096)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}

	b[0] = 0xFF
	assert.Equal(t, byte(0xFF), r.Bytes()[0])
}

func TestCloseSucceeds(t *testing.T) {
	r, err := arena.New(4096)
	require.NoError(t, err)
	assert.NoError(t, r.Close())
}
