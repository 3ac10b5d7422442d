package gcconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocheney/gcheap/internal/gcconfig"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := gcconfig.Load("")
	require.NoError(t, err)
	assert.Equal(t, gcconfig.Default(), cfg)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := gcconfig.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, gcconfig.Default(), cfg)
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gcheap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesHumanReadableHeapSize(t *testing.T) {
	path := writeConfig(t, "heapSize: 64KB\nmaxRoots: 4096\ncolor: always\n")
	cfg, err := gcconfig.Load(path)
	require.NoError(t, err)
	assert.Greater(t, cfg.HeapSize, 1024)
	assert.Equal(t, 0, cfg.HeapSize%2)
	assert.Equal(t, 4096, cfg.MaxRoots)
	assert.Equal(t, "always", cfg.Color)
}

func TestLoadParsesNumericHeapSize(t *testing.T) {
	path := writeConfig(t, "heapSize: 2048\n")
	cfg, err := gcconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.HeapSize)
	assert.Equal(t, gcconfig.Default().MaxRoots, cfg.MaxRoots)
}

func TestLoadRejectsOddHeapSize(t *testing.T) {
	path := writeConfig(t, "heapSize: 2047\n")
	_, err := gcconfig.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownColorMode(t *testing.T) {
	path := writeConfig(t, "color: loud\n")
	_, err := gcconfig.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveMaxRoots(t *testing.T) {
	path := writeConfig(t, "maxRoots: 0\n")
	_, err := gcconfig.Load(path)
	assert.Error(t, err)
}
