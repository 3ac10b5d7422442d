// Package gcconfig reads the demo program's YAML configuration file. It
// knows nothing about gcheap.Heap's internals; it only produces the plain
// values a caller passes to gcheap.New.
package gcconfig

import (
	"fmt"
	"os"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// Config holds the settings a demo or tool needs to construct a heap and
// decide how to render its output.
type Config struct {
	HeapSize int    `yaml:"heapSize"`
	MaxRoots int    `yaml:"maxRoots"`
	Color    string `yaml:"color"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{HeapSize: 1024, MaxRoots: 1024, Color: "auto"}
}

// fileConfig mirrors Config but lets heapSize be either a bare integer or a
// go-bytesize string like "64KiB", since YAML numeric and string scalars
// unmarshal differently.
type fileConfig struct {
	HeapSize interface{} `yaml:"heapSize"`
	MaxRoots *int        `yaml:"maxRoots"`
	Color    *string     `yaml:"color"`
}

// Load reads path as YAML and returns the resulting configuration, filling
// in any field the file omits from Default. A missing file, or an empty
// path, returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("gcconfig: reading %s: %w", path, err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("gcconfig: parsing %s: %w", path, err)
	}

	if raw.HeapSize != nil {
		size, err := parseHeapSize(raw.HeapSize)
		if err != nil {
			return Config{}, fmt.Errorf("gcconfig: heapSize in %s: %w", path, err)
		}
		cfg.HeapSize = size
	}
	if raw.MaxRoots != nil {
		if *raw.MaxRoots <= 0 {
			return Config{}, fmt.Errorf("gcconfig: maxRoots in %s must be positive, got %d", path, *raw.MaxRoots)
		}
		cfg.MaxRoots = *raw.MaxRoots
	}
	if raw.Color != nil {
		switch *raw.Color {
		case "auto", "always", "never":
			cfg.Color = *raw.Color
		default:
			return Config{}, fmt.Errorf("gcconfig: color in %s must be auto, always, or never, got %q", path, *raw.Color)
		}
	}

	if cfg.HeapSize <= 0 || cfg.HeapSize%2 != 0 {
		return Config{}, fmt.Errorf("gcconfig: heapSize must be a positive even number of bytes, got %d", cfg.HeapSize)
	}
	return cfg, nil
}

func parseHeapSize(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case string:
		size, err := bytesize.Parse(n)
		if err != nil {
			return 0, fmt.Errorf("parsing %q: %w", n, err)
		}
		return int(size), nil
	default:
		return 0, fmt.Errorf("unsupported heapSize value %v (%T)", v, v)
	}
}

// FormatSize renders a byte count the way the demo program's CLI output
// does, using the same units go-bytesize parses.
func FormatSize(n uintptr) string {
	return bytesize.New(float64(n)).String()
}
