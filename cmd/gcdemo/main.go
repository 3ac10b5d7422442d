// Command gcdemo walks through the collector's documented scenarios and
// offers a small interactive shell for experimenting with a live heap.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/mattn/go-tty"

	"github.com/gocheney/gcheap/gcheap"
	"github.com/gocheney/gcheap/internal/gcconfig"
	"github.com/gocheney/gcheap/internal/heapdump"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: built-in defaults)")
	colorMode := flag.String("color", "", "override config color mode: auto, always, never")
	flag.Parse()

	cfg, err := gcconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *colorMode != "" {
		cfg.Color = *colorMode
	}
	n := newNarrator(cfg.Color)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "run":
		runCommand(n, args[1:])
	case "repl":
		replCommand(n, cfg, args[1:])
	case "snapshot":
		snapshotCommand(n, cfg, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  gcdemo run [s1|s2|s3|s4|s5|s6|all]
  gcdemo repl [--interactive]
  gcdemo snapshot <path>`)
}

func runCommand(n *narrator, args []string) {
	want := "all"
	if len(args) > 0 {
		want = args[0]
	}
	for _, s := range scenarios {
		if want != "all" && want != s.name {
			continue
		}
		if err := s.run(n); err != nil {
			n.fatal("%s: %v", s.name, err)
		}
	}
}

func snapshotCommand(n *narrator, cfg gcconfig.Config, args []string) {
	if len(args) == 0 {
		n.fatal("snapshot requires a path")
	}
	finalized := 0
	registerA(&finalized)
	h, err := gcheap.New(cfg.HeapSize, cfg.MaxRoots)
	if err != nil {
		n.fatal("constructing heap: %v", err)
	}
	defer h.Close()

	_, release, err := gcheap.Allocate(h, A{})
	if err != nil {
		n.fatal("allocating sample object: %v", err)
	}
	defer release()

	if err := heapdump.WriteSnapshot(args[0], h.Snapshot()); err != nil {
		n.fatal("writing snapshot: %v", err)
	}
	n.step("wrote snapshot to %s (%s used)", args[0], gcconfig.FormatSize(h.Used()))
}

// replCommand runs a tiny line-oriented shell over a single heap:
// "alloc", "collect", "stats", "quit". Each line is tokenized with shlex so
// quoting works the way a shell user expects.
func replCommand(n *narrator, cfg gcconfig.Config, args []string) {
	interactive := false
	for _, a := range args {
		if a == "--interactive" {
			interactive = true
		}
	}

	finalized := 0
	registerA(&finalized)
	h, err := gcheap.New(cfg.HeapSize, cfg.MaxRoots)
	if err != nil {
		n.fatal("constructing heap: %v", err)
	}
	defer h.Close()

	var tt *tty.TTY
	if interactive {
		tt, err = tty.Open()
		if err != nil {
			n.warn("could not open tty for stepping (%v); continuing without it", err)
			interactive = false
		} else {
			defer tt.Close()
		}
	}

	var releases []func()
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	n.heading("gcdemo repl (alloc, collect, stats, quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields, err := shlex.Split(scanner.Text())
		if err != nil || len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "alloc":
			_, release, err := gcheap.Allocate(h, A{})
			if err != nil {
				n.warn("alloc failed: %v", err)
				continue
			}
			releases = append(releases, release)
			n.step("allocated object #%d", len(releases))
		case "collect":
			h.Collect()
			n.step("collection complete")
		case "stats":
			s := h.Stats()
			n.step("used=%s capacity=%s live=%d pinned=%d",
				gcconfig.FormatSize(s.Used), gcconfig.FormatSize(s.Capacity), s.LiveObjects, s.PinnedObjects)
		case "quit", "exit":
			return
		default:
			n.warn("unknown command %q", strings.Join(fields, " "))
		}
		if interactive && tt != nil {
			n.step("press a key to continue...")
			tt.ReadRune()
		}
	}
}
