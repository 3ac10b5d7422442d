package main

import (
	"io"
	"log"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\x1b[0m"
	colorCyan   = "\x1b[36m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
)

// narrator logs collector events the way the demo walks a reader through
// a run: one line per allocate/pin/collect/finalize, colorized when
// writing to a real terminal.
type narrator struct {
	out    io.Writer
	color  bool
	logger *log.Logger
}

func newNarrator(mode string) *narrator {
	out := colorable.NewColorableStdout()
	color := shouldColor(mode, out)
	return &narrator{
		out:    out,
		color:  color,
		logger: log.New(out, "", 0),
	}
}

func shouldColor(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		if f, ok := out.(*os.File); ok {
			return isatty.IsTerminal(f.Fd())
		}
		return isatty.IsTerminal(os.Stdout.Fd())
	}
}

func (n *narrator) paint(code, s string) string {
	if !n.color {
		return s
	}
	return code + s + colorReset
}

func (n *narrator) step(format string, args ...interface{}) {
	n.logger.Printf(n.paint(colorCyan, "  -> ")+format, args...)
}

func (n *narrator) warn(format string, args ...interface{}) {
	n.logger.Printf(n.paint(colorYellow, "  !  ")+format, args...)
}

func (n *narrator) fatal(format string, args ...interface{}) {
	n.logger.Fatalf(n.paint(colorRed, "FATAL ")+format, args...)
}

func (n *narrator) heading(name string) {
	n.logger.Println(n.paint(colorCyan, "=== "+name+" ==="))
}
