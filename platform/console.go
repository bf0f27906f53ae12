package platform

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	isatty "github.com/mattn/go-isatty"
)

// ConsolePlatform is a reference Platform for desktop hosts: it embeds
// Noop (so every native subsystem it doesn't care about stays inert)
// and overrides console output, state dumps and IPC envelope IDs.
//
// Grounded on the go-ethereum-family console logger pattern seen
// elsewhere in the retrieval pack (colorized terminal output gated on
// isatty, falling back to plain text when not attached to a TTY) —
// see DESIGN.md for the exact dependency trace; the core vm/natives
// packages never import fatih/color or go-isatty themselves, only this
// optional reference Platform does.
type ConsolePlatform struct {
	Noop

	Stdout, Stderr io.Writer
	color          bool

	infoColor  *color.Color
	errorColor *color.Color
	dimColor   *color.Color
}

var _ Platform = (*ConsolePlatform)(nil)

// NewConsolePlatform constructs a ConsolePlatform writing to os.Stdout
// and os.Stderr, enabling ANSI color only when stdout is a TTY.
func NewConsolePlatform() *ConsolePlatform {
	cp := &ConsolePlatform{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		color:  isatty.IsTerminal(os.Stdout.Fd()),
	}
	cp.infoColor = color.New(color.FgCyan)
	cp.errorColor = color.New(color.FgRed, color.Bold)
	cp.dimColor = color.New(color.Faint)
	return cp
}

func (c *ConsolePlatform) ConsoleLog(msg string) {
	if c.color {
		c.infoColor.Fprintln(c.Stdout, msg)
		return
	}
	fmt.Fprintln(c.Stdout, msg)
}

func (c *ConsolePlatform) ConsoleError(msg string) {
	if c.color {
		c.errorColor.Fprintln(c.Stderr, msg)
		return
	}
	fmt.Fprintln(c.Stderr, msg)
}

func (c *ConsolePlatform) DumpState(dump StateDump) {
	write := func(format string, args ...interface{}) {
		if c.color {
			c.dimColor.Fprintf(c.Stderr, format, args...)
			return
		}
		fmt.Fprintf(c.Stderr, format, args...)
	}
	write("--- dialvm state dump: %s ---\n", dump.Reason)
	write("pc=%d\n", dump.PC)
	for name, val := range dump.Globals {
		write("global %s = %s\n", name, val)
	}
	for i, f := range dump.CallStack {
		write("frame[%d] %s (return_pc=%d)\n", i, f.FunctionName, f.ReturnPC)
		for j, l := range f.Locals {
			write("  local[%d] = %s\n", j, l)
		}
	}
}

// IPCPublish returns a freshly minted envelope ID (SPEC_FULL.md §3.3)
// instead of Noop's empty string, so a ConsolePlatform-backed program
// observes realistic ipc.publish behavior.
func (c *ConsolePlatform) IPCPublish(topic, payload string) string {
	id := uuid.New().String()
	c.ConsoleLog(fmt.Sprintf("ipc: published %q on %q (%s)", payload, topic, id))
	return id
}
