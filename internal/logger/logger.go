// Package logger provides the ambient logging surface every covfuzz
// component takes as a dependency (spec.md §9: "Logger, event bus, and
// timer wheel are injected dependencies of every component"). The shape
// mirrors the teacher codebase's pkg/log: a leveled Logf plus a verbosity
// gate, injected as a struct field rather than called as a package global.
package logger

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Logf matches the call shape used throughout the teacher codebase
// (e.g. Fuzzer.Config.Logf, RPCServer's use of pkg/log):
// Logf(level, "%s connected", name).
type Logf func(level int, format string, args ...any)

// verbosity is process-global the same way the teacher's -debug flag is;
// individual components still take their own Logf so tests can capture
// output instead of touching global state.
var verbosity atomic.Int32

// SetVerbosity adjusts the global verbosity threshold V checks against.
func SetVerbosity(level int) {
	verbosity.Store(int32(level))
}

// V reports whether messages at the given level should be emitted, mirroring
// the teacher's log.V(n) gate used to avoid formatting work for suppressed
// debug output.
func V(level int) bool {
	return int32(level) <= verbosity.Load()
}

// Stdout returns a Logf that writes timestamped lines to stderr, gated by V.
// This is the only place in the package that touches the process's actual
// output stream; every other component depends on the Logf type, not this
// function, so tests can substitute a capturing sink.
func Stdout() Logf {
	return func(level int, format string, args ...any) {
		if !V(level) {
			return
		}
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s %s\n", time.Now().UTC().Format(time.RFC3339Nano), msg)
	}
}

// Discard silences all logging; used as the default in tests that don't
// care about log output.
func Discard() Logf {
	return func(level int, format string, args ...any) {}
}

// Capture returns a Logf and a function that drains everything logged so
// far, for tests that assert on log content.
func Capture() (Logf, func() []string) {
	var lines []string
	return func(level int, format string, args ...any) {
			lines = append(lines, fmt.Sprintf("[%d] %s", level, fmt.Sprintf(format, args...)))
		}, func() []string {
			return lines
		}
}
