package trace

import (
	"fmt"
	"io"
)

// Logger writes one line per cycle to w when the -d/--debug flag is
// set. It implements scheduler.DebugSink without importing the
// scheduler package, keeping the dependency direction outward from
// the core loop toward its optional observers.
type Logger struct {
	w io.Writer
}

// NewLogger returns a Logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Cycle writes cycle's narration line.
func (l *Logger) Cycle(cycle uint64, msg string) {
	fmt.Fprintf(l.w, "cycle %6d: %s\n", cycle, msg)
}
