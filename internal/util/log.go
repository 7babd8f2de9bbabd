// Package util holds small cross-cutting helpers that don't belong to any
// single codegen component: verbosity-gated logging here, matching the
// plain-log/verbose-flag style vslc/src/util uses for compiler diagnostics.
package util

import (
	"fmt"
	"log"
	"os"
)

// Logger wraps the standard library logger with a verbosity gate. Debugf
// output is dropped unless Verbose is set; Warnf/Errorf always print.
type Logger struct {
	Verbose bool
	std     *log.Logger
}

// NewLogger builds a Logger writing to stderr with no timestamp prefix,
// matching what a compiler driver's own output (to stdout) expects to stay
// visually separate from diagnostic noise.
func NewLogger(verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		std:     log.New(os.Stderr, "", 0),
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.Verbose {
		return
	}
	l.std.Output(2, "[debug] "+fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.std.Output(2, "[warn] "+fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.std.Output(2, "[error] "+fmt.Sprintf(format, args...))
}
