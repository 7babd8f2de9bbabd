// Package domain contains the core domain types and interfaces for the
// corelang IR lowering engine.
package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// SourcePosition represents a position in the source code.
type SourcePosition struct {
	Filename string
	Line     int
	Column   int
	Offset   int
}

func (pos SourcePosition) String() string {
	return fmt.Sprintf("%s:%d:%d", pos.Filename, pos.Line, pos.Column)
}

// SourceRange represents a range in the source code.
type SourceRange struct {
	Start SourcePosition
	End   SourcePosition
}

func (r SourceRange) String() string {
	if r.Start.Filename == r.End.Filename {
		if r.Start.Line == r.End.Line {
			return fmt.Sprintf("%s:%d:%d-%d", r.Start.Filename, r.Start.Line, r.Start.Column, r.End.Column)
		}
		return fmt.Sprintf("%s:%d:%d-%d:%d", r.Start.Filename, r.Start.Line, r.Start.Column, r.End.Line, r.End.Column)
	}
	return fmt.Sprintf("%s-%s", r.Start.String(), r.End.String())
}

// ErrorKind enumerates the structured code-gen error kinds the engine can
// report.
type ErrorKind int

const (
	// TypeResolutionFailed covers unknown type names, missing annotations
	// where one was required, and ambiguous method lookups.
	TypeResolutionFailed ErrorKind = iota
	// UnsupportedFeature covers syntactically valid constructs the engine
	// does not implement, e.g. index assignment.
	UnsupportedFeature
	// ArityMismatch covers an intrinsic called with the wrong argument count.
	ArityMismatch
	// InternalInvariantViolation covers algorithm bugs, e.g. an unallocated
	// label being referenced.
	InternalInvariantViolation
)

func (k ErrorKind) String() string {
	switch k {
	case TypeResolutionFailed:
		return "TypeResolutionFailed"
	case UnsupportedFeature:
		return "UnsupportedFeature"
	case ArityMismatch:
		return "ArityMismatch"
	case InternalInvariantViolation:
		return "InternalInvariantViolation"
	default:
		return "UnknownError"
	}
}

// CodeGenError is the single structured diagnostic type the engine raises.
// Propagation policy: it always aborts the current compilation; no partial
// IR is returned (see Driver.Compile).
type CodeGenError struct {
	Kind     ErrorKind
	Message  string
	Location SourceRange
	Context  string
	cause    error
}

func (e *CodeGenError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s) at %s", e.Kind, e.Message, e.Context, e.Location)
	}
	return fmt.Sprintf("%s: %s at %s", e.Kind, e.Message, e.Location)
}

func (e *CodeGenError) Unwrap() error { return e.cause }

// NewCodeGenError builds a located diagnostic. InternalInvariantViolation
// errors are additionally wrapped with a pkg/errors stack trace so the
// driver's top-level handler can print where the invariant actually broke;
// the other three kinds are expected, user-facing outcomes and don't need one.
func NewCodeGenError(kind ErrorKind, loc SourceRange, format string, args ...interface{}) *CodeGenError {
	msg := fmt.Sprintf(format, args...)
	e := &CodeGenError{Kind: kind, Message: msg, Location: loc}
	if kind == InternalInvariantViolation {
		e.cause = errors.New(msg)
	}
	return e
}

// WithContext attaches a short description of the violated contract.
func (e *CodeGenError) WithContext(context string) *CodeGenError {
	e.Context = context
	return e
}

// ErrorReporter defines the interface for error reporting.
type ErrorReporter interface {
	ReportError(err CodeGenError)
	ReportWarning(warning CodeGenError)
	HasErrors() bool
	HasWarnings() bool
	GetErrors() []CodeGenError
	GetWarnings() []CodeGenError
	Clear()
}

// CompilationOptions holds compiler configuration passed in at the driver
// boundary.
type CompilationOptions struct {
	Language          string // front-language identifier, e.g. "core"
	Mode              string // compilation mode, e.g. "release", "debug"
	OptimizationLevel int
	DebugInfo         bool
	TargetTriple      string
	OutputPath        string
	WarningsAsErrors  bool
	StdlibPath        string // not read by the generator; the Crash Message Resolver takes CompileInput.StdlibPath
}
