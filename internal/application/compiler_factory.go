// Package application contains factory patterns for compiler components
package application

import (
	"io"
	"os"

	"github.com/sokoide/corelang/internal/domain"
	"github.com/sokoide/corelang/internal/infrastructure"
	"github.com/sokoide/corelang/internal/interfaces"
	"github.com/sokoide/corelang/internal/util"
)

// CompilerConfig holds configuration for building a Driver. Per-compilation
// settings (optimization level, target, warnings-as-errors) travel with
// each domain.CompileInput instead, since one Driver may compile several
// inputs with different options but is built with one reporter
// and one logger for its lifetime.
type CompilerConfig struct {
	ErrorReporterType ErrorReporterType

	ErrorOutput io.Writer
	Verbose     bool
}

// ErrorReporterType specifies the type of error reporter to use
type ErrorReporterType int

const (
	ConsoleErrorReporter ErrorReporterType = iota
	SortedErrorReporter
)

// DefaultCompilerConfig returns a default compiler configuration
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		ErrorReporterType: ConsoleErrorReporter,
		ErrorOutput:       os.Stderr,
		Verbose:           false,
	}
}

// CompilerFactory creates configured compiler components
type CompilerFactory struct {
	config CompilerConfig
}

// NewCompilerFactory creates a new compiler factory with the given configuration
func NewCompilerFactory(config CompilerConfig) *CompilerFactory {
	return &CompilerFactory{config: config}
}

// CreateDriver builds a Driver wired with this factory's error reporter and
// a verbosity-gated logger.
func (factory *CompilerFactory) CreateDriver() interfaces.Driver {
	driver := NewGeneratorDriver(factory.CreateLogger())
	driver.SetErrorReporter(factory.CreateErrorReporter())
	return driver
}

// CreateLogger creates a logger honoring CompilerConfig.Verbose.
func (factory *CompilerFactory) CreateLogger() *util.Logger {
	return util.NewLogger(factory.config.Verbose)
}

// CreateErrorReporter creates an error reporter
func (factory *CompilerFactory) CreateErrorReporter() domain.ErrorReporter {
	var baseReporter domain.ErrorReporter

	switch factory.config.ErrorReporterType {
	case ConsoleErrorReporter:
		baseReporter = infrastructure.NewConsoleErrorReporter(factory.config.ErrorOutput)
	case SortedErrorReporter:
		consoleReporter := infrastructure.NewConsoleErrorReporter(factory.config.ErrorOutput)
		baseReporter = infrastructure.NewSortedErrorReporter(consoleReporter)
	default:
		baseReporter = infrastructure.NewConsoleErrorReporter(factory.config.ErrorOutput)
	}

	return baseReporter
}

// CreateTypeRegistry creates a type registry
func (factory *CompilerFactory) CreateTypeRegistry() domain.TypeRegistry {
	return domain.NewDefaultTypeRegistry()
}

// CreateSymbolTable creates a top-level declaration symbol table (see
// infrastructure.DefaultSymbolTable; per-function locals are managed
// directly by internal/codegen.FunctionContext, not through this table).
func (factory *CompilerFactory) CreateSymbolTable() interfaces.SymbolTable {
	return infrastructure.NewDefaultSymbolTable()
}
