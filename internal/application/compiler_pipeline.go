// Package application contains the main application logic and pipeline
package application

import (
	"fmt"
	"io"

	"github.com/sokoide/corelang/internal/codegen"
	"github.com/sokoide/corelang/internal/domain"
	"github.com/sokoide/corelang/internal/util"
)

// GeneratorDriver implements interfaces.Driver by running a
// domain.CompileInput's AST through internal/codegen.Generator and writing
// the resulting textual LLVM IR to the given output. The engine takes an
// already-built AST (lexing/parsing is someone else's concern), so this
// runs one stage instead of a multi-stage lexer→parser→semantic→codegen
// pipeline.
type GeneratorDriver struct {
	errorReporter domain.ErrorReporter
	logger        *util.Logger
}

// NewGeneratorDriver creates a driver logging through logger (nil is fine;
// Logger's methods treat a nil receiver as silent).
func NewGeneratorDriver(logger *util.Logger) *GeneratorDriver {
	return &GeneratorDriver{logger: logger}
}

// SetErrorReporter sets the error reporter used for this and subsequent
// Compile calls.
func (d *GeneratorDriver) SetErrorReporter(reporter domain.ErrorReporter) {
	d.errorReporter = reporter
}

// Compile lowers input.Program to LLVM IR and writes it to output.
// Propagation policy matches CodeGenError: the first error aborts the
// compilation and no partial IR is written.
func (d *GeneratorDriver) Compile(input domain.CompileInput, output io.Writer) error {
	if d.errorReporter == nil {
		return fmt.Errorf("driver: no error reporter set")
	}
	d.errorReporter.Clear()

	d.logger.Debugf("compiling %q (mode=%s)", input.Language, input.Mode)

	gen := codegen.NewGenerator(input, d.errorReporter)
	ir, err := gen.Compile()
	if err != nil {
		return fmt.Errorf("code generation failed: %w", err)
	}

	if d.errorReporter.HasErrors() {
		return fmt.Errorf("compilation failed with %d error(s)", len(d.errorReporter.GetErrors()))
	}

	if input.Options.WarningsAsErrors && d.errorReporter.HasWarnings() {
		return fmt.Errorf("compilation failed: warnings treated as errors (%d warning(s))", len(d.errorReporter.GetWarnings()))
	}

	if _, err := io.WriteString(output, ir); err != nil {
		return fmt.Errorf("failed to write generated IR: %w", err)
	}

	d.logger.Debugf("emitted %d bytes of IR", len(ir))
	return nil
}
