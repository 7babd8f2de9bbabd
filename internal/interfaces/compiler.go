// Package interfaces defines the seams between the driver and the code
// generation engine. Lexing, parsing and semantic analysis are out of
// scope for this engine (it consumes an already-built AST), so
// this package carries no Lexer/Parser/SemanticAnalyzer surface — only
// what a driver needs to run the Generator and report its diagnostics.
package interfaces

import (
	"io"

	"github.com/sokoide/corelang/internal/domain"
)

// CodeGenerator is a seam for a driver that programs against a generator
// interface. GeneratorDriver (internal/application) constructs
// codegen.Generator directly and does not use it.
type CodeGenerator interface {
	// Compile lowers the bound CompileInput's AST to textual LLVM IR.
	Compile() (string, error)
}

// Driver runs a single compilation: build a domain.CompileInput from
// whatever produced the AST, hand it to a CodeGenerator, write the result,
// and report diagnostics through an ErrorReporter.
type Driver interface {
	Compile(input domain.CompileInput, output io.Writer) error
	SetErrorReporter(reporter domain.ErrorReporter)
}

// Symbol represents one declared name in a flat SymbolTable.
type Symbol struct {
	Name     string
	Type     domain.Type
	Kind     SymbolKind
	Location domain.SourceRange
}

type SymbolKind int

const (
	VariableSymbol SymbolKind = iota
	ParameterSymbol
	FunctionSymbol
	FieldSymbol
)

// SymbolTable is a flat symbol table (no nested lexical scopes).
// infrastructure.DefaultSymbolTable implements it for top-level
// declarations. Per-function locals live in the locals map of
// internal/codegen.FunctionContext, which does not implement this interface.
type SymbolTable interface {
	Declare(name string, symbolType domain.Type, kind SymbolKind, location domain.SourceRange) (*Symbol, error)
	Lookup(name string) (*Symbol, bool)
}
