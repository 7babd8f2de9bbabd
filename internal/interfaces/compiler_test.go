package interfaces

import (
	"fmt"
	"testing"

	"github.com/sokoide/corelang/internal/domain"
)

func TestSourcePosition(t *testing.T) {
	pos := domain.SourcePosition{
		Filename: "main.core",
		Line:     10,
		Column:   25,
		Offset:   150,
	}

	if pos.Filename != "main.core" {
		t.Errorf("Expected filename 'main.core', got '%s'", pos.Filename)
	}
	if pos.Line != 10 {
		t.Errorf("Expected line 10, got %d", pos.Line)
	}

	expectedString := "main.core:10:25"
	if pos.String() != expectedString {
		t.Errorf("Expected string '%s', got '%s'", expectedString, pos.String())
	}
}

func TestSourceRange(t *testing.T) {
	start := domain.SourcePosition{Filename: "test.core", Line: 5, Column: 10, Offset: 50}
	end := domain.SourcePosition{Filename: "test.core", Line: 5, Column: 25, Offset: 65}

	srcRange := domain.SourceRange{Start: start, End: end}

	expectedString := "test.core:5:10-25"
	if srcRange.String() != expectedString {
		t.Errorf("Expected range string '%s', got '%s'", expectedString, srcRange.String())
	}

	endMultiLine := domain.SourcePosition{Filename: "test.core", Line: 7, Column: 5, Offset: 85}
	srcRangeMulti := domain.SourceRange{Start: start, End: endMultiLine}

	expectedMultiString := "test.core:5:10-7:5"
	if srcRangeMulti.String() != expectedMultiString {
		t.Errorf("Expected multi-line range string '%s', got '%s'", expectedMultiString, srcRangeMulti.String())
	}
}

// flatSymbolTable is a minimal SymbolTable used only to exercise the
// interface's contract in tests; infrastructure.DefaultSymbolTable is the
// implementation the application layer creates.
type flatSymbolTable struct {
	symbols map[string]*Symbol
}

func newFlatSymbolTable() *flatSymbolTable {
	return &flatSymbolTable{symbols: make(map[string]*Symbol)}
}

func (t *flatSymbolTable) Declare(name string, symbolType domain.Type, kind SymbolKind, location domain.SourceRange) (*Symbol, error) {
	if _, exists := t.symbols[name]; exists {
		return nil, fmt.Errorf("symbol %q already declared", name)
	}
	sym := &Symbol{Name: name, Type: symbolType, Kind: kind, Location: location}
	t.symbols[name] = sym
	return sym, nil
}

func (t *flatSymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := t.symbols[name]
	return sym, ok
}

func TestFlatSymbolTableDeclareAndLookup(t *testing.T) {
	var table SymbolTable = newFlatSymbolTable()

	sym, err := table.Declare("count", domain.NewSignedInt(32), VariableSymbol, domain.SourceRange{})
	if err != nil {
		t.Fatalf("unexpected error declaring symbol: %v", err)
	}
	if sym.Kind != VariableSymbol {
		t.Errorf("expected VariableSymbol, got %v", sym.Kind)
	}

	found, ok := table.Lookup("count")
	if !ok {
		t.Fatal("expected to find declared symbol")
	}
	if found.Name != "count" {
		t.Errorf("expected name 'count', got %q", found.Name)
	}

	if _, err := table.Declare("count", domain.NewSignedInt(32), VariableSymbol, domain.SourceRange{}); err == nil {
		t.Error("expected redeclaration of 'count' to fail")
	}

	if _, ok := table.Lookup("missing"); ok {
		t.Error("expected lookup of undeclared symbol to fail")
	}
}
