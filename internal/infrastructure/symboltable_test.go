package infrastructure

import (
	"testing"

	"github.com/sokoide/corelang/internal/domain"
	"github.com/sokoide/corelang/internal/interfaces"
)

func TestDefaultSymbolTable_BasicOperations(t *testing.T) {
	st := NewDefaultSymbolTable()

	intType := domain.NewSignedInt(32)
	location := domain.SourceRange{}

	symbol, err := st.Declare("x", intType, interfaces.VariableSymbol, location)
	if err != nil {
		t.Errorf("Declare failed: %v", err)
	}
	if symbol.Name != "x" {
		t.Errorf("Symbol name: got %q, expected %q", symbol.Name, "x")
	}

	foundSymbol, found := st.Lookup("x")
	if !found {
		t.Error("Should find declared symbol")
	}
	if foundSymbol.Type != intType {
		t.Error("Symbol type should match declared type")
	}

	if _, notFound := st.Lookup("nonexistent"); notFound {
		t.Error("Should not find non-existent symbol")
	}
}

func TestDefaultSymbolTable_RedeclarationFails(t *testing.T) {
	st := NewDefaultSymbolTable()
	intType := domain.NewSignedInt(32)

	if _, err := st.Declare("x", intType, interfaces.VariableSymbol, domain.SourceRange{}); err != nil {
		t.Fatalf("first declaration failed: %v", err)
	}
	if _, err := st.Declare("x", intType, interfaces.VariableSymbol, domain.SourceRange{}); err == nil {
		t.Error("expected redeclaration of 'x' to fail")
	}
}

func TestDefaultSymbolTable_AllAndReset(t *testing.T) {
	st := NewDefaultSymbolTable()
	intType := domain.NewSignedInt(32)

	if _, err := st.Declare("a", intType, interfaces.FunctionSymbol, domain.SourceRange{}); err != nil {
		t.Fatalf("declare a: %v", err)
	}
	if _, err := st.Declare("b", intType, interfaces.VariableSymbol, domain.SourceRange{}); err != nil {
		t.Fatalf("declare b: %v", err)
	}

	if got := len(st.All()); got != 2 {
		t.Errorf("expected 2 declared symbols, got %d", got)
	}

	st.Reset()
	if got := len(st.All()); got != 0 {
		t.Errorf("expected empty table after Reset, got %d", got)
	}
	if _, found := st.Lookup("a"); found {
		t.Error("expected lookup after Reset to fail")
	}
}
