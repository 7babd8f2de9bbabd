// Package infrastructure contains implementations of infrastructure concerns
package infrastructure

import (
	"fmt"

	"github.com/sokoide/corelang/internal/domain"
	"github.com/sokoide/corelang/internal/interfaces"
)

// DefaultSymbolTable implements interfaces.SymbolTable as a single flat
// map. The front language has no nested lexical scoping — symbol tables
// are per-function and flat, mirroring internal/codegen.FunctionContext.locals;
// this implementation backs a
// driver-level table of top-level declarations (functions, imported
// module entries) rather than per-function locals, which the generator
// manages itself.
type DefaultSymbolTable struct {
	symbols map[string]*interfaces.Symbol
}

// NewDefaultSymbolTable creates an empty symbol table.
func NewDefaultSymbolTable() *DefaultSymbolTable {
	return &DefaultSymbolTable{symbols: make(map[string]*interfaces.Symbol)}
}

// Declare declares a new symbol, failing if the name is already taken.
func (st *DefaultSymbolTable) Declare(name string, symbolType domain.Type, kind interfaces.SymbolKind, location domain.SourceRange) (*interfaces.Symbol, error) {
	if _, exists := st.symbols[name]; exists {
		return nil, fmt.Errorf("symbol '%s' already declared", name)
	}

	symbol := &interfaces.Symbol{
		Name:     name,
		Type:     symbolType,
		Kind:     kind,
		Location: location,
	}

	st.symbols[name] = symbol
	return symbol, nil
}

// Lookup looks up a symbol by name.
func (st *DefaultSymbolTable) Lookup(name string) (*interfaces.Symbol, bool) {
	symbol, exists := st.symbols[name]
	return symbol, exists
}

// All returns every declared symbol, for driver diagnostics (e.g. listing
// declared-but-unused top-level functions).
func (st *DefaultSymbolTable) All() []*interfaces.Symbol {
	symbols := make([]*interfaces.Symbol, 0, len(st.symbols))
	for _, symbol := range st.symbols {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Reset clears the table back to empty.
func (st *DefaultSymbolTable) Reset() {
	st.symbols = make(map[string]*interfaces.Symbol)
}
