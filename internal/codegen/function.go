package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// ValueInfo is one row of a FunctionContext's value-identity side table
// (FunctionContext.values, written by RecordValue): the front-language type
// a value represents plus its sign/float classification (LLVM has no
// unsigned integer type). No lowering code calls RecordValue, so the table
// stays empty; lowering takes front types from Generator.currentType.
type ValueInfo struct {
	FrontType      domain.Type
	IsUnsigned     bool
	IsFloatingPoint bool
}

// FunctionContext holds everything specific to the function currently being
// lowered: the in-progress llir function and insertion block, the local
// symbol table, and bookkeeping the Statement Lowerer needs to honor the
// block-terminated-exactly-once invariant.
type FunctionContext struct {
	Decl       *domain.FunctionDecl
	LLVMFunc   *ir.Func
	Block      *ir.Block
	ReturnType domain.Type

	locals   map[string]*LocalSlot
	values   map[value.Value]ValueInfo
	labelSeq map[string]int
	danger   bool // set while lowering code reachable only under a danger-zone call
}

// LocalSlot is one entry of a function's local symbol table: the stack slot
// (alloca) backing a parameter or `var`-declared name, plus its front type.
type LocalSlot struct {
	Name      string
	Alloca    value.Value
	FrontType domain.Type
	// ByPointer marks a slot whose Alloca holds a pointer to the value
	// rather than the value itself, so addressOf must load through it
	// once to recover that pointer. Entity locals always behave this way
	// (recognised by FrontType alone in addressOf, stmt.go); a non-address-wrapper record
	// receiver is the other case, since the call site already spilled it
	// to a pointer before the call.
	ByPointer bool
}

func NewFunctionContext(decl *domain.FunctionDecl, fn *ir.Func, returnType domain.Type) *FunctionContext {
	return &FunctionContext{
		Decl:       decl,
		LLVMFunc:   fn,
		ReturnType: returnType,
		locals:     make(map[string]*LocalSlot),
		values:     make(map[value.Value]ValueInfo),
		labelSeq:   make(map[string]int),
	}
}

// NewLabel produces a deterministic, monotonically increasing label for the
// given prefix, scoped to this function.
func (f *FunctionContext) NewLabel(prefix string) string {
	f.labelSeq[prefix]++
	return fmt.Sprintf("%s.%d", prefix, f.labelSeq[prefix])
}

func (f *FunctionContext) DeclareLocal(name string, alloca value.Value, ft domain.Type) {
	f.locals[name] = &LocalSlot{Name: name, Alloca: alloca, FrontType: ft}
}

// DeclareByPointerLocal is DeclareLocal for a slot whose Alloca holds a
// pointer to the value (see LocalSlot.ByPointer).
func (f *FunctionContext) DeclareByPointerLocal(name string, alloca value.Value, ft domain.Type) {
	f.locals[name] = &LocalSlot{Name: name, Alloca: alloca, FrontType: ft, ByPointer: true}
}

func (f *FunctionContext) Lookup(name string) (*LocalSlot, bool) {
	s, ok := f.locals[name]
	return s, ok
}

func (f *FunctionContext) RecordValue(v value.Value, info ValueInfo) {
	f.values[v] = info
}

func (f *FunctionContext) ValueInfo(v value.Value) (ValueInfo, bool) {
	info, ok := f.values[v]
	return info, ok
}

// Terminated reports whether the current insertion block already has a
// terminator instruction, so callers never append a second one.
func (f *FunctionContext) Terminated() bool {
	return f.Block != nil && f.Block.Term != nil
}

// InDangerZone reports whether the statement currently lowering is nested
// inside a call argument scope the Call Resolver marked as a danger zone.
func (f *FunctionContext) InDangerZone() bool { return f.danger }

func (f *FunctionContext) SetDangerZone(v bool) { f.danger = v }
