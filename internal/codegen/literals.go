package codegen

import (
	"fmt"
	"math/big"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// StringPool interns string literals as private unnamed_addr globals,
// deduplicating on content. Because llir/llvm's module.Globals is an
// ordinary append-ordered slice, interning a literal the first time it is
// used places it after every global the driver has already created (the
// format-string pool) — no separate splice pass is needed.
type StringPool struct {
	module  *ir.Module
	entries map[string]*ir.Global
	order   []*ir.Global
	counter int
}

func NewStringPool(module *ir.Module) *StringPool {
	return &StringPool{module: module, entries: make(map[string]*ir.Global)}
}

func (p *StringPool) Intern(s string) *ir.Global {
	if g, ok := p.entries[s]; ok {
		return g
	}
	name := fmt.Sprintf(".str.%d", p.counter)
	p.counter++
	data := constant.NewCharArrayFromString(s + "\x00")
	g := p.module.NewGlobalDef(name, data)
	g.Linkage = enum.LinkagePrivate
	g.UnnamedAddr = enum.UnnamedAddrUnnamedAddr
	g.Immutable = true
	p.entries[s] = g
	p.order = append(p.order, g)
	return g
}

// Pointer interns s and returns an i8* to its first character, the form
// every text-typed value is represented by.
func (p *StringPool) Pointer(block *ir.Block, s string) value.Value {
	g := p.Intern(s)
	zero := constant.NewInt(types.I64, 0)
	return block.NewGetElementPtr(g.ContentType, g, zero, zero)
}

func (p *StringPool) Len() int { return len(p.order) }

// LiteralEmitter lowers LiteralExpr.Value into a record-wrapped LLVM value.
// Every numeric/bool/char literal is built as a raw scalar constant and
// immediately wrapped via insertvalue
// into an undef of its named struct type, matching how every other
// expression produces a wrapped value.
type LiteralEmitter struct {
	mapper *TypeMapper
	pool   *StringPool
}

func NewLiteralEmitter(mapper *TypeMapper, pool *StringPool) *LiteralEmitter {
	return &LiteralEmitter{mapper: mapper, pool: pool}
}

// Wrap inserts a raw scalar constant into an undef of its wrapper struct.
func (e *LiteralEmitter) Wrap(block *ir.Block, ft domain.Type, raw value.Value) (value.Value, error) {
	wrapperType, err := e.mapper.Map(ft, false)
	if err != nil {
		return nil, err
	}
	undef := constant.NewUndef(wrapperType)
	return block.NewInsertValue(undef, raw, 0), nil
}

func (e *LiteralEmitter) Emit(block *ir.Block, lit *domain.LiteralExpr) (value.Value, error) {
	prim, ok := lit.Type_.(*domain.PrimitiveType)
	if !ok {
		if _, isStr := lit.Type_.(*domain.StringType); isStr {
			s, _ := lit.Value.(string)
			return e.pool.Pointer(block, s), nil
		}
		return nil, fmt.Errorf("literal has non-primitive, non-text type %s", lit.Type_)
	}

	switch prim.Kind {
	case domain.PKBool:
		b, _ := lit.Value.(bool)
		var bit int64
		if b {
			bit = 1
		}
		return e.Wrap(block, prim, constant.NewInt(types.I1, bit))

	case domain.PKChar:
		r, _ := lit.Value.(rune)
		raw, err := e.mapper.RawPrimitiveLLVM(prim)
		if err != nil {
			return nil, err
		}
		return e.Wrap(block, prim, constant.NewInt(raw.(*types.IntType), int64(r)))

	case domain.PKSignedInt, domain.PKUnsignedInt:
		raw, err := e.mapper.RawPrimitiveLLVM(prim)
		if err != nil {
			return nil, err
		}
		it := raw.(*types.IntType)
		switch v := lit.Value.(type) {
		case int64:
			return e.Wrap(block, prim, constant.NewInt(it, v))
		case *big.Int:
			c := constant.NewInt(it, 0)
			c.X = new(big.Int).Set(v)
			return e.Wrap(block, prim, c)
		default:
			return nil, fmt.Errorf("integer literal has unexpected Go value type %T", lit.Value)
		}

	case domain.PKFloat:
		raw, err := e.mapper.RawPrimitiveLLVM(prim)
		if err != nil {
			return nil, err
		}
		f, _ := lit.Value.(float64)
		return e.Wrap(block, prim, constant.NewFloat(raw.(*types.FloatType), f))

	default:
		return nil, fmt.Errorf("cannot emit literal of kind %v", prim.Kind)
	}
}
