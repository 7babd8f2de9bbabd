package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// IntrinsicCache declares (at most once per module) the LLVM overflow and
// math intrinsics the Expression Lowerer's overflow variants and the math
// library helpers rely on.
type IntrinsicCache struct {
	module *ir.Module
	funcs  map[string]*ir.Func
}

func NewIntrinsicCache(module *ir.Module) *IntrinsicCache {
	return &IntrinsicCache{module: module, funcs: make(map[string]*ir.Func)}
}

func (c *IntrinsicCache) declare(name string, retType types.Type, paramTypes ...types.Type) *ir.Func {
	if f, ok := c.funcs[name]; ok {
		return f
	}
	params := make([]*ir.Param, len(paramTypes))
	for i, pt := range paramTypes {
		params[i] = ir.NewParam("", pt)
	}
	f := c.module.NewFunc(name, retType, params...)
	c.funcs[name] = f
	return f
}

func signChar(isUnsigned bool) string {
	if isUnsigned {
		return "u"
	}
	return "s"
}

// WithOverflow declares and returns `llvm.{s,u}{add,sub,mul}.with.overflow.iN`,
// which returns `{iN, i1}`.
func (c *IntrinsicCache) WithOverflow(op string, isUnsigned bool, bits int) *ir.Func {
	it := types.NewInt(uint64(bits))
	name := fmt.Sprintf("llvm.%s%s.with.overflow.i%d", signChar(isUnsigned), op, bits)
	retType := types.NewStruct(it, types.I1)
	return c.declare(name, retType, it, it)
}

// Saturating declares and returns `llvm.{s,u}{add,sub}.sat.iN`.
func (c *IntrinsicCache) Saturating(op string, isUnsigned bool, bits int) *ir.Func {
	it := types.NewInt(uint64(bits))
	name := fmt.Sprintf("llvm.%s%s.sat.i%d", signChar(isUnsigned), op, bits)
	return c.declare(name, it, it, it)
}

// SaturatingMul declares and returns `llvm.{s,u}mul.fix.sat.iN`, the fixed
// point saturating multiply intrinsic with scale 0, LLVM's saturating
// integer multiply (core LLVM has no plain `*mul.sat` intrinsic).
func (c *IntrinsicCache) SaturatingMul(isUnsigned bool, bits int) *ir.Func {
	it := types.NewInt(uint64(bits))
	name := fmt.Sprintf("llvm.%smul.fix.sat.i%d", signChar(isUnsigned), bits)
	return c.declare(name, it, it, it, types.I32)
}

// CallSaturatingMul emits the call, supplying the required scale=0 operand.
func (c *IntrinsicCache) CallSaturatingMul(block *ir.Block, isUnsigned bool, bits int, lhs, rhs value.Value) value.Value {
	f := c.SaturatingMul(isUnsigned, bits)
	return block.NewCall(f, lhs, rhs, constant.NewInt(types.I32, 0))
}
