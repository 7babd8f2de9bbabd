package codegen

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// addressOf returns a pointer to e's storage and e's front type, spilling a
// freshly computed record value to a temporary stack slot when e is not
// already backed by one (member access and receiver passing both need a
// pointer to a multi-field record).
func (g *Generator) addressOf(e domain.Expression) (value.Value, domain.Type, error) {
	switch t := e.(type) {
	case *domain.IdentifierExpr:
		slot, ok := g.fn.Lookup(t.Name)
		if !ok {
			return nil, nil, g.typeError(t.GetLocation(), "undefined identifier %q", t.Name)
		}
		_, isEntity := slot.FrontType.(*domain.EntityType)
		if isEntity || slot.ByPointer {
			loaded := g.fn.Block.NewLoad(llvmElemType(slot.Alloca), slot.Alloca)
			return loaded, slot.FrontType, nil
		}
		return slot.Alloca, slot.FrontType, nil

	case *domain.MemberExpr:
		objPtr, objType, err := g.addressOf(t.Object)
		if err != nil {
			return nil, nil, err
		}
		idx, fieldType, _, ok := fieldLookup(objType, t.Member)
		if !ok {
			return nil, nil, g.typeError(t.GetLocation(), "type %s has no field %q", objType, t.Member)
		}
		block := g.fn.Block
		gep := block.NewGetElementPtr(llvmElemType(objPtr), objPtr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(idx)))
		if _, isFieldEntity := fieldType.(*domain.EntityType); isFieldEntity {
			loaded := block.NewLoad(llvmElemType(gep), gep)
			return loaded, fieldType, nil
		}
		return gep, fieldType, nil

	default:
		if err := e.Accept(g); err != nil {
			return nil, nil, err
		}
		val, valType := g.currentValue, g.currentType
		if _, isEntity := valType.(*domain.EntityType); isEntity {
			return val, valType, nil
		}
		block := g.fn.Block
		slot := block.NewAlloca(val.Type())
		block.NewStore(val, slot)
		return slot, valType, nil
	}
}

// lowerLValue resolves an AssignStmt target to the pointer that should be
// stored into. Index targets are explicitly unsupported.
func (g *Generator) lowerLValue(e domain.Expression) (value.Value, domain.Type, error) {
	switch t := e.(type) {
	case *domain.IdentifierExpr:
		slot, ok := g.fn.Lookup(t.Name)
		if !ok {
			return nil, nil, g.typeError(t.GetLocation(), "undefined identifier %q", t.Name)
		}
		return slot.Alloca, slot.FrontType, nil
	case *domain.MemberExpr:
		objPtr, objType, err := g.addressOf(t.Object)
		if err != nil {
			return nil, nil, err
		}
		idx, fieldType, _, ok := fieldLookup(objType, t.Member)
		if !ok {
			return nil, nil, g.typeError(t.GetLocation(), "type %s has no field %q", objType, t.Member)
		}
		gep := g.fn.Block.NewGetElementPtr(llvmElemType(objPtr), objPtr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(idx)))
		return gep, fieldType, nil
	case *domain.IndexExpr:
		return nil, nil, g.unsupported(t.GetLocation(), "assignment through an index expression is not supported")
	default:
		return nil, nil, g.unsupported(e.GetLocation(), "expression is not a valid assignment target")
	}
}

// coerceValue reconciles a produced value against an expected front type,
// extending/truncating wrapped primitives so `var x: s64 = someS32Expr`-style
// mismatches (and generic instantiation's substituted widths) still store
// cleanly. Non-primitive types must already match.
func (g *Generator) coerceValue(val value.Value, from, to domain.Type) (value.Value, error) {
	if from == nil || to == nil || from.Equals(to) {
		return val, nil
	}
	fromPrim, fOK := from.(*domain.PrimitiveType)
	toPrim, tOK := to.(*domain.PrimitiveType)
	if !fOK || !tOK {
		return val, nil
	}
	block := g.fn.Block
	raw, err := g.rawOf(val, fromPrim, block)
	if err != nil {
		return nil, err
	}
	raw, err = g.coerce(block, raw, fromPrim, toPrim)
	if err != nil {
		return nil, err
	}
	return g.wrapOf(raw, toPrim, block)
}

func (g *Generator) VisitExprStmt(s *domain.ExprStmt) error {
	return s.Expression.Accept(g)
}

func (g *Generator) VisitVarDeclStmt(s *domain.VarDeclStmt) error {
	var ft domain.Type
	var initVal value.Value
	var initType domain.Type
	if s.Initializer != nil {
		if err := s.Initializer.Accept(g); err != nil {
			return err
		}
		initVal, initType = g.currentValue, g.currentType
	}
	if s.Type_ != nil {
		ft = s.Type_
	} else {
		ft = initType
	}
	if ft == nil {
		return g.typeError(s.GetLocation(), "cannot infer type for %q without an initializer", s.Name)
	}

	llvmType, err := g.typeMapper.Map(ft, false)
	if err != nil {
		return g.typeError(s.GetLocation(), "%s", err)
	}
	block := g.fn.Block
	slot := block.NewAlloca(llvmType)
	slot.SetName(s.Name + ".addr")
	g.fn.DeclareLocal(s.Name, slot, ft)

	if s.Initializer != nil {
		coerced, err := g.coerceValue(initVal, initType, ft)
		if err != nil {
			return err
		}
		block.NewStore(coerced, slot)
	}
	return nil
}

func (g *Generator) VisitAssignStmt(s *domain.AssignStmt) error {
	ptr, targetType, err := g.lowerLValue(s.Target)
	if err != nil {
		return err
	}
	if err := s.Value.Accept(g); err != nil {
		return err
	}
	val, valType := g.currentValue, g.currentType
	coerced, err := g.coerceValue(val, valType, targetType)
	if err != nil {
		return err
	}
	g.fn.Block.NewStore(coerced, ptr)
	return nil
}

func (g *Generator) VisitIfStmt(s *domain.IfStmt) error {
	if err := s.Condition.Accept(g); err != nil {
		return err
	}
	condVal, condType := g.currentValue, g.currentType
	entry := g.fn.Block
	condRaw, err := g.rawOf(condVal, condType, entry)
	if err != nil {
		return err
	}

	fn := g.fn
	thenBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("if.then"))
	endBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("if.end"))

	if s.ElseStmt != nil {
		elseBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("if.else"))
		entry.NewCondBr(condRaw, thenBlock, elseBlock)

		fn.Block = thenBlock
		if err := s.ThenStmt.Accept(g); err != nil {
			return err
		}
		if !fn.Terminated() {
			fn.Block.NewBr(endBlock)
		}

		fn.Block = elseBlock
		if err := s.ElseStmt.Accept(g); err != nil {
			return err
		}
		if !fn.Terminated() {
			fn.Block.NewBr(endBlock)
		}
	} else {
		entry.NewCondBr(condRaw, thenBlock, endBlock)

		fn.Block = thenBlock
		if err := s.ThenStmt.Accept(g); err != nil {
			return err
		}
		if !fn.Terminated() {
			fn.Block.NewBr(endBlock)
		}
	}

	fn.Block = endBlock
	return nil
}

func (g *Generator) VisitWhileStmt(s *domain.WhileStmt) error {
	fn := g.fn
	condBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("while.cond"))
	bodyBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("while.body"))
	endBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("while.end"))

	if !fn.Terminated() {
		fn.Block.NewBr(condBlock)
	}

	fn.Block = condBlock
	if err := s.Condition.Accept(g); err != nil {
		return err
	}
	condRaw, err := g.rawOf(g.currentValue, g.currentType, fn.Block)
	if err != nil {
		return err
	}
	fn.Block.NewCondBr(condRaw, bodyBlock, endBlock)

	fn.Block = bodyBlock
	if err := s.Body.Accept(g); err != nil {
		return err
	}
	if !fn.Terminated() {
		fn.Block.NewBr(condBlock)
	}

	fn.Block = endBlock
	return nil
}

func (g *Generator) VisitForStmt(s *domain.ForStmt) error {
	if rangeFor, ok := isRangeFor(s); ok {
		return g.lowerRangeFor(s, rangeFor)
	}
	fn := g.fn
	if s.Init != nil {
		if err := s.Init.Accept(g); err != nil {
			return err
		}
	}
	condBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("for.cond"))
	bodyBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("for.body"))
	updateBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("for.update"))
	endBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("for.end"))

	if !fn.Terminated() {
		fn.Block.NewBr(condBlock)
	}

	fn.Block = condBlock
	if s.Condition != nil {
		if err := s.Condition.Accept(g); err != nil {
			return err
		}
		condRaw, err := g.rawOf(g.currentValue, g.currentType, fn.Block)
		if err != nil {
			return err
		}
		fn.Block.NewCondBr(condRaw, bodyBlock, endBlock)
	} else {
		fn.Block.NewBr(bodyBlock)
	}

	fn.Block = bodyBlock
	if err := s.Body.Accept(g); err != nil {
		return err
	}
	if !fn.Terminated() {
		fn.Block.NewBr(updateBlock)
	}

	fn.Block = updateBlock
	if s.Update != nil {
		if err := s.Update.Accept(g); err != nil {
			return err
		}
	}
	if !fn.Terminated() {
		fn.Block.NewBr(condBlock)
	}

	fn.Block = endBlock
	return nil
}

// isRangeFor detects the range-based for shape the parser produces: a
// VarDeclStmt init whose Initializer is a RangeExpr, Condition/Update nil.
func isRangeFor(s *domain.ForStmt) (*domain.RangeExpr, bool) {
	vd, ok := s.Init.(*domain.VarDeclStmt)
	if !ok || s.Condition != nil || s.Update != nil {
		return nil, false
	}
	r, ok := vd.Initializer.(*domain.RangeExpr)
	return r, ok
}

// lowerRangeFor lowers `for i in start..end { }` / `start..=end` directly
// against RangeExpr's fields rather than routing through VisitRangeExpr,
// which has no standalone value representation (see expr.go).
func (g *Generator) lowerRangeFor(s *domain.ForStmt, r *domain.RangeExpr) error {
	vd := s.Init.(*domain.VarDeclStmt)
	fn := g.fn

	if err := r.Start.Accept(g); err != nil {
		return err
	}
	startVal, loopType := g.currentValue, g.currentType
	if err := r.End.Accept(g); err != nil {
		return err
	}
	endVal := g.currentValue

	loopLLVM, err := g.typeMapper.Map(loopType, false)
	if err != nil {
		return g.typeError(s.GetLocation(), "%s", err)
	}
	entry := fn.Block
	slot := entry.NewAlloca(loopLLVM)
	slot.SetName(vd.Name + ".addr")
	entry.NewStore(startVal, slot)
	fn.DeclareLocal(vd.Name, slot, loopType)

	prim, ok := loopType.(*domain.PrimitiveType)
	if !ok {
		return g.typeError(s.GetLocation(), "for-range loop variable must be numeric, got %s", loopType)
	}

	condBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("forrange.cond"))
	bodyBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("forrange.body"))
	updateBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("forrange.update"))
	endBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("forrange.end"))
	entry.NewBr(condBlock)

	fn.Block = condBlock
	cur := condBlock.NewLoad(loopLLVM, slot)
	curRaw, err := g.rawOf(cur, loopType, condBlock)
	if err != nil {
		return err
	}
	endRaw, err := g.rawOf(endVal, loopType, condBlock)
	if err != nil {
		return err
	}
	cmpOp := domain.Lt
	if r.Inclusive {
		cmpOp = domain.Le
	}
	cond, err := g.emitCompare(cmpOp, curRaw, endRaw, prim, condBlock)
	if err != nil {
		return err
	}
	condBlock.NewCondBr(cond, bodyBlock, endBlock)

	fn.Block = bodyBlock
	if err := s.Body.Accept(g); err != nil {
		return err
	}
	if !fn.Terminated() {
		fn.Block.NewBr(updateBlock)
	}

	fn.Block = updateBlock
	loaded := updateBlock.NewLoad(loopLLVM, slot)
	loadedRaw, err := g.rawOf(loaded, loopType, updateBlock)
	if err != nil {
		return err
	}
	one := constant.NewInt(loadedRaw.Type().(*types.IntType), 1)
	next := updateBlock.NewAdd(loadedRaw, one)
	nextWrapped, err := g.wrapOf(next, prim, updateBlock)
	if err != nil {
		return err
	}
	updateBlock.NewStore(nextWrapped, slot)
	updateBlock.NewBr(condBlock)

	fn.Block = endBlock
	return nil
}

func (g *Generator) VisitReturnStmt(s *domain.ReturnStmt) error {
	if s.Value == nil {
		g.fn.Block.NewRet(nil)
		return nil
	}
	if err := s.Value.Accept(g); err != nil {
		return err
	}
	val, valType := g.currentValue, g.currentType
	coerced, err := g.coerceValue(val, valType, g.fn.ReturnType)
	if err != nil {
		return err
	}
	g.fn.Block.NewRet(coerced)
	return nil
}

func (g *Generator) VisitBlockStmt(s *domain.BlockStmt) error {
	for _, stmt := range s.Statements {
		if g.fn.Terminated() {
			break // a block is terminated exactly once; dead code after is dropped
		}
		if err := stmt.Accept(g); err != nil {
			return err
		}
	}
	return nil
}

// VisitThrowStmt lowers `throw someError` by handing the constructed
// Crashable value to the Error Lowerer.
func (g *Generator) VisitThrowStmt(s *domain.ThrowStmt) error {
	if err := s.Error.Accept(g); err != nil {
		return err
	}
	errVal, errType := g.currentValue, g.currentType
	return g.errorLowerer.EmitThrow(s.GetLocation(), errVal, errType)
}

func (g *Generator) VisitAbsentStmt(s *domain.AbsentStmt) error {
	return g.errorLowerer.EmitAbsent(s.GetLocation())
}

func (g *Generator) VisitPassStmt(s *domain.PassStmt) error {
	return nil // a no-op statement emits no IR
}

// VisitReleaseStmt invokes an entity's `release` method if one is declared
// on its type.
func (g *Generator) VisitReleaseStmt(s *domain.ReleaseStmt) error {
	if err := s.Target.Accept(g); err != nil {
		return err
	}
	val, valType := g.currentValue, g.currentType
	et, ok := valType.(*domain.EntityType)
	if !ok {
		return g.typeError(s.GetLocation(), "release target must be an entity, got %s", valType)
	}
	methods, ok := g.methodDecls[et.Name]
	if !ok {
		return nil // no declared methods at all; nothing to release
	}
	for _, m := range methods {
		if m.Name == "release" && len(m.Parameters) == 0 {
			fn, ok := g.moduleFuncs[et.Name+".release"]
			if !ok {
				var err error
				fn, _, err = g.emitFunctionDefinitionNamed(m, et.Name+".release")
				if err != nil {
					return err
				}
				g.moduleFuncs[et.Name+".release"] = fn
			}
			g.fn.Block.NewCall(fn, val)
			return nil
		}
	}
	return nil
}
