package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// rawOf extracts the primitive field from a wrapped value, honoring the
// "everything is a record" invariant. Values that already carry
// their raw LLVM type — e.g. a prior comparison's unwrapped i1 flowing
// straight into `&&` — pass through unchanged.
func (g *Generator) rawOf(v value.Value, ft domain.Type, block *ir.Block) (value.Value, error) {
	prim, ok := ft.(*domain.PrimitiveType)
	if !ok {
		return v, nil // text/record/entity values are used as-is
	}
	wrapperType, err := g.typeMapper.Map(prim, false)
	if err != nil {
		return nil, err
	}
	if v.Type().Equal(wrapperType) {
		return block.NewExtractValue(v, 0), nil
	}
	return v, nil
}

func (g *Generator) wrapOf(raw value.Value, ft domain.Type, block *ir.Block) (value.Value, error) {
	wrapperType, err := g.typeMapper.Map(ft, false)
	if err != nil {
		return nil, err
	}
	if raw.Type().Equal(wrapperType) {
		return raw, nil
	}
	undef := constant.NewUndef(wrapperType)
	return block.NewInsertValue(undef, raw, 0), nil
}

// coerce converts a raw scalar from one primitive type to another, widening
// or narrowing via zext/sext/trunc as the widths require. VisitBinaryExpr
// uses it to bring the right operand to the left operand's type.
func (g *Generator) coerce(block *ir.Block, raw value.Value, from, to *domain.PrimitiveType) (value.Value, error) {
	if from.Equals(to) {
		return raw, nil
	}
	toLLVM, err := g.typeMapper.RawPrimitiveLLVM(to)
	if err != nil {
		return nil, err
	}
	switch {
	case from.IsFloat() && to.IsFloat():
		if to.BitWidth > from.BitWidth {
			return block.NewFPExt(raw, toLLVM), nil
		}
		return block.NewFPTrunc(raw, toLLVM), nil
	case !from.IsFloat() && !to.IsFloat():
		if to.BitWidth == from.BitWidth {
			return raw, nil
		}
		if to.BitWidth > from.BitWidth {
			if from.IsUnsigned() {
				return block.NewZExt(raw, toLLVM), nil
			}
			return block.NewSExt(raw, toLLVM), nil
		}
		return block.NewTrunc(raw, toLLVM), nil
	case !from.IsFloat() && to.IsFloat():
		if from.IsUnsigned() {
			return block.NewUIToFP(raw, toLLVM), nil
		}
		return block.NewSIToFP(raw, toLLVM), nil
	default: // from.IsFloat() && !to.IsFloat()
		if to.IsUnsigned() {
			return block.NewFPToUI(raw, toLLVM), nil
		}
		return block.NewFPToSI(raw, toLLVM), nil
	}
}

func (g *Generator) VisitLiteralExpr(e *domain.LiteralExpr) error {
	v, err := g.literals.Emit(g.fn.Block, e)
	if err != nil {
		return g.typeError(e.GetLocation(), "%s", err)
	}
	g.currentValue, g.currentType = v, e.Type_
	return nil
}

func (g *Generator) VisitIdentifierExpr(e *domain.IdentifierExpr) error {
	if slot, ok := g.fn.Lookup(e.Name); ok {
		v := g.fn.Block.NewLoad(llvmElemType(slot.Alloca), slot.Alloca)
		g.currentValue, g.currentType = v, slot.FrontType
		return nil
	}
	if c, ok := g.globalConsts[e.Name]; ok {
		g.currentValue, g.currentType = c, e.Type_
		return nil
	}
	return g.typeError(e.GetLocation(), "undefined identifier %q", e.Name)
}

// llvmElemType extracts the pointee type of an alloca/pointer value so a
// load knows what it's reading without threading the front type through.
func llvmElemType(ptr value.Value) types.Type {
	if pt, ok := ptr.Type().(*types.PointerType); ok {
		return pt.ElemType
	}
	return ptr.Type()
}

func (g *Generator) VisitBinaryExpr(e *domain.BinaryExpr) error {
	if e.Operator == domain.And || e.Operator == domain.Or {
		return g.lowerShortCircuit(e)
	}

	if err := e.Left.Accept(g); err != nil {
		return err
	}
	leftVal, leftType := g.currentValue, g.currentType
	if err := e.Right.Accept(g); err != nil {
		return err
	}
	rightVal, rightType := g.currentValue, g.currentType

	leftPrim, ok := leftType.(*domain.PrimitiveType)
	if !ok {
		return g.typeError(e.GetLocation(), "binary operator %s requires a primitive operand, got %s", e.Operator, leftType)
	}
	rightPrim, ok := rightType.(*domain.PrimitiveType)
	if !ok {
		rightPrim = leftPrim
	}

	block := g.fn.Block
	leftRaw, err := g.rawOf(leftVal, leftType, block)
	if err != nil {
		return err
	}
	rightRaw, err := g.rawOf(rightVal, rightType, block)
	if err != nil {
		return err
	}
	rightRaw, err = g.coerce(block, rightRaw, rightPrim, leftPrim)
	if err != nil {
		return err
	}

	if e.Operator.IsComparison() {
		result, err := g.emitCompare(e.Operator, leftRaw, rightRaw, leftPrim, block)
		if err != nil {
			return g.reportBinaryErr(e, err)
		}
		g.currentValue, g.currentType = result, domain.NewBool()
		return nil
	}

	switch e.Operator {
	case domain.Add, domain.Sub, domain.Mul:
		raw, err := g.emitArith(e, leftRaw, rightRaw, leftPrim)
		if err != nil {
			return g.reportBinaryErr(e, err)
		}
		wrapped, err := g.wrapOf(raw, leftPrim, block)
		if err != nil {
			return err
		}
		g.currentValue, g.currentType = wrapped, leftPrim
		return nil
	case domain.Div, domain.FloorDiv, domain.Mod:
		raw, err := g.emitDivMod(e, leftRaw, rightRaw, leftPrim)
		if err != nil {
			return g.reportBinaryErr(e, err)
		}
		wrapped, err := g.wrapOf(raw, leftPrim, block)
		if err != nil {
			return err
		}
		g.currentValue, g.currentType = wrapped, leftPrim
		return nil
	case domain.BitAnd, domain.BitOr, domain.BitXor, domain.Shl, domain.AShr, domain.LShr:
		raw, err := g.emitBitwise(e.Operator, leftRaw, rightRaw, leftPrim, block)
		if err != nil {
			return g.reportBinaryErr(e, err)
		}
		wrapped, err := g.wrapOf(raw, leftPrim, block)
		if err != nil {
			return err
		}
		g.currentValue, g.currentType = wrapped, leftPrim
		return nil
	default:
		return g.unsupported(e.GetLocation(), "binary operator %s", e.Operator)
	}
}

func (g *Generator) reportBinaryErr(e *domain.BinaryExpr, err error) error {
	if cge, ok := err.(*domain.CodeGenError); ok {
		g.errorReporter.ReportError(*cge)
		return cge
	}
	return g.unsupported(e.GetLocation(), "%s", err)
}

func (g *Generator) emitArith(e *domain.BinaryExpr, lhs, rhs value.Value, prim *domain.PrimitiveType) (value.Value, error) {
	block := g.fn.Block
	if prim.IsFloat() {
		switch e.Overflow {
		case domain.OverflowWrap, domain.OverflowUnchecked:
		default:
			return nil, domain.NewCodeGenError(domain.UnsupportedFeature, e.GetLocation(),
				"%s overflow mode is not defined for floating-point %s", e.Overflow, e.Operator)
		}
		switch e.Operator {
		case domain.Add:
			return block.NewFAdd(lhs, rhs), nil
		case domain.Sub:
			return block.NewFSub(lhs, rhs), nil
		case domain.Mul:
			return block.NewFMul(lhs, rhs), nil
		}
	}

	raw, err := g.typeMapper.RawPrimitiveLLVM(prim)
	if err != nil {
		return nil, err
	}
	bits := int(raw.(*types.IntType).BitSize)
	opName := arithOpName(e.Operator)

	switch e.Overflow {
	case domain.OverflowWrap, domain.OverflowUnchecked:
		switch e.Operator {
		case domain.Add:
			return block.NewAdd(lhs, rhs), nil
		case domain.Sub:
			return block.NewSub(lhs, rhs), nil
		case domain.Mul:
			return block.NewMul(lhs, rhs), nil
		}
	case domain.OverflowSaturate:
		if e.Operator == domain.Mul {
			return g.intrinsics.CallSaturatingMul(block, prim.IsUnsigned(), bits, lhs, rhs), nil
		}
		f := g.intrinsics.Saturating(opName, prim.IsUnsigned(), bits)
		return block.NewCall(f, lhs, rhs), nil
	case domain.OverflowChecked:
		return g.emitCheckedArith(e, opName, lhs, rhs, prim, bits)
	}
	return nil, fmt.Errorf("unreachable overflow mode %v", e.Overflow)
}

func arithOpName(op domain.BinaryOperator) string {
	switch op {
	case domain.Add:
		return "add"
	case domain.Sub:
		return "sub"
	default:
		return "mul"
	}
}

// emitCheckedArith implements overflow-checked arithmetic: call the
// with.overflow intrinsic, extract value and flag, branch to a trap block
// on overflow (crash then unreachable) or continue.
func (g *Generator) emitCheckedArith(e *domain.BinaryExpr, opName string, lhs, rhs value.Value, prim *domain.PrimitiveType, bits int) (value.Value, error) {
	block := g.fn.Block
	f := g.intrinsics.WithOverflow(opName, prim.IsUnsigned(), bits)
	result := block.NewCall(f, lhs, rhs)
	val := block.NewExtractValue(result, 0)
	flag := block.NewExtractValue(result, 1)

	trapBlock := g.fn.LLVMFunc.NewBlock(g.fn.NewLabel(opName + ".overflow"))
	contBlock := g.fn.LLVMFunc.NewBlock(g.fn.NewLabel(opName + ".ok"))
	block.NewCondBr(flag, trapBlock, contBlock)

	g.fn.Block = trapBlock
	if err := g.errorLowerer.EmitOverflowTrap(e.GetLocation()); err != nil {
		return nil, err
	}
	trapBlock.NewUnreachable()

	g.fn.Block = contBlock
	return val, nil
}

func (g *Generator) emitDivMod(e *domain.BinaryExpr, lhs, rhs value.Value, prim *domain.PrimitiveType) (value.Value, error) {
	block := g.fn.Block
	if prim.IsFloat() {
		switch e.Operator {
		case domain.Div:
			return block.NewFDiv(lhs, rhs), nil
		case domain.Mod:
			return block.NewFRem(lhs, rhs), nil
		default:
			return nil, domain.NewCodeGenError(domain.UnsupportedFeature, e.GetLocation(), "floor division is not defined for floating-point types")
		}
	}
	switch e.Operator {
	case domain.Div, domain.FloorDiv:
		if prim.IsUnsigned() {
			return block.NewUDiv(lhs, rhs), nil
		}
		return block.NewSDiv(lhs, rhs), nil
	case domain.Mod:
		if prim.IsUnsigned() {
			return block.NewURem(lhs, rhs), nil
		}
		return block.NewSRem(lhs, rhs), nil
	}
	return nil, fmt.Errorf("unreachable div/mod operator %v", e.Operator)
}

func (g *Generator) emitBitwise(op domain.BinaryOperator, lhs, rhs value.Value, prim *domain.PrimitiveType, block *ir.Block) (value.Value, error) {
	if prim.IsFloat() {
		return nil, domain.NewCodeGenError(domain.UnsupportedFeature, domain.SourceRange{}, "bitwise operator %s is not defined for floating-point types", op)
	}
	switch op {
	case domain.BitAnd:
		return block.NewAnd(lhs, rhs), nil
	case domain.BitOr:
		return block.NewOr(lhs, rhs), nil
	case domain.BitXor:
		return block.NewXor(lhs, rhs), nil
	case domain.Shl:
		return block.NewShl(lhs, rhs), nil
	case domain.AShr:
		if prim.IsUnsigned() {
			return block.NewLShr(lhs, rhs), nil
		}
		return block.NewAShr(lhs, rhs), nil
	case domain.LShr:
		return block.NewLShr(lhs, rhs), nil
	}
	return nil, fmt.Errorf("unreachable bitwise operator %v", op)
}

func (g *Generator) emitCompare(op domain.BinaryOperator, lhs, rhs value.Value, prim *domain.PrimitiveType, block *ir.Block) (value.Value, error) {
	if prim.IsFloat() {
		var pred enum.FPred
		switch op {
		case domain.Eq:
			pred = enum.FPredOEQ
		case domain.Ne:
			pred = enum.FPredONE
		case domain.Lt:
			pred = enum.FPredOLT
		case domain.Le:
			pred = enum.FPredOLE
		case domain.Gt:
			pred = enum.FPredOGT
		case domain.Ge:
			pred = enum.FPredOGE
		}
		return block.NewFCmp(pred, lhs, rhs), nil
	}
	signed := !prim.IsUnsigned()
	var pred enum.IPred
	switch op {
	case domain.Eq:
		pred = enum.IPredEQ
	case domain.Ne:
		pred = enum.IPredNE
	case domain.Lt:
		if signed {
			pred = enum.IPredSLT
		} else {
			pred = enum.IPredULT
		}
	case domain.Le:
		if signed {
			pred = enum.IPredSLE
		} else {
			pred = enum.IPredULE
		}
	case domain.Gt:
		if signed {
			pred = enum.IPredSGT
		} else {
			pred = enum.IPredUGT
		}
	case domain.Ge:
		if signed {
			pred = enum.IPredSGE
		} else {
			pred = enum.IPredUGE
		}
	}
	return block.NewICmp(pred, lhs, rhs), nil
}

// lowerShortCircuit lowers && and || to the standard three-block form:
// evaluate the left side, branch to a right-side block or skip it, phi the
// result together in a merge block.
func (g *Generator) lowerShortCircuit(e *domain.BinaryExpr) error {
	fn := g.fn
	if err := e.Left.Accept(g); err != nil {
		return err
	}
	leftVal, leftType := g.currentValue, g.currentType
	entryBlock := fn.Block
	leftRaw, err := g.rawOf(leftVal, leftType, entryBlock)
	if err != nil {
		return err
	}

	rhsBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("sc.rhs"))
	endBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("sc.end"))
	if e.Operator == domain.And {
		entryBlock.NewCondBr(leftRaw, rhsBlock, endBlock)
	} else {
		entryBlock.NewCondBr(leftRaw, endBlock, rhsBlock)
	}

	fn.Block = rhsBlock
	if err := e.Right.Accept(g); err != nil {
		return err
	}
	rightVal, rightType := g.currentValue, g.currentType
	rightRaw, err := g.rawOf(rightVal, rightType, fn.Block)
	if err != nil {
		return err
	}
	rhsExit := fn.Block
	rhsExit.NewBr(endBlock)

	fn.Block = endBlock
	phi := endBlock.NewPhi(ir.NewIncoming(leftRaw, entryBlock), ir.NewIncoming(rightRaw, rhsExit))
	g.currentValue, g.currentType = phi, domain.NewBool()
	return nil
}

func (g *Generator) VisitUnaryExpr(e *domain.UnaryExpr) error {
	if err := e.Operand.Accept(g); err != nil {
		return err
	}
	val, typ := g.currentValue, g.currentType
	prim, ok := typ.(*domain.PrimitiveType)
	if !ok {
		return g.typeError(e.GetLocation(), "unary operator %s requires a primitive operand", e.Operator)
	}
	block := g.fn.Block
	raw, err := g.rawOf(val, typ, block)
	if err != nil {
		return err
	}

	var result value.Value
	switch e.Operator {
	case domain.Neg:
		if prim.IsFloat() {
			result = block.NewFNeg(raw)
		} else if lit, isLit := e.Operand.(*domain.LiteralExpr); isLit {
			_ = lit
			result = block.NewSub(constant.NewInt(raw.Type().(*types.IntType), 0), raw)
		} else {
			result = block.NewSub(constant.NewInt(raw.Type().(*types.IntType), 0), raw)
		}
	case domain.Not:
		result = block.NewXor(raw, constant.NewInt(types.I1, 1))
	case domain.BitNot:
		it := raw.Type().(*types.IntType)
		allOnes := constant.NewInt(it, -1)
		result = block.NewXor(raw, allOnes)
	default:
		return g.unsupported(e.GetLocation(), "unary operator %s", e.Operator)
	}

	wrapped, err := g.wrapOf(result, prim, block)
	if err != nil {
		return err
	}
	g.currentValue, g.currentType = wrapped, prim
	return nil
}

// VisitChainCompareExpr lowers `a op1 b op2 c …` as a conjunction of
// adjacent comparisons, each interior operand evaluated exactly once
// because the loop below visits Operands only one time each.
func (g *Generator) VisitChainCompareExpr(e *domain.ChainCompareExpr) error {
	raws := make([]value.Value, len(e.Operands))
	prims := make([]*domain.PrimitiveType, len(e.Operands))
	for i, operand := range e.Operands {
		if err := operand.Accept(g); err != nil {
			return err
		}
		prim, ok := g.currentType.(*domain.PrimitiveType)
		if !ok {
			return g.typeError(e.GetLocation(), "chained comparison requires primitive operands")
		}
		raw, err := g.rawOf(g.currentValue, g.currentType, g.fn.Block)
		if err != nil {
			return err
		}
		raws[i] = raw
		prims[i] = prim
	}

	var conj value.Value
	for i, op := range e.Ops {
		lhs, rhs := raws[i], raws[i+1]
		leftPrim, rightPrim := prims[i], prims[i+1]
		prim := leftPrim
		if rightPrim.BitWidth > leftPrim.BitWidth {
			prim = rightPrim
		}
		lhs, err := g.coerce(g.fn.Block, lhs, leftPrim, prim)
		if err != nil {
			return err
		}
		rhs, err := g.coerce(g.fn.Block, rhs, rightPrim, prim)
		if err != nil {
			return err
		}
		cmp, err := g.emitCompare(op, lhs, rhs, prim, g.fn.Block)
		if err != nil {
			return g.reportBinaryErr(&domain.BinaryExpr{BaseNode: e.BaseNode, Operator: op}, err)
		}
		if conj == nil {
			conj = cmp
		} else {
			conj = g.fn.Block.NewAnd(conj, cmp)
		}
	}
	g.currentValue, g.currentType = conj, domain.NewBool()
	return nil
}

func (g *Generator) VisitCallExpr(e *domain.CallExpr) error {
	v, t, err := g.callResolver.Resolve(e)
	if err != nil {
		return err
	}
	g.currentValue, g.currentType = v, t
	return nil
}

// VisitIndexExpr lowers `object[index]` against an address wrapper: the
// wrapper's address field is converted to a typed pointer to the element
// type and loaded.
func (g *Generator) VisitIndexExpr(e *domain.IndexExpr) error {
	if err := e.Object.Accept(g); err != nil {
		return err
	}
	objVal, objType := g.currentValue, g.currentType
	rec, ok := objType.(*domain.RecordType)
	if !ok || !rec.IsAddressWrapper() {
		return g.unsupported(e.GetLocation(), "index read is only supported on an address-wrapper record, got %s", objType)
	}
	if err := e.Index.Accept(g); err != nil {
		return err
	}
	idxVal, idxType := g.currentValue, g.currentType
	block := g.fn.Block
	addrRaw, err := g.rawOf(objVal, rec, block)
	if err != nil {
		return err
	}
	idxRaw, err := g.rawOf(idxVal, idxType, block)
	if err != nil {
		return err
	}
	elemLLVM, err := g.typeMapper.Map(e.Type_, false)
	if err != nil {
		return g.typeError(e.GetLocation(), "%s", err)
	}
	ptr := block.NewIntToPtr(addrRaw, types.NewPointer(elemLLVM))
	indexed := block.NewGetElementPtr(elemLLVM, ptr, idxRaw)
	loaded := block.NewLoad(elemLLVM, indexed)
	g.currentValue, g.currentType = loaded, e.Type_
	return nil
}

// fieldLookup dispatches FieldIndex across the two aggregate front types,
// reporting whether the aggregate is pointer-backed (EntityType) or a value
// that needs spilling to a stack slot before it can be GEP'd (RecordType).
func fieldLookup(t domain.Type, name string) (idx int, fieldType domain.Type, isPointer bool, ok bool) {
	switch rt := t.(type) {
	case *domain.RecordType:
		idx, fieldType, ok = rt.FieldIndex(name)
		return idx, fieldType, false, ok
	case *domain.EntityType:
		idx, fieldType, ok = rt.FieldIndex(name)
		return idx, fieldType, true, ok
	default:
		return -1, nil, false, false
	}
}

// VisitMemberExpr lowers `object.member` via addressOf (stmt.go), which
// knows how to reach the field's storage whether Object is a local variable,
// a nested field, an entity pointer, or a freshly computed record value
// (spilled to a temporary so it can be GEP'd).
func (g *Generator) VisitMemberExpr(e *domain.MemberExpr) error {
	objPtr, objType, err := g.addressOf(e.Object)
	if err != nil {
		return err
	}
	idx, fieldType, _, ok := fieldLookup(objType, e.Member)
	if !ok {
		return g.typeError(e.GetLocation(), "type %s has no field %q", objType, e.Member)
	}
	block := g.fn.Block
	elemType := llvmElemType(objPtr)
	gep := block.NewGetElementPtr(elemType, objPtr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(idx)))
	loaded := block.NewLoad(gepFieldType(elemType, idx), gep)
	g.currentValue, g.currentType = loaded, fieldType
	return nil
}

func gepFieldType(aggregate types.Type, idx int) types.Type {
	if st, ok := aggregate.(*types.StructType); ok && idx < len(st.Fields) {
		return st.Fields[idx]
	}
	return types.I8
}

func (g *Generator) VisitRangeExpr(e *domain.RangeExpr) error {
	// Only consumed specially by ForStmt's range-based form (see stmt.go);
	// reaching this method means a range literal was used as an ordinary
	// value, which this engine does not give a standalone representation.
	return g.unsupported(e.GetLocation(), "range expressions are only valid as the source of a for loop")
}

func (g *Generator) VisitCondExpr(e *domain.CondExpr) error {
	if err := e.Condition.Accept(g); err != nil {
		return err
	}
	condVal, condType := g.currentValue, g.currentType
	block := g.fn.Block
	condRaw, err := g.rawOf(condVal, condType, block)
	if err != nil {
		return err
	}
	if err := e.Then.Accept(g); err != nil {
		return err
	}
	thenVal := g.currentValue
	if err := e.Else.Accept(g); err != nil {
		return err
	}
	elseVal := g.currentValue
	result := g.fn.Block.NewSelect(condRaw, thenVal, elseVal)
	g.currentValue, g.currentType = result, e.Type_
	return nil
}

// VisitCoalesceExpr implements `left ?? right` against the engine's
// convention for an optional-carrying record: field 0
// is the boolean validity discriminant, field 1 is the carried value.
func (g *Generator) VisitCoalesceExpr(e *domain.CoalesceExpr) error {
	if err := e.Left.Accept(g); err != nil {
		return err
	}
	leftVal, leftType := g.currentValue, g.currentType
	rec, ok := leftType.(*domain.RecordType)
	if !ok || len(rec.Fields) < 2 {
		return g.unsupported(e.GetLocation(), "?? requires a two-field optional-shaped record (discriminant, value), got %s", leftType)
	}
	fn := g.fn
	entryBlock := fn.Block
	discriminant := entryBlock.NewExtractValue(leftVal, 0)
	discRaw, err := g.rawOf(discriminant, rec.Fields[0].Type, entryBlock)
	if err != nil {
		return err
	}
	carried := entryBlock.NewExtractValue(leftVal, 1)

	rhsBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("coalesce.rhs"))
	endBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("coalesce.end"))
	entryBlock.NewCondBr(discRaw, endBlock, rhsBlock)

	fn.Block = rhsBlock
	if err := e.Right.Accept(g); err != nil {
		return err
	}
	rightVal := g.currentValue
	rhsExit := fn.Block
	rhsExit.NewBr(endBlock)

	fn.Block = endBlock
	phi := endBlock.NewPhi(ir.NewIncoming(carried, entryBlock), ir.NewIncoming(rightVal, rhsExit))
	g.currentValue, g.currentType = phi, e.Type_
	return nil
}
