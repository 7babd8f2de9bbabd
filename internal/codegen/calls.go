package codegen

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// dangerIntrinsics are the raw-memory/address forms. resolveDangerIntrinsic
// sets the FunctionContext's danger-zone flag while lowering them; no other
// lowering code reads that flag.
var dangerIntrinsics = map[string]bool{
	"address_of": true, "invalidate": true,
	"read_as": true, "write_as": true,
	"volatile_read": true, "volatile_write": true,
}

var sourceLocationIntrinsics = map[string]bool{
	"get_line_number": true, "get_column_number": true, "get_file_name": true,
}

var errorIntrinsics = map[string]bool{
	"verify!": true, "breach!": true, "stop!": true,
}

// CallResolver implements an eleven-priority call dispatch: every
// `f(...)`/`recv.m(...)` call shape in the front language routes through
// Resolve, which classifies CallExpr.Function and lowers to the matching
// form. Later priorities are cheaper to misfire into than earlier ones, so
// each is checked in order and the first match wins.
type CallResolver struct {
	gen *Generator
}

func NewCallResolver(gen *Generator) *CallResolver {
	return &CallResolver{gen: gen}
}

func (r *CallResolver) Resolve(e *domain.CallExpr) (value.Value, domain.Type, error) {
	g := r.gen

	if id, ok := e.Function.(*domain.IdentifierExpr); ok {
		switch {
		case dangerIntrinsics[id.Name]:
			return r.resolveDangerIntrinsic(e, id.Name)
		case sourceLocationIntrinsics[id.Name]:
			return r.resolveSourceLocationIntrinsic(e, id.Name)
		case errorIntrinsics[id.Name]:
			return r.resolveErrorIntrinsic(e, id.Name)
		}
		if strings.HasSuffix(id.Name, "!") || strings.HasSuffix(id.Name, "?") {
			if _, ok := g.typeRegistry.ResolvePrimitive(strings.TrimRight(id.Name, "!?")); ok {
				return r.resolveParseConstructor(e, id.Name)
			}
		}
		if rec, ok := g.typeRegistry.LookupRecord(id.Name); ok {
			if rec.IsCrashable {
				return r.resolveCrashableConstructor(e, rec)
			}
			return r.resolveRecordConstructor(e, rec, id.Name, nil)
		}
		if et, ok := g.typeRegistry.LookupEntity(id.Name); ok {
			return r.resolveEntityConstructor(e, et, id.Name, nil)
		}
		if tmpl, ok := g.typeRegistry.LookupTemplate(id.Name); ok && len(e.ExplicitTypeArgs) > 0 && tmpl.Kind != domain.TemplateFunction {
			return r.resolveGenericConstructor(e, tmpl)
		}
		if prim, ok := g.typeRegistry.ResolvePrimitive(id.Name); ok {
			return r.resolvePrimitiveCast(e, prim)
		}
		if decl, ok := g.funcDecls[id.Name]; ok && decl.IsExternal() {
			return r.resolveDirectCall(e, id.Name, decl)
		}
		if tmpl, ok := g.typeRegistry.LookupTemplate(id.Name); ok && tmpl.Kind == domain.TemplateFunction {
			return r.resolveGenericFunctionCall(e, tmpl)
		}
		if decl, ok := g.funcDecls[id.Name]; ok {
			return r.resolveDirectCall(e, id.Name, decl)
		}
		if g.input.Semantic != nil {
			if ft, ok := g.input.Semantic.LookupExternalFunction(id.Name); ok {
				return r.resolveExternalSignature(e, id.Name, ft)
			}
		}
		return nil, nil, g.typeError(e.GetLocation(), "unresolved call target %q", id.Name)
	}

	if member, ok := e.Function.(*domain.MemberExpr); ok {
		return r.resolveMemberCall(e, member)
	}

	return nil, nil, g.unsupported(e.GetLocation(), "unsupported call target shape %T", e.Function)
}

func (r *CallResolver) lowerArgs(args []domain.Expression) ([]value.Value, []domain.Type, error) {
	g := r.gen
	vals := make([]value.Value, len(args))
	types_ := make([]domain.Type, len(args))
	for i, a := range args {
		if err := a.Accept(g); err != nil {
			return nil, nil, err
		}
		vals[i] = g.currentValue
		types_[i] = g.currentType
	}
	return vals, types_, nil
}

// resolveDangerIntrinsic lowers the raw address/memory forms (priority 1).
// The callee marks InDangerZone for the duration so nested lowering code
// can tell it is intentionally bypassing the usual wrapper discipline.
func (r *CallResolver) resolveDangerIntrinsic(e *domain.CallExpr, name string) (value.Value, domain.Type, error) {
	g := r.gen
	g.fn.SetDangerZone(true)
	defer g.fn.SetDangerZone(false)
	block := g.fn.Block

	switch name {
	case "address_of":
		if len(e.Args) != 1 {
			return nil, nil, g.unsupported(e.GetLocation(), "address_of expects exactly one argument")
		}
		ptr, _, err := g.addressOf(e.Args[0])
		if err != nil {
			return nil, nil, err
		}
		raw := block.NewPtrToInt(ptr, g.typeMapper.pointerSizedInt())
		wrapped, err := g.wrapOf(raw, e.Type_, block)
		if err != nil {
			return nil, nil, err
		}
		return wrapped, e.Type_, nil

	case "invalidate":
		if len(e.Args) != 1 {
			return nil, nil, g.unsupported(e.GetLocation(), "invalidate expects exactly one argument")
		}
		ptr, ft, err := g.addressOf(e.Args[0])
		if err != nil {
			return nil, nil, err
		}
		block.NewStore(constant.NewUndef(llvmElemType(ptr)), ptr)
		return constant.NewUndef(types.Void), ft, nil

	case "read_as", "volatile_read":
		if len(e.Args) != 1 {
			return nil, nil, g.unsupported(e.GetLocation(), "%s expects exactly one address argument", name)
		}
		vals, argTypes, err := r.lowerArgs(e.Args)
		if err != nil {
			return nil, nil, err
		}
		addrRaw, err := g.rawOf(vals[0], argTypes[0], block)
		if err != nil {
			return nil, nil, err
		}
		elemLLVM, err := g.typeMapper.Map(e.Type_, false)
		if err != nil {
			return nil, nil, g.typeError(e.GetLocation(), "%s", err)
		}
		ptr := block.NewIntToPtr(addrRaw, types.NewPointer(elemLLVM))
		load := block.NewLoad(elemLLVM, ptr)
		if name == "volatile_read" {
			load.Volatile = true
		}
		return load, e.Type_, nil

	case "write_as", "volatile_write":
		if len(e.Args) != 2 {
			return nil, nil, g.unsupported(e.GetLocation(), "%s expects (address, value)", name)
		}
		vals, argTypes, err := r.lowerArgs(e.Args)
		if err != nil {
			return nil, nil, err
		}
		addrRaw, err := g.rawOf(vals[0], argTypes[0], block)
		if err != nil {
			return nil, nil, err
		}
		elemLLVM, err := g.typeMapper.Map(argTypes[1], false)
		if err != nil {
			return nil, nil, g.typeError(e.GetLocation(), "%s", err)
		}
		ptr := block.NewIntToPtr(addrRaw, types.NewPointer(elemLLVM))
		store := block.NewStore(vals[1], ptr)
		if name == "volatile_write" {
			store.Volatile = true
		}
		return constant.NewUndef(types.Void), domain.NewVoid(), nil
	}
	return nil, nil, g.unsupported(e.GetLocation(), "unrecognized danger-zone intrinsic %q", name)
}

// resolveSourceLocationIntrinsic resolves at compile time from the call
// site's own location, never touching runtime state (priority 2).
func (r *CallResolver) resolveSourceLocationIntrinsic(e *domain.CallExpr, name string) (value.Value, domain.Type, error) {
	g := r.gen
	loc := e.GetLocation()
	block := g.fn.Block
	switch name {
	case "get_line_number":
		raw := constant.NewInt(types.I32, int64(loc.Start.Line))
		wrapped, err := g.wrapOf(raw, e.Type_, block)
		return wrapped, e.Type_, err
	case "get_column_number":
		raw := constant.NewInt(types.I32, int64(loc.Start.Column))
		wrapped, err := g.wrapOf(raw, e.Type_, block)
		return wrapped, e.Type_, err
	case "get_file_name":
		return g.stringPool.Pointer(block, loc.Start.Filename), &domain.StringType{}, nil
	}
	return nil, nil, g.unsupported(e.GetLocation(), "unrecognized source-location intrinsic %q", name)
}

// resolveErrorIntrinsic lowers verify!/breach!/stop! (priority 3) straight
// into the Error Lowerer's trap-and-unreachable sequence.
func (r *CallResolver) resolveErrorIntrinsic(e *domain.CallExpr, name string) (value.Value, domain.Type, error) {
	g := r.gen
	switch name {
	case "verify!":
		if len(e.Args) < 1 {
			return nil, nil, g.unsupported(e.GetLocation(), "verify! expects at least a condition argument")
		}
		if err := e.Args[0].Accept(g); err != nil {
			return nil, nil, err
		}
		condRaw, err := g.rawOf(g.currentValue, g.currentType, g.fn.Block)
		if err != nil {
			return nil, nil, err
		}
		var message string
		if len(e.Args) > 1 {
			if lit, ok := e.Args[1].(*domain.LiteralExpr); ok {
				message, _ = lit.Value.(string)
			}
		}
		if message == "" {
			message = "verification failed"
		}
		if err := g.errorLowerer.EmitVerify(e.GetLocation(), condRaw, message); err != nil {
			return nil, nil, err
		}
		return constant.NewUndef(types.Void), domain.NewVoid(), nil
	case "breach!", "stop!":
		message := name
		if len(e.Args) > 0 {
			if lit, ok := e.Args[0].(*domain.LiteralExpr); ok {
				message, _ = lit.Value.(string)
			}
		}
		if err := g.errorLowerer.EmitStaticCrash(e.GetLocation(), "RuntimeError", message); err != nil {
			return nil, nil, err
		}
		g.fn.Block.NewUnreachable()
		return constant.NewUndef(types.Void), domain.NewVoid(), nil
	}
	return nil, nil, g.unsupported(e.GetLocation(), "unrecognized error intrinsic %q", name)
}

// resolveParseConstructor lowers `S32!("42")`/`S32?("42")`-style runtime
// parse constructors (priority 5) to the strtol external declaration.
func (r *CallResolver) resolveParseConstructor(e *domain.CallExpr, name string) (value.Value, domain.Type, error) {
	g := r.gen
	if len(e.Args) != 1 {
		return nil, nil, g.unsupported(e.GetLocation(), "%s expects exactly one text argument", name)
	}
	if err := e.Args[0].Accept(g); err != nil {
		return nil, nil, err
	}
	textVal := g.currentValue
	block := g.fn.Block
	nullPtr := constant.NewNull(types.NewPointer(types.NewPointer(types.I8)))
	parsed := block.NewCall(g.moduleFuncs["strtol"], textVal, nullPtr, constant.NewInt(types.I32, 10))

	prim, ok := e.Type_.(*domain.PrimitiveType)
	if !ok {
		return nil, nil, g.typeError(e.GetLocation(), "%s has no primitive result type", name)
	}
	raw, err := g.coerce(block, parsed, domain.NewSignedInt(64), prim)
	if err != nil {
		return nil, nil, err
	}
	wrapped, err := g.wrapOf(raw, prim, block)
	return wrapped, prim, err
}

func (r *CallResolver) resolveCrashableConstructor(e *domain.CallExpr, rec *domain.RecordType) (value.Value, domain.Type, error) {
	return r.resolveRecordConstructor(e, rec, rec.Name, nil)
}

// resolveRecordConstructor builds a wrapped struct literal in field
// declaration order, matching named arguments against ArgNames and falling
// back to positional order.
func (r *CallResolver) resolveRecordConstructor(e *domain.CallExpr, rec *domain.RecordType, name string, subst map[string]domain.Type) (value.Value, domain.Type, error) {
	g := r.gen
	llvmType, err := g.typeMapper.Map(rec, false)
	if err != nil {
		return nil, nil, g.typeError(e.GetLocation(), "%s", err)
	}
	fieldVals := make([]value.Value, len(rec.Fields))
	assigned := make([]bool, len(rec.Fields))

	for i, arg := range e.Args {
		if err := arg.Accept(g); err != nil {
			return nil, nil, err
		}
		idx := i
		if i < len(e.ArgNames) && e.ArgNames[i] != "" {
			fi, _, ok := rec.FieldIndex(e.ArgNames[i])
			if !ok {
				return nil, nil, g.typeError(e.GetLocation(), "%s has no field %q", name, e.ArgNames[i])
			}
			idx = fi
		}
		if idx >= len(rec.Fields) {
			return nil, nil, g.typeError(e.GetLocation(), "too many arguments constructing %s", name)
		}
		coerced, err := g.coerceValue(g.currentValue, g.currentType, rec.Fields[idx].Type)
		if err != nil {
			return nil, nil, err
		}
		fieldVals[idx] = coerced
		assigned[idx] = true
	}
	for i, ok := range assigned {
		if !ok {
			return nil, nil, g.typeError(e.GetLocation(), "missing field %q constructing %s", rec.Fields[i].Name, name)
		}
	}

	block := g.fn.Block
	result := value.Value(constant.NewUndef(llvmType))
	for i, v := range fieldVals {
		result = block.NewInsertValue(result, v, uint64(i))
	}
	return result, rec, nil
}

// resolveEntityConstructor heap-allocates the struct via heap_alloc and
// stores each field through the returned pointer.
func (r *CallResolver) resolveEntityConstructor(e *domain.CallExpr, et *domain.EntityType, name string, subst map[string]domain.Type) (value.Value, domain.Type, error) {
	g := r.gen
	llvmType, err := g.typeMapper.Map(et, false)
	if err != nil {
		return nil, nil, g.typeError(e.GetLocation(), "%s", err)
	}
	ptrType := llvmType.(*types.PointerType)
	elemType := ptrType.ElemType

	block := g.fn.Block
	sizeOf := block.NewGetElementPtr(elemType, constant.NewNull(ptrType), constant.NewInt(types.I32, 1))
	sizeInt := block.NewPtrToInt(sizeOf, types.I64)
	raw := block.NewCall(g.moduleFuncs["heap_alloc"], sizeInt)
	ptr := block.NewBitCast(raw, ptrType)

	for i, arg := range e.Args {
		if err := arg.Accept(g); err != nil {
			return nil, nil, err
		}
		idx := i
		if i < len(e.ArgNames) && e.ArgNames[i] != "" {
			fi, _, ok := et.FieldIndex(e.ArgNames[i])
			if !ok {
				return nil, nil, g.typeError(e.GetLocation(), "%s has no field %q", name, e.ArgNames[i])
			}
			idx = fi
		}
		coerced, err := g.coerceValue(g.currentValue, g.currentType, et.Fields[idx].Type)
		if err != nil {
			return nil, nil, err
		}
		gep := block.NewGetElementPtr(elemType, ptr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(idx)))
		block.NewStore(coerced, gep)
	}
	return ptr, et, nil
}

// resolveGenericConstructor routes `Box<s32>(5)` through the Monomorphizer
// before constructing, covering both record and entity templates.
func (r *CallResolver) resolveGenericConstructor(e *domain.CallExpr, tmpl *domain.GenericTemplate) (value.Value, domain.Type, error) {
	g := r.gen
	switch tmpl.Kind {
	case domain.TemplateRecord:
		rt, err := g.monomorphizer.EnsureRecord(tmpl.Name, e.ExplicitTypeArgs, e.GetLocation())
		if err != nil {
			return nil, nil, err
		}
		return r.resolveRecordConstructor(e, rt, rt.Name, nil)
	case domain.TemplateEntity:
		et, err := g.monomorphizer.EnsureEntity(tmpl.Name, e.ExplicitTypeArgs, e.GetLocation())
		if err != nil {
			return nil, nil, err
		}
		return r.resolveEntityConstructor(e, et, et.Name, nil)
	}
	return nil, nil, g.unsupported(e.GetLocation(), "template %q is not a constructible type", tmpl.Name)
}

// resolvePrimitiveCast lowers `s64(x)` (priority 8): extract the operand's
// raw scalar and coerce its width/kind to the target primitive.
func (r *CallResolver) resolvePrimitiveCast(e *domain.CallExpr, target domain.Type) (value.Value, domain.Type, error) {
	g := r.gen
	if len(e.Args) != 1 {
		return nil, nil, g.unsupported(e.GetLocation(), "primitive cast expects exactly one argument")
	}
	if err := e.Args[0].Accept(g); err != nil {
		return nil, nil, err
	}
	val, valType := g.currentValue, g.currentType
	targetPrim, ok := target.(*domain.PrimitiveType)
	if !ok {
		return nil, nil, g.typeError(e.GetLocation(), "cast target %s is not primitive", target)
	}
	sourcePrim, ok := valType.(*domain.PrimitiveType)
	if !ok {
		return nil, nil, g.typeError(e.GetLocation(), "cannot cast non-primitive %s", valType)
	}
	block := g.fn.Block
	raw, err := g.rawOf(val, sourcePrim, block)
	if err != nil {
		return nil, nil, err
	}
	raw, err = g.coerce(block, raw, sourcePrim, targetPrim)
	if err != nil {
		return nil, nil, err
	}
	wrapped, err := g.wrapOf(raw, targetPrim, block)
	return wrapped, targetPrim, err
}

// resolveDirectCall lowers a call to a non-generic function: external
// declarations and in-module functions by bare name, and module functions
// and static methods by their qualified name. The callee is emitted on
// first use.
func (r *CallResolver) resolveDirectCall(e *domain.CallExpr, name string, decl *domain.FunctionDecl) (value.Value, domain.Type, error) {
	g := r.gen
	fn, ok := g.moduleFuncs[name]
	if !ok {
		var err error
		fn, _, err = g.emitFunctionDefinitionNamed(decl, name)
		if err != nil {
			return nil, nil, err
		}
		g.moduleFuncs[name] = fn
	}
	args, argTypes, err := r.lowerArgs(e.Args)
	if err != nil {
		return nil, nil, err
	}
	for i := range args {
		if i < len(decl.Parameters) {
			args[i], err = g.coerceValue(args[i], argTypes[i], decl.Parameters[i].Type)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	call := g.fn.Block.NewCall(fn, args...)
	return call, decl.ReturnType, nil
}

// resolveExternalSignature lowers a call whose only evidence is the
// semantic layer's FFI signature table rather than an in-module FunctionDecl
// (priority 9, imported C declarations the AST never carried a body for).
func (r *CallResolver) resolveExternalSignature(e *domain.CallExpr, name string, ft *domain.FunctionType) (value.Value, domain.Type, error) {
	g := r.gen
	fn, ok := g.moduleFuncs[name]
	if !ok {
		retType, err := g.typeMapper.Map(ft.ReturnType, false)
		if err != nil {
			return nil, nil, g.typeError(e.GetLocation(), "%s", err)
		}
		params := make([]*ir.Param, len(ft.ParameterTypes))
		for i, pt := range ft.ParameterTypes {
			llvmPT, err := g.typeMapper.Map(pt, false)
			if err != nil {
				return nil, nil, g.typeError(e.GetLocation(), "%s", err)
			}
			params[i] = ir.NewParam("", llvmPT)
		}
		fn = g.module.NewFunc(name, retType, params...)
		fn.Sig.Variadic = ft.Variadic
		g.moduleFuncs[name] = fn
	}
	args, argTypes, err := r.lowerArgs(e.Args)
	if err != nil {
		return nil, nil, err
	}
	for i := range args {
		if i < len(ft.ParameterTypes) {
			args[i], err = g.coerceValue(args[i], argTypes[i], ft.ParameterTypes[i])
			if err != nil {
				return nil, nil, err
			}
		}
	}
	call := g.fn.Block.NewCall(fn, args...)
	return call, ft.ReturnType, nil
}

// resolveGenericFunctionCall monomorphizes and calls a generic function
// template, inferring type arguments from ExplicitTypeArgs when present.
func (r *CallResolver) resolveGenericFunctionCall(e *domain.CallExpr, tmpl *domain.GenericTemplate) (value.Value, domain.Type, error) {
	g := r.gen
	typeArgs := e.ExplicitTypeArgs
	if len(typeArgs) == 0 {
		return nil, nil, g.unsupported(e.GetLocation(), "generic function %q requires explicit type arguments", tmpl.Name)
	}
	fn, sig, err := g.monomorphizer.EnsureFunction(tmpl.Name, typeArgs, e.GetLocation())
	if err != nil {
		return nil, nil, err
	}
	args, argTypes, err := r.lowerArgs(e.Args)
	if err != nil {
		return nil, nil, err
	}
	for i := range args {
		if i < len(sig.ParameterTypes) {
			args[i], err = g.coerceValue(args[i], argTypes[i], sig.ParameterTypes[i])
			if err != nil {
				return nil, nil, err
			}
		}
	}
	call := g.fn.Block.NewCall(fn, args...)
	return call, sig.ReturnType, nil
}

// resolveMemberCall disambiguates `X.m(...)` three ways: an imported
// module's function, a static/generic method named on a type, or an
// instance method call on a typed receiver (priorities 4, 10, 11).
func (r *CallResolver) resolveMemberCall(e *domain.CallExpr, member *domain.MemberExpr) (value.Value, domain.Type, error) {
	g := r.gen

	if objID, ok := member.Object.(*domain.IdentifierExpr); ok {
		if mod, ok := g.input.ImportedModules[objID.Name]; ok {
			return r.resolveModuleFunctionCall(e, mod, member.Member)
		}
		if _, isLocal := g.fn.Lookup(objID.Name); !isLocal {
			if _, isRecord := g.typeRegistry.LookupRecord(objID.Name); isRecord {
				return r.resolveStaticMethod(e, objID.Name, member.Member)
			}
			if _, isEntity := g.typeRegistry.LookupEntity(objID.Name); isEntity {
				return r.resolveStaticMethod(e, objID.Name, member.Member)
			}
			if tmpl, isTmpl := g.typeRegistry.LookupTemplate(objID.Name); isTmpl {
				return r.resolveGenericStaticMethod(e, tmpl, member.Member)
			}
		}
	}

	if err := member.Object.Accept(g); err != nil {
		return nil, nil, err
	}
	recvVal, recvType := g.currentValue, g.currentType
	return r.resolveInstanceMethod(e, member.Object, recvVal, recvType, member.Member)
}

func (r *CallResolver) resolveModuleFunctionCall(e *domain.CallExpr, mod *domain.ImportedModule, funcName string) (value.Value, domain.Type, error) {
	g := r.gen
	qualified := mod.Name + "." + funcName
	if fn, ok := g.moduleFuncs[qualified]; ok {
		args, argTypes, err := r.lowerArgs(e.Args)
		if err != nil {
			return nil, nil, err
		}
		sig := g.functionSignatures[qualified]
		for i := range args {
			if sig != nil && i < len(sig.ParameterTypes) {
				args[i], err = g.coerceValue(args[i], argTypes[i], sig.ParameterTypes[i])
				if err != nil {
					return nil, nil, err
				}
			}
		}
		call := g.fn.Block.NewCall(fn, args...)
		var ret domain.Type = domain.NewVoid()
		if sig != nil {
			ret = sig.ReturnType
		}
		return call, ret, nil
	}
	for _, decl := range mod.AST.Declarations {
		if fd, ok := decl.(*domain.FunctionDecl); ok && fd.Name == funcName && fd.Receiver == nil {
			return r.resolveDirectCall(e, qualified, fd)
		}
	}
	return nil, nil, g.typeError(e.GetLocation(), "module %q has no function %q", mod.Name, funcName)
}

func (r *CallResolver) resolveStaticMethod(e *domain.CallExpr, typeName, methodName string) (value.Value, domain.Type, error) {
	g := r.gen
	for _, m := range g.methodDecls[typeName] {
		if m.Name == methodName {
			qualified := typeName + "." + methodName
			return r.resolveDirectCall(e, qualified, m)
		}
	}
	return nil, nil, g.typeError(e.GetLocation(), "type %q has no static method %q", typeName, methodName)
}

func (r *CallResolver) resolveGenericStaticMethod(e *domain.CallExpr, tmpl *domain.GenericTemplate, methodName string) (value.Value, domain.Type, error) {
	g := r.gen
	if tmpl.RecordDecl == nil {
		return nil, nil, g.typeError(e.GetLocation(), "template %q has no methods", tmpl.Name)
	}
	for _, m := range tmpl.RecordDecl.Methods {
		if m.Name == methodName {
			mangled := substKey(tmpl.Name, e.ExplicitTypeArgs) + "." + methodName
			subst, err := buildSubstitution(tmpl.TypeParams, e.ExplicitTypeArgs)
			if err != nil {
				return nil, nil, domain.NewCodeGenError(domain.TypeResolutionFailed, e.GetLocation(), "%s", err)
			}
			decl := substFunctionDecl(m, mangled, subst)
			return r.resolveDirectCall(e, mangled, decl)
		}
	}
	return nil, nil, g.typeError(e.GetLocation(), "template %q has no static method %q", tmpl.Name, methodName)
}

// resolveInstanceMethod dispatches a `recv.m(...)` call. A generic-instance
// receiver whose template declares m goes through resolveGenericStaticMethod;
// otherwise the current TU's top-level `T.m` functions are searched, and the
// receiver is passed as prepareReceiver decides.
func (r *CallResolver) resolveInstanceMethod(e *domain.CallExpr, recvExpr domain.Expression, recvVal value.Value, recvType domain.Type, methodName string) (value.Value, domain.Type, error) {
	g := r.gen
	typeName := recvType.String()

	if gi, ok := recvType.(*domain.GenericInstanceType); ok {
		tmpl, ok := g.typeRegistry.LookupTemplate(gi.Base)
		if ok && tmpl.RecordDecl != nil {
			for _, m := range tmpl.RecordDecl.Methods {
				if m.Name == methodName {
					return r.resolveGenericStaticMethod(e, tmpl, methodName)
				}
			}
		}
		typeName = gi.Mangled()
	}

	for _, m := range g.methodDecls[typeName] {
		if m.Name != methodName {
			continue
		}
		qualified := typeName + "." + methodName
		fn, ok := g.moduleFuncs[qualified]
		if !ok {
			var err error
			fn, _, err = g.emitFunctionDefinitionNamed(m, qualified)
			if err != nil {
				return nil, nil, err
			}
			g.moduleFuncs[qualified] = fn
		}
		receiver, err := r.prepareReceiver(recvExpr, recvVal, recvType)
		if err != nil {
			return nil, nil, err
		}
		args, argTypes, err := r.lowerArgs(e.Args)
		if err != nil {
			return nil, nil, err
		}
		for i := range args {
			pi := i + 1
			if pi < len(m.Parameters)+1 {
				args[i], err = g.coerceValue(args[i], argTypes[i], m.Parameters[i].Type)
				if err != nil {
					return nil, nil, err
				}
			}
		}
		call := g.fn.Block.NewCall(fn, append([]value.Value{receiver}, args...)...)
		return call, m.ReturnType, nil
	}
	return nil, nil, g.typeError(e.GetLocation(), "type %q has no method %q", typeName, methodName)
}

// prepareReceiver passes the receiver the way MapReceiver types it:
// non-record receivers (entities, primitives, text) and address-wrapper
// records pass as their value; other records pass as a pointer to their
// storage, obtained from addressOf.
func (r *CallResolver) prepareReceiver(recvExpr domain.Expression, recvVal value.Value, recvType domain.Type) (value.Value, error) {
	g := r.gen
	if rec, isRecord := recvType.(*domain.RecordType); !isRecord || rec.IsAddressWrapper() {
		return recvVal, nil
	}
	ptr, _, err := g.addressOf(recvExpr)
	return ptr, err
}
