package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// Generator is the driver and visitor: it owns the in-progress LLVM module
// and every lowering subcomponent, and implements domain.Visitor directly
// so a declaration's Accept call dispatches straight into the matching
// Visit method below (this file) or in expr.go/stmt.go/pattern.go.
//
// Intermediate expression results are threaded through two fields set by
// each VisitXxxExpr call rather than returned, because Visitor methods
// return only error; callers read currentValue/currentType immediately
// after Accept returns.
type Generator struct {
	module *ir.Module
	input  domain.CompileInput

	errorReporter domain.ErrorReporter
	typeRegistry  domain.TypeRegistry
	typeMapper    *TypeMapper
	stringPool    *StringPool
	literals      *LiteralEmitter
	intrinsics    *IntrinsicCache
	monomorphizer *Monomorphizer
	callResolver  *CallResolver
	errorLowerer  *ErrorLowerer
	crashResolver *CrashMessageResolver
	debugSymbols  *DebugSymbolTable

	moduleFuncs        map[string]*ir.Func
	funcDecls          map[string]*domain.FunctionDecl // by declared name, non-generic
	methodDecls        map[string][]*domain.FunctionDecl // receiver type name -> methods
	structDecls        map[string]*domain.StructDecl
	functionSignatures map[string]*domain.FunctionType
	globalConsts       map[string]value.Value

	fn *FunctionContext // nil outside function bodies

	currentValue value.Value
	currentType  domain.Type
}

// NewGenerator builds a Generator ready to Compile a single CompileInput.
// Per the engine's concurrency model (single-threaded, non-reentrant), one
// Generator lowers exactly one compilation.
func NewGenerator(input domain.CompileInput, reporter domain.ErrorReporter) *Generator {
	module := ir.NewModule()
	g := &Generator{
		module:             module,
		input:              input,
		errorReporter:      reporter,
		typeRegistry:       domain.NewDefaultTypeRegistry(),
		moduleFuncs:        make(map[string]*ir.Func),
		funcDecls:          make(map[string]*domain.FunctionDecl),
		methodDecls:        make(map[string][]*domain.FunctionDecl),
		structDecls:        make(map[string]*domain.StructDecl),
		functionSignatures: make(map[string]*domain.FunctionType),
		globalConsts:       make(map[string]value.Value),
	}
	g.typeMapper = NewTypeMapper(module, input.Target)
	g.stringPool = NewStringPool(module)
	g.literals = NewLiteralEmitter(g.typeMapper, g.stringPool)
	g.intrinsics = NewIntrinsicCache(module)
	g.monomorphizer = NewMonomorphizer(g)
	g.callResolver = NewCallResolver(g)
	g.crashResolver = NewCrashMessageResolver(input.StdlibPath)
	g.errorLowerer = NewErrorLowerer(g)
	g.debugSymbols = NewDebugSymbolTable()
	return g
}

// Compile runs the full pipeline: module header, external declarations,
// math helpers, format-string pool head, the user's program, and
// (interleaved per the ordering note in generics.go) generic
// instantiations. It returns the rendered textual IR.
func (g *Generator) Compile() (string, error) {
	g.crashResolver.Load()
	g.emitModuleHeader()
	g.emitExternalDeclarations()
	g.emitMathHelpers()
	g.emitFormatStringPool()

	if err := g.input.Program.Accept(g); err != nil {
		return "", err
	}
	if g.errorReporter.HasErrors() {
		return "", fmt.Errorf("compilation aborted with %d error(s)", len(g.errorReporter.GetErrors()))
	}
	return g.module.String(), nil
}

func (g *Generator) emitModuleHeader() {
	name := "corelang_module"
	if g.input.Program != nil {
		name = g.input.Program.GetLocation().Start.Filename
		if name == "" {
			name = "corelang_module"
		}
	}
	g.module.SourceFilename = name
	g.module.DataLayout = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
	triple := g.input.Options.TargetTriple
	if triple == "" {
		triple = "x86_64-unknown-linux-gnu"
	}
	g.module.TargetTriple = triple
}

// emitExternalDeclarations declares the runtime helpers the generated IR
// needs: printf/malloc/free/memcpy/strtol plus the heap/stack allocators
// and crash entry points the Error Lowerer calls into.
func (g *Generator) emitExternalDeclarations() {
	i8ptr := types.NewPointer(types.I8)

	printf := g.module.NewFunc("printf", types.I32, ir.NewParam("", i8ptr))
	printf.Sig.Variadic = true
	g.moduleFuncs["printf"] = printf

	g.moduleFuncs["malloc"] = g.module.NewFunc("malloc", i8ptr, ir.NewParam("", types.I64))
	g.moduleFuncs["free"] = g.module.NewFunc("free", types.Void, ir.NewParam("", i8ptr))
	g.moduleFuncs["memcpy"] = g.module.NewFunc("memcpy", i8ptr, ir.NewParam("", i8ptr), ir.NewParam("", i8ptr), ir.NewParam("", types.I64))
	g.moduleFuncs["strtol"] = g.module.NewFunc("strtol", types.I64, ir.NewParam("", i8ptr), ir.NewParam("", types.NewPointer(i8ptr)), ir.NewParam("", types.I32))
	g.moduleFuncs["heap_alloc"] = g.module.NewFunc("heap_alloc", i8ptr, ir.NewParam("", types.I64))
	g.moduleFuncs["stack_alloc"] = g.module.NewFunc("stack_alloc", i8ptr, ir.NewParam("", types.I64))

	crashEntry := g.module.NewFunc("corelang_crash", types.Void, ir.NewParam("", types.I32), ir.NewParam("", i8ptr), ir.NewParam("", i8ptr))
	g.moduleFuncs["corelang_crash"] = crashEntry

	crashDynamic := g.module.NewFunc("corelang_crash_dynamic", types.Void, ir.NewParam("", types.I32), ir.NewParam("", i8ptr), ir.NewParam("", i8ptr))
	g.moduleFuncs["corelang_crash_dynamic"] = crashDynamic

	g.moduleFuncs["corelang_debug_register_routine"] = g.module.NewFunc("corelang_debug_register_routine", types.Void, ir.NewParam("", types.I32), ir.NewParam("", i8ptr))
	g.moduleFuncs["corelang_debug_register_type"] = g.module.NewFunc("corelang_debug_register_type", types.Void, ir.NewParam("", types.I32), ir.NewParam("", i8ptr))
}

func (g *Generator) emitMathHelpers() {
	f64 := types.Double
	for _, name := range []string{"sqrt", "pow", "floor", "ceil", "fabs"} {
		qualified := "llvm." + name + ".f64"
		var f *ir.Func
		if name == "pow" {
			f = g.module.NewFunc(qualified, f64, ir.NewParam("", f64), ir.NewParam("", f64))
		} else {
			f = g.module.NewFunc(qualified, f64, ir.NewParam("", f64))
		}
		g.moduleFuncs["math."+name] = f
	}
}

// emitFormatStringPool emits the fixed printf format constants by name
// ahead of any user string literal (see StringPool's doc comment for why
// ordering falls out of append order alone).
func (g *Generator) emitFormatStringPool() {
	g.stringPool.Intern("%lld\n")
	g.stringPool.Intern("%s\n")
	g.stringPool.Intern("overflow")
}

// ---------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------

func (g *Generator) VisitProgram(prog *domain.Program) error {
	// First pass: index every declaration so forward references (a
	// function calling one declared later, a method on a type declared
	// later) resolve. Generic declarations become templates and are not
	// emitted here.
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *domain.StructDecl:
			if err := g.indexStructDecl(d); err != nil {
				return err
			}
		case *domain.FunctionDecl:
			if err := g.indexFunctionDecl(d); err != nil {
				return err
			}
		}
	}
	// Second pass: emit non-generic declarations in source order.
	for _, decl := range prog.Declarations {
		if err := decl.Accept(g); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) indexStructDecl(d *domain.StructDecl) error {
	if d.IsGeneric() {
		kind := domain.TemplateRecord
		if d.IsEntity {
			kind = domain.TemplateEntity
		}
		return g.typeRegistry.RegisterTemplate(&domain.GenericTemplate{
			Name: d.Name, Kind: kind, TypeParams: d.TypeParams, RecordDecl: d,
		})
	}
	g.structDecls[d.Name] = d
	fields := make([]domain.FieldDef, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = domain.FieldDef{Name: f.Name, Type: f.Type}
	}
	if d.IsEntity {
		return g.typeRegistry.RegisterEntity(&domain.EntityType{Name: d.Name, Fields: fields})
	}
	rec := &domain.RecordType{Name: d.Name, Fields: fields, IsCrashable: d.IsCrashable}
	g.crashResolver.Annotate(rec)
	return g.typeRegistry.RegisterRecord(rec)
}

func (g *Generator) indexFunctionDecl(d *domain.FunctionDecl) error {
	if d.IsGeneric() {
		return g.typeRegistry.RegisterTemplate(&domain.GenericTemplate{
			Name: d.Name, Kind: domain.TemplateFunction, TypeParams: d.TypeParams, FuncDecl: d,
		})
	}
	if d.Receiver != nil {
		g.methodDecls[d.Receiver.Type.String()] = append(g.methodDecls[d.Receiver.Type.String()], d)
		return nil
	}
	g.funcDecls[d.Name] = d
	return nil
}

func (g *Generator) VisitStructDecl(d *domain.StructDecl) error {
	if d.IsGeneric() {
		return nil // templates are emitted lazily on instantiation
	}
	var t domain.Type
	if d.IsEntity {
		et, _ := g.typeRegistry.LookupEntity(d.Name)
		t = et
	} else {
		rt, _ := g.typeRegistry.LookupRecord(d.Name)
		t = rt
	}
	if _, err := g.typeMapper.Map(t, false); err != nil {
		return g.invariantError(d.GetLocation(), "failed to materialize type %q: %s", d.Name, err)
	}
	for _, m := range d.Methods {
		if err := m.Accept(g); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) VisitGlobalConstDecl(d *domain.GlobalConstDecl) error {
	fakeFn := g.module.NewFunc("__const_init_"+d.Name, types.Void)
	block := fakeFn.NewBlock("entry")
	prevFn, prevVal, prevType := g.fn, g.currentValue, g.currentType
	g.fn = NewFunctionContext(nil, fakeFn, nil)
	g.fn.Block = block
	if err := d.Initializer.Accept(g); err != nil {
		return err
	}
	init, ok := g.currentValue.(constant.Constant)
	if iv, isIV := g.currentValue.(*ir.InstInsertValue); !ok && isIV {
		// A wrapped literal is an insertvalue of a constant scalar into an
		// undef single-field wrapper; fold it into the equivalent constant.
		st, isStruct := iv.X.Type().(*types.StructType)
		elem, isConst := iv.Elem.(constant.Constant)
		if isStruct && isConst && len(st.Fields) == 1 {
			init, ok = constant.NewStruct(st, elem), true
		}
	}
	if !ok {
		return g.invariantError(d.GetLocation(), "global constant %q initializer is not a compile-time constant", d.Name)
	}
	g.fn = prevFn
	g.currentValue, g.currentType = prevVal, prevType

	glob := g.module.NewGlobalDef(d.Name, init)
	glob.Immutable = true
	g.globalConsts[d.Name] = glob
	// The scratch function used only to run the literal/constant emitter
	// over the initializer is never referenced; drop it from the module.
	g.removeScratchFunc(fakeFn)
	return nil
}

func (g *Generator) removeScratchFunc(f *ir.Func) {
	funcs := g.module.Funcs[:0]
	for _, existing := range g.module.Funcs {
		if existing != f {
			funcs = append(funcs, existing)
		}
	}
	g.module.Funcs = funcs
}

func (g *Generator) VisitFunctionDecl(d *domain.FunctionDecl) error {
	if d.IsGeneric() {
		return nil // templates are emitted lazily on instantiation
	}
	name := d.Name
	if d.Receiver != nil {
		name = d.Receiver.Type.String() + "." + d.Name
	}
	llvmFn, sig, err := g.emitFunctionDefinitionNamed(d, name)
	if err != nil {
		return err
	}
	g.moduleFuncs[name] = llvmFn
	g.funcDecls[name] = d
	g.functionSignatures[name] = sig
	return nil
}

// emitFunctionDefinition lowers decl under its own unqualified name; used
// by the Monomorphizer for generic instantiations, whose Name field is
// already the mangled name.
func (g *Generator) emitFunctionDefinition(decl *domain.FunctionDecl) (*ir.Func, *domain.FunctionType, error) {
	return g.emitFunctionDefinitionNamed(decl, decl.Name)
}

func (g *Generator) emitFunctionDefinitionNamed(decl *domain.FunctionDecl, name string) (*ir.Func, *domain.FunctionType, error) {
	retType, err := g.typeMapper.Map(decl.ReturnType, false)
	if err != nil {
		return nil, nil, domain.NewCodeGenError(domain.TypeResolutionFailed, decl.GetLocation(), "return type: %s", err)
	}

	var allParams []domain.Parameter
	if decl.Receiver != nil {
		allParams = append(allParams, *decl.Receiver)
	}
	allParams = append(allParams, decl.Parameters...)

	llvmParams := make([]*ir.Param, len(allParams))
	paramTypes := make([]domain.Type, len(allParams))
	for i, p := range allParams {
		var pt types.Type
		var err error
		if decl.Receiver != nil && i == 0 {
			pt, err = g.typeMapper.MapReceiver(p.Type, false)
		} else {
			pt, err = g.typeMapper.Map(p.Type, false)
		}
		if err != nil {
			return nil, nil, domain.NewCodeGenError(domain.TypeResolutionFailed, decl.GetLocation(), "parameter %q: %s", p.Name, err)
		}
		llvmParams[i] = ir.NewParam(p.Name, pt)
		paramTypes[i] = p.Type
	}

	llvmFn := g.module.NewFunc(name, retType, llvmParams...)
	llvmFn.CallingConv = MapCallingConvention(decl.CallingConvention)
	sig := &domain.FunctionType{ParameterTypes: paramTypes, ReturnType: decl.ReturnType}

	if decl.IsExternal() {
		return llvmFn, sig, nil
	}

	prevFn := g.fn
	fctx := NewFunctionContext(decl, llvmFn, decl.ReturnType)
	entry := llvmFn.NewBlock("entry")
	fctx.Block = entry
	g.fn = fctx

	routineID := g.debugSymbols.RoutineID(name)
	entry.NewCall(g.moduleFuncs["corelang_debug_register_routine"],
		constant.NewInt(types.I32, int64(routineID)), g.stringPool.Pointer(entry, name))

	for i, p := range allParams {
		slot := entry.NewAlloca(llvmParams[i].Type())
		slot.SetName(p.Name + ".addr")
		entry.NewStore(llvmParams[i], slot)
		if rec, isRecord := p.Type.(*domain.RecordType); decl.Receiver != nil && i == 0 && isRecord && !rec.IsAddressWrapper() {
			fctx.DeclareByPointerLocal(p.Name, slot, p.Type)
		} else {
			fctx.DeclareLocal(p.Name, slot, p.Type)
		}
	}

	if err := decl.Body.Accept(g); err != nil {
		g.fn = prevFn
		return nil, nil, err
	}

	if !fctx.Terminated() {
		if err := g.emitImplicitReturn(fctx); err != nil {
			g.fn = prevFn
			return nil, nil, err
		}
	}
	g.fn = prevFn
	return llvmFn, sig, nil
}

func (g *Generator) emitImplicitReturn(fctx *FunctionContext) error {
	if p, ok := fctx.ReturnType.(*domain.PrimitiveType); ok && p.Kind == domain.PKVoid {
		fctx.Block.NewRet(nil)
		return nil
	}
	return g.invariantError(fctx.Decl.GetLocation(), "function %q has no return on a path reaching its end", fctx.Decl.Name)
}

func (g *Generator) invariantError(loc domain.SourceRange, format string, args ...interface{}) error {
	err := *domain.NewCodeGenError(domain.InternalInvariantViolation, loc, format, args...)
	g.errorReporter.ReportError(err)
	return &err
}

func (g *Generator) typeError(loc domain.SourceRange, format string, args ...interface{}) error {
	err := *domain.NewCodeGenError(domain.TypeResolutionFailed, loc, format, args...)
	g.errorReporter.ReportError(err)
	return &err
}

func (g *Generator) unsupported(loc domain.SourceRange, format string, args ...interface{}) error {
	err := *domain.NewCodeGenError(domain.UnsupportedFeature, loc, format, args...)
	g.errorReporter.ReportError(err)
	return &err
}
