package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"

	"github.com/sokoide/corelang/internal/domain"
)

// Monomorphizer registers record/entity/function templates without
// emission, and realizes each concrete (template, args) pair at most once,
// keyed by its mangled name.
//
// The textual generator this engine's ancestor was built from needed an
// explicit pending-instantiation FIFO and a fixpoint-drain pass because its
// output was an append-only text buffer: a reference discovered mid-function
// could not retroactively insert a type definition above the point already
// written. github.com/llir/llvm's object model has no such ordering
// constraint — a *types.StructType or *ir.Func can be built and referenced
// the moment it is first requested, and the module's final String()
// rendering groups all type definitions and all function definitions into
// their own sections regardless of call order. So EnsureRecord/EnsureEntity/
// EnsureFunction below perform what the original design enqueued,
// synchronously, the first time they are asked: the "queue" is a map that
// goes from empty to populated in one step, and the "fixpoint" is reached
// by construction rather than by a drain loop. See DESIGN.md.
type Monomorphizer struct {
	gen *Generator

	emittedRecords  map[string]*domain.RecordType
	emittedEntities map[string]*domain.EntityType
	emittedFuncs    map[string]*ir.Func
	inFlightFuncs   map[string]bool // reentrancy guard for recursive generic functions
}

func NewMonomorphizer(gen *Generator) *Monomorphizer {
	return &Monomorphizer{
		gen:             gen,
		emittedRecords:  make(map[string]*domain.RecordType),
		emittedEntities: make(map[string]*domain.EntityType),
		emittedFuncs:    make(map[string]*ir.Func),
		inFlightFuncs:   make(map[string]bool),
	}
}

func substKey(base string, args []domain.Type) string {
	return (&domain.GenericInstanceType{Base: base, Args: args}).Mangled()
}

func buildSubstitution(params []string, args []domain.Type) (map[string]domain.Type, error) {
	if len(params) != len(args) {
		return nil, fmt.Errorf("template expects %d type argument(s), got %d", len(params), len(args))
	}
	subst := make(map[string]domain.Type, len(params))
	for i, p := range params {
		subst[p] = args[i]
	}
	return subst, nil
}

// substType recursively replaces GenericParamType occurrences with their
// concrete binding. Non-generic types pass through unchanged and shared.
func substType(t domain.Type, subst map[string]domain.Type) domain.Type {
	switch tt := t.(type) {
	case *domain.GenericParamType:
		if concrete, ok := subst[tt.Name]; ok {
			return concrete
		}
		return t
	case *domain.GenericInstanceType:
		args := make([]domain.Type, len(tt.Args))
		for i, a := range tt.Args {
			args[i] = substType(a, subst)
		}
		return &domain.GenericInstanceType{Base: tt.Base, Args: args}
	case *domain.RecordType:
		fields := make([]domain.FieldDef, len(tt.Fields))
		for i, f := range tt.Fields {
			fields[i] = domain.FieldDef{Name: f.Name, Type: substType(f.Type, subst)}
		}
		return &domain.RecordType{Name: tt.Name, Fields: fields, IsCrashable: tt.IsCrashable, StaticMessage: tt.StaticMessage, DynamicMessage: tt.DynamicMessage}
	case *domain.EntityType:
		fields := make([]domain.FieldDef, len(tt.Fields))
		for i, f := range tt.Fields {
			fields[i] = domain.FieldDef{Name: f.Name, Type: substType(f.Type, subst)}
		}
		return &domain.EntityType{Name: tt.Name, Fields: fields}
	case *domain.FunctionType:
		params := make([]domain.Type, len(tt.ParameterTypes))
		for i, p := range tt.ParameterTypes {
			params[i] = substType(p, subst)
		}
		return &domain.FunctionType{ParameterTypes: params, ReturnType: substType(tt.ReturnType, subst), Variadic: tt.Variadic}
	default:
		return t
	}
}

// EnsureRecord mangles base<args>, substitutes the registered template's
// fields and returns the concrete RecordType, registering it with the type
// registry and materializing its LLVM type on first request.
func (m *Monomorphizer) EnsureRecord(base string, args []domain.Type, loc domain.SourceRange) (*domain.RecordType, error) {
	key := substKey(base, args)
	if rt, ok := m.emittedRecords[key]; ok {
		return rt, nil
	}
	tmpl, ok := m.gen.typeRegistry.LookupTemplate(base)
	if !ok || tmpl.Kind != domain.TemplateRecord {
		return nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "no record template named %q", base)
	}
	subst, err := buildSubstitution(tmpl.TypeParams, args)
	if err != nil {
		return nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "%s", err)
	}
	fields := make([]domain.FieldDef, len(tmpl.RecordDecl.Fields))
	for i, f := range tmpl.RecordDecl.Fields {
		fields[i] = domain.FieldDef{Name: f.Name, Type: substType(f.Type, subst)}
	}
	rt := &domain.RecordType{Name: key, Fields: fields, IsCrashable: tmpl.RecordDecl.IsCrashable}
	m.emittedRecords[key] = rt
	_ = m.gen.typeRegistry.RegisterRecord(rt)
	if _, err := m.gen.typeMapper.Map(rt, false); err != nil {
		return nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "%s", err)
	}
	return rt, nil
}

// EnsureEntity mirrors EnsureRecord for heap entity templates.
func (m *Monomorphizer) EnsureEntity(base string, args []domain.Type, loc domain.SourceRange) (*domain.EntityType, error) {
	key := substKey(base, args)
	if et, ok := m.emittedEntities[key]; ok {
		return et, nil
	}
	tmpl, ok := m.gen.typeRegistry.LookupTemplate(base)
	if !ok || tmpl.Kind != domain.TemplateEntity {
		return nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "no entity template named %q", base)
	}
	subst, err := buildSubstitution(tmpl.TypeParams, args)
	if err != nil {
		return nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "%s", err)
	}
	fields := make([]domain.FieldDef, len(tmpl.RecordDecl.Fields))
	for i, f := range tmpl.RecordDecl.Fields {
		fields[i] = domain.FieldDef{Name: f.Name, Type: substType(f.Type, subst)}
	}
	et := &domain.EntityType{Name: key, Fields: fields}
	m.emittedEntities[key] = et
	_ = m.gen.typeRegistry.RegisterEntity(et)
	if _, err := m.gen.typeMapper.Map(et, false); err != nil {
		return nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "%s", err)
	}
	return et, nil
}

// EnsureFunction mangles base<args>, clones the template body substituting
// every GenericParamType-typed annotation, and lowers it as an ordinary
// function the first time it is requested: generate immediately, since a
// generic function's body may itself reference further types to
// instantiate.
func (m *Monomorphizer) EnsureFunction(base string, args []domain.Type, loc domain.SourceRange) (*ir.Func, *domain.FunctionType, error) {
	key := substKey(base, args)
	if f, ok := m.emittedFuncs[key]; ok {
		return f, m.gen.functionSignatures[key], nil
	}
	if m.inFlightFuncs[key] {
		return nil, nil, domain.NewCodeGenError(domain.InternalInvariantViolation, loc, "recursive monomorphization cycle for %s", key).
			WithContext("generic function instantiation")
	}
	tmpl, ok := m.gen.typeRegistry.LookupTemplate(base)
	if !ok || tmpl.Kind != domain.TemplateFunction {
		return nil, nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "no function template named %q", base)
	}
	subst, err := buildSubstitution(tmpl.TypeParams, args)
	if err != nil {
		return nil, nil, domain.NewCodeGenError(domain.TypeResolutionFailed, loc, "%s", err)
	}
	m.inFlightFuncs[key] = true
	defer delete(m.inFlightFuncs, key)

	decl := substFunctionDecl(tmpl.FuncDecl, key, subst)
	llvmFn, sig, err := m.gen.emitFunctionDefinition(decl)
	if err != nil {
		return nil, nil, err
	}
	m.emittedFuncs[key] = llvmFn
	if m.gen.functionSignatures == nil {
		m.gen.functionSignatures = make(map[string]*domain.FunctionType)
	}
	m.gen.functionSignatures[key] = sig
	m.gen.moduleFuncs[key] = llvmFn
	return llvmFn, sig, nil
}

// substFunctionDecl deep-copies decl, substituting GenericParamType
// occurrences in every type annotation it carries (parameters, return type,
// and every expression/pattern Type_ within the body) and renaming it to
// mangled.
func substFunctionDecl(decl *domain.FunctionDecl, mangled string, subst map[string]domain.Type) *domain.FunctionDecl {
	params := make([]domain.Parameter, len(decl.Parameters))
	for i, p := range decl.Parameters {
		params[i] = domain.Parameter{Name: p.Name, Type: substType(p.Type, subst)}
	}
	var recv *domain.Parameter
	if decl.Receiver != nil {
		recv = &domain.Parameter{Name: decl.Receiver.Name, Type: substType(decl.Receiver.Type, subst)}
	}
	return &domain.FunctionDecl{
		BaseNode:          decl.BaseNode,
		Name:              mangled,
		Receiver:          recv,
		Parameters:        params,
		ReturnType:        substType(decl.ReturnType, subst),
		Body:              substBlockStmt(decl.Body, subst),
		CallingConvention: decl.CallingConvention,
		IsStatic:          decl.IsStatic,
	}
}

func substBlockStmt(b *domain.BlockStmt, subst map[string]domain.Type) *domain.BlockStmt {
	if b == nil {
		return nil
	}
	stmts := make([]domain.Statement, len(b.Statements))
	for i, s := range b.Statements {
		stmts[i] = substStmt(s, subst)
	}
	return &domain.BlockStmt{BaseNode: b.BaseNode, Statements: stmts}
}

func substStmt(s domain.Statement, subst map[string]domain.Type) domain.Statement {
	switch st := s.(type) {
	case *domain.ExprStmt:
		return &domain.ExprStmt{BaseNode: st.BaseNode, Expression: substExpr(st.Expression, subst)}
	case *domain.VarDeclStmt:
		var typ domain.Type
		if st.Type_ != nil {
			typ = substType(st.Type_, subst)
		}
		return &domain.VarDeclStmt{BaseNode: st.BaseNode, Name: st.Name, Type_: typ, Initializer: substExprOpt(st.Initializer, subst)}
	case *domain.AssignStmt:
		return &domain.AssignStmt{BaseNode: st.BaseNode, Target: substExpr(st.Target, subst), Value: substExpr(st.Value, subst)}
	case *domain.IfStmt:
		var elseStmt domain.Statement
		if st.ElseStmt != nil {
			elseStmt = substStmt(st.ElseStmt, subst)
		}
		return &domain.IfStmt{BaseNode: st.BaseNode, Condition: substExpr(st.Condition, subst), ThenStmt: substStmt(st.ThenStmt, subst), ElseStmt: elseStmt}
	case *domain.WhileStmt:
		return &domain.WhileStmt{BaseNode: st.BaseNode, Condition: substExpr(st.Condition, subst), Body: substStmt(st.Body, subst)}
	case *domain.ForStmt:
		var init, update domain.Statement
		var cond domain.Expression
		if st.Init != nil {
			init = substStmt(st.Init, subst)
		}
		if st.Update != nil {
			update = substStmt(st.Update, subst)
		}
		if st.Condition != nil {
			cond = substExpr(st.Condition, subst)
		}
		return &domain.ForStmt{BaseNode: st.BaseNode, Init: init, Condition: cond, Update: update, Body: substStmt(st.Body, subst)}
	case *domain.ReturnStmt:
		return &domain.ReturnStmt{BaseNode: st.BaseNode, Value: substExprOpt(st.Value, subst)}
	case *domain.BlockStmt:
		return substBlockStmt(st, subst)
	case *domain.ThrowStmt:
		return &domain.ThrowStmt{BaseNode: st.BaseNode, Error: substExpr(st.Error, subst)}
	case *domain.AbsentStmt:
		return st
	case *domain.PassStmt:
		return st
	case *domain.ReleaseStmt:
		return &domain.ReleaseStmt{BaseNode: st.BaseNode, Target: substExpr(st.Target, subst)}
	case *domain.WhenStmt:
		clauses := make([]domain.WhenStmtClause, len(st.Clauses))
		for i, c := range st.Clauses {
			clauses[i] = domain.WhenStmtClause{Guard: substExprOpt(c.Guard, subst), Pattern: substPattern(c.Pattern, subst), Body: substStmt(c.Body, subst)}
		}
		return &domain.WhenStmt{BaseNode: st.BaseNode, Subject: substExprOpt(st.Subject, subst), IsSubject: st.IsSubject, Clauses: clauses}
	default:
		return s
	}
}

func substExprOpt(e domain.Expression, subst map[string]domain.Type) domain.Expression {
	if e == nil {
		return nil
	}
	return substExpr(e, subst)
}

func substPattern(p domain.Pattern, subst map[string]domain.Type) domain.Pattern {
	switch pp := p.(type) {
	case *domain.LiteralPattern:
		return &domain.LiteralPattern{Value: substExpr(pp.Value, subst)}
	case *domain.IdentifierPattern:
		return pp
	case *domain.WildcardPattern:
		return pp
	default:
		return p
	}
}

func substExpr(e domain.Expression, subst map[string]domain.Type) domain.Expression {
	if e == nil {
		return nil
	}
	var typ domain.Type
	if e.GetType() != nil {
		typ = substType(e.GetType(), subst)
	}
	switch ex := e.(type) {
	case *domain.LiteralExpr:
		return &domain.LiteralExpr{BaseNode: ex.BaseNode, Value: ex.Value, Type_: typ}
	case *domain.IdentifierExpr:
		return &domain.IdentifierExpr{BaseNode: ex.BaseNode, Name: ex.Name, Type_: typ}
	case *domain.BinaryExpr:
		return &domain.BinaryExpr{BaseNode: ex.BaseNode, Left: substExpr(ex.Left, subst), Operator: ex.Operator, Right: substExpr(ex.Right, subst), Overflow: ex.Overflow, Type_: typ}
	case *domain.UnaryExpr:
		return &domain.UnaryExpr{BaseNode: ex.BaseNode, Operator: ex.Operator, Operand: substExpr(ex.Operand, subst), Type_: typ}
	case *domain.ChainCompareExpr:
		operands := make([]domain.Expression, len(ex.Operands))
		for i, o := range ex.Operands {
			operands[i] = substExpr(o, subst)
		}
		return &domain.ChainCompareExpr{BaseNode: ex.BaseNode, Operands: operands, Ops: ex.Ops, Type_: typ}
	case *domain.CallExpr:
		args := make([]domain.Expression, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = substExpr(a, subst)
		}
		typeArgs := make([]domain.Type, len(ex.ExplicitTypeArgs))
		for i, a := range ex.ExplicitTypeArgs {
			typeArgs[i] = substType(a, subst)
		}
		return &domain.CallExpr{BaseNode: ex.BaseNode, Function: substExpr(ex.Function, subst), Args: args, ArgNames: ex.ArgNames, ExplicitTypeArgs: typeArgs, Type_: typ}
	case *domain.IndexExpr:
		return &domain.IndexExpr{BaseNode: ex.BaseNode, Object: substExpr(ex.Object, subst), Index: substExpr(ex.Index, subst), Type_: typ}
	case *domain.MemberExpr:
		return &domain.MemberExpr{BaseNode: ex.BaseNode, Object: substExpr(ex.Object, subst), Member: ex.Member, Type_: typ}
	case *domain.RangeExpr:
		return &domain.RangeExpr{BaseNode: ex.BaseNode, Start: substExpr(ex.Start, subst), End: substExpr(ex.End, subst), Inclusive: ex.Inclusive, Type_: typ}
	case *domain.CondExpr:
		return &domain.CondExpr{BaseNode: ex.BaseNode, Condition: substExpr(ex.Condition, subst), Then: substExpr(ex.Then, subst), Else: substExpr(ex.Else, subst), Type_: typ}
	case *domain.CoalesceExpr:
		return &domain.CoalesceExpr{BaseNode: ex.BaseNode, Left: substExpr(ex.Left, subst), Right: substExpr(ex.Right, subst), Type_: typ}
	case *domain.WhenExpr:
		clauses := make([]domain.WhenExprClause, len(ex.Clauses))
		for i, c := range ex.Clauses {
			clauses[i] = domain.WhenExprClause{Guard: substExprOpt(c.Guard, subst), Pattern: substPattern(c.Pattern, subst), Body: substExpr(c.Body, subst)}
		}
		return &domain.WhenExpr{BaseNode: ex.BaseNode, Subject: substExprOpt(ex.Subject, subst), IsSubject: ex.IsSubject, Clauses: clauses, Type_: typ}
	default:
		return e
	}
}
