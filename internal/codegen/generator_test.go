package codegen

import (
	"io"
	"strings"
	"testing"

	"github.com/sokoide/corelang/internal/domain"
	"github.com/sokoide/corelang/internal/infrastructure"
)

func compileProgram(t *testing.T, prog *domain.Program) (string, domain.ErrorReporter) {
	t.Helper()
	reporter := infrastructure.NewConsoleErrorReporter(io.Discard)
	input := domain.CompileInput{
		Program:  prog,
		Language: "core",
		Mode:     "release",
		Target:   domain.UnixTargetInfo{},
		Options:  domain.CompilationOptions{},
	}
	ir, err := NewGenerator(input, reporter).Compile()
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	return ir, reporter
}

func intLit(v int64) *domain.LiteralExpr {
	return &domain.LiteralExpr{Value: v, Type_: domain.NewSignedInt(32)}
}

func ident(name string) *domain.IdentifierExpr {
	return &domain.IdentifierExpr{Name: name}
}

func mainReturning(body []domain.Statement) *domain.Program {
	fn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body:       &domain.BlockStmt{Statements: body},
	}
	return &domain.Program{Declarations: []domain.Declaration{fn}}
}

func TestGeneratorEmptyProgramEmitsModuleHeader(t *testing.T) {
	ir, _ := compileProgram(t, &domain.Program{})
	if !strings.Contains(ir, "target triple") {
		t.Errorf("expected a target triple, got: %s", ir)
	}
	if !strings.Contains(ir, `declare i32 @printf`) {
		t.Errorf("expected printf to be declared, got: %s", ir)
	}
}

func TestGeneratorVarDeclAndArithmetic(t *testing.T) {
	body := []domain.Statement{
		&domain.VarDeclStmt{
			Name: "x",
			Initializer: &domain.BinaryExpr{
				Left: intLit(2), Operator: domain.Add, Right: intLit(3),
				Type_: domain.NewSignedInt(32),
			},
		},
		&domain.ReturnStmt{Value: ident("x")},
	}
	ir, reporter := compileProgram(t, mainReturning(body))
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "add i32") {
		t.Errorf("expected a raw i32 add instruction, got: %s", ir)
	}
	if !strings.Contains(ir, "@main") {
		t.Errorf("expected a main definition, got: %s", ir)
	}
}

func TestGeneratorIfStmtBranches(t *testing.T) {
	body := []domain.Statement{
		&domain.IfStmt{
			Condition: &domain.BinaryExpr{Left: intLit(1), Operator: domain.Lt, Right: intLit(2), Type_: domain.NewBool()},
			ThenStmt:  &domain.ReturnStmt{Value: intLit(1)},
			ElseStmt:  &domain.ReturnStmt{Value: intLit(0)},
		},
	}
	ir, reporter := compileProgram(t, mainReturning(body))
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "br i1") {
		t.Errorf("expected a conditional branch, got: %s", ir)
	}
	if strings.Count(ir, "ret ") < 2 {
		t.Errorf("expected both branches to return, got: %s", ir)
	}
}

func TestGeneratorWhileLoop(t *testing.T) {
	body := []domain.Statement{
		&domain.VarDeclStmt{Name: "i", Initializer: intLit(0)},
		&domain.WhileStmt{
			Condition: &domain.BinaryExpr{Left: ident("i"), Operator: domain.Lt, Right: intLit(10), Type_: domain.NewBool()},
			Body: &domain.BlockStmt{Statements: []domain.Statement{
				&domain.AssignStmt{
					Target: ident("i"),
					Value:  &domain.BinaryExpr{Left: ident("i"), Operator: domain.Add, Right: intLit(1), Type_: domain.NewSignedInt(32)},
				},
			}},
		},
		&domain.ReturnStmt{Value: ident("i")},
	}
	ir, reporter := compileProgram(t, mainReturning(body))
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "br label") {
		t.Errorf("expected unconditional loop branches, got: %s", ir)
	}
}

func TestGeneratorMissingReturnIsInvariantViolation(t *testing.T) {
	reporter := infrastructure.NewConsoleErrorReporter(io.Discard)
	prog := mainReturning([]domain.Statement{
		&domain.ExprStmt{Expression: intLit(0)},
	})
	input := domain.CompileInput{Program: prog, Target: domain.UnixTargetInfo{}}
	if _, err := NewGenerator(input, reporter).Compile(); err == nil {
		t.Fatal("expected a fall-off-the-end error for a missing return")
	}
	if !reporter.HasErrors() {
		t.Fatal("expected the error reporter to record the invariant violation")
	}
	errs := reporter.GetErrors()
	if errs[0].Kind != domain.InternalInvariantViolation {
		t.Errorf("expected InternalInvariantViolation, got %v", errs[0].Kind)
	}
}

func TestGeneratorDirectFunctionCall(t *testing.T) {
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.ReturnStmt{Value: &domain.CallExpr{
				Function: ident("add"),
				Args:     []domain.Expression{intLit(1), intLit(2)},
			}},
		}},
	}
	addFn := &domain.FunctionDecl{
		Name:       "add",
		ReturnType: domain.NewSignedInt(32),
		Parameters: []domain.Parameter{{Name: "a", Type: domain.NewSignedInt(32)}, {Name: "b", Type: domain.NewSignedInt(32)}},
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.ReturnStmt{Value: &domain.BinaryExpr{Left: ident("a"), Operator: domain.Add, Right: ident("b"), Type_: domain.NewSignedInt(32)}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{mainFn, addFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "call") {
		t.Errorf("expected a call instruction, got: %s", ir)
	}
	if !strings.Contains(ir, "@add") {
		t.Errorf("expected add to be defined, got: %s", ir)
	}
}

func TestGeneratorGlobalConstDecl(t *testing.T) {
	prog := &domain.Program{Declarations: []domain.Declaration{
		&domain.GlobalConstDecl{Name: "kAnswer", Initializer: intLit(42)},
	}}
	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "kAnswer") {
		t.Errorf("expected the global constant to be emitted, got: %s", ir)
	}
	if strings.Contains(ir, "__const_init_kAnswer") {
		t.Errorf("scratch initializer function should have been dropped, got: %s", ir)
	}
}
