package codegen

import (
	"strings"
	"testing"

	"github.com/sokoide/corelang/internal/domain"
)

func TestGeneratorRecordConstructorInsertsFieldsInOrder(t *testing.T) {
	// record Point { x: s32, y: s32 }
	// func main(): s32 { let p = Point(1, 2); return p.x; }
	point := &domain.StructDecl{
		Name:   "Point",
		Fields: []domain.StructField{{Name: "x", Type: domain.NewSignedInt(32)}, {Name: "y", Type: domain.NewSignedInt(32)}},
	}
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.VarDeclStmt{Name: "p", Initializer: &domain.CallExpr{
				Function: ident("Point"),
				Args:     []domain.Expression{intLit(1), intLit(2)},
			}},
			&domain.ReturnStmt{Value: &domain.MemberExpr{Object: ident("p"), Member: "x"}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{point, mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "insertvalue") {
		t.Errorf("expected the record literal to lower to insertvalue, got: %s", ir)
	}
	if !strings.Contains(ir, "getelementptr %Point, %Point*") {
		t.Errorf("expected field access to lower to getelementptr, got: %s", ir)
	}
}

func TestGeneratorEntityConstructorHeapAllocates(t *testing.T) {
	// entity Counter { n: s32 }
	counter := &domain.StructDecl{
		Name:     "Counter",
		IsEntity: true,
		Fields:   []domain.StructField{{Name: "n", Type: domain.NewSignedInt(32)}},
	}
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.VarDeclStmt{Name: "c", Initializer: &domain.CallExpr{
				Function: ident("Counter"),
				Args:     []domain.Expression{intLit(0)},
			}},
			&domain.ReturnStmt{Value: &domain.MemberExpr{Object: ident("c"), Member: "n"}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{counter, mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "call i8* @heap_alloc") {
		t.Errorf("expected the entity constructor to call heap_alloc, got: %s", ir)
	}
	if !strings.Contains(ir, "getelementptr") {
		t.Errorf("expected field stores to use getelementptr, got: %s", ir)
	}
}

func TestGeneratorPrimitiveCastNarrows(t *testing.T) {
	// func main(): s32 { let x = 9000000000; return s32(x); }
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.VarDeclStmt{Name: "x", Type_: domain.NewSignedInt(64), Initializer: &domain.LiteralExpr{Value: int64(9000000000), Type_: domain.NewSignedInt(64)}},
			&domain.ReturnStmt{Value: &domain.CallExpr{Function: ident("s32"), Args: []domain.Expression{ident("x")}}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "trunc") {
		t.Errorf("expected a narrowing trunc instruction, got: %s", ir)
	}
}

func TestGeneratorVerifyIntrinsicEmitsTrapPath(t *testing.T) {
	// func main(): s32 { verify!(1 < 2, "unreachable"); return 0; }
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.ExprStmt{Expression: &domain.CallExpr{
				Function: ident("verify!"),
				Args: []domain.Expression{
					&domain.BinaryExpr{Left: intLit(1), Operator: domain.Lt, Right: intLit(2), Type_: domain.NewBool()},
					&domain.LiteralExpr{Value: "unreachable", Type_: &domain.StringType{}},
				},
			}},
			&domain.ReturnStmt{Value: intLit(0)},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "call void @corelang_crash") {
		t.Errorf("expected verify! to wire into the crash entry point, got: %s", ir)
	}
	if !strings.Contains(ir, "br i1") {
		t.Errorf("expected verify! to branch on its condition, got: %s", ir)
	}
}

func TestGeneratorBreachIntrinsicIsUnreachable(t *testing.T) {
	// func main(): s32 { breach!("no"); }
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.ExprStmt{Expression: &domain.CallExpr{
				Function: ident("breach!"),
				Args:     []domain.Expression{&domain.LiteralExpr{Value: "no", Type_: &domain.StringType{}}},
			}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "unreachable") {
		t.Errorf("expected breach! to terminate the block with unreachable, got: %s", ir)
	}
}

func TestGeneratorInstanceMethodCallPassesReceiverPointer(t *testing.T) {
	// entity Counter { n: s32 }
	// func (c: Counter) get(): s32 { return c.n; }
	// func main(): s32 { let c = Counter(7); return c.get(); }
	counter := &domain.StructDecl{
		Name:     "Counter",
		IsEntity: true,
		Fields:   []domain.StructField{{Name: "n", Type: domain.NewSignedInt(32)}},
	}
	getMethod := &domain.FunctionDecl{
		Name:       "get",
		Receiver:   &domain.Parameter{Name: "c", Type: &domain.EntityType{Name: "Counter", Fields: []domain.FieldDef{{Name: "n", Type: domain.NewSignedInt(32)}}}},
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.ReturnStmt{Value: &domain.MemberExpr{Object: ident("c"), Member: "n"}},
		}},
	}
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.VarDeclStmt{Name: "c", Initializer: &domain.CallExpr{Function: ident("Counter"), Args: []domain.Expression{intLit(7)}}},
			&domain.ReturnStmt{Value: &domain.CallExpr{Function: &domain.MemberExpr{Object: ident("c"), Member: "get"}}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{counter, getMethod, mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "@Counter.get") {
		t.Errorf("expected a qualified Counter.get definition, got: %s", ir)
	}
}

func TestGeneratorMultiFieldRecordReceiverIsPassedByPointer(t *testing.T) {
	// record Point { x: s32, y: s32 }
	// func (p: Point) sum(): s32 { return p.x + p.y; }
	// func main(): s32 { let p = Point(1, 2); return p.sum(); }
	pointRecordType := &domain.RecordType{
		Name:   "Point",
		Fields: []domain.FieldDef{{Name: "x", Type: domain.NewSignedInt(32)}, {Name: "y", Type: domain.NewSignedInt(32)}},
	}
	point := &domain.StructDecl{
		Name:   "Point",
		Fields: []domain.StructField{{Name: "x", Type: domain.NewSignedInt(32)}, {Name: "y", Type: domain.NewSignedInt(32)}},
	}
	sumMethod := &domain.FunctionDecl{
		Name:       "sum",
		Receiver:   &domain.Parameter{Name: "p", Type: pointRecordType},
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.ReturnStmt{Value: &domain.BinaryExpr{
				Left:     &domain.MemberExpr{Object: ident("p"), Member: "x"},
				Operator: domain.Add,
				Right:    &domain.MemberExpr{Object: ident("p"), Member: "y"},
			}},
		}},
	}
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.VarDeclStmt{Name: "p", Initializer: &domain.CallExpr{
				Function: ident("Point"),
				Args:     []domain.Expression{intLit(1), intLit(2)},
			}},
			&domain.ReturnStmt{Value: &domain.CallExpr{Function: &domain.MemberExpr{Object: ident("p"), Member: "sum"}}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{point, sumMethod, mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "@Point.sum(%Point*") {
		t.Errorf("expected Point.sum's own signature to declare a pointer receiver, got: %s", ir)
	}
	if !strings.Contains(ir, "call %s32 @Point.sum(%Point* ") {
		t.Errorf("expected a call site passing a pointer receiver matching the callee signature, got: %s", ir)
	}
}
