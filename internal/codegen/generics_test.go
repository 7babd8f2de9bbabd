package codegen

import (
	"strings"
	"testing"

	"github.com/sokoide/corelang/internal/domain"
)

func TestGeneratorMonomorphizesGenericRecord(t *testing.T) {
	// record Box<T> { value: T }
	// func main(): s32 { let b = Box<s32>(9); return b.value; }
	box := &domain.StructDecl{
		Name:       "Box",
		TypeParams: []string{"T"},
		Fields:     []domain.StructField{{Name: "value", Type: &domain.GenericParamType{Name: "T"}}},
	}
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.VarDeclStmt{Name: "b", Initializer: &domain.CallExpr{
				Function:         ident("Box"),
				Args:             []domain.Expression{intLit(9)},
				ExplicitTypeArgs: []domain.Type{domain.NewSignedInt(32)},
			}},
			&domain.ReturnStmt{Value: &domain.MemberExpr{Object: ident("b"), Member: "value"}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{box, mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "Box_s32") {
		t.Errorf("expected the mangled Box_s32 instantiation, got: %s", ir)
	}
}

func TestGeneratorMonomorphizesGenericFunctionOnce(t *testing.T) {
	// func identity<T>(x: T): T { return x; }
	// func main(): s32 {
	//     let a = identity<s32>(1);
	//     let b = identity<s32>(2);
	//     return a + b;
	// }
	identity := &domain.FunctionDecl{
		Name:       "identity",
		TypeParams: []string{"T"},
		Parameters: []domain.Parameter{{Name: "x", Type: &domain.GenericParamType{Name: "T"}}},
		ReturnType: &domain.GenericParamType{Name: "T"},
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.ReturnStmt{Value: ident("x")},
		}},
	}
	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body: &domain.BlockStmt{Statements: []domain.Statement{
			&domain.VarDeclStmt{Name: "a", Initializer: &domain.CallExpr{
				Function: ident("identity"), Args: []domain.Expression{intLit(1)},
				ExplicitTypeArgs: []domain.Type{domain.NewSignedInt(32)},
			}},
			&domain.VarDeclStmt{Name: "b", Initializer: &domain.CallExpr{
				Function: ident("identity"), Args: []domain.Expression{intLit(2)},
				ExplicitTypeArgs: []domain.Type{domain.NewSignedInt(32)},
			}},
			&domain.ReturnStmt{Value: &domain.BinaryExpr{Left: ident("a"), Operator: domain.Add, Right: ident("b"), Type_: domain.NewSignedInt(32)}},
		}},
	}
	prog := &domain.Program{Declarations: []domain.Declaration{identity, mainFn}}

	ir, reporter := compileProgram(t, prog)
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if strings.Count(ir, "define") != 2 {
		t.Errorf("expected exactly one instantiation of identity plus main, got: %s", ir)
	}
	if !strings.Contains(ir, "identity_s32") {
		t.Errorf("expected the mangled identity_s32 instantiation, got: %s", ir)
	}
}
