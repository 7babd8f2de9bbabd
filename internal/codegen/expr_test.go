package codegen

import (
	"strings"
	"testing"

	"github.com/sokoide/corelang/internal/domain"
)

func s8Lit(v int64) *domain.LiteralExpr {
	return &domain.LiteralExpr{Value: v, Type_: domain.NewSignedInt(8)}
}

func s64Lit(v int64) *domain.LiteralExpr {
	return &domain.LiteralExpr{Value: v, Type_: domain.NewSignedInt(64)}
}

func TestGeneratorChainCompareWidensToWiderOperand(t *testing.T) {
	// func main(): s32 { if (a < b < c) { return 1; } return 0; }
	// a, c: s8; b: s64 — neither narrow operand may be truncated to fit
	// the other; both must widen to s64 before the comparison.
	chain := &domain.ChainCompareExpr{
		Operands: []domain.Expression{s8Lit(1), s64Lit(1000), s8Lit(2)},
		Ops:      []domain.BinaryOperator{domain.Lt, domain.Lt},
		Type_:    domain.NewBool(),
	}
	body := []domain.Statement{
		&domain.IfStmt{
			Condition: chain,
			ThenStmt:  &domain.BlockStmt{Statements: []domain.Statement{&domain.ReturnStmt{Value: intLit(1)}}},
			ElseStmt:  &domain.BlockStmt{Statements: []domain.Statement{&domain.ReturnStmt{Value: intLit(0)}}},
		},
	}
	ir, reporter := compileProgram(t, mainReturning(body))
	if reporter.HasErrors() {
		t.Fatalf("unexpected errors: %v", reporter.GetErrors())
	}
	if !strings.Contains(ir, "sext") {
		t.Errorf("expected the s8 operands to widen (sext) to s64 rather than truncate, got: %s", ir)
	}
	if strings.Contains(ir, "trunc i64") {
		t.Errorf("the s64 operand must not be truncated down to s8, got: %s", ir)
	}
}
