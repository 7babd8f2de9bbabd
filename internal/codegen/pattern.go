package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// buildWhenChain implements the block layout shared by both standalone
// (guard-only) and subject-based `when`: one pre-allocated check
// block and one pre-allocated body block per clause, a trailing "no clause
// matched" trap block (the "final unreachable after end label" safety net
// for a non-exhaustive match), and a shared end block. cond(i) runs with
// g.fn.Block already set to clause i's check block; returning unconditional
// true emits a plain branch to the body (used for wildcard/identifier
// patterns and the guard-less default clause) instead of a conditional one.
func (g *Generator) buildWhenChain(clauseCount int, cond func(i int) (raw value.Value, unconditional bool, err error)) (bodyBlocks []*ir.Block, endBlock *ir.Block, err error) {
	fn := g.fn
	n := clauseCount
	bodyBlocks = make([]*ir.Block, n)
	checkBlocks := make([]*ir.Block, n)
	trapBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("when.nomatch"))
	endBlock = fn.LLVMFunc.NewBlock(fn.NewLabel("when.end"))
	for i := 0; i < n; i++ {
		if i > 0 {
			checkBlocks[i] = fn.LLVMFunc.NewBlock(fn.NewLabel("when.check"))
		}
		bodyBlocks[i] = fn.LLVMFunc.NewBlock(fn.NewLabel("when.body"))
	}
	checkBlocks[0] = fn.Block

	for i := 0; i < n; i++ {
		fn.Block = checkBlocks[i]
		raw, unconditional, cerr := cond(i)
		if cerr != nil {
			return nil, nil, cerr
		}
		var next *ir.Block
		if i+1 < n {
			next = checkBlocks[i+1]
		} else {
			next = trapBlock
		}
		if unconditional {
			fn.Block.NewBr(bodyBlocks[i])
		} else {
			fn.Block.NewCondBr(raw, bodyBlocks[i], next)
		}
	}

	fn.Block = trapBlock
	if err := g.errorLowerer.EmitStaticCrash(domain.SourceRange{}, "NoMatchError", "no when clause matched"); err != nil {
		return nil, nil, err
	}
	trapBlock.NewUnreachable()
	return bodyBlocks, endBlock, nil
}

type whenExit struct {
	val   value.Value
	block *ir.Block
}

// finishWhenExprMerge builds the end-block phi from each clause body's exit
// value, or — when no clause body reaches the end block — marks the end
// unreachable and returns an undef.
func (g *Generator) finishWhenExprMerge(exits []whenExit, resultType domain.Type) error {
	if len(exits) == 0 {
		g.fn.Block.NewUnreachable()
		llvmType, err := g.typeMapper.Map(resultType, false)
		if err != nil {
			return err
		}
		g.currentValue, g.currentType = constant.NewUndef(llvmType), resultType
		return nil
	}
	incomings := make([]*ir.Incoming, len(exits))
	for i, x := range exits {
		incomings[i] = ir.NewIncoming(x.val, x.block)
	}
	phi := g.fn.Block.NewPhi(incomings...)
	g.currentValue, g.currentType = phi, resultType
	return nil
}

// matchLiteralPattern compares the subject against a literal pattern's
// value, coercing width/kind as an ordinary comparison would.
func (g *Generator) matchLiteralPattern(lp *domain.LiteralPattern, subjectVal value.Value, subjectType domain.Type) (value.Value, error) {
	prim, ok := subjectType.(*domain.PrimitiveType)
	if !ok {
		return nil, g.typeError(domain.SourceRange{}, "subject pattern match requires a primitive subject, got %s", subjectType)
	}
	if err := lp.Value.Accept(g); err != nil {
		return nil, err
	}
	litVal, litType := g.currentValue, g.currentType
	block := g.fn.Block
	subjRaw, err := g.rawOf(subjectVal, subjectType, block)
	if err != nil {
		return nil, err
	}
	litPrim, ok := litType.(*domain.PrimitiveType)
	if !ok {
		litPrim = prim
	}
	litRaw, err := g.rawOf(litVal, litType, block)
	if err != nil {
		return nil, err
	}
	litRaw, err = g.coerce(block, litRaw, litPrim, prim)
	if err != nil {
		return nil, err
	}
	return g.emitCompare(domain.Eq, subjRaw, litRaw, prim, block)
}

// bindIdentifierPattern declares the pattern's name over the subject value.
// The engine's per-function symbol table has no block-scope shadowing
// stack, so this binding persists for the rest of the function rather than
// being popped at the clause's end — a deliberate simplification, see
// DESIGN.md.
func (g *Generator) bindIdentifierPattern(ip *domain.IdentifierPattern, subjectVal value.Value, subjectType domain.Type) error {
	llvmType, err := g.typeMapper.Map(subjectType, false)
	if err != nil {
		return err
	}
	block := g.fn.Block
	slot := block.NewAlloca(llvmType)
	slot.SetName(ip.Name + ".addr")
	block.NewStore(subjectVal, slot)
	g.fn.DeclareLocal(ip.Name, slot, subjectType)
	return nil
}

// patternCond evaluates clause i's match condition for a subject-based
// when, covering the three pattern kinds: literal, identifier, wildcard.
func (g *Generator) patternCond(p domain.Pattern, subjectVal value.Value, subjectType domain.Type) (value.Value, bool, error) {
	switch pp := p.(type) {
	case *domain.WildcardPattern, nil:
		return nil, true, nil
	case *domain.IdentifierPattern:
		if err := g.bindIdentifierPattern(pp, subjectVal, subjectType); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	case *domain.LiteralPattern:
		cond, err := g.matchLiteralPattern(pp, subjectVal, subjectType)
		return cond, false, err
	default:
		return nil, false, g.unsupported(domain.SourceRange{}, "unrecognized pattern kind %T", p)
	}
}

func (g *Generator) VisitWhenExpr(e *domain.WhenExpr) error {
	if e.IsSubject {
		return g.lowerSubjectWhenExpr(e)
	}
	return g.lowerGuardWhenExpr(e)
}

func (g *Generator) lowerGuardWhenExpr(e *domain.WhenExpr) error {
	bodyBlocks, endBlock, err := g.buildWhenChain(len(e.Clauses), func(i int) (value.Value, bool, error) {
		clause := e.Clauses[i]
		if clause.Guard == nil {
			return nil, true, nil
		}
		if err := clause.Guard.Accept(g); err != nil {
			return nil, false, err
		}
		raw, err := g.rawOf(g.currentValue, g.currentType, g.fn.Block)
		return raw, false, err
	})
	if err != nil {
		return err
	}

	var exits []whenExit
	for i, clause := range e.Clauses {
		g.fn.Block = bodyBlocks[i]
		if err := clause.Body.Accept(g); err != nil {
			return err
		}
		if !g.fn.Terminated() {
			exitBlock := g.fn.Block
			exitVal := g.currentValue
			exitBlock.NewBr(endBlock)
			exits = append(exits, whenExit{exitVal, exitBlock})
		}
	}

	g.fn.Block = endBlock
	return g.finishWhenExprMerge(exits, e.Type_)
}

func (g *Generator) lowerSubjectWhenExpr(e *domain.WhenExpr) error {
	if err := e.Subject.Accept(g); err != nil {
		return err
	}
	subjectVal, subjectType := g.currentValue, g.currentType

	bodyBlocks, endBlock, err := g.buildWhenChain(len(e.Clauses), func(i int) (value.Value, bool, error) {
		return g.patternCond(e.Clauses[i].Pattern, subjectVal, subjectType)
	})
	if err != nil {
		return err
	}

	var exits []whenExit
	for i, clause := range e.Clauses {
		g.fn.Block = bodyBlocks[i]
		if err := clause.Body.Accept(g); err != nil {
			return err
		}
		if !g.fn.Terminated() {
			exitBlock := g.fn.Block
			exitVal := g.currentValue
			exitBlock.NewBr(endBlock)
			exits = append(exits, whenExit{exitVal, exitBlock})
		}
	}

	g.fn.Block = endBlock
	return g.finishWhenExprMerge(exits, e.Type_)
}

func (g *Generator) VisitWhenStmt(s *domain.WhenStmt) error {
	if s.IsSubject {
		return g.lowerSubjectWhenStmt(s)
	}
	return g.lowerGuardWhenStmt(s)
}

func (g *Generator) lowerGuardWhenStmt(s *domain.WhenStmt) error {
	bodyBlocks, endBlock, err := g.buildWhenChain(len(s.Clauses), func(i int) (value.Value, bool, error) {
		clause := s.Clauses[i]
		if clause.Guard == nil {
			return nil, true, nil
		}
		if err := clause.Guard.Accept(g); err != nil {
			return nil, false, err
		}
		raw, err := g.rawOf(g.currentValue, g.currentType, g.fn.Block)
		return raw, false, err
	})
	if err != nil {
		return err
	}
	reached := false
	for i, clause := range s.Clauses {
		g.fn.Block = bodyBlocks[i]
		if err := clause.Body.Accept(g); err != nil {
			return err
		}
		if !g.fn.Terminated() {
			g.fn.Block.NewBr(endBlock)
			reached = true
		}
	}
	g.fn.Block = endBlock
	if !reached {
		endBlock.NewUnreachable()
	}
	return nil
}

func (g *Generator) lowerSubjectWhenStmt(s *domain.WhenStmt) error {
	if err := s.Subject.Accept(g); err != nil {
		return err
	}
	subjectVal, subjectType := g.currentValue, g.currentType

	bodyBlocks, endBlock, err := g.buildWhenChain(len(s.Clauses), func(i int) (value.Value, bool, error) {
		return g.patternCond(s.Clauses[i].Pattern, subjectVal, subjectType)
	})
	if err != nil {
		return err
	}
	reached := false
	for i, clause := range s.Clauses {
		g.fn.Block = bodyBlocks[i]
		if err := clause.Body.Accept(g); err != nil {
			return err
		}
		if !g.fn.Terminated() {
			g.fn.Block.NewBr(endBlock)
			reached = true
		}
	}
	g.fn.Block = endBlock
	if !reached {
		endBlock.NewUnreachable()
	}
	return nil
}
