package parser

import (
	"testing"

	"gravix/internal/ir"
)

func mustParse(t *testing.T, src string) *Query {
	t.Helper()
	q, err := ParsePipeline(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return q
}

func TestTranslateStagesShareVariableIdentityAcrossStages(t *testing.T) {
	q := mustParse(t, `
		match
			isa $p person;
		select $p;
	`)
	tr := NewTranslator(ir.NewFunctionIndex())
	pipeline, err := tr.TranslateQuery(q)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(pipeline.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(pipeline.Stages))
	}
	matchBlock := pipeline.Stages[0].Block
	if matchBlock.Parent != nil {
		t.Fatalf("expected the first stage's block to have no parent")
	}

	p := matchBlock.Resolve("$p")
	if len(pipeline.Stages[1].SelectVars) != 1 || pipeline.Stages[1].SelectVars[0] != p {
		t.Fatalf("expected select to resolve the same $p declared in match, got a distinct variable")
	}
}

func TestTranslateHasDesugarsConstantAttribute(t *testing.T) {
	q := mustParse(t, `
		match
			isa $p person,
			has $p name "ada";
	`)
	tr := NewTranslator(ir.NewFunctionIndex())
	pipeline, err := tr.TranslateQuery(q)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	b := pipeline.Stages[0].Block

	var has *ir.Has
	var isa *ir.Isa
	var label *ir.Label
	var binding *ir.ExpressionBinding
	for _, c := range b.Constraints {
		switch t := c.(type) {
		case ir.Has:
			h := t
			has = &h
		case ir.Isa:
			i := t
			isa = &i
		case ir.Label:
			l := t
			label = &l
		case ir.ExpressionBinding:
			e := t
			binding = &e
		}
	}
	if has == nil {
		t.Fatalf("expected a Has constraint")
	}
	if binding == nil || binding.Var != has.Attribute {
		t.Fatalf("expected an ExpressionBinding fixing the Has attribute's value")
	}
	if binding.Expr.Constant != "ada" {
		t.Fatalf("expected the binding's constant to be %q, got %v", "ada", binding.Expr.Constant)
	}
	if isa == nil || isa.Thing != has.Attribute {
		t.Fatalf("expected an Isa constraint fixing the Has attribute's schema type")
	}
	if label == nil || label.Label != "name" || label.Var != isa.Type {
		t.Fatalf("expected a Label constraint naming %q on the Isa's type variable", "name")
	}
}

func TestTranslateCompareConstantBindsAnonymousVariable(t *testing.T) {
	q := mustParse(t, `
		match
			isa $p person,
			has $p age $a,
			$a > 18;
	`)
	tr := NewTranslator(ir.NewFunctionIndex())
	pipeline, err := tr.TranslateQuery(q)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	b := pipeline.Stages[0].Block

	var cmp *ir.Comparison
	for _, c := range b.Constraints {
		if t, ok := c.(ir.Comparison); ok {
			cmp = &t
		}
	}
	if cmp == nil {
		t.Fatalf("expected a Comparison constraint")
	}
	if cmp.Op != ir.CompareGT {
		t.Fatalf("expected CompareGT, got %v", cmp.Op)
	}
	if cmp.Left != b.Resolve("$a") {
		t.Fatalf("expected Comparison.Left to be $a")
	}

	var bound bool
	for _, c := range b.Constraints {
		if eb, ok := c.(ir.ExpressionBinding); ok && eb.Var == cmp.Right {
			bound = true
			if eb.Expr.Constant != int64(18) {
				t.Fatalf("expected the bound constant to be 18, got %v", eb.Expr.Constant)
			}
		}
	}
	if !bound {
		t.Fatalf("expected Comparison.Right to be an anonymous variable bound via ExpressionBinding")
	}
}

func TestTranslateAssignArithmeticBecomesExpressionBinding(t *testing.T) {
	q := mustParse(t, `
		match
			isa $p person,
			has $p age $a,
			$doubled = $a * 2;
	`)
	tr := NewTranslator(ir.NewFunctionIndex())
	pipeline, err := tr.TranslateQuery(q)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	b := pipeline.Stages[0].Block

	var binding *ir.ExpressionBinding
	for _, c := range b.Constraints {
		if eb, ok := c.(ir.ExpressionBinding); ok && eb.Var == b.Resolve("$doubled") {
			e := eb
			binding = &e
		}
	}
	if binding == nil {
		t.Fatalf("expected an ExpressionBinding for $doubled")
	}
	if binding.Expr.IsLeaf() || binding.Expr.Op != ir.OpMul {
		t.Fatalf("expected a multiplication node, got %+v", binding.Expr)
	}
}

func TestTranslateAssignStreamCallBecomesFunctionCallBinding(t *testing.T) {
	q := mustParse(t, `
		with fun neighbors($p: thing) -> stream:
			match
				isa $p person;
			return $p;
		match
			isa $p person,
			$q = neighbors($p);
	`)
	tr := NewTranslator(ir.NewFunctionIndex())
	pipeline, err := tr.TranslateQuery(q)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	mainMatch := pipeline.Stages[0].Block

	var fcb *ir.FunctionCallBinding
	for _, c := range mainMatch.Constraints {
		if f, ok := c.(ir.FunctionCallBinding); ok {
			v := f
			fcb = &v
		}
	}
	if fcb == nil {
		t.Fatalf("expected a FunctionCallBinding constraint for the stream-function call")
	}
	if fcb.Function != "neighbors" {
		t.Fatalf("expected call to neighbors, got %q", fcb.Function)
	}
	if len(fcb.Assigned) != 1 || fcb.Assigned[0] != mainMatch.Resolve("$q") {
		t.Fatalf("expected $q to be the assigned variable")
	}
}

func TestTranslateReduceTargetsSameVariableAsSource(t *testing.T) {
	q := mustParse(t, `
		match
			isa $p person,
			has $p age $a;
		reduce sum($a);
	`)
	tr := NewTranslator(ir.NewFunctionIndex())
	pipeline, err := tr.TranslateQuery(q)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	matchBlock := pipeline.Stages[0].Block
	reduceStage := pipeline.Stages[1]
	if len(reduceStage.ReduceReducers) != 1 {
		t.Fatalf("expected 1 reducer, got %d", len(reduceStage.ReduceReducers))
	}
	if reduceStage.ReduceReducers[0].Target != matchBlock.Resolve("$a") {
		t.Fatalf("expected the reducer's target to be the same $a declared in match")
	}
}
