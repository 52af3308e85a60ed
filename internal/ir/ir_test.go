package ir

import "testing"

func TestNestedBlockResolvesParentVariable(t *testing.T) {
	root := NewBlock(nil)
	x := root.Resolve("x")

	child := NewBlock(root)
	xAgain := child.Resolve("x")

	if x != xAgain {
		t.Fatalf("expected nested block to resolve the parent's variable, got a distinct one")
	}
}

func TestSiblingBlocksDeclareDistinctVariables(t *testing.T) {
	root := NewBlock(nil)
	left := NewBlock(root)
	right := NewBlock(root)

	leftX := left.Resolve("x")
	rightX := right.Resolve("x")

	if leftX == rightX {
		t.Fatalf("expected sibling blocks to declare distinct variables for the same name")
	}
}

func TestVariableNarrowRejectsEmptyIntersection(t *testing.T) {
	v := &Variable{Name: "x"}
	if err := v.Narrow(CategoryType, "isa", "seed"); err != nil {
		t.Fatalf("unexpected error narrowing from unset: %v", err)
	}
	if err := v.Narrow(CategoryValue, "value", "isa"); err == nil {
		t.Fatalf("expected an error narrowing type to value")
	}
}

func TestVariableNarrowAllowsThingToAttribute(t *testing.T) {
	v := &Variable{Name: "x"}
	if err := v.Narrow(CategoryThing, "isa", "seed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Narrow(CategoryAttribute, "has", "isa"); err != nil {
		t.Fatalf("expected thing to narrow to attribute, got error: %v", err)
	}
	if v.Category != CategoryAttribute {
		t.Fatalf("expected category attribute after narrowing, got %s", v.Category)
	}
}

func TestDetectCycleRejectsCircularExpressionBinding(t *testing.T) {
	b := NewBlock(nil)
	x := b.Resolve("x")
	y := b.Resolve("y")

	b.AddConstraint(ExpressionBinding{Var: x, Expr: Leaf(y, nil)})
	b.AddConstraint(ExpressionBinding{Var: y, Expr: Leaf(x, nil)})

	if err := DetectCycle(b); err == nil {
		t.Fatalf("expected a cycle error for x <- y <- x")
	}
}

func TestDetectCycleAcceptsAcyclicBindings(t *testing.T) {
	b := NewBlock(nil)
	x := b.Resolve("x")
	y := b.Resolve("y")
	z := b.Resolve("z")

	b.AddConstraint(ExpressionBinding{Var: y, Expr: Leaf(x, nil)})
	b.AddConstraint(ExpressionBinding{Var: z, Expr: Node(OpAdd, "", Leaf(x, nil), Leaf(y, nil))})

	if err := DetectCycle(b); err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
}

func TestFunctionIndexRequiresSignatureBeforeBody(t *testing.T) {
	idx := NewFunctionIndex()
	def := &FunctionDef{Signature: FunctionSignature{Name: "age_of"}}
	if err := idx.SetBody(def); err == nil {
		t.Fatalf("expected an error setting a body with no registered signature")
	}

	if err := idx.RegisterSignature(FunctionSignature{Name: "age_of", Return: ReturnSingle}); err != nil {
		t.Fatalf("register signature: %v", err)
	}
	if err := idx.SetBody(def); err != nil {
		t.Fatalf("set body after registering signature: %v", err)
	}
	if _, ok := idx.Get("age_of"); !ok {
		t.Fatalf("expected age_of to resolve after SetBody")
	}
}

func TestFunctionIndexRejectsDuplicateSignature(t *testing.T) {
	idx := NewFunctionIndex()
	if err := idx.RegisterSignature(FunctionSignature{Name: "f"}); err != nil {
		t.Fatalf("register signature: %v", err)
	}
	if err := idx.RegisterSignature(FunctionSignature{Name: "f"}); err == nil {
		t.Fatalf("expected an error re-registering the same function name")
	}
}

func TestCallGraphFindsDirectCall(t *testing.T) {
	idx := NewFunctionIndex()
	if err := idx.RegisterSignature(FunctionSignature{Name: "caller"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := idx.RegisterSignature(FunctionSignature{Name: "callee"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	body := NewBlock(nil)
	arg := body.Resolve("x")
	result := body.Resolve("y")
	body.AddConstraint(FunctionCallBinding{Function: "callee", Args: []*Variable{arg}, Assigned: []*Variable{result}})

	if err := idx.SetBody(&FunctionDef{Signature: FunctionSignature{Name: "caller"}, Pipeline: []*Block{body}}); err != nil {
		t.Fatalf("set body: %v", err)
	}

	graph := idx.CallGraph()
	callees := graph["caller"]
	if len(callees) != 1 || callees[0] != "callee" {
		t.Fatalf("expected caller -> [callee], got %v", callees)
	}
}
