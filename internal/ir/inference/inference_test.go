package inference

import (
	"testing"

	"gravix/internal/core"
	"gravix/internal/ir"
)

func buildPersonNameSchema(t *testing.T) (*core.Manager, *core.Type, *core.Type, *core.Type) {
	t.Helper()
	schema := core.NewManager(nil)
	person, err := schema.CreateEntityType("person", nil)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	company, err := schema.CreateEntityType("company", nil)
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	name, err := schema.CreateAttributeType("name", core.ValueType{Kind: core.ValueString}, nil)
	if err != nil {
		t.Fatalf("create name: %v", err)
	}
	if err := schema.AddOwns(person, name, core.Unordered, nil); err != nil {
		t.Fatalf("add owns: %v", err)
	}
	return schema, person, company, name
}

func TestPropagateHasRestrictsOwnerAndAttribute(t *testing.T) {
	schema, person, company, name := buildPersonNameSchema(t)
	_ = company

	b := ir.NewBlock(nil)
	owner := b.Resolve("owner")
	attr := b.Resolve("attr")
	b.AddConstraint(ir.Has{Owner: owner, Attribute: attr})

	eng := NewEngine(schema)
	ann, err := eng.InferBlock(b, nil)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}

	ownerSet := ann[owner]
	if ownerSet.Len() != 1 || !ownerSet.Contains(person.ID) {
		t.Fatalf("expected owner to resolve to exactly {person}, got %v", ownerSet.Sorted())
	}
	attrSet := ann[attr]
	if attrSet.Len() != 1 || !attrSet.Contains(name.ID) {
		t.Fatalf("expected attr to resolve to exactly {name}, got %v", attrSet.Sorted())
	}
}

func TestInferBlockErrorsOnEmptyIntersection(t *testing.T) {
	schema, _, company, name := buildPersonNameSchema(t)

	b := ir.NewBlock(nil)
	owner := b.Resolve("owner")
	attr := b.Resolve("attr")
	b.AddConstraint(ir.Label{Var: owner, Label: "company"})
	b.AddConstraint(ir.Label{Var: attr, Label: "name"})
	b.AddConstraint(ir.Has{Owner: owner, Attribute: attr})

	eng := NewEngine(schema)
	_, err := eng.InferBlock(b, nil)
	if err == nil {
		t.Fatalf("expected an error: company does not own name")
	}
	_ = company
	_ = name
}

func TestTabledFunctionsMarksDirectSelfLoop(t *testing.T) {
	idx := ir.NewFunctionIndex()
	must(t, idx.RegisterSignature(ir.FunctionSignature{Name: "f"}))

	body := ir.NewBlock(nil)
	arg := body.Resolve("x")
	out := body.Resolve("y")
	body.AddConstraint(ir.FunctionCallBinding{Function: "f", Args: []*ir.Variable{arg}, Assigned: []*ir.Variable{out}})
	must(t, idx.SetBody(&ir.FunctionDef{Signature: ir.FunctionSignature{Name: "f"}, Pipeline: []*ir.Block{body}}))

	tabled := TabledFunctions(idx)
	if !tabled["f"] {
		t.Fatalf("expected f to be tabled due to a direct self-loop")
	}
}

func TestTabledFunctionsMarksMutualRecursion(t *testing.T) {
	idx := ir.NewFunctionIndex()
	must(t, idx.RegisterSignature(ir.FunctionSignature{Name: "a"}))
	must(t, idx.RegisterSignature(ir.FunctionSignature{Name: "b"}))

	bodyA := ir.NewBlock(nil)
	bodyA.AddConstraint(ir.FunctionCallBinding{Function: "b"})
	must(t, idx.SetBody(&ir.FunctionDef{Signature: ir.FunctionSignature{Name: "a"}, Pipeline: []*ir.Block{bodyA}}))

	bodyB := ir.NewBlock(nil)
	bodyB.AddConstraint(ir.FunctionCallBinding{Function: "a"})
	must(t, idx.SetBody(&ir.FunctionDef{Signature: ir.FunctionSignature{Name: "b"}, Pipeline: []*ir.Block{bodyB}}))

	tabled := TabledFunctions(idx)
	if !tabled["a"] || !tabled["b"] {
		t.Fatalf("expected both mutually recursive functions tabled, got %v", tabled)
	}
}

func TestTabledFunctionsLeavesAcyclicUntabled(t *testing.T) {
	idx := ir.NewFunctionIndex()
	must(t, idx.RegisterSignature(ir.FunctionSignature{Name: "top"}))
	must(t, idx.RegisterSignature(ir.FunctionSignature{Name: "leaf"}))

	body := ir.NewBlock(nil)
	body.AddConstraint(ir.FunctionCallBinding{Function: "leaf"})
	must(t, idx.SetBody(&ir.FunctionDef{Signature: ir.FunctionSignature{Name: "top"}, Pipeline: []*ir.Block{body}}))
	must(t, idx.SetBody(&ir.FunctionDef{Signature: ir.FunctionSignature{Name: "leaf"}}))

	tabled := TabledFunctions(idx)
	if tabled["top"] || tabled["leaf"] {
		t.Fatalf("expected no tabled functions in an acyclic call graph, got %v", tabled)
	}
}

func TestResolveExpressionValueTypeArithmetic(t *testing.T) {
	b := ir.NewBlock(nil)
	x := b.Resolve("x")
	y := b.Resolve("y")
	x.Category = ir.CategoryValue
	y.Category = ir.CategoryValue

	resolved := map[*ir.Variable]core.ValueKind{x: core.ValueInteger, y: core.ValueInteger}
	expr := ir.Node(ir.OpAdd, "", ir.Leaf(x, nil), ir.Leaf(y, nil))

	kind, err := ResolveExpressionValueType(expr, nil, resolved)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if kind != core.ValueInteger {
		t.Fatalf("expected integer result, got %s", kind)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
