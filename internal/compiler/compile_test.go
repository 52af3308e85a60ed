package compiler

import (
	"testing"

	"gravix/internal/core"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/planner"
	"gravix/internal/thing"
)

func buildOwnerAttrSchema(t *testing.T) (*core.Manager, *core.Type, *core.Type) {
	t.Helper()
	schema := core.NewManager(nil)
	person, err := schema.CreateEntityType("person", nil)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	name, err := schema.CreateAttributeType("name", core.ValueType{Kind: core.ValueString}, nil)
	if err != nil {
		t.Fatalf("create name: %v", err)
	}
	if err := schema.AddOwns(person, name, core.Unordered, nil); err != nil {
		t.Fatalf("add owns: %v", err)
	}
	return schema, person, name
}

func TestCompileMatchLowersHasToIntersectionStep(t *testing.T) {
	schema, person, name := buildOwnerAttrSchema(t)
	tm := thing.NewManager(schema)

	b := ir.NewBlock(nil)
	owner := b.Resolve("owner")
	attr := b.Resolve("attr")
	b.AddConstraint(ir.Label{Var: owner, Label: "person"})
	b.AddConstraint(ir.Has{Owner: owner, Attribute: attr})

	ann := inference.Annotations{owner: inference.NewTypeSet(person), attr: inference.NewTypeSet(name)}
	model := planner.NewCostModel(tm.Statistics())
	p := planner.NewPlanner(model, nil)
	c := New(p)

	stage := c.CompileMatch(b, ann)
	if len(stage.Steps) != 1 {
		t.Fatalf("expected a single step, got %d", len(stage.Steps))
	}
	is, ok := stage.Steps[0].(*IntersectionStep)
	if !ok {
		t.Fatalf("expected an IntersectionStep, got %T", stage.Steps[0])
	}
	if is.SortVariable != owner && is.SortVariable != attr {
		t.Fatalf("expected sort variable to be one of has's two endpoints, got %v", is.SortVariable)
	}
	if stage.Positions.Width() != 2 {
		t.Fatalf("expected 2 variable positions, got %d", stage.Positions.Width())
	}
}

func TestCompileMatchLowersComparisonToCheckStep(t *testing.T) {
	schema, person, name := buildOwnerAttrSchema(t)
	tm := thing.NewManager(schema)

	b := ir.NewBlock(nil)
	owner := b.Resolve("owner")
	attr := b.Resolve("attr")
	b.AddConstraint(ir.Has{Owner: owner, Attribute: attr})
	b.AddConstraint(ir.Comparison{Left: owner, Right: attr, Op: ir.CompareEQ})

	ann := inference.Annotations{owner: inference.NewTypeSet(person), attr: inference.NewTypeSet(name)}
	model := planner.NewCostModel(tm.Statistics())
	p := planner.NewPlanner(model, nil)
	c := New(p)

	stage := c.CompileMatch(b, ann)
	var sawCheck bool
	for _, s := range stage.Steps {
		if _, ok := s.(*CheckStep); ok {
			sawCheck = true
		}
	}
	if !sawCheck {
		t.Fatalf("expected a CheckStep among %d steps", len(stage.Steps))
	}
}

func TestCompileMatchLowersNegation(t *testing.T) {
	schema, person, name := buildOwnerAttrSchema(t)
	tm := thing.NewManager(schema)

	outer := ir.NewBlock(nil)
	owner := outer.Resolve("owner")
	outer.AddConstraint(ir.Label{Var: owner, Label: "person"})

	inner := ir.NewBlock(outer)
	attr := inner.Resolve("attr")
	inner.AddConstraint(ir.Has{Owner: owner, Attribute: attr})
	outer.AddNested(&ir.Negation{Inner: inner})

	ann := inference.Annotations{owner: inference.NewTypeSet(person), attr: inference.NewTypeSet(name)}
	model := planner.NewCostModel(tm.Statistics())
	p := planner.NewPlanner(model, nil)
	c := New(p)

	stage := c.CompileMatch(outer, ann)
	var neg *NegationStep
	for _, s := range stage.Steps {
		if n, ok := s.(*NegationStep); ok {
			neg = n
		}
	}
	if neg == nil {
		t.Fatalf("expected a NegationStep among %d steps", len(stage.Steps))
	}
	if len(neg.Inner.Steps) != 1 {
		t.Fatalf("expected negation's inner stage to have one step, got %d", len(neg.Inner.Steps))
	}
}

func TestLowerInsertRejectsUnresolvedIsaType(t *testing.T) {
	schema, person, _ := buildOwnerAttrSchema(t)
	_ = person

	b := ir.NewBlock(nil)
	thingVar := b.Resolve("x")
	typeVar := b.Resolve("t")
	b.AddConstraint(ir.Isa{Thing: thingVar, Type: typeVar})

	ann := inference.Annotations{typeVar: inference.NewTypeSet(schema.AllTypes()...)}
	_, err := LowerInsert(b, ann)
	if err == nil {
		t.Fatalf("expected an error: type has more than one candidate")
	}
}

func TestLowerDeleteRejectsRoleTypedVariable(t *testing.T) {
	schema := core.NewManager(nil)
	membership, err := schema.CreateRelationType("membership", nil)
	if err != nil {
		t.Fatalf("create relation: %v", err)
	}
	member, err := schema.CreateRole(membership, "member", nil)
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	b := ir.NewBlock(nil)
	roleVar := b.Resolve("r")
	typeVar := b.Resolve("t")
	b.AddConstraint(ir.Isa{Thing: roleVar, Type: typeVar})

	ann := inference.Annotations{roleVar: inference.NewTypeSet(member), typeVar: inference.NewTypeSet(member)}
	_, err = LowerDelete(b, ann)
	if err == nil {
		t.Fatalf("expected an error: role-typed variables cannot be deleted directly")
	}
}
