package planner

import (
	"testing"

	"gravix/internal/core"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/storage"
	"gravix/internal/thing"
)

func buildSchemaAndStats(t *testing.T) (*core.Manager, *thing.Statistics, *core.Type, *core.Type) {
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
	tm := thing.NewManager(schema)
	return schema, tm.Statistics(), person, name
}

func TestHasInstructionIsCheckWhenBothBound(t *testing.T) {
	_, stats, person, name := buildSchemaAndStats(t)

	b := ir.NewBlock(nil)
	owner := b.Resolve("owner")
	attr := b.Resolve("attr")
	has := ir.Has{Owner: owner, Attribute: attr}

	model := NewCostModel(stats)
	ann := inference.Annotations{owner: inference.NewTypeSet(person), attr: inference.NewTypeSet(name)}
	bound := map[*ir.Variable]bool{owner: true, attr: true}

	cost := model.Estimate(HasInstruction{Has: has, Forward: true}, bound, ann)
	if cost.BranchingFactor != 0 || cost.Total() != 1 {
		t.Fatalf("expected a zero-branching check cost, got %+v", cost)
	}
}

func TestPlanBlockOrdersCheaperDirectionFirst(t *testing.T) {
	schema, _, person, name := buildSchemaAndStats(t)

	tm := thing.NewManager(schema)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	w := store.OpenWrite()

	// Three people, each owning a distinct name: few owners, each with a
	// small fan-out, so the owner-bound forward direction is cheap.
	for i := 0; i < 3; i++ {
		obj, err := tm.CreateEntity(w, person)
		if err != nil {
			t.Fatalf("create entity: %v", err)
		}
		attr, err := tm.PutAttribute(w, name, "name-value")
		if err != nil {
			t.Fatalf("put attribute: %v", err)
		}
		tm.PutHas(w, person.ID, obj, name.ID, attr)
	}

	b := ir.NewBlock(nil)
	owner := b.Resolve("owner")
	attr := b.Resolve("attr")
	b.AddConstraint(ir.Label{Var: owner, Label: "person"})
	b.AddConstraint(ir.Has{Owner: owner, Attribute: attr})

	ann := inference.Annotations{owner: inference.NewTypeSet(person), attr: inference.NewTypeSet(name)}

	model := NewCostModel(tm.Statistics())
	planner := NewPlanner(model, nil)
	bound := map[*ir.Variable]bool{owner: true}
	plan := planner.PlanBlock(b, ann, bound)

	if len(plan.Instructions) != 1 {
		t.Fatalf("expected a single instruction for the has constraint, got %d", len(plan.Instructions))
	}
	has, ok := plan.Instructions[0].(HasInstruction)
	if !ok {
		t.Fatalf("expected a HasInstruction, got %T", plan.Instructions[0])
	}
	if !has.Forward {
		t.Fatalf("expected the forward (owner-bound) direction to be selected")
	}
}

func TestPlanBlockIgnoresNonInstructionConstraints(t *testing.T) {
	_, stats, _, _ := buildSchemaAndStats(t)

	b := ir.NewBlock(nil)
	x := b.Resolve("x")
	y := b.Resolve("y")
	b.AddConstraint(ir.Is{Left: x, Right: y})

	model := NewCostModel(stats)
	planner := NewPlanner(model, nil)
	plan := planner.PlanBlock(b, inference.Annotations{}, nil)

	if len(plan.Instructions) != 0 {
		t.Fatalf("expected no instructions for an Is-only block, got %d", len(plan.Instructions))
	}
}
