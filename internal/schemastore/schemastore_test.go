package schemastore

import (
	"testing"

	"gravix/internal/core"
	"gravix/internal/storage"
)

func buildSchema(t *testing.T) *core.Manager {
	t.Helper()
	m := core.NewManager(nil)
	person, err := m.CreateEntityType("person", nil)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	employee, err := m.CreateEntityType("employee", person)
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	name, err := m.CreateAttributeType("name", core.ValueType{Kind: core.ValueString}, nil)
	if err != nil {
		t.Fatalf("create name: %v", err)
	}
	name.Independent = true
	employment, err := m.CreateRelationType("employment", nil)
	if err != nil {
		t.Fatalf("create employment: %v", err)
	}
	staff, err := m.CreateRole(employment, "staff", nil)
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	card := core.Annotation{Category: core.AnnotationCardinality, Cardinality: core.Cardinality{Min: 0, Max: 1}}
	if err := m.AddOwns(person, name, core.Unordered, []core.Annotation{card}); err != nil {
		t.Fatalf("add owns: %v", err)
	}
	if err := m.AddRelates(employment, staff, nil); err != nil {
		t.Fatalf("add relates: %v", err)
	}
	if err := m.AddPlays(employee, staff); err != nil {
		t.Fatalf("add plays: %v", err)
	}
	return m
}

func TestSaveLoadRoundTripsSchema(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := buildSchema(t)
	snap := store.OpenSchema()
	if err := Save(&snap.WriteSnapshot, m); err != nil {
		t.Fatalf("save schema: %v", err)
	}
	if err := snap.Commit(); err != nil {
		t.Fatalf("commit schema: %v", err)
	}

	restored, found, err := Load(store.OpenRead(), nil)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	if !found {
		t.Fatal("expected a persisted schema to be found")
	}

	person := restored.GetType("person")
	employee := restored.GetType("employee")
	name := restored.GetType("name")
	if person == nil || employee == nil || name == nil {
		t.Fatalf("expected all labels restored, got person=%v employee=%v name=%v", person, employee, name)
	}
	if employee.Supertype != person {
		t.Fatalf("expected employee's supertype restored as person, got %v", employee.Supertype)
	}
	if orig := m.GetType("person"); person.ID != orig.ID {
		t.Fatalf("expected TypeIDs stable across restore, got %d want %d", person.ID, orig.ID)
	}
	if name.ValueType.Kind != core.ValueString || !name.Independent {
		t.Fatalf("expected name's value type and independent flag restored, got %+v", name)
	}

	staff := restored.GetRole("employment", "staff")
	if staff == nil {
		t.Fatal("expected the scoped role label restored")
	}
	if len(employee.Plays) != 1 || employee.Plays[0].Role != staff {
		t.Fatalf("expected employee plays staff restored, got %+v", employee.Plays)
	}

	if len(person.Owns) != 1 {
		t.Fatalf("expected one owns capability on person, got %d", len(person.Owns))
	}
	restoredCard, ok := core.CardinalityOf(person.Owns[0].Annotations)
	if !ok || restoredCard.Max != 1 {
		t.Fatalf("expected the cardinality annotation restored, got %+v ok=%v", restoredCard, ok)
	}
}

func TestLoadReportsAbsentSchema(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	_, found, err := Load(store.OpenRead(), nil)
	if err != nil {
		t.Fatalf("load from empty store: %v", err)
	}
	if found {
		t.Fatal("expected no schema in a fresh store")
	}
}
