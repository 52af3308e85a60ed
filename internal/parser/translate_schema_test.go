package parser

import (
	"testing"

	"gravix/internal/core"
)

type zeroInstances struct{}

func (zeroInstances) InstanceCount(core.TypeID) uint64 { return 0 }

func mustParseSchema(t *testing.T, src string) *SchemaQuery {
	t.Helper()
	sq, err := ParseSchema(src)
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return sq
}

func TestApplySchemaDefineEntityRelationAttribute(t *testing.T) {
	m := core.NewManager(zeroInstances{})
	sq := mustParseSchema(t, `
		define
			entity person;
			entity student sub person;
			attribute name value string;
			person owns name;
			relation employment;
			employment relates employer;
			employment relates employee;
			person plays employment:employee;
	`)
	if err := ApplySchema(m, sq); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	person := m.GetType("person")
	student := m.GetType("student")
	if person == nil || student == nil {
		t.Fatalf("expected person and student types to exist")
	}
	if !student.IsSubtypeOf(person) {
		t.Fatalf("expected student to be a subtype of person")
	}

	name := m.GetType("name")
	if name == nil || name.ValueType.Kind != core.ValueString {
		t.Fatalf("expected name attribute with value type string, got %+v", name)
	}
	if len(person.Owns) != 1 || person.Owns[0].Attribute != name {
		t.Fatalf("expected person to own name")
	}

	employment := m.GetType("employment")
	employer := m.GetRole("employment", "employer")
	employee := m.GetRole("employment", "employee")
	if employment == nil || employer == nil || employee == nil {
		t.Fatalf("expected employment relation with employer/employee roles")
	}
	if len(person.Plays) != 1 || person.Plays[0].Role != employee {
		t.Fatalf("expected person to play employment:employee")
	}
}

func TestApplySchemaUndefineRemovesCapability(t *testing.T) {
	m := core.NewManager(zeroInstances{})
	if err := ApplySchema(m, mustParseSchema(t, `
		define
			entity person;
			attribute name value string;
			person owns name;
	`)); err != nil {
		t.Fatalf("apply define: %v", err)
	}

	person := m.GetType("person")
	if len(person.Owns) != 1 {
		t.Fatalf("expected person to own name before undefine")
	}

	if err := ApplySchema(m, mustParseSchema(t, `
		undefine
			person owns name;
	`)); err != nil {
		t.Fatalf("apply undefine: %v", err)
	}
	if len(person.Owns) != 0 {
		t.Fatalf("expected person to no longer own name after undefine")
	}
}

func TestApplySchemaRedefineReplacesAnnotations(t *testing.T) {
	m := core.NewManager(zeroInstances{})
	if err := ApplySchema(m, mustParseSchema(t, `
		define
			entity person;
			attribute name value string;
			person owns name @card(0, 5);
	`)); err != nil {
		t.Fatalf("apply define: %v", err)
	}

	person := m.GetType("person")
	if len(person.Owns) != 1 || person.Owns[0].Annotations[0].Cardinality.Max != 5 {
		t.Fatalf("expected initial cardinality max 5, got %+v", person.Owns)
	}

	if err := ApplySchema(m, mustParseSchema(t, `
		redefine
			person owns name @card(0, 2);
	`)); err != nil {
		t.Fatalf("apply redefine: %v", err)
	}
	if len(person.Owns) != 1 {
		t.Fatalf("expected redefine to replace, not append, the owns capability; got %d entries", len(person.Owns))
	}
	if person.Owns[0].Annotations[0].Cardinality.Max != 2 {
		t.Fatalf("expected redefined cardinality max 2, got %d", person.Owns[0].Annotations[0].Cardinality.Max)
	}
}

func TestApplySchemaRejectsUnknownType(t *testing.T) {
	m := core.NewManager(zeroInstances{})
	err := ApplySchema(m, mustParseSchema(t, `
		define
			missing owns name;
	`))
	if err == nil {
		t.Fatalf("expected an error referencing an undefined owner type")
	}
}
