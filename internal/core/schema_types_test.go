package core

import "testing"

type zeroInstances struct{}

func (zeroInstances) InstanceCount(TypeID) uint64 { return 0 }

func TestCreateTypeHierarchyAndLabelUniqueness(t *testing.T) {
	m := NewManager(zeroInstances{})

	person, err := m.CreateEntityType("person", nil)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	student, err := m.CreateEntityType("student", person)
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if !student.IsSubtypeOf(person) {
		t.Fatalf("expected student to be a subtype of person")
	}

	if _, err := m.CreateEntityType("person", nil); err == nil {
		t.Fatalf("expected duplicate label to be rejected")
	}

	if got := m.GetType("student"); got != student {
		t.Fatalf("GetType(student) = %v, want %v", got, student)
	}
}

func TestRoleLabelsScopedByRelation(t *testing.T) {
	m := NewManager(zeroInstances{})
	employment, err := m.CreateRelationType("employment", nil)
	if err != nil {
		t.Fatalf("create employment: %v", err)
	}
	friendship, err := m.CreateRelationType("friendship", nil)
	if err != nil {
		t.Fatalf("create friendship: %v", err)
	}

	if _, err := m.CreateRole(employment, "member", nil); err != nil {
		t.Fatalf("create employment:member: %v", err)
	}
	if _, err := m.CreateRole(friendship, "member", nil); err != nil {
		t.Fatalf("expected role label reuse across relations to be legal: %v", err)
	}

	if m.GetRole("employment", "member") == m.GetRole("friendship", "member") {
		t.Fatalf("expected distinct role types per relation")
	}
}

func TestAttributeSubtypeMustShareValueType(t *testing.T) {
	m := NewManager(zeroInstances{})
	name, err := m.CreateAttributeType("name", ValueType{Kind: ValueString}, nil)
	if err != nil {
		t.Fatalf("create name: %v", err)
	}
	if _, err := m.CreateAttributeType("nickname", ValueType{Kind: ValueInteger}, name); err == nil {
		t.Fatalf("expected value type mismatch to be rejected")
	}
}

func TestDeleteTypeRejectsWithSubtypesOrInstances(t *testing.T) {
	m := NewManager(zeroInstances{})
	person, _ := m.CreateEntityType("person", nil)
	student, _ := m.CreateEntityType("student", person)

	if err := m.DeleteType(person); err == nil {
		t.Fatalf("expected delete to fail while person has a subtype")
	}
	if err := m.DeleteType(student); err != nil {
		t.Fatalf("delete leaf type: %v", err)
	}
	if err := m.DeleteType(person); err != nil {
		t.Fatalf("delete now-leaf type: %v", err)
	}
}

func TestCardinalityNarrowingRejectsWidening(t *testing.T) {
	m := NewManager(zeroInstances{})
	person, _ := m.CreateEntityType("person", nil)
	student, _ := m.CreateEntityType("student", person)
	name, _ := m.CreateAttributeType("name", ValueType{Kind: ValueString}, nil)

	narrow := Annotation{Category: AnnotationCardinality, Cardinality: Cardinality{Min: 1, Max: 1}}
	if err := m.AddOwns(person, name, Unordered, []Annotation{narrow}); err != nil {
		t.Fatalf("add owns on person: %v", err)
	}

	wider := Annotation{Category: AnnotationCardinality, Cardinality: Cardinality{Min: 0, NoMax: true}}
	if err := m.AddOwns(student, name, Unordered, []Annotation{wider}); err == nil {
		t.Fatalf("expected widened cardinality on subtype to be rejected")
	}

	stricter := Annotation{Category: AnnotationCardinality, Cardinality: Cardinality{Min: 1, Max: 1}}
	if err := m.AddOwns(student, name, Unordered, []Annotation{stricter}); err != nil {
		t.Fatalf("expected equally strict cardinality to be accepted: %v", err)
	}
}

func TestAnnotationCategoryIllegalOnCapability(t *testing.T) {
	m := NewManager(zeroInstances{})
	employment, _ := m.CreateRelationType("employment", nil)
	member, _ := m.CreateRole(employment, "member", nil)
	person, _ := m.CreateEntityType("person", nil)

	if err := m.AddPlays(person, member); err != nil {
		t.Fatalf("add plays: %v", err)
	}

	regex := Annotation{Category: AnnotationRegex}
	if err := m.AddRelates(employment, member, []Annotation{regex}); err == nil {
		t.Fatalf("expected regex annotation on relates to be rejected")
	}
}
