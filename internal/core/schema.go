package core

import (
	"fmt"
	"sort"
	"sync"
)

// InstanceCounter is the narrow view the schema manager needs onto live
// instance counts, so it can refuse to delete a type that still has
// instances without importing the thing manager (which itself imports
// core). Implemented by internal/thing.Manager.
type InstanceCounter interface {
	InstanceCount(id TypeID) uint64
}

// Manager owns the schema's type graph: creation, lookup, and mutation of
// types, capabilities, and annotations, plus the label index used to
// resolve names to type handles. All mutating methods run full validation
// before taking effect.
type Manager struct {
	mu sync.RWMutex

	nextID TypeID

	// byLabel resolves non-role labels, which are globally unique, and role
	// labels, which are keyed "relation-label:role-label" since roles are
	// scoped to their relation.
	byLabel map[string]*Type
	byID    map[TypeID]*Type

	roots map[Kind]*Type

	instances InstanceCounter
}

// NewManager creates a schema manager seeded with the four kind roots
// (entity, relation, attribute, role) every declared type's supertype chain
// terminates in.
func NewManager(instances InstanceCounter) *Manager {
	m := &Manager{
		byLabel:   make(map[string]*Type),
		byID:      make(map[TypeID]*Type),
		roots:     make(map[Kind]*Type),
		instances: instances,
	}
	for _, k := range []Kind{KindEntity, KindRelation, KindAttribute, KindRole} {
		root := &Type{ID: m.allocID(), Kind: k, Label: "$" + k.String() + "-root"}
		m.roots[k] = root
		m.byID[root.ID] = root
	}
	return m
}

func (m *Manager) allocID() TypeID {
	id := m.nextID
	m.nextID++
	return id
}

func roleKey(relationLabel, roleLabel string) string {
	return relationLabel + ":" + roleLabel
}

// GetType resolves a non-role label to its Type, or nil if absent.
func (m *Manager) GetType(label string) *Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byLabel[label]
}

// GetRole resolves a role label scoped to relationLabel (or one of its
// supertypes, since role labels are inherited).
func (m *Manager) GetRole(relationLabel, roleLabel string) *Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel := m.byLabel[relationLabel]
	for rel != nil {
		if r, ok := m.byLabel[roleKey(rel.Label, roleLabel)]; ok {
			return r
		}
		rel = rel.Supertype
	}
	return nil
}

// GetByID resolves a TypeID to its Type, or nil if absent.
func (m *Manager) GetByID(id TypeID) *Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// CreateEntityType declares a new entity type as a direct subtype of
// supertype, or of the entity root when supertype is nil.
func (m *Manager) CreateEntityType(label string, supertype *Type) (*Type, error) {
	return m.createNonRole(KindEntity, label, supertype)
}

// CreateRelationType declares a new relation type.
func (m *Manager) CreateRelationType(label string, supertype *Type) (*Type, error) {
	return m.createNonRole(KindRelation, label, supertype)
}

// CreateAttributeType declares a new attribute type with the given value
// type. Every subtype of an attribute type must share its value type.
func (m *Manager) CreateAttributeType(label string, valueType ValueType, supertype *Type) (*Type, error) {
	if supertype != nil && supertype.ValueType.Kind != ValueNone && supertype.ValueType != valueType {
		return nil, fmt.Errorf("core: attribute type %q must share value type %s with supertype %q",
			label, supertype.ValueType, supertype.Label)
	}
	t, err := m.createNonRole(KindAttribute, label, supertype)
	if err != nil {
		return nil, err
	}
	t.ValueType = valueType
	return t, nil
}

func (m *Manager) createNonRole(kind Kind, label string, supertype *Type) (*Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateNewLabel(m, label); err != nil {
		return nil, err
	}
	if supertype == nil {
		supertype = m.roots[kind]
	} else if supertype.Kind != kind {
		return nil, fmt.Errorf("core: supertype %q has kind %s, expected %s", supertype.Label, supertype.Kind, kind)
	}

	t := &Type{ID: m.allocID(), Kind: kind, Label: label, Supertype: supertype}
	supertype.Subtypes = append(supertype.Subtypes, t)
	m.byLabel[label] = t
	m.byID[t.ID] = t
	return t, nil
}

// CreateRole declares a new role type owned by relation, as a subtype of
// supertypeRole (which must belong to an ancestor relation) or of the role
// root.
func (m *Manager) CreateRole(relation *Type, label string, supertypeRole *Type) (*Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if relation.Kind != KindRelation {
		return nil, fmt.Errorf("core: %q is not a relation type", relation.Label)
	}
	key := roleKey(relation.Label, label)
	if _, exists := m.byLabel[key]; exists {
		return nil, fmt.Errorf("core: role %q already declared on relation %q", label, relation.Label)
	}

	supertype := supertypeRole
	if supertype == nil {
		supertype = m.roots[KindRole]
	}
	t := &Type{ID: m.allocID(), Kind: KindRole, Label: label, Supertype: supertype, Relation: relation}
	supertype.Subtypes = append(supertype.Subtypes, t)
	m.byLabel[key] = t
	m.byID[t.ID] = t
	return t, nil
}

// AddOwns declares that owner may have attributes of attribute, with the
// given ordering and annotations, after validating the annotation
// categories and any cardinality narrowing against an inherited Owns on a
// supertype.
func (m *Manager) AddOwns(owner, attribute *Type, ordering Ordering, annotations []Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := &Owns{Owner: owner, Attribute: attribute, Ordering: ordering, Annotations: annotations}
	if err := validateAnnotationCategories(o, annotations); err != nil {
		return err
	}
	if err := validateCardinalityNarrowing(m, owner, attribute, annotations, inheritedOwnsCardinality); err != nil {
		return err
	}
	owner.Owns = append(owner.Owns, o)
	return nil
}

// AddPlays declares that player may play role.
func (m *Manager) AddPlays(player, role *Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	player.Plays = append(player.Plays, &Plays{Player: player, Role: role})
	return nil
}

// AddRelates declares that relation defines role, with annotations.
func (m *Manager) AddRelates(relation, role *Type, annotations []Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &Relates{Relation: relation, Role: role, Annotations: annotations}
	if err := validateAnnotationCategories(r, annotations); err != nil {
		return err
	}
	if err := validateCardinalityNarrowing(m, relation, role, annotations, inheritedRelatesCardinality); err != nil {
		return err
	}
	relation.Relates = append(relation.Relates, r)
	return nil
}

// DeleteType removes t from the schema. Deletion is rejected when t has
// subtypes or live instances.
func (m *Manager) DeleteType(t *Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(t.Subtypes) > 0 {
		return fmt.Errorf("core: cannot delete type %q: it has %d subtype(s)", t.Label, len(t.Subtypes))
	}
	if m.instances != nil && m.instances.InstanceCount(t.ID) > 0 {
		return fmt.Errorf("core: cannot delete type %q: it has live instances", t.Label)
	}

	if t.Supertype != nil {
		t.Supertype.Subtypes = removeType(t.Supertype.Subtypes, t)
	}
	if t.Kind == KindRole && t.Relation != nil {
		delete(m.byLabel, roleKey(t.Relation.Label, t.Label))
	} else {
		delete(m.byLabel, t.Label)
	}
	delete(m.byID, t.ID)
	return nil
}

func removeType(list []*Type, target *Type) []*Type {
	out := list[:0]
	for _, t := range list {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}

// AllTypes returns every declared type (excluding the kind roots) sorted by
// TypeID, for deterministic iteration (e.g. statistics snapshots).
func (m *Manager) AllTypes() []*Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Type, 0, len(m.byID))
	for _, t := range m.byID {
		if t.Root() {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
