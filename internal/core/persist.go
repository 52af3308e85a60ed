package core

import (
	"fmt"
	"regexp"
	"sort"
)

// TypeRecord is the flattened, storage-encodable form of one declared type.
// Kind roots are never persisted; a type whose direct supertype is its kind
// root records HasSupertype=false and is re-parented on the root at restore.
type TypeRecord struct {
	ID           uint16 `msgpack:"id"`
	Kind         uint8  `msgpack:"kind"`
	Label        string `msgpack:"label"`
	Supertype    uint16 `msgpack:"super,omitempty"`
	HasSupertype bool   `msgpack:"has_super,omitempty"`
	ValueKind    uint8  `msgpack:"value_kind,omitempty"`
	StructName   string `msgpack:"struct,omitempty"`
	Relation     uint16 `msgpack:"relation,omitempty"`
	HasRelation  bool   `msgpack:"has_relation,omitempty"`
	Abstract     bool   `msgpack:"abstract,omitempty"`
	Independent  bool   `msgpack:"independent,omitempty"`
}

// AnnotationRecord flattens an Annotation; the regex is stored as its
// pattern source and recompiled at restore.
type AnnotationRecord struct {
	Category uint8    `msgpack:"cat"`
	CardMin  uint64   `msgpack:"min,omitempty"`
	CardMax  uint64   `msgpack:"max,omitempty"`
	NoMax    bool     `msgpack:"nomax,omitempty"`
	Regex    string   `msgpack:"regex,omitempty"`
	RangeMin *string  `msgpack:"rmin,omitempty"`
	RangeMax *string  `msgpack:"rmax,omitempty"`
	Values   []string `msgpack:"values,omitempty"`
}

// OwnsRecord flattens one Owns capability edge.
type OwnsRecord struct {
	Owner       uint16             `msgpack:"owner"`
	Attribute   uint16             `msgpack:"attr"`
	Ordered     bool               `msgpack:"ordered,omitempty"`
	Annotations []AnnotationRecord `msgpack:"anns,omitempty"`
}

// PlaysRecord flattens one Plays capability edge.
type PlaysRecord struct {
	Player uint16 `msgpack:"player"`
	Role   uint16 `msgpack:"role"`
}

// RelatesRecord flattens one Relates capability edge.
type RelatesRecord struct {
	Relation    uint16             `msgpack:"rel"`
	Role        uint16             `msgpack:"role"`
	Annotations []AnnotationRecord `msgpack:"anns,omitempty"`
}

// SchemaRecord is the full flattened schema: every declared type plus every
// capability edge, the unit the schema keyspaces persist and restore.
type SchemaRecord struct {
	Types   []TypeRecord
	Owns    []OwnsRecord
	Plays   []PlaysRecord
	Relates []RelatesRecord
}

// Snapshot flattens the manager's current type graph into a SchemaRecord,
// types ordered by TypeID so persistence is deterministic.
func (m *Manager) Snapshot() SchemaRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rec SchemaRecord
	ids := make([]TypeID, 0, len(m.byID))
	for id, t := range m.byID {
		if t.Root() {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		t := m.byID[id]
		tr := TypeRecord{
			ID:          uint16(t.ID),
			Kind:        uint8(t.Kind),
			Label:       t.Label,
			ValueKind:   uint8(t.ValueType.Kind),
			StructName:  t.ValueType.StructName,
			Abstract:    t.Abstract,
			Independent: t.Independent,
		}
		if t.Supertype != nil && !t.Supertype.Root() {
			tr.Supertype = uint16(t.Supertype.ID)
			tr.HasSupertype = true
		}
		if t.Relation != nil {
			tr.Relation = uint16(t.Relation.ID)
			tr.HasRelation = true
		}
		rec.Types = append(rec.Types, tr)

		for _, o := range t.Owns {
			rec.Owns = append(rec.Owns, OwnsRecord{
				Owner:       uint16(o.Owner.ID),
				Attribute:   uint16(o.Attribute.ID),
				Ordered:     o.Ordering == Ordered,
				Annotations: flattenAnnotations(o.Annotations),
			})
		}
		for _, p := range t.Plays {
			rec.Plays = append(rec.Plays, PlaysRecord{Player: uint16(p.Player.ID), Role: uint16(p.Role.ID)})
		}
		for _, r := range t.Relates {
			rec.Relates = append(rec.Relates, RelatesRecord{
				Relation:    uint16(r.Relation.ID),
				Role:        uint16(r.Role.ID),
				Annotations: flattenAnnotations(r.Annotations),
			})
		}
	}
	return rec
}

func flattenAnnotations(anns []Annotation) []AnnotationRecord {
	out := make([]AnnotationRecord, 0, len(anns))
	for _, a := range anns {
		r := AnnotationRecord{
			Category: uint8(a.Category),
			CardMin:  a.Cardinality.Min,
			CardMax:  a.Cardinality.Max,
			NoMax:    a.Cardinality.NoMax,
			RangeMin: a.RangeMin,
			RangeMax: a.RangeMax,
			Values:   a.Values,
		}
		if a.Regex != nil {
			r.Regex = a.Regex.String()
		}
		out = append(out, r)
	}
	return out
}

func restoreAnnotations(recs []AnnotationRecord) ([]Annotation, error) {
	out := make([]Annotation, 0, len(recs))
	for _, r := range recs {
		a := Annotation{
			Category:    AnnotationCategory(r.Category),
			Cardinality: Cardinality{Min: r.CardMin, Max: r.CardMax, NoMax: r.NoMax},
			RangeMin:    r.RangeMin,
			RangeMax:    r.RangeMax,
			Values:      r.Values,
		}
		if r.Regex != "" {
			re, err := regexp.Compile(r.Regex)
			if err != nil {
				return nil, fmt.Errorf("core: restore annotation regex %q: %w", r.Regex, err)
			}
			a.Regex = re
		}
		out = append(out, a)
	}
	return out, nil
}

// RestoreManager rebuilds a Manager from a persisted SchemaRecord, keeping
// every TypeID stable across the restart. Capability edges are re-attached
// without re-running Add* validation: the record was produced by a manager
// that already validated them.
func RestoreManager(rec SchemaRecord, instances InstanceCounter) (*Manager, error) {
	m := NewManager(instances)

	for _, tr := range rec.Types {
		t := &Type{
			ID:          TypeID(tr.ID),
			Kind:        Kind(tr.Kind),
			Label:       tr.Label,
			ValueType:   ValueType{Kind: ValueKind(tr.ValueKind), StructName: tr.StructName},
			Abstract:    tr.Abstract,
			Independent: tr.Independent,
		}
		if _, taken := m.byID[t.ID]; taken {
			return nil, fmt.Errorf("core: restore: duplicate type id %d", t.ID)
		}
		m.byID[t.ID] = t
		if t.ID >= m.nextID {
			m.nextID = t.ID + 1
		}
	}

	for _, tr := range rec.Types {
		t := m.byID[TypeID(tr.ID)]
		if tr.HasSupertype {
			super := m.byID[TypeID(tr.Supertype)]
			if super == nil {
				return nil, fmt.Errorf("core: restore: type %q references missing supertype %d", t.Label, tr.Supertype)
			}
			t.Supertype = super
		} else {
			t.Supertype = m.roots[t.Kind]
		}
		t.Supertype.Subtypes = append(t.Supertype.Subtypes, t)

		if tr.HasRelation {
			rel := m.byID[TypeID(tr.Relation)]
			if rel == nil {
				return nil, fmt.Errorf("core: restore: role %q references missing relation %d", t.Label, tr.Relation)
			}
			t.Relation = rel
			m.byLabel[roleKey(rel.Label, t.Label)] = t
		} else {
			m.byLabel[t.Label] = t
		}
	}
	// A record set from a healthy manager can't encode a supertype cycle,
	// but a corrupted or hand-edited one can; catch it before the graph is
	// handed to callers that walk Supertype chains unguarded.
	for _, tr := range rec.Types {
		if hasCycle(m.byID[TypeID(tr.ID)]) {
			return nil, fmt.Errorf("core: restore: supertype cycle through type %d", tr.ID)
		}
	}

	for _, o := range rec.Owns {
		owner, attr := m.byID[TypeID(o.Owner)], m.byID[TypeID(o.Attribute)]
		if owner == nil || attr == nil {
			return nil, fmt.Errorf("core: restore: owns edge references missing type (%d, %d)", o.Owner, o.Attribute)
		}
		anns, err := restoreAnnotations(o.Annotations)
		if err != nil {
			return nil, err
		}
		ordering := Unordered
		if o.Ordered {
			ordering = Ordered
		}
		owner.Owns = append(owner.Owns, &Owns{Owner: owner, Attribute: attr, Ordering: ordering, Annotations: anns})
	}
	for _, p := range rec.Plays {
		player, role := m.byID[TypeID(p.Player)], m.byID[TypeID(p.Role)]
		if player == nil || role == nil {
			return nil, fmt.Errorf("core: restore: plays edge references missing type (%d, %d)", p.Player, p.Role)
		}
		player.Plays = append(player.Plays, &Plays{Player: player, Role: role})
	}
	for _, r := range rec.Relates {
		rel, role := m.byID[TypeID(r.Relation)], m.byID[TypeID(r.Role)]
		if rel == nil || role == nil {
			return nil, fmt.Errorf("core: restore: relates edge references missing type (%d, %d)", r.Relation, r.Role)
		}
		anns, err := restoreAnnotations(r.Annotations)
		if err != nil {
			return nil, err
		}
		rel.Relates = append(rel.Relates, &Relates{Relation: rel, Role: role, Annotations: anns})
	}
	return m, nil
}
