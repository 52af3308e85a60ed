// Package core is the single source of truth for the schema: kinds, types,
// capabilities, and annotations for every entity, relation, attribute, and
// role type in the database.
package core

import "fmt"

// Kind identifies one of the four fixed type categories.
type Kind uint8

const (
	KindEntity Kind = iota
	KindRelation
	KindAttribute
	KindRole
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindRelation:
		return "relation"
	case KindAttribute:
		return "attribute"
	case KindRole:
		return "role"
	default:
		return "unknown"
	}
}

// TypeID is the stable 16-bit internal identifier assigned to a type at
// creation time. It never changes for the lifetime of the type.
type TypeID uint16

// ValueKind enumerates the built-in attribute value types. A user-defined
// struct is identified by StructName rather than by a ValueKind constant.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueBoolean
	ValueInteger
	ValueDouble
	ValueDecimal
	ValueString
	ValueDate
	ValueDateTime
	ValueDateTimeTZ
	ValueDuration
	ValueStruct
)

func (v ValueKind) String() string {
	switch v {
	case ValueBoolean:
		return "boolean"
	case ValueInteger:
		return "integer"
	case ValueDouble:
		return "double"
	case ValueDecimal:
		return "decimal"
	case ValueString:
		return "string"
	case ValueDate:
		return "date"
	case ValueDateTime:
		return "datetime"
	case ValueDateTimeTZ:
		return "datetime-tz"
	case ValueDuration:
		return "duration"
	case ValueStruct:
		return "struct"
	default:
		return "none"
	}
}

// ValueType pairs a ValueKind with the struct name when Kind is ValueStruct.
type ValueType struct {
	Kind       ValueKind
	StructName string
}

func (v ValueType) String() string {
	if v.Kind == ValueStruct {
		return fmt.Sprintf("struct(%s)", v.StructName)
	}
	return v.Kind.String()
}

// Type is a node in the schema's type graph: an Entity, Relation, Attribute,
// or RoleType. Role types are additionally scoped to the relation that
// declares them, so their label is unique only within that relation's
// supertype chain, not globally.
type Type struct {
	ID    TypeID
	Kind  Kind
	Label string

	// Supertype is the direct parent in the type DAG. The kind root types
	// (entity/relation/attribute/role) have no supertype.
	Supertype *Type
	Subtypes  []*Type

	// ValueType is meaningful only for KindAttribute.
	ValueType ValueType

	// Relation is the owning relation for a KindRole type; nil otherwise.
	Relation *Type

	Abstract bool

	// Independent marks an attribute type whose instances persist even with
	// no owner; instances of other attribute types are cleaned up when their
	// last has-edge is removed.
	Independent bool

	Owns    []*Owns
	Plays   []*Plays
	Relates []*Relates
}

// Root reports whether t has no supertype (i.e. is one of the four kind
// roots the schema seeds at creation).
func (t *Type) Root() bool { return t.Supertype == nil }

// Supertypes returns the chain from t up to (and including) its kind root,
// starting with t itself.
func (t *Type) Supertypes() []*Type {
	var chain []*Type
	for cur := t; cur != nil; cur = cur.Supertype {
		chain = append(chain, cur)
	}
	return chain
}

// IsSubtypeOf reports whether t equals other or descends from it.
func (t *Type) IsSubtypeOf(other *Type) bool {
	for cur := t; cur != nil; cur = cur.Supertype {
		if cur == other {
			return true
		}
	}
	return false
}

// AllSubtypes returns t and every transitive subtype, t first.
func (t *Type) AllSubtypes() []*Type {
	out := []*Type{t}
	for _, s := range t.Subtypes {
		out = append(out, s.AllSubtypes()...)
	}
	return out
}

// Ordering controls whether an Owns capability's attribute instances form an
// ordered list per owner.
type Ordering uint8

const (
	Unordered Ordering = iota
	Ordered
)

// Owns declares that Owner may have attributes of Attribute.
type Owns struct {
	Owner     *Type
	Attribute *Type
	Ordering  Ordering

	Annotations []Annotation
}

// Plays declares that Player may be a role-player for Role.
type Plays struct {
	Player *Type
	Role   *Type
}

// Relates declares that Relation defines Role.
type Relates struct {
	Relation *Type
	Role     *Type

	Annotations []Annotation
}

// Capability is the common shape shared by Owns, Plays, and Relates for
// annotation-category validation.
type Capability interface {
	capabilityKind() capabilityKind
}

type capabilityKind uint8

const (
	capOwns capabilityKind = iota
	capPlays
	capRelates
)

func (o *Owns) capabilityKind() capabilityKind    { return capOwns }
func (p *Plays) capabilityKind() capabilityKind   { return capPlays }
func (r *Relates) capabilityKind() capabilityKind { return capRelates }
