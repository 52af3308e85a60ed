package executor

import (
	"gravix/internal/core"
	"gravix/internal/keyencoding"
)

// Concept is a row value representing a thing (entity, relation, or
// attribute instance) bound to a variable. Type-category variables (e.g.
// the Type side of an Isa constraint) instead hold a *core.Type directly.
type Concept struct {
	Type   *core.Type
	Object keyencoding.ObjectID    // valid for entity/relation
	Attr   keyencoding.AttributeID // valid for attribute
	Value  any                     // decoded attribute value, valid for attribute
}

// IsAttribute reports whether c identifies an attribute instance.
func (c *Concept) IsAttribute() bool { return c.Type != nil && c.Type.Kind == core.KindAttribute }

// Equal reports whether c and other identify the same concrete instance.
func (c *Concept) Equal(other *Concept) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Type != other.Type {
		return false
	}
	if c.IsAttribute() {
		return string(c.Attr.Bytes()) == string(other.Attr.Bytes())
	}
	return c.Object == other.Object
}
