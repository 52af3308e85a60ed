// Package ir is the pattern tree built from a parsed query: blocks of
// constraints with nested disjunction/optional/negation patterns, expression
// trees, and function definitions.
package ir

import "fmt"

// VariableCategory classifies what a variable can be bound to. Categories
// narrow monotonically as constraints are added to the block that declares
// the variable.
type VariableCategory uint8

const (
	CategoryUnset VariableCategory = iota
	CategoryType
	CategoryThing
	CategoryAttribute
	CategoryValue
	CategoryThingList
	CategoryAttributeList
	CategoryValueList
)

func (c VariableCategory) String() string {
	switch c {
	case CategoryType:
		return "type"
	case CategoryThing:
		return "thing"
	case CategoryAttribute:
		return "attribute"
	case CategoryValue:
		return "value"
	case CategoryThingList:
		return "thing[]"
	case CategoryAttributeList:
		return "attribute[]"
	case CategoryValueList:
		return "value[]"
	default:
		return "unset"
	}
}

// IsListVariant reports whether c is one of the list categories.
func (c VariableCategory) IsListVariant() bool {
	switch c {
	case CategoryThingList, CategoryAttributeList, CategoryValueList:
		return true
	default:
		return false
	}
}

// narrows reports whether narrowing from c to other is legal: unset accepts
// anything, a list category only narrows to itself, and Thing narrows to
// Attribute (every attribute is also a thing) but not the reverse.
func (c VariableCategory) narrows(other VariableCategory) bool {
	if c == CategoryUnset {
		return true
	}
	if c == other {
		return true
	}
	if c == CategoryThing && other == CategoryAttribute {
		return true
	}
	return false
}

// Variable is a named placeholder scoped to the Block that declares it,
// visible in that block and every descendant block.
type Variable struct {
	Name     string
	Category VariableCategory

	// DeclaredIn is the block that owns this variable's declaration; nested
	// blocks reference it rather than redeclaring.
	DeclaredIn *Block
}

// Narrow attempts to narrow v's category toward next, as demanded by source
// (the constraint requiring the narrower category). It is an error to narrow
// to an empty intersection, and that error names both constraint sources, so
// callers pass the constraint that set the current category alongside the
// one attempting to narrow it further.
func (v *Variable) Narrow(next VariableCategory, source, previousSource string) error {
	if next == CategoryUnset || next == v.Category {
		return nil
	}
	if v.Category == CategoryUnset {
		v.Category = next
		return nil
	}
	if v.Category.narrows(next) {
		v.Category = next
		return nil
	}
	if next.narrows(v.Category) {
		return nil
	}
	return fmt.Errorf("ir: variable %q narrowed to empty intersection between %s (%s) and %s (%s)",
		v.Name, previousSource, v.Category, source, next)
}
