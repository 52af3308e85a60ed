package compiler

import (
	"gravix/internal/core"
	"gravix/internal/ir"
)

// FetchSome is one entry of a fetch projection tree: a leaf
// that reads a variable's concept or attribute directly, a nested
// object/sub-fetch, or a list-producing variant of each.
type FetchSome interface {
	fetchKind() string
}

// SingleVar projects a thing- or value-typed variable's concept directly.
type SingleVar struct {
	Var *ir.Variable
}

func (SingleVar) fetchKind() string { return "single-var" }

// SingleAttribute projects the (unique, per cardinality) attribute of type
// AttrType owned by Var.
type SingleAttribute struct {
	Var      *ir.Variable
	AttrType *core.Type
}

func (SingleAttribute) fetchKind() string { return "single-attribute" }

// SingleFunction projects the single-row output of calling Function with
// Args.
type SingleFunction struct {
	Function string
	Args     []*ir.Variable
}

func (SingleFunction) fetchKind() string { return "single-function" }

// Object projects a nested document whose keys are Entries, each a further
// FetchSome (nested entries or attributes).
type Object struct {
	Entries map[string]FetchSome
}

func (Object) fetchKind() string { return "object" }

// ListFunction projects the multi-row output of calling Function as a list.
type ListFunction struct {
	Function string
	Args     []*ir.Variable
}

func (ListFunction) fetchKind() string { return "list-function" }

// ListSubFetch runs Pipeline (a nested match pattern, already planned and
// compiled into a MatchStage) and projects each resulting row through
// Fetch, collecting a list.
type ListSubFetch struct {
	Pipeline *MatchStage
	Fetch    map[string]FetchSome
}

func (ListSubFetch) fetchKind() string { return "list-sub-fetch" }

// ListAttributesAsList projects every instance of AttrType owned by Var as
// a list (for an Owns capability with Ordered cardinality semantics, or
// whenever the owner may hold more than one instance of the attribute).
type ListAttributesAsList struct {
	Var      *ir.Variable
	AttrType *core.Type
}

func (ListAttributesAsList) fetchKind() string { return "list-attributes-as-list" }

// ListAttributesFromList projects the attribute instances already bound to
// a list-category variable.
type ListAttributesFromList struct {
	Var *ir.Variable
}

func (ListAttributesFromList) fetchKind() string { return "list-attributes-from-list" }
