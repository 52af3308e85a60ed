// Package inference implements the fixpoint type-inference algorithm over an
// ir.Block's constraint graph: seeding per-vertex candidate
// type sets from explicit constraints, propagating them across the schema
// relation each constraint induces, and iterating to a fixpoint.
package inference

import (
	"sort"

	"gravix/internal/core"
)

// TypeSet is a candidate set of schema types for one variable; Sorted
// returns them in TypeID order for deterministic iteration and plan
// determinism downstream.
type TypeSet struct {
	types map[core.TypeID]*core.Type
}

// NewTypeSet builds a TypeSet from the given types.
func NewTypeSet(types ...*core.Type) *TypeSet {
	s := &TypeSet{types: make(map[core.TypeID]*core.Type, len(types))}
	for _, t := range types {
		s.types[t.ID] = t
	}
	return s
}

// Add inserts t into the set.
func (s *TypeSet) Add(t *core.Type) { s.types[t.ID] = t }

// A nil *TypeSet behaves as the empty set throughout the read accessors, so
// a lookup of a never-annotated variable stays a soft miss rather than a
// crash.

// Contains reports whether id is a candidate.
func (s *TypeSet) Contains(id core.TypeID) bool {
	if s == nil {
		return false
	}
	_, ok := s.types[id]
	return ok
}

// Empty reports whether the set has no candidates, which is always an
// inference error: a variable with no surviving type candidate.
func (s *TypeSet) Empty() bool { return s == nil || len(s.types) == 0 }

// Len reports the candidate count.
func (s *TypeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.types)
}

// Intersect returns a new set containing only types present in both s and
// other.
func (s *TypeSet) Intersect(other *TypeSet) *TypeSet {
	out := &TypeSet{types: make(map[core.TypeID]*core.Type)}
	if s == nil {
		return out
	}
	for id, t := range s.types {
		if other.Contains(id) {
			out.types[id] = t
		}
	}
	return out
}

// Union returns a new set containing every type present in s or other, used
// to combine a disjunction's per-branch outputs.
func (s *TypeSet) Union(other *TypeSet) *TypeSet {
	out := &TypeSet{types: make(map[core.TypeID]*core.Type, s.Len()+other.Len())}
	if s != nil {
		for id, t := range s.types {
			out.types[id] = t
		}
	}
	if other != nil {
		for id, t := range other.types {
			out.types[id] = t
		}
	}
	return out
}

// Equal reports whether s and other contain exactly the same type IDs, used
// to detect fixpoint convergence.
func (s *TypeSet) Equal(other *TypeSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s == nil {
		return true
	}
	for id := range s.types {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of s.
func (s *TypeSet) Clone() *TypeSet {
	out := &TypeSet{types: make(map[core.TypeID]*core.Type, s.Len())}
	if s == nil {
		return out
	}
	for id, t := range s.types {
		out.types[id] = t
	}
	return out
}

// Sorted returns the set's types ordered by TypeID.
func (s *TypeSet) Sorted() []*core.Type {
	if s == nil {
		return nil
	}
	out := make([]*core.Type, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
