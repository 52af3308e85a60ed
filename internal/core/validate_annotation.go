package core

import "fmt"

// validateAnnotationCategories rejects any annotation whose category is not
// legal on cap's capability kind.
func validateAnnotationCategories(cap Capability, annotations []Annotation) error {
	kind := cap.capabilityKind()
	for _, a := range annotations {
		if !legalOnCapability(kind, a.Category) {
			return fmt.Errorf("core: annotation %s is not legal on this capability", a.Category)
		}
	}
	return validateNoConflictingAnnotations(annotations)
}

// validateNoConflictingAnnotations rejects an annotation set that declares
// the same category twice, or both Unique and Key (Key already implies
// Unique).
func validateNoConflictingAnnotations(annotations []Annotation) error {
	seen := make(map[AnnotationCategory]bool)
	for _, a := range annotations {
		if seen[a.Category] {
			return fmt.Errorf("core: annotation %s declared more than once", a.Category)
		}
		seen[a.Category] = true
	}
	if seen[AnnotationKey] && seen[AnnotationUnique] {
		return fmt.Errorf("core: annotation key already implies unique; do not declare both")
	}
	return nil
}

func cardinalityOf(annotations []Annotation) (Cardinality, bool) {
	for _, a := range annotations {
		if a.Category == AnnotationCardinality {
			return a.Cardinality, true
		}
	}
	return Cardinality{}, false
}

// inheritedOwnsCardinality finds the cardinality annotation, if any, that a
// supertype of owner declares for the same attribute type (or one of its
// supertypes). A redeclared capability must not be WIDER than its
// supertype's: narrowing is required to be monotonic downward. We look up
// the chain for the nearest declared cardinality.
func inheritedOwnsCardinality(owner, attribute *Type) (Cardinality, bool) {
	for s := owner.Supertype; s != nil; s = s.Supertype {
		for _, o := range s.Owns {
			if o.Attribute == attribute || attribute.IsSubtypeOf(o.Attribute) {
				if c, ok := cardinalityOf(o.Annotations); ok {
					return c, true
				}
			}
		}
	}
	return Cardinality{}, false
}

// inheritedRelatesCardinality mirrors inheritedOwnsCardinality for Relates.
func inheritedRelatesCardinality(relation, role *Type) (Cardinality, bool) {
	for s := relation.Supertype; s != nil; s = s.Supertype {
		for _, r := range s.Relates {
			if r.Role == role || role.IsSubtypeOf(r.Role) {
				if c, ok := cardinalityOf(r.Annotations); ok {
					return c, true
				}
			}
		}
	}
	return Cardinality{}, false
}

// CardinalityOf is the exported form of cardinalityOf, used by the write
// executor (internal/executor, internal/thing) to read a capability's
// declared bound for commit-time validation.
func CardinalityOf(annotations []Annotation) (Cardinality, bool) {
	return cardinalityOf(annotations)
}

// OwnsCardinality resolves the cardinality bound applying to owner having
// attribute, walking owner's supertype chain (including owner itself) for
// the nearest Owns declaration covering attribute or one of its subtypes.
// Reports false when no capability in the chain declares a cardinality,
// i.e. the pair is unconstrained.
func OwnsCardinality(owner, attribute *Type) (Cardinality, bool) {
	for cur := owner; cur != nil; cur = cur.Supertype {
		for _, o := range cur.Owns {
			if o.Attribute == attribute || attribute.IsSubtypeOf(o.Attribute) {
				if c, ok := cardinalityOf(o.Annotations); ok {
					return c, true
				}
			}
		}
	}
	return Cardinality{}, false
}

// RelatesCardinality mirrors OwnsCardinality for a relation's Relates(role)
// capability.
func RelatesCardinality(relation, role *Type) (Cardinality, bool) {
	for cur := relation; cur != nil; cur = cur.Supertype {
		for _, r := range cur.Relates {
			if r.Role == role || role.IsSubtypeOf(r.Role) {
				if c, ok := cardinalityOf(r.Annotations); ok {
					return c, true
				}
			}
		}
	}
	return Cardinality{}, false
}

// validateCardinalityNarrowing rejects a capability's cardinality annotation
// when it is wider than the cardinality inherited from a supertype's
// equivalent capability.
func validateCardinalityNarrowing(m *Manager, owner, target *Type, annotations []Annotation, lookup func(*Type, *Type) (Cardinality, bool)) error {
	own, ok := cardinalityOf(annotations)
	if !ok {
		return nil
	}
	inherited, ok := lookup(owner, target)
	if !ok {
		return nil
	}
	if !own.Narrows(inherited) {
		return fmt.Errorf("core: cardinality %+v does not narrow inherited cardinality %+v", own, inherited)
	}
	return nil
}
