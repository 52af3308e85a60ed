package core

import "regexp"

// AnnotationCategory identifies which of the fixed annotation kinds an
// Annotation value carries.
type AnnotationCategory uint8

const (
	AnnotationAbstract AnnotationCategory = iota
	AnnotationIndependent
	AnnotationDistinct
	AnnotationUnique
	AnnotationKey
	AnnotationCardinality
	AnnotationRegex
	AnnotationRange
	AnnotationValues
	AnnotationCascade
)

func (c AnnotationCategory) String() string {
	switch c {
	case AnnotationAbstract:
		return "abstract"
	case AnnotationIndependent:
		return "independent"
	case AnnotationDistinct:
		return "distinct"
	case AnnotationUnique:
		return "unique"
	case AnnotationKey:
		return "key"
	case AnnotationCardinality:
		return "cardinality"
	case AnnotationRegex:
		return "regex"
	case AnnotationRange:
		return "range"
	case AnnotationValues:
		return "values"
	case AnnotationCascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// Cardinality bounds the number of instances a capability may have. Max of 0
// with NoMax set means unbounded.
type Cardinality struct {
	Min   uint64
	Max   uint64
	NoMax bool
}

// Narrows reports whether c is at least as strict as other: its min is no
// smaller and its max is no larger (unbounded counts as infinitely large).
func (c Cardinality) Narrows(other Cardinality) bool {
	if c.Min < other.Min {
		return false
	}
	if other.NoMax {
		return true
	}
	if c.NoMax {
		return false
	}
	return c.Max <= other.Max
}

// Annotation is one schema-level constraint attached to a capability or
// type. Exactly one of the payload fields is meaningful, selected by
// Category.
type Annotation struct {
	Category AnnotationCategory

	Cardinality Cardinality
	Regex       *regexp.Regexp
	RangeMin    *string
	RangeMax    *string
	Values      []string
}

// legalCategories enumerates, for each capability kind, which annotation
// categories may be attached to it.
var legalCategories = map[capabilityKind]map[AnnotationCategory]bool{
	capOwns: {
		AnnotationDistinct:    true,
		AnnotationUnique:      true,
		AnnotationKey:         true,
		AnnotationCardinality: true,
		AnnotationRegex:       true,
		AnnotationRange:       true,
		AnnotationValues:      true,
	},
	capPlays: {
		AnnotationCardinality: true,
	},
	capRelates: {
		AnnotationCardinality: true,
		AnnotationDistinct:    true,
	},
}

// legalOnCapability reports whether cat may be attached to a capability of
// kind k.
func legalOnCapability(k capabilityKind, cat AnnotationCategory) bool {
	return legalCategories[k][cat]
}

// legalOnType reports whether cat may be attached directly to a Type (as
// opposed to one of its capabilities). Abstract, Independent, and Cascade
// are type-level; the rest are capability-level only.
func legalOnType(cat AnnotationCategory) bool {
	switch cat {
	case AnnotationAbstract, AnnotationIndependent, AnnotationCascade:
		return true
	default:
		return false
	}
}
