package inference

import (
	"fmt"

	"gravix/internal/core"
	"gravix/internal/ir"
)

// Annotations is the result of inferring one block: a candidate TypeSet per
// vertex visible in that block.
type Annotations map[*ir.Variable]*TypeSet

// Engine runs the seed/propagate/fixpoint algorithm over blocks, consulting
// schema for the relations each constraint induces.
type Engine struct {
	schema SchemaView
}

// NewEngine constructs an inference engine bound to schema.
func NewEngine(schema SchemaView) *Engine {
	return &Engine{schema: schema}
}

// InferBlock computes vertex type-set annotations for b. outer supplies
// annotations already computed for variables declared in an ancestor block
// (nil for a top-level block); those variables' sets are used as read-only
// input and are not re-seeded.
func (e *Engine) InferBlock(b *ir.Block, outer Annotations) (Annotations, error) {
	ann := make(Annotations)
	for v, set := range outer {
		ann[v] = set
	}

	e.seed(b, ann)
	if err := e.fixpoint(b, ann); err != nil {
		return nil, err
	}

	for _, n := range b.Nested {
		if err := e.inferNested(n, ann); err != nil {
			return nil, err
		}
	}
	return ann, nil
}

func (e *Engine) seed(b *ir.Block, ann Annotations) {
	for _, c := range b.Constraints {
		switch t := c.(type) {
		case ir.Label:
			if typ := e.schema.GetType(t.Label); typ != nil {
				if _, ok := ann[t.Var]; !ok {
					ann[t.Var] = NewTypeSet(typ)
				}
			}
		case ir.Kind:
			if _, ok := ann[t.Var]; !ok {
				ann[t.Var] = e.universeOfKind(t.Kind)
			}
		case ir.RoleName:
			// Role labels are scoped by relation, so one name may denote
			// several role types; seed with all of them and let the links
			// propagation narrow by the relation's relates set.
			if _, ok := ann[t.Var]; !ok {
				ann[t.Var] = e.rolesNamed(t.Name)
			}
		case ir.Value:
			if _, ok := ann[t.Var]; !ok {
				ann[t.Var] = e.attributesOfValueKind(t.ValueKind)
			}
		}
	}
	// Every constraint-referenced variable gets a seed, including names
	// declared in an enclosing scope but first constrained here (a
	// disjunction branch or try block binding an outer-scoped name).
	for _, c := range b.Constraints {
		for _, v := range ir.ConstraintVariables(c) {
			if _, ok := ann[v]; !ok {
				ann[v] = e.universeOfCategory(v.Category)
			}
		}
	}
}

func (e *Engine) universeOfKind(k core.Kind) *TypeSet {
	set := NewTypeSet()
	for _, t := range e.schema.AllTypes() {
		if t.Kind == k {
			set.Add(t)
		}
	}
	return set
}

func (e *Engine) rolesNamed(name string) *TypeSet {
	set := NewTypeSet()
	for _, t := range e.schema.AllTypes() {
		if t.Kind == core.KindRole && t.Label == name {
			set.Add(t)
		}
	}
	return set
}

func (e *Engine) attributesOfValueKind(kind core.ValueKind) *TypeSet {
	set := NewTypeSet()
	for _, t := range e.schema.AllTypes() {
		if t.Kind == core.KindAttribute && t.ValueType.Kind == kind {
			set.Add(t)
		}
	}
	return set
}

func (e *Engine) universeOfCategory(cat ir.VariableCategory) *TypeSet {
	set := NewTypeSet()
	for _, t := range e.schema.AllTypes() {
		switch cat {
		case ir.CategoryThing, ir.CategoryThingList:
			if t.Kind == core.KindEntity || t.Kind == core.KindRelation {
				set.Add(t)
			}
		case ir.CategoryAttribute, ir.CategoryAttributeList:
			if t.Kind == core.KindAttribute {
				set.Add(t)
			}
		default:
			set.Add(t)
		}
	}
	return set
}

// fixpoint iterates propagate over b's constraints until no vertex set
// shrinks, erroring if any vertex set ever becomes empty.
func (e *Engine) fixpoint(b *ir.Block, ann Annotations) error {
	for {
		changed := false
		for _, c := range b.Constraints {
			did, err := e.propagate(c, ann)
			if err != nil {
				return err
			}
			changed = changed || did
		}
		if !changed {
			return nil
		}
	}
}

func (e *Engine) propagate(c ir.Constraint, ann Annotations) (bool, error) {
	switch t := c.(type) {
	case ir.Has:
		return e.propagateHas(t, ann)
	case ir.Isa:
		return e.propagateIsa(t, ann)
	case ir.Sub:
		return e.propagateSub(t, ann)
	case ir.Links:
		return e.propagateLinks(t, ann)
	case ir.Owns:
		return e.propagateOwnsSchema(t, ann)
	case ir.Relates:
		return e.propagateRelatesSchema(t, ann)
	case ir.Plays:
		return e.propagatePlaysSchema(t, ann)
	default:
		return false, nil
	}
}

func narrow(ann Annotations, v *ir.Variable, next *TypeSet, constraintName string) (bool, error) {
	cur, ok := ann[v]
	if !ok {
		ann[v] = next
		return true, nil
	}
	merged := cur.Intersect(next)
	if merged.Empty() {
		return false, fmt.Errorf("ir/inference: %s narrows %q to an empty type set", constraintName, v.Name)
	}
	if merged.Equal(cur) {
		return false, nil
	}
	ann[v] = merged
	return true, nil
}

func (e *Engine) propagateHas(h ir.Has, ann Annotations) (bool, error) {
	owners := ann[h.Owner]
	attrs := ann[h.Attribute]

	newAttrs := NewTypeSet()
	for _, a := range attrs.Sorted() {
		for _, o := range owners.Sorted() {
			if ownsTransitive(o, a) {
				newAttrs.Add(a)
				break
			}
		}
	}
	newOwners := NewTypeSet()
	for _, o := range owners.Sorted() {
		for _, a := range attrs.Sorted() {
			if ownsTransitive(o, a) {
				newOwners.Add(o)
				break
			}
		}
	}

	c1, err := narrow(ann, h.Attribute, newAttrs, "has")
	if err != nil {
		return false, err
	}
	c2, err := narrow(ann, h.Owner, newOwners, "has")
	if err != nil {
		return false, err
	}
	return c1 || c2, nil
}

func (e *Engine) propagateIsa(isa ir.Isa, ann Annotations) (bool, error) {
	types := ann[isa.Type]
	things := ann[isa.Thing]

	newThings := NewTypeSet()
	for _, thing := range things.Sorted() {
		for _, typ := range types.Sorted() {
			if isaCompatible(thing, typ, isa.Transitive) {
				newThings.Add(thing)
				break
			}
		}
	}
	newTypes := NewTypeSet()
	for _, typ := range types.Sorted() {
		for _, thing := range things.Sorted() {
			if isaCompatible(thing, typ, isa.Transitive) {
				newTypes.Add(typ)
				break
			}
		}
	}

	c1, err := narrow(ann, isa.Thing, newThings, "isa")
	if err != nil {
		return false, err
	}
	c2, err := narrow(ann, isa.Type, newTypes, "isa")
	if err != nil {
		return false, err
	}
	return c1 || c2, nil
}

func isaCompatible(thing, typ *core.Type, transitive bool) bool {
	if transitive {
		return thing.IsSubtypeOf(typ)
	}
	return thing == typ
}

func (e *Engine) propagateSub(s ir.Sub, ann Annotations) (bool, error) {
	subs := ann[s.Subtype]
	supers := ann[s.Supertype]

	newSubs := NewTypeSet()
	for _, sub := range subs.Sorted() {
		for _, super := range supers.Sorted() {
			if subCompatible(sub, super, s.Exact) {
				newSubs.Add(sub)
				break
			}
		}
	}
	newSupers := NewTypeSet()
	for _, super := range supers.Sorted() {
		for _, sub := range subs.Sorted() {
			if subCompatible(sub, super, s.Exact) {
				newSupers.Add(super)
				break
			}
		}
	}

	c1, err := narrow(ann, s.Subtype, newSubs, "sub")
	if err != nil {
		return false, err
	}
	c2, err := narrow(ann, s.Supertype, newSupers, "sub")
	if err != nil {
		return false, err
	}
	return c1 || c2, nil
}

func subCompatible(sub, super *core.Type, exact bool) bool {
	if exact {
		return sub.Supertype == super
	}
	return sub != super && sub.IsSubtypeOf(super)
}

func (e *Engine) propagateLinks(l ir.Links, ann Annotations) (bool, error) {
	relations := ann[l.Relation]
	players := ann[l.Player]
	var roles *TypeSet
	if l.Role != nil {
		roles = ann[l.Role]
	} else {
		roles = e.universeOfKind(core.KindRole)
	}

	newPlayers := NewTypeSet()
	newRelations := NewTypeSet()
	newRoles := NewTypeSet()
	for _, rel := range relations.Sorted() {
		for _, role := range roles.Sorted() {
			if !relatesTransitive(rel, role) {
				continue
			}
			for _, player := range players.Sorted() {
				if playsTransitive(player, role) {
					newPlayers.Add(player)
					newRelations.Add(rel)
					newRoles.Add(role)
				}
			}
		}
	}

	c1, err := narrow(ann, l.Player, newPlayers, "links")
	if err != nil {
		return false, err
	}
	c2, err := narrow(ann, l.Relation, newRelations, "links")
	if err != nil {
		return false, err
	}
	var c3 bool
	if l.Role != nil {
		c3, err = narrow(ann, l.Role, newRoles, "links")
		if err != nil {
			return false, err
		}
	}
	return c1 || c2 || c3, nil
}

// ownsTransitive reports whether owner (or an ancestor of owner) declares
// Owns on a type that attr is a subtype of.
func ownsTransitive(owner, attr *core.Type) bool {
	for _, ancestor := range owner.Supertypes() {
		for _, o := range ancestor.Owns {
			if attr.IsSubtypeOf(o.Attribute) {
				return true
			}
		}
	}
	return false
}

// playsTransitive reports whether player (or an ancestor) declares Plays on
// role (or a supertype of role).
func playsTransitive(player, role *core.Type) bool {
	for _, ancestor := range player.Supertypes() {
		for _, p := range ancestor.Plays {
			if role.IsSubtypeOf(p.Role) {
				return true
			}
		}
	}
	return false
}

// relatesTransitive reports whether relation (or an ancestor) declares
// Relates on role (or a supertype of role).
func relatesTransitive(relation, role *core.Type) bool {
	for _, ancestor := range relation.Supertypes() {
		for _, r := range ancestor.Relates {
			if role.IsSubtypeOf(r.Role) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) propagateOwnsSchema(o ir.Owns, ann Annotations) (bool, error) {
	owners := ann[o.Owner]
	attrs := ann[o.Attribute]
	newOwners := NewTypeSet()
	newAttrs := NewTypeSet()
	for _, owner := range owners.Sorted() {
		for _, attr := range attrs.Sorted() {
			if ownsTransitive(owner, attr) {
				newOwners.Add(owner)
				newAttrs.Add(attr)
			}
		}
	}
	c1, err := narrow(ann, o.Owner, newOwners, "owns")
	if err != nil {
		return false, err
	}
	c2, err := narrow(ann, o.Attribute, newAttrs, "owns")
	if err != nil {
		return false, err
	}
	return c1 || c2, nil
}

func (e *Engine) propagateRelatesSchema(r ir.Relates, ann Annotations) (bool, error) {
	relations := ann[r.Relation]
	roles := ann[r.Role]
	newRelations := NewTypeSet()
	newRoles := NewTypeSet()
	for _, rel := range relations.Sorted() {
		for _, role := range roles.Sorted() {
			if relatesTransitive(rel, role) {
				newRelations.Add(rel)
				newRoles.Add(role)
			}
		}
	}
	c1, err := narrow(ann, r.Relation, newRelations, "relates")
	if err != nil {
		return false, err
	}
	c2, err := narrow(ann, r.Role, newRoles, "relates")
	if err != nil {
		return false, err
	}
	return c1 || c2, nil
}

func (e *Engine) propagatePlaysSchema(p ir.Plays, ann Annotations) (bool, error) {
	players := ann[p.Player]
	roles := ann[p.Role]
	newPlayers := NewTypeSet()
	newRoles := NewTypeSet()
	for _, player := range players.Sorted() {
		for _, role := range roles.Sorted() {
			if playsTransitive(player, role) {
				newPlayers.Add(player)
				newRoles.Add(role)
			}
		}
	}
	c1, err := narrow(ann, p.Player, newPlayers, "plays")
	if err != nil {
		return false, err
	}
	c2, err := narrow(ann, p.Role, newRoles, "plays")
	if err != nil {
		return false, err
	}
	return c1 || c2, nil
}

// inferNested handles a disjunction/negation/optional nested under a block
// already annotated in ann.
func (e *Engine) inferNested(n ir.Pattern, ann Annotations) error {
	switch p := n.(type) {
	case *ir.Disjunction:
		return e.inferDisjunction(p, ann)
	case *ir.Negation:
		return e.inferGuarded(p.Inner, ann)
	case *ir.Optional:
		return e.inferGuarded(p.Inner, ann)
	}
	return nil
}

func (e *Engine) inferDisjunction(d *ir.Disjunction, ann Annotations) error {
	var branchResults []Annotations
	for _, branch := range d.Branches {
		result, err := e.InferBlock(branch, ann)
		if err != nil {
			return err
		}
		branchResults = append(branchResults, result)
	}
	// The disjunction's output for an outer variable is the union of its
	// outer set with every branch's (a disjunction never narrows outer
	// vertices); a variable first constrained inside the branches gets the
	// union across the branches that mention it.
	merged := make(Annotations)
	for _, br := range branchResults {
		for v, s := range br {
			if cur, ok := merged[v]; ok {
				merged[v] = cur.Union(s)
			} else {
				merged[v] = s
			}
		}
	}
	for v, s := range merged {
		if outer, ok := ann[v]; ok {
			ann[v] = outer.Union(s)
		} else {
			ann[v] = s
		}
	}
	return nil
}

// inferGuarded runs inference on inner with ann as input, but discards any
// narrowing the inner branch would apply to outer-declared variables:
// negation/optional branches inherit outer annotations and must not
// further constrain the outer vertex set. Variables only the inner block
// constrains keep their inferred sets, so the executor has annotations for
// them.
func (e *Engine) inferGuarded(inner *ir.Block, ann Annotations) error {
	snapshot := make(Annotations, len(ann))
	for v, s := range ann {
		snapshot[v] = s
	}
	result, err := e.InferBlock(inner, snapshot)
	if err != nil {
		return err
	}
	for v, s := range result {
		if _, ok := ann[v]; !ok {
			ann[v] = s
		}
	}
	return nil
}
