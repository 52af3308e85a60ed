package compiler

import (
	"fmt"

	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
)

// ConceptInstruction creates one entity, relation, or attribute instance
// per input row.
type ConceptInstruction struct {
	Var   *ir.Variable
	Type  *core.Type
	Value *ir.Expression // set only when Type.Kind == core.KindAttribute
}

// ConnectionKind distinguishes a has-edge write from a links-edge write.
type ConnectionKind uint8

const (
	ConnectionHas ConnectionKind = iota
	ConnectionLinks
)

// ConnectionInstruction writes (or, during delete, removes) a has or links
// edge. Role is resolved to a concrete RoleType at compile time when
// statically determinable, and left nil for the executor to resolve from
// the input row otherwise.
type ConnectionInstruction struct {
	Kind    ConnectionKind
	Owner   *ir.Variable // Has: owner. Links: relation.
	Target  *ir.Variable // Has: attribute. Links: player.
	Role    *core.Type   // Links only; nil if ambiguous at compile time.
	RoleVar *ir.Variable // Links only; set when Role must be resolved from the row.
}

// DeleteInstruction removes a single instance. Kind must be statically
// determinable for the deleted thing; role-typed variables can never be
// deleted directly.
type DeleteInstruction struct {
	Var  *ir.Variable
	Kind core.Kind
}

// LowerInsert compiles a block's Has/Links/Isa constraints that appear
// inside an `insert` clause into concept-creation and edge-write
// instructions, validating every Links edge against the owning relation's
// Relates/Plays capabilities where both endpoints resolve to a single type.
// A variable carrying both an Isa and an ExpressionBinding (the desugared
// `has <label> <literal>` shape) lowers to one attribute-creation
// instruction with the binding's expression as its value; an attribute Isa
// with no value expression anywhere in the block is rejected.
func LowerInsert(b *ir.Block, ann inference.Annotations) (*InsertStage, error) {
	valueExprs := make(map[*ir.Variable]*ir.Expression)
	for _, c := range b.Constraints {
		if eb, ok := c.(ir.ExpressionBinding); ok {
			valueExprs[eb.Var] = eb.Expr
		}
	}

	stage := &InsertStage{}
	created := make(map[*ir.Variable]bool)
	for _, c := range b.Constraints {
		switch t := c.(type) {
		case ir.Isa:
			if created[t.Thing] {
				continue
			}
			types := ann[t.Type].Sorted()
			if len(types) != 1 {
				return nil, gravixerr.New(gravixerr.CodeIllegalInsertTypes,
					fmt.Sprintf("insert: variable %s has no unique concrete type", t.Thing.Name))
			}
			instr := ConceptInstruction{Var: t.Thing, Type: types[0]}
			if types[0].Kind == core.KindAttribute {
				expr, ok := valueExprs[t.Thing]
				if !ok {
					return nil, gravixerr.New(gravixerr.CodeMissingInput,
						fmt.Sprintf("insert: attribute %s has no value expression", t.Thing.Name))
				}
				instr.Value = expr
			}
			created[t.Thing] = true
			stage.Concepts = append(stage.Concepts, instr)
		case ir.ExpressionBinding:
			if created[t.Var] {
				continue
			}
			types := ann[t.Var].Sorted()
			if len(types) == 1 && types[0].Kind == core.KindAttribute {
				created[t.Var] = true
				stage.Concepts = append(stage.Concepts, ConceptInstruction{Var: t.Var, Type: types[0], Value: t.Expr})
			}
		case ir.Has:
			stage.Connections = append(stage.Connections, ConnectionInstruction{
				Kind: ConnectionHas, Owner: t.Owner, Target: t.Attribute,
			})
		case ir.Links:
			conn := ConnectionInstruction{Kind: ConnectionLinks, Owner: t.Relation, Target: t.Player}
			if err := resolveLinksRole(t, ann, &conn); err != nil {
				return nil, err
			}
			stage.Connections = append(stage.Connections, conn)
		}
	}
	if err := checkIllegalInsertTypes(stage, ann); err != nil {
		return nil, err
	}
	return stage, nil
}

// resolveLinksRole picks a single concrete role type for l when the
// annotations narrow it to exactly one candidate; otherwise it leaves
// RoleVar set so the executor resolves the role from each input row.
func resolveLinksRole(l ir.Links, ann inference.Annotations, conn *ConnectionInstruction) error {
	if l.Role == nil {
		return gravixerr.New(gravixerr.CodeIllegalInsertTypes, "insert: links constraint missing a role")
	}
	roles := ann[l.Role].Sorted()
	switch len(roles) {
	case 0:
		return gravixerr.New(gravixerr.CodeIllegalInsertTypes, "insert: role has no inferred candidates")
	case 1:
		conn.Role = roles[0]
	default:
		conn.RoleVar = l.Role
	}
	return nil
}

// checkIllegalInsertTypes statically rejects a links write whose relation,
// role, and player types are all singly resolved but not present together
// in the relation's Relates/Plays capability tables.
func checkIllegalInsertTypes(stage *InsertStage, ann inference.Annotations) error {
	for _, conn := range stage.Connections {
		if conn.Kind != ConnectionLinks || conn.Role == nil {
			continue
		}
		relTypes := ann[conn.Owner].Sorted()
		playerTypes := ann[conn.Target].Sorted()
		if len(relTypes) != 1 || len(playerTypes) != 1 {
			continue
		}
		rel, player := relTypes[0], playerTypes[0]
		if !relationRelatesRole(rel, conn.Role) {
			return gravixerr.New(gravixerr.CodeIllegalInsertTypes,
				fmt.Sprintf("insert: %s does not relate role %s", rel.Label, conn.Role.Label))
		}
		if !playerPlaysRole(player, conn.Role) {
			return gravixerr.New(gravixerr.CodeIllegalInsertTypes,
				fmt.Sprintf("insert: %s does not play role %s", player.Label, conn.Role.Label))
		}
	}
	return nil
}

func relationRelatesRole(rel, role *core.Type) bool {
	for cur := rel; cur != nil; cur = cur.Supertype {
		for _, r := range cur.Relates {
			if r.Role == role || r.Role.IsSubtypeOf(role) || role.IsSubtypeOf(r.Role) {
				return true
			}
		}
	}
	return false
}

func playerPlaysRole(player, role *core.Type) bool {
	for cur := player; cur != nil; cur = cur.Supertype {
		for _, p := range cur.Plays {
			if p.Role == role || p.Role.IsSubtypeOf(role) || role.IsSubtypeOf(p.Role) {
				return true
			}
		}
	}
	return false
}

// LowerDelete compiles a block's delete targets into edge removals followed
// by instance deletions. A role-typed delete target is rejected outright;
// every other target's kind must resolve to exactly one candidate.
func LowerDelete(b *ir.Block, ann inference.Annotations) (*DeleteStage, error) {
	stage := &DeleteStage{}
	seen := make(map[*ir.Variable]bool)
	// The attribute side of a has constraint names the edge to remove, not an
	// instance to delete.
	hasTargets := make(map[*ir.Variable]bool)
	for _, c := range b.Constraints {
		if h, ok := c.(ir.Has); ok {
			hasTargets[h.Attribute] = true
		}
	}
	for _, c := range b.Constraints {
		switch t := c.(type) {
		case ir.Has:
			stage.Connections = append(stage.Connections, ConnectionInstruction{Kind: ConnectionHas, Owner: t.Owner, Target: t.Attribute})
		case ir.Links:
			stage.Connections = append(stage.Connections, ConnectionInstruction{Kind: ConnectionLinks, Owner: t.Relation, Target: t.Player})
		case ir.Isa:
			if seen[t.Thing] || hasTargets[t.Thing] {
				continue
			}
			seen[t.Thing] = true
			types := ann[t.Thing].Sorted()
			if len(types) == 0 {
				return nil, gravixerr.New(gravixerr.CodeAmbiguousKind, fmt.Sprintf("delete: %s has no candidate type", t.Thing.Name))
			}
			kind := types[0].Kind
			for _, ty := range types[1:] {
				if ty.Kind != kind {
					return nil, gravixerr.New(gravixerr.CodeAmbiguousKind,
						fmt.Sprintf("delete: %s has no unique kind across candidate types", t.Thing.Name))
				}
			}
			if kind == core.KindRole {
				return nil, gravixerr.New(gravixerr.CodeIllegalRoleDelete,
					fmt.Sprintf("delete: %s is role-typed and cannot be deleted directly", t.Thing.Name))
			}
			stage.Concepts = append(stage.Concepts, DeleteInstruction{Var: t.Thing, Kind: kind})
		}
	}
	return stage, nil
}

// LowerUpdate compiles a block's update constraints: replacement has/links
// writes, scoped by OptionalInputs for sub-updates that must see every
// listed input bound.
func LowerUpdate(b *ir.Block, ann inference.Annotations, optionalInputs []*ir.Variable) (*UpdateStage, error) {
	insertLike, err := LowerInsert(b, ann)
	if err != nil {
		return nil, err
	}
	return &UpdateStage{Connections: insertLike.Connections, OptionalInputs: optionalInputs}, nil
}
