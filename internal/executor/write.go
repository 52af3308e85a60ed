package executor

import (
	"gravix/internal/compiler"
	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/storage"
	"gravix/internal/thing"
)

// ExecuteInsert applies stage's concept creations then connection writes to
// every input row, returning the rows extended with each newly created
// concept bound at its variable's slot. delta accumulates the has/links edge counts touched, for
// commit-time cardinality validation (internal/thing.Manager.ValidateCardinality).
func ExecuteInsert(ctx *Context, w *storage.WriteSnapshot, delta *thing.Delta, stage *compiler.InsertStage, positions *compiler.VariablePositions, rows []Row) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if err := ctx.checkInterrupt(); err != nil {
			return nil, err
		}
		nr := row.Clone()
		for _, concept := range stage.Concepts {
			c, err := createConcept(ctx, w, concept, positions, nr)
			if err != nil {
				return nil, err
			}
			nr[positions.PositionOf(concept.Var)] = c
		}
		for _, conn := range stage.Connections {
			if err := writeConnection(ctx, w, delta, conn, positions, nr); err != nil {
				return nil, err
			}
		}
		out = append(out, nr)
	}
	return out, nil
}

func createConcept(ctx *Context, w *storage.WriteSnapshot, instr compiler.ConceptInstruction, positions *compiler.VariablePositions, row Row) (*Concept, error) {
	switch instr.Type.Kind {
	case core.KindEntity:
		obj, err := ctx.Things.CreateEntity(w, instr.Type)
		if err != nil {
			return nil, err
		}
		return &Concept{Type: instr.Type, Object: obj}, nil
	case core.KindRelation:
		obj, err := ctx.Things.CreateRelation(w, instr.Type)
		if err != nil {
			return nil, err
		}
		return &Concept{Type: instr.Type, Object: obj}, nil
	case core.KindAttribute:
		value, err := evalExpression(ctx, instr.Value, positions, row)
		if err != nil {
			return nil, err
		}
		attr, err := ctx.Things.PutAttribute(w, instr.Type, value)
		if err != nil {
			return nil, err
		}
		return &Concept{Type: instr.Type, Attr: attr, Value: value}, nil
	default:
		return nil, gravixerr.New(gravixerr.CodeIllegalInsertTypes, "insert: cannot create an instance of a role type")
	}
}

func writeConnection(ctx *Context, w *storage.WriteSnapshot, delta *thing.Delta, conn compiler.ConnectionInstruction, positions *compiler.VariablePositions, row Row) error {
	owner, ok := row[positions.PositionOf(conn.Owner)].(*Concept)
	if !ok {
		return gravixerr.New(gravixerr.CodeMissingInput, "insert: connection owner/relation is unbound")
	}
	target, ok := row[positions.PositionOf(conn.Target)].(*Concept)
	if !ok {
		return gravixerr.New(gravixerr.CodeMissingInput, "insert: connection target/player is unbound")
	}

	switch conn.Kind {
	case compiler.ConnectionHas:
		ctx.Things.PutHas(w, owner.Type.ID, owner.Object, target.Type.ID, target.Attr)
		delta.TouchHas(owner.Type.ID, owner.Object, target.Type.ID, 1)
		return nil
	case compiler.ConnectionLinks:
		role, err := resolveRole(conn, positions, row)
		if err != nil {
			return err
		}
		if err := ctx.Things.PutLinks(w, owner.Type.ID, owner.Object, role.ID, target.Type.ID, target.Object, nil); err != nil {
			return err
		}
		delta.TouchLinks(owner.Type.ID, owner.Object, role.ID, 1)
		return nil
	default:
		return gravixerr.New(gravixerr.CodeExecutableCompile, "insert: unsupported connection kind")
	}
}

func resolveRole(conn compiler.ConnectionInstruction, positions *compiler.VariablePositions, row Row) (*core.Type, error) {
	if conn.Role != nil {
		return conn.Role, nil
	}
	if conn.RoleVar != nil {
		if rt, ok := row[positions.PositionOf(conn.RoleVar)].(*core.Type); ok {
			return rt, nil
		}
	}
	return nil, gravixerr.New(gravixerr.CodeAmbiguousKind, "links: role could not be resolved from the row")
}

// ExecuteDelete removes stage's connections then concept instances for
// every input row.
func ExecuteDelete(ctx *Context, w *storage.WriteSnapshot, delta *thing.Delta, stage *compiler.DeleteStage, positions *compiler.VariablePositions, rows []Row) error {
	for _, row := range rows {
		if err := ctx.checkInterrupt(); err != nil {
			return err
		}
		for _, conn := range stage.Connections {
			if err := deleteConnection(ctx, w, delta, conn, positions, row); err != nil {
				return err
			}
		}
		for _, instr := range stage.Concepts {
			if err := deleteConcept(ctx, w, instr, positions, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func deleteConnection(ctx *Context, w *storage.WriteSnapshot, delta *thing.Delta, conn compiler.ConnectionInstruction, positions *compiler.VariablePositions, row Row) error {
	owner, ok := row[positions.PositionOf(conn.Owner)].(*Concept)
	if !ok {
		return nil
	}
	target, ok := row[positions.PositionOf(conn.Target)].(*Concept)
	if !ok {
		return nil
	}
	switch conn.Kind {
	case compiler.ConnectionHas:
		ctx.Things.DeleteHas(w, owner.Type.ID, owner.Object, target.Type.ID, target.Attr)
		delta.TouchHas(owner.Type.ID, owner.Object, target.Type.ID, -1)
		if err := ctx.Things.CleanupAttribute(w, target.Type.ID, target.Attr); err != nil {
			return err
		}
	case compiler.ConnectionLinks:
		role, err := resolveRole(conn, positions, row)
		if err != nil {
			return err
		}
		if err := ctx.Things.DeleteLinks(w, owner.Type.ID, owner.Object, role.ID, target.Type.ID, target.Object, nil); err != nil {
			return err
		}
		delta.TouchLinks(owner.Type.ID, owner.Object, role.ID, -1)
	}
	return nil
}

func deleteConcept(ctx *Context, w *storage.WriteSnapshot, instr compiler.DeleteInstruction, positions *compiler.VariablePositions, row Row) error {
	concept, ok := row[positions.PositionOf(instr.Var)].(*Concept)
	if !ok {
		return nil
	}
	switch instr.Kind {
	case core.KindEntity:
		return ctx.Things.DeleteEntity(w, concept.Type.ID, concept.Object)
	case core.KindRelation:
		return ctx.Things.DeleteRelation(w, concept.Type.ID, concept.Object)
	case core.KindAttribute:
		// Attribute instances are content-addressed and shared; deleting one
		// directly (rather than via its last has-edge disappearing) is not a
		// supported operation.
		return gravixerr.New(gravixerr.CodeIllegalRoleDelete, "delete: attribute instances cannot be deleted directly")
	default:
		return gravixerr.New(gravixerr.CodeIllegalRoleDelete, "delete: unsupported instance kind")
	}
}

// ExecuteUpdate replaces each row's has/links connections: any existing
// edge at the same (owner, attribute-type) or (relation, role) pair is
// removed before the new one is written, so a singly-carded ownership is
// overwritten rather than accumulated.
// Connections whose sub-update lists optional inputs in OptionalInputs are
// skipped for rows where any of those are unbound.
func ExecuteUpdate(ctx *Context, w *storage.WriteSnapshot, delta *thing.Delta, stage *compiler.UpdateStage, positions *compiler.VariablePositions, rows []Row) error {
	for _, row := range rows {
		if err := ctx.checkInterrupt(); err != nil {
			return err
		}
		if !allBound(stage.OptionalInputs, positions, row) {
			continue
		}
		for _, conn := range stage.Connections {
			if err := replaceConnection(ctx, w, delta, conn, positions, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func allBound(vars []*ir.Variable, positions *compiler.VariablePositions, row Row) bool {
	for _, v := range vars {
		if row[positions.PositionOf(v)] == nil {
			return false
		}
	}
	return true
}

func replaceConnection(ctx *Context, w *storage.WriteSnapshot, delta *thing.Delta, conn compiler.ConnectionInstruction, positions *compiler.VariablePositions, row Row) error {
	owner, ok := row[positions.PositionOf(conn.Owner)].(*Concept)
	if !ok {
		return gravixerr.New(gravixerr.CodeMissingInput, "update: connection owner/relation is unbound")
	}
	target, ok := row[positions.PositionOf(conn.Target)].(*Concept)
	if !ok {
		return gravixerr.New(gravixerr.CodeMissingInput, "update: connection target/player is unbound")
	}

	switch conn.Kind {
	case compiler.ConnectionHas:
		existing, err := scanHasForward(ctx, owner.Type.ID, owner.Object, target.Type)
		if err != nil {
			return err
		}
		for _, e := range existing {
			ctx.Things.DeleteHas(w, owner.Type.ID, owner.Object, target.Type.ID, e.Attr)
			delta.TouchHas(owner.Type.ID, owner.Object, target.Type.ID, -1)
		}
		ctx.Things.PutHas(w, owner.Type.ID, owner.Object, target.Type.ID, target.Attr)
		delta.TouchHas(owner.Type.ID, owner.Object, target.Type.ID, 1)
		return nil

	case compiler.ConnectionLinks:
		role, err := resolveRole(conn, positions, row)
		if err != nil {
			return err
		}
		players, roles, err := scanLinksForward(ctx, owner.Type.ID, owner.Object, role, nil)
		if err != nil {
			return err
		}
		for i, p := range players {
			if err := ctx.Things.DeleteLinks(w, owner.Type.ID, owner.Object, roles[i].ID, p.Type.ID, p.Object, nil); err != nil {
				return err
			}
			delta.TouchLinks(owner.Type.ID, owner.Object, roles[i].ID, -1)
		}
		if err := ctx.Things.PutLinks(w, owner.Type.ID, owner.Object, role.ID, target.Type.ID, target.Object, nil); err != nil {
			return err
		}
		delta.TouchLinks(owner.Type.ID, owner.Object, role.ID, 1)
		return nil

	default:
		return gravixerr.New(gravixerr.CodeExecutableCompile, "update: unsupported connection kind")
	}
}
