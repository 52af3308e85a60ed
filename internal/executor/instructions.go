package executor

import (
	"gravix/internal/compiler"
	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/planner"
)

// expand runs instr against row, returning every row it produces by
// extending row with newly-bound values at instr's produced positions.
func expand(ctx *Context, instr planner.Instruction, ann inference.Annotations, positions *compiler.VariablePositions, row Row) ([]Row, error) {
	if err := ctx.checkInterrupt(); err != nil {
		return nil, err
	}
	switch t := instr.(type) {
	case planner.IsaInstruction:
		return expandIsa(ctx, t, ann, positions, row)
	case planner.HasInstruction:
		return expandHas(ctx, t, ann, positions, row)
	case planner.LinksInstruction:
		return expandLinks(ctx, t, ann, positions, row)
	case planner.ComparisonInstruction:
		ok, err := evalComparison(t, positions, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []Row{row}, nil
	case planner.FunctionCallInstruction:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "non-tabled function calls are executed by UnsortedJoinStep, not expand")
	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "executor: unsupported instruction")
	}
}

func expandIsa(ctx *Context, instr planner.IsaInstruction, ann inference.Annotations, positions *compiler.VariablePositions, row Row) ([]Row, error) {
	thingPos := positions.PositionOf(instr.Isa.Thing)
	typePos := positions.PositionOf(instr.Isa.Type)

	candidateTypes := ann[instr.Isa.Type].Sorted()
	if bound, ok := row[typePos].(*core.Type); ok {
		candidateTypes = []*core.Type{bound}
	}

	var out []Row
	if thingCandidate, ok := row[thingPos].(*Concept); ok {
		for _, t := range candidateTypes {
			if thingCandidate.Type == t || thingCandidate.Type.IsSubtypeOf(t) {
				nr := row.Clone()
				nr[typePos] = t
				out = append(out, nr)
			}
		}
		return out, nil
	}

	// A raw value left in the thing slot by a constant assignment narrows
	// an attribute enumeration to the instance holding exactly that value.
	rawFilter := row[thingPos]
	for _, t := range candidateTypes {
		concepts, err := scanInstances(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			if rawFilter != nil && (!c.IsAttribute() || c.Value != rawFilter) {
				continue
			}
			nr := row.Clone()
			nr[thingPos] = c
			nr[typePos] = t
			out = append(out, nr)
		}
	}
	return out, nil
}

func expandHas(ctx *Context, instr planner.HasInstruction, ann inference.Annotations, positions *compiler.VariablePositions, row Row) ([]Row, error) {
	ownerPos := positions.PositionOf(instr.Has.Owner)
	attrPos := positions.PositionOf(instr.Has.Attribute)

	ownerConcept, ownerBound := row[ownerPos].(*Concept)
	attrConcept, attrBound := row[attrPos].(*Concept)

	var out []Row
	switch {
	case ownerBound && attrBound:
		concepts, err := scanHasForward(ctx, ownerConcept.Type.ID, ownerConcept.Object, attrConcept.Type)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			if c.Equal(attrConcept) {
				out = append(out, row.Clone())
				break
			}
		}
	case ownerBound:
		// A raw (non-concept) value in the attribute slot — a literal bound
		// by a constant assignment, as in a put's match phase — filters the
		// scan by value equality instead of producing every attribute.
		rawFilter := row[attrPos]
		allowed := candidateTypeSet(ann[instr.Has.Attribute])
		concepts, err := scanHasForwardAny(ctx, ownerConcept.Type.ID, ownerConcept.Object, allowed)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			val, err := resolveAttributeValue(ctx, c.Type, c.Attr)
			if err != nil {
				return nil, err
			}
			if rawFilter != nil && val != rawFilter {
				continue
			}
			c.Value = val
			nr := row.Clone()
			nr[attrPos] = c
			out = append(out, nr)
		}
	case attrBound:
		allowed := candidateTypeSet(ann[instr.Has.Owner])
		owners, err := scanHasReverseAny(ctx, attrConcept.Type.ID, attrConcept.Attr, allowed)
		if err != nil {
			return nil, err
		}
		for _, o := range owners {
			nr := row.Clone()
			nr[ownerPos] = o
			out = append(out, nr)
		}
	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "has instruction requires at least one bound endpoint")
	}
	return out, nil
}

// candidateTypeSet converts an inferred TypeSet into the allowed-type map
// scanHasForwardAny/scanHasReverseAny expect, or nil (unrestricted) when ts
// carries no narrowing information.
func candidateTypeSet(ts *inference.TypeSet) map[core.TypeID]bool {
	if ts == nil || ts.Len() == 0 {
		return nil
	}
	out := make(map[core.TypeID]bool, ts.Len())
	for _, t := range ts.Sorted() {
		out[t.ID] = true
	}
	return out
}

func expandLinks(ctx *Context, instr planner.LinksInstruction, ann inference.Annotations, positions *compiler.VariablePositions, row Row) ([]Row, error) {
	relPos := positions.PositionOf(instr.Links.Relation)
	playerPos := positions.PositionOf(instr.Links.Player)
	var rolePos int
	hasRoleVar := instr.Links.Role != nil
	if hasRoleVar {
		rolePos = positions.PositionOf(instr.Links.Role)
	}

	relConcept, relBound := row[relPos].(*Concept)
	playerConcept, playerBound := row[playerPos].(*Concept)

	var roleFilter *core.Type
	if hasRoleVar {
		if rt, ok := row[rolePos].(*core.Type); ok {
			roleFilter = rt
		} else if ann[instr.Links.Role] != nil && ann[instr.Links.Role].Len() == 1 {
			roleFilter = ann[instr.Links.Role].Sorted()[0]
		}
	}

	var out []Row
	switch {
	case relBound:
		players, roles, err := scanLinksForward(ctx, relConcept.Type.ID, relConcept.Object, roleFilter, nil)
		if err != nil {
			return nil, err
		}
		for i, p := range players {
			if playerBound && !p.Equal(playerConcept) {
				continue
			}
			nr := row.Clone()
			nr[playerPos] = p
			if hasRoleVar {
				nr[rolePos] = roles[i]
			}
			out = append(out, nr)
		}
	case playerBound:
		rels, roles, err := scanLinksReverse(ctx, playerConcept.Type.ID, playerConcept.Object, roleFilter, nil)
		if err != nil {
			return nil, err
		}
		for i, r := range rels {
			nr := row.Clone()
			nr[relPos] = r
			if hasRoleVar {
				nr[rolePos] = roles[i]
			}
			out = append(out, nr)
		}
	default:
		relTypes := ann[instr.Links.Relation].Sorted()
		for _, rt := range relTypes {
			concepts, err := scanInstances(ctx, rt)
			if err != nil {
				return nil, err
			}
			for _, rel := range concepts {
				players, roles, err := scanLinksForward(ctx, rel.Type.ID, rel.Object, roleFilter, nil)
				if err != nil {
					return nil, err
				}
				for i, p := range players {
					nr := row.Clone()
					nr[relPos] = rel
					nr[playerPos] = p
					if hasRoleVar {
						nr[rolePos] = roles[i]
					}
					out = append(out, nr)
				}
			}
		}
	}
	return out, nil
}

func evalComparison(instr planner.ComparisonInstruction, positions *compiler.VariablePositions, row Row) (bool, error) {
	leftPos := positions.PositionOf(instr.Comparison.Left)
	rightPos := positions.PositionOf(instr.Comparison.Right)
	return compareValues(row[leftPos], row[rightPos], instr.Comparison.Op)
}

func compareValues(left, right any, op ir.ComparisonOp) (bool, error) {
	lv := rowValue(left)
	rv := rowValue(right)
	switch op {
	case ir.CompareEQ:
		return lv == rv, nil
	case ir.CompareNE:
		return lv != rv, nil
	}
	lf, lok := asFloat(lv)
	rf, rok := asFloat(rv)
	if !lok || !rok {
		return false, gravixerr.New(gravixerr.CodeValueTypeMismatch, "ordered comparison requires numeric operands")
	}
	switch op {
	case ir.CompareLT:
		return lf < rf, nil
	case ir.CompareLE:
		return lf <= rf, nil
	case ir.CompareGT:
		return lf > rf, nil
	case ir.CompareGE:
		return lf >= rf, nil
	default:
		return false, gravixerr.New(gravixerr.CodeExecutableCompile, "unsupported comparison operator")
	}
}

// rowValue unwraps a row slot to the value a comparison should operate on:
// an attribute Concept's decoded Value, or the slot itself for a raw value.
func rowValue(v any) any {
	if c, ok := v.(*Concept); ok && c.IsAttribute() {
		return c.Value
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
