package executor

import (
	"gravix/internal/compiler"
	"gravix/internal/gravixerr"
	"gravix/internal/ir/inference"
	"gravix/internal/planner"
)

// RunMatch drives stage's compiled Steps over input (a single empty seed
// row for a top-level match, or the outer pattern's current rows when
// stage is a nested disjunction/negation/optional branch), returning every
// row the step sequence produces. Each step consumes its input in
// FixedBatch-sized slices with the interrupt checked at every batch
// boundary; a step's whole output is drained before the next step runs,
// which is the externally observable half of the source protocol's
// suspend/resume contract.
func RunMatch(ctx *Context, stage *compiler.MatchStage, ann inference.Annotations, input []Row) ([]Row, error) {
	rows := input
	if rows == nil {
		rows = []Row{newEmptyRow(stage.Positions.Width())}
	}
	for _, step := range stage.Steps {
		label := stepLabel(step)
		batch := NewFixedBatch()
		var next []Row
		for start := 0; start < len(rows); start += BatchSize {
			if err := ctx.checkInterrupt(); err != nil {
				return nil, err
			}
			stop := start + BatchSize
			if stop > len(rows) {
				stop = len(rows)
			}
			out, err := runStep(ctx, step, ann, stage.Positions, rows[start:stop])
			if err != nil {
				return nil, err
			}
			for _, row := range out {
				batch.Push(row)
				if batch.Full() {
					ctx.Profile.RecordBatch(label, len(batch.Rows))
					next = append(next, batch.Rows...)
					batch = NewFixedBatch()
				}
			}
		}
		if len(batch.Rows) > 0 {
			ctx.Profile.RecordBatch(label, len(batch.Rows))
			next = append(next, batch.Rows...)
		}
		rows = next
		if len(rows) == 0 {
			return rows, nil
		}
	}
	return rows, nil
}

func stepLabel(step compiler.Step) string {
	switch step.(type) {
	case *compiler.IntersectionStep:
		return "intersection"
	case *compiler.UnsortedJoinStep:
		return "unsorted-join"
	case *compiler.CheckStep:
		return "check"
	case *compiler.AssignmentStep:
		return "assignment"
	case *compiler.DisjunctionStep:
		return "disjunction"
	case *compiler.NegationStep:
		return "negation"
	case *compiler.OptionalStep:
		return "optional"
	case *compiler.TabledCallStep:
		return "tabled-call"
	default:
		return "step"
	}
}

func newEmptyRow(width int) Row { return make(Row, width) }

func runStep(ctx *Context, step compiler.Step, ann inference.Annotations, positions *compiler.VariablePositions, rows []Row) ([]Row, error) {
	switch t := step.(type) {
	case *compiler.IntersectionStep:
		return runInstructions(ctx, t.Instructions, ann, positions, rows)
	case *compiler.UnsortedJoinStep:
		if fc, ok := t.Instruction.(planner.FunctionCallInstruction); ok {
			return runFunctionCallInstruction(ctx, fc, positions, rows)
		}
		return runInstructions(ctx, []planner.Instruction{t.Instruction}, ann, positions, rows)
	case *compiler.CheckStep:
		return runInstructions(ctx, t.Checks, ann, positions, rows)
	case *compiler.AssignmentStep:
		return runAssignment(ctx, t.Binding, positions, rows)
	case *compiler.DisjunctionStep:
		return runDisjunction(ctx, t, ann, rows)
	case *compiler.NegationStep:
		return runNegation(ctx, t, ann, rows)
	case *compiler.OptionalStep:
		return runOptional(ctx, t, ann, rows)
	case *compiler.TabledCallStep:
		return runTabledCallStep(ctx, t, rows)
	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "executor: unsupported match step")
	}
}

// runInstructions flat-maps every instruction in sequence over rows, using
// expand (internal/executor/instructions.go) for each single instruction —
// an IntersectionStep's sort-merge semantics and an UnsortedJoinStep's
// nested-loop semantics both reduce, for the single-instruction steps this
// compiler emits, to "expand every row against this one instruction".
func runInstructions(ctx *Context, instrs []planner.Instruction, ann inference.Annotations, positions *compiler.VariablePositions, rows []Row) ([]Row, error) {
	for _, instr := range instrs {
		var next []Row
		for _, row := range rows {
			if err := ctx.checkInterrupt(); err != nil {
				return nil, err
			}
			out, err := expand(ctx, instr, ann, positions, row)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		rows = next
		if len(rows) == 0 {
			return rows, nil
		}
	}
	return rows, nil
}

func runDisjunction(ctx *Context, step *compiler.DisjunctionStep, ann inference.Annotations, rows []Row) ([]Row, error) {
	var out []Row
	for _, row := range rows {
		for _, branch := range step.Branches {
			branchRows, err := RunMatch(ctx, branch, ann, []Row{row.Clone()})
			if err != nil {
				return nil, err
			}
			out = append(out, branchRows...)
		}
	}
	return out, nil
}

func runNegation(ctx *Context, step *compiler.NegationStep, ann inference.Annotations, rows []Row) ([]Row, error) {
	var out []Row
	for _, row := range rows {
		inner, err := RunMatch(ctx, step.Inner, ann, []Row{row.Clone()})
		if err != nil {
			return nil, err
		}
		if len(inner) == 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func runOptional(ctx *Context, step *compiler.OptionalStep, ann inference.Annotations, rows []Row) ([]Row, error) {
	var out []Row
	for _, row := range rows {
		inner, err := RunMatch(ctx, step.Inner, ann, []Row{row.Clone()})
		if err != nil {
			return nil, err
		}
		if len(inner) == 0 {
			out = append(out, row)
			continue
		}
		out = append(out, inner...)
	}
	return out, nil
}
