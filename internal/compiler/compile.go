package compiler

import (
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/planner"
)

// Compiler lowers a planned block into a MatchStage, threading a single
// shared VariablePositions table through every nested sub-pattern so a
// disjunction's branches (and any negation/optional inner blocks) address
// shared variables at the same row slot.
type Compiler struct {
	planner *planner.Planner
}

// New constructs a Compiler that plans with p.
func New(p *planner.Planner) *Compiler {
	return &Compiler{planner: p}
}

// CompileMatch lowers b (and every pattern nested within it) to a
// MatchStage, allocating fresh variable positions.
func (c *Compiler) CompileMatch(b *ir.Block, ann inference.Annotations) *MatchStage {
	positions := NewVariablePositions()
	steps := c.compileBlock(b, ann, nil, positions)
	return &MatchStage{Steps: steps, Positions: positions}
}

// compileBlock plans b's own constraints, lowers them to Steps, then
// recursively compiles every nested sub-pattern, returning the concatenated
// step sequence. Step order within the block: constant assignments (they
// bind comparison operands desugared from literals), the planned generator
// instructions, variable-dependent assignments, then check steps — checks
// filter only, and deferring them guarantees every operand slot is
// populated by the time they run.
func (c *Compiler) compileBlock(b *ir.Block, ann inference.Annotations, outerBound map[*ir.Variable]bool, positions *VariablePositions) []Step {
	plan := c.planner.PlanBlock(b, ann, outerBound)
	bound := make(map[*ir.Variable]bool, len(outerBound))
	for v := range outerBound {
		bound[v] = true
	}

	var steps []Step
	var dependent []ir.ExpressionBinding
	for _, eb := range expressionBindings(b) {
		positions.PositionOf(eb.Var)
		for _, v := range exprVars(eb.Expr) {
			positions.PositionOf(v)
		}
		if len(exprVars(eb.Expr)) == 0 {
			steps = append(steps, &AssignmentStep{Binding: eb})
			bound[eb.Var] = true
		} else {
			dependent = append(dependent, eb)
		}
	}

	var checks []Step
	for _, instr := range plan.Instructions {
		lowered := c.lowerInstruction(instr, bound, positions)
		if _, isCheck := lowered.(*CheckStep); isCheck {
			checks = append(checks, lowered)
		} else {
			steps = append(steps, lowered)
		}
		for _, v := range instr.Produces(bound) {
			bound[v] = true
			positions.PositionOf(v)
		}
		for _, v := range instr.Requires() {
			positions.PositionOf(v)
		}
	}

	for _, eb := range dependent {
		steps = append(steps, &AssignmentStep{Binding: eb})
		bound[eb.Var] = true
	}
	steps = append(steps, checks...)

	for _, nested := range b.Nested {
		steps = append(steps, c.lowerNested(nested, ann, bound, positions))
	}

	return steps
}

func (c *Compiler) lowerInstruction(instr planner.Instruction, bound map[*ir.Variable]bool, positions *VariablePositions) Step {
	switch t := instr.(type) {
	case planner.ComparisonInstruction:
		return &CheckStep{Checks: []planner.Instruction{t}}
	case planner.FunctionCallInstruction:
		if t.Tabled {
			args := make([]int, len(t.Binding.Args))
			for i, v := range t.Binding.Args {
				args[i] = positions.PositionOf(v)
			}
			assign := make([]int, len(t.Binding.Assigned))
			for i, v := range t.Binding.Assigned {
				assign[i] = positions.PositionOf(v)
			}
			return &TabledCallStep{FunctionID: t.Binding.Function, ArgPositions: args, AssignPositions: assign}
		}
		return &UnsortedJoinStep{Instruction: t}
	default:
		sortVar, ok := singleProducedVariable(instr, bound)
		if !ok {
			return &UnsortedJoinStep{Instruction: instr}
		}
		return &IntersectionStep{
			SortVariable: sortVar,
			Instructions: []planner.Instruction{instr},
			Select:       instr.Produces(bound),
		}
	}
}

// singleProducedVariable reports the instruction's first newly-produced
// variable, which becomes the IntersectionStep's sort variable; only an
// instruction producing no new variable becomes an UnsortedJoinStep.
func singleProducedVariable(instr planner.Instruction, bound map[*ir.Variable]bool) (*ir.Variable, bool) {
	produced := instr.Produces(bound)
	if len(produced) == 0 {
		return nil, false
	}
	return produced[0], true
}

func (c *Compiler) lowerNested(p ir.Pattern, ann inference.Annotations, outerBound map[*ir.Variable]bool, positions *VariablePositions) Step {
	switch t := p.(type) {
	case *ir.Disjunction:
		branches := make([]*MatchStage, 0, len(t.Branches))
		for _, branch := range t.Branches {
			steps := c.compileBlock(branch, ann, outerBound, positions)
			branches = append(branches, &MatchStage{Steps: steps, Positions: positions})
		}
		return &DisjunctionStep{Branches: branches}
	case *ir.Negation:
		steps := c.compileBlock(t.Inner, ann, outerBound, positions)
		return &NegationStep{Inner: &MatchStage{Steps: steps, Positions: positions}}
	case *ir.Optional:
		steps := c.compileBlock(t.Inner, ann, outerBound, positions)
		return &OptionalStep{Inner: &MatchStage{Steps: steps, Positions: positions}}
	default:
		panic("compiler: unsupported nested pattern")
	}
}

func expressionBindings(b *ir.Block) []ir.ExpressionBinding {
	var out []ir.ExpressionBinding
	for _, c := range b.Constraints {
		if eb, ok := c.(ir.ExpressionBinding); ok {
			out = append(out, eb)
		}
	}
	return out
}

func exprVars(e *ir.Expression) []*ir.Variable {
	if e == nil {
		return nil
	}
	if e.IsLeaf() {
		if e.Variable != nil {
			return []*ir.Variable{e.Variable}
		}
		return nil
	}
	var out []*ir.Variable
	for _, child := range e.Children {
		out = append(out, exprVars(child)...)
	}
	return out
}
