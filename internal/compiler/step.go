package compiler

import (
	"gravix/internal/ir"
	"gravix/internal/planner"
)

// Step is one instruction of a compiled MatchStage.
type Step interface {
	stepKind() string
}

// IntersectionStep sort-merges one or more instructions that each produce
// SortVariable in sorted order, expanding cartesian combinations on any
// other output variables they produce.
type IntersectionStep struct {
	SortVariable *ir.Variable
	Instructions []planner.Instruction
	Select       []*ir.Variable
}

func (*IntersectionStep) stepKind() string { return "intersection" }

// UnsortedJoinStep is a nested-loop join: it has no sort variable to
// advance in lock-step, so every combination of its instruction's outputs
// is produced by brute-force iteration.
type UnsortedJoinStep struct {
	Instruction planner.Instruction
}

func (*UnsortedJoinStep) stepKind() string { return "unsorted-join" }

// CheckStep filters rows without producing new bindings.
type CheckStep struct {
	Checks []planner.Instruction
}

func (*CheckStep) stepKind() string { return "check" }

// AssignmentStep evaluates an expression binding and writes its result into
// the bound variable's slot.
type AssignmentStep struct {
	Binding ir.ExpressionBinding
}

func (*AssignmentStep) stepKind() string { return "assignment" }

// DisjunctionStep runs each branch independently on the same input row and
// concatenates their outputs, filling variables absent from a branch with
// None.
type DisjunctionStep struct {
	Branches []*MatchStage
}

func (*DisjunctionStep) stepKind() string { return "disjunction" }

// NegationStep emits the input row iff Inner produces zero rows for it.
type NegationStep struct {
	Inner *MatchStage
}

func (*NegationStep) stepKind() string { return "negation" }

// OptionalStep emits Inner's rows extended with outer variables, or the
// outer row alone with Inner's variables set to None when Inner matches
// nothing.
type OptionalStep struct {
	Inner *MatchStage
}

func (*OptionalStep) stepKind() string { return "optional" }

// TabledCallStep invokes a tabled (recursive) function, reading and
// appending to its shared result table.
type TabledCallStep struct {
	FunctionID      string
	ArgPositions    []int
	AssignPositions []int
}

func (*TabledCallStep) stepKind() string { return "tabled-call" }
