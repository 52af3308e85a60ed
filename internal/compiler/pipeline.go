package compiler

import "gravix/internal/ir"

// CompileReduce lowers a return-reduce statement into a ReduceStage.
func CompileReduce(groupBy []*ir.Variable, reducers []ir.Reducer) *ReduceStage {
	return &ReduceStage{GroupBy: groupBy, Reducers: reducers}
}

// CompileOffset builds an Offset modifier stage.
func CompileOffset(n int) *ModifierStage { return &ModifierStage{Kind: ModifierOffset, N: n} }

// CompileLimit builds a Limit modifier stage.
func CompileLimit(n int) *ModifierStage { return &ModifierStage{Kind: ModifierLimit, N: n} }

// CompileDistinct builds a Distinct modifier stage over vars, the "width"
// of the deduplication key.
func CompileDistinct(vars []*ir.Variable) *ModifierStage {
	return &ModifierStage{Kind: ModifierDistinct, Vars: vars}
}

// CompileSelect builds a Select modifier stage projecting only vars.
func CompileSelect(vars []*ir.Variable) *ModifierStage {
	return &ModifierStage{Kind: ModifierSelect, Vars: vars}
}

// CompileSort builds a Sort modifier stage; desc[i] reports whether vars[i]
// sorts descending.
func CompileSort(vars []*ir.Variable, desc []bool) *ModifierStage {
	return &ModifierStage{Kind: ModifierSort, Vars: vars, Desc: desc}
}

// CompileRequire builds a Require modifier stage dropping rows where any of
// vars is unbound.
func CompileRequire(vars []*ir.Variable) *ModifierStage {
	return &ModifierStage{Kind: ModifierRequire, Vars: vars}
}
