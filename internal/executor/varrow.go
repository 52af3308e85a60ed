package executor

import (
	"gravix/internal/compiler"
	"gravix/internal/ir"
)

// VarRow is a row addressed by variable identity rather than row-slot
// position, the shape every stage downstream of a MatchStage (reduce,
// modifier, fetch) operates on — those stages carry *ir.Variable
// references rather than compiled position indices.
type VarRow map[*ir.Variable]any

func toVarRow(positions *compiler.VariablePositions, row Row) VarRow {
	vars := positions.Variables()
	out := make(VarRow, len(vars))
	for _, v := range vars {
		out[v] = rowValue(row[positions.PositionOf(v)])
	}
	return out
}

func toVarRows(positions *compiler.VariablePositions, rows []Row) []VarRow {
	out := make([]VarRow, len(rows))
	for i, r := range rows {
		out[i] = toVarRow(positions, r)
	}
	return out
}
