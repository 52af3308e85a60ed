package executor

import (
	"fmt"
	"sort"

	"gravix/internal/compiler"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
)

// ExecuteModifier applies one stream modifier to rows. Select and
// Distinct key/project by variable identity, so they run after rows have
// been converted to VarRow form (post-match, or post-reduce).
func ExecuteModifier(stage *compiler.ModifierStage, rows []VarRow) ([]VarRow, error) {
	switch stage.Kind {
	case compiler.ModifierOffset:
		if stage.N >= len(rows) {
			return nil, nil
		}
		return rows[stage.N:], nil

	case compiler.ModifierLimit:
		if stage.N >= len(rows) {
			return rows, nil
		}
		return rows[:stage.N], nil

	case compiler.ModifierDistinct:
		return distinctRows(stage.Vars, rows), nil

	case compiler.ModifierSelect:
		out := make([]VarRow, len(rows))
		for i, row := range rows {
			nr := make(VarRow, len(stage.Vars))
			for _, v := range stage.Vars {
				nr[v] = row[v]
			}
			out[i] = nr
		}
		return out, nil

	case compiler.ModifierSort:
		return sortRows(stage.Vars, stage.Desc, rows), nil

	case compiler.ModifierRequire:
		out := make([]VarRow, 0, len(rows))
		for _, row := range rows {
			bound := true
			for _, v := range stage.Vars {
				if row[v] == nil {
					bound = false
					break
				}
			}
			if bound {
				out = append(out, row)
			}
		}
		return out, nil

	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "unsupported stream modifier")
	}
}

func distinctRows(vars []*ir.Variable, rows []VarRow) []VarRow {
	seen := make(map[string]bool, len(rows))
	out := make([]VarRow, 0, len(rows))
	for _, row := range rows {
		key := distinctKey(vars, row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func distinctKey(vars []*ir.Variable, row VarRow) string {
	if len(vars) == 0 {
		return fmt.Sprintf("%v", row)
	}
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("%v", row[v])
	}
	return fmt.Sprintf("%v", parts)
}

func sortRows(vars []*ir.Variable, desc []bool, rows []VarRow) []VarRow {
	out := make([]VarRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		for k, v := range vars {
			c := compareSortValues(out[i][v], out[j][v])
			if c == 0 {
				continue
			}
			if k < len(desc) && desc[k] {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

// compareSortValues orders two row values for Sort; nil (an unbound
// optional variable) sorts first.
func compareSortValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
