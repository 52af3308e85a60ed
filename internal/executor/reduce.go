package executor

import (
	"fmt"
	"sort"

	"gravix/internal/compiler"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
)

// ExecuteReduce aggregates a match stage's rows grouped by groupBy, applying
// reducers per group. Each reducer's
// aggregate value is written back onto its own Target variable — a reduce
// stage sits directly atop the match stage's variable namespace, so a
// downstream Select/Sort/fetch entry addresses a reduced column exactly the
// way it would address a column the match stage produced directly.
func ExecuteReduce(positions *compiler.VariablePositions, stage *compiler.ReduceStage, rows []Row) ([]VarRow, error) {
	return reduceVarRows(stage.GroupBy, stage.Reducers, toVarRows(positions, rows))
}

// reduceRows is reduceVarRows' Row-returning form, used by a function's
// ReturnReduce statement (internal/executor/function.go), which has no
// group-by and projects only the reducer outputs in declared order.
func reduceRows(reducers []ir.Reducer, positions *compiler.VariablePositions, rows []Row) ([]Row, error) {
	reduced, err := reduceVarRows(nil, reducers, toVarRows(positions, rows))
	if err != nil {
		return nil, err
	}
	out := make([]Row, len(reduced))
	for i, vr := range reduced {
		tuple := make(Row, len(reducers))
		for j, r := range reducers {
			tuple[j] = vr[r.Target]
		}
		out[i] = tuple
	}
	return out, nil
}

func reduceVarRows(groupBy []*ir.Variable, reducers []ir.Reducer, rows []VarRow) ([]VarRow, error) {
	type bucket struct {
		groupVals VarRow
		values    [][]any
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, row := range rows {
		key := groupRowKey(groupBy, row)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{groupVals: make(VarRow, len(groupBy)), values: make([][]any, len(reducers))}
			for _, v := range groupBy {
				b.groupVals[v] = row[v]
			}
			buckets[key] = b
			order = append(order, key)
		}
		for i, r := range reducers {
			b.values[i] = append(b.values[i], row[r.Target])
		}
	}

	if len(buckets) == 0 && len(groupBy) == 0 {
		order = append(order, "")
		buckets[""] = &bucket{groupVals: VarRow{}, values: make([][]any, len(reducers))}
	}

	out := make([]VarRow, 0, len(buckets))
	for _, key := range order {
		b := buckets[key]
		result := make(VarRow, len(b.groupVals)+len(reducers))
		for v, val := range b.groupVals {
			result[v] = val
		}
		for i, r := range reducers {
			val, err := aggregate(r.Op, b.values[i])
			if err != nil {
				return nil, err
			}
			result[r.Target] = val
		}
		out = append(out, result)
	}
	return out, nil
}

func groupRowKey(groupBy []*ir.Variable, row VarRow) string {
	parts := make([]string, len(groupBy))
	for i, v := range groupBy {
		parts[i] = fmt.Sprintf("%v", row[v])
	}
	return fmt.Sprintf("%v", parts)
}

func aggregate(op ir.ReducerOp, values []any) (any, error) {
	switch op {
	case ir.ReduceCount:
		n := 0
		for _, v := range values {
			if v != nil {
				n++
			}
		}
		return int64(n), nil
	case ir.ReduceList:
		out := make([]any, len(values))
		copy(out, values)
		return out, nil
	}

	nums := make([]float64, 0, len(values))
	allInt := true
	for _, v := range values {
		if v == nil {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "reducer requires numeric operands")
		}
		if _, isInt := v.(int64); !isInt {
			allInt = false
		}
		nums = append(nums, f)
	}
	if len(nums) == 0 && op != ir.ReduceSum {
		return nil, nil
	}

	switch op {
	case ir.ReduceSum:
		var s float64
		for _, n := range nums {
			s += n
		}
		if allInt {
			return int64(s), nil
		}
		return s, nil
	case ir.ReduceMax:
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		if allInt {
			return int64(m), nil
		}
		return m, nil
	case ir.ReduceMin:
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		if allInt {
			return int64(m), nil
		}
		return m, nil
	case ir.ReduceMean:
		var s float64
		for _, n := range nums {
			s += n
		}
		return s / float64(len(nums)), nil
	case ir.ReduceMedian:
		sorted := append([]float64(nil), nums...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid], nil
		}
		return (sorted[mid-1] + sorted[mid]) / 2, nil
	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "unsupported reducer")
	}
}
