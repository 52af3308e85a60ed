package executor

import (
	"testing"

	"gravix/internal/ir"
)

func TestReduceVarRowsGroupsAndAggregates(t *testing.T) {
	group, val := testVar("group"), testVar("val")

	rows := []VarRow{
		{group: "a", val: int64(1)},
		{group: "a", val: int64(2)},
		{group: "b", val: int64(10)},
	}
	reducers := []ir.Reducer{
		{Op: ir.ReduceSum, Target: val},
	}

	out, err := reduceVarRows([]*ir.Variable{group}, reducers, rows)
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", len(out), out)
	}
	byGroup := map[any]any{}
	for _, r := range out {
		byGroup[r[group]] = r[val]
	}
	if byGroup["a"] != int64(3) {
		t.Fatalf("group a sum = %v, want 3", byGroup["a"])
	}
	if byGroup["b"] != int64(10) {
		t.Fatalf("group b sum = %v, want 10", byGroup["b"])
	}
}

func TestReduceVarRowsNoGroupByProducesSingleBucket(t *testing.T) {
	val := testVar("val")
	rows := []VarRow{{val: int64(1)}, {val: int64(2)}, {val: int64(3)}}
	reducers := []ir.Reducer{{Op: ir.ReduceCount, Target: val}}

	out, err := reduceVarRows(nil, reducers, rows)
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	if out[0][val] != int64(3) {
		t.Fatalf("count = %v, want 3", out[0][val])
	}
}

func TestReduceVarRowsEmptyInputStillProducesBucketWhenNoGroupBy(t *testing.T) {
	val := testVar("val")
	reducers := []ir.Reducer{{Op: ir.ReduceCount, Target: val}}

	out, err := reduceVarRows(nil, reducers, nil)
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket for an empty stream with no group-by, got %d", len(out))
	}
	if out[0][val] != int64(0) {
		t.Fatalf("count over empty input = %v, want 0", out[0][val])
	}
}

func TestAggregateOps(t *testing.T) {
	vals := []any{int64(4), int64(1), int64(7), int64(2)}

	got, err := aggregate(ir.ReduceMax, vals)
	if err != nil || got != int64(7) {
		t.Fatalf("max = %v, %v, want 7", got, err)
	}
	got, err = aggregate(ir.ReduceMin, vals)
	if err != nil || got != int64(1) {
		t.Fatalf("min = %v, %v, want 1", got, err)
	}
	got, err = aggregate(ir.ReduceMean, vals)
	if err != nil || got != 3.5 {
		t.Fatalf("mean = %v, %v, want 3.5", got, err)
	}
	got, err = aggregate(ir.ReduceMedian, vals)
	if err != nil || got != 3.0 {
		t.Fatalf("median = %v, %v, want 3.0", got, err)
	}
	listVal, err := aggregate(ir.ReduceList, vals)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	l, ok := listVal.([]any)
	if !ok || len(l) != 4 {
		t.Fatalf("list = %v, want a 4-element slice", listVal)
	}
}

func TestAggregateCountIgnoresNils(t *testing.T) {
	got, err := aggregate(ir.ReduceCount, []any{int64(1), nil, int64(2), nil})
	if err != nil || got != int64(2) {
		t.Fatalf("count = %v, %v, want 2", got, err)
	}
}

func TestAggregateSumRejectsNonNumeric(t *testing.T) {
	_, err := aggregate(ir.ReduceSum, []any{"not a number"})
	if err == nil {
		t.Fatal("expected an error summing a non-numeric value")
	}
}
