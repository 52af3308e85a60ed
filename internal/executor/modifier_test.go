package executor

import (
	"testing"

	"gravix/internal/compiler"
	"gravix/internal/ir"
)

func testVar(name string) *ir.Variable {
	b := ir.NewBlock(nil)
	return b.Resolve(name)
}

func TestExecuteModifierOffsetAndLimit(t *testing.T) {
	p := testVar("p")
	rows := []VarRow{{p: int64(1)}, {p: int64(2)}, {p: int64(3)}}

	off := compiler.CompileOffset(1)
	got, err := ExecuteModifier(off, rows)
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if len(got) != 2 || got[0][p] != int64(2) || got[1][p] != int64(3) {
		t.Fatalf("offset(1) = %v, want [2 3]", got)
	}

	lim := compiler.CompileLimit(2)
	got, err = ExecuteModifier(lim, rows)
	if err != nil {
		t.Fatalf("limit: %v", err)
	}
	if len(got) != 2 || got[0][p] != int64(1) || got[1][p] != int64(2) {
		t.Fatalf("limit(2) = %v, want [1 2]", got)
	}

	// Offset/limit beyond the row count clamp rather than panic.
	got, err = ExecuteModifier(compiler.CompileOffset(10), rows)
	if err != nil || len(got) != 0 {
		t.Fatalf("offset(10) = %v, %v, want empty", got, err)
	}
	got, err = ExecuteModifier(compiler.CompileLimit(10), rows)
	if err != nil || len(got) != 3 {
		t.Fatalf("limit(10) = %v, %v, want all 3 rows", got, err)
	}
}

func TestExecuteModifierDistinct(t *testing.T) {
	p := testVar("p")
	rows := []VarRow{
		{p: int64(1)},
		{p: int64(2)},
		{p: int64(1)},
	}
	dist := compiler.CompileDistinct([]*ir.Variable{p})
	got, err := ExecuteModifier(dist, rows)
	if err != nil {
		t.Fatalf("distinct: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("distinct = %v, want 2 unique rows", got)
	}
	if got[0][p] != int64(1) || got[1][p] != int64(2) {
		t.Fatalf("distinct did not preserve first-seen order: %v", got)
	}
}

func TestExecuteModifierSelectProjectsOnlyListedVars(t *testing.T) {
	p, a := testVar("p"), testVar("a")
	rows := []VarRow{{p: int64(1), a: "ada"}}
	sel := compiler.CompileSelect([]*ir.Variable{p})
	got, err := ExecuteModifier(sel, rows)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("select = %v, want 1 row", got)
	}
	if _, ok := got[0][a]; ok {
		t.Fatalf("select kept a dropped variable: %v", got[0])
	}
	if got[0][p] != int64(1) {
		t.Fatalf("select dropped the selected variable: %v", got[0])
	}
}

func TestExecuteModifierSortAscendingAndDescending(t *testing.T) {
	p := testVar("p")
	rows := []VarRow{{p: int64(3)}, {p: int64(1)}, {p: int64(2)}}

	asc := compiler.CompileSort([]*ir.Variable{p}, []bool{false})
	got, err := ExecuteModifier(asc, rows)
	if err != nil {
		t.Fatalf("sort asc: %v", err)
	}
	if got[0][p] != int64(1) || got[1][p] != int64(2) || got[2][p] != int64(3) {
		t.Fatalf("sort asc = %v, want [1 2 3]", got)
	}

	desc := compiler.CompileSort([]*ir.Variable{p}, []bool{true})
	got, err = ExecuteModifier(desc, rows)
	if err != nil {
		t.Fatalf("sort desc: %v", err)
	}
	if got[0][p] != int64(3) || got[1][p] != int64(2) || got[2][p] != int64(1) {
		t.Fatalf("sort desc = %v, want [3 2 1]", got)
	}

	// The original slice must not be mutated by sort.
	if rows[0][p] != int64(3) {
		t.Fatalf("sort mutated its input: %v", rows)
	}
}

func TestExecuteModifierSortNilsFirst(t *testing.T) {
	p := testVar("p")
	rows := []VarRow{{p: int64(5)}, {p: nil}}
	asc := compiler.CompileSort([]*ir.Variable{p}, []bool{false})
	got, err := ExecuteModifier(asc, rows)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if got[0][p] != nil || got[1][p] != int64(5) {
		t.Fatalf("sort with nil = %v, want nil first", got)
	}
}
