package executor

import (
	"testing"
)

func TestTableRegistryClaimGrantsOneProducer(t *testing.T) {
	reg := NewTableRegistry()
	key := TableKey{FunctionID: "reaches", Args: "[1]"}

	_, producer := reg.Claim(key)
	if !producer {
		t.Fatal("first claim on a fresh key should be granted producer status")
	}

	entry, producer := reg.Claim(key)
	if producer {
		t.Fatal("a second claim while the entry is still producing must not also be granted producer status")
	}
	if entry == nil {
		t.Fatal("claim should still return the shared entry for a non-producer")
	}
}

func TestTableRegistryClaimAfterDoneIsNotProducer(t *testing.T) {
	reg := NewTableRegistry()
	key := TableKey{FunctionID: "reaches", Args: "[1]"}

	entry, _ := reg.Claim(key)
	entry.markDone()

	_, producer := reg.Claim(key)
	if producer {
		t.Fatal("claiming a done entry must not grant producer status")
	}
}

func TestTableEntryAppendDeduplicatesByRowKey(t *testing.T) {
	e := newTableEntry()
	row1 := Row{int64(1), int64(2)}
	row2 := Row{int64(1), int64(2)}
	row3 := Row{int64(3), int64(4)}

	if !e.append(row1) {
		t.Fatal("first append of a new row should report true")
	}
	if e.append(row2) {
		t.Fatal("appending a value-equal row should report false (already present)")
	}
	if !e.append(row3) {
		t.Fatal("appending a distinct row should report true")
	}
	if e.count() != 2 {
		t.Fatalf("count = %d, want 2", e.count())
	}
}

func TestTableEntryRowsFromReturnsOnlyNewRows(t *testing.T) {
	e := newTableEntry()
	e.append(Row{int64(1)})
	e.append(Row{int64(2)})

	rows := e.rowsFrom(0)
	if len(rows) != 2 {
		t.Fatalf("rowsFrom(0) = %v, want 2 rows", rows)
	}

	rows = e.rowsFrom(2)
	if len(rows) != 0 {
		t.Fatalf("rowsFrom(2) = %v, want none (nothing appended since)", rows)
	}

	e.append(Row{int64(3)})
	rows = e.rowsFrom(2)
	if len(rows) != 1 || rows[0][0] != int64(3) {
		t.Fatalf("rowsFrom(2) after a new append = %v, want [[3]]", rows)
	}
}

func TestTableEntryIsDoneReflectsMarkDone(t *testing.T) {
	e := newTableEntry()
	if e.isDone() {
		t.Fatal("a fresh entry should not be done")
	}
	e.markDone()
	if !e.isDone() {
		t.Fatal("markDone should make isDone report true")
	}
}

func TestNewTableKeyUsesRowValueEquality(t *testing.T) {
	k1 := NewTableKey("reaches", Row{int64(1), "x"})
	k2 := NewTableKey("reaches", Row{int64(1), "x"})
	k3 := NewTableKey("reaches", Row{int64(2), "x"})

	if k1 != k2 {
		t.Fatalf("value-equal argument rows should produce equal TableKeys: %v != %v", k1, k2)
	}
	if k1 == k3 {
		t.Fatal("different argument rows should produce different TableKeys")
	}
}
