package engine

import (
	"testing"

	"gravix/internal/config"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Checkpoint.IntervalSeconds = 0
	e, err := Open(cfg.Keyspace.DataDir, cfg)
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("close engine: %v", err)
		}
	})
	return e
}

func mustSchema(t *testing.T, e *Engine, src string) {
	t.Helper()
	if err := e.ExecuteSchema(src); err != nil {
		t.Fatalf("schema %q: %v", src, err)
	}
}

func mustQuery(t *testing.T, e *Engine, src string) *QueryResult {
	t.Helper()
	res, err := e.Query(src)
	if err != nil {
		t.Fatalf("query %q: %v", src, err)
	}
	return res
}

// TestInsertAndMatchRoundTripsAttributeValues covers a schema definition
// followed by an instance insert and a match reading the attribute values
// back out, exercising insert, has-edges, and scalar decoding end to end.
func TestInsertAndMatchRoundTripsAttributeValues(t *testing.T) {
	e := openTestEngine(t)
	mustSchema(t, e, `
		define
			entity person;
			attribute age value integer;
			person owns age;
	`)

	mustQuery(t, e, `insert isa $p person, has $p age 10, has $p age 11;`)

	res := mustQuery(t, e, `match isa $p person, has $p age $a; select $a;`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(res.Rows), res.Rows)
	}
	seen := map[int64]bool{}
	for _, row := range res.Rows {
		a, ok := row["a"].(int64)
		if !ok {
			t.Fatalf("row %v: $a did not decode to int64", row)
		}
		seen[a] = true
	}
	if !seen[10] || !seen[11] {
		t.Fatalf("expected ages {10, 11}, got %v", seen)
	}
}

// TestOffsetLimitDistinct covers the three non-reducing stream modifiers
// against a small fixed result set.
func TestOffsetLimitDistinct(t *testing.T) {
	e := openTestEngine(t)
	mustSchema(t, e, `
		define
			entity person;
			attribute age value integer;
			person owns age;
	`)
	mustQuery(t, e, `insert isa $p person, has $p age 1;`)
	mustQuery(t, e, `insert isa $p person, has $p age 2;`)
	mustQuery(t, e, `insert isa $p person, has $p age 3;`)

	res := mustQuery(t, e, `match isa $p person, has $p age $a; select $a; sort $a asc;`)
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Rows))
	}

	res = mustQuery(t, e, `match isa $p person, has $p age $a; select $a; sort $a asc; offset 1;`)
	if len(res.Rows) != 2 || res.Rows[0]["a"] != int64(2) {
		t.Fatalf("offset 1 = %v, want rows starting at age 2", res.Rows)
	}

	res = mustQuery(t, e, `match isa $p person, has $p age $a; select $a; sort $a asc; limit 1;`)
	if len(res.Rows) != 1 || res.Rows[0]["a"] != int64(1) {
		t.Fatalf("limit 1 = %v, want a single row with age 1", res.Rows)
	}

	res = mustQuery(t, e, `match isa $p person, has $p age $a; select $a; distinct;`)
	if len(res.Rows) != 3 {
		t.Fatalf("distinct over already-unique ages = %v, want 3 rows", res.Rows)
	}
}

// TestDeleteCascadesHasEdge covers removing an entity's has-edge and the
// entity itself, then confirms a subsequent match finds nothing.
func TestDeleteCascadesHasEdge(t *testing.T) {
	e := openTestEngine(t)
	mustSchema(t, e, `
		define
			entity person;
			attribute age value integer;
			person owns age;
	`)
	mustQuery(t, e, `insert isa $p person, has $p age 10;`)

	res := mustQuery(t, e, `match isa $p person; select $p;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 person before delete, got %d", len(res.Rows))
	}

	mustQuery(t, e, `match isa $p person, has $p age $a; delete has $p age $a; delete isa $p person;`)

	res = mustQuery(t, e, `match isa $p person; select $p;`)
	if len(res.Rows) != 0 {
		t.Fatalf("expected 0 people after delete, got %d: %v", len(res.Rows), res.Rows)
	}
}

// TestSchemaMutationInvalidatesQueryCache exercises ExecuteSchema's epoch
// advance and cache purge: a query compiled under the old schema must not
// be served stale after a redefine.
func TestSchemaMutationInvalidatesQueryCache(t *testing.T) {
	e := openTestEngine(t)
	mustSchema(t, e, `
		define
			entity person;
			attribute age value integer;
			person owns age;
	`)
	mustQuery(t, e, `insert isa $p person, has $p age 1;`)

	res := mustQuery(t, e, `match isa $p person, has $p age $a; select $a;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}

	mustSchema(t, e, `define entity dog;`)
	mustQuery(t, e, `insert isa $d dog;`)

	res = mustQuery(t, e, `match isa $d dog; select $d;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 dog after the schema addition, got %d", len(res.Rows))
	}
}

// TestSchemaAndDataSurviveReopen closes an engine and reopens the same data
// directory: the schema must restore from the schema keyspaces and the
// instances from log replay, without any re-definition.
func TestSchemaAndDataSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Checkpoint.IntervalSeconds = 0

	e, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	mustSchema(t, e, `
		define
			entity person;
			attribute age value integer;
			person owns age;
	`)
	mustQuery(t, e, `insert isa $p person, has $p age 10;`)
	if err := e.Close(); err != nil {
		t.Fatalf("close engine: %v", err)
	}

	e2, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("reopen engine: %v", err)
	}
	t.Cleanup(func() { _ = e2.Close() })

	res := mustQuery(t, e2, `match isa $p person, has $p age $a; select $a;`)
	if len(res.Rows) != 1 || res.Rows[0]["a"] != int64(10) {
		t.Fatalf("expected the inserted row to survive reopen, got %v", res.Rows)
	}

	// A fresh insert after reopen must not collide with recovered object ids.
	mustQuery(t, e2, `insert isa $p person, has $p age 11;`)
	res = mustQuery(t, e2, `match isa $p person, has $p age $a; select $a;`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows after a post-reopen insert, got %d: %v", len(res.Rows), res.Rows)
	}
}

// TestRequireDropsRowsWithUnboundOptional covers try + require: a try block
// leaves its variables unbound for rows it cannot extend, and require
// filters those rows out.
func TestRequireDropsRowsWithUnboundOptional(t *testing.T) {
	e := openTestEngine(t)
	mustSchema(t, e, `
		define
			entity person;
			attribute age value integer;
			person owns age;
	`)
	mustQuery(t, e, `insert isa $p person, has $p age 30;`)
	mustQuery(t, e, `insert isa $p person;`)

	res := mustQuery(t, e, `match isa $p person, try { has $p age $a }; select $p, $a;`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows (one with a None age), got %d: %v", len(res.Rows), res.Rows)
	}

	res = mustQuery(t, e, `match isa $p person, try { has $p age $a }; require $a; select $p, $a;`)
	if len(res.Rows) != 1 || res.Rows[0]["a"] != int64(30) {
		t.Fatalf("expected require to keep only the aged person, got %v", res.Rows)
	}
}

// TestTabledRecursionTransitiveClosureOverCycle defines transitive
// reachability over a two-node edge cycle: every (source, reached) pair
// comes back exactly once, and evaluation terminates despite the cycle.
func TestTabledRecursionTransitiveClosureOverCycle(t *testing.T) {
	e := openTestEngine(t)
	mustSchema(t, e, `
		define
			entity node;
			relation edge;
			edge relates src;
			edge relates dst;
			node plays edge:src;
			node plays edge:dst;
	`)
	mustQuery(t, e, `
		insert
			isa $a node,
			isa $b node,
			isa $e1 edge, links $e1 (src: $a, dst: $b),
			isa $e2 edge, links $e2 (src: $b, dst: $a);
	`)

	res := mustQuery(t, e, `
		with fun reach($x: thing) -> stream :
			match { isa $e edge, links $e (src: $x, dst: $y) }
			   or { isa $f edge, links $f (src: $x, dst: $m), $y = reach($m) };
			return $y;
		match isa $s node, $r = reach($s);
		select $s, $r;
		distinct;
	`)
	if len(res.Rows) != 4 {
		t.Fatalf("expected all 4 (source, reached) pairs over the 2-cycle, got %d: %v", len(res.Rows), res.Rows)
	}
	pairs := map[string]bool{}
	for _, row := range res.Rows {
		s, _ := row["s"].(string)
		r, _ := row["r"].(string)
		if s == "" || r == "" {
			t.Fatalf("row %v: expected both endpoints bound", row)
		}
		pairs[s+"->"+r] = true
	}
	if len(pairs) != 4 {
		t.Fatalf("expected 4 distinct pairs, got %v", pairs)
	}
}
