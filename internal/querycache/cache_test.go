package querycache

import (
	"testing"

	"gravix/internal/ir"
	"gravix/internal/parser"
)

func translate(t *testing.T, src string) *parser.Pipeline {
	t.Helper()
	q, err := parser.ParsePipeline(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr := parser.NewTranslator(ir.NewFunctionIndex())
	p, err := tr.TranslateQuery(q)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	return p
}

func TestHashPipelineIsDeterministicAcrossEquivalentSource(t *testing.T) {
	a := translate(t, `match isa $p person, has $p age $x; select $x;`)
	b := translate(t, `
		match
			isa $p person,
			has $p age $x;
		select $x;
	`)
	if HashPipeline(a, 1) != HashPipeline(b, 1) {
		t.Fatal("differently-formatted but structurally identical pipelines should hash equal")
	}
}

func TestHashPipelineDiffersOnSchemaEpoch(t *testing.T) {
	p := translate(t, `match isa $p person; select $p;`)
	if HashPipeline(p, 1) == HashPipeline(p, 2) {
		t.Fatal("the same pipeline under two different schema epochs must not collide")
	}
}

func TestHashPipelineDiffersOnStructure(t *testing.T) {
	a := translate(t, `match isa $p person; select $p;`)
	b := translate(t, `match isa $p dog; select $p;`)
	if HashPipeline(a, 1) == HashPipeline(b, 1) {
		t.Fatal("pipelines matching different type labels should hash differently")
	}
}

func TestHashPipelineDiffersOnOffsetLimit(t *testing.T) {
	a := translate(t, `match isa $p person; select $p; offset 0; limit 10;`)
	b := translate(t, `match isa $p person; select $p; offset 0; limit 5;`)
	if HashPipeline(a, 1) == HashPipeline(b, 1) {
		t.Fatal("different limit values should hash differently")
	}
}

func TestCacheGetPutPurgeLen(t *testing.T) {
	c, err := New[string](2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Get(Key(1)); ok {
		t.Fatal("fresh cache should report a miss")
	}

	c.Put(Key(1), "one")
	c.Put(Key(2), "two")
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	v, ok := c.Get(Key(1))
	if !ok || v != "one" {
		t.Fatalf("Get(1) = %q, %v, want \"one\", true", v, ok)
	}

	// A third insert evicts the least recently used entry (key 2, since
	// key 1 was just touched by Get).
	c.Put(Key(3), "three")
	if c.Len() != 2 {
		t.Fatalf("Len() after eviction = %d, want 2", c.Len())
	}
	if _, ok := c.Get(Key(2)); ok {
		t.Fatal("key 2 should have been evicted as least recently used")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len() after Purge = %d, want 0", c.Len())
	}
}
