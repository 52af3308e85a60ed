package parser

import "testing"

func TestParsePipelineMatchSelect(t *testing.T) {
	q, err := ParsePipeline(`
		match
			isa $p person, has $p name $n;
		select $p, $n;
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(q.Stages))
	}
	if q.Stages[0].Match == nil {
		t.Fatalf("expected first stage to be a match")
	}
	if q.Stages[1].Select == nil {
		t.Fatalf("expected second stage to be a select")
	}
}

func TestParsePipelineInsertWithLinks(t *testing.T) {
	q, err := ParsePipeline(`
		match
			isa $p person, has $p name "ada",
			isa $c company, has $c name "acme";
		insert
			isa $e employment,
			links $e (employer: $c, employee: $p);
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(q.Stages))
	}
	if q.Stages[1].Insert == nil {
		t.Fatalf("expected second stage to be an insert")
	}
	if len(q.Stages[1].Insert.Patterns) != 2 {
		t.Fatalf("expected 2 insert patterns, got %d", len(q.Stages[1].Insert.Patterns))
	}
}

func TestParsePipelineDisjunctionAndNegation(t *testing.T) {
	q, err := ParsePipeline(`
		match
			isa $p person,
			{ has $p name "ada" } or { has $p name "bob" },
			not { has $p banned true };
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	patterns := q.Stages[0].Match.Patterns
	if len(patterns) != 3 {
		t.Fatalf("expected 3 top-level patterns, got %d", len(patterns))
	}
	if patterns[1].Disjunction == nil {
		t.Fatalf("expected second pattern to be a disjunction")
	}
	if len(patterns[1].Disjunction.Branches) != 2 {
		t.Fatalf("expected 2 disjunction branches, got %d", len(patterns[1].Disjunction.Branches))
	}
	if patterns[2].Negation == nil {
		t.Fatalf("expected third pattern to be a negation")
	}
}

func TestParsePipelineFunctionDefAndReduce(t *testing.T) {
	q, err := ParsePipeline(`
		with fun age_sum($p: thing) -> reduce:
			match
				has $p age $a;
			return sum($a);
		match
			isa $p person;
		reduce count($p);
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Functions) != 1 {
		t.Fatalf("expected 1 function definition, got %d", len(q.Functions))
	}
	fd := q.Functions[0]
	if fd.Name != "age_sum" || fd.Returns != "reduce" {
		t.Fatalf("unexpected function signature: %+v", fd)
	}
	if len(fd.Args) != 1 || fd.Args[0].Category != "thing" {
		t.Fatalf("unexpected function args: %+v", fd.Args)
	}
	if len(fd.Return.Reducers) != 1 || fd.Return.Reducers[0].Op != "sum" {
		t.Fatalf("unexpected function return: %+v", fd.Return)
	}

	last := q.Stages[len(q.Stages)-1]
	if last.Reduce == nil || len(last.Reduce.Specs) != 1 || last.Reduce.Specs[0].Op != "count" {
		t.Fatalf("unexpected reduce stage: %+v", last.Reduce)
	}
}

func TestParsePipelineFetchObjectAndList(t *testing.T) {
	q, err := ParsePipeline(`
		match
			isa $p person;
		fetch {
			"name": $p.name,
			"friends": [
				match
					links $fr (member: $p, member: $f);
				fetch { "name": $f.name }
			]
		};
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Fetch == nil || len(q.Fetch.Entries) != 2 {
		t.Fatalf("expected a fetch body with 2 entries, got %+v", q.Fetch)
	}
	friends := q.Fetch.Entries[1].Value
	if friends.List == nil || friends.List.SubMatch == nil {
		t.Fatalf("expected the friends entry to be a list sub-fetch")
	}
}

func TestParseSchemaDefine(t *testing.T) {
	sq, err := ParseSchema(`
		define
			entity person;
			entity student sub person;
			attribute name value string;
			person owns name @card(0, 1);
			relation employment;
			employment relates employer;
			employment relates employee;
			person plays employment:employee;
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sq.Kind != "define" {
		t.Fatalf("expected kind define, got %q", sq.Kind)
	}
	if len(sq.Stmts) != 8 {
		t.Fatalf("expected 8 statements, got %d", len(sq.Stmts))
	}
}
