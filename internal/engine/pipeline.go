package engine

import (
	"fmt"

	"gravix/internal/compiler"
	"gravix/internal/core"
	"gravix/internal/executor"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/parser"
	"gravix/internal/planner"
	"gravix/internal/querycache"
	"gravix/internal/storage"
	"gravix/internal/thing"
)

// compiledStage is one pipeline stage's compiled form, plus the row-position
// table its input rows must be bridged into before it runs. Exactly one of
// match/insert/del/update/reduce/modifier is set, chosen by kind; put sets
// both match and insert.
type compiledStage struct {
	kind parser.StageKind

	match  *compiler.MatchStage
	insert *compiler.InsertStage
	del    *compiler.DeleteStage
	update *compiler.UpdateStage

	reduce   *compiler.ReduceStage
	modifier *compiler.ModifierStage

	ann       inference.Annotations
	positions *compiler.VariablePositions // nil for modifier stages; a reduce stage holds the preceding stage's positions
}

// compiledQuery is a fully compiled pipeline: translation, inference,
// planning and compilation all performed against one shared set of
// *ir.Variable pointers. A cache hit reuses this bundle wholesale — a
// compiled stage is never paired with a freshly translated pipeline's rows,
// since translation allocates new variable identities on every call.
type compiledQuery struct {
	functions *ir.FunctionIndex
	stages    []*compiledStage
	writes    bool

	fetch          *compiler.FetchStage
	fetchAnn       inference.Annotations
	finalPositions *compiler.VariablePositions
}

// QueryResult holds a completed query's output: plain rows for a pipeline
// ending in match/select/reduce/etc, or documents for one ending in fetch.
// Exactly one of Rows, Documents is populated.
type QueryResult struct {
	Rows      []map[string]any
	Documents []map[string]any
}

// Query parses, translates, plans, compiles (or reuses a cached compilation
// of), and runs src, returning its projected rows or fetched documents.
func (e *Engine) Query(src string) (*QueryResult, error) {
	pipeline, err := e.translate(src)
	if err != nil {
		return nil, err
	}

	epoch := e.epoch.Current()
	key := querycache.HashPipeline(pipeline, epoch)

	cq, ok := e.cache.Get(key)
	if !ok {
		cq, err = e.compilePipeline(pipeline)
		if err != nil {
			return nil, err
		}
		// Only read pipelines are cached; a write pipeline's compiled form
		// is cheap relative to its execution and caching it would let a
		// stale statistics-driven plan outlive the data it was costed on.
		if !cq.writes {
			e.cache.Put(key, cq)
		}
	}
	return e.run(cq)
}

func (e *Engine) compilePipeline(pipeline *parser.Pipeline) (*compiledQuery, error) {
	tabled := inference.TabledFunctions(pipeline.Functions)
	cost := planner.NewCostModel(e.things.Statistics())
	comp := compiler.New(planner.NewPlanner(cost, tabled))

	cq := &compiledQuery{functions: pipeline.Functions}
	var ann inference.Annotations
	var lastPositions *compiler.VariablePositions

	for _, stage := range pipeline.Stages {
		cs := &compiledStage{kind: stage.Kind}

		switch stage.Kind {
		case parser.StageMatch:
			a, err := e.infer.InferBlock(stage.Block, ann)
			if err != nil {
				return nil, gravixerr.Wrap(gravixerr.CodeNoPlanPossible, "infer match stage", err)
			}
			ann = a
			cs.ann = a
			cs.match = comp.CompileMatch(stage.Block, a)
			lastPositions = cs.match.Positions

		case parser.StageInsert:
			a, err := e.infer.InferBlock(stage.Block, ann)
			if err != nil {
				return nil, gravixerr.Wrap(gravixerr.CodeNoPlanPossible, "infer insert stage", err)
			}
			ann = a
			cs.ann = a
			ins, err := compiler.LowerInsert(stage.Block, a)
			if err != nil {
				return nil, err
			}
			cs.insert = ins
			cs.positions = extendPositions(lastPositions, stage.Block)
			lastPositions = cs.positions
			cq.writes = true

		case parser.StageDelete:
			a, err := e.infer.InferBlock(stage.Block, ann)
			if err != nil {
				return nil, gravixerr.Wrap(gravixerr.CodeNoPlanPossible, "infer delete stage", err)
			}
			ann = a
			cs.ann = a
			del, err := compiler.LowerDelete(stage.Block, a)
			if err != nil {
				return nil, err
			}
			cs.del = del
			cs.positions = extendPositions(lastPositions, stage.Block)
			lastPositions = cs.positions
			cq.writes = true

		case parser.StageUpdate:
			a, err := e.infer.InferBlock(stage.Block, ann)
			if err != nil {
				return nil, gravixerr.Wrap(gravixerr.CodeNoPlanPossible, "infer update stage", err)
			}
			ann = a
			cs.ann = a
			upd, err := compiler.LowerUpdate(stage.Block, a, stage.UpdateGuard)
			if err != nil {
				return nil, err
			}
			cs.update = upd
			cs.positions = extendPositions(lastPositions, stage.Block)
			lastPositions = cs.positions
			cq.writes = true

		case parser.StagePut:
			// put is match-or-insert: the same block compiles as both a
			// match (to test whether it's already satisfied) and an
			// insert (run only when the match comes up empty).
			a, err := e.infer.InferBlock(stage.Block, ann)
			if err != nil {
				return nil, gravixerr.Wrap(gravixerr.CodeNoPlanPossible, "infer put stage", err)
			}
			ann = a
			cs.ann = a
			cs.match = comp.CompileMatch(stage.Block, a)
			ins, err := compiler.LowerInsert(stage.Block, a)
			if err != nil {
				return nil, err
			}
			cs.insert = ins
			lastPositions = cs.match.Positions
			cq.writes = true

		case parser.StageReduce:
			cs.reduce = compiler.CompileReduce(stage.ReduceGroupBy, stage.ReduceReducers)
			cs.positions = lastPositions

		case parser.StageSelect:
			cs.modifier = compiler.CompileSelect(stage.SelectVars)

		case parser.StageSort:
			vars := make([]*ir.Variable, len(stage.SortKeys))
			desc := make([]bool, len(stage.SortKeys))
			for i, k := range stage.SortKeys {
				vars[i], desc[i] = k.Var, k.Descending
			}
			cs.modifier = compiler.CompileSort(vars, desc)

		case parser.StageOffset:
			cs.modifier = compiler.CompileOffset(int(stage.Offset))

		case parser.StageLimit:
			cs.modifier = compiler.CompileLimit(int(stage.Limit))

		case parser.StageDistinct:
			cs.modifier = compiler.CompileDistinct(nil)

		case parser.StageRequire:
			cs.modifier = compiler.CompileRequire(stage.RequireVars)

		default:
			return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "unsupported pipeline stage")
		}

		cq.stages = append(cq.stages, cs)
	}

	if pipeline.Fetch != nil {
		fetch, err := comp.CompileFetch(pipeline.Fetch.Entries, ann, e.schema)
		if err != nil {
			return nil, err
		}
		cq.fetch = fetch
		cq.fetchAnn = ann
	}
	cq.finalPositions = lastPositions
	return cq, nil
}

// extendPositions builds the position table a write stage's rows are
// addressed by: every variable the previous stage already positioned, plus
// any new variable stage's own block introduces (the things it creates).
func extendPositions(prev *compiler.VariablePositions, b *ir.Block) *compiler.VariablePositions {
	positions := compiler.NewVariablePositions()
	if prev != nil {
		for _, v := range prev.Variables() {
			positions.PositionOf(v)
		}
	}
	for _, v := range blockVariables(b) {
		positions.PositionOf(v)
	}
	return positions
}

func blockVariables(b *ir.Block) []*ir.Variable {
	seen := make(map[*ir.Variable]bool)
	var out []*ir.Variable
	add := func(v *ir.Variable) {
		if v == nil || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}
	for _, c := range b.Constraints {
		switch t := c.(type) {
		case ir.Isa:
			add(t.Thing)
			add(t.Type)
		case ir.Has:
			add(t.Owner)
			add(t.Attribute)
		case ir.Links:
			add(t.Relation)
			add(t.Player)
			add(t.Role)
		case ir.ExpressionBinding:
			add(t.Var)
			for _, v := range expressionVariables(t.Expr) {
				add(v)
			}
		}
	}
	return out
}

func expressionVariables(e *ir.Expression) []*ir.Variable {
	if e == nil {
		return nil
	}
	if e.IsLeaf() {
		if e.Variable != nil {
			return []*ir.Variable{e.Variable}
		}
		return nil
	}
	var out []*ir.Variable
	for _, child := range e.Children {
		out = append(out, expressionVariables(child)...)
	}
	return out
}

// run executes a compiled query against a fresh snapshot: a read snapshot
// for a read-only pipeline, a write snapshot (committed at the end) for one
// containing insert/delete/update/put stages.
func (e *Engine) run(cq *compiledQuery) (*QueryResult, error) {
	var w *storage.WriteSnapshot
	var snap executor.Snapshot
	if cq.writes {
		// A write pipeline's match stages scan through the write snapshot
		// itself, so a stage sees what earlier stages of the same
		// transaction buffered.
		w = e.store.OpenWrite()
		snap = w
	} else {
		snap = e.store.OpenRead()
	}

	ctx := executor.NewContext(snap, e.schema, e.things)
	if cq.functions != nil && len(cq.functions.Names()) > 0 {
		comp := compiler.New(planner.NewPlanner(planner.NewCostModel(e.things.Statistics()), inference.TabledFunctions(cq.functions)))
		ctx = ctx.WithFunctions(cq.functions, e.infer, comp)
	}

	delta := thing.NewDelta()

	var rows []executor.Row
	var varRows []executor.VarRow
	usingVarRows := false
	var curPositions *compiler.VariablePositions

	for _, cs := range cq.stages {
		var err error
		switch cs.kind {
		case parser.StageMatch:
			input := bridgeRows(curPositions, cs.match.Positions, rows)
			rows, err = executor.RunMatch(ctx, cs.match, cs.ann, input)
			curPositions = cs.match.Positions

		case parser.StageInsert:
			input := bridgeRows(curPositions, cs.positions, rows)
			rows, err = executor.ExecuteInsert(ctx, w, delta, cs.insert, cs.positions, input)
			curPositions = cs.positions

		case parser.StageDelete:
			input := bridgeRows(curPositions, cs.positions, rows)
			err = executor.ExecuteDelete(ctx, w, delta, cs.del, cs.positions, input)
			rows = input
			curPositions = cs.positions

		case parser.StageUpdate:
			input := bridgeRows(curPositions, cs.positions, rows)
			err = executor.ExecuteUpdate(ctx, w, delta, cs.update, cs.positions, input)
			rows = input
			curPositions = cs.positions

		case parser.StagePut:
			rows, err = runPut(ctx, w, delta, cs, curPositions, rows)
			curPositions = cs.match.Positions

		case parser.StageReduce:
			varRows, err = executor.ExecuteReduce(curPositions, cs.reduce, rows)
			usingVarRows = true

		case parser.StageSelect, parser.StageSort, parser.StageOffset, parser.StageLimit, parser.StageDistinct, parser.StageRequire:
			if !usingVarRows {
				varRows = rowsToVarRows(curPositions, rows)
				usingVarRows = true
			}
			varRows, err = executor.ExecuteModifier(cs.modifier, varRows)
		}
		if err != nil {
			return nil, err
		}
	}

	if cq.writes {
		if err := e.things.ValidateCardinality(w, e.schema, delta); err != nil {
			return nil, err
		}
		// Commit already returns coded errors (isolation conflict vs
		// durability/keyspace I/O); pass them through unchanged so callers
		// can branch on retryability.
		if err := w.Commit(); err != nil {
			return nil, err
		}
	}

	result := &QueryResult{}
	switch {
	case cq.fetch != nil:
		if !usingVarRows {
			varRows = rowsToVarRows(curPositions, rows)
		}
		for _, vr := range varRows {
			doc, err := executor.ExecuteFetch(ctx, cq.fetchAnn, cq.fetch, vr)
			if err != nil {
				return nil, err
			}
			result.Documents = append(result.Documents, doc)
		}
	case usingVarRows:
		for _, vr := range varRows {
			result.Rows = append(result.Rows, varRowToMap(vr))
		}
	default:
		for _, row := range rows {
			result.Rows = append(result.Rows, rowToMap(curPositions, row))
		}
	}
	return result, nil
}

// runPut tries stage's match over each bridged input row independently; a
// row for which the match yields nothing is inserted instead. This keeps
// put's match-or-insert decision local to each row rather than to the whole
// batch, so a put stage downstream of a match producing a mix of existing
// and missing rows does the right thing for both.
func runPut(ctx *executor.Context, w *storage.WriteSnapshot, delta *thing.Delta, cs *compiledStage, curPositions *compiler.VariablePositions, rows []executor.Row) ([]executor.Row, error) {
	bridged := bridgeRows(curPositions, cs.match.Positions, rows)
	var out []executor.Row
	for _, row := range bridged {
		matched, err := executor.RunMatch(ctx, cs.match, cs.ann, []executor.Row{row})
		if err != nil {
			return nil, err
		}
		if len(matched) > 0 {
			out = append(out, matched...)
			continue
		}
		inserted, err := executor.ExecuteInsert(ctx, w, delta, cs.insert, cs.match.Positions, []executor.Row{row})
		if err != nil {
			return nil, err
		}
		out = append(out, inserted...)
	}
	return out, nil
}

// bridgeRows remaps rows (positioned per prev) into cur's position space,
// the same way internal/executor/function.go bridges row values between a
// function's independently-compiled blocks. A nil prev means this is the
// pipeline's first row-producing stage: rows is seeded with a single empty
// row so downstream stages with no preceding match still run once.
func bridgeRows(prev, cur *compiler.VariablePositions, rows []executor.Row) []executor.Row {
	if prev == nil {
		return []executor.Row{make(executor.Row, cur.Width())}
	}
	out := make([]executor.Row, len(rows))
	for i, row := range rows {
		nr := make(executor.Row, cur.Width())
		for _, v := range prev.Variables() {
			if pos, ok := cur.LookupPosition(v); ok {
				nr[pos] = row[prev.PositionOf(v)]
			}
		}
		out[i] = nr
	}
	if len(out) == 0 {
		return []executor.Row{make(executor.Row, cur.Width())}
	}
	return out
}

func rowsToVarRows(positions *compiler.VariablePositions, rows []executor.Row) []executor.VarRow {
	if positions == nil {
		return nil
	}
	out := make([]executor.VarRow, len(rows))
	for i, row := range rows {
		vr := make(executor.VarRow, positions.Width())
		for _, v := range positions.Variables() {
			vr[v] = row[positions.PositionOf(v)]
		}
		out[i] = vr
	}
	return out
}

func rowToMap(positions *compiler.VariablePositions, row executor.Row) map[string]any {
	out := make(map[string]any, positions.Width())
	for _, v := range positions.Variables() {
		out[v.Name] = scalarValue(row[positions.PositionOf(v)])
	}
	return out
}

func varRowToMap(vr executor.VarRow) map[string]any {
	out := make(map[string]any, len(vr))
	for v, val := range vr {
		out[v.Name] = scalarValue(val)
	}
	return out
}

// scalarValue renders a row value the way a caller printing a result wants
// it: an attribute concept unwraps to its decoded value, an entity/relation
// concept becomes a short "label#id" descriptor, a bare schema type becomes
// its label.
func scalarValue(v any) any {
	switch t := v.(type) {
	case *executor.Concept:
		if t == nil {
			return nil
		}
		if t.IsAttribute() {
			return t.Value
		}
		return fmt.Sprintf("%s#%d", t.Type.Label, t.Object)
	case *core.Type:
		if t == nil {
			return nil
		}
		return t.Label
	default:
		return v
	}
}
