package executor

import (
	"gravix/internal/compiler"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
)

// ExecuteFetch projects row through stage's FetchSome tree into a
// document-shaped result. ann is the
// annotation set the fetch clause's sub-pipelines (ListSubFetch) were
// compiled against.
func ExecuteFetch(ctx *Context, ann inference.Annotations, stage *compiler.FetchStage, row VarRow) (map[string]any, error) {
	return executeFetchEntries(ctx, ann, stage.Root, row)
}

func executeFetchEntries(ctx *Context, ann inference.Annotations, entries map[string]compiler.FetchSome, row VarRow) (map[string]any, error) {
	out := make(map[string]any, len(entries))
	for key, some := range entries {
		v, err := executeFetchSome(ctx, ann, some, row)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func executeFetchSome(ctx *Context, ann inference.Annotations, some compiler.FetchSome, row VarRow) (any, error) {
	switch t := some.(type) {
	case compiler.SingleVar:
		return fetchScalar(row[t.Var]), nil

	case compiler.SingleAttribute:
		owner, ok := row[t.Var].(*Concept)
		if !ok {
			return nil, nil
		}
		concepts, err := scanHasForward(ctx, owner.Type.ID, owner.Object, t.AttrType)
		if err != nil {
			return nil, err
		}
		if len(concepts) == 0 {
			return nil, nil
		}
		return resolveAttributeValue(ctx, t.AttrType, concepts[0].Attr)

	case compiler.SingleFunction:
		rows, err := ctx.callFunctionForFetch(t.Function, t.Args, row)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return fetchTupleValue(rows[0]), nil

	case compiler.Object:
		return executeFetchEntries(ctx, ann, t.Entries, row)

	case compiler.ListFunction:
		rows, err := ctx.callFunctionForFetch(t.Function, t.Args, row)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = fetchTupleValue(r)
		}
		return out, nil

	case compiler.ListSubFetch:
		subRows, err := runFetchSubPipeline(ctx, ann, t.Pipeline, row)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(subRows))
		for i, sub := range subRows {
			doc, err := executeFetchEntries(ctx, ann, t.Fetch, sub)
			if err != nil {
				return nil, err
			}
			out[i] = doc
		}
		return out, nil

	case compiler.ListAttributesAsList:
		owner, ok := row[t.Var].(*Concept)
		if !ok {
			return []any{}, nil
		}
		concepts, err := scanHasForward(ctx, owner.Type.ID, owner.Object, t.AttrType)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(concepts))
		for _, c := range concepts {
			v, err := resolveAttributeValue(ctx, t.AttrType, c.Attr)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case compiler.ListAttributesFromList:
		list, _ := row[t.Var].([]any)
		return list, nil

	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "fetch: unsupported projection entry")
	}
}

func fetchScalar(v any) any {
	if c, ok := v.(*Concept); ok && c.IsAttribute() {
		return c.Value
	}
	return v
}

func fetchTupleValue(row Row) any {
	if len(row) == 0 {
		return nil
	}
	if len(row) == 1 {
		return fetchScalar(row[0])
	}
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = fetchScalar(v)
	}
	return out
}

// callFunctionForFetch resolves a fetch clause's function-call arguments
// from row's already-bound values and runs it to completion.
func (ctx *Context) callFunctionForFetch(name string, args []*ir.Variable, row VarRow) ([]Row, error) {
	cf, err := ctx.compileFunction(name)
	if err != nil {
		return nil, err
	}
	argValues := make([]any, len(args))
	for i, v := range args {
		argValues[i] = row[v]
	}
	return ctx.callFunctionWithValues(cf, argValues)
}

// runFetchSubPipeline runs a ListSubFetch's nested match pipeline for one
// outer row, bridging any outer variable the sub-pipeline also references
// (by *ir.Variable identity, the same bridging function.go uses between a
// function's pipeline blocks) and returning each result row as a VarRow.
func runFetchSubPipeline(ctx *Context, ann inference.Annotations, pipeline *compiler.MatchStage, outer VarRow) ([]VarRow, error) {
	init := newEmptyRow(pipeline.Positions.Width())
	for v, val := range outer {
		if pos, ok := pipeline.Positions.LookupPosition(v); ok {
			init[pos] = val
		}
	}
	rows, err := RunMatch(ctx, pipeline, ann, []Row{init})
	if err != nil {
		return nil, err
	}
	return toVarRows(pipeline.Positions, rows), nil
}
