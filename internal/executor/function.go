package executor

import (
	"fmt"

	"gravix/internal/compiler"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/planner"
)

// compiledFunction is a function body lowered once and cached per Context:
// one compiled MatchStage plus its inferred annotations for each block of
// the function's pipeline, in source order. Later blocks inherit the annotations of earlier
// ones exactly the way a nested pattern inherits its parent's.
type compiledFunction struct {
	def    *ir.FunctionDef
	stages []*compiler.MatchStage
	anns   []inference.Annotations
}

// compileFunction lazily compiles and caches name's body.
func (c *Context) compileFunction(name string) (*compiledFunction, error) {
	c.funcMu.Lock()
	defer c.funcMu.Unlock()
	if cf, ok := c.funcCache[name]; ok {
		return cf, nil
	}
	if c.Functions == nil || c.Infer == nil || c.Compiler == nil {
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "function call requires a context built with WithFunctions")
	}
	def, ok := c.Functions.Get(name)
	if !ok {
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, fmt.Sprintf("function %q has no translated body", name))
	}
	cf := &compiledFunction{def: def}
	var outer inference.Annotations
	for _, block := range def.Pipeline {
		ann, err := c.Infer.InferBlock(block, outer)
		if err != nil {
			return nil, gravixerr.Wrap(gravixerr.CodeExecutableCompile, fmt.Sprintf("infer function %q", name), err)
		}
		cf.stages = append(cf.stages, c.Compiler.CompileMatch(block, ann))
		cf.anns = append(cf.anns, ann)
		outer = ann
	}
	c.funcCache[name] = cf
	return cf, nil
}

// runFunctionCallInstruction executes a plain (non-tabled) function call
// instruction for every input row, joining the callee's return tuples onto
// the outer row nested-loop style — the UnsortedJoinStep semantics
// instructions.go's expand explicitly declines to provide for function
// calls.
func runFunctionCallInstruction(ctx *Context, instr planner.FunctionCallInstruction, positions *compiler.VariablePositions, rows []Row) ([]Row, error) {
	cf, err := ctx.compileFunction(instr.Binding.Function)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range rows {
		if err := ctx.checkInterrupt(); err != nil {
			return nil, err
		}
		results, err := ctx.callFunction(cf, instr.Binding.Args, positions, row)
		if err != nil {
			return nil, err
		}
		for _, tuple := range results {
			nr := row.Clone()
			for i, v := range instr.Binding.Assigned {
				if i < len(tuple) {
					nr[positions.PositionOf(v)] = tuple[i]
				}
			}
			out = append(out, nr)
		}
	}
	return out, nil
}

// callFunction runs cf's whole pipeline for one set of caller-bound argument
// values, returning every return tuple (width len(cf.def.Return.Vars) for
// ReturnStream/ReturnSingle, len(Reducers) for ReturnReduce, 1 for
// ReturnCheck) the call produces.
func (ctx *Context) callFunction(cf *compiledFunction, args []*ir.Variable, callerPositions *compiler.VariablePositions, callerRow Row) ([]Row, error) {
	argValues := make([]any, len(args))
	for i, v := range args {
		argValues[i] = callerRow[callerPositions.PositionOf(v)]
	}
	return ctx.callFunctionWithValues(cf, argValues)
}

// callFunctionWithValues is callFunction's value-only core, used directly by
// the expression evaluator's OpFunctionCall node (internal/executor/eval.go)
// where arguments are already-evaluated scalars rather than caller row
// slots.
func (ctx *Context) callFunctionWithValues(cf *compiledFunction, argValues []any) ([]Row, error) {
	if len(cf.stages) == 0 {
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, fmt.Sprintf("function %q has an empty pipeline", cf.def.Signature.Name))
	}
	first := cf.stages[0]
	init := newEmptyRow(first.Positions.Width())
	for i, argSpec := range cf.def.Signature.Args {
		if i >= len(argValues) {
			break
		}
		argVar := cf.def.Pipeline[0].Resolve(argSpec.Name)
		if pos, ok := first.Positions.LookupPosition(argVar); ok {
			init[pos] = argValues[i]
		}
	}

	rows, err := RunMatch(ctx, first, cf.anns[0], []Row{init})
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(cf.stages); i++ {
		prev, cur := cf.stages[i-1], cf.stages[i]
		var bridged []Row
		for _, row := range rows {
			nr := newEmptyRow(cur.Positions.Width())
			for _, v := range prev.Positions.Variables() {
				if pos, ok := cur.Positions.LookupPosition(v); ok {
					nr[pos] = row[prev.Positions.PositionOf(v)]
				}
			}
			bridged = append(bridged, nr)
		}
		rows, err = RunMatch(ctx, cur, cf.anns[i], bridged)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
	}

	last := cf.stages[len(cf.stages)-1]
	return applyReturn(cf.def.Return, last.Positions, rows)
}

// applyReturn converts a function's final row set into its declared return
// shape.
func applyReturn(ret ir.ReturnStatement, positions *compiler.VariablePositions, rows []Row) ([]Row, error) {
	switch ret.Kind {
	case ir.ReturnStream:
		return projectVars(ret.Vars, positions, rows), nil
	case ir.ReturnSingle:
		projected := projectVars(ret.Vars, positions, rows)
		if len(projected) == 0 {
			return nil, nil
		}
		switch ret.Selector {
		case ir.SelectorLast:
			return projected[len(projected)-1 : len(projected)], nil
		default:
			return projected[:1], nil
		}
	case ir.ReturnCheck:
		return []Row{{len(rows) > 0}}, nil
	case ir.ReturnReduce:
		return reduceRows(ret.Reducers, positions, rows)
	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "unsupported function return kind")
	}
}

func projectVars(vars []*ir.Variable, positions *compiler.VariablePositions, rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		tuple := make(Row, len(vars))
		for i, v := range vars {
			if pos, ok := positions.LookupPosition(v); ok {
				tuple[i] = row[pos]
			}
		}
		out = append(out, tuple)
	}
	return out
}
