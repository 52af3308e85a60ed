package executor

import "gravix/internal/compiler"

// runTabledCallStep executes a TabledCallStep for every input row, driving
// each distinct (function, argument) table to its fixpoint the first time
// it is seen and reusing the table's accumulated rows on every later call
// with the same key.
func runTabledCallStep(ctx *Context, step *compiler.TabledCallStep, rows []Row) ([]Row, error) {
	var out []Row
	for _, row := range rows {
		if err := ctx.checkInterrupt(); err != nil {
			return nil, err
		}
		argValues := make(Row, len(step.ArgPositions))
		for i, pos := range step.ArgPositions {
			argValues[i] = row[pos]
		}
		key := NewTableKey(step.FunctionID, argValues)
		answers, err := ctx.runTabledCall(step.FunctionID, key, argValues)
		if err != nil {
			return nil, err
		}
		for _, tuple := range answers {
			nr := row.Clone()
			for i, pos := range step.AssignPositions {
				if i < len(tuple) {
					nr[pos] = tuple[i]
				}
			}
			out = append(out, nr)
		}
	}
	return out, nil
}

// runTabledCall claims key's table entry. The producer iterates the
// function body to a fixpoint, re-deriving from the args each pass and
// appending any newly distinct tuple, until a pass adds nothing new. A
// non-producer — a recursive call re-entering a (function, args) pair whose
// producer is still on the call stack — reads whatever the table holds so
// far rather than recursing again, which is what makes the fixpoint loop
// terminate.
//
// A table produced while one of its transitive dependencies was itself
// incomplete may have converged against partial answers, so such entries
// are released instead of frozen: their rows are sound (every derivation
// that put them there holds) and the next claim resumes the fixpoint
// against the now-complete dependency. An entry is marked done only when
// its production never observed an incomplete table.
func (ctx *Context) runTabledCall(functionID string, key TableKey, argValues Row) ([]Row, error) {
	entry, isProducer := ctx.Tables.Claim(key)
	if !isProducer {
		if !entry.isDone() {
			for _, frame := range ctx.tabledStack {
				frame.Provisional = true
			}
		}
		return entry.rowsFrom(0), nil
	}

	frame := &TabledCallSuspension{Key: key}
	ctx.tabledStack = append(ctx.tabledStack, frame)
	defer func() {
		ctx.tabledStack = ctx.tabledStack[:len(ctx.tabledStack)-1]
	}()

	cf, err := ctx.compileFunction(functionID)
	if err != nil {
		entry.release()
		return nil, err
	}

	for {
		frame.NextTableRow = entry.count()
		tuples, err := ctx.callFunctionWithValues(cf, argValues)
		if err != nil {
			entry.release()
			return nil, err
		}
		grew := false
		for _, t := range tuples {
			if entry.append(t) {
				grew = true
			}
		}
		if !grew {
			break
		}
	}
	if frame.Provisional {
		entry.release()
	} else {
		entry.markDone()
	}
	return entry.rowsFrom(0), nil
}
