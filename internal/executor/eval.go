package executor

import (
	"fmt"
	"math"

	"gravix/internal/compiler"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
)

// runAssignment evaluates binding's expression for every row and writes the
// result into the bound variable's slot.
func runAssignment(ctx *Context, binding ir.ExpressionBinding, positions *compiler.VariablePositions, rows []Row) ([]Row, error) {
	pos := positions.PositionOf(binding.Var)
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if err := ctx.checkInterrupt(); err != nil {
			return nil, err
		}
		val, err := evalExpression(ctx, binding.Expr, positions, row)
		if err != nil {
			return nil, err
		}
		nr := row.Clone()
		nr[pos] = val
		out = append(out, nr)
	}
	return out, nil
}

// evalExpression walks e's post-order tree, evaluating variable leaves
// against row and constant leaves directly, and dispatching internal nodes
// to arithmetic, built-in, or user-function evaluation.
func evalExpression(ctx *Context, e *ir.Expression, positions *compiler.VariablePositions, row Row) (any, error) {
	if e == nil {
		return nil, nil
	}
	if e.IsLeaf() {
		if e.Variable != nil {
			return rowValue(row[positions.PositionOf(e.Variable)]), nil
		}
		return e.Constant, nil
	}

	args := make([]any, len(e.Children))
	for i, c := range e.Children {
		v, err := evalExpression(ctx, c, positions, row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch e.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
		return evalArith(e.Op, args)
	case ir.OpNeg:
		return negate(args[0])
	case ir.OpBuiltinCall:
		return evalBuiltin(e.Name, args)
	case ir.OpFunctionCall:
		return ctx.evalScalarFunctionCall(e.Name, args)
	case ir.OpListIndex:
		return evalListIndex(args)
	case ir.OpListRange:
		return evalListRange(args)
	default:
		return nil, gravixerr.New(gravixerr.CodeExpressionCompile, "unsupported expression operator")
	}
}

// evalScalarFunctionCall invokes a user function from inside an expression,
// taking the return of its first (and, for ReturnStream/ReturnCheck/
// ReturnReduce, only meaningful) tuple's sole value.
func (ctx *Context) evalScalarFunctionCall(name string, args []any) (any, error) {
	cf, err := ctx.compileFunction(name)
	if err != nil {
		return nil, err
	}
	rows, err := ctx.callFunctionWithValues(cf, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil
	}
	return rows[0][0], nil
}

func evalArith(op ir.ExpressionOp, args []any) (any, error) {
	if len(args) != 2 {
		return nil, gravixerr.New(gravixerr.CodeExpressionCompile, "arithmetic operator requires two operands")
	}
	li, lIsInt := args[0].(int64)
	ri, rIsInt := args[1].(int64)
	if lIsInt && rIsInt && op != ir.OpDiv {
		switch op {
		case ir.OpAdd:
			return li + ri, nil
		case ir.OpSub:
			return li - ri, nil
		case ir.OpMul:
			return li * ri, nil
		case ir.OpMod:
			if ri == 0 {
				return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "modulo by zero")
			}
			return li % ri, nil
		}
	}
	lf, lok := asFloat(args[0])
	rf, rok := asFloat(args[1])
	if !lok || !rok {
		return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "arithmetic operator requires numeric operands")
	}
	switch op {
	case ir.OpAdd:
		return lf + rf, nil
	case ir.OpSub:
		return lf - rf, nil
	case ir.OpMul:
		return lf * rf, nil
	case ir.OpDiv:
		if rf == 0 {
			return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "division by zero")
		}
		return lf / rf, nil
	case ir.OpMod:
		if rf == 0 {
			return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "modulo by zero")
		}
		return math.Mod(lf, rf), nil
	default:
		return nil, gravixerr.New(gravixerr.CodeExpressionCompile, "unsupported arithmetic operator")
	}
}

func negate(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return -n, nil
	case float64:
		return -n, nil
	default:
		return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "unary minus requires a numeric operand")
	}
}

// evalBuiltin implements the small built-in function set the query language
// exposes on numeric expressions.
func evalBuiltin(name string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, gravixerr.New(gravixerr.CodeExpressionCompile, fmt.Sprintf("builtin %q requires exactly one argument", name))
	}
	f, ok := asFloat(args[0])
	if !ok {
		return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, fmt.Sprintf("builtin %q requires a numeric argument", name))
	}
	switch name {
	case "abs":
		return math.Abs(f), nil
	case "ceil":
		return math.Ceil(f), nil
	case "floor":
		return math.Floor(f), nil
	case "round":
		return math.Round(f), nil
	default:
		return nil, gravixerr.New(gravixerr.CodeExpressionCompile, fmt.Sprintf("unknown builtin %q", name))
	}
}

func evalListIndex(args []any) (any, error) {
	if len(args) != 2 {
		return nil, gravixerr.New(gravixerr.CodeExpressionCompile, "list index requires a list and an index")
	}
	list, ok := args[0].([]any)
	if !ok {
		return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "list index requires a list operand")
	}
	idx, ok := asFloat(args[1])
	if !ok || idx < 0 || int(idx) >= len(list) {
		return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "list index out of range")
	}
	return list[int(idx)], nil
}

func evalListRange(args []any) (any, error) {
	if len(args) != 3 {
		return nil, gravixerr.New(gravixerr.CodeExpressionCompile, "list range requires a list and two bounds")
	}
	list, ok := args[0].([]any)
	if !ok {
		return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "list range requires a list operand")
	}
	lo, lok := asFloat(args[1])
	hi, hok := asFloat(args[2])
	if !lok || !hok {
		return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, "list range bounds must be numeric")
	}
	l, h := int(lo), int(hi)
	if l < 0 {
		l = 0
	}
	if h > len(list) {
		h = len(list)
	}
	if l > h {
		return []any{}, nil
	}
	out := make([]any, h-l)
	copy(out, list[l:h])
	return out, nil
}
