package inference

import (
	"fmt"

	"gravix/internal/core"
	"gravix/internal/ir"
)

// ResolveExpressionValueType fixes e's result value type from its operands'
// value types, following the schema for attribute-variable leaves. resolved caches value variables already
// fixed by an earlier ExpressionBinding in the same block.
func ResolveExpressionValueType(e *ir.Expression, ann Annotations, resolved map[*ir.Variable]core.ValueKind) (core.ValueKind, error) {
	return resolveExpr(e, ann, resolved)
}

func resolveExpr(e *ir.Expression, ann Annotations, resolved map[*ir.Variable]core.ValueKind) (core.ValueKind, error) {
	if e == nil {
		return core.ValueNone, fmt.Errorf("ir/inference: nil expression")
	}

	if e.IsLeaf() {
		return resolveLeaf(e, ann, resolved)
	}

	switch e.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpNeg:
		return resolveArithmetic(e, ann, resolved)
	case ir.OpListIndex, ir.OpListRange:
		if len(e.Children) == 0 {
			return core.ValueNone, fmt.Errorf("ir/inference: list access with no operand")
		}
		return resolveExpr(e.Children[0], ann, resolved)
	case ir.OpBuiltinCall, ir.OpFunctionCall:
		return core.ValueNone, fmt.Errorf("ir/inference: call %q's value type must be supplied by its signature", e.Name)
	default:
		return core.ValueNone, fmt.Errorf("ir/inference: unhandled expression op %d", e.Op)
	}
}

func resolveLeaf(e *ir.Expression, ann Annotations, resolved map[*ir.Variable]core.ValueKind) (core.ValueKind, error) {
	if e.Variable != nil {
		return resolveVariable(e.Variable, ann, resolved)
	}
	return valueKindOfConstant(e.Constant)
}

func resolveVariable(v *ir.Variable, ann Annotations, resolved map[*ir.Variable]core.ValueKind) (core.ValueKind, error) {
	if v.Category == ir.CategoryAttribute {
		set, ok := ann[v]
		if !ok || set.Empty() {
			return core.ValueNone, fmt.Errorf("ir/inference: attribute variable %q has no inferred types", v.Name)
		}
		var kind core.ValueKind
		first := true
		for _, t := range set.Sorted() {
			if first {
				kind = t.ValueType.Kind
				first = false
				continue
			}
			if t.ValueType.Kind != kind {
				return core.ValueNone, fmt.Errorf(
					"ir/inference: attribute variable %q does not resolve to a single value type across its candidate types", v.Name)
			}
		}
		return kind, nil
	}
	if kind, ok := resolved[v]; ok {
		return kind, nil
	}
	return core.ValueNone, fmt.Errorf("ir/inference: value variable %q has no resolvable value type yet", v.Name)
}

func valueKindOfConstant(c any) (core.ValueKind, error) {
	switch c.(type) {
	case bool:
		return core.ValueBoolean, nil
	case int, int64:
		return core.ValueInteger, nil
	case float64:
		return core.ValueDouble, nil
	case string:
		return core.ValueString, nil
	default:
		return core.ValueNone, fmt.Errorf("ir/inference: unrecognized constant type %T", c)
	}
}

func resolveArithmetic(e *ir.Expression, ann Annotations, resolved map[*ir.Variable]core.ValueKind) (core.ValueKind, error) {
	if len(e.Children) == 0 {
		return core.ValueNone, fmt.Errorf("ir/inference: arithmetic expression with no operands")
	}
	var kind core.ValueKind
	for i, child := range e.Children {
		ck, err := resolveExpr(child, ann, resolved)
		if err != nil {
			return core.ValueNone, err
		}
		if i == 0 {
			kind = ck
			continue
		}
		if ck != kind {
			return core.ValueNone, fmt.Errorf("ir/inference: arithmetic operands disagree on value type (%s vs %s)", kind, ck)
		}
	}
	if kind != core.ValueInteger && kind != core.ValueDouble && kind != core.ValueDecimal {
		return core.ValueNone, fmt.Errorf("ir/inference: arithmetic expression requires a numeric value type, got %s", kind)
	}
	return kind, nil
}
