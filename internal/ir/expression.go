package ir

import "fmt"

// ExpressionOp enumerates the arithmetic and built-in operations an
// Expression's internal nodes may carry.
type ExpressionOp uint8

const (
	OpAdd ExpressionOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpBuiltinCall
	OpFunctionCall
	OpListIndex
	OpListRange
)

// Expression is a post-order tree node: a leaf (variable or constant) or an
// internal node (arithmetic, built-in call, user-function call, or list
// index/range access) over Children.
type Expression struct {
	Op       ExpressionOp
	Variable *Variable
	Constant any
	Name     string // builtin/function name, for OpBuiltinCall/OpFunctionCall
	Children []*Expression

	isLeaf bool
}

// Leaf builds a leaf expression referencing either a variable or a constant
// (exactly one of v, constant should be non-nil/non-zero; callers pass v nil
// for a constant leaf).
func Leaf(v *Variable, constant any) *Expression {
	return &Expression{Variable: v, Constant: constant, isLeaf: true}
}

// Node builds an internal expression node.
func Node(op ExpressionOp, name string, children ...*Expression) *Expression {
	return &Expression{Op: op, Name: name, Children: children}
}

// IsLeaf reports whether e is a variable or constant leaf rather than an
// internal operation node.
func (e *Expression) IsLeaf() bool { return e.isLeaf }

func expressionVariables(e *Expression) []*Variable {
	if e == nil {
		return nil
	}
	if e.isLeaf {
		if e.Variable != nil {
			return []*Variable{e.Variable}
		}
		return nil
	}
	var out []*Variable
	for _, c := range e.Children {
		out = append(out, expressionVariables(c)...)
	}
	return out
}

// DetectCycle walks the expression bindings of a block via DFS with
// open/closed sets. A cycle exists when a binding's expression
// transitively reads the variable it assigns.
func DetectCycle(b *Block) error {
	bindings := make(map[*Variable]*Expression)
	for _, c := range b.Constraints {
		if eb, ok := c.(ExpressionBinding); ok {
			bindings[eb.Var] = eb.Expr
		}
	}

	const (
		unvisited = iota
		open
		closed
	)
	state := make(map[*Variable]int, len(bindings))

	var visit func(v *Variable, path []string) error
	visit = func(v *Variable, path []string) error {
		switch state[v] {
		case closed:
			return nil
		case open:
			return fmt.Errorf("ir: cyclic expression binding involving %s: %v", v.Name, append(path, v.Name))
		}
		state[v] = open
		if expr, ok := bindings[v]; ok {
			for _, dep := range expressionVariables(expr) {
				if dep == v {
					return fmt.Errorf("ir: expression binding for %s reads the variable it assigns", v.Name)
				}
				if _, isBound := bindings[dep]; isBound {
					if err := visit(dep, append(path, v.Name)); err != nil {
						return err
					}
				}
			}
		}
		state[v] = closed
		return nil
	}

	for v := range bindings {
		if state[v] == unvisited {
			if err := visit(v, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
