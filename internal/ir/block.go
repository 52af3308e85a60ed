package ir

import "fmt"

// Pattern is a nested sub-pattern inside a Block's conjunction: another
// Block (for grouping), a Disjunction, a Negation, or an Optional.
type Pattern interface {
	patternKind() string
}

// Block is a conjunction of Constraints plus nested Patterns, and the scope
// that owns any Variable first declared within it.
type Block struct {
	Parent      *Block
	Constraints []Constraint
	Nested      []Pattern
	Variables   map[string]*Variable
}

func (*Block) patternKind() string { return "block" }

// NewBlock creates a block scoped under parent (nil for the root block of a
// pattern).
func NewBlock(parent *Block) *Block {
	return &Block{Parent: parent, Variables: make(map[string]*Variable)}
}

// Resolve looks up name, walking up to ancestor scopes, and declares a new
// Variable in b if none is found in this block or any ancestor.
func (b *Block) Resolve(name string) *Variable {
	for blk := b; blk != nil; blk = blk.Parent {
		if v, ok := blk.Variables[name]; ok {
			return v
		}
	}
	v := &Variable{Name: name, DeclaredIn: b}
	b.Variables[name] = v
	return v
}

// AddConstraint appends c to b's conjunction.
func (b *Block) AddConstraint(c Constraint) {
	b.Constraints = append(b.Constraints, c)
}

// AddNested appends a nested sub-pattern to b.
func (b *Block) AddNested(p Pattern) {
	b.Nested = append(b.Nested, p)
}

// Disjunction is a set of alternative Blocks; a row satisfying any branch
// satisfies the disjunction.
type Disjunction struct {
	Branches []*Block
}

func (*Disjunction) patternKind() string { return "disjunction" }

// Negation wraps a single Block that must have no matching rows.
type Negation struct {
	Inner *Block
}

func (*Negation) patternKind() string { return "negation" }

// Optional wraps a single Block whose variables bind when matched and are
// left unbound (rather than failing the row) when not.
type Optional struct {
	Inner *Block
}

func (*Optional) patternKind() string { return "optional" }

// AllVariables returns every variable declared directly in b (not its
// descendants), in declaration order by iterating its Constraints — callers
// needing descendant variables should walk Nested explicitly.
func (b *Block) AllVariables() []*Variable {
	out := make([]*Variable, 0, len(b.Variables))
	seen := make(map[string]bool, len(b.Variables))
	for _, c := range b.Constraints {
		for _, v := range constraintVariables(c) {
			if v.DeclaredIn == b && !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// ConstraintVariables extracts every Variable referenced by c, used by
// type-inference's constraint-graph walk.
func ConstraintVariables(c Constraint) []*Variable {
	return constraintVariables(c)
}

func constraintVariables(c Constraint) []*Variable {
	switch t := c.(type) {
	case Isa:
		return []*Variable{t.Thing, t.Type}
	case Sub:
		return []*Variable{t.Subtype, t.Supertype}
	case Has:
		return []*Variable{t.Owner, t.Attribute}
	case Links:
		return []*Variable{t.Relation, t.Player, t.Role}
	case Label:
		return []*Variable{t.Var}
	case RoleName:
		return []*Variable{t.Var}
	case Kind:
		return []*Variable{t.Var}
	case Value:
		return []*Variable{t.Var}
	case Comparison:
		return []*Variable{t.Left, t.Right}
	case Is:
		return []*Variable{t.Left, t.Right}
	case ExpressionBinding:
		vs := []*Variable{t.Var}
		return append(vs, expressionVariables(t.Expr)...)
	case FunctionCallBinding:
		vs := append([]*Variable{}, t.Args...)
		return append(vs, t.Assigned...)
	case Owns:
		return []*Variable{t.Owner, t.Attribute}
	case Relates:
		return []*Variable{t.Relation, t.Role}
	case Plays:
		return []*Variable{t.Player, t.Role}
	case As:
		return []*Variable{t.Specializing, t.Overridden}
	default:
		panic(fmt.Sprintf("ir: unhandled constraint type %T", c))
	}
}
