package ir

import "gravix/internal/core"

// Constraint is one edge of a block's constraint graph. Each concrete
// constraint narrows the category (and, later, the inferred type set) of
// the variables it touches.
type Constraint interface {
	constraintKind() string
}

// Isa constrains Thing to be an instance of Type (or a subtype, when
// Transitive is set — the default for `isa`, false only for `isa!`).
type Isa struct {
	Thing      *Variable
	Type       *Variable
	Transitive bool
}

func (Isa) constraintKind() string { return "isa" }

// Sub constrains Subtype to be a (transitive, unless Exact) subtype of
// Supertype; both endpoints are Type-category variables.
type Sub struct {
	Subtype   *Variable
	Supertype *Variable
	Exact     bool
}

func (Sub) constraintKind() string { return "sub" }

// Has constrains Owner (a Thing) to own an attribute Attribute (an
// Attribute).
type Has struct {
	Owner     *Variable
	Attribute *Variable
}

func (Has) constraintKind() string { return "has" }

// Links constrains Relation to link Player in Role. Role may be an
// unresolved variable (resolved during type inference) or fixed via a
// RoleName constraint on the same variable.
type Links struct {
	Relation *Variable
	Player   *Variable
	Role     *Variable
}

func (Links) constraintKind() string { return "links" }

// Label fixes Var's type to the named schema type.
type Label struct {
	Var   *Variable
	Label string
}

func (Label) constraintKind() string { return "label" }

// RoleName fixes Var (a role-typed variable) to the named role, scoped to
// the relation type of the Links constraint it participates in.
type RoleName struct {
	Var  *Variable
	Name string
}

func (RoleName) constraintKind() string { return "role-name" }

// Kind restricts Var's type to one of the four schema kinds.
type Kind struct {
	Var  *Variable
	Kind core.Kind
}

func (Kind) constraintKind() string { return "kind" }

// Value fixes Var's resolved value type.
type Value struct {
	Var       *Variable
	ValueKind core.ValueKind
}

func (Value) constraintKind() string { return "value" }

// ComparisonOp enumerates the comparison operators a Comparison constraint
// may carry.
type ComparisonOp uint8

const (
	CompareEQ ComparisonOp = iota
	CompareNE
	CompareLT
	CompareLE
	CompareGT
	CompareGE
	CompareContains
	CompareLike
)

// Comparison constrains Left and Right (each a variable, constant, or
// expression result) with Op.
type Comparison struct {
	Left  *Variable
	Right *Variable
	Op    ComparisonOp
}

func (Comparison) constraintKind() string { return "comparison" }

// Is constrains Left and Right to be the identical concept (variable
// aliasing), narrower than an equality Comparison.
type Is struct {
	Left  *Variable
	Right *Variable
}

func (Is) constraintKind() string { return "is" }

// ExpressionBinding assigns the result of evaluating Expr to Var.
type ExpressionBinding struct {
	Var  *Variable
	Expr *Expression
}

func (ExpressionBinding) constraintKind() string { return "expression-binding" }

// FunctionCallBinding assigns the output tuple of calling Function with Args
// to Assigned, positionally.
type FunctionCallBinding struct {
	Function string
	Args     []*Variable
	Assigned []*Variable
}

func (FunctionCallBinding) constraintKind() string { return "function-call-binding" }

// Owns is a schema-pattern constraint: Owner type owns Attribute type.
type Owns struct {
	Owner     *Variable
	Attribute *Variable
}

func (Owns) constraintKind() string { return "owns" }

// Relates is a schema-pattern constraint: Relation type relates Role.
type Relates struct {
	Relation *Variable
	Role     *Variable
}

func (Relates) constraintKind() string { return "relates" }

// Plays is a schema-pattern constraint: Player type plays Role.
type Plays struct {
	Player *Variable
	Role   *Variable
}

func (Plays) constraintKind() string { return "plays" }

// As is a schema-pattern constraint: Specializing overrides Overridden (a
// capability inherited from a supertype).
type As struct {
	Specializing *Variable
	Overridden   *Variable
}

func (As) constraintKind() string { return "as" }
