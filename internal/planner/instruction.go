// Package planner ranks an ordering of constraint-producing instructions for
// each match block, using per-type statistics to estimate cost.
package planner

import "gravix/internal/ir"

// Instruction is one constraint-producing step a plan may select: an
// iterator or check lowered later to a compiled match step.
type Instruction interface {
	// Produces returns the variables this instruction binds when executed,
	// given the variables already bound in `bound`.
	Produces(bound map[*ir.Variable]bool) []*ir.Variable
	// Requires returns every variable this instruction reads, whether bound
	// or not (used to determine when it becomes eligible to run).
	Requires() []*ir.Variable
	// Position is the instruction's lexicographic tie-break key: its
	// original position in source order.
	Position() int
}

type baseInstruction struct {
	pos int
}

func (b baseInstruction) Position() int { return b.pos }

// IsaInstruction iterates instances of Type into Thing, or the reverse.
type IsaInstruction struct {
	baseInstruction
	Isa ir.Isa
}

func (i IsaInstruction) Requires() []*ir.Variable { return []*ir.Variable{i.Isa.Thing, i.Isa.Type} }

func (i IsaInstruction) Produces(bound map[*ir.Variable]bool) []*ir.Variable {
	var out []*ir.Variable
	if !bound[i.Isa.Thing] {
		out = append(out, i.Isa.Thing)
	}
	if !bound[i.Isa.Type] {
		out = append(out, i.Isa.Type)
	}
	return out
}

// HasInstruction iterates the has-edge relation between Owner and
// Attribute. Forward scans from owner to attribute; the reverse direction
// scans from attribute to owner.
type HasInstruction struct {
	baseInstruction
	Has     ir.Has
	Forward bool
}

func (h HasInstruction) Requires() []*ir.Variable {
	return []*ir.Variable{h.Has.Owner, h.Has.Attribute}
}

func (h HasInstruction) Produces(bound map[*ir.Variable]bool) []*ir.Variable {
	var out []*ir.Variable
	if !bound[h.Has.Owner] {
		out = append(out, h.Has.Owner)
	}
	if !bound[h.Has.Attribute] {
		out = append(out, h.Has.Attribute)
	}
	return out
}

// LinksInstruction iterates the links-edge relation among Relation, Player,
// and Role.
type LinksInstruction struct {
	baseInstruction
	Links ir.Links
}

func (l LinksInstruction) Requires() []*ir.Variable {
	vars := []*ir.Variable{l.Links.Relation, l.Links.Player}
	if l.Links.Role != nil {
		vars = append(vars, l.Links.Role)
	}
	return vars
}

func (l LinksInstruction) Produces(bound map[*ir.Variable]bool) []*ir.Variable {
	var out []*ir.Variable
	if !bound[l.Links.Relation] {
		out = append(out, l.Links.Relation)
	}
	if !bound[l.Links.Player] {
		out = append(out, l.Links.Player)
	}
	if l.Links.Role != nil && !bound[l.Links.Role] {
		out = append(out, l.Links.Role)
	}
	return out
}

// ComparisonInstruction is a filter-only check: it never produces new
// bindings, so its branching factor is always zero.
type ComparisonInstruction struct {
	baseInstruction
	Comparison ir.Comparison
}

func (c ComparisonInstruction) Requires() []*ir.Variable {
	return []*ir.Variable{c.Comparison.Left, c.Comparison.Right}
}

func (c ComparisonInstruction) Produces(map[*ir.Variable]bool) []*ir.Variable { return nil }

// FunctionCallInstruction invokes a function with Args bound, producing
// Assigned. Tabled marks whether the callee requires suspension/resumption
// support in the executor.
type FunctionCallInstruction struct {
	baseInstruction
	Binding ir.FunctionCallBinding
	Tabled  bool
}

func (f FunctionCallInstruction) Requires() []*ir.Variable { return f.Binding.Args }

func (f FunctionCallInstruction) Produces(bound map[*ir.Variable]bool) []*ir.Variable {
	var out []*ir.Variable
	for _, v := range f.Binding.Assigned {
		if !bound[v] {
			out = append(out, v)
		}
	}
	return out
}
