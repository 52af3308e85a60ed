package planner

import (
	"math"

	"gravix/internal/ir"
	"gravix/internal/ir/inference"
)

// Plan is an ordered sequence of instructions for a single block, ready for
// the executable compiler to lower into match steps.
type Plan struct {
	Instructions []Instruction
}

// SubPlan attaches a nested pattern's plan(s) to the outer instruction that
// triggers it.
type SubPlan struct {
	Disjunction []*Plan // one per branch, planned with the outer-bound set fixed
	Negation    *Plan
	Optional    *Plan
}

// Planner greedily orders a block's instructions by minimum cumulative cost,
// breaking ties on source position.
type Planner struct {
	cost   *CostModel
	tabled map[string]bool
}

// NewPlanner constructs a planner using cost for estimation and tabled to
// mark which function calls require a TabledCallStep.
func NewPlanner(cost *CostModel, tabled map[string]bool) *Planner {
	return &Planner{cost: cost, tabled: tabled}
}

// group bundles the candidate instructions representing a single
// constraint (e.g. a Has constraint's forward and reverse directions); only
// one member of a group is ever selected into the final plan.
type group struct {
	instructions []Instruction
	pos          int
}

// PlanBlock orders b's constraints into a Plan, given the variables already
// bound by an enclosing scope (nil or empty for a top-level block).
func (p *Planner) PlanBlock(b *ir.Block, ann inference.Annotations, boundIn map[*ir.Variable]bool) *Plan {
	groups := p.buildGroups(b)
	bound := make(map[*ir.Variable]bool, len(boundIn))
	for v := range boundIn {
		bound[v] = true
	}

	var ordered []Instruction
	for len(groups) > 0 {
		bestIdx := -1
		var bestInstr Instruction
		bestCost := math.Inf(1)
		pick := func(onlyEligible bool) {
			for gi, g := range groups {
				instr, cost := p.cheapestInGroup(g, bound, ann)
				if onlyEligible && !eligible(instr, bound) {
					continue
				}
				if bestIdx == -1 || cost < bestCost || (cost == bestCost && g.pos < groups[bestIdx].pos) {
					bestIdx, bestInstr, bestCost = gi, instr, cost
				}
			}
		}
		pick(true)
		if bestIdx == -1 {
			// Nothing eligible (e.g. only checks over variables bound by a
			// later assignment step): fall back to cost order alone.
			pick(false)
		}
		ordered = append(ordered, bestInstr)
		for _, v := range bestInstr.Produces(bound) {
			bound[v] = true
		}
		groups = append(groups[:bestIdx], groups[bestIdx+1:]...)
	}
	return &Plan{Instructions: ordered}
}

// eligible reports whether instr can meaningfully run given the variables
// bound so far: a function call needs every argument bound, and a
// comparison check is pure filtering so scheduling it before both operands
// exist would silently drop rows.
func eligible(instr Instruction, bound map[*ir.Variable]bool) bool {
	switch t := instr.(type) {
	case FunctionCallInstruction:
		for _, v := range t.Binding.Args {
			if !bound[v] {
				return false
			}
		}
		return true
	case ComparisonInstruction:
		return bound[t.Comparison.Left] && bound[t.Comparison.Right]
	default:
		return true
	}
}

func (p *Planner) cheapestInGroup(g *group, bound map[*ir.Variable]bool, ann inference.Annotations) (Instruction, float64) {
	var best Instruction
	bestCost := math.Inf(1)
	for _, instr := range g.instructions {
		cost := p.cost.Estimate(instr, bound, ann).Total()
		if cost < bestCost {
			best, bestCost = instr, cost
		}
	}
	return best, bestCost
}

func (p *Planner) buildGroups(b *ir.Block) []*group {
	groups := make([]*group, 0, len(b.Constraints))
	for i, c := range b.Constraints {
		switch t := c.(type) {
		case ir.Isa:
			groups = append(groups, &group{pos: i, instructions: []Instruction{
				IsaInstruction{baseInstruction{i}, t},
			}})
		case ir.Has:
			groups = append(groups, &group{pos: i, instructions: []Instruction{
				HasInstruction{baseInstruction{i}, t, true},
				HasInstruction{baseInstruction{i}, t, false},
			}})
		case ir.Links:
			groups = append(groups, &group{pos: i, instructions: []Instruction{
				LinksInstruction{baseInstruction{i}, t},
			}})
		case ir.Comparison:
			groups = append(groups, &group{pos: i, instructions: []Instruction{
				ComparisonInstruction{baseInstruction{i}, t},
			}})
		case ir.FunctionCallBinding:
			groups = append(groups, &group{pos: i, instructions: []Instruction{
				FunctionCallInstruction{baseInstruction{i}, t, p.tabled[t.Function]},
			}})
		}
	}
	return groups
}

// PlanDisjunction plans each branch independently with outer-bound fixed.
func (p *Planner) PlanDisjunction(d *ir.Disjunction, ann inference.Annotations, outerBound map[*ir.Variable]bool) []*Plan {
	plans := make([]*Plan, 0, len(d.Branches))
	for _, branch := range d.Branches {
		plans = append(plans, p.PlanBlock(branch, ann, outerBound))
	}
	return plans
}

// PlanNested plans a negation or optional's inner block as a single
// sub-pattern, executed per outer row.
func (p *Planner) PlanNested(inner *ir.Block, ann inference.Annotations, outerBound map[*ir.Variable]bool) *Plan {
	return p.PlanBlock(inner, ann, outerBound)
}
