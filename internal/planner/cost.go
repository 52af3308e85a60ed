package planner

import (
	"gravix/internal/core"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
	"gravix/internal/thing"
)

// Cost estimates one instruction's contribution to a plan: the cost of
// opening its iterator, the per-row advance cost, and the expected number of
// output rows per input row.
type Cost struct {
	PerInput        float64
	PerOutput       float64
	BranchingFactor float64
}

// Total folds the three components into the single scalar the planner
// greedily minimises.
func (c Cost) Total() float64 { return c.PerInput + c.PerOutput*c.BranchingFactor }

// CostModel estimates instruction cost from live statistics.
type CostModel struct {
	stats *thing.Statistics
}

// NewCostModel binds a cost model to a statistics snapshot.
func NewCostModel(stats *thing.Statistics) *CostModel {
	return &CostModel{stats: stats}
}

// Estimate computes the cost of instr given the variables already bound and
// the block's inferred type-set annotations.
func (m *CostModel) Estimate(instr Instruction, bound map[*ir.Variable]bool, ann inference.Annotations) Cost {
	switch t := instr.(type) {
	case IsaInstruction:
		return m.estimateIsa(t, bound, ann)
	case HasInstruction:
		return m.estimateHas(t, bound, ann)
	case LinksInstruction:
		return m.estimateLinks(t, bound, ann)
	case ComparisonInstruction:
		// Both endpoints are already bound by the time a Comparison is
		// eligible in practice; it never produces new bindings, so its
		// branching factor is zero (a check).
		return Cost{PerInput: 1, PerOutput: 0, BranchingFactor: 0}
	case FunctionCallInstruction:
		return m.estimateFunctionCall(t)
	default:
		return Cost{PerInput: 1, PerOutput: 1, BranchingFactor: 1}
	}
}

func (m *CostModel) estimateIsa(i IsaInstruction, bound map[*ir.Variable]bool, ann inference.Annotations) Cost {
	thingBound := bound[i.Isa.Thing]
	typeBound := bound[i.Isa.Type]
	if thingBound && typeBound {
		return Cost{PerInput: 1, PerOutput: 0, BranchingFactor: 0}
	}

	types := ann[i.Isa.Type].Sorted()
	total := m.sumInstances(types)
	if typeBound {
		// Thing unbound: scan every instance of the bound type set.
		avgPerType := safeDiv(total, float64(maxInt(len(types), 1)))
		return Cost{PerInput: 1, PerOutput: avgPerType, BranchingFactor: avgPerType}
	}
	// Both unbound (or only thing bound, which has no useful index):
	// the iterator must scan the full candidate-type instance population.
	return Cost{PerInput: total, PerOutput: 1, BranchingFactor: 1}
}

func (m *CostModel) estimateHas(h HasInstruction, bound map[*ir.Variable]bool, ann inference.Annotations) Cost {
	ownerBound := bound[h.Has.Owner]
	attrBound := bound[h.Has.Attribute]
	if ownerBound && attrBound {
		return Cost{PerInput: 1, PerOutput: 0, BranchingFactor: 0}
	}

	ownerTypes := ann[h.Has.Owner].Sorted()
	attrTypes := ann[h.Has.Attribute].Sorted()
	totalHas := m.sumHasCount(ownerTypes, attrTypes)

	if ownerBound {
		owners := m.sumInstances(ownerTypes)
		branching := safeDiv(totalHas, owners)
		return Cost{PerInput: 1, PerOutput: branching, BranchingFactor: branching}
	}
	if attrBound {
		attrs := m.sumInstances(attrTypes)
		branching := safeDiv(totalHas, attrs)
		return Cost{PerInput: 1, PerOutput: branching, BranchingFactor: branching}
	}

	// Both unbound: per_input reflects the scan length of the direction
	// this candidate instruction represents; the planner compares the
	// forward and reverse candidates and picks the smaller total scan.
	if h.Forward {
		owners := m.sumInstances(ownerTypes)
		branching := safeDiv(totalHas, maxFloat(owners, 1))
		return Cost{PerInput: owners, PerOutput: branching, BranchingFactor: branching}
	}
	attrs := m.sumInstances(attrTypes)
	branching := safeDiv(totalHas, maxFloat(attrs, 1))
	return Cost{PerInput: attrs, PerOutput: branching, BranchingFactor: branching}
}

func (m *CostModel) estimateLinks(l LinksInstruction, bound map[*ir.Variable]bool, ann inference.Annotations) Cost {
	relBound := bound[l.Links.Relation]
	playerBound := bound[l.Links.Player]
	if relBound && playerBound {
		return Cost{PerInput: 1, PerOutput: 0, BranchingFactor: 0}
	}

	var roleTypes []*core.Type
	if l.Links.Role != nil {
		roleTypes = ann[l.Links.Role].Sorted()
	}
	relTypes := ann[l.Links.Relation].Sorted()
	totalPlayers := m.sumPlayerCount(relTypes, roleTypes)

	if relBound {
		relations := m.sumInstances(relTypes)
		branching := safeDiv(totalPlayers, relations)
		return Cost{PerInput: 1, PerOutput: branching, BranchingFactor: branching}
	}
	if playerBound {
		players := m.sumInstances(ann[l.Links.Player].Sorted())
		branching := safeDiv(totalPlayers, players)
		return Cost{PerInput: 1, PerOutput: branching, BranchingFactor: branching}
	}
	relations := m.sumInstances(relTypes)
	branching := safeDiv(totalPlayers, maxFloat(relations, 1))
	return Cost{PerInput: relations, PerOutput: branching, BranchingFactor: branching}
}

// estimateFunctionCall gives a tabled (recursive) call the cycle-breaking
// cost of one unit of I/O. A non-tabled call has no statically known output
// cardinality, so it gets the same unit default; the distinction matters to
// the executable compiler (which must emit a TabledCallStep), not to the
// scalar cost here.
func (m *CostModel) estimateFunctionCall(f FunctionCallInstruction) Cost {
	return Cost{PerInput: 1, PerOutput: 1, BranchingFactor: 1}
}

func (m *CostModel) sumInstances(types []*core.Type) float64 {
	var total float64
	for _, t := range types {
		total += float64(m.stats.InstanceCount(t.ID))
	}
	return total
}

func (m *CostModel) sumHasCount(owners, attrs []*core.Type) float64 {
	var total float64
	for _, o := range owners {
		for _, a := range attrs {
			total += float64(m.stats.HasCount(o.ID, a.ID))
		}
	}
	return total
}

func (m *CostModel) sumPlayerCount(relations, roles []*core.Type) float64 {
	var total float64
	if len(roles) == 0 {
		// Role unresolved: sum every relates-role this relation type
		// declares (a conservative upper bound used only to compare
		// candidate instructions relative to each other).
		for _, rel := range relations {
			for _, r := range rel.Relates {
				total += float64(m.stats.PlayerCount(rel.ID, r.Role.ID))
			}
		}
		return total
	}
	for _, rel := range relations {
		for _, role := range roles {
			total += float64(m.stats.PlayerCount(rel.ID, role.ID))
		}
	}
	return total
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return a
	}
	return a / b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
