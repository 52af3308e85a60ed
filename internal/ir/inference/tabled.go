package inference

import "gravix/internal/ir"

// TabledFunctions runs Kosaraju's algorithm over idx's call graph and
// returns the set of function names that must be tabled: every function in
// a non-trivial strongly-connected component, or with a direct self-loop.
func TabledFunctions(idx *ir.FunctionIndex) map[string]bool {
	graph := idx.CallGraph()
	names := idx.Names()

	order := kosarajuOrder(names, graph)
	reverse := reverseGraph(graph)

	visited := make(map[string]bool, len(names))
	tabled := make(map[string]bool)

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if visited[name] {
			continue
		}
		component := collectComponent(name, reverse, visited)
		if len(component) > 1 {
			for _, c := range component {
				tabled[c] = true
			}
			continue
		}
		// Singleton component: tabled only if it has a direct self-loop.
		single := component[0]
		for _, callee := range graph[single] {
			if callee == single {
				tabled[single] = true
				break
			}
		}
	}
	return tabled
}

// kosarajuOrder returns names in DFS post-order over graph, the first pass
// of Kosaraju's algorithm.
func kosarajuOrder(names []string, graph map[string][]string) []string {
	visited := make(map[string]bool, len(names))
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, callee := range graph[name] {
			visit(callee)
		}
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}

func reverseGraph(graph map[string][]string) map[string][]string {
	rev := make(map[string][]string, len(graph))
	for caller, callees := range graph {
		for _, callee := range callees {
			rev[callee] = append(rev[callee], caller)
		}
	}
	return rev
}

func collectComponent(start string, reverse map[string][]string, visited map[string]bool) []string {
	var component []string
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		component = append(component, name)
		for _, caller := range reverse[name] {
			visit(caller)
		}
	}
	visit(start)
	return component
}
