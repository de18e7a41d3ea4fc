package task

import (
	"sort"
	"strings"
)

// Cycle is an ordered sequence of task IDs forming a dependency loop.
// The first element repeats at the end for readability. Ordering within
// the cycle is diagnostic only; callers should rely on membership.
type Cycle []string

// String renders the cycle as "a -> b -> a".
func (c Cycle) String() string {
	return strings.Join(c, " -> ")
}

// Members returns the unique task IDs participating in the cycle.
func (c Cycle) Members() []string {
	seen := make(map[string]bool)
	var members []string
	for _, id := range c {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	return members
}

// DetectCycles finds dependency cycles in the graph.
//
// It runs a depth-first traversal over the depends-on relation, flagging a
// cycle whenever traversal revisits a node on the active recursion stack.
// At least one concrete cycle is reported per non-trivial strongly
// connected component; cycles with identical membership are reported once.
//
// Dangling dependency references are treated as absent edges. Self-loops
// are reported even though NewGraph strips them, since the graph may have
// been mutated directly. An empty or acyclic graph yields nil. O(V+E).
func DetectCycles(g *Graph) []Cycle {
	if g == nil || len(g.Tasks) == 0 {
		return nil
	}

	var cycles []Cycle
	reported := make(map[string]bool)
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	record := func(c Cycle) {
		members := c.Members()
		sort.Strings(members)
		key := strings.Join(members, "\x00")
		if !reported[key] {
			reported[key] = true
			cycles = append(cycles, c)
		}
	}

	var dfs func(id string)
	dfs = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, depID := range g.Tasks[id].DependsOn {
			if depID == id {
				record(Cycle{id, id})
				continue
			}
			if _, ok := g.Tasks[depID]; !ok {
				continue // dangling reference, permanently unsatisfied
			}
			if !visited[depID] {
				dfs(depID)
			} else if onStack[depID] {
				// Back edge: the loop runs from depID to the top of the stack.
				start := 0
				for i, sid := range stack {
					if sid == depID {
						start = i
						break
					}
				}
				c := make(Cycle, 0, len(stack)-start+1)
				c = append(c, stack[start:]...)
				c = append(c, depID)
				record(c)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for _, id := range g.IDs() {
		if !visited[id] {
			dfs(id)
		}
	}

	return cycles
}

// HasCycles reports whether the graph contains at least one dependency cycle.
func HasCycles(g *Graph) bool {
	return len(DetectCycles(g)) > 0
}
