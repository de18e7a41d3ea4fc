package task

import "sort"

// Graph is the full identifier -> Task mapping for one run.
//
// The graph is the sole shared mutable structure of a run. The executor
// guards access with its own mutex; Graph itself performs no locking.
// Dependency identifiers that name no task in the graph are kept as-is and
// treated as permanently unsatisfied edges.
type Graph struct {
	Tasks map[string]*Task
}

// SnapshotFunc produces a fresh Graph from current external declarations.
//
// Implementations return (nil, nil) when a complete graph cannot yet be
// built, which callers treat as "no refresh this iteration".
type SnapshotFunc func() (*Graph, error)

// NewGraph builds a graph from the given tasks.
//
// Self-edges are stripped: a task listing itself as a dependency keeps its
// other dependencies. Tasks with no status default to pending. Duplicate
// IDs resolve to the last task seen.
func NewGraph(tasks []*Task) *Graph {
	g := &Graph{Tasks: make(map[string]*Task, len(tasks))}
	for _, t := range tasks {
		if t == nil || t.ID == "" {
			continue
		}
		c := t.Clone()
		c.DependsOn = stripSelf(c.ID, c.DependsOn)
		if c.Status == "" {
			c.Status = StatusPending
		}
		g.Tasks[c.ID] = c
	}
	return g
}

func stripSelf(id string, deps []string) []string {
	out := deps[:0]
	for _, dep := range deps {
		if dep != id {
			out = append(out, dep)
		}
	}
	return out
}

// Get returns the task with the given ID, or nil if not found.
func (g *Graph) Get(id string) *Task {
	if g == nil {
		return nil
	}
	return g.Tasks[id]
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Tasks)
}

// IDs returns all task IDs in lexicographic order.
// Sorting keeps scheduling and reporting deterministic.
func (g *Graph) IDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.Tasks))
	for id := range g.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TasksWithStatus returns the IDs of all tasks with the given status, sorted.
func (g *Graph) TasksWithStatus(status Status) []string {
	var ids []string
	for id, t := range g.Tasks {
		if t.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Counts returns the number of tasks in each lifecycle state.
func (g *Graph) Counts() (pending, running, completed, failed int) {
	for _, t := range g.Tasks {
		switch t.Status {
		case StatusPending:
			pending++
		case StatusRunning:
			running++
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return
}

// Settled returns true when no task is running and every task is terminal.
func (g *Graph) Settled() bool {
	for _, t := range g.Tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// ReadyTasks returns every pending task whose every dependency resolves to
// a completed task, in lexicographic ID order.
//
// A dependency that names no task in the graph makes the task permanently
// not-ready rather than producing an error; such tasks surface through the
// executor's stall diagnostics instead.
func (g *Graph) ReadyTasks() []string {
	var ready []string
	for id, t := range g.Tasks {
		if t.Status != StatusPending {
			continue
		}
		if g.dependenciesSatisfied(t) {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

func (g *Graph) dependenciesSatisfied(t *Task) bool {
	for _, depID := range t.DependsOn {
		dep, ok := g.Tasks[depID]
		if !ok || dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// TransitiveDeps returns all direct and transitive dependencies of the
// given task as a set. Dangling references are included as members but
// never traversed.
func (g *Graph) TransitiveDeps(id string) map[string]bool {
	deps := make(map[string]bool)
	visited := make(map[string]bool)

	var collect func(string)
	collect = func(cur string) {
		if visited[cur] {
			return
		}
		visited[cur] = true

		t := g.Get(cur)
		if t == nil {
			return
		}
		for _, depID := range t.DependsOn {
			if depID == cur {
				continue
			}
			deps[depID] = true
			collect(depID)
		}
	}

	collect(id)
	return deps
}

// DependsOnTransitively returns true if task a depends on task b, directly
// or through any chain of dependencies.
func (g *Graph) DependsOnTransitively(a, b string) bool {
	return g.TransitiveDeps(a)[b]
}

// AddDependency adds an edge making task id depend on depID.
// Returns false if the edge already exists, the task is missing, or the
// edge would be a self-edge.
func (g *Graph) AddDependency(id, depID string) bool {
	t := g.Get(id)
	if t == nil || id == depID || t.DependsOnTask(depID) {
		return false
	}
	t.DependsOn = append(t.DependsOn, depID)
	return true
}

// Merge folds a freshly built snapshot into the live graph.
//
// Rules, in order:
//   - tasks new in the snapshot are added as-is
//   - tasks absent from the snapshot are removed, but only while still pending
//   - a pending task whose snapshot shows completed is promoted
//   - dependency sets and files are refreshed from the snapshot
//   - a running, completed, or failed task never regresses to pending
func (g *Graph) Merge(fresh *Graph) {
	if fresh == nil {
		return
	}

	for id, ft := range fresh.Tasks {
		cur, ok := g.Tasks[id]
		if !ok {
			g.Tasks[id] = ft.Clone()
			continue
		}

		cur.Title = ft.Title
		cur.Description = ft.Description
		cur.DependsOn = stripSelf(id, append([]string(nil), ft.DependsOn...))
		cur.Files = append([]string(nil), ft.Files...)

		if cur.Status == StatusPending && ft.Status == StatusCompleted {
			cur.Status = StatusCompleted
		}
	}

	for id, cur := range g.Tasks {
		if _, ok := fresh.Tasks[id]; !ok && cur.Status == StatusPending {
			delete(g.Tasks, id)
		}
	}
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	c := &Graph{Tasks: make(map[string]*Task, len(g.Tasks))}
	for id, t := range g.Tasks {
		c.Tasks[id] = t.Clone()
	}
	return c
}
