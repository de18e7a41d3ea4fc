// Package deadlock resolves dependency deadlocks observed at run time.
//
// The executor never validates acyclicity up front; a cycle or an
// unsatisfiable dependency shows up as a sustained stall (zero ready, zero
// running, pending tasks remaining). The Resolver confirms the stuck
// subgraph, hands an external fixer a natural-language description of it,
// rebuilds the graph from the (possibly rewritten) declarations, and
// re-verifies. The fixer failing is expected and recoverable here; the
// executor owns the retry bound and turns exhaustion into a fatal error.
package deadlock

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/dagrun/internal/logging"
	"github.com/Iron-Ham/dagrun/internal/task"
)

// Fixer rewrites on-disk dependency declarations to break a deadlock.
//
// The description names each stuck task and its declared dependencies.
// Implementations side-effect the declarations; there is no meaningful
// return value beyond the error.
type Fixer interface {
	Fix(ctx context.Context, description string) error
}

// FixerFunc adapts a function to the Fixer interface.
type FixerFunc func(ctx context.Context, description string) error

// Fix calls f.
func (f FixerFunc) Fix(ctx context.Context, description string) error {
	return f(ctx, description)
}

// Resolver orchestrates cycle detection, the external fixer, and
// re-verification over a rebuilt graph.
type Resolver struct {
	fixer   Fixer
	rebuild task.SnapshotFunc
	log     *logging.Logger
}

// NewResolver creates a resolver. rebuild produces a fresh graph from the
// current declarations after the fixer has run.
func NewResolver(fixer Fixer, rebuild task.SnapshotFunc, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Resolver{fixer: fixer, rebuild: rebuild, log: log}
}

// Resolve attempts to break a deadlock affecting the given pending tasks.
//
// On success it returns true and the freshly rebuilt graph for the caller
// to merge. All failure modes — fixer error, declarations still not
// producing a graph, cycles remaining after the rewrite — return false
// without propagating an error; the caller decides when repeated failure
// becomes fatal.
func (r *Resolver) Resolve(ctx context.Context, g *task.Graph, pending []string) (bool, *task.Graph) {
	cycles := task.DetectCycles(g)
	for _, c := range cycles {
		r.log.Warn("deadlock cycle detected", "cycle", c.String())
	}
	if len(cycles) == 0 {
		r.log.Warn("stall without a cycle; dependencies are unsatisfiable", "pending", len(pending))
	}

	description := Describe(g, pending, cycles)

	if r.fixer == nil {
		r.log.Error("no fixer configured, cannot resolve deadlock")
		return false, nil
	}
	if err := r.fixer.Fix(ctx, description); err != nil {
		r.log.Error("fixer failed", "error", err)
		return false, nil
	}

	if r.rebuild == nil {
		return false, nil
	}
	fresh, err := r.rebuild()
	if err != nil || fresh == nil {
		r.log.Error("graph rebuild after fix produced no graph", "error", err)
		return false, nil
	}

	if remaining := task.DetectCycles(fresh); len(remaining) > 0 {
		for _, c := range remaining {
			r.log.Warn("cycle survived fixer rewrite", "cycle", c.String())
		}
		return false, nil
	}

	r.log.Info("deadlock resolved", "tasks", fresh.Len())
	return true, fresh
}

// Describe renders the stuck subgraph as natural language for the fixer:
// each pending task, its declared dependencies with their status or
// absence, and any detected cycles.
func Describe(g *task.Graph, pending []string, cycles []task.Cycle) string {
	var b strings.Builder
	b.WriteString("The following tasks are stuck and cannot start:\n")

	for _, id := range pending {
		t := g.Get(id)
		if t == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("- %s", id))
		if t.Title != "" {
			b.WriteString(fmt.Sprintf(" (%s)", t.Title))
		}
		if len(t.DependsOn) == 0 {
			b.WriteString(": no declared dependencies\n")
			continue
		}
		b.WriteString(" depends on: ")
		parts := make([]string, 0, len(t.DependsOn))
		for _, depID := range t.DependsOn {
			dep := g.Get(depID)
			if dep == nil {
				parts = append(parts, fmt.Sprintf("%s (does not exist)", depID))
			} else {
				parts = append(parts, fmt.Sprintf("%s (%s)", depID, dep.Status))
			}
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}

	if len(cycles) > 0 {
		b.WriteString("\nDetected dependency cycles:\n")
		for _, c := range cycles {
			b.WriteString(fmt.Sprintf("- %s\n", c))
		}
		b.WriteString("\nRewrite the dependency declarations to remove these cycles.\n")
	} else {
		b.WriteString("\nNo cycle was found; some dependencies reference tasks that do not exist or can never complete. Rewrite the declarations so every dependency names a completable task.\n")
	}

	return b.String()
}
