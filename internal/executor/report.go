package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/dagrun/internal/task"
)

// DepDiagnostic describes one unmet dependency of a stuck task.
type DepDiagnostic struct {
	// ID is the dependency identifier as declared.
	ID string

	// Exists is false when no task with this ID is in the graph at all.
	Exists bool

	// Status is the dependency's status when it exists.
	Status task.Status
}

func (d DepDiagnostic) String() string {
	if !d.Exists {
		return fmt.Sprintf("%s (not in graph)", d.ID)
	}
	return fmt.Sprintf("%s (%s)", d.ID, d.Status)
}

// Report is the end-of-run summary.
type Report struct {
	// Completed, Failed, and Pending list task IDs by final status, sorted.
	Completed []string
	Failed    []string
	Pending   []string

	// FailureCauses maps each failed task to its last observed cause.
	FailureCauses map[string]string

	// Attempts maps each task that ever failed an attempt to its count.
	Attempts map[string]int

	// Durations maps each task that ran to its wall time.
	Durations map[string]time.Duration

	// Unsatisfied maps each still-pending task to its unmet dependencies.
	Unsatisfied map[string][]DepDiagnostic

	// Duration is the wall time of the run.
	Duration time.Duration
}

// FailedCount returns the number of failed tasks.
func (r *Report) FailedCount() int {
	return len(r.Failed)
}

// Clean returns true when every task completed.
func (r *Report) Clean() bool {
	return len(r.Failed) == 0 && len(r.Pending) == 0
}

// Summary renders the one-line counts summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d completed, %d failed, %d pending (%s)",
		len(r.Completed), len(r.Failed), len(r.Pending), r.Duration.Round(time.Millisecond))
}

// buildReport snapshots the run outcome. Takes mu internally.
func (e *Executor) buildReport(start time.Time) *Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := &Report{
		Completed:     e.graph.TasksWithStatus(task.StatusCompleted),
		Failed:        e.graph.TasksWithStatus(task.StatusFailed),
		Pending:       e.graph.TasksWithStatus(task.StatusPending),
		FailureCauses: make(map[string]string),
		Attempts:      make(map[string]int),
		Durations:     make(map[string]time.Duration),
		Unsatisfied:   make(map[string][]DepDiagnostic),
		Duration:      time.Since(start),
	}

	for _, id := range r.Failed {
		if cause := e.retries.lastError(id); cause != "" {
			r.FailureCauses[id] = cause
		} else if t := e.graph.Get(id); t != nil {
			r.FailureCauses[id] = t.LastMessage
		}
	}
	for _, id := range e.graph.IDs() {
		if n := e.retries.attempts(id); n > 0 {
			r.Attempts[id] = n
		}
		if d := e.graph.Get(id).Duration(); d > 0 {
			r.Durations[id] = d
		}
	}
	for _, id := range r.Pending {
		r.Unsatisfied[id] = e.unmetDepsLocked(id)
	}

	return r
}

// unmetDepsLocked lists the dependencies blocking a pending task.
// Must be called with mu held.
func (e *Executor) unmetDepsLocked(id string) []DepDiagnostic {
	t := e.graph.Get(id)
	if t == nil {
		return nil
	}
	var diags []DepDiagnostic
	for _, depID := range t.DependsOn {
		dep := e.graph.Get(depID)
		if dep == nil {
			diags = append(diags, DepDiagnostic{ID: depID})
			continue
		}
		if dep.Status != task.StatusCompleted {
			diags = append(diags, DepDiagnostic{ID: depID, Exists: true, Status: dep.Status})
		}
	}
	return diags
}

// deadlockError builds the fatal error for an unresolved deadlock: one line
// per stuck task naming each unmet dependency and whether it exists.
func (e *Executor) deadlockError(attempts int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "deadlock unresolved after %d resolver attempts; stuck tasks:", attempts)
	for _, id := range e.graph.TasksWithStatus(task.StatusPending) {
		diags := e.unmetDepsLocked(id)
		parts := make([]string, 0, len(diags))
		for _, d := range diags {
			parts = append(parts, d.String())
		}
		fmt.Fprintf(&b, "\n  %s: waiting on %s", id, strings.Join(parts, ", "))
	}
	return fmt.Errorf("%s", b.String())
}
