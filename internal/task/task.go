// Package task defines the task graph data model for dagrun.
//
// A run operates over a single Graph: a mapping from stable string
// identifiers to Task records. Tasks carry their declared dependencies and
// expected files; the executor owns all status transitions. The graph is
// rebuilt from external declarations periodically and merged back in with
// explicit non-regression rules (see Graph.Merge).
//
// This package also provides the dependency cycle detector, declaration
// tag parsing, plan-file loading, and plan validation.
package task

import "time"

// Status represents the lifecycle state of a task.
//
// Tasks move pending -> running -> completed or failed. The only path back
// to pending is a snapshot merge replacing a task that never started.
type Status string

const (
	// StatusPending indicates the task has not yet started execution.
	StatusPending Status = "pending"

	// StatusRunning indicates the task is currently executing.
	StatusRunning Status = "running"

	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task exhausted its attempts.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task represents a single unit of work in the graph.
//
// Each task is fulfilled by driving an external worker through an ordered
// phase pipeline. Tasks should be granular enough to complete in a single
// worker invocation per phase.
type Task struct {
	// ID uniquely identifies this task within the graph.
	ID string `json:"id"`

	// Title is a short, human-readable name for the task.
	Title string `json:"title,omitempty"`

	// Description contains detailed instructions for the executing worker.
	// May embed @deps and @files declaration tags.
	Description string `json:"description,omitempty"`

	// DependsOn lists task IDs that must complete before this task can start.
	// A dependency that names no task in the graph is treated as permanently
	// unsatisfied, never as a construction error.
	DependsOn []string `json:"depends_on"`

	// Files lists the files this task expects to modify.
	// Used for conflict detection between parallel tasks.
	Files []string `json:"files,omitempty"`

	// Status is the current lifecycle state. Written only by the executor.
	Status Status `json:"status"`

	// Step is the current pipeline step, for display only.
	Step string `json:"step,omitempty"`

	// LastMessage is the most recent progress or error text, for display only.
	LastMessage string `json:"last_message,omitempty"`

	// StartedAt is when the task began executing (zero if pending).
	StartedAt time.Time `json:"started_at,omitempty"`

	// FinishedAt is when the task reached a terminal state.
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// HasDependencies returns true if this task depends on other tasks.
func (t *Task) HasDependencies() bool {
	return len(t.DependsOn) > 0
}

// HasFiles returns true if this task declares expected files.
func (t *Task) HasFiles() bool {
	return len(t.Files) > 0
}

// DependsOnTask returns true if id appears in this task's direct dependencies.
func (t *Task) DependsOnTask(id string) bool {
	for _, dep := range t.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// Duration returns how long the task has been or was running.
// Returns zero for tasks that never started.
func (t *Task) Duration() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if t.FinishedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.DependsOn != nil {
		c.DependsOn = make([]string, len(t.DependsOn))
		copy(c.DependsOn, t.DependsOn)
	}
	if t.Files != nil {
		c.Files = make([]string, len(t.Files))
		copy(c.Files, t.Files)
	}
	return &c
}
