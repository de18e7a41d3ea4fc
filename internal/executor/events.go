package executor

import (
	"github.com/Iron-Ham/dagrun/internal/conflict"
	"github.com/Iron-Ham/dagrun/internal/task"
)

// EventHandler receives notifications during a run.
//
// Handlers are a passive progress sink: they are called from the
// executor's goroutines and must not block, and nothing they do feeds
// back into scheduling.
type EventHandler interface {
	// OnTaskStarted is called when a task begins execution.
	OnTaskStarted(taskID string)

	// OnTaskCompleted is called when a task completes successfully.
	OnTaskCompleted(taskID string)

	// OnTaskFailed is called when a task exhausts its attempts.
	OnTaskFailed(taskID string, err error)

	// OnTaskRetrying is called when a phase failed and will be retried.
	OnTaskRetrying(taskID string, attempt int, err error)

	// OnConflictsResolved is called when file conflicts were serialized
	// by adding dependency edges.
	OnConflictsResolved(resolutions []conflict.Resolution)

	// OnDeadlock is called for each deadlock resolution attempt.
	OnDeadlock(attempt int, resolved bool)

	// OnProgress is called with a status snapshot after each settlement.
	OnProgress(p Progress)
}

// Progress is a point-in-time status snapshot for display.
type Progress struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int

	// Statuses maps task ID to its current status.
	Statuses map[string]task.Status
}

// IsComplete returns true when every task reached a terminal state.
func (p Progress) IsComplete() bool {
	return p.Completed+p.Failed == p.Total
}

// nopEvents is the default handler when none is configured.
type nopEvents struct{}

func (nopEvents) OnTaskStarted(string)                      {}
func (nopEvents) OnTaskCompleted(string)                    {}
func (nopEvents) OnTaskFailed(string, error)                {}
func (nopEvents) OnTaskRetrying(string, int, error)         {}
func (nopEvents) OnConflictsResolved([]conflict.Resolution) {}
func (nopEvents) OnDeadlock(int, bool)                      {}
func (nopEvents) OnProgress(Progress)                       {}
