package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CompleteFileName is the durable completion marker written inside a
// task's work directory.
const CompleteFileName = ".dagrun-task-complete.json"

// CompletionMarker is the payload of the durable completion file.
type CompletionMarker struct {
	TaskID      string    `json:"task_id"`
	Summary     string    `json:"summary,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// MarkerChecker is a file-backed CompletionChecker rooted at a directory
// holding one work directory per task.
//
// A task exists while {root}/{taskID} is present; when a task is split
// into subtasks its work directory is removed and Exists turns false. A
// task is complete once {root}/{taskID}/.dagrun-task-complete.json exists.
// Both checks read current disk state, so they are idempotent.
type MarkerChecker struct {
	root string
}

// NewMarkerChecker creates a checker rooted at root.
func NewMarkerChecker(root string) *MarkerChecker {
	return &MarkerChecker{root: root}
}

// TaskDir returns the work directory for a task.
func (m *MarkerChecker) TaskDir(taskID string) string {
	return filepath.Join(m.root, taskID)
}

// Exists returns true while the task's work directory is present.
func (m *MarkerChecker) Exists(taskID string) bool {
	info, err := os.Stat(m.TaskDir(taskID))
	return err == nil && info.IsDir()
}

// Completed returns true once the completion marker has been written.
func (m *MarkerChecker) Completed(taskID string) bool {
	_, err := os.Stat(filepath.Join(m.TaskDir(taskID), CompleteFileName))
	return err == nil
}

// MarkComplete writes the durable completion marker for a task, creating
// the work directory if needed. Workers normally write the marker
// themselves; this helper serves tests and manual intervention.
func (m *MarkerChecker) MarkComplete(taskID, summary string) error {
	dir := m.TaskDir(taskID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}

	data, err := json.MarshalIndent(CompletionMarker{
		TaskID:      taskID,
		Summary:     summary,
		CompletedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode completion marker: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, CompleteFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write completion marker: %w", err)
	}
	return nil
}

var _ CompletionChecker = (*MarkerChecker)(nil)
