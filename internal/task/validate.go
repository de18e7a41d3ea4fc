package task

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a validation message.
type Severity string

const (
	// SeverityError indicates a blocking issue that must be fixed before a run.
	SeverityError Severity = "error"

	// SeverityWarning indicates a potential issue that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityInfo indicates informational feedback.
	SeverityInfo Severity = "info"
)

// ValidationMessage represents a single validation issue.
type ValidationMessage struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	TaskID     string   `json:"task_id,omitempty"`
	RelatedIDs []string `json:"related_ids,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// IsError returns true if this message is an error.
func (m *ValidationMessage) IsError() bool {
	return m.Severity == SeverityError
}

// ValidationResult contains the complete validation results for a graph.
type ValidationResult struct {
	IsValid      bool                `json:"is_valid"`
	Messages     []ValidationMessage `json:"messages"`
	ErrorCount   int                 `json:"error_count"`
	WarningCount int                 `json:"warning_count"`
}

func (r *ValidationResult) add(msg ValidationMessage) {
	r.Messages = append(r.Messages, msg)
	switch msg.Severity {
	case SeverityError:
		r.IsValid = false
		r.ErrorCount++
	case SeverityWarning:
		r.WarningCount++
	}
}

// ValidateGraph reports structural issues with a graph before execution.
//
// Cycles and unknown dependency references are errors; a run started over
// such a graph would stall until the deadlock resolver intervenes. File
// overlaps between parallel tasks and tasks without declared files are
// advisory only, since the executor auto-serializes overlaps at run time.
func ValidateGraph(g *Graph) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if g == nil || g.Len() == 0 {
		result.add(ValidationMessage{
			Severity:   SeverityError,
			Message:    "Graph has no tasks",
			Suggestion: "Add at least one task to the plan",
		})
		return result
	}

	for _, id := range g.IDs() {
		t := g.Get(id)
		for _, depID := range t.DependsOn {
			if g.Get(depID) == nil {
				result.add(ValidationMessage{
					Severity:   SeverityError,
					Message:    fmt.Sprintf("Depends on unknown task %q", depID),
					TaskID:     id,
					RelatedIDs: []string{depID},
					Suggestion: fmt.Sprintf("Remove %q from dependencies or declare a task with that ID", depID),
				})
			}
		}
	}

	for _, c := range DetectCycles(g) {
		result.add(ValidationMessage{
			Severity:   SeverityError,
			Message:    fmt.Sprintf("Dependency cycle detected: %s", c),
			RelatedIDs: c.Members(),
			Suggestion: "Remove one of the dependencies to break the cycle",
		})
	}

	for file, ids := range filesToTasks(g) {
		if len(ids) < 2 || allChained(g, ids) {
			continue
		}
		result.add(ValidationMessage{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("File %q is declared by multiple parallel tasks", file),
			RelatedIDs: ids,
			Suggestion: "Add dependencies between these tasks or assign different files",
		})
	}

	for _, id := range g.IDs() {
		if !g.Get(id).HasFiles() {
			result.add(ValidationMessage{
				Severity:   SeverityInfo,
				Message:    "Task declares no files; conflicts with it cannot be detected",
				TaskID:     id,
				Suggestion: "Add an @files declaration listing the files the task will modify",
			})
		}
	}

	return result
}

func filesToTasks(g *Graph) map[string][]string {
	byFile := make(map[string][]string)
	for _, id := range g.IDs() {
		for _, f := range g.Get(id).Files {
			key := strings.ToLower(f)
			byFile[key] = append(byFile[key], id)
		}
	}
	return byFile
}

// allChained returns true if every pair of the given tasks is related by a
// dependency chain, meaning they can never run concurrently.
func allChained(g *Graph, ids []string) bool {
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			if !g.DependsOnTransitively(a, b) && !g.DependsOnTransitively(b, a) {
				return false
			}
		}
	}
	return true
}
