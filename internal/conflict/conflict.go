// Package conflict detects and resolves file conflicts between tasks.
//
// Two tasks conflict when neither depends on the other (so they may run
// concurrently) and both declare an intent to modify the same file. The
// detector is pure; AutoResolve serializes conflicting pairs by adding a
// dependency edge, reusing the scheduler's ordering guarantee instead of
// introducing a lock primitive.
//
// A live fsnotify-backed Watcher complements the declared-file analysis by
// observing actual writes in per-task work directories (see watcher.go).
package conflict

import (
	"sort"
	"strings"

	"github.com/Iron-Ham/dagrun/internal/task"
)

// Conflict is an unordered pair of tasks declaring overlapping files.
// TaskA is always the lexicographically smaller identifier. Files keep the
// spelling from the task declarations, not the normalized comparison form.
type Conflict struct {
	TaskA string   `json:"task_a"`
	TaskB string   `json:"task_b"`
	Files []string `json:"files"`
}

// Resolution records one dependency edge added to serialize a conflict.
type Resolution struct {
	// Task is the task that gained a dependency.
	Task string `json:"task"`

	// RunsAfter is the task it now depends on.
	RunsAfter string `json:"runs_after"`

	// Files are the overlapping files that forced the serialization.
	Files []string `json:"files"`
}

// ParseFilesDeclaration extracts a declared file list from text.
// It recognizes the @files [...] tag; the result is empty if absent.
func ParseFilesDeclaration(text string) []string {
	return task.ParseFilesDeclaration(text)
}

// CanRunInParallel returns true when tasks a and b may execute
// concurrently: both exist and neither transitively depends on the other.
// The relation is symmetric.
func CanRunInParallel(g *task.Graph, a, b string) bool {
	if g.Get(a) == nil || g.Get(b) == nil {
		return false
	}
	if g.DependsOnTransitively(a, b) || g.DependsOnTransitively(b, a) {
		return false
	}
	return true
}

// normalizePath produces the comparison form of a declared path:
// lower-cased with forward slashes and trimmed whitespace.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.ToLower(p)
}

// DetectFileConflicts finds every pair of parallel-capable tasks with
// overlapping declared files.
//
// Paths are compared case-insensitively with separators normalized, but
// each reported file keeps its original spelling (the first task's, when
// the two spellings differ). Results are ordered by task pair.
func DetectFileConflicts(g *task.Graph) []Conflict {
	ids := g.IDs()

	var conflicts []Conflict
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			if !CanRunInParallel(g, a, b) {
				continue
			}
			overlap := overlappingFiles(g.Get(a), g.Get(b))
			if len(overlap) == 0 {
				continue
			}
			conflicts = append(conflicts, Conflict{TaskA: a, TaskB: b, Files: overlap})
		}
	}
	return conflicts
}

func overlappingFiles(a, b *task.Task) []string {
	declared := make(map[string]string, len(a.Files)) // normalized -> original
	for _, f := range a.Files {
		key := normalizePath(f)
		if _, ok := declared[key]; !ok {
			declared[key] = f
		}
	}

	var overlap []string
	seen := make(map[string]bool)
	for _, f := range b.Files {
		key := normalizePath(f)
		orig, ok := declared[key]
		if ok && !seen[key] {
			seen[key] = true
			overlap = append(overlap, orig)
		}
	}
	sort.Strings(overlap)
	return overlap
}

// AutoResolveConflicts serializes each conflicting pair by making the
// lexicographically larger task depend on the smaller one. Picking the
// smaller identifier as "first" makes the resulting graph reproducible
// regardless of detection order.
//
// Adding an edge that already exists is a no-op, so running this twice
// over the same graph adds nothing. Returns a record per edge added.
func AutoResolveConflicts(g *task.Graph, conflicts []Conflict) []Resolution {
	var resolutions []Resolution
	for _, c := range conflicts {
		first, second := c.TaskA, c.TaskB
		if first > second {
			first, second = second, first
		}
		if g.AddDependency(second, first) {
			resolutions = append(resolutions, Resolution{
				Task:      second,
				RunsAfter: first,
				Files:     c.Files,
			})
		}
	}
	return resolutions
}

// SuggestDependencyFixes returns the serializations AutoResolveConflicts
// would apply, without mutating the graph. Advisory, for validation output.
func SuggestDependencyFixes(g *task.Graph) []Resolution {
	var suggestions []Resolution
	for _, c := range DetectFileConflicts(g) {
		suggestions = append(suggestions, Resolution{
			Task:      c.TaskB,
			RunsAfter: c.TaskA,
			Files:     c.Files,
		})
	}
	return suggestions
}

// FindTasksMissingFiles returns the IDs of tasks with no declared files.
// Conflicts involving such tasks cannot be detected; this is a coverage
// warning only, never enforced.
func FindTasksMissingFiles(g *task.Graph) []string {
	var missing []string
	for _, id := range g.IDs() {
		if !g.Get(id).HasFiles() {
			missing = append(missing, id)
		}
	}
	return missing
}
