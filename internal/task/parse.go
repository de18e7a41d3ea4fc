package task

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Declaration tags recognized in task description text.
const (
	DepsTag  = "deps"
	FilesTag = "files"
)

// emptyMarkers are values meaning "declared nothing" inside a tag list.
var emptyMarkers = map[string]bool{
	"none": true,
	"n/a":  true,
	"-":    true,
}

// ParseDeclaration extracts a declared list from semi-structured text.
//
// It looks for a tag of the form "@<tag> [a, b, c]". Entries are
// comma-separated and trimmed; duplicates are dropped case-insensitively,
// keeping the first spelling seen. A missing tag, an empty list, or a
// "none" marker all yield an empty result.
func ParseDeclaration(text, tag string) []string {
	re := regexp.MustCompile(`(?is)@` + regexp.QuoteMeta(tag) + `\s*\[([^\]]*)\]`)
	matches := re.FindStringSubmatch(text)
	if len(matches) < 2 {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(matches[1], ",") {
		entry := strings.TrimSpace(part)
		if entry == "" || emptyMarkers[strings.ToLower(entry)] {
			continue
		}
		key := strings.ToLower(entry)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, entry)
	}
	return out
}

// ParseDepsDeclaration extracts the declared dependency list from text.
func ParseDepsDeclaration(text string) []string {
	return ParseDeclaration(text, DepsTag)
}

// ParseFilesDeclaration extracts the declared file list from text.
// Returns an empty result when no @files tag is present.
func ParseFilesDeclaration(text string) []string {
	return ParseDeclaration(text, FilesTag)
}

// flexibleTask handles alternative field names a planner may generate.
type flexibleTask struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Files       []string `json:"files,omitempty"`
	DependsOn   []string `json:"depends_on"`
	Depends     []string `json:"depends"` // Alternative name
	Deps        []string `json:"deps"`    // Alternative name
	Status      string   `json:"status,omitempty"`
}

type planContent struct {
	Summary string         `json:"summary"`
	Tasks   []flexibleTask `json:"tasks"`
}

// ParsePlan parses a plan document into a graph.
//
// Two formats are supported:
//  1. Root-level format: {"tasks": [...]}
//  2. Nested format: {"plan": {"tasks": [...]}}
//
// Dependencies and files omitted from the structured fields are picked up
// from @deps / @files tags embedded in the task description.
func ParsePlan(data []byte) (*Graph, error) {
	var raw planContent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}

	// If no tasks found, try the nested "plan" wrapper format.
	if len(raw.Tasks) == 0 {
		var wrapped struct {
			Plan planContent `json:"plan"`
		}
		if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Plan.Tasks) > 0 {
			raw = wrapped.Plan
		}
	}

	if len(raw.Tasks) == 0 {
		return nil, fmt.Errorf("plan contains no tasks")
	}

	tasks := make([]*Task, 0, len(raw.Tasks))
	for _, ft := range raw.Tasks {
		deps := ft.DependsOn
		if len(deps) == 0 {
			deps = ft.Depends
		}
		if len(deps) == 0 {
			deps = ft.Deps
		}
		if len(deps) == 0 {
			deps = ParseDepsDeclaration(ft.Description)
		}

		files := ft.Files
		if len(files) == 0 {
			files = ParseFilesDeclaration(ft.Description)
		}

		status := StatusPending
		if ft.Status == string(StatusCompleted) {
			status = StatusCompleted
		}

		tasks = append(tasks, &Task{
			ID:          ft.ID,
			Title:       ft.Title,
			Description: ft.Description,
			DependsOn:   dedupeFold(deps),
			Files:       files,
			Status:      status,
		})
	}

	return NewGraph(tasks), nil
}

// LoadPlanFile reads and parses a plan from a JSON file.
func LoadPlanFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlan(data)
}

// SnapshotFromFile returns a SnapshotFunc that rebuilds the graph from the
// plan file at path. A missing or unparseable file yields (nil, nil): the
// declarations cannot produce a complete graph yet, so the caller keeps
// the graph it has.
func SnapshotFromFile(path string) SnapshotFunc {
	return func() (*Graph, error) {
		g, err := LoadPlanFile(path)
		if err != nil {
			return nil, nil
		}
		return g, nil
	}
}

func dedupeFold(entries []string) []string {
	if len(entries) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
