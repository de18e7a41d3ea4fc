package task

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseDeclaration_Basic(t *testing.T) {
	got := ParseDepsDeclaration("Implements the parser. @deps [T1, T2]")
	if !reflect.DeepEqual(got, []string{"T1", "T2"}) {
		t.Errorf("Expected [T1 T2], got %v", got)
	}
}

func TestParseDeclaration_MissingTag(t *testing.T) {
	if got := ParseDepsDeclaration("no tags here"); got != nil {
		t.Errorf("Expected nil for missing tag, got %v", got)
	}
}

func TestParseDeclaration_EmptyMarkers(t *testing.T) {
	for _, text := range []string{
		"@deps [none]",
		"@deps [N/A]",
		"@deps [-]",
		"@deps []",
	} {
		if got := ParseDepsDeclaration(text); len(got) != 0 {
			t.Errorf("%q: expected empty, got %v", text, got)
		}
	}
}

func TestParseDeclaration_CaseInsensitiveDedup(t *testing.T) {
	got := ParseFilesDeclaration("@files [src/Main.go, src/main.go, other.go]")
	if !reflect.DeepEqual(got, []string{"src/Main.go", "other.go"}) {
		t.Errorf("Expected first spelling kept, got %v", got)
	}
}

func TestParseDeclaration_WhitespaceAndCase(t *testing.T) {
	got := ParseDeclaration("prefix @DEPS [ a ,  b ] suffix", DepsTag)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected trimmed [a b], got %v", got)
	}
}

func TestParsePlan_RootFormat(t *testing.T) {
	data := []byte(`{
		"tasks": [
			{"id": "T1", "title": "First", "files": ["a.go"]},
			{"id": "T2", "depends_on": ["T1"]}
		]
	}`)

	g, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("Expected 2 tasks, got %d", g.Len())
	}
	if !g.Get("T2").DependsOnTask("T1") {
		t.Error("T2 should depend on T1")
	}
}

func TestParsePlan_NestedFormat(t *testing.T) {
	data := []byte(`{"plan": {"tasks": [{"id": "T1"}]}}`)

	g, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if g.Get("T1") == nil {
		t.Error("Expected T1 from nested plan wrapper")
	}
}

func TestParsePlan_AlternativeDependencyFields(t *testing.T) {
	data := []byte(`{
		"tasks": [
			{"id": "T1"},
			{"id": "T2", "depends": ["T1"]},
			{"id": "T3", "deps": ["T2"]}
		]
	}`)

	g, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if !g.Get("T2").DependsOnTask("T1") {
		t.Error("'depends' alias should populate dependencies")
	}
	if !g.Get("T3").DependsOnTask("T2") {
		t.Error("'deps' alias should populate dependencies")
	}
}

func TestParsePlan_FallsBackToDescriptionTags(t *testing.T) {
	data := []byte(`{
		"tasks": [
			{"id": "T1", "description": "setup @files [go.mod]"},
			{"id": "T2", "description": "build @deps [T1] @files [main.go]"}
		]
	}`)

	g, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if !g.Get("T2").DependsOnTask("T1") {
		t.Error("Dependencies should fall back to @deps tag")
	}
	if !reflect.DeepEqual(g.Get("T1").Files, []string{"go.mod"}) {
		t.Errorf("Files should fall back to @files tag, got %v", g.Get("T1").Files)
	}
}

func TestParsePlan_CompletedStatusPassesThrough(t *testing.T) {
	data := []byte(`{"tasks": [{"id": "T1", "status": "completed"}, {"id": "T2", "status": "running"}]}`)

	g, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if got := g.Get("T1").Status; got != StatusCompleted {
		t.Errorf("Expected completed, got %s", got)
	}
	// Declarations may only claim pending or completed.
	if got := g.Get("T2").Status; got != StatusPending {
		t.Errorf("Expected running reset to pending, got %s", got)
	}
}

func TestParsePlan_NoTasks(t *testing.T) {
	if _, err := ParsePlan([]byte(`{"tasks": []}`)); err == nil {
		t.Error("Expected error for plan with no tasks")
	}
	if _, err := ParsePlan([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLoadPlanFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	content := `{"tasks": [{"id": "T1"}, {"id": "T2", "depends_on": ["T1"]}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	g, err := LoadPlanFile(path)
	if err != nil {
		t.Fatalf("LoadPlanFile failed: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Expected 2 tasks, got %d", g.Len())
	}

	if _, err := LoadPlanFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSnapshotFromFile_MissingFileYieldsNoGraph(t *testing.T) {
	snap := SnapshotFromFile(filepath.Join(t.TempDir(), "missing.json"))

	g, err := snap()
	if err != nil {
		t.Errorf("Expected nil error for missing file, got %v", err)
	}
	if g != nil {
		t.Errorf("Expected nil graph for missing file, got %v", g)
	}
}

func TestSnapshotFromFile_RereadsOnEachCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	snap := SnapshotFromFile(path)

	if err := os.WriteFile(path, []byte(`{"tasks": [{"id": "T1"}]}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	g, _ := snap()
	if g == nil || g.Len() != 1 {
		t.Fatalf("Expected 1 task, got %v", g)
	}

	if err := os.WriteFile(path, []byte(`{"tasks": [{"id": "T1"}, {"id": "T2"}]}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	g, _ = snap()
	if g == nil || g.Len() != 2 {
		t.Fatalf("Expected 2 tasks after rewrite, got %v", g)
	}
}
