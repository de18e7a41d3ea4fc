package task

import (
	"reflect"
	"testing"
)

func TestNewGraph_StripsSelfEdges(t *testing.T) {
	g := NewGraph([]*Task{
		{ID: "T1", DependsOn: []string{"T1", "T2"}},
		{ID: "T2"},
	})

	got := g.Get("T1").DependsOn
	if !reflect.DeepEqual(got, []string{"T2"}) {
		t.Errorf("Expected self-edge stripped, got %v", got)
	}
}

func TestNewGraph_DefaultsToPending(t *testing.T) {
	g := NewGraph([]*Task{{ID: "T1"}})
	if got := g.Get("T1").Status; got != StatusPending {
		t.Errorf("Expected pending, got %s", got)
	}
}

func TestNewGraph_SkipsNilAndEmptyID(t *testing.T) {
	g := NewGraph([]*Task{nil, {ID: ""}, {ID: "T1"}})
	if g.Len() != 1 {
		t.Errorf("Expected 1 task, got %d", g.Len())
	}
}

func TestReadyTasks_DependencyOrder(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": nil,
		"T2": {"T1"},
		"T3": {"T1", "T2"},
	})

	if got := g.ReadyTasks(); !reflect.DeepEqual(got, []string{"T1"}) {
		t.Fatalf("Expected [T1] ready, got %v", got)
	}

	g.Get("T1").Status = StatusCompleted
	if got := g.ReadyTasks(); !reflect.DeepEqual(got, []string{"T2"}) {
		t.Fatalf("Expected [T2] ready, got %v", got)
	}

	g.Get("T2").Status = StatusCompleted
	if got := g.ReadyTasks(); !reflect.DeepEqual(got, []string{"T3"}) {
		t.Fatalf("Expected [T3] ready, got %v", got)
	}
}

func TestReadyTasks_MissingDependencyNeverReady(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": {"ghost"},
		"T2": nil,
	})

	if got := g.ReadyTasks(); !reflect.DeepEqual(got, []string{"T2"}) {
		t.Errorf("Task with missing dependency must not be ready, got %v", got)
	}
}

func TestReadyTasks_RunningDependencyBlocks(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": nil,
		"T2": {"T1"},
	})
	g.Get("T1").Status = StatusRunning

	if got := g.ReadyTasks(); len(got) != 0 {
		t.Errorf("Running dependency must block, got %v", got)
	}
}

func TestSettled(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil, "T2": nil})
	if g.Settled() {
		t.Error("Pending graph should not be settled")
	}

	g.Get("T1").Status = StatusCompleted
	g.Get("T2").Status = StatusFailed
	if !g.Settled() {
		t.Error("All-terminal graph should be settled")
	}
}

func TestAddDependency(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil, "T2": nil})

	if !g.AddDependency("T2", "T1") {
		t.Error("Expected new edge to be added")
	}
	if g.AddDependency("T2", "T1") {
		t.Error("Duplicate edge should be a no-op")
	}
	if g.AddDependency("T2", "T2") {
		t.Error("Self-edge should be rejected")
	}
	if g.AddDependency("ghost", "T1") {
		t.Error("Missing task should be rejected")
	}
	if !g.Get("T2").DependsOnTask("T1") {
		t.Error("Edge was not recorded")
	}
}

func TestTransitiveDeps(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": nil,
		"T2": {"T1"},
		"T3": {"T2"},
		"T4": {"ghost"},
	})

	deps := g.TransitiveDeps("T3")
	if !deps["T1"] || !deps["T2"] {
		t.Errorf("Expected T1 and T2 in transitive deps, got %v", deps)
	}

	if !g.DependsOnTransitively("T3", "T1") {
		t.Error("T3 should transitively depend on T1")
	}
	if g.DependsOnTransitively("T1", "T3") {
		t.Error("T1 should not depend on T3")
	}

	// Dangling references are members but never traversed.
	if !g.TransitiveDeps("T4")["ghost"] {
		t.Error("Dangling reference should appear as a member")
	}
}

func TestMerge_AddsNewTasks(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil})
	fresh := depGraph(map[string][]string{"T1": nil, "T2": {"T1"}})

	g.Merge(fresh)
	if g.Len() != 2 {
		t.Fatalf("Expected 2 tasks after merge, got %d", g.Len())
	}
	if g.Get("T2") == nil {
		t.Error("New task T2 should be added")
	}
}

func TestMerge_RemovesAbsentPendingOnly(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil, "T2": nil, "T3": nil})
	g.Get("T2").Status = StatusRunning
	g.Get("T3").Status = StatusCompleted

	fresh := depGraph(map[string][]string{})
	g.Merge(fresh)

	if g.Get("T1") != nil {
		t.Error("Absent pending task should be removed")
	}
	if g.Get("T2") == nil {
		t.Error("Running task must survive removal")
	}
	if g.Get("T3") == nil {
		t.Error("Completed task must survive removal")
	}
}

func TestMerge_PromotesPendingToCompleted(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil})
	fresh := depGraph(map[string][]string{"T1": nil})
	fresh.Get("T1").Status = StatusCompleted

	g.Merge(fresh)
	if got := g.Get("T1").Status; got != StatusCompleted {
		t.Errorf("Expected promoted to completed, got %s", got)
	}
}

func TestMerge_NeverDowngradesStatus(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil, "T2": nil})
	g.Get("T1").Status = StatusRunning
	g.Get("T2").Status = StatusCompleted

	fresh := depGraph(map[string][]string{"T1": nil, "T2": nil})
	g.Merge(fresh)

	if got := g.Get("T1").Status; got != StatusRunning {
		t.Errorf("Running task downgraded to %s", got)
	}
	if got := g.Get("T2").Status; got != StatusCompleted {
		t.Errorf("Completed task downgraded to %s", got)
	}
}

func TestMerge_RefreshesDependenciesAndFiles(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil, "T2": nil})

	fresh := NewGraph([]*Task{
		{ID: "T1"},
		{ID: "T2", DependsOn: []string{"T1"}, Files: []string{"a.go"}},
	})
	g.Merge(fresh)

	t2 := g.Get("T2")
	if !t2.DependsOnTask("T1") {
		t.Error("Dependencies should refresh from the snapshot")
	}
	if !reflect.DeepEqual(t2.Files, []string{"a.go"}) {
		t.Errorf("Files should refresh from the snapshot, got %v", t2.Files)
	}
}

func TestClone_IsDeep(t *testing.T) {
	g := NewGraph([]*Task{{ID: "T1", DependsOn: []string{"T0"}, Files: []string{"f"}}})
	c := g.Clone()

	c.Get("T1").DependsOn[0] = "mutated"
	c.Get("T1").Status = StatusFailed

	if g.Get("T1").DependsOn[0] != "T0" {
		t.Error("Clone shares dependency slice with original")
	}
	if g.Get("T1").Status != StatusPending {
		t.Error("Clone shares task struct with original")
	}
}

func TestCounts(t *testing.T) {
	g := depGraph(map[string][]string{"T1": nil, "T2": nil, "T3": nil, "T4": nil})
	g.Get("T2").Status = StatusRunning
	g.Get("T3").Status = StatusCompleted
	g.Get("T4").Status = StatusFailed

	pending, running, completed, failed := g.Counts()
	if pending != 1 || running != 1 || completed != 1 || failed != 1 {
		t.Errorf("Counts = %d/%d/%d/%d, expected 1/1/1/1", pending, running, completed, failed)
	}
}
