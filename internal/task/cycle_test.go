package task

import (
	"sort"
	"strings"
	"testing"
)

// depGraph builds a graph where every task is pending and deps maps
// task ID to its dependency list.
func depGraph(deps map[string][]string) *Graph {
	tasks := make([]*Task, 0, len(deps))
	for id, d := range deps {
		tasks = append(tasks, &Task{ID: id, DependsOn: d})
	}
	return NewGraph(tasks)
}

func TestDetectCycles_AcyclicGraph(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": nil,
		"T2": {"T1"},
		"T3": {"T1", "T2"},
	})

	cycles := DetectCycles(g)
	if cycles != nil {
		t.Errorf("Expected no cycles, got %v", cycles)
	}
	if HasCycles(g) {
		t.Error("HasCycles returned true for acyclic graph")
	}
}

func TestDetectCycles_TwoNodeCycle(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": {"T2"},
		"T2": {"T1"},
	})

	cycles := DetectCycles(g)
	if len(cycles) == 0 {
		t.Fatal("Expected at least one cycle")
	}

	members := cycles[0].Members()
	sort.Strings(members)
	if len(members) != 2 || members[0] != "T1" || members[1] != "T2" {
		t.Errorf("Expected cycle members [T1 T2], got %v", members)
	}
}

func TestDetectCycles_SelfLoop(t *testing.T) {
	// NewGraph strips self-edges, so build the graph directly.
	g := &Graph{Tasks: map[string]*Task{
		"T1": {ID: "T1", DependsOn: []string{"T1"}, Status: StatusPending},
	}}

	cycles := DetectCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(cycles))
	}
	if got := cycles[0].String(); got != "T1 -> T1" {
		t.Errorf("Expected cycle 'T1 -> T1', got %q", got)
	}
}

func TestDetectCycles_DanglingReferenceIsNotACycle(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": {"missing"},
		"T2": {"T1"},
	})

	if cycles := DetectCycles(g); cycles != nil {
		t.Errorf("Expected no cycles for dangling reference, got %v", cycles)
	}
}

func TestDetectCycles_DisconnectedComponents(t *testing.T) {
	g := depGraph(map[string][]string{
		"A1": {"A2"},
		"A2": {"A1"},
		"B1": {"B2"},
		"B2": {"B1"},
		"C1": nil,
	})

	cycles := DetectCycles(g)
	if len(cycles) != 2 {
		t.Fatalf("Expected 2 cycles, got %d: %v", len(cycles), cycles)
	}

	for _, c := range cycles {
		for _, id := range c.Members() {
			if id == "C1" {
				t.Errorf("C1 should not be part of any cycle: %v", c)
			}
		}
	}
}

func TestDetectCycles_LongCycle(t *testing.T) {
	g := depGraph(map[string][]string{
		"T1": {"T3"},
		"T2": {"T1"},
		"T3": {"T2"},
	})

	cycles := DetectCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(cycles))
	}

	members := cycles[0].Members()
	if len(members) != 3 {
		t.Errorf("Expected 3 cycle members, got %v", members)
	}
}

func TestDetectCycles_DeduplicatesSameMembership(t *testing.T) {
	// Both edges of the pair are discoverable from either start node, but
	// the cycle should be reported once.
	g := depGraph(map[string][]string{
		"T1": {"T2"},
		"T2": {"T1"},
		"T3": {"T1", "T2"},
	})

	cycles := DetectCycles(g)
	if len(cycles) != 1 {
		t.Errorf("Expected 1 deduplicated cycle, got %d: %v", len(cycles), cycles)
	}
}

func TestDetectCycles_EmptyAndNilGraph(t *testing.T) {
	if cycles := DetectCycles(nil); cycles != nil {
		t.Errorf("Expected nil for nil graph, got %v", cycles)
	}
	if cycles := DetectCycles(&Graph{Tasks: map[string]*Task{}}); cycles != nil {
		t.Errorf("Expected nil for empty graph, got %v", cycles)
	}
}

func TestCycle_String(t *testing.T) {
	c := Cycle{"a", "b", "a"}
	if got := c.String(); got != "a -> b -> a" {
		t.Errorf("Expected 'a -> b -> a', got %q", got)
	}
	if !strings.Contains(c.String(), "->") {
		t.Error("Cycle string should contain arrows")
	}
}
