package deadlock

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Iron-Ham/dagrun/internal/task"
)

func cyclicGraph() *task.Graph {
	return task.NewGraph([]*task.Task{
		{ID: "T1", DependsOn: []string{"T2"}},
		{ID: "T2", DependsOn: []string{"T1"}},
	})
}

func TestResolve_FixerBreaksCycle(t *testing.T) {
	g := cyclicGraph()

	var gotDescription string
	fixer := FixerFunc(func(ctx context.Context, description string) error {
		gotDescription = description
		return nil
	})
	rebuild := func() (*task.Graph, error) {
		// Declarations after the rewrite: the T1 -> T2 edge is gone.
		return task.NewGraph([]*task.Task{
			{ID: "T1"},
			{ID: "T2", DependsOn: []string{"T1"}},
		}), nil
	}

	r := NewResolver(fixer, rebuild, nil)
	ok, fresh := r.Resolve(context.Background(), g, []string{"T1", "T2"})
	if !ok {
		t.Fatal("Expected resolution to succeed")
	}
	if fresh == nil || fresh.Len() != 2 {
		t.Fatalf("Expected rebuilt graph with 2 tasks, got %v", fresh)
	}
	if !strings.Contains(gotDescription, "T1 -> T2 -> T1") && !strings.Contains(gotDescription, "T2 -> T1 -> T2") {
		t.Errorf("Description should name the cycle, got:\n%s", gotDescription)
	}
}

func TestResolve_FixerErrorFails(t *testing.T) {
	fixer := FixerFunc(func(ctx context.Context, description string) error {
		return errors.New("worker crashed")
	})
	rebuild := func() (*task.Graph, error) {
		t.Fatal("rebuild must not run after fixer failure")
		return nil, nil
	}

	r := NewResolver(fixer, rebuild, nil)
	ok, fresh := r.Resolve(context.Background(), cyclicGraph(), []string{"T1", "T2"})
	if ok || fresh != nil {
		t.Error("Fixer failure must return (false, nil)")
	}
}

func TestResolve_CycleSurvivingRewriteFails(t *testing.T) {
	fixer := FixerFunc(func(ctx context.Context, description string) error {
		return nil
	})
	rebuild := func() (*task.Graph, error) {
		return cyclicGraph(), nil // fixer changed nothing
	}

	r := NewResolver(fixer, rebuild, nil)
	ok, fresh := r.Resolve(context.Background(), cyclicGraph(), []string{"T1", "T2"})
	if ok || fresh != nil {
		t.Error("Surviving cycle must return (false, nil)")
	}
}

func TestResolve_RebuildProducingNoGraphFails(t *testing.T) {
	fixer := FixerFunc(func(ctx context.Context, description string) error {
		return nil
	})
	rebuild := func() (*task.Graph, error) {
		return nil, nil // declarations still incomplete
	}

	r := NewResolver(fixer, rebuild, nil)
	ok, _ := r.Resolve(context.Background(), cyclicGraph(), []string{"T1", "T2"})
	if ok {
		t.Error("Missing rebuilt graph must fail resolution")
	}
}

func TestResolve_NoFixerConfigured(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	ok, _ := r.Resolve(context.Background(), cyclicGraph(), []string{"T1", "T2"})
	if ok {
		t.Error("Resolution without a fixer must fail")
	}
}

func TestDescribe_AnnotatesDependencies(t *testing.T) {
	g := task.NewGraph([]*task.Task{
		{ID: "T1", Title: "Build parser", DependsOn: []string{"T2", "ghost"}},
		{ID: "T2", DependsOn: []string{"T1"}},
	})
	cycles := task.DetectCycles(g)

	got := Describe(g, []string{"T1", "T2"}, cycles)

	for _, want := range []string{
		"T1 (Build parser)",
		"ghost (does not exist)",
		"T2 (pending)",
		"Detected dependency cycles:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Description missing %q:\n%s", want, got)
		}
	}
}

func TestDescribe_StallWithoutCycle(t *testing.T) {
	g := task.NewGraph([]*task.Task{
		{ID: "T1", DependsOn: []string{"ghost"}},
	})

	got := Describe(g, []string{"T1"}, nil)
	if !strings.Contains(got, "No cycle was found") {
		t.Errorf("Expected unsatisfiable-dependency wording, got:\n%s", got)
	}
}
