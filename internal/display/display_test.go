package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/dagrun/internal/conflict"
	"github.com/Iron-Ham/dagrun/internal/executor"
)

func TestPrinter_TaskLifecycleLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.OnTaskStarted("T1")
	p.OnTaskRetrying("T1", 1, errors.New("flaky"))
	p.OnTaskCompleted("T1")
	p.OnTaskFailed("T2", errors.New("broken"))

	out := buf.String()
	for _, want := range []string{"T1", "attempt 1 failed", "flaky", "T2", "broken"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_ConflictAndDeadlockLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.OnConflictsResolved([]conflict.Resolution{
		{Task: "T2", RunsAfter: "T1", Files: []string{"a.txt"}},
	})
	p.OnDeadlock(1, false)
	p.OnDeadlock(2, true)

	out := buf.String()
	if !strings.Contains(out, "T2 now runs after T1") {
		t.Errorf("Missing serialization line:\n%s", out)
	}
	if !strings.Contains(out, "attempt 1 failed") {
		t.Errorf("Missing failed resolution line:\n%s", out)
	}
	if !strings.Contains(out, "deadlock resolved (attempt 2)") {
		t.Errorf("Missing resolved line:\n%s", out)
	}
}

func TestPrinter_Report(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintReport(&executor.Report{
		Completed:     []string{"T1"},
		Failed:        []string{"T2"},
		Pending:       []string{"T3"},
		FailureCauses: map[string]string{"T2": "exit status 1"},
		Durations: map[string]time.Duration{
			"T1": 1500 * time.Millisecond,
			"T2": 250 * time.Millisecond,
		},
		Unsatisfied: map[string][]executor.DepDiagnostic{
			"T3": {{ID: "T2", Exists: true, Status: "failed"}},
		},
		Duration: 3 * time.Second,
	})

	out := buf.String()
	for _, want := range []string{
		"Run summary",
		"1 completed, 1 failed, 1 pending",
		"exit status 1",
		"T2 (failed)",
		"1.5s",  // T1 duration
		"250ms", // T2 duration
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_ProgressLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.OnProgress(executor.Progress{Total: 3, Completed: 1, Running: 1, Pending: 1})
	p.OnProgress(executor.Progress{Total: 3, Completed: 2, Failed: 1})

	out := buf.String()
	if !strings.Contains(out, "1/3 done, 1 running") {
		t.Errorf("Missing in-flight progress line:\n%s", out)
	}
	if !strings.Contains(out, "all tasks settled: 2 completed, 1 failed") {
		t.Errorf("Missing settled line:\n%s", out)
	}
}
