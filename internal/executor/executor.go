// Package executor schedules dependency-ordered task execution.
//
// The Executor runs a single poll loop over one shared task graph: it
// computes ready tasks, admits them up to a concurrency limit based on a
// live running count, and drives each admitted task's retry-wrapped phase
// pipeline in its own goroutine. Only the executor writes task status;
// the conflict detector and deadlock resolver mutate dependency edges,
// and only between loop iterations.
//
// Cycles are never validated up front. A sustained stall (zero ready,
// zero running, pending remaining) triggers the deadlock resolver; its
// repeated failure ends the run fatally with per-task diagnostics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Iron-Ham/dagrun/internal/conflict"
	"github.com/Iron-Ham/dagrun/internal/deadlock"
	"github.com/Iron-Ham/dagrun/internal/logging"
	"github.com/Iron-Ham/dagrun/internal/task"
)

// Config holds executor tunables.
type Config struct {
	// MaxConcurrent is the maximum number of tasks running at once.
	// Defaults to the available processor count, minimum 1.
	MaxConcurrent int

	// MaxAttempts bounds the per-task retry loop. Zero means unbounded.
	MaxAttempts int

	// RetryBackoff is the fixed pause between a phase failure and its retry.
	RetryBackoff time.Duration

	// PollInterval is the control loop's sleep between scheduling passes.
	PollInterval time.Duration

	// StallThreshold is the number of consecutive idle polls (zero ready,
	// zero running, pending remaining) before the deadlock resolver runs.
	// A heuristic, not a correctness constant.
	StallThreshold int

	// MaxDeadlockRetries bounds resolver attempts. Exceeding it is fatal.
	MaxDeadlockRetries int

	// Phases is the phase allow-list. Empty means all phases.
	Phases []Phase
}

// DefaultConfig returns sensible defaults for executor configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:      max(runtime.NumCPU(), 1),
		MaxAttempts:        3,
		RetryBackoff:       2 * time.Second,
		PollInterval:       500 * time.Millisecond,
		StallThreshold:     5,
		MaxDeadlockRetries: 3,
	}
}

func (c Config) normalized() Config {
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = max(runtime.NumCPU(), 1)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.StallThreshold < 1 {
		c.StallThreshold = 5
	}
	if c.MaxDeadlockRetries < 1 {
		c.MaxDeadlockRetries = 3
	}
	return c
}

// Executor coordinates execution of one task graph.
type Executor struct {
	cfg    Config
	runner PhaseRunner

	checker      CompletionChecker
	resolver     *deadlock.Resolver
	events       EventHandler
	verifier     Verifier
	consolidator Consolidator
	log          *logging.Logger
	retries      *retryManager

	mu      sync.Mutex
	graph   *task.Graph
	running map[string]bool
	wg      sync.WaitGroup
}

// New creates an executor over the given graph.
// The graph is built once externally at run start; the executor owns it
// from here on.
func New(cfg Config, g *task.Graph, runner PhaseRunner) *Executor {
	return &Executor{
		cfg:     cfg.normalized(),
		runner:  runner,
		graph:   g,
		events:  nopEvents{},
		log:     logging.NopLogger(),
		retries: newRetryManager(),
		running: make(map[string]bool),
	}
}

// SetCompletionChecker sets the durable-state predicate consulted for
// completion and split detection.
func (e *Executor) SetCompletionChecker(c CompletionChecker) { e.checker = c }

// SetResolver sets the deadlock resolver invoked on sustained stalls.
func (e *Executor) SetResolver(r *deadlock.Resolver) { e.resolver = r }

// SetEventHandler sets the progress sink.
func (e *Executor) SetEventHandler(h EventHandler) {
	if h != nil {
		e.events = h
	}
}

// SetVerifier sets the post-settle global verification pass.
func (e *Executor) SetVerifier(v Verifier) { e.verifier = v }

// SetConsolidator sets the final consolidation pass.
func (e *Executor) SetConsolidator(c Consolidator) { e.consolidator = c }

// SetLogger sets the structured logger.
func (e *Executor) SetLogger(l *logging.Logger) {
	if l != nil {
		e.log = l
	}
}

// Graph returns the live graph. Intended for introspection and tests;
// callers must not mutate it while a run is in progress.
func (e *Executor) Graph() *task.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// ReadyTasks returns the tasks currently eligible to start.
func (e *Executor) ReadyTasks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.ReadyTasks()
}

// Run executes the graph until every task settles.
//
// rebuild, when non-nil, is consulted each loop iteration for a fresh
// declaration snapshot to merge (a task splitting into subtasks arrives
// this way). Run returns the end-of-run report in all cases; the error is
// non-nil for an unresolved deadlock, a failed global verification, a
// failed consolidation, or context cancellation. A fatal abort waits for
// already-launched tasks to finish rather than force-killing them.
func (e *Executor) Run(ctx context.Context, rebuild task.SnapshotFunc) (*Report, error) {
	start := time.Now()
	stalls := 0
	deadlockAttempts := 0

	e.log.Info("run starting",
		"tasks", e.graph.Len(),
		"max_concurrent", e.cfg.MaxConcurrent,
		"max_attempts", e.cfg.MaxAttempts)

	for {
		if err := ctx.Err(); err != nil {
			e.wg.Wait()
			return e.buildReport(start), err
		}

		e.refresh(rebuild)
		e.resolveConflicts()

		e.mu.Lock()
		ready := e.graph.ReadyTasks()
		runningCount := len(e.running)
		pending, _, _, _ := e.graph.Counts()
		settled := runningCount == 0 && e.graph.Settled()

		if settled {
			e.mu.Unlock()
			break
		}

		if len(ready) == 0 && runningCount == 0 && pending > 0 {
			e.mu.Unlock()
			stalls++
			e.log.Debug("idle poll with pending tasks", "stalls", stalls, "pending", pending)
			if stalls < e.cfg.StallThreshold {
				e.sleep(ctx)
				continue
			}

			stalls = 0
			deadlockAttempts++
			resolved := e.resolveDeadlock(ctx, deadlockAttempts)
			if resolved {
				deadlockAttempts = 0
				continue
			}
			if deadlockAttempts >= e.cfg.MaxDeadlockRetries {
				e.wg.Wait()
				report := e.buildReport(start)
				return report, e.deadlockError(deadlockAttempts)
			}
			continue
		}
		stalls = 0

		// Admit ready tasks as slots free; no wave barrier, the live
		// running count is the only limit.
		slots := e.cfg.MaxConcurrent - runningCount
		for _, id := range ready {
			if slots <= 0 {
				break
			}
			e.launch(ctx, id)
			slots--
		}
		e.mu.Unlock()

		e.sleep(ctx)
	}

	e.wg.Wait()
	report := e.buildReport(start)

	if report.FailedCount() == 0 && e.verifier != nil && e.sweepAllowed() {
		e.log.Info("running global verification")
		if err := e.verifier.Verify(ctx); err != nil {
			e.log.Error("global verification failed", "error", err)
			return report, fmt.Errorf("global verification failed: %w", err)
		}
		if e.consolidator != nil {
			e.log.Info("running consolidation")
			if err := e.consolidator.Consolidate(ctx); err != nil {
				return report, fmt.Errorf("consolidation failed: %w", err)
			}
		}
	}

	e.log.Info("run settled",
		"completed", len(report.Completed),
		"failed", len(report.Failed),
		"pending", len(report.Pending),
		"duration", report.Duration.String())
	return report, nil
}

func (e *Executor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(e.cfg.PollInterval):
	}
}

// refresh merges a fresh declaration snapshot into the live graph.
func (e *Executor) refresh(rebuild task.SnapshotFunc) {
	if rebuild == nil {
		return
	}
	fresh, err := rebuild()
	if err != nil {
		e.log.Warn("graph rebuild failed, keeping current graph", "error", err)
		return
	}
	if fresh == nil {
		return
	}
	e.mu.Lock()
	e.graph.Merge(fresh)
	e.mu.Unlock()
}

// resolveConflicts serializes declared file conflicts by adding dependency
// edges. Informational, never an error path.
func (e *Executor) resolveConflicts() {
	e.mu.Lock()
	conflicts := conflict.DetectFileConflicts(e.graph)
	resolutions := conflict.AutoResolveConflicts(e.graph, conflicts)
	e.mu.Unlock()

	if len(resolutions) == 0 {
		return
	}
	for _, r := range resolutions {
		e.log.Info("serialized file conflict",
			"task", r.Task, "runs_after", r.RunsAfter, "files", r.Files)
	}
	e.events.OnConflictsResolved(resolutions)
}

// launch admits one ready task. Must be called with mu held.
func (e *Executor) launch(ctx context.Context, id string) {
	t := e.graph.Get(id)
	if t == nil || t.Status != task.StatusPending {
		return
	}
	t.Status = task.StatusRunning
	t.StartedAt = time.Now()
	e.running[id] = true

	e.log.Info("task started", "task_id", id)
	e.events.OnTaskStarted(id)

	// The pipeline gets a snapshot; the live record stays behind the mutex.
	snapshot := t.Clone()
	e.wg.Add(1)
	go e.runTask(ctx, snapshot)
}

func (e *Executor) runTask(ctx context.Context, t *task.Task) {
	defer e.wg.Done()

	err := e.runPipeline(ctx, t)

	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.running, t.ID)
	live := e.graph.Get(t.ID)
	if live == nil {
		// Merge rules keep running tasks in the graph; this is unreachable
		// short of external mutation.
		return
	}
	live.FinishedAt = time.Now()

	switch {
	case errors.Is(err, errRestructured):
		live.Status = task.StatusCompleted
		live.LastMessage = "restructured into subtasks"
		e.log.Info("task completed via restructuring", "task_id", t.ID)
		e.events.OnTaskCompleted(t.ID)
	case err != nil:
		live.Status = task.StatusFailed
		live.LastMessage = err.Error()
		e.log.Error("task failed", "task_id", t.ID, "error", err)
		e.events.OnTaskFailed(t.ID, err)
	default:
		live.Status = task.StatusCompleted
		live.LastMessage = ""
		e.log.Info("task completed", "task_id", t.ID)
		e.events.OnTaskCompleted(t.ID)
	}

	e.events.OnProgress(e.progressLocked())
}

// setStep records the current pipeline step on the live task for display.
func (e *Executor) setStep(id, step string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.graph.Get(id); t != nil {
		t.Step = step
	}
}

// resolveDeadlock runs one resolver attempt and merges the rebuilt graph
// on success.
func (e *Executor) resolveDeadlock(ctx context.Context, attempt int) bool {
	e.mu.Lock()
	g := e.graph.Clone()
	pending := g.TasksWithStatus(task.StatusPending)
	e.mu.Unlock()

	e.log.Warn("stall threshold crossed, invoking deadlock resolver",
		"attempt", attempt, "pending", len(pending))

	if e.resolver == nil {
		e.events.OnDeadlock(attempt, false)
		return false
	}

	ok, fresh := e.resolver.Resolve(ctx, g, pending)
	e.events.OnDeadlock(attempt, ok)
	if !ok {
		return false
	}

	e.mu.Lock()
	e.graph.Merge(fresh)
	e.mu.Unlock()
	return true
}

// progressLocked builds a Progress snapshot. Must be called with mu held.
func (e *Executor) progressLocked() Progress {
	pending, running, completed, failed := e.graph.Counts()
	p := Progress{
		Total:     e.graph.Len(),
		Pending:   pending,
		Running:   running,
		Completed: completed,
		Failed:    failed,
		Statuses:  make(map[string]task.Status, e.graph.Len()),
	}
	for id, t := range e.graph.Tasks {
		p.Statuses[id] = t.Status
	}
	return p
}

// Progress returns a current status snapshot.
func (e *Executor) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}
