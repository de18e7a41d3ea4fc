package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Iron-Ham/dagrun/internal/task"
)

// Phase identifies one step of a task's pipeline.
type Phase string

const (
	// PhasePlan produces the task's approach before implementation.
	PhasePlan Phase = "plan"

	// PhaseImplement performs the task's work.
	PhaseImplement Phase = "implement"

	// PhaseReview checks the implemented work.
	PhaseReview Phase = "review"

	// PhaseSweep is the one-shot global verification pass run after all
	// tasks settle. It is never run per task.
	PhaseSweep Phase = "sweep"
)

// DefaultPhases returns the full phase allow-list.
func DefaultPhases() []Phase {
	return []Phase{PhasePlan, PhaseImplement, PhaseReview, PhaseSweep}
}

// PhaseRunner executes one phase of one task, blocking until the backing
// worker invocation fully finishes. The task value is a snapshot; status
// writes happen in the executor.
type PhaseRunner interface {
	Run(ctx context.Context, t *task.Task, phase Phase) error
}

// PhaseRunnerFunc adapts a function to the PhaseRunner interface.
type PhaseRunnerFunc func(ctx context.Context, t *task.Task, phase Phase) error

// Run calls f.
func (f PhaseRunnerFunc) Run(ctx context.Context, t *task.Task, phase Phase) error {
	return f(ctx, t, phase)
}

// CompletionChecker exposes the durable task state the executor trusts
// over a phase's own report. Both predicates must be idempotent.
type CompletionChecker interface {
	// Completed returns true once the task's durable completion state
	// has been recorded.
	Completed(taskID string) bool

	// Exists returns false once the task's backing storage is gone,
	// which signals the task was restructured into subtasks.
	Exists(taskID string) bool
}

// Verifier runs the global verification pass after all tasks settle
// cleanly. A verification error is fatal to the run.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Consolidator runs the optional final consolidation after verification
// succeeds.
type Consolidator interface {
	Consolidate(ctx context.Context) error
}

// errRestructured marks early completion: the task's backing storage
// disappeared because it was split into subtasks. Not a failure.
var errRestructured = errors.New("task restructured into subtasks")

// taskPhases returns the per-task pipeline: the configured allow-list
// minus the global sweep.
func (e *Executor) taskPhases() []Phase {
	allowed := e.cfg.Phases
	if len(allowed) == 0 {
		allowed = DefaultPhases()
	}
	phases := make([]Phase, 0, len(allowed))
	for _, p := range allowed {
		if p != PhaseSweep {
			phases = append(phases, p)
		}
	}
	return phases
}

// sweepAllowed returns true when the global sweep phase is not excluded
// by the allow-list.
func (e *Executor) sweepAllowed() bool {
	if len(e.cfg.Phases) == 0 {
		return true
	}
	for _, p := range e.cfg.Phases {
		if p == PhaseSweep {
			return true
		}
	}
	return false
}

// runPipeline drives one task through its phases with bounded retry.
//
// A phase failure backs off briefly and retries the same phase; every
// failure counts against the task's attempt budget. After all phases
// pass, the durable completion state is re-checked; a missing record
// also counts as a failed attempt and re-runs the pipeline. Returns
// errRestructured when the task's backing storage disappears mid-run.
func (e *Executor) runPipeline(ctx context.Context, t *task.Task) error {
	log := e.log.WithTask(t.ID)
	phases := e.taskPhases()
	attempts := 0

	// fail records one failed attempt. It returns a non-nil error when the
	// budget is exhausted or the context ended during backoff.
	fail := func(cause error) error {
		attempts++
		e.retries.recordFailure(t.ID, cause)
		if e.cfg.MaxAttempts > 0 && attempts >= e.cfg.MaxAttempts {
			return fmt.Errorf("after %d attempts: %w", attempts, cause)
		}
		log.Warn("attempt failed, retrying", "attempt", attempts, "error", cause)
		e.events.OnTaskRetrying(t.ID, attempts, cause)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.RetryBackoff):
			return nil
		}
	}

	for {
		for i := 0; i < len(phases); {
			phase := phases[i]

			if e.checker != nil && !e.checker.Exists(t.ID) {
				log.Info("backing storage gone, treating task as restructured")
				return errRestructured
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			e.setStep(t.ID, string(phase))
			log.Debug("running phase", "phase", phase)

			err := e.runner.Run(ctx, t, phase)
			if err == nil {
				i++
				continue
			}
			if fatal := fail(fmt.Errorf("phase %s: %w", phase, err)); fatal != nil {
				return fatal
			}
		}

		// Phases reported success; trust the durable state, not the report.
		if e.checker == nil || e.checker.Completed(t.ID) {
			return nil
		}
		if e.checker != nil && !e.checker.Exists(t.ID) {
			return errRestructured
		}
		if fatal := fail(errors.New("phases passed but completion state was never recorded")); fatal != nil {
			return fatal
		}
	}
}
