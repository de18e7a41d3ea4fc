package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/dagrun/internal/config"
	"github.com/Iron-Ham/dagrun/internal/conflict"
	"github.com/Iron-Ham/dagrun/internal/deadlock"
	"github.com/Iron-Ham/dagrun/internal/display"
	"github.com/Iron-Ham/dagrun/internal/executor"
	"github.com/Iron-Ham/dagrun/internal/logging"
	"github.com/Iron-Ham/dagrun/internal/task"
)

var (
	runMaxConcurrent  int
	runMaxAttempts    int
	runRunnerCommand  string
	runFixerCommand   string
	runVerifyCommand  string
	runWatchConflicts bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Execute a plan of interdependent tasks",
	Long: `Execute a plan of interdependent tasks.

The plan file is JSON with a "tasks" array; each task carries an id,
optional depends_on and files lists, and a description. Dependencies and
files may also be declared inline via @deps [...] and @files [...] tags
in the description.

Each phase of each task invokes the worker command with DAGRUN_TASK_ID,
DAGRUN_PHASE, and DAGRUN_TASK_DIR in its environment. A task is complete
once the worker has written the durable completion marker in its work
directory. The plan file is re-read every scheduling pass, so a worker
splitting a task into subtasks is picked up mid-run.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runMaxConcurrent, "max-concurrent", 0, "max tasks running at once (default: processor count)")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", -1, "max attempts per task, 0 for unbounded (default: from config)")
	runCmd.Flags().StringVar(&runRunnerCommand, "runner", "", "worker command run for each task phase (required)")
	runCmd.Flags().StringVar(&runFixerCommand, "fixer", "", "command invoked with a deadlock description on stdin")
	runCmd.Flags().StringVar(&runVerifyCommand, "verify", "", "global verification command run after all tasks settle")
	runCmd.Flags().BoolVar(&runWatchConflicts, "watch-conflicts", false, "watch task work directories for overlapping writes")
	_ = runCmd.MarkFlagRequired("runner")
}

func runRun(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runMaxConcurrent > 0 {
		cfg.Executor.MaxConcurrent = runMaxConcurrent
	}
	if runMaxAttempts >= 0 {
		cfg.Executor.MaxAttempts = runMaxAttempts
	}

	graph, err := task.LoadPlanFile(planPath)
	if err != nil {
		return err
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLogger(cfg.Paths.WorkDir, cfg.Logging.Level)
		if err != nil {
			return err
		}
		defer func() { _ = log.Close() }()
	}

	if task.HasCycles(graph) {
		log.Warn("plan declares dependency cycles; the run will stall until the fixer rewrites them")
	}

	checker := executor.NewMarkerChecker(cfg.Paths.WorkDir)
	printer := display.NewPrinter(os.Stdout)
	rebuild := task.SnapshotFromFile(planPath)

	execCfg := executor.Config{
		MaxConcurrent:      cfg.Executor.MaxConcurrent,
		MaxAttempts:        cfg.Executor.MaxAttempts,
		RetryBackoff:       cfg.Executor.RetryBackoff(),
		PollInterval:       cfg.Executor.PollInterval(),
		StallThreshold:     cfg.Executor.StallThreshold,
		MaxDeadlockRetries: cfg.Executor.MaxDeadlockRetries,
		Phases:             phaseList(cfg.Executor.Phases),
	}

	exe := executor.New(execCfg, graph, shellRunner(checker))
	exe.SetLogger(log)
	exe.SetEventHandler(printer)
	exe.SetCompletionChecker(checker)

	if runFixerCommand != "" {
		exe.SetResolver(deadlock.NewResolver(shellFixer(runFixerCommand), rebuild, log))
	}
	if runVerifyCommand != "" {
		exe.SetVerifier(shellVerifier(runVerifyCommand))
	}

	if runWatchConflicts {
		watcher, werr := conflict.NewWatcher()
		if werr != nil {
			return werr
		}
		watcher.SetOverlapCallback(func(overlaps []conflict.Overlap) {
			for _, o := range overlaps {
				log.Warn("file written by multiple tasks",
					"path", o.RelativePath, "tasks", o.Tasks)
			}
		})
		watcher.Start()
		defer watcher.Stop()
		for _, id := range graph.IDs() {
			dir := checker.TaskDir(id)
			if err := os.MkdirAll(dir, 0755); err == nil {
				_ = watcher.AddTask(id, dir)
			}
		}
	}

	report, runErr := exe.Run(cmd.Context(), rebuild)
	printer.PrintReport(report)
	if runErr != nil {
		return runErr
	}
	if !report.Clean() {
		return fmt.Errorf("run finished with %d failed and %d unsatisfied tasks",
			len(report.Failed), len(report.Pending))
	}
	return nil
}

func phaseList(names []string) []executor.Phase {
	phases := make([]executor.Phase, 0, len(names))
	for _, n := range names {
		phases = append(phases, executor.Phase(strings.ToLower(strings.TrimSpace(n))))
	}
	return phases
}

// shellRunner invokes the worker command once per task phase. The worker
// learns its assignment from the environment; its combined output goes to
// the run log directory, not the terminal.
func shellRunner(checker *executor.MarkerChecker) executor.PhaseRunner {
	return executor.PhaseRunnerFunc(func(ctx context.Context, t *task.Task, phase executor.Phase) error {
		dir := checker.TaskDir(t.ID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}

		c := exec.CommandContext(ctx, "sh", "-c", runRunnerCommand)
		c.Env = append(os.Environ(),
			"DAGRUN_TASK_ID="+t.ID,
			"DAGRUN_PHASE="+string(phase),
			"DAGRUN_TASK_DIR="+dir,
		)
		out, err := c.CombinedOutput()
		if err != nil {
			return fmt.Errorf("worker exited: %w: %s", err, firstLine(out))
		}
		return nil
	})
}

// shellFixer feeds the deadlock description to the fixer command on stdin.
func shellFixer(command string) deadlock.Fixer {
	return deadlock.FixerFunc(func(ctx context.Context, description string) error {
		c := exec.CommandContext(ctx, "sh", "-c", command)
		c.Stdin = strings.NewReader(description)
		out, err := c.CombinedOutput()
		if err != nil {
			return fmt.Errorf("fixer exited: %w: %s", err, firstLine(out))
		}
		return nil
	})
}

type shellVerifier string

func (v shellVerifier) Verify(ctx context.Context) error {
	c := exec.CommandContext(ctx, "sh", "-c", string(v))
	out, err := c.CombinedOutput()
	if err != nil {
		return fmt.Errorf("verifier exited: %w: %s", err, firstLine(out))
	}
	return nil
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
