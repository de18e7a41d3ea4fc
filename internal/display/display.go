// Package display renders run progress to a terminal.
//
// It implements the executor's event-handler interface as a passive sink:
// styled status lines as tasks start, retry, finish, and a final summary.
// Nothing here feeds back into scheduling.
package display

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/dagrun/internal/conflict"
	"github.com/Iron-Ham/dagrun/internal/executor"
)

var (
	// Colors meet WCAG AA contrast on dark surfaces
	greenColor  = lipgloss.Color("#10B981")
	redColor    = lipgloss.Color("#F87171")
	amberColor  = lipgloss.Color("#F59E0B")
	blueColor   = lipgloss.Color("#60A5FA")
	mutedColor  = lipgloss.Color("#9CA3AF")
	purpleColor = lipgloss.Color("#A78BFA")

	okStyle     = lipgloss.NewStyle().Foreground(greenColor)
	failStyle   = lipgloss.NewStyle().Foreground(redColor)
	warnStyle   = lipgloss.NewStyle().Foreground(amberColor)
	runStyle    = lipgloss.NewStyle().Foreground(blueColor)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle = lipgloss.NewStyle().Foreground(purpleColor).Bold(true)
)

// Printer writes styled progress lines to an io.Writer.
// It is safe for concurrent use by the executor's task goroutines.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

// OnTaskStarted prints a launch line.
func (p *Printer) OnTaskStarted(taskID string) {
	p.printf("%s %s", runStyle.Render("▶"), taskID)
}

// OnTaskCompleted prints a completion line.
func (p *Printer) OnTaskCompleted(taskID string) {
	p.printf("%s %s", okStyle.Render("✓"), taskID)
}

// OnTaskFailed prints a failure line with its cause.
func (p *Printer) OnTaskFailed(taskID string, err error) {
	p.printf("%s %s: %s", failStyle.Render("✗"), taskID, mutedStyle.Render(err.Error()))
}

// OnTaskRetrying prints a retry notice.
func (p *Printer) OnTaskRetrying(taskID string, attempt int, err error) {
	p.printf("%s %s attempt %d failed: %s",
		warnStyle.Render("↻"), taskID, attempt, mutedStyle.Render(err.Error()))
}

// OnConflictsResolved prints each serialization edge added.
func (p *Printer) OnConflictsResolved(resolutions []conflict.Resolution) {
	for _, r := range resolutions {
		p.printf("%s %s now runs after %s (shared files: %v)",
			warnStyle.Render("⇄"), r.Task, r.RunsAfter, r.Files)
	}
}

// OnDeadlock prints the outcome of a resolver attempt.
func (p *Printer) OnDeadlock(attempt int, resolved bool) {
	if resolved {
		p.printf("%s deadlock resolved (attempt %d)", okStyle.Render("⚑"), attempt)
	} else {
		p.printf("%s deadlock resolution attempt %d failed", failStyle.Render("⚑"), attempt)
	}
}

// OnProgress prints a one-line counts update.
func (p *Printer) OnProgress(prog executor.Progress) {
	if prog.IsComplete() {
		p.printf("%s all tasks settled: %d completed, %d failed",
			mutedStyle.Render("·"), prog.Completed, prog.Failed)
		return
	}
	p.printf("%s %d/%d done, %d running, %d failed",
		mutedStyle.Render("·"),
		prog.Completed, prog.Total, prog.Running, prog.Failed)
}

// PrintReport renders the end-of-run report.
func (p *Printer) PrintReport(r *executor.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, headerStyle.Render("Run summary"))
	fmt.Fprintln(p.w, "  "+r.Summary())

	for _, id := range r.Completed {
		line := fmt.Sprintf("  %s %s", okStyle.Render("✓"), id)
		if d, ok := r.Durations[id]; ok {
			line += " " + mutedStyle.Render(d.Round(time.Millisecond).String())
		}
		fmt.Fprintln(p.w, line)
	}

	for _, id := range r.Failed {
		line := fmt.Sprintf("  %s %s", failStyle.Render("✗"), id)
		if d, ok := r.Durations[id]; ok {
			line += " " + mutedStyle.Render(d.Round(time.Millisecond).String())
		}
		if cause := r.FailureCauses[id]; cause != "" {
			line += ": " + mutedStyle.Render(cause)
		}
		fmt.Fprintln(p.w, line)
	}

	pending := make([]string, len(r.Pending))
	copy(pending, r.Pending)
	sort.Strings(pending)
	for _, id := range pending {
		line := fmt.Sprintf("  %s %s pending, unsatisfied:", warnStyle.Render("…"), id)
		for _, d := range r.Unsatisfied[id] {
			line += " " + d.String()
		}
		fmt.Fprintln(p.w, line)
	}
}

var _ executor.EventHandler = (*Printer)(nil)
