package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/dagrun/internal/conflict"
	"github.com/Iron-Ham/dagrun/internal/task"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Check a plan for cycles, unknown dependencies, and file conflicts",
	Long: `Check a plan for cycles, unknown dependencies, and file conflicts.

Errors (cycles, references to tasks that do not exist) would stall a run
until the deadlock resolver intervenes. File overlaps between parallel
tasks are warnings only: the executor serializes them automatically at
run time, and the suggested dependency edges shown here match what it
would add.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	graph, err := task.LoadPlanFile(args[0])
	if err != nil {
		return err
	}

	result := task.ValidateGraph(graph)
	for _, msg := range result.Messages {
		line := fmt.Sprintf("[%s] %s", strings.ToUpper(string(msg.Severity)), msg.Message)
		if msg.TaskID != "" {
			line += fmt.Sprintf(" (task: %s)", msg.TaskID)
		}
		if len(msg.RelatedIDs) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(msg.RelatedIDs, ", "))
		}
		fmt.Println(line)
		if msg.Suggestion != "" {
			fmt.Printf("        %s\n", msg.Suggestion)
		}
	}

	if suggestions := conflict.SuggestDependencyFixes(graph); len(suggestions) > 0 {
		fmt.Println()
		fmt.Println("Suggested serializations:")
		for _, s := range suggestions {
			fmt.Printf("  %s -> depends_on += %s (files: %s)\n",
				s.Task, s.RunsAfter, strings.Join(s.Files, ", "))
		}
	}

	fmt.Println()
	fmt.Printf("%d tasks, %d errors, %d warnings\n", graph.Len(), result.ErrorCount, result.WarningCount)
	if !result.IsValid {
		return fmt.Errorf("plan has %d errors", result.ErrorCount)
	}
	return nil
}
