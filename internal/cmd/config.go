package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/dagrun/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View dagrun configuration",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/dagrun/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Printf("  executor.max_concurrent      = %d\n", cfg.Executor.MaxConcurrent)
	fmt.Printf("  executor.max_attempts        = %d\n", cfg.Executor.MaxAttempts)
	fmt.Printf("  executor.retry_backoff_ms    = %d\n", cfg.Executor.RetryBackoffMs)
	fmt.Printf("  executor.poll_interval_ms    = %d\n", cfg.Executor.PollIntervalMs)
	fmt.Printf("  executor.stall_threshold     = %d\n", cfg.Executor.StallThreshold)
	fmt.Printf("  executor.max_deadlock_retries = %d\n", cfg.Executor.MaxDeadlockRetries)
	fmt.Printf("  executor.phases              = %v\n", cfg.Executor.Phases)
	fmt.Printf("  logging.enabled              = %t\n", cfg.Logging.Enabled)
	fmt.Printf("  logging.level                = %s\n", cfg.Logging.Level)
	fmt.Printf("  paths.work_dir               = %s\n", cfg.Paths.WorkDir)
	return nil
}

const defaultConfigTemplate = `# dagrun configuration
executor:
  # Max tasks running at once; 0 means the available processor count.
  max_concurrent: 0
  # Max attempts per task; 0 means unbounded.
  max_attempts: 3
  retry_backoff_ms: 2000
  poll_interval_ms: 500
  # Consecutive idle polls before the deadlock resolver runs.
  stall_threshold: 5
  max_deadlock_retries: 3
  # Phase allow-list; empty means all of: plan, implement, review, sweep.
  phases: []

logging:
  enabled: true
  level: info

paths:
  work_dir: .dagrun
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}
