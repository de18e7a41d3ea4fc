// Package cmd implements the dagrun command-line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/dagrun/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "dagrun",
	Short: "Dependency-aware parallel task runner",
	Long: `Dagrun executes a plan of interdependent tasks, each fulfilled by an
external worker process. It respects dependency ordering while running
independent tasks in parallel up to a concurrency limit, retries
transient worker failures, auto-serializes tasks that declare the same
files, and breaks dependency deadlocks through an external fixer.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/dagrun/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		config.SetDefaults()
		viper.SetConfigFile(cfgFile)
		viper.SetEnvPrefix("DAGRUN")
		// e.g., DAGRUN_EXECUTOR_MAX_CONCURRENT for executor.max_concurrent
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()
		return
	}

	// Default search path and environment wiring
	_ = config.Init()
}
